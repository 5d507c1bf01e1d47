// Copyright 2017 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package parser

import (
	"strings"
	"testing"
)

func parseValid(t *testing.T, input string) *File {
	t.Helper()
	file, errs := ParseAndEval("test.manifest", strings.NewReader(input), NewScope(nil))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors parsing %q: %v", input, errs)
	}
	return file
}

func stringList(t *testing.T, v Value) []string {
	t.Helper()
	if v.Type != List {
		t.Fatalf("expected list value, got %s", v.Type)
	}
	var ret []string
	for _, elem := range v.ListValue {
		if elem.Type != String {
			t.Fatalf("expected string list element, got %s", elem.Type)
		}
		ret = append(ret, elem.StringValue)
	}
	return ret
}

func TestParseRule(t *testing.T) {
	file := parseValid(t, `
go_library {
    name: "googleapi",
    srcs: {
        include: ["googleapi/*.go"],
        exclude: ["googleapi/*_test.go"],
    },
    visibility: ["//visibility:public"],
    deps: [":uritemplates"],
}
`)

	if len(file.Defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(file.Defs))
	}

	rule, ok := file.Defs[0].(*Rule)
	if !ok {
		t.Fatalf("expected *Rule, got %T", file.Defs[0])
	}
	if rule.Kind.Name != "go_library" {
		t.Errorf("rule kind: got %q, expected %q", rule.Kind.Name, "go_library")
	}

	name := rule.Property("name")
	if name == nil || name.Value.Type != String || name.Value.StringValue != "googleapi" {
		t.Errorf("name property: got %v", name)
	}

	srcs := rule.Property("srcs")
	if srcs == nil || srcs.Value.Type != Map {
		t.Fatalf("srcs property: got %v", srcs)
	}
	var include, exclude []string
	for _, prop := range srcs.Value.MapValue {
		switch prop.Name.Name {
		case "include":
			include = stringList(t, prop.Value)
		case "exclude":
			exclude = stringList(t, prop.Value)
		}
	}
	if len(include) != 1 || include[0] != "googleapi/*.go" {
		t.Errorf("srcs.include: got %q", include)
	}
	if len(exclude) != 1 || exclude[0] != "googleapi/*_test.go" {
		t.Errorf("srcs.exclude: got %q", exclude)
	}

	if deps := stringList(t, rule.Property("deps").Value); len(deps) != 1 || deps[0] != ":uritemplates" {
		t.Errorf("deps: got %q", deps)
	}

	if rule.Property("nonexistent") != nil {
		t.Errorf("expected nil for missing property")
	}
}

func TestParseVariables(t *testing.T) {
	file := parseValid(t, `
client_deps = [":googleapi"]
client_deps += [":gensupport"]
prefix = "logging/"

go_library {
    name: "logging_v2beta1",
    srcs: {
        include: [prefix + "v2beta1/*.go"],
    },
    deps: client_deps + ["@org_golang_x_net//:context"],
}
`)

	var rule *Rule
	for _, def := range file.Defs {
		if r, ok := def.(*Rule); ok {
			rule = r
		}
	}
	if rule == nil {
		t.Fatalf("no rule definition found")
	}

	deps := stringList(t, rule.Property("deps").Value)
	expected := []string{":googleapi", ":gensupport", "@org_golang_x_net//:context"}
	if len(deps) != len(expected) {
		t.Fatalf("deps: got %q, expected %q", deps, expected)
	}
	for i := range deps {
		if deps[i] != expected[i] {
			t.Errorf("deps[%d]: got %q, expected %q", i, deps[i], expected[i])
		}
	}

	srcs := rule.Property("srcs")
	include := stringList(t, srcs.Value.MapValue[0].Value)
	if len(include) != 1 || include[0] != "logging/v2beta1/*.go" {
		t.Errorf("srcs.include: got %q", include)
	}
}

func TestParseMapConcat(t *testing.T) {
	file := parseValid(t, `
common_srcs = {
    include: ["gensupport/*.go"],
}

go_library {
    name: "gensupport",
    srcs: common_srcs + {
        exclude: ["gensupport/*_test.go"],
    },
}
`)

	var rule *Rule
	for _, def := range file.Defs {
		if r, ok := def.(*Rule); ok {
			rule = r
		}
	}

	srcs := rule.Property("srcs")
	if srcs.Value.Type != Map || len(srcs.Value.MapValue) != 2 {
		t.Fatalf("srcs: got %v", srcs.Value)
	}
}

func TestParseComments(t *testing.T) {
	file := parseValid(t, `
// Vendored client library targets.
go_library {
    name: "uritemplates", // no deps
}
`)

	if len(file.Comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(file.Comments))
	}
	if text := strings.TrimSpace(file.Comments[0].Text()); text != "Vendored client library targets." {
		t.Errorf("comment text: got %q", text)
	}
}

var parseErrorTestCases = []struct {
	input string
	err   string
}{
	{
		input: `go_library`,
		err:   `expected "=" or "+=" or "{"`,
	},
	{
		input: `go_library { name: }`,
		err:   "expected bool, list, map, or string value",
	},
	{
		input: `go_library { name: undefined_var }`,
		err:   `variable "undefined_var" is not set`,
	},
	{
		input: "x = \"a\"\nx = \"b\"\n",
		err:   "variable already set",
	},
	{
		input: `x += ["a"]`,
		err:   `modified non-existent variable "x" with +=`,
	},
	{
		input: "x = \"a\"\ny = x + [\"b\"]\n",
		err:   "mismatched type in operator +",
	},
	{
		input: `go_library { deps: [true] }`,
		err:   "expected string in list",
	},
	{
		input: `"top level string"`,
		err:   "expected assignment or rule definition",
	},
}

func TestParseErrors(t *testing.T) {
	for _, testCase := range parseErrorTestCases {
		_, errs := ParseAndEval("test.manifest", strings.NewReader(testCase.input), NewScope(nil))
		if len(errs) == 0 {
			t.Errorf("input %q: expected a parse error", testCase.input)
			continue
		}
		if !strings.Contains(errs[0].Error(), testCase.err) {
			t.Errorf("input %q:", testCase.input)
			t.Errorf("     got: %s", errs[0])
			t.Errorf("expected: %s", testCase.err)
		}
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, errs := ParseAndEval("vendor.manifest",
		strings.NewReader("go_library {\n    name: broken_ref,\n}\n"), NewScope(nil))
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	parseErr, ok := errs[0].(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", errs[0])
	}
	if parseErr.Pos.Filename != "vendor.manifest" || parseErr.Pos.Line != 2 {
		t.Errorf("error position: got %s", parseErr.Pos)
	}
}
