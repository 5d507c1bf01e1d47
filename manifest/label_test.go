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

package manifest

import (
	"strings"
	"testing"
)

var labelTestCases = []struct {
	input string
	pkg   string
	label Label
	err   string
}{
	{
		input: ":gensupport",
		pkg:   "vendor/google-api-go-client",
		label: Label{Pkg: "vendor/google-api-go-client", Name: "gensupport"},
	},
	{
		input: ":uritemplates",
		pkg:   "",
		label: Label{Name: "uritemplates"},
	},
	{
		input: "//core:internal_lib",
		pkg:   "client",
		label: Label{Pkg: "core", Name: "internal_lib"},
	},
	{
		input: "//googleapi/internal/uritemplates",
		label: Label{Pkg: "googleapi/internal/uritemplates", Name: "uritemplates"},
	},
	{
		input: "@org_golang_x_net//:context",
		label: Label{Repo: "org_golang_x_net", Name: "context"},
	},
	{
		input: "@org_golang_x_net//context:ctxhttp",
		label: Label{Repo: "org_golang_x_net", Pkg: "context", Name: "ctxhttp"},
	},
	{
		input: "",
		err:   "empty label",
	},
	{
		input: "gensupport",
		err:   `invalid label "gensupport"`,
	},
	{
		input: "@org_golang_x_net:context",
		err:   `external labels require "//"`,
	},
	{
		input: "@//pkg:name",
		err:   "empty repository alias",
	},
	{
		input: "//:",
		err:   "missing target name",
	},
	{
		input: "//",
		err:   "missing target name",
	},
	{
		input: "//pkg:a:b",
		err:   "malformed target name",
	},
}

func TestParseLabel(t *testing.T) {
	for _, testCase := range labelTestCases {
		t.Run(testCase.input, func(t *testing.T) {
			label, err := ParseLabel(testCase.input, testCase.pkg)
			if testCase.err != "" {
				if err == nil || !strings.Contains(err.Error(), testCase.err) {
					t.Errorf("expected error containing %q, got %v", testCase.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if label != testCase.label {
				t.Errorf("got %#v, expected %#v", label, testCase.label)
			}
		})
	}
}

func TestLabelString(t *testing.T) {
	for _, testCase := range []struct {
		label    Label
		expected string
	}{
		{Label{Name: "googleapi"}, ":googleapi"},
		{Label{Pkg: "core", Name: "lib"}, "//core:lib"},
		{Label{Repo: "org_golang_x_net", Name: "context"}, "@org_golang_x_net//:context"},
		{Label{Repo: "org_golang_x_net", Pkg: "context", Name: "ctxhttp"}, "@org_golang_x_net//context:ctxhttp"},
	} {
		if s := testCase.label.String(); s != testCase.expected {
			t.Errorf("got %q, expected %q", s, testCase.expected)
		}
	}
}
