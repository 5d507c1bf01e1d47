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
	"fmt"
	"text/scanner"

	"github.com/cloudendpoints/espstart/manifest/parser"
)

// Rule kinds understood by the loader.
const (
	KindLibrary            = "go_library"
	KindExternalRepository = "external_repository"
)

// A SrcsSpec selects the source files of a target: every file matching an
// include pattern that matches no exclude pattern.
type SrcsSpec struct {
	Include []string
	Exclude []string
}

// A Target is the typed form of a single rule definition.
type Target struct {
	Name       string
	Kind       string
	Pkg        string // package path of the declaring manifest file
	Srcs       SrcsSpec
	Visibility []string
	Deps       []string // dependency labels as written

	Pos scanner.Position // of the rule kind token

	directDeps  []*Target
	forwardDeps []*Target
	reverseDeps []*Target
}

// DirectDeps returns the local targets this target depends on.  It is
// only populated after Graph.ResolveDependencies.
func (t *Target) DirectDeps() []*Target {
	return append([]*Target(nil), t.directDeps...)
}

// ReverseDeps returns the local targets that depend on this target.  It
// is only populated after Graph.ResolveDependencies.
func (t *Target) ReverseDeps() []*Target {
	return append([]*Target(nil), t.reverseDeps...)
}

// An External is a declared external repository alias.  Dependency labels
// of the form @alias//... must name one of these.
type External struct {
	Name string
	Pos  scanner.Position
}

// unpackTarget converts a parsed rule into a Target, validating property
// names and types.  It accumulates errors rather than stopping at the
// first one so that a single load reports every bad property.
func unpackTarget(rule *parser.Rule, pkg string) (*Target, []error) {
	target := &Target{
		Kind: rule.Kind.Name,
		Pkg:  pkg,
		Pos:  rule.Kind.Pos,
	}

	var errs []error

	for _, prop := range rule.Properties {
		switch prop.Name.Name {
		case "name":
			target.Name, errs = unpackString(target, prop, errs)
		case "srcs":
			target.Srcs, errs = unpackSrcs(target, prop, errs)
		case "visibility":
			target.Visibility, errs = unpackStringList(target, prop, errs)
		case "deps":
			target.Deps, errs = unpackStringList(target, prop, errs)
		default:
			errs = append(errs, propertyErrorf(target, prop.Name.Name, prop.Name.Pos,
				"unrecognized property %q", prop.Name.Name))
		}
	}

	if target.Name == "" {
		errs = append(errs, &ManifestError{
			Err: fmt.Errorf("%s is missing a name", rule.Kind.Name),
			Pos: rule.Kind.Pos,
		})
	}

	if target.Kind == KindExternalRepository {
		for _, prop := range rule.Properties {
			if prop.Name.Name != "name" {
				errs = append(errs, propertyErrorf(target, prop.Name.Name, prop.Name.Pos,
					"external_repository only takes a name"))
			}
		}
	}

	return target, errs
}

func unpackString(target *Target, prop *parser.Property, errs []error) (string, []error) {
	if prop.Value.Type != parser.String {
		return "", append(errs, propertyErrorf(target, prop.Name.Name, prop.Value.Pos,
			"expected string, found %s", prop.Value.Type))
	}
	return prop.Value.StringValue, errs
}

func unpackStringList(target *Target, prop *parser.Property, errs []error) ([]string, []error) {
	if prop.Value.Type != parser.List {
		return nil, append(errs, propertyErrorf(target, prop.Name.Name, prop.Value.Pos,
			"expected list of strings, found %s", prop.Value.Type))
	}
	var list []string
	for _, value := range prop.Value.ListValue {
		if value.Type != parser.String {
			return nil, append(errs, propertyErrorf(target, prop.Name.Name, value.Pos,
				"expected list of strings, found %s element", value.Type))
		}
		list = append(list, value.StringValue)
	}
	return list, errs
}

func unpackSrcs(target *Target, prop *parser.Property, errs []error) (SrcsSpec, []error) {
	var srcs SrcsSpec

	switch prop.Value.Type {
	case parser.List:
		// A bare list is shorthand for include with no excludes.
		srcs.Include, errs = unpackStringList(target, prop, errs)
	case parser.Map:
		for _, sub := range prop.Value.MapValue {
			switch sub.Name.Name {
			case "include":
				srcs.Include, errs = unpackStringList(target, sub, errs)
			case "exclude":
				srcs.Exclude, errs = unpackStringList(target, sub, errs)
			default:
				errs = append(errs, propertyErrorf(target, "srcs."+sub.Name.Name, sub.Name.Pos,
					"unrecognized srcs key %q", sub.Name.Name))
			}
		}
	default:
		errs = append(errs, propertyErrorf(target, prop.Name.Name, prop.Value.Pos,
			"expected list or {include, exclude} map, found %s", prop.Value.Type))
	}

	return srcs, errs
}
