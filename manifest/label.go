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
	"strings"
)

// A Label is a reference to a target.  Dependency lists use labels in
// three forms:
//
//	:name                   target in the same manifest
//	//pkg:name              target declared under pkg
//	@repo//pkg:name         target provided by an external repository
//
// When the name is omitted from a //pkg form it defaults to the last
// package path element.
type Label struct {
	Repo string // external repository alias, empty for local labels
	Pkg  string
	Name string
}

// IsExternal reports whether the label refers to a target in an external
// repository rather than one declared in this manifest set.
func (l Label) IsExternal() bool {
	return l.Repo != ""
}

func (l Label) String() string {
	var b strings.Builder
	if l.Repo != "" {
		b.WriteString("@")
		b.WriteString(l.Repo)
	}
	if l.Pkg != "" || l.Repo != "" {
		b.WriteString("//")
		b.WriteString(l.Pkg)
	}
	b.WriteString(":")
	b.WriteString(l.Name)
	return b.String()
}

// ParseLabel parses a dependency reference.  pkg is the package of the
// referencing target, used to resolve same-package ":name" labels.
func ParseLabel(s, pkg string) (Label, error) {
	if s == "" {
		return Label{}, fmt.Errorf("empty label")
	}

	var l Label

	rest := s
	if strings.HasPrefix(rest, "@") {
		repo, path, found := strings.Cut(rest[1:], "//")
		if !found {
			return Label{}, fmt.Errorf("invalid label %q: external labels require \"//\"", s)
		}
		if repo == "" {
			return Label{}, fmt.Errorf("invalid label %q: empty repository alias", s)
		}
		l.Repo = repo
		rest = "//" + path
	}

	switch {
	case strings.HasPrefix(rest, "//"):
		rest = rest[2:]
		p, name, found := strings.Cut(rest, ":")
		if !found {
			if p == "" {
				return Label{}, fmt.Errorf("invalid label %q: missing target name", s)
			}
			// //a/b is shorthand for //a/b:b
			name = p[strings.LastIndex(p, "/")+1:]
		}
		l.Pkg = p
		l.Name = name
	case strings.HasPrefix(rest, ":"):
		if l.Repo != "" {
			return Label{}, fmt.Errorf("invalid label %q", s)
		}
		l.Pkg = pkg
		l.Name = rest[1:]
	default:
		return Label{}, fmt.Errorf("invalid label %q: expected \":name\", \"//pkg:name\", or \"@repo//pkg:name\"", s)
	}

	if l.Name == "" {
		return Label{}, fmt.Errorf("invalid label %q: missing target name", s)
	}
	if strings.ContainsAny(l.Name, "/:") {
		return Label{}, fmt.Errorf("invalid label %q: malformed target name %q", s, l.Name)
	}

	return l, nil
}
