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

// Package manifest loads build-manifest files describing how vendored
// library sources are compiled as targets, and validates the structural
// properties of the result: every dependency label resolves to a declared
// target or external repository, the target graph is acyclic, and source
// globs select at least one file.
package manifest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloudendpoints/espstart/manifest/parser"
	"github.com/cloudendpoints/espstart/pathtools"
)

// Visibility markers understood by the loader, in addition to
// "//pkg:__pkg__" package entries.
const (
	VisibilityPublic  = "//visibility:public"
	VisibilityPrivate = "//visibility:private"
)

// A Graph holds the targets declared by one or more manifest files and,
// after ResolveDependencies, the dependency edges between them.
//
// The usual sequence is NewGraph, LoadManifest for each file, then
// ResolveDependencies.  Each phase returns the accumulated errors for
// that phase; later phases expect the earlier ones to have succeeded.
type Graph struct {
	fs pathtools.FileSystem

	targets   map[string]*Target
	externals map[string]*External

	targetsSorted []*Target // dependencies first, set by ResolveDependencies

	dependenciesReady bool
}

// NewGraph returns an empty Graph reading through fs.  A nil fs means the
// local disk.
func NewGraph(fs pathtools.FileSystem) *Graph {
	if fs == nil {
		fs = pathtools.OsFs
	}
	return &Graph{
		fs:        fs,
		targets:   make(map[string]*Target),
		externals: make(map[string]*External),
	}
}

// LoadManifest parses the manifest file at path and registers its
// targets.  The target package is the directory of path, relative to the
// current directory.
func (g *Graph) LoadManifest(path string) []error {
	f, err := g.fs.Open(path)
	if err != nil {
		return []error{err}
	}
	defer f.Close()

	pkg := filepath.Dir(path)
	if pkg == "." {
		pkg = ""
	}

	file, errs := parser.ParseAndEval(path, f, parser.NewScope(nil))
	if len(errs) > 0 {
		return errs
	}

	for _, def := range file.Defs {
		rule, ok := def.(*parser.Rule)
		if !ok {
			// Assignments only feed values into rules.
			continue
		}
		errs = append(errs, g.addRule(rule, pkg)...)
	}

	return errs
}

func (g *Graph) addRule(rule *parser.Rule, pkg string) []error {
	switch rule.Kind.Name {
	case KindLibrary, KindExternalRepository:
	default:
		return []error{&ManifestError{
			Err: fmt.Errorf("unrecognized rule kind %q", rule.Kind.Name),
			Pos: rule.Kind.Pos,
		}}
	}

	target, errs := unpackTarget(rule, pkg)
	if len(errs) > 0 {
		return errs
	}

	if rule.Kind.Name == KindExternalRepository {
		if old, present := g.externals[target.Name]; present {
			return []error{&ManifestError{
				// seven characters at the start of the second line to align with the string "error: "
				Err: fmt.Errorf("external repository %q already declared\n"+
					"       %s <-- previous declaration here", target.Name, old.Pos),
				Pos: target.Pos,
			}}
		}
		g.externals[target.Name] = &External{Name: target.Name, Pos: target.Pos}
		return nil
	}

	if old, present := g.targets[target.Name]; present {
		return []error{&ManifestError{
			// seven characters at the start of the second line to align with the string "error: "
			Err: fmt.Errorf("target %q already defined\n"+
				"       %s <-- previous definition here", target.Name, old.Pos),
			Pos: target.Pos,
		}}
	}

	g.targets[target.Name] = target
	g.dependenciesReady = false

	return nil
}

// Target returns the named local target, or nil.
func (g *Graph) Target(name string) *Target {
	return g.targets[name]
}

// Targets returns all local targets sorted by name.
func (g *Graph) Targets() []*Target {
	names := make([]string, 0, len(g.targets))
	for name := range g.targets {
		names = append(names, name)
	}
	sort.Strings(names)

	targets := make([]*Target, len(names))
	for i, name := range names {
		targets[i] = g.targets[name]
	}
	return targets
}

// SortedTargets returns the local targets in dependency order, every
// target after all of its dependencies.  ResolveDependencies must have
// succeeded first.
func (g *Graph) SortedTargets() []*Target {
	if !g.dependenciesReady {
		panic("SortedTargets called before ResolveDependencies")
	}
	return append([]*Target(nil), g.targetsSorted...)
}

// ResolveDependencies resolves every dependency label to a declared
// target or external repository, enforces visibility, and checks that the
// local dependency graph is acyclic.
func (g *Graph) ResolveDependencies() []error {
	errs := g.resolveDirectDeps()
	if len(errs) > 0 {
		return errs
	}

	errs = g.checkVisibility()
	if len(errs) > 0 {
		return errs
	}

	errs = g.updateDependencies()
	if len(errs) > 0 {
		return errs
	}

	g.dependenciesReady = true
	return nil
}

func (g *Graph) resolveDirectDeps() (errs []error) {
	for _, target := range g.Targets() {
		target.directDeps = nil

		deps := make(map[string]bool)
		for _, depLabel := range target.Deps {
			label, err := ParseLabel(depLabel, target.Pkg)
			if err != nil {
				errs = append(errs, targetErrorf(target, "%s", err))
				continue
			}

			if deps[depLabel] {
				errs = append(errs, targetErrorf(target, "duplicate dependency on %q", depLabel))
				continue
			}
			deps[depLabel] = true

			if label.IsExternal() {
				if _, declared := g.externals[label.Repo]; !declared {
					errs = append(errs, targetErrorf(target,
						"depends on undeclared external repository %q", "@"+label.Repo))
				}
				// External targets are opaque; they contribute no
				// local graph edges.
				continue
			}

			dep, found := g.targets[label.Name]
			if !found {
				errs = append(errs, targetErrorf(target,
					"depends on undefined target %q", depLabel))
				continue
			}
			if dep == target {
				errs = append(errs, targetErrorf(target, "depends on itself"))
				continue
			}
			if label.Pkg != dep.Pkg {
				errs = append(errs, targetErrorf(target,
					"depends on %q, but target %q is declared in package %q",
					depLabel, dep.Name, dep.Pkg))
				continue
			}

			target.directDeps = append(target.directDeps, dep)
		}
	}

	return errs
}

func (g *Graph) checkVisibility() (errs []error) {
	for _, target := range g.Targets() {
		for _, dep := range target.directDeps {
			if !visibleTo(dep, target) {
				errs = append(errs, targetErrorf(target,
					"target %q is not visible to %q", dep.Name, target.Name))
			}
		}
	}
	return errs
}

// visibleTo reports whether dep may be depended on by target.  A target
// with no visibility property is private to its package.
func visibleTo(dep, target *Target) bool {
	if dep.Pkg == target.Pkg {
		return true
	}
	for _, v := range dep.Visibility {
		switch v {
		case VisibilityPublic:
			return true
		case VisibilityPrivate:
			continue
		default:
			if pkg, ok := strings.CutSuffix(v, ":__pkg__"); ok {
				if strings.TrimPrefix(pkg, "//") == target.Pkg {
					return true
				}
			}
		}
	}
	return false
}

// updateDependencies walks the target dependency graph, building a sorted
// list of targets such that dependencies of a target always appear first,
// and populating reverse dependency links.  It reports errors when it
// encounters dependency cycles.
func (g *Graph) updateDependencies() (errs []error) {
	visited := make(map[*Target]bool)  // targets that were already checked
	checking := make(map[*Target]bool) // targets actively being checked

	sorted := make([]*Target, 0, len(g.targets))

	var check func(target *Target) []*Target

	cycleError := func(cycle []*Target) {
		// We are the "start" of the cycle, so we're responsible
		// for generating the errors.  The cycle list is in
		// reverse order because all the 'check' calls append
		// their own target to the list.
		errs = append(errs, &ManifestError{
			Err: fmt.Errorf("encountered dependency cycle:"),
			Pos: cycle[len(cycle)-1].Pos,
		})

		// Iterate backwards through the cycle list.
		curTarget := cycle[0]
		for i := len(cycle) - 1; i >= 0; i-- {
			nextTarget := cycle[i]
			errs = append(errs, &ManifestError{
				Err: fmt.Errorf("    %q depends on %q",
					curTarget.Name, nextTarget.Name),
				Pos: curTarget.Pos,
			})
			curTarget = nextTarget
		}
	}

	check = func(target *Target) []*Target {
		visited[target] = true
		checking[target] = true
		defer delete(checking, target)

		target.forwardDeps = nil
		target.reverseDeps = nil

		for _, dep := range target.directDeps {
			if checking[dep] {
				// This is a cycle.
				return []*Target{dep, target}
			}

			if !visited[dep] {
				cycle := check(dep)
				if cycle != nil {
					if cycle[0] == target {
						// We are the "start" of the cycle, so we're responsible
						// for generating the errors.  The cycle list is in
						// reverse order because all the 'check' calls append
						// their own target to the list.
						cycleError(cycle)

						// We can continue processing this target's children to
						// find more cycles.  Since all the targets that were
						// part of the found cycle were marked as visited we
						// won't run into that cycle again.
					} else {
						// We're not the "start" of the cycle, so we just append
						// our target to the list and return it.
						return append(cycle, target)
					}
				}
			}

			target.forwardDeps = append(target.forwardDeps, dep)
			dep.reverseDeps = append(dep.reverseDeps, target)
		}

		sorted = append(sorted, target)

		return nil
	}

	for _, target := range g.Targets() {
		if !visited[target] {
			cycle := check(target)
			if cycle != nil {
				if cycle[len(cycle)-1] != target {
					panic("inconceivable!")
				}
				cycleError(cycle)
			}
		}
	}

	g.targetsSorted = sorted

	return errs
}

// ExpandSources expands the srcs globs of target through the graph's
// filesystem.  An include pattern that matches nothing is an error, as is
// a target whose sources end up empty.
func (g *Graph) ExpandSources(target *Target) ([]string, error) {
	var srcs []string
	seen := make(map[string]bool)

	for _, pattern := range target.Srcs.Include {
		matches, err := g.fs.Glob(pattern, target.Srcs.Exclude)
		if err != nil {
			return nil, targetErrorf(target, "glob pattern %q: %s", pattern, err)
		}
		if len(matches) == 0 {
			return nil, targetErrorf(target, "glob pattern %q matched no files", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				srcs = append(srcs, m)
			}
		}
	}

	sort.Strings(srcs)
	return srcs, nil
}
