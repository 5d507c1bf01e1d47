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

package main

import (
	"fmt"
	"os"

	"github.com/ddddddO/gtree"
	"github.com/spf13/cobra"

	"github.com/cloudendpoints/espstart/manifest"
)

var graphCmd = &cobra.Command{
	Use:   "graph <manifest>...",
	Short: "Render the target dependency tree",
	Long: `Loads the given build manifests and renders the dependency tree of
every root target, one that no other target depends on.  External
repository dependencies appear as leaves under their labels.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

func addDeps(node *gtree.Node, target *manifest.Target) {
	local := make(map[string]*manifest.Target)
	for _, dep := range target.DirectDeps() {
		local[dep.Name] = dep
	}

	// Walk the labels as written so the tree preserves declaration
	// order and shows external deps next to local ones.
	for _, depLabel := range target.Deps {
		label, err := manifest.ParseLabel(depLabel, target.Pkg)
		if err != nil {
			continue
		}
		if label.IsExternal() {
			node.Add(label.String())
			continue
		}
		if dep, ok := local[label.Name]; ok {
			addDeps(node.Add(dep.Name), dep)
		}
	}
}

func runGraph(cmd *cobra.Command, args []string) error {
	graph, errs := loadManifests(args)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, err)
		}
		return fmt.Errorf("failed to load manifests")
	}

	for _, target := range graph.Targets() {
		if len(target.ReverseDeps()) > 0 {
			continue
		}
		root := gtree.NewRoot(target.Name)
		addDeps(root, target)
		if err := gtree.OutputProgrammably(os.Stdout, root); err != nil {
			return err
		}
	}
	return nil
}
