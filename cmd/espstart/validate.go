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

	"github.com/spf13/cobra"

	"github.com/cloudendpoints/espstart/manifest"
)

var validateSrcs bool

var validateCmd = &cobra.Command{
	Use:   "validate <manifest>...",
	Short: "Check build manifests for errors",
	Long: `Loads the given build manifests into a single target graph and checks
that every dependency label resolves to a declared target or external
repository, that targets are only used where they are visible, and that
the dependency graph is acyclic.

With --srcs, additionally checks that every srcs glob matches at least
one file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateSrcs, "srcs", false,
		"also expand srcs globs against the filesystem")
	rootCmd.AddCommand(validateCmd)
}

func loadManifests(paths []string) (*manifest.Graph, []error) {
	graph := manifest.NewGraph(nil)
	for _, path := range paths {
		if errs := graph.LoadManifest(path); len(errs) > 0 {
			return nil, errs
		}
	}
	if errs := graph.ResolveDependencies(); len(errs) > 0 {
		return nil, errs
	}
	return graph, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	graph, errs := loadManifests(args)

	if len(errs) == 0 && validateSrcs {
		for _, target := range graph.SortedTargets() {
			if _, err := graph.ExpandSources(target); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, err)
		}
		return fmt.Errorf("validation failed")
	}

	logger.Debug("manifests are valid")
	return nil
}
