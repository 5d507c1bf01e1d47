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
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudendpoints/espstart/manifest/parser"
)

var (
	fmtList      bool
	fmtOverwrite bool
)

var fmtCmd = &cobra.Command{
	Use:   "fmt <manifest>...",
	Short: "Format build manifests canonically",
	Long: `Reparses the given build manifests and prints them in canonical form.

By default the formatted manifest is written to stdout.  With -w the
source file is overwritten; with -l only the names of files whose
formatting differs are printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFmt,
}

func init() {
	fmtCmd.Flags().BoolVarP(&fmtList, "list", "l", false,
		"list files whose formatting differs")
	fmtCmd.Flags().BoolVarP(&fmtOverwrite, "write", "w", false,
		"write the result back to the source file")
	rootCmd.AddCommand(fmtCmd)
}

func formatFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	file, errs := parser.Parse(path, bytes.NewReader(src), parser.NewScope(nil))
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, err)
		}
		return fmt.Errorf("%s: parse failed", path)
	}

	res, err := parser.Print(file)
	if err != nil {
		return err
	}

	if !bytes.Equal(src, res) {
		if fmtList {
			fmt.Println(path)
		}
		if fmtOverwrite {
			if err := os.WriteFile(path, res, 0644); err != nil {
				return err
			}
		}
	}

	if !fmtList && !fmtOverwrite {
		_, err = os.Stdout.Write(res)
	}
	return err
}

func runFmt(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		if err := formatFile(path); err != nil {
			return err
		}
	}
	return nil
}
