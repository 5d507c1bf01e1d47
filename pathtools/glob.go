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

package pathtools

import (
	"path/filepath"
	"strings"
)

// Glob expands pattern against the local disk and filters the result
// through excludes.  See FileSystem.Glob for the exclude semantics.
func Glob(pattern string, excludes []string) ([]string, error) {
	return OsFs.Glob(pattern, excludes)
}

func startGlob(fs FileSystem, pattern string, excludes []string) ([]string, error) {
	matches, err := glob(fs, pattern)
	if err != nil {
		return nil, err
	}

	return filterExcludes(matches, excludes)
}

// glob expands the wildcard segments of pattern one directory level at a
// time so that intermediate directories are only descended into when they
// exist.
func glob(fs FileSystem, pattern string) (matches []string, err error) {
	if !isWild(pattern) {
		// Without wildcards the result is just whether the file exists.
		// fs.glob is used instead of a stat for consistent results.
		return fs.glob(filepath.Clean(pattern))
	}

	dir, file := saneSplit(pattern)

	dirMatches, err := glob(fs, dir)
	if err != nil {
		return nil, err
	}

	for _, m := range dirMatches {
		if isDir, _ := fs.IsDir(m); isDir {
			newMatches, err := fs.glob(filepath.Join(m, file))
			if err != nil {
				return nil, err
			}
			matches = append(matches, newMatches...)
		}
	}

	return matches, nil
}

// filterExcludes drops every match for which any exclude pattern matches
// the full path.
func filterExcludes(matches []string, excludes []string) ([]string, error) {
	if len(excludes) == 0 {
		return matches, nil
	}

	var ret []string
matchLoop:
	for _, m := range matches {
		for _, e := range excludes {
			exclude, err := filepath.Match(e, m)
			if err != nil {
				return nil, err
			}
			if exclude {
				continue matchLoop
			}
		}
		ret = append(ret, m)
	}

	return ret, nil
}

// Similar to filepath.Split, but returns "." if dir is empty and trims the
// trailing slash if dir is not "/".
func saneSplit(path string) (dir, file string) {
	dir, file = filepath.Split(path)
	switch dir {
	case "":
		dir = "."
	case "/":
		// Nothing
	default:
		dir = dir[:len(dir)-1]
	}
	return dir, file
}

func isWild(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// HasTestSuffix reports whether path names a Go test file.  Manifest
// source globs are expected to exclude these.
func HasTestSuffix(path string) bool {
	return strings.HasSuffix(path, "_test.go")
}
