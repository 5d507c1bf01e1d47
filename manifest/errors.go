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
)

// A ManifestError describes a problem that was encountered that is
// related to a particular location in a manifest file.
type ManifestError struct {
	Err error            // the error that occurred
	Pos scanner.Position // the relevant manifest file location
}

// A TargetError describes a problem that was encountered that is related
// to a particular target in a manifest file.
type TargetError struct {
	ManifestError
	target *Target
}

// A PropertyError describes a problem that was encountered that is
// related to a particular property of a target.
type PropertyError struct {
	TargetError
	property string
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Err)
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.target.Name, e.Err)
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("%s: %s: %s: %s", e.Pos, e.target.Name, e.property, e.Err)
}

func targetErrorf(target *Target, format string, args ...interface{}) error {
	return &TargetError{
		ManifestError: ManifestError{
			Err: fmt.Errorf(format, args...),
			Pos: target.Pos,
		},
		target: target,
	}
}

func propertyErrorf(target *Target, property string, pos scanner.Position,
	format string, args ...interface{}) error {

	return &PropertyError{
		TargetError: TargetError{
			ManifestError: ManifestError{
				Err: fmt.Errorf(format, args...),
				Pos: pos,
			},
			target: target,
		},
		property: property,
	}
}
