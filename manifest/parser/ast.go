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
	"fmt"
	"strings"
	"text/scanner"
)

// A Definition is a top-level element of a manifest file, either an
// Assignment or a Rule.
type Definition interface {
	String() string
	definitionTag()
}

// An Assignment binds a value to a variable name.
type Assignment struct {
	Name       Ident
	Value      Value
	Pos        scanner.Position
	Assigner   string
	Referenced bool
}

func (a *Assignment) String() string {
	return fmt.Sprintf("%s@%d:%s %s %s", a.Name, a.Pos.Offset, a.Pos, a.Assigner, a.Value)
}

func (a *Assignment) definitionTag() {}

// A Rule is a target declaration: a rule kind and a property map.
type Rule struct {
	Kind       Ident
	Properties []*Property
	LbracePos  scanner.Position
	RbracePos  scanner.Position
}

func (r *Rule) String() string {
	propertyStrings := make([]string, len(r.Properties))
	for i, property := range r.Properties {
		propertyStrings[i] = property.String()
	}
	return fmt.Sprintf("%s@%d:%s-%d:%s{%s}", r.Kind,
		r.LbracePos.Offset, r.LbracePos,
		r.RbracePos.Offset, r.RbracePos,
		strings.Join(propertyStrings, ", "))
}

func (r *Rule) definitionTag() {}

// Property returns the named property of the rule, or nil if it is not
// present.
func (r *Rule) Property(name string) *Property {
	for _, p := range r.Properties {
		if p.Name.Name == name {
			return p
		}
	}
	return nil
}

type Property struct {
	Name  Ident
	Value Value
	Pos   scanner.Position
}

func (p *Property) String() string {
	return fmt.Sprintf("%s@%d:%s: %s", p.Name, p.Pos.Offset, p.Pos, p.Value)
}

type Ident struct {
	Name string
	Pos  scanner.Position
}

func (i Ident) String() string {
	return fmt.Sprintf("%s@%d:%s", i.Name, i.Pos.Offset, i.Pos)
}

type ValueType int

const (
	Bool ValueType = iota
	String
	List
	Map
)

func (t ValueType) String() string {
	switch t {
	case Bool:
		return "bool"
	case String:
		return "string"
	case List:
		return "list"
	case Map:
		return "map"
	default:
		panic(fmt.Errorf("unknown value type: %d", int(t)))
	}
}

// A Value is a single evaluated manifest value.  When the value came from
// a variable reference or a "+" expression the Variable and Expression
// fields record its origin for printing.
type Value struct {
	Type        ValueType
	BoolValue   bool
	StringValue string
	ListValue   []Value
	MapValue    []*Property
	Expression  *Expression
	Variable    string
	Pos         scanner.Position
	EndPos      scanner.Position
}

func (v Value) String() string {
	var s string
	if v.Variable != "" {
		s += v.Variable + " = "
	}
	if v.Expression != nil {
		s += v.Expression.String()
	}
	switch v.Type {
	case Bool:
		s += fmt.Sprintf("%t@%d:%s", v.BoolValue, v.Pos.Offset, v.Pos)
	case String:
		s += fmt.Sprintf("%q@%d:%s", v.StringValue, v.Pos.Offset, v.Pos)
	case List:
		valueStrings := make([]string, len(v.ListValue))
		for i, value := range v.ListValue {
			valueStrings[i] = value.String()
		}
		s += fmt.Sprintf("@%d:%s-%d:%s[%s]", v.Pos.Offset, v.Pos, v.EndPos.Offset, v.EndPos,
			strings.Join(valueStrings, ", "))
	case Map:
		propertyStrings := make([]string, len(v.MapValue))
		for i, property := range v.MapValue {
			propertyStrings[i] = property.String()
		}
		s += fmt.Sprintf("@%d:%s-%d:%s{%s}", v.Pos.Offset, v.Pos, v.EndPos.Offset, v.EndPos,
			strings.Join(propertyStrings, ", "))
	default:
		panic(fmt.Errorf("bad property type: %d", int(v.Type)))
	}

	return s
}

type Expression struct {
	Args     [2]Value
	Operator rune
	Pos      scanner.Position
}

func (e *Expression) String() string {
	return fmt.Sprintf("(%s %c %s)@%d:%s", e.Args[0].String(), e.Operator, e.Args[1].String(),
		e.Pos.Offset, e.Pos)
}

// A Comment is a single // or /* */ comment and its position.
type Comment struct {
	Comment string
	Pos     scanner.Position
}

// Text returns the comment with the // or /* and */ markers stripped.
func (c Comment) Text() string {
	if strings.HasPrefix(c.Comment, "/*") {
		return strings.TrimSuffix(strings.TrimPrefix(c.Comment, "/*"), "*/")
	}
	return strings.TrimPrefix(c.Comment, "//")
}
