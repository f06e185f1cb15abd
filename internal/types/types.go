// Package types models class-like declarations and the interface types that
// refer to them, and answers hierarchy questions over them: path length to
// the root, superinterface sets, least upper bounds, subtyping and type
// argument substitution.
package types

import (
	"errors"
	"strconv"
	"strings"
)

// ErrCycle is returned when a class reaches itself through its supertypes.
var ErrCycle = errors.New("cycle in type hierarchy")

// Type is any type the model can represent. Types created through the same
// Universe are interned, so two identical types are the same pointer.
type Type interface {
	String() string
	// key is a stable identity string used for interning and tie-breaking.
	key() string
}

type specialType struct {
	name string
}

func (s *specialType) String() string { return s.name }
func (s *specialType) key() string    { return "#" + s.name }

var (
	// Dynamic is the unknown type. It is both a subtype and a supertype of
	// every type.
	Dynamic Type = &specialType{name: "dynamic"}

	// Bottom is a subtype of every type.
	Bottom Type = &specialType{name: "bottom"}
)

// InterfaceType is a reference to a class element plus its type arguments.
// A raw reference has no arguments.
type InterfaceType struct {
	element *ClassElement
	args    []Type
	k       string
}

func (t *InterfaceType) Element() *ClassElement { return t.element }

// TypeArguments returns a copy of the type arguments.
func (t *InterfaceType) TypeArguments() []Type {
	out := make([]Type, len(t.args))
	copy(out, t.args)
	return out
}

func (t *InterfaceType) Name() string { return t.element.Name }

func (t *InterfaceType) String() string {
	if len(t.args) == 0 {
		return t.element.Name
	}
	parts := make([]string, len(t.args))
	for i, a := range t.args {
		parts[i] = a.String()
	}
	return t.element.Name + "<" + strings.Join(parts, ", ") + ">"
}

func (t *InterfaceType) key() string { return t.k }

func interfaceKey(c *ClassElement, args []Type) string {
	if len(args) == 0 {
		return "c" + strconv.Itoa(c.seq)
	}
	var b strings.Builder
	b.WriteString("c")
	b.WriteString(strconv.Itoa(c.seq))
	b.WriteByte('<')
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(a.key())
	}
	b.WriteByte('>')
	return b.String()
}

// TypeParameterType is a reference to a declared type parameter. Identity is
// by declaration: two parameters named T on different classes are distinct.
type TypeParameterType struct {
	name  string
	seq   int
	bound Type
}

func (p *TypeParameterType) Name() string { return p.name }

// Bound returns the declared upper bound, or nil when unbounded.
func (p *TypeParameterType) Bound() Type { return p.bound }

// SetBound sets the upper bound once the bound's type has been resolved.
func (p *TypeParameterType) SetBound(t Type) { p.bound = t }

func (p *TypeParameterType) String() string { return p.name }
func (p *TypeParameterType) key() string    { return "p" + strconv.Itoa(p.seq) }

// Identical reports whether a and b denote the same type: the same class
// element with pairwise identical arguments, the same parameter, or the same
// special type.
func Identical(a, b Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.key() == b.key()
}
