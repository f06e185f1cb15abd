package resolve

import (
	"fmt"
	"strings"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/index"
	"github.com/jward/arbor/internal/types"
)

// Hover describes the declaration named at an offset.
type Hover struct {
	Offset      int       `json:"offset"`
	Length      int       `json:"length"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Declaration *Location `json:"declaration,omitempty"`
	Depth       int       `json:"depth,omitempty"` // longest path to the root, classes only
}

// target is what an offset in a resolved file names.
type target struct {
	node   *ast.Node
	class  *types.ClassElement
	member *memberDecl
}

func (r *Resolver) targetAt(file string, offset int) (target, bool) {
	unit := r.decls.Unit(file)
	n := ast.NodeAt(unit, offset)
	if n == nil {
		return target{}, false
	}
	if n.Kind() == ast.KindSimpleIdentifier {
		if md := r.decls.memberNamedBy(n); md != nil {
			return target{node: n, member: md}, true
		}
		if p := n.Parent(); p != nil && p.NameNode() == n {
			if c := r.decls.ClassDeclaredBy(p); c != nil {
				return target{node: n, class: c}, true
			}
		}
		return target{}, false
	}
	for ; n != nil; n = n.Parent() {
		if n.Kind() != ast.KindTypeName {
			continue
		}
		// The name part of a parameterized type precedes its arguments.
		if offset >= n.Offset()+len(n.Lexeme()) {
			return target{}, false
		}
		if b, ok := r.bound[file][n]; ok && b.class != nil {
			return target{node: n, class: b.class}, true
		}
		return target{}, false
	}
	return target{}, false
}

// ClassAt returns the class named or declared at offset in file, or nil.
func (r *Resolver) ClassAt(file string, offset int) *types.ClassElement {
	t, ok := r.targetAt(file, offset)
	if !ok || t.class == nil {
		return nil
	}
	return t.class
}

// ElementAt returns the index element of the declaration named at offset in
// file, or nil when the offset names nothing declared in the project.
func (r *Resolver) ElementAt(file string, offset int) *index.Element {
	t, ok := r.targetAt(file, offset)
	switch {
	case !ok:
		return nil
	case t.member != nil:
		return t.member.elem
	default:
		return r.decls.Element(t.class)
	}
}

// Hover describes the declaration named at offset in file, or returns nil.
func (r *Resolver) Hover(file string, offset int) *Hover {
	t, ok := r.targetAt(file, offset)
	if !ok {
		return nil
	}
	h := &Hover{Offset: t.node.Offset(), Length: t.node.Length()}
	if t.node.Kind() == ast.KindTypeName {
		h.Length = len(t.node.Lexeme())
	}
	if md := t.member; md != nil {
		h.Kind = md.member.Kind.String()
		h.Name = md.member.Name
		h.Description = describeMember(md)
		loc := LocationOf(md.class.Source, md.name)
		h.Declaration = &loc
		return h
	}
	c := t.class
	h.Kind = c.Kind.String()
	h.Name = c.Name
	h.Description = Describe(c)
	if loc, ok := r.decls.Location(c); ok {
		h.Declaration = &loc
	}
	if d, err := r.decls.Universe().LongestPathToRoot(c.Type()); err == nil {
		h.Depth = d
	}
	return h
}

// Describe renders a class header such as
// "class B<T> extends A<T> implements I".
func Describe(c *types.ClassElement) string {
	var b strings.Builder
	b.WriteString(c.Kind.String())
	b.WriteByte(' ')
	b.WriteString(c.Type().String())
	var extends, implements []string
	if st := c.Supertype(); st != nil && !st.Element().IsRoot() {
		extends = append(extends, st.String())
	}
	for _, t := range c.Interfaces() {
		if c.Kind == types.Interface {
			extends = append(extends, t.String())
		} else {
			implements = append(implements, t.String())
		}
	}
	if len(extends) > 0 {
		b.WriteString(" extends ")
		b.WriteString(strings.Join(extends, ", "))
	}
	if len(c.Mixins()) > 0 {
		names := make([]string, len(c.Mixins()))
		for i, t := range c.Mixins() {
			names[i] = t.String()
		}
		b.WriteString(" with ")
		b.WriteString(strings.Join(names, ", "))
	}
	if len(implements) > 0 {
		b.WriteString(" implements ")
		b.WriteString(strings.Join(implements, ", "))
	}
	return b.String()
}

func describeMember(md *memberDecl) string {
	m := md.member
	s := fmt.Sprintf("%s %s.%s", m.Kind, md.class.Name, m.Name)
	if m.Type != nil {
		s += ": " + m.Type.String()
	}
	return s
}
