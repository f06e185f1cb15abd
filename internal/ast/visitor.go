package ast

import "fmt"

// A Visitor's Visit method is invoked for each node encountered by Walk.
// If the result visitor w is not nil, Walk visits each of the children of
// node with w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(n *Node) (w Visitor)
}

// Walk traverses the tree rooted at n in depth-first order. Children are
// visited in list order.
func Walk(v Visitor, n *Node) {
	if v = v.Visit(n); v == nil {
		return
	}
	for _, c := range n.children.elements {
		Walk(v, c)
	}
	v.Visit(nil)
}

type inspector func(*Node) bool

func (f inspector) Visit(n *Node) Visitor {
	if f(n) {
		return f
	}
	return nil
}

// Inspect traverses the tree rooted at n, calling f for each node and then
// f(nil) after a node's children. Children are skipped when f returns false.
func Inspect(n *Node, f func(*Node) bool) {
	Walk(inspector(f), n)
}

// Dispatch is a Visitor that routes each node to the handler registered for
// its kind. A handler returns true to descend into the node's children.
// Nodes with no handler fall through to Default, or are descended into when
// Default is nil.
type Dispatch struct {
	handlers [kindCount]func(*Node) bool
	Default  func(*Node) bool
}

// On registers fn for kind. Each kind takes exactly one handler;
// registering a second one panics.
func (d *Dispatch) On(kind Kind, fn func(*Node) bool) *Dispatch {
	if kind >= kindCount {
		panic(fmt.Sprintf("ast: Dispatch.On: invalid kind %s", kind))
	}
	if d.handlers[kind] != nil {
		panic(fmt.Sprintf("ast: Dispatch.On: duplicate handler for %s", kind))
	}
	d.handlers[kind] = fn
	return d
}

// Handles reports whether a handler is registered for kind.
func (d *Dispatch) Handles(kind Kind) bool {
	return kind < kindCount && d.handlers[kind] != nil
}

func (d *Dispatch) Visit(n *Node) Visitor {
	if n == nil {
		return nil
	}
	h := d.handlers[n.kind]
	if h == nil {
		h = d.Default
	}
	if h == nil || h(n) {
		return d
	}
	return nil
}
