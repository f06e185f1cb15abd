package ast

import (
	"fmt"
	"slices"
)

// RangeError is the panic value raised for out-of-range child list access.
// It is a programmer error, not a recoverable condition.
type RangeError struct {
	Index int
	Size  int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("ast: index %d out of range (size %d)", e.Index, e.Size)
}

// NodeList is an ordered list of nodes owned by a single node. Every element
// has its parent set to the owner; an element is never reachable from two
// lists at once.
type NodeList struct {
	owner    *Node
	elements []*Node
}

// Owner returns the node that owns the list.
func (l *NodeList) Owner() *Node { return l.owner }

func (l *NodeList) Len() int { return len(l.elements) }

// At returns the element at index. Panics with *RangeError when index is
// outside [0, Len).
func (l *NodeList) At(index int) *Node {
	l.checkIndex(index, len(l.elements))
	return l.elements[index]
}

// Nodes returns a copy of the elements.
func (l *NodeList) Nodes() []*Node {
	out := make([]*Node, len(l.elements))
	copy(out, l.elements)
	return out
}

// IndexOf returns the position of n in the list, or -1.
func (l *NodeList) IndexOf(n *Node) int {
	for i, e := range l.elements {
		if e == n {
			return i
		}
	}
	return -1
}

// Insert places n at index, shifting later elements right. index must be in
// [0, Len]. A node owned by another list is detached from it first.
func (l *NodeList) Insert(index int, n *Node) {
	l.checkIndex(index, len(l.elements)+1)
	if n.parent == l.owner {
		if old := l.IndexOf(n); old >= 0 {
			l.elements = slices.Delete(l.elements, old, old+1)
			if old < index {
				index--
			}
		}
	}
	l.adopt(n)
	l.elements = append(l.elements, nil)
	copy(l.elements[index+1:], l.elements[index:])
	l.elements[index] = n
}

// Add appends n to the list.
func (l *NodeList) Add(n *Node) {
	l.Insert(len(l.elements), n)
}

// AddAll appends nodes in order.
func (l *NodeList) AddAll(nodes ...*Node) {
	for _, n := range nodes {
		l.Add(n)
	}
}

// RemoveAt removes and returns the element at index. The returned node is
// detached and may be inserted elsewhere.
func (l *NodeList) RemoveAt(index int) *Node {
	l.checkIndex(index, len(l.elements))
	removed := l.elements[index]
	l.elements = slices.Delete(l.elements, index, index+1)
	removed.parent = nil
	return removed
}

// ReplaceAt puts n at index and returns the node it replaced. The replaced
// node is detached; where it goes next is up to the caller.
func (l *NodeList) ReplaceAt(index int, n *Node) *Node {
	l.checkIndex(index, len(l.elements))
	old := l.elements[index]
	if old == n {
		return old
	}
	if n.parent == l.owner {
		if at := l.IndexOf(n); at >= 0 {
			panic(fmt.Errorf("ast: ReplaceAt: %s is already at index %d of the same list", n, at))
		}
	}
	l.adopt(n)
	l.elements[index] = n
	old.parent = nil
	return old
}

// Accept traverses every element in insertion order.
func (l *NodeList) Accept(v Visitor) {
	for _, e := range l.elements {
		Walk(v, e)
	}
}

// BeginToken returns the first element's first token, or nil for an empty
// list.
func (l *NodeList) BeginToken() *Token {
	if len(l.elements) == 0 {
		return nil
	}
	return l.elements[0].BeginToken()
}

// EndToken returns the last element's last token, or nil for an empty list.
func (l *NodeList) EndToken() *Token {
	if len(l.elements) == 0 {
		return nil
	}
	return l.elements[len(l.elements)-1].EndToken()
}

// adopt makes the owner the parent of n, detaching n from any other list.
func (l *NodeList) adopt(n *Node) {
	if n == nil {
		panic("ast: cannot insert a nil node")
	}
	if n.IsAncestorOf(l.owner) {
		panic(fmt.Errorf("ast: inserting %s under %s would create a cycle", n, l.owner))
	}
	if p := n.parent; p != nil && p != l.owner {
		if at := p.children.IndexOf(n); at >= 0 {
			p.children.elements = slices.Delete(p.children.elements, at, at+1)
		}
	}
	n.parent = l.owner
}

func (l *NodeList) checkIndex(index, limit int) {
	if index < 0 || index >= limit {
		panic(&RangeError{Index: index, Size: len(l.elements)})
	}
}
