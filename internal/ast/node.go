// Package ast defines the mutable syntax tree shared by parsing, resolution
// and rewriting. Ownership flows strictly from parent to child through
// NodeList; the child-to-parent pointer is a lookup-only back-reference.
package ast

import "fmt"

// Token is a lexical token position in a source file.
type Token struct {
	Offset int
	Length int
	Line   int // 0-based
	Column int // 0-based, in bytes
	Lexeme string
}

// End returns the offset just past the token.
func (t *Token) End() int {
	return t.Offset + t.Length
}

// Node is a syntax tree node. Create nodes with New or NewLeaf so the
// child list is bound to its owner.
type Node struct {
	kind     Kind
	lexeme   string
	begin    *Token
	end      *Token
	parent   *Node
	children NodeList
}

// New creates an interior node spanning begin..end. Either token may be nil,
// in which case the range is derived from the children.
func New(kind Kind, begin, end *Token) *Node {
	n := &Node{kind: kind, begin: begin, end: end}
	n.children.owner = n
	return n
}

// NewLeaf creates a node holding a single token, such as an identifier or a
// literal.
func NewLeaf(kind Kind, tok *Token) *Node {
	n := New(kind, tok, tok)
	if tok != nil {
		n.lexeme = tok.Lexeme
	}
	return n
}

func (n *Node) Kind() Kind { return n.kind }

// Parent returns the owning node, or nil for a root or detached node.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the node's owned child list. Mutations through the list
// maintain parent back-references.
func (n *Node) Children() *NodeList { return &n.children }

// Lexeme returns the token text of a leaf node.
func (n *Node) Lexeme() string { return n.lexeme }

// SetLexeme replaces the text of a leaf node. Used by rewriting.
func (n *Node) SetLexeme(s string) { n.lexeme = s }

// BeginToken returns the first token of the node, falling back to the
// first child's when the node carries no explicit range.
func (n *Node) BeginToken() *Token {
	if n.begin != nil {
		return n.begin
	}
	return n.children.BeginToken()
}

// EndToken returns the last token of the node.
func (n *Node) EndToken() *Token {
	if n.end != nil {
		return n.end
	}
	return n.children.EndToken()
}

// Offset returns the start offset of the node, or -1 when it has no tokens.
func (n *Node) Offset() int {
	if t := n.BeginToken(); t != nil {
		return t.Offset
	}
	return -1
}

// End returns the offset just past the node, or -1 when it has no tokens.
func (n *Node) End() int {
	if t := n.EndToken(); t != nil {
		return t.End()
	}
	return -1
}

// Length returns End() - Offset(), or 0 for a node with no tokens.
func (n *Node) Length() int {
	if n.BeginToken() == nil {
		return 0
	}
	return n.End() - n.Offset()
}

// Contains reports whether offset falls within [Offset, End).
func (n *Node) Contains(offset int) bool {
	start := n.Offset()
	return start >= 0 && offset >= start && offset < n.End()
}

// Root walks parent links to the top of the tree.
func (n *Node) Root() *Node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// IsAncestorOf reports whether n is other or one of other's ancestors.
func (n *Node) IsAncestorOf(other *Node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// Name returns the declared name of a declaration node (its first
// SimpleIdentifier child), the lexeme of an identifier or type name, or ""
// when the node has no name.
func (n *Node) Name() string {
	switch n.kind {
	case KindSimpleIdentifier, KindPredefinedType:
		return n.lexeme
	case KindTypeName, KindQualifiedName:
		if n.lexeme != "" {
			return n.lexeme
		}
	}
	if id := n.NameNode(); id != nil {
		return id.lexeme
	}
	return n.lexeme
}

// NameNode returns the first direct SimpleIdentifier child.
func (n *Node) NameNode() *Node {
	return n.FirstChild(KindSimpleIdentifier)
}

// FirstChild returns the first direct child of the given kind, or nil.
func (n *Node) FirstChild(kind Kind) *Node {
	for _, c := range n.children.elements {
		if c.kind == kind {
			return c
		}
	}
	return nil
}

// ChildrenOf returns the direct children of the given kind.
func (n *Node) ChildrenOf(kind Kind) []*Node {
	var out []*Node
	for _, c := range n.children.elements {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Accept traverses the subtree rooted at n with v.
func (n *Node) Accept(v Visitor) {
	Walk(v, n)
}

func (n *Node) String() string {
	if n.lexeme != "" {
		return fmt.Sprintf("%s(%q)@%d", n.kind, n.lexeme, n.Offset())
	}
	return fmt.Sprintf("%s@%d", n.kind, n.Offset())
}

// Clone returns a deep copy of the subtree rooted at n. The copy is
// detached: its root has no parent. Tokens are copied so the clone can be
// edited independently.
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := New(n.kind, cloneToken(n.begin), cloneToken(n.end))
	if n.begin != nil && n.begin == n.end {
		c.end = c.begin
	}
	c.lexeme = n.lexeme
	if len(n.children.elements) > 0 {
		c.children.elements = make([]*Node, len(n.children.elements))
		for i, child := range n.children.elements {
			cc := Clone(child)
			cc.parent = c
			c.children.elements[i] = cc
		}
	}
	return c
}

func cloneToken(t *Token) *Token {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// NodeAt returns the innermost node under root whose range covers offset,
// or nil when offset is outside root.
func NodeAt(root *Node, offset int) *Node {
	if root == nil || !root.Contains(offset) {
		return nil
	}
	found := root
	for {
		var next *Node
		for _, c := range found.children.elements {
			if c.Contains(offset) {
				next = c
				break
			}
		}
		if next == nil {
			return found
		}
		found = next
	}
}

// EnclosingOf returns the nearest ancestor of n (excluding n) with the given
// kind.
func EnclosingOf(n *Node, kinds ...Kind) *Node {
	for p := n.parent; p != nil; p = p.parent {
		for _, k := range kinds {
			if p.kind == k {
				return p
			}
		}
	}
	return nil
}
