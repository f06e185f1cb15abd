package parse

import (
	"strings"

	"github.com/jward/arbor/internal/ast"
	sitter "github.com/smacker/go-tree-sitter"
)

// tsModifiers are the keyword tokens kept as Modifier leaves in
// TypeScript declarations.
var tsModifiers = map[string]bool{
	"abstract": true,
	"async":    true,
	"declare":  true,
	"override": true,
	"readonly": true,
	"static":   true,
}

// converter turns a tree-sitter tree into an ast tree.
type converter struct {
	g    *grammar
	lang string
	src  []byte
}

func (c *converter) convert(root *sitter.Node) *ast.Node {
	unit := c.node(ast.KindCompilationUnit, root)
	c.children(unit, root, false)
	return unit
}

// visit attaches the ast form of n under parent. field is n's field name in
// its tree-sitter parent; inType marks positions where a bare identifier
// names a type.
func (c *converter) visit(parent *ast.Node, n *sitter.Node, field string, inType bool) {
	if n.IsMissing() {
		// A missing node is zero width; its type names the expected token.
		missing := c.leaf(ast.KindSyntaxError, n)
		missing.SetLexeme(n.Type())
		parent.Children().Add(missing)
		return
	}
	typ := n.Type()
	if typ == "ERROR" {
		errNode := c.node(ast.KindSyntaxError, n)
		parent.Children().Add(errNode)
		c.children(errNode, n, inType)
		return
	}
	if !n.IsNamed() {
		if c.lang == "typescript" && tsModifiers[typ] {
			parent.Children().Add(c.leaf(ast.KindModifier, n))
		}
		return
	}
	if c.special(parent, n, typ) {
		return
	}
	if k, ok := c.g.leaves[typ]; ok {
		parent.Children().Add(c.leaf(c.leafKind(k, n, typ, field, inType), n))
		return
	}
	if k, ok := c.g.nodes[typ]; ok {
		if k == ast.KindMethodDeclaration && c.lang == "typescript" {
			if name := n.ChildByFieldName("name"); name != nil && name.Content(c.src) == "constructor" {
				k = ast.KindConstructorDeclaration
			}
		}
		node := c.node(k, n)
		parent.Children().Add(node)
		c.children(node, n, false)
		if k == ast.KindExtendsClause {
			nestTypeArguments(node)
		}
		return
	}
	if inType && typ == "member_expression" {
		parent.Children().Add(c.leaf(ast.KindTypeName, n))
		return
	}
	c.children(parent, n, inType)
}

func (c *converter) children(parent *ast.Node, n *sitter.Node, inType bool) {
	typ := n.Type()
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		field := n.FieldNameForChild(i)
		childInType := inType ||
			(typ == "extends_clause" && field == "value") ||
			(typ == "new_expression" && field == "constructor")
		c.visit(parent, child, field, childInType)
	}
}

// nestTypeArguments moves an argument list that follows a type name in a
// clause under that name, matching the shape of a generic type.
func nestTypeArguments(clause *ast.Node) {
	var prev *ast.Node
	for _, n := range clause.Children().Nodes() {
		if n.Kind() == ast.KindTypeArgumentList && prev != nil && prev.Kind() == ast.KindTypeName {
			prev.Children().Add(n)
		}
		prev = n
	}
}

// leafKind adjusts the table kind for identifiers whose meaning depends on
// position.
func (c *converter) leafKind(k ast.Kind, n *sitter.Node, typ, field string, inType bool) ast.Kind {
	switch {
	case field == "name" && (typ == "type_identifier" || typ == "identifier" || typ == "property_identifier"):
		return ast.KindSimpleIdentifier
	case typ == "type_identifier" && n.Parent() != nil && n.Parent().Type() == "type_parameter":
		return ast.KindSimpleIdentifier
	case inType && typ == "identifier":
		return ast.KindTypeName
	case typ == "number":
		text := n.Content(c.src)
		if !strings.HasPrefix(text, "0x") && !strings.HasPrefix(text, "0X") && strings.ContainsAny(text, ".eE") {
			return ast.KindDoubleLiteral
		}
	}
	return k
}

// special handles node types whose shape differs from a plain table entry.
func (c *converter) special(parent *ast.Node, n *sitter.Node, typ string) bool {
	switch typ {
	case "generic_type":
		// A parameterized type becomes one TypeName carrying the base name
		// with its argument list as children.
		tn := c.node(ast.KindTypeName, n)
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "type_identifier", "scoped_type_identifier", "nested_type_identifier":
				tn.SetLexeme(child.Content(c.src))
			case "type_arguments":
				c.visit(tn, child, "", false)
			}
		}
		parent.Children().Add(tn)
		return true

	case "modifiers":
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.IsNamed() {
				c.visit(parent, child, "", false)
				continue
			}
			parent.Children().Add(c.leaf(ast.KindModifier, child))
		}
		return true

	case "package_declaration", "import_declaration":
		kind := ast.KindPackageDirective
		if typ == "import_declaration" {
			kind = ast.KindImportDirective
		}
		dir := c.node(kind, n)
		var name *sitter.Node
		wildcard := false
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			switch child.Type() {
			case "identifier", "scoped_identifier":
				name = child
			case "asterisk":
				wildcard = true
			case "static":
				dir.Children().Add(c.leaf(ast.KindModifier, child))
			}
		}
		if name != nil {
			q := c.leaf(ast.KindQualifiedName, name)
			if wildcard {
				q.SetLexeme(q.Lexeme() + ".*")
			}
			dir.Children().Add(q)
		}
		parent.Children().Add(dir)
		return true

	case "marker_annotation", "annotation", "decorator":
		a := c.leaf(ast.KindAnnotation, n)
		if name := n.ChildByFieldName("name"); name != nil {
			a.SetLexeme(name.Content(c.src))
		} else {
			a.SetLexeme(strings.TrimPrefix(n.Content(c.src), "@"))
		}
		parent.Children().Add(a)
		return true
	}
	return false
}

func (c *converter) token(n *sitter.Node) *ast.Token {
	start, end := int(n.StartByte()), int(n.EndByte())
	p := n.StartPoint()
	return &ast.Token{
		Offset: start,
		Length: end - start,
		Line:   int(p.Row),
		Column: int(p.Column),
		Lexeme: string(c.src[start:end]),
	}
}

func (c *converter) leaf(kind ast.Kind, n *sitter.Node) *ast.Node {
	return ast.NewLeaf(kind, c.token(n))
}

// node creates an interior node whose range runs from the first to the last
// token under n.
func (c *converter) node(kind ast.Kind, n *sitter.Node) *ast.Node {
	first, last := n, n
	for first.ChildCount() > 0 {
		first = first.Child(0)
	}
	for last.ChildCount() > 0 {
		last = last.Child(int(last.ChildCount()) - 1)
	}
	begin := c.token(first)
	end := begin
	if last != first {
		end = c.token(last)
	}
	return ast.New(kind, begin, end)
}
