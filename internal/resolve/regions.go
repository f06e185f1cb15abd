package resolve

import (
	"path/filepath"
	"slices"

	"github.com/jward/arbor/internal/ast"
)

var literalHighlights = map[ast.Kind]HighlightType{
	ast.KindStringLiteral:   HighlightLiteralString,
	ast.KindTemplateLiteral: HighlightLiteralString,
	ast.KindIntegerLiteral:  HighlightLiteralInteger,
	ast.KindDoubleLiteral:   HighlightLiteralDouble,
	ast.KindBooleanLiteral:  HighlightLiteralBoolean,
	ast.KindNullLiteral:     HighlightKeyword,
	ast.KindThisExpression:  HighlightKeyword,
	ast.KindSuperExpression: HighlightKeyword,
	ast.KindPredefinedType:  HighlightKeyword,
	ast.KindModifier:        HighlightBuiltIn,
	ast.KindAnnotation:      HighlightAnnotation,
	ast.KindComment:         HighlightComment,
}

var declarationHighlights = map[ast.Kind]HighlightType{
	ast.KindClassDeclaration:       HighlightClass,
	ast.KindInterfaceDeclaration:   HighlightClass,
	ast.KindEnumDeclaration:        HighlightClass,
	ast.KindMixinDeclaration:       HighlightClass,
	ast.KindTypeParameter:          HighlightTypeParameter,
	ast.KindMethodDeclaration:      HighlightMethodDecl,
	ast.KindConstructorDeclaration: HighlightConstructor,
	ast.KindFunctionDeclaration:    HighlightFunctionDecl,
	ast.KindFormalParameter:        HighlightParameter,
	ast.KindEnumConstant:           HighlightField,
}

func (f *fileResolver) highlights() []HighlightRegion {
	var out []HighlightRegion
	add := func(t HighlightType, offset, length int) {
		if offset >= 0 {
			out = append(out, HighlightRegion{Type: t, Offset: offset, Length: length})
		}
	}
	addNode := func(t HighlightType, n *ast.Node) {
		if n != nil {
			add(t, n.Offset(), n.Length())
		}
	}

	ast.Inspect(f.unit, func(n *ast.Node) bool {
		if n == nil {
			return false
		}
		if t, ok := literalHighlights[n.Kind()]; ok {
			addNode(t, n)
			return true
		}
		if t, ok := declarationHighlights[n.Kind()]; ok {
			addNode(t, n.NameNode())
			return true
		}
		switch n.Kind() {
		case ast.KindPackageDirective, ast.KindImportDirective:
			addNode(HighlightDirective, n)
			return false
		case ast.KindTypeName:
			b, ok := f.bindings[n]
			t := HighlightTypeNameDynamic
			switch {
			case ok && (b.param != nil || b.local):
				t = HighlightTypeParameter
			case ok:
				t = HighlightClass
			}
			add(t, n.Offset(), len(n.Lexeme()))
		case ast.KindFieldDeclaration:
			if n.FirstChild(ast.KindVariableDeclaration) == nil {
				addNode(HighlightField, n.NameNode())
			}
		case ast.KindVariableDeclaration:
			t := HighlightLocalVariableDecl
			if p := n.Parent(); p != nil && p.Kind() == ast.KindFieldDeclaration {
				t = HighlightField
			}
			addNode(t, n.NameNode())
		}
		return true
	})

	slices.SortStableFunc(out, func(a, b HighlightRegion) int { return a.Offset - b.Offset })
	return out
}

var outlineKinds = map[ast.Kind]string{
	ast.KindClassDeclaration:       "CLASS",
	ast.KindInterfaceDeclaration:   "INTERFACE",
	ast.KindEnumDeclaration:        "ENUM",
	ast.KindMixinDeclaration:       "MIXIN",
	ast.KindEnumConstant:           "ENUM_CONSTANT",
	ast.KindMethodDeclaration:      "METHOD",
	ast.KindConstructorDeclaration: "CONSTRUCTOR",
	ast.KindFunctionDeclaration:    "FUNCTION",
}

func (f *fileResolver) outline() *Outline {
	root := &Outline{
		Kind:     "COMPILATION_UNIT",
		Name:     filepath.Base(f.file),
		Offset:   0,
		Length:   max(f.unit.End(), 0),
		Children: outlineChildren(f.unit),
	}
	return root
}

func outlineChildren(n *ast.Node) []*Outline {
	var out []*Outline
	for _, c := range n.Children().Nodes() {
		switch {
		case c.Kind() == ast.KindFieldDeclaration:
			vars := c.ChildrenOf(ast.KindVariableDeclaration)
			if len(vars) == 0 {
				if item := outlineItem("FIELD", c); item != nil {
					out = append(out, item)
				}
			}
			for _, v := range vars {
				if item := outlineItem("FIELD", v); item != nil {
					out = append(out, item)
				}
			}
		case outlineKinds[c.Kind()] != "":
			item := outlineItem(outlineKinds[c.Kind()], c)
			if item == nil {
				continue
			}
			if c.Kind().IsTypeDeclaration() {
				if body := c.FirstChild(ast.KindClassBody); body != nil {
					item.Children = outlineChildren(body)
				}
			}
			out = append(out, item)
		case c.Kind() == ast.KindSyntaxError:
			out = append(out, outlineChildren(c)...)
		}
	}
	return out
}

func outlineItem(kind string, n *ast.Node) *Outline {
	id := n.NameNode()
	if id == nil {
		return nil
	}
	return &Outline{Kind: kind, Name: id.Lexeme(), Offset: id.Offset(), Length: id.Length()}
}

func (f *fileResolver) navigation() []NavigationRegion {
	var out []NavigationRegion
	ast.Inspect(f.unit, func(n *ast.Node) bool {
		if n == nil {
			return false
		}
		if n.Kind() != ast.KindTypeName {
			return true
		}
		if b, ok := f.bindings[n]; ok && b.class != nil {
			if loc, ok := f.decls.Location(b.class); ok {
				out = append(out, NavigationRegion{
					Offset:  n.Offset(),
					Length:  len(n.Lexeme()),
					Targets: []Location{loc},
				})
			}
		}
		return true
	})
	return out
}
