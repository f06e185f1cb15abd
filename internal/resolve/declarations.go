// Package resolve links parsed units into the type model. It declares the
// classes each file defines, resolves type references, records index facts
// and computes the per-file results delivered to listeners.
package resolve

import (
	"slices"
	"strings"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/index"
	"github.com/jward/arbor/internal/types"
)

type declaration struct {
	class *types.ClassElement
	node  *ast.Node
	path  string // enclosing class path, "" at top level
	elem  *index.Element
}

type memberDecl struct {
	member *types.Member
	class  *types.ClassElement
	node   *ast.Node // declaring node; its first type child is the member type
	name   *ast.Node
	elem   *index.Element
}

// Declarations is the class symbol table of one analysis context. Class
// names are resolved by simple name across every declared file; when two
// files declare the same name the earlier declaration wins.
//
// Declarations is not safe for concurrent use. The engine's worker owns it.
type Declarations struct {
	universe *types.Universe
	units    map[string]*ast.Node
	byFile   map[string][]*declaration
	byName   map[string][]*declaration
	byClass  map[*types.ClassElement]*declaration
	byKey    map[string]*declaration
	byNode   map[*ast.Node]*declaration
	members  map[*types.Member]*memberDecl
	byIdent  map[*ast.Node]*memberDecl
	external map[string]*types.ClassElement
}

// NewDeclarations returns an empty table over u.
func NewDeclarations(u *types.Universe) *Declarations {
	return &Declarations{
		universe: u,
		units:    make(map[string]*ast.Node),
		byFile:   make(map[string][]*declaration),
		byName:   make(map[string][]*declaration),
		byClass:  make(map[*types.ClassElement]*declaration),
		byKey:    make(map[string]*declaration),
		byNode:   make(map[*ast.Node]*declaration),
		members:  make(map[*types.Member]*memberDecl),
		byIdent:  make(map[*ast.Node]*memberDecl),
		external: make(map[string]*types.ClassElement),
	}
}

// Universe returns the type universe classes are declared in.
func (d *Declarations) Universe() *types.Universe { return d.universe }

// Declare replaces the classes declared by file with those found in unit,
// nested classes included. Type parameters and members are declared here;
// supertypes, bounds and member types are linked by the Resolver.
func (d *Declarations) Declare(file string, unit *ast.Node) []*types.ClassElement {
	d.Remove(file)
	d.units[file] = unit

	var out []*types.ClassElement
	var walk func(n *ast.Node, path string)
	walk = func(n *ast.Node, path string) {
		for _, c := range n.Children().Nodes() {
			if c.Kind().IsTypeDeclaration() && c.NameNode() != nil {
				decl := d.declare(file, c, path)
				out = append(out, decl.class)
				walk(c, qualify(path, decl.class.Name))
				continue
			}
			walk(c, path)
		}
	}
	walk(unit, "")
	return out
}

func (d *Declarations) declare(file string, n *ast.Node, path string) *declaration {
	name := n.NameNode()
	c := d.universe.NewClass(name.Lexeme(), nil)
	c.Kind = classKindOf(n.Kind())
	c.Source = file
	c.Offset = name.Offset()
	c.Length = name.Length()
	c.Abstract = hasModifier(n, "abstract")

	if tpl := n.FirstChild(ast.KindTypeParameterList); tpl != nil {
		var ps []*types.TypeParameterType
		for _, tp := range tpl.ChildrenOf(ast.KindTypeParameter) {
			ps = append(ps, d.universe.NewTypeParameter(tp.Name(), nil))
		}
		c.SetTypeParameters(ps...)
	}

	decl := &declaration{
		class: c,
		node:  n,
		path:  path,
		elem:  index.NewElement(file, path, c.Name, c.Kind.String(), c.Offset),
	}
	d.byFile[file] = append(d.byFile[file], decl)
	d.byName[c.Name] = append(d.byName[c.Name], decl)
	d.byClass[c] = decl
	d.byKey[decl.elem.Key] = decl
	d.byNode[n] = decl
	d.declareMembers(decl)
	return decl
}

func (d *Declarations) declareMembers(decl *declaration) {
	body := decl.node.FirstChild(ast.KindClassBody)
	if body == nil {
		return
	}
	c := decl.class
	path := qualify(decl.path, c.Name)
	add := func(kind types.MemberKind, node, name *ast.Node) {
		m := &types.Member{Name: name.Lexeme(), Kind: kind, Offset: name.Offset(), Length: name.Length()}
		md := &memberDecl{
			member: m,
			class:  c,
			node:   node,
			name:   name,
			elem:   index.NewElement(c.Source, path, m.Name, kind.String(), m.Offset),
		}
		c.AddMember(m)
		d.members[m] = md
		d.byIdent[name] = md
	}
	for _, n := range body.Children().Nodes() {
		switch n.Kind() {
		case ast.KindFieldDeclaration:
			vars := n.ChildrenOf(ast.KindVariableDeclaration)
			if len(vars) == 0 {
				if id := n.NameNode(); id != nil {
					add(types.Field, n, id)
				}
			}
			for _, v := range vars {
				if id := v.NameNode(); id != nil {
					add(types.Field, n, id)
				}
			}
		case ast.KindEnumConstant:
			if id := n.NameNode(); id != nil {
				add(types.Field, n, id)
			}
		case ast.KindMethodDeclaration:
			if id := n.NameNode(); id != nil {
				add(types.Method, n, id)
			}
		case ast.KindConstructorDeclaration:
			if id := n.NameNode(); id != nil {
				add(types.Constructor, n, id)
			}
		}
	}
}

// Remove forgets every class declared by file.
func (d *Declarations) Remove(file string) {
	for _, decl := range d.byFile[file] {
		name := decl.class.Name
		d.byName[name] = slices.DeleteFunc(d.byName[name], func(o *declaration) bool { return o == decl })
		if len(d.byName[name]) == 0 {
			delete(d.byName, name)
		}
		for _, m := range decl.class.Members() {
			if md, ok := d.members[m]; ok {
				delete(d.byIdent, md.name)
			}
			delete(d.members, m)
		}
		delete(d.byClass, decl.class)
		delete(d.byKey, decl.elem.Key)
		delete(d.byNode, decl.node)
	}
	delete(d.byFile, file)
	delete(d.units, file)
}

// Unit returns the unit file was last declared from.
func (d *Declarations) Unit(file string) *ast.Node { return d.units[file] }

// Classes returns the classes declared by file in source order.
func (d *Declarations) Classes(file string) []*types.ClassElement {
	decls := d.byFile[file]
	out := make([]*types.ClassElement, len(decls))
	for i, decl := range decls {
		out[i] = decl.class
	}
	return out
}

// Lookup returns the earliest declared class with the given simple name,
// or nil.
func (d *Declarations) Lookup(name string) *types.ClassElement {
	var best *types.ClassElement
	for _, decl := range d.byName[name] {
		if best == nil || decl.class.Seq() < best.Seq() {
			best = decl.class
		}
	}
	return best
}

// Names returns every declared class name, sorted.
func (d *Declarations) Names() []string {
	out := make([]string, 0, len(d.byName))
	for name := range d.byName {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Files returns every declared file, sorted.
func (d *Declarations) Files() []string {
	out := make([]string, 0, len(d.units))
	for f := range d.units {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Element returns the index element of a declared class, or nil for the
// root and external classes.
func (d *Declarations) Element(c *types.ClassElement) *index.Element {
	if decl, ok := d.byClass[c]; ok {
		return decl.elem
	}
	return nil
}

// MemberElement returns the index element of a declared member, or nil.
func (d *Declarations) MemberElement(m *types.Member) *index.Element {
	if md, ok := d.members[m]; ok {
		return md.elem
	}
	return nil
}

// ClassByKey returns the declared class whose index element has key.
func (d *Declarations) ClassByKey(key string) *types.ClassElement {
	if decl, ok := d.byKey[key]; ok {
		return decl.class
	}
	return nil
}

// Node returns the declaration node of a declared class.
func (d *Declarations) Node(c *types.ClassElement) *ast.Node {
	if decl, ok := d.byClass[c]; ok {
		return decl.node
	}
	return nil
}

// ClassDeclaredBy returns the class declared by node n, or nil.
func (d *Declarations) ClassDeclaredBy(n *ast.Node) *types.ClassElement {
	if decl, ok := d.byNode[n]; ok {
		return decl.class
	}
	return nil
}

// Location returns the location of a declared class's name.
func (d *Declarations) Location(c *types.ClassElement) (Location, bool) {
	decl, ok := d.byClass[c]
	if !ok {
		return Location{}, false
	}
	return LocationOf(c.Source, decl.node.NameNode()), true
}

// External returns the class standing in for a library class that is not
// declared in any analyzed file. It extends the root.
func (d *Declarations) External(name string) *types.ClassElement {
	if c, ok := d.external[name]; ok {
		return c
	}
	c := d.universe.NewClass(name, nil)
	d.external[name] = c
	return c
}

// IsExternal reports whether c stands in for an undeclared library class.
func IsExternal(c *types.ClassElement) bool {
	return c.Source == "" && !c.IsRoot()
}

func (d *Declarations) memberNamedBy(id *ast.Node) *memberDecl {
	return d.byIdent[id]
}

func classKindOf(k ast.Kind) types.ClassKind {
	switch k {
	case ast.KindInterfaceDeclaration:
		return types.Interface
	case ast.KindEnumDeclaration:
		return types.Enum
	case ast.KindMixinDeclaration:
		return types.Mixin
	default:
		return types.Class
	}
}

func hasModifier(n *ast.Node, lexeme string) bool {
	for _, m := range n.ChildrenOf(ast.KindModifier) {
		if m.Lexeme() == lexeme {
			return true
		}
	}
	return false
}

func qualify(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// simpleName returns the last segment of a dotted name.
func simpleName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
