package resolve

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/index"
	"github.com/jward/arbor/internal/parse"
	"github.com/jward/arbor/internal/types"
)

// Resolver links declared classes and records what each file refers to.
// Like Declarations it is owned by a single goroutine.
type Resolver struct {
	decls *Declarations
	index *index.Index
	bound map[string]map[*ast.Node]binding
}

// NewResolver returns a resolver recording facts into idx.
func NewResolver(decls *Declarations, idx *index.Index) *Resolver {
	return &Resolver{
		decls: decls,
		index: idx,
		bound: make(map[string]map[*ast.Node]binding),
	}
}

// Declarations returns the symbol table the resolver links against.
func (r *Resolver) Declarations() *Declarations { return r.decls }

// Resolve declares unit as file when it is not the unit file was last
// declared from, then resolves it.
func (r *Resolver) Resolve(file string, unit *ast.Node) *Result {
	if r.decls.Unit(file) != unit {
		r.decls.Declare(file, unit)
	}
	return r.ResolveAll(file)[0]
}

// ResolveAll resolves already declared files as one batch. Every file's
// supertypes are linked before any hierarchy is inspected, so results do
// not depend on the order of files. Facts previously recorded for the
// files are replaced. Files that are not declared are skipped.
func (r *Resolver) ResolveAll(files ...string) []*Result {
	var frs []*fileResolver
	for _, file := range files {
		unit := r.decls.Unit(file)
		if unit == nil {
			continue
		}
		frs = append(frs, r.newFileResolver(file, unit))
	}
	// Old facts go before any new ones are recorded, or a later file in the
	// batch would drop what an earlier one recorded about its elements.
	for _, fr := range frs {
		r.index.RemoveSource(fr.file)
	}
	for _, fr := range frs {
		fr.link()
	}
	out := make([]*Result, len(frs))
	var cyclic []*types.ClassElement
	for _, fr := range frs {
		cyclic = append(cyclic, fr.checkCycles()...)
	}
	// Every cycle is reported before any is broken.
	for _, c := range cyclic {
		c.SetSupertype(nil)
		c.SetInterfaces()
		c.SetMixins()
	}
	for i, fr := range frs {
		fr.finish()
		r.bound[fr.file] = fr.bindings
		out[i] = fr.res
	}
	return out
}

// Forget drops everything known about file: its declarations, its index
// facts and its resolved names.
func (r *Resolver) Forget(file string) {
	r.decls.Remove(file)
	r.index.RemoveSource(file)
	delete(r.bound, file)
}

// binding is what a type name resolved to.
type binding struct {
	class *types.ClassElement
	param *types.TypeParameterType
	local bool // a method-level type parameter
}

type fileResolver struct {
	*Resolver
	file       string
	lang       string
	unit       *ast.Node
	res        *Result
	site       *index.Element
	builtins   map[string]bool
	imported   map[string]bool
	openImport bool
	bindings   map[*ast.Node]binding
	reported   map[*ast.Node]bool
	imports    map[string]bool
	unresolved map[string]bool
}

func (r *Resolver) newFileResolver(file string, unit *ast.Node) *fileResolver {
	lang, _ := parse.LanguageForFile(file)
	return &fileResolver{
		Resolver:   r,
		file:       file,
		lang:       lang,
		unit:       unit,
		res:        &Result{File: file, Unit: unit, Classes: r.decls.Classes(file)},
		site:       index.NewElement(file, "", "<unit>", "unit", 0),
		builtins:   builtins[lang],
		imported:   make(map[string]bool),
		bindings:   make(map[*ast.Node]binding),
		reported:   make(map[*ast.Node]bool),
		imports:    make(map[string]bool),
		unresolved: make(map[string]bool),
	}
}

func (f *fileResolver) link() {
	f.syntaxErrors()
	f.collectImports()
	f.duplicates()
	ast.Inspect(f.unit, func(n *ast.Node) bool {
		if n == nil {
			return false
		}
		if n.Kind() == ast.KindTypeName {
			f.bind(n)
		}
		return true
	})
	for _, c := range f.res.Classes {
		f.linkClass(c)
	}
	for _, c := range f.res.Classes {
		for _, m := range c.Members() {
			if md := f.decls.members[m]; md != nil {
				m.Type = f.firstTypeOf(md.node)
			}
		}
	}
}

// checkCycles reports the file's classes that reach themselves through
// their supertypes and returns them.
func (f *fileResolver) checkCycles() []*types.ClassElement {
	var out []*types.ClassElement
	for _, c := range f.res.Classes {
		if !onCycle(c) {
			continue
		}
		f.report(SeverityError, CompileTimeError, CodeCyclicHierarchy, f.decls.Node(c).NameNode(),
			fmt.Sprintf("'%s' cannot be a supertype of itself", c.Name), "")
		out = append(out, c)
	}
	return out
}

func (f *fileResolver) finish() {
	for _, c := range f.res.Classes {
		f.recordOverrides(c)
	}
	f.res.Imports = sortedKeys(f.imports)
	f.res.Unresolved = sortedKeys(f.unresolved)
	f.res.Highlights = f.highlights()
	f.res.Outline = f.outline()
	f.res.Navigation = f.navigation()
	slices.SortStableFunc(f.res.Errors, func(a, b AnalysisError) int {
		return a.Location.Offset - b.Location.Offset
	})
}

func (f *fileResolver) syntaxErrors() {
	for _, n := range parse.SyntaxErrors(f.unit) {
		msg := "Syntax error"
		if n.Length() == 0 && n.Lexeme() != "" {
			msg = fmt.Sprintf("Expected '%s'", n.Lexeme())
		}
		f.report(SeverityError, SyntacticError, CodeSyntaxError, n, msg, "")
	}
}

// collectImports records the names imports make visible. An on-demand
// import makes every name visible.
func (f *fileResolver) collectImports() {
	for _, dir := range f.unit.ChildrenOf(ast.KindImportDirective) {
		if q := dir.FirstChild(ast.KindQualifiedName); q != nil {
			if strings.HasSuffix(q.Lexeme(), ".*") {
				f.openImport = true
				continue
			}
			f.imported[simpleName(q.Lexeme())] = true
			continue
		}
		ast.Inspect(dir, func(n *ast.Node) bool {
			if n == nil {
				return false
			}
			if n.Kind() == ast.KindSimpleIdentifier {
				f.imported[n.Lexeme()] = true
			}
			return true
		})
	}
}

func (f *fileResolver) duplicates() {
	seen := make(map[string]bool)
	for _, c := range f.res.Classes {
		decl := f.decls.byClass[c]
		key := qualify(decl.path, c.Name)
		if seen[key] {
			f.report(SeverityError, CompileTimeError, CodeDuplicateDefinition, decl.node.NameNode(),
				fmt.Sprintf("The name '%s' is already defined", c.Name), "")
		}
		seen[key] = true
	}
}

func (f *fileResolver) bind(n *ast.Node) {
	name := n.Lexeme()
	if name == "" {
		return
	}
	simple := simpleName(name)
	qualified := simple != name
	if !qualified {
		if b, ok := f.typeParameter(n, simple); ok {
			f.bindings[n] = b
			return
		}
	}
	if simple == types.RootName {
		f.bindings[n] = binding{class: f.decls.Universe().Object()}
		return
	}
	if c := f.decls.Lookup(simple); c != nil {
		f.bindings[n] = binding{class: c}
		f.reference(n, c)
		return
	}
	if qualified || f.builtins[simple] || f.imported[simple] || f.openImport {
		f.bindings[n] = binding{class: f.decls.External(simple)}
		return
	}
	f.unresolved[simple] = true
	correction := ""
	if s := suggest(simple, f.candidates()); s != "" {
		correction = fmt.Sprintf("Did you mean '%s'?", s)
	}
	f.report(SeverityError, CompileTimeError, CodeUndefinedClass, n,
		fmt.Sprintf("Undefined class '%s'", simple), correction)
}

// typeParameter finds a type parameter named name declared by a class or
// method enclosing n.
func (f *fileResolver) typeParameter(n *ast.Node, name string) (binding, bool) {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Kind() {
		case ast.KindClassDeclaration, ast.KindInterfaceDeclaration, ast.KindEnumDeclaration, ast.KindMixinDeclaration:
			if c := f.decls.ClassDeclaredBy(p); c != nil {
				for _, tp := range c.TypeParameters() {
					if tp.Name() == name {
						return binding{param: tp}, true
					}
				}
			}
		case ast.KindMethodDeclaration, ast.KindConstructorDeclaration, ast.KindFunctionDeclaration, ast.KindFunctionExpression:
			if tpl := p.FirstChild(ast.KindTypeParameterList); tpl != nil {
				for _, tp := range tpl.ChildrenOf(ast.KindTypeParameter) {
					if tp.Name() == name {
						return binding{local: true}, true
					}
				}
			}
		}
	}
	return binding{}, false
}

// reference records that n refers to the declared class c.
func (f *fileResolver) reference(n *ast.Node, c *types.ClassElement) {
	elem := f.decls.Element(c)
	if elem == nil {
		return
	}
	if c.Source != f.file {
		f.imports[c.Source] = true
	}
	f.index.RecordRelationship(elem, index.IsReferencedBy, f.location(n, f.siteOf(n)))
}

func (f *fileResolver) location(n *ast.Node, site *index.Element) *index.Location {
	return &index.Location{
		Element:   site,
		Offset:    n.Offset(),
		Length:    len(n.Lexeme()),
		Qualified: strings.Contains(n.Lexeme(), "."),
		Resolved:  true,
	}
}

// siteOf returns the element of the class enclosing n, or the unit.
func (f *fileResolver) siteOf(n *ast.Node) *index.Element {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if c := f.decls.ClassDeclaredBy(p); c != nil {
			return f.decls.Element(c)
		}
	}
	return f.site
}

func (f *fileResolver) candidates() []string {
	out := f.decls.Names()
	for name := range f.builtins {
		out = append(out, name)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// suggest returns the candidate closest to name by edit distance, or "" when
// none is close enough.
func suggest(name string, candidates []string) string {
	limit := max(1, len(name)/3)
	best, bestDist := "", limit+1
	for _, c := range candidates {
		if c == name {
			continue
		}
		if d := edlib.LevenshteinDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// typeOf returns the type written by a type syntax node.
func (f *fileResolver) typeOf(n *ast.Node) types.Type {
	switch n.Kind() {
	case ast.KindTypeName:
		b, ok := f.bindings[n]
		switch {
		case !ok, b.local:
			return types.Dynamic
		case b.param != nil:
			return b.param
		}
		return f.instantiate(n, b.class)
	case ast.KindTypeBound:
		if t := firstTypeNode(n); t != nil {
			return f.typeOf(t)
		}
	}
	return types.Dynamic
}

func (f *fileResolver) instantiate(n *ast.Node, c *types.ClassElement) *types.InterfaceType {
	u := f.decls.Universe()
	list := n.FirstChild(ast.KindTypeArgumentList)
	if list == nil {
		return u.Parameterize(c)
	}
	var args []types.Type
	for _, a := range list.Children().Nodes() {
		if a.Kind() == ast.KindComment {
			continue
		}
		args = append(args, f.typeOf(a))
	}
	if params := c.TypeParameters(); !IsExternal(c) && len(args) != len(params) {
		if !f.reported[n] {
			f.reported[n] = true
			f.report(SeverityError, CompileTimeError, CodeWrongTypeArgumentCount, n,
				fmt.Sprintf("The type '%s' is declared with %d type parameters, but %d type arguments were given",
					c.Name, len(params), len(args)), "")
		}
		return u.Parameterize(c)
	}
	return u.Parameterize(c, args...)
}

// firstTypeOf returns the type of the first type child of n, or nil.
func (f *fileResolver) firstTypeOf(n *ast.Node) types.Type {
	for _, c := range n.Children().Nodes() {
		if c.Kind() == ast.KindTypeName {
			return f.typeOf(c)
		}
	}
	return nil
}

func firstTypeNode(n *ast.Node) *ast.Node {
	for _, c := range n.Children().Nodes() {
		switch c.Kind() {
		case ast.KindTypeName, ast.KindTypeBound:
			return c
		}
	}
	return nil
}

func (f *fileResolver) linkClass(c *types.ClassElement) {
	n := f.decls.Node(c)
	elem := f.decls.Element(c)

	if tpl := n.FirstChild(ast.KindTypeParameterList); tpl != nil {
		params := c.TypeParameters()
		for i, tp := range tpl.ChildrenOf(ast.KindTypeParameter) {
			if i >= len(params) {
				break
			}
			params[i].SetBound(nil)
			if bound := tp.FirstChild(ast.KindTypeBound); bound != nil {
				if t := firstTypeNode(bound); t != nil {
					params[i].SetBound(f.typeOf(t))
				}
			}
		}
	}

	var super *types.InterfaceType
	var ifaces []*types.InterfaceType
	if ext := n.FirstChild(ast.KindExtendsClause); ext != nil {
		for _, tn := range ext.ChildrenOf(ast.KindTypeName) {
			st, target := f.supertype(tn)
			if st == nil {
				continue
			}
			if c.Kind == types.Interface {
				ifaces = append(ifaces, st)
				f.recordSupertype(index.IsExtendedBy, target, elem, tn)
				continue
			}
			if super != nil {
				continue
			}
			if !IsExternal(target) && target.Kind == types.Interface {
				f.report(SeverityError, CompileTimeError, CodeExtendsNonClass, tn,
					"Classes can only extend other classes", fmt.Sprintf("Implement '%s' instead", target.Name))
				continue
			}
			super = st
			f.recordSupertype(index.IsExtendedBy, target, elem, tn)
		}
	}
	if impl := n.FirstChild(ast.KindImplementsClause); impl != nil {
		for _, tn := range impl.ChildrenOf(ast.KindTypeName) {
			st, target := f.supertype(tn)
			if st == nil {
				continue
			}
			if f.lang == "java" && !IsExternal(target) && target.Kind != types.Interface {
				f.report(SeverityError, CompileTimeError, CodeImplementsNonInterface, tn,
					"Classes can only implement interfaces", fmt.Sprintf("Extend '%s' instead", target.Name))
				continue
			}
			ifaces = append(ifaces, st)
			f.recordSupertype(index.IsImplementedBy, target, elem, tn)
		}
	}
	c.SetSupertype(super)
	c.SetInterfaces(ifaces...)
}

// supertype returns the type named by tn and its class, or nil when tn does
// not name a class.
func (f *fileResolver) supertype(tn *ast.Node) (*types.InterfaceType, *types.ClassElement) {
	b, ok := f.bindings[tn]
	if !ok || b.class == nil {
		return nil, nil
	}
	return f.instantiate(tn, b.class), b.class
}

func (f *fileResolver) recordSupertype(rel *index.Relationship, target *types.ClassElement, site *index.Element, tn *ast.Node) {
	if elem := f.decls.Element(target); elem != nil {
		f.index.RecordRelationship(elem, rel, f.location(tn, site))
	}
}

func (f *fileResolver) recordOverrides(c *types.ClassElement) {
	supers, err := f.decls.Universe().SuperinterfaceSet(c.Type())
	if err != nil {
		return
	}
	for _, m := range c.Members() {
		if m.Kind != types.Method {
			continue
		}
		site := f.decls.MemberElement(m)
		for _, s := range supers {
			sm := s.Element().Member(m.Name, types.Method)
			if sm == nil {
				continue
			}
			if target := f.decls.MemberElement(sm); target != nil {
				f.index.RecordRelationship(target, index.IsOverriddenBy, &index.Location{
					Element:  site,
					Offset:   m.Offset,
					Length:   m.Length,
					Resolved: true,
				})
			}
		}
	}
}

// onCycle reports whether c is reachable from its own supertypes.
func onCycle(c *types.ClassElement) bool {
	seen := make(map[*types.ClassElement]bool)
	stack := directElements(c)
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e == c {
			return true
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		stack = append(stack, directElements(e)...)
	}
	return false
}

func directElements(c *types.ClassElement) []*types.ClassElement {
	var out []*types.ClassElement
	if st := c.Supertype(); st != nil {
		out = append(out, st.Element())
	}
	for _, t := range c.Interfaces() {
		out = append(out, t.Element())
	}
	for _, t := range c.Mixins() {
		out = append(out, t.Element())
	}
	return out
}

func (f *fileResolver) report(sev Severity, typ ErrorType, code string, n *ast.Node, msg, correction string) {
	loc := LocationOf(f.file, n)
	if n.Kind() == ast.KindTypeName && n.Lexeme() != "" {
		loc.Length = len(n.Lexeme())
	}
	f.res.Errors = append(f.res.Errors, AnalysisError{
		Severity:   sev,
		Type:       typ,
		Code:       code,
		Location:   loc,
		Message:    msg,
		Correction: correction,
	})
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
