package rules

import (
	"context"
	"fmt"
	"log"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/arbor/internal/parse"
	"github.com/jward/arbor/internal/resolve"
	"github.com/jward/arbor/internal/types"
)

// reporter collects the problems a rule run reports.
type reporter struct {
	file   string
	src    []byte
	errors []resolve.AnalysisError
}

// position returns the 1-based line and column of offset in src.
func position(src []byte, offset int) (int, int) {
	line, col := 1, 1
	for i := 0; i < offset && i < len(src); i++ {
		if src[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}

// makeReportFn creates the "report" host function.
//
// report({"code", "message", "offset", "length", "severity", "correction"})
//
// code and message are required. severity defaults to WARNING.
func makeReportFn(rep *reporter) *object.Builtin {
	return object.NewBuiltin("report", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("report", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("report: %v", err)
		}
		code, msg := getString(m, "code"), getString(m, "message")
		if code == "" || msg == "" {
			return object.Errorf("report: code and message are required")
		}
		sev := resolve.Severity(getStringDefault(m, "severity", string(resolve.SeverityWarning)))
		switch sev {
		case resolve.SeverityInfo, resolve.SeverityWarning, resolve.SeverityError:
		default:
			return object.Errorf("report: unknown severity %q", sev)
		}

		offset := getInt(m, "offset")
		line, col := position(rep.src, offset)
		rep.errors = append(rep.errors, resolve.AnalysisError{
			Severity: sev,
			Type:     resolve.Lint,
			Code:     code,
			Location: resolve.Location{
				File:        rep.file,
				Offset:      offset,
				Length:      getInt(m, "length"),
				StartLine:   line,
				StartColumn: col,
			},
			Message:    msg,
			Correction: getString(m, "correction"),
		})
		return object.Nil
	})
}

// classNamed finds a declared class, or the root for its name.
func classNamed(h Hierarchy, name string) (*types.ClassElement, error) {
	if name == types.RootName {
		return h.Universe().Object(), nil
	}
	c := h.Lookup(name)
	if c == nil {
		return nil, fmt.Errorf("unknown class %q", name)
	}
	return c, nil
}

// classArgs extracts n class names from args.
func classArgs(fn string, h Hierarchy, n int, args []object.Object) ([]*types.ClassElement, *object.Error) {
	if len(args) != n {
		return nil, object.NewArgsError(fn, n, len(args))
	}
	out := make([]*types.ClassElement, n)
	for i, a := range args {
		name, err := toString(a)
		if err != nil {
			return nil, object.Errorf("%s: %v", fn, err)
		}
		c, err := classNamed(h, name)
		if err != nil {
			return nil, object.Errorf("%s: %v", fn, err)
		}
		out[i] = c
	}
	return out, nil
}

// makeIsSubtypeFn creates "is_subtype".
//
// is_subtype(name, name) → bool
func makeIsSubtypeFn(h Hierarchy) *object.Builtin {
	return object.NewBuiltin("is_subtype", func(ctx context.Context, args ...object.Object) object.Object {
		cs, errObj := classArgs("is_subtype", h, 2, args)
		if errObj != nil {
			return errObj
		}
		return object.NewBool(h.Universe().IsSubtypeOf(cs[0].Type(), cs[1].Type()))
	})
}

// makeLubFn creates "lub".
//
// lub(name, name) → string
func makeLubFn(h Hierarchy) *object.Builtin {
	return object.NewBuiltin("lub", func(ctx context.Context, args ...object.Object) object.Object {
		cs, errObj := classArgs("lub", h, 2, args)
		if errObj != nil {
			return errObj
		}
		t, err := h.Universe().LeastUpperBound(cs[0].Type(), cs[1].Type())
		if err != nil {
			return object.Errorf("lub: %v", err)
		}
		return object.NewString(t.String())
	})
}

// makeDepthFn creates "depth".
//
// depth(name) → int, the longest path to the root
func makeDepthFn(h Hierarchy) *object.Builtin {
	return object.NewBuiltin("depth", func(ctx context.Context, args ...object.Object) object.Object {
		cs, errObj := classArgs("depth", h, 1, args)
		if errObj != nil {
			return errObj
		}
		d, err := h.Universe().LongestPathToRoot(cs[0].Type())
		if err != nil {
			return object.Errorf("depth: %v", err)
		}
		return object.NewInt(int64(d))
	})
}

// makeSupertypesFn creates "supertypes".
//
// supertypes(name) → []string, every ancestor including the root
func makeSupertypesFn(h Hierarchy) *object.Builtin {
	return object.NewBuiltin("supertypes", func(ctx context.Context, args ...object.Object) object.Object {
		cs, errObj := classArgs("supertypes", h, 1, args)
		if errObj != nil {
			return errObj
		}
		set, err := h.Universe().SuperinterfaceSet(cs[0].Type())
		if err != nil {
			return object.Errorf("supertypes: %v", err)
		}
		names := make([]string, len(set))
		for i, t := range set {
			names[i] = t.String()
		}
		return stringsToList(names)
	})
}

// makeQueryFn creates "query", which runs a tree-sitter query over the
// file's source.
//
// query(pattern) → []map[capture]{"text", "offset", "length", "line", "column"}
func makeQueryFn(f File) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("query", 1, len(args))
		}
		pattern, err := toString(args[0])
		if err != nil {
			return object.Errorf("query: pattern: %v", err)
		}
		lang, ok := parse.TreeSitterLanguage(f.Language)
		if !ok {
			return object.Errorf("query: unsupported language %q", f.Language)
		}

		parser := sitter.NewParser()
		defer parser.Close()
		parser.SetLanguage(lang)
		tree, err := parser.ParseCtx(ctx, nil, f.Source)
		if err != nil {
			return object.Errorf("query: tree-sitter parse failed: %v", err)
		}
		defer tree.Close()

		q, err := sitter.NewQuery([]byte(pattern), lang)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, tree.RootNode())

		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, f.Source)
			captures := make(map[string]object.Object)
			for _, c := range match.Captures {
				start := c.Node.StartPoint()
				captures[q.CaptureNameForId(c.Index)] = object.NewMap(map[string]object.Object{
					"text":   object.NewString(c.Node.Content(f.Source)),
					"offset": object.NewInt(int64(c.Node.StartByte())),
					"length": object.NewInt(int64(c.Node.EndByte() - c.Node.StartByte())),
					"line":   object.NewInt(int64(start.Row) + 1),
					"column": object.NewInt(int64(start.Column) + 1),
				})
			}
			results = append(results, object.NewMap(captures))
		}
		return object.NewList(results)
	})
}

// classesToList describes the classes a file declares.
func classesToList(res *resolve.Result, u *types.Universe) *object.List {
	items := make([]object.Object, 0, len(res.Classes))
	for _, c := range res.Classes {
		depth, err := u.LongestPathToRoot(c.Type())
		if err != nil {
			depth = -1
		}
		var super object.Object = object.Nil
		if st := c.Supertype(); st != nil {
			super = object.NewString(st.String())
		}
		params := make([]string, len(c.TypeParameters()))
		for i, p := range c.TypeParameters() {
			params[i] = p.Name()
		}
		members := make([]object.Object, 0, len(c.Members()))
		for _, m := range c.Members() {
			var typ object.Object = object.Nil
			if m.Type != nil {
				typ = object.NewString(m.Type.String())
			}
			members = append(members, object.NewMap(map[string]object.Object{
				"name":   object.NewString(m.Name),
				"kind":   object.NewString(m.Kind.String()),
				"offset": object.NewInt(int64(m.Offset)),
				"length": object.NewInt(int64(m.Length)),
				"type":   typ,
			}))
		}
		items = append(items, object.NewMap(map[string]object.Object{
			"name":            object.NewString(c.Name),
			"kind":            object.NewString(c.Kind.String()),
			"offset":          object.NewInt(int64(c.Offset)),
			"length":          object.NewInt(int64(c.Length)),
			"abstract":        object.NewBool(c.Abstract),
			"supertype":       super,
			"interfaces":      typesToList(c.Interfaces()),
			"mixins":          typesToList(c.Mixins()),
			"type_parameters": stringsToList(params),
			"members":         object.NewList(members),
			"depth":           object.NewInt(int64(depth)),
		}))
	}
	return object.NewList(items)
}

func typesToList(ts []*types.InterfaceType) *object.List {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.String()
	}
	return stringsToList(names)
}

func stringsToList(ss []string) *object.List {
	items := make([]object.Object, len(ss))
	for i, s := range ss {
		items[i] = object.NewString(s)
	}
	return object.NewList(items)
}

// --- Map extraction helpers ---

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	if s, ok := m[key].(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getStringDefault(m map[string]object.Object, key, def string) string {
	if v := getString(m, key); v != "" {
		return v
	}
	return def
}

func getInt(m map[string]object.Object, key string) int {
	switch v := m[key].(type) {
	case *object.Int:
		return int(v.Value())
	case *object.Float:
		return int(v.Value())
	}
	return 0
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct {
	logger *log.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Printf("INFO: %s", msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Printf("WARN: %s", msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Printf("ERROR: %s", msg)
}
