// Package rules runs lint rules written in Risor against resolved files.
// A rule is a script whose name ends in ".rule.risor"; it inspects the
// globals describing the file and calls report for each problem it finds.
// Other .risor files in the rule source are importable modules.
package rules

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/arbor/internal/resolve"
	"github.com/jward/arbor/internal/types"
)

// RulePattern matches rule scripts within a rule source.
const RulePattern = "**/*.rule.risor"

// DefaultMaxHierarchyDepth is the depth limit given to rules when none is
// configured.
const DefaultMaxHierarchyDepth = 8

//go:embed builtin/*.risor
var builtinFS embed.FS

// Builtin returns the rules shipped with arbor.
func Builtin() fs.FS {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		panic(fmt.Sprintf("rules: builtin fs: %v", err))
	}
	return sub
}

// Hierarchy answers type questions about the declared classes of a
// context. *resolve.Declarations satisfies it.
type Hierarchy interface {
	Lookup(name string) *types.ClassElement
	Universe() *types.Universe
}

// File is the input of one rule run.
type File struct {
	Path     string
	Language string
	Source   []byte
	Result   *resolve.Result
}

// Runtime embeds a Risor VM and exposes host functions describing a
// resolved file to rule scripts.
type Runtime struct {
	dir      string
	fsys     fs.FS
	logger   *log.Logger
	maxDepth int
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithFS loads rules from fsys instead of from disk. The Risor importer
// resolves imports within the same filesystem.
func WithFS(fsys fs.FS) Option {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger routes the scripts' log object to l.
func WithLogger(l *log.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithMaxHierarchyDepth sets the max_hierarchy_depth global.
func WithMaxHierarchyDepth(n int) Option {
	return func(r *Runtime) {
		if n > 0 {
			r.maxDepth = n
		}
	}
}

// New creates a Runtime loading rules from dir. dir may be empty when
// WithFS is used; with neither, the runtime has no rules.
func New(dir string, opts ...Option) *Runtime {
	r := &Runtime{
		dir:      dir,
		logger:   log.New(os.Stderr, "rules: ", 0),
		maxDepth: DefaultMaxHierarchyDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runtime) source() fs.FS {
	if r.fsys != nil {
		return r.fsys
	}
	if r.dir != "" {
		return os.DirFS(r.dir)
	}
	return nil
}

// Rules returns the paths of the rule scripts, sorted.
func (r *Runtime) Rules() ([]string, error) {
	fsys := r.source()
	if fsys == nil {
		return nil, nil
	}
	paths, err := doublestar.Glob(fsys, RulePattern)
	if err != nil {
		return nil, fmt.Errorf("rules: list: %w", err)
	}
	slices.Sort(paths)
	return paths, nil
}

// Hash returns a digest of every script in the rule source, modules
// included. It changes whenever a rule would behave differently.
func (r *Runtime) Hash() string {
	fsys := r.source()
	if fsys == nil {
		return ""
	}
	paths, _ := doublestar.Glob(fsys, "**/*.risor")
	slices.Sort(paths)
	d := xxhash.New()
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			continue
		}
		_, _ = d.WriteString(p)
		_, _ = d.Write([]byte{0})
		_, _ = d.Write(data)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// Check runs every rule against f and returns the problems they report, in
// offset order. A failing rule does not stop the others; its error is
// logged and the first failure is returned alongside the collected
// results.
func (r *Runtime) Check(ctx context.Context, f File, h Hierarchy) ([]resolve.AnalysisError, error) {
	paths, err := r.Rules()
	if err != nil {
		return nil, err
	}
	rep := &reporter{file: f.Path, src: f.Source}
	globals := r.fileGlobals(f, h, rep)

	var firstErr error
	failed := 0
	for _, p := range paths {
		if err := r.RunScript(ctx, p, globals); err != nil {
			r.logger.Printf("warning: %v", err)
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	slices.SortStableFunc(rep.errors, func(a, b resolve.AnalysisError) int {
		return a.Location.Offset - b.Location.Offset
	})
	if firstErr != nil {
		return rep.errors, fmt.Errorf("rules: %d rule(s) failed: %w", failed, firstErr)
	}
	return rep.errors, nil
}

// RunScript loads and executes a Risor script with the standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, path string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(path)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, path, extraGlobals)
}

// RunSource executes Risor source code directly with the standard globals
// plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return fmt.Errorf("rules: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns an importer over the rule source, or nil when the
// runtime has none.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: names,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.dir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: names,
			SourceDir:   r.dir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a script from the rule source.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("rules: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.dir, path)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("rules: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the globals every script sees.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log":                 mustProxy(&logObject{logger: r.logger}),
		"max_hierarchy_depth": r.maxDepth,
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

// fileGlobals describes f and the hierarchy to a rule.
func (r *Runtime) fileGlobals(f File, h Hierarchy, rep *reporter) map[string]any {
	return map[string]any{
		"file":       f.Path,
		"language":   f.Language,
		"classes":    classesToList(f.Result, h.Universe()),
		"unresolved": stringsToList(f.Result.Unresolved),
		"imports":    stringsToList(f.Result.Imports),
		"report":     makeReportFn(rep),
		"is_subtype": makeIsSubtypeFn(h),
		"lub":        makeLubFn(h),
		"depth":      makeDepthFn(h),
		"supertypes": makeSupertypesFn(h),
		"query":      makeQueryFn(f),
	}
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("rules: proxy error: %v", err))
	}
	return p
}
