package arbor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/cache"
	"github.com/jward/arbor/internal/parse"
	"github.com/jward/arbor/internal/resolve"
	"github.com/jward/arbor/internal/rules"
)

// workItem holds everything a parse worker needs.
type workItem struct {
	file string
	root *root
	lang string
	src  Source

	unit *ast.Node
	err  error
}

// analyze brings files up to date using a three-phase pipeline:
//
//	Phase A (serial):   Read through the overlay, skip unchanged files and
//	                    forget deleted ones.
//	Phase B (parallel): Parse the changed files.
//	Phase C (serial):   Declare the new units, then resolve them together
//	                    with every file that depended on the old ones, run
//	                    the rules and cache the resolved libraries.
func (e *Engine) analyze(ctx context.Context, files []string) error {
	var errs []error
	affected := make(map[string]bool)

	// ---- Phase A: Serial change detection ----
	var items []*workItem
	for _, file := range files {
		r := e.rootFor(file)
		if r == nil {
			continue
		}
		lang, ok := parse.LanguageForFile(file)
		if !ok || !e.languageEnabled(lang) {
			continue
		}
		src, err := e.overlay.Contents(file)
		if errors.Is(err, fs.ErrNotExist) {
			for _, d := range e.forget(file) {
				affected[d] = true
			}
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", file, err))
			continue
		}
		if st := e.files[file]; st != nil && !st.stale && st.stamp == src.Stamp {
			continue
		}
		r.files[file] = true
		items = append(items, &workItem{file: file, root: r, lang: lang, src: src})
	}

	// ---- Phase B: Parallel parse ----
	e.parseAll(ctx, items)

	// ---- Phase C: Serial declare, resolve and commit ----
	declared := make(map[string]bool)
	for _, item := range items {
		if item.err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", item.file, item.err))
			continue
		}
		for _, d := range e.discardDependents(item.file) {
			affected[d] = true
		}
		item.root.ctx.CacheUnresolvedUnit(item.file, item.unit)
		for _, c := range e.decls.Declare(item.file, item.unit) {
			declared[c.Name] = true
		}
		e.files[item.file] = &fileState{
			root:   item.root,
			lang:   item.lang,
			stamp:  item.src.Stamp,
			source: item.src.Content,
		}
		affected[item.file] = true
	}

	// Files that failed to find a name declared just now.
	for f, st := range e.files {
		if st.result == nil {
			continue
		}
		for _, name := range st.result.Unresolved {
			if declared[name] {
				affected[f] = true
				break
			}
		}
	}

	var targets []string
	for f := range affected {
		if e.files[f] != nil && e.decls.Unit(f) != nil {
			targets = append(targets, f)
		}
	}
	slices.Sort(targets)
	for _, res := range e.resolver.ResolveAll(targets...) {
		e.commit(ctx, res)
	}

	if len(errs) > 0 {
		return fmt.Errorf("analysis had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// parseAll parses items on up to NumCPU goroutines. Each item keeps its own
// error so one bad file does not cancel the batch.
func (e *Engine) parseAll(ctx context.Context, items []*workItem) {
	if len(items) == 0 {
		return
	}
	limit := 1
	if e.useParallel {
		limit = max(1, min(runtime.NumCPU(), len(items)))
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, item := range items {
		g.Go(func() error {
			item.unit, item.err = e.parser.Parse(ctx, item.lang, item.src.Content)
			return nil
		})
	}
	_ = g.Wait()
}

// commit runs the rules over a resolved file, caches its library and
// notifies the listener.
func (e *Engine) commit(ctx context.Context, res *resolve.Result) {
	st := e.files[res.File]
	// Failing rules are logged by the runtime; the others still report.
	lint, _ := e.rules.Check(ctx, rules.File{
		Path:     res.File,
		Language: st.lang,
		Source:   st.source,
		Result:   res,
	}, e.decls)

	st.result = res
	st.errors = append(slices.Clip(res.Errors), lint...)
	st.analyzedAt = time.Now()
	st.stale = false

	lib := cache.NewLibrary(res.File)
	for _, imp := range res.Imports {
		lib.AddImport(imp)
	}
	lib.Stamps[res.File] = st.stamp
	lib.SetResolvedUnit(res.File, res.Unit)
	lib.MarkResolved()
	st.root.ctx.CacheLibrary(lib)

	e.notify(res.File, st)
}

// discardDependents removes the library of file, and every library that
// imports it directly or transitively, from all roots. It returns the
// files of the removed libraries other than file itself.
func (e *Engine) discardDependents(file string) []string {
	var out []string
	for _, r := range e.sortedRoots() {
		libs := r.ctx.LibrariesImporting(file)
		if lib := r.ctx.CachedLibrary(file); lib != nil {
			libs = append([]*cache.Library{lib}, libs...)
		}
		for _, lib := range libs {
			for _, d := range r.ctx.DiscardLibraryAndReferencingLibraries(lib) {
				if d.File != file {
					out = append(out, d.File)
				}
			}
		}
	}
	return out
}

// forget drops everything known about file and tells the listener it has
// no errors. It returns the files that depended on it.
func (e *Engine) forget(file string) []string {
	deps := e.discardDependents(file)
	e.resolver.Forget(file)
	if st := e.files[file]; st != nil {
		delete(st.root.files, file)
		delete(e.files, file)
		e.disp.post(func(l Listener) { l.ComputedErrors(file, nil) })
	}
	for _, r := range e.roots {
		delete(r.files, file)
	}
	return deps
}
