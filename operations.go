package arbor

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jward/arbor/internal/cache"
	"github.com/jward/arbor/internal/parse"
	"github.com/jward/arbor/internal/queue"
	"github.com/jward/arbor/internal/resolve"
	"github.com/jward/arbor/internal/store"
)

// operation is a unit of work run by the engine's worker.
type operation interface {
	queue.Operation
	perform(ctx context.Context, e *Engine)
}

// funcOp runs a closure on the worker.
type funcOp struct {
	priority queue.Priority
	fn       func(ctx context.Context)
}

func (o *funcOp) Priority() queue.Priority { return o.priority }

func (o *funcOp) perform(ctx context.Context, e *Engine) { o.fn(ctx) }

// analyzeOp analyzes files of one root. Queued analyzeOps of the same root
// and tier merge into one batch.
type analyzeOp struct {
	root     string
	priority queue.Priority
	files    []string
}

var (
	_ queue.Mergeable        = (*analyzeOp)(nil)
	_ queue.ContextOperation = (*analyzeOp)(nil)
)

func (o *analyzeOp) Priority() queue.Priority { return o.priority }

func (o *analyzeOp) ContextID() string { return o.root }

func (o *analyzeOp) Merge(other queue.Operation) bool {
	a, ok := other.(*analyzeOp)
	if !ok || a.root != o.root || a.priority != o.priority {
		return false
	}
	for _, f := range a.files {
		if !slices.Contains(o.files, f) {
			o.files = append(o.files, f)
		}
	}
	return true
}

func (o *analyzeOp) perform(ctx context.Context, e *Engine) {
	if err := e.analyze(ctx, o.files); err != nil {
		e.logger.Printf("warning: %s: %v", o.root, err)
	}
}

// root is an analysis root: a directory whose files are analyzed, minus
// the excluded paths beneath it.
type root struct {
	path     string
	excluded []string
	ctx      *cache.Context
	files    map[string]bool
}

func newRoot(path string, excluded []string) *root {
	r := &root{path: path, ctx: cache.NewContext(path), files: make(map[string]bool)}
	r.setExcluded(excluded)
	return r
}

// setExcluded keeps the excluded paths that lie under the root.
func (r *root) setExcluded(excluded []string) {
	r.excluded = r.excluded[:0]
	for _, x := range excluded {
		if within(x, r.path) {
			r.excluded = append(r.excluded, x)
		}
	}
}

func (r *root) contains(path string) bool {
	if !within(path, r.path) {
		return false
	}
	for _, x := range r.excluded {
		if within(path, x) {
			return false
		}
	}
	return true
}

func (r *root) sortedFiles() []string {
	out := make([]string, 0, len(r.files))
	for f := range r.files {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// within reports whether path is dir or lies beneath it.
func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}

// rootFor returns the innermost root containing path, or nil.
func (e *Engine) rootFor(path string) *root {
	var best *root
	for _, r := range e.roots {
		if r.contains(path) && (best == nil || len(r.path) > len(best.path)) {
			best = r
		}
	}
	return best
}

func (e *Engine) sortedRoots() []*root {
	out := make([]*root, 0, len(e.roots))
	for _, r := range e.roots {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *root) int { return strings.Compare(a.path, b.path) })
	return out
}

func (e *Engine) languageEnabled(lang string) bool {
	return e.languages == nil || e.languages[lang]
}

// applyRoots makes included the set of roots. New roots restore their
// persisted cache and are discovered; existing roots are rediscovered with
// the new excludes.
func (e *Engine) applyRoots(included, excluded []string) {
	want := make(map[string]bool, len(included))
	for _, p := range included {
		want[p] = true
	}
	var stale []string
	for _, r := range e.sortedRoots() {
		if !want[r.path] {
			stale = append(stale, e.removeRoot(r)...)
		}
	}
	for _, p := range included {
		r, ok := e.roots[p]
		if !ok {
			r = newRoot(p, excluded)
			e.roots[p] = r
			e.restoreRoot(r)
		} else {
			r.setExcluded(excluded)
		}
	}
	// Discovery runs once every root is known so nested roots claim their
	// own files.
	for _, r := range e.sortedRoots() {
		stale = append(stale, e.discover(r)...)
	}
	e.scheduleFiles(stale)
}

// removeRoot forgets a root and its files. It returns the files of other
// roots that depended on them.
func (e *Engine) removeRoot(r *root) []string {
	e.queue.RemoveByContext(r.path)
	delete(e.roots, r.path)
	var deps []string
	for _, f := range r.sortedFiles() {
		deps = append(deps, e.forget(f)...)
	}
	return e.invalidate(deps)
}

// restoreRoot loads the root's persisted library cache when it was written
// by the current rules.
func (e *Engine) restoreRoot(r *root) {
	if !e.storeCurrent() {
		return
	}
	if _, err := e.store.LoadContext(r.path, r.ctx); err != nil {
		e.logger.Printf("warning: restore %s: %v", r.path, err)
		r.ctx = cache.NewContext(r.path)
	}
}

// discover walks the root and schedules every file it owns. Files the root
// no longer owns are forgotten; the files that depended on them are
// returned.
func (e *Engine) discover(r *root) []string {
	found, err := e.cfg.Files(r.path)
	if err != nil {
		e.logger.Printf("warning: %v", err)
	}
	owned := make(map[string]bool, len(found))
	for _, f := range found {
		if lang, ok := parse.LanguageForFile(f); ok && e.languageEnabled(lang) && e.rootFor(f) == r {
			owned[f] = true
		}
	}
	var deps []string
	for _, f := range r.sortedFiles() {
		if !owned[f] && !e.overlay.HasOverlay(f) {
			deps = append(deps, e.forget(f)...)
		}
	}
	for f := range owned {
		r.files[f] = true
	}
	e.scheduleRoot(r)
	return e.invalidate(deps)
}

// scheduleRoot queues analysis of every file of r, grouped by tier.
func (e *Engine) scheduleRoot(r *root) {
	e.schedule(r, r.sortedFiles())
}

// scheduleFiles queues analysis of files in whichever roots own them.
func (e *Engine) scheduleFiles(files []string) {
	byRoot := make(map[*root][]string)
	for _, f := range files {
		if r := e.rootFor(f); r != nil {
			byRoot[r] = append(byRoot[r], f)
		}
	}
	for _, r := range e.sortedRoots() {
		if batch := byRoot[r]; len(batch) > 0 {
			e.schedule(r, batch)
		}
	}
}

func (e *Engine) schedule(r *root, files []string) {
	tiers := make(map[queue.Priority][]string)
	for _, f := range files {
		p := e.tier(r, f)
		tiers[p] = append(tiers[p], f)
	}
	for _, p := range []queue.Priority{queue.PriorityAnalysis, queue.Analysis, queue.Indexing} {
		if len(tiers[p]) == 0 {
			continue
		}
		if err := e.queue.Add(&analyzeOp{root: r.path, priority: p, files: tiers[p]}); err != nil {
			e.logger.Printf("warning: schedule %s: %v", r.path, err)
		}
	}
}

// tier picks the analysis priority of a file: priority files first, files
// whose restored library is still current last.
func (e *Engine) tier(r *root, file string) queue.Priority {
	if e.priority[file] {
		return queue.PriorityAnalysis
	}
	lib := r.ctx.CachedLibrary(file)
	if lib == nil || lib.IsResolved() {
		return queue.Analysis
	}
	src, err := e.overlay.Contents(file)
	if err == nil && lib.Stamps[file] == src.Stamp {
		return queue.Indexing
	}
	return queue.Analysis
}

// invalidate marks analyzed files for re-resolution and returns them.
func (e *Engine) invalidate(files []string) []string {
	var out []string
	for _, f := range files {
		if st := e.files[f]; st != nil {
			st.stale = true
			out = append(out, f)
		}
	}
	return out
}

// applyPriority replaces the priority files and queues them ahead of the
// rest.
func (e *Engine) applyPriority(files []string) {
	clear(e.priority)
	for _, f := range files {
		e.priority[f] = true
	}
	e.scheduleFiles(files)
}

// applySubscriptions replaces the subscriptions and sends current results
// to files that were not subscribed before.
func (e *Engine) applySubscriptions(next map[Service]map[string]bool) {
	prev := e.subs
	e.subs = next
	for _, s := range Services() {
		for _, f := range sortedSet(next[s]) {
			if prev[s][f] {
				continue
			}
			if st := e.files[f]; st != nil && st.result != nil {
				e.notifyService(s, f, st.result)
			}
		}
	}
}

func (e *Engine) subscribed(s Service, file string) bool {
	return e.subs[s][file]
}

// reanalyze drops all results and caches and queues every root again.
func (e *Engine) reanalyze() {
	for _, r := range e.sortedRoots() {
		e.queue.RemoveByContext(r.path)
		r.ctx.DiscardLibraries()
	}
	for f := range e.files {
		e.resolver.Forget(f)
	}
	clear(e.files)
	e.index.Clear()
	for _, r := range e.sortedRoots() {
		e.discover(r)
	}
}

// restoreIndex loads the persisted relationship index when it was written
// by the current rules. Facts are replaced file by file as analysis runs.
func (e *Engine) restoreIndex() {
	if !e.storeCurrent() {
		return
	}
	facts, err := e.store.LoadRelationships()
	if err != nil {
		e.logger.Printf("warning: restore index: %v", err)
		return
	}
	e.index.Load(facts)
}

// storeCurrent reports whether the database holds state written by the
// current rules.
func (e *Engine) storeCurrent() bool {
	if e.store == nil {
		return false
	}
	stored, err := e.store.GetMetadata(rulesHashKey)
	return err == nil && stored != "" && stored == e.rulesHash
}

func (e *Engine) save() error {
	for _, r := range e.sortedRoots() {
		if err := e.store.SaveContext(r.path, r.ctx); err != nil {
			return fmt.Errorf("arbor: save: %w", err)
		}
		var files []*store.File
		for _, f := range r.sortedFiles() {
			st := e.files[f]
			if st == nil || st.result == nil {
				continue
			}
			files = append(files, &store.File{
				Path:       f,
				Root:       r.path,
				Language:   st.lang,
				Stamp:      formatStamp(st.stamp),
				ErrorCount: len(st.errors),
				AnalyzedAt: st.analyzedAt,
			})
		}
		if err := e.store.ReplaceFiles(r.path, files); err != nil {
			return fmt.Errorf("arbor: save: %w", err)
		}
	}
	saved, err := e.store.Roots()
	if err != nil {
		return fmt.Errorf("arbor: save: %w", err)
	}
	for _, p := range saved {
		if _, ok := e.roots[p]; !ok {
			if err := e.store.DeleteContext(p); err != nil {
				return fmt.Errorf("arbor: save: %w", err)
			}
		}
	}
	if err := e.store.SaveRelationships(e.index.Relationships()); err != nil {
		return fmt.Errorf("arbor: save: %w", err)
	}
	if err := e.store.SetMetadata(rulesHashKey, e.rulesHash); err != nil {
		return fmt.Errorf("arbor: save: %w", err)
	}
	return nil
}

func formatStamp(s uint64) string {
	return fmt.Sprintf("%016x", s)
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// fileState is what the engine knows about one analyzed file.
type fileState struct {
	root       *root
	lang       string
	stamp      uint64
	source     []byte
	result     *resolve.Result
	errors     []AnalysisError
	analyzedAt time.Time
	stale      bool
}

// notify posts a file's results: errors always, other services only when
// subscribed.
func (e *Engine) notify(file string, st *fileState) {
	errs := st.errors
	e.disp.post(func(l Listener) { l.ComputedErrors(file, errs) })
	for _, s := range Services() {
		if e.subscribed(s, file) {
			e.notifyService(s, file, st.result)
		}
	}
}

func (e *Engine) notifyService(s Service, file string, res *resolve.Result) {
	switch s {
	case ServiceHighlights:
		regions := res.Highlights
		e.disp.post(func(l Listener) { l.ComputedHighlights(file, regions) })
	case ServiceOutline:
		outline := res.Outline
		e.disp.post(func(l Listener) { l.ComputedOutline(file, outline) })
	case ServiceNavigation:
		regions := res.Navigation
		e.disp.post(func(l Listener) { l.ComputedNavigation(file, regions) })
	}
}
