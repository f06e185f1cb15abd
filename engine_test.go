package arbor

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jward/arbor/internal/protocol"
	"github.com/jward/arbor/internal/queue"
	"github.com/jward/arbor/internal/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is a Listener that keeps every notification.
type recorder struct {
	mu         sync.Mutex
	errors     map[string][]AnalysisError
	errorCalls map[string]int
	order      []string
	highlights map[string][]HighlightRegion
	outlines   map[string]*Outline
	navigation map[string][]NavigationRegion
}

func newRecorder() *recorder {
	return &recorder{
		errors:     make(map[string][]AnalysisError),
		errorCalls: make(map[string]int),
		highlights: make(map[string][]HighlightRegion),
		outlines:   make(map[string]*Outline),
		navigation: make(map[string][]NavigationRegion),
	}
}

func (r *recorder) ComputedErrors(file string, errs []AnalysisError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[file] = errs
	r.errorCalls[file]++
	r.order = append(r.order, file)
}

func (r *recorder) ComputedHighlights(file string, regions []HighlightRegion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.highlights[file] = regions
}

func (r *recorder) ComputedOutline(file string, outline *Outline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outlines[file] = outline
}

func (r *recorder) ComputedNavigation(file string, regions []NavigationRegion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigation[file] = regions
}

func (r *recorder) calls(file string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorCalls[file]
}

func (r *recorder) lastErrors(file string) ([]AnalysisError, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs, ok := r.errors[file]
	return errs, ok
}

func (r *recorder) notified() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// writeFiles writes files under dir and returns dir.
func writeFiles(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func startTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := newTestEngine(t, opts...)
	require.NoError(t, e.Start())
	return e
}

// analyzeRoot makes root the only analysis root and waits for analysis.
func analyzeRoot(t *testing.T, e *Engine, root string) {
	t.Helper()
	require.NoError(t, e.SetAnalysisRoots([]string{root}, nil))
	require.NoError(t, e.WaitIdle(testContext(t)))
}

func errorCodes(errs []AnalysisError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

var hierarchyProject = map[string]string{
	"A.java": "class A extends B implements I {}",
	"B.java": "class B {}",
	"C.java": "class C extends B {}",
	"I.java": "interface I {}",
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestNew_InvalidDatabasePath(t *testing.T) {
	t.Parallel()
	_, err := New(WithDatabase("/nonexistent/dir/db.sqlite"))
	require.Error(t, err)
}

func TestNew_CreatesStore(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithDatabase(filepath.Join(t.TempDir(), "arbor.db")))
	require.NotNil(t, e.Store())

	roots, err := e.Store().Roots()
	require.NoError(t, err)
	assert.Empty(t, roots)

	assert.Nil(t, newTestEngine(t).Store())
}

func TestEngine_NotStarted(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	_, err := e.GetErrors(testContext(t), "/src/A.java")
	var serr *protocol.ServerError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, protocol.EngineNotStarted, serr.Code)

	assert.Error(t, e.SetAnalysisRoots([]string{"/src"}, nil))
}

func TestEngine_Close(t *testing.T) {
	t.Parallel()
	e, err := New(WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, e.Start())
	require.NoError(t, e.Start(), "second start is a no-op")

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.GetErrors(context.Background(), "/src/A.java")
	assert.ErrorIs(t, err, queue.ErrClosed)
	assert.ErrorIs(t, e.Start(), queue.ErrClosed)
}

// =============================================================================
// Analysis
// =============================================================================

func TestEngine_AnalyzesRoot(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	root := writeFiles(t, t.TempDir(), map[string]string{
		"src/A.java":     "class A extends B {}",
		"src/B.java":     "class B {}",
		"src/C.java":     "class C extends Missing {}",
		"src/notes.txt":  "not source",
		"build/Gen.java": "class Gen extends Nowhere {}",
	})
	e := startTestEngine(t, WithListener(rec))
	analyzeRoot(t, e, root)

	a := filepath.Join(root, "src", "A.java")
	c := filepath.Join(root, "src", "C.java")

	errs, ok := rec.lastErrors(a)
	require.True(t, ok)
	assert.Empty(t, errs)

	errs, ok = rec.lastErrors(c)
	require.True(t, ok)
	assert.Equal(t, []string{resolve.CodeUndefinedClass}, errorCodes(errs))

	_, ok = rec.lastErrors(filepath.Join(root, "build", "Gen.java"))
	assert.False(t, ok, "build directories are excluded by default")

	got, err := e.GetErrors(testContext(t), c)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Undefined class 'Missing'", got[0].Message)
	assert.Equal(t, c, got[0].Location.File)

	rec.mu.Lock()
	assert.Empty(t, rec.highlights, "highlights need a subscription")
	rec.mu.Unlock()
}

func TestEngine_GetErrorsOutsideRoots(t *testing.T) {
	t.Parallel()
	root := writeFiles(t, t.TempDir(), map[string]string{"A.java": "class A {}"})
	e := startTestEngine(t)
	analyzeRoot(t, e, root)

	outside := filepath.Join(t.TempDir(), "Other.java")
	_, err := e.GetErrors(testContext(t), outside)
	var serr *protocol.ServerError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, protocol.InvalidContextID, serr.Code)
	assert.Equal(t, "Cannot find a context with the id '"+outside+"'", serr.Error())
}

func TestEngine_ExcludedPaths(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	root := writeFiles(t, t.TempDir(), map[string]string{
		"A.java":        "class A {}",
		"vendor/V.java": "class V {}",
	})
	e := startTestEngine(t, WithListener(rec))
	require.NoError(t, e.SetAnalysisRoots([]string{root}, []string{filepath.Join(root, "vendor")}))
	require.NoError(t, e.WaitIdle(testContext(t)))

	assert.Equal(t, []string{filepath.Join(root, "A.java")}, rec.notified())

	_, err := e.GetErrors(testContext(t), filepath.Join(root, "vendor", "V.java"))
	var serr *protocol.ServerError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, protocol.InvalidContextID, serr.Code)
}

func TestEngine_RemovingRootForgetsFiles(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	root := writeFiles(t, t.TempDir(), map[string]string{"A.java": "class A extends Missing {}"})
	a := filepath.Join(root, "A.java")
	e := startTestEngine(t, WithListener(rec))
	analyzeRoot(t, e, root)

	errs, _ := rec.lastErrors(a)
	require.Len(t, errs, 1)

	require.NoError(t, e.SetAnalysisRoots(nil, nil))
	require.NoError(t, e.WaitIdle(testContext(t)))

	errs, ok := rec.lastErrors(a)
	require.True(t, ok)
	assert.Empty(t, errs, "forgotten files are cleared")

	stats, err := e.Stats(testContext(t))
	require.NoError(t, err)
	assert.Zero(t, stats.Roots)
	assert.Zero(t, stats.Files)
}

func TestEngine_WithLanguages(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	root := writeFiles(t, t.TempDir(), map[string]string{
		"A.java": "class A extends Missing {}",
		"b.ts":   "export class B {}",
	})
	e := startTestEngine(t, WithListener(rec), WithLanguages("typescript"))
	analyzeRoot(t, e, root)

	assert.Equal(t, []string{filepath.Join(root, "b.ts")}, rec.notified())

	errs, err := e.GetErrors(testContext(t), filepath.Join(root, "A.java"))
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestEngine_SerialParsing(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	root := writeFiles(t, t.TempDir(), hierarchyProject)
	e := startTestEngine(t, WithListener(rec), WithParallel(false))
	analyzeRoot(t, e, root)

	assert.Len(t, rec.notified(), len(hierarchyProject))
	for name := range hierarchyProject {
		errs, ok := rec.lastErrors(filepath.Join(root, name))
		require.True(t, ok, name)
		assert.Empty(t, errs, name)
	}
}

func TestEngine_PriorityFilesGoFirst(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	root := writeFiles(t, t.TempDir(), map[string]string{
		"A.java": "class A {}",
		"B.java": "class B {}",
		"Z.java": "class Z {}",
	})
	z := filepath.Join(root, "Z.java")
	e := startTestEngine(t, WithListener(rec))
	require.NoError(t, e.SetPriorityFiles([]string{z}))
	analyzeRoot(t, e, root)

	order := rec.notified()
	require.Len(t, order, 3)
	assert.Equal(t, z, order[0])
}

func TestEngine_LintRules(t *testing.T) {
	t.Parallel()
	root := writeFiles(t, t.TempDir(), map[string]string{"A.java": "class A {}"})
	rulesFS := fstest.MapFS{
		"every_class.rule.risor": &fstest.MapFile{Data: []byte(`
for _, c := range classes {
	report({"code": "seen", "message": "class seen", "offset": c["offset"], "length": c["length"]})
}
`)},
	}
	e := startTestEngine(t, WithRulesFS(rulesFS))
	analyzeRoot(t, e, root)

	errs, err := e.GetErrors(testContext(t), filepath.Join(root, "A.java"))
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "seen", errs[0].Code)
	assert.Equal(t, resolve.Lint, errs[0].Type)
	assert.Equal(t, 6, errs[0].Location.Offset)
}

func TestEngine_BuiltinRules(t *testing.T) {
	t.Parallel()
	root := writeFiles(t, t.TempDir(), map[string]string{
		"Shape.java": "abstract class Shape {}",
	})
	e := startTestEngine(t)
	analyzeRoot(t, e, root)

	errs, err := e.GetErrors(testContext(t), filepath.Join(root, "Shape.java"))
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "empty_abstract_class", errs[0].Code)
	assert.Equal(t, resolve.SeverityInfo, errs[0].Severity)
}

// =============================================================================
// Content changes
// =============================================================================

func TestEngine_OverlayChangeReresolvesDependents(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	root := writeFiles(t, t.TempDir(), map[string]string{
		"A.java": "class A extends B {}",
		"B.java": "class B {}",
	})
	a := filepath.Join(root, "A.java")
	b := filepath.Join(root, "B.java")
	e := startTestEngine(t, WithListener(rec))
	analyzeRoot(t, e, root)

	errs, _ := rec.lastErrors(a)
	require.Empty(t, errs)

	require.NoError(t, e.UpdateContent(map[string]ContentChange{b: AddContent("class Bee {}")}))
	require.NoError(t, e.WaitIdle(testContext(t)))

	errs, _ = rec.lastErrors(a)
	require.Len(t, errs, 1)
	assert.Equal(t, resolve.CodeUndefinedClass, errs[0].Code)

	require.NoError(t, e.UpdateContent(map[string]ContentChange{b: RemoveContent()}))
	require.NoError(t, e.WaitIdle(testContext(t)))

	errs, _ = rec.lastErrors(a)
	assert.Empty(t, errs, "reverting to disk content declares B again")
}

func TestEngine_OverlayEdits(t *testing.T) {
	t.Parallel()
	root := writeFiles(t, t.TempDir(), map[string]string{"A.java": "class A {}"})
	a := filepath.Join(root, "A.java")
	e := startTestEngine(t)
	analyzeRoot(t, e, root)

	err := e.UpdateContent(map[string]ContentChange{a: ChangeContent(Edit{Offset: 0, Length: 1})})
	require.Error(t, err, "no overlay to edit")

	require.NoError(t, e.UpdateContent(map[string]ContentChange{a: AddContent("class A {}")}))
	require.NoError(t, e.UpdateContent(map[string]ContentChange{
		a: ChangeContent(Edit{Offset: 8, Length: 0, Replacement: " extends Gone"}),
	}))

	errs, err := e.GetErrors(testContext(t), a)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "Undefined class 'Gone'", errs[0].Message)
}

func TestEngine_NewFileDeclaresMissingName(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	root := writeFiles(t, t.TempDir(), map[string]string{"A.java": "class A extends B {}"})
	a := filepath.Join(root, "A.java")
	b := filepath.Join(root, "B.java")
	e := startTestEngine(t, WithListener(rec))
	analyzeRoot(t, e, root)

	errs, _ := rec.lastErrors(a)
	require.Len(t, errs, 1)

	require.NoError(t, e.UpdateContent(map[string]ContentChange{b: AddContent("class B {}")}))
	require.NoError(t, e.WaitIdle(testContext(t)))
	errs, _ = rec.lastErrors(a)
	assert.Empty(t, errs)

	// B.java exists only as an overlay, so removing it deletes the file.
	require.NoError(t, e.UpdateContent(map[string]ContentChange{b: RemoveContent()}))
	require.NoError(t, e.WaitIdle(testContext(t)))

	errs, ok := rec.lastErrors(b)
	require.True(t, ok)
	assert.Empty(t, errs)
	errs, _ = rec.lastErrors(a)
	require.Len(t, errs, 1)
	assert.Equal(t, resolve.CodeUndefinedClass, errs[0].Code)
}

func TestEngine_UnchangedContentIsNotReanalyzed(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	root := writeFiles(t, t.TempDir(), map[string]string{"A.java": "class A {}"})
	a := filepath.Join(root, "A.java")
	e := startTestEngine(t, WithListener(rec))
	analyzeRoot(t, e, root)
	require.Equal(t, 1, rec.calls(a))

	require.NoError(t, e.UpdateContent(map[string]ContentChange{a: AddContent("class A {}")}))
	require.NoError(t, e.WaitIdle(testContext(t)))
	assert.Equal(t, 1, rec.calls(a), "same content, same stamp")
}

func TestEngine_Reanalyze(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	root := writeFiles(t, t.TempDir(), hierarchyProject)
	a := filepath.Join(root, "A.java")
	e := startTestEngine(t, WithListener(rec))
	analyzeRoot(t, e, root)
	require.Equal(t, 1, rec.calls(a))

	require.NoError(t, e.Reanalyze())
	require.NoError(t, e.WaitIdle(testContext(t)))
	assert.Equal(t, 2, rec.calls(a))

	stats, err := e.Stats(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Files)
	assert.Equal(t, 4, stats.Classes)
	assert.Positive(t, stats.Relationships)
}

// =============================================================================
// Subscriptions
// =============================================================================

func TestEngine_SubscriptionsResendResults(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	root := writeFiles(t, t.TempDir(), map[string]string{"A.java": "class A { String name; }"})
	a := filepath.Join(root, "A.java")
	e := startTestEngine(t, WithListener(rec))
	analyzeRoot(t, e, root)

	require.NoError(t, e.SetSubscriptions(map[Service][]string{
		ServiceHighlights: {a},
		ServiceOutline:    {a},
	}))
	require.NoError(t, e.WaitIdle(testContext(t)))

	rec.mu.Lock()
	assert.NotEmpty(t, rec.highlights[a])
	require.NotNil(t, rec.outlines[a])
	assert.Empty(t, rec.navigation)
	rec.mu.Unlock()

	require.NoError(t, e.UpdateContent(map[string]ContentChange{a: AddContent("class A { int count; }")}))
	require.NoError(t, e.WaitIdle(testContext(t)))

	rec.mu.Lock()
	outline := rec.outlines[a]
	rec.mu.Unlock()
	require.NotNil(t, outline)
	require.Len(t, outline.Children, 1)
	require.Len(t, outline.Children[0].Children, 1)
	assert.Equal(t, "count", outline.Children[0].Children[0].Name)
}

func TestEngine_UnknownServiceLeavesSubscriptions(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	root := writeFiles(t, t.TempDir(), map[string]string{"A.java": "class A {}"})
	a := filepath.Join(root, "A.java")
	e := startTestEngine(t, WithListener(rec))
	analyzeRoot(t, e, root)

	require.NoError(t, e.SetSubscriptions(map[Service][]string{ServiceNavigation: {a}}))
	err := e.SetSubscriptions(map[Service][]string{"FOLDING": {a}})
	var serr *protocol.ServerError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, protocol.UnknownService, serr.Code)

	require.NoError(t, e.Reanalyze())
	require.NoError(t, e.WaitIdle(testContext(t)))

	rec.mu.Lock()
	_, ok := rec.navigation[a]
	rec.mu.Unlock()
	assert.True(t, ok, "navigation subscription survives the rejected update")
}

// =============================================================================
// Persistence
// =============================================================================

func TestEngine_SaveWithoutDatabase(t *testing.T) {
	t.Parallel()
	e := startTestEngine(t)
	require.Error(t, e.Save(testContext(t)))
}

func TestEngine_SaveAndRestore(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "arbor.db")
	root := writeFiles(t, t.TempDir(), hierarchyProject)
	a := filepath.Join(root, "A.java")
	b := filepath.Join(root, "B.java")

	first, err := New(WithDatabase(dbPath), WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, first.Start())
	analyzeRoot(t, first, root)
	require.NoError(t, first.Save(testContext(t)))

	files, err := first.Store().FilesByRoot(root)
	require.NoError(t, err)
	assert.Len(t, files, 4)
	refs, err := first.Store().ReferencingSources(b)
	require.NoError(t, err)
	assert.Equal(t, []string{a, filepath.Join(root, "C.java")}, refs)
	require.NoError(t, first.Close())

	// The index is restored before any root is analyzed.
	second := startTestEngine(t, WithDatabase(dbPath))
	stats, err := second.Stats(testContext(t))
	require.NoError(t, err)
	assert.Positive(t, stats.Relationships)
	assert.Zero(t, stats.Files)

	analyzeRoot(t, second, root)
	errs, err := second.GetErrors(testContext(t), a)
	require.NoError(t, err)
	assert.Empty(t, errs)

	// Different rules make the saved state unusable.
	rulesFS := fstest.MapFS{"noop.rule.risor": &fstest.MapFile{Data: []byte(`x := 1`)}}
	require.NoError(t, second.Close())
	third := startTestEngine(t, WithDatabase(dbPath), WithRulesFS(rulesFS))
	stats, err = third.Stats(testContext(t))
	require.NoError(t, err)
	assert.Zero(t, stats.Relationships)
}

func TestEngine_SaveDropsRemovedRoots(t *testing.T) {
	t.Parallel()
	root := writeFiles(t, t.TempDir(), map[string]string{"A.java": "class A {}"})
	e := startTestEngine(t, WithDatabase(filepath.Join(t.TempDir(), "arbor.db")))
	analyzeRoot(t, e, root)
	require.NoError(t, e.Save(testContext(t)))

	roots, err := e.Store().Roots()
	require.NoError(t, err)
	assert.Equal(t, []string{root}, roots)

	require.NoError(t, e.SetAnalysisRoots(nil, nil))
	require.NoError(t, e.Save(testContext(t)))
	roots, err = e.Store().Roots()
	require.NoError(t, err)
	assert.Empty(t, roots)
}

// =============================================================================
// Sources
// =============================================================================

func TestOverlayProvider(t *testing.T) {
	t.Parallel()
	dir := writeFiles(t, t.TempDir(), map[string]string{"A.java": "class A {}"})
	path := filepath.Join(dir, "A.java")
	p := NewOverlayProvider(nil)

	disk, err := p.Contents(path)
	require.NoError(t, err)
	assert.Equal(t, "class A {}", string(disk.Content))

	p.Add(path, "class B {}")
	assert.True(t, p.HasOverlay(path))
	over, err := p.Contents(path)
	require.NoError(t, err)
	assert.Equal(t, "class B {}", string(over.Content))
	assert.NotEqual(t, disk.Stamp, over.Stamp)

	require.NoError(t, p.Change(path,
		Edit{Offset: 6, Length: 1, Replacement: "Bee"},
		Edit{Offset: 0, Length: 5, Replacement: "interface"},
	))
	over, err = p.Contents(path)
	require.NoError(t, err)
	assert.Equal(t, "interface Bee {}", string(over.Content))

	err = p.Change(path, Edit{Offset: 3, Length: 1, Replacement: "x"}, Edit{Offset: 100, Length: 1})
	require.Error(t, err)
	over, _ = p.Contents(path)
	assert.Equal(t, "interface Bee {}", string(over.Content), "failed changes apply nothing")

	for _, ed := range []Edit{
		{Offset: 1, Length: math.MaxInt},
		{Offset: math.MaxInt, Length: 1},
		{Offset: 17, Length: 0},
	} {
		assert.Error(t, p.Change(path, ed), "%+v", ed)
	}
	require.NoError(t, p.Change(path, Edit{Offset: 16, Length: 0, Replacement: "\n"}))
	over, _ = p.Contents(path)
	assert.Equal(t, "interface Bee {}\n", string(over.Content))

	p.Remove(path)
	again, err := p.Contents(path)
	require.NoError(t, err)
	assert.Equal(t, disk.Stamp, again.Stamp, "stamps hash content")

	_, err = p.Contents(filepath.Join(dir, "Missing.java"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
