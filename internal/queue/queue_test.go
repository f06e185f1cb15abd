package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testOp struct {
	name     string
	priority Priority
	context  string
}

func (o *testOp) Priority() Priority { return o.priority }
func (o *testOp) ContextID() string  { return o.context }

// resolveOp merges any other resolveOp by widening its file set.
type resolveOp struct {
	files []string
}

func (o *resolveOp) Priority() Priority { return Analysis }

func (o *resolveOp) Merge(other Operation) bool {
	r, ok := other.(*resolveOp)
	if !ok {
		return false
	}
	o.files = append(o.files, r.files...)
	return true
}

func takeNow(t *testing.T, q *Queue) Operation {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	op, err := q.Take(ctx)
	require.NoError(t, err)
	return op
}

// =============================================================================
// Ordering
// =============================================================================

func TestTake_FIFOWithinTier(t *testing.T) {
	t.Parallel()
	q := New()
	a := &testOp{name: "a", priority: Analysis}
	b := &testOp{name: "b", priority: Analysis}
	require.NoError(t, q.Add(a))
	require.NoError(t, q.Add(b))

	assert.Same(t, a, takeNow(t, q))
	assert.Same(t, b, takeNow(t, q))
	assert.True(t, q.IsEmpty())
}

func TestTake_HigherTierFirst(t *testing.T) {
	t.Parallel()
	q := New()
	low := &testOp{name: "low", priority: Indexing}
	mid := &testOp{name: "mid", priority: Analysis}
	high := &testOp{name: "high", priority: Interactive}
	require.NoError(t, q.Add(low))
	require.NoError(t, q.Add(mid))
	require.NoError(t, q.Add(high))
	assert.Equal(t, 3, q.Len())

	assert.Same(t, high, takeNow(t, q))
	assert.Same(t, mid, takeNow(t, q))
	assert.Same(t, low, takeNow(t, q))
}

func TestAdd_InvalidPriorityPanics(t *testing.T) {
	t.Parallel()
	q := New()
	assert.Panics(t, func() { _ = q.Add(&testOp{priority: numPriorities}) })
}

func TestPriority_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "interactive", Interactive.String())
	assert.Equal(t, "indexing", Indexing.String())
	assert.Equal(t, "Priority(9)", Priority(9).String())
}

// =============================================================================
// Merging
// =============================================================================

func TestAdd_MergesIntoQueuedOperation(t *testing.T) {
	t.Parallel()
	q := New()
	first := &resolveOp{files: []string{"a.java"}}
	require.NoError(t, q.Add(first))
	require.NoError(t, q.Add(&resolveOp{files: []string{"b.java"}}))

	assert.Equal(t, 1, q.Len())
	op := takeNow(t, q)
	assert.Same(t, first, op)
	assert.Equal(t, []string{"a.java", "b.java"}, first.files)
}

func TestAdd_NonMergeableAppends(t *testing.T) {
	t.Parallel()
	q := New()
	require.NoError(t, q.Add(&resolveOp{files: []string{"a.java"}}))
	require.NoError(t, q.Add(&testOp{priority: Analysis}))
	assert.Equal(t, 2, q.Len())
}

// =============================================================================
// Blocking
// =============================================================================

func TestTake_BlocksUntilAdd(t *testing.T) {
	t.Parallel()
	q := New()
	want := &testOp{name: "late", priority: Analysis}

	got := make(chan Operation, 1)
	go func() {
		op, err := q.Take(context.Background())
		if err == nil {
			got <- op
		}
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("Take returned before anything was queued")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Add(want))
	select {
	case op := <-got:
		assert.Same(t, want, op)
	case <-time.After(time.Second):
		t.Fatal("Take did not wake after Add")
	}
}

func TestTake_ContextCancel(t *testing.T) {
	t.Parallel()
	q := New()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := q.Take(ctx)
		errc <- err
	}()
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Take did not return after cancel")
	}
}

func TestClose_WakesTakeAndRejectsAdd(t *testing.T) {
	t.Parallel()
	q := New()

	errc := make(chan error, 1)
	go func() {
		_, err := q.Take(context.Background())
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Take did not return after Close")
	}
	assert.ErrorIs(t, q.Add(&testOp{priority: Analysis}), ErrClosed)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	t.Parallel()
	q := New()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				_ = q.Add(&testOp{priority: Analysis})
			}
		}()
	}

	taken := 0
	for taken < 100 {
		takeNow(t, q)
		taken++
	}
	wg.Wait()
	assert.True(t, q.IsEmpty())
}

// =============================================================================
// RemoveByContext
// =============================================================================

func TestRemoveByContext(t *testing.T) {
	t.Parallel()
	q := New()
	keep := &testOp{name: "keep", priority: Analysis, context: "/b"}
	require.NoError(t, q.Add(&testOp{priority: Interactive, context: "/a"}))
	require.NoError(t, q.Add(&testOp{priority: Analysis, context: "/a"}))
	require.NoError(t, q.Add(keep))
	require.NoError(t, q.Add(&resolveOp{}))

	assert.Equal(t, 2, q.RemoveByContext("/a"))
	assert.Equal(t, 2, q.Len())
	assert.Same(t, keep, takeNow(t, q))
	assert.Equal(t, 0, q.RemoveByContext("/missing"))
}
