// Package queue implements the priority-tiered operation queue drained by
// the engine's single analysis worker.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Add and Take once the queue is closed.
var ErrClosed = errors.New("queue: closed")

// Priority is an operation tier. Lower values drain first.
type Priority int

const (
	// Interactive answers a query a user is waiting on.
	Interactive Priority = iota
	// ContextChange applies root, content and priority-file changes.
	ContextChange
	// PriorityAnalysis analyzes files the user has asked to prioritize.
	PriorityAnalysis
	// Analysis analyzes everything else.
	Analysis
	// Indexing restores cached state for unchanged files.
	Indexing

	numPriorities
)

var priorityNames = [numPriorities]string{"interactive", "context-change", "priority-analysis", "analysis", "indexing"}

func (p Priority) String() string {
	if p >= 0 && p < numPriorities {
		return priorityNames[p]
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// Operation is a unit of queued work.
type Operation interface {
	Priority() Priority
}

// Mergeable is an operation that can absorb an equivalent operation
// queued after it. Merge returns true when other's intent has been folded
// into the receiver and other should be dropped.
type Mergeable interface {
	Operation
	Merge(other Operation) bool
}

// ContextOperation is an operation bound to one analysis context.
type ContextOperation interface {
	Operation
	ContextID() string
}

// Queue is a set of FIFO tiers guarded by one mutex and one condition. Any
// number of goroutines may Add; one consumer calls Take.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tiers  [numPriorities][]Operation
	closed bool
}

func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add enqueues op at the tail of its tier, unless op is Mergeable and an
// already queued Mergeable in the same tier absorbs it.
func (q *Queue) Add(op Operation) error {
	p := op.Priority()
	if p < 0 || p >= numPriorities {
		panic(fmt.Sprintf("queue: invalid priority %d for %T", int(p), op))
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if _, ok := op.(Mergeable); ok {
		for _, queued := range q.tiers[p] {
			if m, ok := queued.(Mergeable); ok && m.Merge(op) {
				return nil
			}
		}
	}
	q.tiers[p] = append(q.tiers[p], op)
	q.cond.Signal()
	return nil
}

// Take removes and returns the head of the highest-priority non-empty tier,
// blocking while the queue is empty. It returns ctx.Err() when ctx is
// cancelled and ErrClosed after Close.
func (q *Queue) Take(ctx context.Context) (Operation, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if op := q.popLocked(); op != nil {
			return op, nil
		}
		if q.closed {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.cond.Wait()
	}
}

func (q *Queue) popLocked() Operation {
	for p := range q.tiers {
		if tier := q.tiers[p]; len(tier) > 0 {
			op := tier[0]
			tier[0] = nil
			q.tiers[p] = tier[1:]
			return op
		}
	}
	return nil
}

// RemoveByContext drops every queued ContextOperation for contextID and
// returns how many were removed.
func (q *Queue) RemoveByContext(contextID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for p, tier := range q.tiers {
		kept := tier[:0]
		for _, op := range tier {
			if c, ok := op.(ContextOperation); ok && c.ContextID() == contextID {
				removed++
				continue
			}
			kept = append(kept, op)
		}
		clear(tier[len(kept):])
		q.tiers[p] = kept
	}
	return removed
}

// IsEmpty reports whether no operation is queued.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of queued operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, tier := range q.tiers {
		n += len(tier)
	}
	return n
}

// Close wakes any blocked Take and rejects further Adds. Queued operations
// are discarded.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for p := range q.tiers {
		q.tiers[p] = nil
	}
	q.cond.Broadcast()
}
