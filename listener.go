package arbor

import (
	"context"
	"sync"
)

// Listener receives analysis results. Calls are made from a single
// goroutine, in the order results were computed, so results for one file
// never arrive out of order.
type Listener interface {
	ComputedErrors(file string, errs []AnalysisError)
	ComputedHighlights(file string, regions []HighlightRegion)
	ComputedOutline(file string, outline *Outline)
	ComputedNavigation(file string, regions []NavigationRegion)
}

// Service names a kind of per-file result a client can subscribe to.
// Errors are not a service: they are always delivered.
type Service string

const (
	ServiceHighlights Service = "HIGHLIGHTS"
	ServiceOutline    Service = "OUTLINE"
	ServiceNavigation Service = "NAVIGATION"
)

// Services returns every known service.
func Services() []Service {
	return []Service{ServiceHighlights, ServiceOutline, ServiceNavigation}
}

func (s Service) valid() bool {
	switch s {
	case ServiceHighlights, ServiceOutline, ServiceNavigation:
		return true
	}
	return false
}

type nopListener struct{}

func (nopListener) ComputedErrors(string, []AnalysisError)        {}
func (nopListener) ComputedHighlights(string, []HighlightRegion)  {}
func (nopListener) ComputedOutline(string, *Outline)              {}
func (nopListener) ComputedNavigation(string, []NavigationRegion) {}

// dispatcher delivers notifications to the listener on its own goroutine.
// Posting never blocks the worker: pending calls queue without bound.
type dispatcher struct {
	listener Listener

	mu      sync.Mutex
	pending []func(Listener)
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newDispatcher(l Listener) *dispatcher {
	return &dispatcher{
		listener: l,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (d *dispatcher) post(fn func(Listener)) {
	d.mu.Lock()
	d.pending = append(d.pending, fn)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// run delivers posted calls until stop. Calls posted before stop are still
// delivered.
func (d *dispatcher) run() {
	defer close(d.stopped)
	for {
		select {
		case <-d.wake:
			d.drain()
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *dispatcher) drain() {
	for {
		d.mu.Lock()
		batch := d.pending
		d.pending = nil
		d.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn(d.listener)
		}
	}
}

// flush waits until every call posted so far has been delivered.
func (d *dispatcher) flush(ctx context.Context) error {
	delivered := make(chan struct{})
	d.post(func(Listener) { close(delivered) })
	select {
	case <-delivered:
		return nil
	case <-d.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *dispatcher) stop() {
	d.once.Do(func() { close(d.done) })
	<-d.stopped
}
