package arbor

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/jward/arbor/internal/config"
	"github.com/jward/arbor/internal/index"
	"github.com/jward/arbor/internal/parse"
	"github.com/jward/arbor/internal/protocol"
	"github.com/jward/arbor/internal/queue"
	"github.com/jward/arbor/internal/resolve"
	"github.com/jward/arbor/internal/rules"
	"github.com/jward/arbor/internal/store"
	"github.com/jward/arbor/internal/types"
)

// rulesHashKey is the metadata key recording which rule scripts produced
// the persisted state.
const rulesHashKey = "rules_hash"

// Engine orchestrates the arbor pipeline: root discovery, change
// detection, parsing, resolution, lint rules and query access. Every
// operation that touches the model runs on one worker goroutine.
type Engine struct {
	cfg       *config.Config
	languages map[string]bool // nil means the configured languages
	dbPath    string
	rulesDir  string
	rulesFS   fs.FS
	listener  Listener
	provider  SourceProvider
	logger    *log.Logger

	// useParallel fans parsing of a batch out over all CPUs.
	useParallel bool

	store     *store.Store
	rules     *rules.Runtime
	rulesHash string
	parser    *parse.Parser
	overlay   *OverlayProvider

	mu      sync.Mutex
	started bool
	closed  bool
	queue   *queue.Queue
	disp    *dispatcher
	cancel  context.CancelFunc
	done    chan struct{}

	// Owned by the worker.
	decls    *resolve.Declarations
	resolver *resolve.Resolver
	index    *index.Index
	roots    map[string]*root
	files    map[string]*fileState
	priority map[string]bool
	subs     map[Service]map[string]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages restricts which languages the Engine will analyze.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		e.languages = make(map[string]bool, len(languages))
		for _, lang := range languages {
			e.languages[lang] = true
		}
	}
}

// WithDatabase persists analysis state to a SQLite database at path. The
// parent directory must exist.
func WithDatabase(path string) Option {
	return func(e *Engine) {
		e.dbPath = path
	}
}

// WithRulesFS loads lint rules from fsys instead of the built-in rules.
func WithRulesFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.rulesFS = fsys
	}
}

// WithRulesDir loads lint rules from a directory on disk instead of the
// built-in rules. WithRulesFS takes precedence.
func WithRulesDir(dir string) Option {
	return func(e *Engine) {
		e.rulesDir = dir
	}
}

// WithListener sets the receiver of analysis notifications.
func WithListener(l Listener) Option {
	return func(e *Engine) {
		e.listener = l
	}
}

// WithSourceProvider reads files through p instead of from disk. Content
// overlays are always layered on top.
func WithSourceProvider(p SourceProvider) Option {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithLogger routes warnings from the engine and the rule scripts to l.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithParallel controls parallel parsing. When true (default), each
// analysis batch is parsed on all CPUs before being declared and resolved
// serially. Set to false to parse one file at a time.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithConfig applies project settings: include and exclude patterns,
// languages, the rule depth limit and the parse cache size.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// New creates an Engine. It opens and migrates the database when
// WithDatabase is given. Call Start before using it.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:         config.Default(),
		listener:    nopListener{},
		logger:      log.New(os.Stderr, "arbor: ", 0),
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("arbor: %w", err)
	}

	parser, err := parse.NewParser(e.cfg.Cache.ParseCacheSize)
	if err != nil {
		return nil, fmt.Errorf("arbor: create parser: %w", err)
	}
	e.parser = parser

	rulesOpts := []rules.Option{
		rules.WithLogger(e.logger),
		rules.WithMaxHierarchyDepth(e.cfg.Rules.MaxHierarchyDepth),
	}
	switch {
	case e.rulesFS != nil:
		rulesOpts = append(rulesOpts, rules.WithFS(e.rulesFS))
	case e.rulesDir == "":
		rulesOpts = append(rulesOpts, rules.WithFS(rules.Builtin()))
	}
	e.rules = rules.New(e.rulesDir, rulesOpts...)
	e.rulesHash = e.rules.Hash()
	e.overlay = NewOverlayProvider(e.provider)

	e.decls = resolve.NewDeclarations(types.NewUniverse())
	e.index = index.New()
	e.resolver = resolve.NewResolver(e.decls, e.index)
	e.roots = make(map[string]*root)
	e.files = make(map[string]*fileState)
	e.priority = make(map[string]bool)
	e.subs = make(map[Service]map[string]bool)

	if e.dbPath != "" {
		s, err := store.NewStore(e.dbPath)
		if err != nil {
			return nil, fmt.Errorf("arbor: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("arbor: migrate: %w", err)
		}
		e.store = s
	}
	return e, nil
}

// Start restores the persisted relationship index, when it was written by
// the current rules, and starts the worker and notification goroutines.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("arbor: start: %w", queue.ErrClosed)
	}
	if e.started {
		return nil
	}
	e.restoreIndex()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.queue = queue.New()
	e.disp = newDispatcher(e.listener)
	e.done = make(chan struct{})
	go e.disp.run()
	go e.run(ctx)
	e.started = true
	return nil
}

// Close stops the worker, delivers pending notifications and releases the
// database. Queued operations are discarded.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	started := e.started
	e.mu.Unlock()

	if started {
		e.cancel()
		e.queue.Close()
		<-e.done
		e.disp.stop()
	}
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Store returns the underlying Store, or nil without WithDatabase.
func (e *Engine) Store() *store.Store {
	return e.store
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	for {
		op, err := e.queue.Take(ctx)
		if err != nil {
			return
		}
		e.perform(ctx, op.(operation))
	}
}

func (e *Engine) perform(ctx context.Context, op operation) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("warning: %T panicked: %v", op, r)
		}
	}()
	op.perform(ctx, e)
}

// enqueue adds op to the queue of a started engine.
func (e *Engine) enqueue(op operation) error {
	e.mu.Lock()
	started, closed := e.started, e.closed
	e.mu.Unlock()
	if closed {
		return queue.ErrClosed
	}
	if !started {
		return protocol.NewServerError(protocol.EngineNotStarted)
	}
	return e.queue.Add(op)
}

// submit runs fn on the worker at priority p and waits for it to finish.
func (e *Engine) submit(ctx context.Context, p queue.Priority, fn func(ctx context.Context)) error {
	finished := make(chan struct{})
	op := &funcOp{priority: p, fn: func(ctx context.Context) {
		defer close(finished)
		fn(ctx)
	}}
	if err := e.enqueue(op); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-e.done:
		return queue.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetAnalysisRoots replaces the analyzed directories. Files under an
// excluded path are not analyzed even when they lie under an included one.
// Roots no longer included are forgotten and their queued work dropped.
func (e *Engine) SetAnalysisRoots(included, excluded []string) error {
	inc, err := absPaths(included)
	if err != nil {
		return err
	}
	exc, err := absPaths(excluded)
	if err != nil {
		return err
	}
	return e.enqueue(&funcOp{priority: queue.ContextChange, fn: func(ctx context.Context) {
		e.applyRoots(inc, exc)
	}})
}

// UpdateContent applies content overlays and schedules analysis of the
// changed files. Overlays are applied before UpdateContent returns; a
// change whose edits are out of range is skipped and reported.
func (e *Engine) UpdateContent(changes map[string]ContentChange) error {
	paths := make([]string, 0, len(changes))
	for p := range changes {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	var errs []error
	var changed []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("arbor: %s: %w", p, err))
			continue
		}
		if err := e.overlay.apply(abs, changes[p]); err != nil {
			errs = append(errs, err)
			continue
		}
		changed = append(changed, abs)
	}
	if len(changed) > 0 {
		err := e.enqueue(&funcOp{priority: queue.ContextChange, fn: func(ctx context.Context) {
			e.scheduleFiles(changed)
		}})
		if err != nil {
			return err
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("content update had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// SetPriorityFiles replaces the set of files analyzed ahead of the rest.
func (e *Engine) SetPriorityFiles(files []string) error {
	abs, err := absPaths(files)
	if err != nil {
		return err
	}
	return e.enqueue(&funcOp{priority: queue.ContextChange, fn: func(ctx context.Context) {
		e.applyPriority(abs)
	}})
}

// SetSubscriptions replaces the per-service file subscriptions. Newly
// subscribed files that are already analyzed get their results sent. An
// unknown service is an error and leaves the subscriptions unchanged.
func (e *Engine) SetSubscriptions(subs map[Service][]string) error {
	next := make(map[Service]map[string]bool, len(subs))
	for s, files := range subs {
		if !s.valid() {
			return protocol.NewServerError(protocol.UnknownService, string(s))
		}
		abs, err := absPaths(files)
		if err != nil {
			return err
		}
		set := make(map[string]bool, len(abs))
		for _, f := range abs {
			set[f] = true
		}
		next[s] = set
	}
	return e.enqueue(&funcOp{priority: queue.ContextChange, fn: func(ctx context.Context) {
		e.applySubscriptions(next)
	}})
}

// Reanalyze discards every cached result and analyzes all roots again.
func (e *Engine) Reanalyze() error {
	return e.enqueue(&funcOp{priority: queue.ContextChange, fn: func(ctx context.Context) {
		e.reanalyze()
	}})
}

// WaitIdle blocks until the queue has drained and every notification
// computed so far has been delivered.
func (e *Engine) WaitIdle(ctx context.Context) error {
	for {
		if err := e.submit(ctx, queue.Indexing, func(context.Context) {}); err != nil {
			return err
		}
		if e.queue.IsEmpty() {
			break
		}
	}
	return e.disp.flush(ctx)
}

// Save persists each root's resolved libraries, per-file records and the
// relationship index. Unresolved libraries are not written.
func (e *Engine) Save(ctx context.Context) error {
	if e.store == nil {
		return fmt.Errorf("arbor: save: no database configured")
	}
	var err error
	if serr := e.submit(ctx, queue.Interactive, func(context.Context) { err = e.save() }); serr != nil {
		return serr
	}
	return err
}

func absPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("arbor: %s: %w", p, err)
		}
		out = append(out, abs)
	}
	return out, nil
}
