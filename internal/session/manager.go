package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chtl/internal/cache"
	"chtl/internal/compiler"
	"chtl/internal/diag"
)

// Options configures a Manager.
type Options struct {
	Runner    Runner
	Source    DocumentSource
	Publisher Publisher
	// OnCompilerMissing is called when the compiler binary cannot be found.
	OnCompilerMissing func(err *compiler.SpawnError)
	// Cache, when set, short-circuits runs for content already compiled.
	Cache *cache.Store
	// Delay is the debounce delay; zero selects DefaultDelay.
	Delay time.Duration
	// MaxDiagnostics caps the diagnostics published per document; zero means
	// unlimited.
	MaxDiagnostics int
	// Args are the caller flags for validation runs. Defaults to
	// compiler.ValidateArgs().
	Args   []string
	Logger *slog.Logger
}

// Manager is the registry of validation sessions. Construct one per server
// with NewManager and release it with Shutdown.
type Manager struct {
	source    DocumentSource
	publisher Publisher
	onMissing func(err *compiler.SpawnError)
	cache     *cache.Store
	args      []string
	logger    *slog.Logger
	debouncer *Debouncer

	enabled  atomic.Bool
	delay    atomic.Int64
	maxDiags atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	runner   Runner
	sessions map[string]*session
	closed   bool
	runSeq   uint64
}

type session struct {
	uri       string
	mu        sync.Mutex
	state     State
	runs      map[uint64]context.CancelFunc
	published bool
	closed    bool
}

// NewManager builds a Manager. Source and Publisher are required; without a
// Runner every validation publishes an empty list until SetRunner is called.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	args := opts.Args
	if args == nil {
		args = compiler.ValidateArgs().Strings()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		source:    opts.Source,
		publisher: opts.Publisher,
		onMissing: opts.OnCompilerMissing,
		cache:     opts.Cache,
		args:      append([]string(nil), args...),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		runner:    opts.Runner,
		sessions:  make(map[string]*session),
	}
	m.debouncer = NewDebouncer(m.fire)
	m.enabled.Store(true)
	delay := opts.Delay
	if delay == 0 {
		delay = DefaultDelay
	}
	m.SetDelay(delay)
	m.SetMaxDiagnostics(opts.MaxDiagnostics)
	return m
}

// SetEnabled switches validation on or off. While off, Schedule and
// Validate do nothing and published diagnostics stay as they are.
func (m *Manager) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

// Enabled reports whether validation is on.
func (m *Manager) Enabled() bool {
	return m.enabled.Load()
}

// SetDelay changes the debounce delay for future schedules. Zero or
// negative values fire on the next scheduler tick.
func (m *Manager) SetDelay(delay time.Duration) {
	m.delay.Store(int64(delay))
}

// SetMaxDiagnostics changes the per-document cap; zero means unlimited.
func (m *Manager) SetMaxDiagnostics(n int) {
	m.maxDiags.Store(int64(n))
}

// Delay returns the debounce delay.
func (m *Manager) Delay() time.Duration {
	return time.Duration(m.delay.Load())
}

// SetRunner swaps the compiler used by future runs.
func (m *Manager) SetRunner(r Runner) {
	m.mu.Lock()
	m.runner = r
	m.mu.Unlock()
}

// Schedule records an edit of doc and arms the debounce timer. The fire
// validates whatever snapshot the DocumentSource holds at that moment.
func (m *Manager) Schedule(doc Document) {
	m.schedule(doc, m.Delay())
}

// Trigger validates doc as soon as possible, replacing any pending timer.
func (m *Manager) Trigger(doc Document) {
	m.schedule(doc, -1)
}

func (m *Manager) schedule(doc Document, delay time.Duration) {
	if !m.Enabled() {
		return
	}
	s := m.sessionFor(doc.URI)
	if s == nil {
		return
	}
	if m.debouncer.Schedule(doc.URI, delay) {
		m.logger.Debug("validation scheduled", "uri", doc.URI, "version", doc.Version, "delay", delay)
	}
	m.settle(s)
}

// Cancel drops a pending timer for uri without firing it. In-flight runs are
// left alone.
func (m *Manager) Cancel(uri string) {
	if !m.debouncer.Cancel(uri) {
		return
	}
	if s := m.lookup(uri); s != nil {
		m.settle(s)
	}
}

// State returns the lifecycle state of uri's session.
func (m *Manager) State(uri string) State {
	s := m.lookup(uri)
	if s == nil {
		return StateIdle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close releases the session for uri: the pending timer is cancelled,
// in-flight runs are killed and published diagnostics are cleared.
func (m *Manager) Close(uri string) {
	m.debouncer.Cancel(uri)
	m.mu.Lock()
	s := m.sessions[uri]
	delete(m.sessions, uri)
	m.mu.Unlock()
	if s == nil {
		return
	}
	s.mu.Lock()
	s.closed = true
	s.state = StateIdle
	for _, cancel := range s.runs {
		cancel()
	}
	hadDiagnostics := s.published
	s.published = false
	s.mu.Unlock()
	if hadDiagnostics {
		m.publisher.Publish(uri, 0, nil)
	}
}

// Shutdown cancels all timers and runs, clears every published set and waits
// for in-flight validations to return. The Manager is unusable afterwards.
func (m *Manager) Shutdown() {
	m.debouncer.Dispose()
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	uris := make([]string, 0, len(m.sessions))
	for uri := range m.sessions {
		uris = append(uris, uri)
	}
	m.mu.Unlock()
	m.cancel()
	for _, uri := range uris {
		m.Close(uri)
	}
	m.wg.Wait()
}

func (m *Manager) fire(uri string) {
	doc, ok := m.source.Document(uri)
	if !ok {
		if s := m.lookup(uri); s != nil {
			m.settle(s)
		}
		return
	}
	m.Validate(m.ctx, doc)
}

// Validate runs one validation of doc and publishes the result if doc still
// has the same version when the compiler returns. It never returns an
// error; failures become diagnostics or log entries.
func (m *Manager) Validate(ctx context.Context, doc Document) Outcome {
	if !m.Enabled() {
		return OutcomeDisabled
	}
	s := m.sessionFor(doc.URI)
	if s == nil {
		return OutcomeCanceled
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	id, ok := m.begin(s, cancel)
	if !ok {
		return OutcomeCanceled
	}
	defer m.wg.Done()
	defer m.end(s, id)

	m.logger.Debug("validation start", "uri", doc.URI, "version", doc.Version, "run", id)
	started := time.Now()
	records, ok := m.collect(runCtx, doc)
	if !ok {
		m.logger.Debug("validation canceled", "uri", doc.URI, "version", doc.Version, "run", id)
		return OutcomeCanceled
	}

	bag := diag.NewBag(int(m.maxDiags.Load()))
	if dropped := bag.AddAll(diag.ToDiagnostics(records, doc.URI, doc.Text)); dropped > 0 {
		m.logger.Debug("diagnostics truncated", "uri", doc.URI, "dropped", dropped)
	}
	outcome := m.publishIfCurrent(s, doc, bag.Items())
	m.logger.Debug("validation done", "uri", doc.URI, "version", doc.Version, "run", id,
		"outcome", outcome.String(), "diags", bag.Len(), "elapsed", time.Since(started))
	return outcome
}

// collect produces the records for doc. It reports false when the run was
// cancelled and must not be published.
func (m *Manager) collect(ctx context.Context, doc Document) ([]diag.Record, bool) {
	m.mu.Lock()
	runner := m.runner
	m.mu.Unlock()
	if runner == nil {
		return nil, true
	}

	key := cache.KeyOf(runner.Fingerprint(), strings.Join(m.args, "\x00"), doc.Text)
	if m.cache != nil {
		records, hit, err := m.cache.Get(key)
		if err != nil {
			m.logger.Warn("result cache read failed", "uri", doc.URI, "err", err)
		} else if hit {
			m.logger.Debug("result cache hit", "uri", doc.URI, "version", doc.Version)
			return records, true
		}
	}

	res, err := runner.Run(ctx, doc.Text, m.args)
	if err != nil {
		var spawnErr *compiler.SpawnError
		switch {
		case errors.As(err, &spawnErr):
			m.logger.Warn("compiler failed to start", "binary", spawnErr.Binary, "err", spawnErr.Err)
			if spawnErr.NotFound() && m.onMissing != nil {
				m.onMissing(spawnErr)
			}
			return []diag.Record{{Kind: diag.KindError, Message: spawnErr.Message()}}, true
		case ctx.Err() != nil:
			return nil, false
		default:
			m.logger.Warn("validation failed", "uri", doc.URI, "err", err)
			return nil, true
		}
	}

	records := compiler.ParseResult(res)
	if m.cache != nil {
		entry := cache.Entry{Success: res.Success, ExitCode: res.ExitCode, Records: records}
		if err := m.cache.Put(key, entry); err != nil {
			m.logger.Warn("result cache write failed", "uri", doc.URI, "err", err)
		}
	}
	return records, true
}

// publishIfCurrent compares the stamped snapshot with the current one and
// publishes under the session lock, so no other result for the same document
// can interleave between the check and the publish.
func (m *Manager) publishIfCurrent(s *session, doc Document, diags []diag.Diagnostic) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return OutcomeStale
	}
	cur, ok := m.source.Document(doc.URI)
	if !ok || cur.Version != doc.Version || cur.Text != doc.Text {
		if ok {
			m.logger.Debug("discard stale validation", "uri", doc.URI, "stamped", doc.Version, "current", cur.Version)
		}
		return OutcomeStale
	}
	m.publisher.Publish(doc.URI, doc.Version, diags)
	s.published = true
	return OutcomePublished
}

func (m *Manager) sessionFor(uri string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	s, ok := m.sessions[uri]
	if !ok {
		s = &session{uri: uri, runs: make(map[uint64]context.CancelFunc)}
		m.sessions[uri] = s
	}
	return s
}

func (m *Manager) lookup(uri string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[uri]
}

func (m *Manager) begin(s *session, cancel context.CancelFunc) (uint64, bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, false
	}
	m.runSeq++
	id := m.runSeq
	m.wg.Add(1)
	m.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		m.wg.Done()
		return 0, false
	}
	s.runs[id] = cancel
	s.state = m.stateLocked(s)
	return id, true
}

func (m *Manager) end(s *session, id uint64) {
	s.mu.Lock()
	delete(s.runs, id)
	s.mu.Unlock()
	m.settle(s)
}

// settle recomputes the session state after a timer or run went away.
func (m *Manager) settle(s *session) {
	s.mu.Lock()
	s.state = m.stateLocked(s)
	s.mu.Unlock()
}

// stateLocked derives the state from the timer and the in-flight runs. A
// pending timer wins over a running compiler since its result will replace
// whatever the current run produces.
func (m *Manager) stateLocked(s *session) State {
	switch {
	case s.closed:
		return StateIdle
	case m.debouncer.Pending(s.uri):
		return StatePending
	case len(s.runs) > 0:
		return StateRunning
	default:
		return StateIdle
	}
}
