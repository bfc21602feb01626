package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"archmap/internal/analysis"
	"archmap/internal/client"
	"archmap/internal/diagram"
	"archmap/internal/storage"
)

// Config carries the tunable session constants. Interval and ceiling are
// explicit here rather than hidden literals so tests can shrink them.
type Config struct {
	PollInterval  time.Duration
	PollTimeout   time.Duration
	Level         diagram.Level
	CallFlowDepth int
}

func DefaultConfig() Config {
	return Config{
		PollInterval:  2 * time.Second,
		PollTimeout:   300 * time.Second,
		Level:         diagram.LevelFile,
		CallFlowDepth: 5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = d.PollTimeout
	}
	if c.Level == 0 {
		c.Level = d.Level
	}
	if c.CallFlowDepth <= 0 {
		c.CallFlowDepth = d.CallFlowDepth
	}
	return c
}

// State is the lifecycle of one analysis slot.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StatePolling
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Slot distinguishes the primary analysis from the secondary used in
// comparison mode.
type Slot int

const (
	SlotPrimary Slot = iota
	SlotSecondary
)

// Session orchestrates the analyze → poll → fetch workflow and owns the
// per-version result cache. It replaces ambient UI state with an explicit
// object that can be exercised synchronously in tests.
type Session struct {
	client *client.Client
	store  *storage.Store
	logger *slog.Logger
	cfg    Config

	mu       sync.Mutex
	repo     string
	current  string
	versions map[string]*analysis.Result
	jobIDs   map[string]string
	methods  []string
	selected string
	flow     *analysis.CallFlow
	states   [2]State
}

type Option func(*Session)

// WithStore attaches a persistent snapshot store consulted on version-cache
// misses and written through on every successful fetch.
func WithStore(st *storage.Store) Option {
	return func(s *Session) { s.store = st }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func New(c *client.Client, cfg Config, opts ...Option) *Session {
	s := &Session{
		client:   c,
		logger:   slog.Default(),
		cfg:      cfg.withDefaults(),
		versions: make(map[string]*analysis.Result),
		jobIDs:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report is the outcome of a successful analyze or switch operation.
// Incomplete marks results that fetched cleanly but carry no diagram-relevant
// data; the diagram degrades to a placeholder instead of failing.
type Report struct {
	Result     *analysis.Result
	Diagram    string
	Incomplete bool
}

// Analyze runs the full submit → poll → fetch flow for one version and caches
// the result under its resolved git ref. As a top-level submission it clears
// the version cache first, so snapshots of a previous repository can never be
// served under the new one. Cache-preserving re-analysis goes through
// SwitchVersion instead.
func (s *Session) Analyze(ctx context.Context, repo, ref string) (*Report, error) {
	s.mu.Lock()
	s.repo = repo
	s.versions = make(map[string]*analysis.Result)
	s.jobIDs = make(map[string]string)
	s.methods = nil
	s.selected = ""
	s.flow = nil
	s.mu.Unlock()

	res, err := s.runAnalysis(ctx, SlotPrimary, repo, ref)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = res.GitRef
	s.mu.Unlock()

	return s.report(res), nil
}

// Attach sets the repository context without running an analysis so that a
// following SwitchVersion can serve straight from the snapshot store.
func (s *Session) Attach(repo string) {
	s.mu.Lock()
	s.repo = repo
	s.mu.Unlock()
}

// SwitchVersion renders another version of the current repository. A version
// cache hit re-renders immediately with no network traffic; a persistent
// store hit avoids re-analysis as well; only a full miss re-runs the upstream
// flow.
func (s *Session) SwitchVersion(ctx context.Context, ref string) (*Report, error) {
	s.mu.Lock()
	repo := s.repo
	res, cached := s.versions[ref]
	if cached {
		s.current = ref
		s.methods = res.MethodNames()
	}
	s.mu.Unlock()

	if cached {
		s.logger.Debug("version cache hit", "ref", ref)
		return s.report(res), nil
	}
	if repo == "" {
		return nil, &SubmissionError{Err: errors.New("no repository analyzed yet")}
	}

	if s.store != nil {
		stored, err := s.store.Load(ctx, repo, ref)
		if err == nil && stored != nil {
			s.logger.Debug("snapshot store hit", "ref", ref)
			s.cacheResult(repo, stored)
			s.mu.Lock()
			s.current = stored.GitRef
			s.mu.Unlock()
			return s.report(stored), nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("snapshot store lookup failed", "ref", ref, "error", err)
		}
	}

	// Full miss: re-analyze through runAnalysis directly so the accumulated
	// version cache survives the switch. Only top-level submissions clear it.
	res, err := s.runAnalysis(ctx, SlotPrimary, repo, ref)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.current = res.GitRef
	s.mu.Unlock()
	return s.report(res), nil
}

// runAnalysis drives one slot through submit, poll and fetch, then caches the
// result. Used by Analyze and by both halves of Compare.
func (s *Session) runAnalysis(ctx context.Context, slot Slot, repo, ref string) (*analysis.Result, error) {
	s.setState(slot, StateSubmitting)

	s.mu.Lock()
	level := s.cfg.Level
	s.mu.Unlock()

	jobID, err := s.client.Submit(ctx, client.SubmitRequest{
		RepoPath:         repo,
		GitRef:           ref,
		GranularityLevel: int(level),
	})
	if err != nil {
		s.setState(slot, StateFailed)
		return nil, &SubmissionError{Err: err}
	}
	s.logger.Info("analysis submitted", "job", jobID, "repo", repo, "ref", ref)

	s.setState(slot, StatePolling)
	if err := s.waitForJob(ctx, jobID); err != nil {
		s.setState(slot, StateFailed)
		return nil, err
	}

	res, err := s.client.FetchResult(ctx, jobID)
	if err != nil {
		s.setState(slot, StateFailed)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return nil, &JobFailedError{JobID: jobID, Message: apiErr.Detail}
		}
		return nil, &MalformedResultError{JobID: jobID, Reason: err.Error()}
	}
	if res.GitRef == "" {
		res.GitRef = ref
	}

	s.cacheResult(repo, res)
	s.mu.Lock()
	s.jobIDs[res.GitRef] = jobID
	s.mu.Unlock()
	s.setState(slot, StateSucceeded)

	if !res.Complete() {
		s.logger.Warn("analysis returned no diagram data", "job", jobID, "ref", res.GitRef)
	}
	return res, nil
}

// waitForJob polls at a constant interval under a wall-clock ceiling. The
// loop always stops deterministically: terminal status, context cancellation,
// or TimeoutError before the ceiling would be crossed.
func (s *Session) waitForJob(ctx context.Context, jobID string) error {
	deadline := time.Now().Add(s.cfg.PollTimeout)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	attempts := 0
	for {
		attempts++
		job, err := s.client.JobStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				return &JobFailedError{JobID: jobID, Message: apiErr.Detail}
			}
			return &JobFailedError{JobID: jobID, Message: err.Error()}
		}

		switch job.Status {
		case analysis.StatusCompleted:
			return nil
		case analysis.StatusFailed:
			return &JobFailedError{JobID: jobID, Message: job.Message}
		}

		if time.Until(deadline) < s.cfg.PollInterval {
			return &TimeoutError{JobID: jobID, Ceiling: s.cfg.PollTimeout, Attempts: attempts}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Session) cacheResult(repo string, res *analysis.Result) {
	s.mu.Lock()
	s.versions[res.GitRef] = res
	s.methods = res.MethodNames()
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(context.Background(), repo, res); err != nil {
			s.logger.Warn("snapshot store write failed", "ref", res.GitRef, "error", err)
		}
	}
}

func (s *Session) report(res *analysis.Result) *Report {
	return &Report{
		Result:     res,
		Diagram:    s.render(res),
		Incomplete: !res.Complete(),
	}
}

func (s *Session) render(res *analysis.Result) string {
	s.mu.Lock()
	level := s.cfg.Level
	s.mu.Unlock()
	return diagram.Sanitize(diagram.Generate(res, level))
}

// SetLevel changes granularity and re-renders the current version from cache.
// No network traffic.
func (s *Session) SetLevel(level diagram.Level) *Report {
	s.mu.Lock()
	s.cfg.Level = level
	res := s.versions[s.current]
	s.mu.Unlock()

	if res == nil {
		return &Report{Diagram: diagram.Sanitize(diagram.Placeholder()), Incomplete: true}
	}
	return s.report(res)
}

// SelectMethod fetches a fresh call flow for the symbol. Results are never
// cached: every selection is a new request, and selecting replaces the
// previous flow.
func (s *Session) SelectMethod(ctx context.Context, method string) (*analysis.CallFlow, error) {
	s.mu.Lock()
	jobID := s.jobIDs[s.current]
	depth := s.cfg.CallFlowDepth
	s.mu.Unlock()
	if jobID == "" {
		return nil, fmt.Errorf("no completed analysis to query")
	}

	flow, err := s.client.CallFlow(ctx, jobID, method, depth)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.selected = method
	s.flow = flow
	s.mu.Unlock()
	return flow, nil
}

// ClearSelection drops the current call-flow result.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selected = ""
	s.flow = nil
	s.mu.Unlock()
}

// Reset clears the version cache, job ids and selection, as a new top-level
// analysis submission does.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repo = ""
	s.current = ""
	s.versions = make(map[string]*analysis.Result)
	s.jobIDs = make(map[string]string)
	s.methods = nil
	s.selected = ""
	s.flow = nil
	s.states = [2]State{}
}

// Methods returns the call-flow entry points of the current version, sorted.
func (s *Session) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.methods))
	copy(out, s.methods)
	return out
}

// SelectedMethod returns the active call-flow selection, if any.
func (s *Session) SelectedMethod() (string, *analysis.CallFlow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.flow
}

// CachedVersions lists the refs present in the version cache.
func (s *Session) CachedVersions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.versions))
	for ref := range s.versions {
		out = append(out, ref)
	}
	return out
}

// CurrentRef returns the ref of the version being displayed.
func (s *Session) CurrentRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SlotState reports the lifecycle state of an analysis slot.
func (s *Session) SlotState(slot Slot) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[slot]
}

func (s *Session) setState(slot Slot, st State) {
	s.mu.Lock()
	s.states[slot] = st
	s.mu.Unlock()
}
