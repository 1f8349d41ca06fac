package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/zonemap/internal/domain/feature"
	"github.com/kailas-cloud/zonemap/internal/domain/geo"
	"github.com/kailas-cloud/zonemap/internal/metrics"
)

// Status is the query session lifecycle state.
type Status string

const (
	// StatusIdle means no query was ever issued in this session.
	StatusIdle Status = "idle"
	// StatusLoading means exactly one remote call is outstanding.
	StatusLoading Status = "loading"
	// StatusLoaded means the last call settled with a result or the failure message.
	StatusLoaded Status = "loaded"
)

// Click outcomes, used as metric labels and in logs.
const (
	ClickAccepted      = "accepted"
	ClickInFlight      = "in_flight"
	ClickNoDescription = "no_description"
	ClickClosed        = "closed"
)

// State is a read-only snapshot of the session.
type State struct {
	Marker *geo.LngLat
	Status Status
	Result *string
}

// Config holds the session settings.
type Config struct {
	PromptTemplate string
	FailureMessage string
	DescriptionKey string
	Timeout        time.Duration
}

// DefaultConfig returns the built-in prompt, failure message and timeout.
func DefaultConfig() Config {
	return Config{
		PromptTemplate: DefaultPromptTemplate,
		FailureMessage: DefaultFailureMessage,
		DescriptionKey: "DESC",
		Timeout:        60 * time.Second,
	}
}

// Session runs at most one remote query at a time for one page.
// A click while a query is loading is dropped, never queued.
type Session struct {
	client Client
	cfg    Config
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	state  State
	done   chan struct{}
	closed bool
}

// NewSession creates an idle session. Close cancels any in-flight call.
func NewSession(client Client, cfg Config, logger *zap.Logger) *Session {
	defaults := DefaultConfig()
	if cfg.PromptTemplate == "" {
		cfg.PromptTemplate = defaults.PromptTemplate
	}
	if cfg.FailureMessage == "" {
		cfg.FailureMessage = defaults.FailureMessage
	}
	if cfg.DescriptionKey == "" {
		cfg.DescriptionKey = defaults.DescriptionKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		client: client,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		state:  State{Status: StatusIdle},
	}
}

// Click starts a query for the active feature at the clicked position.
// It reports whether the click was accepted. Rejected clicks leave the state untouched.
func (s *Session) Click(at geo.LngLat, active *feature.Feature) bool {
	var description string
	if active != nil {
		if d := active.Text(s.cfg.DescriptionKey); d != nil {
			description = *d
		}
	}

	s.mu.Lock()
	outcome := s.admit(description)
	if outcome != ClickAccepted {
		s.mu.Unlock()
		metrics.QueryClicksTotal.WithLabelValues(outcome).Inc()
		s.logger.Debug("Click ignored", zap.String("reason", outcome))
		return false
	}

	marker := at
	done := make(chan struct{})
	s.state = State{Marker: &marker, Status: StatusLoading}
	s.done = done
	s.mu.Unlock()

	metrics.QueryClicksTotal.WithLabelValues(ClickAccepted).Inc()
	prompt := BuildPrompt(s.cfg.PromptTemplate, description)
	s.logger.Info("Query started",
		zap.Int("feature_id", int(active.ID())),
		zap.String("description", description),
		zap.Float64("lng", at.Lng),
		zap.Float64("lat", at.Lat),
	)

	go s.run(prompt, done)
	return true
}

// admit evaluates the click guards. Caller holds s.mu.
func (s *Session) admit(description string) string {
	switch {
	case s.closed:
		return ClickClosed
	case s.state.Status == StatusLoading:
		return ClickInFlight
	case description == "":
		return ClickNoDescription
	default:
		return ClickAccepted
	}
}

// run performs the remote call and always settles the session to loaded.
func (s *Session) run(prompt string, done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout)
	defer cancel()

	text, err := s.invoke(ctx, prompt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Query failed", zap.Error(err))
		msg := s.cfg.FailureMessage
		s.state.Result = &msg
	} else {
		s.state.Result = &text
	}
	s.state.Status = StatusLoaded
}

// invoke shields the session from a panicking client.
func (s *Session) invoke(ctx context.Context, prompt string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("query client panic: %v", r)
		}
	}()
	return s.client.Invoke(ctx, prompt)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{Status: s.state.Status}
	if s.state.Marker != nil {
		m := *s.state.Marker
		st.Marker = &m
	}
	if s.state.Result != nil {
		r := *s.state.Result
		st.Result = &r
	}
	return st
}

// Done returns a channel closed when the current query settles.
// With no query issued yet the channel is already closed.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// Wait blocks until the current query settles or ctx ends, then returns the state.
func (s *Session) Wait(ctx context.Context) (State, error) {
	select {
	case <-s.Done():
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), fmt.Errorf("wait for query: %w", ctx.Err())
	}
}

// Close tears the session down and cancels the in-flight call.
// The cancelled call still settles the session with the failure message.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}
