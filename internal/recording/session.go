package recording

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rfwatch/rfwatch/internal/spectrum"
)

// State is a recording session lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateStopped, StateFailed:
		return true
	}
	return false
}

var (
	// ErrInvalidDuration is returned when a session is created with a
	// non-positive duration
	ErrInvalidDuration = errors.New("recording duration must be positive")

	// ErrInvalidInterval is returned when a session is created with a
	// non-positive sampling interval
	ErrInvalidInterval = errors.New("sampling interval must be positive")

	// ErrAlreadyStarted is returned when Start is called more than once
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNotStarted is returned when Stop or Fail is called before Start
	ErrNotStarted = errors.New("session has not started")

	// ErrNotFinalized is returned when a report is requested before the
	// session reaches a terminal state
	ErrNotFinalized = errors.New("session is not finalized")
)

// Sample is one accepted observation: the raw sweep and the analysis
// computed from it.
type Sample struct {
	Sweep    spectrum.Sweep
	Analysis spectrum.Analysis
}

// WithClock overrides the session time source.
func WithClock(now func() time.Time) func(*Session) {
	return func(s *Session) {
		s.now = now
	}
}

// Session captures analyzed sweeps at a fixed interval for a fixed
// duration, then finalizes into a Report. Sessions are single-use:
// once terminal they never accept another sample.
type Session struct {
	mu sync.Mutex

	id       uuid.UUID
	state    State
	duration time.Duration
	interval time.Duration

	startedAt    time.Time
	endedAt      time.Time
	lastAccepted time.Time

	samples []Sample
	fault   error
	report  *Report

	now func() time.Time
}

// NewSession creates an idle session. Both the total duration and the
// sampling interval must be positive.
func NewSession(duration, interval time.Duration, options ...func(*Session)) (*Session, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}

	s := &Session{
		id:       uuid.New(),
		state:    StateIdle,
		duration: duration,
		interval: interval,
		now:      time.Now,
	}

	for _, option := range options {
		option(s)
	}

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start transitions the session from Idle to Running and records the
// start time.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrAlreadyStarted
	}

	s.startedAt = s.now()
	s.state = StateRunning
	return nil
}

// Offer delivers one analyzed sweep to the session and reports whether
// it was accepted. Samples are accepted only while Running and only
// when at least the sampling interval has elapsed since the previous
// accepted sample; the first sample is always accepted. Once the
// session duration has elapsed the session completes, after the
// current sample had its chance to be accepted.
func (s *Session) Offer(sample Sample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return false
	}

	now := s.now()

	accepted := s.lastAccepted.IsZero() || now.Sub(s.lastAccepted) >= s.interval
	if accepted {
		s.lastAccepted = now
		s.samples = append(s.samples, sample)
	}

	if now.Sub(s.startedAt) >= s.duration {
		s.finalize(StateCompleted, now)
	}

	return accepted
}

// Stop ends a running session early and finalizes a partial report.
// Calling Stop on an already terminal session returns the existing
// report.
func (s *Session) Stop() (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateIdle:
		return nil, ErrNotStarted
	case s.state.Terminal():
		return s.report, nil
	}

	s.finalize(StateStopped, s.now())
	return s.report, nil
}

// Fail records a fault and finalizes the session, preserving every
// sample accepted before the fault. Faults after finalization are
// ignored so the first cause wins.
func (s *Session) Fail(cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateIdle:
		return ErrNotStarted
	case s.state.Terminal():
		return nil
	}

	s.fault = cause
	s.finalize(StateFailed, s.now())
	return nil
}

// Report returns the finalized report, or ErrNotFinalized while the
// session is still Idle or Running.
func (s *Session) Report() (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Terminal() {
		return nil, ErrNotFinalized
	}
	return s.report, nil
}

// Samples returns a copy of the accepted samples in acceptance order.
func (s *Session) Samples() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample(nil), s.samples...)
}

// SampleCount returns the number of accepted samples.
func (s *Session) SampleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// StartedAt returns the session start time, zero if not started.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Duration returns the configured recording duration.
func (s *Session) Duration() time.Duration {
	return s.duration
}

// Interval returns the configured sampling interval.
func (s *Session) Interval() time.Duration {
	return s.interval
}

// finalize must be called with the session lock held.
func (s *Session) finalize(terminal State, at time.Time) {
	s.endedAt = at
	s.state = terminal
	s.report = buildReport(s)
}
