package recording

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rfwatch/rfwatch/internal/spectrum"
)

// testClock is a manually advanced time source.
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time {
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func (c *testClock) sample(a spectrum.Analysis) Sample {
	a.Timestamp = c.t
	return Sample{
		Sweep: spectrum.Sweep{
			Timestamp: c.t,
			StartKHz:  5_500_000,
			EndKHz:    5_700_000,
			Bins:      []float64{-80, -70, -85, -90},
		},
		Analysis: a,
	}
}

func mustSession(t *testing.T, clock *testClock, duration, interval time.Duration) *Session {
	t.Helper()
	s, err := NewSession(duration, interval, WithClock(clock.now))
	if err != nil {
		t.Fatalf("Expected session to be created, got %v", err)
	}
	return s
}

func TestNewSession_Validation(t *testing.T) {
	testCases := []struct {
		name     string
		duration time.Duration
		interval time.Duration
		wantErr  error
	}{
		{"zero duration", 0, time.Second, ErrInvalidDuration},
		{"negative duration", -time.Minute, time.Second, ErrInvalidDuration},
		{"zero interval", time.Minute, 0, ErrInvalidInterval},
		{"negative interval", time.Minute, -time.Second, ErrInvalidInterval},
		{"valid", time.Minute, 5 * time.Second, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewSession(tc.duration, tc.interval)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected error %v, got %v", tc.wantErr, err)
			}
			if tc.wantErr == nil && s.State() != StateIdle {
				t.Errorf("Expected new session idle, got %s", s.State())
			}
		})
	}
}

func TestSession_IntervalGating(t *testing.T) {
	clock := newTestClock()
	s := mustSession(t, clock, time.Minute, 5*time.Second)

	if err := s.Start(); err != nil {
		t.Fatalf("Expected session to start, got %v", err)
	}

	// One sweep per second for the full minute. With a 5 second
	// interval only every fifth arrival may be kept.
	var accepted int
	for i := 0; i < 60; i++ {
		clock.advance(time.Second)
		if s.Offer(clock.sample(spectrum.Analysis{})) {
			accepted++
		}
	}

	if accepted != 12 {
		t.Errorf("Expected 12 accepted samples, got %d", accepted)
	}
	if got := s.State(); got != StateCompleted {
		t.Errorf("Expected state %s after duration elapsed, got %s", StateCompleted, got)
	}
	if got := len(s.Samples()); got != 12 {
		t.Errorf("Expected 12 stored samples, got %d", got)
	}
	if got := s.SampleCount(); got != 12 {
		t.Errorf("Expected sample count 12, got %d", got)
	}

	clock.advance(5 * time.Second)
	if s.Offer(clock.sample(spectrum.Analysis{})) {
		t.Error("Expected offers refused after completion")
	}

	report, err := s.Report()
	if err != nil {
		t.Fatalf("Expected report after completion, got %v", err)
	}
	if report.IsPartial {
		t.Error("Expected completed report not to be partial")
	}
	if report.SampleCount != 12 {
		t.Errorf("Expected report sample count 12, got %d", report.SampleCount)
	}
}

func TestSession_AcceptThenComplete(t *testing.T) {
	clock := newTestClock()
	s := mustSession(t, clock, 10*time.Second, 5*time.Second)
	s.Start()

	clock.advance(5 * time.Second)
	if !s.Offer(clock.sample(spectrum.Analysis{})) {
		t.Fatal("Expected first sample accepted")
	}

	// The sample arriving exactly on the duration boundary is accepted
	// first, then the session completes.
	clock.advance(5 * time.Second)
	if !s.Offer(clock.sample(spectrum.Analysis{})) {
		t.Error("Expected boundary sample accepted before completion")
	}
	if got := s.State(); got != StateCompleted {
		t.Errorf("Expected state %s, got %s", StateCompleted, got)
	}
	if got := len(s.Samples()); got != 2 {
		t.Errorf("Expected 2 samples, got %d", got)
	}
}

func TestSession_StopPartial(t *testing.T) {
	clock := newTestClock()
	s := mustSession(t, clock, time.Minute, 5*time.Second)
	s.Start()

	for i := 0; i < 3; i++ {
		clock.advance(5 * time.Second)
		if !s.Offer(clock.sample(spectrum.Analysis{})) {
			t.Fatalf("Expected sample %d accepted", i)
		}
	}

	report, err := s.Stop()
	if err != nil {
		t.Fatalf("Expected stop to finalize, got %v", err)
	}
	if got := s.State(); got != StateStopped {
		t.Errorf("Expected state %s, got %s", StateStopped, got)
	}
	if !report.IsPartial {
		t.Error("Expected stopped report flagged partial")
	}
	if report.SampleCount != 3 {
		t.Errorf("Expected 3 samples in report, got %d", report.SampleCount)
	}
	if report.Elapsed != 15*time.Second {
		t.Errorf("Expected 15s elapsed, got %s", report.Elapsed)
	}

	// Stopping again hands back the same report.
	again, err := s.Stop()
	if err != nil {
		t.Fatalf("Expected second stop to succeed, got %v", err)
	}
	if again != report {
		t.Error("Expected second stop to return the existing report")
	}

	clock.advance(5 * time.Second)
	if s.Offer(clock.sample(spectrum.Analysis{})) {
		t.Error("Expected offers refused after stop")
	}
	if got := len(s.Samples()); got != 3 {
		t.Errorf("Expected samples preserved after stop, got %d", got)
	}
}

func TestSession_FailPreservesSamples(t *testing.T) {
	clock := newTestClock()
	s := mustSession(t, clock, time.Minute, 5*time.Second)
	s.Start()

	for i := 0; i < 2; i++ {
		clock.advance(5 * time.Second)
		s.Offer(clock.sample(spectrum.Analysis{}))
	}

	if err := s.Fail(io.ErrUnexpectedEOF); err != nil {
		t.Fatalf("Expected fail to finalize, got %v", err)
	}
	if got := s.State(); got != StateFailed {
		t.Errorf("Expected state %s, got %s", StateFailed, got)
	}

	report, err := s.Report()
	if err != nil {
		t.Fatalf("Expected report after failure, got %v", err)
	}
	if !errors.Is(report.Fault, io.ErrUnexpectedEOF) {
		t.Errorf("Expected fault preserved, got %v", report.Fault)
	}
	if !report.IsPartial {
		t.Error("Expected failed report flagged partial")
	}
	if report.SampleCount != 2 {
		t.Errorf("Expected 2 samples preserved, got %d", report.SampleCount)
	}

	// The first fault wins.
	if err := s.Fail(errors.New("later fault")); err != nil {
		t.Fatalf("Expected later fail ignored, got %v", err)
	}
	report, _ = s.Report()
	if !errors.Is(report.Fault, io.ErrUnexpectedEOF) {
		t.Errorf("Expected first fault kept, got %v", report.Fault)
	}
}

func TestSession_Guards(t *testing.T) {
	clock := newTestClock()
	s := mustSession(t, clock, time.Minute, 5*time.Second)

	if s.Offer(clock.sample(spectrum.Analysis{})) {
		t.Error("Expected offers refused before start")
	}
	if _, err := s.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted from stop, got %v", err)
	}
	if err := s.Fail(io.ErrUnexpectedEOF); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted from fail, got %v", err)
	}
	if _, err := s.Report(); !errors.Is(err, ErrNotFinalized) {
		t.Errorf("Expected ErrNotFinalized before start, got %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Expected start to succeed, got %v", err)
	}
	if err := s.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}
	if _, err := s.Report(); !errors.Is(err, ErrNotFinalized) {
		t.Errorf("Expected ErrNotFinalized while running, got %v", err)
	}
}
