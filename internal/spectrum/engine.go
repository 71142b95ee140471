package spectrum

import "sync"

// DefaultHistoryDepth is the waterfall capacity when none is configured.
const DefaultHistoryDepth = 50

// WithHistoryDepth overrides the waterfall capacity.
func WithHistoryDepth(depth int) func(*Engine) {
	return func(e *Engine) {
		if depth > 0 {
			e.capacity = depth
		}
	}
}

// Engine folds successive sweeps into peak-hold and waterfall state and
// derives per-sweep statistics. Exactly one goroutine ingests; concurrent
// readers must use Snapshot rather than retaining state across calls.
type Engine struct {
	mu sync.Mutex

	capacity  int
	spanStart int64
	spanEnd   int64
	binCount  int

	peakHold  []float64
	waterfall [][]float64 // oldest first
	latest    Sweep
	analysis  Analysis
	count     uint64
}

// NewEngine returns an engine with an empty history.
func NewEngine(options ...func(*Engine)) *Engine {
	e := Engine{capacity: DefaultHistoryDepth}
	for _, option := range options {
		option(&e)
	}
	return &e
}

// Ingest folds one sweep into the engine state and returns its analysis.
// A span or bin count change resets peak-hold and clears the waterfall
// before the sweep is applied: bins are not comparable across spans.
// Ingest performs no I/O and never blocks beyond the state mutex.
func (e *Engine) Ingest(s Sweep) Analysis {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.spanChanged(s) {
		e.peakHold = nil
		e.waterfall = e.waterfall[:0]
	}
	e.spanStart, e.spanEnd = s.StartKHz, s.EndKHz
	e.binCount = len(s.Bins)

	row := make([]float64, len(s.Bins))
	copy(row, s.Bins)

	if e.peakHold == nil {
		// First sweep after a reset seeds peak-hold directly.
		e.peakHold = make([]float64, len(row))
		copy(e.peakHold, row)
	} else {
		for i, v := range row {
			if v > e.peakHold[i] {
				e.peakHold[i] = v
			}
		}
	}

	if len(e.waterfall) >= e.capacity {
		n := copy(e.waterfall, e.waterfall[1:])
		e.waterfall = e.waterfall[:n]
	}
	e.waterfall = append(e.waterfall, row)

	e.latest = Sweep{Timestamp: s.Timestamp, StartKHz: s.StartKHz, EndKHz: s.EndKHz, Bins: row}
	e.count++
	e.analysis = analyzeSweep(e.latest)
	return e.analysis
}

// spanChanged reports whether the sweep is not comparable to the held state.
func (e *Engine) spanChanged(s Sweep) bool {
	if e.count == 0 {
		return false
	}
	return s.StartKHz != e.spanStart || s.EndKHz != e.spanEnd || len(s.Bins) != e.binCount
}

// ResetPeakHold clears the cumulative peak so the next sweep reseeds it.
func (e *Engine) ResetPeakHold() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.peakHold = nil
}

// Snapshot is a consistent copy of the engine state for renderers.
type Snapshot struct {
	SpanStartKHz int64
	SpanEndKHz   int64
	PeakHold     []float64
	Waterfall    [][]float64 // oldest first
	Latest       Sweep
	Analysis     Analysis
	Count        uint64
}

// Snapshot deep-copies the current state so a renderer running beside the
// ingestion goroutine never observes a sweep mid-application.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		SpanStartKHz: e.spanStart,
		SpanEndKHz:   e.spanEnd,
		Analysis:     e.analysis,
		Count:        e.count,
	}
	if e.peakHold != nil {
		snap.PeakHold = append([]float64(nil), e.peakHold...)
	}
	if len(e.waterfall) > 0 {
		snap.Waterfall = make([][]float64, len(e.waterfall))
		for i, row := range e.waterfall {
			snap.Waterfall[i] = append([]float64(nil), row...)
		}
	}
	snap.Latest = Sweep{
		Timestamp: e.latest.Timestamp,
		StartKHz:  e.latest.StartKHz,
		EndKHz:    e.latest.EndKHz,
		Bins:      append([]float64(nil), e.latest.Bins...),
	}
	return snap
}
