package spectrum

import (
	"math"
	"testing"
	"time"
)

func testSweep(startKHz, endKHz int64, bins ...float64) Sweep {
	return Sweep{
		Timestamp: time.Now(),
		StartKHz:  startKHz,
		EndKHz:    endKHz,
		Bins:      bins,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEngine_PeakHold(t *testing.T) {
	e := NewEngine()

	e.Ingest(testSweep(5_500_000, 5_700_000, -90, -80, -70, -60))
	e.Ingest(testSweep(5_500_000, 5_700_000, -95, -75, -72, -65))
	e.Ingest(testSweep(5_500_000, 5_700_000, -85, -85, -65, -70))

	want := []float64{-85, -75, -65, -60}
	snap := e.Snapshot()
	if len(snap.PeakHold) != len(want) {
		t.Fatalf("Expected %d peak-hold bins, got %d", len(want), len(snap.PeakHold))
	}
	for i, v := range want {
		if snap.PeakHold[i] != v {
			t.Errorf("Bin %d: expected peak %.1f, got %.1f", i, v, snap.PeakHold[i])
		}
	}
	if snap.Count != 3 {
		t.Errorf("Expected ingest count 3, got %d", snap.Count)
	}
}

func TestEngine_SpanChangeReset(t *testing.T) {
	e := NewEngine()

	e.Ingest(testSweep(5_500_000, 5_700_000, -50, -50))
	e.Ingest(testSweep(5_600_000, 5_800_000, -70, -80))

	snap := e.Snapshot()

	// Peak-hold must equal the second sweep's raw values, not a max with
	// the first span's bins.
	want := []float64{-70, -80}
	for i, v := range want {
		if snap.PeakHold[i] != v {
			t.Errorf("Bin %d: expected peak %.1f, got %.1f", i, v, snap.PeakHold[i])
		}
	}

	if len(snap.Waterfall) != 1 {
		t.Fatalf("Expected waterfall cleared to 1 row, got %d", len(snap.Waterfall))
	}
	if snap.Waterfall[0][0] != -70 {
		t.Errorf("Expected surviving row to be the second sweep, got %v", snap.Waterfall[0])
	}
	if snap.SpanStartKHz != 5_600_000 || snap.SpanEndKHz != 5_800_000 {
		t.Errorf("Expected span 5600000-5800000 kHz, got %d-%d", snap.SpanStartKHz, snap.SpanEndKHz)
	}
}

func TestEngine_BinCountChangeReset(t *testing.T) {
	e := NewEngine()

	// Same nominal span but a different bin count is a config change
	// observed before its echo; held state must reset.
	e.Ingest(testSweep(5_500_000, 5_700_000, -50, -50, -50))
	e.Ingest(testSweep(5_500_000, 5_700_000, -60, -60))

	snap := e.Snapshot()
	if len(snap.PeakHold) != 2 {
		t.Fatalf("Expected 2 peak-hold bins after reset, got %d", len(snap.PeakHold))
	}
	if snap.PeakHold[0] != -60 {
		t.Errorf("Expected reseeded peak -60, got %.1f", snap.PeakHold[0])
	}
	if len(snap.Waterfall) != 1 {
		t.Errorf("Expected waterfall cleared to 1 row, got %d", len(snap.Waterfall))
	}
}

func TestEngine_WaterfallCapacity(t *testing.T) {
	e := NewEngine(WithHistoryDepth(3))

	for i := 0; i < 5; i++ {
		e.Ingest(testSweep(5_500_000, 5_700_000, float64(-10-i), -90))
	}

	snap := e.Snapshot()
	if len(snap.Waterfall) != 3 {
		t.Fatalf("Expected waterfall capped at 3 rows, got %d", len(snap.Waterfall))
	}

	// Oldest first: rows 3, 4 and 5 survive.
	want := []float64{-12, -13, -14}
	for i, v := range want {
		if snap.Waterfall[i][0] != v {
			t.Errorf("Row %d: expected leading bin %.1f, got %.1f", i, v, snap.Waterfall[i][0])
		}
	}
}

func TestEngine_ZeroVarianceSNR(t *testing.T) {
	e := NewEngine()

	// All bins equal: raw byte 100 decodes to -50 dBm everywhere.
	bins := make([]float64, 112)
	for i := range bins {
		bins[i] = -50
	}
	a := e.Ingest(testSweep(5_100_000, 5_900_000, bins...))

	if a.SNRDB != 0 {
		t.Errorf("Expected SNR 0 for zero-variance sweep, got %v", a.SNRDB)
	}
	if a.NoiseFloorDBM != -50 || a.PeakDBM != -50 {
		t.Errorf("Expected floor and peak -50, got floor %.1f peak %.1f", a.NoiseFloorDBM, a.PeakDBM)
	}
}

func TestEngine_RawByteRoundTrip(t *testing.T) {
	// 112 raw bytes: one hundred at 180 (-90 dBm), eleven at 160 (-80 dBm)
	// and a single peak at 40 (-20 dBm) in bin 56.
	raw := make([]byte, 112)
	for i := range raw {
		raw[i] = 180
	}
	for i := 57; i < 68; i++ {
		raw[i] = 160
	}
	raw[56] = 40

	bins := make([]float64, len(raw))
	for i, b := range raw {
		bins[i] = -float64(b) / 2.0
	}
	a := NewEngine().Ingest(testSweep(5_100_000, 5_900_000, bins...))

	if a.PeakBin != 56 {
		t.Errorf("Expected peak bin 56, got %d", a.PeakBin)
	}
	if a.PeakDBM != -20 {
		t.Errorf("Expected peak -20 dBm, got %.1f", a.PeakDBM)
	}

	// Rank 11 of the sorted distribution (112*10/100) is still -90.
	if a.NoiseFloorDBM != -90 {
		t.Errorf("Expected noise floor -90 dBm, got %.1f", a.NoiseFloorDBM)
	}
	if a.SNRDB != 70 {
		t.Errorf("Expected SNR 70 dB, got %.1f", a.SNRDB)
	}

	wantMean := (100*-90.0 + 11*-80.0 + 1*-20.0) / 112.0
	if !almostEqual(a.MeanDBM, wantMean) {
		t.Errorf("Expected mean %.6f dBm, got %.6f", wantMean, a.MeanDBM)
	}

	wantKHz := 5_100_000.0 + 56.0*800_000.0/111.0
	if !almostEqual(a.PeakKHz, wantKHz) {
		t.Errorf("Expected peak frequency %.3f kHz, got %.3f", wantKHz, a.PeakKHz)
	}
}

func TestEngine_SnapshotIsolation(t *testing.T) {
	e := NewEngine()

	sweep := testSweep(5_500_000, 5_700_000, -50, -60)
	e.Ingest(sweep)

	// Mutating the ingested sweep must not reach engine state.
	sweep.Bins[0] = 0

	snap := e.Snapshot()
	if snap.PeakHold[0] != -50 {
		t.Errorf("Expected engine to hold its own copy, got peak %.1f", snap.PeakHold[0])
	}

	// Mutating a snapshot must not reach engine state either.
	snap.PeakHold[0] = 0
	snap.Waterfall[0][0] = 0
	snap.Latest.Bins[0] = 0

	fresh := e.Snapshot()
	if fresh.PeakHold[0] != -50 || fresh.Waterfall[0][0] != -50 || fresh.Latest.Bins[0] != -50 {
		t.Errorf("Expected snapshot mutations to stay local, got %+v", fresh)
	}
}

func TestEngine_ResetPeakHold(t *testing.T) {
	e := NewEngine()

	e.Ingest(testSweep(5_500_000, 5_700_000, -50, -60))
	e.Ingest(testSweep(5_500_000, 5_700_000, -40, -70))
	e.ResetPeakHold()

	if snap := e.Snapshot(); snap.PeakHold != nil {
		t.Errorf("Expected cleared peak-hold, got %v", snap.PeakHold)
	}

	e.Ingest(testSweep(5_500_000, 5_700_000, -80, -80))
	snap := e.Snapshot()
	if snap.PeakHold[0] != -80 || snap.PeakHold[1] != -80 {
		t.Errorf("Expected reseeded peak-hold [-80 -80], got %v", snap.PeakHold)
	}

	// An explicit reset clears only the peak: history keeps accumulating.
	if len(snap.Waterfall) != 3 {
		t.Errorf("Expected waterfall untouched by peak reset, got %d rows", len(snap.Waterfall))
	}
}
