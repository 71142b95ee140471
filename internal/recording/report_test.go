package recording

import (
	"math"
	"testing"
	"time"

	"github.com/rfwatch/rfwatch/internal/spectrum"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestReport_Statistics(t *testing.T) {
	clock := newTestClock()
	s := mustSession(t, clock, time.Minute, time.Second)
	s.Start()

	analyses := []spectrum.Analysis{
		{PeakDBM: -40, PeakKHz: 5_600_000, NoiseFloorDBM: -90, SNRDB: 10},
		{PeakDBM: -20, PeakKHz: 5_700_000, NoiseFloorDBM: -80, SNRDB: 30},
	}
	for _, a := range analyses {
		clock.advance(time.Second)
		if !s.Offer(clock.sample(a)) {
			t.Fatal("Expected sample accepted")
		}
	}

	report, err := s.Stop()
	if err != nil {
		t.Fatalf("Expected report, got %v", err)
	}

	if report.SNRMinDB != 10 || report.SNRMaxDB != 30 || !almostEqual(report.SNRMeanDB, 20) {
		t.Errorf("Expected SNR 10/30/20, got %.1f/%.1f/%.1f",
			report.SNRMinDB, report.SNRMaxDB, report.SNRMeanDB)
	}
	if report.NoiseFloorMinDBM != -90 || report.NoiseFloorMaxDBM != -80 || !almostEqual(report.NoiseFloorMeanDBM, -85) {
		t.Errorf("Expected noise floor -90/-80/-85, got %.1f/%.1f/%.1f",
			report.NoiseFloorMinDBM, report.NoiseFloorMaxDBM, report.NoiseFloorMeanDBM)
	}
	if report.PeakDBM != -20 || report.PeakKHz != 5_700_000 {
		t.Errorf("Expected peak -20 dBm at 5700000 kHz, got %.1f at %.1f",
			report.PeakDBM, report.PeakKHz)
	}
	if !almostEqual(report.MeanPeakDBM, -30) {
		t.Errorf("Expected mean peak -30, got %.2f", report.MeanPeakDBM)
	}
	if !almostEqual(report.ActivityThresholdDBM, -25) {
		t.Errorf("Expected activity threshold -25, got %.2f", report.ActivityThresholdDBM)
	}
	// Only the -20 peak rises above the -25 threshold.
	if !almostEqual(report.ActivePct, 50) {
		t.Errorf("Expected 50%% active, got %.2f", report.ActivePct)
	}
	if !almostEqual(report.PeakFreqStdDevKHz, 50_000) {
		t.Errorf("Expected peak frequency stddev 50000 kHz, got %.2f", report.PeakFreqStdDevKHz)
	}
	if report.Quality != QualityExcellent {
		t.Errorf("Expected quality %q, got %q", QualityExcellent, report.Quality)
	}
}

func TestReport_QualityTiers(t *testing.T) {
	testCases := []struct {
		peakDBM float64
		want    string
	}{
		{-45, QualityExcellent},
		{-50, QualityGood},
		{-55, QualityGood},
		{-65, QualityFair},
		{-75, QualityWeak},
		{-85, QualityNoSignal},
	}

	for _, tc := range testCases {
		if got := classifyQuality(tc.peakDBM); got != tc.want {
			t.Errorf("classifyQuality(%.0f): expected %q, got %q", tc.peakDBM, tc.want, got)
		}
	}
}

func TestReport_BinAggregation(t *testing.T) {
	clock := newTestClock()
	s := mustSession(t, clock, time.Minute, time.Second)
	s.Start()

	rows := [][]float64{
		{-80, -70, -60, -75, -85},
		{-82, -68, -55, -77, -83},
		{-81, -72, -58, -76, -84},
	}
	for _, bins := range rows {
		clock.advance(time.Second)
		s.Offer(Sample{
			Sweep: spectrum.Sweep{
				Timestamp: clock.t,
				StartKHz:  5_500_000,
				EndKHz:    5_700_000,
				Bins:      bins,
			},
		})
	}

	report, err := s.Stop()
	if err != nil {
		t.Fatalf("Expected report, got %v", err)
	}

	if len(report.BusiestBins) != 5 || len(report.QuietestBins) != 5 {
		t.Fatalf("Expected 5 busiest and 5 quietest bins, got %d and %d",
			len(report.BusiestBins), len(report.QuietestBins))
	}

	// Bin 2 carries the loudest maximum, bin 4 the lowest mean.
	busiest := report.BusiestBins[0]
	if busiest.KHz != 5_600_000 {
		t.Errorf("Expected busiest bin at 5600000 kHz, got %.1f", busiest.KHz)
	}
	if busiest.MaxDBM != -55 {
		t.Errorf("Expected busiest bin max -55, got %.1f", busiest.MaxDBM)
	}
	if !almostEqual(busiest.MeanDBM, (-60-55-58)/3.0) {
		t.Errorf("Expected busiest bin mean %.4f, got %.4f", (-60-55-58)/3.0, busiest.MeanDBM)
	}

	quietest := report.QuietestBins[0]
	if quietest.KHz != 5_700_000 {
		t.Errorf("Expected quietest bin at 5700000 kHz, got %.1f", quietest.KHz)
	}
	if !almostEqual(quietest.MeanDBM, -84) {
		t.Errorf("Expected quietest bin mean -84, got %.4f", quietest.MeanDBM)
	}
}

func TestReport_MixedSpansSkipBinStats(t *testing.T) {
	clock := newTestClock()
	s := mustSession(t, clock, time.Minute, time.Second)
	s.Start()

	clock.advance(time.Second)
	s.Offer(Sample{
		Sweep:    spectrum.Sweep{StartKHz: 5_500_000, EndKHz: 5_700_000, Bins: []float64{-80, -70}},
		Analysis: spectrum.Analysis{SNRDB: 10},
	})
	clock.advance(time.Second)
	s.Offer(Sample{
		Sweep:    spectrum.Sweep{StartKHz: 5_600_000, EndKHz: 5_800_000, Bins: []float64{-75, -65}},
		Analysis: spectrum.Analysis{SNRDB: 20},
	})

	report, err := s.Stop()
	if err != nil {
		t.Fatalf("Expected report, got %v", err)
	}

	if report.BusiestBins != nil || report.QuietestBins != nil {
		t.Error("Expected no bin stats for mixed spans")
	}
	if !almostEqual(report.SNRMeanDB, 15) {
		t.Errorf("Expected scalar stats still computed, got SNR mean %.2f", report.SNRMeanDB)
	}
}

func TestReport_Empty(t *testing.T) {
	clock := newTestClock()
	s := mustSession(t, clock, time.Minute, time.Second)
	s.Start()

	clock.advance(10 * time.Second)
	report, err := s.Stop()
	if err != nil {
		t.Fatalf("Expected empty session to finalize, got %v", err)
	}

	if report.SampleCount != 0 {
		t.Errorf("Expected 0 samples, got %d", report.SampleCount)
	}
	if !report.IsPartial {
		t.Error("Expected empty stopped report flagged partial")
	}
	if report.Elapsed != 10*time.Second {
		t.Errorf("Expected 10s elapsed, got %s", report.Elapsed)
	}
	if report.BusiestBins != nil {
		t.Error("Expected no bin stats for empty session")
	}
	if report.SNRMeanDB != 0 || report.PeakDBM != 0 {
		t.Error("Expected zeroed statistics for empty session")
	}
}
