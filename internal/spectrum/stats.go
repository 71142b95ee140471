package spectrum

import (
	"sort"
	"time"
)

// noiseFloorPercentile selects the low percentile of a sweep's amplitude
// distribution used as its noise floor estimate.
const noiseFloorPercentile = 10

// Analysis carries the values derived from a single sweep. The peak here is
// per-sweep, distinct from the engine's cumulative peak-hold.
type Analysis struct {
	Timestamp     time.Time
	PeakDBM       float64
	PeakBin       int
	PeakKHz       float64
	NoiseFloorDBM float64
	SNRDB         float64
	MeanDBM       float64
}

// analyzeSweep derives per-sweep statistics. The noise floor comes from the
// sweep's own distribution, not history, so it reacts immediately to
// environment changes. A zero-variance sweep yields an SNR of exactly 0.
func analyzeSweep(s Sweep) Analysis {
	a := Analysis{Timestamp: s.Timestamp}
	if len(s.Bins) == 0 {
		return a
	}

	peakBin := 0
	var sum float64
	for i, v := range s.Bins {
		sum += v
		if v > s.Bins[peakBin] {
			peakBin = i
		}
	}

	a.PeakBin = peakBin
	a.PeakDBM = s.Bins[peakBin]
	a.PeakKHz = s.FrequencyAt(peakBin)
	a.MeanDBM = sum / float64(len(s.Bins))
	a.NoiseFloorDBM = percentile(s.Bins, noiseFloorPercentile)
	a.SNRDB = a.PeakDBM - a.NoiseFloorDBM
	return a
}

// percentile returns the p-th percentile of values by rank, computed on a
// sorted copy. The input is never mutated.
func percentile(values []float64, p int) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
