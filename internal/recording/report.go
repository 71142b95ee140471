package recording

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	// activityMarginDB sits above the mean peak amplitude to form the
	// activity threshold: samples whose peak rises above it count as
	// active.
	activityMarginDB = 5.0

	// binStatCount caps how many busiest and quietest bins a report
	// carries.
	binStatCount = 5
)

// Signal quality tiers, strongest first.
const (
	QualityExcellent = "excellent"
	QualityGood      = "good"
	QualityFair      = "fair"
	QualityWeak      = "weak"
	QualityNoSignal  = "no signal"
)

// BinStat summarizes a single frequency bin across all accepted samples.
type BinStat struct {
	KHz     float64
	MaxDBM  float64
	MeanDBM float64
}

// Report is the immutable summary of a finalized session. A session
// with zero accepted samples still produces a valid report with zeroed
// statistics.
type Report struct {
	SessionID uuid.UUID
	State     State
	IsPartial bool
	Fault     error

	StartedAt time.Time
	EndedAt   time.Time
	Elapsed   time.Duration

	SampleCount int

	SNRMinDB  float64
	SNRMaxDB  float64
	SNRMeanDB float64

	NoiseFloorMinDBM  float64
	NoiseFloorMaxDBM  float64
	NoiseFloorMeanDBM float64

	PeakDBM float64
	PeakKHz float64

	MeanPeakDBM          float64
	ActivityThresholdDBM float64
	ActivePct            float64
	PeakFreqStdDevKHz    float64
	Quality              string

	BusiestBins  []BinStat
	QuietestBins []BinStat
}

// buildReport must be called with the session lock held.
func buildReport(s *Session) *Report {
	r := &Report{
		SessionID:   s.id,
		State:       s.state,
		IsPartial:   s.state != StateCompleted,
		Fault:       s.fault,
		StartedAt:   s.startedAt,
		EndedAt:     s.endedAt,
		Elapsed:     s.endedAt.Sub(s.startedAt),
		SampleCount: len(s.samples),
	}
	if len(s.samples) == 0 {
		return r
	}

	snrs := make([]float64, len(s.samples))
	floors := make([]float64, len(s.samples))
	peaks := make([]float64, len(s.samples))
	peakFreqs := make([]float64, len(s.samples))
	for i, sample := range s.samples {
		snrs[i] = sample.Analysis.SNRDB
		floors[i] = sample.Analysis.NoiseFloorDBM
		peaks[i] = sample.Analysis.PeakDBM
		peakFreqs[i] = sample.Analysis.PeakKHz
	}

	r.SNRMinDB, r.SNRMaxDB, r.SNRMeanDB = minMaxMean(snrs)
	r.NoiseFloorMinDBM, r.NoiseFloorMaxDBM, r.NoiseFloorMeanDBM = minMaxMean(floors)

	_, r.PeakDBM, r.MeanPeakDBM = minMaxMean(peaks)
	for i, p := range peaks {
		if p == r.PeakDBM {
			r.PeakKHz = peakFreqs[i]
			break
		}
	}

	r.ActivityThresholdDBM = r.MeanPeakDBM + activityMarginDB
	var active int
	for _, p := range peaks {
		if p > r.ActivityThresholdDBM {
			active++
		}
	}
	r.ActivePct = 100 * float64(active) / float64(len(peaks))

	r.PeakFreqStdDevKHz = stddev(peakFreqs)
	r.Quality = classifyQuality(r.PeakDBM)
	r.BusiestBins, r.QuietestBins = binStats(s.samples)

	return r
}

func minMaxMean(values []float64) (min, max, mean float64) {
	min, max = values[0], values[0]
	var sum float64
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return min, max, sum / float64(len(values))
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

func classifyQuality(peakDBM float64) string {
	switch {
	case peakDBM > -50:
		return QualityExcellent
	case peakDBM > -60:
		return QualityGood
	case peakDBM > -70:
		return QualityFair
	case peakDBM > -80:
		return QualityWeak
	}
	return QualityNoSignal
}

// binStats aggregates per-bin maxima and means across the session.
// Aggregation only makes sense when every sample shares one span and
// bin count; mixed-span sessions yield no bin stats.
func binStats(samples []Sample) (busiest, quietest []BinStat) {
	first := samples[0].Sweep
	n := len(first.Bins)
	if n == 0 {
		return nil, nil
	}
	for _, sample := range samples[1:] {
		sw := sample.Sweep
		if sw.StartKHz != first.StartKHz || sw.EndKHz != first.EndKHz || len(sw.Bins) != n {
			return nil, nil
		}
	}

	stats := make([]BinStat, n)
	for i := range stats {
		stats[i] = BinStat{KHz: first.FrequencyAt(i), MaxDBM: math.Inf(-1)}
	}
	for _, sample := range samples {
		for i, v := range sample.Sweep.Bins {
			if v > stats[i].MaxDBM {
				stats[i].MaxDBM = v
			}
			stats[i].MeanDBM += v
		}
	}
	for i := range stats {
		stats[i].MeanDBM /= float64(len(samples))
	}

	k := binStatCount
	if k > n {
		k = n
	}

	// Busiest bins rank by their loudest moment, quietest by their average:
	// a burst marks a bin busy, a low floor marks it quiet.
	ranked := append([]BinStat(nil), stats...)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].MaxDBM > ranked[j].MaxDBM })
	busiest = append([]BinStat(nil), ranked[:k]...)

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].MeanDBM < ranked[j].MeanDBM })
	quietest = append([]BinStat(nil), ranked[:k]...)

	return busiest, quietest
}
