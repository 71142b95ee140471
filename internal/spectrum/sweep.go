package spectrum

import "time"

// Sweep is one complete scan across a frequency span: one amplitude per
// bin, in dBm, plus the span active at capture time. Immutable once
// constructed.
type Sweep struct {
	Timestamp time.Time
	StartKHz  int64
	EndKHz    int64
	Bins      []float64
}

// BinWidthKHz returns the spacing between adjacent bin centers. Bins are
// spaced linearly from the span start to the span end inclusive.
func (s Sweep) BinWidthKHz() float64 {
	if len(s.Bins) < 2 {
		return 0
	}
	return float64(s.EndKHz-s.StartKHz) / float64(len(s.Bins)-1)
}

// FrequencyAt returns the center frequency of bin i in kHz.
func (s Sweep) FrequencyAt(i int) float64 {
	return float64(s.StartKHz) + float64(i)*s.BinWidthKHz()
}
