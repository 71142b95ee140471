package app

import (
	"math"
	"time"

	"github.com/rfwatch/rfwatch/internal/storage"
)

// WaterfallData accumulates recorded sweeps into a pixel grid. Each sweep
// becomes one row, each frequency bin one column.
type WaterfallData struct {
	Width, Height                    int
	FrequencyMinKHz, FrequencyMaxKHz float64
	TimestampStart, TimestampEnd     time.Time
	BoundsTracker                    *SmoothBounds
	Rows                             [][]*float64
}

func NewWaterfallData(b *SmoothBounds) *WaterfallData {
	return &WaterfallData{
		FrequencyMinKHz: math.MaxFloat64,
		FrequencyMaxKHz: 0,
		BoundsTracker:   b,
		Rows:            make([][]*float64, 0),
	}
}

func (w *WaterfallData) Update(row *storage.SweepRow) {
	w.Width = max(w.Width, len(row.Readings))
	w.Height++

	w.FrequencyMinKHz = min(w.FrequencyMinKHz, row.FrequencyStart)
	w.FrequencyMaxKHz = max(w.FrequencyMaxKHz, row.FrequencyEnd)

	if w.TimestampStart.IsZero() || w.TimestampStart.After(row.Timestamp) {
		w.TimestampStart = row.Timestamp
	}
	if w.TimestampEnd.IsZero() || w.TimestampEnd.Before(row.Timestamp) {
		w.TimestampEnd = row.Timestamp
	}

	powers := make([]*float64, len(row.Readings))
	for i, reading := range row.Readings {
		powers[i] = reading.Power
		w.BoundsTracker.Update(reading.Power)
	}
	w.Rows = append(w.Rows, powers)
}

// Bounds returns the power bounds used for color mapping. Manual overrides
// take precedence over the tracked percentile bounds; an inverted range
// falls back to the defaults.
func (w *WaterfallData) Bounds(minPower, maxPower *float64) PowerBounds {
	bounds := w.BoundsTracker.Current()
	if minPower != nil {
		bounds.Min = *minPower
	}
	if maxPower != nil {
		bounds.Max = *maxPower
	}
	if bounds.Max <= bounds.Min {
		return defaultPowerBounds()
	}
	return bounds
}
