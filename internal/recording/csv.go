package recording

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// baseHeader precedes the per-bin amplitude columns.
var baseHeader = []string{
	"timestamp",
	"elapsed_sec",
	"peak_dbm",
	"peak_khz",
	"avg_dbm",
	"noise_floor_dbm",
	"snr_db",
}

// WriteCSV writes the session's accepted samples as CSV, one row per
// sample: its analysis first, then the amplitude of every bin. Bin
// columns are labeled with the first sample's bin frequencies in MHz.
func WriteCSV(w io.Writer, s *Session) error {
	samples := s.Samples()
	startedAt := s.StartedAt()

	cw := csv.NewWriter(w)

	header := append([]string(nil), baseHeader...)
	if len(samples) > 0 {
		first := samples[0].Sweep
		for i := range first.Bins {
			header = append(header, fmt.Sprintf("%.1fMHz", first.FrequencyAt(i)/1000))
		}
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for _, sample := range samples {
		row := make([]string, 0, len(header))
		row = append(row,
			sample.Sweep.Timestamp.Format(time.RFC3339),
			strconv.FormatFloat(sample.Sweep.Timestamp.Sub(startedAt).Seconds(), 'f', 3, 64),
			strconv.FormatFloat(sample.Analysis.PeakDBM, 'f', 1, 64),
			strconv.FormatFloat(sample.Analysis.PeakKHz, 'f', 1, 64),
			strconv.FormatFloat(sample.Analysis.MeanDBM, 'f', 1, 64),
			strconv.FormatFloat(sample.Analysis.NoiseFloorDBM, 'f', 1, 64),
			strconv.FormatFloat(sample.Analysis.SNRDB, 'f', 1, 64),
		)
		for _, v := range sample.Sweep.Bins {
			row = append(row, strconv.FormatFloat(v, 'f', 1, 64))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
