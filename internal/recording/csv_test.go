package recording

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/rfwatch/rfwatch/internal/spectrum"
)

func TestWriteCSV(t *testing.T) {
	clock := newTestClock()
	s := mustSession(t, clock, time.Minute, 5*time.Second)
	s.Start()

	for i := 0; i < 2; i++ {
		clock.advance(5 * time.Second)
		s.Offer(Sample{
			Sweep: spectrum.Sweep{
				Timestamp: clock.t,
				StartKHz:  5_500_000,
				EndKHz:    5_700_000,
				Bins:      []float64{-50, -60, -70, -80},
			},
			Analysis: spectrum.Analysis{
				Timestamp:     clock.t,
				PeakDBM:       -50,
				PeakKHz:       5_500_000,
				NoiseFloorDBM: -80,
				SNRDB:         30,
				MeanDBM:       -65,
			},
		})
	}
	s.Stop()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, s); err != nil {
		t.Fatalf("Expected CSV to write, got %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Expected parseable CSV, got %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d records", len(records))
	}

	header := records[0]
	if len(header) != 11 {
		t.Fatalf("Expected 11 columns, got %d: %v", len(header), header)
	}
	wantBinHeaders := []string{"5500.0MHz", "5566.7MHz", "5633.3MHz", "5700.0MHz"}
	for i, want := range wantBinHeaders {
		if header[7+i] != want {
			t.Errorf("Bin header %d: expected %q, got %q", i, want, header[7+i])
		}
	}

	row := records[1]
	if row[0] != "2025-03-14T10:00:05Z" {
		t.Errorf("Expected RFC3339 timestamp, got %q", row[0])
	}
	if row[1] != "5.000" {
		t.Errorf("Expected elapsed 5.000, got %q", row[1])
	}
	want := []string{"-50.0", "5500000.0", "-65.0", "-80.0", "30.0"}
	for i, w := range want {
		if row[2+i] != w {
			t.Errorf("Column %d: expected %q, got %q", 2+i, w, row[2+i])
		}
	}
	if row[7] != "-50.0" || row[10] != "-80.0" {
		t.Errorf("Expected bin values in row, got %v", row[7:])
	}

	if records[2][1] != "10.000" {
		t.Errorf("Expected second row elapsed 10.000, got %q", records[2][1])
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	clock := newTestClock()
	s := mustSession(t, clock, time.Minute, 5*time.Second)
	s.Start()
	s.Stop()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, s); err != nil {
		t.Fatalf("Expected CSV to write, got %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Expected parseable CSV, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected header only, got %d records", len(records))
	}
	if len(records[0]) != len(baseHeader) {
		t.Errorf("Expected %d columns, got %d", len(baseHeader), len(records[0]))
	}
}
