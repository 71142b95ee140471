package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNoData indicates either that no sweep data exists for the given
// parameters, or that all available data has been read from the reader.
var ErrNoData = fmt.Errorf("no data available")

// Reading is a single stored frequency bin measurement. Power is nil
// when the bin was padded in to keep a sweep rectangular.
type Reading struct {
	Frequency float64 // kHz
	BinWidth  float64 // kHz
	Power     *float64
}

// SweepRow is one sweep reassembled from stored readings, ordered by
// ascending frequency.
type SweepRow struct {
	Timestamp      time.Time
	FrequencyStart float64
	FrequencyEnd   float64
	Readings       []Reading
}

// SweepReader provides an iterator-based interface for reading recorded
// sweeps with optional time and frequency filtering.
type SweepReader interface {
	// Session returns metadata about the recording session this reader
	// is accessing.
	Session() *SessionRecord

	// Next advances the iterator and returns true if there is another
	// sweep to read, false when the iteration is complete or if an
	// error occurred.
	Next(context.Context) bool

	// Current returns the current sweep in the iteration.
	// If called after Next() returns false, the behavior is undefined.
	Current() *SweepRow

	// Error returns any error that occurred during iteration.
	// If Next() returns false, Error() should be checked to distinguish
	// between end of data and an error condition.
	Error() error

	// Close releases any resources associated with the reader.
	// After Close is called, the reader should not be used.
	Close() error
}

// ReaderOption configures a SweepReader with specific filtering criteria.
type ReaderOption func(*SqliteSweepReader)

// WithMinFreq sets the minimum frequency filter in kHz. Readings below
// this value will be excluded.
func WithMinFreq(f float64) ReaderOption {
	return func(r *SqliteSweepReader) {
		r.minFreq = &f
	}
}

// WithMaxFreq sets the maximum frequency filter in kHz. Readings above
// this value will be excluded.
func WithMaxFreq(f float64) ReaderOption {
	return func(r *SqliteSweepReader) {
		r.maxFreq = &f
	}
}

// WithFreqRange sets both minimum and maximum frequency filters.
// This is a convenience function equivalent to applying both WithMinFreq
// and WithMaxFreq.
func WithFreqRange(minFreq, maxFreq float64) ReaderOption {
	return func(r *SqliteSweepReader) {
		r.minFreq = &minFreq
		r.maxFreq = &maxFreq
	}
}

// WithStartTime sets the start time filter. Readings captured before
// this time will be excluded.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteSweepReader) {
		r.startTime = &t
	}
}

// WithEndTime sets the end time filter. Readings captured after this
// time will be excluded.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteSweepReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
// This is a convenience function equivalent to applying both
// WithStartTime and WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteSweepReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// newSqliteSweepReader creates a reader over one session's stored
// readings, applying optional filters.
func newSqliteSweepReader(db *sql.DB, sessionID string, opts ...ReaderOption) (*SqliteSweepReader, error) {
	sr := &SqliteSweepReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(sr)
	}
	if err := sr.init(context.Background()); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return sr, nil
}

// SqliteSweepReader implements SweepReader for the SQLite backend.
type SqliteSweepReader struct {
	db *sql.DB

	sessionID string
	session   *SessionRecord
	numChunks int

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter
	minFreq   *float64   // Optional minimum frequency filter
	maxFreq   *float64   // Optional maximum frequency filter

	currentRow        *SweepRow
	nextReading       Reading // First reading of next sweep
	nextReadingExists bool
	nextRowTimestamp  time.Time
	rows              *sql.Rows
	err               error
}

func (sr *SqliteSweepReader) init(ctx context.Context) error {
	if sr.db == nil {
		return errors.New("database connection required")
	}
	if sr.sessionID == "" {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: sr.loadSession},
		{msg: "initializing filters", fn: sr.initFilters},
		{msg: "initializing query", fn: sr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (sr *SqliteSweepReader) loadSession(ctx context.Context) (err error) {
	stmt, err := sr.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var row sessionRow
	if err = stmt.QueryRowContext(ctx, sr.sessionID).Scan(
		&row.ID,
		&row.StartedAt,
		&row.EndedAt,
		&row.State,
		&row.DurationMS,
		&row.IntervalMS,
		&row.StartKHz,
		&row.EndKHz,
		&row.BinCount,
		&row.DeviceSerial,
		&row.DeviceFirmware,
		&row.SampleCount,
		&row.PeakDBM,
		&row.PeakKHz,
		&row.Quality,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("session %s: %w", sr.sessionID, ErrNoData)
		}
		return fmt.Errorf("querying session: %w", err)
	}

	sr.session = row.toRecord()
	return
}

func (sr *SqliteSweepReader) initFilters(ctx context.Context) (err error) {
	timeFiltersSet := sr.startTime != nil && sr.endTime != nil
	freqFiltersSet := sr.minFreq != nil && sr.maxFreq != nil

	if timeFiltersSet {
		if sr.startTime.After(*sr.endTime) {
			return fmt.Errorf("start time %s is after end time %s", sr.startTime, sr.endTime)
		}
	}
	if freqFiltersSet {
		if *sr.minFreq > *sr.maxFreq {
			return fmt.Errorf("min frequency %f is greater than max frequency %f", *sr.minFreq, *sr.maxFreq)
		}
	}
	if timeFiltersSet && freqFiltersSet {
		return nil
	}

	stmt, err := sr.db.PrepareContext(ctx, selectFilterValuesSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var minFreq, maxFreq sql.NullFloat64
	var startTime, endTime sqliteDatetime
	if err = stmt.QueryRowContext(ctx, sr.sessionID).Scan(&minFreq, &maxFreq, &startTime, &endTime); err != nil {
		return fmt.Errorf("scanning filters data: %w", err)
	}
	if !minFreq.Valid || !maxFreq.Valid {
		return ErrNoData
	}

	if sr.minFreq == nil {
		sr.minFreq = &minFreq.Float64
	}
	if sr.maxFreq == nil {
		sr.maxFreq = &maxFreq.Float64
	}
	if sr.startTime == nil {
		sr.startTime = &startTime.Datetime
	}
	if sr.endTime == nil {
		sr.endTime = &endTime.Datetime
	}

	return nil
}

func (sr *SqliteSweepReader) initQuery(ctx context.Context) (err error) {
	stmt, err := sr.db.PrepareContext(ctx, selectReadingsSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if sr.rows, err = stmt.QueryContext(ctx, sr.sessionID, sr.startTime, sr.endTime, sr.minFreq, sr.maxFreq); err != nil {
		return err
	}
	return nil
}

func (sr *SqliteSweepReader) scanReading() (time.Time, Reading, error) {
	var row readingRow
	var timestamp time.Time

	err := sr.rows.Scan(&timestamp, &row.Frequency, &row.Power, &row.BinWidth)
	if err != nil {
		return time.Time{}, Reading{}, fmt.Errorf("scanning reading: %w", err)
	}

	reading := Reading{
		Frequency: row.Frequency,
		BinWidth:  row.BinWidth,
	}
	if row.Power.Valid {
		reading.Power = &row.Power.Float64
	}
	return timestamp, reading, nil
}

// fillFrequencyRange fills a slice with powerless readings for the given
// frequency range. Readings can be dropped, or a capture can start or
// stop mid sweep, so rows are padded to the full filter range to stay
// rectangular for rendering.
func (sr *SqliteSweepReader) fillFrequencyRange(start, end float64, template Reading) ([]Reading, error) {
	binWidth := template.BinWidth
	if binWidth <= 0 {
		return nil, fmt.Errorf("invalid bin width: %f", binWidth)
	}

	numPoints := int(math.Floor((end-start)/binWidth)) + 1 // add extra step
	if numPoints <= 0 {
		return nil, nil
	}

	readings := make([]Reading, 0, numPoints)
	for i := 0; i < numPoints; i++ {
		freq := start + float64(i)*binWidth
		if freq <= end { // make sure there is no overlap
			readings = append(readings, Reading{Frequency: freq, BinWidth: binWidth})
			continue
		}
		break
	}
	return readings, nil
}

func (sr *SqliteSweepReader) Session() *SessionRecord {
	return sr.session
}

func (sr *SqliteSweepReader) Next(ctx context.Context) bool {
	if sr.err != nil || sr.rows == nil {
		return false
	}

	if sr.nextReadingExists {
		if sr.numChunks == 0 {
			n := (*sr.maxFreq - *sr.minFreq) / sr.nextReading.BinWidth
			sr.numChunks = int(n * 1.1) // add 10% to account for rounding errors and variations in bin width
		}
		sr.currentRow = &SweepRow{
			Timestamp:      sr.nextRowTimestamp,
			FrequencyStart: sr.nextReading.Frequency,
			Readings:       make([]Reading, 0, sr.numChunks),
		}
		sr.currentRow.Readings = append(sr.currentRow.Readings, sr.nextReading)
		sr.nextReadingExists = false

		// Detect and fill gaps between the start of the span and the
		// first reading
		if freqGreater(sr.nextReading.Frequency, *sr.minFreq, sr.nextReading.BinWidth) {
			gap, err := sr.fillFrequencyRange(*sr.minFreq, sr.nextReading.Frequency, sr.nextReading)
			if err != nil {
				sr.err = fmt.Errorf("filling min frequency gap: %w", err)
				return false
			}
			sr.currentRow.Readings = append(gap, sr.currentRow.Readings...)
			sr.currentRow.FrequencyStart = *sr.minFreq
		}
	}

	for {
		select {
		case <-ctx.Done():
			sr.err = ctx.Err()
			return false
		default:
		}

		if !sr.rows.Next() {
			if sr.currentRow != nil && len(sr.currentRow.Readings) > 0 {
				last := sr.currentRow.Readings[len(sr.currentRow.Readings)-1]
				sr.currentRow.FrequencyEnd = last.Frequency

				// Detect and fill gaps between the last reading and the
				// end of the span
				if freqLess(last.Frequency, *sr.maxFreq, last.BinWidth) {
					gap, err := sr.fillFrequencyRange(last.Frequency+last.BinWidth, *sr.maxFreq, last)
					if err != nil {
						sr.err = fmt.Errorf("filling max frequency gap: %w", err)
						return false
					}
					sr.currentRow.Readings = append(sr.currentRow.Readings, gap...)
					sr.currentRow.FrequencyEnd = *sr.maxFreq
				}

				sr.err = ErrNoData
				return true
			}
			return false
		}

		timestamp, reading, err := sr.scanReading()
		if err != nil {
			sr.err = err
			return false
		}

		// If no current sweep, create new one
		if sr.currentRow == nil {
			if sr.numChunks == 0 {
				n := (*sr.maxFreq - *sr.minFreq) / reading.BinWidth
				sr.numChunks = int(n * 1.1)
			}
			sr.currentRow = &SweepRow{
				Timestamp:      timestamp,
				FrequencyStart: reading.Frequency,
				Readings:       make([]Reading, 0, sr.numChunks),
			}
			sr.currentRow.Readings = append(sr.currentRow.Readings, reading)

			if freqGreater(reading.Frequency, *sr.minFreq, reading.BinWidth) {
				gap, err := sr.fillFrequencyRange(*sr.minFreq, reading.Frequency, reading)
				if err != nil {
					sr.err = fmt.Errorf("filling min frequency gap: %w", err)
					return false
				}
				sr.currentRow.Readings = append(gap, sr.currentRow.Readings...)
				sr.currentRow.FrequencyStart = *sr.minFreq
			}
			continue
		}

		// Check for frequency rollover only
		last := sr.currentRow.Readings[len(sr.currentRow.Readings)-1]
		if reading.Frequency < last.Frequency {
			// Frequency rolled over - complete current sweep
			sr.currentRow.FrequencyEnd = last.Frequency

			if freqLess(last.Frequency, *sr.maxFreq, last.BinWidth) {
				gap, err := sr.fillFrequencyRange(last.Frequency+last.BinWidth, *sr.maxFreq, last)
				if err != nil {
					sr.err = fmt.Errorf("filling max frequency gap: %w", err)
					return false
				}
				sr.currentRow.Readings = append(sr.currentRow.Readings, gap...)
				sr.currentRow.FrequencyEnd = *sr.maxFreq
			}

			sr.nextReading = reading
			sr.nextReadingExists = true
			sr.nextRowTimestamp = timestamp
			return true
		}

		// Detect and fill the gap between two readings
		if freqLess(last.Frequency+last.BinWidth, reading.Frequency, last.BinWidth) {
			gap, err := sr.fillFrequencyRange(last.Frequency+last.BinWidth, reading.Frequency, last)
			if err != nil {
				sr.err = fmt.Errorf("filling frequency gap between readings: %w", err)
				return false
			}
			sr.currentRow.Readings = append(sr.currentRow.Readings, gap...)
		}

		sr.currentRow.Readings = append(sr.currentRow.Readings, reading)
	}
}

func (sr *SqliteSweepReader) Current() *SweepRow {
	return sr.currentRow
}

func (sr *SqliteSweepReader) Error() error {
	if sr.err != nil && !errors.Is(sr.err, ErrNoData) {
		return sr.err
	}
	if sr.rows != nil {
		return sr.rows.Err()
	}
	return nil
}

func (sr *SqliteSweepReader) Close() error {
	if sr.rows != nil {
		err := sr.rows.Close()
		sr.currentRow = nil
		sr.nextReadingExists = false
		sr.rows = nil
		return err
	}
	return nil
}
