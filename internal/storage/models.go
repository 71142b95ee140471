package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// sessionRow mirrors a sessions table row.
type sessionRow struct {
	ID             string
	StartedAt      time.Time
	EndedAt        sql.NullTime
	State          string
	DurationMS     int64
	IntervalMS     int64
	StartKHz       int64
	EndKHz         int64
	BinCount       int
	DeviceSerial   sql.NullString
	DeviceFirmware sql.NullString
	SampleCount    sql.NullInt64
	PeakDBM        sql.NullFloat64
	PeakKHz        sql.NullFloat64
	Quality        sql.NullString
}

func (r *sessionRow) toRecord() *SessionRecord {
	rec := &SessionRecord{
		ID:             r.ID,
		StartedAt:      r.StartedAt,
		State:          r.State,
		Duration:       time.Duration(r.DurationMS) * time.Millisecond,
		Interval:       time.Duration(r.IntervalMS) * time.Millisecond,
		StartKHz:       r.StartKHz,
		EndKHz:         r.EndKHz,
		BinCount:       r.BinCount,
		DeviceSerial:   r.DeviceSerial.String,
		DeviceFirmware: r.DeviceFirmware.String,
	}

	if r.EndedAt.Valid {
		rec.EndedAt = &r.EndedAt.Time
	}
	if r.SampleCount.Valid {
		count := int(r.SampleCount.Int64)
		rec.SampleCount = &count
	}
	if r.PeakDBM.Valid {
		rec.PeakDBM = &r.PeakDBM.Float64
	}
	if r.PeakKHz.Valid {
		rec.PeakKHz = &r.PeakKHz.Float64
	}
	if r.Quality.Valid {
		rec.Quality = &r.Quality.String
	}

	return rec
}

// readingRow mirrors a readings table row.
type readingRow struct {
	SessionID string
	Timestamp time.Time
	Frequency float64
	BinWidth  float64
	Power     sql.NullFloat64
}

// sqliteDatetimeLayouts covers the formats the driver writes and the
// bare form SQLite itself produces.
var sqliteDatetimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// sqliteDatetime scans datetime values coming back through aggregate
// expressions. Aggregates lose the column's declared type, so the
// driver hands back TEXT instead of time.Time.
type sqliteDatetime struct {
	Datetime time.Time
}

func (d *sqliteDatetime) Scan(value any) error {
	switch v := value.(type) {
	case time.Time:
		d.Datetime = v
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	}
	return fmt.Errorf("unsupported datetime value of type %T", value)
}

func (d *sqliteDatetime) parse(s string) error {
	for _, layout := range sqliteDatetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Datetime = t
			return nil
		}
	}
	return fmt.Errorf("unparseable datetime value %q", s)
}
