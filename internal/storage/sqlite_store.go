package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rfwatch/rfwatch/internal/spectrum"
)

// insertBatchRows caps how many readings go into a single INSERT so the
// statement stays under SQLite's bound parameter limit.
const insertBatchRows = 128

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the SQLite database at dbPath.
// Connections are opened lazily and the schema is initialized on the
// first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, rec *SessionRecord) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	_, err = stmt.ExecContext(
		ctx,
		rec.ID,
		rec.StartedAt.UTC(),
		rec.State,
		rec.Duration.Milliseconds(),
		rec.Interval.Milliseconds(),
		rec.StartKHz,
		rec.EndKHz,
		rec.BinCount,
		toNullString(rec.DeviceSerial),
		toNullString(rec.DeviceFirmware),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (s *SqliteStore) FinalizeSession(ctx context.Context, id string, summary Summary) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, finalizeSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(
		ctx,
		summary.EndedAt.UTC(),
		summary.State,
		summary.SampleCount,
		summary.PeakDBM,
		summary.PeakKHz,
		summary.Quality,
		id,
	)
	if err != nil {
		return fmt.Errorf("finalizing session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finalizing session %s: %w", id, ErrNoData)
	}
	return nil
}

func (s *SqliteStore) StoreSweep(ctx context.Context, sessionID string, sweep spectrum.Sweep) (err error) {
	if len(sweep.Bins) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	binWidth := sweep.BinWidthKHz()
	timestamp := sweep.Timestamp.UTC()

	for offset := 0; offset < len(sweep.Bins); offset += insertBatchRows {
		end := offset + insertBatchRows
		if end > len(sweep.Bins) {
			end = len(sweep.Bins)
		}

		values := make([]any, 0, (end-offset)*5)

		var sb strings.Builder
		sb.WriteString(insertReadingSQL)

		for i := offset; i < end; i++ {
			if i > offset {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?)")

			values = append(values,
				sessionID,
				timestamp,
				sweep.FrequencyAt(i),
				binWidth,
				sweep.Bins[i],
			)
		}

		if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("batch inserting readings: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *SqliteStore) Session(ctx context.Context, id string) (session *SessionRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var row sessionRow
	if err = stmt.QueryRowContext(ctx, id).Scan(
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
			err = fmt.Errorf("session %s: %w", id, ErrNoData)
			return
		}
		err = fmt.Errorf("scanning session: %w", err)
		return
	}

	return row.toRecord(), nil
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*SessionRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var row sessionRow
		if err = rows.Scan(
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
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, row.toRecord())
	}
	return
}

func (s *SqliteStore) LatestSessionID(ctx context.Context) (id string, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	if err = db.QueryRowContext(ctx, selectLatestSessionSQL).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNoData
			return
		}
		err = fmt.Errorf("querying latest session: %w", err)
	}
	return
}

// ReadSweeps creates a new SweepReader that iterates over the sweeps
// recorded in one session. The reader reassembles per-bin readings into
// whole sweeps and supports time and frequency filtering.
//
// Parameters:
//   - sessionID: Unique identifier of the recording session to read from
//   - opts: Optional filters (WithTimeRange, WithFreqRange, WithMinFreq,
//     WithMaxFreq, WithStartTime, WithEndTime)
//
// The returned SweepReader must be closed after use to release database
// resources. Each reader instance should only be used from a single
// goroutine.
//
// Returns error if reader creation fails or the session doesn't exist.
func (s *SqliteStore) ReadSweeps(sessionID string, opts ...ReaderOption) (*SqliteSweepReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteSweepReader(db, sessionID, opts...)
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}
