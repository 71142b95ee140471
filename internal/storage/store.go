package storage

import (
	"context"
	"time"

	"github.com/rfwatch/rfwatch/internal/spectrum"
)

// SessionRecord is the stored metadata of one recording session.
// Summary fields are nil until the session finalizes.
type SessionRecord struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
	State     string
	Duration  time.Duration
	Interval  time.Duration

	StartKHz int64
	EndKHz   int64
	BinCount int

	DeviceSerial   string
	DeviceFirmware string

	SampleCount *int
	PeakDBM     *float64
	PeakKHz     *float64
	Quality     *string
}

// Summary carries the report highlights written back to the session row
// when it finalizes.
type Summary struct {
	EndedAt     time.Time
	State       string
	SampleCount int
	PeakDBM     float64
	PeakKHz     float64
	Quality     string
}

// Store provides an interface for persisting recording sessions and their
// sweeps. All operations that write to the database should be considered
// atomic.
type Store interface {
	// CreateSession inserts a new session row in the running state.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - rec: Session metadata; the caller assigns the ID
	//
	// Returns:
	//   - error: If insertion fails or context is cancelled
	CreateSession(ctx context.Context, rec *SessionRecord) error

	// FinalizeSession marks a session terminal and stores its report
	// highlights.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Unique session identifier
	//   - summary: Final state and report highlights
	//
	// Returns:
	//   - error: ErrNoData if the session does not exist, or if the
	//     update fails
	FinalizeSession(ctx context.Context, id string, summary Summary) error

	// StoreSweep saves one sweep as per-bin readings in a single atomic
	// transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: ID of the session this sweep belongs to
	//   - sweep: Sweep with its amplitude bins
	//
	// Returns:
	//   - error: If storage fails or context is cancelled
	StoreSweep(ctx context.Context, sessionID string, sweep spectrum.Sweep) error

	// Session retrieves a specific recording session by its ID.
	Session(ctx context.Context, id string) (*SessionRecord, error)

	// Sessions returns all recording sessions stored in the database,
	// ordered by start time in ascending order.
	Sessions(ctx context.Context) ([]*SessionRecord, error)

	// LatestSessionID returns the ID of the most recently started
	// session, or ErrNoData when the database holds none.
	LatestSessionID(ctx context.Context) (string, error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}
