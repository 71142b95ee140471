package storage

import (
	"database/sql"
	"errors"
	"math"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// rollbackWithError folds a deferred rollback failure into err. ErrTxDone
// means the transaction was already committed, which is the normal exit.
func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	cErr := rb.Rollback()
	if cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// freqCompare helps compare frequencies using bin width-based tolerance.
// Returns:
//
//	-1 if a < b
//	 0 if a ≈ b (within tolerance)
//	+1 if a > b
func freqCompare(a, b, binWidth float64) int {
	// Use small fraction of bin width as tolerance
	tolerance := binWidth * 0.01 // 1% of bin width

	diff := a - b
	if math.Abs(diff) <= tolerance {
		return 0
	}
	if diff < 0 {
		return -1
	}
	return 1
}

// freqLess returns true if a is less than b with bin width-based tolerance
func freqLess(a, b, binWidth float64) bool {
	return freqCompare(a, b, binWidth) < 0
}

// freqGreater returns true if a is greater than b with bin width-based tolerance
func freqGreater(a, b, binWidth float64) bool {
	return freqCompare(a, b, binWidth) > 0
}
