package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (id,
                      started_at,
                      state,
                      duration_ms,
                      interval_ms,
                      start_khz,
                      end_khz,
                      bin_count,
                      device_serial,
                      device_firmware)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	finalizeSessionSQL = `
UPDATE sessions
SET ended_at     = ?,
    state        = ?,
    sample_count = ?,
    peak_dbm     = ?,
    peak_khz     = ?,
    quality      = ?
WHERE id = ?`

	selectSessionSQL = `
SELECT id,
       started_at,
       ended_at,
       state,
       duration_ms,
       interval_ms,
       start_khz,
       end_khz,
       bin_count,
       device_serial,
       device_firmware,
       sample_count,
       peak_dbm,
       peak_khz,
       quality
FROM sessions
WHERE id = ?`

	selectSessionsSQL = `
SELECT id,
       started_at,
       ended_at,
       state,
       duration_ms,
       interval_ms,
       start_khz,
       end_khz,
       bin_count,
       device_serial,
       device_firmware,
       sample_count,
       peak_dbm,
       peak_khz,
       quality
FROM sessions
ORDER BY started_at`

	selectLatestSessionSQL = `
SELECT id
FROM sessions
ORDER BY started_at DESC
LIMIT 1`

	insertReadingSQL = `
INSERT INTO readings (session_id,
                      timestamp,
                      frequency,
                      bin_width,
                      power)
VALUES `

	selectFilterValuesSQL = `
SELECT MIN(frequency),
       MAX(frequency),
       MIN(timestamp),
       MAX(timestamp)
FROM readings
WHERE session_id = ?`

	selectReadingsSQL = `
SELECT timestamp,
       frequency,
       power,
       bin_width
FROM readings
WHERE session_id = ?
  AND timestamp BETWEEN ? AND ?
  AND frequency BETWEEN ? AND ?
ORDER BY timestamp, frequency`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_readings_session_timestamp ON readings (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_readings_frequency ON readings (frequency);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions (started_at)`
)

//go:embed schema.sql
var initSchemaSQL string
