package lidardb

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/puck.report/internal/lidar"
	"github.com/banshee-data/puck.report/internal/monitoring"
)

// LidarDB persists capture sessions and per-sweep summaries in SQLite.
type LidarDB struct {
	*sql.DB
}

// schema.sql defines the session and sweep summary tables.
//
//go:embed schema.sql
var schemaSQL string

// NewLidarDB opens (creating if necessary) the database at path and applies
// the embedded schema.
func NewLidarDB(path string) (*LidarDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply lidar schema: %w", err)
	}

	monitoring.Logf("initialized lidar database schema at %s", path)

	return &LidarDB{db}, nil
}

// SweepRecord is one persisted sweep summary.
type SweepRecord struct {
	ID                int64   `json:"id"`
	SweepID           string  `json:"sweep_id"`
	SessionID         int64   `json:"session_id"`
	SensorID          string  `json:"sensor_id"`
	Sequence          int64   `json:"sequence"`
	PointCount        int     `json:"point_count"`
	RingCounts        []int   `json:"ring_counts"`
	Duration          float64 `json:"duration_s"`
	DeviceTimestampUS uint32  `json:"device_timestamp_us"`
}

// StartSession creates a new capture session record and returns its id.
func (ldb *LidarDB) StartSession(sensorID, sourceAddr, notes string) (int64, error) {
	result, err := ldb.Exec(
		`INSERT INTO lidar_sessions (sensor_id, source_address, session_notes) VALUES (?, ?, ?)`,
		sensorID, sourceAddr, notes,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to start lidar session: %w", err)
	}
	return result.LastInsertId()
}

// RecordSweep stores the summary of one emitted sweep and returns the
// generated sweep id.
func (ldb *LidarDB) RecordSweep(sessionID int64, s *lidar.Sweep) (string, error) {
	ringCounts := make([]int, len(s.Scans))
	for i := range s.Scans {
		ringCounts[i] = len(s.Scans[i].Points)
	}
	ringJSON, err := json.Marshal(ringCounts)
	if err != nil {
		return "", fmt.Errorf("failed to encode ring counts: %w", err)
	}

	sweepID := uuid.NewString()
	_, err = ldb.Exec(
		`INSERT INTO lidar_sweeps (sweep_id, session_id, sensor_id, sequence, point_count, ring_counts, duration_s, device_timestamp_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sweepID, sessionID, s.SensorID, s.Sequence, s.PointCount(), string(ringJSON), s.Duration, s.DeviceTimestamp,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert sweep %d: %w", s.Sequence, err)
	}
	return sweepID, nil
}

// GetSweep returns one sweep summary by sweep id.
func (ldb *LidarDB) GetSweep(sweepID string) (*SweepRecord, error) {
	row := ldb.QueryRow(
		`SELECT id, sweep_id, session_id, sensor_id, sequence, point_count, ring_counts, duration_s, device_timestamp_us
		 FROM lidar_sweeps WHERE sweep_id = ?`, sweepID)

	var rec SweepRecord
	var ringJSON string
	if err := row.Scan(&rec.ID, &rec.SweepID, &rec.SessionID, &rec.SensorID, &rec.Sequence,
		&rec.PointCount, &ringJSON, &rec.Duration, &rec.DeviceTimestampUS); err != nil {
		return nil, fmt.Errorf("failed to load sweep %s: %w", sweepID, err)
	}
	if err := json.Unmarshal([]byte(ringJSON), &rec.RingCounts); err != nil {
		return nil, fmt.Errorf("failed to decode ring counts for sweep %s: %w", sweepID, err)
	}
	return &rec, nil
}

// SessionSweeps returns the sweep summaries of a session in emission order.
func (ldb *LidarDB) SessionSweeps(sessionID int64) ([]SweepRecord, error) {
	rows, err := ldb.Query(
		`SELECT id, sweep_id, session_id, sensor_id, sequence, point_count, ring_counts, duration_s, device_timestamp_us
		 FROM lidar_sweeps WHERE session_id = ? ORDER BY sequence`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session %d sweeps: %w", sessionID, err)
	}
	defer rows.Close()

	var records []SweepRecord
	for rows.Next() {
		var rec SweepRecord
		var ringJSON string
		if err := rows.Scan(&rec.ID, &rec.SweepID, &rec.SessionID, &rec.SensorID, &rec.Sequence,
			&rec.PointCount, &ringJSON, &rec.Duration, &rec.DeviceTimestampUS); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ringJSON), &rec.RingCounts); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// EndSession closes a session and rolls up its sweep and point totals.
func (ldb *LidarDB) EndSession(sessionID int64) error {
	_, err := ldb.Exec(
		`UPDATE lidar_sessions
		 SET end_timestamp = ?,
		     sweep_count = (SELECT COUNT(*) FROM lidar_sweeps WHERE session_id = ?),
		     point_count = (SELECT COALESCE(SUM(point_count), 0) FROM lidar_sweeps WHERE session_id = ?)
		 WHERE id = ?`,
		float64(time.Now().UnixNano())/1e9, sessionID, sessionID, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to end lidar session %d: %w", sessionID, err)
	}
	return nil
}
