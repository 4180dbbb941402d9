package logging

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/launchlab/shotcore/internal/telemetry"
)

// #region log-events
// LogEvents writes a batch of telemetry events to the telemetry_log table in
// one transaction.
func LogEvents(ctx context.Context, db *sql.DB, sessionID string, events []telemetry.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO telemetry_log (session_id, ts, phase, code, value_a, value_b)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, sessionID, e.Timestamp, e.Phase, int(e.Code), e.ValueA, e.ValueB); err != nil {
			return fmt.Errorf("log event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadEvents reads a session's events in insertion order.
func LoadEvents(ctx context.Context, db *sql.DB, sessionID string) ([]telemetry.Event, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT ts, phase, code, value_a, value_b FROM telemetry_log WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []telemetry.Event
	for rows.Next() {
		var (
			e    telemetry.Event
			code int
		)
		if err := rows.Scan(&e.Timestamp, &e.Phase, &code, &e.ValueA, &e.ValueB); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Code = telemetry.Code(code)
		out = append(out, e)
	}
	return out, rows.Err()
}
// #endregion log-events

// #region recorder
// Recorder drains a telemetry ring into the database for one session.
type Recorder struct {
	db        *sql.DB
	ring      *telemetry.Ring
	sessionID string
}

// NewRecorder binds a ring to a session.
func NewRecorder(db *sql.DB, ring *telemetry.Ring, sessionID string) *Recorder {
	return &Recorder{db: db, ring: ring, sessionID: sessionID}
}

// Flush persists everything currently buffered and returns the event count.
// On error the drained events are lost; the ring never blocks producers.
func (r *Recorder) Flush(ctx context.Context) (int, error) {
	events := r.ring.Drain()
	if err := LogEvents(ctx, r.db, r.sessionID, events); err != nil {
		return 0, err
	}
	return len(events), nil
}
// #endregion recorder
