package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/launchlab/shotcore/internal/lifecycle"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	label         TEXT,
	started_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS shots (
	shot_id       TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	attempt_start REAL NOT NULL,
	impact_at     REAL NOT NULL,
	separated_at  REAL NOT NULL,
	finalized_at  REAL NOT NULL,
	summary_json  TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS refusals (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	reason        TEXT NOT NULL,
	detail        TEXT,
	attempt_start REAL NOT NULL,
	decided_at    REAL NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS telemetry_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	ts            REAL NOT NULL,
	phase         TEXT NOT NULL,
	code          INTEGER NOT NULL,
	value_a       REAL NOT NULL,
	value_b       REAL NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);
`
// #endregion schema

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNoSession is returned when an outcome arrives before StartSession.
var ErrNoSession = errors.New("no active session")

// #region store-struct
// Store persists sessions and their outcomes in SQLite.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	current string
}
// #endregion store-struct

// #region constructor
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA foreign_keys=ON",
}

// NewStore opens the shot database at path, creating the session, shot and
// refusal tables when they are missing. ":memory:" gives a throwaway store.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open shot db %s: %w", path, err)
	}
	if path == ":memory:" {
		// each pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create shot tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the shot database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection so telemetry rows land in the same file as the
// outcomes they explain.
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion constructor

// #region sessions
// StartSession creates a session and makes it current.
func (s *Store) StartSession(ctx context.Context, label string) (Session, error) {
	sess := Session{ID: uuid.New().String(), Label: label, StartedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, label, started_at) VALUES (?, ?, ?)`,
		sess.ID, nullIfEmpty(label), sess.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	s.mu.Lock()
	s.current = sess.ID
	s.mu.Unlock()
	return sess, nil
}

// Current returns the active session ID, empty before StartSession.
func (s *Store) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Sessions lists sessions newest first.
func (s *Store) Sessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, COALESCE(label, ''), started_at FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess    Session
			started string
		)
		if err := rows.Scan(&sess.ID, &sess.Label, &started); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.StartedAt, _ = time.Parse(timeLayout, started)
		out = append(out, sess)
	}
	return out, rows.Err()
}
// #endregion sessions

// #region publish
// Publish stores one decision in the current session. It implements
// lifecycle.Sink.
func (s *Store) Publish(ctx context.Context, d lifecycle.Decision) error {
	sessionID := s.Current()
	if sessionID == "" {
		return ErrNoSession
	}
	now := time.Now().UTC().Format(timeLayout)

	if d.Finalized() {
		sum := d.Summary
		data, err := json.Marshal(sum)
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO shots (shot_id, session_id, attempt_start, impact_at, separated_at, finalized_at, summary_json, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sum.ShotID, sessionID, sum.AttemptStart, sum.ImpactAt, sum.SeparatedAt, sum.FinalizedAt, string(data), now,
		)
		if err != nil {
			return fmt.Errorf("insert shot: %w", err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refusals (session_id, reason, detail, attempt_start, decided_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, string(d.Refusal), nullIfEmpty(d.Detail), d.AttemptStart, d.Timestamp, now,
	)
	if err != nil {
		return fmt.Errorf("insert refusal: %w", err)
	}
	return nil
}
// #endregion publish

// #region queries
// Aggregates computes the accepted/refused split for a session.
func (s *Store) Aggregates(ctx context.Context, sessionID string) (Aggregates, error) {
	agg := Aggregates{ByReason: make(map[lifecycle.RefusalReason]int)}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shots WHERE session_id = ?`, sessionID,
	).Scan(&agg.Accepted); err != nil {
		return Aggregates{}, fmt.Errorf("count shots: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT reason, COUNT(*) FROM refusals WHERE session_id = ? GROUP BY reason`, sessionID)
	if err != nil {
		return Aggregates{}, fmt.Errorf("count refusals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			reason string
			n      int
		)
		if err := rows.Scan(&reason, &n); err != nil {
			return Aggregates{}, fmt.Errorf("scan refusal count: %w", err)
		}
		agg.ByReason[lifecycle.RefusalReason(reason)] = n
		agg.Refused += n
	}
	if err := rows.Err(); err != nil {
		return Aggregates{}, err
	}
	agg.Total = agg.Accepted + agg.Refused
	return agg, nil
}

// Recent lists a session's outcomes newest first.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT 'finalized', shot_id, '', '', finalized_at, created_at FROM shots WHERE session_id = ?
		 UNION ALL
		 SELECT 'refused', '', reason, COALESCE(detail, ''), decided_at, created_at FROM refusals WHERE session_id = ?
		 ORDER BY 5 DESC LIMIT ?`,
		sessionID, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o       Outcome
			reason  string
			created string
		)
		if err := rows.Scan(&o.Kind, &o.ShotID, &reason, &o.Detail, &o.DecidedAt, &created); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.SessionID = sessionID
		o.Refusal = lifecycle.RefusalReason(reason)
		o.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, o)
	}
	return out, rows.Err()
}

// Shot loads one finalized summary.
func (s *Store) Shot(ctx context.Context, shotID string) (lifecycle.EngineShotSummary, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT summary_json FROM shots WHERE shot_id = ?`, shotID).Scan(&data)
	if err != nil {
		return lifecycle.EngineShotSummary{}, fmt.Errorf("get shot %s: %w", shotID, err)
	}
	var sum lifecycle.EngineShotSummary
	if err := json.Unmarshal([]byte(data), &sum); err != nil {
		return lifecycle.EngineShotSummary{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	return sum, nil
}
// #endregion queries

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
