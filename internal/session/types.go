package session

import (
	"time"

	"github.com/launchlab/shotcore/internal/lifecycle"
)

// #region session
// Session is one practice session; every outcome belongs to exactly one.
type Session struct {
	ID        string
	Label     string
	StartedAt time.Time
}
// #endregion session

// #region outcome
// Outcome is one stored terminal decision.
type Outcome struct {
	SessionID string
	Kind      string // "finalized" | "refused"
	ShotID    string
	Refusal   lifecycle.RefusalReason
	Detail    string
	DecidedAt float64 // frame timebase
	CreatedAt time.Time
}
// #endregion outcome

// #region aggregates
// Aggregates is the session-level report.
type Aggregates struct {
	Total    int
	Accepted int
	Refused  int
	ByReason map[lifecycle.RefusalReason]int
}

// AcceptRate returns Accepted/Total, 0 for an empty session.
func (a Aggregates) AcceptRate() float64 {
	if a.Total == 0 {
		return 0
	}
	return float64(a.Accepted) / float64(a.Total)
}
// #endregion aggregates
