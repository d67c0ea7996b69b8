package models

import "time"

// SessionState represents the lifecycle state of an attendance session.
type SessionState string

const (
	SessionStateActive  SessionState = "ACTIVE"
	SessionStateExpired SessionState = "EXPIRED"
	SessionStateEnded   SessionState = "ENDED"
)

// Terminal reports whether the state admits no further transitions.
func (s SessionState) Terminal() bool {
	return s == SessionStateExpired || s == SessionStateEnded
}

// Session represents a time-bounded QR attendance session.
type Session struct {
	ID                   string       `db:"id" json:"id"`
	ClassID              string       `db:"class_id" json:"class_id"`
	Name                 string       `db:"name" json:"name"`
	OwnerID              string       `db:"owner_id" json:"owner_id"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
	DurationMinutes      int          `db:"duration_minutes" json:"duration_minutes"`
	ExpiresAt            time.Time    `db:"expires_at" json:"expires_at"`
	LateThresholdMinutes int          `db:"late_threshold_minutes" json:"late_threshold_minutes"`
	AllowLateEntry       bool         `db:"allow_late_entry" json:"allow_late_entry"`
	MaxAttendees         *int         `db:"max_attendees" json:"max_attendees,omitempty"`
	State                SessionState `db:"state" json:"state"`
	EndedAt              *time.Time   `db:"ended_at" json:"ended_at,omitempty"`
}

// EffectiveState derives the state visible at instant now. Expiry is a
// pure function of time, so a session still flagged ACTIVE in storage
// reads as EXPIRED once its window has elapsed.
func (s *Session) EffectiveState(now time.Time) SessionState {
	if s.State == SessionStateActive && !now.Before(s.ExpiresAt) {
		return SessionStateExpired
	}
	return s.State
}

// Active reports whether the session accepts scans at instant now.
func (s *Session) Active(now time.Time) bool {
	return s.EffectiveState(now) == SessionStateActive
}

// SessionFilter scopes session listing queries.
type SessionFilter struct {
	OwnerID   string
	ClassID   string
	State     *SessionState
	Page      int
	PageSize  int
	SortOrder string
}

// SessionSummary is the compact projection returned on a successful bind.
type SessionSummary struct {
	ID                   string       `json:"id"`
	ClassID              string       `json:"class_id"`
	Name                 string       `json:"name"`
	ExpiresAt            time.Time    `json:"expires_at"`
	LateThresholdMinutes int          `json:"late_threshold_minutes"`
	AllowLateEntry       bool         `json:"allow_late_entry"`
	State                SessionState `json:"state"`
}

// Summary projects the session for scanning devices at instant now.
func (s *Session) Summary(now time.Time) SessionSummary {
	return SessionSummary{
		ID:                   s.ID,
		ClassID:              s.ClassID,
		Name:                 s.Name,
		ExpiresAt:            s.ExpiresAt,
		LateThresholdMinutes: s.LateThresholdMinutes,
		AllowLateEntry:       s.AllowLateEntry,
		State:                s.EffectiveState(now),
	}
}
