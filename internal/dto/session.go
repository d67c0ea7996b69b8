package dto

import (
	"time"

	"github.com/noah-isme/qr-attend-api/internal/models"
)

// CreateSessionRequest is the payload for opening an attendance session.
type CreateSessionRequest struct {
	ClassID              string `json:"class_id" validate:"required"`
	Name                 string `json:"name" validate:"required"`
	DurationMinutes      int    `json:"duration_minutes" validate:"required,gt=0"`
	LateThresholdMinutes int    `json:"late_threshold_minutes" validate:"gte=0"`
	AllowLateEntry       bool   `json:"allow_late_entry"`
	MaxAttendees         *int   `json:"max_attendees" validate:"omitempty,gt=0"`
}

// SessionResponse describes a session in API responses.
type SessionResponse struct {
	ID                   string              `json:"id"`
	ClassID              string              `json:"class_id"`
	Name                 string              `json:"name"`
	OwnerID              string              `json:"owner_id"`
	CreatedAt            time.Time           `json:"created_at"`
	DurationMinutes      int                 `json:"duration_minutes"`
	ExpiresAt            time.Time           `json:"expires_at"`
	LateThresholdMinutes int                 `json:"late_threshold_minutes"`
	AllowLateEntry       bool                `json:"allow_late_entry"`
	MaxAttendees         *int                `json:"max_attendees,omitempty"`
	State                models.SessionState `json:"state"`
	EndedAt              *time.Time          `json:"ended_at,omitempty"`
}

// NewSessionResponse projects a session with its effective state at now.
func NewSessionResponse(s *models.Session, now time.Time) SessionResponse {
	return SessionResponse{
		ID:                   s.ID,
		ClassID:              s.ClassID,
		Name:                 s.Name,
		OwnerID:              s.OwnerID,
		CreatedAt:            s.CreatedAt,
		DurationMinutes:      s.DurationMinutes,
		ExpiresAt:            s.ExpiresAt,
		LateThresholdMinutes: s.LateThresholdMinutes,
		AllowLateEntry:       s.AllowLateEntry,
		MaxAttendees:         s.MaxAttendees,
		State:                s.EffectiveState(now),
		EndedAt:              s.EndedAt,
	}
}

// ListSessionsRequest filters the session listing.
type ListSessionsRequest struct {
	ClassID   string `form:"class_id"`
	State     string `form:"state"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortOrder string `form:"sort_order"`
}
