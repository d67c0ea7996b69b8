package dto

import (
	"time"

	"github.com/noah-isme/qr-attend-api/internal/models"
)

// BindRequest carries a scanned session QR payload.
type BindRequest struct {
	Payload string `json:"payload" validate:"required"`
}

// BindResponse returns the bound session summary.
type BindResponse struct {
	DeviceID string                `json:"device_id"`
	Session  models.SessionSummary `json:"session"`
}

// ScanRequest carries a scanned identity QR payload plus optional
// device-reported context.
type ScanRequest struct {
	Payload    string   `json:"payload" validate:"required"`
	Location   *string  `json:"location"`
	Device     *string  `json:"device"`
	Confidence *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
	// ReportedAt is advisory metadata only; classification always uses
	// the server clock.
	ReportedAt *time.Time `json:"reported_at"`
}

// RecordResponse describes an accepted attendance record.
type RecordResponse struct {
	ID             string              `json:"id"`
	SessionID      string              `json:"session_id"`
	StudentID      string              `json:"student_id"`
	DisplayName    string              `json:"display_name"`
	RollNumber     string              `json:"roll_number"`
	Timestamp      time.Time           `json:"timestamp"`
	Status         models.RecordStatus `json:"status"`
	ArrivalMinutes int                 `json:"arrival_minutes"`
	ScanContext    models.ScanContext  `json:"scan_context,omitempty"`
}

// NewRecordResponse projects a record.
func NewRecordResponse(r *models.Record) RecordResponse {
	return RecordResponse{
		ID:             r.ID,
		SessionID:      r.SessionID,
		StudentID:      r.StudentID,
		DisplayName:    r.DisplayName,
		RollNumber:     r.RollNumber,
		Timestamp:      r.Timestamp,
		Status:         r.Status,
		ArrivalMinutes: r.ArrivalMinutes,
		ScanContext:    r.ScanContext,
	}
}
