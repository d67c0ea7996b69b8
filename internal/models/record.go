package models

import "time"

// RecordStatus classifies an accepted attendance scan.
type RecordStatus string

const (
	RecordStatusPresent RecordStatus = "PRESENT"
	RecordStatusLate    RecordStatus = "LATE"
)

// ScanContext carries optional metadata reported by the scanning device.
// None of it is authoritative for classification; the server clock is.
type ScanContext struct {
	Location   *string  `db:"location" json:"location,omitempty"`
	Device     *string  `db:"device" json:"device,omitempty"`
	Confidence *float64 `db:"confidence" json:"confidence,omitempty"`
}

// Record represents a single accepted attendance scan. Records are
// immutable once created; corrections happen through external tooling.
type Record struct {
	ID             string       `db:"id" json:"id"`
	SessionID      string       `db:"session_id" json:"session_id"`
	StudentID      string       `db:"student_id" json:"student_id"`
	DisplayName    string       `db:"display_name" json:"display_name"`
	RollNumber     string       `db:"roll_number" json:"roll_number"`
	Timestamp      time.Time    `db:"timestamp" json:"timestamp"`
	Status         RecordStatus `db:"status" json:"status"`
	ArrivalMinutes int          `db:"arrival_minutes" json:"arrival_minutes"`
	ScanContext    ScanContext  `json:"scan_context,omitempty"`
}

// Aggregate summarises a session's record set. It is derived data: a
// fold over the records must always reproduce it exactly.
type Aggregate struct {
	SessionID             string  `json:"session_id"`
	TotalAttendees        int     `json:"total_attendees"`
	PresentCount          int     `json:"present_count"`
	LateCount             int     `json:"late_count"`
	AverageArrivalMinutes float64 `json:"average_arrival_minutes"`
}

// FoldAggregate recomputes the aggregate from scratch over records.
func FoldAggregate(sessionID string, records []Record) Aggregate {
	agg := Aggregate{SessionID: sessionID}
	sum := 0
	for _, r := range records {
		if r.SessionID != sessionID {
			continue
		}
		agg.TotalAttendees++
		sum += r.ArrivalMinutes
		switch r.Status {
		case RecordStatusLate:
			agg.LateCount++
		default:
			agg.PresentCount++
		}
	}
	if agg.TotalAttendees > 0 {
		agg.AverageArrivalMinutes = float64(sum) / float64(agg.TotalAttendees)
	}
	return agg
}
