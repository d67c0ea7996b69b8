package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/qr-attend-api/internal/models"
	appErrors "github.com/noah-isme/qr-attend-api/pkg/errors"
)

// SessionRepository manages persistence for sessions and their records.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession inserts a new session row.
func (r *SessionRepository) CreateSession(ctx context.Context, s *models.Session) error {
	query := `INSERT INTO sessions (id, class_id, name, owner_id, created_at, duration_minutes, expires_at, late_threshold_minutes, allow_late_entry, max_attendees, state)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query,
		s.ID, s.ClassID, s.Name, s.OwnerID, s.CreatedAt, s.DurationMinutes,
		s.ExpiresAt, s.LateThresholdMinutes, s.AllowLateEntry, s.MaxAttendees, s.State,
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FindSessionByID fetches a session by ID.
func (r *SessionRepository) FindSessionByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT id, class_id, name, owner_id, created_at, duration_minutes, expires_at, late_threshold_minutes, allow_late_entry, max_attendees, state, ended_at
        FROM sessions WHERE id = $1`
	var s models.Session
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &s, nil
}

// ListSessions returns sessions matching the provided filters.
func (r *SessionRepository) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	base := "FROM sessions"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)+1))
		args = append(args, filter.OwnerID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, *filter.State)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, class_id, name, owner_id, created_at, duration_minutes, expires_at, late_threshold_minutes, allow_late_entry, max_attendees, state, ended_at
        %s ORDER BY created_at %s LIMIT %d OFFSET %d`, base, order, size, offset)

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// EndSession transitions ACTIVE -> ENDED as a single compare-and-swap.
// The expiry guard keeps an end call that races the expiry boundary from
// rewriting an effectively-expired session. Returns false when the
// session was already terminal (or missing).
func (r *SessionRepository) EndSession(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	query := `UPDATE sessions SET state = $1, ended_at = $2 WHERE id = $3 AND state = $4 AND expires_at > $2`
	res, err := r.db.ExecContext(ctx, query, models.SessionStateEnded, endedAt, id, models.SessionStateActive)
	if err != nil {
		return false, fmt.Errorf("end session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("end session rows: %w", err)
	}
	return affected == 1, nil
}

// InsertRecord persists an attendance record. The unique index on
// (session_id, student_id) backs the at-most-once guarantee; violations
// surface as DUPLICATE_SCAN.
func (r *SessionRepository) InsertRecord(ctx context.Context, rec *models.Record) error {
	query := `INSERT INTO attendance_records (id, session_id, student_id, display_name, roll_number, timestamp, status, arrival_minutes, location, device, confidence)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.SessionID, rec.StudentID, rec.DisplayName, rec.RollNumber,
		rec.Timestamp, rec.Status, rec.ArrivalMinutes,
		rec.ScanContext.Location, rec.ScanContext.Device, rec.ScanContext.Confidence,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return appErrors.ErrDuplicateScan
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// HasRecord reports whether the student already scanned into the session.
func (r *SessionRepository) HasRecord(ctx context.Context, sessionID, studentID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM attendance_records WHERE session_id = $1 AND student_id = $2 LIMIT 1", sessionID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check record: %w", err)
	}
	return true, nil
}

// CountRecords returns the number of records for the session.
func (r *SessionRepository) CountRecords(ctx context.Context, sessionID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM attendance_records WHERE session_id = $1", sessionID); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return total, nil
}

// ListRecords returns the session's records in export order:
// timestamp ascending, ties broken by student ID ascending.
func (r *SessionRepository) ListRecords(ctx context.Context, sessionID string) ([]models.Record, error) {
	query := `SELECT id, session_id, student_id, display_name, roll_number, timestamp, status, arrival_minutes, location, device, confidence
        FROM attendance_records WHERE session_id = $1 ORDER BY timestamp ASC, student_id ASC`
	rows, err := r.db.QueryxContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var rec models.Record
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.StudentID, &rec.DisplayName, &rec.RollNumber,
			&rec.Timestamp, &rec.Status, &rec.ArrivalMinutes,
			&rec.ScanContext.Location, &rec.ScanContext.Device, &rec.ScanContext.Confidence,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Aggregate folds the session's records inside the database.
func (r *SessionRepository) Aggregate(ctx context.Context, sessionID string) (*models.Aggregate, error) {
	query := `SELECT
        COUNT(*) AS total,
        COUNT(*) FILTER (WHERE status = 'PRESENT') AS present,
        COUNT(*) FILTER (WHERE status = 'LATE') AS late,
        COALESCE(AVG(arrival_minutes), 0) AS average
        FROM attendance_records WHERE session_id = $1`
	var row struct {
		Total   int     `db:"total"`
		Present int     `db:"present"`
		Late    int     `db:"late"`
		Average float64 `db:"average"`
	}
	if err := r.db.GetContext(ctx, &row, query, sessionID); err != nil {
		return nil, fmt.Errorf("aggregate records: %w", err)
	}
	return &models.Aggregate{
		SessionID:             sessionID,
		TotalAttendees:        row.Total,
		PresentCount:          row.Present,
		LateCount:             row.Late,
		AverageArrivalMinutes: row.Average,
	}, nil
}
