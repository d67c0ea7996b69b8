package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/qr-attend-api/internal/models"
	appErrors "github.com/noah-isme/qr-attend-api/pkg/errors"
)

// MemoryStore is an in-memory session/record store. It backs tests and
// single-node deployments and keeps the incremental aggregate inside the
// same lock as record insertion, so readers never observe a record
// without its aggregate contribution.
type MemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]models.Session
	records    map[string][]models.Record
	index      map[string]map[string]struct{}
	aggregates map[string]models.Aggregate
	arrivalSum map[string]int
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]models.Session),
		records:    make(map[string][]models.Record),
		index:      make(map[string]map[string]struct{}),
		aggregates: make(map[string]models.Aggregate),
		arrivalSum: make(map[string]int),
	}
}

// CreateSession stores a new session.
func (m *MemoryStore) CreateSession(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

// FindSessionByID returns a copy of the stored session.
func (m *MemoryStore) FindSessionByID(ctx context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, appErrors.ErrSessionNotFound
	}
	return &s, nil
}

// ListSessions returns sessions matching the filter, newest first.
func (m *MemoryStore) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Session
	for _, s := range m.sessions {
		if filter.OwnerID != "" && s.OwnerID != filter.OwnerID {
			continue
		}
		if filter.ClassID != "" && s.ClassID != filter.ClassID {
			continue
		}
		if filter.State != nil && s.State != *filter.State {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.SortOrder == "ASC" {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	total := len(out)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

// EndSession transitions ACTIVE -> ENDED as a compare-and-swap.
func (m *MemoryStore) EndSession(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.State != models.SessionStateActive || !endedAt.Before(s.ExpiresAt) {
		return false, nil
	}
	s.State = models.SessionStateEnded
	s.EndedAt = &endedAt
	m.sessions[id] = s
	return true, nil
}

// InsertRecord appends a record and bumps the aggregate in one step.
func (m *MemoryStore) InsertRecord(ctx context.Context, rec *models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byStudent, ok := m.index[rec.SessionID]
	if !ok {
		byStudent = make(map[string]struct{})
		m.index[rec.SessionID] = byStudent
	}
	if _, dup := byStudent[rec.StudentID]; dup {
		return appErrors.ErrDuplicateScan
	}
	byStudent[rec.StudentID] = struct{}{}
	m.records[rec.SessionID] = append(m.records[rec.SessionID], *rec)

	agg := m.aggregates[rec.SessionID]
	agg.SessionID = rec.SessionID
	agg.TotalAttendees++
	if rec.Status == models.RecordStatusLate {
		agg.LateCount++
	} else {
		agg.PresentCount++
	}
	m.arrivalSum[rec.SessionID] += rec.ArrivalMinutes
	agg.AverageArrivalMinutes = float64(m.arrivalSum[rec.SessionID]) / float64(agg.TotalAttendees)
	m.aggregates[rec.SessionID] = agg
	return nil
}

// HasRecord reports whether the student already scanned into the session.
func (m *MemoryStore) HasRecord(ctx context.Context, sessionID, studentID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byStudent, ok := m.index[sessionID]
	if !ok {
		return false, nil
	}
	_, exists := byStudent[studentID]
	return exists, nil
}

// CountRecords returns the number of records for the session.
func (m *MemoryStore) CountRecords(ctx context.Context, sessionID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records[sessionID]), nil
}

// ListRecords returns the session's records in export order:
// timestamp ascending, ties broken by student ID ascending.
func (m *MemoryStore) ListRecords(ctx context.Context, sessionID string) ([]models.Record, error) {
	m.mu.RLock()
	out := make([]models.Record, len(m.records[sessionID]))
	copy(out, m.records[sessionID])
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].StudentID < out[j].StudentID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Aggregate returns the incrementally maintained aggregate.
func (m *MemoryStore) Aggregate(ctx context.Context, sessionID string) (*models.Aggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agg, ok := m.aggregates[sessionID]
	if !ok {
		return &models.Aggregate{SessionID: sessionID}, nil
	}
	return &agg, nil
}
