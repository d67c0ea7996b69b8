package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attend-api/internal/clock"
	"github.com/noah-isme/qr-attend-api/internal/dto"
	"github.com/noah-isme/qr-attend-api/internal/models"
	appErrors "github.com/noah-isme/qr-attend-api/pkg/errors"
)

type sessionRepository interface {
	CreateSession(ctx context.Context, s *models.Session) error
	FindSessionByID(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
	EndSession(ctx context.Context, id string, endedAt time.Time) (bool, error)
}

type sessionNotifier interface {
	SessionEnded(s models.Session)
}

type sessionMetrics interface {
	SessionCreated()
	SessionEnded()
}

// SessionServiceConfig bounds session creation.
type SessionServiceConfig struct {
	MaxDuration time.Duration
}

// SessionService is the single authority for session lifecycle.
type SessionService struct {
	repo      sessionRepository
	notifier  sessionNotifier
	metrics   sessionMetrics
	clock     clock.Clock
	validator *validator.Validate
	logger    *zap.Logger
	config    SessionServiceConfig
}

// NewSessionService constructs the session service.
func NewSessionService(repo sessionRepository, notifier sessionNotifier, metrics sessionMetrics, clk clock.Clock, validate *validator.Validate, logger *zap.Logger, cfg SessionServiceConfig) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &SessionService{repo: repo, notifier: notifier, metrics: metrics, clock: clk, validator: validate, logger: logger, config: cfg}
}

// Create validates parameters and opens a new ACTIVE session.
func (s *SessionService) Create(ctx context.Context, req dto.CreateSessionRequest, ownerID string) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidConfiguration.Code, appErrors.ErrInvalidConfiguration.Status, "invalid session parameters")
	}
	if req.LateThresholdMinutes > req.DurationMinutes {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, "late threshold cannot exceed session duration")
	}
	if max := s.config.MaxDuration; max > 0 && time.Duration(req.DurationMinutes)*time.Minute > max {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, fmt.Sprintf("duration exceeds the %s cap", max))
	}

	now := s.clock.Now()
	session := &models.Session{
		ID:                   uuid.NewString(),
		ClassID:              req.ClassID,
		Name:                 req.Name,
		OwnerID:              ownerID,
		CreatedAt:            now,
		DurationMinutes:      req.DurationMinutes,
		ExpiresAt:            now.Add(time.Duration(req.DurationMinutes) * time.Minute),
		LateThresholdMinutes: req.LateThresholdMinutes,
		AllowLateEntry:       req.AllowLateEntry,
		MaxAttendees:         req.MaxAttendees,
		State:                models.SessionStateActive,
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	if s.metrics != nil {
		s.metrics.SessionCreated()
	}
	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("class_id", session.ClassID),
		zap.Int("duration_minutes", session.DurationMinutes),
	)
	return session, nil
}

// Get resolves a session by ID. Callers derive the effective state from
// the returned session and the current clock.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	return s.repo.FindSessionByID(ctx, id)
}

// List returns sessions owned by ownerID matching the filter.
func (s *SessionService) List(ctx context.Context, req dto.ListSessionsRequest, ownerID string) ([]models.Session, *models.Pagination, error) {
	filter := models.SessionFilter{
		OwnerID:   ownerID,
		ClassID:   req.ClassID,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortOrder: req.SortOrder,
	}
	if req.State != "" {
		state := models.SessionState(req.State)
		filter.State = &state
	}
	sessions, total, err := s.repo.ListSessions(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return sessions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// End transitions the session ACTIVE -> ENDED. Ending an expired or
// already-ended session is an error, not a no-op.
func (s *SessionService) End(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.repo.FindSessionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !session.Active(now) {
		return nil, appErrors.ErrAlreadyTerminal
	}

	ok, err := s.repo.EndSession(ctx, id, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to end session")
	}
	if !ok {
		// Lost the race against another end call or the expiry boundary.
		return nil, appErrors.ErrAlreadyTerminal
	}

	session.State = models.SessionStateEnded
	session.EndedAt = &now
	if s.notifier != nil {
		s.notifier.SessionEnded(*session)
	}
	if s.metrics != nil {
		s.metrics.SessionEnded()
	}
	s.logger.Info("session ended", zap.String("session_id", id))
	return session, nil
}
