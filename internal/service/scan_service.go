package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attend-api/internal/clock"
	"github.com/noah-isme/qr-attend-api/internal/dto"
	"github.com/noah-isme/qr-attend-api/internal/models"
	appErrors "github.com/noah-isme/qr-attend-api/pkg/errors"
)

type scanStore interface {
	FindSessionByID(ctx context.Context, id string) (*models.Session, error)
	InsertRecord(ctx context.Context, rec *models.Record) error
	HasRecord(ctx context.Context, sessionID, studentID string) (bool, error)
	CountRecords(ctx context.Context, sessionID string) (int, error)
}

type bindingStore interface {
	Bind(ctx context.Context, deviceID, sessionID string, ttl time.Duration) error
	Get(ctx context.Context, deviceID string) (string, error)
	Clear(ctx context.Context, deviceID string) error
}

type tokenCodec interface {
	DecodeSession(payload string) (*models.SessionToken, error)
	DecodeIdentity(payload string) (*models.IdentityToken, error)
}

type scanNotifier interface {
	RecordCreated(rec models.Record)
	LateArrival(rec models.Record)
}

type scanMetrics interface {
	ObserveScan(outcome string)
}

// ScanServiceConfig tunes the scan pipeline.
type ScanServiceConfig struct {
	BindingTTLCap time.Duration
	RetryBudget   int
}

// ScanService drives the per-device scan state machine: a device is
// UNBOUND until it presents a valid session token, BOUND(sessionID)
// afterwards, and drops back to UNBOUND when the session dies or the
// device resets. Identity scans are only admitted from bound devices.
type ScanService struct {
	store    scanStore
	bindings bindingStore
	codec    tokenCodec
	notifier scanNotifier
	metrics  scanMetrics
	clock    clock.Clock
	logger   *zap.Logger
	config   ScanServiceConfig

	// One mutex per live session serialises the check-then-insert
	// window; without it concurrent scans could oversubscribe the
	// attendee cap or double-insert a student.
	locks sync.Map
}

// NewScanService constructs the scan service.
func NewScanService(store scanStore, bindings bindingStore, codec tokenCodec, notifier scanNotifier, metrics scanMetrics, clk clock.Clock, logger *zap.Logger, cfg ScanServiceConfig) *ScanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if cfg.BindingTTLCap <= 0 {
		cfg.BindingTTLCap = 8 * time.Hour
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = 3
	}
	return &ScanService{
		store:    store,
		bindings: bindings,
		codec:    codec,
		notifier: notifier,
		metrics:  metrics,
		clock:    clk,
		logger:   logger,
		config:   cfg,
	}
}

func (s *ScanService) lockFor(sessionID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// evictLock drops the session's lock entry so dead sessions do not pin
// a mutex forever. Called only once the session is observed terminal or
// missing: nothing can insert for such a session again, so a waiter that
// recreates the entry can only reach the same rejection.
func (s *ScanService) evictLock(sessionID string) {
	s.locks.Delete(sessionID)
}

func (s *ScanService) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveScan(outcome)
	}
}

// Bind processes a scanned session token and binds the device to the
// session. Re-scanning the same valid token while already bound is a
// no-op success.
func (s *ScanService) Bind(ctx context.Context, deviceID string, req dto.BindRequest) (*dto.BindResponse, error) {
	tok, err := s.codec.DecodeSession(req.Payload)
	if err != nil {
		s.observe("malformed_token")
		return nil, err
	}

	session, err := s.store.FindSessionByID(ctx, tok.SessionID)
	if err != nil {
		s.observe("session_not_found")
		return nil, err
	}

	now := s.clock.Now()
	if !session.Active(now) {
		s.observe("session_closed")
		return nil, appErrors.ErrSessionExpiredOrEnded
	}

	ttl := session.ExpiresAt.Sub(now)
	if ttl > s.config.BindingTTLCap {
		ttl = s.config.BindingTTLCap
	}
	if err := s.bindings.Bind(ctx, deviceID, session.ID, ttl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bind device")
	}

	s.logger.Debug("device bound",
		zap.String("device_id", deviceID),
		zap.String("session_id", session.ID),
	)
	return &dto.BindResponse{DeviceID: deviceID, Session: session.Summary(now)}, nil
}

// Scan processes a scanned identity token from a bound device and, on
// success, returns the created attendance record. The whole
// capacity/duplicate/classify/insert window runs under the session's
// lock so each call commits against a consistent view.
func (s *ScanService) Scan(ctx context.Context, deviceID string, req dto.ScanRequest) (*models.Record, error) {
	sessionID, err := s.bindings.Get(ctx, deviceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read device binding")
	}
	if sessionID == "" {
		s.observe("no_binding")
		return nil, appErrors.ErrNoActiveBinding
	}

	// Decode outside the critical section: no token work while holding
	// the session lock.
	tok, err := s.codec.DecodeIdentity(req.Payload)
	if err != nil {
		s.observe("malformed_token")
		return nil, err
	}

	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		s.observe("aborted")
		return nil, appErrors.Wrap(err, appErrors.ErrAborted.Code, appErrors.ErrAborted.Status, appErrors.ErrAborted.Message)
	}

	session, err := s.store.FindSessionByID(ctx, sessionID)
	if err != nil {
		s.unbind(ctx, deviceID)
		s.evictLock(sessionID)
		s.observe("session_not_found")
		return nil, err
	}

	// Effective state at commit time, not at call start: a scan that
	// straddles the expiry boundary is rejected here.
	now := s.clock.Now()
	if !session.Active(now) {
		s.unbind(ctx, deviceID)
		s.evictLock(sessionID)
		s.observe("session_closed")
		return nil, appErrors.ErrSessionExpiredOrEnded
	}

	// Duplicate before capacity: a student already recorded re-scanning
	// against a full session reports DUPLICATE_SCAN, not SESSION_FULL.
	exists, err := s.store.HasRecord(ctx, sessionID, tok.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicates")
	}
	if exists {
		s.observe("duplicate")
		return nil, appErrors.ErrDuplicateScan
	}

	if session.MaxAttendees != nil {
		total, err := s.store.CountRecords(ctx, sessionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count records")
		}
		if total >= *session.MaxAttendees {
			s.observe("session_full")
			return nil, appErrors.ErrSessionFull
		}
	}

	elapsed := now.Sub(session.CreatedAt)
	if elapsed < 0 {
		// Clock skew between creation and scan reads as on-time.
		elapsed = 0
	}

	status := models.RecordStatusPresent
	if elapsed > time.Duration(session.LateThresholdMinutes)*time.Minute {
		if !session.AllowLateEntry {
			s.observe("late_disallowed")
			return nil, appErrors.ErrLateEntryDisallowed
		}
		status = models.RecordStatusLate
	}

	record := &models.Record{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		StudentID:      tok.StudentID,
		DisplayName:    tok.DisplayName,
		RollNumber:     tok.RollNumber,
		Timestamp:      now,
		Status:         status,
		ArrivalMinutes: int(elapsed.Minutes()),
		ScanContext: models.ScanContext{
			Location:   req.Location,
			Device:     req.Device,
			Confidence: req.Confidence,
		},
	}

	if err := s.insertWithRetry(ctx, record); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.RecordCreated(*record)
		if status == models.RecordStatusLate {
			s.notifier.LateArrival(*record)
		}
	}
	s.observe(string(status))
	s.logger.Info("scan accepted",
		zap.String("session_id", sessionID),
		zap.String("student_id", tok.StudentID),
		zap.String("status", string(status)),
		zap.Int("arrival_minutes", record.ArrivalMinutes),
	)
	return record, nil
}

// insertWithRetry commits the record, retrying transient storage errors
// within the budget. Domain rejections pass straight through; exhausting
// the budget or the caller's deadline yields ABORTED with nothing
// persisted.
func (s *ScanService) insertWithRetry(ctx context.Context, record *models.Record) error {
	var last error
	for attempt := 0; attempt < s.config.RetryBudget; attempt++ {
		if err := ctx.Err(); err != nil {
			s.observe("aborted")
			return appErrors.Wrap(err, appErrors.ErrAborted.Code, appErrors.ErrAborted.Status, appErrors.ErrAborted.Message)
		}
		err := s.store.InsertRecord(ctx, record)
		if err == nil {
			return nil
		}
		if appErrors.Is(err, appErrors.ErrDuplicateScan) {
			s.observe("duplicate")
			return err
		}
		last = err
	}
	s.observe("aborted")
	return appErrors.Wrap(last, appErrors.ErrAborted.Code, appErrors.ErrAborted.Status, appErrors.ErrAborted.Message)
}

// Reset explicitly unbinds a device.
func (s *ScanService) Reset(ctx context.Context, deviceID string) error {
	return s.bindings.Clear(ctx, deviceID)
}

func (s *ScanService) unbind(ctx context.Context, deviceID string) {
	if err := s.bindings.Clear(ctx, deviceID); err != nil {
		s.logger.Warn("failed to clear device binding", zap.String("device_id", deviceID), zap.Error(err))
	}
}
