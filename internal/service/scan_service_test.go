package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attend-api/internal/clock"
	"github.com/noah-isme/qr-attend-api/internal/dto"
	"github.com/noah-isme/qr-attend-api/internal/models"
	"github.com/noah-isme/qr-attend-api/internal/repository"
	"github.com/noah-isme/qr-attend-api/internal/token"
	appErrors "github.com/noah-isme/qr-attend-api/pkg/errors"
)

type notifierStub struct {
	mu      sync.Mutex
	created []models.Record
	late    []models.Record
	ended   []models.Session
}

func (n *notifierStub) RecordCreated(rec models.Record) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, rec)
}

func (n *notifierStub) LateArrival(rec models.Record) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.late = append(n.late, rec)
}

func (n *notifierStub) SessionEnded(s models.Session) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ended = append(n.ended, s)
}

type scanFixture struct {
	store    *repository.MemoryStore
	bindings *repository.MemoryBindingStore
	codec    *token.Codec
	clock    *clock.Fake
	notifier *notifierStub
	scans    *ScanService
	session  *models.Session
}

type sessionParams struct {
	duration  int
	threshold int
	allowLate bool
	max       *int
}

func newScanFixture(t *testing.T, params sessionParams) *scanFixture {
	t.Helper()
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	f := &scanFixture{
		store:    repository.NewMemoryStore(),
		bindings: repository.NewMemoryBindingStore(),
		codec:    token.NewCodec("test-secret", true),
		clock:    clock.NewFake(start),
		notifier: &notifierStub{},
	}
	f.bindings.WithNow(f.clock.Now)
	f.scans = NewScanService(f.store, f.bindings, f.codec, f.notifier, nil, f.clock, nil, ScanServiceConfig{})

	f.session = &models.Session{
		ID:                   uuid.NewString(),
		ClassID:              "class-10a",
		Name:                 "Algebra",
		OwnerID:              "teacher-1",
		CreatedAt:            start,
		DurationMinutes:      params.duration,
		ExpiresAt:            start.Add(time.Duration(params.duration) * time.Minute),
		LateThresholdMinutes: params.threshold,
		AllowLateEntry:       params.allowLate,
		MaxAttendees:         params.max,
		State:                models.SessionStateActive,
	}
	require.NoError(t, f.store.CreateSession(context.Background(), f.session))
	return f
}

func (f *scanFixture) bind(t *testing.T, deviceID string) {
	t.Helper()
	payload, err := f.codec.EncodeSession(f.session.ID, f.clock.Now())
	require.NoError(t, err)
	_, err = f.scans.Bind(context.Background(), deviceID, dto.BindRequest{Payload: payload})
	require.NoError(t, err)
}

func (f *scanFixture) identityPayload(t *testing.T, studentID string) string {
	t.Helper()
	payload, err := f.codec.EncodeIdentity(models.IdentityToken{
		StudentID:   studentID,
		RollNumber:  "42",
		DisplayName: "Student " + studentID,
	})
	require.NoError(t, err)
	return payload
}

func TestScanBindIdempotent(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})
	payload, err := f.codec.EncodeSession(f.session.ID, f.clock.Now())
	require.NoError(t, err)

	first, err := f.scans.Bind(context.Background(), "device-1", dto.BindRequest{Payload: payload})
	require.NoError(t, err)
	second, err := f.scans.Bind(context.Background(), "device-1", dto.BindRequest{Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, first.Session.ID, second.Session.ID)
}

func TestScanBindRejectsUnknownSession(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})
	payload, err := f.codec.EncodeSession("no-such-session", f.clock.Now())
	require.NoError(t, err)

	_, err = f.scans.Bind(context.Background(), "device-1", dto.BindRequest{Payload: payload})
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionNotFound))
}

func TestScanBindRejectsExpiredSession(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 30, threshold: 10, allowLate: true})
	f.clock.Advance(30 * time.Minute)

	payload, err := f.codec.EncodeSession(f.session.ID, f.clock.Now())
	require.NoError(t, err)
	_, err = f.scans.Bind(context.Background(), "device-1", dto.BindRequest{Payload: payload})
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionExpiredOrEnded))
}

func TestScanRequiresBinding(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})

	_, err := f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-1")})
	assert.True(t, appErrors.Is(err, appErrors.ErrNoActiveBinding))
}

func TestScanRejectsMalformedPayload(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})
	f.bind(t, "device-1")

	_, err := f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: "garbage"})
	assert.True(t, appErrors.Is(err, appErrors.ErrMalformedToken))
}

func TestScanOnTimeBoundaryInclusive(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})
	f.bind(t, "device-1")

	// Exactly at the threshold counts as on time.
	f.clock.Advance(10 * time.Minute)
	rec, err := f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-1")})
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusPresent, rec.Status)
	assert.Equal(t, 10, rec.ArrivalMinutes)

	// Six seconds past the threshold is late.
	f.clock.Advance(6 * time.Second)
	rec, err = f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-2")})
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusLate, rec.Status)
}

func TestScanLateEntryDisallowed(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: false})
	f.bind(t, "device-1")

	f.clock.Advance(11 * time.Minute)
	_, err := f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-1")})
	assert.True(t, appErrors.Is(err, appErrors.ErrLateEntryDisallowed))

	count, err := f.store.CountRecords(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestScanThresholdEqualToDurationDisablesLateness(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 60, allowLate: false})
	f.bind(t, "device-1")

	f.clock.Advance(59 * time.Minute)
	rec, err := f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-1")})
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusPresent, rec.Status)
}

func TestScanClockSkewClampsToOnTime(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})
	f.bind(t, "device-1")

	// Scan clock reads before session creation.
	f.clock.Set(f.session.CreatedAt.Add(-2 * time.Minute))
	rec, err := f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-1")})
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusPresent, rec.Status)
	assert.Equal(t, 0, rec.ArrivalMinutes)
}

func TestScanDuplicateRejected(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})
	f.bind(t, "device-1")

	_, err := f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-1")})
	require.NoError(t, err)

	_, err = f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-1")})
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateScan))

	count, err := f.store.CountRecords(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestScanDuplicateWinsOverCapacity(t *testing.T) {
	max := 2
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true, max: &max})
	f.bind(t, "device-1")

	_, err := f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-1")})
	require.NoError(t, err)
	_, err = f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-2")})
	require.NoError(t, err)

	// The session is at capacity, but a student already recorded must
	// still see the duplicate rejection rather than the full one.
	_, err = f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-1")})
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateScan))

	_, err = f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-3")})
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionFull))
}

func TestScanExpiryMonotonic(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 30, threshold: 10, allowLate: true})
	f.bind(t, "device-1")

	f.clock.Advance(30 * time.Minute)
	for i := 0; i < 3; i++ {
		_, err := f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-1")})
		assert.True(t, appErrors.Is(err, appErrors.ErrSessionExpiredOrEnded))
		// The failed scan cleared the binding; later attempts fail on
		// the binding precondition instead.
		_, err = f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-1")})
		assert.True(t, appErrors.Is(err, appErrors.ErrNoActiveBinding))
		f.bind2(t, "device-1")
	}
}

// bind2 re-binds bypassing the active check, simulating a stale binding
// that outlived the session.
func (f *scanFixture) bind2(t *testing.T, deviceID string) {
	t.Helper()
	require.NoError(t, f.bindings.Bind(context.Background(), deviceID, f.session.ID, time.Hour))
}

func TestScanEvictsLockWhenSessionDead(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 30, threshold: 10, allowLate: true})
	f.bind(t, "device-1")

	_, err := f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-1")})
	require.NoError(t, err)
	_, ok := f.scans.locks.Load(f.session.ID)
	assert.True(t, ok, "live session keeps its lock entry")

	f.clock.Advance(30 * time.Minute)
	f.bind2(t, "device-1")
	_, err = f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-2")})
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionExpiredOrEnded))

	_, ok = f.scans.locks.Load(f.session.ID)
	assert.False(t, ok, "expired session must not pin a lock entry")
}

func TestScanAbortedOnCancelledContext(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})
	f.bind(t, "device-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.scans.Scan(ctx, "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-1")})
	assert.True(t, appErrors.Is(err, appErrors.ErrAborted))

	count, err := f.store.CountRecords(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestScanResetUnbindsDevice(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})
	f.bind(t, "device-1")

	require.NoError(t, f.scans.Reset(context.Background(), "device-1"))
	_, err := f.scans.Scan(context.Background(), "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-1")})
	assert.True(t, appErrors.Is(err, appErrors.ErrNoActiveBinding))
}

func TestScanConcurrentSameStudentInsertsOnce(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})

	const devices = 16
	for i := 0; i < devices; i++ {
		f.bind(t, fmt.Sprintf("device-%d", i))
	}
	payload := f.identityPayload(t, "stu-1")

	var wg sync.WaitGroup
	errs := make([]error, devices)
	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.scans.Scan(context.Background(), fmt.Sprintf("device-%d", i), dto.ScanRequest{Payload: payload})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else {
			assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateScan))
		}
	}
	assert.Equal(t, 1, accepted)

	count, err := f.store.CountRecords(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestScanConcurrentCapacityNeverOversubscribed(t *testing.T) {
	max := 5
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true, max: &max})

	const devices = 24
	for i := 0; i < devices; i++ {
		f.bind(t, fmt.Sprintf("device-%d", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, devices)
	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := f.identityPayload(t, fmt.Sprintf("stu-%d", i))
			_, errs[i] = f.scans.Scan(context.Background(), fmt.Sprintf("device-%d", i), dto.ScanRequest{Payload: payload})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else {
			assert.True(t, appErrors.Is(err, appErrors.ErrSessionFull))
		}
	}
	assert.Equal(t, max, accepted)

	count, err := f.store.CountRecords(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, max, count)
}

// TestScanEndToEndScenario walks the documented reference sequence.
func TestScanEndToEndScenario(t *testing.T) {
	max := 2
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true, max: &max})
	f.bind(t, "device-1")

	ctx := context.Background()

	f.clock.Advance(5 * time.Minute)
	recA, err := f.scans.Scan(ctx, "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-a")})
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusPresent, recA.Status)

	f.clock.Advance(7 * time.Minute)
	recB, err := f.scans.Scan(ctx, "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-b")})
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusLate, recB.Status)

	f.clock.Advance(8 * time.Minute)
	_, err = f.scans.Scan(ctx, "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-c")})
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionFull))

	_, err = f.scans.Scan(ctx, "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-a")})
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateScan))

	agg, err := f.store.Aggregate(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.TotalAttendees)
	assert.Equal(t, 1, agg.PresentCount)
	assert.Equal(t, 1, agg.LateCount)
	assert.InDelta(t, 8.5, agg.AverageArrivalMinutes, 0.001)

	// Notifier saw one created event per record plus the late arrival.
	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	assert.Len(t, f.notifier.created, 2)
	assert.Len(t, f.notifier.late, 1)
}
