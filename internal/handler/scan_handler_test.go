package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attend-api/internal/clock"
	"github.com/noah-isme/qr-attend-api/internal/dto"
	"github.com/noah-isme/qr-attend-api/internal/models"
	"github.com/noah-isme/qr-attend-api/internal/repository"
	"github.com/noah-isme/qr-attend-api/internal/service"
	"github.com/noah-isme/qr-attend-api/internal/token"
	"github.com/noah-isme/qr-attend-api/pkg/response"
)

type scanHandlerFixture struct {
	router *gin.Engine
	store  *repository.MemoryStore
	codec  *token.Codec
	clock  *clock.Fake
}

func newScanHandlerFixture(t *testing.T) *scanHandlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := clock.NewFake(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	store := repository.NewMemoryStore()
	bindings := repository.NewMemoryBindingStore().WithNow(clk.Now)
	codec := token.NewCodec("test-secret", true)
	scans := service.NewScanService(store, bindings, codec, nil, nil, clk, nil, service.ScanServiceConfig{})
	h := NewScanHandler(scans)

	router := gin.New()
	router.POST("/scan/bind", h.Bind)
	router.POST("/scan", h.Scan)
	router.DELETE("/scan/binding", h.Reset)

	return &scanHandlerFixture{router: router, store: store, codec: codec, clock: clk}
}

func (f *scanHandlerFixture) createSession(t *testing.T, id string, durationMinutes int) {
	t.Helper()
	now := f.clock.Now()
	require.NoError(t, f.store.CreateSession(context.Background(), &models.Session{
		ID:                   id,
		ClassID:              "class-10a",
		Name:                 "Algebra",
		OwnerID:              "teacher-1",
		CreatedAt:            now,
		DurationMinutes:      durationMinutes,
		ExpiresAt:            now.Add(time.Duration(durationMinutes) * time.Minute),
		LateThresholdMinutes: 10,
		AllowLateEntry:       true,
		State:                models.SessionStateActive,
	}))
}

func (f *scanHandlerFixture) do(t *testing.T, method, path, device string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if device != "" {
		req.Header.Set("X-Device-ID", device)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestScanHandlerRequiresDeviceHeader(t *testing.T) {
	f := newScanHandlerFixture(t)
	w := f.do(t, http.MethodPost, "/scan/bind", "", dto.BindRequest{Payload: "anything"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScanHandlerBindAndScanFlow(t *testing.T) {
	f := newScanHandlerFixture(t)
	f.createSession(t, "sess-1", 60)

	sessionPayload, err := f.codec.EncodeSession("sess-1", f.clock.Now())
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/scan/bind", "device-1", dto.BindRequest{Payload: sessionPayload})
	require.Equal(t, http.StatusOK, w.Code)

	var bindEnvelope struct {
		Data dto.BindResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bindEnvelope))
	assert.Equal(t, "device-1", bindEnvelope.Data.DeviceID)
	assert.Equal(t, "sess-1", bindEnvelope.Data.Session.ID)

	identityPayload, err := f.codec.EncodeIdentity(models.IdentityToken{
		StudentID:   "stu-1",
		RollNumber:  "23",
		DisplayName: "Ada",
	})
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	w = f.do(t, http.MethodPost, "/scan", "device-1", dto.ScanRequest{Payload: identityPayload})
	require.Equal(t, http.StatusCreated, w.Code)

	var scanEnvelope struct {
		Data dto.RecordResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scanEnvelope))
	assert.Equal(t, "stu-1", scanEnvelope.Data.StudentID)
	assert.Equal(t, models.RecordStatusPresent, scanEnvelope.Data.Status)
	assert.Equal(t, 5, scanEnvelope.Data.ArrivalMinutes)
}

func TestScanHandlerDuplicateScanConflict(t *testing.T) {
	f := newScanHandlerFixture(t)
	f.createSession(t, "sess-1", 60)

	sessionPayload, err := f.codec.EncodeSession("sess-1", f.clock.Now())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/scan/bind", "device-1", dto.BindRequest{Payload: sessionPayload}).Code)

	identityPayload, err := f.codec.EncodeIdentity(models.IdentityToken{StudentID: "stu-1", RollNumber: "23", DisplayName: "Ada"})
	require.NoError(t, err)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/scan", "device-1", dto.ScanRequest{Payload: identityPayload}).Code)

	w := f.do(t, http.MethodPost, "/scan", "device-1", dto.ScanRequest{Payload: identityPayload})
	assert.Equal(t, http.StatusConflict, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "DUPLICATE_SCAN", envelope.Error.Code)
}

func TestScanHandlerScanWithoutBinding(t *testing.T) {
	f := newScanHandlerFixture(t)
	f.createSession(t, "sess-1", 60)

	identityPayload, err := f.codec.EncodeIdentity(models.IdentityToken{StudentID: "stu-1", RollNumber: "23", DisplayName: "Ada"})
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/scan", "device-1", dto.ScanRequest{Payload: identityPayload})
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestScanHandlerResetClearsBinding(t *testing.T) {
	f := newScanHandlerFixture(t)
	f.createSession(t, "sess-1", 60)

	sessionPayload, err := f.codec.EncodeSession("sess-1", f.clock.Now())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/scan/bind", "device-1", dto.BindRequest{Payload: sessionPayload}).Code)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/scan/binding", "device-1", nil).Code)

	identityPayload, err := f.codec.EncodeIdentity(models.IdentityToken{StudentID: "stu-1", RollNumber: "23", DisplayName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusPreconditionFailed, f.do(t, http.MethodPost, "/scan", "device-1", dto.ScanRequest{Payload: identityPayload}).Code)
}
