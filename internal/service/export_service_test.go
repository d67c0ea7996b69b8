package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attend-api/internal/dto"
	appErrors "github.com/noah-isme/qr-attend-api/pkg/errors"
)

func TestExportUnknownSession(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})
	svc := NewExportService(f.store, nil)

	_, err := svc.Export(context.Background(), "missing", ExportFormatTabular)
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionNotFound))
}

func TestExportUnsupportedFormat(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})
	svc := NewExportService(f.store, nil)

	_, err := svc.Export(context.Background(), f.session.ID, ExportFormat("xml"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestExportDeterministic(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})
	svc := NewExportService(f.store, nil)
	ctx := context.Background()
	f.bind(t, "device-1")

	for _, id := range []string{"stu-b", "stu-a", "stu-c"} {
		_, err := f.scans.Scan(ctx, "device-1", dto.ScanRequest{Payload: f.identityPayload(t, id)})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	for _, format := range []ExportFormat{ExportFormatTabular, ExportFormatStructured} {
		first, err := svc.Export(ctx, f.session.ID, format)
		require.NoError(t, err)
		second, err := svc.Export(ctx, f.session.ID, format)
		require.NoError(t, err)
		assert.Equal(t, first.Bytes, second.Bytes, "format %s must be byte-stable", format)
	}
}

func TestExportOrderingAndTieBreak(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 30, allowLate: true})
	svc := NewExportService(f.store, nil)
	ctx := context.Background()
	f.bind(t, "device-1")

	// Two scans at the same instant tie-break on student ID.
	for _, id := range []string{"stu-z", "stu-a"} {
		_, err := f.scans.Scan(ctx, "device-1", dto.ScanRequest{Payload: f.identityPayload(t, id)})
		require.NoError(t, err)
	}
	f.clock.Advance(5 * time.Minute)
	_, err := f.scans.Scan(ctx, "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-m")})
	require.NoError(t, err)

	res, err := svc.Export(ctx, f.session.ID, ExportFormatTabular)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(res.Bytes)), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "student_id,"))
	assert.True(t, strings.HasPrefix(lines[1], "stu-a,"))
	assert.True(t, strings.HasPrefix(lines[2], "stu-z,"))
	assert.True(t, strings.HasPrefix(lines[3], "stu-m,"))
}

func TestExportAppendOnlyChangesTail(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 30, allowLate: true})
	svc := NewExportService(f.store, nil)
	ctx := context.Background()
	f.bind(t, "device-1")

	_, err := f.scans.Scan(ctx, "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-a")})
	require.NoError(t, err)

	before, err := svc.Export(ctx, f.session.ID, ExportFormatTabular)
	require.NoError(t, err)

	f.clock.Advance(3 * time.Minute)
	_, err = f.scans.Scan(ctx, "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-b")})
	require.NoError(t, err)

	after, err := svc.Export(ctx, f.session.ID, ExportFormatTabular)
	require.NoError(t, err)

	// Prior rows keep their order and content; only a row is appended.
	assert.True(t, strings.HasPrefix(string(after.Bytes), string(before.Bytes)))
}

func TestExportStructuredShape(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})
	svc := NewExportService(f.store, nil)
	ctx := context.Background()
	f.bind(t, "device-1")

	f.clock.Advance(12 * time.Minute)
	_, err := f.scans.Scan(ctx, "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-a")})
	require.NoError(t, err)

	res, err := svc.Export(ctx, f.session.ID, ExportFormatStructured)
	require.NoError(t, err)
	assert.Equal(t, "application/json", res.ContentType)

	var decoded struct {
		SessionID string `json:"session_id"`
		Records   []struct {
			StudentID      string `json:"student_id"`
			Status         string `json:"status"`
			ArrivalMinutes int    `json:"arrival_minutes"`
		} `json:"records"`
		Aggregate struct {
			TotalAttendees int `json:"total_attendees"`
			LateCount      int `json:"late_count"`
		} `json:"aggregate"`
	}
	require.NoError(t, json.Unmarshal(res.Bytes, &decoded))
	assert.Equal(t, f.session.ID, decoded.SessionID)
	require.Len(t, decoded.Records, 1)
	assert.Equal(t, "LATE", decoded.Records[0].Status)
	assert.Equal(t, 12, decoded.Records[0].ArrivalMinutes)
	assert.Equal(t, 1, decoded.Aggregate.TotalAttendees)
	assert.Equal(t, 1, decoded.Aggregate.LateCount)
}

func TestExportPDFRenders(t *testing.T) {
	f := newScanFixture(t, sessionParams{duration: 60, threshold: 10, allowLate: true})
	svc := NewExportService(f.store, nil)
	ctx := context.Background()
	f.bind(t, "device-1")

	_, err := f.scans.Scan(ctx, "device-1", dto.ScanRequest{Payload: f.identityPayload(t, "stu-a")})
	require.NoError(t, err)

	res, err := svc.Export(ctx, f.session.ID, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.True(t, strings.HasPrefix(string(res.Bytes), "%PDF"))
}
