package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qr-attend-api/internal/models"
	appErrors "github.com/noah-isme/qr-attend-api/pkg/errors"
	"github.com/noah-isme/qr-attend-api/pkg/export"
)

// ExportFormat names the supported renderings.
type ExportFormat string

const (
	ExportFormatTabular    ExportFormat = "tabular"
	ExportFormatStructured ExportFormat = "structured"
	ExportFormatPDF        ExportFormat = "pdf"
)

type exportStore interface {
	FindSessionByID(ctx context.Context, id string) (*models.Session, error)
	ListRecords(ctx context.Context, sessionID string) ([]models.Record, error)
	Aggregate(ctx context.Context, sessionID string) (*models.Aggregate, error)
}

// ExportResult bundles rendered bytes with download metadata.
type ExportResult struct {
	Bytes       []byte
	ContentType string
	Filename    string
}

// snapshot is the structured export shape. Field order is fixed so the
// structured rendering is byte-stable for an unchanged session.
type snapshot struct {
	SessionID            string             `json:"session_id"`
	ClassID              string             `json:"class_id"`
	Name                 string             `json:"name"`
	CreatedAt            string             `json:"created_at"`
	ExpiresAt            string             `json:"expires_at"`
	LateThresholdMinutes int                `json:"late_threshold_minutes"`
	AllowLateEntry       bool               `json:"allow_late_entry"`
	Records              []snapshotRecord   `json:"records"`
	Aggregate            snapshotAggregate  `json:"aggregate"`
}

type snapshotRecord struct {
	StudentID      string `json:"student_id"`
	DisplayName    string `json:"display_name"`
	RollNumber     string `json:"roll_number"`
	Timestamp      string `json:"timestamp"`
	Status         string `json:"status"`
	ArrivalMinutes int    `json:"arrival_minutes"`
}

type snapshotAggregate struct {
	TotalAttendees        int     `json:"total_attendees"`
	PresentCount          int     `json:"present_count"`
	LateCount             int     `json:"late_count"`
	AverageArrivalMinutes float64 `json:"average_arrival_minutes"`
}

// ExportService renders deterministic session snapshots. Exporting
// never mutates state, and two exports of an unchanged session are
// byte-identical for the same format.
type ExportService struct {
	store  exportStore
	csv    *export.CSVExporter
	json   *export.JSONExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(store exportStore, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		store:  store,
		csv:    export.NewCSVExporter(),
		json:   export.NewJSONExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// Export renders the session's records and aggregate in the requested
// format. Records arrive from the store already in snapshot order
// (timestamp asc, student ID asc).
func (s *ExportService) Export(ctx context.Context, sessionID string, format ExportFormat) (*ExportResult, error) {
	session, err := s.store.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListRecords(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}
	agg, err := s.store.Aggregate(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read aggregate")
	}

	switch format {
	case ExportFormatTabular:
		data, err := s.csv.Render(dataset(records))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{Bytes: data, ContentType: "text/csv", Filename: filename(session, "csv")}, nil
	case ExportFormatStructured:
		data, err := s.json.Render(buildSnapshot(session, records, agg))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render json")
		}
		return &ExportResult{Bytes: data, ContentType: "application/json", Filename: filename(session, "json")}, nil
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset(records), session.Name)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{Bytes: data, ContentType: "application/pdf", Filename: filename(session, "pdf")}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func dataset(records []models.Record) export.Dataset {
	data := export.Dataset{
		Headers: []string{"student_id", "display_name", "roll_number", "timestamp", "status", "arrival_minutes"},
		Rows:    make([][]string, 0, len(records)),
	}
	for _, r := range records {
		data.Rows = append(data.Rows, []string{
			r.StudentID,
			r.DisplayName,
			r.RollNumber,
			r.Timestamp.UTC().Format(time.RFC3339),
			string(r.Status),
			strconv.Itoa(r.ArrivalMinutes),
		})
	}
	return data
}

func buildSnapshot(session *models.Session, records []models.Record, agg *models.Aggregate) snapshot {
	snap := snapshot{
		SessionID:            session.ID,
		ClassID:              session.ClassID,
		Name:                 session.Name,
		CreatedAt:            session.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:            session.ExpiresAt.UTC().Format(time.RFC3339),
		LateThresholdMinutes: session.LateThresholdMinutes,
		AllowLateEntry:       session.AllowLateEntry,
		Records:              make([]snapshotRecord, 0, len(records)),
		Aggregate: snapshotAggregate{
			TotalAttendees:        agg.TotalAttendees,
			PresentCount:          agg.PresentCount,
			LateCount:             agg.LateCount,
			AverageArrivalMinutes: agg.AverageArrivalMinutes,
		},
	}
	for _, r := range records {
		snap.Records = append(snap.Records, snapshotRecord{
			StudentID:      r.StudentID,
			DisplayName:    r.DisplayName,
			RollNumber:     r.RollNumber,
			Timestamp:      r.Timestamp.UTC().Format(time.RFC3339),
			Status:         string(r.Status),
			ArrivalMinutes: r.ArrivalMinutes,
		})
	}
	return snap
}

func filename(session *models.Session, ext string) string {
	return fmt.Sprintf("attendance-%s.%s", session.ID, ext)
}
