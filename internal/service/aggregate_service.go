package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/qr-attend-api/internal/models"
	appErrors "github.com/noah-isme/qr-attend-api/pkg/errors"
)

type aggregateStore interface {
	FindSessionByID(ctx context.Context, id string) (*models.Session, error)
	ListRecords(ctx context.Context, sessionID string) ([]models.Record, error)
	Aggregate(ctx context.Context, sessionID string) (*models.Aggregate, error)
}

// AggregateService exposes per-session attendance counters. The store
// keeps them consistent with record insertion; this service only reads.
type AggregateService struct {
	store  aggregateStore
	logger *zap.Logger
}

// NewAggregateService constructs the aggregate service.
func NewAggregateService(store aggregateStore, logger *zap.Logger) *AggregateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregateService{store: store, logger: logger}
}

// Get returns the session's aggregate counters.
func (s *AggregateService) Get(ctx context.Context, sessionID string) (*models.Aggregate, error) {
	if _, err := s.store.FindSessionByID(ctx, sessionID); err != nil {
		return nil, err
	}
	agg, err := s.store.Aggregate(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read aggregate")
	}
	return agg, nil
}

// Recompute folds the record set from scratch. It must always agree
// with Get; exposing both lets operators verify the cached counters.
func (s *AggregateService) Recompute(ctx context.Context, sessionID string) (*models.Aggregate, error) {
	if _, err := s.store.FindSessionByID(ctx, sessionID); err != nil {
		return nil, err
	}
	records, err := s.store.ListRecords(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}
	agg := models.FoldAggregate(sessionID, records)
	return &agg, nil
}
