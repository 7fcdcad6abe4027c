package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	appstocksync "github.com/erp/stocksync/internal/application/stocksync"
	"github.com/erp/stocksync/internal/domain/stocksync"
	"github.com/erp/stocksync/internal/infrastructure/scheduler"
)

// MockSyncService is a mock implementation of SyncService
type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) RunStep(ctx context.Context) (*appstocksync.StepOutcome, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appstocksync.StepOutcome), args.Error(1)
}

func (m *MockSyncService) ActiveBatch(ctx context.Context) (*stocksync.SyncBatch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stocksync.SyncBatch), args.Error(1)
}

// MockBatchRepository is a mock implementation of stocksync.BatchRepository
type MockBatchRepository struct {
	mock.Mock
}

func (m *MockBatchRepository) FindActive(ctx context.Context, now time.Time) (*stocksync.SyncBatch, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stocksync.SyncBatch), args.Error(1)
}

func (m *MockBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*stocksync.SyncBatch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stocksync.SyncBatch), args.Error(1)
}

func (m *MockBatchRepository) Create(ctx context.Context, batch *stocksync.SyncBatch, results []*stocksync.SiteResult) error {
	args := m.Called(ctx, batch, results)
	return args.Error(0)
}

func (m *MockBatchRepository) Save(ctx context.Context, batch *stocksync.SyncBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockBatchRepository) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBatchRepository) ListRecent(ctx context.Context, limit int) ([]*stocksync.SyncBatch, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*stocksync.SyncBatch), args.Error(1)
}

// MockSiteResultRepository is a mock implementation of stocksync.SiteResultRepository
type MockSiteResultRepository struct {
	mock.Mock
}

func (m *MockSiteResultRepository) FindByStep(ctx context.Context, batchID uuid.UUID, step int) (*stocksync.SiteResult, error) {
	args := m.Called(ctx, batchID, step)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stocksync.SiteResult), args.Error(1)
}

func (m *MockSiteResultRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*stocksync.SiteResult, error) {
	args := m.Called(ctx, batchID)
	return args.Get(0).([]*stocksync.SiteResult), args.Error(1)
}

func (m *MockSiteResultRepository) Save(ctx context.Context, result *stocksync.SiteResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

// MockSyncTrigger is a mock implementation of SyncTrigger
type MockSyncTrigger struct {
	mock.Mock
}

func (m *MockSyncTrigger) Trigger(source string) (bool, error) {
	args := m.Called(source)
	return args.Bool(0), args.Error(1)
}

func (m *MockSyncTrigger) History(limit int) []scheduler.RunSummary {
	args := m.Called(limit)
	return args.Get(0).([]scheduler.RunSummary)
}

var (
	_ SyncService                    = (*MockSyncService)(nil)
	_ stocksync.BatchRepository      = (*MockBatchRepository)(nil)
	_ stocksync.SiteResultRepository = (*MockSiteResultRepository)(nil)
	_ SyncTrigger                    = (*MockSyncTrigger)(nil)
)
