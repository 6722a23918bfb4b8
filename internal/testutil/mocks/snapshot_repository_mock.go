package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/study"
)

// MockSnapshotRepository is a mock implementation of repository.SnapshotRepository
type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) Save(ctx context.Context, snap study.Snapshot) (int64, error) {
	args := m.Called(ctx, snap)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSnapshotRepository) Get(ctx context.Context, id int64) (*study.Snapshot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*study.Snapshot), args.Error(1)
}

func (m *MockSnapshotRepository) Latest(ctx context.Context) (*study.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*study.Snapshot), args.Error(1)
}

func (m *MockSnapshotRepository) List(ctx context.Context, limit int) ([]models.SnapshotInfo, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SnapshotInfo), args.Error(1)
}

func (m *MockSnapshotRepository) Prune(ctx context.Context, keep int) (int64, error) {
	args := m.Called(ctx, keep)
	return args.Get(0).(int64), args.Error(1)
}
