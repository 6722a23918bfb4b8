package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/vytor/studyflash/internal/study"
)

// MockSnapshotQueue is a mock implementation of jobs.SnapshotQueue
type MockSnapshotQueue struct {
	mock.Mock
}

func (m *MockSnapshotQueue) EnqueueSnapshot(snap study.Snapshot) error {
	args := m.Called(snap)
	return args.Error(0)
}
