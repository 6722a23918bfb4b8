package jobs

import (
	"github.com/vytor/studyflash/internal/repository"
	"github.com/vytor/studyflash/internal/study"
	"github.com/vytor/studyflash/internal/worker"
)

// WorkerQueue implements SnapshotQueue using a worker pool
type WorkerQueue struct {
	pool      *worker.Pool
	repo      repository.SnapshotRepository
	retention int
}

// NewWorkerQueue creates a new WorkerQueue implementation
func NewWorkerQueue(pool *worker.Pool, repo repository.SnapshotRepository, retention int) SnapshotQueue {
	return &WorkerQueue{
		pool:      pool,
		repo:      repo,
		retention: retention,
	}
}

func (q *WorkerQueue) EnqueueSnapshot(snap study.Snapshot) error {
	return q.pool.Submit(&worker.SaveSnapshotJob{
		Repo:      q.repo,
		Snapshot:  snap,
		Retention: q.retention,
	})
}
