package services

import (
	"context"
	"sync"

	"github.com/vytor/studyflash/internal/jobs"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/quiz"
	"github.com/vytor/studyflash/internal/study"
)

// Store serializes every access to the study repository and the live quiz
// runs. The repository and engine are single-threaded, so all services share
// one Store and go through its lock.
type Store struct {
	mu     sync.Mutex
	repo   *study.Repository
	engine *quiz.Engine
	runs   map[string]*quiz.Run
	queue  jobs.SnapshotQueue
	// rev counts repository changes and stamps every snapshot taken.
	rev uint64
}

// NewStore wraps repo and engine. queue may be nil, in which case mutations
// are not persisted in the background.
func NewStore(repo *study.Repository, engine *quiz.Engine, queue jobs.SnapshotQueue) *Store {
	return &Store{
		repo:   repo,
		engine: engine,
		runs:   map[string]*quiz.Run{},
		queue:  queue,
	}
}

// read runs fn under the lock without scheduling a snapshot.
func (s *Store) read(fn func(repo *study.Repository)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.repo)
}

// mutate runs fn under the lock and, when fn reports a change, queues a
// snapshot of the repository as it is right after fn.
func (s *Store) mutate(ctx context.Context, fn func(repo *study.Repository) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := fn(s.repo)
	if err != nil || !changed {
		return err
	}
	s.rev++
	s.enqueueSnapshot(ctx)
	return nil
}

// enqueueSnapshot must be called with the lock held. A full or stopped queue
// only costs durability, so the failure is logged and the mutation stands.
func (s *Store) enqueueSnapshot(ctx context.Context) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueSnapshot(s.snapshot()); err != nil {
		logger.FromContext(ctx).Warn("failed to enqueue snapshot: %v", err)
	}
}

// snapshot must be called with the lock held.
func (s *Store) snapshot() study.Snapshot {
	snap := s.repo.Snapshot()
	snap.Revision = s.rev
	return snap
}

// takeSnapshot copies the repository stamped with the current revision.
func (s *Store) takeSnapshot() study.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// replace swaps in a restored repository and drops every live run, since
// runs hold keys from the old repository. The revision never goes back: it
// moves up to rev, and past it when the new state is to be persisted.
func (s *Store) replace(ctx context.Context, repo *study.Repository, rev uint64, persist bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repo = repo
	s.rev = max(s.rev, rev)
	clear(s.runs)
	if persist {
		s.rev++
		s.enqueueSnapshot(ctx)
	}
}
