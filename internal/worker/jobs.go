package worker

import (
	"context"
	"errors"

	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/repository"
	"github.com/vytor/studyflash/internal/study"
)

// SaveSnapshotJob persists one snapshot and trims old ones.
type SaveSnapshotJob struct {
	Repo      repository.SnapshotRepository
	Snapshot  study.Snapshot
	Retention int
}

func (j *SaveSnapshotJob) Name() string { return "save_snapshot" }

func (j *SaveSnapshotJob) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	id, err := j.Repo.Save(ctx, j.Snapshot)
	if errors.Is(err, repository.ErrStaleSnapshot) {
		log.Debug("snapshot revision %d superseded, skipped", j.Snapshot.Revision)
		return nil
	}
	if err != nil {
		return err
	}
	log.Debug("snapshot %d saved: topics=%d, flashcards=%d", id, len(j.Snapshot.Topics), len(j.Snapshot.Flashcards))

	if j.Retention > 0 {
		if _, err := j.Repo.Prune(ctx, j.Retention); err != nil {
			// The save itself succeeded; old snapshots are trimmed next time.
			log.Warn("failed to prune snapshots: %v", err)
		}
	}
	return nil
}
