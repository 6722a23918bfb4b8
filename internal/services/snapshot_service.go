package services

import (
	"context"
	"errors"
	"io"

	apperrors "github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/repository"
	"github.com/vytor/studyflash/internal/study"
)

// SnapshotService moves the study repository in and out of durable storage
type SnapshotService interface {
	// RestoreLatest loads the newest stored snapshot into the store. It
	// reports false when there is nothing stored yet.
	RestoreLatest(ctx context.Context) (bool, error)
	// SaveNow writes the current state synchronously and trims old snapshots.
	SaveNow(ctx context.Context) (int64, error)
	List(ctx context.Context, limit int) ([]models.SnapshotInfo, error)
	Export(ctx context.Context, w io.Writer) error
	Import(ctx context.Context, r io.Reader) error
}

type snapshotService struct {
	store     *Store
	repo      repository.SnapshotRepository
	retention int
	opts      []study.Option
}

// NewSnapshotService creates a new SnapshotService. opts are applied to
// every repository restored from storage.
func NewSnapshotService(store *Store, repo repository.SnapshotRepository, retention int, opts ...study.Option) SnapshotService {
	return &snapshotService{store: store, repo: repo, retention: retention, opts: opts}
}

func (s *snapshotService) RestoreLatest(ctx context.Context) (bool, error) {
	log := logger.FromContext(ctx)

	snap, err := s.repo.Latest(ctx)
	if err != nil {
		log.Error("failed to load latest snapshot: %v", err)
		return false, apperrors.NewInternalError(err)
	}
	if snap == nil {
		log.Info("no stored snapshot, starting empty")
		return false, nil
	}
	restored, err := study.Restore(*snap, s.opts...)
	if err != nil {
		log.Error("stored snapshot is invalid: %v", err)
		return false, err
	}
	s.store.replace(ctx, restored, snap.Revision, false)
	log.Info("restored snapshot: topics=%d, flashcards=%d", restored.TopicCount(), restored.FlashcardCount())
	return true, nil
}

func (s *snapshotService) SaveNow(ctx context.Context) (int64, error) {
	log := logger.FromContext(ctx)

	snap := s.store.takeSnapshot()
	id, err := s.repo.Save(ctx, snap)
	if errors.Is(err, repository.ErrStaleSnapshot) {
		log.Info("snapshot revision %d already superseded in storage", snap.Revision)
		return 0, nil
	}
	if err != nil {
		log.Error("failed to save snapshot: %v", err)
		return 0, apperrors.NewInternalError(err)
	}
	if s.retention > 0 {
		if _, err := s.repo.Prune(ctx, s.retention); err != nil {
			log.Warn("failed to prune snapshots: %v", err)
		}
	}
	log.Info("snapshot %d saved at revision %d", id, snap.Revision)
	return id, nil
}

func (s *snapshotService) List(ctx context.Context, limit int) ([]models.SnapshotInfo, error) {
	infos, err := s.repo.List(ctx, limit)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list snapshots: %v", err)
		return nil, apperrors.NewInternalError(err)
	}
	return infos, nil
}

func (s *snapshotService) Export(ctx context.Context, w io.Writer) error {
	if err := study.EncodeYAML(w, s.store.takeSnapshot()); err != nil {
		logger.FromContext(ctx).Error("failed to export snapshot: %v", err)
		return apperrors.NewInternalError(err)
	}
	return nil
}

// Import replaces the whole repository with a YAML snapshot. Text fields
// follow the same markup rule as the API. Live runs are dropped and the
// imported state is queued for persistence under a fresh revision.
func (s *snapshotService) Import(ctx context.Context, r io.Reader) error {
	log := logger.FromContext(ctx)

	snap, err := study.DecodeYAML(r)
	if err != nil {
		log.Warn("failed to decode snapshot: %v", err)
		return err
	}
	if err := checkSnapshotText(snap); err != nil {
		log.Warn("rejected snapshot text: %v", err)
		return err
	}
	restored, err := study.Restore(snap, s.opts...)
	if err != nil {
		log.Warn("rejected snapshot: %v", err)
		return err
	}
	s.store.replace(ctx, restored, snap.Revision, true)
	log.Info("imported snapshot: topics=%d, flashcards=%d", restored.TopicCount(), restored.FlashcardCount())
	return nil
}
