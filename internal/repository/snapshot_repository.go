package repository

import (
	"context"
	"errors"

	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/study"
)

// ErrStaleSnapshot is returned by Save when a snapshot with a higher
// revision is already stored.
var ErrStaleSnapshot = errors.New("snapshot is older than the stored one")

// SnapshotRepository persists study repository snapshots. Latest, List and
// Prune rank snapshots by revision first and insertion order second.
type SnapshotRepository interface {
	Save(ctx context.Context, snap study.Snapshot) (int64, error)
	Get(ctx context.Context, id int64) (*study.Snapshot, error)
	Latest(ctx context.Context) (*study.Snapshot, error)
	List(ctx context.Context, limit int) ([]models.SnapshotInfo, error)
	Prune(ctx context.Context, keep int) (int64, error)
}
