package jobs

import "github.com/vytor/studyflash/internal/study"

// SnapshotQueue provides an abstraction for persisting snapshots in the background
type SnapshotQueue interface {
	EnqueueSnapshot(snap study.Snapshot) error
}
