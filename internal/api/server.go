package api

import (
	"context"

	"github.com/vytor/studyflash/internal/services"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Study       services.StudyService
	Quiz        services.QuizService
	Snapshots   services.SnapshotService
	DB          Pinger
	CORSOrigins []string
}
