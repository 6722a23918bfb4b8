package testutil

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vytor/studyflash/internal/db"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/study"
)

// NewTestDB creates an in-memory SQLite database with all migrations applied.
func NewTestDB(t *testing.T) *sql.DB {
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	return database.DB
}

// MustClose closes a resource and fails the test on error.
func MustClose(t *testing.T, closer interface{ Close() error }) {
	require.NoError(t, closer.Close())
}

// SeedRepository returns a repository with a small, known graph:
// an enabled quiz topic "Math" with two cards, a disabled quiz topic
// "History" with one card, and a configure topic "Art" with a card shared
// with History.
func SeedRepository(t *testing.T) *study.Repository {
	t.Helper()
	repo := study.New(study.WithLogger(logger.Discard()))
	math := repo.CreateTopic("Math", models.TagQuiz)
	repo.CreateTopic("History", models.TagQuiz)
	repo.CreateTopic("Art", models.TagConfigure)
	_, err := repo.ToggleTopicEnabled(math)
	require.NoError(t, err)

	repo.CreateFlashcardWithNumber("2+2?", "4", 1, []string{"math"})
	repo.CreateFlashcardWithNumber("3*3?", "9", 2, []string{"math"})
	repo.CreateFlashcardWithNumber("1066?", "Hastings", 3, []string{"history"})
	repo.CreateFlashcardWithNumber("Bayeux Tapestry subject?", "Norman conquest", 4, []string{"history", "art"})
	return repo
}
