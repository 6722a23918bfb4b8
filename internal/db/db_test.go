package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/studyflash/internal/db"
)

func TestOpen_AppliesMigrationsOnce(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	defer database.Close()

	versions, err := database.AppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_add_indexes.sql", "0003_snapshot_revision.sql"}, versions)

	var tables int
	err = database.QueryRowContext(ctx, `
SELECT COUNT(*) FROM sqlite_master
WHERE type = 'table' AND name IN ('snapshots', 'topics', 'flashcards', 'topic_questions', 'flashcard_topics')
`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 5, tables)

	assert.NoError(t, database.Ping(ctx))
}

func TestOpen_ForeignKeysEnabled(t *testing.T) {
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	defer database.Close()

	var on int
	require.NoError(t, database.QueryRow(`PRAGMA foreign_keys`).Scan(&on))
	assert.Equal(t, 1, on)
}
