package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/repository"
	"github.com/vytor/studyflash/internal/repository/sqlite"
	"github.com/vytor/studyflash/internal/study"
	"github.com/vytor/studyflash/internal/testutil"
)

type SnapshotRepositorySuite struct {
	suite.Suite
	db   *sql.DB
	repo repository.SnapshotRepository
}

func (s *SnapshotRepositorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.repo = sqlite.NewSnapshotRepository(s.db)
}

func (s *SnapshotRepositorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *SnapshotRepositorySuite) TestSaveAndLatestRoundTrip() {
	ctx := context.Background()
	studyRepo := testutil.SeedRepository(s.T())
	studyRepo.DeleteTopicByContent("art")
	studyRepo.SetStagingTopic("draft")
	want := studyRepo.Snapshot()

	id, err := s.repo.Save(ctx, want)
	s.Require().NoError(err)
	s.Assert().Greater(id, int64(0))

	got, err := s.repo.Latest(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(got)

	restored, err := study.Restore(*got, study.WithLogger(logger.Discard()))
	s.Require().NoError(err)
	s.Assert().Equal(want, restored.Snapshot())
}

func (s *SnapshotRepositorySuite) TestLatestEmpty() {
	got, err := s.repo.Latest(context.Background())
	s.Require().NoError(err)
	s.Assert().Nil(got)
}

func (s *SnapshotRepositorySuite) TestGetMissing() {
	got, err := s.repo.Get(context.Background(), 42)
	s.Require().NoError(err)
	s.Assert().Nil(got)
}

func (s *SnapshotRepositorySuite) TestLatestReturnsNewest() {
	ctx := context.Background()
	studyRepo := study.New(study.WithLogger(logger.Discard()))
	studyRepo.CreateTopic("First", models.TagQuiz)
	_, err := s.repo.Save(ctx, studyRepo.Snapshot())
	s.Require().NoError(err)

	studyRepo.CreateTopic("Second", models.TagQuiz)
	_, err = s.repo.Save(ctx, studyRepo.Snapshot())
	s.Require().NoError(err)

	got, err := s.repo.Latest(ctx)
	s.Require().NoError(err)
	s.Require().Len(got.Topics, 2)
	s.Assert().Equal("Second", got.Topics[1].Content)
}

func (s *SnapshotRepositorySuite) TestOutOfOrderSaveIsSkipped() {
	ctx := context.Background()
	studyRepo := study.New(study.WithLogger(logger.Discard()))
	studyRepo.CreateTopic("First", models.TagQuiz)
	older := studyRepo.Snapshot()
	older.Revision = 1
	studyRepo.CreateTopic("Second", models.TagQuiz)
	newer := studyRepo.Snapshot()
	newer.Revision = 2

	// The newer snapshot commits first, as a faster worker would.
	_, err := s.repo.Save(ctx, newer)
	s.Require().NoError(err)
	_, err = s.repo.Save(ctx, older)
	s.Assert().ErrorIs(err, repository.ErrStaleSnapshot)

	got, err := s.repo.Latest(ctx)
	s.Require().NoError(err)
	s.Assert().Equal(uint64(2), got.Revision)
	s.Assert().Len(got.Topics, 2)

	infos, err := s.repo.List(ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(infos, 1)
	s.Assert().Equal(uint64(2), infos[0].Revision)

	// Saving the same revision again is allowed.
	_, err = s.repo.Save(ctx, newer)
	s.Assert().NoError(err)
}

func (s *SnapshotRepositorySuite) TestSaveLargeSnapshotInBatches() {
	ctx := context.Background()
	studyRepo := study.New(study.WithLogger(logger.Discard()))
	studyRepo.CreateTopic("Bulk", models.TagQuiz)
	for i := 0; i < 450; i++ {
		studyRepo.CreateFlashcard("q", "a", []string{"bulk"})
	}

	id, err := s.repo.Save(ctx, studyRepo.Snapshot())
	s.Require().NoError(err)

	got, err := s.repo.Get(ctx, id)
	s.Require().NoError(err)
	s.Assert().Len(got.Flashcards, 450)
	s.Assert().Len(got.Topics[0].QuestionRefs, 450)
}

func (s *SnapshotRepositorySuite) TestListAndPrune() {
	ctx := context.Background()
	studyRepo := testutil.SeedRepository(s.T())
	for i := 0; i < 4; i++ {
		_, err := s.repo.Save(ctx, studyRepo.Snapshot())
		s.Require().NoError(err)
	}

	removed, err := s.repo.Prune(ctx, 2)
	s.Require().NoError(err)
	s.Assert().Equal(int64(2), removed)

	infos, err := s.repo.List(ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(infos, 2)
	s.Assert().Greater(infos[0].ID, infos[1].ID)
	s.Assert().Equal(3, infos[0].Topics)
	s.Assert().Equal(4, infos[0].Flashcards)

	// Child rows of pruned snapshots go with them.
	var orphans int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flashcards WHERE snapshot_id NOT IN (SELECT id FROM snapshots)`).Scan(&orphans)
	s.Require().NoError(err)
	s.Assert().Zero(orphans)

	_, err = s.repo.Prune(ctx, 0)
	s.Assert().Error(err)
}

func TestSnapshotRepositorySuite(t *testing.T) {
	suite.Run(t, new(SnapshotRepositorySuite))
}
