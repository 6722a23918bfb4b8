package services_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apperrors "github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/jobs"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/quiz"
	"github.com/vytor/studyflash/internal/repository"
	"github.com/vytor/studyflash/internal/services"
	"github.com/vytor/studyflash/internal/study"
	"github.com/vytor/studyflash/internal/testutil"
	"github.com/vytor/studyflash/internal/testutil/mocks"
)

func newStore(t *testing.T, queue jobs.SnapshotQueue) *services.Store {
	t.Helper()
	engine := quiz.NewEngine(quiz.WithLogger(logger.Discard()))
	return services.NewStore(testutil.SeedRepository(t), engine, queue)
}

func TestCleanText(t *testing.T) {
	for _, in := range []string{"  Math ", "a & b", "2 < 3", "x > y"} {
		got, err := services.CleanText("content", in)
		require.NoError(t, err, in)
		assert.Equal(t, strings.TrimSpace(in), got)
	}
	for _, in := range []string{"a<b", "<b>Math</b>", "<i></i>", "<script>x</script>"} {
		_, err := services.CleanText("content", in)
		assert.ErrorIs(t, err, apperrors.ErrValidation, in)
	}
}

func TestStudyService_CreateTopicQueuesSnapshot(t *testing.T) {
	ctx := context.Background()
	queue := new(mocks.MockSnapshotQueue)
	queue.On("EnqueueSnapshot", mock.Anything).Return(nil).Once()
	svc := services.NewStudyService(newStore(t, queue))

	topic, err := svc.CreateTopic(ctx, " Biology ", models.TagQuiz)
	require.NoError(t, err)
	assert.Equal(t, models.TopicKey(4), topic.Key)
	assert.Equal(t, "Biology", topic.Content)
	assert.False(t, topic.Enabled)

	queue.AssertExpectations(t)
	snap := queue.Calls[0].Arguments.Get(0).(study.Snapshot)
	assert.Len(t, snap.Topics, 4)
	assert.Equal(t, uint64(1), snap.Revision)
	assert.Equal(t, []models.FlashcardKey{}, topic.QuestionRefs)
}

func TestStudyService_MarkupIsRejectedNotStripped(t *testing.T) {
	ctx := context.Background()
	queue := new(mocks.MockSnapshotQueue)
	queue.On("EnqueueSnapshot", mock.Anything).Return(nil)
	svc := services.NewStudyService(newStore(t, queue))

	_, err := svc.CreateFlashcard(ctx, services.NewFlashcard{Question: "Which is smaller if a<b?", Answer: "a"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.CreateFlashcard(ctx, services.NewFlashcard{Question: "Which holds?", Answer: "a<b"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.CreateTopic(ctx, "<em>Biology</em>", models.TagQuiz)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	queue.AssertNotCalled(t, "EnqueueSnapshot", mock.Anything)

	card, err := svc.CreateFlashcard(ctx, services.NewFlashcard{Question: "Is 2 < 3?", Answer: "yes, 2 < 3"})
	require.NoError(t, err)
	assert.Equal(t, "Is 2 < 3?", card.Question)
	assert.Equal(t, "yes, 2 < 3", card.Answer)
	assert.Equal(t, []models.TopicKey{}, card.TopicRefs)

	tampered := "a<b"
	_, err = svc.UpdateFlashcard(ctx, card.Key, services.FlashcardUpdate{Answer: &tampered})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	got, err := svc.GetFlashcard(ctx, card.Key)
	require.NoError(t, err)
	assert.Equal(t, "yes, 2 < 3", got.Answer)
}

func TestStudyService_ValidationSkipsSnapshot(t *testing.T) {
	ctx := context.Background()
	queue := new(mocks.MockSnapshotQueue)
	svc := services.NewStudyService(newStore(t, queue))

	_, err := svc.CreateTopic(ctx, "   ", models.TagQuiz)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.CreateTopic(ctx, "Physics", models.TopicTag(42))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.CreateFlashcard(ctx, services.NewFlashcard{Question: "q"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.UpdateTopic(ctx, 99, services.TopicUpdate{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	n, err := svc.DeleteTopicsByContent(ctx, "nothing here")
	require.NoError(t, err)
	assert.Zero(t, n)

	queue.AssertNotCalled(t, "EnqueueSnapshot", mock.Anything)
}

func TestStudyService_QueueFailureKeepsMutation(t *testing.T) {
	ctx := context.Background()
	queue := new(mocks.MockSnapshotQueue)
	queue.On("EnqueueSnapshot", mock.Anything).Return(errors.New("queue full"))
	svc := services.NewStudyService(newStore(t, queue))

	_, err := svc.CreateTopic(ctx, "Chemistry", models.TagConfigure)
	require.NoError(t, err)
	topics, _ := svc.Counts(ctx)
	assert.Equal(t, 4, topics)
}

func TestStudyService_CreateFlashcardLinksByName(t *testing.T) {
	ctx := context.Background()
	queue := new(mocks.MockSnapshotQueue)
	queue.On("EnqueueSnapshot", mock.Anything).Return(nil)
	svc := services.NewStudyService(newStore(t, queue))

	number := uint32(9)
	card, err := svc.CreateFlashcard(ctx, services.NewFlashcard{
		Question: "5-2?",
		Answer:   "3",
		Number:   &number,
		Topics:   []string{" MATH ", " ", "unknown"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(9), card.Number)
	assert.Equal(t, []models.TopicKey{1}, card.TopicRefs)

	math, err := svc.GetTopic(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, math.QuestionRefs, card.Key)
}

func TestStudyService_UpdateAndLink(t *testing.T) {
	ctx := context.Background()
	queue := new(mocks.MockSnapshotQueue)
	queue.On("EnqueueSnapshot", mock.Anything).Return(nil)
	svc := services.NewStudyService(newStore(t, queue))

	answer := "four"
	card, err := svc.UpdateFlashcard(ctx, 1, services.FlashcardUpdate{Answer: &answer})
	require.NoError(t, err)
	assert.Equal(t, "four", card.Answer)
	assert.Equal(t, "2+2?", card.Question)

	empty := " "
	_, err = svc.UpdateFlashcard(ctx, 1, services.FlashcardUpdate{Question: &empty})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	tag := models.TagConfigure
	enabled := true
	topic, err := svc.UpdateTopic(ctx, 2, services.TopicUpdate{Tag: &tag, Enabled: &enabled})
	require.NoError(t, err)
	assert.Equal(t, models.TagConfigure, topic.Tag)
	assert.True(t, topic.Enabled)

	require.NoError(t, svc.LinkTopic(ctx, 1, 3))
	require.NoError(t, svc.UnlinkTopic(ctx, 1, 1))
	card, err = svc.GetFlashcard(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []models.TopicKey{3}, card.TopicRefs)

	assert.ErrorIs(t, svc.LinkTopic(ctx, 1, 99), apperrors.ErrNotFound)
}

func TestStudyService_DeleteAndPrune(t *testing.T) {
	ctx := context.Background()
	queue := new(mocks.MockSnapshotQueue)
	queue.On("EnqueueSnapshot", mock.Anything).Return(nil)
	svc := services.NewStudyService(newStore(t, queue))

	n, err := svc.DeleteTopicsByContent(ctx, "History")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	card, err := svc.GetFlashcard(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []models.TopicKey{2}, card.TopicRefs)

	assert.Equal(t, 2, svc.PruneDanglingRefs(ctx))
	card, err = svc.GetFlashcard(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, card.TopicRefs)

	assert.ErrorIs(t, svc.DeleteTopic(ctx, 2), apperrors.ErrNotFound)
	require.NoError(t, svc.DeleteTopic(ctx, 3))
	assert.Len(t, svc.ListTopics(ctx), 1)
	assert.Len(t, svc.ListFlashcards(ctx), 4)
}

func TestQuizService_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	queue := new(mocks.MockSnapshotQueue)
	queue.On("EnqueueSnapshot", mock.Anything).Return(nil)
	store := newStore(t, queue)
	quizSvc := services.NewQuizService(store)
	studySvc := services.NewStudyService(store)

	run, err := quizSvc.StartRun(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "running", run.State)
	assert.Equal(t, []models.FlashcardKey{1, 2}, run.Selected)
	require.NotNil(t, run.Current)
	assert.Equal(t, "2+2?", run.Current.Question)

	// Enabling History does not reach the live run.
	enabled, err := studySvc.ToggleTopic(ctx, 2)
	require.NoError(t, err)
	assert.True(t, enabled)

	res, err := quizSvc.Answer(ctx, run.ID, "5")
	require.NoError(t, err)
	assert.Equal(t, "incorrect", res.Outcome)
	assert.Equal(t, "3*3?", res.Run.Current.Question)
	assert.Equal(t, 2, res.Run.Remaining)

	res, err = quizSvc.Answer(ctx, run.ID, " 9 ")
	require.NoError(t, err)
	assert.Equal(t, "correct", res.Outcome)

	view, err := quizSvc.Advance(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "finished", view.State)
	assert.Nil(t, view.Current)
	assert.Equal(t, quiz.Stats{Answered: 2, Correct: 1, Incorrect: 1, Skipped: 1}, view.Stats)

	_, err = quizSvc.Advance(ctx, run.ID)
	assert.ErrorIs(t, err, apperrors.ErrEmptyQueue)

	view, err = quizSvc.Restart(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.FlashcardKey{1, 2, 3, 4}, view.Selected)

	added, _, err := quizSvc.SubmitCard(ctx, run.ID, 1)
	require.NoError(t, err)
	assert.False(t, added)

	_, _, err = quizSvc.SubmitCard(ctx, run.ID, 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = quizSvc.Answer(ctx, run.ID, "a<b")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	view, err = quizSvc.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.Stats{}, view.Stats)

	assert.Equal(t, 1, quizSvc.RunCount(ctx))
	require.NoError(t, quizSvc.EndRun(ctx, run.ID))
	assert.Zero(t, quizSvc.RunCount(ctx))

	_, err = quizSvc.GetRun(ctx, run.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestQuizService_SubmitTopic(t *testing.T) {
	ctx := context.Background()
	queue := new(mocks.MockSnapshotQueue)
	queue.On("EnqueueSnapshot", mock.Anything).Return(nil)
	store := newStore(t, queue)
	quizSvc := services.NewQuizService(store)

	run, err := quizSvc.StartRun(ctx)
	require.NoError(t, err)

	added, _, err := quizSvc.SubmitTopic(ctx, run.ID, 2)
	require.NoError(t, err)
	assert.Zero(t, added)

	_, err = services.NewStudyService(store).ToggleTopic(ctx, 2)
	require.NoError(t, err)
	added, view, err := quizSvc.SubmitTopic(ctx, run.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, []models.FlashcardKey{1, 2, 3, 4}, view.Selected)
	assert.Equal(t, 4, view.Remaining)

	added, _, err = quizSvc.SubmitTopic(ctx, run.ID, 1)
	require.NoError(t, err)
	assert.Zero(t, added)

	_, _, err = quizSvc.SubmitTopic(ctx, run.ID, 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, _, err = quizSvc.SubmitTopic(ctx, "missing", 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSnapshotService_RestoreLatest(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.MockSnapshotRepository)
	store := services.NewStore(study.New(study.WithLogger(logger.Discard())), quiz.NewEngine(quiz.WithLogger(logger.Discard())), nil)
	svc := services.NewSnapshotService(store, repo, 5, study.WithLogger(logger.Discard()))

	repo.On("Latest", mock.Anything).Return(nil, nil).Once()
	ok, err := svc.RestoreLatest(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	snap := testutil.SeedRepository(t).Snapshot()
	repo.On("Latest", mock.Anything).Return(&snap, nil).Once()
	ok, err = svc.RestoreLatest(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	topics, cards := services.NewStudyService(store).Counts(ctx)
	assert.Equal(t, 3, topics)
	assert.Equal(t, 4, cards)

	bad := study.Snapshot{}
	repo.On("Latest", mock.Anything).Return(&bad, nil).Once()
	_, err = svc.RestoreLatest(ctx)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	repo.On("Latest", mock.Anything).Return(nil, errors.New("disk gone")).Once()
	_, err = svc.RestoreLatest(ctx)
	assert.Error(t, err)
	repo.AssertExpectations(t)
}

func TestSnapshotService_SaveNow(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.MockSnapshotRepository)
	store := newStore(t, nil)
	svc := services.NewSnapshotService(store, repo, 3)

	repo.On("Save", mock.Anything, mock.AnythingOfType("study.Snapshot")).Return(int64(11), nil).Once()
	repo.On("Prune", mock.Anything, 3).Return(int64(0), nil).Once()

	id, err := svc.SaveNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	repo.AssertExpectations(t)
}

func TestSnapshotService_ExportImport(t *testing.T) {
	ctx := context.Background()
	queue := new(mocks.MockSnapshotQueue)
	queue.On("EnqueueSnapshot", mock.Anything).Return(nil)

	source := newStore(t, nil)
	var buf bytes.Buffer
	require.NoError(t, services.NewSnapshotService(source, nil, 0).Export(ctx, &buf))

	target := services.NewStore(study.New(study.WithLogger(logger.Discard())), quiz.NewEngine(quiz.WithLogger(logger.Discard())), queue)
	quizSvc := services.NewQuizService(target)
	_, err := quizSvc.StartRun(ctx)
	require.NoError(t, err)

	svc := services.NewSnapshotService(target, nil, 0, study.WithLogger(logger.Discard()))
	require.NoError(t, svc.Import(ctx, &buf))

	topics, cards := services.NewStudyService(target).Counts(ctx)
	assert.Equal(t, 3, topics)
	assert.Equal(t, 4, cards)
	assert.Zero(t, quizSvc.RunCount(ctx))
	queue.AssertNumberOfCalls(t, "EnqueueSnapshot", 1)

	err = svc.Import(ctx, bytes.NewBufferString("topics: [\n"))
	assert.ErrorIs(t, err, apperrors.NewBadRequestError(""))
}

func TestSnapshotService_ImportRejectsMarkup(t *testing.T) {
	ctx := context.Background()
	store := services.NewStore(study.New(study.WithLogger(logger.Discard())), quiz.NewEngine(quiz.WithLogger(logger.Discard())), nil)
	svc := services.NewSnapshotService(store, nil, 0, study.WithLogger(logger.Discard()))

	doc := `next_topic_key: 1
next_flashcard_key: 2
topics: []
flashcards:
  - key: 1
    question: "Which holds?"
    answer: "a<b"
    number: 1
`
	err := svc.Import(ctx, strings.NewReader(doc))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, cards := services.NewStudyService(store).Counts(ctx)
	assert.Zero(t, cards)

	ok := strings.Replace(doc, `"a<b"`, `"a < b"`, 1)
	require.NoError(t, svc.Import(ctx, strings.NewReader(ok)))
	card, err := services.NewStudyService(store).GetFlashcard(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a < b", card.Answer)
}

func TestSnapshotService_RevisionsFollowMutations(t *testing.T) {
	ctx := context.Background()
	queue := new(mocks.MockSnapshotQueue)
	queue.On("EnqueueSnapshot", mock.Anything).Return(nil)
	repo := new(mocks.MockSnapshotRepository)
	store := services.NewStore(study.New(study.WithLogger(logger.Discard())), quiz.NewEngine(quiz.WithLogger(logger.Discard())), queue)
	svc := services.NewSnapshotService(store, repo, 0, study.WithLogger(logger.Discard()))

	stored := testutil.SeedRepository(t).Snapshot()
	stored.Revision = 40
	repo.On("Latest", mock.Anything).Return(&stored, nil).Once()
	_, err := svc.RestoreLatest(ctx)
	require.NoError(t, err)

	studySvc := services.NewStudyService(store)
	_, err = studySvc.CreateTopic(ctx, "Physics", models.TagQuiz)
	require.NoError(t, err)
	_, err = studySvc.CreateTopic(ctx, "Chemistry", models.TagQuiz)
	require.NoError(t, err)
	require.Len(t, queue.Calls, 2)
	assert.Equal(t, uint64(41), queue.Calls[0].Arguments.Get(0).(study.Snapshot).Revision)
	assert.Equal(t, uint64(42), queue.Calls[1].Arguments.Get(0).(study.Snapshot).Revision)

	// A save that lost to a newer one is not an error.
	repo.On("Save", mock.Anything, mock.MatchedBy(func(s study.Snapshot) bool { return s.Revision == 42 })).
		Return(int64(0), repository.ErrStaleSnapshot).Once()
	id, err := svc.SaveNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, id)
	repo.AssertExpectations(t)
}
