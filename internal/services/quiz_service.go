package services

import (
	"context"

	gonanoid "github.com/matoous/go-nanoid/v2"
	apperrors "github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/quiz"
)

// RunView is a point-in-time copy of a quiz run.
type RunView struct {
	ID        string                `json:"id"`
	State     string                `json:"state"`
	Remaining int                   `json:"remaining"`
	Current   *models.Question      `json:"current,omitempty"`
	Selected  []models.FlashcardKey `json:"selected"`
	Stats     quiz.Stats            `json:"stats"`
}

// AnswerResult reports how an answer was judged and where the run stands.
type AnswerResult struct {
	Outcome string  `json:"outcome"`
	Run     RunView `json:"run"`
}

// QuizService handles quiz runs
type QuizService interface {
	StartRun(ctx context.Context) (*RunView, error)
	GetRun(ctx context.Context, id string) (*RunView, error)
	Answer(ctx context.Context, id, answer string) (*AnswerResult, error)
	Advance(ctx context.Context, id string) (*RunView, error)
	Restart(ctx context.Context, id string) (*RunView, error)
	SubmitCard(ctx context.Context, id string, key models.FlashcardKey) (bool, *RunView, error)
	SubmitTopic(ctx context.Context, id string, key models.TopicKey) (int, *RunView, error)
	EndRun(ctx context.Context, id string) error
	RunCount(ctx context.Context) int
}

type quizService struct {
	store *Store
}

// NewQuizService creates a new QuizService
func NewQuizService(store *Store) QuizService {
	return &quizService{store: store}
}

func (s *quizService) StartRun(ctx context.Context) (*RunView, error) {
	log := logger.FromContext(ctx)

	id, err := gonanoid.New()
	if err != nil {
		log.Error("failed to generate run id: %v", err)
		return nil, apperrors.NewInternalError(err)
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	run := s.store.engine.StartRun(s.store.repo)
	s.store.runs[id] = run
	log.WithField("run", id).Info("run started with %d questions", run.RemainingCount())
	return viewOf(id, run), nil
}

func (s *quizService) GetRun(ctx context.Context, id string) (*RunView, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	run, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return viewOf(id, run), nil
}

func (s *quizService) Answer(ctx context.Context, id, answer string) (*AnswerResult, error) {
	answer, err := CleanText("answer", answer)
	if err != nil {
		return nil, err
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	run, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	outcome, err := s.store.engine.AnswerCurrent(run, answer)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).WithField("run", id).Debug("answer judged %s, %d left", outcome, run.RemainingCount())
	return &AnswerResult{Outcome: outcome.String(), Run: *viewOf(id, run)}, nil
}

func (s *quizService) Advance(ctx context.Context, id string) (*RunView, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	run, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.store.engine.Advance(run); err != nil {
		return nil, err
	}
	return viewOf(id, run), nil
}

func (s *quizService) Restart(ctx context.Context, id string) (*RunView, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	run, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	s.store.engine.Restart(run, s.store.repo)
	logger.FromContext(ctx).WithField("run", id).Info("run restarted with %d questions", run.RemainingCount())
	return viewOf(id, run), nil
}

func (s *quizService) SubmitCard(ctx context.Context, id string, key models.FlashcardKey) (bool, *RunView, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	run, err := s.lookup(id)
	if err != nil {
		return false, nil, err
	}
	added, err := s.store.engine.SubmitCard(run, key, s.store.repo)
	if err != nil {
		return false, nil, err
	}
	return added, viewOf(id, run), nil
}

func (s *quizService) SubmitTopic(ctx context.Context, id string, key models.TopicKey) (int, *RunView, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	run, err := s.lookup(id)
	if err != nil {
		return 0, nil, err
	}
	added, err := s.store.engine.SubmitTopic(run, key, s.store.repo)
	if err != nil {
		return 0, nil, err
	}
	logger.FromContext(ctx).WithField("run", id).Debug("topic %d added %d cards", key, added)
	return added, viewOf(id, run), nil
}

func (s *quizService) EndRun(ctx context.Context, id string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	run, err := s.lookup(id)
	if err != nil {
		return err
	}
	s.store.engine.EndRun(run)
	delete(s.store.runs, id)
	logger.FromContext(ctx).WithField("run", id).Info("run ended")
	return nil
}

func (s *quizService) RunCount(ctx context.Context) int {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return len(s.store.runs)
}

func (s *quizService) lookup(id string) (*quiz.Run, error) {
	run, ok := s.store.runs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("run", id)
	}
	return run, nil
}

func viewOf(id string, run *quiz.Run) *RunView {
	v := &RunView{
		ID:        id,
		State:     run.State().String(),
		Remaining: run.RemainingCount(),
		Selected:  run.SelectedCards(),
		Stats:     run.Stats(),
	}
	if v.Selected == nil {
		v.Selected = []models.FlashcardKey{}
	}
	if q := run.Queue(); len(q) > 0 {
		v.Current = &q[0]
	}
	return v
}
