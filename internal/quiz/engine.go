// Package quiz builds quiz runs from a study repository and steps through them.
//
// A card is eligible when any one of its topics is both enabled and carries
// an eligible tag. Toggling a topic does not touch runs already built;
// callers rebuild with StartRun or Restart to pick the change up.
package quiz

import (
	"iter"
	"slices"
	"strings"

	apperrors "github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
)

// Repository is the read side of the study repository the engine needs,
// plus the single mutation it forwards.
type Repository interface {
	ListFlashcards() iter.Seq2[models.FlashcardKey, models.Flashcard]
	GetFlashcard(key models.FlashcardKey) (models.Flashcard, error)
	GetTopic(key models.TopicKey) (models.Topic, error)
	ToggleTopicEnabled(key models.TopicKey) (bool, error)
}

type Engine struct {
	tags []models.TopicTag
	log  *logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithEligibleTags replaces the set of tags that make an enabled topic count.
// The default is TagQuiz alone.
func WithEligibleTags(tags ...models.TopicTag) Option {
	return func(e *Engine) {
		if len(tags) > 0 {
			e.tags = slices.Clone(tags)
		}
	}
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{tags: []models.TopicTag{models.TagQuiz}}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Default()
	}
	e.log = e.log.WithPrefix("quiz")
	return e
}

// EligibleTags returns the tags that qualify an enabled topic.
func (e *Engine) EligibleTags() []models.TopicTag {
	return slices.Clone(e.tags)
}

// Eligible reports whether any topic of card is enabled and carries an
// eligible tag. References to deleted topics never qualify.
func (e *Engine) Eligible(repo Repository, card models.Flashcard) bool {
	for _, tk := range card.TopicRefs {
		topic, err := repo.GetTopic(tk)
		if err != nil {
			continue
		}
		if topic.Enabled && slices.Contains(e.tags, topic.Tag) {
			return true
		}
	}
	return false
}

// StartRun builds a new run from every eligible card, in repository order.
func (e *Engine) StartRun(repo Repository) *Run {
	run := &Run{}
	e.Restart(run, repo)
	return run
}

// Restart rebuilds run in place from the current repository state.
func (e *Engine) Restart(run *Run, repo Repository) {
	run.reset()
	run.started = true
	for key, card := range repo.ListFlashcards() {
		if e.Eligible(repo, card) {
			run.push(key, card)
		}
	}
	e.log.Debug("run built with %d questions", len(run.queue))
}

// SubmitCard appends one card to a started run if it is eligible and not
// already part of the run. It reports whether the card was added.
func (e *Engine) SubmitCard(run *Run, key models.FlashcardKey, repo Repository) (bool, error) {
	if !run.started {
		return false, apperrors.NewInvalidStateError("submit card", NotStarted.String())
	}
	card, err := repo.GetFlashcard(key)
	if err != nil {
		return false, err
	}
	if slices.Contains(run.selected, key) || !e.Eligible(repo, card) {
		e.log.Debug("card %d not added to run", key)
		return false, nil
	}
	run.push(key, card)
	e.log.Debug("card %d added to run", key)
	return true, nil
}

// SubmitTopic submits every flashcard of a topic to a started run, in the
// topic's order, and returns how many were added. Each card goes through the
// same eligibility and duplicate checks as SubmitCard.
func (e *Engine) SubmitTopic(run *Run, key models.TopicKey, repo Repository) (int, error) {
	if !run.started {
		return 0, apperrors.NewInvalidStateError("submit topic", NotStarted.String())
	}
	topic, err := repo.GetTopic(key)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, ck := range topic.QuestionRefs {
		ok, err := e.SubmitCard(run, ck, repo)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	e.log.Debug("topic %d submitted to run: %d of %d cards added", key, added, len(topic.QuestionRefs))
	return added, nil
}

// ToggleTopicForRun flips a topic's enabled flag through the repository.
// Existing runs are left as they are.
func (e *Engine) ToggleTopicForRun(repo Repository, key models.TopicKey) (bool, error) {
	return repo.ToggleTopicEnabled(key)
}

// AnswerCurrent checks answer against the front question, ignoring case and
// surrounding space. A correct answer removes the question; an incorrect one
// sends it to the back of the queue.
func (e *Engine) AnswerCurrent(run *Run, answer string) (Outcome, error) {
	if err := checkPlayable(run, "answer"); err != nil {
		return Incorrect, err
	}
	front := run.popFront()
	run.stats.Answered++
	if strings.EqualFold(strings.TrimSpace(front.Answer), strings.TrimSpace(answer)) {
		run.stats.Correct++
		e.log.Debug("correct answer for question %d, %d left", front.Number, len(run.queue))
		return Correct, nil
	}
	run.queue = append(run.queue, front)
	run.stats.Incorrect++
	e.log.Debug("incorrect answer for question %d, requeued", front.Number)
	return Incorrect, nil
}

// Advance drops the front question without checking an answer. It returns
// the new front question and true, or false once the queue is empty.
func (e *Engine) Advance(run *Run) (models.Question, bool, error) {
	if err := checkPlayable(run, "advance"); err != nil {
		return models.Question{}, false, err
	}
	run.popFront()
	run.stats.Skipped++
	if len(run.queue) == 0 {
		return models.Question{}, false, nil
	}
	return run.queue[0], true, nil
}

// CurrentQuestion returns the front of the queue.
func (e *Engine) CurrentQuestion(run *Run) (models.Question, error) {
	if err := checkPlayable(run, "read current question"); err != nil {
		return models.Question{}, err
	}
	return run.queue[0], nil
}

// EndRun empties the run. It must be rebuilt with Restart before reuse.
func (e *Engine) EndRun(run *Run) {
	run.reset()
	run.started = false
	e.log.Debug("run ended")
}

func checkPlayable(run *Run, op string) error {
	switch run.State() {
	case NotStarted:
		return apperrors.NewInvalidStateError(op, NotStarted.String())
	case Finished:
		return apperrors.NewEmptyQueueError(op)
	}
	return nil
}
