package quiz

import (
	"slices"

	"github.com/vytor/studyflash/internal/models"
)

// State is the lifecycle position of a Run.
type State int

const (
	NotStarted State = iota
	Running
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Outcome is the result of answering the front question.
type Outcome int

const (
	Incorrect Outcome = iota
	Correct
)

func (o Outcome) String() string {
	if o == Correct {
		return "correct"
	}
	return "incorrect"
}

// Stats counts what happened during a run.
type Stats struct {
	Answered  int `json:"answered"`
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Skipped   int `json:"skipped"`
}

// Run is one pass over the cards that were eligible when it was built.
// The zero value is a run that has not been started.
type Run struct {
	selected []models.FlashcardKey
	queue    []models.Question
	started  bool
	stats    Stats
}

func (r *Run) State() State {
	switch {
	case !r.started:
		return NotStarted
	case len(r.queue) == 0:
		return Finished
	default:
		return Running
	}
}

// SelectedCards returns the keys captured when the run was built, plus any
// submitted since.
func (r *Run) SelectedCards() []models.FlashcardKey {
	return slices.Clone(r.selected)
}

// Queue returns the remaining questions, front first.
func (r *Run) Queue() []models.Question {
	return slices.Clone(r.queue)
}

func (r *Run) RemainingCount() int { return len(r.queue) }

func (r *Run) Stats() Stats { return r.stats }

func (r *Run) reset() {
	r.selected = nil
	r.queue = nil
	r.stats = Stats{}
}

func (r *Run) push(key models.FlashcardKey, card models.Flashcard) {
	r.selected = append(r.selected, key)
	r.queue = append(r.queue, models.QuestionFromFlashcard(card))
}

func (r *Run) popFront() models.Question {
	q := r.queue[0]
	r.queue = slices.Delete(r.queue, 0, 1)
	return q
}
