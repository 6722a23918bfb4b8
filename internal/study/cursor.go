package study

import (
	"slices"

	apperrors "github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/models"
)

// cursor is the editing state a front end keeps while building topics and cards.
type cursor struct {
	staging string
	topic   models.TopicKey
	card    models.FlashcardKey
	// picked holds the topics chosen for the next card, in pick order.
	picked []models.TopicKey
}

func (r *Repository) StagingTopic() string { return r.cursor.staging }

// SetStagingTopic stores draft topic text. When a topic is selected its
// content follows the draft.
func (r *Repository) SetStagingTopic(content string) {
	r.cursor.staging = content
	if topic, ok := r.topics[r.cursor.topic]; ok {
		topic.Content = content
	}
}

// SubmitStagingTopic creates a topic from the draft text and clears the draft.
func (r *Repository) SubmitStagingTopic(tag models.TopicTag) models.TopicKey {
	key := r.CreateTopic(r.cursor.staging, tag)
	r.cursor.staging = ""
	return key
}

// CurrentTopic returns the selected topic, if any.
func (r *Repository) CurrentTopic() (models.TopicKey, bool) {
	return r.cursor.topic, r.cursor.topic != 0
}

func (r *Repository) SelectTopic(key models.TopicKey) error {
	topic, ok := r.topics[key]
	if !ok {
		return apperrors.NewNotFoundError("topic", key)
	}
	r.cursor.topic = key
	r.cursor.staging = topic.Content
	return nil
}

// CurrentCard returns the selected flashcard, if any.
func (r *Repository) CurrentCard() (models.FlashcardKey, bool) {
	return r.cursor.card, r.cursor.card != 0
}

func (r *Repository) SelectCard(key models.FlashcardKey) error {
	if _, ok := r.cards[key]; !ok {
		return apperrors.NewNotFoundError("flashcard", key)
	}
	r.cursor.card = key
	return nil
}

// ClearSelection drops the selected topic, card and picked topics. The
// staging text is kept.
func (r *Repository) ClearSelection() {
	r.cursor = cursor{staging: r.cursor.staging}
}

// PickedTopics lists the topics picked for the next card.
func (r *Repository) PickedTopics() []models.TopicKey {
	return slices.Clone(r.cursor.picked)
}

// PickTopic adds a topic to the pick list. Picking it twice changes nothing.
func (r *Repository) PickTopic(key models.TopicKey) error {
	if _, ok := r.topics[key]; !ok {
		return apperrors.NewNotFoundError("topic", key)
	}
	if !slices.Contains(r.cursor.picked, key) {
		r.cursor.picked = append(r.cursor.picked, key)
	}
	return nil
}

// UnpickTopic removes a topic from the pick list and reports whether it was there.
func (r *Repository) UnpickTopic(key models.TopicKey) bool {
	n := len(r.cursor.picked)
	r.cursor.picked = slices.DeleteFunc(r.cursor.picked, func(k models.TopicKey) bool { return k == key })
	return len(r.cursor.picked) != n
}

// CreateFlashcardFromPicked creates a flashcard linked to every picked topic
// and empties the pick list.
func (r *Repository) CreateFlashcardFromPicked(question, answer string, number uint32) models.FlashcardKey {
	key := r.CreateFlashcardWithNumber(question, answer, number, nil)
	card := r.cards[key]
	for _, tk := range r.cursor.picked {
		link(card, r.topics[tk])
	}
	r.cursor.picked = nil
	return key
}

// ToggleCurrentCardTopic links the selected flashcard to topicKey, or unlinks
// it if already linked. It reports whether the pair is linked afterwards.
func (r *Repository) ToggleCurrentCardTopic(topicKey models.TopicKey) (bool, error) {
	if r.cursor.card == 0 {
		return false, apperrors.NewInvalidStateError("toggle card topic", "no flashcard is selected")
	}
	card, topic, err := r.pair(r.cursor.card, topicKey)
	if err != nil {
		return false, err
	}
	if unlink(card, topic) {
		return false, nil
	}
	link(card, topic)
	return true, nil
}
