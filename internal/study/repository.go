// Package study owns topics, flashcards and the links between them.
//
// Topics and flashcards refer to each other only through keys into the
// repository. Keys come from per-collection counters and are never reused,
// so a key held after a deletion can dangle but never aliases a new entity.
//
// A Repository is not safe for concurrent use; callers serialize access.
package study

import (
	"iter"
	"slices"

	apperrors "github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
)

type Repository struct {
	topics     map[models.TopicKey]*models.Topic
	topicOrder []models.TopicKey
	cards      map[models.FlashcardKey]*models.Flashcard
	cardOrder  []models.FlashcardKey

	nextTopic models.TopicKey
	nextCard  models.FlashcardKey

	cursor cursor
	log    *logger.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *logger.Logger) Option {
	return func(r *Repository) {
		r.log = l
	}
}

// New returns an empty repository.
func New(opts ...Option) *Repository {
	r := &Repository{
		topics:    map[models.TopicKey]*models.Topic{},
		cards:     map[models.FlashcardKey]*models.Flashcard{},
		nextTopic: 1,
		nextCard:  1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Default()
	}
	r.log = r.log.WithPrefix("study")
	return r
}

// CreateTopic inserts a disabled topic with no flashcards. Content is not
// required to be unique.
func (r *Repository) CreateTopic(content string, tag models.TopicTag) models.TopicKey {
	key := r.nextTopic
	r.nextTopic++
	r.topics[key] = &models.Topic{Key: key, Content: content, Tag: tag}
	r.topicOrder = append(r.topicOrder, key)
	r.log.Debug("topic created: key=%d, content=%q, tag=%s", key, content, tag)
	return key
}

// CreateFlashcard inserts a flashcard and links it to every topic whose
// content matches one of topicNames, ignoring case and surrounding space.
// Names that match nothing are ignored.
func (r *Repository) CreateFlashcard(question, answer string, topicNames []string) models.FlashcardKey {
	return r.CreateFlashcardWithNumber(question, answer, 0, topicNames)
}

// CreateFlashcardWithNumber is CreateFlashcard with a caller-assigned number.
func (r *Repository) CreateFlashcardWithNumber(question, answer string, number uint32, topicNames []string) models.FlashcardKey {
	key := r.nextCard
	r.nextCard++
	card := &models.Flashcard{Key: key, Question: question, Answer: answer, Number: number}
	r.cards[key] = card
	r.cardOrder = append(r.cardOrder, key)

	linked := r.linkNames(card, topicNames)
	r.log.Debug("flashcard created: key=%d, number=%d, linked_topics=%d", key, number, linked)
	return key
}

// EditFlashcardField replaces the question or answer of a flashcard.
func (r *Repository) EditFlashcardField(key models.FlashcardKey, field models.Field, value string) error {
	card, ok := r.cards[key]
	if !ok {
		return apperrors.NewNotFoundError("flashcard", key)
	}
	switch field {
	case models.FieldQuestion:
		card.Question = value
	case models.FieldAnswer:
		card.Answer = value
	default:
		return apperrors.NewValidationError("field", "must be question or answer")
	}
	r.log.Debug("flashcard edited: key=%d, field=%s", key, field)
	return nil
}

// SetFlashcardNumber replaces the caller-assigned number of a flashcard.
func (r *Repository) SetFlashcardNumber(key models.FlashcardKey, number uint32) error {
	card, ok := r.cards[key]
	if !ok {
		return apperrors.NewNotFoundError("flashcard", key)
	}
	card.Number = number
	return nil
}

// AddTopicToFlashcard links a flashcard and a topic on both sides. Linking an
// already linked pair changes nothing.
func (r *Repository) AddTopicToFlashcard(cardKey models.FlashcardKey, topicKey models.TopicKey) error {
	card, topic, err := r.pair(cardKey, topicKey)
	if err != nil {
		return err
	}
	if link(card, topic) {
		r.log.Debug("linked flashcard %d to topic %d", cardKey, topicKey)
	}
	return nil
}

// RemoveTopicFromFlashcard unlinks a flashcard and a topic on both sides.
func (r *Repository) RemoveTopicFromFlashcard(cardKey models.FlashcardKey, topicKey models.TopicKey) error {
	card, topic, err := r.pair(cardKey, topicKey)
	if err != nil {
		return err
	}
	if unlink(card, topic) {
		r.log.Debug("unlinked flashcard %d from topic %d", cardKey, topicKey)
	}
	return nil
}

// LinkByNames links a flashcard to every topic matching one of names and
// returns how many new links were made.
func (r *Repository) LinkByNames(cardKey models.FlashcardKey, names []string) (int, error) {
	card, ok := r.cards[cardKey]
	if !ok {
		return 0, apperrors.NewNotFoundError("flashcard", cardKey)
	}
	return r.linkNames(card, names), nil
}

// UnlinkByName removes every link between a flashcard and the topics whose
// content matches name, returning how many links were removed.
func (r *Repository) UnlinkByName(cardKey models.FlashcardKey, name string) (int, error) {
	card, ok := r.cards[cardKey]
	if !ok {
		return 0, apperrors.NewNotFoundError("flashcard", cardKey)
	}
	want := models.NormalizeContent(name)
	removed := 0
	for _, tk := range slices.Clone(card.TopicRefs) {
		topic, ok := r.topics[tk]
		if !ok || models.NormalizeContent(topic.Content) != want {
			continue
		}
		if unlink(card, topic) {
			removed++
		}
	}
	return removed, nil
}

// DeleteTopicByContent removes every topic whose content matches, ignoring
// case and surrounding space, and returns how many were removed.
//
// Flashcards keep their references to deleted topics. Those keys never
// resolve again; see PruneDanglingRefs.
func (r *Repository) DeleteTopicByContent(content string) int {
	want := models.NormalizeContent(content)
	removed := 0
	for _, key := range slices.Clone(r.topicOrder) {
		if models.NormalizeContent(r.topics[key].Content) == want {
			r.removeTopic(key)
			removed++
		}
	}
	r.log.Debug("deleted %d topics matching %q", removed, want)
	return removed
}

// DeleteTopic removes one topic by key. Like DeleteTopicByContent it leaves
// flashcard references in place.
func (r *Repository) DeleteTopic(key models.TopicKey) error {
	if _, ok := r.topics[key]; !ok {
		return apperrors.NewNotFoundError("topic", key)
	}
	r.removeTopic(key)
	r.log.Debug("topic deleted: key=%d", key)
	return nil
}

// PruneDanglingRefs drops flashcard references to topics that no longer
// exist and returns how many were dropped.
func (r *Repository) PruneDanglingRefs() int {
	pruned := 0
	for _, ck := range r.cardOrder {
		card := r.cards[ck]
		before := len(card.TopicRefs)
		card.TopicRefs = slices.DeleteFunc(card.TopicRefs, func(tk models.TopicKey) bool {
			_, ok := r.topics[tk]
			return !ok
		})
		pruned += before - len(card.TopicRefs)
	}
	return pruned
}

// RenameTopic replaces a topic's content.
func (r *Repository) RenameTopic(key models.TopicKey, content string) error {
	topic, ok := r.topics[key]
	if !ok {
		return apperrors.NewNotFoundError("topic", key)
	}
	topic.Content = content
	return nil
}

// SetTopicTag replaces a topic's tag.
func (r *Repository) SetTopicTag(key models.TopicKey, tag models.TopicTag) error {
	if !tag.Valid() {
		return apperrors.NewValidationError("tag", "unknown topic tag")
	}
	topic, ok := r.topics[key]
	if !ok {
		return apperrors.NewNotFoundError("topic", key)
	}
	topic.Tag = tag
	return nil
}

// ToggleTopicEnabled flips a topic's enabled flag and returns the new value.
func (r *Repository) ToggleTopicEnabled(key models.TopicKey) (bool, error) {
	topic, ok := r.topics[key]
	if !ok {
		return false, apperrors.NewNotFoundError("topic", key)
	}
	topic.Enabled = !topic.Enabled
	r.log.Debug("topic %d enabled=%t", key, topic.Enabled)
	return topic.Enabled, nil
}

// SetTopicEnabled sets a topic's enabled flag.
func (r *Repository) SetTopicEnabled(key models.TopicKey, enabled bool) error {
	topic, ok := r.topics[key]
	if !ok {
		return apperrors.NewNotFoundError("topic", key)
	}
	topic.Enabled = enabled
	return nil
}

// GetTopic returns a copy of a topic.
func (r *Repository) GetTopic(key models.TopicKey) (models.Topic, error) {
	topic, ok := r.topics[key]
	if !ok {
		return models.Topic{}, apperrors.NewNotFoundError("topic", key)
	}
	return topic.Clone(), nil
}

// GetFlashcard returns a copy of a flashcard.
func (r *Repository) GetFlashcard(key models.FlashcardKey) (models.Flashcard, error) {
	card, ok := r.cards[key]
	if !ok {
		return models.Flashcard{}, apperrors.NewNotFoundError("flashcard", key)
	}
	return card.Clone(), nil
}

// ListTopics yields copies of all topics in insertion order. The sequence
// reads the live repository each time it is ranged over.
func (r *Repository) ListTopics() iter.Seq2[models.TopicKey, models.Topic] {
	return func(yield func(models.TopicKey, models.Topic) bool) {
		for _, key := range r.topicOrder {
			if !yield(key, r.topics[key].Clone()) {
				return
			}
		}
	}
}

// ListFlashcards yields copies of all flashcards in insertion order.
func (r *Repository) ListFlashcards() iter.Seq2[models.FlashcardKey, models.Flashcard] {
	return func(yield func(models.FlashcardKey, models.Flashcard) bool) {
		for _, key := range r.cardOrder {
			if !yield(key, r.cards[key].Clone()) {
				return
			}
		}
	}
}

// FindTopicsByContent returns the keys of topics matching name, in insertion order.
func (r *Repository) FindTopicsByContent(name string) []models.TopicKey {
	want := models.NormalizeContent(name)
	var keys []models.TopicKey
	for _, key := range r.topicOrder {
		if models.NormalizeContent(r.topics[key].Content) == want {
			keys = append(keys, key)
		}
	}
	return keys
}

func (r *Repository) TopicCount() int     { return len(r.topicOrder) }
func (r *Repository) FlashcardCount() int { return len(r.cardOrder) }

func (r *Repository) pair(cardKey models.FlashcardKey, topicKey models.TopicKey) (*models.Flashcard, *models.Topic, error) {
	card, ok := r.cards[cardKey]
	if !ok {
		return nil, nil, apperrors.NewNotFoundError("flashcard", cardKey)
	}
	topic, ok := r.topics[topicKey]
	if !ok {
		return nil, nil, apperrors.NewNotFoundError("topic", topicKey)
	}
	return card, topic, nil
}

func (r *Repository) linkNames(card *models.Flashcard, names []string) int {
	linked := 0
	for _, name := range names {
		want := models.NormalizeContent(name)
		for _, tk := range r.topicOrder {
			topic := r.topics[tk]
			if models.NormalizeContent(topic.Content) == want && link(card, topic) {
				linked++
			}
		}
	}
	return linked
}

func (r *Repository) removeTopic(key models.TopicKey) {
	delete(r.topics, key)
	r.topicOrder = slices.DeleteFunc(r.topicOrder, func(k models.TopicKey) bool { return k == key })
	if r.cursor.topic == key {
		r.cursor.topic = 0
	}
	r.UnpickTopic(key)
}

// link and unlink are the only places that touch either side of the
// association, so both sides always change together.

func link(card *models.Flashcard, topic *models.Topic) bool {
	if slices.Contains(card.TopicRefs, topic.Key) {
		return false
	}
	card.TopicRefs = append(card.TopicRefs, topic.Key)
	topic.QuestionRefs = append(topic.QuestionRefs, card.Key)
	return true
}

func unlink(card *models.Flashcard, topic *models.Topic) bool {
	idx := slices.Index(card.TopicRefs, topic.Key)
	if idx < 0 {
		return false
	}
	card.TopicRefs = slices.Delete(card.TopicRefs, idx, idx+1)
	topic.QuestionRefs = slices.DeleteFunc(topic.QuestionRefs, func(k models.FlashcardKey) bool { return k == card.Key })
	return true
}
