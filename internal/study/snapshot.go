package study

import (
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	apperrors "github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/models"
)

// Snapshot is a detached copy of a repository, including the key counters,
// so a restored repository never hands out a key that was used before.
// Revision is stamped by the owner of the repository; it grows with every
// change and lets storage tell a newer snapshot from an older one.
type Snapshot struct {
	Revision         uint64              `json:"revision,omitempty" yaml:"revision,omitempty"`
	NextTopicKey     models.TopicKey     `json:"next_topic_key" yaml:"next_topic_key"`
	NextFlashcardKey models.FlashcardKey `json:"next_flashcard_key" yaml:"next_flashcard_key"`
	StagingTopic     string              `json:"staging_topic,omitempty" yaml:"staging_topic,omitempty"`
	Topics           []models.Topic      `json:"topics" yaml:"topics"`
	Flashcards       []models.Flashcard  `json:"flashcards" yaml:"flashcards"`
}

// Snapshot copies the repository state. Selection is not captured.
func (r *Repository) Snapshot() Snapshot {
	s := Snapshot{
		NextTopicKey:     r.nextTopic,
		NextFlashcardKey: r.nextCard,
		StagingTopic:     r.cursor.staging,
		Topics:           make([]models.Topic, 0, len(r.topicOrder)),
		Flashcards:       make([]models.Flashcard, 0, len(r.cardOrder)),
	}
	for _, t := range r.ListTopics() {
		s.Topics = append(s.Topics, t)
	}
	for _, c := range r.ListFlashcards() {
		s.Flashcards = append(s.Flashcards, c)
	}
	return s
}

// Restore builds a repository from a snapshot. The snapshot must be
// internally consistent: unique keys below the counters, no duplicate
// references, and every link present on both sides. Flashcards may refer to
// deleted topics.
func Restore(s Snapshot, opts ...Option) (*Repository, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	r := New(opts...)
	r.nextTopic = s.NextTopicKey
	r.nextCard = s.NextFlashcardKey
	r.cursor.staging = s.StagingTopic
	for _, t := range s.Topics {
		t := t.Clone()
		r.topics[t.Key] = &t
		r.topicOrder = append(r.topicOrder, t.Key)
	}
	for _, c := range s.Flashcards {
		c := c.Clone()
		r.cards[c.Key] = &c
		r.cardOrder = append(r.cardOrder, c.Key)
	}
	r.log.Debug("restored %d topics and %d flashcards", len(r.topicOrder), len(r.cardOrder))
	return r, nil
}

// Validate checks the consistency rules Restore relies on.
func (s Snapshot) Validate() error {
	if s.NextTopicKey == 0 || s.NextFlashcardKey == 0 {
		return invalidSnapshot("key counters must start at 1")
	}
	topics := make(map[models.TopicKey]models.Topic, len(s.Topics))
	for _, t := range s.Topics {
		if t.Key == 0 || t.Key >= s.NextTopicKey {
			return invalidSnapshot("topic key %d outside allocated range", t.Key)
		}
		if _, dup := topics[t.Key]; dup {
			return invalidSnapshot("duplicate topic key %d", t.Key)
		}
		if !t.Tag.Valid() {
			return invalidSnapshot("topic %d has unknown tag", t.Key)
		}
		if hasDuplicates(t.QuestionRefs) {
			return invalidSnapshot("topic %d lists a flashcard twice", t.Key)
		}
		topics[t.Key] = t
	}
	cards := make(map[models.FlashcardKey]models.Flashcard, len(s.Flashcards))
	for _, c := range s.Flashcards {
		if c.Key == 0 || c.Key >= s.NextFlashcardKey {
			return invalidSnapshot("flashcard key %d outside allocated range", c.Key)
		}
		if _, dup := cards[c.Key]; dup {
			return invalidSnapshot("duplicate flashcard key %d", c.Key)
		}
		if hasDuplicates(c.TopicRefs) {
			return invalidSnapshot("flashcard %d lists a topic twice", c.Key)
		}
		cards[c.Key] = c
	}
	for _, t := range s.Topics {
		for _, ck := range t.QuestionRefs {
			c, ok := cards[ck]
			if !ok {
				return invalidSnapshot("topic %d refers to missing flashcard %d", t.Key, ck)
			}
			if !slices.Contains(c.TopicRefs, t.Key) {
				return invalidSnapshot("topic %d lists flashcard %d but not the reverse", t.Key, ck)
			}
		}
	}
	for _, c := range s.Flashcards {
		for _, tk := range c.TopicRefs {
			if tk == 0 || tk >= s.NextTopicKey {
				return invalidSnapshot("flashcard %d refers to unallocated topic %d", c.Key, tk)
			}
			t, live := topics[tk]
			if live && !slices.Contains(t.QuestionRefs, c.Key) {
				return invalidSnapshot("flashcard %d lists topic %d but not the reverse", c.Key, tk)
			}
		}
	}
	return nil
}

// EncodeYAML writes a snapshot as a YAML document.
func EncodeYAML(w io.Writer, s Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// DecodeYAML reads a snapshot written by EncodeYAML and validates it.
func DecodeYAML(rd io.Reader) (Snapshot, error) {
	var s Snapshot
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Snapshot{}, apperrors.NewBadRequestError(fmt.Sprintf("decode snapshot: %v", err))
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func hasDuplicates[K comparable](keys []K) bool {
	seen := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			return true
		}
		seen[k] = struct{}{}
	}
	return false
}

func invalidSnapshot(format string, args ...any) error {
	return apperrors.NewValidationError("snapshot", fmt.Sprintf(format, args...))
}
