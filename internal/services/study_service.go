package services

import (
	"context"

	apperrors "github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/study"
)

// TopicUpdate carries the optional fields of a topic patch.
type TopicUpdate struct {
	Content *string
	Tag     *models.TopicTag
	Enabled *bool
}

// NewFlashcard describes a card to create. Topics are matched by name.
type NewFlashcard struct {
	Question string
	Answer   string
	Number   *uint32
	Topics   []string
}

// FlashcardUpdate carries the optional fields of a flashcard patch.
type FlashcardUpdate struct {
	Question *string
	Answer   *string
	Number   *uint32
}

// StudyService handles topic and flashcard management
type StudyService interface {
	ListTopics(ctx context.Context) []models.Topic
	GetTopic(ctx context.Context, key models.TopicKey) (*models.Topic, error)
	CreateTopic(ctx context.Context, content string, tag models.TopicTag) (*models.Topic, error)
	UpdateTopic(ctx context.Context, key models.TopicKey, update TopicUpdate) (*models.Topic, error)
	ToggleTopic(ctx context.Context, key models.TopicKey) (bool, error)
	DeleteTopic(ctx context.Context, key models.TopicKey) error
	DeleteTopicsByContent(ctx context.Context, content string) (int, error)
	PruneDanglingRefs(ctx context.Context) int

	ListFlashcards(ctx context.Context) []models.Flashcard
	GetFlashcard(ctx context.Context, key models.FlashcardKey) (*models.Flashcard, error)
	CreateFlashcard(ctx context.Context, card NewFlashcard) (*models.Flashcard, error)
	UpdateFlashcard(ctx context.Context, key models.FlashcardKey, update FlashcardUpdate) (*models.Flashcard, error)
	LinkTopic(ctx context.Context, cardKey models.FlashcardKey, topicKey models.TopicKey) error
	UnlinkTopic(ctx context.Context, cardKey models.FlashcardKey, topicKey models.TopicKey) error

	Counts(ctx context.Context) (topics, flashcards int)
}

type studyService struct {
	store *Store
}

// NewStudyService creates a new StudyService
func NewStudyService(store *Store) StudyService {
	return &studyService{store: store}
}

func (s *studyService) ListTopics(ctx context.Context) []models.Topic {
	var out []models.Topic
	s.store.read(func(repo *study.Repository) {
		out = make([]models.Topic, 0, repo.TopicCount())
		for _, t := range repo.ListTopics() {
			out = append(out, *withQuestionRefs(&t))
		}
	})
	return out
}

func (s *studyService) GetTopic(ctx context.Context, key models.TopicKey) (*models.Topic, error) {
	var (
		topic models.Topic
		err   error
	)
	s.store.read(func(repo *study.Repository) {
		topic, err = repo.GetTopic(key)
	})
	if err != nil {
		return nil, err
	}
	return withQuestionRefs(&topic), nil
}

func (s *studyService) CreateTopic(ctx context.Context, content string, tag models.TopicTag) (*models.Topic, error) {
	log := logger.FromContext(ctx)

	content, err := CleanText("content", content)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, apperrors.NewValidationError("content", "must not be empty")
	}
	if !tag.Valid() {
		return nil, apperrors.NewValidationError("tag", "unknown tag")
	}

	var topic models.Topic
	err = s.store.mutate(ctx, func(repo *study.Repository) (bool, error) {
		key := repo.CreateTopic(content, tag)
		var err error
		topic, err = repo.GetTopic(key)
		return true, err
	})
	if err != nil {
		return nil, err
	}
	log.Info("topic created: key=%d, content=%q, tag=%s", topic.Key, topic.Content, topic.Tag)
	return withQuestionRefs(&topic), nil
}

func (s *studyService) UpdateTopic(ctx context.Context, key models.TopicKey, update TopicUpdate) (*models.Topic, error) {
	log := logger.FromContext(ctx)

	var content string
	if update.Content != nil {
		var err error
		if content, err = CleanText("content", *update.Content); err != nil {
			return nil, err
		}
		if content == "" {
			return nil, apperrors.NewValidationError("content", "must not be empty")
		}
	}
	if update.Tag != nil && !update.Tag.Valid() {
		return nil, apperrors.NewValidationError("tag", "unknown tag")
	}

	var topic models.Topic
	err := s.store.mutate(ctx, func(repo *study.Repository) (bool, error) {
		if _, err := repo.GetTopic(key); err != nil {
			return false, err
		}
		if update.Content != nil {
			if err := repo.RenameTopic(key, content); err != nil {
				return false, err
			}
		}
		if update.Tag != nil {
			if err := repo.SetTopicTag(key, *update.Tag); err != nil {
				return false, err
			}
		}
		if update.Enabled != nil {
			if err := repo.SetTopicEnabled(key, *update.Enabled); err != nil {
				return false, err
			}
		}
		var err error
		topic, err = repo.GetTopic(key)
		return true, err
	})
	if err != nil {
		return nil, err
	}
	log.Debug("topic updated: key=%d", key)
	return withQuestionRefs(&topic), nil
}

// ToggleTopic flips a topic's enabled flag. Runs already started keep their
// queue; the change shows up on the next start or restart.
func (s *studyService) ToggleTopic(ctx context.Context, key models.TopicKey) (bool, error) {
	var enabled bool
	err := s.store.mutate(ctx, func(repo *study.Repository) (bool, error) {
		var err error
		enabled, err = s.store.engine.ToggleTopicForRun(repo, key)
		return err == nil, err
	})
	if err != nil {
		return false, err
	}
	logger.FromContext(ctx).Info("topic toggled: key=%d, enabled=%t", key, enabled)
	return enabled, nil
}

func (s *studyService) DeleteTopic(ctx context.Context, key models.TopicKey) error {
	err := s.store.mutate(ctx, func(repo *study.Repository) (bool, error) {
		return true, repo.DeleteTopic(key)
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("topic deleted: key=%d", key)
	return nil
}

func (s *studyService) DeleteTopicsByContent(ctx context.Context, content string) (int, error) {
	content, err := CleanText("content", content)
	if err != nil {
		return 0, err
	}
	if content == "" {
		return 0, apperrors.NewValidationError("content", "must not be empty")
	}
	var n int
	s.store.mutate(ctx, func(repo *study.Repository) (bool, error) {
		n = repo.DeleteTopicByContent(content)
		return n > 0, nil
	})
	logger.FromContext(ctx).Info("topics deleted by content: content=%q, count=%d", content, n)
	return n, nil
}

func (s *studyService) PruneDanglingRefs(ctx context.Context) int {
	var n int
	s.store.mutate(ctx, func(repo *study.Repository) (bool, error) {
		n = repo.PruneDanglingRefs()
		return n > 0, nil
	})
	if n > 0 {
		logger.FromContext(ctx).Info("pruned %d dangling topic references", n)
	}
	return n
}

func (s *studyService) ListFlashcards(ctx context.Context) []models.Flashcard {
	var out []models.Flashcard
	s.store.read(func(repo *study.Repository) {
		out = make([]models.Flashcard, 0, repo.FlashcardCount())
		for _, c := range repo.ListFlashcards() {
			out = append(out, *withTopicRefs(&c))
		}
	})
	return out
}

func (s *studyService) GetFlashcard(ctx context.Context, key models.FlashcardKey) (*models.Flashcard, error) {
	var (
		card models.Flashcard
		err  error
	)
	s.store.read(func(repo *study.Repository) {
		card, err = repo.GetFlashcard(key)
	})
	if err != nil {
		return nil, err
	}
	return withTopicRefs(&card), nil
}

func (s *studyService) CreateFlashcard(ctx context.Context, in NewFlashcard) (*models.Flashcard, error) {
	log := logger.FromContext(ctx)

	question, err := CleanText("question", in.Question)
	if err != nil {
		return nil, err
	}
	answer, err := CleanText("answer", in.Answer)
	if err != nil {
		return nil, err
	}
	if question == "" {
		return nil, apperrors.NewValidationError("question", "must not be empty")
	}
	if answer == "" {
		return nil, apperrors.NewValidationError("answer", "must not be empty")
	}
	topics, err := cleanNames(in.Topics)
	if err != nil {
		return nil, err
	}

	var card models.Flashcard
	err = s.store.mutate(ctx, func(repo *study.Repository) (bool, error) {
		var key models.FlashcardKey
		if in.Number != nil {
			key = repo.CreateFlashcardWithNumber(question, answer, *in.Number, topics)
		} else {
			key = repo.CreateFlashcard(question, answer, topics)
		}
		var err error
		card, err = repo.GetFlashcard(key)
		return true, err
	})
	if err != nil {
		return nil, err
	}
	log.Info("flashcard created: key=%d, topics=%d", card.Key, len(card.TopicRefs))
	return withTopicRefs(&card), nil
}

func (s *studyService) UpdateFlashcard(ctx context.Context, key models.FlashcardKey, update FlashcardUpdate) (*models.Flashcard, error) {
	type edit struct {
		field models.Field
		value string
	}
	var edits []edit
	for _, e := range []struct {
		field models.Field
		value *string
	}{{models.FieldQuestion, update.Question}, {models.FieldAnswer, update.Answer}} {
		if e.value == nil {
			continue
		}
		v, err := CleanText(e.field.String(), *e.value)
		if err != nil {
			return nil, err
		}
		if v == "" {
			return nil, apperrors.NewValidationError(e.field.String(), "must not be empty")
		}
		edits = append(edits, edit{e.field, v})
	}

	var card models.Flashcard
	err := s.store.mutate(ctx, func(repo *study.Repository) (bool, error) {
		if _, err := repo.GetFlashcard(key); err != nil {
			return false, err
		}
		for _, e := range edits {
			if err := repo.EditFlashcardField(key, e.field, e.value); err != nil {
				return false, err
			}
		}
		if update.Number != nil {
			if err := repo.SetFlashcardNumber(key, *update.Number); err != nil {
				return false, err
			}
		}
		var err error
		card, err = repo.GetFlashcard(key)
		return true, err
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("flashcard updated: key=%d", key)
	return withTopicRefs(&card), nil
}

func (s *studyService) LinkTopic(ctx context.Context, cardKey models.FlashcardKey, topicKey models.TopicKey) error {
	return s.store.mutate(ctx, func(repo *study.Repository) (bool, error) {
		return true, repo.AddTopicToFlashcard(cardKey, topicKey)
	})
}

func (s *studyService) UnlinkTopic(ctx context.Context, cardKey models.FlashcardKey, topicKey models.TopicKey) error {
	return s.store.mutate(ctx, func(repo *study.Repository) (bool, error) {
		return true, repo.RemoveTopicFromFlashcard(cardKey, topicKey)
	})
}

func (s *studyService) Counts(ctx context.Context) (topics, flashcards int) {
	s.store.read(func(repo *study.Repository) {
		topics, flashcards = repo.TopicCount(), repo.FlashcardCount()
	})
	return topics, flashcards
}

// withQuestionRefs and withTopicRefs make an unlinked topic or card carry an empty
// reference list, so clients always see an array.
func withQuestionRefs(t *models.Topic) *models.Topic {
	if t.QuestionRefs == nil {
		t.QuestionRefs = []models.FlashcardKey{}
	}
	return t
}

func withTopicRefs(c *models.Flashcard) *models.Flashcard {
	if c.TopicRefs == nil {
		c.TopicRefs = []models.TopicKey{}
	}
	return c
}
