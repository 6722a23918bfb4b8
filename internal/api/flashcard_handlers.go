package api

import (
	"context"
	"net/http"

	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/services"
)

type createFlashcardRequest struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Number   *uint32  `json:"number"`
	Topics   []string `json:"topics"`
}

type updateFlashcardRequest struct {
	Question *string `json:"question"`
	Answer   *string `json:"answer"`
	Number   *uint32 `json:"number"`
}

func (s *Server) handleListFlashcards(w http.ResponseWriter, r *http.Request) {
	cards := s.Study.ListFlashcards(r.Context())
	writeJSON(w, r, http.StatusOK, map[string]any{"flashcards": cards})
}

func (s *Server) handleGetFlashcard(w http.ResponseWriter, r *http.Request) {
	key, err := urlKey(r, "key")
	if err != nil {
		handleError(w, r, err)
		return
	}
	card, err := s.Study.GetFlashcard(r.Context(), models.FlashcardKey(key))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, card)
}

func (s *Server) handleCreateFlashcard(w http.ResponseWriter, r *http.Request) {
	var req createFlashcardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	card, err := s.Study.CreateFlashcard(r.Context(), services.NewFlashcard{
		Question: req.Question,
		Answer:   req.Answer,
		Number:   req.Number,
		Topics:   req.Topics,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, card)
}

func (s *Server) handleUpdateFlashcard(w http.ResponseWriter, r *http.Request) {
	key, err := urlKey(r, "key")
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req updateFlashcardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	card, err := s.Study.UpdateFlashcard(r.Context(), models.FlashcardKey(key), services.FlashcardUpdate{
		Question: req.Question,
		Answer:   req.Answer,
		Number:   req.Number,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, card)
}

func (s *Server) handleLinkTopic(w http.ResponseWriter, r *http.Request) {
	s.handleLinkChange(w, r, s.Study.LinkTopic)
}

func (s *Server) handleUnlinkTopic(w http.ResponseWriter, r *http.Request) {
	s.handleLinkChange(w, r, s.Study.UnlinkTopic)
}

func (s *Server) handleLinkChange(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, card models.FlashcardKey, topic models.TopicKey) error) {
	cardKey, err := urlKey(r, "key")
	if err != nil {
		handleError(w, r, err)
		return
	}
	topicKey, err := urlKey(r, "topicKey")
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := change(r.Context(), models.FlashcardKey(cardKey), models.TopicKey(topicKey)); err != nil {
		handleError(w, r, err)
		return
	}
	card, err := s.Study.GetFlashcard(r.Context(), models.FlashcardKey(cardKey))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, card)
}

func (s *Server) handlePruneDanglingRefs(w http.ResponseWriter, r *http.Request) {
	n := s.Study.PruneDanglingRefs(r.Context())
	writeJSON(w, r, http.StatusOK, map[string]any{"pruned": n})
}
