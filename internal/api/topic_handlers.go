package api

import (
	"net/http"

	"github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/services"
)

type createTopicRequest struct {
	Content string `json:"content"`
	Tag     string `json:"tag"`
}

type updateTopicRequest struct {
	Content *string `json:"content"`
	Tag     *string `json:"tag"`
	Enabled *bool   `json:"enabled"`
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	topics := s.Study.ListTopics(r.Context())
	writeJSON(w, r, http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	key, err := urlKey(r, "key")
	if err != nil {
		handleError(w, r, err)
		return
	}
	topic, err := s.Study.GetTopic(r.Context(), models.TopicKey(key))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, topic)
}

func (s *Server) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	var req createTopicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	tag, err := models.ParseTopicTag(req.Tag)
	if err != nil {
		handleError(w, r, errors.NewValidationError("tag", err.Error()))
		return
	}
	topic, err := s.Study.CreateTopic(r.Context(), req.Content, tag)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, topic)
}

func (s *Server) handleUpdateTopic(w http.ResponseWriter, r *http.Request) {
	key, err := urlKey(r, "key")
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req updateTopicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	update := services.TopicUpdate{Content: req.Content, Enabled: req.Enabled}
	if req.Tag != nil {
		tag, err := models.ParseTopicTag(*req.Tag)
		if err != nil {
			handleError(w, r, errors.NewValidationError("tag", err.Error()))
			return
		}
		update.Tag = &tag
	}
	topic, err := s.Study.UpdateTopic(r.Context(), models.TopicKey(key), update)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, topic)
}

func (s *Server) handleToggleTopic(w http.ResponseWriter, r *http.Request) {
	key, err := urlKey(r, "key")
	if err != nil {
		handleError(w, r, err)
		return
	}
	enabled, err := s.Study.ToggleTopic(r.Context(), models.TopicKey(key))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"key": key, "enabled": enabled})
}

func (s *Server) handleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	key, err := urlKey(r, "key")
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.Study.DeleteTopic(r.Context(), models.TopicKey(key)); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTopicsByContent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	content := r.URL.Query().Get("content")
	if content == "" {
		log.Warn("delete topics without content parameter")
		handleError(w, r, errors.NewBadRequestError("content parameter required"))
		return
	}
	n, err := s.Study.DeleteTopicsByContent(r.Context(), content)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"deleted": n})
}
