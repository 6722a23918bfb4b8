package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vytor/studyflash/internal/models"
)

type answerRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.Quiz.StartRun(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.Quiz.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	res, err := s.Quiz.Answer(r.Context(), chi.URLParam(r, "id"), req.Answer)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	run, err := s.Quiz.Advance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	run, err := s.Quiz.Restart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

func (s *Server) handleSubmitCard(w http.ResponseWriter, r *http.Request) {
	key, err := urlKey(r, "key")
	if err != nil {
		handleError(w, r, err)
		return
	}
	added, run, err := s.Quiz.SubmitCard(r.Context(), chi.URLParam(r, "id"), models.FlashcardKey(key))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"added": added, "run": run})
}

func (s *Server) handleSubmitTopic(w http.ResponseWriter, r *http.Request) {
	key, err := urlKey(r, "key")
	if err != nil {
		handleError(w, r, err)
		return
	}
	added, run, err := s.Quiz.SubmitTopic(r.Context(), chi.URLParam(r, "id"), models.TopicKey(key))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"added": added, "run": run})
}

func (s *Server) handleEndRun(w http.ResponseWriter, r *http.Request) {
	if err := s.Quiz.EndRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
