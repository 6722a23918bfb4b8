package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/logger"
)

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			handleError(w, r, errors.NewBadRequestError("invalid limit"))
			return
		}
		limit = n
	}
	infos, err := s.Snapshots.List(r.Context(), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"snapshots": infos})
}

func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := s.Snapshots.SaveNow(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.Snapshots.Export(r.Context(), &buf); err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="studyflash.yaml"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.FromContext(r.Context()).Warn("failed to write export: %v", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := s.Snapshots.Import(r.Context(), body); err != nil {
		handleError(w, r, err)
		return
	}
	topics, flashcards := s.Study.Counts(r.Context())
	writeJSON(w, r, http.StatusOK, map[string]any{"topics": topics, "flashcards": flashcards})
}
