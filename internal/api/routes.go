package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(s.corsMiddleware())

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/topics", func(r chi.Router) {
		r.Get("/", s.handleListTopics)
		r.Post("/", s.handleCreateTopic)
		r.Delete("/", s.handleDeleteTopicsByContent)
		r.Get("/{key}", s.handleGetTopic)
		r.Patch("/{key}", s.handleUpdateTopic)
		r.Delete("/{key}", s.handleDeleteTopic)
		r.Post("/{key}/toggle", s.handleToggleTopic)
	})

	r.Route("/flashcards", func(r chi.Router) {
		r.Get("/", s.handleListFlashcards)
		r.Post("/", s.handleCreateFlashcard)
		r.Post("/prune", s.handlePruneDanglingRefs)
		r.Get("/{key}", s.handleGetFlashcard)
		r.Patch("/{key}", s.handleUpdateFlashcard)
		r.Post("/{key}/topics/{topicKey}", s.handleLinkTopic)
		r.Delete("/{key}/topics/{topicKey}", s.handleUnlinkTopic)
	})

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", s.handleStartRun)
		r.Get("/{id}", s.handleGetRun)
		r.Delete("/{id}", s.handleEndRun)
		r.Post("/{id}/answer", s.handleAnswer)
		r.Post("/{id}/advance", s.handleAdvance)
		r.Post("/{id}/restart", s.handleRestart)
		r.Post("/{id}/cards/{key}", s.handleSubmitCard)
		r.Post("/{id}/topics/{key}", s.handleSubmitTopic)
	})

	r.Route("/snapshots", func(r chi.Router) {
		r.Get("/", s.handleListSnapshots)
		r.Post("/", s.handleSaveSnapshot)
		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
	})
	return r
}

func (s *Server) corsMiddleware() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept", "Origin", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         86400,
	}).Handler
}
