package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cartridge/replaybuffer/internal/middleware"
	"github.com/cartridge/replaybuffer/internal/service"
	"github.com/cartridge/replaybuffer/pkg/buffer"
)

const (
	maxTransitionBody = 1 << 20
	maxBatchBody      = 32 << 20
)

// BatchRequest is the payload accepted by the batch push endpoint.
type BatchRequest struct {
	Transitions []service.Transition `json:"transitions"`
}

// Server wires HTTP handlers to the replay service.
type Server struct {
	replay *service.ReplayService
	logger zerolog.Logger
}

// NewServer constructs a Server instance.
func NewServer(replay *service.ReplayService, logger zerolog.Logger) *Server {
	return &Server{replay: replay, logger: logger}
}

// Routes builds the HTTP router for the replay service.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/transitions", s.handlePush)
		r.Post("/transitions/batch", s.handlePushBatch)
		r.Delete("/transitions", s.handleClear)
		r.Get("/sample", s.handleSample)
		r.Get("/stats", s.handleStats)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	if !s.requireJSON(w, r) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxTransitionBody)
	defer r.Body.Close()
	var payload service.Transition
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid transition payload")
		return
	}
	stats, err := s.replay.Push(r.Context(), payload)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, stats)
}

func (s *Server) handlePushBatch(w http.ResponseWriter, r *http.Request) {
	if !s.requireJSON(w, r) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBatchBody)
	defer r.Body.Close()
	var payload BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid batch payload")
		return
	}
	stats, err := s.replay.PushBatch(r.Context(), payload.Transitions)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, stats)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("batch_size")
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "batch_size is required")
		return
	}
	batchSize, err := strconv.Atoi(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "batch_size must be an integer")
		return
	}
	result, err := s.replay.Sample(r.Context(), batchSize)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.replay.Stats(r.Context()))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	result, err := s.replay.Clear(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) requireJSON(w http.ResponseWriter, r *http.Request) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		s.writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return false
	}
	return true
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, buffer.ErrInsufficientSamples):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, buffer.ErrInvalidBatchSize):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
