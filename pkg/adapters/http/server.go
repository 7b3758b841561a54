// Package http exposes the engine over a JSON HTTP API:
//
//	POST /api/v1/chats/start
//	POST /api/v1/chats/{sessionID}/continue
//	GET  /healthz
//	GET  /metrics (when a Prometheus gatherer is attached)
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chatwalk/chatwalk/internal/logging"
	"github.com/chatwalk/chatwalk/pkg/domain"
)

// Engine is the interface the HTTP surface needs from the interpreter.
type Engine interface {
	StartChat(ctx context.Context, input *domain.StartChatInput) (*domain.StartChatResponse, error)
	ContinueChat(ctx context.Context, sessionID string, msg *domain.Message) (*domain.Reply, error)
}

// Server carries the handler dependencies.
type Server struct {
	engine Engine
	logger *slog.Logger
}

// HandlerOption configures the handler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(c *handlerConfig) { c.logger = l }
}

// WithMetricsEndpoint mounts /metrics for the given gatherer.
func WithMetricsEndpoint(g prometheus.Gatherer) HandlerOption {
	return func(c *handlerConfig) { c.gatherer = g }
}

// NewHandler builds the chi router around an engine.
func NewHandler(engine Engine, opts ...HandlerOption) http.Handler {
	cfg := &handlerConfig{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}
	s := &Server{engine: engine, logger: cfg.logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/chats", func(r chi.Router) {
		r.Post("/start", s.startChat)
		r.Post("/{sessionID}/continue", s.continueChat)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) startChat(w http.ResponseWriter, r *http.Request) {
	var input domain.StartChatInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.engine.StartChat(r.Context(), &input)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// continueChatRequest accepts both the object form and a bare string,
// which is shorthand for a text message.
type continueChatRequest struct {
	Message *domain.Message `json:"message,omitempty"`
}

func (s *Server) continueChat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var msg *domain.Message
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		msg = domain.TextMessage(asString)
	} else {
		var req continueChatRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		msg = req.Message
	}

	reply, err := s.engine.ContinueChat(r.Context(), sessionID, msg)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reply)
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrSessionTerminated):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrVersionConflict):
		// The caller should retry the whole turn.
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("turn failed", "path", r.URL.Path, "err", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
