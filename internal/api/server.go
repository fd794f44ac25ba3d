// Package api exposes the service over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kalambet/mavkus/internal/orchestrator"
	"github.com/kalambet/mavkus/internal/service"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB

	// Version is reported by the root endpoint.
	Version = "3.0.0"
)

// Service is the subset of the serving layer used by the transports.
type Service interface {
	CreateProfile(ctx context.Context, userID, email, displayName, photoURL string) (bool, error)
	SaveAPIKeys(ctx context.Context, userID string, keys service.Keys) ([]string, error)
	GetAPIKeys(ctx context.Context, userID string, reveal bool) (service.Keys, error)
	Init(ctx context.Context, userID string) (service.InitResult, error)
	ProcessTurn(ctx context.Context, userID, message string, enableCritique bool) (service.TurnResult, error)
	Conversations(ctx context.Context, userID string, limit int) ([]service.Conversation, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) error
	GetStats(ctx context.Context, userID string) (service.UserStats, error)
	ClearMemory(ctx context.Context, userID string) error
}

// Options configures the HTTP handler.
type Options struct {
	Service Service
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
	// Origins allowed by CORS. Empty disables the CORS middleware.
	Origins []string
	// Token protects /api routes when non-empty.
	Token string
}

// NewHandler returns the HTTP handler of the chat service.
func NewHandler(opts Options) http.Handler {
	r := chi.NewRouter()
	if len(opts.Origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.Origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/", handleRoot)
	r.Get("/health", handleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	h := &handlers{svc: opts.Service}
	r.Route("/api", func(r chi.Router) {
		r.Use(BearerAuth(opts.Token))

		r.Post("/auth/create-profile", h.createProfile)
		r.Post("/auth/save-keys", h.saveKeys)
		r.Get("/auth/get-keys/{user_id}", h.getKeys)
		r.Post("/init", h.initUser)
		r.Post("/chat", h.chat)
		r.Get("/conversations/{user_id}", h.conversations)
		r.Delete("/conversations/{user_id}/{conversation_id}", h.deleteConversation)
		r.Get("/stats/{user_id}", h.stats)
		r.Delete("/memory/{user_id}", h.clearMemory)
	})

	return r
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "MAVKUS AI API",
		"version":   Version,
		"status":    "operational",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "mavkus",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response failed", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

// serviceError maps a service error to its HTTP status.
func serviceError(w http.ResponseWriter, err error) {
	var cfgErr *orchestrator.ConfigurationError
	switch {
	case errors.Is(err, service.ErrInvalidMessage), errors.Is(err, service.ErrInvalidArgument):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrConversationNotFound):
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
	case errors.As(err, &cfgErr):
		httpError(w, http.StatusInternalServerError, "configuration_error", "%v", err)
	default:
		slog.Error("request failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}
