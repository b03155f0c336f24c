// Package server exposes chats and plan generation over HTTP and SSE.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"project_plan_chat/generator"
	"project_plan_chat/store"
)

// UserHeader carries the caller's identity, set by the auth layer in front
// of this service.
const UserHeader = "X-User-Id"

const maxBodyBytes = 1 << 20

type Server struct {
	agent   *generator.Agent
	store   store.Store
	streams *streamRegistry
	log     *slog.Logger
	timeout time.Duration
}

// Options configures New. Zero values pick defaults.
type Options struct {
	Logger *slog.Logger
	// RequestTimeout bounds each generation; zero means no limit.
	RequestTimeout time.Duration
}

func New(agent *generator.Agent, st store.Store, opts Options) (*Server, error) {
	if agent == nil {
		return nil, errors.New("generator agent required")
	}
	if st == nil {
		return nil, errors.New("chat store required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{
		agent:   agent,
		store:   st,
		streams: newStreamRegistry(),
		log:     log,
		timeout: opts.RequestTimeout,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/chats", s.withUser(s.handleChatCreate))
	mux.HandleFunc("GET /api/chats", s.withUser(s.handleChatList))
	mux.HandleFunc("DELETE /api/chats/clear", s.withUser(s.handleChatClear))
	mux.HandleFunc("GET /api/chats/{id}", s.withUser(s.handleChatGet))
	mux.HandleFunc("PATCH /api/chats/{id}", s.withUser(s.handleChatUpdate))
	mux.HandleFunc("DELETE /api/chats/{id}", s.withUser(s.handleChatDelete))
	mux.HandleFunc("GET /api/chats/{id}/export", s.withUser(s.handleChatExport))
	mux.HandleFunc("POST /api/chats/{id}/message", s.withUser(s.handleMessage))
	mux.HandleFunc("POST /api/chats/{id}/message/stream", s.withUser(s.handleMessageStream))
	mux.HandleFunc("DELETE /api/chats/{id}/message/stream", s.withUser(s.handleStreamCancel))

	mux.HandleFunc("GET /api/llm/models", s.handleModels)
	mux.HandleFunc("POST /api/generate/project-plan", s.handleGeneratePlan)
	return s.logMiddleware(mux)
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r, userID)
	}
}

// ownedChat loads the chat named in the path and checks it belongs to
// userID. On failure it has already written the response.
func (s *Server) ownedChat(w http.ResponseWriter, r *http.Request, userID string) (*store.Chat, bool) {
	chat, err := s.store.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Chat not found")
		return nil, false
	case err != nil:
		s.log.Error("load chat failed", "chat_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load chat")
		return nil, false
	case chat.UserID != userID:
		writeError(w, http.StatusForbidden, "Forbidden")
		return nil, false
	}
	return chat, true
}

// generationContext derives the context for one model call.
func (s *Server) generationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// --- Helpers ---

func newPlanID() string {
	return "plan_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
