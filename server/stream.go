package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"project_plan_chat/generator"
	"project_plan_chat/plan"
	"project_plan_chat/store"
)

// streamRegistry tracks the in-flight generation of each chat so it can be
// cancelled from another request. A chat has at most one.
type streamRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newStreamRegistry() *streamRegistry {
	return &streamRegistry{cancels: make(map[string]context.CancelFunc)}
}

func (s *streamRegistry) start(chatID string, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.cancels[chatID]; busy {
		return false
	}
	s.cancels[chatID] = cancel
	return true
}

func (s *streamRegistry) finish(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, chatID)
}

func (s *streamRegistry) cancel(chatID string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[chatID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s sseWriter) send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *Server) handleMessageStream(w http.ResponseWriter, r *http.Request, userID string) {
	chat, ok := s.ownedChat(w, r, userID)
	if !ok {
		return
	}
	msg, ok := readMessage(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	ctx, cancel := s.generationContext(r.Context())
	defer cancel()
	if !s.streams.start(chat.ID, cancel) {
		writeError(w, http.StatusConflict, "A response is already being generated for this chat")
		return
	}
	defer s.streams.finish(chat.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	sse := sseWriter{w: w, flusher: flusher}

	start := time.Now()
	s.log.Info("stream requested", "chat_id", chat.ID, "model", chat.Model, "messages", len(chat.Messages))
	plans := plan.NewExtractor()
	onToken := func(delta string) {
		if err := sse.send("token", map[string]string{"token": delta}); err != nil {
			s.log.Debug("sse write failed", "chat_id", chat.ID, "error", err)
			cancel()
			return
		}
		for _, seg := range plans.Append(delta) {
			if seg.Kind == plan.SegmentPlan {
				_ = sse.send("plan", map[string]*plan.ProjectPlan{"plan": seg.Plan})
			}
		}
	}

	reply, err := generator.NewSession(chat, s.agent).Send(ctx, msg, onToken)
	if err != nil {
		s.log.Warn("stream failed", "chat_id", chat.ID, "model", chat.Model, "error", err)
		if r.Context().Err() == nil {
			_ = sse.send("error", errorBody(err))
		}
		return
	}
	// A finished reply is kept even if the client has gone away meanwhile.
	saved, err := s.recordTurn(context.WithoutCancel(r.Context()), chat.ID, msg, reply)
	if err != nil {
		s.log.Error("save chat failed", "chat_id", chat.ID, "error", err)
		_ = sse.send("error", errorResp{Error: "Failed to update chat", Details: err.Error()})
		return
	}
	s.log.Info("stream saved",
		"chat_id", chat.ID,
		"model", reply.Model,
		"tokens", reply.Tokens,
		"response_length", len(reply.Text),
		"outcome", reply.Outcome,
		"elapsed", time.Since(start),
	)
	_ = sse.send("done", map[string]*store.Chat{"chat": saved})
}

func (s *Server) handleStreamCancel(w http.ResponseWriter, r *http.Request, userID string) {
	chat, ok := s.ownedChat(w, r, userID)
	if !ok {
		return
	}
	if !s.streams.cancel(chat.ID) {
		writeError(w, http.StatusNotFound, "No active stream")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type modelsResp struct {
	Models             []string              `json:"models"`
	ModelsWithProvider []generator.ModelInfo `json:"modelsWithProvider"`
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	infos := s.agent.Router().Models()
	resp := modelsResp{Models: make([]string, 0, len(infos)), ModelsWithProvider: infos}
	if resp.ModelsWithProvider == nil {
		resp.ModelsWithProvider = []generator.ModelInfo{}
	}
	for _, m := range infos {
		resp.Models = append(resp.Models, m.Name)
	}
	writeJSON(w, http.StatusOK, resp)
}

type generatePlanReq struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	UserPrompt string `json:"userPrompt"`
}

type generatePlanResp struct {
	ID        string             `json:"id"`
	Provider  generator.Provider `json:"provider"`
	Model     string             `json:"model"`
	CreatedAt time.Time          `json:"createdAt"`
	Plan      json.RawMessage    `json:"plan"`
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req generatePlanReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Provider) == "" || strings.TrimSpace(req.UserPrompt) == "" {
		writeError(w, http.StatusBadRequest, "Missing provider or userPrompt")
		return
	}
	provider, err := generator.ParseProvider(req.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := s.generationContext(r.Context())
	defer cancel()
	raw, model, err := s.agent.GeneratePlan(ctx, provider, strings.TrimSpace(req.Model), req.UserPrompt)
	if err != nil {
		s.log.Error("generate project plan failed", "provider", provider, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, generatePlanResp{
		ID:        newPlanID(),
		Provider:  provider,
		Model:     model,
		CreatedAt: time.Now().UTC(),
		Plan:      raw,
	})
}
