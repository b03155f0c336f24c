package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"project_plan_chat/generator"
	"project_plan_chat/render"
	"project_plan_chat/store"
)

type chatCreateReq struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

type messageReq struct {
	Message string `json:"message"`
}

type messageResp struct {
	Message string      `json:"message"`
	Chat    *store.Chat `json:"chat"`
}

func (s *Server) handleChatCreate(w http.ResponseWriter, r *http.Request, userID string) {
	var req chatCreateReq
	if !decodeJSON(w, r, &req) {
		return
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.agent.Router().DefaultModel()
	}
	chat := store.NewChat(userID, model, string(generator.ProviderForModel(model)))
	if name := strings.TrimSpace(req.Name); name != "" {
		chat.Apply(store.ChatPatch{Name: &name})
	}
	if err := s.store.Create(r.Context(), chat); err != nil {
		s.log.Error("create chat failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create chat")
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (s *Server) handleChatList(w http.ResponseWriter, r *http.Request, userID string) {
	chats, err := s.store.ListByUser(r.Context(), userID)
	if err != nil {
		s.log.Error("list chats failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list chats")
		return
	}
	if chats == nil {
		chats = []*store.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleChatGet(w http.ResponseWriter, r *http.Request, userID string) {
	chat, ok := s.ownedChat(w, r, userID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (s *Server) handleChatUpdate(w http.ResponseWriter, r *http.Request, userID string) {
	chat, ok := s.ownedChat(w, r, userID)
	if !ok {
		return
	}
	var patch store.ChatPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if patch.Model != nil && patch.Provider == nil {
		p := string(generator.ProviderForModel(*patch.Model))
		patch.Provider = &p
	}
	chat.Apply(patch)
	if err := s.store.Save(r.Context(), chat); err != nil {
		s.log.Error("update chat failed", "chat_id", chat.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update chat")
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (s *Server) handleChatDelete(w http.ResponseWriter, r *http.Request, userID string) {
	chat, ok := s.ownedChat(w, r, userID)
	if !ok {
		return
	}
	s.streams.cancel(chat.ID)
	if err := s.store.Delete(r.Context(), chat.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Error("delete chat failed", "chat_id", chat.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete chat")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.store.ClearUser(r.Context(), userID); err != nil {
		s.log.Error("clear chats failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to clear chats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "All chats cleared"})
}

func (s *Server) handleChatExport(w http.ResponseWriter, r *http.Request, userID string) {
	chat, ok := s.ownedChat(w, r, userID)
	if !ok {
		return
	}
	page, err := render.Chat(chat)
	if err != nil {
		s.log.Error("export chat failed", "chat_id", chat.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to export chat")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// readMessage decodes and validates a message body.
func readMessage(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req messageReq
	if !decodeJSON(w, r, &req) {
		return "", false
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return "", false
	}
	return msg, true
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request, userID string) {
	chat, ok := s.ownedChat(w, r, userID)
	if !ok {
		return
	}
	msg, ok := readMessage(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.generationContext(r.Context())
	defer cancel()
	if !s.streams.start(chat.ID, cancel) {
		writeError(w, http.StatusConflict, "A response is already being generated for this chat")
		return
	}
	defer s.streams.finish(chat.ID)

	reply, err := generator.NewSession(chat, s.agent).Send(ctx, msg, nil)
	if err != nil {
		s.log.Warn("llm response failed", "chat_id", chat.ID, "model", chat.Model, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(err))
		return
	}
	saved, err := s.recordTurn(r.Context(), chat.ID, msg, reply)
	if err != nil {
		s.log.Error("save chat failed", "chat_id", chat.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update chat")
		return
	}
	writeJSON(w, http.StatusOK, messageResp{Message: reply.Text, Chat: saved})
}

// recordTurn appends a finished exchange to the chat as it is stored now, so
// edits made while the reply was generated are kept.
func (s *Server) recordTurn(ctx context.Context, chatID, msg string, reply generator.Reply) (*store.Chat, error) {
	return s.store.Update(ctx, chatID, func(c *store.Chat) error {
		generator.AppendTurn(c, msg, reply)
		return nil
	})
}

type errorResp struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func errorBody(err error) errorResp {
	switch {
	case errors.Is(err, generator.ErrEmptyResponse):
		return errorResp{Error: "No response from LLM"}
	case errors.Is(err, context.Canceled):
		return errorResp{Error: "Stream cancelled"}
	}
	return errorResp{Error: "Failed to get LLM response", Details: err.Error()}
}
