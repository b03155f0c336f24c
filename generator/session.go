package generator

import (
	"context"

	"project_plan_chat/store"
)

// Session runs turns of one stored chat.
type Session struct {
	Chat  *store.Chat
	agent *Agent
}

func NewSession(chat *store.Chat, agent *Agent) *Session {
	return &Session{Chat: chat, agent: agent}
}

// Send generates the reply to content. The chat is only changed when the
// reply succeeds, so a failed or cancelled turn leaves no trace.
func (s *Session) Send(ctx context.Context, content string, onToken func(string)) (Reply, error) {
	reply, err := s.agent.Reply(ctx, s.Chat.Model, s.history(), content, onToken)
	if err != nil {
		return Reply{}, err
	}
	AppendTurn(s.Chat, content, reply)
	return reply, nil
}

func (s *Session) history() []Message {
	out := make([]Message, 0, len(s.Chat.Messages))
	for _, m := range s.Chat.Messages {
		role := Role(m.Role)
		if role != RoleUser && role != RoleAssistant {
			continue
		}
		out = append(out, Message{Role: role, Content: m.Content})
	}
	return out
}

// AppendTurn records a successful exchange on chat.
func AppendTurn(chat *store.Chat, content string, reply Reply) {
	chat.AddMessage(string(RoleUser), content)
	chat.AddMessage(string(RoleAssistant), reply.Text)
	if chat.Model == "" {
		chat.Model = reply.Model
	}
	// A model switched while the reply ran keeps its own provider.
	if chat.Model == reply.Model {
		chat.Provider = string(reply.Provider)
	}
}
