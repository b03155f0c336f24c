package generator

import "project_plan_chat/plan"

// Role is the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation sent to a provider.
type Message struct {
	Role    Role
	Content string
}

// Reply is the result of one generation.
type Reply struct {
	// Text is the post-processed response that should be stored and shown.
	Text string
	// Raw is the response exactly as the provider produced it.
	Raw      string
	Model    string
	Provider Provider
	Decision plan.Decision
	Outcome  plan.Outcome
	Tokens   int
}

func systemText(msgs []Message) []string {
	var out []string
	for _, m := range msgs {
		if m.Role == RoleSystem && m.Content != "" {
			out = append(out, m.Content)
		}
	}
	return out
}

func lastUser(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}
