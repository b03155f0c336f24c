// Package store persists chats and their transcripts.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxChatsPerUser    = 50
	MaxMessagesPerChat = 200
	DefaultChatName    = "New Chat"
	maxNameRunes       = 50
)

var ErrNotFound = errors.New("chat not found")

// Message is one transcript entry. Assistant content is always the
// post-processed text.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Chat is a conversation owned by one user.
type Chat struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserID    string    `json:"userId"`
	Messages  []Message `json:"messages"`
	Model     string    `json:"model,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is implemented by MemoryStore and SQLiteStore.
type Store interface {
	// Create adds chat, evicting the owner's oldest chats beyond
	// MaxChatsPerUser.
	Create(ctx context.Context, chat *Chat) error
	Get(ctx context.Context, id string) (*Chat, error)
	// ListByUser returns the user's chats, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Chat, error)
	// Save replaces the stored chat with chat.
	Save(ctx context.Context, chat *Chat) error
	// Update applies fn to the current stored chat and saves the result
	// atomically. An error from fn leaves the chat unchanged.
	Update(ctx context.Context, id string, fn func(*Chat) error) (*Chat, error)
	Delete(ctx context.Context, id string) error
	ClearUser(ctx context.Context, userID string) error
	Close() error
}

// NewChat returns an empty chat for userID.
func NewChat(userID, model, provider string) *Chat {
	ts := now()
	return &Chat{
		ID:        "chat_" + uuid.NewString(),
		Name:      DefaultChatName,
		UserID:    userID,
		Messages:  []Message{},
		Model:     model,
		Provider:  provider,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// AddMessage appends a transcript entry. The first user message names the
// chat, and only the newest MaxMessagesPerChat entries are kept.
func (c *Chat) AddMessage(role, content string) {
	ts := now()
	c.Messages = append(c.Messages, Message{Role: role, Content: content, CreatedAt: ts})
	if excess := len(c.Messages) - MaxMessagesPerChat; excess > 0 {
		c.Messages = append([]Message(nil), c.Messages[excess:]...)
	}
	if len(c.Messages) == 1 && role == "user" {
		c.Name = chatName(content)
	}
	c.UpdatedAt = ts
}

// ChatPatch is a partial update; nil fields are left alone.
type ChatPatch struct {
	Name     *string `json:"name"`
	Model    *string `json:"model"`
	Provider *string `json:"provider"`
}

func (c *Chat) Apply(p ChatPatch) {
	if p.Name != nil {
		c.Name = chatName(*p.Name)
	}
	if p.Model != nil {
		c.Model = strings.TrimSpace(*p.Model)
	}
	if p.Provider != nil {
		c.Provider = strings.TrimSpace(*p.Provider)
	}
	c.UpdatedAt = now()
}

// Clone returns a deep copy.
func (c *Chat) Clone() *Chat {
	out := *c
	out.Messages = append([]Message{}, c.Messages...)
	return &out
}

func chatName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultChatName
	}
	if utf8.RuneCountInString(s) > maxNameRunes {
		s = string([]rune(s)[:maxNameRunes])
	}
	return s
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
