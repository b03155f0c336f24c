package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps chats in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	chats  map[string]*Chat
	byUser map[string][]string // chat ids in creation order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chats: make(map[string]*Chat), byUser: make(map[string][]string)}
}

func (m *MemoryStore) Create(_ context.Context, chat *Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chat.ID] = chat.Clone()
	ids := append(m.byUser[chat.UserID], chat.ID)
	if excess := len(ids) - MaxChatsPerUser; excess > 0 {
		for _, id := range ids[:excess] {
			delete(m.chats, id)
		}
		ids = append([]string(nil), ids[excess:]...)
	}
	m.byUser[chat.UserID] = ids
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.byUser[userID]
	out := make([]*Chat, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if c, ok := m.chats[ids[i]]; ok {
			out = append(out, c.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, chat *Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[chat.ID]; !ok {
		return ErrNotFound
	}
	m.chats[chat.ID] = chat.Clone()
	return nil
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(*Chat) error) (*Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := c.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	m.chats[id] = next
	return next.Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.chats, id)
	ids := m.byUser[c.UserID]
	for i, cid := range ids {
		if cid == id {
			m.byUser[c.UserID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) ClearUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.byUser[userID] {
		delete(m.chats, id)
	}
	delete(m.byUser, userID)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
