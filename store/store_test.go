package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "chats.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
}

func TestStore_CreateGetSave(t *testing.T) {
	t.Parallel()
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		chat := NewChat("u1", "gemini-2.5-flash", "gemini")
		require.NoError(t, s.Create(ctx, chat))

		got, err := s.Get(ctx, chat.ID)
		require.NoError(t, err)
		require.Equal(t, DefaultChatName, got.Name)
		require.Equal(t, "u1", got.UserID)
		require.Equal(t, "gemini-2.5-flash", got.Model)
		require.Empty(t, got.Messages)

		got.AddMessage("user", "Open a bakery in Lisbon")
		got.AddMessage("assistant", "Sounds great.")
		require.NoError(t, s.Save(ctx, got))

		again, err := s.Get(ctx, chat.ID)
		require.NoError(t, err)
		require.Equal(t, "Open a bakery in Lisbon", again.Name)
		require.Len(t, again.Messages, 2)
		require.Equal(t, "assistant", again.Messages[1].Role)
		require.Equal(t, "Sounds great.", again.Messages[1].Content)
		require.True(t, again.UpdatedAt.Equal(got.UpdatedAt))
	})
}

func TestStore_NotFound(t *testing.T) {
	t.Parallel()
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Get(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, s.Save(ctx, NewChat("u1", "", "")), ErrNotFound)
		require.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)
	})
}

func TestStore_UpdateAppliesToCurrentChat(t *testing.T) {
	t.Parallel()
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := NewChat("u1", "gemini-2.5-flash", "gemini")
		require.NoError(t, s.Create(ctx, c))

		// A rename lands after c was loaded.
		renamed := c.Clone()
		name := "Renamed"
		renamed.Apply(ChatPatch{Name: &name})
		require.NoError(t, s.Save(ctx, renamed))

		got, err := s.Update(ctx, c.ID, func(cur *Chat) error {
			cur.AddMessage("assistant", "hello")
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, "Renamed", got.Name)
		require.Len(t, got.Messages, 1)

		stored, err := s.Get(ctx, c.ID)
		require.NoError(t, err)
		require.Equal(t, "Renamed", stored.Name)
		require.Equal(t, "hello", stored.Messages[0].Content)

		boom := errors.New("boom")
		_, err = s.Update(ctx, c.ID, func(cur *Chat) error {
			cur.AddMessage("user", "lost")
			return boom
		})
		require.ErrorIs(t, err, boom)
		stored, err = s.Get(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, stored.Messages, 1)

		_, err = s.Update(ctx, "missing", func(*Chat) error { return nil })
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_ListDeleteClear(t *testing.T) {
	t.Parallel()
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var ids []string
		for i := 0; i < 3; i++ {
			c := NewChat("u1", "", "")
			require.NoError(t, s.Create(ctx, c))
			ids = append(ids, c.ID)
		}
		require.NoError(t, s.Create(ctx, NewChat("u2", "", "")))

		list, err := s.ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 3)
		require.Equal(t, ids[2], list[0].ID)

		require.NoError(t, s.Delete(ctx, ids[1]))
		list, err = s.ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 2)

		require.NoError(t, s.ClearUser(ctx, "u1"))
		list, err = s.ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Empty(t, list)

		other, err := s.ListByUser(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, other, 1)
	})
}

func TestStore_EvictsOldestChats(t *testing.T) {
	t.Parallel()
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first := NewChat("u1", "", "")
		require.NoError(t, s.Create(ctx, first))
		for i := 0; i < MaxChatsPerUser; i++ {
			require.NoError(t, s.Create(ctx, NewChat("u1", "", "")))
		}
		list, err := s.ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, MaxChatsPerUser)
		_, err = s.Get(ctx, first.ID)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestChat_AddMessageKeepsNewest(t *testing.T) {
	t.Parallel()

	c := NewChat("u1", "", "")
	for i := 0; i < MaxMessagesPerChat+5; i++ {
		c.AddMessage("user", fmt.Sprintf("m%d", i))
	}
	require.Len(t, c.Messages, MaxMessagesPerChat)
	require.Equal(t, "m5", c.Messages[0].Content)
	require.Equal(t, "m0", c.Name)
}

func TestChat_ApplyAndName(t *testing.T) {
	t.Parallel()

	c := NewChat("u1", "gpt-4o", "openai")
	name, model := strings.Repeat("é", 60), "llama-3.1-8b-instant"
	c.Apply(ChatPatch{Name: &name, Model: &model})
	require.Equal(t, strings.Repeat("é", 50), c.Name)
	require.Equal(t, "llama-3.1-8b-instant", c.Model)
	require.Equal(t, "openai", c.Provider)

	blank := "  "
	c.Apply(ChatPatch{Name: &blank})
	require.Equal(t, DefaultChatName, c.Name)

	clone := c.Clone()
	clone.AddMessage("user", "hi")
	require.Empty(t, c.Messages)
}
