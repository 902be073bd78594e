package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-post-composer/internal/domain"
	"telegram-post-composer/internal/storage"
	"telegram-post-composer/internal/telegram"
)

type fakeLookup struct {
	chats map[domain.ChatRef]*telegram.Chat
	calls []domain.ChatRef
}

func (f *fakeLookup) GetChat(_ context.Context, ref domain.ChatRef) (*telegram.Chat, error) {
	f.calls = append(f.calls, ref)
	chat, ok := f.chats[ref]
	if !ok {
		return nil, &telegram.APIError{Code: 400, Description: "Bad Request: chat not found"}
	}
	return chat, nil
}

func newTestRegistry(t *testing.T) (*Registry, *storage.Store) {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	reg, err := NewRegistry(st)
	require.NoError(t, err)
	return reg, st
}

func TestNormalizeTarget(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.ChatRef
	}{
		{"example", "@example"},
		{"@example", "@example"},
		{"-100123", "-100123"},
		{"123", "123"},
		{"  my_channel  ", "@my_channel"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeTarget(tc.raw), "raw=%q", tc.raw)
	}
}

func TestAddChannel(t *testing.T) {
	lookup := &fakeLookup{chats: map[domain.ChatRef]*telegram.Chat{
		"@example": {ID: -100987, Title: "Example Channel", Type: "channel"},
	}}

	t.Run("successful lookup saves channel", func(t *testing.T) {
		reg, _ := newTestRegistry(t)

		saved, err := reg.AddChannel(context.Background(), lookup, "example")
		require.NoError(t, err)
		assert.Equal(t, int64(-100987), saved.ID)
		assert.Equal(t, "Example Channel", saved.Title)
		assert.Equal(t, "channel", saved.Kind)
		assert.False(t, saved.AddedAt.IsZero())

		require.Len(t, reg.Channels(), 1)
	})

	t.Run("lookup receives normalized target", func(t *testing.T) {
		reg, _ := newTestRegistry(t)
		local := &fakeLookup{chats: lookup.chats}

		_, err := reg.AddChannel(context.Background(), local, "example")
		require.NoError(t, err)
		require.Equal(t, []domain.ChatRef{"@example"}, local.calls)
	})

	t.Run("duplicate id reports ErrAlreadySaved", func(t *testing.T) {
		reg, _ := newTestRegistry(t)

		_, err := reg.AddChannel(context.Background(), lookup, "example")
		require.NoError(t, err)

		existing, err := reg.AddChannel(context.Background(), lookup, "@example")
		require.ErrorIs(t, err, ErrAlreadySaved)
		assert.Equal(t, int64(-100987), existing.ID)
		assert.Len(t, reg.Channels(), 1)
	})

	t.Run("failed lookup does not save", func(t *testing.T) {
		reg, _ := newTestRegistry(t)

		_, err := reg.AddChannel(context.Background(), lookup, "@nope")
		var apiErr *telegram.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Empty(t, reg.Channels())
	})

	t.Run("empty input rejected without lookup", func(t *testing.T) {
		reg, _ := newTestRegistry(t)
		local := &fakeLookup{chats: lookup.chats}

		_, err := reg.AddChannel(context.Background(), local, "   ")
		require.Error(t, err)
		assert.Empty(t, local.calls)
	})
}

func TestRemoveChannel(t *testing.T) {
	lookup := &fakeLookup{chats: map[domain.ChatRef]*telegram.Chat{
		"@one": {ID: 1, Title: "One", Type: "channel"},
		"@two": {ID: 2, Title: "Two", Type: "channel"},
	}}
	reg, _ := newTestRegistry(t)

	_, err := reg.AddChannel(context.Background(), lookup, "one")
	require.NoError(t, err)
	_, err = reg.AddChannel(context.Background(), lookup, "two")
	require.NoError(t, err)

	require.NoError(t, reg.RemoveChannel(1))
	channels := reg.Channels()
	require.Len(t, channels, 1)
	assert.Equal(t, "Two", channels[0].Title)

	assert.Error(t, reg.RemoveChannel(42))
}

func TestFailedPersistLeavesMemoryUnchanged(t *testing.T) {
	lookup := &fakeLookup{chats: map[domain.ChatRef]*telegram.Chat{
		"@one": {ID: 1, Title: "One", Type: "channel"},
		"@two": {ID: 2, Title: "Two", Type: "channel"},
	}}
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")

	st, err := storage.Open(path)
	require.NoError(t, err)
	reg, err := NewRegistry(st)
	require.NoError(t, err)

	_, err = reg.AddChannel(context.Background(), lookup, "one")
	require.NoError(t, err)

	// Каталог на месте файла хранилища ломает запись на диск.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))

	_, err = reg.AddChannel(context.Background(), lookup, "two")
	require.Error(t, err)
	channels := reg.Channels()
	require.Len(t, channels, 1)
	assert.Equal(t, "One", channels[0].Title)

	require.Error(t, reg.RemoveChannel(1))
	assert.Len(t, reg.Channels(), 1)
}

func TestRegistryPersistence(t *testing.T) {
	lookup := &fakeLookup{chats: map[domain.ChatRef]*telegram.Chat{
		"@example": {ID: -100987, Title: "Example Channel", Type: "channel"},
	}}
	path := filepath.Join(t.TempDir(), "store.json")

	st, err := storage.Open(path)
	require.NoError(t, err)
	reg, err := NewRegistry(st)
	require.NoError(t, err)
	_, err = reg.AddChannel(context.Background(), lookup, "example")
	require.NoError(t, err)

	st, err = storage.Open(path)
	require.NoError(t, err)
	reloaded, err := NewRegistry(st)
	require.NoError(t, err)

	channels := reloaded.Channels()
	require.Len(t, channels, 1)
	assert.Equal(t, "Example Channel", channels[0].Title)
}
