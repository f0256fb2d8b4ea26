package cache

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AirChat/module/chat/model"
	"AirChat/module/chat/store"
)

var me = model.User{ID: "u-me", Name: "Me"}

func exercise(t *testing.T, c Cache) {
	ctx := context.Background()
	_, ok, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	h := store.History{
		Channel:  model.Channel{ID: "c1", Name: "Chat with Bahadir"},
		Messages: store.InitialMessages("c1", me)[:store.CachedPrefix],
	}
	require.NoError(t, c.Put(ctx, "c1", h))

	got, ok, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, h.Channel, got.Channel)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, h.Messages[2].ID, got.Messages[2].ID)
	assert.True(t, h.Messages[2].CreatedAt.Equal(got.Messages[2].CreatedAt))

	// the cache holds a copy
	got.Messages[0].Text = "mutated"
	again, _, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Hey!", again.Messages[0].Text)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemory()
	defer c.Close()
	exercise(t, c)
}

func TestPebbleCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "db")
	c, err := OpenPebble(path)
	require.NoError(t, err)
	exercise(t, c)
	require.NoError(t, c.Put(context.Background(), "c2", store.History{Channel: model.Channel{ID: "c2"}}))

	chans, err := c.Channels()
	require.NoError(t, err)
	sort.Strings(chans)
	assert.Equal(t, []model.ChannelID{"c1", "c2"}, chans)
	require.NoError(t, c.Close())

	// survives reopen
	c, err = OpenPebble(path)
	require.NoError(t, err)
	defer c.Close()
	_, ok, err := c.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, ok)
}
