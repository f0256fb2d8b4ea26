package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AirChat/module/chat/model"
	"AirChat/tools/ids"
)

func TestTypingPresence(t *testing.T) {
	addr := os.Getenv("AIRCHAT_TEST_REDIS")
	if addr == "" {
		t.Skip("AIRCHAT_TEST_REDIS not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	ch := "test-" + ids.UUID()
	p := NewTypingPresence(rdb, time.Minute)
	clock := time.Now()
	p.now = func() time.Time { return clock }

	john := model.User{ID: "u-john", Name: "John"}
	bahadir := model.User{ID: "u-b", Name: "Bahadir"}
	require.NoError(t, p.Started(ctx, ch, john))
	require.NoError(t, p.Started(ctx, ch, bahadir))
	users, err := p.Typing(ctx, ch)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.User{john, bahadir}, users)

	require.NoError(t, p.Stopped(ctx, ch, john.ID))
	users, err = p.Typing(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, []model.User{bahadir}, users)

	clock = clock.Add(2 * time.Minute)
	users, err = p.Typing(ctx, ch)
	require.NoError(t, err)
	assert.Empty(t, users)
}
