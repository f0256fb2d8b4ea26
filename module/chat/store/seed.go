package store

import (
	"context"
	"fmt"
	"time"

	"AirChat/module/chat/model"
)

// John authors the peer half of the seeded conversation.
var John = model.User{ID: "user-john", Name: "John"}

// CachedPrefix is how many seeded messages the local cache starts with.
const CachedPrefix = 3

// InitialMessages is the seeded history: three rounds of greetings between
// me and John. Ids are derived from channelID so reseeding is idempotent.
func InitialMessages(channelID model.ChannelID, me model.User) []model.Message {
	lines := []struct {
		text string
		mine bool
	}{
		{"Hey!", true},
		{"Hey there :)", false},
		{"How's it going today?", false},
	}
	base := time.Date(2020, 5, 18, 9, 0, 0, 0, time.UTC)
	out := make([]model.Message, 0, 9)
	for round := 0; round < 3; round++ {
		for i, l := range lines {
			n := round*len(lines) + i
			author := John
			if l.mine {
				author = me
			}
			out = append(out, model.Message{
				ID:        fmt.Sprintf("%s-seed-%d", channelID, n+1),
				Text:      l.text,
				Author:    author,
				CreatedAt: base.Add(time.Duration(n) * time.Minute),
			})
		}
	}
	return out
}

// Seed creates the channel in b and appends the seeded history.
func Seed(ctx context.Context, b Backend, ch model.Channel, me model.User) (History, error) {
	if err := b.EnsureChannel(ctx, ch); err != nil {
		return History{}, err
	}
	for _, m := range InitialMessages(ch.ID, me) {
		if err := b.Append(ctx, ch.ID, m); err != nil {
			return History{}, err
		}
	}
	return b.Load(ctx, ch.ID)
}
