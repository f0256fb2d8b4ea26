// Package storage keeps short-lived chat state in Redis.
package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"AirChat/module/chat/model"
	"AirChat/tools/errs"
)

// typing key: im:typing:<channel>
// zset member = user id, score = expiry unix ms; names in im:typing:<channel>:names
func typingKey(channelID model.ChannelID) string { return "im:typing:" + channelID }
func namesKey(channelID model.ChannelID) string  { return "im:typing:" + channelID + ":names" }

// TypingPresence tracks who is typing. Entries expire after ttl so a
// client that vanishes mid-sentence stops showing up.
type TypingPresence struct {
	rdb redis.UniversalClient
	ttl time.Duration
	now func() time.Time
}

func NewTypingPresence(rdb redis.UniversalClient, ttl time.Duration) *TypingPresence {
	if ttl <= 0 {
		ttl = 6 * time.Second
	}
	return &TypingPresence{rdb: rdb, ttl: ttl, now: time.Now}
}

func (p *TypingPresence) Started(ctx context.Context, channelID model.ChannelID, user model.User) error {
	exp := p.now().Add(p.ttl).UnixMilli()
	pipe := p.rdb.TxPipeline()
	pipe.ZAdd(ctx, typingKey(channelID), redis.Z{Score: float64(exp), Member: user.ID})
	pipe.HSet(ctx, namesKey(channelID), user.ID, user.Name)
	pipe.PExpire(ctx, typingKey(channelID), 2*p.ttl)
	pipe.PExpire(ctx, namesKey(channelID), 2*p.ttl)
	_, err := pipe.Exec(ctx)
	return errs.WrapMsg(err, "typing started", "channel", channelID, "user", user.ID)
}

func (p *TypingPresence) Stopped(ctx context.Context, channelID model.ChannelID, userID model.UserID) error {
	pipe := p.rdb.TxPipeline()
	pipe.ZRem(ctx, typingKey(channelID), userID)
	pipe.HDel(ctx, namesKey(channelID), userID)
	_, err := pipe.Exec(ctx)
	return errs.WrapMsg(err, "typing stopped", "channel", channelID, "user", userID)
}

// Typing lists users whose typing has not expired, dropping stale entries.
func (p *TypingPresence) Typing(ctx context.Context, channelID model.ChannelID) ([]model.User, error) {
	now := strconv.FormatInt(p.now().UnixMilli(), 10)
	if err := p.rdb.ZRemRangeByScore(ctx, typingKey(channelID), "-inf", "("+now).Err(); err != nil {
		return nil, errs.Wrap(err)
	}
	ids, err := p.rdb.ZRangeByScore(ctx, typingKey(channelID), &redis.ZRangeBy{Min: now, Max: "+inf"}).Result()
	if err != nil {
		return nil, errs.Wrap(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	names, err := p.rdb.HMGet(ctx, namesKey(channelID), ids...).Result()
	if err != nil {
		return nil, errs.Wrap(err)
	}
	out := make([]model.User, 0, len(ids))
	for i, id := range ids {
		name, _ := names[i].(string)
		out = append(out, model.User{ID: id, Name: name})
	}
	return out, nil
}
