package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"AirChat/module/chat/model"
	"AirChat/tools/errs"
)

// Keys:
//
//	im:chan:<id>        hash  {name}
//	im:chan:<id>:msgs   hash  message id -> json
//	im:chan:<id>:order  list  message ids in arrival order
func chanKey(id model.ChannelID) string  { return "im:chan:" + id }
func msgsKey(id model.ChannelID) string  { return "im:chan:" + id + ":msgs" }
func orderKey(id model.ChannelID) string { return "im:chan:" + id + ":order" }

// KEYS[1] = channel hash, KEYS[2] = msgs hash, KEYS[3] = order list
// ARGV[1] = message id, ARGV[2] = message json
// returns 1 inserted, 0 already present, -1 no channel
const luaAppend = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if redis.call("HSETNX", KEYS[2], ARGV[1], ARGV[2]) == 1 then
  redis.call("RPUSH", KEYS[3], ARGV[1])
  return 1
end
return 0
`

// KEYS[1] = channel hash, KEYS[2] = msgs hash, KEYS[3] = order list
// ARGV[1] = message id
// returns 1 removed, 0 unknown id, -1 no channel
const luaRemove = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if redis.call("HDEL", KEYS[2], ARGV[1]) == 1 then
  redis.call("LREM", KEYS[3], 0, ARGV[1])
  return 1
end
return 0
`

// Redis keeps each channel in a hash plus an ordered id list.
type Redis struct {
	rdb    redis.UniversalClient
	luaAdd *redis.Script
	luaDel *redis.Script
}

func NewRedis(rdb redis.UniversalClient) *Redis {
	return &Redis{
		rdb:    rdb,
		luaAdd: redis.NewScript(luaAppend),
		luaDel: redis.NewScript(luaRemove),
	}
}

func (s *Redis) EnsureChannel(ctx context.Context, ch model.Channel) error {
	if ch.Name == "" {
		return s.rdb.HSetNX(ctx, chanKey(ch.ID), "name", "").Err()
	}
	return s.rdb.HSet(ctx, chanKey(ch.ID), "name", ch.Name).Err()
}

func (s *Redis) Load(ctx context.Context, channelID model.ChannelID) (History, error) {
	name, err := s.rdb.HGet(ctx, chanKey(channelID), "name").Result()
	if errors.Is(err, redis.Nil) {
		return History{}, ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	if err != nil {
		return History{}, errs.WrapMsg(err, "redis hget", "channel", channelID)
	}
	h := History{Channel: model.Channel{ID: channelID, Name: name}}

	order, err := s.rdb.LRange(ctx, orderKey(channelID), 0, -1).Result()
	if err != nil {
		return History{}, errs.WrapMsg(err, "redis lrange", "channel", channelID)
	}
	if len(order) == 0 {
		return h, nil
	}
	vals, err := s.rdb.HMGet(ctx, msgsKey(channelID), order...).Result()
	if err != nil {
		return History{}, errs.WrapMsg(err, "redis hmget", "channel", channelID)
	}
	h.Messages = make([]model.Message, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// removed between LRANGE and HMGET
			continue
		}
		var m model.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return History{}, errs.WrapMsg(err, "decode message", "id", order[i])
		}
		h.Messages = append(h.Messages, m)
	}
	return h, nil
}

func (s *Redis) Append(ctx context.Context, channelID model.ChannelID, msg model.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return errs.Wrap(err)
	}
	keys := []string{chanKey(channelID), msgsKey(channelID), orderKey(channelID)}
	res, err := s.luaAdd.Run(ctx, s.rdb, keys, msg.ID, b).Int()
	if err != nil {
		return errs.WrapMsg(err, "redis append", "channel", channelID, "message", msg.ID)
	}
	if res < 0 {
		return ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	return nil
}

func (s *Redis) Remove(ctx context.Context, channelID model.ChannelID, msgID model.MessageID) error {
	keys := []string{chanKey(channelID), msgsKey(channelID), orderKey(channelID)}
	res, err := s.luaDel.Run(ctx, s.rdb, keys, msgID).Int()
	if err != nil {
		return errs.WrapMsg(err, "redis remove", "channel", channelID, "message", msgID)
	}
	if res < 0 {
		return ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	return nil
}

func (s *Redis) Rename(ctx context.Context, channelID model.ChannelID, name string) (model.Channel, error) {
	n, err := s.rdb.Exists(ctx, chanKey(channelID)).Result()
	if err != nil {
		return model.Channel{}, errs.Wrap(err)
	}
	if n == 0 {
		return model.Channel{}, ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	if err := s.rdb.HSet(ctx, chanKey(channelID), "name", name).Err(); err != nil {
		return model.Channel{}, errs.Wrap(err)
	}
	return model.Channel{ID: channelID, Name: name}, nil
}
