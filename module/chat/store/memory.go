package store

import (
	"context"
	"sync"

	"AirChat/module/chat/model"
)

type memChannel struct {
	ch      model.Channel
	order   []model.MessageID
	byID    map[model.MessageID]model.Message
	members []model.Member
}

var _ Backend = (*Memory)(nil)

// Memory is a process-local Backend.
type Memory struct {
	mu    sync.RWMutex
	chans map[model.ChannelID]*memChannel
}

func NewMemory() *Memory {
	return &Memory{
		chans: make(map[model.ChannelID]*memChannel),
	}
}

func (db *Memory) EnsureChannel(ctx context.Context, ch model.Channel) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if c, ok := db.chans[ch.ID]; ok {
		if ch.Name != "" {
			c.ch.Name = ch.Name
		}
		return nil
	}
	db.chans[ch.ID] = &memChannel{ch: ch, byID: make(map[model.MessageID]model.Message)}
	return nil
}

// AddMember records m as a member of the channel.
func (db *Memory) AddMember(channelID model.ChannelID, m model.Member) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.chans[channelID]
	if !ok {
		return ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	for _, x := range c.members {
		if x.User.Equal(m.User) {
			return nil
		}
	}
	c.members = append(c.members, m)
	return nil
}

func (db *Memory) Load(ctx context.Context, channelID model.ChannelID) (History, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.chans[channelID]
	if !ok {
		return History{}, ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	h := History{
		Channel:  c.ch,
		Messages: make([]model.Message, 0, len(c.order)),
		Members:  append([]model.Member(nil), c.members...),
	}
	for _, id := range c.order {
		h.Messages = append(h.Messages, c.byID[id])
	}
	return h, nil
}

func (db *Memory) Append(ctx context.Context, channelID model.ChannelID, msg model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.chans[channelID]
	if !ok {
		return ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	if _, ok := c.byID[msg.ID]; ok {
		return nil
	}
	c.byID[msg.ID] = msg
	c.order = append(c.order, msg.ID)
	return nil
}

func (db *Memory) Remove(ctx context.Context, channelID model.ChannelID, msgID model.MessageID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.chans[channelID]
	if !ok {
		return ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	if _, ok := c.byID[msgID]; !ok {
		return nil
	}
	delete(c.byID, msgID)
	for i, id := range c.order {
		if id == msgID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (db *Memory) Rename(ctx context.Context, channelID model.ChannelID, name string) (model.Channel, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.chans[channelID]
	if !ok {
		return model.Channel{}, ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	c.ch.Name = name
	return c.ch, nil
}
