package cache

import (
	"context"
	"sync"

	"AirChat/module/chat/model"
	"AirChat/module/chat/store"
)

type Memory struct {
	mu sync.RWMutex
	m  map[model.ChannelID]store.History
}

func NewMemory() *Memory {
	return &Memory{m: make(map[model.ChannelID]store.History)}
}

func (c *Memory) Get(_ context.Context, channelID model.ChannelID) (store.History, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.m[channelID]
	if !ok {
		return store.History{}, false, nil
	}
	return h.Prefix(len(h.Messages)), true, nil
}

func (c *Memory) Put(_ context.Context, channelID model.ChannelID, h store.History) error {
	c.mu.Lock()
	c.m[channelID] = h.Prefix(len(h.Messages))
	c.mu.Unlock()
	return nil
}

func (c *Memory) Close() error { return nil }
