// Package channel is the client side of a chat channel: a reference that
// loads snapshots, performs writes and reports every change through the
// stream protocol.
package channel

import (
	"context"

	"go.uber.org/zap"

	"AirChat/logger"
	"AirChat/module/chat/cache"
	"AirChat/module/chat/model"
	"AirChat/module/chat/presence"
	"AirChat/module/chat/store"
	"AirChat/module/chat/stream"
)

// TypingTracker records who is typing where. service/storage keeps it in
// Redis.
type TypingTracker interface {
	Started(ctx context.Context, channelID model.ChannelID, user model.User) error
	Stopped(ctx context.Context, channelID model.ChannelID, userID model.UserID) error
}

type Client struct {
	currentUser model.User
	backend     store.Backend
	cache       cache.Cache
	feed        stream.Feed
	typing      TypingTracker
	peer        *presence.Config
	log         *zap.Logger
}

type ClientOption func(*Client)

func WithCache(c cache.Cache) ClientOption {
	return func(cl *Client) { cl.cache = c }
}

// WithFeed shares confirmed changes and typing with other processes.
func WithFeed(f stream.Feed) ClientOption {
	return func(cl *Client) { cl.feed = f }
}

func WithTypingTracker(t TypingTracker) ClientOption {
	return func(cl *Client) { cl.typing = t }
}

// WithSimulatedPeer starts a presence simulator on every reference.
func WithSimulatedPeer(cfg presence.Config) ClientOption {
	return func(cl *Client) { cl.peer = &cfg }
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(cl *Client) { cl.log = l }
}

func NewClient(me model.User, backend store.Backend, opts ...ClientOption) *Client {
	c := &Client{currentUser: me, backend: backend}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = logger.Named("channel")
	}
	return c
}

func (c *Client) CurrentUser() model.User { return c.currentUser }

// ChannelReference opens a reference to channelID. Close it when done.
func (c *Client) ChannelReference(channelID model.ChannelID) Reference {
	return newReference(c, channelID)
}
