// Package store holds the remote, authoritative message stores a channel
// reference talks to.
package store

import (
	"context"

	"AirChat/module/chat/model"
	"AirChat/tools/errs"
)

// ErrChannelNotFound is returned by Load and Rename for unknown channels.
var ErrChannelNotFound = errs.NewCodeError(errs.NotFoundError, "channel not found")

// History is everything a store knows about one channel.
type History struct {
	Channel  model.Channel   `json:"channel"`
	Messages []model.Message `json:"messages"`
	Members  []model.Member  `json:"members"`
	Watchers []model.Member  `json:"watchers"`
}

// Snapshot tags h with md.
func (h History) Snapshot(md model.ChangeMetadata) model.Snapshot {
	return model.Snapshot{
		Metadata: md,
		Channel:  h.Channel,
		Messages: append([]model.Message(nil), h.Messages...),
		Members:  append([]model.Member(nil), h.Members...),
		Watchers: append([]model.Member(nil), h.Watchers...),
	}
}

// Prefix returns a copy of h holding at most n messages.
func (h History) Prefix(n int) History {
	if n > len(h.Messages) {
		n = len(h.Messages)
	}
	out := h
	out.Messages = append([]model.Message(nil), h.Messages[:n]...)
	return out
}

// Backend is a remote message store. Append and Remove are idempotent by
// message id: appending a known id or removing an unknown one succeeds
// without changing anything.
type Backend interface {
	EnsureChannel(ctx context.Context, ch model.Channel) error
	Load(ctx context.Context, channelID model.ChannelID) (History, error)
	Append(ctx context.Context, channelID model.ChannelID, msg model.Message) error
	Remove(ctx context.Context, channelID model.ChannelID, msgID model.MessageID) error
	Rename(ctx context.Context, channelID model.ChannelID, name string) (model.Channel, error)
}
