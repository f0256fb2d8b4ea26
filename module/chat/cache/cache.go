// Package cache is the client-side copy of channel history served as the
// first phase of a snapshot load.
package cache

import (
	"context"

	"AirChat/module/chat/model"
	"AirChat/module/chat/store"
)

type Cache interface {
	// Get reports ok=false when nothing is cached for the channel.
	Get(ctx context.Context, channelID model.ChannelID) (h store.History, ok bool, err error)
	Put(ctx context.Context, channelID model.ChannelID, h store.History) error
	Close() error
}
