package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"AirChat/module/chat/model"
	"AirChat/module/chat/store"
	"AirChat/tools/errs"
)

const keyPrefix = "chan:"

func pebbleKey(id model.ChannelID) []byte { return []byte(keyPrefix + id) }

// Pebble persists the cache on disk, one JSON value per channel.
type Pebble struct {
	db *pebble.DB
}

func OpenPebble(path string) (*Pebble, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errs.WrapMsg(err, "create cache dir", "path", path)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errs.WrapMsg(err, "open pebble", "path", path)
	}
	return &Pebble{db: db}, nil
}

func (c *Pebble) Get(ctx context.Context, channelID model.ChannelID) (store.History, bool, error) {
	v, closer, err := c.db.Get(pebbleKey(channelID))
	if errors.Is(err, pebble.ErrNotFound) {
		return store.History{}, false, nil
	}
	if err != nil {
		return store.History{}, false, errs.WrapMsg(err, "pebble get", "channel", channelID)
	}
	defer closer.Close()
	var h store.History
	if err := json.Unmarshal(v, &h); err != nil {
		return store.History{}, false, errs.WrapMsg(err, "decode cached history", "channel", channelID)
	}
	return h, true, nil
}

func (c *Pebble) Put(ctx context.Context, channelID model.ChannelID, h store.History) error {
	b, err := json.Marshal(h)
	if err != nil {
		return errs.Wrap(err)
	}
	return errs.WrapMsg(c.db.Set(pebbleKey(channelID), b, pebble.Sync), "pebble set", "channel", channelID)
}

// Channels lists the cached channel ids.
func (c *Pebble) Channels() ([]model.ChannelID, error) {
	it, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte("chan;"),
	})
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer it.Close()
	var out []model.ChannelID
	for ok := it.First(); ok; ok = it.Next() {
		out = append(out, string(it.Key()[len(keyPrefix):]))
	}
	return out, errs.Wrap(it.Error())
}

func (c *Pebble) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
