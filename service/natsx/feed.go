package natsx

import (
	"context"
	"encoding/json"
	"time"

	"AirChat/module/chat/model"
	"AirChat/module/chat/stream"
	"AirChat/tools/errs"
	"AirChat/tools/ids"
)

const (
	HeaderMsgID  = "Nats-Msg-Id"
	HeaderOrigin = "X-Origin"

	subjectPrefix = "airchat.chan."
)

func Subject(channelID model.ChannelID) string { return subjectPrefix + channelID }

// publisher is the part of Client the feed publishes through.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte, hdr map[string]string) error
}

// Feed carries stream envelopes over core NATS, one subject per channel.
type Feed struct {
	c    *Client
	pub  publisher
	idem IdemStore
	ttl  time.Duration
}

func NewFeed(c *Client, idem IdemStore, ttl time.Duration) *Feed {
	return &Feed{c: c, pub: c, idem: idem, ttl: ttl}
}

func (f *Feed) Publish(ctx context.Context, env stream.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return errs.Wrap(err)
	}
	hdr := map[string]string{
		HeaderMsgID:  ids.UUID(),
		HeaderOrigin: env.Origin,
	}
	return f.pub.Publish(ctx, Subject(env.ChannelID), b, hdr)
}

func (f *Feed) Subscribe(channelID model.ChannelID, h func(stream.Envelope)) (stream.Subscription, error) {
	mws := []Middleware{Recover()}
	if f.idem != nil {
		mws = append(mws, Idempotent(f.idem, f.ttl))
	}
	sub, err := f.c.Subscribe(Subject(channelID), EnvelopeHandler(h), mws...)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// EnvelopeHandler decodes each message into an envelope for h.
func EnvelopeHandler(h func(stream.Envelope)) Handler {
	return func(_ context.Context, msg Message) error {
		var env stream.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return errs.ErrArgs.WrapMsg("bad envelope", "subject", msg.Subject, "err", err)
		}
		if env.Origin == "" {
			env.Origin = msg.Header[HeaderOrigin]
		}
		h(env)
		return nil
	}
}
