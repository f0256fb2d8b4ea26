package stream

import (
	"context"

	"AirChat/module/chat/model"
)

type EnvelopeKind string

const (
	EnvelopeMessages EnvelopeKind = "messages"
	EnvelopeTyping   EnvelopeKind = "typing"
	EnvelopeChannel  EnvelopeKind = "channel"
	EnvelopeMember   EnvelopeKind = "member"
)

// Envelope carries one change-stream delivery between processes. Origin
// identifies the publishing reference so it can drop its own echoes.
type Envelope struct {
	Origin    string               `json:"origin"`
	ChannelID model.ChannelID      `json:"channel_id"`
	Kind      EnvelopeKind         `json:"kind"`
	Metadata  model.ChangeMetadata `json:"metadata"`

	Changes []model.Change[model.Message] `json:"changes,omitempty"`
	Typing  *model.TypingEvent            `json:"typing,omitempty"`
	Channel *model.Channel                `json:"channel,omitempty"`
	Member  *model.MemberEvent            `json:"member,omitempty"`
}

// Deliver replays e on l. Malformed envelopes are dropped.
func (e Envelope) Deliver(l Listener) bool {
	switch e.Kind {
	case EnvelopeMessages:
		if len(e.Changes) == 0 {
			return false
		}
		l.OnMessagesChanged(e.Changes, e.Metadata)
	case EnvelopeTyping:
		if e.Typing == nil {
			return false
		}
		l.OnTypingEvent(*e.Typing, e.Metadata)
	case EnvelopeChannel:
		if e.Channel == nil {
			return false
		}
		l.OnChannelUpdated(*e.Channel, e.Metadata)
	case EnvelopeMember:
		if e.Member == nil {
			return false
		}
		l.OnMemberEvent(*e.Member, e.Metadata)
	default:
		return false
	}
	return true
}

// Feed moves envelopes between the processes watching a channel.
type Feed interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(channelID model.ChannelID, h func(Envelope)) (Subscription, error)
}
