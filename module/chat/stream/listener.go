// Package stream defines how a channel reference reports changes to its
// consumers.
package stream

import "AirChat/module/chat/model"

// Listener receives change-stream deliveries. Each delivery is one call;
// calls may arrive from any goroutine and in any order between events.
type Listener interface {
	OnMessagesChanged(changes []model.Change[model.Message], md model.ChangeMetadata)
	OnTypingEvent(ev model.TypingEvent, md model.ChangeMetadata)
	OnChannelUpdated(ch model.Channel, md model.ChangeMetadata)
	OnMemberEvent(ev model.MemberEvent, md model.ChangeMetadata)
}

// NopListener ignores everything. Embed it to implement part of Listener.
type NopListener struct{}

func (NopListener) OnMessagesChanged([]model.Change[model.Message], model.ChangeMetadata) {}
func (NopListener) OnTypingEvent(model.TypingEvent, model.ChangeMetadata)                 {}
func (NopListener) OnChannelUpdated(model.Channel, model.ChangeMetadata)                  {}
func (NopListener) OnMemberEvent(model.MemberEvent, model.ChangeMetadata)                 {}

// Funcs adapts plain functions to Listener; nil fields are ignored.
type Funcs struct {
	Messages func([]model.Change[model.Message], model.ChangeMetadata)
	Typing   func(model.TypingEvent, model.ChangeMetadata)
	Channel  func(model.Channel, model.ChangeMetadata)
	Member   func(model.MemberEvent, model.ChangeMetadata)
}

func (f Funcs) OnMessagesChanged(c []model.Change[model.Message], md model.ChangeMetadata) {
	if f.Messages != nil {
		f.Messages(c, md)
	}
}

func (f Funcs) OnTypingEvent(ev model.TypingEvent, md model.ChangeMetadata) {
	if f.Typing != nil {
		f.Typing(ev, md)
	}
}

func (f Funcs) OnChannelUpdated(ch model.Channel, md model.ChangeMetadata) {
	if f.Channel != nil {
		f.Channel(ch, md)
	}
}

func (f Funcs) OnMemberEvent(ev model.MemberEvent, md model.ChangeMetadata) {
	if f.Member != nil {
		f.Member(ev, md)
	}
}
