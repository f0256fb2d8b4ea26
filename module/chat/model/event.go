package model

type TypingKind string

const (
	TypingStarted TypingKind = "typing.start"
	TypingStopped TypingKind = "typing.stop"
)

type TypingEvent struct {
	Kind TypingKind `json:"kind"`
	User User       `json:"user"`
}

func StartedTyping(u User) TypingEvent { return TypingEvent{Kind: TypingStarted, User: u} }
func StoppedTyping(u User) TypingEvent { return TypingEvent{Kind: TypingStopped, User: u} }

type ChannelEventKind string

const (
	ChannelUpdatedEvent ChannelEventKind = "channel.updated"
	ChannelDeletedEvent ChannelEventKind = "channel.deleted"
	ChannelHiddenEvent  ChannelEventKind = "channel.hidden"
	ChannelVisibleEvent ChannelEventKind = "channel.visible"
)

type ChannelEvent struct {
	Kind    ChannelEventKind `json:"kind"`
	Channel Channel          `json:"channel"`
}

type MemberEventKind string

const (
	MemberAdded   MemberEventKind = "member.added"
	MemberUpdated MemberEventKind = "member.updated"
	MemberRemoved MemberEventKind = "member.removed"
)

type MemberEvent struct {
	Kind   MemberEventKind `json:"kind"`
	Member Member          `json:"member"`
}
