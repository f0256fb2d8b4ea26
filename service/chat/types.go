package chat

import (
	"context"

	"AirChat/module/chat/model"
)

type FrameType string

// Client to server.
const (
	FrameSend    FrameType = "send"
	FrameResend  FrameType = "resend"
	FrameDelete  FrameType = "delete"
	FrameDiscard FrameType = "discard"
	FrameTyping  FrameType = "typing"
	FrameReload  FrameType = "reload"
	FramePing    FrameType = "ping"
)

// Server to client.
const (
	FrameHello  FrameType = "hello"
	FrameView   FrameType = "view"
	FrameNotice FrameType = "notice"
	FrameAck    FrameType = "ack"
	FrameError  FrameType = "error"
	FramePong   FrameType = "pong"
)

// Handler serves one inbound frame type for a session.
type Handler interface {
	Type() FrameType
	Handle(ctx context.Context, s *Session, f InFrame) error
}

// TypingLister reports who is typing in a channel.
type TypingLister interface {
	Typing(ctx context.Context, channelID model.ChannelID) ([]model.User, error)
}
