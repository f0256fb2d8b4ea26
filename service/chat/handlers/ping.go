package handlers

import (
	"context"

	"AirChat/service/chat"
)

// TypingHandler relays the composer state; no ack.
type TypingHandler struct{}

func (TypingHandler) Type() chat.FrameType { return chat.FrameTyping }

func (TypingHandler) Handle(ctx context.Context, s *chat.Session, f chat.InFrame) error {
	s.SetTyping(ctx, f.Typing)
	return nil
}

// PingHandler answers application-level pings; browsers cannot send
// websocket ping control frames.
type PingHandler struct{}

func (PingHandler) Type() chat.FrameType { return chat.FramePing }

func (PingHandler) Handle(_ context.Context, s *chat.Session, f chat.InFrame) error {
	s.Reply(chat.BuildPong(f.Seq))
	return nil
}
