// Package handlers serves the inbound websocket frames of a chat session.
package handlers

import (
	"context"

	"AirChat/service/chat"
	"AirChat/tools/errs"
)

// RegisterDefaults installs every frame handler on d.
func RegisterDefaults(d *chat.Dispatcher) {
	d.Register(
		SendHandler{},
		ResendHandler{},
		DeleteHandler{},
		DiscardHandler{},
		TypingHandler{},
		ReloadHandler{},
		PingHandler{},
	)
}

type SendHandler struct{}

func (SendHandler) Type() chat.FrameType { return chat.FrameSend }

func (SendHandler) Handle(ctx context.Context, s *chat.Session, f chat.InFrame) error {
	if f.Text == "" {
		return errs.ErrArgs.WrapMsg("empty message")
	}
	id, err := s.Engine().SendText(ctx, f.Text)
	if err != nil {
		return err
	}
	s.SetTyping(ctx, false)
	s.Reply(chat.BuildAck(f.Seq, id))
	return nil
}

type ResendHandler struct{}

func (ResendHandler) Type() chat.FrameType { return chat.FrameResend }

func (ResendHandler) Handle(ctx context.Context, s *chat.Session, f chat.InFrame) error {
	return ack(s, f, s.Engine().Resend(ctx, f.ID))
}

type DeleteHandler struct{}

func (DeleteHandler) Type() chat.FrameType { return chat.FrameDelete }

func (DeleteHandler) Handle(ctx context.Context, s *chat.Session, f chat.InFrame) error {
	return ack(s, f, s.Engine().DeleteOwnMessage(ctx, f.ID))
}

type DiscardHandler struct{}

func (DiscardHandler) Type() chat.FrameType { return chat.FrameDiscard }

func (DiscardHandler) Handle(ctx context.Context, s *chat.Session, f chat.InFrame) error {
	return ack(s, f, s.Engine().DiscardFailedSend(ctx, f.ID))
}

type ReloadHandler struct{}

func (ReloadHandler) Type() chat.FrameType { return chat.FrameReload }

func (ReloadHandler) Handle(ctx context.Context, s *chat.Session, f chat.InFrame) error {
	return ack(s, f, s.Engine().Reload(ctx))
}

func ack(s *chat.Session, f chat.InFrame, err error) error {
	if err != nil {
		return err
	}
	s.Reply(chat.BuildAck(f.Seq, f.ID))
	return nil
}
