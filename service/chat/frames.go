package chat

import (
	"encoding/json"
	"errors"
	"time"

	"AirChat/module/chat/model"
	"AirChat/module/chat/reconcile"
	"AirChat/tools/errs"
)

// InFrame is a client request. Seq is echoed in the ack or error.
type InFrame struct {
	Type   FrameType       `json:"type"`
	Seq    int64           `json:"seq,omitempty"`
	Text   string          `json:"text,omitempty"`
	ID     model.MessageID `json:"id,omitempty"`
	Typing bool            `json:"typing,omitempty"`
}

type NoticeBody struct {
	Kind      reconcile.NoticeKind `json:"kind"`
	MessageID model.MessageID      `json:"message_id,omitempty"`
	Text      string               `json:"text"`
}

type OutFrame struct {
	Type    FrameType       `json:"type"`
	Seq     int64           `json:"seq,omitempty"`
	Ts      int64           `json:"ts"`
	Session string          `json:"session,omitempty"`
	User    *model.User     `json:"user,omitempty"`
	View    *reconcile.View `json:"view,omitempty"`
	Notice  *NoticeBody     `json:"notice,omitempty"`
	ID      model.MessageID `json:"id,omitempty"`
	Error   *errs.CodeError `json:"error,omitempty"`
}

func ParseFrameJSON(raw []byte) (InFrame, error) {
	var f InFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return InFrame{}, errs.ErrArgs.WrapMsg("unmarshal frame failed", "err", err.Error())
	}
	if f.Type == "" {
		return InFrame{}, errs.ErrArgs.WrapMsg("frame type missing")
	}
	return f, nil
}

func now() int64 { return time.Now().UnixMilli() }

func BuildHello(sessionID string, u model.User) OutFrame {
	return OutFrame{Type: FrameHello, Ts: now(), Session: sessionID, User: &u}
}

func BuildView(v reconcile.View) OutFrame {
	return OutFrame{Type: FrameView, Ts: now(), View: &v}
}

func BuildNotice(n reconcile.Notice) OutFrame {
	return OutFrame{Type: FrameNotice, Ts: now(), Notice: &NoticeBody{
		Kind:      n.Kind,
		MessageID: n.MessageID,
		Text:      n.Text(),
	}}
}

func BuildAck(seq int64, id model.MessageID) OutFrame {
	return OutFrame{Type: FrameAck, Seq: seq, Ts: now(), ID: id}
}

// BuildError exposes the code error behind err; anything else is internal.
func BuildError(seq int64, err error) OutFrame {
	var ce *errs.CodeError
	if !errors.As(err, &ce) {
		ce = errs.ErrInternalServer.WithDetail(err.Error())
	}
	return OutFrame{Type: FrameError, Seq: seq, Ts: now(), Error: ce}
}

func BuildPong(seq int64) OutFrame {
	return OutFrame{Type: FramePong, Seq: seq, Ts: now()}
}
