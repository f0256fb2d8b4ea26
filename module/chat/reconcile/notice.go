package reconcile

import "AirChat/module/chat/model"

type NoticeKind string

const (
	LoadFailed   NoticeKind = "load_failed"
	WriteFailed  NoticeKind = "write_failed"
	DeleteFailed NoticeKind = "delete_failed"
	Rejected     NoticeKind = "rejected"
)

// Notice reports a failure the presentation layer should surface.
type Notice struct {
	Kind      NoticeKind      `json:"kind"`
	MessageID model.MessageID `json:"message_id,omitempty"`
	Err       error           `json:"-"`
}

func (n Notice) Text() string {
	if n.Err == nil {
		return string(n.Kind)
	}
	return n.Err.Error()
}
