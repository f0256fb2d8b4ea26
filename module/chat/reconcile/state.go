package reconcile

import (
	"AirChat/module/chat/model"
	"AirChat/tools/errs"
)

// State is the reconciliation state of one message id.
type State int

const (
	Normal State = iota
	PendingWrite
	SendError
	PendingDelete
)

func (s State) String() string {
	switch s {
	case PendingWrite:
		return "pending_write"
	case SendError:
		return "send_error"
	case PendingDelete:
		return "pending_delete"
	default:
		return "normal"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "normal":
		*s = Normal
	case "pending_write":
		*s = PendingWrite
	case "send_error":
		*s = SendError
	case "pending_delete":
		*s = PendingDelete
	default:
		return errs.ErrArgs.WrapMsg("unknown state", "state", string(b))
	}
	return nil
}

const (
	errorMark     = "❌ "
	removingLabel = "Removing ..."
)

// Label is the text shown for m in state s.
func Label(m model.Message, s State) string {
	switch s {
	case SendError:
		return errorMark + m.Text
	case PendingDelete:
		return removingLabel
	default:
		return m.Text
	}
}

// Item is one row of the view.
type Item struct {
	Message model.Message `json:"message"`
	State   State         `json:"state"`
	Label   string        `json:"label"`
	Mine    bool          `json:"mine"`
}

func (it Item) IsPendingWrite() bool  { return it.State == PendingWrite }
func (it Item) IsInErrorState() bool  { return it.State == SendError }
func (it Item) IsPendingDelete() bool { return it.State == PendingDelete }

// View is an immutable picture of the engine's state. Version grows with
// every published change.
type View struct {
	Version uint64        `json:"version"`
	Channel model.Channel `json:"channel"`
	Items   []Item        `json:"items"`
	Loading bool          `json:"loading"`
	Typing  []model.User  `json:"typing"`
}

func (v View) Find(id model.MessageID) (Item, bool) {
	for _, it := range v.Items {
		if it.Message.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// TypingText is the "X is typing..." line, empty when nobody types.
func (v View) TypingText() string {
	switch len(v.Typing) {
	case 0:
		return ""
	case 1:
		return v.Typing[0].Name + " is typing..."
	default:
		return "Several people are typing..."
	}
}
