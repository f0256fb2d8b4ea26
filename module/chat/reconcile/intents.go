package reconcile

import (
	"context"
	"strings"

	"AirChat/module/chat/model"
	"AirChat/tools/errs"
)

// SendText creates a message authored by the current user and sends it.
func (e *Engine) SendText(ctx context.Context, text string) (model.MessageID, error) {
	if strings.TrimSpace(text) == "" {
		return "", errs.ErrArgs.WrapMsg("empty message")
	}
	msg := model.NewMessage(text, e.me)
	if err := e.SendMessage(ctx, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// SendMessage sends a prepared message. It must be authored by the
// current user and carry an id the engine has not seen.
func (e *Engine) SendMessage(ctx context.Context, msg model.Message) error {
	if msg.ID == "" {
		return errs.ErrArgs.WrapMsg("message without id")
	}
	if !msg.IsFrom(e.me) {
		return errs.ErrArgs.WrapMsg("message not authored by current user", "message", msg.ID)
	}
	return e.call(ctx, func() error {
		eventsTotal.WithLabelValues("send").Inc()
		if e.present(msg.ID) {
			return e.reject(msg.ID, "message already present")
		}
		e.insert(msg)
		e.setState(msg.ID, PendingWrite)
		e.write(msg)
		return nil
	})
}

// Resend retries a message whose send failed.
func (e *Engine) Resend(ctx context.Context, id model.MessageID) error {
	return e.call(ctx, func() error {
		eventsTotal.WithLabelValues("resend").Inc()
		if e.stateOf(id) != SendError || !e.present(id) {
			return e.reject(id, "message is not in error state")
		}
		e.setState(id, PendingWrite)
		e.write(e.byID[id])
		return nil
	})
}

// DiscardFailedSend drops a message whose send failed.
func (e *Engine) DiscardFailedSend(ctx context.Context, id model.MessageID) error {
	return e.call(ctx, func() error {
		eventsTotal.WithLabelValues("discard").Inc()
		if e.stateOf(id) != SendError || !e.present(id) {
			return e.reject(id, "message is not in error state")
		}
		e.remove(id)
		return nil
	})
}

// DeleteOwnMessage deletes a message the current user wrote. Messages in
// error state are deleted too, which also clears the error.
func (e *Engine) DeleteOwnMessage(ctx context.Context, id model.MessageID) error {
	return e.call(ctx, func() error {
		eventsTotal.WithLabelValues("delete").Inc()
		msg, ok := e.byID[id]
		if !ok {
			return e.reject(id, "unknown message")
		}
		if !msg.IsFrom(e.me) {
			return e.reject(id, "message belongs to another user")
		}
		switch e.stateOf(id) {
		case Normal, SendError:
		default:
			return e.reject(id, "message has a write in flight")
		}
		e.setState(id, PendingDelete)
		var call uint64
		c := e.ref.Delete(e.ctx, msg, func(err error) {
			e.box.post(func() { e.deleteDone(call, id, err) })
		})
		call = e.track(c)
		return nil
	})
}

// Reload asks the backend for an authoritative snapshot. The local cache
// is skipped so the current list stays in place until it arrives.
func (e *Engine) Reload(ctx context.Context) error {
	return e.call(ctx, func() error {
		e.loading = true
		e.dirty = true
		e.load(false)
		return nil
	})
}

func (e *Engine) reject(id model.MessageID, why string) error {
	err := errs.ErrRejected.WrapMsg(why, "message", id)
	e.notify(Notice{Kind: Rejected, MessageID: id, Err: err})
	return err
}

func (e *Engine) write(msg model.Message) {
	var call uint64
	c := e.ref.Send(e.ctx, msg, func(err error) {
		e.box.post(func() { e.writeDone(call, msg.ID, err) })
	})
	call = e.track(c)
}

// writeDone only handles failure; success arrives as a confirmed Added.
func (e *Engine) writeDone(call uint64, id model.MessageID, err error) {
	delete(e.calls, call)
	if err == nil {
		return
	}
	if e.stateOf(id) != PendingWrite {
		return
	}
	e.setState(id, SendError)
	e.notify(Notice{Kind: WriteFailed, MessageID: id, Err: err})
}

func (e *Engine) deleteDone(call uint64, id model.MessageID, err error) {
	delete(e.calls, call)
	if err == nil {
		return
	}
	if e.stateOf(id) != PendingDelete {
		return
	}
	e.setState(id, Normal)
	e.notify(Notice{Kind: DeleteFailed, MessageID: id, Err: err})
}
