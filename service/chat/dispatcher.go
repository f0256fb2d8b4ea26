package chat

import (
	"context"

	"AirChat/tools/errs"
)

type Dispatcher struct {
	handlers map[FrameType]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[FrameType]Handler)}
}

// Register replaces any handler of the same type.
func (d *Dispatcher) Register(hs ...Handler) {
	for _, h := range hs {
		d.handlers[h.Type()] = h
	}
}

func (d *Dispatcher) GetHandler(t FrameType) Handler {
	return d.handlers[t]
}

func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, f InFrame) error {
	h, ok := d.handlers[f.Type]
	if !ok {
		return errs.ErrNotSupported.WrapMsg("no handler", "type", string(f.Type))
	}
	return h.Handle(ctx, s, f)
}
