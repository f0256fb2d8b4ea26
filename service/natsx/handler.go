package natsx

import (
	"context"

	"AirChat/tools/errs"
)

type Message struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

type Handler func(ctx context.Context, msg Message) error

type Middleware func(Handler) Handler

// Chain wraps h so that mws[0] runs first.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recover turns a handler panic into an error.
func Recover() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errs.ErrPanic(r)
				}
			}()
			return next(ctx, msg)
		}
	}
}
