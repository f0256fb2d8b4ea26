package channel

import (
	"context"

	"AirChat/module/chat/model"
	"AirChat/tools/errs"
)

// Membership, visibility and paging are declared for completeness; they
// complete with ErrNotSupported.

func (r *reference) unsupported(ctx context.Context, op string, done func(error)) Cancellable {
	c := r.newCall(ctx)
	r.async(c, func() {
		c.finish(func() {
			if done != nil {
				done(errs.ErrNotSupported.WrapMsg(op, "channel", r.id))
			}
		})
	})
	return c
}

func (r *reference) StartWatching(ctx context.Context, done func(error)) Cancellable {
	return r.unsupported(ctx, "start watching", done)
}

func (r *reference) StopWatching(ctx context.Context, done func(error)) Cancellable {
	return r.unsupported(ctx, "stop watching", done)
}

func (r *reference) LoadPage(ctx context.Context, _ Pagination, done func(error)) Cancellable {
	return r.unsupported(ctx, "load page", done)
}

func (r *reference) Hide(ctx context.Context, _ bool, done func(error)) Cancellable {
	return r.unsupported(ctx, "hide", done)
}

func (r *reference) Show(ctx context.Context, done func(error)) Cancellable {
	return r.unsupported(ctx, "show", done)
}

func (r *reference) Ban(ctx context.Context, _ model.Member, done func(error)) Cancellable {
	return r.unsupported(ctx, "ban", done)
}

func (r *reference) AddMembers(ctx context.Context, _ []model.Member, done func(error)) Cancellable {
	return r.unsupported(ctx, "add members", done)
}

func (r *reference) RemoveMembers(ctx context.Context, _ []model.Member, done func(error)) Cancellable {
	return r.unsupported(ctx, "remove members", done)
}

func (r *reference) Invite(ctx context.Context, _ []model.Member, done func(error)) Cancellable {
	return r.unsupported(ctx, "invite", done)
}

func (r *reference) AcceptInvite(ctx context.Context, _ *model.Message, done func(error)) Cancellable {
	return r.unsupported(ctx, "accept invite", done)
}

func (r *reference) RejectInvite(ctx context.Context, _ *model.Message, done func(error)) Cancellable {
	return r.unsupported(ctx, "reject invite", done)
}

func (r *reference) MarkRead(ctx context.Context, done func(error)) Cancellable {
	return r.unsupported(ctx, "mark read", done)
}

func (r *reference) DeleteChannel(ctx context.Context, done func(error)) Cancellable {
	return r.unsupported(ctx, "delete channel", done)
}
