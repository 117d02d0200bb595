package root

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Handler consumes published messages until its inbox closes.
type Handler interface {
	PID() uuid.UUID
	Process(ctx context.Context) error
}

// Serve starts every handler and returns a function that waits for all of
// them. The first handler error cancels the others.
func Serve(ctx context.Context, handlers ...Handler) func() error {
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handlers {
		h := h
		g.Go(func() error {
			return h.Process(gctx)
		})
	}
	return g.Wait
}
