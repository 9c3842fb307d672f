package httpapi

import (
	"context"
	"errors"
	"net/http"
)

// errShuttingDown is the cancel cause of submissions cut off by shutdown.
var errShuttingDown = errors.New("server shutting down")

// shutdownCtx ends when the server starts draining.
var shutdownCtx = context.Background()

// SetBaseContext ties submissions to ctx: once it is done, submissions still
// being recorded are aborted. nil resets to a context that never ends.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx = ctx
}

// withShutdown derives from parent and is also cancelled, with cause
// errShuttingDown, when base ends.
func withShutdown(parent, base context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	stop := context.AfterFunc(base, func() { cancel(errShuttingDown) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// submitContext bounds the recording of a submission by the request, the
// server lifetime and the configured submit timeout.
func (a *api) submitContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := withShutdown(r.Context(), shutdownCtx)
	if submitTimeout <= 0 {
		return ctx, cancel
	}
	tctx, tcancel := context.WithTimeout(ctx, submitTimeout)
	return tctx, func() { tcancel(); cancel() }
}
