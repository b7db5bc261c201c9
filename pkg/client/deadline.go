package client

import (
	"context"
	"time"
)

// writeDeadline returns the absolute deadline for a write phase, or the
// zero Time (no deadline) if timeout is non-positive.
func writeDeadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// readDeadline combines the Session's configured read timeout with any
// deadline already present on ctx, picking whichever fires first.
func readDeadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok {
		if d.IsZero() || ctxDeadline.Before(d) {
			d = ctxDeadline
		}
	}
	return d
}
