package approval

import (
	"context"
	"time"

	"github.com/Baalavignesh/Aegis/store"
)

// DecisionFunc decides what to do with a pending request.
// Return true to approve, false to deny.
type DecisionFunc func(r *store.Approval) bool

// AutoDecider starts a goroutine that polls ListPending and applies fn to
// every request.  Call the returned stop (or cancel ctx) to exit.
// Intended for tests and demo operators standing in for a human.
func AutoDecider(ctx context.Context, w *Workflow, fn DecisionFunc, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				requests, _ := w.ListPending(ctx)
				for _, r := range requests {
					_ = w.Decide(ctx, r.ID, fn(r))
				}
			}
		}
	}()
	return func() { close(done) }
}

// AutoApprove automatically approves all pending requests.
func AutoApprove(ctx context.Context, w *Workflow, interval time.Duration) func() {
	return AutoDecider(ctx, w, func(*store.Approval) bool { return true }, interval)
}

// AutoDeny automatically denies all pending requests.
func AutoDeny(ctx context.Context, w *Workflow, interval time.Duration) func() {
	return AutoDecider(ctx, w, func(*store.Approval) bool { return false }, interval)
}
