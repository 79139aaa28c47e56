package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrWaitTimeout is returned by Poll when the condition never held
// within the timeout budget.
var ErrWaitTimeout = errors.New("condition not met before timeout")

// Poll evaluates cond immediately and then every interval until it
// reports true, the timeout elapses, or ctx is cancelled. It replaces
// blind sleeps after page actions: the caller states what "settled"
// means and Poll waits exactly that long.
func Poll(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w (after %s)", ErrWaitTimeout, timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// WaitReady polls the document ready-state until it reaches "complete".
func WaitReady(ctx context.Context, s Session, interval, timeout time.Duration) error {
	return Poll(ctx, interval, timeout, func(ctx context.Context) (bool, error) {
		state, err := s.ReadyState(ctx)
		if err != nil {
			return false, err
		}
		return state == "complete", nil
	})
}

// Sleep waits for d or until ctx is cancelled. A non-positive d returns
// immediately.
func Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
