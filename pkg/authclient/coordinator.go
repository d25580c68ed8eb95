package authclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// refreshCoordinator collapses concurrent session refreshes into a single
// upstream call.
//
// When several in-flight requests fail with 401 at the same time, exactly
// one of them (the leader) performs the refresh; the rest enqueue a
// continuation and wait. The leader settles every continuation in FIFO
// order with the refresh outcome, then each waiter replays its original
// request. Unlike an event-loop client, goroutines race for the leader
// role, so the IDLE->REFRESHING transition and the enqueue decision happen
// inside one mutex-guarded critical section.
type refreshCoordinator struct {
	mu         sync.Mutex
	refreshing bool
	pending    []chan error // FIFO continuation queue, non-empty only while refreshing

	refreshFn   func(context.Context) error
	nav         Navigator
	loginPath   string
	publicPaths map[string]struct{}
	log         *slog.Logger
}

func newRefreshCoordinator(
	refreshFn func(context.Context) error,
	nav Navigator,
	loginPath string,
	publicPaths []string,
	log *slog.Logger,
) *refreshCoordinator {
	public := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = struct{}{}
	}

	return &refreshCoordinator{
		refreshFn:   refreshFn,
		nav:         nav,
		loginPath:   loginPath,
		publicPaths: public,
		log:         log,
	}
}

// refresh ensures exactly one refresh call runs per expiry episode.
//
// It returns nil once a refresh has succeeded (the caller should replay its
// original request) or an error wrapping ErrRefreshExhausted when the
// refresh failed (the caller must propagate it, no replay).
func (rc *refreshCoordinator) refresh(ctx context.Context) error {
	rc.mu.Lock()

	if rc.refreshing {
		// A refresh is already in flight: enqueue a continuation and wait
		// for the leader to settle it.
		wait := make(chan error, 1)
		rc.pending = append(rc.pending, wait)
		rc.mu.Unlock()

		select {
		case err := <-wait:
			return err
		case <-ctx.Done():
			// The continuation still gets settled by the leader; the
			// buffered channel means that never blocks.
			return ctx.Err()
		}
	}

	// This request becomes the leader.
	rc.refreshing = true
	rc.mu.Unlock()

	err := rc.refreshFn(ctx)

	// Cancellation of the leader's context says nothing about the session;
	// the refresh credential may still be perfectly valid. Surface the ctx
	// error as-is and leave the user where they are.
	aborted := err != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
	if err != nil && !aborted {
		err = fmt.Errorf("%w: %w", ErrRefreshExhausted, err)
	}

	// Drain the queue and reset state in one critical section, so no
	// request ever observes refreshing=false with a non-empty queue.
	rc.mu.Lock()
	waiters := rc.pending
	rc.pending = nil
	rc.refreshing = false
	rc.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
		close(ch)
	}

	if err != nil {
		rc.log.Warn("session refresh failed",
			"queued_requests", len(waiters),
			"err", err,
		)
		if !aborted {
			rc.redirectToLogin()
		}
		return err
	}

	rc.log.Debug("session refreshed", "queued_requests", len(waiters))
	return nil
}

// redirectToLogin sends the user to the login entry point unless they are
// already on a public destination.
func (rc *refreshCoordinator) redirectToLogin() {
	if rc.nav == nil {
		return
	}
	if _, ok := rc.publicPaths[rc.nav.CurrentPath()]; ok {
		return
	}
	rc.nav.NavigateTo(rc.loginPath)
}
