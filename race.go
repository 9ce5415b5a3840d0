package authclient

import (
	"context"
	"time"
)

const (
	// DefaultVerifyTimeout bounds full session verification.
	DefaultVerifyTimeout = 5 * time.Second
	// DefaultSignOutTimeout bounds the remote sign-out call.
	DefaultSignOutTimeout = 2 * time.Second
	// DefaultResolveTimeout bounds business context resolver queries.
	DefaultResolveTimeout = 5 * time.Second
)

type sessionResult struct {
	session *GatewaySession
	err     error
}

// raceSession runs fn against a timer. On timeout it returns ErrTimeout and
// abandons the in-flight call; the caller proceeds exactly as for a
// recoverable failure. A parent cancellation is reported as ErrCancelled, not
// as a timeout. The goroutine's late result is discarded, never written into
// machine state.
func raceSession(parent context.Context, d time.Duration, op string, fn func(context.Context) (*GatewaySession, error)) (*GatewaySession, error) {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()

	ch := make(chan sessionResult, 1)
	go func() {
		session, err := fn(ctx)
		ch <- sessionResult{session: session, err: err}
	}()

	select {
	case <-ctx.Done():
		if parent.Err() == context.Canceled {
			return nil, cancelledError(op, parent.Err())
		}
		return nil, timeoutError(op, ctx.Err())
	case r := <-ch:
		return r.session, r.err
	}
}

// raceErr is raceSession for operations with no payload (sign out).
func raceErr(parent context.Context, d time.Duration, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()

	ch := make(chan error, 1)
	go func() {
		ch <- fn(ctx)
	}()

	select {
	case <-ctx.Done():
		if parent.Err() == context.Canceled {
			return cancelledError(op, parent.Err())
		}
		return timeoutError(op, ctx.Err())
	case err := <-ch:
		return err
	}
}

// raceString is the string-result flavor used by resolver lookups.
func raceString(parent context.Context, d time.Duration, op string, fn func(context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()

	type result struct {
		value string
		err   error
	}

	ch := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		ch <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		if parent.Err() == context.Canceled {
			return "", cancelledError(op, parent.Err())
		}
		return "", timeoutError(op, ctx.Err())
	case r := <-ch:
		return r.value, r.err
	}
}
