package authclient

import (
	"context"
	"sync/atomic"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// BootstrapResult is the outcome of the login view's self-contained session
// check. Cancelled results are data, not errors: an aborted check must never
// overwrite or race newer state.
type BootstrapResult struct {
	Authenticated bool
	Cancelled     bool
	Session       *GatewaySession
	Err           *goerrors.Error
}

// BootstrapCheck is the login view's independent pre-check, deliberately
// separate from the central machine so the form can decide "already signed
// in?" without waiting on global state. Cancellation is the caller's
// context, checked after every suspension point; the in-flight network call
// is not aborted, its late result is simply discarded.
type BootstrapCheck struct {
	gateway      Gateway
	store        SessionStore
	markerSuffix string
	timeout      time.Duration
	logger       Logger
	navigator    Navigator
	target       string

	redirected atomic.Bool
}

type BootstrapOption func(*BootstrapCheck)

func WithBootstrapStore(store SessionStore) BootstrapOption {
	return func(b *BootstrapCheck) {
		b.store = store
	}
}

func WithBootstrapTimeout(d time.Duration) BootstrapOption {
	return func(b *BootstrapCheck) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func WithBootstrapMarkerSuffix(suffix string) BootstrapOption {
	return func(b *BootstrapCheck) {
		if suffix != "" {
			b.markerSuffix = suffix
		}
	}
}

// WithBootstrapRedirect navigates to target when a live session is found.
// The navigation fires at most once per check instance.
func WithBootstrapRedirect(navigator Navigator, target string) BootstrapOption {
	return func(b *BootstrapCheck) {
		b.navigator = navigator
		b.target = target
	}
}

func WithBootstrapLogger(logger Logger) BootstrapOption {
	return func(b *BootstrapCheck) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func NewBootstrapCheck(gateway Gateway, opts ...BootstrapOption) *BootstrapCheck {
	b := &BootstrapCheck{
		gateway:      gateway,
		store:        NewMemoryStore(),
		markerSuffix: DefaultMarkerSuffix,
		timeout:      DefaultVerifyTimeout,
		logger:       defLogger{},
		target:       "/",
	}

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	return b
}

// Run performs the check: local marker heuristic first, then a bounded
// session verification. Failures (including timeout, distinguishable via
// IsTimeoutError) leave the caller free to show the form.
func (b *BootstrapCheck) Run(ctx context.Context) BootstrapResult {
	if !LikelyAuthenticated(b.store, b.markerSuffix) {
		return BootstrapResult{}
	}

	if isCancelled(ctx) {
		return BootstrapResult{Cancelled: true}
	}

	session, err := raceSession(ctx, b.timeout, "login pre-check", b.gateway.GetSession)

	if isCancelled(ctx) {
		return BootstrapResult{Cancelled: true}
	}

	if err != nil {
		mapped := MapGatewayError(err)
		b.logger.Warn("login pre-check failed: %s", mapped.Message)
		return BootstrapResult{Err: mapped}
	}

	if session == nil || session.User == nil || session.Expired(time.Now()) {
		return BootstrapResult{}
	}

	result := BootstrapResult{
		Authenticated: true,
		Session:       session,
	}

	if b.navigator != nil {
		b.redirectOnce()
	}

	return result
}

// redirectOnce guards against double navigation when a check overlaps a
// user-driven transition.
func (b *BootstrapCheck) redirectOnce() {
	if !b.redirected.CompareAndSwap(false, true) {
		return
	}

	if err := b.navigator.Navigate(b.target); err != nil {
		b.logger.Warn("pre-check redirect to %s failed: %v", b.target, err)
	}
}
