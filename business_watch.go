package authclient

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// ResolveState is the loading/error/value triple exposed to views waiting on
// business context resolution.
type ResolveState struct {
	Loading    bool
	BusinessID string
	Err        *goerrors.Error
}

// BusinessWatcher layers the async resolution + auto-select dance on top of
// the machine: whenever the machine settles authenticated, the watcher
// resolves the business id and publishes a ResolveState; on sign out it
// resets to an empty, non-loading state.
type BusinessWatcher struct {
	machine    *Machine
	autoSelect bool
	logger     Logger

	mu       sync.Mutex
	state    ResolveState
	watchers map[int]func(ResolveState)
	nextID   int
	seq      uint64
	stop     func()
}

type BusinessWatcherOption func(*BusinessWatcher)

// WithAutoSelect enables single-membership auto selection during resolution.
func WithAutoSelect(enabled bool) BusinessWatcherOption {
	return func(w *BusinessWatcher) {
		w.autoSelect = enabled
	}
}

func WithWatcherLogger(logger Logger) BusinessWatcherOption {
	return func(w *BusinessWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewBusinessWatcher binds a watcher to the machine. Call Start to begin
// following transitions and Stop on teardown.
func NewBusinessWatcher(machine *Machine, opts ...BusinessWatcherOption) *BusinessWatcher {
	w := &BusinessWatcher{
		machine:  machine,
		logger:   defLogger{},
		state:    ResolveState{},
		watchers: map[int]func(ResolveState){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	return w
}

// Start subscribes to machine transitions. Idempotent.
func (w *BusinessWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.stop != nil {
		w.mu.Unlock()
		return
	}
	w.stop = w.machine.Subscribe(func(snap Snapshot) {
		w.onTransition(ctx, snap)
	})
	w.mu.Unlock()

	w.onTransition(ctx, w.machine.Snapshot())
}

// Stop unsubscribes from the machine.
func (w *BusinessWatcher) Stop() {
	w.mu.Lock()
	stop := w.stop
	w.stop = nil
	w.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// State returns the current resolve triple.
func (w *BusinessWatcher) State() ResolveState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Watch registers a callback for resolve state changes; returns unsubscribe.
func (w *BusinessWatcher) Watch(fn func(ResolveState)) func() {
	if fn == nil {
		return func() {}
	}

	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.watchers[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.watchers, id)
		w.mu.Unlock()
	}
}

func (w *BusinessWatcher) onTransition(ctx context.Context, snap Snapshot) {
	switch snap.Status {
	case StatusAuthenticated:
		w.resolve(ctx, snap)
	case StatusUnauthenticated:
		w.mu.Lock()
		w.seq++
		seq := w.seq
		w.mu.Unlock()
		w.publish(seq, ResolveState{})
	}
}

// resolve runs the async lookup. A sequence number keeps a slow resolution
// for a previous session from clobbering a newer one.
func (w *BusinessWatcher) resolve(ctx context.Context, snap Snapshot) {
	w.mu.Lock()
	w.seq++
	seq := w.seq
	w.mu.Unlock()

	if snap.BusinessID != "" {
		w.publish(seq, ResolveState{BusinessID: snap.BusinessID})
		return
	}

	w.publish(seq, ResolveState{Loading: true})

	var userID string
	if snap.User != nil {
		userID = snap.User.ID
	}

	businessID, err := w.machine.Business().CurrentBusinessIDAsync(ctx, ResolveOptions{
		AutoSelect: w.autoSelect,
		UserID:     userID,
	})
	if err != nil {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			richErr = goerrors.Wrap(err, goerrors.CategoryOperation, "business resolution failed")
		}
		w.logger.Warn("business resolution failed for %s: %s", userID, richErr.Message)
		w.publish(seq, ResolveState{Err: richErr})
		return
	}

	w.publish(seq, ResolveState{BusinessID: businessID})
}

func (w *BusinessWatcher) publish(seq uint64, state ResolveState) {
	w.mu.Lock()
	if seq != w.seq {
		w.mu.Unlock()
		return
	}
	w.state = state
	watchers := make([]func(ResolveState), 0, len(w.watchers))
	for _, fn := range w.watchers {
		watchers = append(watchers, fn)
	}
	w.mu.Unlock()

	for _, fn := range watchers {
		fn(state)
	}
}
