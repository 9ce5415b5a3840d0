package authclient

import (
	"sync"
	"time"
)

// idleTimer is the default IdleTimer: a resettable wall-clock timer that
// fires onExpire once per initialized session.
type idleTimer struct {
	mu       sync.Mutex
	timeout  time.Duration
	onExpire func()
	timer    *time.Timer
	active   bool
}

// NewIdleTimer builds the default inactivity timer. onExpire runs on the
// timer goroutine; callers typically pass the machine's SignOut.
func NewIdleTimer(timeout time.Duration, onExpire func()) IdleTimer {
	return &idleTimer{
		timeout:  timeout,
		onExpire: onExpire,
	}
}

func (t *idleTimer) Initialize() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active = true
	t.arm()
}

func (t *idleTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return
	}
	t.arm()
}

func (t *idleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *idleTimer) arm() {
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.timeout <= 0 || t.onExpire == nil {
		return
	}
	t.timer = time.AfterFunc(t.timeout, t.fire)
}

func (t *idleTimer) fire() {
	t.mu.Lock()
	active := t.active
	t.active = false
	t.mu.Unlock()

	if active {
		t.onExpire()
	}
}

type noopIdleTimer struct{}

func (noopIdleTimer) Initialize() {}
func (noopIdleTimer) Reset()      {}
func (noopIdleTimer) Stop()       {}

func normalizeIdleTimer(t IdleTimer) IdleTimer {
	if t == nil {
		return noopIdleTimer{}
	}
	return t
}
