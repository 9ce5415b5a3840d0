package authclient

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSessionRestored  ActivityEventType = "session.restore.success"
	ActivityEventSessionLost      ActivityEventType = "session.restore.failure"
	ActivityEventLoginSuccess     ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure     ActivityEventType = "auth.login.failure"
	ActivityEventSignUpSuccess    ActivityEventType = "auth.signup.success"
	ActivityEventSignUpFailure    ActivityEventType = "auth.signup.failure"
	ActivityEventLogoutSuccess    ActivityEventType = "auth.logout.success"
	ActivityEventLogoutFailure    ActivityEventType = "auth.logout.failure"
	ActivityEventBusinessSelected ActivityEventType = "business.context.selected"
	ActivityEventBusinessCleared  ActivityEventType = "business.context.cleared"
)

// ActivityEvent captures audit-friendly information about a transition.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	FromStatus Status
	ToStatus   Status
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best effort; failures are logged, never block a transition.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
