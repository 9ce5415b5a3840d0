package authclient

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Gateway is the remote hosted auth service. Implementations normalize the
// provider's wire format; callers only ever see these shapes. A nil session
// with a nil error from GetSession means "no active session", not a failure.
type Gateway interface {
	SignIn(ctx context.Context, email, password string) (*GatewaySession, error)
	SignUp(ctx context.Context, email, password string) (*GatewaySession, error)
	SignOut(ctx context.Context) error
	GetSession(ctx context.Context) (*GatewaySession, error)
	GetUser(ctx context.Context) (*GatewayUser, error)
	ResetPasswordForEmail(ctx context.Context, email string) error
	UpdateUser(ctx context.Context, update UserUpdate) (*GatewayUser, error)
	VerifyOTP(ctx context.Context, token string, otpType OTPType) (*GatewaySession, error)
	Resend(ctx context.Context, otpType OTPType, email string) error
	OnAuthStateChange(fn func(AuthEvent)) Subscription
}

// BusinessResolver is the remote association service mapping a user to its
// active business. SetActiveBusiness is expected to also establish the remote
// authorization context (row level security claims) for that user.
type BusinessResolver interface {
	ActiveBusiness(ctx context.Context, userID string) (string, error)
	SetActiveBusiness(ctx context.Context, userID, businessID string) error
	ClearActiveBusiness(ctx context.Context, userID string) error
	ListMemberships(ctx context.Context, userID string) ([]Membership, error)
	ValidateAccess(ctx context.Context, userID, businessID string) (bool, error)
}

// Membership is one user's association to a business as reported by the resolver.
type Membership struct {
	BusinessID   string
	BusinessName string
	Role         string
	Active       bool
}

// SessionStore persists local session markers (cookies, keychain entries).
// Presence of a marker is a heuristic only, never proof of a live session.
type SessionStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Keys() ([]string, error)
}

// Navigator performs redirects on behalf of cleanup routines. In a server
// composition this is typically bound to the response; tests inject fakes.
type Navigator interface {
	Navigate(url string) error
}

// NavigatorFunc adapts a function into a Navigator.
type NavigatorFunc func(url string) error

func (f NavigatorFunc) Navigate(url string) error {
	if f == nil {
		return nil
	}
	return f(url)
}

// IdleTimer tracks session inactivity. It is injected at construction time;
// the machine initializes it when a session settles and stops it on sign out.
type IdleTimer interface {
	Initialize()
	Reset()
	Stop()
}

// Subscription is a handle to an auth event stream registration.
type Subscription interface {
	Unsubscribe()
}

// Config holds machine options sourced from application configuration.
type Config interface {
	GetVerifyTimeout() time.Duration
	GetSignOutTimeout() time.Duration
	GetMarkerSuffix() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHC "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHC "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHC "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHC "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
