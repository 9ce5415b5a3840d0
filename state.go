package authclient

import (
	goerrors "github.com/goliatone/go-errors"
)

// Status is the machine's authentication status. Exactly one is active at a time.
type Status string

const (
	// StatusInitializing is the entry state while the stored session is verified.
	StatusInitializing Status = "initializing"
	// StatusUnauthenticated means no live session; Err may describe why.
	StatusUnauthenticated Status = "unauthenticated"
	// StatusAuthenticating is transient during a credential operation.
	StatusAuthenticating Status = "authenticating"
	// StatusAuthenticated means User is populated and Err is nil.
	StatusAuthenticated Status = "authenticated"
	// StatusSigningOut is transient, entered only from authenticated.
	StatusSigningOut Status = "signing_out"
)

// Transient reports whether the status is a loading state.
func (s Status) Transient() bool {
	switch s {
	case StatusInitializing, StatusAuthenticating, StatusSigningOut:
		return true
	}
	return false
}

// Snapshot is the machine's externally visible state. It is a value; every
// transition publishes a fresh one.
type Snapshot struct {
	Status     Status
	User       *Identity
	BusinessID string
	Err        *goerrors.Error
}

// IsLoading is true exactly while the status is transient.
func (s Snapshot) IsLoading() bool {
	return s.Status.Transient()
}

// CheckInvariants verifies the cross-transition rules: User is non-nil iff
// authenticated, and Err only accompanies unauthenticated.
func (s Snapshot) CheckInvariants() error {
	if (s.User != nil) != (s.Status == StatusAuthenticated) {
		return goerrors.New("user presence does not match status", goerrors.CategoryInternal).
			WithMetadata(map[string]any{
				"status":   s.Status,
				"has_user": s.User != nil,
			})
	}

	if s.Err != nil && s.Status != StatusUnauthenticated {
		return goerrors.New("error carried outside unauthenticated status", goerrors.CategoryInternal).
			WithMetadata(map[string]any{
				"status": s.Status,
			})
	}

	return nil
}
