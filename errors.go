package authclient

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
	textCodeEmailNotConfirmed  = "EMAIL_NOT_CONFIRMED"
	textCodeRateLimited        = "RATE_LIMITED"
	textCodeNetwork            = "NETWORK"
	textCodeTimeout            = "TIMEOUT"
	textCodeBusinessContext    = "BUSINESS_CONTEXT"
	textCodeCancelled          = "CANCELLED"
)

// ErrInvalidCredentials is surfaced verbatim to the user on a bad email or password.
var ErrInvalidCredentials = goerrors.New("Invalid email or password", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailNotConfirmed is returned when the gateway rejects an unverified account.
var ErrEmailNotConfirmed = goerrors.New("Email address has not been confirmed", goerrors.CategoryAuth).
	WithTextCode(textCodeEmailNotConfirmed).
	WithCode(goerrors.CodeForbidden)

// ErrRateLimited is returned when the gateway throttles credential operations.
var ErrRateLimited = goerrors.New("Too many attempts, try again later", goerrors.CategoryRateLimit).
	WithTextCode(textCodeRateLimited)

// ErrNetwork wraps transport failures reaching the gateway or resolver.
var ErrNetwork = goerrors.New("network error reaching auth service", goerrors.CategoryOperation).
	WithTextCode(textCodeNetwork)

// ErrTimeout is the distinguished timeout kind. Callers branch on it to pick
// a different recovery path than for a generic failure.
var ErrTimeout = goerrors.New("operation timed out", goerrors.CategoryOperation).
	WithTextCode(textCodeTimeout)

// ErrBusinessContext covers resolver failures. Non fatal during bootstrap,
// fatal for an explicit set.
var ErrBusinessContext = goerrors.New("business context operation failed", goerrors.CategoryOperation).
	WithTextCode(textCodeBusinessContext)

// ErrCancelled marks work abandoned because the caller's context was
// cancelled. Distinct from ErrTimeout so an aborted bootstrap is never
// reported as a slow gateway.
var ErrCancelled = goerrors.New("operation cancelled", goerrors.CategoryOperation).
	WithTextCode(textCodeCancelled)

// IsTimeoutError reports whether err carries the TIMEOUT text code.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCodeTimeout
	}
	return false
}

// IsCancelledError reports whether err carries the CANCELLED text code.
func IsCancelledError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCodeCancelled
	}
	return false
}

// IsCredentialError reports whether err maps to a bad email/password.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCodeInvalidCredentials
	}
	return false
}

// Redirect reasons carried to the onboarding flow when business context
// resolution fails. The guard picks one based on the error kind.
const (
	ReasonNoBusiness = "no-business"
	ReasonTimeout    = "timeout"
	ReasonError      = "error"
)

// ReasonForError maps a resolution failure to a redirect reason. A nil error
// means no business was found rather than a failure.
func ReasonForError(err error) string {
	switch {
	case err == nil:
		return ReasonNoBusiness
	case IsTimeoutError(err):
		return ReasonTimeout
	default:
		return ReasonError
	}
}

// MapGatewayError normalizes an arbitrary gateway failure into the taxonomy.
// Already-rich errors pass through; known provider messages are matched the
// way the UI needs them; everything else is wrapped as an unknown auth error
// preserving the original message.
func MapGatewayError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	if err == context.DeadlineExceeded {
		return timeoutError("gateway call", err)
	}

	if err == context.Canceled {
		return cancelledError("gateway call", err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "Invalid login credentials"):
		return ErrInvalidCredentials.Clone()
	case strings.Contains(msg, "Email not confirmed"):
		return ErrEmailNotConfirmed.Clone()
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return ErrRateLimited.Clone()
	}

	return goerrors.Wrap(err, goerrors.CategoryAuth, msg).
		WithCode(goerrors.CodeUnauthorized)
}

func timeoutError(op string, cause error) *goerrors.Error {
	clone := ErrTimeout.Clone()
	clone.Source = cause
	return clone.WithMetadata(map[string]any{
		"operation": op,
	})
}

func cancelledError(op string, cause error) *goerrors.Error {
	clone := ErrCancelled.Clone()
	clone.Source = cause
	return clone.WithMetadata(map[string]any{
		"operation": op,
	})
}

func businessContextError(msg string, cause error) *goerrors.Error {
	if cause == nil {
		return ErrBusinessContext.Clone().WithMetadata(map[string]any{
			"detail": msg,
		})
	}
	if IsTimeoutError(cause) {
		var richErr *goerrors.Error
		goerrors.As(cause, &richErr)
		return richErr
	}
	return goerrors.Wrap(cause, goerrors.CategoryOperation, msg).
		WithTextCode(textCodeBusinessContext)
}

// cancelledResult marks an aborted bootstrap path. It is reported as data,
// never thrown past the machine boundary.
func isCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
