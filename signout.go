package authclient

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// SignOutConfig controls the enhanced cleanup routine.
type SignOutConfig struct {
	// ClearStorage also removes persisted session markers.
	ClearStorage bool
	// RedirectToLogin issues a navigation once cleanup ran.
	RedirectToLogin bool
	// RedirectURL overrides the default login location.
	RedirectURL string
	// Navigator receives the redirect. Required when RedirectToLogin is set.
	Navigator Navigator
}

// DefaultLoginURL is the fallback navigation target after sign out.
const DefaultLoginURL = "/login"

// CleanupStep names one stage of the enhanced sign-out routine.
type CleanupStep string

const (
	StepBusinessContext CleanupStep = "business_context"
	StepRemoteSignOut   CleanupStep = "remote_sign_out"
	StepLocalStorage    CleanupStep = "local_storage"
	StepNavigation      CleanupStep = "navigation"
)

// StepResult reports one cleanup stage's outcome.
type StepResult struct {
	Step    CleanupStep
	Success bool
	Err     error
}

// SignOutResult is returned verbatim to the caller: overall success plus the
// per-step breakdown.
type SignOutResult struct {
	Success bool
	Steps   []StepResult
}

func (r *SignOutResult) record(step CleanupStep, err error) {
	r.Steps = append(r.Steps, StepResult{
		Step:    step,
		Success: err == nil,
		Err:     err,
	})
	if err != nil {
		r.Success = false
	}
}

// EnhancedSignOut runs the richer cleanup routine: business context, remote
// revocation, persisted storage, optional navigation. Whatever fails, local
// state is forced to unauthenticated before returning; a logout attempt
// never leaves the machine authenticated or signing out. A remote timeout
// after local cleanup counts as success; any other remote failure is
// reflected in the result AND returned, never silently folded into success.
func (m *Machine) EnhancedSignOut(ctx context.Context, cfg SignOutConfig) (*SignOutResult, error) {
	snap := m.Snapshot()
	if snap.Status == StatusAuthenticated {
		m.commitBump(Snapshot{Status: StatusSigningOut})
	}

	result := &SignOutResult{Success: true}

	var userID string
	if snap.User != nil {
		userID = snap.User.ID
	}

	// local state must settle no matter which step fails
	defer func() {
		m.commitBump(Snapshot{Status: StatusUnauthenticated})
	}()

	result.record(StepBusinessContext, m.business.ClearBusinessContext(ctx))

	remoteErr := raceErr(ctx, m.signOutTimeout, "sign out", func(ctx context.Context) error {
		if gerr := m.facade.SignOut(ctx); gerr != nil {
			return gerr
		}
		return nil
	})
	if IsTimeoutError(remoteErr) {
		m.logger.Warn("remote sign out timed out, treating as success after local cleanup")
		remoteErr = nil
	}
	result.record(StepRemoteSignOut, remoteErr)

	if cfg.ClearStorage {
		result.record(StepLocalStorage, ClearMarkers(m.store, m.markerSuffix))
	}

	if cfg.RedirectToLogin {
		target := cfg.RedirectURL
		if target == "" {
			target = DefaultLoginURL
		}
		if cfg.Navigator == nil {
			result.record(StepNavigation, goerrors.New("no navigator configured for redirect", goerrors.CategoryBadInput))
		} else {
			result.record(StepNavigation, cfg.Navigator.Navigate(target))
		}
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: logoutEventType(result.Success),
		UserID:    userID,
		Metadata:  map[string]any{"steps": len(result.Steps)},
	})

	if remoteErr != nil {
		return result, remoteErr
	}
	return result, nil
}

func logoutEventType(success bool) ActivityEventType {
	if success {
		return ActivityEventLogoutSuccess
	}
	return ActivityEventLogoutFailure
}
