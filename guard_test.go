package authclient_test

import (
	"testing"

	"github.com/goliatone/go-authclient"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateRouteWhileLoading(t *testing.T) {
	for _, status := range []authclient.Status{
		authclient.StatusInitializing,
		authclient.StatusAuthenticating,
		authclient.StatusSigningOut,
	} {
		result := authclient.EvaluateRoute(
			authclient.Snapshot{Status: status},
			authclient.ResolveState{},
			"/dashboard",
			false,
			authclient.DefaultGuardRoutes,
		)
		assert.Equal(t, authclient.DecisionPending, result.Decision, "status %s", status)
	}
}

func TestEvaluateRouteUnauthenticatedRedirectsToLogin(t *testing.T) {
	result := authclient.EvaluateRoute(
		authclient.Snapshot{Status: authclient.StatusUnauthenticated},
		authclient.ResolveState{},
		"/reports/monthly?tab=2",
		false,
		authclient.DefaultGuardRoutes,
	)

	assert.Equal(t, authclient.DecisionRedirectLogin, result.Decision)
	assert.Equal(t, "/login?return_to=%2Freports%2Fmonthly%3Ftab%3D2", result.Location)
}

func TestEvaluateRouteAuthenticatedWithoutBusinessRequirement(t *testing.T) {
	result := authclient.EvaluateRoute(
		authclient.Snapshot{
			Status: authclient.StatusAuthenticated,
			User:   &authclient.Identity{ID: "user-1"},
		},
		authclient.ResolveState{},
		"/dashboard",
		false,
		authclient.DefaultGuardRoutes,
	)

	assert.Equal(t, authclient.DecisionAllow, result.Decision)
}

func TestEvaluateRoutePendingWhileBusinessResolves(t *testing.T) {
	result := authclient.EvaluateRoute(
		authclient.Snapshot{
			Status: authclient.StatusAuthenticated,
			User:   &authclient.Identity{ID: "user-1"},
		},
		authclient.ResolveState{Loading: true},
		"/dashboard",
		true,
		authclient.DefaultGuardRoutes,
	)

	assert.Equal(t, authclient.DecisionPending, result.Decision)
}

func TestEvaluateRouteNoBusinessRedirectsToOnboarding(t *testing.T) {
	result := authclient.EvaluateRoute(
		authclient.Snapshot{
			Status: authclient.StatusAuthenticated,
			User:   &authclient.Identity{ID: "user-1"},
		},
		authclient.ResolveState{},
		"/dashboard",
		true,
		authclient.DefaultGuardRoutes,
	)

	assert.Equal(t, authclient.DecisionRedirectOnboarding, result.Decision)
	assert.Equal(t, authclient.ReasonNoBusiness, result.Reason)
	assert.Equal(t, "/business/register?reason=no-business", result.Location)
}

func TestEvaluateRouteResolutionTimeoutReason(t *testing.T) {
	timeoutErr := authclient.ErrTimeout.Clone()

	result := authclient.EvaluateRoute(
		authclient.Snapshot{
			Status: authclient.StatusAuthenticated,
			User:   &authclient.Identity{ID: "user-1"},
		},
		authclient.ResolveState{Err: timeoutErr},
		"/dashboard",
		true,
		authclient.DefaultGuardRoutes,
	)

	assert.Equal(t, authclient.DecisionRedirectOnboarding, result.Decision)
	assert.Equal(t, authclient.ReasonTimeout, result.Reason)
	assert.Equal(t, "/business/register?reason=timeout", result.Location)
}

func TestEvaluateRouteResolutionFailureReason(t *testing.T) {
	result := authclient.EvaluateRoute(
		authclient.Snapshot{
			Status: authclient.StatusAuthenticated,
			User:   &authclient.Identity{ID: "user-1"},
		},
		authclient.ResolveState{Err: authclient.ErrNetwork.Clone()},
		"/dashboard",
		true,
		authclient.DefaultGuardRoutes,
	)

	assert.Equal(t, authclient.DecisionRedirectOnboarding, result.Decision)
	assert.Equal(t, authclient.ReasonError, result.Reason)
}

func TestEvaluateRouteSnapshotBusinessFallback(t *testing.T) {
	// the snapshot carries a business id even though the watcher has not
	// republished yet; the route is allowed
	result := authclient.EvaluateRoute(
		authclient.Snapshot{
			Status:     authclient.StatusAuthenticated,
			User:       &authclient.Identity{ID: "user-1"},
			BusinessID: "biz-1",
		},
		authclient.ResolveState{},
		"/dashboard",
		true,
		authclient.DefaultGuardRoutes,
	)

	assert.Equal(t, authclient.DecisionAllow, result.Decision)
}

func TestEvaluateRouteCustomRoutes(t *testing.T) {
	routes := authclient.GuardRoutes{
		Login:      "/auth/sign-in",
		Onboarding: "/setup",
	}

	result := authclient.EvaluateRoute(
		authclient.Snapshot{Status: authclient.StatusUnauthenticated},
		authclient.ResolveState{},
		"/x",
		false,
		routes,
	)

	assert.Equal(t, "/auth/sign-in?return_to=%2Fx", result.Location)
}
