package authclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// GuardRoutes holds the guard's redirect targets.
type GuardRoutes struct {
	Login      string
	Onboarding string
}

// DefaultGuardRoutes mirror the application's conventional paths.
var DefaultGuardRoutes = GuardRoutes{
	Login:      "/login",
	Onboarding: "/business/register",
}

// Decision is the guard's verdict for a request.
type Decision int

const (
	// DecisionPending means auth or business resolution has not settled;
	// render nothing, not even a partial view.
	DecisionPending Decision = iota
	// DecisionAllow renders the protected content.
	DecisionAllow
	// DecisionRedirectLogin sends the caller to login, preserving the
	// requested path as a return URL.
	DecisionRedirectLogin
	// DecisionRedirectOnboarding sends the caller to business registration
	// with a reason code.
	DecisionRedirectOnboarding
)

// GuardResult carries the decision and, for redirects, the full location.
type GuardResult struct {
	Decision Decision
	Location string
	Reason   string
}

// EvaluateRoute is the pure guard function: (auth snapshot, business resolve
// state, requested path) → decision. It never flashes protected content:
// while either input is loading the result is pending.
func EvaluateRoute(snap Snapshot, biz ResolveState, path string, requireBusiness bool, routes GuardRoutes) GuardResult {
	if routes.Login == "" {
		routes.Login = DefaultGuardRoutes.Login
	}
	if routes.Onboarding == "" {
		routes.Onboarding = DefaultGuardRoutes.Onboarding
	}

	if snap.IsLoading() {
		return GuardResult{Decision: DecisionPending}
	}

	if snap.Status != StatusAuthenticated {
		return GuardResult{
			Decision: DecisionRedirectLogin,
			Location: loginLocation(routes.Login, path),
		}
	}

	if !requireBusiness {
		return GuardResult{Decision: DecisionAllow}
	}

	if biz.Loading {
		return GuardResult{Decision: DecisionPending}
	}

	if biz.Err != nil {
		reason := ReasonForError(biz.Err)
		return GuardResult{
			Decision: DecisionRedirectOnboarding,
			Location: onboardingLocation(routes.Onboarding, reason),
			Reason:   reason,
		}
	}

	if biz.BusinessID == "" && snap.BusinessID == "" {
		return GuardResult{
			Decision: DecisionRedirectOnboarding,
			Location: onboardingLocation(routes.Onboarding, ReasonNoBusiness),
			Reason:   ReasonNoBusiness,
		}
	}

	return GuardResult{Decision: DecisionAllow}
}

func loginLocation(login, path string) string {
	if path == "" {
		return login
	}
	return login + "?return_to=" + url.QueryEscape(path)
}

func onboardingLocation(onboarding, reason string) string {
	return onboarding + "?reason=" + reason
}

// RouteGuard adapts EvaluateRoute into router middleware. It waits for the
// machine (and watcher, when business scope is required) to settle before
// deciding, bounded by the settle timeout.
type RouteGuard struct {
	machine         *Machine
	watcher         *BusinessWatcher
	routes          GuardRoutes
	requireBusiness bool
	settleTimeout   time.Duration
	logger          Logger
}

type RouteGuardOption func(*RouteGuard)

func WithGuardRoutes(routes GuardRoutes) RouteGuardOption {
	return func(g *RouteGuard) {
		g.routes = routes
	}
}

// WithRequireBusiness makes the guard demand a resolved business context.
func WithRequireBusiness(watcher *BusinessWatcher) RouteGuardOption {
	return func(g *RouteGuard) {
		g.requireBusiness = true
		g.watcher = watcher
	}
}

func WithGuardLogger(logger Logger) RouteGuardOption {
	return func(g *RouteGuard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithSettleTimeout bounds how long a request waits for state to settle.
func WithSettleTimeout(d time.Duration) RouteGuardOption {
	return func(g *RouteGuard) {
		if d > 0 {
			g.settleTimeout = d
		}
	}
}

func NewRouteGuard(machine *Machine, opts ...RouteGuardOption) *RouteGuard {
	g := &RouteGuard{
		machine:       machine,
		routes:        DefaultGuardRoutes,
		settleTimeout: DefaultVerifyTimeout,
		logger:        defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Middleware returns the protecting middleware. Unsettled requests past the
// wait budget are redirected to onboarding with reason=timeout rather than
// served a partial view.
func (g *RouteGuard) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			snap := g.waitForAuth(c.Context())

			var biz ResolveState
			if g.requireBusiness && g.watcher != nil {
				biz = g.waitForBusiness(c.Context())
			}

			result := EvaluateRoute(snap, biz, c.OriginalURL(), g.requireBusiness, g.routes)

			switch result.Decision {
			case DecisionAllow:
				return next(c)

			case DecisionRedirectLogin:
				g.logger.Info(
					"guard redirecting to login path=%s state=%s",
					c.OriginalURL(),
					print.MaybePrettyJSON(map[string]any{"status": snap.Status}),
				)
				g.setReturnCookie(c)
				return c.Redirect(result.Location, redirectStatus(c))

			case DecisionRedirectOnboarding:
				g.logger.Info("guard redirecting to onboarding reason=%s", result.Reason)
				return c.Redirect(result.Location, redirectStatus(c))

			default:
				// never settled inside the budget: same recovery as a timeout
				location := onboardingLocation(g.routes.Onboarding, ReasonTimeout)
				return c.Redirect(location, redirectStatus(c))
			}
		}
	}
}

// waitForAuth returns the current snapshot, waiting for loading to end.
func (g *RouteGuard) waitForAuth(ctx context.Context) Snapshot {
	snap := g.machine.Snapshot()
	if !snap.IsLoading() {
		return snap
	}

	settled := make(chan Snapshot, 1)
	unsubscribe := g.machine.Subscribe(func(s Snapshot) {
		if !s.IsLoading() {
			select {
			case settled <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	// re-check after subscribing to avoid a missed transition
	if snap = g.machine.Snapshot(); !snap.IsLoading() {
		return snap
	}

	timer := time.NewTimer(g.settleTimeout)
	defer timer.Stop()

	select {
	case s := <-settled:
		return s
	case <-ctx.Done():
		return g.machine.Snapshot()
	case <-timer.C:
		return g.machine.Snapshot()
	}
}

// waitForBusiness mirrors waitForAuth for the resolve triple.
func (g *RouteGuard) waitForBusiness(ctx context.Context) ResolveState {
	state := g.watcher.State()
	if !state.Loading {
		return state
	}

	settled := make(chan ResolveState, 1)
	unwatch := g.watcher.Watch(func(s ResolveState) {
		if !s.Loading {
			select {
			case settled <- s:
			default:
			}
		}
	})
	defer unwatch()

	if state = g.watcher.State(); !state.Loading {
		return state
	}

	timer := time.NewTimer(g.settleTimeout)
	defer timer.Stop()

	select {
	case s := <-settled:
		return s
	case <-ctx.Done():
		return g.watcher.State()
	case <-timer.C:
		return g.watcher.State()
	}
}

// RejectedRouteCookie preserves the originally requested path so navigation
// resumes after login.
const RejectedRouteCookie = "rejected_route"

func (g *RouteGuard) setReturnCookie(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     RejectedRouteCookie,
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(5 * time.Minute),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// ReturnPath pops the preserved path, falling back to def.
func ReturnPath(c router.Context, def string) string {
	r := c.Cookies(RejectedRouteCookie)
	if r == "" {
		return def
	}
	c.Cookie(&router.Cookie{
		Name:     RejectedRouteCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * 24 * 365),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
	return r
}

func redirectStatus(c router.Context) int {
	if c.Method() == string(router.GET) {
		return http.StatusFound
	}
	return http.StatusSeeOther
}
