package authclient

import (
	"context"
	"sync"
	"time"
)

// Machine is the single source of truth for authentication status. It is an
// explicit, constructed container: the composition root builds one, calls
// Initialize once, and tears it down with Close. After Initialize settles,
// the gateway's change-event stream and deliberate actions are the only
// writers; stale async completions are dropped by a generation counter.
type Machine struct {
	facade   *Facade
	business *BusinessContext
	store    SessionStore
	logger   Logger
	activity ActivitySink
	idle     IdleTimer

	markerSuffix   string
	verifyTimeout  time.Duration
	signOutTimeout time.Duration

	mu       sync.Mutex
	snap     Snapshot
	gen      uint64
	sub      Subscription
	watchers map[int]func(Snapshot)
	nextID   int
}

// MachineOption customizes machine construction.
type MachineOption func(*Machine)

func WithLogger(logger Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithActivitySink sets the sink used to publish auth lifecycle events.
func WithActivitySink(sink ActivitySink) MachineOption {
	return func(m *Machine) {
		m.activity = normalizeActivitySink(sink)
	}
}

// WithIdleTimer injects the session inactivity helper. Resolved at
// construction, never loaded on demand.
func WithIdleTimer(timer IdleTimer) MachineOption {
	return func(m *Machine) {
		m.idle = normalizeIdleTimer(timer)
	}
}

// WithSessionStore sets the local marker store consulted by the
// likely-authenticated pre-check.
func WithSessionStore(store SessionStore) MachineOption {
	return func(m *Machine) {
		m.store = store
	}
}

// WithMarkerSuffix overrides the marker name pattern.
func WithMarkerSuffix(suffix string) MachineOption {
	return func(m *Machine) {
		if suffix != "" {
			m.markerSuffix = suffix
		}
	}
}

// WithVerifyTimeout bounds session verification calls.
func WithVerifyTimeout(d time.Duration) MachineOption {
	return func(m *Machine) {
		if d > 0 {
			m.verifyTimeout = d
		}
	}
}

// WithSignOutTimeout bounds the remote sign-out call.
func WithSignOutTimeout(d time.Duration) MachineOption {
	return func(m *Machine) {
		if d > 0 {
			m.signOutTimeout = d
		}
	}
}

// New builds the machine and its collaborators. The resolver may be nil when
// the application has no multi-tenant scope; business resolution then always
// reports no business.
func New(gateway Gateway, resolver BusinessResolver, opts ...MachineOption) *Machine {
	m := &Machine{
		store:          NewMemoryStore(),
		logger:         defLogger{},
		activity:       noopActivitySink{},
		idle:           noopIdleTimer{},
		markerSuffix:   DefaultMarkerSuffix,
		verifyTimeout:  DefaultVerifyTimeout,
		signOutTimeout: DefaultSignOutTimeout,
		snap:           Snapshot{Status: StatusInitializing},
		watchers:       map[int]func(Snapshot){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.business = NewBusinessContext(normalizeResolver(resolver), WithBusinessLogger(m.logger))
	m.facade = NewFacade(gateway, m.business).WithLogger(m.logger)

	return m
}

// Facade returns the normalized gateway adapter.
func (m *Machine) Facade() *Facade {
	return m.facade
}

// Business returns the business context client bound to this machine.
func (m *Machine) Business() *BusinessContext {
	return m.business
}

// Snapshot returns the current state value.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Subscribe registers a watcher called on every committed transition with
// the fresh snapshot. The returned function unsubscribes.
func (m *Machine) Subscribe(fn func(Snapshot)) func() {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// Close unsubscribes from the gateway stream and stops the idle timer.
func (m *Machine) Close() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.watchers = map[int]func(Snapshot){}
	m.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	m.idle.Stop()
}

// Initialize restores state on boot. A negative local marker check settles
// unauthenticated with no network round trip; otherwise the stored session
// is verified against the gateway under the timeout race. It subscribes to
// the change-event stream before settling, and guarantees the loading state
// ends exactly once no matter which branch runs.
func (m *Machine) Initialize(ctx context.Context) Snapshot {
	m.mu.Lock()
	needSub := m.sub == nil
	gen := m.gen
	m.mu.Unlock()

	// subscribe outside the lock: a gateway that replays the current state
	// synchronously to new subscribers must be able to commit through
	// handleAuthEvent without deadlocking
	if needSub {
		sub := m.facade.Gateway().OnAuthStateChange(m.handleAuthEvent)
		m.mu.Lock()
		if m.sub == nil {
			m.sub = sub
			sub = nil
		}
		m.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
	}

	settled := false
	settle := func(next Snapshot) {
		settled = true
		m.commit(gen, next)
	}
	defer func() {
		// finally-equivalent: loading must end even on an unexpected branch
		if !settled {
			m.commit(gen, Snapshot{Status: StatusUnauthenticated})
		}
	}()

	if !LikelyAuthenticated(m.store, m.markerSuffix) {
		m.logger.Debug("no local session marker, skipping verification")
		settle(Snapshot{Status: StatusUnauthenticated})
		return m.Snapshot()
	}

	if isCancelled(ctx) {
		settle(Snapshot{Status: StatusUnauthenticated})
		return m.Snapshot()
	}

	settle(m.verifySession(ctx))
	return m.Snapshot()
}

// RefreshSession re-checks the session using the same verification branch as
// Initialize. It never passes through authenticating.
func (m *Machine) RefreshSession(ctx context.Context) Snapshot {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	m.commit(gen, m.verifySession(ctx))
	return m.Snapshot()
}

// verifySession races the gateway session check and maps the outcome to a
// settled snapshot. An empty session is a normal unauthenticated result, not
// a failure; resolver hiccups during restore are swallowed.
func (m *Machine) verifySession(ctx context.Context) Snapshot {
	session, err := raceSession(ctx, m.verifyTimeout, "session verification", func(ctx context.Context) (*GatewaySession, error) {
		return m.facade.Gateway().GetSession(ctx)
	})

	if err != nil {
		// an aborted verification is not a failure; settle quietly, same as
		// the pre-check branch in Initialize
		if isCancelled(ctx) {
			return Snapshot{Status: StatusUnauthenticated}
		}

		mapped := MapGatewayError(err)
		m.logger.Warn("session verification failed: %s", mapped.Message)
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSessionLost,
			Metadata:  map[string]any{"error": mapped.Message},
		})
		return Snapshot{Status: StatusUnauthenticated, Err: mapped}
	}

	if session == nil || session.User == nil || session.Expired(time.Now()) {
		return Snapshot{Status: StatusUnauthenticated}
	}

	identity := IdentityFromGatewayUser(session.User)
	m.business.Bind(identity.ID)

	// cached, synchronous lookup only; never block restore on the resolver
	businessID := m.business.CurrentBusinessID()
	if businessID == "" {
		businessID = identity.BusinessID
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSessionRestored,
		UserID:    identity.ID,
	})

	return Snapshot{
		Status:     StatusAuthenticated,
		User:       identity,
		BusinessID: businessID,
	}
}

// SignIn drives unauthenticated/initializing → authenticating. Success
// settling is delegated to the change-event stream; failure settles
// unauthenticated AND returns the error to the caller (dual reporting).
func (m *Machine) SignIn(ctx context.Context, email, password string) error {
	m.commitBump(Snapshot{Status: StatusAuthenticating})

	_, err := m.facade.SignIn(ctx, email, password)
	if err != nil {
		m.commitBump(Snapshot{Status: StatusUnauthenticated, Err: err})
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Metadata:  map[string]any{"email": email, "error": err.Message},
		})
		return err
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Metadata:  map[string]any{"email": email},
	})
	return nil
}

// SignUp is symmetric to SignIn.
func (m *Machine) SignUp(ctx context.Context, email, password string) error {
	m.commitBump(Snapshot{Status: StatusAuthenticating})

	_, err := m.facade.SignUp(ctx, email, password)
	if err != nil {
		m.commitBump(Snapshot{Status: StatusUnauthenticated, Err: err})
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSignUpFailure,
			Metadata:  map[string]any{"email": email, "error": err.Message},
		})
		return err
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignUpSuccess,
		Metadata:  map[string]any{"email": email},
	})
	return nil
}

// SignOut clears business context, revokes the remote session, and forces
// local state to unauthenticated regardless of the remote outcome. A remote
// timeout is treated as success after local cleanup; any other remote
// failure still resets state and is then propagated to the caller.
func (m *Machine) SignOut(ctx context.Context) error {
	snap := m.Snapshot()
	if snap.Status == StatusAuthenticated {
		m.commitBump(Snapshot{Status: StatusSigningOut})
	}

	var userID string
	if snap.User != nil {
		userID = snap.User.ID
	}

	reset := func() {
		m.commitBump(Snapshot{Status: StatusUnauthenticated})
	}

	if err := m.business.ClearBusinessContext(ctx); err != nil {
		m.logger.Warn("business context clear failed during sign out: %v", err)
	}

	err := raceErr(ctx, m.signOutTimeout, "sign out", func(ctx context.Context) error {
		if gerr := m.facade.SignOut(ctx); gerr != nil {
			return gerr
		}
		return nil
	})

	if err != nil && !IsTimeoutError(err) {
		// emergency cleanup: local correctness over remote acknowledgement
		reset()
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLogoutFailure,
			UserID:    userID,
			Metadata:  map[string]any{"error": err.Error()},
		})
		return err
	}

	if err != nil {
		m.logger.Warn("remote sign out timed out, local cleanup already done")
	}

	reset()
	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLogoutSuccess,
		UserID:    userID,
	})
	return nil
}

// handleAuthEvent is the external trigger from the gateway stream. Logged-in
// events resolve the business id (preferring any cached value); logged-out
// events clear business context and settle unauthenticated with no error.
func (m *Machine) handleAuthEvent(ev AuthEvent) {
	ctx := context.Background()

	switch ev.Type {
	case AuthEventSignedIn, AuthEventTokenRefreshed:
		if ev.Session == nil || ev.Session.User == nil {
			return
		}

		identity := IdentityFromGatewayUser(ev.Session.User)
		m.business.Bind(identity.ID)

		businessID := m.business.CurrentBusinessID()
		if businessID == "" {
			businessID = identity.BusinessID
		}

		m.commitBump(Snapshot{
			Status:     StatusAuthenticated,
			User:       identity,
			BusinessID: businessID,
		})

	case AuthEventSignedOut:
		if err := m.business.ClearBusinessContext(ctx); err != nil {
			m.logger.Warn("business context clear failed on signed-out event: %v", err)
		}
		m.commitBump(Snapshot{Status: StatusUnauthenticated})
	}
}

// commit applies a snapshot only when gen is still current, so a superseded
// initialization can never overwrite a later, more authoritative state.
func (m *Machine) commit(gen uint64, next Snapshot) bool {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		m.logger.Debug("dropping stale state write, status=%s", next.Status)
		return false
	}
	m.apply(next)
	watchers, snap := m.watcherList()
	m.mu.Unlock()

	m.notify(watchers, snap)
	return true
}

// commitBump is used by authoritative writers: it invalidates any in-flight
// initialization and applies the snapshot unconditionally.
func (m *Machine) commitBump(next Snapshot) {
	m.mu.Lock()
	m.gen++
	m.apply(next)
	watchers, snap := m.watcherList()
	m.mu.Unlock()

	m.notify(watchers, snap)
}

// apply must run under mu.
func (m *Machine) apply(next Snapshot) {
	m.snap = next

	switch next.Status {
	case StatusAuthenticated:
		m.idle.Initialize()
	case StatusUnauthenticated:
		m.idle.Stop()
	}
}

// watcherList must run under mu.
func (m *Machine) watcherList() ([]func(Snapshot), Snapshot) {
	watchers := make([]func(Snapshot), 0, len(m.watchers))
	for _, fn := range m.watchers {
		watchers = append(watchers, fn)
	}
	return watchers, m.snap
}

func (m *Machine) notify(watchers []func(Snapshot), snap Snapshot) {
	for _, fn := range watchers {
		fn(snap)
	}
}

func (m *Machine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	sink := normalizeActivitySink(m.activity)
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}

// nullResolver satisfies BusinessResolver for single-tenant compositions.
type nullResolver struct{}

func (nullResolver) ActiveBusiness(context.Context, string) (string, error)    { return "", nil }
func (nullResolver) SetActiveBusiness(context.Context, string, string) error   { return nil }
func (nullResolver) ClearActiveBusiness(context.Context, string) error         { return nil }
func (nullResolver) ListMemberships(context.Context, string) ([]Membership, error) { return nil, nil }
func (nullResolver) ValidateAccess(context.Context, string, string) (bool, error) {
	return false, nil
}

func normalizeResolver(r BusinessResolver) BusinessResolver {
	if r == nil {
		return nullResolver{}
	}
	return r
}
