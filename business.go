package authclient

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ResolveOptions controls CurrentBusinessIDAsync.
type ResolveOptions struct {
	// AutoSelect picks and persists the business when the user has exactly
	// one eligible membership and none is active.
	AutoSelect bool
	// SkipCache forces a resolver query even when a value is cached.
	SkipCache bool
	// UserID overrides the bound user for this lookup.
	UserID string
}

// BusinessContext is the client-side view of the user→business association.
// It owns a single cached value; the resolver owns the persisted association.
type BusinessContext struct {
	resolver BusinessResolver
	logger   Logger
	timeout  time.Duration

	mu     sync.RWMutex
	userID string
	cached string
}

type BusinessContextOption func(*BusinessContext)

func WithBusinessLogger(logger Logger) BusinessContextOption {
	return func(b *BusinessContext) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithResolveTimeout bounds resolver queries. Zero keeps the default.
func WithResolveTimeout(d time.Duration) BusinessContextOption {
	return func(b *BusinessContext) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func NewBusinessContext(resolver BusinessResolver, opts ...BusinessContextOption) *BusinessContext {
	b := &BusinessContext{
		resolver: resolver,
		logger:   defLogger{},
		timeout:  DefaultResolveTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	return b
}

// Bind attaches the cache to a user. Binding a different user drops any
// cached value from the previous one.
func (b *BusinessContext) Bind(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.userID != userID {
		b.cached = ""
	}
	b.userID = userID
}

// CurrentBusinessID returns the last known association or empty. It is cache
// only: no network, no errors.
func (b *BusinessContext) CurrentBusinessID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cached
}

// CurrentBusinessIDAsync resolves the active business. A cached value is
// returned without suspension unless SkipCache is set. With AutoSelect, a
// user with exactly one eligible membership has it selected and persisted
// before returning. Timeouts surface as the distinguished TIMEOUT kind.
func (b *BusinessContext) CurrentBusinessIDAsync(ctx context.Context, opts ResolveOptions) (string, error) {
	userID := opts.UserID
	if userID == "" {
		b.mu.RLock()
		userID = b.userID
		b.mu.RUnlock()
	}

	if !opts.SkipCache {
		if cached := b.CurrentBusinessID(); cached != "" {
			return cached, nil
		}
	}

	if userID == "" {
		return "", businessContextError("no user bound for business resolution", nil)
	}

	businessID, err := raceString(ctx, b.timeout, "resolver.active_business", func(ctx context.Context) (string, error) {
		return b.resolver.ActiveBusiness(ctx, userID)
	})
	if err != nil {
		return "", businessContextError("failed to resolve active business", err)
	}

	if businessID == "" && opts.AutoSelect {
		businessID, err = b.autoSelect(ctx, userID)
		if err != nil {
			return "", err
		}
	}

	if businessID != "" {
		b.cache(userID, businessID)
	}

	return businessID, nil
}

// autoSelect persists the only eligible membership, if there is exactly one.
func (b *BusinessContext) autoSelect(ctx context.Context, userID string) (string, error) {
	memberships, err := b.listEligible(ctx, userID)
	if err != nil {
		return "", businessContextError("failed to list memberships for auto select", err)
	}

	if len(memberships) != 1 {
		b.logger.Debug("auto select skipped for %s, eligible=%d", userID, len(memberships))
		return "", nil
	}

	selected := memberships[0].BusinessID
	if err := b.resolver.SetActiveBusiness(ctx, userID, selected); err != nil {
		return "", businessContextError("failed to persist auto selected business", err)
	}

	b.logger.Info("auto selected business %s for %s", selected, userID)
	return selected, nil
}

func (b *BusinessContext) listEligible(ctx context.Context, userID string) ([]Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	all, err := b.resolver.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}

	eligible := make([]Membership, 0, len(all))
	for _, m := range all {
		if m.Active {
			eligible = append(eligible, m)
		}
	}
	return eligible, nil
}

// SetBusinessContext sets the local cache and the remote authorization
// context. A partial failure (local set, remote failed) is reported, never
// swallowed; the cache keeps the value so a retry can reconcile.
func (b *BusinessContext) SetBusinessContext(ctx context.Context, businessID string) error {
	b.mu.RLock()
	userID := b.userID
	b.mu.RUnlock()

	if userID == "" {
		return businessContextError("no user bound for business context set", nil)
	}

	if businessID == "" {
		return goerrors.New("business id is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	b.cache(userID, businessID)

	if err := b.resolver.SetActiveBusiness(ctx, userID, businessID); err != nil {
		return businessContextError("remote business context set failed", err).
			WithMetadata(map[string]any{
				"local_set":   true,
				"business_id": businessID,
			})
	}

	return nil
}

// ClearBusinessContext clears cache and remote association. Safe when no
// context was ever set.
func (b *BusinessContext) ClearBusinessContext(ctx context.Context) error {
	b.mu.Lock()
	userID := b.userID
	b.cached = ""
	b.mu.Unlock()

	if userID == "" {
		return nil
	}

	if err := b.resolver.ClearActiveBusiness(ctx, userID); err != nil {
		return businessContextError("remote business context clear failed", err)
	}

	return nil
}

// ValidateBusinessAccess checks the user is authorized for the business.
// Used defensively before explicit sets, not on every read.
func (b *BusinessContext) ValidateBusinessAccess(ctx context.Context, userID, businessID string) (bool, error) {
	if userID == "" || businessID == "" {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	ok, err := b.resolver.ValidateAccess(ctx, userID, businessID)
	if err != nil {
		return false, businessContextError("business access validation failed", err)
	}

	return ok, nil
}

func (b *BusinessContext) cache(userID, businessID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.userID = userID
	b.cached = businessID
}
