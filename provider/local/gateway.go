package local

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-authclient"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 14

// Config configures the development gateway.
type Config struct {
	// SigningKey signs issued access tokens (HS256).
	SigningKey []byte

	// TokenTTL is the access token lifetime. Defaults to one hour.
	TokenTTL time.Duration

	// Issuer stamps issued tokens. Defaults to "authclient-local".
	Issuer string

	// Store persists the session marker. Defaults to an in-memory store.
	Store authclient.SessionStore

	// StorageKey overrides the marker key. Defaults to
	// "local" + authclient.DefaultMarkerSuffix.
	StorageKey string

	// RequireEmailConfirmation makes sign-in fail for unverified accounts,
	// matching the hosted service's behavior.
	RequireEmailConfirmation bool

	Logger authclient.Logger
}

// Gateway is a bun-backed authclient.Gateway for development and tests. It
// issues HS256 tokens locally instead of calling a hosted service.
type Gateway struct {
	users      Users
	config     Config
	store      authclient.SessionStore
	storageKey string
	logger     authclient.Logger

	mu          sync.Mutex
	sessions    map[string]uuid.UUID
	pendingOTP  map[string]uuid.UUID
	subscribers map[int]func(authclient.AuthEvent)
	nextID      int
}

// New builds a local gateway over the given database.
func New(db *bun.DB, cfg Config) (*Gateway, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, goerrors.New("local: signing key is required", goerrors.CategoryBadInput)
	}

	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "authclient-local"
	}

	store := cfg.Store
	if store == nil {
		store = authclient.NewMemoryStore()
	}

	storageKey := cfg.StorageKey
	if storageKey == "" {
		storageKey = "local" + authclient.DefaultMarkerSuffix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Gateway{
		users:       NewUsersRepository(db),
		config:      cfg,
		store:       store,
		storageKey:  storageKey,
		logger:      logger,
		sessions:    map[string]uuid.UUID{},
		pendingOTP:  map[string]uuid.UUID{},
		subscribers: map[int]func(authclient.AuthEvent){},
	}, nil
}

var _ authclient.Gateway = (*Gateway)(nil)

func (g *Gateway) SignIn(ctx context.Context, email, password string) (*authclient.GatewaySession, error) {
	user, err := g.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, authclient.ErrInvalidCredentials.Clone()
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to look up user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, authclient.ErrInvalidCredentials.Clone()
	}

	if g.config.RequireEmailConfirmation && !user.EmailValidated {
		return nil, authclient.ErrEmailNotConfirmed.Clone()
	}

	if err := g.users.TrackSuccessfulLogin(ctx, user); err != nil {
		g.logger.Warn("failed to track login: %v", err)
	}

	session, err := g.issueSession(user)
	if err != nil {
		return nil, err
	}

	g.emit(authclient.AuthEvent{Type: authclient.AuthEventSignedIn, Session: session})
	return session, nil
}

// SignUp derives the account ID deterministically from the email so repeated
// dev-environment resets produce stable IDs.
func (g *Gateway) SignUp(ctx context.Context, email, password string) (*authclient.GatewaySession, error) {
	email = normalizeEmail(email)

	if _, err := g.users.GetByEmail(ctx, email); err == nil {
		return nil, goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict)
	} else if !repository.IsRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to look up user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Email:          email,
		PasswordHash:   string(hash),
		EmailValidated: !g.config.RequireEmailConfirmation,
	}

	if id, err := hashid.NewUUID(email); err == nil {
		user.ID = id
	}

	user, err = g.users.Register(ctx, user)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to register user")
	}

	if g.config.RequireEmailConfirmation {
		// hand back the user with no tokens, mirroring a
		// confirmation-required hosted signup
		g.rememberOTP(user)
		return &authclient.GatewaySession{User: gatewayUser(user)}, nil
	}

	session, err := g.issueSession(user)
	if err != nil {
		return nil, err
	}

	g.emit(authclient.AuthEvent{Type: authclient.AuthEventSignedIn, Session: session})
	return session, nil
}

func (g *Gateway) SignOut(ctx context.Context) error {
	if session := g.load(); session != nil {
		g.mu.Lock()
		delete(g.sessions, session.RefreshToken)
		g.mu.Unlock()
	}

	_ = g.store.Delete(g.storageKey)
	g.emit(authclient.AuthEvent{Type: authclient.AuthEventSignedOut})
	return nil
}

func (g *Gateway) GetSession(ctx context.Context) (*authclient.GatewaySession, error) {
	session := g.load()
	if session == nil {
		return nil, nil
	}

	if !session.Expired(time.Now()) {
		return session, nil
	}

	g.mu.Lock()
	userID, ok := g.sessions[session.RefreshToken]
	delete(g.sessions, session.RefreshToken)
	g.mu.Unlock()

	if !ok {
		_ = g.store.Delete(g.storageKey)
		return nil, nil
	}

	user, err := g.users.GetByID(ctx, userID.String())
	if err != nil {
		_ = g.store.Delete(g.storageKey)
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to refresh session")
	}

	refreshed, err := g.issueSession(user)
	if err != nil {
		return nil, err
	}

	g.emit(authclient.AuthEvent{Type: authclient.AuthEventTokenRefreshed, Session: refreshed})
	return refreshed, nil
}

func (g *Gateway) GetUser(ctx context.Context) (*authclient.GatewayUser, error) {
	session := g.load()
	if session == nil || session.User == nil {
		return nil, nil
	}

	user, err := g.users.GetByID(ctx, session.User.ID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load user")
	}

	return gatewayUser(user), nil
}

func (g *Gateway) ResetPasswordForEmail(ctx context.Context, email string) error {
	user, err := g.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		// do not leak which addresses exist
		if repository.IsRecordNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to look up user")
	}

	g.rememberOTP(user)
	g.logger.Info("password recovery token issued for %s", user.Email)
	return nil
}

func (g *Gateway) UpdateUser(ctx context.Context, update authclient.UserUpdate) (*authclient.GatewayUser, error) {
	session := g.load()
	if session == nil || session.User == nil {
		return nil, goerrors.New("no active session for user update", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	user, err := g.users.GetByID(ctx, session.User.ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load user")
	}

	if update.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(update.Password), bcryptCost)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
		user.PasswordHash = string(hash)
	}

	for key, val := range update.Data {
		if key == "display_name" {
			if name, ok := val.(string); ok {
				user.DisplayName = name
				continue
			}
		}
		user.AddMetadata(key, val)
	}

	user, err = g.users.Update(ctx, user, repository.UpdateByID(user.ID.String()))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to update user")
	}

	updated := gatewayUser(user)
	session.User = updated
	g.persist(session)

	return updated, nil
}

// VerifyOTP accepts the token issued by SignUp or ResetPasswordForEmail. In
// this gateway the token is the value logged at issuance.
func (g *Gateway) VerifyOTP(ctx context.Context, token string, otpType authclient.OTPType) (*authclient.GatewaySession, error) {
	g.mu.Lock()
	userID, ok := g.pendingOTP[token]
	if ok {
		delete(g.pendingOTP, token)
	}
	g.mu.Unlock()

	if !ok {
		return nil, goerrors.New("invalid or expired verification token", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	user, err := g.users.GetByID(ctx, userID.String())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load user")
	}

	if otpType == authclient.OTPTypeSignup && !user.EmailValidated {
		user.EmailValidated = true
		if user, err = g.users.Update(ctx, user, repository.UpdateByID(user.ID.String())); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to confirm email")
		}
	}

	session, err := g.issueSession(user)
	if err != nil {
		return nil, err
	}

	g.emit(authclient.AuthEvent{Type: authclient.AuthEventSignedIn, Session: session})
	return session, nil
}

func (g *Gateway) Resend(ctx context.Context, otpType authclient.OTPType, email string) error {
	user, err := g.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to look up user")
	}

	g.rememberOTP(user)
	return nil
}

type subscription struct {
	unsubscribe func()
}

func (s subscription) Unsubscribe() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (g *Gateway) OnAuthStateChange(fn func(authclient.AuthEvent)) authclient.Subscription {
	if fn == nil {
		return subscription{}
	}

	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.subscribers[id] = fn
	g.mu.Unlock()

	return subscription{unsubscribe: func() {
		g.mu.Lock()
		delete(g.subscribers, id)
		g.mu.Unlock()
	}}
}

// PendingOTP returns the outstanding verification token for an email, so
// tests can complete the confirmation loop without a mailbox.
func (g *Gateway) PendingOTP(email string) (string, bool) {
	id, err := hashid.NewUUID(normalizeEmail(email))
	if err != nil {
		return "", false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for token, userID := range g.pendingOTP {
		if userID == id {
			return token, true
		}
	}
	return "", false
}

func (g *Gateway) emit(event authclient.AuthEvent) {
	g.mu.Lock()
	subscribers := make([]func(authclient.AuthEvent), 0, len(g.subscribers))
	for _, fn := range g.subscribers {
		subscribers = append(subscribers, fn)
	}
	g.mu.Unlock()

	for _, fn := range subscribers {
		fn(event)
	}
}

func (g *Gateway) issueSession(user *User) (*authclient.GatewaySession, error) {
	now := time.Now()
	expiresAt := now.Add(g.config.TokenTTL)

	claims := jwt.MapClaims{
		"iss":   g.config.Issuer,
		"sub":   user.ID.String(),
		"email": user.Email,
		"iat":   jwt.NewNumericDate(now),
		"exp":   jwt.NewNumericDate(expiresAt),
	}
	if user.Metadata != nil {
		claims["user_metadata"] = user.Metadata
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.config.SigningKey)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign access token")
	}

	refreshToken := uuid.NewString()

	g.mu.Lock()
	g.sessions[refreshToken] = user.ID
	g.mu.Unlock()

	session := &authclient.GatewaySession{
		AccessToken:  signed,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         gatewayUser(user),
	}

	g.persist(session)
	return session, nil
}

func (g *Gateway) rememberOTP(user *User) {
	token := uuid.NewString()
	g.mu.Lock()
	g.pendingOTP[token] = user.ID
	g.mu.Unlock()
	g.logger.Debug("verification token issued for %s: %s", user.Email, token)
}

func (g *Gateway) persist(session *authclient.GatewaySession) {
	encoded, err := encodeSession(session)
	if err != nil {
		g.logger.Warn("failed to encode session marker: %v", err)
		return
	}
	if err := g.store.Set(g.storageKey, encoded); err != nil {
		g.logger.Warn("failed to persist session marker: %v", err)
	}
}

func (g *Gateway) load() *authclient.GatewaySession {
	raw, err := g.store.Get(g.storageKey)
	if err != nil || raw == "" {
		return nil
	}

	session, err := decodeSession(raw)
	if err != nil {
		g.logger.Warn("failed to decode session marker, discarding: %v", err)
		_ = g.store.Delete(g.storageKey)
		return nil
	}

	return session
}

func gatewayUser(user *User) *authclient.GatewayUser {
	if user == nil {
		return nil
	}

	return &authclient.GatewayUser{
		ID:             user.ID.String(),
		Email:          user.Email,
		DisplayName:    user.DisplayName,
		EmailConfirmed: user.EmailValidated,
		Metadata:       user.Metadata,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
