package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-authclient"
	goerrors "github.com/goliatone/go-errors"
)

// Gateway speaks the hosted auth service's REST API and implements
// authclient.Gateway. Sessions are persisted as a JSON marker in the
// configured store so the likely-authenticated pre-check and a later
// process restart can find them.
type Gateway struct {
	config     Config
	client     *http.Client
	store      authclient.SessionStore
	storageKey string
	logger     authclient.Logger

	mu          sync.Mutex
	subscribers map[int]func(authclient.AuthEvent)
	nextID      int
}

// New builds the hosted gateway client.
func New(cfg Config) (*Gateway, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	store := cfg.Store
	if store == nil {
		store = authclient.NewMemoryStore()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Gateway{
		config:      cfg,
		client:      cfg.httpClient(),
		store:       store,
		storageKey:  cfg.storageKey(),
		logger:      logger,
		subscribers: map[int]func(authclient.AuthEvent){},
	}, nil
}

var _ authclient.Gateway = (*Gateway)(nil)

// wire shapes

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         *userPayload `json:"user"`
}

type userPayload struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
}

type apiError struct {
	Code        int    `json:"code"`
	Message     string `json:"msg"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func (g *Gateway) SignIn(ctx context.Context, email, password string) (*authclient.GatewaySession, error) {
	var resp tokenResponse
	err := g.do(ctx, http.MethodPost, "/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	}, "", &resp)
	if err != nil {
		return nil, err
	}

	session := g.sessionFromToken(&resp)
	g.persist(session)
	g.emit(authclient.AuthEvent{Type: authclient.AuthEventSignedIn, Session: session})
	return session, nil
}

func (g *Gateway) SignUp(ctx context.Context, email, password string) (*authclient.GatewaySession, error) {
	var resp tokenResponse
	err := g.do(ctx, http.MethodPost, "/signup", map[string]string{
		"email":    email,
		"password": password,
	}, "", &resp)
	if err != nil {
		return nil, err
	}

	session := g.sessionFromToken(&resp)

	// a confirmation-required signup returns a user but no tokens; only a
	// live session is persisted and announced
	if session.AccessToken != "" {
		g.persist(session)
		g.emit(authclient.AuthEvent{Type: authclient.AuthEventSignedIn, Session: session})
	}

	return session, nil
}

func (g *Gateway) SignOut(ctx context.Context) error {
	token := g.accessToken()

	_ = g.store.Delete(g.storageKey)
	g.emit(authclient.AuthEvent{Type: authclient.AuthEventSignedOut})

	if token == "" {
		return nil
	}

	if err := g.do(ctx, http.MethodPost, "/logout", struct{}{}, token, nil); err != nil {
		return err
	}
	return nil
}

// GetSession loads the persisted session, refreshing it through the gateway
// when the access token has expired. (nil, nil) means no session.
func (g *Gateway) GetSession(ctx context.Context) (*authclient.GatewaySession, error) {
	session := g.load()
	if session == nil {
		return nil, nil
	}

	if !session.Expired(time.Now()) {
		return session, nil
	}

	if session.RefreshToken == "" {
		_ = g.store.Delete(g.storageKey)
		return nil, nil
	}

	var resp tokenResponse
	err := g.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", map[string]string{
		"refresh_token": session.RefreshToken,
	}, "", &resp)
	if err != nil {
		_ = g.store.Delete(g.storageKey)
		return nil, err
	}

	refreshed := g.sessionFromToken(&resp)
	if refreshed.User == nil {
		refreshed.User = session.User
	}

	g.persist(refreshed)
	g.emit(authclient.AuthEvent{Type: authclient.AuthEventTokenRefreshed, Session: refreshed})
	return refreshed, nil
}

func (g *Gateway) GetUser(ctx context.Context) (*authclient.GatewayUser, error) {
	token := g.accessToken()
	if token == "" {
		return nil, nil
	}

	var payload userPayload
	if err := g.do(ctx, http.MethodGet, "/user", nil, token, &payload); err != nil {
		return nil, err
	}

	return gatewayUser(&payload), nil
}

func (g *Gateway) ResetPasswordForEmail(ctx context.Context, email string) error {
	return g.do(ctx, http.MethodPost, "/recover", map[string]string{
		"email": email,
	}, "", nil)
}

func (g *Gateway) UpdateUser(ctx context.Context, update authclient.UserUpdate) (*authclient.GatewayUser, error) {
	token := g.accessToken()
	if token == "" {
		return nil, goerrors.New("no active session for user update", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	body := map[string]any{}
	if update.Password != "" {
		body["password"] = update.Password
	}
	if update.Data != nil {
		body["data"] = update.Data
	}

	var payload userPayload
	if err := g.do(ctx, http.MethodPut, "/user", body, token, &payload); err != nil {
		return nil, err
	}

	user := gatewayUser(&payload)

	// keep the persisted session's user record in step with the update
	if session := g.load(); session != nil {
		session.User = user
		g.persist(session)
	}

	return user, nil
}

func (g *Gateway) VerifyOTP(ctx context.Context, token string, otpType authclient.OTPType) (*authclient.GatewaySession, error) {
	var resp tokenResponse
	err := g.do(ctx, http.MethodPost, "/verify", map[string]string{
		"token": token,
		"type":  string(otpType),
	}, "", &resp)
	if err != nil {
		return nil, err
	}

	session := g.sessionFromToken(&resp)
	if session.AccessToken != "" {
		g.persist(session)
		g.emit(authclient.AuthEvent{Type: authclient.AuthEventSignedIn, Session: session})
	}
	return session, nil
}

func (g *Gateway) Resend(ctx context.Context, otpType authclient.OTPType, email string) error {
	return g.do(ctx, http.MethodPost, "/resend", map[string]string{
		"type":  string(otpType),
		"email": email,
	}, "", nil)
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

// do issues one API request and decodes the reply into out when non-nil.
func (g *Gateway) do(ctx context.Context, method, path string, body any, bearer string, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	url := strings.TrimRight(g.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.config.APIKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return authclient.MapGatewayError(ctx.Err())
		}
		return goerrors.Wrap(err, goerrors.CategoryOperation, "network error reaching auth service").
			WithTextCode("NETWORK")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read auth service reply")
	}

	if resp.StatusCode >= 400 {
		return g.apiErrorFrom(resp.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode auth service reply")
		}
	}

	return nil
}

// apiErrorFrom maps HTTP failures onto the client taxonomy so the facade's
// normalization recognizes them.
func (g *Gateway) apiErrorFrom(status int, raw []byte) error {
	var payload apiError
	_ = json.Unmarshal(raw, &payload)

	message := payload.Message
	if message == "" {
		message = payload.Description
	}
	if message == "" {
		message = payload.Error
	}
	if message == "" {
		message = fmt.Sprintf("auth service returned status %d", status)
	}

	g.logger.Debug("auth service error status=%d message=%s", status, message)

	switch {
	case status == http.StatusTooManyRequests:
		return authclient.ErrRateLimited.Clone().WithMetadata(map[string]any{
			"status": status,
		})
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		if strings.Contains(message, "Invalid login credentials") || payload.Error == "invalid_grant" {
			return authclient.ErrInvalidCredentials.Clone().WithMetadata(map[string]any{
				"status": status,
			})
		}
		if strings.Contains(message, "Email not confirmed") {
			return authclient.ErrEmailNotConfirmed.Clone().WithMetadata(map[string]any{
				"status": status,
			})
		}
	}

	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(statusCode(status)).
		WithMetadata(map[string]any{
			"status": status,
		})
}

func statusCode(status int) int {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return goerrors.CodeBadRequest
	case http.StatusUnauthorized:
		return goerrors.CodeUnauthorized
	case http.StatusForbidden:
		return goerrors.CodeForbidden
	case http.StatusNotFound:
		return goerrors.CodeNotFound
	case http.StatusConflict:
		return goerrors.CodeConflict
	default:
		return goerrors.CodeInternal
	}
}

func (g *Gateway) sessionFromToken(resp *tokenResponse) *authclient.GatewaySession {
	session := &authclient.GatewaySession{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         gatewayUser(resp.User),
	}

	switch {
	case resp.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		session.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	return session
}

func gatewayUser(payload *userPayload) *authclient.GatewayUser {
	if payload == nil {
		return nil
	}

	user := &authclient.GatewayUser{
		ID:             payload.ID,
		Email:          payload.Email,
		EmailConfirmed: payload.EmailConfirmedAt != nil,
		Metadata:       payload.UserMetadata,
	}

	if payload.UserMetadata != nil {
		if raw, ok := payload.UserMetadata["display_name"]; ok {
			if name, ok := raw.(string); ok {
				user.DisplayName = name
			}
		}
	}

	return user
}

func (g *Gateway) persist(session *authclient.GatewaySession) {
	encoded, err := json.Marshal(session)
	if err != nil {
		g.logger.Warn("failed to encode session marker: %v", err)
		return
	}
	if err := g.store.Set(g.storageKey, string(encoded)); err != nil {
		g.logger.Warn("failed to persist session marker: %v", err)
	}
}

func (g *Gateway) load() *authclient.GatewaySession {
	raw, err := g.store.Get(g.storageKey)
	if err != nil || raw == "" {
		return nil
	}

	var session authclient.GatewaySession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		g.logger.Warn("failed to decode session marker, discarding: %v", err)
		_ = g.store.Delete(g.storageKey)
		return nil
	}

	return &session
}

func (g *Gateway) accessToken() string {
	if session := g.load(); session != nil {
		return session.AccessToken
	}
	return ""
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
