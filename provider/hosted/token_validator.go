package hosted

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenValidator checks hosted-service access tokens against the project's
// published key set. It is offline verification: no round trip to the auth
// service once the key set is cached.
type TokenValidator struct {
	config  Config
	keyfunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
}

// NewTokenValidator fetches the project JWKS and keeps it refreshed in the
// background.
func NewTokenValidator(cfg Config) (*TokenValidator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	jwks, err := keyfunc.Get(cfg.jwksURL(), keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("background JWKS refresh failed: %v", err)
			}
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("hosted: failed to load JWK set: %w", err)
	}

	return &TokenValidator{
		config:  cfg,
		keyfunc: jwks.Keyfunc,
		jwks:    jwks,
	}, nil
}

// Claims is the subset of the access token payload the client cares about.
type Claims struct {
	Subject    string
	Email      string
	BusinessID string
	ExpiresAt  time.Time
}

// Validate parses and verifies an access token, returning its claims.
func (v *TokenValidator) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
	}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.config.Audience))
	}

	token, err := jwt.Parse(tokenString, v.keyfunc, opts...)
	if err != nil {
		return nil, normalizeValidationError(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, goerrors.New("malformed access token", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized).
			WithTextCode("TOKEN_MALFORMED")
	}

	out := &Claims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if meta, ok := claims["user_metadata"].(map[string]any); ok {
		if biz, ok := meta["business_id"].(string); ok {
			out.BusinessID = biz
		}
	}

	return out, nil
}

// Close stops the background key refresh.
func (v *TokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func normalizeValidationError(err error) error {
	if err == nil {
		return nil
	}

	message := "malformed access token"
	code := "TOKEN_MALFORMED"
	if stderrors.Is(err, jwt.ErrTokenExpired) {
		message = "access token expired"
		code = "TOKEN_EXPIRED"
	}

	return goerrors.Wrap(err, goerrors.CategoryAuth, message).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(code).
		WithMetadata(map[string]any{
			"cause": err.Error(),
		})
}
