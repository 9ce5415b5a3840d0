package authclient

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the normalized authenticated principal. Snapshots replace it
// wholesale on every transition; consumers never mutate it field by field.
type Identity struct {
	ID          string `json:"id,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	BusinessID  string `json:"business_id,omitempty"`
}

// UUID parses the identity id. Hosted providers issue UUID subjects.
func (i *Identity) UUID() (uuid.UUID, error) {
	return uuid.Parse(i.ID)
}

// MetadataKeyBusinessID is the user-metadata key carrying a preselected
// business, propagated into the context after sign in.
const MetadataKeyBusinessID = "business_id"

// GatewayUser is the raw user record returned by the hosted service.
type GatewayUser struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	DisplayName    string         `json:"display_name,omitempty"`
	EmailConfirmed bool           `json:"email_confirmed"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// GatewaySession is the raw session record returned by the hosted service.
type GatewaySession struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *GatewayUser `json:"user,omitempty"`
}

// Expired reports whether the session's access token is past its expiry.
func (s *GatewaySession) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// UserUpdate is the partial update payload for the gateway's user record.
type UserUpdate struct {
	Password string         `json:"password,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// OTPType distinguishes one-time token flows.
type OTPType string

const (
	OTPTypeSignup   OTPType = "signup"
	OTPTypeRecovery OTPType = "recovery"
)

// AuthEventType enumerates gateway change events.
type AuthEventType string

const (
	AuthEventSignedIn       AuthEventType = "SIGNED_IN"
	AuthEventSignedOut      AuthEventType = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

// AuthEvent is delivered on the gateway's change stream. Session is nil for
// signed-out events.
type AuthEvent struct {
	Type    AuthEventType
	Session *GatewaySession
}

// IdentityFromGatewayUser normalizes a gateway user into an Identity,
// lifting a business id out of user metadata when present.
func IdentityFromGatewayUser(user *GatewayUser) *Identity {
	if user == nil {
		return nil
	}

	identity := &Identity{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}

	if user.Metadata != nil {
		if raw, ok := user.Metadata[MetadataKeyBusinessID]; ok {
			if businessID, ok := raw.(string); ok {
				identity.BusinessID = businessID
			}
		}
	}

	return identity
}
