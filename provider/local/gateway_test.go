package local

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/goliatone/go-authclient"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const sqliteCreateLocalUsers = `CREATE TABLE local_users (
    id TEXT NOT NULL PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT,
    password_hash TEXT,
    is_email_verified BOOLEAN DEFAULT FALSE,
    metadata TEXT,
    loggedin_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP NULL
);`

func setupGateway(t *testing.T, cfg Config) (*Gateway, func()) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	_, err = bunDB.Exec(sqliteCreateLocalUsers)
	require.NoError(t, err)

	if len(cfg.SigningKey) == 0 {
		cfg.SigningKey = []byte("test-signing-key")
	}

	gateway, err := New(bunDB, cfg)
	require.NoError(t, err)

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return gateway, cleanup
}

func TestSignUpThenSignIn(t *testing.T) {
	gateway, cleanup := setupGateway(t, Config{})
	defer cleanup()

	ctx := context.Background()

	session, err := gateway.SignUp(ctx, "User@Example.com", "secret")
	require.NoError(t, err)
	require.NotNil(t, session)
	require.NotNil(t, session.User)
	assert.NotEmpty(t, session.AccessToken)
	assert.Equal(t, "user@example.com", session.User.Email)

	// the account id is derived deterministically from the email
	expected, err := hashid.NewUUID("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, expected.String(), session.User.ID)

	again, err := gateway.SignIn(ctx, "user@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, again.User.ID)
}

func TestSignInWrongPassword(t *testing.T) {
	gateway, cleanup := setupGateway(t, Config{})
	defer cleanup()

	ctx := context.Background()

	_, err := gateway.SignUp(ctx, "user@example.com", "secret")
	require.NoError(t, err)

	_, err = gateway.SignIn(ctx, "user@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, authclient.IsCredentialError(err))
}

func TestSignInUnknownEmail(t *testing.T) {
	gateway, cleanup := setupGateway(t, Config{})
	defer cleanup()

	_, err := gateway.SignIn(context.Background(), "nobody@example.com", "secret")
	require.Error(t, err)
	assert.True(t, authclient.IsCredentialError(err))
}

func TestSignUpDuplicateEmail(t *testing.T) {
	gateway, cleanup := setupGateway(t, Config{})
	defer cleanup()

	ctx := context.Background()

	_, err := gateway.SignUp(ctx, "user@example.com", "secret")
	require.NoError(t, err)

	_, err = gateway.SignUp(ctx, "user@example.com", "other")
	require.Error(t, err)
}

func TestConfirmationRequiredFlow(t *testing.T) {
	gateway, cleanup := setupGateway(t, Config{RequireEmailConfirmation: true})
	defer cleanup()

	ctx := context.Background()

	session, err := gateway.SignUp(ctx, "user@example.com", "secret")
	require.NoError(t, err)
	assert.Empty(t, session.AccessToken)

	// unconfirmed accounts cannot sign in yet
	_, err = gateway.SignIn(ctx, "user@example.com", "secret")
	require.Error(t, err)

	token, ok := gateway.PendingOTP("user@example.com")
	require.True(t, ok)

	verified, err := gateway.VerifyOTP(ctx, token, authclient.OTPTypeSignup)
	require.NoError(t, err)
	assert.NotEmpty(t, verified.AccessToken)
	assert.True(t, verified.User.EmailConfirmed)

	_, err = gateway.SignIn(ctx, "user@example.com", "secret")
	assert.NoError(t, err)
}

func TestVerifyOTPRejectsUnknownToken(t *testing.T) {
	gateway, cleanup := setupGateway(t, Config{})
	defer cleanup()

	_, err := gateway.VerifyOTP(context.Background(), "bogus", authclient.OTPTypeSignup)
	require.Error(t, err)
}

func TestGetSessionRefreshesExpiredToken(t *testing.T) {
	gateway, cleanup := setupGateway(t, Config{TokenTTL: time.Hour})
	defer cleanup()

	ctx := context.Background()

	session, err := gateway.SignUp(ctx, "user@example.com", "secret")
	require.NoError(t, err)

	// force the persisted session past expiry
	session.ExpiresAt = time.Now().Add(-time.Minute)
	gateway.persist(session)

	refreshed, err := gateway.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.False(t, refreshed.Expired(time.Now()))
	assert.NotEqual(t, session.RefreshToken, refreshed.RefreshToken)
}

func TestSignOutClearsSession(t *testing.T) {
	gateway, cleanup := setupGateway(t, Config{})
	defer cleanup()

	ctx := context.Background()

	_, err := gateway.SignUp(ctx, "user@example.com", "secret")
	require.NoError(t, err)

	require.NoError(t, gateway.SignOut(ctx))

	session, err := gateway.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestResetPasswordDoesNotLeakAccounts(t *testing.T) {
	gateway, cleanup := setupGateway(t, Config{})
	defer cleanup()

	// unknown addresses succeed silently
	assert.NoError(t, gateway.ResetPasswordForEmail(context.Background(), "nobody@example.com"))
}

func TestUpdateUserChangesPassword(t *testing.T) {
	gateway, cleanup := setupGateway(t, Config{})
	defer cleanup()

	ctx := context.Background()

	_, err := gateway.SignUp(ctx, "user@example.com", "secret")
	require.NoError(t, err)

	_, err = gateway.UpdateUser(ctx, authclient.UserUpdate{Password: "newsecret"})
	require.NoError(t, err)

	_, err = gateway.SignIn(ctx, "user@example.com", "newsecret")
	assert.NoError(t, err)

	_, err = gateway.SignIn(ctx, "user@example.com", "secret")
	assert.Error(t, err)
}
