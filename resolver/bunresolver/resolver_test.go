package bunresolver

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateBusinesses = `CREATE TABLE businesses (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP NULL
);`
	sqliteCreateMembers = `CREATE TABLE business_members (
    id TEXT NOT NULL PRIMARY KEY,
    user_id TEXT NOT NULL,
    business_id TEXT NOT NULL,
    member_role TEXT NOT NULL,
    is_active BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP NULL
);`
	sqliteCreateSelections = `CREATE TABLE active_business_selections (
    id TEXT NOT NULL PRIMARY KEY,
    user_id TEXT NOT NULL UNIQUE,
    business_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP
);`
)

func setupResolver(t *testing.T) (*Resolver, *bun.DB, func()) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	for _, ddl := range []string{sqliteCreateBusinesses, sqliteCreateMembers, sqliteCreateSelections} {
		_, err = bunDB.Exec(ddl)
		require.NoError(t, err)
	}

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return New(bunDB), bunDB, cleanup
}

func seedMembership(t *testing.T, db *bun.DB, userID, businessID uuid.UUID, name string, active bool) {
	t.Helper()

	ctx := context.Background()

	business := &Business{ID: businessID, Name: name}
	_, err := db.NewInsert().Model(business).Exec(ctx)
	require.NoError(t, err)

	member := &BusinessMember{
		ID:         uuid.New(),
		UserID:     userID,
		BusinessID: businessID,
		Role:       RoleOwner,
		Active:     active,
	}
	_, err = db.NewInsert().Model(member).Exec(ctx)
	require.NoError(t, err)
}

func TestActiveBusinessEmptyWithoutSelection(t *testing.T) {
	resolver, _, cleanup := setupResolver(t)
	defer cleanup()

	businessID, err := resolver.ActiveBusiness(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, businessID)
}

func TestSetActiveBusinessRequiresMembership(t *testing.T) {
	resolver, _, cleanup := setupResolver(t)
	defer cleanup()

	err := resolver.SetActiveBusiness(context.Background(), uuid.NewString(), uuid.NewString())
	require.Error(t, err)
}

func TestSetActiveBusinessRoundTrip(t *testing.T) {
	resolver, db, cleanup := setupResolver(t)
	defer cleanup()

	userID := uuid.New()
	businessID := uuid.New()
	seedMembership(t, db, userID, businessID, "Shop One", true)

	ctx := context.Background()

	require.NoError(t, resolver.SetActiveBusiness(ctx, userID.String(), businessID.String()))

	found, err := resolver.ActiveBusiness(ctx, userID.String())
	require.NoError(t, err)
	assert.Equal(t, businessID.String(), found)
}

func TestSetActiveBusinessReplacesSelection(t *testing.T) {
	resolver, db, cleanup := setupResolver(t)
	defer cleanup()

	userID := uuid.New()
	first := uuid.New()
	second := uuid.New()
	seedMembership(t, db, userID, first, "Shop One", true)
	seedMembership(t, db, userID, second, "Shop Two", true)

	ctx := context.Background()

	require.NoError(t, resolver.SetActiveBusiness(ctx, userID.String(), first.String()))
	require.NoError(t, resolver.SetActiveBusiness(ctx, userID.String(), second.String()))

	found, err := resolver.ActiveBusiness(ctx, userID.String())
	require.NoError(t, err)
	assert.Equal(t, second.String(), found)
}

func TestSetActiveBusinessKeepsSingleSelectionRow(t *testing.T) {
	resolver, db, cleanup := setupResolver(t)
	defer cleanup()

	userID := uuid.New()
	first := uuid.New()
	second := uuid.New()
	seedMembership(t, db, userID, first, "Shop One", true)
	seedMembership(t, db, userID, second, "Shop Two", true)

	ctx := context.Background()

	require.NoError(t, resolver.SetActiveBusiness(ctx, userID.String(), first.String()))
	require.NoError(t, resolver.SetActiveBusiness(ctx, userID.String(), second.String()))

	// the second choice updates the existing row instead of adding one
	count, err := db.NewSelect().
		Model((*ActiveSelection)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSetActiveBusinessRejectsInactiveMembership(t *testing.T) {
	resolver, db, cleanup := setupResolver(t)
	defer cleanup()

	userID := uuid.New()
	businessID := uuid.New()
	seedMembership(t, db, userID, businessID, "Dormant Shop", false)

	err := resolver.SetActiveBusiness(context.Background(), userID.String(), businessID.String())
	require.Error(t, err)
}

func TestClearActiveBusiness(t *testing.T) {
	resolver, db, cleanup := setupResolver(t)
	defer cleanup()

	userID := uuid.New()
	businessID := uuid.New()
	seedMembership(t, db, userID, businessID, "Shop One", true)

	ctx := context.Background()

	require.NoError(t, resolver.SetActiveBusiness(ctx, userID.String(), businessID.String()))
	require.NoError(t, resolver.ClearActiveBusiness(ctx, userID.String()))

	found, err := resolver.ActiveBusiness(ctx, userID.String())
	require.NoError(t, err)
	assert.Empty(t, found)

	// clearing again is safe
	assert.NoError(t, resolver.ClearActiveBusiness(ctx, userID.String()))
}

func TestListMemberships(t *testing.T) {
	resolver, db, cleanup := setupResolver(t)
	defer cleanup()

	userID := uuid.New()
	active := uuid.New()
	dormant := uuid.New()
	seedMembership(t, db, userID, active, "Active Shop", true)
	seedMembership(t, db, userID, dormant, "Dormant Shop", false)

	memberships, err := resolver.ListMemberships(context.Background(), userID.String())
	require.NoError(t, err)
	require.Len(t, memberships, 2)

	byID := map[string]bool{}
	for _, m := range memberships {
		byID[m.BusinessID] = m.Active
		assert.NotEmpty(t, m.BusinessName)
	}
	assert.True(t, byID[active.String()])
	assert.False(t, byID[dormant.String()])
}

func TestValidateAccess(t *testing.T) {
	resolver, db, cleanup := setupResolver(t)
	defer cleanup()

	userID := uuid.New()
	businessID := uuid.New()
	seedMembership(t, db, userID, businessID, "Shop One", true)

	ctx := context.Background()

	ok, err := resolver.ValidateAccess(ctx, userID.String(), businessID.String())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = resolver.ValidateAccess(ctx, userID.String(), uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)

	// malformed business ids are an access denial, not an error
	ok, err = resolver.ValidateAccess(ctx, userID.String(), "not-a-uuid")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidUserIDRejected(t *testing.T) {
	resolver, _, cleanup := setupResolver(t)
	defer cleanup()

	_, err := resolver.ActiveBusiness(context.Background(), "not-a-uuid")
	require.Error(t, err)
}
