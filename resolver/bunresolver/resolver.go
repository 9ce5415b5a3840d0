package bunresolver

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-authclient"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Resolver implements authclient.BusinessResolver over bun-managed tables.
type Resolver struct {
	db         *bun.DB
	members    Members
	selections Selections
}

var _ authclient.BusinessResolver = (*Resolver)(nil)

func New(db *bun.DB) *Resolver {
	return &Resolver{
		db:         db,
		members:    NewMembersRepository(db),
		selections: NewSelectionsRepository(db),
	}
}

// ActiveBusiness returns the user's selected business ID, or "" when no
// selection exists.
func (r *Resolver) ActiveBusiness(ctx context.Context, userID string) (string, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return "", err
	}

	selection, err := r.selections.GetForUser(ctx, uid)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", nil
		}
		return "", goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load business selection")
	}

	return selection.BusinessID.String(), nil
}

// SetActiveBusiness validates membership and saves the selection row in one
// transaction.
func (r *Resolver) SetActiveBusiness(ctx context.Context, userID, businessID string) error {
	uid, err := parseUserID(userID)
	if err != nil {
		return err
	}

	bid, err := uuid.Parse(businessID)
	if err != nil {
		return goerrors.New("invalid business ID", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := r.members.GetActiveTx(ctx, tx, uid, bid)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return goerrors.New("user is not a member of this business", goerrors.CategoryAuthz).
					WithCode(goerrors.CodeForbidden).
					WithMetadata(map[string]any{
						"business_id": businessID,
					})
			}
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to check membership")
		}

		if err := r.selections.SaveTx(ctx, tx, uid, bid); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to save business selection")
		}

		return nil
	})
}

func (r *Resolver) ClearActiveBusiness(ctx context.Context, userID string) error {
	uid, err := parseUserID(userID)
	if err != nil {
		return err
	}

	if err := r.selections.ClearForUser(ctx, uid); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to clear business selection")
	}

	return nil
}

func (r *Resolver) ListMemberships(ctx context.Context, userID string) ([]authclient.Membership, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	records, err := r.members.ListForUser(ctx, uid)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to list memberships")
	}

	memberships := make([]authclient.Membership, 0, len(records))
	for _, record := range records {
		membership := authclient.Membership{
			BusinessID: record.BusinessID.String(),
			Role:       record.Role,
			Active:     record.Active,
		}
		if record.Business != nil {
			membership.BusinessName = record.Business.Name
		}
		memberships = append(memberships, membership)
	}

	return memberships, nil
}

func (r *Resolver) ValidateAccess(ctx context.Context, userID, businessID string) (bool, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return false, err
	}

	bid, err := uuid.Parse(businessID)
	if err != nil {
		return false, nil
	}

	exists, err := r.members.HasActive(ctx, uid, bid)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to check access")
	}

	return exists, nil
}

func parseUserID(userID string) (uuid.UUID, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, goerrors.New("invalid user ID", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	return uid, nil
}
