package bunresolver

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Members reads membership rows. The resolver never writes memberships;
// provisioning them belongs to the tenant management surface.
type Members interface {
	GetActive(ctx context.Context, userID, businessID uuid.UUID) (*BusinessMember, error)
	GetActiveTx(ctx context.Context, tx bun.IDB, userID, businessID uuid.UUID) (*BusinessMember, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*BusinessMember, error)
	HasActive(ctx context.Context, userID, businessID uuid.UUID) (bool, error)
}

type members struct {
	db *bun.DB
}

var _ Members = (*members)(nil)

func NewMembersRepository(db *bun.DB) Members {
	return &members{db: db}
}

func (m *members) GetActive(ctx context.Context, userID, businessID uuid.UUID) (*BusinessMember, error) {
	return m.GetActiveTx(ctx, m.db, userID, businessID)
}

func (m *members) GetActiveTx(ctx context.Context, tx bun.IDB, userID, businessID uuid.UUID) (*BusinessMember, error) {
	record := &BusinessMember{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.business_id = ?", businessID).
		Where("?TableAlias.is_active = TRUE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (m *members) ListForUser(ctx context.Context, userID uuid.UUID) ([]*BusinessMember, error) {
	var records []*BusinessMember
	err := m.db.NewSelect().
		Model(&records).
		Relation("Business").
		Where("?TableAlias.user_id = ?", userID).
		Order("bzm.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (m *members) HasActive(ctx context.Context, userID, businessID uuid.UUID) (bool, error) {
	return m.db.NewSelect().
		Model((*BusinessMember)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.business_id = ?", businessID).
		Where("?TableAlias.is_active = TRUE").
		Exists(ctx)
}

// Selections persists the one-row-per-user active business choice. Reads are
// domain finders; writes go through the generic repository.
type Selections interface {
	repository.Repository[*ActiveSelection]

	GetForUser(ctx context.Context, userID uuid.UUID) (*ActiveSelection, error)
	GetForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*ActiveSelection, error)
	SaveTx(ctx context.Context, tx bun.IDB, userID, businessID uuid.UUID) error
	ClearForUser(ctx context.Context, userID uuid.UUID) error
}

type selections struct {
	repository.Repository[*ActiveSelection]
	db *bun.DB
}

var (
	_ Selections                               = (*selections)(nil)
	_ repository.Repository[*ActiveSelection] = (*selections)(nil)
)

func NewSelectionsRepository(db *bun.DB) Selections {
	repo := repository.NewRepository[*ActiveSelection](db, repository.ModelHandlers[*ActiveSelection]{
		NewRecord: func() *ActiveSelection { return &ActiveSelection{} },
		GetID: func(s *ActiveSelection) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *ActiveSelection, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	return &selections{
		Repository: repo,
		db:         db,
	}
}

func (s *selections) GetForUser(ctx context.Context, userID uuid.UUID) (*ActiveSelection, error) {
	return s.GetForUserTx(ctx, s.db, userID)
}

func (s *selections) GetForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*ActiveSelection, error) {
	record := &ActiveSelection{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// SaveTx updates the user's selection in place, creating the row on first
// choice. Keyed on user_id rather than the primary key.
func (s *selections) SaveTx(ctx context.Context, tx bun.IDB, userID, businessID uuid.UUID) error {
	existing, err := s.GetForUserTx(ctx, tx, userID)
	if err == nil {
		record := &ActiveSelection{
			ID:         existing.ID,
			UserID:     userID,
			BusinessID: businessID,
		}
		_, err = s.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(existing.ID.String()))
		return err
	}

	if !repository.IsRecordNotFound(err) {
		return err
	}

	record := &ActiveSelection{
		ID:         uuid.New(),
		UserID:     userID,
		BusinessID: businessID,
	}
	_, err = s.Repository.CreateTx(ctx, tx, record)
	return err
}

func (s *selections) ClearForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.NewDelete().
		Model((*ActiveSelection)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}
