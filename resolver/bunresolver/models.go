// Package bunresolver persists business associations in SQL and serves them
// through the client's resolver interface.
package bunresolver

import (
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MemberRole is a user's role within a business.
type MemberRole = string

const (
	RoleMember MemberRole = "member"
	RoleAdmin  MemberRole = "admin"
	RoleOwner  MemberRole = "owner"
)

// Business is a tenant record.
type Business struct {
	bun.BaseModel `bun:"table:businesses,alias:biz"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// BusinessMember links a user to a business with a role.
type BusinessMember struct {
	bun.BaseModel `bun:"table:business_members,alias:bzm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	BusinessID    uuid.UUID  `bun:"business_id,notnull,type:uuid" json:"business_id,omitempty"`
	Role          MemberRole `bun:"member_role,notnull" json:"member_role,omitempty"`
	Active        bool       `bun:"is_active" json:"is_active,omitempty"`
	Business      *Business  `bun:"rel:belongs-to,join:business_id=id" json:"business,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// ActiveSelection records which business a user currently operates as. One
// row per user.
type ActiveSelection struct {
	bun.BaseModel `bun:"table:active_business_selections,alias:abs"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	BusinessID    uuid.UUID  `bun:"business_id,notnull,type:uuid" json:"business_id,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

func init() {
	persistence.RegisterModel((*Business)(nil))
	persistence.RegisterModel((*BusinessMember)(nil))
	persistence.RegisterModel((*ActiveSelection)(nil))
}
