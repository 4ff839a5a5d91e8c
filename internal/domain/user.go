package domain

import (
	"context"

	"github.com/google/uuid"

	"notes-datalayer/internal/schema"
)

type User struct {
	Base
	ExternalID   int64   `gorm:"column:external_id;uniqueIndex;not null" json:"external_id"`
	Username     *string `gorm:"size:255" json:"username,omitempty"`
	FirstName    *string `gorm:"size:255" json:"first_name,omitempty"`
	LastName     *string `gorm:"size:255" json:"last_name,omitempty"`
	LanguageCode *string `gorm:"size:10" json:"language_code,omitempty"`
	IsActive     bool    `gorm:"not null;index" json:"is_active"`
	SoftDelete
}

var userSchema = schema.New("User", "users",
	baseFields(),
	[]schema.Field{
		{Column: "external_id", Type: schema.Int, Unique: true},
		{Column: "username", Type: schema.String, Nullable: true},
		{Column: "first_name", Type: schema.String, Nullable: true},
		{Column: "last_name", Type: schema.String, Nullable: true},
		{Column: "language_code", Type: schema.String, Nullable: true},
		{Column: "is_active", Type: schema.Bool},
	},
	softDeleteFields(),
)

// NewUser returns an active user for the given platform id.
func NewUser(externalID int64) *User {
	return &User{ExternalID: externalID, IsActive: true}
}

func (User) TableName() string              { return "users" }
func (User) Descriptor() *schema.Descriptor { return userSchema }

type UserRepository interface {
	Create(ctx context.Context, u *User) (*User, error)
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	GetByExternalID(ctx context.Context, externalID int64) (*User, error)
	GetOrCreateByExternalID(ctx context.Context, externalID int64, defaults *User) (*User, error)
	ListActive(ctx context.Context, offset, limit int) ([]User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
