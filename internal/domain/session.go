package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"notes-datalayer/internal/schema"
)

// Session holds the conversation context of a user.
type Session struct {
	Base
	UserID       uuid.UUID         `gorm:"size:36;not null;index;index:idx_sessions_user_activity,priority:1" json:"user_id"`
	User         *User             `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Context      datatypes.JSONMap `gorm:"not null" json:"context"`
	State        *string           `gorm:"size:100;index" json:"state,omitempty"`
	LastActivity time.Time         `gorm:"not null;index;index:idx_sessions_user_activity,priority:2" json:"last_activity"`
	SoftDelete
}

var sessionSchema = schema.New("Session", "sessions",
	baseFields(),
	[]schema.Field{
		ownerField(),
		{Column: "context", Type: schema.JSON},
		{Column: "state", Type: schema.String, Nullable: true},
		{Column: "last_activity", Type: schema.Time},
	},
	softDeleteFields(),
)

func (Session) TableName() string              { return "sessions" }
func (Session) Descriptor() *schema.Descriptor { return sessionSchema }

// BeforeCreate fills the empty context and the first activity time.
func (s *Session) BeforeCreate(*gorm.DB) error {
	if s.Context == nil {
		s.Context = datatypes.JSONMap{}
	}
	if s.LastActivity.IsZero() {
		s.LastActivity = s.CreatedAt
	}
	s.LastActivity = Instant(s.LastActivity)
	return nil
}

type SessionRepository interface {
	Create(ctx context.Context, s *Session) (*Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]Session, error)
	Touch(ctx context.Context, id uuid.UUID, state *string) (*Session, error)
}
