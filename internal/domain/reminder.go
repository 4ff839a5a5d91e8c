package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"notes-datalayer/internal/schema"
)

type Reminder struct {
	Base
	UserID   uuid.UUID  `gorm:"size:36;not null;index;index:idx_reminders_user_remind,priority:1" json:"user_id"`
	User     *User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	NoteID   *uuid.UUID `gorm:"size:36;index" json:"note_id,omitempty"`
	Note     *Note      `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	RemindAt time.Time  `gorm:"not null;index;index:idx_reminders_user_remind,priority:2" json:"remind_at"`
	Message  string     `gorm:"type:text;not null" json:"message"`
	IsSent   bool       `gorm:"not null;index" json:"is_sent"`
	SoftDelete
}

var reminderSchema = schema.New("Reminder", "reminders",
	baseFields(),
	[]schema.Field{
		ownerField(),
		noteLinkField(),
		{Column: "remind_at", Type: schema.Time},
		{Column: "message", Type: schema.Text},
		{Column: "is_sent", Type: schema.Bool},
	},
	softDeleteFields(),
)

func (Reminder) TableName() string              { return "reminders" }
func (Reminder) Descriptor() *schema.Descriptor { return reminderSchema }

func (r *Reminder) BeforeCreate(*gorm.DB) error {
	r.RemindAt = Instant(r.RemindAt)
	return nil
}

type ReminderRepository interface {
	Create(ctx context.Context, r *Reminder) (*Reminder, error)
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]Reminder, error)
	ListPending(ctx context.Context, before time.Time, offset, limit int) ([]Reminder, error)
	ListUnsent(ctx context.Context, userID uuid.UUID, offset, limit int) ([]Reminder, error)
	MarkSent(ctx context.Context, id uuid.UUID) (*Reminder, error)
}
