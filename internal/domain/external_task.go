package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"notes-datalayer/internal/schema"
)

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

func (s SyncStatus) Valid() bool {
	switch s {
	case SyncPending, SyncSynced, SyncError:
		return true
	}
	return false
}

// ExternalTask mirrors a task held by the external task tracker.
type ExternalTask struct {
	Base
	UserID            uuid.UUID  `gorm:"size:36;not null;index;index:idx_external_tasks_user_sync,priority:1" json:"user_id"`
	User              *User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	NoteID            *uuid.UUID `gorm:"size:36;index" json:"note_id,omitempty"`
	Note              *Note      `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	ExternalTaskID    int64      `gorm:"uniqueIndex;not null" json:"external_task_id"`
	ExternalProjectID *int64     `json:"external_project_id,omitempty"`
	Content           string     `gorm:"type:text;not null" json:"content"`
	DueAt             *time.Time `json:"due_at,omitempty"`
	IsCompleted       bool       `gorm:"not null;index" json:"is_completed"`
	SyncStatus        SyncStatus `gorm:"size:20;not null;index;index:idx_external_tasks_user_sync,priority:2" json:"sync_status"`
	SoftDelete
}

var externalTaskSchema = schema.New("ExternalTask", "external_tasks",
	baseFields(),
	[]schema.Field{
		ownerField(),
		noteLinkField(),
		{Column: "external_task_id", Type: schema.Int, Unique: true},
		{Column: "external_project_id", Type: schema.Int, Nullable: true},
		{Column: "content", Type: schema.Text},
		{Column: "due_at", Type: schema.Time, Nullable: true},
		{Column: "is_completed", Type: schema.Bool},
		{Column: "sync_status", Type: schema.String},
	},
	softDeleteFields(),
)

func (ExternalTask) TableName() string              { return "external_tasks" }
func (ExternalTask) Descriptor() *schema.Descriptor { return externalTaskSchema }

// BeforeCreate defaults the sync status of freshly mirrored tasks and normalizes the due time.
func (t *ExternalTask) BeforeCreate(*gorm.DB) error {
	if t.SyncStatus == "" {
		t.SyncStatus = SyncPending
	}
	t.DueAt = InstantPtr(t.DueAt)
	return nil
}

type ExternalTaskRepository interface {
	Create(ctx context.Context, t *ExternalTask) (*ExternalTask, error)
	GetByExternalID(ctx context.Context, externalTaskID int64) (*ExternalTask, error)
	ListBySyncStatus(ctx context.Context, status SyncStatus, offset, limit int) ([]ExternalTask, error)
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]ExternalTask, error)
	SetSyncStatus(ctx context.Context, id uuid.UUID, status SyncStatus) (*ExternalTask, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (*ExternalTask, error)
}
