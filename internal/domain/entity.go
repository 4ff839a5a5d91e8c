package domain

import (
	"time"

	"github.com/google/uuid"

	"notes-datalayer/internal/schema"
)

// Column names shared by every entity.
const (
	ColID        = "id"
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"
	ColDeletedAt = "deleted_at"
)

// Entity is what the generic repository needs from a persisted type.
type Entity interface {
	TableName() string
	Descriptor() *schema.Descriptor
	PrimaryKey() uuid.UUID
	Stamp(id uuid.UUID, at time.Time)
}

// SoftDeletable marks entities whose delete only sets a deleted marker.
type SoftDeletable interface {
	Entity
	DeletedMarker() *time.Time
	SetDeletedMarker(at *time.Time)
}

// Base carries the identifier and the mutation timestamps.
type Base struct {
	ID        uuid.UUID `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (b *Base) PrimaryKey() uuid.UUID { return b.ID }

// Instant is the stored form of a time: UTC at microsecond precision. Every
// dialect round-trips it unchanged, and SQLite's text timestamps compare in
// time order only when they share the UTC offset.
func Instant(t time.Time) time.Time { return t.UTC().Truncate(time.Microsecond) }

func InstantPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := Instant(*t)
	return &v
}

// Stamp assigns identity and both timestamps; used once, on create.
func (b *Base) Stamp(id uuid.UUID, at time.Time) {
	b.ID = id
	b.CreatedAt = at
	b.UpdatedAt = at
}

// SoftDelete is embedded by entities that support soft delete.
type SoftDelete struct {
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

func (s *SoftDelete) DeletedMarker() *time.Time      { return s.DeletedAt }
func (s *SoftDelete) SetDeletedMarker(at *time.Time) { s.DeletedAt = at }
func (s *SoftDelete) IsDeleted() bool                { return s.DeletedAt != nil }

func baseFields() []schema.Field {
	return []schema.Field{
		{Column: ColID, Type: schema.UUID, Unique: true, Immutable: true},
		{Column: ColCreatedAt, Type: schema.Time, Immutable: true},
		{Column: ColUpdatedAt, Type: schema.Time},
	}
}

func softDeleteFields() []schema.Field {
	return []schema.Field{
		{Column: ColDeletedAt, Type: schema.Time, Nullable: true, Immutable: true},
	}
}

func ownerField() schema.Field {
	return schema.Field{Column: "user_id", Type: schema.UUID, References: "users.id", OnDelete: schema.Cascade}
}

func noteLinkField() schema.Field {
	return schema.Field{Column: "note_id", Type: schema.UUID, Nullable: true, References: "notes.id", OnDelete: schema.SetNull}
}

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{&User{}, &Note{}, &Reminder{}, &ExternalTask{}, &Session{}}
}
