package domain

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"notes-datalayer/internal/schema"
)

type ContentType string

const (
	ContentText  ContentType = "text"
	ContentVoice ContentType = "voice"
	ContentPDF   ContentType = "pdf"
	ContentImage ContentType = "image"
)

func (c ContentType) Valid() bool {
	switch c {
	case ContentText, ContentVoice, ContentPDF, ContentImage:
		return true
	}
	return false
}

type NoteSource string

const (
	SourceTelegram NoteSource = "telegram"
	SourceAPI      NoteSource = "api"
)

func (s NoteSource) Valid() bool { return s == SourceTelegram || s == SourceAPI }

// Note is owned by a user. Tags and the embedding are JSON arrays so the same
// schema works on every supported dialect.
type Note struct {
	Base
	UserID          uuid.UUID                    `gorm:"size:36;not null;index;index:idx_notes_user_created,priority:1" json:"user_id"`
	User            *User                        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Content         string                       `gorm:"type:text;not null" json:"content"`
	ContentType     ContentType                  `gorm:"size:20;not null;index" json:"content_type"`
	Source          NoteSource                   `gorm:"size:20;not null;index" json:"source"`
	FilePath        *string                      `gorm:"size:512" json:"file_path,omitempty"`
	Summary         *string                      `gorm:"type:text" json:"summary,omitempty"`
	Tags            datatypes.JSONSlice[string]  `json:"tags,omitempty"`
	VectorEmbedding datatypes.JSONSlice[float64] `json:"vector_embedding,omitempty"`
	Metadata        datatypes.JSONMap            `gorm:"column:metadata" json:"metadata,omitempty"`
	SoftDelete
}

var noteSchema = schema.New("Note", "notes",
	baseFields(),
	[]schema.Field{
		ownerField(),
		{Column: "content", Type: schema.Text},
		{Column: "content_type", Type: schema.String},
		{Column: "source", Type: schema.String},
		{Column: "file_path", Type: schema.String, Nullable: true},
		{Column: "summary", Type: schema.Text, Nullable: true},
		{Column: "tags", Type: schema.JSON, Nullable: true},
		{Column: "vector_embedding", Type: schema.JSON, Nullable: true},
		{Column: "metadata", Type: schema.JSON, Nullable: true},
	},
	softDeleteFields(),
)

func (Note) TableName() string              { return "notes" }
func (Note) Descriptor() *schema.Descriptor { return noteSchema }

type NoteRepository interface {
	Create(ctx context.Context, n *Note) (*Note, error)
	Get(ctx context.Context, id uuid.UUID) (*Note, error)
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]Note, error)
	SearchByContent(ctx context.Context, userID uuid.UUID, query string, offset, limit int) ([]Note, error)
	ListByContentType(ctx context.Context, userID uuid.UUID, ct ContentType, offset, limit int) ([]Note, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
