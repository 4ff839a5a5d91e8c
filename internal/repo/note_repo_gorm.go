package repo

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"notes-datalayer/internal/domain"
)

type NoteRepo struct {
	*Repository[domain.Note, *domain.Note]
}

var _ domain.NoteRepository = (*NoteRepo)(nil)

func NewNoteRepo(db *gorm.DB, log *zap.Logger, opts ...Option) *NoteRepo {
	return &NoteRepo{New[domain.Note](db, log, opts...)}
}

// Create defaults the content type to text and the source to telegram.
func (r *NoteRepo) Create(ctx context.Context, n *domain.Note) (*domain.Note, error) {
	const op = "create"
	if n != nil {
		if n.ContentType == "" {
			n.ContentType = domain.ContentText
		}
		if n.Source == "" {
			n.Source = domain.SourceTelegram
		}
		if !n.ContentType.Valid() {
			return nil, invalidArgument(op, "unknown content type %q", n.ContentType)
		}
		if !n.Source.Valid() {
			return nil, invalidArgument(op, "unknown note source %q", n.Source)
		}
	}
	return r.Repository.Create(ctx, n)
}

func (r *NoteRepo) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.Note, error) {
	return r.Find(ctx, "list_by_user", Query{
		Where: []clause.Expression{eq("user_id", userID)},
		Order: []clause.OrderByColumn{desc(domain.ColCreatedAt)},
	}, offset, limit)
}

// SearchByContent does a case-insensitive substring match; LIKE wildcards in
// query match literally.
func (r *NoteRepo) SearchByContent(ctx context.Context, userID uuid.UUID, query string, offset, limit int) ([]domain.Note, error) {
	return r.Find(ctx, "search_by_content", Query{
		Where: []clause.Expression{
			eq("user_id", userID),
			clause.Expr{
				SQL:  "LOWER(?) LIKE LOWER(?) ESCAPE '!'",
				Vars: []any{clause.Column{Name: "content"}, "%" + escapeLike(query) + "%"},
			},
		},
		Order: []clause.OrderByColumn{desc(domain.ColCreatedAt)},
	}, offset, limit)
}

func (r *NoteRepo) ListByContentType(ctx context.Context, userID uuid.UUID, ct domain.ContentType, offset, limit int) ([]domain.Note, error) {
	const op = "list_by_content_type"
	if !ct.Valid() {
		return nil, invalidArgument(op, "unknown content type %q", ct)
	}
	return r.Find(ctx, op, Query{
		Where: []clause.Expression{eq("user_id", userID), eq("content_type", ct)},
		Order: []clause.OrderByColumn{desc(domain.ColCreatedAt)},
	}, offset, limit)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string { return likeEscaper.Replace(s) }
