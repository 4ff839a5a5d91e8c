package repo

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"notes-datalayer/internal/domain"
)

type SessionRepo struct {
	*Repository[domain.Session, *domain.Session]
}

var _ domain.SessionRepository = (*SessionRepo)(nil)

func NewSessionRepo(db *gorm.DB, log *zap.Logger, opts ...Option) *SessionRepo {
	return &SessionRepo{New[domain.Session](db, log, opts...)}
}

func (r *SessionRepo) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.Session, error) {
	return r.Find(ctx, "list_by_user", Query{
		Where: []clause.Expression{eq("user_id", userID)},
		Order: []clause.OrderByColumn{desc("last_activity")},
	}, offset, limit)
}

// Touch records activity on the session and, when state is non-nil, moves it to state.
func (r *SessionRepo) Touch(ctx context.Context, id uuid.UUID, state *string) (*domain.Session, error) {
	fields := Fields{"last_activity": r.now()}
	if state != nil {
		fields["state"] = *state
	}
	return r.Update(ctx, id, fields)
}
