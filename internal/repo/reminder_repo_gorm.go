package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"notes-datalayer/internal/domain"
)

type ReminderRepo struct {
	*Repository[domain.Reminder, *domain.Reminder]
}

var _ domain.ReminderRepository = (*ReminderRepo)(nil)

func NewReminderRepo(db *gorm.DB, log *zap.Logger, opts ...Option) *ReminderRepo {
	return &ReminderRepo{New[domain.Reminder](db, log, opts...)}
}

func (r *ReminderRepo) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.Reminder, error) {
	return r.Find(ctx, "list_by_user", Query{
		Where: []clause.Expression{eq("user_id", userID)},
		Order: []clause.OrderByColumn{asc("remind_at")},
	}, offset, limit)
}

// ListPending returns unsent reminders due at or before the given instant, across users.
func (r *ReminderRepo) ListPending(ctx context.Context, before time.Time, offset, limit int) ([]domain.Reminder, error) {
	return r.Find(ctx, "list_pending", Query{
		Where: []clause.Expression{
			eq("is_sent", false),
			clause.Lte{Column: clause.Column{Name: "remind_at"}, Value: domain.Instant(before)},
		},
		Order: []clause.OrderByColumn{asc("remind_at")},
	}, offset, limit)
}

func (r *ReminderRepo) ListUnsent(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.Reminder, error) {
	return r.Find(ctx, "list_unsent", Query{
		Where: []clause.Expression{eq("user_id", userID), eq("is_sent", false)},
		Order: []clause.OrderByColumn{asc("remind_at")},
	}, offset, limit)
}

func (r *ReminderRepo) MarkSent(ctx context.Context, id uuid.UUID) (*domain.Reminder, error) {
	return r.Update(ctx, id, Fields{"is_sent": true})
}
