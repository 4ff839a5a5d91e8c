package repo

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"notes-datalayer/internal/domain"
)

type ExternalTaskRepo struct {
	*Repository[domain.ExternalTask, *domain.ExternalTask]
}

var _ domain.ExternalTaskRepository = (*ExternalTaskRepo)(nil)

func NewExternalTaskRepo(db *gorm.DB, log *zap.Logger, opts ...Option) *ExternalTaskRepo {
	return &ExternalTaskRepo{New[domain.ExternalTask](db, log, opts...)}
}

func (r *ExternalTaskRepo) Create(ctx context.Context, t *domain.ExternalTask) (*domain.ExternalTask, error) {
	if t != nil && t.SyncStatus != "" && !t.SyncStatus.Valid() {
		return nil, invalidArgument("create", "unknown sync status %q", t.SyncStatus)
	}
	return r.Repository.Create(ctx, t)
}

func (r *ExternalTaskRepo) GetByExternalID(ctx context.Context, externalTaskID int64) (*domain.ExternalTask, error) {
	return r.FindOne(ctx, "get_by_external_id", eq("external_task_id", externalTaskID))
}

func (r *ExternalTaskRepo) ListBySyncStatus(ctx context.Context, status domain.SyncStatus, offset, limit int) ([]domain.ExternalTask, error) {
	const op = "list_by_sync_status"
	if !status.Valid() {
		return nil, invalidArgument(op, "unknown sync status %q", status)
	}
	return r.Find(ctx, op, Query{
		Where: []clause.Expression{eq("sync_status", status)},
		Order: []clause.OrderByColumn{desc(domain.ColCreatedAt)},
	}, offset, limit)
}

func (r *ExternalTaskRepo) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.ExternalTask, error) {
	return r.Find(ctx, "list_by_user", Query{
		Where: []clause.Expression{eq("user_id", userID)},
		Order: []clause.OrderByColumn{desc(domain.ColCreatedAt)},
	}, offset, limit)
}

func (r *ExternalTaskRepo) SetSyncStatus(ctx context.Context, id uuid.UUID, status domain.SyncStatus) (*domain.ExternalTask, error) {
	if !status.Valid() {
		return nil, invalidArgument("set_sync_status", "unknown sync status %q", status)
	}
	return r.Update(ctx, id, Fields{"sync_status": status})
}

func (r *ExternalTaskRepo) MarkCompleted(ctx context.Context, id uuid.UUID) (*domain.ExternalTask, error) {
	return r.Update(ctx, id, Fields{"is_completed": true})
}
