package repo

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"notes-datalayer/internal/domain"
)

type UserRepo struct {
	*Repository[domain.User, *domain.User]
}

var _ domain.UserRepository = (*UserRepo)(nil)

func NewUserRepo(db *gorm.DB, log *zap.Logger, opts ...Option) *UserRepo {
	return &UserRepo{New[domain.User](db, log, opts...)}
}

func (r *UserRepo) GetByExternalID(ctx context.Context, externalID int64) (*domain.User, error) {
	return r.FindOne(ctx, "get_by_external_id", eq("external_id", externalID))
}

// GetOrCreateByExternalID returns the live user with externalID, creating it from
// defaults when absent. A concurrent creator winning the insert is resolved by
// re-reading; defaults may be nil.
func (r *UserRepo) GetOrCreateByExternalID(ctx context.Context, externalID int64, defaults *domain.User) (*domain.User, error) {
	const op = "get_or_create_by_external_id"
	u, err := r.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	fresh := domain.NewUser(externalID)
	if defaults != nil {
		c := *defaults
		c.ExternalID = externalID
		fresh = &c
	}
	created, err := r.Create(ctx, fresh)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, ErrConstraintViolation) {
		return nil, err
	}

	r.log.Info("user created concurrently, re-reading", zap.Int64("external_id", externalID))
	u, rerr := r.GetByExternalID(ctx, externalID)
	if rerr != nil {
		return nil, rerr
	}
	if u == nil {
		return nil, &Error{
			Kind:   KindRuntime,
			Op:     op,
			Entity: r.desc.Entity(),
			Msg:    fmt.Sprintf("user with external_id=%d missing after constraint violation", externalID),
			Err:    err,
		}
	}
	return u, nil
}

func (r *UserRepo) ListActive(ctx context.Context, offset, limit int) ([]domain.User, error) {
	return r.Find(ctx, "list_active", Query{
		Where: []clause.Expression{eq("is_active", true)},
		Order: []clause.OrderByColumn{asc(domain.ColCreatedAt)},
	}, offset, limit)
}

func asc(column string) clause.OrderByColumn {
	return clause.OrderByColumn{Column: clause.Column{Name: column}}
}

func desc(column string) clause.OrderByColumn {
	return clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: true}
}
