// Package repo implements the generic soft-delete-aware repository over GORM and the
// entity repositories built on top of it.
package repo

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"notes-datalayer/internal/core/metrics"
	"notes-datalayer/internal/domain"
	"notes-datalayer/internal/schema"
)

// MaxLimit caps a single page.
const MaxLimit = 1000

// Filters are equality predicates keyed by column name. Unknown keys are ignored.
type Filters map[string]any

// Fields is a partial update keyed by column name.
type Fields map[string]any

// Model ties a struct type to its pointer, which carries the entity methods.
type Model[T any] interface {
	*T
	domain.Entity
}

// Query is a targeted read layered on the soft-delete and pagination contract.
type Query struct {
	Where []clause.Expression
	Order []clause.OrderByColumn
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for timestamps. Readings are stored
// as domain.Instant values whatever zone the clock reports.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Repository is the CRUD engine for one entity type. It holds no state between calls
// besides its handle, so a repository bound to a transaction is as cheap as New.
type Repository[T any, PT Model[T]] struct {
	db   *gorm.DB
	log  *zap.Logger
	desc *schema.Descriptor
	soft bool
	now  func() time.Time
}

func New[T any, PT Model[T]](db *gorm.DB, log *zap.Logger, opts ...Option) *Repository[T, PT] {
	zero := PT(new(T))
	desc := zero.Descriptor()
	_, soft := any(zero).(domain.SoftDeletable)
	if soft && !desc.Has(domain.ColDeletedAt) {
		panic(fmt.Sprintf("repo: %s is soft-deletable but its descriptor has no %s column", desc.Entity(), domain.ColDeletedAt))
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	clock := o.now
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository[T, PT]{
		db:   db,
		log:  log.Named("repo." + desc.Table()).With(zap.String("entity", desc.Entity())),
		desc: desc,
		soft: soft,
		now:  func() time.Time { return domain.Instant(clock()) },
	}
}

func (r *Repository[T, PT]) Descriptor() *schema.Descriptor { return r.desc }
func (r *Repository[T, PT]) SoftDeletable() bool            { return r.soft }

// Create assigns the id and timestamps and inserts the row in a transaction.
func (r *Repository[T, PT]) Create(ctx context.Context, e PT) (PT, error) {
	const op = "create"
	start := time.Now()
	if e == nil {
		return nil, r.done(op, start, invalidArgument(op, "nil %s", r.desc.Entity()))
	}

	e.Stamp(uuid.New(), r.now())
	if r.soft {
		any(e).(domain.SoftDeletable).SetDeletedMarker(nil)
	}

	err := r.write(ctx, func(tx *gorm.DB) error { return tx.Create(e).Error })
	if err != nil {
		err = storageFailure(op, r.desc.Entity(), err)
		r.log.Error("create failed", zap.Error(err))
		return nil, r.done(op, start, err)
	}
	r.log.Debug("created", zap.Stringer("id", e.PrimaryKey()))
	return e, r.done(op, start, nil)
}

// Get returns nil without error when the row is absent or soft-deleted.
func (r *Repository[T, PT]) Get(ctx context.Context, id uuid.UUID) (PT, error) {
	const op = "get"
	start := time.Now()
	e, err := r.get(ctx, op, id)
	return e, r.done(op, start, err)
}

// GetOrFail is Get with absence reported as a NotFound error.
func (r *Repository[T, PT]) GetOrFail(ctx context.Context, id uuid.UUID) (PT, error) {
	const op = "get_or_fail"
	start := time.Now()
	e, err := r.getOrFail(ctx, op, id)
	return e, r.done(op, start, err)
}

// Update applies only the supplied columns and bumps updated_at.
func (r *Repository[T, PT]) Update(ctx context.Context, id uuid.UUID, fields Fields) (PT, error) {
	const op = "update"
	start := time.Now()
	if _, err := r.getOrFail(ctx, op, id); err != nil {
		return nil, r.done(op, start, err)
	}
	values, err := r.assignments(op, fields)
	if err != nil {
		return nil, r.done(op, start, err)
	}

	var out T
	err = r.write(ctx, func(tx *gorm.DB) error {
		res := r.live(tx.Model(new(T)).Where(eq(domain.ColID, id))).Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound(op, r.desc.Entity(), id.String())
		}
		return tx.Where(eq(domain.ColID, id)).Take(&out).Error
	})
	if err != nil {
		err = storageFailure(op, r.desc.Entity(), err)
		r.logWriteFailure(op, id, err)
		return nil, r.done(op, start, err)
	}
	r.log.Debug("updated", zap.Stringer("id", id), zap.Strings("fields", keys(fields)))
	return PT(&out), r.done(op, start, nil)
}

// Delete soft-deletes when the entity supports it and removes the row otherwise.
func (r *Repository[T, PT]) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "delete"
	start := time.Now()
	if _, err := r.getOrFail(ctx, op, id); err != nil {
		return r.done(op, start, err)
	}

	now := r.now()
	err := r.write(ctx, func(tx *gorm.DB) error {
		var res *gorm.DB
		if r.soft {
			res = r.live(tx.Model(new(T)).Where(eq(domain.ColID, id))).
				Updates(map[string]any{domain.ColDeletedAt: now, domain.ColUpdatedAt: now})
		} else {
			res = tx.Where(eq(domain.ColID, id)).Delete(new(T))
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound(op, r.desc.Entity(), id.String())
		}
		return nil
	})
	if err != nil {
		err = storageFailure(op, r.desc.Entity(), err)
		r.logWriteFailure(op, id, err)
		return r.done(op, start, err)
	}
	if r.soft {
		r.log.Debug("soft deleted", zap.Stringer("id", id))
	} else {
		r.log.Debug("hard deleted", zap.Stringer("id", id))
	}
	return r.done(op, start, nil)
}

// List returns one page. Unknown filter keys are ignored and an unknown sort field is
// skipped with a warning; sortField may carry a leading '-' for descending order.
func (r *Repository[T, PT]) List(ctx context.Context, offset, limit int, filters Filters, sortField string) ([]T, error) {
	const op = "list"
	start := time.Now()
	if err := checkPage(op, offset, limit); err != nil {
		return nil, r.done(op, start, err)
	}

	q := r.live(r.filtered(r.db.WithContext(ctx).Model(new(T)), filters))
	if col, ok := r.sortColumn(sortField); ok {
		q = q.Order(col)
	}
	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: domain.ColID}})

	out := []T{}
	if err := q.Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		err = storageFailure(op, r.desc.Entity(), err)
		r.log.Error("list failed", zap.Any("filters", filters), zap.Error(err))
		return nil, r.done(op, start, err)
	}
	r.log.Debug("listed",
		zap.Int("rows", len(out)),
		zap.Int("offset", offset),
		zap.Int("limit", limit),
		zap.Any("filters", filters),
		zap.String("sort", sortField),
	)
	return out, r.done(op, start, nil)
}

// Count applies the same filter and soft-delete rules as List.
func (r *Repository[T, PT]) Count(ctx context.Context, filters Filters) (int64, error) {
	const op = "count"
	start := time.Now()
	var n int64
	q := r.live(r.filtered(r.db.WithContext(ctx).Model(new(T)), filters))
	if err := q.Count(&n).Error; err != nil {
		err = storageFailure(op, r.desc.Entity(), err)
		r.log.Error("count failed", zap.Any("filters", filters), zap.Error(err))
		return 0, r.done(op, start, err)
	}
	r.log.Debug("counted", zap.Int64("count", n), zap.Any("filters", filters))
	return n, r.done(op, start, nil)
}

// Find runs a targeted query under the pagination contract, excluding soft-deleted rows.
func (r *Repository[T, PT]) Find(ctx context.Context, op string, query Query, offset, limit int) ([]T, error) {
	start := time.Now()
	if err := checkPage(op, offset, limit); err != nil {
		return nil, r.done(op, start, err)
	}

	q := r.db.WithContext(ctx).Model(new(T))
	for _, w := range query.Where {
		q = q.Where(w)
	}
	q = r.live(q)
	for _, o := range query.Order {
		q = q.Order(o)
	}
	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: domain.ColID}})

	out := []T{}
	if err := q.Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		err = storageFailure(op, r.desc.Entity(), err)
		r.log.Error(op+" failed", zap.Error(err))
		return nil, r.done(op, start, err)
	}
	r.log.Debug(op, zap.Int("rows", len(out)), zap.Int("offset", offset), zap.Int("limit", limit))
	return out, r.done(op, start, nil)
}

// FindOne returns the first live row matching all conditions, or nil.
func (r *Repository[T, PT]) FindOne(ctx context.Context, op string, where ...clause.Expression) (PT, error) {
	start := time.Now()
	q := r.db.WithContext(ctx).Model(new(T))
	for _, w := range where {
		q = q.Where(w)
	}

	var out T
	err := r.live(q).Take(&out).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		r.log.Debug(op+" miss")
		return nil, r.done(op, start, nil)
	case err != nil:
		err = storageFailure(op, r.desc.Entity(), err)
		r.log.Error(op+" failed", zap.Error(err))
		return nil, r.done(op, start, err)
	}
	r.log.Debug(op+" hit", zap.Stringer("id", PT(&out).PrimaryKey()))
	return PT(&out), r.done(op, start, nil)
}

func (r *Repository[T, PT]) get(ctx context.Context, op string, id uuid.UUID) (PT, error) {
	var out T
	err := r.live(r.db.WithContext(ctx).Where(eq(domain.ColID, id))).Take(&out).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		r.log.Debug("not found", zap.Stringer("id", id))
		return nil, nil
	case err != nil:
		err = storageFailure(op, r.desc.Entity(), err)
		r.log.Error("get failed", zap.Stringer("id", id), zap.Error(err))
		return nil, err
	}
	r.log.Debug("retrieved", zap.Stringer("id", id))
	return PT(&out), nil
}

func (r *Repository[T, PT]) getOrFail(ctx context.Context, op string, id uuid.UUID) (PT, error) {
	e, err := r.get(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, notFound(op, r.desc.Entity(), id.String())
	}
	return e, nil
}

// write runs fn in a transaction, or in a savepoint when the handle already is one.
func (r *Repository[T, PT]) write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// live appends the soft-delete predicate for soft-deletable entities.
func (r *Repository[T, PT]) live(q *gorm.DB) *gorm.DB {
	if !r.soft {
		return q
	}
	return q.Where(eq(domain.ColDeletedAt, nil))
}

func (r *Repository[T, PT]) filtered(q *gorm.DB, filters Filters) *gorm.DB {
	for _, k := range sortedKeys(filters) {
		if !r.desc.Has(k) {
			r.log.Debug("ignoring unknown filter", zap.String("field", k))
			continue
		}
		q = q.Where(eq(k, storedValue(filters[k])))
	}
	return q
}

func (r *Repository[T, PT]) sortColumn(field string) (clause.OrderByColumn, bool) {
	if field == "" {
		return clause.OrderByColumn{}, false
	}
	name, desc := strings.TrimPrefix(field, "-"), strings.HasPrefix(field, "-")
	if !r.desc.Has(name) {
		r.log.Warn("invalid sort field, ignoring", zap.String("sort", field))
		return clause.OrderByColumn{}, false
	}
	return clause.OrderByColumn{Column: clause.Column{Name: name}, Desc: desc}, true
}

func (r *Repository[T, PT]) assignments(op string, fields Fields) (map[string]any, error) {
	values := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		f, ok := r.desc.Field(k)
		if !ok {
			return nil, invalidArgument(op, "%s has no field %q", r.desc.Entity(), k)
		}
		if f.Immutable {
			return nil, invalidArgument(op, "%s.%s cannot be updated", r.desc.Entity(), k)
		}
		if f.Type == schema.JSON {
			j, err := jsonValue(v)
			if err != nil {
				return nil, invalidArgument(op, "%s.%s: %v", r.desc.Entity(), k, err)
			}
			v = j
		}
		values[k] = storedValue(v)
	}
	values[domain.ColUpdatedAt] = r.now()
	return values, nil
}

func (r *Repository[T, PT]) logWriteFailure(op string, id uuid.UUID, err error) {
	switch KindOf(err) {
	case KindNotFound, KindInvalidArgument:
		r.log.Debug(op+" rejected", zap.Stringer("id", id), zap.Error(err))
	default:
		r.log.Error(op+" failed", zap.Stringer("id", id), zap.Error(err))
	}
}

func (r *Repository[T, PT]) done(op string, start time.Time, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	metrics.ObserveRepo(r.desc.Entity(), op, outcome, start)
	return err
}

func checkPage(op string, offset, limit int) error {
	if offset < 0 {
		return invalidArgument(op, "offset must be >= 0, got %d", offset)
	}
	if limit <= 0 {
		return invalidArgument(op, "limit must be > 0, got %d", limit)
	}
	if limit > MaxLimit {
		return invalidArgument(op, "limit cannot exceed %d, got %d", MaxLimit, limit)
	}
	return nil
}

// jsonValue lets callers pass plain Go values for JSON columns.
func jsonValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := v.(driver.Valuer); ok {
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// storedValue brings caller-supplied times into the form the engine writes.
func storedValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return domain.Instant(t)
	case *time.Time:
		return domain.InstantPtr(t)
	}
	return v
}

func eq(column string, value any) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: column}, Value: value}
}

func sortedKeys[M ~map[string]any](m M) []string { return slices.Sorted(maps.Keys(m)) }

func keys(f Fields) []string { return sortedKeys(f) }
