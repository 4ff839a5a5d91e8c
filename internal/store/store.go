// Package store is the application context: one database handle, the entity
// repositories bound to it, and the unit-of-work boundary.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"notes-datalayer/internal/core/database"
	"notes-datalayer/internal/core/metrics"
	"notes-datalayer/internal/domain"
	"notes-datalayer/internal/repo"
	"notes-datalayer/internal/schema"
)

type Store struct {
	db       *gorm.DB
	log      *zap.Logger
	timeout  time.Duration
	prePing  bool
	repoOpts []repo.Option

	Users         *repo.UserRepo
	Notes         *repo.NoteRepo
	Reminders     *repo.ReminderRepo
	ExternalTasks *repo.ExternalTaskRepo
	Sessions      *repo.SessionRepo
}

type Option func(*Store)

// WithTimeout bounds every unit of work; zero means no bound.
func WithTimeout(d time.Duration) Option { return func(s *Store) { s.timeout = d } }

// WithPrePing checks the connection before each unit of work.
func WithPrePing(on bool) Option { return func(s *Store) { s.prePing = on } }

func WithRepoOptions(opts ...repo.Option) Option {
	return func(s *Store) { s.repoOpts = append(s.repoOpts, opts...) }
}

func New(db *gorm.DB, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{db: db, log: log, prePing: true}
	for _, opt := range opts {
		opt(s)
	}
	s.bindRepos()
	return s
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) bindRepos() {
	s.Users = repo.NewUserRepo(s.db, s.log, s.repoOpts...)
	s.Notes = repo.NewNoteRepo(s.db, s.log, s.repoOpts...)
	s.Reminders = repo.NewReminderRepo(s.db, s.log, s.repoOpts...)
	s.ExternalTasks = repo.NewExternalTaskRepo(s.db, s.log, s.repoOpts...)
	s.Sessions = repo.NewSessionRepo(s.db, s.log, s.repoOpts...)
}

// withDB returns a copy of s whose repositories run on db.
func (s *Store) withDB(db *gorm.DB) *Store {
	c := *s
	c.db = db
	c.bindRepos()
	return &c
}

// UnitOfWork runs fn against repositories bound to one transaction. It commits when
// fn returns nil and rolls back on error, panic, or timeout. Writes inside fn nest
// as savepoints, so a failed write can be handled without losing the transaction.
func (s *Store) UnitOfWork(ctx context.Context, fn func(tx *Store) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if s.prePing {
		if err := s.Ping(ctx); err != nil {
			metrics.ObserveUnitOfWork("rollback")
			return err
		}
	}

	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(s.withDB(tx))
		return fnErr
	})
	if err != nil {
		metrics.ObserveUnitOfWork("rollback")
		if fnErr == nil {
			// begin or commit failed
			err = &repo.Error{Kind: repo.KindStorage, Op: "unit_of_work", Err: err}
			s.log.Error("unit of work failed", zap.Error(err))
			return err
		}
		s.log.Debug("unit of work rolled back", zap.Error(err))
		return err
	}
	metrics.ObserveUnitOfWork("commit")
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		s.log.Error("database ping failed", zap.Error(err))
		return &repo.Error{Kind: repo.KindStorage, Op: "ping", Err: err}
	}
	return nil
}

// Migrate creates or updates the five tables and their foreign keys.
func (s *Store) Migrate(ctx context.Context) error {
	models := domain.Models()
	descs := make([]*schema.Descriptor, 0, len(models))
	for _, m := range models {
		descs = append(descs, m.(domain.Entity).Descriptor())
	}
	if err := checkReferences(descs); err != nil {
		return &repo.Error{Kind: repo.KindStorage, Op: "migrate", Err: err}
	}
	if err := s.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return &repo.Error{Kind: repo.KindStorage, Op: "migrate", Err: err}
	}
	for _, d := range descs {
		s.log.Debug("table migrated",
			zap.String("table", d.Table()),
			zap.Strings("foreign_keys", references(d.ForeignKeys())),
			zap.Strings("unique", columns(d.Unique())))
	}
	s.log.Info("schema migrated", zap.Int("tables", len(descs)))
	return nil
}

// checkReferences fails when a foreign key points at a table or column that
// is not part of the migrated set.
func checkReferences(descs []*schema.Descriptor) error {
	byTable := make(map[string]*schema.Descriptor, len(descs))
	for _, d := range descs {
		byTable[d.Table()] = d
	}
	for _, d := range descs {
		for _, f := range d.ForeignKeys() {
			table, column, _ := strings.Cut(f.References, ".")
			target, ok := byTable[table]
			if !ok || !target.Has(column) {
				return fmt.Errorf("%s.%s references unknown column %q", d.Table(), f.Column, f.References)
			}
			if f.OnDelete == schema.SetNull && !f.Nullable {
				return fmt.Errorf("%s.%s is ON DELETE SET NULL but not nullable", d.Table(), f.Column)
			}
		}
	}
	return nil
}

func columns(fs []schema.Field) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Column
	}
	return out
}

func references(fs []schema.Field) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Column + "->" + f.References
	}
	return out
}

// Counts returns the live row count of every table, queried concurrently.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	counters := []struct {
		table string
		count func(context.Context, repo.Filters) (int64, error)
	}{
		{"users", s.Users.Count},
		{"notes", s.Notes.Count},
		{"reminders", s.Reminders.Count},
		{"external_tasks", s.ExternalTasks.Count},
		{"sessions", s.Sessions.Count},
	}

	out := make([]int64, len(counters))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range counters {
		g.Go(func() error {
			n, err := c.count(gctx, nil)
			out[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := make(map[string]int64, len(counters))
	for i, c := range counters {
		res[c.table] = out[i]
	}
	return res, nil
}

func (s *Store) Close() error {
	return database.Close(s.db)
}
