package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"notes-datalayer/internal/domain"
	"notes-datalayer/internal/schema"
)

// widget is a hard-delete entity that only exists in tests.
type widget struct {
	domain.Base
	Name string `gorm:"size:64;not null"`
	Qty  int    `gorm:"not null"`
}

var widgetSchema = schema.New("Widget", "widgets", []schema.Field{
	{Column: domain.ColID, Type: schema.UUID, Unique: true, Immutable: true},
	{Column: domain.ColCreatedAt, Type: schema.Time, Immutable: true},
	{Column: domain.ColUpdatedAt, Type: schema.Time},
	{Column: "name", Type: schema.String},
	{Column: "qty", Type: schema.Int},
})

func (widget) TableName() string              { return "widgets" }
func (widget) Descriptor() *schema.Descriptor { return widgetSchema }

// stepClock advances one second per reading so timestamps are strictly ordered.
type stepClock struct{ t time.Time }

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, db.AutoMigrate(append(domain.Models(), &widget{})...))
	return db
}

func strPtr(s string) *string { return &s }

func mustUser(t *testing.T, r *UserRepo, externalID int64, username string) *domain.User {
	t.Helper()
	u := domain.NewUser(externalID)
	if username != "" {
		u.Username = strPtr(username)
	}
	u, err := r.Create(context.Background(), u)
	require.NoError(t, err)
	return u
}

func newUsers(t *testing.T, db *gorm.DB, opts ...Option) *UserRepo {
	return NewUserRepo(db, zaptest.NewLogger(t), opts...)
}
