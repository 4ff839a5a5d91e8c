package repo

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"notes-datalayer/internal/domain"
)

func TestGetByExternalID(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, newTestDB(t))
	u := mustUser(t, users, 42, "a")

	got, err := users.GetByExternalID(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	missing, err := users.GetByExternalID(ctx, 43)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, users.Delete(ctx, u.ID))
	deleted, err := users.GetByExternalID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, deleted)
}

func TestGetOrCreateDoesNotOverwriteExisting(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, newTestDB(t))
	existing := mustUser(t, users, 42, "a")

	defaults := &domain.User{Username: strPtr("b"), IsActive: true}
	got, err := users.GetOrCreateByExternalID(ctx, 42, defaults)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
	assert.Equal(t, "a", *got.Username)

	n, err := users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetOrCreateCreatesFromDefaults(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, newTestDB(t))

	got, err := users.GetOrCreateByExternalID(ctx, 7, &domain.User{
		ExternalID: 999, // ignored
		FirstName:  strPtr("Ada"),
		IsActive:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ExternalID)
	assert.Equal(t, "Ada", *got.FirstName)

	plain, err := users.GetOrCreateByExternalID(ctx, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(8), plain.ExternalID)
	assert.True(t, plain.IsActive)
}

func TestGetOrCreateResolvesConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := newUsers(t, db)

	winner := domain.NewUser(42)
	winner.Username = strPtr("winner")
	winner.Stamp(uuid.New(), time.Now().UTC())

	// a competing writer commits the same external id just before our insert runs
	var fired atomic.Bool
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:race", func(tx *gorm.DB) {
		if tx.Statement.Table != "users" || !fired.CompareAndSwap(false, true) {
			return
		}
		require.NoError(t, db.Session(&gorm.Session{NewDB: true}).Create(winner).Error)
	}))

	got, err := users.GetOrCreateByExternalID(ctx, 42, &domain.User{Username: strPtr("loser"), IsActive: true})
	require.NoError(t, err)
	assert.True(t, fired.Load())
	assert.Equal(t, winner.ID, got.ID)
	assert.Equal(t, "winner", *got.Username)

	n, err := users.Count(ctx, Filters{"external_id": int64(42)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetOrCreateFailsWhenConflictingRowIsDeleted(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, newTestDB(t))
	u := mustUser(t, users, 5, "old")
	require.NoError(t, users.Delete(ctx, u.ID))

	// the unique index still holds the soft-deleted row, so the re-read finds nothing
	_, err := users.GetOrCreateByExternalID(ctx, 5, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRuntime)
	assert.Contains(t, err.Error(), "external_id=5")
}

func TestListActive(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, newTestDB(t))
	a := mustUser(t, users, 1, "a")
	inactive := domain.NewUser(2)
	inactive.IsActive = false
	_, err := users.Create(ctx, inactive)
	require.NoError(t, err)
	deleted := mustUser(t, users, 3, "c")
	require.NoError(t, users.Delete(ctx, deleted.ID))

	active, err := users.ListActive(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID}, userIDs(active))

	_, err = users.ListActive(ctx, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
