package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"

	"notes-datalayer/internal/domain"
)

func TestSessionCreateDefaultsAndTouch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	u := mustUser(t, newUsers(t, db), 1, "")
	sessions := NewSessionRepo(db, zaptest.NewLogger(t), WithClock(newStepClock().Now))

	s, err := sessions.Create(ctx, &domain.Session{UserID: u.ID})
	require.NoError(t, err)
	assert.NotNil(t, s.Context)
	assert.True(t, s.LastActivity.Equal(s.CreatedAt))

	touched, err := sessions.Touch(ctx, s.ID, strPtr("awaiting_reply"))
	require.NoError(t, err)
	assert.True(t, touched.LastActivity.After(s.LastActivity))
	assert.Equal(t, "awaiting_reply", *touched.State)

	again, err := sessions.Touch(ctx, s.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_reply", *again.State)
	assert.True(t, again.LastActivity.After(touched.LastActivity))
}

func TestSessionListByUserMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	u := mustUser(t, newUsers(t, db), 1, "")
	sessions := NewSessionRepo(db, zaptest.NewLogger(t), WithClock(newStepClock().Now))

	older, err := sessions.Create(ctx, &domain.Session{UserID: u.ID, Context: datatypes.JSONMap{"step": 1}})
	require.NoError(t, err)
	newer, err := sessions.Create(ctx, &domain.Session{UserID: u.ID})
	require.NoError(t, err)

	got, err := sessions.ListByUser(ctx, u.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)

	_, err = sessions.Touch(ctx, older.ID, nil)
	require.NoError(t, err)
	got, err = sessions.ListByUser(ctx, u.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, older.ID, got[0].ID)
	assert.EqualValues(t, 1, got[0].Context["step"])
}

func TestSessionLastActivityIsNormalized(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	u := mustUser(t, newUsers(t, db), 1, "")
	sessions := NewSessionRepo(db, zaptest.NewLogger(t))

	seen := time.Date(2029, 12, 31, 23, 59, 59, 999999999, time.FixedZone("plus9", 9*3600))
	s, err := sessions.Create(ctx, &domain.Session{UserID: u.ID, LastActivity: seen})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, s.LastActivity.Location())
	assert.True(t, s.LastActivity.Equal(seen.Truncate(time.Microsecond)))

	got, err := sessions.GetOrFail(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.LastActivity.Equal(s.LastActivity))
}
