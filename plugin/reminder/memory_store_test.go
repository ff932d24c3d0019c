package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/remindbot/plugin/reminder/recurrence"
)

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	r := seedReminder(t, store, "2024-03-15", "09:00:00", recurrence.Set{recurrence.Daily}, false)
	assert.Equal(t, int64(1), r.ID)

	got, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	// Mutating the returned copy leaves the stored reminder alone.
	got.Repeat[0] = recurrence.Weekly
	got.Text = "changed"
	assertUnchanged(t, store, r)

	require.NoError(t, store.Update(ctx, got))
	got, err = store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Text)

	require.NoError(t, store.Delete(ctx, r.ID))
	_, err = store.Get(ctx, r.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(store.Update(ctx, r), ErrNotFound))
	assert.True(t, errors.Is(store.Delete(ctx, r.ID), ErrNotFound))
}

func TestMemoryStore_CreateDuplicateID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Create(ctx, &Reminder{ID: 5, Timezone: "UTC"}))
	assert.Error(t, store.Create(ctx, &Reminder{ID: 5, Timezone: "UTC"}))

	next := &Reminder{Timezone: "UTC"}
	require.NoError(t, store.Create(ctx, next))
	assert.Equal(t, int64(6), next.ID)
}

func TestMemoryStore_ListDue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	late := seedReminder(t, store, "2024-03-15", "09:30:00", nil, false)
	early := seedReminder(t, store, "2024-03-15", "08:00:00", nil, false)
	seedReminder(t, store, "2024-03-15", "07:00:00", nil, true)
	future := seedReminder(t, store, "2024-03-15", "11:00:00", nil, false)

	due, err := store.ListDue(ctx, fixedNow, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, early.ID, due[0].ID)
	assert.Equal(t, late.ID, due[1].ID)

	due, err = store.ListDue(ctx, fixedNow, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, early.ID, due[0].ID)

	// The fire instant itself is due.
	due, err = store.ListDue(ctx, time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	assert.Len(t, due, 3)

	next, err := store.NextDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, early.ID, next.ID)

	for _, id := range []int64{late.ID, early.ID, future.ID} {
		require.NoError(t, store.Delete(ctx, id))
	}
	_, err = store.NextDue(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))
}
