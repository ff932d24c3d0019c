package test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/remindbot/store"
)

func newTestingReminder(uid string, fireTs int64) *store.Reminder {
	return &store.Reminder{
		UID:           uid,
		ChatID:        42,
		UserID:        7,
		Date:          "2024-03-15",
		Time:          "10:00:00",
		Timezone:      "UTC",
		Text:          "water plants",
		Repeatability: "17",
		FireTs:        fireTs,
	}
}

func TestReminderStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	created, err := ts.CreateReminder(ctx, newTestingReminder("r-1", 1710496800))
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.NotZero(t, created.CreatedTs)

	got, err := ts.GetReminder(ctx, &store.FindReminder{ID: &created.ID})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r-1", got.UID)
	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, "2024-03-15", got.Date)
	assert.Equal(t, "10:00:00", got.Time)
	assert.Equal(t, "17", got.Repeatability)
	assert.False(t, got.Notified)

	notified := true
	text := "water the plants"
	require.NoError(t, ts.UpdateReminder(ctx, &store.UpdateReminder{
		ID:       created.ID,
		Notified: &notified,
		Text:     &text,
	}))
	got, err = ts.GetReminder(ctx, &store.FindReminder{UID: &created.UID})
	require.NoError(t, err)
	assert.True(t, got.Notified)
	assert.Equal(t, text, got.Text)

	require.NoError(t, ts.DeleteReminder(ctx, &store.DeleteReminder{ID: created.ID}))
	got, err = ts.GetReminder(ctx, &store.FindReminder{ID: &created.ID})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReminderStoreMissing(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	text := "gone"
	err := ts.UpdateReminder(ctx, &store.UpdateReminder{ID: 999, Text: &text})
	assert.True(t, errors.Is(err, store.ErrNotFound))

	err = ts.DeleteReminder(ctx, &store.DeleteReminder{ID: 999})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestReminderStoreDueQuery(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	for _, r := range []*store.Reminder{
		newTestingReminder("late", 300),
		newTestingReminder("early", 100),
		newTestingReminder("future", 900),
	} {
		_, err := ts.CreateReminder(ctx, r)
		require.NoError(t, err)
	}
	done := newTestingReminder("done", 50)
	done.Notified = true
	_, err := ts.CreateReminder(ctx, done)
	require.NoError(t, err)

	notified := false
	before := int64(500)
	list, err := ts.ListReminders(ctx, &store.FindReminder{
		Notified:     &notified,
		FireTsBefore: &before,
	})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "early", list[0].UID)
	assert.Equal(t, "late", list[1].UID)

	limit := 1
	list, err = ts.ListReminders(ctx, &store.FindReminder{Notified: &notified, Limit: &limit})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "early", list[0].UID)
}

func TestReminderStoreUniqueUID(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	_, err := ts.CreateReminder(ctx, newTestingReminder("dup", 100))
	require.NoError(t, err)
	_, err = ts.CreateReminder(ctx, newTestingReminder("dup", 200))
	assert.Error(t, err)
}
