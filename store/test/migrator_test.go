package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/remindbot/store"
)

func getSchemaVersion(ctx context.Context, t *testing.T, ts *store.Store) string {
	t.Helper()
	setting, err := ts.GetSystemSetting(ctx, store.SystemSettingSchemaVersion)
	require.NoError(t, err)
	require.NotNil(t, setting)
	return setting.Value
}

func setSchemaVersion(ctx context.Context, t *testing.T, ts *store.Store, v string) {
	t.Helper()
	_, err := ts.UpsertSystemSetting(ctx, &store.SystemSetting{Name: store.SystemSettingSchemaVersion, Value: v})
	require.NoError(t, err)
}

func TestMigrateFreshDatabase(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	current, err := ts.GetCurrentSchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, "0.3.1", current)
	assert.Equal(t, current, getSchemaVersion(ctx, t, ts))

	// A second run is a no-op.
	require.NoError(t, ts.Migrate(ctx))
	assert.Equal(t, current, getSchemaVersion(ctx, t, ts))
}

func TestMigrateUpgrade(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	setSchemaVersion(ctx, t, ts, "0.2.4")
	require.NoError(t, ts.Migrate(ctx))
	assert.Equal(t, "0.3.1", getSchemaVersion(ctx, t, ts))
}

func TestMigrateRejectsDowngrade(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	setSchemaVersion(ctx, t, ts, "0.9.0")
	err := ts.Migrate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot downgrade")
}

func TestMigrateRejectsTooOld(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	setSchemaVersion(ctx, t, ts, "0.1.0")
	err := ts.Migrate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too old")
}

func TestMigrateDemoSeed(t *testing.T) {
	if getDriverFromEnv() != "sqlite" {
		t.Skip("seed data only ships for SQLite")
	}
	ctx := context.Background()
	ts := newTestingStore(ctx, t, "demo")

	// Seeding twice keeps one copy of each demo reminder.
	require.NoError(t, ts.Migrate(ctx))
	list, err := ts.ListReminders(ctx, &store.FindReminder{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "demo-new-year", list[0].UID)
}
