package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrygo/remindbot/internal/profile"
	"github.com/hrygo/remindbot/internal/version"
	"github.com/hrygo/remindbot/store"
	"github.com/hrygo/remindbot/store/db"
)

// NewTestingStore opens a migrated store for the driver named by DRIVER
// (sqlite by default) and closes it when the test ends.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	return newTestingStore(ctx, t, "prod")
}

func newTestingStore(ctx context.Context, t *testing.T, mode string) *store.Store {
	t.Helper()
	profile := getTestingProfile(t, mode)
	dbDriver, err := db.NewDBDriver(profile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	s := store.New(dbDriver, profile)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		if profile.Driver == "postgres" {
			_, _ = dbDriver.GetDB().ExecContext(context.Background(), "DROP TABLE IF EXISTS reminder, system_setting")
		}
		_ = s.Close()
	})
	return s
}

func getTestingProfile(t *testing.T, mode string) *profile.Profile {
	t.Helper()
	driver := getDriverFromEnv()
	p := &profile.Profile{
		Mode:    mode,
		Driver:  driver,
		Version: version.Version,
		Data:    t.TempDir(),
	}
	switch driver {
	case "postgres":
		p.DSN = GetPostgresDSN(t)
	default:
		p.DSN = filepath.Join(p.Data, "remindbot_test.db")
	}
	return p
}

func getDriverFromEnv() string {
	if driver := os.Getenv("DRIVER"); driver != "" {
		return driver
	}
	return "sqlite"
}

// GetPostgresDSN returns the DSN of a disposable PostgreSQL database from
// POSTGRES_TEST_DSN, skipping the test when it is unset.
func GetPostgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN is not set")
	}
	return dsn
}
