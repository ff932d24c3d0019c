package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/remindbot/internal/version"
)

// Migrations live under migration/{driver}/. A fresh database gets
// LATEST.sql in one go; an existing one replays {minor}/NN__description.sql
// files whose version lies between its recorded schema_version and the
// current one. The applied version is kept in system_setting.

//go:embed migration
var migrationFS embed.FS

//go:embed seed
var seedFS embed.FS

const (
	// MigrateFileNameSplit separates the patch number from the description,
	// e.g. "00__reminder_uid_index.sql".
	MigrateFileNameSplit = "__"
	// LatestSchemaFileName holds the full schema for new installations.
	LatestSchemaFileName = "LATEST.sql"

	// minimumSchemaVersion is the oldest schema that can be upgraded in place.
	minimumSchemaVersion = "0.2.0"

	modeProd = "prod"
	modeDemo = "demo"
)

// Migrate brings the database schema to the current version. In demo mode it
// also seeds sample reminders.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.installLatest(ctx); err != nil {
		return errors.Wrap(err, "failed to install schema")
	}
	switch s.profile.Mode {
	case modeProd:
		return errors.Wrap(s.upgrade(ctx), "failed to upgrade schema")
	case modeDemo:
		return errors.Wrap(s.seed(ctx), "failed to seed")
	}
	return nil
}

// installLatest applies LATEST.sql to an uninitialized database and records
// the current schema version.
func (s *Store) installLatest(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check if database is initialized")
	}
	if initialized {
		return nil
	}

	schemaVersion, err := s.GetCurrentSchemaVersion()
	if err != nil {
		return err
	}
	latest := s.migrationDir() + LatestSchemaFileName
	if err := s.runScripts(ctx, migrationFS, []string{latest}); err != nil {
		return err
	}
	slog.Info("database initialized", slog.String("schemaVersion", schemaVersion))
	return s.updateCurrentSchemaVersion(ctx, schemaVersion)
}

// upgrade replays the migration files between the recorded schema version
// and the current one. A database without a recorded version replays all of
// them.
func (s *Store) upgrade(ctx context.Context) error {
	recorded, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}
	target, err := s.GetCurrentSchemaVersion()
	if err != nil {
		return err
	}
	if recorded == target {
		return nil
	}
	if recorded != "" {
		if version.IsVersionGreaterThan(recorded, target) {
			slog.Error("cannot downgrade schema version",
				slog.String("databaseVersion", recorded),
				slog.String("currentVersion", target),
			)
			return errors.Errorf("cannot downgrade schema version from %s to %s", recorded, target)
		}
		if !version.IsVersionGreaterOrEqualThan(recorded, minimumSchemaVersion) {
			return errors.Errorf(
				"database schema %s is too old to upgrade to %s (minimum %s); recreate the database or export reminders first",
				recorded, target, minimumSchemaVersion,
			)
		}
	}

	pending, err := s.pendingMigrations(recorded, target)
	if err != nil {
		return err
	}
	slog.Info("upgrading schema",
		slog.String("from", recorded),
		slog.String("to", target),
		slog.Int("files", len(pending)),
	)
	if err := s.runScripts(ctx, migrationFS, pending); err != nil {
		return err
	}
	return s.updateCurrentSchemaVersion(ctx, target)
}

// pendingMigrations lists, in order, the upgrade files whose version lies in
// (from, to].
func (s *Store) pendingMigrations(from, to string) ([]string, error) {
	paths, err := fs.Glob(migrationFS, s.migrationDir()+"*/*.sql")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list migration files")
	}
	sort.Strings(paths)

	var pending []string
	for _, path := range paths {
		v, err := migrationVersion(path)
		if err != nil {
			return nil, err
		}
		if shouldApplyMigration(v, from, to) {
			pending = append(pending, path)
		}
	}
	return pending, nil
}

// shouldApplyMigration reports whether fileVersion lies in (current, target].
// An empty current version precedes every file.
func shouldApplyMigration(fileVersion, current, target string) bool {
	if current == "" {
		current = "0.0.0"
	}
	return version.IsVersionGreaterThan(fileVersion, current) &&
		version.IsVersionGreaterOrEqualThan(target, fileVersion)
}

// migrationVersion maps "migration/sqlite/0.3/00__x.sql" to "0.3.1": the
// directory is the minor version and the numeric prefix the patch before it.
func migrationVersion(path string) (string, error) {
	dir, name := filepath.Split(filepath.ToSlash(path))
	minor := filepath.Base(dir)
	prefix, _, ok := strings.Cut(name, MigrateFileNameSplit)
	if !ok {
		return "", errors.Errorf("invalid migration filename format (missing %s): %s", MigrateFileNameSplit, path)
	}
	patch, err := strconv.Atoi(prefix)
	if err != nil {
		return "", errors.Errorf("migration filename must start with a number: %s", path)
	}
	return fmt.Sprintf("%s.%d", minor, patch+1), nil
}

// GetCurrentSchemaVersion returns the schema version this build migrates to:
// the version of the last migration file of the current minor release.
func (s *Store) GetCurrentSchemaVersion() (string, error) {
	minor := version.GetMinorVersion(version.GetCurrentVersion(s.profile.Mode))
	paths, err := fs.Glob(migrationFS, s.migrationDir()+minor+"/*.sql")
	if err != nil {
		return "", errors.Wrap(err, "failed to list migration files")
	}
	if len(paths) == 0 {
		return minor + ".0", nil
	}
	sort.Strings(paths)
	return migrationVersion(paths[len(paths)-1])
}

// seed executes the seed files in name order. Only SQLite carries seeds.
func (s *Store) seed(ctx context.Context) error {
	if s.profile.Driver != "sqlite" {
		slog.Warn("seed is only supported for SQLite, skipping for other databases")
		return nil
	}
	paths, err := fs.Glob(seedFS, fmt.Sprintf("seed/%s/*.sql", s.profile.Driver))
	if err != nil {
		return errors.Wrap(err, "failed to list seed files")
	}
	sort.Strings(paths)
	return s.runScripts(ctx, seedFS, paths)
}

func (s *Store) migrationDir() string {
	return fmt.Sprintf("migration/%s/", s.profile.Driver)
}

// runScripts executes the scripts at paths within a single transaction.
func (s *Store) runScripts(ctx context.Context, fsys fs.FS, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	for _, path := range paths {
		script, err := fs.ReadFile(fsys, path)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", path)
		}
		slog.Debug("executing script", slog.String("file", path))
		if err := s.execute(ctx, tx, string(script)); err != nil {
			return errors.Wrapf(err, "failed to execute %s", path)
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

// execute runs a SQL script inside tx. lib/pq rejects multi-statement Exec
// calls, so PostgreSQL scripts are split first.
func (s *Store) execute(ctx context.Context, tx *sql.Tx, script string) error {
	if s.profile.Driver != "postgres" {
		if _, err := tx.ExecContext(ctx, script); err != nil {
			return errors.Wrap(err, "failed to execute statement")
		}
		return nil
	}
	for i, stmt := range splitSQL(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to execute statement %d: %s", i+1, stmt)
		}
	}
	return nil
}

// splitSQL splits a script on semicolons outside single-quoted strings and
// drops "--" comments.
func splitSQL(script string) []string {
	var (
		statements []string
		current    strings.Builder
		inQuote    bool
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(script, "\n") {
		for i := 0; i < len(line); i++ {
			ch := line[i]
			if !inQuote && ch == '-' && i+1 < len(line) && line[i+1] == '-' {
				break
			}
			if ch == '\'' {
				inQuote = !inQuote
			}
			if ch == ';' && !inQuote {
				flush()
				continue
			}
			current.WriteByte(ch)
		}
		current.WriteByte('\n')
	}
	flush()
	return statements
}

func (s *Store) getSchemaVersion(ctx context.Context) (string, error) {
	setting, err := s.GetSystemSetting(ctx, SystemSettingSchemaVersion)
	if err != nil {
		return "", errors.Wrap(err, "failed to get schema version setting")
	}
	if setting == nil {
		return "", nil
	}
	return setting.Value, nil
}

func (s *Store) updateCurrentSchemaVersion(ctx context.Context, schemaVersion string) error {
	if _, err := s.UpsertSystemSetting(ctx, &SystemSetting{
		Name:  SystemSettingSchemaVersion,
		Value: schemaVersion,
	}); err != nil {
		return errors.Wrap(err, "failed to update current schema version")
	}
	return nil
}
