package store

import (
	"context"
)

// SystemSettingSchemaVersion is the name of the setting holding the applied
// schema version.
const SystemSettingSchemaVersion = "schema_version"

// SystemSetting is a name/value pair of instance-wide state.
type SystemSetting struct {
	Name  string
	Value string
}

// FindSystemSetting is the find condition for system setting.
type FindSystemSetting struct {
	Name *string
}

func (s *Store) UpsertSystemSetting(ctx context.Context, upsert *SystemSetting) (*SystemSetting, error) {
	return s.driver.UpsertSystemSetting(ctx, upsert)
}

func (s *Store) ListSystemSettings(ctx context.Context, find *FindSystemSetting) ([]*SystemSetting, error) {
	return s.driver.ListSystemSettings(ctx, find)
}

// GetSystemSetting returns the named setting, or nil when it is unset.
func (s *Store) GetSystemSetting(ctx context.Context, name string) (*SystemSetting, error) {
	list, err := s.driver.ListSystemSettings(ctx, &FindSystemSetting{Name: &name})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
