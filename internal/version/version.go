package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the service version.
var Version = "0.3.0"

// SchemaVersion is the reminder schema version the store migrates to.
var SchemaVersion = "0.3.0"

// GetCurrentVersion returns the schema version for the given mode.
// Dev and demo instances track the same schema as prod.
func GetCurrentVersion(_ string) string {
	return SchemaVersion
}

// GetMinorVersion extracts the minor version (e.g. `0.3`) from a version string.
func GetMinorVersion(version string) string {
	mm := semver.MajorMinor(canonical(version))
	return strings.TrimPrefix(mm, "v")
}

// IsVersionGreaterOrEqualThan returns true if version is greater than or equal to target.
func IsVersionGreaterOrEqualThan(version, target string) bool {
	return semver.Compare(canonical(version), canonical(target)) >= 0
}

// IsVersionGreaterThan returns true if version is strictly greater than target.
func IsVersionGreaterThan(version, target string) bool {
	return semver.Compare(canonical(version), canonical(target)) > 0
}

func canonical(version string) string {
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return version
}
