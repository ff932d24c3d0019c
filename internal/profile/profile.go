package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/remindbot/server/timezone"
)

// Profile is the configuration to start the reminder bot.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for the HTTP surface
	Addr string
	// Port is the binding port for the HTTP surface
	Port int
	// Data is the data directory
	Data string
	// DSN points to where remindbot stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of the bot
	Version string

	// Reminder engine configuration
	DefaultTimezone   string        // REMINDBOT_TIMEZONE (default: UTC)
	DefaultLanguage   string        // REMINDBOT_LANGUAGE (default: en)
	LocaleDir         string        // REMINDBOT_LOCALE_DIR (default: embedded tables)
	SchedulerInterval time.Duration // REMINDBOT_SCHEDULER_INTERVAL (default: 30s)
	NotifyPerSecond   float64       // REMINDBOT_NOTIFY_PER_SECOND (default: 25)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads reminder engine configuration from environment variables.
// Values that fail to parse keep their defaults.
func (p *Profile) FromEnv() {
	p.DefaultTimezone = getEnvOrDefault("REMINDBOT_TIMEZONE", "UTC")
	p.DefaultLanguage = getEnvOrDefault("REMINDBOT_LANGUAGE", "en")
	p.LocaleDir = os.Getenv("REMINDBOT_LOCALE_DIR")

	p.SchedulerInterval = 30 * time.Second
	if d, err := time.ParseDuration(os.Getenv("REMINDBOT_SCHEDULER_INTERVAL")); err == nil && d > 0 {
		p.SchedulerInterval = d
	}

	p.NotifyPerSecond = 25
	if v, err := strconv.ParseFloat(os.Getenv("REMINDBOT_NOTIFY_PER_SECOND"), 64); err == nil && v > 0 {
		p.NotifyPerSecond = v
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}
	if p.DefaultTimezone == "" {
		p.DefaultTimezone = "UTC"
	}
	if !timezone.IsValidTimezone(p.DefaultTimezone) {
		return errors.Errorf("invalid default timezone %q", p.DefaultTimezone)
	}
	if p.DefaultLanguage == "" {
		p.DefaultLanguage = "en"
	}
	if p.SchedulerInterval <= 0 {
		p.SchedulerInterval = 30 * time.Second
	}
	if p.NotifyPerSecond <= 0 {
		p.NotifyPerSecond = 25
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "remindbot")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/remindbot"
		}
	}

	if p.Driver == "sqlite" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("remindbot_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	return nil
}
