package bot

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Addr            string
	AccessDir       string
	LeaveDir        string
	ExportDir       string
	ResolverBaseURL string
	ResortDelay     time.Duration
	SessionTTL      time.Duration
	ExportRetention time.Duration
	ExportCooldown  time.Duration
}

func LoadConfig() Config {
	return Config{
		Addr:            getenv("BOT_ADDR", ":8080"),
		AccessDir:       getenv("ACCESS_DATA_DIR", "data/access"),
		LeaveDir:        getenv("LEAVE_DATA_DIR", "data/paidleave"),
		ExportDir:       getenv("EXPORT_DIR", "data/exports"),
		ResolverBaseURL: getenv("IDENTITY_BASE_URL", "http://localhost:9090"),
		ResortDelay:     getDuration("LEAVE_RESORT_DELAY", 30*time.Second),
		SessionTTL:      getDuration("SESSION_TTL", 5*time.Minute),
		ExportRetention: getDuration("EXPORT_RETENTION", 24*time.Hour),
		ExportCooldown:  getDuration("EXPORT_COOLDOWN", time.Minute),
	}
}

// FileConfig is the optional TOML config file; set fields override the
// environment-derived defaults.
type FileConfig struct {
	Addr            *string `toml:"addr"`
	AccessDir       *string `toml:"access-dir"`
	LeaveDir        *string `toml:"leave-dir"`
	ExportDir       *string `toml:"export-dir"`
	ResolverBaseURL *string `toml:"identity-base-url"`
	ResortDelay     *string `toml:"resort-delay"`
	SessionTTL      *string `toml:"session-ttl"`
	ExportRetention *string `toml:"export-retention"`
	ExportCooldown  *string `toml:"export-cooldown"`
}

// LoadConfigFile overlays the TOML file at path onto cfg. A missing file is
// not an error.
func LoadConfigFile(cfg Config, path string) (Config, error) {
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("stat config: %w", err)
	}
	var file FileConfig
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if file.Addr != nil {
		cfg.Addr = *file.Addr
	}
	if file.AccessDir != nil {
		cfg.AccessDir = *file.AccessDir
	}
	if file.LeaveDir != nil {
		cfg.LeaveDir = *file.LeaveDir
	}
	if file.ResolverBaseURL != nil {
		cfg.ResolverBaseURL = *file.ResolverBaseURL
	}
	if file.ResortDelay != nil {
		if d, err := time.ParseDuration(*file.ResortDelay); err == nil {
			cfg.ResortDelay = d
		}
	}
	if file.SessionTTL != nil {
		if d, err := time.ParseDuration(*file.SessionTTL); err == nil {
			cfg.SessionTTL = d
		}
	}
	if file.ExportDir != nil {
		cfg.ExportDir = *file.ExportDir
	}
	if file.ExportRetention != nil {
		if d, err := time.ParseDuration(*file.ExportRetention); err == nil {
			cfg.ExportRetention = d
		}
	}
	if file.ExportCooldown != nil {
		if d, err := time.ParseDuration(*file.ExportCooldown); err == nil {
			cfg.ExportCooldown = d
		}
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
