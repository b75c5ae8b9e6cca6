// Package config loads the tool's configuration from a YAML file, applies
// environment variable overrides and validates the result. Precedence is
// flags over environment over file, with the flag layer applied by the CLI
// after Load returns.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"skeetsweep/utils"
)

// DefaultPath is the config file consulted when --config is not given. The
// file is optional; every key has a default, an env var, or a flag.
const DefaultPath = "skeetsweep.yaml"

type Config struct {
	// Handle is the account to maintain, e.g. "sweeper.bsky.social".
	Handle string `yaml:"handle"`

	// Password should usually come from BLUESKY_PASSWORD instead of the file.
	Password string `yaml:"password"`

	// PdsUrl is the account's PDS. Leave empty to resolve it from the handle.
	PdsUrl string `yaml:"pds_url"`

	// MaxReposts deletes posts whose repost count exceeds it. 0 disables.
	MaxReposts int `yaml:"max_reposts"`

	// StaleLimitDays deletes posts and likes at least this many days old.
	// 0 disables.
	StaleLimitDays int `yaml:"stale_limit_days"`

	// ProtectedDomains lists domains whose links exempt a post from
	// deletion. Subdomains of a listed domain are covered too.
	ProtectedDomains []string `yaml:"protected_domains"`

	// FixedLikesCursor stops likes pagination early at a known cursor.
	FixedLikesCursor string `yaml:"fixed_likes_cursor"`

	// AutoConfirm skips the interactive confirmation prompts.
	AutoConfirm bool `yaml:"auto_confirm"`

	// ArchiveOnly archives and stops; no thresholds are required.
	ArchiveOnly bool `yaml:"archive_only"`

	ArchiveDir string `yaml:"archive_dir"`
	StateDir   string `yaml:"state_dir"`
	LogFile    string `yaml:"log_file"`

	// Schedule is the cron expression serve mode runs on.
	Schedule string `yaml:"schedule"`

	// ListenAddr is where serve mode exposes /metrics and /healthz.
	ListenAddr string `yaml:"listen_addr"`
}

// Load reads the config file at path, then applies defaults, environment
// overrides and validation. A missing file is only an error when the path
// was explicitly requested, i.e. differs from DefaultPath.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %q: %w", path, err)
		}
	case os.IsNotExist(err) && path == DefaultPath:
		// Optional default file; fall through to defaults and env.
	default:
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = "archive"
	}
	if cfg.StateDir == "" {
		cfg.StateDir = "."
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":9107"
	}
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("SKEETSWEEP_HANDLE"); val != "" {
		cfg.Handle = val
	} else if val := os.Getenv("BLUESKY_USERNAME"); val != "" {
		cfg.Handle = val
	}
	if val := os.Getenv("BLUESKY_PASSWORD"); val != "" {
		cfg.Password = val
	}
	if val := os.Getenv("SKEETSWEEP_PDS_URL"); val != "" {
		cfg.PdsUrl = val
	}
	if val := os.Getenv("SKEETSWEEP_MAX_REPOSTS"); val != "" {
		cfg.MaxReposts = utils.IntFromString(val, cfg.MaxReposts)
	}
	if val := os.Getenv("SKEETSWEEP_STALE_LIMIT_DAYS"); val != "" {
		cfg.StaleLimitDays = utils.IntFromString(val, cfg.StaleLimitDays)
	}
	if val := os.Getenv("SKEETSWEEP_PROTECTED_DOMAINS"); val != "" {
		cfg.ProtectedDomains = SplitDomains(val)
	}
	if val := os.Getenv("SKEETSWEEP_FIXED_LIKES_CURSOR"); val != "" {
		cfg.FixedLikesCursor = val
	}
	if val := os.Getenv("SKEETSWEEP_AUTO_CONFIRM"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.AutoConfirm = b
		}
	}
	if val := os.Getenv("SKEETSWEEP_ARCHIVE_ONLY"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.ArchiveOnly = b
		}
	}
	if val := os.Getenv("SKEETSWEEP_ARCHIVE_DIR"); val != "" {
		cfg.ArchiveDir = val
	}
	if val := os.Getenv("SKEETSWEEP_STATE_DIR"); val != "" {
		cfg.StateDir = val
	}
	if val := os.Getenv("SKEETSWEEP_LOG_FILE"); val != "" {
		cfg.LogFile = val
	}
	if val := os.Getenv("SKEETSWEEP_SCHEDULE"); val != "" {
		cfg.Schedule = val
	}
	if val := os.Getenv("SKEETSWEEP_LISTEN_ADDR"); val != "" {
		cfg.ListenAddr = val
	}
}

func (c *Config) Validate() error {
	if c.MaxReposts < 0 {
		return fmt.Errorf("max_reposts must not be negative, got %d", c.MaxReposts)
	}
	if c.StaleLimitDays < 0 {
		return fmt.Errorf("stale_limit_days must not be negative, got %d", c.StaleLimitDays)
	}
	if c.ArchiveDir == "" {
		return fmt.Errorf("archive_dir must not be empty")
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir must not be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	return nil
}

// RequireCredentials reports whether the config can open a session. Checked
// by the commands that talk to the network, not by Load, so offline commands
// keep working without credentials.
func (c *Config) RequireCredentials() error {
	if c.Handle == "" {
		return fmt.Errorf("no handle configured; set handle in the config file or BLUESKY_USERNAME")
	}
	if c.Password == "" {
		return fmt.Errorf("no password configured; set BLUESKY_PASSWORD")
	}
	return nil
}

// DatabasePath is where run state lives, under the configured state dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.StateDir, "skeetsweep.db")
}

// SplitDomains parses a comma separated domain list, trimming whitespace,
// lowercasing and dropping empty entries.
func SplitDomains(val string) []string {
	var domains []string
	for _, domain := range strings.Split(val, ",") {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain != "" {
			domains = append(domains, domain)
		}
	}
	return domains
}
