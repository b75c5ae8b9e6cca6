package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the loader consults so tests are hermetic
// regardless of the invoking shell. t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SKEETSWEEP_HANDLE", "BLUESKY_USERNAME", "BLUESKY_PASSWORD",
		"SKEETSWEEP_PDS_URL", "SKEETSWEEP_MAX_REPOSTS", "SKEETSWEEP_STALE_LIMIT_DAYS",
		"SKEETSWEEP_PROTECTED_DOMAINS", "SKEETSWEEP_FIXED_LIKES_CURSOR",
		"SKEETSWEEP_AUTO_CONFIRM", "SKEETSWEEP_ARCHIVE_ONLY", "SKEETSWEEP_ARCHIVE_DIR",
		"SKEETSWEEP_STATE_DIR", "SKEETSWEEP_LOG_FILE", "SKEETSWEEP_SCHEDULE",
		"SKEETSWEEP_LISTEN_ADDR",
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skeetsweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, "handle: sweeper.bsky.social\n"))
	require.NoError(t, err)

	assert.Equal(t, "sweeper.bsky.social", cfg.Handle)
	assert.Empty(t, cfg.PdsUrl, "empty means resolve the PDS from the handle")
	assert.Equal(t, "archive", cfg.ArchiveDir)
	assert.Equal(t, ".", cfg.StateDir)
	assert.Equal(t, ":9107", cfg.ListenAddr)
	assert.Zero(t, cfg.MaxReposts)
	assert.Zero(t, cfg.StaleLimitDays)
	assert.False(t, cfg.AutoConfirm)
}

func TestLoadParsesAllKeys(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, `
handle: sweeper.bsky.social
password: hunter2
pds_url: https://pds.example.com
max_reposts: 100
stale_limit_days: 30
protected_domains:
  - example.com
  - archive.org
fixed_likes_cursor: abc123
auto_confirm: true
archive_only: true
archive_dir: /srv/archive
state_dir: /var/lib/skeetsweep
log_file: /var/log/skeetsweep.log
schedule: "0 4 * * *"
listen_addr: 127.0.0.1:9200
`))
	require.NoError(t, err)

	assert.Equal(t, "sweeper.bsky.social", cfg.Handle)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, "https://pds.example.com", cfg.PdsUrl)
	assert.Equal(t, 100, cfg.MaxReposts)
	assert.Equal(t, 30, cfg.StaleLimitDays)
	assert.Equal(t, []string{"example.com", "archive.org"}, cfg.ProtectedDomains)
	assert.Equal(t, "abc123", cfg.FixedLikesCursor)
	assert.True(t, cfg.AutoConfirm)
	assert.True(t, cfg.ArchiveOnly)
	assert.Equal(t, "/srv/archive", cfg.ArchiveDir)
	assert.Equal(t, "/var/lib/skeetsweep", cfg.StateDir)
	assert.Equal(t, "/var/log/skeetsweep.log", cfg.LogFile)
	assert.Equal(t, "0 4 * * *", cfg.Schedule)
	assert.Equal(t, "127.0.0.1:9200", cfg.ListenAddr)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.ErrorContains(t, err, "reading config file")
}

func TestLoadRejectsMalformedYaml(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, "handle: [unclosed\n"))

	assert.ErrorContains(t, err, "parsing config file")
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("SKEETSWEEP_HANDLE", "env.bsky.social")
	t.Setenv("BLUESKY_PASSWORD", "env-password")
	t.Setenv("SKEETSWEEP_MAX_REPOSTS", "250")
	t.Setenv("SKEETSWEEP_PROTECTED_DOMAINS", "one.com, two.org")
	t.Setenv("SKEETSWEEP_AUTO_CONFIRM", "true")
	t.Setenv("SKEETSWEEP_STATE_DIR", "/tmp/state")

	cfg, err := Load(writeConfig(t, `
handle: file.bsky.social
password: file-password
max_reposts: 10
protected_domains: [file.com]
`))
	require.NoError(t, err)

	assert.Equal(t, "env.bsky.social", cfg.Handle)
	assert.Equal(t, "env-password", cfg.Password)
	assert.Equal(t, 250, cfg.MaxReposts)
	assert.Equal(t, []string{"one.com", "two.org"}, cfg.ProtectedDomains)
	assert.True(t, cfg.AutoConfirm)
	assert.Equal(t, "/tmp/state", cfg.StateDir)
}

func TestBlueskyUsernameFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("BLUESKY_USERNAME", "legacy.bsky.social")

	cfg, err := Load(writeConfig(t, "handle: file.bsky.social\n"))
	require.NoError(t, err)
	assert.Equal(t, "legacy.bsky.social", cfg.Handle)

	// SKEETSWEEP_HANDLE wins over the legacy variable.
	t.Setenv("SKEETSWEEP_HANDLE", "primary.bsky.social")
	cfg, err = Load(writeConfig(t, "handle: file.bsky.social\n"))
	require.NoError(t, err)
	assert.Equal(t, "primary.bsky.social", cfg.Handle)
}

func TestValidateRejectsNegativeThresholds(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, "max_reposts: -1\n"))
	assert.ErrorContains(t, err, "max_reposts")

	_, err = Load(writeConfig(t, "stale_limit_days: -7\n"))
	assert.ErrorContains(t, err, "stale_limit_days")
}

func TestRequireCredentials(t *testing.T) {
	cfg := &Config{}
	assert.ErrorContains(t, cfg.RequireCredentials(), "no handle")

	cfg.Handle = "sweeper.bsky.social"
	assert.ErrorContains(t, cfg.RequireCredentials(), "no password")

	cfg.Password = "hunter2"
	assert.NoError(t, cfg.RequireCredentials())
}

func TestDatabasePath(t *testing.T) {
	cfg := &Config{StateDir: "/var/lib/skeetsweep"}
	assert.Equal(t, filepath.Join("/var/lib/skeetsweep", "skeetsweep.db"), cfg.DatabasePath())
}

func TestSplitDomains(t *testing.T) {
	assert.Equal(t, []string{"a.com", "b.org", "c.net"}, SplitDomains(" A.com , b.org ,,c.net"))
	assert.Nil(t, SplitDomains(""))
	assert.Nil(t, SplitDomains(" , "))
}
