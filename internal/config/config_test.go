package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
fingerprint:
  rotation_mode: launch
  rotation_interval_seconds: 0
  randomize_user_agent: true
  randomize_accept_language: true
  strip_referer: true
cookies:
  block_all: true
  log_attempts: false
blocking:
  auto_block: false
  auto_block_threshold: 5
  block_patterns: []
db_path: test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.EffectivePort())
	assert.True(t, cfg.Cleanup.IsEnabled())
	assert.Equal(t, uint64(7), cfg.Cleanup.RetentionDays)
	assert.Equal(t, uint64(3600), cfg.Cleanup.IntervalSeconds)
	assert.Contains(t, cfg.Fingerprint.AcceptLanguages, "en-US,en;q=0.9")
}

func TestLoad_ExplicitPortAndCleanupDisabled(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
fingerprint:
  rotation_mode: interval
  rotation_interval_seconds: 3600
  randomize_user_agent: false
  randomize_accept_language: false
  strip_referer: false
cookies:
  block_all: false
  log_attempts: true
blocking:
  auto_block: true
  auto_block_threshold: 5
  block_patterns: [".*ads.*"]
cleanup:
  enabled: false
port: 9090
db_path: test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.EffectivePort())
	assert.False(t, cfg.Cleanup.IsEnabled())
	require.Len(t, cfg.Blocking.Compiled(), 1)
	assert.True(t, cfg.Blocking.Compiled()[0].MatchString("ads.example.com"))
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
fingerprint:
  rotation_mode: launch
  rotation_interval_seconds: 0
  randomize_user_agent: false
  randomize_accept_language: false
  strip_referer: false
cookies:
  block_all: false
  log_attempts: false
blocking:
  auto_block: false
  auto_block_threshold: 0
  block_patterns: []
db_path: test.db
totally_unknown_field: true
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsBadRegex(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
fingerprint:
  rotation_mode: launch
  rotation_interval_seconds: 0
  randomize_user_agent: false
  randomize_accept_language: false
  strip_referer: false
cookies:
  block_all: false
  log_attempts: false
blocking:
  auto_block: false
  auto_block_threshold: 0
  block_patterns: ["("]
db_path: test.db
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsBadRotationMode(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
fingerprint:
  rotation_mode: sometimes
  rotation_interval_seconds: 0
  randomize_user_agent: false
  randomize_accept_language: false
  strip_referer: false
cookies:
  block_all: false
  log_attempts: false
blocking:
  auto_block: false
  auto_block_threshold: 0
  block_patterns: []
db_path: test.db
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
