package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := `
[app]
name = "stocksync-test"
env = "test"

[log]
level = "error"
format = "json"
output = "stderr"

[database]
driver = "sqlite"
path = "` + filepath.ToSlash(filepath.Join(dir, "stocksync.db")) + `"

[sync]
enabled = false
max_steps_per_run = 5
step_timeout = "10s"
interval = "1m"
`
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp("test")
	app.SetOutput(&out)
	err := app.Execute(context.Background(), args)
	return out.String(), err
}

func TestStepCommand_NoSitesFailsBatch(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := execute(t, "--config", cfgPath, "step")
	require.NoError(t, err)

	var outcome map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.Equal(t, "failed", outcome["status"])
	assert.Equal(t, true, outcome["done"])
	assert.Equal(t, true, outcome["created"])
	assert.Contains(t, outcome["error_message"], "no enabled sites")
}

func TestStepCommand_All(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := execute(t, "--config", cfgPath, "step", "--all")
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "cli", summary["trigger"])
	assert.Equal(t, "done", summary["stop_reason"])
	assert.Equal(t, float64(1), summary["steps"])
}

func TestMigrateCreateAndList(t *testing.T) {
	cfgPath := writeConfig(t)
	dir := t.TempDir()

	out, err := execute(t, "--config", cfgPath, "migrate", "create", "--path", dir, "add_site_index")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "_add_site_index.up.sql"))
	assert.True(t, strings.HasSuffix(lines[1], "_add_site_index.down.sql"))
	for _, l := range lines {
		_, statErr := os.Stat(l)
		assert.NoError(t, statErr)
	}

	out, err = execute(t, "--config", cfgPath, "migrate", "list", "--path", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "add_site_index")
}

func TestMigrateRejectsSQLite(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := execute(t, "--config", cfgPath, "migrate", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "step")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}
