package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add sites table", "add_sites_table"},
		{"Add-Sites-Table", "add_sites_table"},
		{"ADD_SITES_TABLE", "add_sites_table"},
		{"add__sites__table", "add_sites_table"},
		{"Add Sites 123", "add_sites_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")
	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	mf, err := CreateMigration(dir, "add product cache index", "Speed up SKU lookups", now)
	require.NoError(t, err)

	assert.Equal(t, "20261017093000", mf.Version)
	assert.Equal(t, "20261017093000_add_product_cache_index.up.sql", filepath.Base(mf.UpPath))
	assert.True(t, strings.HasSuffix(mf.DownPath, "_add_product_cache_index.down.sql"))

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "add product cache index")
	assert.Contains(t, string(up), "Speed up SKU lookups")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback")

	t.Run("refuses to overwrite", func(t *testing.T) {
		_, err := CreateMigration(dir, "add product cache index", "again", now)
		require.Error(t, err)
	})

	t.Run("rejects empty names", func(t *testing.T) {
		_, err := CreateMigration(dir, "!!!", "", now)
		require.Error(t, err)
	})
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"000002_add_sites.up.sql",
		"000002_add_sites.down.sql",
		"000001_init_schema.up.sql",
		"000001_init_schema.down.sql",
		"README.md",
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("-- test"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.up.sql"), 0o755))

	migrations, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init_schema", "000002_add_sites"}, migrations)

	missing, err := ListMigrations(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestRepositoryMigrations(t *testing.T) {
	dir := filepath.Join("..", "..", "..", DefaultMigrationsPath)
	migrations, err := ListMigrations(dir)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for _, base := range migrations {
		up, err := os.ReadFile(filepath.Join(dir, base+".up.sql"))
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(dir, base+".down.sql"))
		require.NoError(t, err, "missing down migration for %s", base)

		if base == migrations[0] {
			for _, table := range []string{"sync_batches", "sync_site_results", "sync_inventory_caches", "sync_sites", "sync_settings", "storefront_products"} {
				assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS "+table)
			}
		}
	}
}

func TestSourceURL(t *testing.T) {
	assert.Equal(t, "file://migrations", sourceURL(""))
	assert.Equal(t, "file:///srv/migrations", sourceURL("/srv/migrations"))
}
