package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/catalogsync/migrations"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add sync runs table", "add_sync_runs_table"},
		{"Add-Sync-Runs", "add_sync_runs"},
		{"ADD_SYNC_RUNS", "add_sync_runs"},
		{"add__sync__runs", "add_sync_runs"},
		{"Add Index 123", "add_index_123"},
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
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "add run index", "Index runs by trigger")
	require.NoError(t, err)
	assert.Equal(t, "000001", mf.Version)
	assert.Equal(t, filepath.Join(dir, "000001_add_run_index.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000001_add_run_index.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "add run index")
	assert.Contains(t, string(up), "Index runs by trigger")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback")

	next, err := CreateMigration(dir, "drop run index", "")
	require.NoError(t, err)
	assert.Equal(t, "000002", next.Version)
}

func TestCreateMigration_ContinuesExistingSequence(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"000009_a.up.sql", "000009_a.down.sql", "000010_b.up.sql", "000010_b.down.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("--"), 0o644))
	}

	mf, err := CreateMigration(dir, "c", "")
	require.NoError(t, err)
	assert.Equal(t, "000011", mf.Version)
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(nested, "init", "")
	require.NoError(t, err)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000010_add_index.up.sql":      {Data: []byte("--")},
		"000010_add_index.down.sql":    {Data: []byte("--")},
		"000002_create_catalog.up.sql": {Data: []byte("--")},
		"000001_init.up.sql":           {Data: []byte("--")},
		"000001_init.down.sql":         {Data: []byte("--")},
		"README.md":                    {Data: []byte("docs")},
		"notes.up.sql":                 {Data: []byte("no version")},
		"subdir.up.sql/x":              {Data: []byte("dir")},
	}

	got, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init", "000002_create_catalog", "000010_add_index"}, got)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	got, err := ListMigrations(os.DirFS("/nonexistent/path/to/migrations"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	got, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	for i, base := range got {
		v, ok := parseVersion(base)
		require.True(t, ok, base)
		assert.Equal(t, i+1, v, "versions are contiguous")
		_, err := migrations.FS.Open(base + ".down.sql")
		assert.NoError(t, err, "%s has a down migration", base)
	}
}
