package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/erp/settlement/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add ledger index", "add_ledger_index"},
		{"Add-Ledger-Index", "add_ledger_index"},
		{"ADD__LEDGER__INDEX", "add_ledger_index"},
		{"fx rates 2", "fx_rates_2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading", "leading"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration_Sequence(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "add ledger index", "Index partner ledger by date")
	require.NoError(t, err)
	assert.Equal(t, "000001", first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_add_ledger_index.up.sql"), first.UpPath)

	body, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Index partner ledger by date")

	second, err := CreateMigration(dir, "widen notes", "")
	require.NoError(t, err)
	assert.Equal(t, "000002", second.Version)
	assert.FileExists(t, second.DownPath)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	require.Error(t, err)
}

func TestListMigrations_Embedded(t *testing.T) {
	list, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.Len(t, list, 3)

	for i, m := range list {
		assert.Equal(t, uint(i+1), m.Version)
		assert.True(t, m.HasDown, "migration %d needs a down file", m.Version)
	}
	assert.Equal(t, "sales", list[1].Name)
}

func TestListMigrations_IgnoresStrayFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"README.md", "000004_x.up.sql", "notes.up.sql", "abc_y.up.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	list, err := ListMigrations(os.DirFS(dir))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint(4), list[0].Version)
	assert.False(t, list[0].HasDown)
}
