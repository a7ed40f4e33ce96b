package db

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"callstats/internal/config"
)

// openTestDB opens a migrated SQLite database in a temp dir.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := &config.Config{LogLevel: "ERROR", DBPoolSize: 1}
	path := filepath.Join(t.TempDir(), "callstats.db")
	gdb, err := Open(sqlite.Open(path), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	t.Cleanup(func() { _ = Close(gdb) })
	return gdb
}
