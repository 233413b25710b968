package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"crboard/internal/changerequest/store/migrations"
	"crboard/internal/platform/sqlite"
)

func TestSQLiteBackendContract(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping sqlite file test in short mode")
	}
	runBackendContract(t, func(t *testing.T) Backend {
		db, err := sqlite.Open(filepath.Join(t.TempDir(), "registry.db"), migrations.SQLite, "sqlite")
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return NewSQLite(db)
	})
}
