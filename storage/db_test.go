package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "wikicite.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestMigrateAndDropAll(t *testing.T) {
	db := newTestDB(t)
	for _, m := range AllModels() {
		require.True(t, db.Migrator().HasTable(m))
	}

	require.NoError(t, DropAll(db))
	for _, m := range AllModels() {
		require.False(t, db.Migrator().HasTable(m))
	}
}
