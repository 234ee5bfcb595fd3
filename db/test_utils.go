package db

import (
	"testing"

	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/require"
)

// NewTestDB opens a migrated in-memory sqlite database for tests.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := gorm.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// :memory: é por conexão, então fixamos uma só
	database.DB().SetMaxOpenConns(1)
	require.NoError(t, Migrate(database))

	t.Cleanup(func() { _ = database.Close() })
	return database
}
