package migrations_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/volkan-m/ssh-mcp-server/internal/log"
	"github.com/volkan-m/ssh-mcp-server/internal/storage/sqlite/migrations"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	require.NoError(t, err)
	return count > 0
}

func TestSchemaUpDown(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer db.Close()

	schema, err := migrations.NewSchema(db, log.Noop)
	require.NoError(t, err)

	version, err := schema.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.True(t, tableExists(t, db, "executions"))

	// Applying again is a no-op.
	version, err = schema.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, schema.Down(context.Background()))
	assert.False(t, tableExists(t, db, "executions"))
}

func TestNewSchemaRequiresDB(t *testing.T) {
	_, err := migrations.NewSchema(nil, nil)
	assert.Error(t, err)
}
