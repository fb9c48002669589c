package migration_test

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/stripesync/internal/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestRunAndCheckSchema(t *testing.T) {
	ctx := context.Background()
	conn := openDB(t)

	assert.ErrorIs(t, migration.CheckSchema(ctx, conn), migration.ErrSchemaNotMigrated)

	require.NoError(t, migration.Run(ctx, conn, "sqlite"))
	require.NoError(t, migration.CheckSchema(ctx, conn))
	assert.True(t, conn.Migrator().HasTable("subscriptions"))
	assert.True(t, conn.Migrator().HasTable("payment_events"))

	// rerunning keeps a single state row
	require.NoError(t, migration.Run(ctx, conn, "sqlite"))
	var rows int64
	require.NoError(t, conn.Model(&migration.SchemaState{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestCheckSchema_Mismatch(t *testing.T) {
	ctx := context.Background()
	conn := openDB(t)
	require.NoError(t, migration.Run(ctx, conn, "sqlite"))

	require.NoError(t, conn.Model(&migration.SchemaState{}).Where("id = ?", true).
		Update("schema_version", "0").Error)
	assert.ErrorIs(t, migration.CheckSchema(ctx, conn), migration.ErrSchemaVersionMismatch)

	latest, err := migration.LatestMigrationVersion()
	require.NoError(t, err)
	require.NoError(t, conn.Model(&migration.SchemaState{}).Where("id = ?", true).
		Updates(map[string]any{"schema_version": latest, "checksum": "stale"}).Error)
	assert.ErrorIs(t, migration.CheckSchema(ctx, conn), migration.ErrSchemaChecksumMismatch)
}

func TestRun_RequiresHandle(t *testing.T) {
	assert.Error(t, migration.Run(context.Background(), nil, "sqlite"))
}
