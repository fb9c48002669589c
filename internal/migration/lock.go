package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// migrationLockKey identifies the postgres advisory lock held while applying
// migrations.
const migrationLockKey int64 = 0x5354_5259_5045_5359

var ErrMigrationLocked = errors.New("migration_locked")

// withAdvisoryLock runs fn while holding the migration lock. Session locks
// belong to one connection, so the lock is taken on a dedicated conn.
func withAdvisoryLock(ctx context.Context, db *sql.DB, fn func() error) (err error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("reserve lock connection: %w", err)
	}
	defer conn.Close()

	var locked bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", migrationLockKey).Scan(&locked); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	if !locked {
		return ErrMigrationLocked
	}
	defer func() {
		_, unlockErr := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
		if unlockErr != nil && err == nil {
			err = fmt.Errorf("release migration lock: %w", unlockErr)
		}
	}()

	return fn()
}
