package migration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSchemaNotMigrated      = errors.New("schema_not_migrated")
	ErrSchemaVersionMismatch  = errors.New("schema_version_mismatch")
	ErrSchemaChecksumMismatch = errors.New("schema_checksum_mismatch")
)

// SchemaState is the single row describing the last completed migration.
type SchemaState struct {
	ID            bool      `gorm:"primaryKey;default:true"`
	SchemaVersion string    `gorm:"type:varchar(32);not null"`
	Checksum      *string   `gorm:"type:varchar(64)"`
	MigratedAt    time.Time `gorm:"not null"`
}

func (SchemaState) TableName() string { return "schema_state" }

func recordSchemaState(ctx context.Context, conn *gorm.DB, version uint, checksum *string) error {
	state := SchemaState{
		ID:            true,
		SchemaVersion: strconv.FormatUint(uint64(version), 10),
		Checksum:      checksum,
		MigratedAt:    time.Now().UTC(),
	}
	err := conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"schema_version", "checksum", "migrated_at"}),
	}).Create(&state).Error
	if err != nil {
		return fmt.Errorf("record schema state: %w", err)
	}
	return nil
}

// CheckSchema fails unless the database was migrated to the embedded
// version. A recorded checksum must also match.
func CheckSchema(ctx context.Context, conn *gorm.DB) error {
	var state SchemaState
	err := conn.WithContext(ctx).Where("id = ?", true).Take(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || !conn.Migrator().HasTable(&SchemaState{}) {
			return ErrSchemaNotMigrated
		}
		return fmt.Errorf("load schema state: %w", err)
	}

	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}
	if want := strconv.FormatUint(uint64(latest), 10); state.SchemaVersion != want {
		return fmt.Errorf("%w: have %s want %s", ErrSchemaVersionMismatch, state.SchemaVersion, want)
	}

	if state.Checksum != nil {
		want, err := MigrationsChecksum()
		if err != nil {
			return err
		}
		if *state.Checksum != want {
			return ErrSchemaChecksumMismatch
		}
	}
	return nil
}
