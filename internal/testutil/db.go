package testutil

import (
	"net/url"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/stripesync/internal/migration"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Organization and Company are host-application tables used to exercise
// custom billing-account models.
type Organization struct {
	ID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Name string `gorm:"not null;default:''"`
}

func (Organization) TableName() string { return "organizations" }

// Company is a billing-account table keyed by a unique organization_id.
type Company struct {
	ID                   int64   `gorm:"primaryKey;autoIncrement:false"`
	OrganizationID       *int64  `gorm:"uniqueIndex"`
	StripeCustomerID     *string `gorm:"type:varchar(128)"`
	StripeSubscriptionID *string `gorm:"type:varchar(256)"`
	ManagerUserID        *int64
	Seats                *int64
}

func (Company) TableName() string { return "companies" }

type Team struct {
	ID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Name string `gorm:"not null;default:''"`
}

func (Team) TableName() string { return "teams" }

// Workspace is a billing-account table owned by either an organization or
// a team.
type Workspace struct {
	ID                   int64   `gorm:"primaryKey;autoIncrement:false"`
	OrganizationID       *int64  `gorm:"uniqueIndex"`
	TeamID               *int64  `gorm:"uniqueIndex"`
	StripeCustomerID     *string `gorm:"type:varchar(128)"`
	StripeSubscriptionID *string `gorm:"type:varchar(256)"`
	ManagerUserID        *int64
}

func (Workspace) TableName() string { return "workspaces" }

func testModels() []any {
	return append(migration.Models(), &Organization{}, &Company{}, &Team{}, &Workspace{})
}

// NewDB opens a private in-memory database with the full schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(testModels()...))
	return conn
}

// NewSharedDB opens a file database with several pooled connections, so
// concurrent callers really overlap. Transactions begin IMMEDIATE and wait
// on the write lock instead of failing.
func NewSharedDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "stripesync.db") + "?" + url.Values{
		"_pragma": []string{"busy_timeout(10000)", "journal_mode(WAL)"},
		"_txlock": []string{"immediate"},
	}.Encode()
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(8)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(testModels()...))
	return conn
}

// SeedUser inserts a row into the default users table.
func SeedUser(t testing.TB, db *gorm.DB, id int64, email string) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO users (id, username, email, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		id, email, email,
	).Error)
}
