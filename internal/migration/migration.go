package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	billingaccountdomain "github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	customerdomain "github.com/railzwaylabs/stripesync/internal/customer/domain"
	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	pricedomain "github.com/railzwaylabs/stripesync/internal/price/domain"
	productdomain "github.com/railzwaylabs/stripesync/internal/product/domain"
	subscriptiondomain "github.com/railzwaylabs/stripesync/internal/subscription/domain"
	userdomain "github.com/railzwaylabs/stripesync/internal/user/domain"
	"gorm.io/gorm"
)

// Models lists the tables owned by this service, parents first.
func Models() []any {
	return []any{
		&userdomain.User{},
		&customerdomain.StripeUser{},
		&billingaccountdomain.Record{},
		&productdomain.Product{},
		&productdomain.Feature{},
		&productdomain.ProductFeature{},
		&pricedomain.Price{},
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.SubscriptionItem{},
		&paymentdomain.EventRecord{},
	}
}

// Run brings the schema up to date and records the result. Postgres uses
// the versioned SQL migrations; other drivers are migrated from the models.
func Run(ctx context.Context, conn *gorm.DB, driver string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}

	if driver != "postgres" {
		if err := conn.WithContext(ctx).AutoMigrate(append(Models(), &SchemaState{})...); err != nil {
			return err
		}
		return recordSchemaState(ctx, conn, latest, nil)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(ctx, sqlDB); err != nil {
		return err
	}
	checksum, err := MigrationsChecksum()
	if err != nil {
		return err
	}
	return recordSchemaState(ctx, conn, latest, &checksum)
}

// RunMigrations applies the embedded migrations under the advisory lock.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}

	return withAdvisoryLock(ctx, db, func() error {
		sub, err := fs.Sub(embeddedMigrations, migrationsDir)
		if err != nil {
			return fmt.Errorf("open migrations: %w", err)
		}
		source, err := iofs.New(sub, ".")
		if err != nil {
			return fmt.Errorf("create migration source: %w", err)
		}
		driver, err := postgres.WithInstance(db, &postgres.Config{})
		if err != nil {
			return fmt.Errorf("create migration driver: %w", err)
		}
		migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}

		if _, err := ensureNotDirty(migrator); err != nil {
			return err
		}
		if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}

		current, err := ensureNotDirty(migrator)
		if err != nil {
			return err
		}
		if current != latest {
			return fmt.Errorf("schema version mismatch after migrate: got %d want %d", current, latest)
		}
		return nil
	})
}

func ensureNotDirty(migrator *migrate.Migrate) (uint, error) {
	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database migrations are dirty at version %d", version)
	}
	return version, nil
}
