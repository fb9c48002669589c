package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/railzwaylabs/stripesync/internal/billingaccount"
	"github.com/railzwaylabs/stripesync/internal/clock"
	"github.com/railzwaylabs/stripesync/internal/config"
	"github.com/railzwaylabs/stripesync/internal/customer"
	"github.com/railzwaylabs/stripesync/internal/migration"
	"github.com/railzwaylabs/stripesync/internal/observability"
	"github.com/railzwaylabs/stripesync/internal/payment"
	"github.com/railzwaylabs/stripesync/internal/price"
	"github.com/railzwaylabs/stripesync/internal/product"
	"github.com/railzwaylabs/stripesync/internal/redis"
	"github.com/railzwaylabs/stripesync/internal/server"
	"github.com/railzwaylabs/stripesync/internal/subscription"
	"github.com/railzwaylabs/stripesync/internal/user"
	"github.com/railzwaylabs/stripesync/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "stripesync",
		Short:         "Keep Stripe customers and subscriptions mirrored in the local database",
		Version:       readVersionFromEnv(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the config file (env STRIPESYNC_* overrides)")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSyncCmd(opts),
		newMigrateLegacyBillingCmd(opts),
	)
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and webhook endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				serviceModules(opts.configPath),
				migration.GateModule,
				server.Module,
				config.WatchModule,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				config.Module(opts.configPath),
				observability.Module,
				db.Module,
				migration.Module,
				fx.WithLogger(newFxLogger),
			)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			if err := app.Start(ctx); err != nil {
				return fmt.Errorf("migrate failed: %w", err)
			}
			return app.Stop(context.Background())
		},
	}
}

// serviceModules wires every sync service over the configured database and
// Stripe account.
func serviceModules(configPath string) fx.Option {
	return fx.Options(
		config.Module(configPath),
		observability.Module,
		db.Module,
		clock.Module,
		redis.Module,
		user.Module,
		billingaccount.Module,
		customer.Module,
		subscription.Module,
		product.Module,
		price.Module,
		payment.GatewayModule,
		payment.Module,
		fx.WithLogger(newFxLogger),
	)
}

// runOneShot starts the service graph, hands the populated targets to run
// and stops the app again.
func runOneShot(configPath string, run func(ctx context.Context) error, targets ...any) error {
	app := fx.New(
		serviceModules(configPath),
		fx.Populate(targets...),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		_ = app.Stop(context.Background())
	}()

	return run(context.Background())
}

func newFxLogger(log *zap.Logger) fxevent.Logger {
	l := &fxevent.ZapLogger{Logger: log.Named("fx")}
	l.UseLogLevel(zapcore.DebugLevel)
	return l
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
