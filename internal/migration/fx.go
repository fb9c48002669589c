package migration

import (
	"context"

	"github.com/railzwaylabs/stripesync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Run(context.Background(), conn, cfg.Database.Driver); err != nil {
			return err
		}
		log.Info("schema migrated", zap.String("driver", cfg.Database.Driver))
		return nil
	}),
)

// GateModule refuses to start against a database that has not been migrated
// to this build's schema.
var GateModule = fx.Module("migrations.gate",
	fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
		if err := CheckSchema(context.Background(), conn); err != nil {
			log.Error("schema check failed, run the migrate command", zap.Error(err))
			return err
		}
		return nil
	}),
)
