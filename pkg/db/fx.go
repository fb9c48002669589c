package db

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/stripesync/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("db",
	fx.Provide(func(lc fx.Lifecycle, cfg config.Config) (*gorm.DB, error) {
		conn, err := Open(cfg)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}})
		return conn, nil
	}),
	fx.Provide(func() (*snowflake.Node, error) {
		return snowflake.NewNode(1)
	}),
)
