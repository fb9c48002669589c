package config

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module(path string) fx.Option {
	return fx.Module("config",
		fx.Provide(func() (*BillingConfigHolder, Config, error) {
			return NewBillingConfigHolderFromFile(path)
		}),
	)
}

// WatchModule hot-reloads billing settings while the server runs.
var WatchModule = fx.Module("config.watch",
	fx.Invoke(func(h *BillingConfigHolder, log *zap.Logger) {
		if h.path == "" {
			return
		}
		if err := h.Watch(log.Named("config")); err != nil {
			log.Warn("config watch disabled", zap.Error(err))
		}
	}),
)
