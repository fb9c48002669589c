package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/railzwaylabs/stripesync/internal/config"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(NewLogger),
	fx.Provide(func() *Metrics {
		return NewMetrics(prometheus.DefaultRegisterer)
	}),
	fx.Provide(func(lc fx.Lifecycle, cfg config.Config) (*sdktrace.TracerProvider, error) {
		tp, err := NewTracerProvider(context.Background(), cfg.Observability)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: tp.Shutdown})
		return tp, nil
	}),
	// installs the global tracer provider
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
	fx.Invoke(func(lc fx.Lifecycle, log *zap.Logger) {
		lc.Append(fx.Hook{OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		}})
	}),
)
