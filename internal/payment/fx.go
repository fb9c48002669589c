package payment

import (
	"github.com/railzwaylabs/stripesync/internal/config"
	"github.com/railzwaylabs/stripesync/internal/payment/adapters/stripe"
	"github.com/railzwaylabs/stripesync/internal/payment/domain"
	"github.com/railzwaylabs/stripesync/internal/payment/repository"
	paymentservice "github.com/railzwaylabs/stripesync/internal/payment/service"
	"github.com/railzwaylabs/stripesync/internal/payment/webhook"
	"go.uber.org/fx"
)

// GatewayModule provides the Stripe adapter behind the provider-neutral
// interfaces.
var GatewayModule = fx.Module("payment.gateway",
	fx.Provide(func(cfg config.Config) *stripe.Adapter {
		return stripe.New(cfg.Stripe)
	}),
	fx.Provide(func(a *stripe.Adapter) domain.Gateway { return a }),
	fx.Provide(func(a *stripe.Adapter) domain.WebhookAdapter { return a }),
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(paymentservice.NewCheckoutService),
	fx.Provide(paymentservice.NewPortalService),
	fx.Provide(webhook.NewService),
)
