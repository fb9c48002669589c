package billingaccount

import (
	"github.com/railzwaylabs/stripesync/internal/billingaccount/repository"
	"github.com/railzwaylabs/stripesync/internal/billingaccount/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingaccount.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
