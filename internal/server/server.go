package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/railzwaylabs/stripesync/internal/config"
	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	pricedomain "github.com/railzwaylabs/stripesync/internal/price/domain"
	subscriptiondomain "github.com/railzwaylabs/stripesync/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg           config.Config
	Log           *zap.Logger
	Checkout      paymentdomain.CheckoutService
	Portal        paymentdomain.PortalService
	Webhook       paymentdomain.Service
	Subscriptions subscriptiondomain.Service
	Prices        pricedomain.Service
}

type Server struct {
	cfg    config.Config
	log    *zap.Logger
	engine *gin.Engine

	checkoutSvc     paymentdomain.CheckoutService
	portalSvc       paymentdomain.PortalService
	webhookSvc      paymentdomain.Service
	subscriptionSvc subscriptiondomain.Service
	priceSvc        pricedomain.Service
}

// NewEngine builds a bare gin engine with recovery and request logging.
func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestID(), RequestLogger(log.Named("http")))
	return engine
}

func NewServer(p Params, engine *gin.Engine) *Server {
	return &Server{
		cfg:             p.Cfg,
		log:             p.Log.Named("server"),
		engine:          engine,
		checkoutSvc:     p.Checkout,
		portalSvc:       p.Portal,
		webhookSvc:      p.Webhook,
		subscriptionSvc: p.Subscriptions,
		priceSvc:        p.Prices,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	r := s.engine

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/webhooks/stripe", s.StripeWebhook)
	api.GET("/prices", s.ListPrices)

	authed := api.Group("", s.BearerRequired())
	authed.POST("/checkout", s.CreateCheckoutSession)
	authed.POST("/customer-portal", s.CreatePortalSession)
	authed.GET("/subscriptions", s.ListSubscriptions)
	authed.GET("/subscription-items", s.ListSubscriptionItems)
	authed.GET("/prices/subscribable", s.ListSubscribablePrices)
}

// RunHTTP serves the engine for the lifetime of the fx app.
func RunHTTP(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.App.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
