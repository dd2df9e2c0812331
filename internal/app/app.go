package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/velora/checkout/internal/domain/cart"
	"github.com/velora/checkout/internal/domain/checkout"
	"github.com/velora/checkout/internal/domain/loyalty"
	"github.com/velora/checkout/internal/domain/order"
	"github.com/velora/checkout/internal/domain/voucher"
	"github.com/velora/checkout/internal/gateway"
	"github.com/velora/checkout/internal/handler"
	"github.com/velora/checkout/internal/storage/postgres"
	"github.com/velora/checkout/internal/storage/redisstore"
	"github.com/velora/checkout/pkg/health"
	"github.com/velora/checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	voucherRepo := postgres.NewVoucherRepository(pool)
	loyaltyRepo := postgres.NewLoyaltyRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Correlation store: Redis when configured, in-process otherwise.
	var corr checkout.CorrelationStore
	if cfg.Redis.Addr != "" {
		rs := redisstore.New(cfg.Redis.Addr, cfg.Redis.TTL)
		healthSvc.AddReadinessCheck("redis", 5*time.Second, health.PingCheck(rs))
		corr = rs
		lg.Info("Using redis correlation store", zap.String("addr", cfg.Redis.Addr))
	} else {
		corr = checkout.NewMemoryStore(cfg.Redis.TTL)
		lg.Info("Using in-memory correlation store")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Domain services.
	cartService := cart.NewService(cartRepo, productRepo)
	voucherRegistry := voucher.NewRegistry(voucherRepo)
	ledger := loyalty.NewLedger(loyaltyRepo)
	orderService := order.NewService(orderRepo, productRepo)

	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey, &http.Client{
		Timeout: cfg.Gateway.Timeout,
	})

	orch := checkout.NewOrchestrator(
		cartService,
		cartRepo,
		voucherRegistry,
		ledger,
		gw,
		corr,
		orderRepo,
		orderRepo,
		cfg.Gateway.Currency,
	)

	// HTTP surface.
	h := handler.New(
		handler.Config{
			SuccessURL: cfg.Gateway.SuccessURL,
			CancelURL:  cfg.Gateway.CancelURL,
		},
		cartService,
		cartRepo,
		voucherRegistry,
		orch,
		orderService,
	)

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Route("/api", func(r chi.Router) {
		// The gateway redirects carry no API key; everything else is keyed.
		r.Group(func(r chi.Router) {
			r.Get("/checkout/return", h.CheckoutReturn)
			r.Get("/checkout/cancel", h.CheckoutCancel)
		})
		r.Group(func(r chi.Router) {
			r.Use(handler.APIKeyAuth(apikeyRepo, []byte(cfg.APIKeyPepper)))
			h.Routes(r)
		})
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "X-API-Key", "X-Cart-Token", "X-User-ID", "X-User-Email", "X-User-Name"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("checkout-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
