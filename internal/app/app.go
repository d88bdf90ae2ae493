package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/coquipos/backend/internal/domain/ledger"
	"github.com/coquipos/backend/internal/domain/order"
	"github.com/coquipos/backend/internal/domain/sales"
	"github.com/coquipos/backend/internal/handler"
	"github.com/coquipos/backend/internal/storage/bolt"
	"github.com/coquipos/backend/internal/storage/postgres"
	"github.com/coquipos/backend/pkg/health"
	"github.com/coquipos/backend/pkg/httpmiddleware"
)

// storage bundles the backend-specific pieces behind one shape so the wiring
// below does not care which backend is active.
type storage struct {
	orders order.Repository
	sales  sales.Repository
	ping   health.CheckFunc
	close  func()
}

// openStorage selects PostgreSQL when a database URL is configured and the
// local bolt file otherwise.
func openStorage(ctx context.Context, cfg *Config) (*storage, error) {
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		return &storage{
			orders: postgres.NewOrderRepository(pool),
			sales:  postgres.NewSalesRepository(pool),
			ping:   pool.Ping,
			close:  pool.Close,
		}, nil
	}

	store, err := bolt.Open(cfg.DataPath)
	if err != nil {
		return nil, errors.Wrap(err, "open data file")
	}
	return &storage{
		orders: bolt.NewOrderRepository(store),
		sales:  bolt.NewSalesRepository(store),
		ping:   store.Ping,
		close:  func() { _ = store.Close() },
	}, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	engine := ledger.New(ledger.Config{ManagerPassword: cfg.ManagerPassword}, st.orders, st.sales)
	if err := engine.Warm(ctx); err != nil {
		return errors.Wrap(err, "warm engine")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("storage", 5*time.Second, st.ping)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	handler.New(engine).Register(mux)

	chain := httpmiddleware.Wrap(mux,
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.LogRequests(),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(chain, "pos-api",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
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
