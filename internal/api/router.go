package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bellwetherhq/bellwether/internal/api/handlers"
	mw "github.com/bellwetherhq/bellwether/internal/api/middleware"
	"github.com/bellwetherhq/bellwether/internal/config"
	"github.com/bellwetherhq/bellwether/internal/oracle"
	"github.com/bellwetherhq/bellwether/internal/service"
	"github.com/bellwetherhq/bellwether/internal/store"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	Aggregator   *service.AggregationService
	Expirer      *service.ExpirerService
	Poller       *oracle.Poller
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	marketStore := store.NewMarketStore(db)
	signalStore := store.NewSignalStore(db)
	indexStore := store.NewIndexStore(db)
	positionStore := store.NewPositionStore(db)
	inflectionStore := store.NewInflectionStore(db)

	// Shared in-memory state
	buffers := service.NewBufferSet()
	monitor := service.NewMonitorService(logger)

	// Services
	marketSvc := service.NewMarketService(marketStore, buffers, monitor, logger)
	signalSvc := service.NewSignalService(marketStore, signalStore, buffers, logger)
	positionSvc := service.NewPositionService(marketStore, positionStore, logger)
	settlementSvc := service.NewSettlementService(marketStore, positionStore, inflectionStore, logger)
	aggregationSvc := service.NewAggregationService(
		marketSvc, marketStore, indexStore, inflectionStore,
		buffers, monitor, config.AggregationInterval(), logger)
	expirerSvc := service.NewExpirerService(
		marketStore, positionStore, buffers, monitor, config.ExpiryInterval(), logger)

	// Oracle providers via factory
	providers := buildProviders(logger)
	poller := oracle.NewPoller(providers, marketSvc, signalSvc, config.OraclePollInterval(), logger)

	// Handlers
	marketHandler := handlers.NewMarketHandler(marketSvc)
	signalHandler := handlers.NewSignalHandler(signalSvc)
	indexHandler := handlers.NewIndexHandler(aggregationSvc)
	positionHandler := handlers.NewPositionHandler(positionSvc)
	settlementHandler := handlers.NewSettlementHandler(settlementSvc)

	r := chi.NewRouter()

	// Initialize app with metrics tracking
	app := &App{
		Router:     r,
		Aggregator: aggregationSvc,
		Expirer:    expirerSvc,
		Poller:     poller,
		startTime:  time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)                                                 // Generate/extract request ID first
	r.Use(middleware.RealIP)                                            // Extract real IP
	r.Use(metricsCollector.Middleware)                                  // Collect metrics
	r.Use(mw.Logging(logger))                                           // Log all requests
	r.Use(middleware.Recoverer)                                         // Recover from panics
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst())) // Rate limiting

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.BearerAuth(config.APIKey()))

		r.Route("/markets", func(r chi.Router) {
			r.Post("/", marketHandler.Create)
			r.Get("/", marketHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", marketHandler.GetByID)
				r.Post("/cancel", marketHandler.Cancel)

				r.Post("/signals", signalHandler.Ingest)
				r.Get("/signals", signalHandler.History)

				r.Get("/index", indexHandler.Latest)
				r.Get("/index/history", indexHandler.History)

				r.Post("/positions", positionHandler.Place)
				r.Get("/positions", positionHandler.ListByMarket)
				r.Get("/buckets", positionHandler.Aggregates)

				r.Get("/inflection", settlementHandler.Inflection)
				r.Post("/settle", settlementHandler.Settle)
				r.Get("/settlement", settlementHandler.Preview)
			})
		})

		r.Get("/positions/{id}", positionHandler.GetByID)
	})

	return app
}

// buildProviders constructs the configured oracle providers. A provider
// that fails to initialize is logged and skipped; polling proceeds with
// the rest.
func buildProviders(logger *zap.Logger) []oracle.Provider {
	kind := config.OracleProvider()
	apiKey := config.APIKey()

	if kind == oracle.ProviderMock {
		return []oracle.Provider{oracle.NewMockProvider()}
	}

	var providers []oracle.Provider
	for _, endpoint := range strings.Split(config.OracleEndpoints(), ",") {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint == "" {
			continue
		}
		provider, err := oracle.NewProvider(kind, endpoint, apiKey)
		if err != nil {
			logger.Warn("oracle provider initialization failed",
				zap.String("provider", kind),
				zap.String("endpoint", endpoint),
				zap.Error(err))
			continue
		}
		logger.Info("oracle provider initialized",
			zap.String("provider", provider.Name()),
			zap.String("endpoint", endpoint))
		providers = append(providers, provider)
	}
	return providers
}

// NewRouter returns just the chi.Mux for backward compatibility.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure providers satisfy the oracle interface at compile time.
var (
	_ oracle.Provider = (*oracle.HTTPProvider)(nil)
	_ oracle.Provider = (*oracle.MockProvider)(nil)
)
