package app

import (
	"context"
	"database/sql"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libmetrics "parkwise/backend/libs/metrics"
	libredis "parkwise/backend/libs/redis"
	"parkwise/backend/services/parking-service/internal/clock"
	"parkwise/backend/services/parking-service/internal/config"
	"parkwise/backend/services/parking-service/internal/db"
	httpserver "parkwise/backend/services/parking-service/internal/http"
	"parkwise/backend/services/parking-service/internal/http/handlers"
	"parkwise/backend/services/parking-service/internal/metrics"
	redisstore "parkwise/backend/services/parking-service/internal/redis"
	"parkwise/backend/services/parking-service/internal/repository"
	"parkwise/backend/services/parking-service/internal/service"
	"parkwise/backend/services/parking-service/internal/ws"
)

// App wires parking-service dependencies.
type App struct {
	server      *httpserver.Server
	hub         *ws.Hub
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(cfg.Database.DSN, db.Up); err != nil && !errors.Is(err, db.ErrNoChange) {
			return nil, err
		}
		logger.Info("database schema up to date")
	}

	sqlDB, err := db.NewPostgres(cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}

	redisClient, err := libredis.NewRedisClient(libredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	registry := libmetrics.NewRegistry()
	httpMetrics := libmetrics.NewHTTPMetrics(registry, "parking")
	parkingMetrics := metrics.NewParking(registry)

	clk := clock.System{}
	uow := service.NewSQLUnitOfWork(repository.NewStore(sqlDB))
	hub := ws.NewHub(cfg.Feed.WriteTimeout, cfg.Feed.PingInterval, logger.Named("gate-feed"))
	configService := service.NewConfigService(uow, cfg.BillingDefaults(), clk, logger)

	deps := service.Deps{
		UnitOfWork: uow,
		Config:     configService,
		Membership: service.VIPDiscount{Amount: cfg.Billing.VIPDiscount},
		Cache:      redisstore.NewActiveVisitStore(redisClient, cfg.ActiveVisitTTL()),
		Publisher:  hub,
		Metrics:    parkingMetrics,
		Clock:      clk,
		Logger:     logger,
	}
	parkingService := service.NewParkingService(deps)
	queryService := service.NewQueryService(deps)

	parkingHandler := handlers.NewParkingHandler(parkingService, queryService, logger)
	configHandler := handlers.NewConfigHandler(configService, logger)

	routes := httpserver.Routes{
		Entry:            parkingHandler.HandleEntry,
		FindVehicle:      parkingHandler.HandleFindVehicle,
		LatestEntry:      parkingHandler.HandleLatestEntry,
		EntryRecords:     parkingHandler.HandleEntryRecords,
		EntryExitRecords: parkingHandler.HandleEntryExitRecords,
		Records:          parkingHandler.HandleRecords,
		PaymentCheck:     parkingHandler.HandlePaymentCheck,
		Payment:          parkingHandler.HandlePayment,
		Exit:             parkingHandler.HandleExit,
		PaymentHistory:   parkingHandler.HandlePaymentHistory,
		ConfigGet:        configHandler.HandleGet,
		ConfigSave:       configHandler.HandleSave,
		GateFeed:         hub.HandleWS,
		Health: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"postgres": sqlDB.PingContext,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		}),
		Metrics: libmetrics.Handler(registry),
	}

	router := httpserver.NewRouter(routes, httpMetrics, logger)
	server := httpserver.NewServer(cfg.HTTPAddress(), router, cfg.HTTP.ShutdownTimeout, logger)
	server.OnShutdown(hub.Close)

	return &App{
		server:      server,
		hub:         hub,
		db:          sqlDB,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run starts HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	a.hub.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
