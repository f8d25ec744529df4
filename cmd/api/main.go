package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staysync/internal/app/commands"
	"staysync/internal/app/handlers/calendarops"
	"staysync/internal/app/handlers/channelops"
	"staysync/internal/app/handlers/pricingops"
	"staysync/internal/app/handlers/syncadmin"
	"staysync/internal/app/middleware"
	appoutbox "staysync/internal/app/outbox"
	"staysync/internal/app/queries"
	"staysync/internal/app/uow"
	domainchannels "staysync/internal/domain/channels"
	"staysync/internal/infra/channel"
	"staysync/internal/infra/config"
	ginserver "staysync/internal/infra/http/gin"
	"staysync/internal/infra/obs"
	"staysync/internal/infra/reconcile"
	"staysync/internal/infra/redis"
	"staysync/internal/infra/storage/memory"
	mongostore "staysync/internal/infra/storage/mongo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("using fallback configuration", "error", err)
		cfg.Env = env
		cfg.HTTPAddr = getenv("HTTP_ADDR", ":8080")
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	app, err := buildApplication(cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}
	defer app.close()

	server := ginserver.NewServer(cfg,
		obs.Middleware{Logger: logger, Metrics: app.metrics},
		obs.HealthHandlers{Ready: app.ready},
		app.metrics,
		app.handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	metrics  *obs.Metrics
	ready    func() error
	close    func()
}

// outboxStore is the union the API needs: transactional appends from command
// handlers plus the operator admin surface.
type outboxStore interface {
	appoutbox.Outbox
	syncadmin.OutboxAdmin
}

type storage struct {
	factory  uow.UoWFactory
	outbox   outboxStore
	idemp    middleware.IdempotencyStore
	provider domainchannels.StateProvider
	ready    func() error
	close    func()
}

func buildApplication(cfg config.Config, logger *slog.Logger) (application, error) {
	metrics := obs.NewMetrics("staysync")

	store, err := buildStorage(cfg, logger)
	if err != nil {
		return application{}, err
	}

	var cache pricingops.Cache
	closeCache := func() {}
	if cfg.RedisAddr != "" {
		redisCache := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, metrics)
		cache = redisCache
		closeCache = func() { _ = redisCache.Close() }
		logger.Info("pricing cache enabled", "addr", cfg.RedisAddr)
	}

	encoder := appoutbox.JSONEventEncoder{}
	reconciler := &reconcile.Reconciler{
		Factory:      store.factory,
		Provider:     store.provider,
		Outbox:       store.outbox,
		Encoder:      encoder,
		Logger:       logger,
		Metrics:      metrics,
		HorizonDays:  cfg.ReconcileHorizonDays,
		Concurrency:  int64(cfg.ReconcileConcurrency),
		FetchTimeout: 10 * time.Second,
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, calendarops.BlockDatesCommand{}.Key(), &calendarops.BlockDatesHandler{
		UoWFactory: store.factory, Outbox: store.outbox, Encoder: encoder,
	})
	commands.RegisterHandler(commandBus, calendarops.UnblockDatesCommand{}.Key(), &calendarops.UnblockDatesHandler{
		UoWFactory: store.factory, Outbox: store.outbox, Encoder: encoder,
	})
	commands.RegisterHandler(commandBus, calendarops.UpdatePriceCommand{}.Key(), &calendarops.UpdatePriceHandler{
		UoWFactory: store.factory, Outbox: store.outbox, Encoder: encoder,
	})
	commands.RegisterHandler(commandBus, pricingops.PushPricingCommand{}.Key(), &pricingops.PushPricingHandler{
		UoWFactory: store.factory, Outbox: store.outbox, Encoder: encoder,
	})
	commands.RegisterHandler(commandBus, channelops.ApplyCalendarEventCommand{}.Key(), &channelops.ApplyCalendarEventHandler{
		UoWFactory: store.factory, Outbox: store.outbox, Encoder: encoder,
	})
	commands.RegisterHandler(commandBus, channelops.ImportReservationCommand{}.Key(), &channelops.ImportReservationHandler{
		UoWFactory: store.factory, Outbox: store.outbox, Encoder: encoder,
	})
	commands.RegisterHandler(commandBus, syncadmin.BulkRetryOutboxCommand{}.Key(), &syncadmin.BulkRetryOutboxHandler{
		Outbox: store.outbox,
	})
	commands.RegisterHandler(commandBus, syncadmin.TriggerReconciliationCommand{}.Key(), &syncadmin.TriggerReconciliationHandler{
		Reconciler: reconciler,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, calendarops.GetAvailabilityQuery{}.Key(), &calendarops.GetAvailabilityHandler{
		UoWFactory: store.factory,
	})
	queries.RegisterHandler(queryBus, pricingops.GetPricingQuery{}.Key(), &pricingops.GetPricingHandler{
		UoWFactory: store.factory, Cache: cache, CacheTTL: cfg.PricingCacheTTL, Logger: logger,
	})
	queries.RegisterHandler(queryBus, syncadmin.ListOutboxQuery{}.Key(), &syncadmin.ListOutboxHandler{Outbox: store.outbox})
	queries.RegisterHandler(queryBus, syncadmin.OutboxStatsQuery{}.Key(), &syncadmin.OutboxStatsHandler{Outbox: store.outbox})
	queries.RegisterHandler(queryBus, syncadmin.ListConflictsQuery{}.Key(), &syncadmin.ListConflictsHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, syncadmin.ListMappingsQuery{}.Key(), &syncadmin.ListMappingsHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, syncadmin.GetMappingQuery{}.Key(), &syncadmin.GetMappingHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, syncadmin.ListRunsQuery{}.Key(), &syncadmin.ListRunsHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, syncadmin.RunStatsQuery{}.Key(), &syncadmin.RunStatsHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, syncadmin.ConnectionHealthQuery{}.Key(), &syncadmin.ConnectionHealthHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, syncadmin.DiagnosticsQuery{}.Key(), &syncadmin.DiagnosticsHandler{
		UoWFactory: store.factory, Outbox: store.outbox,
	})

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Idempotency(store.idemp, nil),
		middleware.Transaction(store.factory, nil),
		middleware.OutboxFlush(store.outbox),
	)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus)

	return application{
		handlers: ginserver.Handlers{
			Calendar: ginserver.CalendarHandler{
				Commands: commandBusWithMiddleware,
				Queries:  queryBusWithMiddleware,
				Logger:   logger,
			},
			Pricing: ginserver.PricingHandler{
				Commands: commandBusWithMiddleware,
				Queries:  queryBusWithMiddleware,
				Logger:   logger,
			},
			SyncAdmin: ginserver.SyncAdminHandler{
				Commands: commandBusWithMiddleware,
				Queries:  queryBusWithMiddleware,
				Logger:   logger,
			},
			Webhook: ginserver.WebhookHandler{
				Commands: commandBusWithMiddleware,
				Logger:   logger,
			},
		},
		metrics: metrics,
		ready:   store.ready,
		close: func() {
			closeCache()
			store.close()
		},
	}, nil
}

func buildStorage(cfg config.Config, logger *slog.Logger) (storage, error) {
	if cfg.MongoURI == "" {
		logger.Warn("MONGO_URI not set, using in-memory storage")
		factory := memory.NewFactory()
		return storage{
			factory:  factory,
			outbox:   memory.NewOutboxStore(),
			idemp:    memory.NewIdempotencyStore(),
			provider: channel.NewStaticStateProvider(),
			ready:    func() error { return nil },
			close:    func() {},
		}, nil
	}

	client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storage{}, err
	}
	db := client.DB
	factory := mongostore.Factory{
		DB:            db,
		CalendarRepo:  mongostore.NewCalendarRepository(db),
		RatesRepo:     mongostore.NewRateSetRepository(db),
		MappingsRepo:  mongostore.NewMappingRepository(db),
		RunsRepo:      mongostore.NewRunRepository(db),
		ConflictsRepo: mongostore.NewConflictRepository(db),
	}
	logger.Info("mongo storage ready", "db", cfg.MongoDB)
	return storage{
		factory:  factory,
		outbox:   mongostore.NewOutboxStore(db),
		idemp:    mongostore.NewIdempotencyStore(db, cfg.IdempotencyTTL),
		provider: channel.NewMongoStateStore(db),
		ready: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		},
		close: func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Close(closeCtx)
		},
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
