package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"staysync/internal/app/commands"
	"staysync/internal/app/handlers/channelops"
	"staysync/internal/app/middleware"
	appoutbox "staysync/internal/app/outbox"
	"staysync/internal/infra/broker/kafka"
	"staysync/internal/infra/channel"
	"staysync/internal/infra/config"
	"staysync/internal/infra/inbox"
	"staysync/internal/infra/obs"
	infraoutbox "staysync/internal/infra/outbox"
	"staysync/internal/infra/reconcile"
	mongostore "staysync/internal/infra/storage/mongo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger := obs.NewLogger(cfg.Env)
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	metrics := obs.NewMetrics("staysync_worker")

	client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connect failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(closeCtx)
	}()
	db := client.DB

	factory := mongostore.Factory{
		DB:            db,
		CalendarRepo:  mongostore.NewCalendarRepository(db),
		RatesRepo:     mongostore.NewRateSetRepository(db),
		MappingsRepo:  mongostore.NewMappingRepository(db),
		RunsRepo:      mongostore.NewRunRepository(db),
		ConflictsRepo: mongostore.NewConflictRepository(db),
	}
	outboxStore := mongostore.NewOutboxStore(db)
	stateStore := channel.NewMongoStateStore(db)
	encoder := appoutbox.JSONEventEncoder{}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		logger.Error("kafka producer failed", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	hostname, _ := os.Hostname()
	dispatcher := &infraoutbox.Dispatcher{
		Store:       outboxStore,
		Producer:    producer,
		Logger:      logger,
		Metrics:     metrics,
		Interval:    cfg.OutboxPollInterval,
		BatchSize:   cfg.OutboxBatchSize,
		Workers:     int64(cfg.OutboxWorkers),
		MaxAttempts: cfg.OutboxMaxAttempts,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Source:      "app://staysync",
		ID:          hostname,
		Backoff:     cfg.RetryBackoff,
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, channelops.ApplyCalendarEventCommand{}.Key(), &channelops.ApplyCalendarEventHandler{
		UoWFactory: factory, Outbox: outboxStore, Encoder: encoder,
	})
	commands.RegisterHandler(commandBus, channelops.ImportReservationCommand{}.Key(), &channelops.ImportReservationHandler{
		UoWFactory: factory, Outbox: outboxStore, Encoder: encoder,
	})
	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Idempotency(mongostore.NewIdempotencyStore(db, cfg.IdempotencyTTL), nil),
		middleware.Transaction(factory, nil),
		middleware.OutboxFlush(outboxStore),
	)

	eventConsumer := &channel.EventConsumer{
		Bus:    commandBusWithMiddleware,
		Inbox:  inbox.NewMongoStore(db, cfg.IdempotencyTTL),
		States: stateStore,
		Logger: logger,
	}
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, eventConsumer)
	if err != nil {
		logger.Error("kafka consumer failed", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	reconciler := &reconcile.Reconciler{
		Factory:      factory,
		Provider:     stateStore,
		Outbox:       outboxStore,
		Encoder:      encoder,
		Logger:       logger,
		Metrics:      metrics,
		HorizonDays:  cfg.ReconcileHorizonDays,
		Concurrency:  int64(cfg.ReconcileConcurrency),
		FetchTimeout: 10 * time.Second,
	}
	scheduler := &reconcile.Scheduler{
		Reconciler:    reconciler,
		Organizations: cfg.ReconcileOrgs,
		Interval:      cfg.ReconcileInterval,
		Logger:        logger,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(ctx) })
	g.Go(func() error { return consumer.Run(ctx, []string{cfg.KafkaTopicPrefix + channel.InboundTopic}) })
	if len(cfg.ReconcileOrgs) > 0 {
		g.Go(func() error { return scheduler.Run(ctx) })
	} else {
		logger.Info("RECONCILE_ORGS empty, scheduled reconciliation disabled")
	}

	logger.Info("sync worker started",
		"brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroupID,
		"outbox_workers", cfg.OutboxWorkers, "reconcile_interval", cfg.ReconcileInterval)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("sync worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("sync worker stopped")
}
