package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"itcwallet/api"
	"itcwallet/application"
	"itcwallet/config"
	"itcwallet/database"
	"itcwallet/domain/interfaces"
	"itcwallet/domain/services"
	"itcwallet/infrastructure"
	"itcwallet/infrastructure/observability"
	"itcwallet/infrastructure/processor"
	"itcwallet/repository"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 10 * time.Second

// ConfigureLogging sets the logrus level and formatter for the environment
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// Run initializes and starts the wallet service
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.Infof("Starting ITC wallet service in %s mode...", cfg.Environment)

	// Initialize metrics
	log.Info("Initializing metrics...")
	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics := observability.GetMetrics()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
			log.Errorf("Error shutting down metrics: %v", err)
		}
	}()

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("Closing database connection...")
		db.Close()
	}()
	log.Info("Database connection established successfully")

	// Initialize event publication
	var natsClient *infrastructure.NATSClient
	var publisher interfaces.EventPublisher = infrastructure.NewNoopEventPublisher()
	if cfg.NATSServers != "" {
		log.Info("Connecting to NATS...")
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer func() {
			if err := natsClient.Close(); err != nil {
				log.Errorf("Error closing NATS client: %v", err)
			}
		}()

		natsPublisher := infrastructure.NewNATSEventPublisher(natsClient, infrastructure.NewEventSubjectMapper(), metrics)
		if err := natsPublisher.EnsureDomainEventStream(natsClient); err != nil {
			return fmt.Errorf("failed to create domain event stream: %w", err)
		}
		publisher = natsPublisher
		log.Info("NATS event publication enabled")
	} else {
		log.Warn("NATS_SERVERS not set, domain events will not be published")
	}

	// Initialize webhook event cache
	var webhookCache interfaces.WebhookEventCache
	if cfg.RedisURL != "" {
		log.Info("Connecting to Redis...")
		redisClient, err := infrastructure.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer func(client *redis.Client) {
			if err := client.Close(); err != nil {
				log.Errorf("Error closing Redis client: %v", err)
			}
		}(redisClient)
		webhookCache = infrastructure.NewRedisWebhookEventCache(redisClient)
		log.Info("Redis webhook event cache enabled")
	}

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, func() interfaces.TransactionalEventPublisher {
		return infrastructure.NewInstrumentedTransactionalPublisher(publisher, metrics)
	})

	// Initialize application services
	log.Info("Initializing services...")
	fees := cfg.FeeSchedule()
	payoutProcessor := processor.NewClient(cfg.ProcessorBaseURL, cfg.ProcessorAPIKey, cfg.ProcessorTimeout, metrics)

	walletApp := application.NewWalletApp(uowFactory, fees.TokenUSDRate)
	cashoutOrchestrator := application.NewCashoutOrchestrator(uowFactory, payoutProcessor, fees)
	destinationApp := application.NewDestinationAccountApp(uowFactory, payoutProcessor, fees.TokenUSDRate)
	webhookApp := application.NewWebhookApp(
		uowFactory,
		processor.NewSignatureVerifier(cfg.ProcessorWebhookSecret, cfg.WebhookTolerance),
		processor.DecodeEvent,
		webhookCache,
		metrics,
		fees.TokenUSDRate,
	)
	rewardHandler := application.NewRewardRequestHandler(walletApp, services.NewRewardCalculator(cfg.RewardSchedule()))
	log.Info("Services initialized successfully")

	if natsClient != nil {
		if err := infrastructure.SubscribeRewardRequests(natsClient, rewardHandler, metrics); err != nil {
			return fmt.Errorf("failed to subscribe to reward requests: %w", err)
		}
		log.Info("Subscribed to reward requests")
	}

	// Start background workers
	recoveryWorker := application.NewCashoutRecoveryWorker(cashoutOrchestrator, cfg.CashoutRecoveryInterval, cfg.CashoutStaleAfter)
	stopRecovery := recoveryWorker.Start(ctx)
	defer stopRecovery()

	// Start servers
	handler := api.NewRouter(
		api.NewHandler(walletApp, cashoutOrchestrator, destinationApp, webhookApp),
		api.RouterOptions{
			JWTSecret:          cfg.JWTSecret,
			InternalAPIKey:     cfg.InternalAPIKey,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			ServiceName:        cfg.OTelServiceName,
		},
	)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	var eventBus connectionChecker
	if natsClient != nil {
		eventBus = natsClient
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		watchHealth(gctx, healthServer, eventBus, healthCheckInterval)
		return nil
	})

	g.Go(func() error {
		log.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
		}
		log.Infof("gRPC health server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down servers...")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcServer.GracefulStop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info("Shutdown completed")
	return err
}
