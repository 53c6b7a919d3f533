package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidleathers/vintage-vault-backend/internal/api/rest"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/clock"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/cache"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/config"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/database"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/events"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/repository"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/telemetry"
	"github.com/davidleathers/vintage-vault-backend/internal/metrics"
	"github.com/davidleathers/vintage-vault-backend/internal/service/bidding"
	"github.com/davidleathers/vintage-vault-backend/internal/service/expertise"
	"github.com/davidleathers/vintage-vault-backend/internal/service/notification"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel).With(
		"service", cfg.Telemetry.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zlog, err := telemetry.NewZapLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return fmt.Errorf("create zap logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()

	provider, err := telemetry.Initialize(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	if cfg.Database.MigrateOnStart {
		if err := migrateUp(cfg.Database.URL, zlog); err != nil {
			return err
		}
	}

	db, err := database.NewConnectionPool(ctx, cfg.Database, zlog)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	repos := repository.NewRepositories(db.Pool())

	hub := events.NewHub(zlog, events.DefaultHubConfig())
	defer hub.Close()

	notifCfg, err := notificationConfig(cfg.Notification)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var (
		push       notification.PushGateway = hub
		mailer     notification.Mailer
		rdb        *redis.Client
		outbox     *events.MailOutbox
		bidLimiter rest.Limiter
	)
	if cfg.Redis.URL != "" {
		rdb, err = events.NewRedisClient(ctx, cfg.Redis, zlog)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()

		push = events.NewRedisPublisher(rdb, cfg.Redis.PushChannel)
		relay := events.NewRelay(rdb, cfg.Redis.PushChannel, hub, zlog)
		g.Go(func() error { return relay.Run(gctx, nil) })

		outbox = events.NewMailOutbox(rdb, cfg.Redis.MailQueue, cfg.Server.BaseURL)
		mailer = outbox
		bidLimiter = cache.NewRateLimiter(rdb, zlog)
	} else {
		logger.Warn("redis not configured: push is local to this instance and email is disabled")
		notifCfg.EmailEnabled = false
	}

	domainMetrics, err := metrics.NewRegistry("vintage-vault")
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	dispatcher := notification.NewDispatcher(repos.Notifications, push, mailer, repos.Users, domainMetrics, zlog, notifCfg)
	domainMetrics.ObserveQueueDepth(func() int64 {
		_, _, queued := dispatcher.Stats()
		return int64(queued)
	})
	dispatcher.Start()
	defer dispatcher.Stop()

	biddingCfg, err := biddingConfig(cfg.Auction)
	if err != nil {
		return err
	}
	allocCfg, err := expertiseConfig(cfg.Expertise)
	if err != nil {
		return err
	}
	rng, err := expertise.NewSeededRand()
	if err != nil {
		return err
	}

	clk := clock.RealClock{}
	biddingSvc := bidding.NewService(repos.Items, repos.Bids, repos.Requests, dispatcher, domainMetrics, clk, zlog, biddingCfg)
	allocator := expertise.NewAllocator(repos.Users, repos.Items, repos.Requests, repos.Assignments, repos.Profiles,
		dispatcher, domainMetrics, rng, clk, zlog, allocCfg)

	finalizer := bidding.NewFinalizer(biddingSvc, cfg.Auction.SweepInterval, zlog, bidding.Hook{
		Name: "cancel_expired_requests",
		Run: func(ctx context.Context) error {
			_, err := allocator.CancelExpired(ctx)
			return err
		},
	})

	promRegistry, err := newPrometheusRegistry(db, hub, dispatcher)
	if err != nil {
		return fmt.Errorf("register collectors: %w", err)
	}

	handler, err := rest.NewRouter(&rest.Dependencies{
		Bidding:         biddingSvc,
		Allocator:       allocator,
		Notifications:   repos.Notifications,
		Hub:             hub,
		HealthCheckers:  healthCheckers(db, zlog, rdb, outbox),
		Registry:        promRegistry,
		Version:         cfg.Version,
		JWTSecret:       cfg.Security.JWTSecret,
		WebhookSecret:   cfg.Security.PaymentWebhookSecret,
		AllowedOrigins:  cfg.Security.AllowedOrigins,
		DefaultCurrency: cfg.Auction.Currency,
		Logger:          logger,
		BidLimiter:      bidLimiter,
		BidRateLimit:    cfg.Security.BidRateLimit,
		BidRateWindow:   cfg.Security.BidRateWindow,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	srv := rest.NewServer(cfg.Server, handler)

	g.Go(func() error { return finalizer.Run(gctx) })
	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	// Requests and sweeps are finished; flush what they published.
	dispatcher.Stop()
	return err
}

func migrateUp(url string, logger *zap.Logger) error {
	m, err := database.NewMigrator(url, logger)
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(0); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
