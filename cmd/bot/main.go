// Package main is the entry point of the mogakko attendance bot.
//
// The bot watches one voice channel on one Discord guild. Presence inside
// the nightly study window becomes durable attendance sessions in
// PostgreSQL, a periodic sweep reconciles the ledger against the live
// channel roster, and chat commands serve the leaderboard and per-member
// attendance calendars.
//
// The architecture follows Clean Architecture and DDD:
// - Domain: attendance rules without external dependencies
// - Application: presence handling and read queries (CQRS)
// - Infrastructure: PostgreSQL, Redis, Discord REST + gateway, scheduler
// - Interface: chat command router, HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mogakko-hub/mogakko-bot/config"
	"github.com/mogakko-hub/mogakko-bot/internal/application/presence"
	"github.com/mogakko-hub/mogakko-bot/internal/application/query"
	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
	"github.com/mogakko-hub/mogakko-bot/internal/infrastructure/external/discord"
	"github.com/mogakko-hub/mogakko-bot/internal/infrastructure/persistence/postgres"
	"github.com/mogakko-hub/mogakko-bot/internal/infrastructure/persistence/redis"
	"github.com/mogakko-hub/mogakko-bot/internal/infrastructure/scheduler"
	"github.com/mogakko-hub/mogakko-bot/internal/infrastructure/scheduler/jobs"
	"github.com/mogakko-hub/mogakko-bot/internal/infrastructure/service"
	httpserver "github.com/mogakko-hub/mogakko-bot/internal/interface/http"
	"github.com/mogakko-hub/mogakko-bot/internal/interface/http/handlers"
	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
	"github.com/mogakko-hub/mogakko-bot/pkg/retry"
	"github.com/mogakko-hub/mogakko-bot/pkg/timeutil"

	discordiface "github.com/mogakko-hub/mogakko-bot/internal/interface/discord"
	cmdhandler "github.com/mogakko-hub/mogakko-bot/internal/interface/discord/handler"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting mogakko bot",
		logger.String("env", string(cfg.App.Environment)),
		logger.Bool("debug", cfg.App.Debug),
		logger.String("version", cfg.App.Version),
	)

	window := attendance.ActiveWindow{
		OpenHour:  cfg.Attendance.WindowOpenHour,
		CloseHour: cfg.Attendance.WindowCloseHour,
		Location:  timeutil.SeoulTZ,
	}
	if err := window.Validate(); err != nil {
		return fmt.Errorf("invalid attendance window: %w", err)
	}
	log.Info("attendance window configured",
		logger.Int("open_hour", window.OpenHour),
		logger.Int("close_hour", window.CloseHour),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")

	// The database may come up after the bot does, so the first connection
	// is retried with backoff.
	dbConn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return nil, retry.Retryable(err)
		}
		if err := conn.Ping(ctx); err != nil {
			conn.Close()
			return nil, retry.Retryable(err)
		}
		return conn, nil
	},
		retry.WithMaxAttempts(5),
		retry.WithInitialDelay(time.Second),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("database connection failed, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("migrations completed")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var leaderboardCache *redis.LeaderboardCache
	var redisCache *redis.Cache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			leaderboardCache = redis.NewLeaderboardCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	sessionRepo := postgres.NewSessionRepository(dbConn, window)
	leaderboardRepo := postgres.NewLeaderboardRepository(dbConn, window)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. DISCORD CLIENT AND GATEWAY
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing Discord client...")

	rlConfig := discord.DefaultRateLimiterConfig()
	rlConfig.RequestsPerSecond = float64(cfg.Discord.RateLimit)
	rlConfig.BurstSize = cfg.Discord.RateLimitBurst

	clientConfig := discord.DefaultClientConfig(cfg.Discord.Token)
	clientConfig.Timeout = cfg.Discord.RequestTimeout
	clientConfig.RetryAttempts = cfg.Discord.MaxRetries
	clientConfig.RetryDelay = cfg.Discord.RetryBaseDelay
	clientConfig.RateLimiter = discord.NewRateLimiter(rlConfig)
	clientConfig.Logger = log
	clientConfig.Debug = cfg.App.Debug

	discordClient, err := discord.NewClient(clientConfig)
	if err != nil {
		return fmt.Errorf("failed to create Discord client: %w", err)
	}

	// A misconfigured tracked channel would silently produce an empty ledger,
	// so resolve it up front and refuse to start on anything but voice.
	trackedChannel, err := discordClient.GetChannel(ctx, cfg.Discord.TrackedChannelID)
	if err != nil {
		return fmt.Errorf("failed to resolve tracked channel %s: %w", cfg.Discord.TrackedChannelID, err)
	}
	if !trackedChannel.IsVoice() {
		return fmt.Errorf("tracked channel %s (%q) is not a voice channel", trackedChannel.ID, trackedChannel.Name)
	}
	log.Info("tracked channel resolved",
		logger.String("channel_id", trackedChannel.ID),
		logger.String("channel_name", trackedChannel.Name),
	)

	gatewayConfig := discord.DefaultGatewayConfig(cfg.Discord.Token, cfg.Discord.GuildID)
	gatewayConfig.ReconnectDelay = cfg.Discord.ReconnectDelay
	gatewayConfig.MaxReconnectDelay = cfg.Discord.MaxReconnectDelay
	gatewayConfig.Logger = log

	gateway, err := discord.NewGateway(gatewayConfig, discordClient)
	if err != nil {
		return fmt.Errorf("failed to create Discord gateway: %w", err)
	}

	roster := discord.NewChannelRoster(gateway, cfg.Discord.TrackedChannelID, window, log)
	notifier := service.NewDiscordNotifier(discordClient, gateway, cfg.Discord.AnnounceChannelID, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	var aggregateCache query.AggregateCache
	var invalidator jobs.CacheInvalidator
	if leaderboardCache != nil {
		aggregateCache = leaderboardCache
		invalidator = leaderboardCache
	}

	leaderboardQuery := query.NewGetLeaderboardHandler(leaderboardRepo, aggregateCache, log)
	statisticsQuery := query.NewGetStatisticsHandler(leaderboardRepo, aggregateCache, log)

	presenceConfig := presence.Config{
		Ledger:      sessionRepo,
		Window:      window,
		Notifier:    notifier,
		Display:     notifier,
		HeadCounter: roster,
		Logger:      log,
	}
	if leaderboardCache != nil {
		presenceConfig.Invalidator = leaderboardCache
	}

	presenceHandler, err := presence.NewHandler(presenceConfig)
	if err != nil {
		return fmt.Errorf("failed to create presence handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. SCHEDULER AND JOBS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing scheduler...")

	schedConfig := scheduler.DefaultSchedulerConfig()
	schedConfig.Logger = log
	schedConfig.Timezone = timeutil.SeoulTZ
	sched := scheduler.NewScheduler(schedConfig)

	reconcileConfig := jobs.DefaultReconcileConfig()
	reconcileConfig.Timeout = cfg.Scheduler.JobTimeout
	reconcileJob := jobs.NewReconcileJob(sessionRepo, roster, invalidator, log, reconcileConfig)

	boundaryConfig := jobs.DefaultBoundaryConfig()
	boundaryConfig.Timeout = cfg.Scheduler.JobTimeout
	openJob := jobs.NewWindowOpenJob(sessionRepo, roster, notifier, log, boundaryConfig)
	closeJob := jobs.NewWindowCloseJob(sessionRepo, notifier, invalidator, log, boundaryConfig)

	if cfg.Scheduler.Enabled {
		if err := sched.Register(reconcileJob, scheduler.NewIntervalSchedule(cfg.Scheduler.ReconcileInterval)); err != nil {
			return fmt.Errorf("failed to register reconcile job: %w", err)
		}

		openCron := fmt.Sprintf("0 %d * * *", window.OpenHour)
		if err := sched.Register(openJob, scheduler.MustParseCronExpression(openCron)); err != nil {
			return fmt.Errorf("failed to register window open job: %w", err)
		}

		closeCron := fmt.Sprintf("0 %d * * *", window.CloseHour)
		if err := sched.Register(closeJob, scheduler.MustParseCronExpression(closeCron)); err != nil {
			return fmt.Errorf("failed to register window close job: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GATEWAY EVENT WIRING
	// ─────────────────────────────────────────────────────────────────────────
	trackedChannelID := cfg.Discord.TrackedChannelID

	gateway.OnVoiceTransition(func(t discord.VoiceTransition) {
		participantID, err := strconv.ParseInt(t.UserID, 10, 64)
		if err != nil {
			log.Warn("malformed user id in voice transition", logger.String("user_id", t.UserID))
			return
		}
		pid := attendance.ParticipantID(participantID)

		if t.FromChannelID == trackedChannelID {
			if err := presenceHandler.HandleLeave(ctx, pid, t.At); err != nil {
				log.Error("failed to handle leave", logger.ParticipantID(participantID), logger.Err(err))
			}
		}
		if t.ToChannelID == trackedChannelID {
			if err := presenceHandler.HandleEnter(ctx, pid, t.At); err != nil {
				log.Error("failed to handle enter", logger.ParticipantID(participantID), logger.Err(err))
			}
		}
	})

	commandRouter := discordiface.NewRouter(
		discordClient,
		cmdhandler.NewLeaderboardHandler(leaderboardQuery, log),
		cmdhandler.NewStatisticsHandler(statisticsQuery, log),
		discordiface.RouterConfig{
			CommandChannelID: cfg.Discord.CommandChannelID,
			Logger:           log,
		},
	)
	gateway.OnMessage(commandRouter.HandleMessage)

	// The startup sweep waits for the first GUILD_CREATE so the voice cache
	// is seeded. Running it against an empty cache would close every open
	// session still standing after a crash, present members included.
	var startupSweep sync.Once
	gateway.OnReady(func() {
		if !cfg.Scheduler.Enabled {
			return
		}
		startupSweep.Do(func() {
			log.Info("gateway ready, running startup reconciliation")
			if _, err := sched.RunNow(ctx, reconcileJob.Name()); err != nil {
				log.Error("startup reconciliation failed", logger.Err(err))
			}
		})
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 11. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("postgres", handlers.NewDatabaseCheck(dbConn))
	if redisCache != nil {
		healthChecker.AddCheck("redis", handlers.NewCacheCheck(redisCache))
	}
	healthChecker.AddCheck("gateway", handlers.NewGatewayCheck(gateway))

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	httpServer := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		GetLeaderboardHandler: leaderboardQuery,
		GetStatisticsHandler:  statisticsQuery,
		Logger:                log,
		HealthChecker:         healthChecker,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 12. START SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting services...")

	errCh := make(chan error, 3)

	if cfg.HTTP.Enabled {
		go func() {
			if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	go func() {
		if err := gateway.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("gateway error: %w", err)
		}
	}()

	log.Info("mogakko bot is running",
		logger.String("guild_id", cfg.Discord.GuildID),
		logger.String("tracked_channel_id", trackedChannelID),
		logger.String("http_address", httpServer.Address()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 13. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...",
		logger.Duration("timeout", cfg.App.ShutdownTimeout),
	)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	log.Info("closing gateway...")
	gateway.Close()

	if cfg.Scheduler.Enabled {
		log.Info("stopping scheduler...")
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler", logger.Err(err))
			shutdownErr = err
		}
	}

	if cfg.HTTP.Enabled {
		log.Info("stopping HTTP server...")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop HTTP server gracefully", logger.Err(err))
			shutdownErr = err
		}
	}

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
	} else {
		log.Info("shutdown completed successfully")
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger builds the process logger from configuration.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts)
}
