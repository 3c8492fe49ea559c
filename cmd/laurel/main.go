package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/laurel/config"
	"github.com/Ramsey-B/laurel/internal/handlers"
	"github.com/Ramsey-B/laurel/internal/server"
	"github.com/Ramsey-B/laurel/pkg/clock"
	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/execution"
	"github.com/Ramsey-B/laurel/pkg/funnel"
	"github.com/Ramsey-B/laurel/pkg/health"
	"github.com/Ramsey-B/laurel/pkg/kafka"
	"github.com/Ramsey-B/laurel/pkg/monitoring"
	"github.com/Ramsey-B/laurel/pkg/notify"
	"github.com/Ramsey-B/laurel/pkg/redis"
	"github.com/Ramsey-B/laurel/pkg/renewal"
	"github.com/Ramsey-B/laurel/pkg/repositories"
	"github.com/Ramsey-B/laurel/pkg/scheduler"
	"github.com/Ramsey-B/laurel/pkg/staleness"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	if cfg.OTLPEnabled {
		shutdownTracing, err := tracing.Setup(ctx, cfg.AppName, tracing.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Insecure: cfg.OTLPInsecure,
		})
		if err != nil {
			fatal(logger, err, "Failed to set up tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.WithError(err).Warn("Failed to flush traces on shutdown")
			}
		}()
	}

	db, err := database.Connect(ctx, logger, database.ConnectConfig{
		URL:             cfg.DatabaseURL(),
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	})
	if err != nil {
		fatal(logger, err, "Failed to connect to postgres")
	}
	defer db.Close()

	driver, err := migratepg.WithInstance(db.DB.DB, &migratepg.Config{})
	if err != nil {
		fatal(logger, err, "Failed to create migration driver")
	}
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             cfg.DatabaseMigrationVersion,
	})
	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		fatal(logger, err, "Failed to apply migrations")
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		fatal(logger, err, "Failed to connect to redis")
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(kafka.Config{
		Brokers:           cfg.KafkaBrokerList(),
		NotificationTopic: cfg.KafkaNotificationTopic,
		FunnelTopic:       cfg.KafkaFunnelTopic,
	}, logger)
	defer producer.Close()

	requestRepo := repositories.NewRequestRepository(db, logger)
	trackingRepo := repositories.NewExecutionTrackingRepository(db, logger)
	alertRepo := repositories.NewMonitoringAlertRepository(db, logger)
	renewalRepo := repositories.NewEngagementRenewalRepository(db, logger)
	prospectRepo := repositories.NewProspectRepository(db, logger)
	eventRepo := repositories.NewFunnelEventRepository(db, logger)
	userRepo := repositories.NewUserRepository(db, logger)

	clk := clock.System{}
	notifier := notify.NewKafkaNotifier(producer, logger)
	emitter := funnel.NewEventEmitter(eventRepo, producer, clk, logger)

	monitoringEngine := monitoring.NewEngine(requestRepo, alertRepo, userRepo, notifier, clk, logger)
	renewalTracker := renewal.NewTracker(renewalRepo, requestRepo, userRepo, notifier, clk, cfg.RenewalTermYears, logger)
	stalenessDetector := staleness.NewDetector(prospectRepo, requestRepo, emitter, clk, staleness.Thresholds{
		FollowupDays:      cfg.ProspectFollowupDays,
		StaleDays:         cfg.ProspectStaleDays,
		ProposalStaleDays: cfg.ProposalStaleDays,
	}, logger)
	executionTracker := execution.NewTracker(requestRepo, trackingRepo, userRepo, renewalTracker, notifier, emitter, clk, logger)

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		locker := redis.NewLocker(redisClient, cfg.AppName)
		sched = scheduler.NewScheduler(locker, scheduler.Config{LockTTL: cfg.SweepLockTTL}, logger)
		sched.Register("monitoring_days", cfg.MonitoringSweepInterval, func(ctx context.Context) error {
			_, err := monitoringEngine.UpdateMonitoringDays(ctx)
			return err
		})
		sched.Register("monitoring_alerts", cfg.MonitoringSweepInterval, func(ctx context.Context) error {
			_, err := monitoringEngine.SendIntervalAlerts(ctx)
			return err
		})
		sched.Register("renewal_alerts", cfg.RenewalSweepInterval, func(ctx context.Context) error {
			_, err := renewalTracker.CheckRenewalAlerts(ctx)
			return err
		})
		sched.Register("stale_detection", cfg.StalenessSweepInterval, func(ctx context.Context) error {
			_, err := stalenessDetector.RunDetectionJob(ctx)
			return err
		})
		if err := sched.Start(ctx); err != nil {
			fatal(logger, err, "Failed to start scheduler")
		}
	}

	checker := health.NewChecker(db, redisClient)
	srv := server.New(cfg, logger, checker,
		handlers.NewExecutionHandler(executionTracker),
		handlers.NewMonitoringHandler(alertRepo),
		handlers.NewRenewalHandler(renewalTracker, renewalRepo),
		handlers.NewStalenessHandler(stalenessDetector, eventRepo),
		handlers.NewSweepHandler(monitoringEngine, renewalTracker, stalenessDetector),
	)

	go func() {
		if err := srv.Start(); err != nil {
			fatal(logger, err, "HTTP server failed")
		}
	}()
	checker.SetReady(true)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Scheduler shutdown failed")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown failed")
	}
	logger.Info("Shutdown complete")
}

func fatal(logger ectologger.Logger, err error, msg string) {
	logger.WithError(err).Error(msg)
	os.Exit(1)
}

func newLogger(cfg *config.Config) ectologger.Logger {
	var zapCfg zap.Config
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	zapLogger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}
