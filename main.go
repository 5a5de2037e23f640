// Package main provides the main entry point for the lead distribution service
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/leadflow/app/handlers"
	"github.com/amirphl/leadflow/app/middleware"
	"github.com/amirphl/leadflow/app/realtime"
	"github.com/amirphl/leadflow/app/router"
	"github.com/amirphl/leadflow/app/scheduler"
	"github.com/amirphl/leadflow/app/services"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/amirphl/leadflow/config"
	"github.com/amirphl/leadflow/logger"
	"github.com/amirphl/leadflow/repository"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	realtime  *realtime.Server
	metrics   *http.Server
	config    *config.ProductionConfig
	logger    *logrus.Logger
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		Dir:        cfg.Logging.Dir,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Caller:     cfg.Logging.Caller,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	log := logger.GetAppLogger()
	log.WithFields(logrus.Fields{
		"version":     cfg.Deployment.Version,
		"commit":      cfg.Deployment.CommitHash,
		"build_time":  cfg.Deployment.BuildTime,
		"environment": cfg.Deployment.Environment,
	}).Info("Starting leadflow application...")

	app, err := initializeApplication(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize application")
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	if app.realtime != nil {
		app.realtime.Start()
	}
	if app.metrics != nil {
		go func() {
			if err := app.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("Shutting down gracefully...")
	app.shutdown()
	log.Info("Server stopped")
}

func (a *Application) shutdown() {
	for _, fn := range a.stopFuncs {
		fn()
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	if a.realtime != nil {
		if err := a.realtime.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Error("Error during realtime shutdown")
		}
	}
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Error("Error during metrics shutdown")
		}
	}
	if err := a.router.Shutdown(); err != nil {
		a.logger.WithError(err).Error("Error during shutdown")
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(logrus.Fields{
		"max_open_conns": cfg.MaxOpenConns,
		"max_idle_conns": cfg.MaxIdleConns,
	}).Info("Database connection established")

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig, password string, log *logrus.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB
	if opt.Password == "" {
		opt.Password = password
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.WithField("db", cfg.RedisDB).Info("Redis connection established")
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis to detect connectivity issues.
// The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, log *logrus.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.WithError(err).Warn("Redis healthcheck failed")
				}
				c()
			}
		}
	}()
	return cancel
}

func newMetricsServer(cfg config.MetricsConfig) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()
	appLog := logger.GetAppLogger()
	auditLog := logger.GetAuditLogger()

	db, err := initializeDatabase(cfg.Database, logger.GetLogger("db"))
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, cfg.Deployment.RedisPassword, appLog)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval, appLog))
	}

	// Repositories
	adminRepo := repository.NewAdminRepository(db)
	userRepo := repository.NewUserRepository(db)
	associateRepo := repository.NewAssociateUserRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	historyRepo := repository.NewCustomerStatusHistoryRepository(db)
	statusRepo := repository.NewMasterStatusRepository(db)
	followUpRepo := repository.NewFollowUpRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	customerLinkRepo := repository.NewCustomerLinkRepository(db)
	associateLinkRepo := repository.NewAssociateLinkRepository(db)
	txManager := repository.NewTxManager(db)

	// Services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
		rc,
		cfg.Cache.RedisPrefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	appLog.WithFields(logrus.Fields{"issuer": cfg.JWT.Issuer, "audience": cfg.JWT.Audience}).Info("Token service initialized")

	hub := realtime.NewHub(logger.GetLogger("realtime"))
	notifier := services.NewNotificationService(hub, logger.GetLogger("notifications"))

	// Flows
	resolver := businessflow.NewPrincipalResolver(userRepo, associateRepo, adminRepo)
	statusFlow := businessflow.NewMasterStatusFlow(statusRepo, rc, cfg.Cache.RedisPrefix, cfg.Leads.StatusCacheTTL, appLog)
	if cfg.Leads.SeedDefaultStatuses {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := statusFlow.EnsureDefaultStatuses(ctx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to seed default statuses: %w", err)
		}
	}

	authFlow := businessflow.NewAuthFlow(adminRepo, userRepo, associateRepo, companyRepo, resolver, tokenService, txManager, auditLog)
	companyFlow := businessflow.NewCompanyFlow(companyRepo, sequenceRepo, txManager, auditLog)
	projectFlow := businessflow.NewProjectFlow(projectRepo, sequenceRepo, txManager)
	leadFlow := businessflow.NewLeadFlow(customerRepo, projectRepo, companyRepo, userRepo, associateRepo, txManager, notifier, appLog)
	assignmentFlow := businessflow.NewLeadAssignmentFlow(customerRepo, companyRepo, userRepo, associateRepo, txManager, notifier, appLog)
	leadStatusFlow := businessflow.NewLeadStatusFlow(customerRepo, historyRepo, statusRepo, statusFlow, resolver, txManager, notifier, appLog)
	activityFlow := businessflow.NewActivityFlow(customerRepo, followUpRepo, noteRepo)
	userAdminFlow := businessflow.NewUserAdminFlow(userRepo, associateRepo, companyRepo, customerRepo, txManager, notifier, auditLog)
	linkFlow := businessflow.NewLinkOnboardingFlow(
		customerLinkRepo,
		associateLinkRepo,
		customerRepo,
		projectRepo,
		companyRepo,
		userRepo,
		associateRepo,
		resolver,
		txManager,
		notifier,
		appLog,
		cfg.Leads.LinkTTL,
		cfg.Leads.LinkCodeLength,
	)

	// Handlers
	v := handlers.NewValidator()
	httpLog := logger.GetLogger("http")
	appRouter := router.NewFiberRouter(cfg, router.Handlers{
		Auth:    handlers.NewAuthHandler(authFlow, v, httpLog),
		Lead:    handlers.NewLeadHandler(leadFlow, assignmentFlow, leadStatusFlow, activityFlow, v, httpLog),
		User:    handlers.NewUserHandler(userAdminFlow, v, httpLog),
		Catalog: handlers.NewCatalogHandler(companyFlow, projectFlow, statusFlow, v, httpLog),
		Link:    handlers.NewLinkHandler(linkFlow, v, httpLog),
	}, middleware.NewAuthMiddleware(tokenService, resolver), httpLog)

	var rtServer *realtime.Server
	if cfg.Realtime.Enabled {
		gateway := realtime.NewGateway(hub, tokenService, resolver, assignmentFlow, realtime.Config{
			WriteWait:      cfg.Realtime.WriteWait,
			PongWait:       cfg.Realtime.PongWait,
			PingPeriod:     cfg.Realtime.PingPeriod,
			MaxMessageSize: cfg.Realtime.MaxMessageSize,
			SendBuffer:     cfg.Realtime.SendBuffer,
			AllowedOrigins: cfg.Realtime.AllowedOrigins,
		}, logger.GetLogger("realtime"))
		rtServer = realtime.NewServer(cfg.Realtime.Addr, hub, gateway, logger.GetLogger("realtime"))
	}

	if cfg.Scheduler.LinkCleanupEnabled {
		sched := scheduler.NewLinkCleanupScheduler(linkFlow, cfg.Scheduler.LinkCleanupInterval, cfg.Scheduler.LinkCleanupTimeout, logger.GetLogger("scheduler"))
		stopFuncs = append(stopFuncs, sched.Start(context.Background()))
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = newMetricsServer(cfg.Metrics)
	}

	return &Application{
		router:    appRouter,
		realtime:  rtServer,
		metrics:   metricsServer,
		config:    cfg,
		logger:    appLog,
		stopFuncs: stopFuncs,
	}, nil
}
