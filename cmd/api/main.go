package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "taxaudit/api/swagger" // swagger docs
	"taxaudit/internal/config"
	"taxaudit/internal/database"
	"taxaudit/internal/events"
	"taxaudit/internal/handler"
	"taxaudit/internal/logger"
	"taxaudit/internal/metrics"
	"taxaudit/internal/middleware"
	"taxaudit/internal/repository"
	"taxaudit/internal/service"
	"taxaudit/internal/websocket"
	"taxaudit/internal/withholding"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Withholding Audit API
// @version         1.0
// @description     Reconciles IR, PIS, COFINS, CSLL and ISS withheld on service payments against the rate table.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}
	log := logger.WithComponent("main")

	middleware.SetJWTSecret(cfg.JWT.Secret)
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("Connected to database")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)

	publishers := events.Multi{wsHub}
	if cfg.Redis.Addr != "" {
		redisPub, err := events.NewRedisPublisher(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, audit events stay local")
		} else {
			defer redisPub.Close()
			publishers = append(publishers, redisPub)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	auditMetrics := metrics.NewAuditMetrics(registry)

	// Set up dependencies (Repository -> Service -> Handler)
	partnerRepo := repository.NewPartnerRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	rateService := service.NewRateService(repository.NewWithholdingRateRepository(db), auditRepo, txManager)
	if err := seedRates(ctx, rateService, cfg.Audit.RateTableFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed withholding rates")
	}

	userService := service.NewUserService(repository.NewUserRepository(db), auditRepo, cfg.JWT.TokenTTL)
	if cfg.Admin.Email != "" {
		created, err := userService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create admin account")
		}
		if created {
			log.Info().Str("email", cfg.Admin.Email).Msg("Created admin account")
		}
	}

	partnerService := service.NewPartnerService(partnerRepo, auditRepo)
	paymentService := service.NewPaymentService(paymentRepo, partnerRepo, auditRepo, txManager)
	auditService := service.NewAuditService(repository.NewAuditRunRepository(db), auditRepo, partnerRepo, paymentRepo,
		rateService, publishers, auditMetrics,
		service.AuditSettings{Workers: cfg.Audit.Workers, Tolerance: cfg.Audit.Tolerance})

	// Set up Gin Router
	router := gin.New()
	router.Use(logger.GinLogger(), gin.Recovery())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// API Routing
	handler.NewUserHandler(userService).RegisterRoutes(router.Group(""))
	handler.NewPartnerHandler(partnerService).RegisterRoutes(router.Group(""))
	handler.NewPaymentHandler(paymentService, auditService).RegisterRoutes(router.Group(""))
	handler.NewRateHandler(rateService).RegisterRoutes(router.Group(""))
	handler.NewAuditHandler(auditService).RegisterRoutes(router.Group(""))
	handler.NewStatisticsHandler(service.NewStatisticsService(repository.NewStatisticsRepository(db))).RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// seedRates fills an empty rate table from path, or from the reference
// table when path is empty. A stored table is never touched.
func seedRates(ctx context.Context, rates service.RateService, path string) error {
	_, total, err := rates.GetRates(ctx, "", "", 1, 1)
	if err != nil {
		return err
	}
	if total > 0 {
		return nil
	}

	entries := withholding.DefaultRateEntries()
	if path != "" {
		entries, err = config.LoadRateEntries(path)
		if err != nil {
			return err
		}
	}

	res, err := rates.SeedRates(ctx, entries, false, "system")
	if err != nil {
		return err
	}
	log := logger.WithComponent("main")
	log.Info().Int("rows", res.Inserted).Msg("Seeded withholding rates")
	return nil
}
