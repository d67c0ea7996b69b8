package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/qr-attend-api/api/swagger"
	"github.com/noah-isme/qr-attend-api/internal/clock"
	"github.com/noah-isme/qr-attend-api/internal/handler"
	"github.com/noah-isme/qr-attend-api/internal/middleware"
	"github.com/noah-isme/qr-attend-api/internal/repository"
	"github.com/noah-isme/qr-attend-api/internal/service"
	"github.com/noah-isme/qr-attend-api/internal/token"
	"github.com/noah-isme/qr-attend-api/pkg/cache"
	"github.com/noah-isme/qr-attend-api/pkg/config"
	"github.com/noah-isme/qr-attend-api/pkg/database"
	"github.com/noah-isme/qr-attend-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/qr-attend-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/qr-attend-api/pkg/middleware/requestid"
)

// @title QR Attend API
// @version 0.1.0
// @description QR-code attendance session engine
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()
	clk := clock.System{}
	codec := token.NewCodec(cfg.Tokens.Secret, cfg.Tokens.VerifySignature)

	sessionRepo := repository.NewSessionRepository(db)
	userRepo := repository.NewUserRepository(db)
	bindings := repository.NewRedisBindingStore(redisClient)

	metricsSvc := service.NewMetricsService()

	var sinks []service.EventSink
	sinks = append(sinks, service.NewLogSink(logr))
	if cfg.Notifier.Channel != "" {
		sinks = append(sinks, service.NewRedisSink(redisClient, cfg.Notifier.Channel))
	}
	// Constructed unconditionally; an unstarted queue drops events, so a
	// disabled notifier costs nothing on the scan path.
	notifier := service.NewNotifierService(sinks, logr, service.NotifierConfig{
		Workers:    cfg.Notifier.Workers,
		BufferSize: cfg.Notifier.BufferSize,
	})
	if cfg.Notifier.Enabled {
		notifier.Start(context.Background())
		defer notifier.Stop()
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	sessionSvc := service.NewSessionService(sessionRepo, notifier, metricsSvc, clk, validate, logr, service.SessionServiceConfig{
		MaxDuration: cfg.Sessions.MaxDuration,
	})
	scanSvc := service.NewScanService(sessionRepo, bindings, codec, notifier, metricsSvc, clk, logr, service.ScanServiceConfig{
		BindingTTLCap: cfg.Sessions.BindingTTLCap,
		RetryBudget:   cfg.Sessions.RetryBudget,
	})
	aggregateSvc := service.NewAggregateService(sessionRepo, logr)
	exportSvc := service.NewExportService(sessionRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc, aggregateSvc, clk)
	scanHandler := handler.NewScanHandler(scanSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/login", authHandler.Login)

		// Scan endpoints are open to devices; they authenticate through
		// the signed QR payloads themselves.
		api.POST("/scan/bind", scanHandler.Bind)
		api.POST("/scan", scanHandler.Scan)
		api.DELETE("/scan/binding", scanHandler.Reset)

		authed := api.Group("")
		authed.Use(middleware.JWT(authSvc))
		{
			authed.GET("/auth/me", authHandler.Me)
			authed.POST("/sessions", sessionHandler.Create)
			authed.GET("/sessions", sessionHandler.List)
			authed.GET("/sessions/:id", sessionHandler.Get)
			authed.POST("/sessions/:id/end", sessionHandler.End)
			authed.GET("/sessions/:id/aggregate", sessionHandler.Aggregate)
			authed.GET("/sessions/:id/export", exportHandler.Download)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
