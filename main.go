package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"relay-service/internal/config"
	"relay-service/internal/credentials"
	"relay-service/internal/handlers"
	"relay-service/internal/logger"
	"relay-service/internal/middleware"
	"relay-service/internal/observability"
	"relay-service/internal/rabbitmq"
	"relay-service/internal/store"
	"relay-service/internal/telemetry"
)

const serviceName = "relay-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("development")
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Environment)
	logger.Info().Str("environment", cfg.Environment).Msg("starting relay service")

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	creds, err := credentials.NewMap(cfg.TokenA, cfg.TokenB)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid credential configuration")
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), serviceName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown failed")
		}
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange)
	defer publisher.Close()
	logger.Info().Str("mode", rabbitmq.PublisherMode(publisher)).Msg("audit publisher ready")

	emitter := telemetry.NewAuditEmitter(publisher, "relay.audit", serviceName, cfg.Environment)

	convStore := store.New(store.WithTypingStaleAfter(cfg.TypingStaleAfter()))
	relay := handlers.NewRelayHandler(convStore, emitter)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.Logging())

	authMiddleware := middleware.Auth(creds)

	router.POST("/messages", authMiddleware, relay.Send)
	router.GET("/messages", authMiddleware, relay.List)
	router.GET("/messages/poll", authMiddleware, relay.Poll)
	router.DELETE("/messages", authMiddleware, relay.Purge)

	router.POST("/typing", authMiddleware, relay.SetTyping)
	router.GET("/typing", authMiddleware, relay.GetTyping)

	router.POST("/receipts", authMiddleware, relay.SendReadReceipt)
	if cfg.OpenReadStatus {
		router.GET("/receipts/:message_id", relay.GetReadStatus)
	} else {
		router.GET("/receipts/:message_id", authMiddleware, relay.GetReadStatus)
	}

	router.GET("/healthz", relay.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, emitter, cfg.DebugRoutes)

	logger.Info().Str("port", cfg.Port).Msg("relay service listening")
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
