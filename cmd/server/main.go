package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/auth"
	"storefront/internal/broker"
	"storefront/internal/notify"
	"storefront/internal/realtime"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"
	"storefront/web"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer(cfg.Observ.TracingEnabled, cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := store.Open(connectCtx, cfg.Store)
	connectCancel()
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Store.Driver, err)
	}
	defer db.Close()
	logger.Info("Store connected", zap.String("driver", cfg.Store.Driver))

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

	var eventPublisher service.EventPublisher = broker.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicShop)
		defer producer.Close()
		eventPublisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicShop))
	} else {
		logger.Warn("Kafka disabled, domain events are dropped and receipts are not sent")
	}

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	hub := realtime.NewHub()
	go hub.Run(hubCtx)

	tokens := auth.NewTokenService(cfg.Session.Secret, time.Duration(cfg.Session.TTLSeconds)*time.Second)

	cartService := service.NewCartService(db, eventPublisher)
	purchaseService := service.NewPurchaseService(db, eventPublisher)
	productService := service.NewProductService(db)
	chatService := service.NewChatService(db, hub, eventPublisher)
	sessionService := service.NewSessionService(db, redisClient, tokens, cartService, cfg.Session.AdminEmails)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var receiptWorker *worker.ReceiptWorker
	if cfg.Kafka.Enabled {
		var mailer notify.Mailer = notify.NewLogMailer()
		if cfg.Mail.SendGridAPIKey != "" {
			mailer = notify.NewSendGridMailer(cfg.Mail.SendGridAPIKey, cfg.Mail.From)
		}

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicShop, cfg.Kafka.ConsumerGroup)
		receiptWorker = worker.NewReceiptWorker(consumer, mailer)
		go func() {
			if err := receiptWorker.Start(workerCtx); err != nil {
				logger.Error("Receipt worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	templates, err := web.Templates()
	if err != nil {
		log.Fatalf("Failed to parse templates: %v", err)
	}

	router := gin.New()
	router.SetHTMLTemplate(templates)

	handler := api.NewHandler(api.HandlerConfig{
		Products:  productService,
		Carts:     cartService,
		Purchases: purchaseService,
		Sessions:  sessionService,
		Chat:      chatService,
		Hub:       hub,
		Checks: []api.ReadinessCheck{
			{Name: "store", Ping: db.Ping},
			{Name: "redis", Ping: redisClient.Ping},
		},
		SecureCookies: cfg.Server.Env != "development",
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	hubCancel()
	workerCancel()
	if receiptWorker != nil {
		if err := receiptWorker.Stop(); err != nil {
			logger.Error("Failed to stop receipt worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
