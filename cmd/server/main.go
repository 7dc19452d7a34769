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

	"payment-service/config"
	"payment-service/internal/api"
	"payment-service/internal/broker"
	"payment-service/internal/gateway"
	"payment-service/internal/redisclient"
	"payment-service/internal/service"
	"payment-service/internal/store"
	"payment-service/internal/util"
	"payment-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting payment service")

	tp, err := util.InitTracer("payment-service", cfg.Observ.JaegerEndpoint)
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

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayment)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	gatewayClient := gateway.NewClient(
		cfg.Gateway.APIURL,
		cfg.Gateway.PublicKey,
		cfg.Gateway.PrivateKey,
		cfg.Gateway.Timeout,
	)

	signatureService := service.NewSignatureService(cfg.Payment.IntegritySecret)
	tokenService := service.NewTokenService(cfg.Payment.PaymentTokenSecret, cfg.Payment.SessionTTL)

	paymentService := service.NewPaymentService(
		db,
		gatewayClient,
		redisClient,
		signatureService,
		tokenService,
		eventPublisher,
		service.Options{
			Currency:                cfg.Payment.Currency,
			PublicKey:               cfg.Gateway.PublicKey,
			RedirectURL:             cfg.Payment.RedirectURL,
			SessionTTL:              cfg.Payment.SessionTTL,
			AcceptanceTokenCacheTTL: cfg.Gateway.AcceptanceTokenCacheTTL,
		},
	)

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	expirySweeper := worker.NewExpirySweeper(db, paymentService, cfg.Sweeps.ExpiryInterval)
	go expirySweeper.Start(sweepCtx)

	statusSweeper := worker.NewStatusSweeper(db, paymentService, gatewayClient, cfg.Sweeps.StatusInterval)
	go statusSweeper.Start(sweepCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(paymentService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	sweepCancel()

	log.Println("Server exited")
}
