package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/TriNguyen2808/backend-eventapp/internal/config"
	"github.com/TriNguyen2808/backend-eventapp/internal/issuer"
	"github.com/TriNguyen2808/backend-eventapp/internal/kafka"
	"github.com/TriNguyen2808/backend-eventapp/internal/logger"
	"github.com/TriNguyen2808/backend-eventapp/internal/notification"
	paydb "github.com/TriNguyen2808/backend-eventapp/internal/payment/db"
	"github.com/TriNguyen2808/backend-eventapp/internal/payment/handler"
	payredis "github.com/TriNguyen2808/backend-eventapp/internal/payment/redis"
	"github.com/TriNguyen2808/backend-eventapp/internal/sweeper"
	"github.com/TriNguyen2808/backend-eventapp/internal/tickets/qr"
	"github.com/TriNguyen2808/backend-eventapp/internal/vnpay"
)

// The payment gateway service terminates VNPay callbacks and runs the
// background sweeper. It shares the database with the purchase service but
// owns settlement exclusively.
func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Payment Gateway Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()
	log.Info("DATABASE", "✅ PostgreSQL connection successful")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.AllTopics()); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled, settlement events will not be published")
	}

	adapter := vnpay.NewAdapter(vnpay.Config{
		TmnCode:    cfg.VNPay.TmnCode,
		HashSecret: cfg.VNPay.HashSecret,
		PaymentURL: cfg.VNPay.PaymentURL,
		ReturnURL:  cfg.VNPay.ReturnURL,
	})
	qrGen := qr.NewQRGenerator(cfg.VNPay.HashSecret)
	notifier := notification.NewSMTPNotifier(cfg.Email, log)
	issuerService := issuer.NewService(bunDB, qrGen, producer, notifier, log)
	sessionDB := paydb.NewDB(bunDB)
	lock := payredis.NewRedis(redisClient)

	vnpayHandler := handler.NewVNPayHandler(adapter, issuerService, sessionDB, lock, log)

	sweep := sweeper.New(bunDB, producer, log, cfg.Payment.PendingTimeout, cfg.Payment.SweepInterval)
	go sweep.Run(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/payment")
	{
		api.GET("/vnpay-ipn", vnpayHandler.IPN)
		api.GET("/vnpay-return", vnpayHandler.Return)
	}
	log.Info("ROUTER", "VNPay callback routes registered under /api/payment")

	port := os.Getenv("PAYMENT_GATEWAY_PORT")
	if port == "" {
		port = ":8085"
	}
	server := &http.Server{
		Addr:         port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Payment Gateway Service running on %s", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Payment Gateway Service shutdown complete")
	}
}
