package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wibonela/boma/config"
	"github.com/wibonela/boma/internal/bootstrap"
	"github.com/wibonela/boma/internal/cache"
	"github.com/wibonela/boma/internal/gateway/azampay"
	"github.com/wibonela/boma/internal/kafka"
	"github.com/wibonela/boma/internal/logging"
	"github.com/wibonela/boma/internal/repository"
	"github.com/wibonela/boma/internal/service/booking"
	"github.com/wibonela/boma/internal/service/payment"
	"github.com/wibonela/boma/internal/service/pricing"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Logging, cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	ledgerRepo := repository.NewLedgerRepository(pool)
	propertyRepo := repository.NewPropertyRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool, ledgerRepo)
	paymentRepo := repository.NewPaymentRepository(pool, ledgerRepo)

	engine := pricing.NewEngine(cfg.Booking.PlatformFeePercent, cfg.Booking.DefaultCleaningFee, cfg.Booking.DefaultCurrency)
	gateway := azampay.NewClient(cfg.AzamPay, logger, time.Now)

	bookingSvc := booking.NewService(
		bookingRepo,
		propertyRepo,
		redisCache,
		producer,
		engine,
		cfg.Kafka.BookingTopic,
		time.Duration(cfg.Booking.ExpiryMinutes)*time.Minute,
		time.Duration(cfg.Booking.HoldTTLSeconds)*time.Second,
		logger,
	)
	paymentSvc := payment.NewService(
		paymentRepo,
		bookingRepo,
		gateway,
		producer,
		cfg.Kafka.PaymentTopic,
		logger,
	)

	if err := bootstrap.Run(ctx, cfg, bookingSvc, paymentSvc, logger); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
