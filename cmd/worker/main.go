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
	"github.com/wibonela/boma/internal/kafka"
	"github.com/wibonela/boma/internal/logging"
	"github.com/wibonela/boma/internal/repository"
	"github.com/wibonela/boma/internal/service/booking"
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
	logger := logging.New(cfg.Logging, cfg.App).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	ledgerRepo := repository.NewLedgerRepository(pool)
	propertyRepo := repository.NewPropertyRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool, ledgerRepo)
	engine := pricing.NewEngine(cfg.Booking.PlatformFeePercent, cfg.Booking.DefaultCleaningFee, cfg.Booking.DefaultCurrency)

	bookingSvc := booking.NewService(
		bookingRepo,
		propertyRepo,
		nil,
		producer,
		engine,
		cfg.Kafka.BookingTopic,
		time.Duration(cfg.Booking.ExpiryMinutes)*time.Minute,
		time.Duration(cfg.Booking.HoldTTLSeconds)*time.Second,
		logger,
	)

	// The payment topic doubles as a reconciliation audit trail. The worker
	// tails it so every settled or failed payment lands in the service log
	// even when the HTTP pod that handled the webhook has been recycled.
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.PaymentTopic, logger)
	defer consumer.Close()

	go func() {
		if err := consumer.ConsumePaymentEvents(ctx, func(ctx context.Context, event kafka.PaymentEvent) error {
			logger.Info().
				Str("event", event.Type).
				Str("payment_id", event.PaymentID).
				Str("booking_id", event.BookingID).
				Str("status", event.Status).
				Int64("amount", event.Amount).
				Msg("payment event")
			return nil
		}); err != nil {
			logger.Warn().Err(err).Msg("consumer stopped")
		}
	}()

	sweepTicker := time.NewTicker(time.Duration(cfg.Worker.SweepIntervalMinutes) * time.Minute)
	defer sweepTicker.Stop()

	logger.Info().Int("sweep_interval_minutes", cfg.Worker.SweepIntervalMinutes).Msg("worker started")

	for {
		select {
		case <-sweepTicker.C:
			expired, err := bookingSvc.ExpireOverdueBookings(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if len(expired) > 0 {
				logger.Info().Int("count", len(expired)).Msg("swept expired bookings")
			}
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			return
		}
	}
}
