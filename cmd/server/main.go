package main

import (
	"context"
	"log"
	"net"
	"net/smtp"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/hoangnm/court-booking/internal/booking"
	"github.com/hoangnm/court-booking/internal/config"
	"github.com/hoangnm/court-booking/internal/database"
	"github.com/hoangnm/court-booking/internal/email"
	"github.com/hoangnm/court-booking/internal/handler"
	"github.com/hoangnm/court-booking/internal/lock"
	"github.com/hoangnm/court-booking/internal/loyalty"
	"github.com/hoangnm/court-booking/internal/payment"
	"github.com/hoangnm/court-booking/internal/queue"
	"github.com/hoangnm/court-booking/internal/repository"
	"github.com/hoangnm/court-booking/internal/router"
	"github.com/hoangnm/court-booking/internal/worker"
)

func main() {
	_ = godotenv.Load() // .env is optional outside local development

	cfg := config.Load()
	bcfg := config.LoadBookingConfig()
	rlcfg := config.LoadRateLimitConfig()

	logger := config.NewLogger(cfg.Env)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		// The slot lock is load-bearing; without redis every allocation
		// would race on the overlap check.
		log.Fatalf("redis: connection failed")
	}
	defer rdb.Close()

	publisher, err := queue.NewPublisher(cfg.AmqpURL, logger)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer publisher.Close()

	users := repository.NewUserRepo(db)
	centers := repository.NewCenterRepo(db)
	courts := repository.NewCourtRepo(db)
	bookings := repository.NewBookingRepo(db)
	sessions := repository.NewPaymentSessionRepo(db)
	loyaltyRepo := repository.NewLoyaltyRepo(db)

	locker := lock.NewRedisLocker(rdb)
	allocator := booking.NewAllocator(
		courts, bookings, locker, publisher,
		booking.RulesFromConfig(bcfg),
		bcfg.LockTTL, bcfg.GracePeriod, logger,
	)

	var provider payment.Provider = payment.FakeProvider{}
	if cfg.ProviderURL != "" {
		provider = payment.NewHTTPProvider(cfg.ProviderURL, cfg.ProviderKey)
	}
	payments := payment.NewService(sessions, bookings, courts, centers, provider, publisher, "VND", logger)

	loyaltySvc := loyalty.NewService(loyaltyRepo, logger)
	notifier := email.NewNotifier(users, newSender(logger), logger)

	go queue.StartCancelConsumer(ctx, cfg.AmqpURL, allocator, logger)
	go queue.StartCompletedConsumer(ctx, cfg.AmqpURL, []queue.Subscriber{loyaltySvc, notifier}, logger)

	reconciler, err := worker.NewReconciler(bookings, allocator, bcfg.GracePeriod, bcfg.ReconcileEvery, logger)
	if err != nil {
		log.Fatalf("reconciler: %v", err)
	}
	if err := reconciler.Start(ctx); err != nil {
		log.Fatalf("reconciler: %v", err)
	}
	defer reconciler.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.Register(e, router.Handlers{
		Auth:    handler.NewAuthHandler(cfg, users),
		Centers: handler.NewCenterHandler(centers, courts),
		Booking: handler.NewBookingHandler(allocator, bookings, sessions, payments),
		Loyalty: handler.NewLoyaltyHandler(loyaltySvc),
		Webhook: handler.NewWebhookHandler(cfg.WebhookSecret, payments, logger),
	}, cfg.JWTSecret, rlcfg, rdb)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = e.Shutdown(context.Background())
	}()

	logger.Info("listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := e.Start(":" + cfg.Port); err != nil {
		logger.Info("server stopped", zap.Error(err))
	}
}

// newSender picks SMTP delivery when configured, logging otherwise.
func newSender(logger *zap.Logger) email.Sender {
	addr := os.Getenv("SMTP_ADDR")
	if addr == "" {
		return &email.LogSender{Log: logger}
	}
	var auth smtp.Auth
	if user := os.Getenv("SMTP_USER"); user != "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		auth = smtp.PlainAuth("", user, os.Getenv("SMTP_PASS"), host)
	}
	return &email.SMTPSender{Addr: addr, From: os.Getenv("SMTP_FROM"), Auth: auth}
}
