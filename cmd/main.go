package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/bcrypt"

	"github.com/sharath018/campus-events-backend/config"
	"github.com/sharath018/campus-events-backend/database"
	"github.com/sharath018/campus-events-backend/internal/auditlog"
	"github.com/sharath018/campus-events-backend/internal/auth"
	"github.com/sharath018/campus-events-backend/internal/event"
	"github.com/sharath018/campus-events-backend/internal/notification"
	"github.com/sharath018/campus-events-backend/internal/payment"
	"github.com/sharath018/campus-events-backend/internal/registration"
	"github.com/sharath018/campus-events-backend/pkg/redis"
	"github.com/sharath018/campus-events-backend/routes"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := database.Connect(cfg, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}

	logger.Info("running database migrations")
	if err := db.AutoMigrate(
		&auth.User{},
		&event.Event{},
		&registration.Registration{},
		&payment.Payment{},
		&auditlog.AuditLog{},
		&notification.InAppNotification{},
		&notification.DeviceToken{},
	); err != nil {
		logger.Fatal("auto migrate", zap.Error(err))
	}

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			logger.Fatal("hash admin password", zap.Error(err))
		}
		if err := auth.SeedAdminUser(ctx, db, cfg.AdminEmail, string(hash)); err != nil {
			logger.Fatal("seed admin", zap.Error(err))
		}
	}

	// Redis is optional: without it the registration lock, the shared rate
	// limiter and live notifications are disabled.
	var (
		rdb         goredis.UniversalClient
		locker      registration.Locker
		broadcaster notification.Broadcaster
	)
	redisClient, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		logger.Warn("redis unavailable, continuing without it", zap.Error(err))
	} else {
		defer redisClient.Close()
		rdb = redisClient.Client
		locker = registration.NewRedisLocker(redisClient.Client)
		broadcaster = notification.NewRedisBroadcaster(redisClient.Client)
	}

	// Audit
	auditSvc := auditlog.NewService(auditlog.NewRepository(db), logger)

	// Auth
	authRepo := auth.NewRepository(db)
	authSvc := auth.NewService(authRepo, cfg, logger)

	// Notifications
	notificationSvc := notification.NewService(
		notification.NewRepository(db),
		notification.NewFCMSender(ctx, cfg, logger),
		broadcaster,
		logger,
	)

	var publisher registration.Publisher = notification.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := notification.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaRegistrationTopic, logger)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher

		consumer := notification.NewConsumer(cfg.KafkaBrokers, cfg.KafkaRegistrationTopic, cfg.KafkaConsumerGroup, notificationSvc, logger)
		go func() {
			defer consumer.Close()
			if err := consumer.Run(ctx); err != nil {
				logger.Error("registration consumer stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("KAFKA_BROKERS not set, registration notifications disabled")
	}

	// Events & registrations
	eventRepo := event.NewRepository(db)
	eventSvc := event.NewService(eventRepo, auditSvc, logger)

	registrationSvc := registration.NewService(
		registration.NewRepository(db),
		eventRepo,
		locker,
		publisher,
		auditSvc,
		logger,
		registration.Config{LockTTL: cfg.RegistrationLockTTL, PublishTimeout: cfg.PublishTimeout},
	)

	// Payments
	paymentSvc := payment.NewService(
		payment.NewRepository(db),
		payment.NewRazorpayGateway(cfg.RazorpayKey, cfg.RazorpaySecret),
		registrationSvc,
		eventRepo,
		authRepo,
		auditSvc,
		logger,
		payment.Config{
			Key:           cfg.RazorpayKey,
			Secret:        cfg.RazorpaySecret,
			WebhookSecret: cfg.RazorpayWebhookSecret,
			Currency:      cfg.PaymentCurrency,
		},
	)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	routes.Setup(router, cfg, routes.Services{
		Auth:         authSvc,
		Audit:        auditSvc,
		Event:        eventSvc,
		Registration: registrationSvc,
		Payment:      paymentSvc,
		Notification: notificationSvc,
	}, rdb, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
