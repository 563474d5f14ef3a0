/**
 * @description
 * Entry point for the enrollment service. Wires configuration, PostgreSQL,
 * optional Redis, the notification brokers, the payment gateway client and
 * SMTP into the application services, then serves the HTTP API and drains
 * the email queue until a termination signal arrives.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: PIN attempt limiter backend.
 * - github.com/joho/godotenv: .env loading for local development.
 * - pkg/rabbitmq, pkg/kafka, pkg/paystackclient, pkg/mailer: outbound clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Zymoclassic/eduplat/internal/api"
	"github.com/Zymoclassic/eduplat/internal/app"
	"github.com/Zymoclassic/eduplat/internal/config"
	"github.com/Zymoclassic/eduplat/internal/store"
	"github.com/Zymoclassic/eduplat/pkg/kafka"
	"github.com/Zymoclassic/eduplat/pkg/mailer"
	"github.com/Zymoclassic/eduplat/pkg/paystackclient"
	rmrabbit "github.com/Zymoclassic/eduplat/pkg/rabbitmq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found, using environment variables\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}
	if strings.TrimSpace(cfg.PaystackSecretKey) == "" {
		log.Println("level=warn component=bootstrap msg=\"paystack secret missing; every webhook will be rejected\" env=PAYSTACK_SECRET_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting enrollment-service\" port=%s", cfg.ServerPort)

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	var rabbitProducer rmrabbit.Publisher
	queueAvailable := false
	if producer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		rabbitProducer = &rmrabbit.EventProducerFallback{}
	} else {
		defer producer.Close()
		rabbitProducer = producer
		queueAvailable = true
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	var events app.EventPublisher = app.NewExchangeEventPublisher(rabbitProducer, cfg.EventsExchange)
	if cfg.NotificationBroker == config.BrokerKafka {
		kafkaProducer, err := kafka.NewProducer(cfg.KafkaBrokerList(), cfg.KafkaNotificationTopic, cfg.KafkaUsername, cfg.KafkaPassword)
		if err != nil {
			log.Printf("level=warn component=bootstrap msg=\"kafka producer unavailable; notification events go to rabbitmq\" err=%v", err)
		} else {
			defer kafkaProducer.Close()
			events = app.NewTopicEventPublisher(kafkaProducer)
			log.Printf("level=info component=bootstrap msg=\"kafka producer ready\" topic=%s", cfg.KafkaNotificationTopic)
		}
	}

	smtp := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	})
	if !smtp.Enabled() {
		log.Println("level=warn component=bootstrap msg=\"smtp not configured; emails will be dropped\" env=SMTP_HOST")
	}

	var emailSender app.EmailSender = app.NewDirectEmailSender(smtp)
	if queueAvailable {
		emailSender = app.NewQueuedEmailSender(rabbitProducer, cfg.EventsExchange)
	}

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; pin attempt limiting disabled\" env=REDIS_URL")
	} else if redisOptions, parseErr := redis.ParseURL(cfg.RedisURL); parseErr != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; pin attempt limiting disabled\" err=%v", parseErr)
	} else {
		redisClient = redis.NewClient(redisOptions)
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
		pingErr := redisClient.Ping(pingCtx).Err()
		cancelPing()
		if pingErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis ping failed; pin attempt limiting disabled\" err=%v", pingErr)
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Println("level=info component=bootstrap msg=\"redis connected\"")
		}
	}

	repository := store.NewPostgresRepository(dbpool)
	notifier := app.NewNotificationDispatcher(repository, events, emailSender)
	tokens := app.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour, cfg.AdminEmailList())
	gateway := paystackclient.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey)

	commissions := app.NewCommissionService(repository, cfg.CommissionPercent, notifier)
	reconciliation := app.NewReconciliationEngine(repository, commissions, notifier, app.ReconciliationConfig{
		WebhookSecret:         cfg.PaystackSecretKey,
		PartialPaymentPercent: cfg.PartialPaymentPercent,
		ReferralBonusKobo:     cfg.ReferralBonusKobo,
	})
	withdrawals := app.NewWithdrawalService(repository, notifier, app.WithdrawalConfig{
		MinAmountKobo:        cfg.WithdrawalMinKobo,
		Expiry:               time.Duration(cfg.WithdrawalExpiryHours) * time.Hour,
		PINAttemptsPerMinute: cfg.PINVerifyRateLimitPerMinute,
	})
	wallet := app.NewWalletService(repository, emailSender, app.WalletConfig{
		PINResetTTL:          time.Duration(cfg.PINResetTokenTTLMinutes) * time.Minute,
		PINAttemptsPerMinute: cfg.PINVerifyRateLimitPerMinute,
	})
	if redisClient != nil {
		limiter := app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
		withdrawals.SetRateLimiter(limiter)
		wallet.SetRateLimiter(limiter)
	}

	handler := api.NewHandler(api.Services{
		Identity:    app.NewIdentityService(repository, tokens, emailSender, app.IdentityConfig{OTPTTL: time.Duration(cfg.OTPTTLMinutes) * time.Minute}),
		Wallet:      wallet,
		Withdrawals: withdrawals,
		Payments:    app.NewPaymentService(repository, gateway, app.PaymentConfig{PartialPaymentPercent: cfg.PartialPaymentPercent, CallbackURL: cfg.PaymentCallbackURL}),
		Courses:     app.NewCourseService(repository),
		Accounts:    app.NewAccountService(repository, notifier),
		Webhooks:    reconciliation,
	}, cfg.PaymentSignatureHeader)

	webhookLimiter := api.NewIPRateLimiter(cfg.WebhookRateLimitPerSecond, cfg.WebhookRateLimitBurst)
	authLimiter := api.NewIPRateLimiter(5, 20)
	router := api.NewRouter(handler, tokens, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins(),
		WebhookLimiter: webhookLimiter,
		AuthLimiter:    authLimiter,
	})

	janitorCtx, stopJanitors := context.WithCancel(context.Background())
	defer stopJanitors()
	go webhookLimiter.RunJanitor(janitorCtx)
	go authLimiter.RunJanitor(janitorCtx)

	if queueAvailable {
		rabbitConsumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq consumer init failed\" err=%v", err)
		}
		defer rabbitConsumer.Close()

		emailConsumer := app.NewEmailConsumer(smtp)
		bindings := map[string]rmrabbit.Handler{
			app.RoutingKeyNotificationEmail: emailConsumer.HandleMessage,
		}
		if err := rabbitConsumer.ConsumeWithBindings(cfg.EventsExchange, cfg.EmailQueue, bindings); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"email consumer start failed\" err=%v", err)
		}
		log.Printf("level=info component=bootstrap msg=\"email consumer started\" queue=%s", cfg.EmailQueue)
	}

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}
	log.Println("level=info component=http msg=\"shutdown complete\"")
}
