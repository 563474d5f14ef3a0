/**
 * @description
 * Configuration for the enrollment service and the scheduler. Values come from
 * environment variables or an optional .env file through Viper. Ledger policy
 * values (commission rate, referral bonus, partial-payment fraction) live here
 * so that they are named in one place instead of being scattered as literals.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading and env binding.
 */

package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultCommissionPercent     = 15
	defaultReferralBonusKobo     = 2_000_000
	defaultPartialPaymentPercent = 60
	defaultWithdrawalMinKobo     = 50_000
	defaultWithdrawalExpiryHours = 24
	defaultPINResetTTLMinutes    = 15
	defaultOTPTTLMinutes         = 10
	defaultPINVerifyRatePerMin   = 10
	defaultWebhookRatePerSecond  = 20
	defaultWebhookRateBurst      = 40
	defaultJWTTTLHours           = 24
	defaultRateLimitPrefix       = "eduplat:rate_limit"

	// OverpaymentPolicyReject refuses any charge above the remaining balance.
	OverpaymentPolicyReject = "reject"

	BrokerRabbitMQ = "rabbitmq"
	BrokerKafka    = "kafka"
)

// Config holds all the configuration variables for the enrollment platform.
type Config struct {
	ServerPort             string `mapstructure:"SERVER_PORT"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	RedisURL               string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix   string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL            string `mapstructure:"RABBITMQ_URL"`
	EventsExchange         string `mapstructure:"EVENTS_EXCHANGE"`
	EmailQueue             string `mapstructure:"EMAIL_QUEUE"`
	NotificationBroker     string `mapstructure:"NOTIFICATION_BROKER"`
	KafkaBrokers           string `mapstructure:"KAFKA_BROKERS"`
	KafkaNotificationTopic string `mapstructure:"KAFKA_NOTIFICATION_TOPIC"`
	KafkaUsername          string `mapstructure:"KAFKA_USERNAME"`
	KafkaPassword          string `mapstructure:"KAFKA_PASSWORD"`
	PaystackBaseURL        string `mapstructure:"PAYSTACK_BASE_URL"`
	PaystackSecretKey      string `mapstructure:"PAYSTACK_SECRET_KEY"`
	PaymentSignatureHeader string `mapstructure:"PAYMENT_SIGNATURE_HEADER"`
	PaymentCallbackURL     string `mapstructure:"PAYMENT_CALLBACK_URL"`
	JWTSecret              string `mapstructure:"JWT_SECRET"`
	JWTTTLHours            int    `mapstructure:"JWT_TTL_HOURS"`
	AdminEmails            string `mapstructure:"ADMIN_EMAILS"`
	SMTPHost               string `mapstructure:"SMTP_HOST"`
	SMTPPort               int    `mapstructure:"SMTP_PORT"`
	SMTPUsername           string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword           string `mapstructure:"SMTP_PASSWORD"`
	MailFrom               string `mapstructure:"MAIL_FROM"`
	MailFromName           string `mapstructure:"MAIL_FROM_NAME"`
	CORSAllowedOrigins     string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	CommissionPercent           int64  `mapstructure:"COMMISSION_PERCENT"`
	ReferralBonusKobo           int64  `mapstructure:"REFERRAL_BONUS_KOBO"`
	PartialPaymentPercent       int64  `mapstructure:"PARTIAL_PAYMENT_PERCENT"`
	OverpaymentPolicy           string `mapstructure:"OVERPAYMENT_POLICY"`
	WithdrawalMinKobo           int64  `mapstructure:"WITHDRAWAL_MIN_KOBO"`
	WithdrawalExpiryHours       int    `mapstructure:"WITHDRAWAL_EXPIRY_HOURS"`
	PINResetTokenTTLMinutes     int    `mapstructure:"PIN_RESET_TOKEN_TTL_MINUTES"`
	OTPTTLMinutes               int    `mapstructure:"OTP_TTL_MINUTES"`
	PINVerifyRateLimitPerMinute int    `mapstructure:"PIN_VERIFY_RATE_LIMIT_PER_MINUTE"`
	WebhookRateLimitPerSecond   int    `mapstructure:"WEBHOOK_RATE_LIMIT_PER_SECOND"`
	WebhookRateLimitBurst       int    `mapstructure:"WEBHOOK_RATE_LIMIT_BURST"`

	WithdrawalExpirySchedule string `mapstructure:"WITHDRAWAL_EXPIRY_SCHEDULE"`
	TokenPurgeSchedule       string `mapstructure:"OTP_PURGE_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", defaultRateLimitPrefix)
	viper.SetDefault("EVENTS_EXCHANGE", "eduplat.events")
	viper.SetDefault("EMAIL_QUEUE", "enrollment_service.email")
	viper.SetDefault("NOTIFICATION_BROKER", BrokerRabbitMQ)
	viper.SetDefault("KAFKA_NOTIFICATION_TOPIC", "eduplat.notifications")
	viper.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	viper.SetDefault("PAYMENT_SIGNATURE_HEADER", "x-paystack-signature")
	viper.SetDefault("JWT_TTL_HOURS", defaultJWTTTLHours)
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("MAIL_FROM_NAME", "TechX")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("COMMISSION_PERCENT", defaultCommissionPercent)
	viper.SetDefault("REFERRAL_BONUS_KOBO", defaultReferralBonusKobo)
	viper.SetDefault("PARTIAL_PAYMENT_PERCENT", defaultPartialPaymentPercent)
	viper.SetDefault("OVERPAYMENT_POLICY", OverpaymentPolicyReject)
	viper.SetDefault("WITHDRAWAL_MIN_KOBO", defaultWithdrawalMinKobo)
	viper.SetDefault("WITHDRAWAL_EXPIRY_HOURS", defaultWithdrawalExpiryHours)
	viper.SetDefault("PIN_RESET_TOKEN_TTL_MINUTES", defaultPINResetTTLMinutes)
	viper.SetDefault("OTP_TTL_MINUTES", defaultOTPTTLMinutes)
	viper.SetDefault("PIN_VERIFY_RATE_LIMIT_PER_MINUTE", defaultPINVerifyRatePerMin)
	viper.SetDefault("WEBHOOK_RATE_LIMIT_PER_SECOND", defaultWebhookRatePerSecond)
	viper.SetDefault("WEBHOOK_RATE_LIMIT_BURST", defaultWebhookRateBurst)
	viper.SetDefault("WITHDRAWAL_EXPIRY_SCHEDULE", "@every 5m")
	viper.SetDefault("OTP_PURGE_SCHEDULE", "@hourly")

	// Bind explicitly so keys without defaults still reach Unmarshal.
	for _, key := range []string{
		"SERVER_PORT", "DATABASE_URL", "REDIS_URL", "REDIS_RATE_LIMIT_PREFIX",
		"RABBITMQ_URL", "EVENTS_EXCHANGE", "EMAIL_QUEUE", "NOTIFICATION_BROKER",
		"KAFKA_BROKERS", "KAFKA_NOTIFICATION_TOPIC", "KAFKA_USERNAME", "KAFKA_PASSWORD",
		"PAYSTACK_BASE_URL", "PAYMENT_SIGNATURE_HEADER", "PAYMENT_CALLBACK_URL",
		"JWT_SECRET", "JWT_TTL_HOURS", "ADMIN_EMAILS",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "MAIL_FROM", "MAIL_FROM_NAME",
		"CORS_ALLOWED_ORIGINS",
		"COMMISSION_PERCENT", "REFERRAL_BONUS_KOBO", "PARTIAL_PAYMENT_PERCENT", "OVERPAYMENT_POLICY",
		"WITHDRAWAL_MIN_KOBO", "WITHDRAWAL_EXPIRY_HOURS", "PIN_RESET_TOKEN_TTL_MINUTES", "OTP_TTL_MINUTES",
		"PIN_VERIFY_RATE_LIMIT_PER_MINUTE", "WEBHOOK_RATE_LIMIT_PER_SECOND", "WEBHOOK_RATE_LIMIT_BURST",
		"WITHDRAWAL_EXPIRY_SCHEDULE", "OTP_PURGE_SCHEDULE",
	} {
		_ = viper.BindEnv(key)
	}
	_ = viper.BindEnv("PAYSTACK_SECRET_KEY", "PAYSTACK_SECRET_KEY", "PAYSTACK_SECRET")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = defaultRateLimitPrefix
	}
	config.PaystackSecretKey = strings.TrimSpace(config.PaystackSecretKey)
	config.PaymentSignatureHeader = strings.ToLower(strings.TrimSpace(config.PaymentSignatureHeader))
	if config.PaymentSignatureHeader == "" {
		config.PaymentSignatureHeader = "x-paystack-signature"
	}

	config.NotificationBroker = strings.ToLower(strings.TrimSpace(config.NotificationBroker))
	switch config.NotificationBroker {
	case BrokerRabbitMQ, BrokerKafka:
	default:
		log.Printf("level=warn component=config msg=\"unknown notification broker; falling back to rabbitmq\" value=%q", config.NotificationBroker)
		config.NotificationBroker = BrokerRabbitMQ
	}

	config.OverpaymentPolicy = strings.ToLower(strings.TrimSpace(config.OverpaymentPolicy))
	if config.OverpaymentPolicy != OverpaymentPolicyReject {
		return config, fmt.Errorf("unsupported OVERPAYMENT_POLICY %q: only %q is supported", config.OverpaymentPolicy, OverpaymentPolicyReject)
	}

	config.CommissionPercent = coercePositiveInt64("COMMISSION_PERCENT", config.CommissionPercent, defaultCommissionPercent)
	if config.CommissionPercent > 100 {
		log.Printf("level=warn component=config msg=\"commission percent above 100; coercing to default\" value=%d", config.CommissionPercent)
		config.CommissionPercent = defaultCommissionPercent
	}
	config.PartialPaymentPercent = coercePositiveInt64("PARTIAL_PAYMENT_PERCENT", config.PartialPaymentPercent, defaultPartialPaymentPercent)
	if config.PartialPaymentPercent >= 100 {
		log.Printf("level=warn component=config msg=\"partial payment percent must be below 100; coercing to default\" value=%d", config.PartialPaymentPercent)
		config.PartialPaymentPercent = defaultPartialPaymentPercent
	}
	if config.ReferralBonusKobo < 0 {
		log.Printf("level=warn component=config msg=\"negative referral bonus configured; coercing to zero\" bonus_kobo=%d", config.ReferralBonusKobo)
		config.ReferralBonusKobo = 0
	}
	config.WithdrawalMinKobo = coercePositiveInt64("WITHDRAWAL_MIN_KOBO", config.WithdrawalMinKobo, defaultWithdrawalMinKobo)
	config.WithdrawalExpiryHours = coercePositiveInt("WITHDRAWAL_EXPIRY_HOURS", config.WithdrawalExpiryHours, defaultWithdrawalExpiryHours)
	config.PINResetTokenTTLMinutes = coercePositiveInt("PIN_RESET_TOKEN_TTL_MINUTES", config.PINResetTokenTTLMinutes, defaultPINResetTTLMinutes)
	config.OTPTTLMinutes = coercePositiveInt("OTP_TTL_MINUTES", config.OTPTTLMinutes, defaultOTPTTLMinutes)
	config.PINVerifyRateLimitPerMinute = coercePositiveInt("PIN_VERIFY_RATE_LIMIT_PER_MINUTE", config.PINVerifyRateLimitPerMinute, defaultPINVerifyRatePerMin)
	config.WebhookRateLimitPerSecond = coercePositiveInt("WEBHOOK_RATE_LIMIT_PER_SECOND", config.WebhookRateLimitPerSecond, defaultWebhookRatePerSecond)
	config.WebhookRateLimitBurst = coercePositiveInt("WEBHOOK_RATE_LIMIT_BURST", config.WebhookRateLimitBurst, defaultWebhookRateBurst)
	config.JWTTTLHours = coercePositiveInt("JWT_TTL_HOURS", config.JWTTTLHours, defaultJWTTTLHours)

	return config, nil
}

// KafkaBrokerList splits the comma separated KAFKA_BROKERS value.
func (c Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

func (c Config) AllowedOrigins() []string {
	origins := splitList(c.CORSAllowedOrigins)
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// AdminEmailList returns lower-cased admin emails.
func (c Config) AdminEmailList() []string {
	emails := splitList(c.AdminEmails)
	for i := range emails {
		emails[i] = strings.ToLower(emails[i])
	}
	return emails
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func coercePositiveInt64(key string, value, fallback int64) int64 {
	if value <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive value configured; coercing to default\" key=%s value=%d default=%d", key, value, fallback)
		return fallback
	}
	return value
}

func coercePositiveInt(key string, value, fallback int) int {
	if value <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive value configured; coercing to default\" key=%s value=%d default=%d", key, value, fallback)
		return fallback
	}
	return value
}
