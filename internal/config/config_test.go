package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_LedgerPolicyDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, key := range []string{"COMMISSION_PERCENT", "REFERRAL_BONUS_KOBO", "PARTIAL_PAYMENT_PERCENT", "OVERPAYMENT_POLICY", "WITHDRAWAL_MIN_KOBO"} {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.CommissionPercent != 15 {
		t.Fatalf("expected default commission percent 15, got %d", cfg.CommissionPercent)
	}
	if cfg.ReferralBonusKobo != 2_000_000 {
		t.Fatalf("expected default referral bonus 2000000 kobo, got %d", cfg.ReferralBonusKobo)
	}
	if cfg.PartialPaymentPercent != 60 {
		t.Fatalf("expected default partial payment percent 60, got %d", cfg.PartialPaymentPercent)
	}
	if cfg.WithdrawalMinKobo != 50_000 {
		t.Fatalf("expected default withdrawal minimum 50000 kobo, got %d", cfg.WithdrawalMinKobo)
	}
	if cfg.OverpaymentPolicy != OverpaymentPolicyReject {
		t.Fatalf("expected overpayment policy %q, got %q", OverpaymentPolicyReject, cfg.OverpaymentPolicy)
	}
}

func TestLoadConfig_RefusesClampOverpaymentPolicy(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "OVERPAYMENT_POLICY", "clamp")

	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatalf("expected error for unsupported overpayment policy")
	}
}

func TestLoadConfig_CoercesInvalidPolicyValues(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "COMMISSION_PERCENT", "0")
	setEnvWithCleanup(t, "PARTIAL_PAYMENT_PERCENT", "150")
	setEnvWithCleanup(t, "REFERRAL_BONUS_KOBO", "-5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.CommissionPercent != 15 {
		t.Fatalf("expected commission percent coerced to 15, got %d", cfg.CommissionPercent)
	}
	if cfg.PartialPaymentPercent != 60 {
		t.Fatalf("expected partial percent coerced to 60, got %d", cfg.PartialPaymentPercent)
	}
	if cfg.ReferralBonusKobo != 0 {
		t.Fatalf("expected negative bonus coerced to 0, got %d", cfg.ReferralBonusKobo)
	}
}

func TestLoadConfig_PortOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "9000")
	setEnvWithCleanup(t, "PORT", "7070")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "7070" {
		t.Fatalf("expected PORT to override SERVER_PORT, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_UnknownBrokerFallsBackToRabbitMQ(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "NOTIFICATION_BROKER", "nats")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.NotificationBroker != BrokerRabbitMQ {
		t.Fatalf("expected rabbitmq fallback, got %q", cfg.NotificationBroker)
	}
}

func TestConfigListsTrimEntries(t *testing.T) {
	cfg := Config{
		KafkaBrokers: " broker-1:9092, ,broker-2:9092 ",
		AdminEmails:  "Ops@Example.com, finance@example.com",
	}

	brokers := cfg.KafkaBrokerList()
	if len(brokers) != 2 || brokers[0] != "broker-1:9092" || brokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected broker list: %#v", brokers)
	}
	admins := cfg.AdminEmailList()
	if len(admins) != 2 || admins[0] != "ops@example.com" {
		t.Fatalf("unexpected admin list: %#v", admins)
	}
	if origins := cfg.AllowedOrigins(); len(origins) != 1 || origins[0] != "*" {
		t.Fatalf("expected wildcard origin fallback, got %#v", origins)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
