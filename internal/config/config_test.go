package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("WEBHOOK_SECRET", "hook-secret")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Fees.PlatformRate.String(); got != "0.02" {
		t.Errorf("platform rate = %s, want 0.02", got)
	}
	if got := cfg.Fees.WithdrawalMinFee.String(); got != "50" {
		t.Errorf("withdrawal min fee = %s, want 50", got)
	}
	if cfg.App.DealExpiryInterval != 5*time.Minute {
		t.Errorf("expiry interval = %v, want 5m", cfg.App.DealExpiryInterval)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("origins = %v, want two entries", cfg.Server.AllowedOrigins)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("WEBHOOK_SECRET", "hook-secret")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}

	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("WEBHOOK_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without WEBHOOK_SECRET")
	}
}

func TestLoadRejectsBadFee(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("WEBHOOK_SECRET", "hook-secret")
	t.Setenv("PLATFORM_FEE_RATE", "two percent")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unparsable fee rate")
	}
}

func TestLoadRejectsNonPositiveExpiryInterval(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("WEBHOOK_SECRET", "hook-secret")
	for _, v := range []string{"0s", "-1m"} {
		t.Setenv("DEAL_EXPIRY_INTERVAL", v)
		if _, err := Load(); err == nil {
			t.Errorf("DEAL_EXPIRY_INTERVAL=%s: expected error", v)
		}
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Driver: "sqlite", Path: ":memory:"}}
	if got := cfg.GetDSN(); got != ":memory:" {
		t.Errorf("sqlite dsn = %q", got)
	}

	cfg.Database = DatabaseConfig{Driver: "postgres", Host: "db", Port: "5432", User: "u", Password: "p", DBName: "escrow"}
	want := "host=db port=5432 user=u password=p dbname=escrow sslmode=disable"
	if got := cfg.GetDSN(); got != want {
		t.Errorf("postgres dsn = %q, want %q", got, want)
	}
}
