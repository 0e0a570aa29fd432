package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, "PORT", "CGST_RATE", "SGST_RATE", "AMQP_URL", "CART_TTL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8081" {
		t.Errorf("port: got %q, want 8081", cfg.Port)
	}
	if cfg.CartTTL != 12*time.Hour {
		t.Errorf("cart ttl: got %v, want 12h", cfg.CartTTL)
	}
	if cfg.AMQPURL != "" {
		t.Errorf("amqp url: got %q, want empty", cfg.AMQPURL)
	}

	cgst, sgst, err := cfg.TaxRates()
	if err != nil {
		t.Fatalf("tax rates: %v", err)
	}
	want := decimal.RequireFromString("0.025")
	if !cgst.Equal(want) || !sgst.Equal(want) {
		t.Errorf("rates: got %s/%s, want 0.025", cgst, sgst)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CGST_RATE", "0.09")
	t.Setenv("SGST_RATE", "0.09")
	t.Setenv("CORS_ORIGINS", "https://pos.example.com,https://kds.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("port: got %q", cfg.Port)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("cors origins: got %v", cfg.CORSOrigins)
	}
	cgst, _, _ := cfg.TaxRates()
	if !cgst.Equal(decimal.RequireFromString("0.09")) {
		t.Errorf("cgst: got %s", cgst)
	}
}

// unsetEnv removes keys for the duration of the test. envconfig treats a
// set-but-empty variable as a value, so t.Setenv(k, "") is not enough.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_InvalidRate(t *testing.T) {
	for _, v := range []string{"abc", "-0.01", "1.5", "0.02505"} {
		t.Setenv("CGST_RATE", v)
		if _, err := Load(); err == nil {
			t.Errorf("CGST_RATE=%q: expected error", v)
		}
	}
}

func TestLoad_RateAtStoredPrecision(t *testing.T) {
	t.Setenv("CGST_RATE", "0.0250")
	t.Setenv("SGST_RATE", "0.09")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cgst, sgst, err := cfg.TaxRates()
	if err != nil {
		t.Fatalf("TaxRates: %v", err)
	}
	if !cgst.Equal(decimal.RequireFromString("0.025")) || !sgst.Equal(decimal.RequireFromString("0.09")) {
		t.Errorf("rates: got %s/%s", cgst, sgst)
	}
}
