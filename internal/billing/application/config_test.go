package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
adult_age: 21
family_group_exemption: false
link_batch_concurrency: 8
link_expiry: 48h
currency: usd
payment_back_url: https://club.example/paid
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.AdultAge != 21 || cfg.FamilyGroupExemption || cfg.LinkBatchConcurrency != 8 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.LinkExpiry != 48*time.Hour || cfg.Currency != "USD" || cfg.PaymentBackURL == "" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if policy := cfg.Policy(); policy.AdultAge != 21 || policy.FamilyGroupExemption {
		t.Fatalf("unexpected policy %+v", policy)
	}
}

func TestParseConfig_DefaultsAndErrors(t *testing.T) {
	cfg, err := ParseConfig([]byte(`currency: ARS`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.AdultAge != 18 || !cfg.FamilyGroupExemption || cfg.LinkBatchConcurrency != 4 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	for _, bad := range []string{"adult_age: 0", "link_expiry: soon", "link_batch_concurrency: -1", "currency: ''", "adult_age: [1"} {
		if _, err := ParseConfig([]byte(bad)); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("adult_age: 19\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BILLING_POLICY_FILE", path)
	t.Setenv("BILLING_LINK_BATCH_CONCURRENCY", "2")
	t.Setenv("BILLING_FAMILY_GROUP_EXEMPTION", "false")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AdultAge != 19 || cfg.LinkBatchConcurrency != 2 || cfg.FamilyGroupExemption {
		t.Fatalf("unexpected config %+v", cfg)
	}
	t.Setenv("BILLING_LINK_EXPIRY", "later")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected invalid expiry error")
	}
}
