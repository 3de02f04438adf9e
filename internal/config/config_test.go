package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.BasePath != "/v0" || cfg.Bootstrap.AdminID != "admin" || cfg.Ledger.Currency != "USD" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TokenTTL().Hours() != 24 {
		t.Fatalf("expected 24h ttl, got %s", cfg.TokenTTL())
	}
}

func TestFromYAMLOverlaysDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("ledger:\n  initial_wallet: \"1000\"\nbookkeeping:\n  notifier: webhook\n  url: http://books.local/hook\n"))
	if err != nil {
		t.Fatalf("from yaml: %v", err)
	}
	w, _ := cfg.InitialWallet()
	if w.String() != "1000" {
		t.Fatalf("initial wallet %s", w)
	}
	if cfg.Ledger.Currency != "USD" || cfg.Server.Addr == "" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"webhook without url": "bookkeeping:\n  notifier: webhook\n",
		"unknown notifier":    "bookkeeping:\n  notifier: jms\n",
		"bad amount":          "ledger:\n  min_task_price: abc\n",
		"negative wallet":     "ledger:\n  initial_wallet: \"-5\"\n",
		"bad ttl":             "auth:\n  token_ttl: soon\n",
		"relative base path":  "server:\n  base_path: v0\n",
		"empty admin":         "bootstrap:\n  admin_id: \"\"\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("load optional missing: %v", err)
	}
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "gigline.yml"), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("load written default: %v", err)
	}
}
