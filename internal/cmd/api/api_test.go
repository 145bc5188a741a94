package api

import (
	"flag"
	"testing"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	t.Setenv("RAMKA_API_ADDR", ":9090")
	t.Setenv("RAMKA_AUTH_ISSUER", "issuer-from-env")

	cfg, err := ParseConfig(fs, []string{"-db-path", "/tmp/ramka-test.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("addr = %q, want :9090", cfg.Addr)
	}
	if cfg.AuthIssuer != "issuer-from-env" {
		t.Fatalf("issuer = %q, want issuer-from-env", cfg.AuthIssuer)
	}
	if cfg.DBPath != "/tmp/ramka-test.db" {
		t.Fatalf("db path = %q, want /tmp/ramka-test.db", cfg.DBPath)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("api", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.Addr)
	}
	if cfg.AuthAudience != "ramka-api" {
		t.Fatalf("audience = %q, want ramka-api", cfg.AuthAudience)
	}
}
