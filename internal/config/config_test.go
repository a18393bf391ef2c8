package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	cfg := Defaults()
	if _, err := toml.DecodeFile(filepath.Join("..", "..", "config.example.toml"), &cfg); err != nil {
		t.Fatalf("decode example config: %v", err)
	}
	if !reflect.DeepEqual(cfg, Defaults()) {
		t.Errorf("example config drifts from Defaults():\n got: %+v\nwant: %+v", cfg, Defaults())
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
log_level = "debug"

[postgres]
host = "db.internal"
password = "hunter2"

[ingest]
concurrency = 8
start_time_grace = "10m"

[feed]
enabled = true
url = "wss://relay.floorline.xyz/ws"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
	if cfg.Postgres.Host != "db.internal" || cfg.Postgres.Password != "hunter2" {
		t.Errorf("postgres = %+v", cfg.Postgres)
	}
	// Untouched fields keep their defaults.
	if cfg.Postgres.Port != 5432 {
		t.Errorf("postgres port = %d, want default 5432", cfg.Postgres.Port)
	}
	if cfg.Ingest.Concurrency != 8 {
		t.Errorf("concurrency = %d", cfg.Ingest.Concurrency)
	}
	if cfg.Ingest.StartTimeGrace.Duration != 10*time.Minute {
		t.Errorf("start_time_grace = %s", cfg.Ingest.StartTimeGrace.Duration)
	}
	if !cfg.Feed.Enabled || cfg.Feed.URL != "wss://relay.floorline.xyz/ws" {
		t.Errorf("feed = %+v", cfg.Feed)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("merged config does not validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FLOORLINE_POSTGRES_PASSWORD", "from-env")
	t.Setenv("FLOORLINE_INGEST_CONCURRENCY", "3")
	t.Setenv("FLOORLINE_INGEST_CLAIM_TTL", "90s")
	t.Setenv("FLOORLINE_CHAIN_ALLOWED_CURRENCIES", "0xaa, 0xbb")
	t.Setenv("FLOORLINE_AUDIT_ENABLED", "true")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Postgres.Password != "from-env" {
		t.Errorf("password = %q", cfg.Postgres.Password)
	}
	if cfg.Ingest.Concurrency != 3 {
		t.Errorf("concurrency = %d", cfg.Ingest.Concurrency)
	}
	if cfg.Ingest.ClaimTTL.Duration != 90*time.Second {
		t.Errorf("claim_ttl = %s", cfg.Ingest.ClaimTTL.Duration)
	}
	if len(cfg.Chain.AllowedCurrencies) != 2 || cfg.Chain.AllowedCurrencies[1] != "0xbb" {
		t.Errorf("allowed_currencies = %v", cfg.Chain.AllowedCurrencies)
	}
	if !cfg.Audit.Enabled {
		t.Error("audit not enabled from env")
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Redis.Addr = ""
	cfg.Ingest.Concurrency = 0
	cfg.Ingest.LowBidFloorBps = 20000

	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid config validated")
	}
	for _, want := range []string{"log_level", "redis: addr", "concurrency", "low_bid_floor_bps"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %q: %v", want, err)
		}
	}
}
