package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tenderwatch/internal/domain"
)

const sampleYAML = `
workers: 8
fetch_timeout_seconds: 45
cache_ttl_minutes: 15

sources:
  - key: mx-compranet
    display_name: CompraNet
    type: api
    adapter: httpjson
    tier: critical
    country: MX
    currency: MXN
    base_url: https://api.example.mx/tenders
    api_key_env: MX_COMPRANET_KEY
    field_mapping:
      title: [titulo_expediente]
  - key: co-secop
    type: api
    adapter: httpjson
    country: CO
    enabled: false
    update_interval_minutes: 90
`

func TestParse(t *testing.T) {
	t.Setenv("MX_COMPRANET_KEY", "secret-token")

	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Workers)
	}
	if cfg.FetchTimeout() != 45*time.Second {
		t.Errorf("fetch timeout = %s, want 45s", cfg.FetchTimeout())
	}
	if cfg.CacheTTL() != 15*time.Minute {
		t.Errorf("cache ttl = %s, want 15m", cfg.CacheTTL())
	}
	if cfg.SchedulerTick() != 60*time.Second {
		t.Errorf("tick = %s, want default 60s", cfg.SchedulerTick())
	}

	mx := cfg.Sources[0].Descriptor()
	if mx.Tier != domain.TierCritical || mx.Type != domain.SourceTypeAPI {
		t.Errorf("descriptor tier=%s type=%s", mx.Tier, mx.Type)
	}
	if mx.APIKey != "secret-token" {
		t.Errorf("api key not resolved from environment: %q", mx.APIKey)
	}
	if !mx.Enabled {
		t.Error("sources default to enabled")
	}

	co := cfg.Sources[1].Descriptor()
	if co.Enabled {
		t.Error("explicit enabled: false must carry through")
	}
	if co.Tier != domain.TierNormal {
		t.Errorf("missing tier = %s, want normal default", co.Tier)
	}
	if co.UpdateInterval() != 90*time.Minute {
		t.Errorf("interval override = %s, want 90m", co.UpdateInterval())
	}

	mappings := cfg.FieldMappings()
	if len(mappings["mx-compranet"]["title"]) != 1 {
		t.Errorf("field mapping not collected: %v", mappings)
	}
	if _, ok := mappings["co-secop"]; ok {
		t.Error("sources without mappings must be absent")
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("sources:\n  - {key: a, type: api, adapter: httpjson}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Workers != DefaultWorkers || cfg.FetchTimeoutSec != DefaultFetchTimeoutSec {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no sources":    "workers: 3\n",
		"missing key":   "sources:\n  - {type: api, adapter: httpjson}\n",
		"bad type":      "sources:\n  - {key: a, type: carrier-pigeon, adapter: httpjson}\n",
		"bad tier":      "sources:\n  - {key: a, type: api, adapter: httpjson, tier: hourly}\n",
		"duplicate key": "sources:\n  - {key: a, type: api, adapter: httpjson}\n  - {key: a, type: rss, adapter: httpjson}\n",
		"not yaml":      "{{{",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(raw)); err == nil {
				t.Fatalf("Parse accepted %s", name)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(cfg.Sources))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load must fail for a missing file")
	}
}
