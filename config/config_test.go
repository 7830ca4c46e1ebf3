package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesVerses(t *testing.T) {
	path := writeConfig(t, `ListenAddress = "0.0.0.0:9545"
DataDir = "./data"
RateLimitRPS = 25.0
RateLimitBurst = 50
PausedModules = ["arb"]

[telemetry]
Endpoint = "collector:4318"
ServiceName = "versed-test"
Insecure = true

[[verse]]
ID = "verse-1"
TotalLiquidity = "1000000000000000000000000"
CoverageRatioBps = 8000
LendingLiquidity = "500000000000000000000000"

[[verse]]
ID = "verse-2"
TotalLiquidity = "5000000"
CoverageRatioBps = 5000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ListenAddress != "0.0.0.0:9545" {
		t.Fatalf("listen address lost: %q", cfg.ListenAddress)
	}
	if len(cfg.Verses) != 2 {
		t.Fatalf("expected 2 verses, got %d", len(cfg.Verses))
	}
	if cfg.Telemetry.Endpoint != "collector:4318" || !cfg.Telemetry.Insecure {
		t.Fatalf("telemetry lost: %+v", cfg.Telemetry)
	}
	if len(cfg.PausedModules) != 1 || cfg.PausedModules[0] != "arb" {
		t.Fatalf("pauses lost: %v", cfg.PausedModules)
	}

	liquidity, err := cfg.Verses[0].Liquidity()
	if err != nil {
		t.Fatalf("liquidity parse failed: %v", err)
	}
	want, _ := new(big.Int).SetString("1000000000000000000000000", 10)
	if liquidity.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, liquidity)
	}

	pool, err := cfg.Verses[0].PoolLiquidity()
	if err != nil {
		t.Fatalf("pool liquidity parse failed: %v", err)
	}
	wantPool, _ := new(big.Int).SetString("500000000000000000000000", 10)
	if pool.Cmp(wantPool) != 0 {
		t.Fatalf("expected %s, got %s", wantPool, pool)
	}

	// Pool liquidity falls back to the verse liquidity when unset.
	fallback, err := cfg.Verses[1].PoolLiquidity()
	if err != nil {
		t.Fatalf("fallback parse failed: %v", err)
	}
	if fallback.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("expected fallback 5000000, got %s", fallback)
	}
}

func TestLoadRejectsInvalidVerses(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{"no verses", "ListenAddress = \":8545\"\n"},
		{"duplicate ids", `[[verse]]
ID = "v"
TotalLiquidity = "100"
CoverageRatioBps = 5000

[[verse]]
ID = "v"
TotalLiquidity = "100"
CoverageRatioBps = 5000
`},
		{"bad liquidity", `[[verse]]
ID = "v"
TotalLiquidity = "not-a-number"
CoverageRatioBps = 5000
`},
		{"zero coverage", `[[verse]]
ID = "v"
TotalLiquidity = "100"
CoverageRatioBps = 0
`},
		{"coverage above unity", `[[verse]]
ID = "v"
TotalLiquidity = "100"
CoverageRatioBps = 10001
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.contents)); err == nil {
				t.Fatalf("expected validation failure")
			}
		})
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}
	if len(cfg.Verses) == 0 {
		t.Fatalf("default config has no verse")
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		t.Fatalf("rate limit defaults missing: %+v", cfg)
	}

	// Reloading the generated file round-trips.
	if _, err := Load(path); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
}
