package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Verse describes one isolated execution environment and the liquidity that
// backs its leverage chains.
type Verse struct {
	ID               string `toml:"ID"`
	TotalLiquidity   string `toml:"TotalLiquidity"`
	CoverageRatioBps uint64 `toml:"CoverageRatioBps"`
	LendingLiquidity string `toml:"LendingLiquidity"`
}

// Telemetry holds the OTLP exporter settings. An empty endpoint disables the
// exporter and traces stay local.
type Telemetry struct {
	Endpoint    string `toml:"Endpoint"`
	ServiceName string `toml:"ServiceName"`
	Insecure    bool   `toml:"Insecure"`
}

type Config struct {
	ListenAddress  string    `toml:"ListenAddress"`
	DataDir        string    `toml:"DataDir"`
	AuditDB        string    `toml:"AuditDB"`
	RateLimitRPS   float64   `toml:"RateLimitRPS"`
	RateLimitBurst int       `toml:"RateLimitBurst"`
	PausedModules  []string  `toml:"PausedModules"`
	Verses         []Verse   `toml:"verse"`
	Telemetry      Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path. A missing file is
// replaced by a generated default so a fresh node can start unattended.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8545"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./verse-data"
	}
	if strings.TrimSpace(c.AuditDB) == "" {
		c.AuditDB = filepath.Join(c.DataDir, "audit.db")
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = 50
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 100
	}
	if c.PausedModules == nil {
		c.PausedModules = []string{}
	}
	if strings.TrimSpace(c.Telemetry.ServiceName) == "" {
		c.Telemetry.ServiceName = "versed"
	}
}

// Validate rejects configurations a node cannot safely run with.
func (c *Config) Validate() error {
	if len(c.Verses) == 0 {
		return fmt.Errorf("config: at least one verse must be configured")
	}
	seen := make(map[string]struct{}, len(c.Verses))
	for i := range c.Verses {
		v := &c.Verses[i]
		id := strings.TrimSpace(v.ID)
		if id == "" {
			return fmt.Errorf("config: verse %d has no id", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("config: duplicate verse id %q", id)
		}
		seen[id] = struct{}{}
		if _, err := v.Liquidity(); err != nil {
			return err
		}
		if _, err := v.PoolLiquidity(); err != nil {
			return err
		}
		if v.CoverageRatioBps == 0 || v.CoverageRatioBps > 10_000 {
			return fmt.Errorf("config: verse %q coverage ratio must be in (0, 10000] bps", id)
		}
	}
	return nil
}

// Liquidity parses the verse's backing liquidity. Amounts are configured as
// decimal strings because they routinely exceed int64.
func (v *Verse) Liquidity() (*big.Int, error) {
	return parseAmount(v.ID, "TotalLiquidity", v.TotalLiquidity)
}

// PoolLiquidity parses the liquidity seeded into the verse's borrow pool.
// It defaults to the verse's total liquidity when unset.
func (v *Verse) PoolLiquidity() (*big.Int, error) {
	if strings.TrimSpace(v.LendingLiquidity) == "" {
		return v.Liquidity()
	}
	return parseAmount(v.ID, "LendingLiquidity", v.LendingLiquidity)
}

func parseAmount(verseID, field, raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || value.Sign() <= 0 {
		return nil, fmt.Errorf("config: verse %q %s must be a positive decimal amount", verseID, field)
	}
	return value, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8545",
		DataDir:       "./verse-data",
		PausedModules: []string{},
		Verses: []Verse{{
			ID:               "genesis",
			TotalLiquidity:   "1000000000000000000000000",
			CoverageRatioBps: 8_000,
		}},
	}
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
