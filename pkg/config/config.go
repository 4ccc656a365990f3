// Package config loads pipeline configuration from YAML with a .env
// overlay for secrets (private key / mnemonic stay out of YAML files).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/betkit/gopoly/pkg/logger"
)

// Config is the root document.
type Config struct {
	Chain   ChainConfig   `yaml:"chain"`
	Clob    ClobConfig    `yaml:"clob"`
	Relayer RelayerConfig `yaml:"relayer"`
	Deposit DepositConfig `yaml:"deposit"`
	Trade   TradeConfig   `yaml:"trade"`
	Store   StoreConfig   `yaml:"store"`
	Log     logger.Config `yaml:"log"`
}

type ChainConfig struct {
	ID     int64  `yaml:"id"`     // 137 mainnet, 80002 Amoy
	RPCURL string `yaml:"rpcUrl"` // from env POLYGON_RPC_URL when empty
}

type ClobConfig struct {
	Host string `yaml:"host"`
}

type RelayerConfig struct {
	URL              string   `yaml:"url"`
	PollInterval     Duration `yaml:"pollInterval"`
	PollTimeout      Duration `yaml:"pollTimeout"`
	BuilderKey       string   `yaml:"-"` // env RELAYER_BUILDER_KEY
	BuilderSecret    string   `yaml:"-"` // env RELAYER_BUILDER_SECRET
	BuilderPassword  string   `yaml:"-"` // env RELAYER_BUILDER_PASSPHRASE
}

type DepositConfig struct {
	BackendURL   string   `yaml:"backendUrl"`
	PollInterval Duration `yaml:"pollInterval"` // default 5s
	MaxAttempts  int      `yaml:"maxAttempts"`  // default 24
}

type TradeConfig struct {
	// SellShortfallTolerance caps a SELL down to the on-chain balance
	// when the requested size overshoots by at most this fraction.
	SellShortfallTolerance float64  `yaml:"sellShortfallTolerance"` // default 0.01
	StageResetDelay        Duration `yaml:"stageResetDelay"`        // default 2s
}

type StoreConfig struct {
	// Backend: memory, file, badger, sqlite.
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Load reads a YAML file, then overlays environment variables (loading
// a .env file beside the process first, if present).
func Load(path string) (*Config, error) {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("POLYGON_RPC_URL"); v != "" {
		cfg.Chain.RPCURL = v
	}
	cfg.Relayer.BuilderKey = os.Getenv("RELAYER_BUILDER_KEY")
	cfg.Relayer.BuilderSecret = os.Getenv("RELAYER_BUILDER_SECRET")
	cfg.Relayer.BuilderPassword = os.Getenv("RELAYER_BUILDER_PASSPHRASE")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Chain: ChainConfig{ID: 137},
		Clob:  ClobConfig{Host: "https://clob.polymarket.com"},
		Relayer: RelayerConfig{
			URL: "https://relayer-v2.polymarket.com",
		},
		Deposit: DepositConfig{MaxAttempts: 24},
		Trade:   TradeConfig{SellShortfallTolerance: 0.01},
		Store:   StoreConfig{Backend: "memory"},
		Log:     logger.Config{Level: "info"},
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Store.Backend) {
	case "", "memory":
	case "file", "badger", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for backend %q", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Trade.SellShortfallTolerance < 0 || c.Trade.SellShortfallTolerance >= 1 {
		return fmt.Errorf("trade.sellShortfallTolerance must be in [0,1), got %v", c.Trade.SellShortfallTolerance)
	}
	if c.Deposit.MaxAttempts <= 0 {
		c.Deposit.MaxAttempts = 24
	}
	return nil
}
