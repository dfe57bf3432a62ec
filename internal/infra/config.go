package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"trading_core/internal/domain"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Broker struct {
		AutoMatch       bool   `yaml:"auto_match"`
		SweepIntervalMS int    `yaml:"sweep_interval_ms"`
		InboxSize       int    `yaml:"inbox_size"`
		DumpFile        string `yaml:"dump_file"`
	} `yaml:"broker"`

	Storage struct {
		Path                string `yaml:"path"`
		SnapshotIntervalSec int    `yaml:"snapshot_interval_sec"`
	} `yaml:"storage"`

	Feed struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"feed"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`

	Seed struct {
		Accounts    []SeedAccount    `yaml:"accounts"`
		Instruments []SeedInstrument `yaml:"instruments"`
	} `yaml:"seed"`
}

// SeedAccount is an account created at startup when it is not in the restored snapshot.
type SeedAccount struct {
	Name     string           `yaml:"name"`
	Balance  decimal.Decimal  `yaml:"balance"`
	Holdings map[string]int64 `yaml:"holdings"`
}

// SeedInstrument is an instrument registered at startup when it is not in the restored snapshot.
type SeedInstrument struct {
	Symbol    string          `yaml:"symbol"`
	Class     string          `yaml:"class"`
	Price     decimal.Decimal `yaml:"price"`
	FaceValue decimal.Decimal `yaml:"face_value"`
}

// DefaultConfig returns the built-in defaults applied before the file is parsed.
func DefaultConfig() Config {
	var cfg Config
	cfg.App.Name = "trading-core"
	cfg.Broker.AutoMatch = true
	cfg.Broker.SweepIntervalMS = 1000
	cfg.Broker.InboxSize = 256
	cfg.Broker.DumpFile = "panic_dump.json"
	cfg.Storage.Path = "data/trading.db"
	cfg.Storage.SnapshotIntervalSec = 30
	cfg.Feed.Addr = "localhost:8080"
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return cfg
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
// Priority: ENV > .env file > config file > defaults
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &domain.ConfigError{Field: "file", Err: err}
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Broker.SweepIntervalMS < 0 {
		return &domain.ConfigError{Field: "broker.sweep_interval_ms", Err: errors.New("must not be negative")}
	}
	if c.Storage.Path == "" {
		return &domain.ConfigError{Field: "storage.path", Err: errors.New("required")}
	}
	if c.Storage.SnapshotIntervalSec < 0 {
		return &domain.ConfigError{Field: "storage.snapshot_interval_sec", Err: errors.New("must not be negative")}
	}
	if c.Feed.Enabled && c.Feed.Addr == "" {
		return &domain.ConfigError{Field: "feed.addr", Err: errors.New("required when the feed is enabled")}
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return &domain.ConfigError{Field: "logging.level", Err: fmt.Errorf("unknown level %q", c.Logging.Level)}
	}

	names := make(map[string]bool)
	for i, acc := range c.Seed.Accounts {
		field := fmt.Sprintf("seed.accounts[%d]", i)
		if acc.Name == "" {
			return &domain.ConfigError{Field: field, Err: errors.New("name is required")}
		}
		if names[acc.Name] {
			return &domain.ConfigError{Field: field, Err: fmt.Errorf("duplicate account %q", acc.Name)}
		}
		names[acc.Name] = true
		if acc.Balance.IsNegative() {
			return &domain.ConfigError{Field: field, Err: domain.ErrInvalidAmount}
		}
		for sym, qty := range acc.Holdings {
			if qty < 0 {
				return &domain.ConfigError{Field: field, Err: fmt.Errorf("negative holding of %s", sym)}
			}
		}
	}

	symbols := make(map[string]bool)
	for i, inst := range c.Seed.Instruments {
		field := fmt.Sprintf("seed.instruments[%d]", i)
		if inst.Symbol == "" {
			return &domain.ConfigError{Field: field, Err: errors.New("symbol is required")}
		}
		if symbols[inst.Symbol] {
			return &domain.ConfigError{Field: field, Err: fmt.Errorf("duplicate instrument %q", inst.Symbol)}
		}
		symbols[inst.Symbol] = true
		if inst.Price.IsNegative() {
			return &domain.ConfigError{Field: field, Err: domain.ErrInvalidAmount}
		}
		if _, err := domain.KindFromClass(inst.Class, inst.FaceValue); err != nil {
			return &domain.ConfigError{Field: field, Err: err}
		}
	}

	return nil
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if path := os.Getenv("TRADING_STORAGE_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if addr := os.Getenv("TRADING_FEED_ADDR"); addr != "" {
		cfg.Feed.Addr = addr
	}
	if level := os.Getenv("TRADING_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if ms := os.Getenv("TRADING_SWEEP_INTERVAL_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.Broker.SweepIntervalMS = v
		}
	}
}
