package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"coinbt/internal/strategy"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// DefaultPath is the config file used when COINBT_CONFIG is unset.
const DefaultPath = "config/coinbt.yaml"

// Config is the top-level configuration for coinbt.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
	Exchange Exchange `yaml:"exchange"`
	Telegram Telegram `yaml:"telegram"`
	Backtest Backtest `yaml:"backtest"`
	Signals  Signals  `yaml:"signals"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	ResultsDir string `yaml:"results_dir"`
	ReportPath string `yaml:"report_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Exchange holds the endpoints of the candle sources.
type Exchange struct {
	Upbit   Endpoint `yaml:"upbit"`
	Binance Endpoint `yaml:"binance"`
	Alpaca  Alpaca   `yaml:"alpaca"`
}

// Endpoint is a REST endpoint with a request budget.
type Endpoint struct {
	BaseURL         string `yaml:"base_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	DataURL         string `yaml:"data_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Telegram holds the bot credentials used for signal notifications.
type Telegram struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

// Backtest configures batch runs.
type Backtest struct {
	Market     string          `yaml:"market"`
	Markets    []string        `yaml:"markets"`
	Strategies []string        `yaml:"strategies"`
	Count      int             `yaml:"count"`
	Workers    int             `yaml:"workers"`
	Sizing     strategy.Params `yaml:"sizing"`
}

// Signals configures live signal runs.
type Signals struct {
	Strategies []string `yaml:"strategies"`
	Count      int      `yaml:"count"`
	// Ranked restricts each strategy to the markets the ranker assigned it.
	Ranked bool `yaml:"ranked"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used for fields a file leaves unset.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/coinbt.db",
			ResultsDir: "results",
			ReportPath: "best_strategy.txt",
		},
		Server:  Server{Host: "127.0.0.1", Port: 8080},
		Logging: Logging{Level: "info", Format: "text"},
		Exchange: Exchange{
			Upbit:   Endpoint{RateLimitPerMin: 600},
			Binance: Endpoint{RateLimitPerMin: 1200},
			Alpaca:  Alpaca{RateLimitPerMin: 200},
		},
		Backtest: Backtest{
			Market:  "upbit",
			Markets: []string{"KRW-BTC", "KRW-ETH", "KRW-XRP", "KRW-SOL", "KRW-DOGE"},
			Count:   200,
			Workers: 4,
			Sizing:  strategy.DefaultParams(),
		},
		Signals: Signals{Count: 200},
	}
}

// Path returns the config file named by COINBT_CONFIG, or DefaultPath.
func Path() string {
	if v := os.Getenv("COINBT_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path over Default and
// then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOptional is Load, except that a missing file yields Default with the
// environment overrides applied.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = Default()
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	return cfg, err
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COINBT_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("COINBT_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}

	// CHAT_ID is the older name; TELEGRAM_CHAT_ID wins when both are set.
	if v := os.Getenv("CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Exchange.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Exchange.Alpaca.APISecret = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars take priority.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Exchange.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Exchange.Alpaca.APISecret = v
	}
}
