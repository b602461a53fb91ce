package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LoggingConfig  `yaml:"log"`
	REST     RESTConfig     `yaml:"rest"`
	WS       WSConfig       `yaml:"ws"`
	State    StateConfig    `yaml:"state"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Telegram TelegramConfig `yaml:"telegram"`
	History  HistoryConfig  `yaml:"history"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type WSConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	MaxPriceAge    time.Duration `yaml:"max_price_age"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// SweepConfig drives the per-cycle sweep pipeline. Whitelisted assets are
// never sold; the target asset is always part of the effective whitelist.
type SweepConfig struct {
	Target              string        `yaml:"target"`
	Whitelist           []string      `yaml:"whitelist"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	MinQuoteNotional    float64       `yaml:"min_quote_notional"`
	DryRun              *bool         `yaml:"dry_run"`
	AutoRedeemFlexible  bool          `yaml:"auto_redeem_flexible"`
	AutoTransferFunding bool          `yaml:"auto_transfer_funding"`
	AutoConvertDust     bool          `yaml:"auto_convert_dust"`
	DustCooldown        time.Duration `yaml:"dust_cooldown"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

type HistoryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	DSN       string `yaml:"dsn"`
	Schema    string `yaml:"schema"`
	QueueSize int    `yaml:"queue_size"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.REST.BaseURL == "" {
		cfg.REST.BaseURL = "https://api.binance.com"
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.WS.URL == "" {
		cfg.WS.URL = "wss://stream.binance.com:9443/ws"
	}
	if cfg.WS.ReconnectDelay == 0 {
		cfg.WS.ReconnectDelay = 3 * time.Second
	}
	if cfg.WS.MaxPriceAge == 0 {
		cfg.WS.MaxPriceAge = 30 * time.Second
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/binance-sweep-bot.db"
	}
	if cfg.Sweep.Target == "" {
		cfg.Sweep.Target = "USDT"
	}
	cfg.Sweep.Target = strings.ToUpper(strings.TrimSpace(cfg.Sweep.Target))
	if cfg.Sweep.Whitelist == nil {
		cfg.Sweep.Whitelist = []string{"BNB", "USDT", "BUSD", "USDC", "FDUSD"}
	}
	for i, asset := range cfg.Sweep.Whitelist {
		cfg.Sweep.Whitelist[i] = strings.ToUpper(strings.TrimSpace(asset))
	}
	if cfg.Sweep.PollInterval == 0 {
		cfg.Sweep.PollInterval = time.Minute
	}
	if cfg.Sweep.MinQuoteNotional == 0 {
		cfg.Sweep.MinQuoteNotional = 5
	}
	if cfg.Sweep.DryRun == nil {
		dryRun := true
		cfg.Sweep.DryRun = &dryRun
	}
	if cfg.Sweep.DustCooldown == 0 {
		cfg.Sweep.DustCooldown = time.Hour
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9001"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.History.Schema == "" {
		cfg.History.Schema = "public"
	}
	if cfg.History.QueueSize == 0 {
		cfg.History.QueueSize = 256
	}
}

func validate(cfg *Config) error {
	switch cfg.Sweep.Target {
	case "USDT", "BNB":
	default:
		return fmt.Errorf("sweep.target must be USDT or BNB, got %q", cfg.Sweep.Target)
	}
	if cfg.Sweep.PollInterval <= 0 {
		return errors.New("sweep.poll_interval must be > 0")
	}
	if cfg.Sweep.MinQuoteNotional < 0 {
		return errors.New("sweep.min_quote_notional must be >= 0")
	}
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.DSN) == "" {
		return errors.New("history.dsn is required when history is enabled")
	}
	return nil
}

// DryRunValue reports the effective dry-run flag; unset means dry-run so a
// bare config can never place live orders by accident.
func (s SweepConfig) DryRunValue() bool {
	if s.DryRun == nil {
		return true
	}
	return *s.DryRun
}

// EffectiveWhitelist returns the user whitelist plus the sweep target, which
// must never be sold regardless of the configured list.
func (s SweepConfig) EffectiveWhitelist() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Whitelist)+1)
	for _, asset := range s.Whitelist {
		asset = strings.ToUpper(strings.TrimSpace(asset))
		if asset != "" {
			set[asset] = struct{}{}
		}
	}
	set[s.Target] = struct{}{}
	return set
}
