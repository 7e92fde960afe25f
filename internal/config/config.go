package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"HorizonTrader/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Broker struct {
		Kind         string  `yaml:"kind"` // paper | http
		BaseURL      string  `yaml:"base_url"`
		APIKey       string  `yaml:"api_key"`
		Exchange     string  `yaml:"exchange"`
		Product      string  `yaml:"product"`
		StartEquity  float64 `yaml:"paper_starting_equity"`
		PaperState   string  `yaml:"paper_state_file"`
		OrdersPerSec float64 `yaml:"orders_per_sec"`
	} `yaml:"broker"`
	DataSource struct {
		Kind         string  `yaml:"kind"` // yahoo | mock
		BaseURL      string  `yaml:"base_url"`
		EquitySuffix string  `yaml:"equity_suffix"`
		MockPrice    float64 `yaml:"mock_price"`
	} `yaml:"data_source"`
	Strategy struct {
		EnterThreshold float64 `yaml:"enter_threshold"`
		ExitThreshold  float64 `yaml:"exit_threshold"`
	} `yaml:"strategy"`
	Risk struct {
		HorizonFraction    map[string]float64 `yaml:"horizon_fraction"`
		MaxSharesPerSymbol float64            `yaml:"max_shares_per_symbol"`
		BuyCooldown        time.Duration      `yaml:"buy_cooldown"`
		MaxBuysPerDay      int                `yaml:"max_buys_per_day"`
		Timezone           string             `yaml:"timezone"`
		WholeShares        *bool              `yaml:"whole_shares"`
	} `yaml:"risk"`
	Timebox struct {
		MaxHold    map[string]time.Duration `yaml:"max_hold"`
		ResetOnAdd bool                     `yaml:"reset_on_add"`
	} `yaml:"timebox"`
	State struct {
		LedgerBackend string `yaml:"ledger_backend"` // file | sqlite
		LedgerPath    string `yaml:"ledger_path"`
		RunLogPath    string `yaml:"run_log_path"`
		SQLitePath    string `yaml:"sqlite_path"`
	} `yaml:"state"`
	Schedule struct {
		StocksCron      string   `yaml:"stocks_cron"`
		CryptoCron      string   `yaml:"crypto_cron"`
		SweepCron       string   `yaml:"sweep_cron"`
		Timezone        string   `yaml:"timezone"`
		WatchlistStocks []string `yaml:"watchlist_stocks"`
		WatchlistCrypto []string `yaml:"watchlist_crypto"`
		EnableCrypto    bool     `yaml:"enable_crypto"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Timeouts struct {
		Broker time.Duration `yaml:"broker"`
		Agent  time.Duration `yaml:"agent"`
		Data   time.Duration `yaml:"data"`
	} `yaml:"timeouts"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console | json
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads .env, then the YAML file, then applies environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BROKER"); v != "" {
		cfg.Broker.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("BROKER_BASE_URL"); v != "" {
		cfg.Broker.BaseURL = v
	}
	if v := os.Getenv("BROKER_API_KEY"); v != "" {
		cfg.Broker.APIKey = v
	}
	if v := os.Getenv("DATA_SOURCE"); v != "" {
		cfg.DataSource.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("MEAN_CONF_TH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Strategy.EnterThreshold = f
		}
	}
	if v := os.Getenv("EXIT_CONF_TH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Strategy.ExitThreshold = f
		}
	}
	if v := os.Getenv("PAPER_STARTING_EQUITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Broker.StartEquity = f
		}
	}
	if v := os.Getenv("ENABLE_CRYPTO"); v != "" {
		cfg.Schedule.EnableCrypto = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("WATCHLIST_STOCKS"); v != "" {
		cfg.Schedule.WatchlistStocks = splitList(v)
	}
	if v := os.Getenv("WATCHLIST_CRYPTO"); v != "" {
		cfg.Schedule.WatchlistCrypto = splitList(v)
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.State.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Broker.Kind == "" {
		cfg.Broker.Kind = "paper"
	}
	if cfg.Broker.Exchange == "" {
		cfg.Broker.Exchange = "NSE"
	}
	if cfg.Broker.Product == "" {
		cfg.Broker.Product = "CNC"
	}
	if cfg.Broker.StartEquity == 0 {
		cfg.Broker.StartEquity = 100000
	}
	if cfg.Broker.PaperState == "" {
		cfg.Broker.PaperState = "state/paper_account.json"
	}
	if cfg.Broker.OrdersPerSec == 0 {
		cfg.Broker.OrdersPerSec = 2
	}
	if cfg.DataSource.Kind == "" {
		cfg.DataSource.Kind = "yahoo"
	}
	if cfg.DataSource.BaseURL == "" {
		cfg.DataSource.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.DataSource.MockPrice == 0 {
		cfg.DataSource.MockPrice = 100
	}
	if cfg.Strategy.EnterThreshold == 0 {
		cfg.Strategy.EnterThreshold = 0.60
	}
	if cfg.Strategy.ExitThreshold == 0 {
		cfg.Strategy.ExitThreshold = 0.45
	}
	if cfg.Risk.HorizonFraction == nil {
		cfg.Risk.HorizonFraction = map[string]float64{}
	}
	for h, f := range map[string]float64{"short": 0.05, "mid": 0.10, "long": 0.15} {
		if _, ok := cfg.Risk.HorizonFraction[h]; !ok {
			cfg.Risk.HorizonFraction[h] = f
		}
	}
	if cfg.Risk.BuyCooldown == 0 {
		cfg.Risk.BuyCooldown = 60 * time.Minute
	}
	if cfg.Risk.MaxBuysPerDay == 0 {
		cfg.Risk.MaxBuysPerDay = 2
	}
	if cfg.Risk.Timezone == "" {
		cfg.Risk.Timezone = "UTC"
	}
	if cfg.Risk.WholeShares == nil {
		v := true
		cfg.Risk.WholeShares = &v
	}
	if cfg.Timebox.MaxHold == nil {
		cfg.Timebox.MaxHold = map[string]time.Duration{}
	}
	for h, d := range map[string]time.Duration{"short": 3 * 24 * time.Hour, "mid": 30 * 24 * time.Hour, "long": 180 * 24 * time.Hour} {
		if _, ok := cfg.Timebox.MaxHold[h]; !ok {
			cfg.Timebox.MaxHold[h] = d
		}
	}
	if cfg.State.LedgerBackend == "" {
		cfg.State.LedgerBackend = "file"
	}
	if cfg.State.LedgerPath == "" {
		cfg.State.LedgerPath = "state/positions.json"
	}
	if cfg.State.RunLogPath == "" {
		cfg.State.RunLogPath = "state/auto_runs.jsonl"
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "state/horizon_trader.db"
	}
	if cfg.Schedule.StocksCron == "" {
		cfg.Schedule.StocksCron = "0 2,32 9-15 * * 1-5"
	}
	if cfg.Schedule.CryptoCron == "" {
		cfg.Schedule.CryptoCron = "0 2,32 * * * *"
	}
	if cfg.Schedule.SweepCron == "" {
		cfg.Schedule.SweepCron = "0 */5 * * * *"
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "Asia/Kolkata"
	}
	if len(cfg.Schedule.WatchlistStocks) == 0 {
		cfg.Schedule.WatchlistStocks = []string{"RELIANCE", "TCS", "INFY"}
	}
	if len(cfg.Schedule.WatchlistCrypto) == 0 {
		cfg.Schedule.WatchlistCrypto = []string{"BTC/USD", "ETH/USD"}
	}
	if cfg.Timeouts.Broker == 0 {
		cfg.Timeouts.Broker = 15 * time.Second
	}
	if cfg.Timeouts.Agent == 0 {
		cfg.Timeouts.Agent = 20 * time.Second
	}
	if cfg.Timeouts.Data == 0 {
		cfg.Timeouts.Data = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	switch c.Broker.Kind {
	case "paper":
	case "http":
		if c.Broker.BaseURL == "" {
			return fmt.Errorf("broker.base_url is required for http broker")
		}
		if c.Broker.APIKey == "" {
			return fmt.Errorf("broker.api_key is required for http broker")
		}
	default:
		return fmt.Errorf("broker.kind must be paper or http, got %q", c.Broker.Kind)
	}
	switch c.DataSource.Kind {
	case "yahoo", "mock":
	default:
		return fmt.Errorf("data_source.kind must be yahoo or mock, got %q", c.DataSource.Kind)
	}
	if c.Strategy.EnterThreshold <= 0 || c.Strategy.EnterThreshold > 1 {
		return fmt.Errorf("strategy.enter_threshold must be in (0,1]")
	}
	if c.Strategy.ExitThreshold <= 0 || c.Strategy.ExitThreshold > 1 {
		return fmt.Errorf("strategy.exit_threshold must be in (0,1]")
	}
	for h, f := range c.Risk.HorizonFraction {
		if _, err := model.ParseHorizon(h); err != nil {
			return fmt.Errorf("risk.horizon_fraction: %w", err)
		}
		if f < 0 || f > 1 {
			return fmt.Errorf("risk.horizon_fraction.%s must be in [0,1]", h)
		}
	}
	for h := range c.Timebox.MaxHold {
		if _, err := model.ParseHorizon(h); err != nil {
			return fmt.Errorf("timebox.max_hold: %w", err)
		}
	}
	if c.Risk.MaxSharesPerSymbol < 0 {
		return fmt.Errorf("risk.max_shares_per_symbol must not be negative")
	}
	if c.Broker.StartEquity <= 0 {
		return fmt.Errorf("broker.paper_starting_equity must be positive")
	}
	switch c.State.LedgerBackend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("state.ledger_backend must be file or sqlite, got %q", c.State.LedgerBackend)
	}
	return nil
}

// Warnings returns non-fatal configuration oddities.
func (c *Config) Warnings() []string {
	var w []string
	if c.Strategy.ExitThreshold > c.Strategy.EnterThreshold {
		w = append(w, "strategy.exit_threshold is above enter_threshold")
	}
	if _, err := time.LoadLocation(c.Risk.Timezone); err != nil {
		w = append(w, fmt.Sprintf("risk.timezone %q unknown, falling back to UTC", c.Risk.Timezone))
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		w = append(w, fmt.Sprintf("schedule.timezone %q unknown, falling back to UTC", c.Schedule.Timezone))
	}
	if c.Telegram.BotToken == "" || c.Telegram.ChatID == "" {
		w = append(w, "telegram not configured, notifications disabled")
	}
	return w
}

// Location resolves name, falling back to UTC.
func Location(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HorizonFractions converts the string-keyed config map.
func (c *Config) HorizonFractions() map[model.Horizon]float64 {
	out := make(map[model.Horizon]float64, len(c.Risk.HorizonFraction))
	for k, v := range c.Risk.HorizonFraction {
		out[model.Horizon(strings.ToLower(k))] = v
	}
	return out
}

// MaxHold converts the string-keyed timebox map.
func (c *Config) MaxHold() map[model.Horizon]time.Duration {
	out := make(map[model.Horizon]time.Duration, len(c.Timebox.MaxHold))
	for k, v := range c.Timebox.MaxHold {
		out[model.Horizon(strings.ToLower(k))] = v
	}
	return out
}
