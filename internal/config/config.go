package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"StockSentinel/internal/logging"
)

// Range is an exclusive (Min, Max) bound. A zero Max means unbounded above.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Config holds all application configuration.
type Config struct {
	Data struct {
		PoolDir   string `yaml:"pool_dir"`
		SingleDir string `yaml:"single_dir"`
		PlanDir   string `yaml:"plan_dir"`
		ReplayDir string `yaml:"replay_dir"`
	} `yaml:"data"`
	DataSource struct {
		SnapshotURL string        `yaml:"snapshot_url"`
		HistoryURL  string        `yaml:"history_url"`
		QuoteURL    string        `yaml:"quote_url"`
		Timeout     time.Duration `yaml:"timeout"`
		RPS         float64       `yaml:"rps"`
		Burst       int           `yaml:"burst"`
	} `yaml:"data_source"`
	Fetch struct {
		MaxRetries   int           `yaml:"max_retries"`
		LookbackDays int           `yaml:"lookback_days"`
		Pacing       time.Duration `yaml:"pacing"`
		MaxSymbols   int           `yaml:"max_symbols"`
		Verbose      bool          `yaml:"verbose"`
	} `yaml:"fetch"`
	Filter struct {
		PctChange      Range   `yaml:"pct_change"`
		TurnoverRate   Range   `yaml:"turnover_rate"`
		MinVolumeRatio float64 `yaml:"min_volume_ratio"`
		MarketCap      Range   `yaml:"market_cap"`
	} `yaml:"filter"`
	Scoring struct {
		IncludeVolume *bool   `yaml:"include_volume"` // nil means true
		VolumeWindow  int     `yaml:"volume_window"`
		VolumeLow     float64 `yaml:"volume_low"`
		VolumeHigh    float64 `yaml:"volume_high"`
	} `yaml:"scoring"`
	Planner struct {
		BudgetPerStock float64 `yaml:"budget_per_stock"`
		LotSize        int     `yaml:"lot_size"`
		EntryFactor    string  `yaml:"entry_factor"`
		StopFactor     string  `yaml:"stop_factor"`
		TakeFactor     string  `yaml:"take_factor"`
	} `yaml:"planner"`
	Monitor struct {
		Symbol    string        `yaml:"symbol"`
		Interval  time.Duration `yaml:"interval"`
		TimePoint string        `yaml:"time_point"`
		MAPeriods int           `yaml:"ma_periods"`
		DataDir   string        `yaml:"data_dir"`
		StateFile string        `yaml:"state_file"`
	} `yaml:"monitor"`
	Schedule struct {
		ScreenCron  string `yaml:"screen_cron"`
		MonitorCron string `yaml:"monitor_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log   logging.Config `yaml:"log"`
	Proxy string         `yaml:"proxy"`
}

// LoadEnvFile loads a .env file into the process environment if it exists.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error; defaults fill every unset field.
func Load(path string) (*Config, error) {
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

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("MONITOR_SYMBOL"); v != "" {
		cfg.Monitor.Symbol = v
	}
	if v := os.Getenv("CRON_SCREEN"); v != "" {
		cfg.Schedule.ScreenCron = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MAX_SYMBOLS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fetch.MaxSymbols = n
		}
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Data.PoolDir == "" {
		cfg.Data.PoolDir = "data/stock_pool_data"
	}
	if cfg.Data.SingleDir == "" {
		cfg.Data.SingleDir = "data/single_stock_data"
	}
	if cfg.Data.PlanDir == "" {
		cfg.Data.PlanDir = "data/trading_plans"
	}
	if cfg.Data.ReplayDir == "" {
		cfg.Data.ReplayDir = cfg.Data.SingleDir
	}

	if cfg.DataSource.SnapshotURL == "" {
		cfg.DataSource.SnapshotURL = "https://82.push2.eastmoney.com"
	}
	if cfg.DataSource.HistoryURL == "" {
		cfg.DataSource.HistoryURL = "https://push2his.eastmoney.com"
	}
	if cfg.DataSource.QuoteURL == "" {
		cfg.DataSource.QuoteURL = "https://hq.sinajs.cn"
	}
	if cfg.DataSource.Timeout == 0 {
		cfg.DataSource.Timeout = 30 * time.Second
	}
	if cfg.DataSource.RPS == 0 {
		cfg.DataSource.RPS = 2
	}
	if cfg.DataSource.Burst == 0 {
		cfg.DataSource.Burst = 1
	}

	if cfg.Fetch.MaxRetries == 0 {
		cfg.Fetch.MaxRetries = 3
	}
	if cfg.Fetch.LookbackDays == 0 {
		cfg.Fetch.LookbackDays = 60
	}
	if cfg.Fetch.Pacing == 0 {
		cfg.Fetch.Pacing = time.Second
	}

	if cfg.Filter.PctChange == (Range{}) {
		cfg.Filter.PctChange = Range{Min: 3, Max: 5}
	}
	if cfg.Filter.TurnoverRate == (Range{}) {
		cfg.Filter.TurnoverRate = Range{Min: 4, Max: 10}
	}
	if cfg.Filter.MinVolumeRatio == 0 {
		cfg.Filter.MinVolumeRatio = 1
	}
	if cfg.Filter.MarketCap == (Range{}) {
		cfg.Filter.MarketCap = Range{Min: 50, Max: 100}
	}

	if cfg.Scoring.IncludeVolume == nil {
		on := true
		cfg.Scoring.IncludeVolume = &on
	}
	if cfg.Scoring.VolumeWindow == 0 {
		cfg.Scoring.VolumeWindow = 5
	}
	if cfg.Scoring.VolumeLow == 0 {
		cfg.Scoring.VolumeLow = 1.2
	}
	if cfg.Scoring.VolumeHigh == 0 {
		cfg.Scoring.VolumeHigh = 1.8
	}

	if cfg.Planner.BudgetPerStock == 0 {
		cfg.Planner.BudgetPerStock = 10000
	}
	if cfg.Planner.LotSize == 0 {
		cfg.Planner.LotSize = 100
	}
	if cfg.Planner.EntryFactor == "" {
		cfg.Planner.EntryFactor = "1.02"
	}
	if cfg.Planner.StopFactor == "" {
		cfg.Planner.StopFactor = "0.95"
	}
	if cfg.Planner.TakeFactor == "" {
		cfg.Planner.TakeFactor = "1.08"
	}

	if cfg.Monitor.Symbol == "" {
		cfg.Monitor.Symbol = "600900.SH"
	}
	if cfg.Monitor.Interval == 0 {
		cfg.Monitor.Interval = 60 * time.Second
	}
	if cfg.Monitor.TimePoint == "" {
		cfg.Monitor.TimePoint = "14:30"
	}
	if cfg.Monitor.MAPeriods == 0 {
		cfg.Monitor.MAPeriods = 20
	}
	if cfg.Monitor.DataDir == "" {
		cfg.Monitor.DataDir = "data/stock_data"
	}
	if cfg.Monitor.StateFile == "" {
		cfg.Monitor.StateFile = "data/monitor_state.json"
	}

	if cfg.Schedule.ScreenCron == "" {
		cfg.Schedule.ScreenCron = "0 40 14 * * 1-5"
	}
	if cfg.Schedule.MonitorCron == "" {
		cfg.Schedule.MonitorCron = "0 25 9 * * 1-5"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/stock_sentinel.db"
	}
}

// Validate checks that the numeric settings are coherent.
func (c *Config) Validate() error {
	for name, r := range map[string]Range{
		"filter.pct_change":    c.Filter.PctChange,
		"filter.turnover_rate": c.Filter.TurnoverRate,
		"filter.market_cap":    c.Filter.MarketCap,
	} {
		if r.Max != 0 && r.Max <= r.Min {
			return fmt.Errorf("%s: max must be greater than min", name)
		}
	}
	if c.Fetch.MaxRetries < 1 {
		return fmt.Errorf("fetch.max_retries must be at least 1")
	}
	if c.Fetch.LookbackDays < 30 {
		return fmt.Errorf("fetch.lookback_days must cover at least 30 days")
	}
	if c.Scoring.VolumeWindow < 1 {
		return fmt.Errorf("scoring.volume_window must be positive")
	}
	if c.Scoring.VolumeLow > c.Scoring.VolumeHigh {
		return fmt.Errorf("scoring.volume_low must not exceed scoring.volume_high")
	}
	if c.Planner.BudgetPerStock <= 0 {
		return fmt.Errorf("planner.budget_per_stock must be positive")
	}
	if c.Planner.LotSize <= 0 {
		return fmt.Errorf("planner.lot_size must be positive")
	}
	if _, err := time.Parse("15:04", c.Monitor.TimePoint); err != nil {
		return fmt.Errorf("monitor.time_point: %w", err)
	}
	if c.Monitor.Interval < time.Second {
		return fmt.Errorf("monitor.interval must be at least 1s")
	}
	return nil
}

// TelegramEnabled reports whether notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
