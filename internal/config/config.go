package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"YieldFlow/internal/calculator"
)

// Rate source kinds.
const (
	RateSourceHTTP   = "http"
	RateSourceSolana = "solana"
	RateSourceMock   = "mock"
)

// Store kinds.
const (
	StoreBolt = "bolt"
	StoreFile = "file"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Rate struct {
		Source       string `yaml:"source"`
		APIURL       string `yaml:"api_url"`
		RPCURL       string `yaml:"rpc_url"`
		StateAccount string `yaml:"state_account"`
		PriceOffset  int    `yaml:"price_offset"`
		MockRate     uint64 `yaml:"mock_rate"`
	} `yaml:"rate"`
	Escrow struct {
		Account        string `yaml:"account"`
		InitialBalance uint64 `yaml:"initial_balance"`
		LedgerPath     string `yaml:"ledger_path"`
		DryRun         bool   `yaml:"dry_run"`
	} `yaml:"escrow"`
	Fees struct {
		Enabled bool   `yaml:"enabled"`
		RateBps uint64 `yaml:"rate_bps"`
	} `yaml:"fees"`
	Schedule struct {
		SweepCron        string `yaml:"sweep_cron"`
		ReportCron       string `yaml:"report_cron"`
		NearThresholdPct uint64 `yaml:"near_threshold_pct"`
	} `yaml:"schedule"`
	Store struct {
		Kind string `yaml:"kind"`
		Path string `yaml:"path"`
	} `yaml:"store"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Projection struct {
		RateBps uint64 `yaml:"rate_bps"`
		Periods uint64 `yaml:"periods"`
		Label   string `yaml:"label"`
	} `yaml:"projection"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
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

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"RATE_SOURCE":        &c.Rate.Source,
		"RATE_API_URL":       &c.Rate.APIURL,
		"SOLANA_RPC_URL":     &c.Rate.RPCURL,
		"MARINADE_STATE":     &c.Rate.StateAccount,
		"ESCROW_ACCOUNT":     &c.Escrow.Account,
		"LEDGER_PATH":        &c.Escrow.LedgerPath,
		"CRON_SWEEP":         &c.Schedule.SweepCron,
		"CRON_REPORT":        &c.Schedule.ReportCron,
		"STORE_KIND":         &c.Store.Kind,
		"STORE_PATH":         &c.Store.Path,
		"SQLITE_PATH":        &c.Database.SQLitePath,
		"METRICS_ADDR":       &c.Metrics.Addr,
		"HTTPS_PROXY":        &c.Proxy,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("FEE_RATE_BPS"); v != "" {
		bps, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("FEE_RATE_BPS: %w", err)
		}
		c.Fees.RateBps = bps
	}
	if v := os.Getenv("FEES_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FEES_ENABLED: %w", err)
		}
		c.Fees.Enabled = enabled
	}
	if v := os.Getenv("RATE_PRICE_OFFSET"); v != "" {
		off, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_PRICE_OFFSET: %w", err)
		}
		c.Rate.PriceOffset = off
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Rate.Source == "" {
		c.Rate.Source = RateSourceHTTP
	}
	if c.Rate.APIURL == "" {
		c.Rate.APIURL = "https://api.marinade.finance/msol/price_sol"
	}
	if c.Rate.RPCURL == "" {
		c.Rate.RPCURL = "https://api.mainnet-beta.solana.com"
	}
	if c.Rate.MockRate == 0 {
		c.Rate.MockRate = 1_000_000_000
	}
	if c.Schedule.SweepCron == "" {
		c.Schedule.SweepCron = "0 */5 * * * *"
	}
	if c.Schedule.ReportCron == "" {
		c.Schedule.ReportCron = "0 0 8 * * *"
	}
	if c.Schedule.NearThresholdPct == 0 {
		c.Schedule.NearThresholdPct = 90
	}
	if c.Store.Kind == "" {
		c.Store.Kind = StoreBolt
	}
	if c.Store.Path == "" {
		if c.Store.Kind == StoreFile {
			c.Store.Path = "data/positions.json"
		} else {
			c.Store.Path = "data/positions.db"
		}
	}
	if c.Escrow.LedgerPath == "" {
		c.Escrow.LedgerPath = "data/ledger.db"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/yieldflow.db"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Projection.Label == "" {
		c.Projection.Label = fmt.Sprintf("%d periods", c.Projection.Periods)
	}
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	switch c.Rate.Source {
	case RateSourceHTTP:
		if c.Rate.APIURL == "" {
			return fmt.Errorf("rate.api_url is required")
		}
	case RateSourceSolana:
		if c.Rate.StateAccount == "" {
			return fmt.Errorf("rate.state_account is required for the solana source")
		}
		if _, err := solana.PublicKeyFromBase58(c.Rate.StateAccount); err != nil {
			return fmt.Errorf("rate.state_account: %w", err)
		}
		if c.Rate.PriceOffset <= 0 {
			return fmt.Errorf("rate.price_offset must be positive for the solana source")
		}
	case RateSourceMock:
	default:
		return fmt.Errorf("rate.source %q is not one of http, solana, mock", c.Rate.Source)
	}
	if c.Escrow.Account == "" {
		return fmt.Errorf("escrow.account is required")
	}
	if _, err := solana.PublicKeyFromBase58(c.Escrow.Account); err != nil {
		return fmt.Errorf("escrow.account: %w", err)
	}
	if c.Fees.RateBps > calculator.BasisPoints {
		return fmt.Errorf("fees.rate_bps must be at most %d", calculator.BasisPoints)
	}
	if c.Schedule.NearThresholdPct > 100 {
		return fmt.Errorf("schedule.near_threshold_pct must be at most 100")
	}
	if c.Store.Kind != StoreBolt && c.Store.Kind != StoreFile {
		return fmt.Errorf("store.kind %q is not one of bolt, file", c.Store.Kind)
	}
	return nil
}

// EscrowAccount returns the parsed escrow key. Call after Validate.
func (c *Config) EscrowAccount() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(c.Escrow.Account)
}

// StateAccount returns the parsed Marinade state key. Call after Validate.
func (c *Config) StateAccount() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(c.Rate.StateAccount)
}
