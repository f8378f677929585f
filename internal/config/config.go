// Package config defines the polyhedge configuration file and validates it.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields are decoded from TOML over
// Defaults() and then overridden by POLYHEDGE_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Redis      RedisConfig      `toml:"redis"`
	Postgres   PostgresConfig   `toml:"postgres"`
	S3         S3Config         `toml:"s3"`
	Hedging    HedgingConfig    `toml:"hedging"`
	Executor   ExecutorConfig   `toml:"executor"`
	Reserve    ReserveConfig    `toml:"reserve"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds the signing key. A funder (proxy or Safe) address may
// be set when funds live outside the signing EOA.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	FunderAddress    string `toml:"funder_address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// HasKey reports whether a signing key source is configured.
func (w WalletConfig) HasKey() bool {
	return w.PrivateKey != "" || w.EncryptedKeyPath != ""
}

// PolymarketConfig holds venue endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost      string   `toml:"clob_host"`
	GammaHost     string   `toml:"gamma_host"`
	DataHost      string   `toml:"data_host"`
	ChainID       int      `toml:"chain_id"`
	SignatureType int      `toml:"signature_type"`
	FeeRateBps    int      `toml:"fee_rate_bps"`
	RequestsPerS  float64  `toml:"requests_per_second"`
	BookMaxAge    duration `toml:"book_max_age"`
}

// RedisConfig enables the shared market lock and metadata cache. With Redis
// disabled the process falls back to an in-process lock.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	MarketTTL  duration `toml:"market_ttl"`
}

// PostgresConfig enables the hedge audit journal.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config enables archiving journal rows to object storage. Archiving needs
// Postgres.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	RetentionDays  int      `toml:"retention_days"`
	ArchiveEvery   duration `toml:"archive_every"`
	Purge          bool     `toml:"purge"`
}

// HedgingConfig mirrors the engine's thresholds. Percentages are whole
// percents; prices are dollars in (0,1).
type HedgingConfig struct {
	Interval duration `toml:"interval"`

	TriggerLossPct      float64  `toml:"trigger_loss_pct"`
	ForceLiquidationPct float64  `toml:"force_liquidation_pct"`
	EmergencyLossPct    float64  `toml:"emergency_loss_pct"`
	MaxEntryPrice       float64  `toml:"max_entry_price"`
	MinHoldTime         duration `toml:"min_hold_time"`
	MaxBookSpread       float64  `toml:"max_book_spread"`
	MaxMarkDivergence   float64  `toml:"max_mark_divergence"`

	MaxHedgeUSD        float64 `toml:"max_hedge_usd"`
	MinHedgeUSD        float64 `toml:"min_hedge_usd"`
	BreakEvenBufferPct float64 `toml:"break_even_buffer_pct"`
	SlippagePct        float64 `toml:"slippage_pct"`
	TakerFeePct        float64 `toml:"taker_fee_pct"`

	TooExpensivePrice               float64 `toml:"too_expensive_price"`
	NearResolutionTooExpensivePrice float64 `toml:"near_resolution_too_expensive_price"`
	MarketResolvedPrice             float64 `toml:"market_resolved_price"`

	NearResolutionHedge     bool     `toml:"near_resolution_hedge"`
	NoHedgeWindow           duration `toml:"no_hedge_window"`
	NoHedgeWindowMinLossPct float64  `toml:"no_hedge_window_min_loss_pct"`
	NearCloseWindow         duration `toml:"near_close_window"`
	NearCloseMinDropCents   float64  `toml:"near_close_min_drop_cents"`
	NearCloseMinLossPct     float64  `toml:"near_close_min_loss_pct"`

	HedgeUpEnabled  bool     `toml:"hedge_up_enabled"`
	HedgeUpMinPrice float64  `toml:"hedge_up_min_price"`
	HedgeUpMaxPrice float64  `toml:"hedge_up_max_price"`
	HedgeUpAnytime  bool     `toml:"hedge_up_anytime"`
	HedgeUpWindow   duration `toml:"hedge_up_window"`
	HedgeUpMaxUSD   float64  `toml:"hedge_up_max_usd"`

	ExitEnabled bool    `toml:"exit_enabled"`
	ExitPrice   float64 `toml:"exit_price"`

	ReservePolicy   string  `toml:"reserve_policy"`
	AllowPartial    bool    `toml:"allow_partial"`
	MaxReserveUSD   float64 `toml:"max_reserve_usd"`
	FundingEnabled  bool    `toml:"funding_enabled"`
	FundingMaxSales int     `toml:"funding_max_sales"`

	CooldownDuration duration `toml:"cooldown"`
	MaxCooldowns     int      `toml:"max_cooldowns"`
	PairingTTL       duration `toml:"pairing_ttl"`
	MaxPairings      int      `toml:"max_pairings"`
	MaxTracked       int      `toml:"max_tracked_positions"`

	LockTTL         duration `toml:"lock_ttl"`
	SkipLogInterval duration `toml:"skip_log_interval"`

	MinShares        float64 `toml:"min_shares"`
	QuoteConcurrency int     `toml:"quote_concurrency"`
}

// ExecutorConfig tunes order submission.
type ExecutorConfig struct {
	DedupWindow   duration `toml:"dedup_window"`
	MaxAttempts   int      `toml:"max_attempts"`
	RetryBackoff  duration `toml:"retry_backoff"`
	MinOrderUSD   float64  `toml:"min_order_usd"`
	FillTolerance float64  `toml:"fill_tolerance"`
}

// ReserveConfig selects how much cash the engine keeps back. With
// Unlimited set, only per-hedge caps apply.
type ReserveConfig struct {
	Unlimited     bool    `toml:"unlimited"`
	MinReserveUSD float64 `toml:"min_reserve_usd"`
	ReservePct    float64 `toml:"reserve_pct"`
}

// duration lets TOML carry strings such as "30s" or "7h".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters. An empty APIKey leaves the
// mutating endpoints open; set one outside local development.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	// Per client IP; zero disables limiting.
	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`
}

// NotifyConfig holds chat channel credentials and the event kinds to send.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	Timeout           duration `toml:"timeout"`
}

const (
	ModeLive   = "live"
	ModeDryRun = "dry_run"
)

// Defaults returns the built-in configuration; config.example.toml lists
// the same values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:      "https://clob.polymarket.com",
			GammaHost:     "https://gamma-api.polymarket.com",
			DataHost:      "https://data-api.polymarket.com",
			ChainID:       137,
			SignatureType: 0,
			RequestsPerS:  8,
			BookMaxAge:    duration{time.Minute},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "polyhedge",
			MarketTTL:  duration{6 * time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polyhedge",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polyhedge-archive",
			ForcePathStyle: true,
			RetentionDays:  30,
			ArchiveEvery:   duration{24 * time.Hour},
		},
		Hedging: HedgingConfig{
			Interval: duration{30 * time.Second},

			TriggerLossPct:      20,
			ForceLiquidationPct: 50,
			EmergencyLossPct:    40,
			MaxEntryPrice:       0.75,
			MinHoldTime:         duration{2 * time.Minute},
			MaxBookSpread:       0.20,
			MaxMarkDivergence:   0.15,

			MaxHedgeUSD:        25,
			MinHedgeUSD:        1,
			BreakEvenBufferPct: 10,
			SlippagePct:        2,
			TakerFeePct:        1,

			TooExpensivePrice:               0.85,
			NearResolutionTooExpensivePrice: 0.90,
			MarketResolvedPrice:             0.95,

			NearResolutionHedge:     true,
			NoHedgeWindow:           duration{3 * time.Minute},
			NoHedgeWindowMinLossPct: 30,
			NearCloseWindow:         duration{15 * time.Minute},
			NearCloseMinDropCents:   10,
			NearCloseMinLossPct:     30,

			HedgeUpEnabled:  true,
			HedgeUpMinPrice: 0.85,
			HedgeUpMaxPrice: 0.95,
			HedgeUpWindow:   duration{30 * time.Minute},
			HedgeUpMaxUSD:   25,

			ExitEnabled: true,
			ExitPrice:   0.25,

			ReservePolicy:   "full",
			AllowPartial:    true,
			MaxReserveUSD:   100,
			FundingEnabled:  true,
			FundingMaxSales: 5,

			CooldownDuration: duration{10 * time.Minute},
			MaxCooldowns:     1000,
			PairingTTL:       duration{7 * 24 * time.Hour},
			MaxPairings:      500,
			MaxTracked:       5000,

			LockTTL:         duration{30 * time.Second},
			SkipLogInterval: duration{time.Minute},

			MinShares:        0.01,
			QuoteConcurrency: 8,
		},
		Executor: ExecutorConfig{
			DedupWindow:   duration{2 * time.Minute},
			MaxAttempts:   3,
			RetryBackoff:  duration{500 * time.Millisecond},
			MinOrderUSD:   1,
			FillTolerance: 0.01,
		},
		Reserve: ReserveConfig{
			MinReserveUSD: 25,
			ReservePct:    0.10,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:           8080,
			CORSOrigins:    []string{"http://localhost:3000"},
			RateLimitRPS:   5,
			RateLimitBurst: 20,
		},
		Notify: NotifyConfig{
			Events:  []string{"hedge_placed", "hedge_partial", "position_liquidated", "funds_freed", "hedge_exited"},
			Timeout: duration{10 * time.Second},
		},
		Mode:     ModeDryRun,
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate reports every problem in one error. Engine thresholds are
// checked again, in full, when the engine is built.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	switch strings.ToLower(c.Mode) {
	case ModeLive:
		if !c.Wallet.HasKey() {
			add("wallet: private_key or encrypted_key_path is required in live mode")
		}
	case ModeDryRun:
		if !c.Wallet.HasKey() && c.Wallet.FunderAddress == "" {
			add("wallet: dry_run needs a key or funder_address to read positions")
		}
	default:
		add("unknown mode %q (valid: live, dry_run)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		add("wallet: key_password is required with encrypted_key_path")
	}

	if c.Polymarket.ClobHost == "" || c.Polymarket.GammaHost == "" || c.Polymarket.DataHost == "" {
		add("polymarket: clob_host, gamma_host and data_host must be set")
	}
	if c.Polymarket.ChainID <= 0 {
		add("polymarket: chain_id must be positive")
	}
	if c.Polymarket.SignatureType < 0 || c.Polymarket.SignatureType > 2 {
		add("polymarket: signature_type must be 0 (EOA), 1 (proxy) or 2 (Safe), got %d", c.Polymarket.SignatureType)
	}
	if c.Polymarket.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		add("wallet: funder_address is required with signature_type %d", c.Polymarket.SignatureType)
	}
	if c.Polymarket.RequestsPerS <= 0 {
		add("polymarket: requests_per_second must be positive")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		add("redis: addr must not be empty when enabled")
	}
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" && (c.Postgres.Host == "" || c.Postgres.Database == "") {
			add("postgres: host and database are required (or set dsn)")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}
	if c.S3.Enabled {
		if !c.Postgres.Enabled {
			add("s3: archiving requires postgres.enabled")
		}
		if c.S3.Bucket == "" || c.S3.Region == "" {
			add("s3: bucket and region must be set")
		}
		if c.S3.RetentionDays < 1 {
			add("s3: retention_days must be >= 1")
		}
		if c.S3.ArchiveEvery.Duration <= 0 {
			add("s3: archive_every must be positive")
		}
	}

	if c.Hedging.Interval.Duration <= 0 {
		add("hedging: interval must be positive")
	}
	if c.Hedging.QuoteConcurrency < 1 {
		add("hedging: quote_concurrency must be >= 1")
	}
	if c.Executor.MaxAttempts < 1 {
		add("executor: max_attempts must be >= 1")
	}
	if c.Executor.FillTolerance < 0 || c.Executor.FillTolerance >= 1 {
		add("executor: fill_tolerance must be in [0,1)")
	}
	if c.Reserve.ReservePct < 0 || c.Reserve.ReservePct > 1 {
		add("reserve: reserve_pct must be in [0,1]")
	}
	if c.Reserve.MinReserveUSD < 0 {
		add("reserve: min_reserve_usd must not be negative")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		add("server: port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 0 {
		add("server: rate_limit_rps must not be negative")
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// DryRun reports whether orders are simulated.
func (c *Config) DryRun() bool {
	return strings.ToLower(c.Mode) != ModeLive
}
