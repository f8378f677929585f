package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load decodes the TOML file at path over Defaults(), loads .env when
// present, and applies POLYHEDGE_* overrides. An empty path skips the file.
// The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	_ = godotenv.Load()
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides lets deployments inject secrets and the handful of
// thresholds operators tune most without editing the file.
func applyEnvOverrides(cfg *Config) {
	// wallet
	setStr(&cfg.Wallet.PrivateKey, "POLYHEDGE_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.FunderAddress, "POLYHEDGE_WALLET_FUNDER_ADDRESS")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POLYHEDGE_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POLYHEDGE_WALLET_KEY_PASSWORD")

	// polymarket
	setStr(&cfg.Polymarket.ClobHost, "POLYHEDGE_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYHEDGE_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.DataHost, "POLYHEDGE_POLYMARKET_DATA_HOST")
	setInt(&cfg.Polymarket.ChainID, "POLYHEDGE_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "POLYHEDGE_POLYMARKET_SIGNATURE_TYPE")

	// redis
	setBool(&cfg.Redis.Enabled, "POLYHEDGE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYHEDGE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYHEDGE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYHEDGE_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "POLYHEDGE_REDIS_TLS_ENABLED")

	// postgres
	setBool(&cfg.Postgres.Enabled, "POLYHEDGE_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POLYHEDGE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYHEDGE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYHEDGE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYHEDGE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYHEDGE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYHEDGE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYHEDGE_POSTGRES_SSL_MODE")

	// s3
	setBool(&cfg.S3.Enabled, "POLYHEDGE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYHEDGE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYHEDGE_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYHEDGE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYHEDGE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYHEDGE_S3_SECRET_KEY")

	// hedging
	setDuration(&cfg.Hedging.Interval, "POLYHEDGE_HEDGING_INTERVAL")
	setFloat64(&cfg.Hedging.TriggerLossPct, "POLYHEDGE_HEDGING_TRIGGER_LOSS_PCT")
	setFloat64(&cfg.Hedging.ForceLiquidationPct, "POLYHEDGE_HEDGING_FORCE_LIQUIDATION_PCT")
	setFloat64(&cfg.Hedging.MaxHedgeUSD, "POLYHEDGE_HEDGING_MAX_HEDGE_USD")
	setBool(&cfg.Hedging.HedgeUpEnabled, "POLYHEDGE_HEDGING_HEDGE_UP_ENABLED")
	setBool(&cfg.Hedging.ExitEnabled, "POLYHEDGE_HEDGING_EXIT_ENABLED")
	setStr(&cfg.Hedging.ReservePolicy, "POLYHEDGE_HEDGING_RESERVE_POLICY")

	// reserve
	setBool(&cfg.Reserve.Unlimited, "POLYHEDGE_RESERVE_UNLIMITED")
	setFloat64(&cfg.Reserve.MinReserveUSD, "POLYHEDGE_RESERVE_MIN_RESERVE_USD")
	setFloat64(&cfg.Reserve.ReservePct, "POLYHEDGE_RESERVE_RESERVE_PCT")

	// server
	setBool(&cfg.Server.Enabled, "POLYHEDGE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYHEDGE_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "POLYHEDGE_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYHEDGE_SERVER_CORS_ORIGINS")

	// notify
	setStr(&cfg.Notify.TelegramToken, "POLYHEDGE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYHEDGE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYHEDGE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYHEDGE_NOTIFY_EVENTS")

	setStr(&cfg.Mode, "POLYHEDGE_MODE")
	setStr(&cfg.LogLevel, "POLYHEDGE_LOG_LEVEL")
}

// Each setter leaves dst alone when the variable is unset or unparsable.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = n
	}
}

func setFloat64(dst *float64, key string) {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		*dst = f
	}
}

func setBool(dst *bool, key string) {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = b
	}
}

func setDuration(dst *duration, key string) {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		dst.Duration = d
	}
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
