package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "polyhedge.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DecodesOverDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "live"

[wallet]
private_key = "0xabc"

[hedging]
interval = "45s"
trigger_loss_pct = 25
min_hold_time = "5m"

[reserve]
min_reserve_usd = 40
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeLive, cfg.Mode)
	assert.False(t, cfg.DryRun())
	assert.Equal(t, 45*time.Second, cfg.Hedging.Interval.Duration)
	assert.Equal(t, 25.0, cfg.Hedging.TriggerLossPct)
	assert.Equal(t, 5*time.Minute, cfg.Hedging.MinHoldTime.Duration)
	assert.Equal(t, 40.0, cfg.Reserve.MinReserveUSD)
	assert.Equal(t, 50.0, cfg.Hedging.ForceLiquidationPct, "untouched keys keep defaults")
	assert.Equal(t, "https://clob.polymarket.com", cfg.Polymarket.ClobHost)
	require.NoError(t, cfg.Validate())
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeTOML(t, `
[hedging]
trigger_loss = 25
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hedging.trigger_loss")
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeTOML(t, `
[hedging]
interval = "soon"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POLYHEDGE_MODE", "live")
	t.Setenv("POLYHEDGE_WALLET_PRIVATE_KEY", "0xfeed")
	t.Setenv("POLYHEDGE_HEDGING_INTERVAL", "1m")
	t.Setenv("POLYHEDGE_HEDGING_MAX_HEDGE_USD", "12.5")
	t.Setenv("POLYHEDGE_REDIS_ENABLED", "true")
	t.Setenv("POLYHEDGE_NOTIFY_EVENTS", " hedge_placed, ,funds_freed ")
	t.Setenv("POLYHEDGE_SERVER_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ModeLive, cfg.Mode)
	assert.Equal(t, "0xfeed", cfg.Wallet.PrivateKey)
	assert.Equal(t, time.Minute, cfg.Hedging.Interval.Duration)
	assert.Equal(t, 12.5, cfg.Hedging.MaxHedgeUSD)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"hedge_placed", "funds_freed"}, cfg.Notify.Events)
	assert.Equal(t, 8080, cfg.Server.Port, "unparsable values are ignored")
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "paper"
	cfg.LogLevel = "loud"
	cfg.Polymarket.SignatureType = 2
	cfg.S3.Enabled = true
	cfg.Reserve.ReservePct = 1.5
	cfg.Notify.TelegramToken = "tok"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown mode "paper"`,
		`unknown log_level "loud"`,
		"funder_address is required with signature_type 2",
		"s3: archiving requires postgres.enabled",
		"reserve_pct",
		"telegram_token and telegram_chat_id",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_DryRunNeedsAnAddress(t *testing.T) {
	cfg := Defaults()
	require.Error(t, cfg.Validate())

	cfg.Wallet.FunderAddress = "0x00000000000000000000000000000000000000aa"
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.DryRun())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xsecret"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.Notify.TelegramToken = "123:abc"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "***", out.Postgres.DSN)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Empty(t, out.Wallet.KeyPassword, "empty secrets stay empty")
	assert.Equal(t, "0xsecret", cfg.Wallet.PrivateKey, "original untouched")

	out.Notify.Events[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Notify.Events[0])
}

func TestExampleFileMatchesSchema(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	require.NoError(t, err)

	def := Defaults()
	assert.Equal(t, def.Hedging, cfg.Hedging)
	assert.Equal(t, def.Executor, cfg.Executor)
	assert.Equal(t, def.Reserve, cfg.Reserve)
}
