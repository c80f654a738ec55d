package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/solana"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/venue"
)

func setWallet(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	addr := solana.EncodeAddress(pub)
	t.Setenv("WALLET_ADDRESS", addr)
	return addr
}

func TestLoad_Defaults(t *testing.T) {
	setWallet(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.False(t, cfg.AutoExecuteExits)
	assert.Equal(t, venue.BagsDefaultURL, cfg.BagsAPIURL)
	assert.Equal(t, venue.JupiterDefaultURL, cfg.JupiterAPIURL)
	assert.Equal(t, 100, cfg.DefaultSlippageBps)
	assert.Equal(t, 30*time.Second, cfg.MonitorInterval)
	assert.Equal(t, venue.DefaultTimeout, cfg.VenueTimeout)
	assert.True(t, cfg.DefaultTPPercent.Equal(decimal.NewFromInt(50)))
	assert.True(t, cfg.DefaultTrailPercent.IsZero())
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_FromEnv(t *testing.T) {
	setWallet(t)
	t.Setenv("DRY_RUN", "false")
	t.Setenv("SIGNER_URL", "http://127.0.0.1:8899")
	t.Setenv("AUTO_EXECUTE_EXITS", "true")
	t.Setenv("MONITOR_INTERVAL", "15s")
	t.Setenv("DEFAULT_TRAIL_PERCENT", "12.5")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, "http://127.0.0.1:8899", cfg.SignerURL)
	assert.True(t, cfg.AutoExecuteExits)
	assert.Equal(t, 15*time.Second, cfg.MonitorInterval)
	assert.True(t, cfg.DefaultTrailPercent.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, int64(-100123), cfg.TelegramChatID)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"live without signer": {"DRY_RUN": "false"},
		"bad wallet":          {"WALLET_ADDRESS": "not-base58-0OIl"},
		"sl at 100":           {"DEFAULT_SL_PERCENT": "100"},
		"tp too low":          {"DEFAULT_TP_PERCENT": "2"},
		"slippage":            {"DEFAULT_SLIPPAGE_BPS": "0"},
		"fast monitor":        {"MONITOR_INTERVAL": "100ms"},
		"chat id":             {"TELEGRAM_CHAT_ID": "abc"},
		"token without chat":  {"TELEGRAM_BOT_TOKEN": "token"},
		"trail":               {"DEFAULT_TRAIL_PERCENT": "100"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setWallet(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_PaperModeStillNeedsWallet(t *testing.T) {
	t.Setenv("WALLET_ADDRESS", "")
	t.Setenv("DRY_RUN", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WALLET_ADDRESS")
}
