package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "worker"

[postgres]
host = "db.internal"

[worker]
interval = "30s"

[chain]
rpc_url = "https://mainnet.example/rpc"

[augur]
universe = "0xE991247b78F937D7B69cFC00f1A487A293557677"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "worker", cfg.Mode)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 30*time.Second, cfg.Worker.Interval.Duration)
	// Untouched fields keep their defaults.
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.LogLevel)

	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VEIL_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("VEIL_SERVER_PORT", "9999")
	t.Setenv("VEIL_WORKER_INTERVAL", "1m")
	t.Setenv("VEIL_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("VEIL_WORKER_ENABLED", "false")

	path := writeConfig(t, `
mode = "api"

[postgres]
password = "from-file"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Worker.Interval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Worker.Enabled)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "banana"
	cfg.Postgres.Host = ""
	cfg.Redis.Addr = ""
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "postgres: host")
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "server: port")
}

func TestValidateChainRequiredPerMode(t *testing.T) {
	cfg := Defaults()
	cfg.Chain.RPCURL = ""
	cfg.Augur.Universe = ""

	// Chain settings are irrelevant to a pure API deployment.
	cfg.Mode = "api"
	assert.NoError(t, cfg.Validate())

	cfg.Mode = "worker"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc_url")
	assert.Contains(t, err.Error(), "universe")
}

func TestValidateKeystoreNeedsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Augur.Universe = "0xE991247b78F937D7B69cFC00f1A487A293557677"
	cfg.Wallet.EncryptedKeyPath = "keystore.json"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password")

	cfg.Wallet.KeyPassword = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestValidateDSNSkipsHostChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "api"
	cfg.Postgres.Host = ""
	cfg.Postgres.Database = ""
	cfg.Postgres.DSN = "postgres://user:pass@db:5432/veil"

	assert.NoError(t, cfg.Validate())
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "aabbcc"
	cfg.Postgres.Password = "pgpass"
	cfg.Server.APIKey = "serverkey"
	cfg.Notify.TelegramToken = "tgtoken"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	// Non-secret fields survive untouched, and the original is unmodified.
	assert.Equal(t, cfg.Postgres.Host, out.Postgres.Host)
	assert.Equal(t, "aabbcc", cfg.Wallet.PrivateKey)
}
