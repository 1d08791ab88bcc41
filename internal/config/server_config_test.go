package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-ledger/internal/config"
)

func TestPrintServiceEnv(t *testing.T) {
	config := config.DefaultServiceConfigFromEnv()
	_, err := json.MarshalIndent(config, "", "  ")

	if err != nil {
		t.Fatal(err)
	}
}

func TestDefaults(t *testing.T) {
	t.Setenv("CI", "true")

	cfg := config.DefaultServiceConfigFromEnv()
	assert.Equal(t, zerolog.InfoLevel, cfg.Logger.Level)
	assert.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000001000"), cfg.Ledger.StoreAddress)
	assert.Equal(t, common.Address{}, cfg.Ledger.TokenModuleAddress)
	assert.Nil(t, cfg.Fees.MaxFees)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, 60*time.Second, cfg.Journal.ConnMaxLifetime)
	assert.Equal(t, "ledger", cfg.Metrics.Namespace)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CI", "true")
	t.Setenv("LEDGER_LOGGER_LEVEL", "debug")
	t.Setenv("LEDGER_FEES_RATE_NUMERATOR", "1")
	t.Setenv("LEDGER_FEES_RATE_DENOMINATOR", "1000")
	t.Setenv("LEDGER_FEES_MAX_FEES", "2000000000000000")
	t.Setenv("LEDGER_FEES_SINK_ADDRESS", "0x00000000000000000000000000000000000000fe")
	t.Setenv("LEDGER_LEDGER_TOKEN_MODULE_ADDRESS", "not an address")
	t.Setenv("LEDGER_JOURNAL_ENABLED", "true")
	t.Setenv("LEDGER_JOURNAL_PORT", "6543")

	cfg := config.DefaultServiceConfigFromEnv()
	assert.Equal(t, zerolog.DebugLevel, cfg.Logger.Level)
	assert.Equal(t, int64(1), cfg.Fees.RateNumerator)
	assert.Equal(t, int64(1000), cfg.Fees.RateDenominator)
	require.NotNil(t, cfg.Fees.MaxFees)
	assert.Equal(t, "2000000000000000", cfg.Fees.MaxFees.String())
	assert.Equal(t, common.HexToAddress("0xfe"), cfg.Fees.SinkAddress)
	assert.Equal(t, common.Address{}, cfg.Ledger.TokenModuleAddress)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "host=postgres port=6543 user=dbuser password= dbname=ledger sslmode=disable", cfg.Journal.ConnectionString())
}

func TestDotEnvLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".env.local")
	require.NoError(t, os.WriteFile(file, []byte("LEDGER_METRICS_NAMESPACE=from_file\n"), 0o600))

	got := map[string]string{}
	err := config.DotEnvLoad(file, func(key, value string) error {
		got[key] = value
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"LEDGER_METRICS_NAMESPACE": "from_file"}, got)

	err = config.DotEnvLoad(filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
}

func TestDotEnvOverridesEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".env.local")
	require.NoError(t, os.WriteFile(file, []byte("LEDGER_METRICS_NAMESPACE=from_file\n"), 0o600))

	t.Setenv("CI", "")
	t.Setenv("LEDGER_ENV_FILE", file)
	t.Setenv("LEDGER_METRICS_NAMESPACE", "from_env")

	cfg := config.DefaultServiceConfigFromEnv()
	assert.Equal(t, "from_file", cfg.Metrics.Namespace)
}

func TestJournalConnectionStringParams(t *testing.T) {
	c := config.Journal{
		Host:     "db",
		Port:     5432,
		Username: "u",
		Password: "p",
		Database: "d",
		AdditionalParams: map[string]string{
			"sslmode":          "require",
			"application_name": "ledger",
		},
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d application_name=ledger sslmode=require", c.ConnectionString())
}
