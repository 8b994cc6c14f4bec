package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
app:
  name: test-indexer
chains:
  - name: ethereum
    rpc_url: http://localhost:8545
    chain_id: 1
oracle:
  chain: ethereum
  feeds:
    - symbol: mAAPL
      address: "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"
pairs:
  - symbol: mTSLA
    chain: ethereum
    address: "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"
    base_decimals: 18
    quote_decimals: 6
risk:
  min_ratios:
    - symbol: mTSLA
      ratio: "1.3"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "test-indexer", cfg.App.Name)
	assert.Equal(t, int32(18), cfg.Decimal.Precision)
	assert.Equal(t, 15*time.Second, cfg.Ingestion.PollInterval)
	assert.Equal(t, []string{"1m", "5m", "15m", "1h", "4h", "1d"}, cfg.Ingestion.Intervals)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)

	// symbols keep their case through list-shaped sections
	require.Len(t, cfg.Oracle.Feeds, 1)
	assert.Equal(t, "mAAPL", cfg.Oracle.Feeds[0].Symbol)

	ratios := cfg.Risk.MinRatiosDecimal()
	assert.Equal(t, "1.3", ratios["mTSLA"].String())
	assert.Equal(t, "1.5", cfg.Risk.DefaultMinRatioDecimal().String())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("IDX_STORAGE_DRIVER", "sqlite")
	t.Setenv("IDX_STORAGE_DSN", "file::memory:")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "file::memory:", cfg.Storage.DSN)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load(writeConfig(t, sampleYAML))
		require.NoError(t, err)
		return *cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown pair chain", func(c *Config) { c.Pairs[0].Chain = "bsc" }},
		{"bad feed address", func(c *Config) { c.Oracle.Feeds[0].Address = "nope" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }},
		{"no intervals", func(c *Config) { c.Ingestion.Intervals = nil }},
		{"zero attempts", func(c *Config) { c.Ingestion.PersistAttempts = 0 }},
		{"bad ratio", func(c *Config) { c.Risk.DefaultMinRatio = "x" }},
		{"stream without url", func(c *Config) { c.Stream.Enabled = true }},
		{"lending without url", func(c *Config) {
			c.Lending.Markets = []MarketMapping{{Symbol: "aUST", Market: "anchor"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
