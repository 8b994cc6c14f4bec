// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Decimal   DecimalConfig   `mapstructure:"decimal"`
	Assets    []AssetConfig   `mapstructure:"assets"`
	Chains    []ChainConfig   `mapstructure:"chains"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Pairs     []PairConfig    `mapstructure:"pairs"`
	Lending   LendingConfig   `mapstructure:"lending"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Health    HealthConfig    `mapstructure:"health"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // Set at runtime, not from config file
}

// DecimalConfig holds the fixed-point engine settings.
type DecimalConfig struct {
	Precision int32 `mapstructure:"precision"`
}

// AssetConfig adds or overrides an entry of the asset registry.
type AssetConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Name     string `mapstructure:"name"`
	Decimals uint8  `mapstructure:"decimals"`
	Kind     string `mapstructure:"kind"`
}

// ChainConfig describes one EVM JSON-RPC endpoint.
type ChainConfig struct {
	Name    string `mapstructure:"name"`
	RPCURL  string `mapstructure:"rpc_url"`
	ChainID uint64 `mapstructure:"chain_id"`
}

// OracleConfig holds on-chain oracle feed configuration.
// Feeds are a list rather than a map because viper lowercases map keys.
type OracleConfig struct {
	Chain         string        `mapstructure:"chain"`
	Feeds         []FeedConfig  `mapstructure:"feeds"`
	DecimalsCache time.Duration `mapstructure:"decimals_cache_ttl"`
}

// FeedConfig maps a symbol to an aggregator contract.
type FeedConfig struct {
	Symbol  string `mapstructure:"symbol"`
	Address string `mapstructure:"address"`
}

// AddressHex returns the feed address as common.Address.
func (f FeedConfig) AddressHex() common.Address {
	return common.HexToAddress(f.Address)
}

// PairConfig maps a symbol to an AMM pair contract on an EVM chain.
type PairConfig struct {
	Symbol        string `mapstructure:"symbol"`
	Chain         string `mapstructure:"chain"`
	Address       string `mapstructure:"address"`
	BaseDecimals  uint8  `mapstructure:"base_decimals"`
	QuoteDecimals uint8  `mapstructure:"quote_decimals"`
	Invert        bool   `mapstructure:"invert"` // base is token1
}

// AddressHex returns the pair address as common.Address.
func (p PairConfig) AddressHex() common.Address {
	return common.HexToAddress(p.Address)
}

// LendingConfig holds the money-market exchange-rate feed configuration.
type LendingConfig struct {
	BaseURL string          `mapstructure:"base_url"`
	Timeout time.Duration   `mapstructure:"timeout"`
	Markets []MarketMapping `mapstructure:"markets"`
}

// MarketMapping maps a symbol to a lending market identifier.
type MarketMapping struct {
	Symbol string `mapstructure:"symbol"`
	Market string `mapstructure:"market"`
}

// StreamConfig holds the websocket ticker feed configuration.
type StreamConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	Symbols      []string      `mapstructure:"symbols"`
	StaleTimeout time.Duration `mapstructure:"stale_timeout"`
}

// IngestionConfig drives the scheduler and the candle builder.
type IngestionConfig struct {
	PollInterval          time.Duration `mapstructure:"poll_interval"`
	SourceTimeout         time.Duration `mapstructure:"source_timeout"`
	RequestsPerMinute     int           `mapstructure:"requests_per_minute"`
	Intervals             []string      `mapstructure:"intervals"`
	PersistAttempts       uint          `mapstructure:"persist_attempts"`
	PersistInitialBackoff time.Duration `mapstructure:"persist_initial_backoff"`
	PersistMaxBackoff     time.Duration `mapstructure:"persist_max_backoff"`
	FlushTimeout          time.Duration `mapstructure:"flush_timeout"`
	QueryLimit            int           `mapstructure:"query_limit"`
}

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StorageConfig selects the history store and position repository backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig holds the query cache configuration.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RiskConfig holds collateral risk thresholds. Ratios are decimal strings.
type RiskConfig struct {
	QuoteSymbol     string          `mapstructure:"quote_symbol"`
	DefaultMinRatio string          `mapstructure:"default_min_ratio"`
	SafetyMargin    string          `mapstructure:"safety_margin"`
	MinRatios       []MinRatioEntry `mapstructure:"min_ratios"`
	ScanInterval    time.Duration   `mapstructure:"scan_interval"` // 0 disables the monitor
	Positions       []PositionSeed  `mapstructure:"positions"`     // local runs only
}

// PositionSeed is a position loaded into the repository at startup.
type PositionSeed struct {
	ID               string `mapstructure:"id"`
	Asset            string `mapstructure:"asset"`
	MintedAmount     string `mapstructure:"minted_amount"`
	CollateralAmount string `mapstructure:"collateral_amount"`
	CollateralToken  string `mapstructure:"collateral_token"`
}

// MinRatioEntry overrides the minimum collateral ratio of one asset.
type MinRatioEntry struct {
	Symbol string `mapstructure:"symbol"`
	Ratio  string `mapstructure:"ratio"`
}

// DefaultMinRatioDecimal returns the default minimum ratio.
func (c *RiskConfig) DefaultMinRatioDecimal() fixedpoint.Decimal {
	return fixedpoint.MustParse(c.DefaultMinRatio)
}

// SafetyMarginDecimal returns the warning margin above the minimum ratio.
func (c *RiskConfig) SafetyMarginDecimal() fixedpoint.Decimal {
	return fixedpoint.MustParse(c.SafetyMargin)
}

// MinRatiosDecimal returns per-asset minimum ratios keyed by symbol.
func (c *RiskConfig) MinRatiosDecimal() map[string]fixedpoint.Decimal {
	out := make(map[string]fixedpoint.Decimal, len(c.MinRatios))
	for _, e := range c.MinRatios {
		out[e.Symbol] = fixedpoint.MustParse(e.Ratio)
	}
	return out
}

// HealthConfig holds the health server configuration.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	TraceProvider  string `mapstructure:"trace_provider"` // zipkin | otlp-grpc | otlp-http | console
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("IDX")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "IDX_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "IDX_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "IDX_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("decimal.precision", "IDX_DECIMAL_PRECISION")

	// Oracle / lending / stream
	v.BindEnv("oracle.chain", "IDX_ORACLE_CHAIN")
	v.BindEnv("lending.base_url", "IDX_LENDING_URL", "LENDING_URL")
	v.BindEnv("stream.enabled", "IDX_STREAM_ENABLED")
	v.BindEnv("stream.url", "IDX_STREAM_URL", "STREAM_URL")

	// Ingestion
	v.BindEnv("ingestion.poll_interval", "IDX_POLL_INTERVAL")
	v.BindEnv("ingestion.source_timeout", "IDX_SOURCE_TIMEOUT")

	// Storage
	v.BindEnv("storage.driver", "IDX_STORAGE_DRIVER")
	v.BindEnv("storage.dsn", "IDX_STORAGE_DSN", "DATABASE_URL")

	// Redis
	v.BindEnv("redis.enabled", "IDX_REDIS_ENABLED")
	v.BindEnv("redis.addr", "IDX_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("redis.password", "IDX_REDIS_PASSWORD", "REDIS_PASSWORD")

	// Risk
	v.BindEnv("risk.quote_symbol", "IDX_QUOTE_SYMBOL")

	v.BindEnv("health.port", "IDX_HEALTH_PORT", "HEALTH_PORT")

	// Telemetry
	v.BindEnv("telemetry.enabled", "IDX_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "IDX_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "IDX_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.trace_provider", "IDX_TRACE_PROVIDER")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "synth-indexer")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("decimal.precision", fixedpoint.DefaultPrecision)

	v.SetDefault("oracle.decimals_cache_ttl", "1h")
	v.SetDefault("lending.timeout", "5s")
	v.SetDefault("stream.stale_timeout", "30s")

	// Ingestion defaults
	v.SetDefault("ingestion.poll_interval", "15s")
	v.SetDefault("ingestion.source_timeout", "5s")
	v.SetDefault("ingestion.requests_per_minute", 600)
	v.SetDefault("ingestion.intervals", []string{"1m", "5m", "15m", "1h", "4h", "1d"})
	v.SetDefault("ingestion.persist_attempts", 5)
	v.SetDefault("ingestion.persist_initial_backoff", "200ms")
	v.SetDefault("ingestion.persist_max_backoff", "5s")
	v.SetDefault("ingestion.flush_timeout", "10s")
	v.SetDefault("ingestion.query_limit", 1000)

	v.SetDefault("storage.driver", DriverMemory)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", "30s")

	// Risk defaults
	v.SetDefault("risk.quote_symbol", "UST")
	v.SetDefault("risk.default_min_ratio", "1.5")
	v.SetDefault("risk.safety_margin", "0.1")
	v.SetDefault("risk.scan_interval", "30s")

	v.SetDefault("health.port", 8081)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "synth-indexer")
	v.SetDefault("telemetry.trace_provider", "otlp-grpc")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Chain returns the chain named name.
func (c *Config) Chain(name string) (ChainConfig, bool) {
	for _, ch := range c.Chains {
		if ch.Name == name {
			return ch, true
		}
	}
	return ChainConfig{}, false
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Decimal.Precision < 0 || c.Decimal.Precision > 36 {
		return fmt.Errorf("decimal.precision must be within [0,36], got %d", c.Decimal.Precision)
	}

	for _, ch := range c.Chains {
		if ch.Name == "" || ch.RPCURL == "" {
			return fmt.Errorf("chains: name and rpc_url are required")
		}
	}

	if len(c.Oracle.Feeds) > 0 {
		if _, ok := c.Chain(c.Oracle.Chain); !ok {
			return fmt.Errorf("oracle.chain %q is not configured", c.Oracle.Chain)
		}
	}
	for _, f := range c.Oracle.Feeds {
		if !common.IsHexAddress(f.Address) {
			return fmt.Errorf("invalid oracle feed address for %s: %s", f.Symbol, f.Address)
		}
	}

	for _, p := range c.Pairs {
		if _, ok := c.Chain(p.Chain); !ok {
			return fmt.Errorf("pair %s references unknown chain %q", p.Symbol, p.Chain)
		}
		if !common.IsHexAddress(p.Address) {
			return fmt.Errorf("invalid pair address for %s: %s", p.Symbol, p.Address)
		}
	}

	if len(c.Lending.Markets) > 0 && c.Lending.BaseURL == "" {
		return fmt.Errorf("lending.base_url is required when markets are configured")
	}
	if c.Stream.Enabled && c.Stream.URL == "" {
		return fmt.Errorf("stream.url is required when stream is enabled")
	}

	if len(c.Ingestion.Intervals) == 0 {
		return fmt.Errorf("ingestion.intervals cannot be empty")
	}
	if c.Ingestion.PersistAttempts == 0 {
		return fmt.Errorf("ingestion.persist_attempts must be at least 1")
	}
	if c.Ingestion.PollInterval <= 0 || c.Ingestion.SourceTimeout <= 0 {
		return fmt.Errorf("ingestion.poll_interval and ingestion.source_timeout must be positive")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %s", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	if c.Risk.QuoteSymbol == "" {
		return fmt.Errorf("risk.quote_symbol is required")
	}
	for key, s := range map[string]string{
		"risk.default_min_ratio": c.Risk.DefaultMinRatio,
		"risk.safety_margin":     c.Risk.SafetyMargin,
	} {
		if _, err := fixedpoint.NewFromString(s); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	for _, e := range c.Risk.MinRatios {
		if _, err := fixedpoint.NewFromString(e.Ratio); err != nil {
			return fmt.Errorf("invalid risk.min_ratios for %s: %w", e.Symbol, err)
		}
	}
	for _, p := range c.Risk.Positions {
		if p.ID == "" || p.Asset == "" || p.CollateralToken == "" {
			return fmt.Errorf("risk.positions: id, asset and collateral_token are required")
		}
		for _, amount := range []string{p.MintedAmount, p.CollateralAmount} {
			if _, err := fixedpoint.NewFromString(amount); err != nil {
				return fmt.Errorf("invalid amount in risk.positions %s: %w", p.ID, err)
			}
		}
	}

	return nil
}
