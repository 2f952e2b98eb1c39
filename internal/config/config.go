package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Chains   []ChainEntry   `mapstructure:"chains"`
	Nonce    NonceConfig    `mapstructure:"nonce"`
	Confirm  ConfirmConfig  `mapstructure:"confirm"`
	Gas      GasPolicy      `mapstructure:"gas"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Clients  []ClientConfig `mapstructure:"clients"`

	// ErrorPatterns is the substring → error-kind table the classifier
	// consults for RPC/simulate/submit failures (spec.md §9: "keep the
	// substring list as configuration").
	ErrorPatterns []ErrorPattern `mapstructure:"error_patterns"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadOnlyMode bool   `mapstructure:"read_only_mode"`
}

type AuthConfig struct {
	RequireAPIKey  bool   `mapstructure:"require_api_key"`
	APIKey         string `mapstructure:"api_key"`
	AdminKey       string `mapstructure:"admin_key"`
	AdminSecretKey string `mapstructure:"admin_secret_key"`
}

type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	AuditRetentionDays     int    `mapstructure:"audit_retention_days"`
	CleanupIntervalMinutes int    `mapstructure:"cleanup_interval_minutes"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
	AuditListKey          string `mapstructure:"audit_list_key"`
	AuditListMax          int    `mapstructure:"audit_list_max"`
}

// ChainEntry configures one (scope, family) network the gateway serves.
type ChainEntry struct {
	Scope                     string `mapstructure:"scope"`
	Family                    string `mapstructure:"family"` // "account-nonce" | "signature-hash"
	RPCURL                    string `mapstructure:"rpc_url"`
	ChainID                   int64  `mapstructure:"chain_id"`
	ConfirmationTimeoutMs     int    `mapstructure:"confirmation_timeout_ms"`
	PollingIntervalMs         int    `mapstructure:"polling_interval_ms"`
	MaxNonceGap               uint64 `mapstructure:"max_nonce_gap"`
	MaxCacheAgeSeconds        int    `mapstructure:"max_cache_age_seconds"`
	DefaultLeaseTTLSeconds    int    `mapstructure:"default_lease_ttl_seconds"`
	ComputeUnitBudgetAMM      uint64 `mapstructure:"compute_unit_budget_amm"`
	ComputeUnitBudgetCLMM     uint64 `mapstructure:"compute_unit_budget_clmm"`
	ComputeUnitBudgetUniversal uint64 `mapstructure:"compute_unit_budget_universal"`
}

type NonceConfig struct {
	MaxNonceGap            uint64 `mapstructure:"max_nonce_gap"`
	MaxCacheAgeSeconds      int    `mapstructure:"max_cache_age_seconds"`
	DefaultLeaseTTLSeconds  int    `mapstructure:"default_lease_ttl_seconds"`
	MaxLeaseTTLSeconds      int    `mapstructure:"max_lease_ttl_seconds"`
	ReapIntervalSeconds     int    `mapstructure:"reap_interval_seconds"`
}

type ConfirmConfig struct {
	PollingIntervalSeconds     int `mapstructure:"polling_interval_seconds"`
	ConfirmationTimeoutSeconds int `mapstructure:"confirmation_timeout_seconds"`
	ApproveTimeoutSeconds      int `mapstructure:"approve_timeout_seconds"`
}

// GasPolicy is applied on top of a chain's base fee estimate; zero means
// "auto" for either field.
type GasPolicy struct {
	GasMaxGwei       float64 `mapstructure:"gas_max_gwei"`
	GasMultiplierPct int     `mapstructure:"gas_multiplier_pct"`
}

type RiskConfig struct {
	MaxSlippage               float64  `mapstructure:"max_slippage"`
	MaxOrderValue             float64  `mapstructure:"max_order_value"`
	MaxDailyValue             float64  `mapstructure:"max_daily_value"`
	MaxDailyOrders            int      `mapstructure:"max_daily_orders"`
	RestrictedPools           []string `mapstructure:"restricted_pools"`
	AllowUnverifiedSignatures bool     `mapstructure:"allow_unverified_signatures"`
}

type ClientConfig struct {
	ID      string   `mapstructure:"id"`
	Name    string   `mapstructure:"name"`
	APIKey  string   `mapstructure:"api_key"`
	Signers []string `mapstructure:"signers"`
	Risk    RiskConfig `mapstructure:"risk"`
}

type ErrorPattern struct {
	Substring string `mapstructure:"substring"`
	Kind      string `mapstructure:"kind"`
}

// DefaultErrorPatterns is the built-in substring table used when no
// operator-supplied error_patterns config is set.
func DefaultErrorPatterns() []ErrorPattern {
	return []ErrorPattern{
		{Substring: "NONCE_EXPIRED", Kind: "NonceStale"},
		{Substring: "nonce too low", Kind: "NonceStale"},
		{Substring: "insufficient funds", Kind: "InsufficientFunds"},
		{Substring: "slippage", Kind: "SlippageOrLiquidity"},
		{Substring: "liquidity", Kind: "SlippageOrLiquidity"},
		{Substring: "blockhash", Kind: "Expired"},
		{Substring: "expired", Kind: "Expired"},
		{Substring: "pool not found", Kind: "NotFound"},
		{Substring: "device locked", Kind: "DeviceLocked"},
		{Substring: "device rejected", Kind: "DeviceRejected"},
		{Substring: "wrong app", Kind: "DeviceWrongApp"},
	}
}

func (c *NonceConfig) withDefaults() {
	if c.MaxNonceGap == 0 {
		c.MaxNonceGap = 5
	}
	if c.MaxCacheAgeSeconds == 0 {
		c.MaxCacheAgeSeconds = 120
	}
	if c.DefaultLeaseTTLSeconds == 0 {
		c.DefaultLeaseTTLSeconds = 60
	}
	if c.MaxLeaseTTLSeconds == 0 {
		c.MaxLeaseTTLSeconds = 300
	}
	if c.ReapIntervalSeconds == 0 {
		c.ReapIntervalSeconds = 10
	}
}

func (c *ConfirmConfig) withDefaults() {
	if c.PollingIntervalSeconds == 0 {
		c.PollingIntervalSeconds = 2
	}
	if c.ConfirmationTimeoutSeconds == 0 {
		c.ConfirmationTimeoutSeconds = 60
	}
	if c.ApproveTimeoutSeconds == 0 {
		c.ApproveTimeoutSeconds = 30
	}
}

func (c NonceConfig) MaxCacheAge() time.Duration {
	return time.Duration(c.MaxCacheAgeSeconds) * time.Second
}

func (c NonceConfig) DefaultLeaseTTL() time.Duration {
	return time.Duration(c.DefaultLeaseTTLSeconds) * time.Second
}

func (c NonceConfig) MaxLeaseTTL() time.Duration {
	return time.Duration(c.MaxLeaseTTLSeconds) * time.Second
}

func (c NonceConfig) ReapInterval() time.Duration {
	return time.Duration(c.ReapIntervalSeconds) * time.Second
}

func (c ConfirmConfig) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalSeconds) * time.Second
}

func (c ConfirmConfig) ConfirmationTimeout() time.Duration {
	return time.Duration(c.ConfirmationTimeoutSeconds) * time.Second
}

func (c ConfirmConfig) ApproveTimeout() time.Duration {
	return time.Duration(c.ApproveTimeoutSeconds) * time.Second
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// e.g. GATEWAY_AUTH_API_KEY
	viper.SetEnvPrefix("gateway")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_only_mode", false)
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("auth.admin_key", "")
	viper.SetDefault("auth.admin_secret_key", "")
	viper.SetDefault("redis.idempotency_ttl_seconds", 86400)
	viper.SetDefault("redis.audit_list_key", "audit_logs")
	viper.SetDefault("redis.audit_list_max", 10000)
	viper.SetDefault("database.audit_retention_days", 30)
	viper.SetDefault("database.cleanup_interval_minutes", 60)
	viper.SetDefault("nonce.max_nonce_gap", 5)
	viper.SetDefault("nonce.max_cache_age_seconds", 120)
	viper.SetDefault("nonce.default_lease_ttl_seconds", 60)
	viper.SetDefault("nonce.max_lease_ttl_seconds", 300)
	viper.SetDefault("nonce.reap_interval_seconds", 10)
	viper.SetDefault("confirm.polling_interval_seconds", 2)
	viper.SetDefault("confirm.confirmation_timeout_seconds", 60)
	viper.SetDefault("confirm.approve_timeout_seconds", 30)
	viper.SetDefault("risk.max_slippage", 0.05)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Nonce.withDefaults()
	cfg.Confirm.withDefaults()
	if len(cfg.ErrorPatterns) == 0 {
		cfg.ErrorPatterns = DefaultErrorPatterns()
	}

	return &cfg, nil
}
