package model

import "time"

// RiskConfig bounds a client's trading activity.
type RiskConfig struct {
	MaxOrderValue             float64  `json:"max_order_value"`
	MaxDailyValue             float64  `json:"max_daily_value"`
	MaxDailyOrders            int      `json:"max_daily_orders"`
	MaxSlippage               float64  `json:"max_slippage"`
	RestrictedPools           []string `json:"restricted_pools"`
	AllowUnverifiedSignatures bool     `json:"allow_unverified_signatures"`
}

// RateLimitConfig is the per-client token-bucket shape.
type RateLimitConfig struct {
	QPS   float64 `json:"qps"`
	Burst int     `json:"burst"`
}

// SignerCreds holds the material needed to sign on a client's behalf when
// the gateway holds a software key for them, rather than a hardware wallet.
type SignerCreds struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key,omitempty"`
}

// Client is a registered caller of the gateway: a bot, script, or UI that
// authenticates with a gateway-issued API key and trades through it.
type Client struct {
	ID             string          `json:"id" gorm:"primaryKey"`
	Name           string          `json:"name"`
	APIKey         string          `json:"api_key" gorm:"uniqueIndex"`
	AllowedSigners []string        `json:"allowed_signers,omitempty" gorm:"serializer:json"`
	Signer         SignerCreds     `json:"signer" gorm:"serializer:json"`
	Risk           RiskConfig      `json:"risk" gorm:"serializer:json"`
	Rate           RateLimitConfig `json:"rate_limit" gorm:"serializer:json"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
