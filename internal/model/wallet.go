package model

import "strings"

// WalletKey identifies the sharding key used by the wallet lock registry
// and the nonce cache: a network scope plus a lower-cased address.
type WalletKey struct {
	Scope   string
	Address string
}

// NewWalletKey normalizes scope and address the way every caller expects:
// empty scope becomes "default", address is lower-cased so "0xABC..." and
// "0xabc..." collide on the same lock.
func NewWalletKey(scope, address string) WalletKey {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "default"
	}
	return WalletKey{
		Scope:   scope,
		Address: strings.ToLower(strings.TrimSpace(address)),
	}
}

func (k WalletKey) String() string {
	return k.Scope + ":" + k.Address
}

// ChainFamily distinguishes the two transaction families the orchestrator
// composes over.
type ChainFamily string

const (
	FamilyAccountNonce  ChainFamily = "account-nonce"  // EVM-like
	FamilySignatureHash ChainFamily = "signature-hash" // Solana-like
)

// Side is the swap direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}
