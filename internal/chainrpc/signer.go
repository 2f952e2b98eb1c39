package chainrpc

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var big0 = big.NewInt(0)

// SoftwareSigner signs account-nonce family transactions with a key held
// in process memory. Grounded on the same crypto.HexToECDSA /
// crypto.PubkeyToAddress primitives the teacher's EIP-712 signer used to
// derive its address, generalized here to sign plain dynamic-fee
// transactions rather than a CTF exchange order hash.
type SoftwareSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewSoftwareSigner(privateKeyHex string) (*SoftwareSigner, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	pub, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}
	return &SoftwareSigner{key: key, address: crypto.PubkeyToAddress(*pub)}, nil
}

func (s *SoftwareSigner) Address() string {
	return s.address.Hex()
}

func (s *SoftwareSigner) IsHardware() bool {
	return false
}

// Sign builds a dynamic-fee (EIP-1559) transaction from tx and returns its
// RLP-encoded signed bytes, ready for RPCAdapter.SubmitRaw.
func (s *SoftwareSigner) Sign(ctx context.Context, scope string, tx UnsignedTx) ([]byte, error) {
	if tx.ChainID == nil {
		return nil, fmt.Errorf("chain id is required to sign")
	}
	var to *common.Address
	if tx.To != "" {
		addr := common.HexToAddress(tx.To)
		to = &addr
	}
	value := tx.Value
	if value == nil {
		value = big0
	}

	inner := &types.DynamicFeeTx{
		ChainID:   tx.ChainID,
		Nonce:     tx.Nonce,
		GasTipCap: tx.GasTipCap,
		GasFeeCap: tx.GasFeeCap,
		Gas:       tx.GasLimit,
		To:        to,
		Value:     value,
		Data:      tx.Data,
	}

	signer := types.NewLondonSigner(tx.ChainID)
	signedTx, err := types.SignNewTx(s.key, signer, inner)
	if err != nil {
		return nil, err
	}
	return signedTx.MarshalBinary()
}
