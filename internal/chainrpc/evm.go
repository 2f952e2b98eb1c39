package chainrpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EVMAdapter implements RPCAdapter over a single account-nonce network
// using go-ethereum's ethclient, grounded on the pending-nonce/gas-price
// primitives the teacher's nonce manager and signer already depend on.
type EVMAdapter struct {
	client *ethclient.Client
}

func DialEVM(rpcURL string) (*EVMAdapter, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return &EVMAdapter{client: client}, nil
}

func (a *EVMAdapter) PendingNonceAt(ctx context.Context, scope, address string) (uint64, error) {
	return a.client.PendingNonceAt(ctx, common.HexToAddress(address))
}

func (a *EVMAdapter) BalanceOf(ctx context.Context, scope, owner, token string) (*big.Int, error) {
	if token == "" || common.HexToAddress(token) == (common.Address{}) {
		return a.client.BalanceAt(ctx, common.HexToAddress(owner), nil)
	}
	// ERC-20 balanceOf(address) selector + left-padded address.
	data := append(erc20Selector("balanceOf(address)"), common.LeftPadBytes(common.HexToAddress(owner).Bytes(), 32)...)
	out, err := a.client.CallContract(ctx, ethereum.CallMsg{
		To:   addrPtr(token),
		Data: data,
	}, nil)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(out), nil
}

func (a *EVMAdapter) AllowanceOf(ctx context.Context, scope, owner, token, spender string) (*big.Int, error) {
	data := append(erc20Selector("allowance(address,address)"),
		common.LeftPadBytes(common.HexToAddress(owner).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(spender).Bytes(), 32)...)
	out, err := a.client.CallContract(ctx, ethereum.CallMsg{
		To:   addrPtr(token),
		Data: data,
	}, nil)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(out), nil
}

func (a *EVMAdapter) SubmitRaw(ctx context.Context, scope string, signed []byte) (string, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(signed); err != nil {
		return "", fmt.Errorf("decode signed tx: %w", err)
	}
	if err := a.client.SendTransaction(ctx, tx); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

func (a *EVMAdapter) Poll(ctx context.Context, scope, handle string) (PollResult, error) {
	receipt, err := a.client.TransactionReceipt(ctx, common.HexToHash(handle))
	if err != nil {
		// Not yet mined is the common case; treat as pending, not an error.
		return PollResult{Status: 0}, nil
	}
	fee := new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
	if receipt.Status == types.ReceiptStatusSuccessful {
		return PollResult{Status: 1, Fee: fee.String(), BlockHeight: receipt.BlockNumber.Uint64()}, nil
	}
	return PollResult{Status: -1, Fee: fee.String(), BlockHeight: receipt.BlockNumber.Uint64()}, nil
}

func (a *EVMAdapter) Simulate(ctx context.Context, scope string, tx UnsignedTx) error {
	to := addrPtr(tx.To)
	_, err := a.client.CallContract(ctx, ethereum.CallMsg{
		To:   to,
		Data: tx.Data,
		Value: tx.Value,
	}, nil)
	return err
}

func (a *EVMAdapter) EstimateGasPrice(ctx context.Context, scope string) (*big.Int, *big.Int, error) {
	base, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, nil, err
	}
	tip, err := a.client.SuggestGasTipCap(ctx)
	if err != nil {
		tip = big.NewInt(0)
	}
	return base, tip, nil
}

func addrPtr(hex string) *common.Address {
	if hex == "" {
		return nil
	}
	a := common.HexToAddress(hex)
	return &a
}

// erc20Selector returns the 4-byte function selector for a Solidity
// signature, without pulling in the full ABI package for two call sites.
func erc20Selector(sig string) []byte {
	h := crypto.Keccak256([]byte(sig))
	return h[:4]
}
