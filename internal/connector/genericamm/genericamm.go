// Package genericamm is the default connector registered for
// /connectors/genericamm/amm/...: a constant-product (x*y=k) route builder
// against a Uniswap-V2-shaped pool contract, reading reserves with a raw
// eth_call the way chainrpc.EVMAdapter reads ERC-20 balances.
package genericamm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/dexgate/gateway/internal/chainrpc"
	"github.com/dexgate/gateway/internal/model"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const feeBps = 30 // 0.3%, the conventional Uniswap-V2 pool fee

// Builder implements chainrpc.RouteBuilder against a single pool contract
// exposing getReserves()/token0()/token1() and swap(uint,uint,address,bytes).
type Builder struct {
	client    *ethclient.Client
	chainID   *big.Int
	routerABI abi.ABI
	erc20ABI  abi.ABI
}

// New constructs a Builder for a single chain. chainID must match the
// network genericamm's contracts are deployed on: it is stamped on every
// built tx so SoftwareSigner.Sign has what EIP-155 replay protection
// requires.
func New(client *ethclient.Client, chainID *big.Int) (*Builder, error) {
	routerABI, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &Builder{client: client, chainID: chainID, routerABI: routerABI, erc20ABI: erc20ABI}, nil
}

func (b *Builder) ComputeRoute(ctx context.Context, req model.SwapRequest) (model.QuoteResult, error) {
	if req.PoolAddress == "" {
		return model.QuoteResult{}, fmt.Errorf("pool not found: poolAddress is required for genericamm")
	}
	reserveIn, reserveOut, tokenIn, tokenOut, err := b.orderedReserves(ctx, req)
	if err != nil {
		return model.QuoteResult{}, err
	}

	amountIn, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amountIn.Sign() <= 0 {
		return model.QuoteResult{}, fmt.Errorf("invalid amount: %s", req.Amount)
	}

	amountOut := constantProductOut(amountIn, reserveIn, reserveOut)
	if amountOut.Sign() <= 0 {
		return model.QuoteResult{}, fmt.Errorf("insufficient liquidity for requested amount")
	}

	slippage := req.SlippagePct
	if slippage <= 0 {
		slippage = 0.5
	}
	minOut := applyPct(amountOut, 1-slippage/100)
	price := decimal.NewFromBigInt(amountOut, 0).Div(decimal.NewFromBigInt(amountIn, 0)).InexactFloat64()

	return model.QuoteResult{
		PoolAddress:  req.PoolAddress,
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		AmountIn:     amountIn.String(),
		AmountOut:    amountOut.String(),
		Price:        price,
		SlippagePct:  slippage,
		MinAmountOut: minOut.String(),
	}, nil
}

func (b *Builder) BuildSwapTx(ctx context.Context, route model.QuoteResult, req model.SwapRequest, nonce uint64, gas chainrpc.GasParams) (chainrpc.UnsignedTx, error) {
	minOut, ok := new(big.Int).SetString(route.MinAmountOut, 10)
	if !ok {
		return chainrpc.UnsignedTx{}, fmt.Errorf("invalid minAmountOut in route")
	}

	pool := common.HexToAddress(route.PoolAddress)
	token0Data, _ := b.routerABI.Pack("token0")
	token0Raw, err := b.client.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: token0Data}, nil)
	if err != nil {
		return chainrpc.UnsignedTx{}, fmt.Errorf("read token0: %w", err)
	}
	outIsToken0 := common.BytesToAddress(token0Raw) == common.HexToAddress(route.TokenOut)

	amount0Out, amount1Out := big.NewInt(0), big.NewInt(0)
	if outIsToken0 {
		amount0Out = minOut
	} else {
		amount1Out = minOut
	}

	data, err := b.routerABI.Pack("swap", amount0Out, amount1Out, common.HexToAddress(req.WalletAddress), []byte{})
	if err != nil {
		return chainrpc.UnsignedTx{}, fmt.Errorf("encode swap calldata: %w", err)
	}
	return chainrpc.UnsignedTx{
		To:        route.PoolAddress,
		Data:      data,
		Value:     big.NewInt(0),
		Nonce:     nonce,
		GasLimit:  gas.GasLimit,
		GasFeeCap: gas.FeeCap,
		GasTipCap: gas.TipCap,
		ChainID:   b.chainID,
	}, nil
}

func (b *Builder) BuildApproveTx(ctx context.Context, owner, token, spender string, amount *big.Int, nonce uint64, gas chainrpc.GasParams) (chainrpc.UnsignedTx, error) {
	data, err := b.erc20ABI.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return chainrpc.UnsignedTx{}, fmt.Errorf("encode approve calldata: %w", err)
	}
	return chainrpc.UnsignedTx{
		To:        token,
		Data:      data,
		Value:     big.NewInt(0),
		Nonce:     nonce,
		GasLimit:  gas.GasLimit,
		GasFeeCap: gas.FeeCap,
		GasTipCap: gas.TipCap,
		ChainID:   b.chainID,
	}, nil
}

func (b *Builder) RequiredAllowance(ctx context.Context, route model.QuoteResult) (string, string, *big.Int, error) {
	required, ok := new(big.Int).SetString(route.AmountIn, 10)
	if !ok {
		return "", "", nil, fmt.Errorf("invalid amountIn in route")
	}
	return route.TokenIn, route.PoolAddress, required, nil
}

// orderedReserves calls getReserves()/token0() on the pool and returns the
// reserves oriented as (reserveIn, reserveOut) for req.BaseToken->QuoteToken
// on SELL or the inverse on BUY.
func (b *Builder) orderedReserves(ctx context.Context, req model.SwapRequest) (reserveIn, reserveOut *big.Int, tokenIn, tokenOut string, err error) {
	pool := common.HexToAddress(req.PoolAddress)

	token0Data, _ := b.routerABI.Pack("token0")
	token0Raw, err := b.client.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: token0Data}, nil)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("read token0: %w", err)
	}
	token0 := common.BytesToAddress(token0Raw).Hex()

	reservesData, _ := b.routerABI.Pack("getReserves")
	reservesRaw, err := b.client.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: reservesData}, nil)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("read reserves: %w", err)
	}
	outs, err := b.routerABI.Unpack("getReserves", reservesRaw)
	if err != nil || len(outs) < 2 {
		return nil, nil, "", "", fmt.Errorf("decode reserves: %w", err)
	}
	reserve0 := outs[0].(*big.Int)
	reserve1 := outs[1].(*big.Int)

	if model.Side(req.Side) == model.SideSell {
		tokenIn, tokenOut = req.BaseToken, req.QuoteToken
	} else {
		tokenIn, tokenOut = req.QuoteToken, req.BaseToken
	}

	inIsToken0 := common.HexToAddress(tokenIn) == common.HexToAddress(token0)
	if inIsToken0 {
		return reserve0, reserve1, tokenIn, tokenOut, nil
	}
	return reserve1, reserve0, tokenIn, tokenOut, nil
}

// constantProductOut applies the x*y=k invariant with the pool fee deducted
// from the input leg, as Uniswap-V2-shaped pools do.
func constantProductOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(10000-feeBps))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Add(new(big.Int).Mul(reserveIn, big.NewInt(10000)), amountInWithFee)
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	return numerator.Div(numerator, denominator)
}

func applyPct(amount *big.Int, frac float64) *big.Int {
	d := decimal.NewFromBigInt(amount, 0).Mul(decimal.NewFromFloat(frac))
	return d.BigInt()
}

const routerABIJSON = `[
	{"name":"token0","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
	{"name":"token1","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
	{"name":"getReserves","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint112"},{"type":"uint112"},{"type":"uint32"}]},
	{"name":"swap","type":"function","stateMutability":"nonpayable","inputs":[{"type":"uint256"},{"type":"uint256"},{"type":"address"},{"type":"bytes"}],"outputs":[]}
]`

const erc20ABIJSON = `[
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"type":"address"},{"type":"uint256"}],"outputs":[{"type":"bool"}]}
]`
