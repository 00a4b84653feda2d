package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"pledgepool/internal/adapter"
)

const routerABIJSON = `[
  {"inputs": [{"type": "uint256"}, {"type": "address[]"}], "name": "getAmountsIn", "outputs": [{"type": "uint256[]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"type": "uint256"}, {"type": "uint256"}, {"type": "address[]"}, {"type": "address"}, {"type": "uint256"}], "name": "swapExactTokensForTokens", "outputs": [{"type": "uint256[]"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "uint256"}, {"type": "address[]"}, {"type": "address"}, {"type": "uint256"}], "name": "swapExactETHForTokens", "outputs": [{"type": "uint256[]"}], "stateMutability": "payable", "type": "function"},
  {"inputs": [{"type": "uint256"}, {"type": "uint256"}, {"type": "address[]"}, {"type": "address"}, {"type": "uint256"}], "name": "swapExactTokensForETH", "outputs": [{"type": "uint256[]"}], "stateMutability": "nonpayable", "type": "function"}
]`

var (
	routerABI     abi.ABI
	routerABIOnce sync.Once
	routerABIErr  error
)

func routerABIInstance() (abi.ABI, error) {
	routerABIOnce.Do(func() {
		routerABI, routerABIErr = abi.JSON(strings.NewReader(routerABIJSON))
	})
	return routerABI, routerABIErr
}

// Router drives a UniswapV2-style swap router. Native legs are routed through
// the wrapped native token: the path always names ERC-20 addresses, with the
// native-specific swap entrypoints selected when either end is native.
type Router struct {
	client        *Client
	sender        TxSender
	router        common.Address
	wrappedNative common.Address
	custody       common.Address
}

func NewRouter(client *Client, sender TxSender, router, wrappedNative, custody common.Address) *Router {
	return &Router{
		client:        client,
		sender:        sender,
		router:        router,
		wrappedNative: wrappedNative,
		custody:       custody,
	}
}

func (r *Router) path(assetIn, assetOut string) []common.Address {
	in := r.wrappedNative
	if assetIn != adapter.NativeAsset {
		in = common.HexToAddress(assetIn)
	}
	out := r.wrappedNative
	if assetOut != adapter.NativeAsset {
		out = common.HexToAddress(assetOut)
	}
	return []common.Address{in, out}
}

func (r *Router) QuoteAmountIn(ctx context.Context, assetIn, assetOut string, desiredOut sdkmath.Int) (sdkmath.Int, error) {
	parsed, err := routerABIInstance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	out, err := r.client.Call(ctx, r.router, parsed, "getAmountsIn", desiredOut.BigInt(), r.path(assetIn, assetOut))
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("getAmountsIn %s->%s: %w", assetIn, assetOut, err)
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("getAmountsIn: unexpected return type %T", out[0])
	}
	if len(amounts) == 0 {
		return sdkmath.ZeroInt(), fmt.Errorf("getAmountsIn: empty amounts")
	}
	return sdkmath.NewIntFromBigInt(amounts[0]), nil
}

func (r *Router) Swap(ctx context.Context, assetIn, assetOut string, amountIn sdkmath.Int, deadline int64) (sdkmath.Int, error) {
	parsed, err := routerABIInstance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	path := r.path(assetIn, assetOut)
	deadlineArg := big.NewInt(deadline)
	minOut := big.NewInt(0)

	var (
		data  []byte
		value *big.Int
	)
	switch {
	case assetIn == adapter.NativeAsset:
		data, err = parsed.Pack("swapExactETHForTokens", minOut, path, r.custody, deadlineArg)
		value = amountIn.BigInt()
	case assetOut == adapter.NativeAsset:
		data, err = parsed.Pack("swapExactTokensForETH", amountIn.BigInt(), minOut, path, r.custody, deadlineArg)
	default:
		data, err = parsed.Pack("swapExactTokensForTokens", amountIn.BigInt(), minOut, path, r.custody, deadlineArg)
	}
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("pack swap %s->%s: %w", assetIn, assetOut, err)
	}

	ret, err := r.sender.SendCall(ctx, r.router, data, value)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("swap %s->%s: %w", assetIn, assetOut, err)
	}

	method := "swapExactTokensForTokens"
	if assetIn == adapter.NativeAsset {
		method = "swapExactETHForTokens"
	} else if assetOut == adapter.NativeAsset {
		method = "swapExactTokensForETH"
	}
	out, err := parsed.Unpack(method, ret)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("decode swap return: %w", err)
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		return sdkmath.ZeroInt(), fmt.Errorf("decode swap return: unexpected amounts")
	}
	return sdkmath.NewIntFromBigInt(amounts[len(amounts)-1]), nil
}
