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
)

const aggregatorABIJSON = `[
  {"inputs": [], "name": "latestRoundData", "outputs": [
    {"name": "roundId", "type": "uint80"},
    {"name": "answer", "type": "int256"},
    {"name": "startedAt", "type": "uint256"},
    {"name": "updatedAt", "type": "uint256"},
    {"name": "answeredInRound", "type": "uint80"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

var (
	aggregatorABI     abi.ABI
	aggregatorABIOnce sync.Once
	aggregatorABIErr  error
)

func aggregatorABIInstance() (abi.ABI, error) {
	aggregatorABIOnce.Do(func() {
		aggregatorABI, aggregatorABIErr = abi.JSON(strings.NewReader(aggregatorABIJSON))
	})
	return aggregatorABI, aggregatorABIErr
}

// FeedOracle reads prices from Chainlink-style aggregator feeds, one feed per
// asset. Answers are rescaled to 8 decimals. Assets without a registered feed,
// and feeds reporting a non-positive answer, report a zero price.
type FeedOracle struct {
	client *Client
	feeds  map[string]common.Address
}

func NewFeedOracle(client *Client) *FeedOracle {
	return &FeedOracle{client: client, feeds: make(map[string]common.Address)}
}

// RegisterFeed maps an asset to its aggregator contract.
func (o *FeedOracle) RegisterFeed(asset string, feed common.Address) {
	o.feeds[strings.ToLower(asset)] = feed
}

func (o *FeedOracle) priceOf(ctx context.Context, asset string) (sdkmath.Int, error) {
	feed, ok := o.feeds[strings.ToLower(asset)]
	if !ok {
		return sdkmath.ZeroInt(), nil
	}
	parsed, err := aggregatorABIInstance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	out, err := o.client.Call(ctx, feed, parsed, "latestRoundData")
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("latestRoundData %s: %w", asset, err)
	}
	answer, ok := out[1].(*big.Int)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("latestRoundData %s: unexpected answer type %T", asset, out[1])
	}
	if answer.Sign() <= 0 {
		return sdkmath.ZeroInt(), nil
	}

	decOut, err := o.client.Call(ctx, feed, parsed, "decimals")
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("decimals %s: %w", asset, err)
	}
	decimals, ok := decOut[0].(uint8)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("decimals %s: unexpected return type %T", asset, decOut[0])
	}

	price := new(big.Int).Set(answer)
	switch {
	case decimals < 8:
		price.Mul(price, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(8-decimals)), nil))
	case decimals > 8:
		price.Quo(price, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-8)), nil))
	}
	return sdkmath.NewIntFromBigInt(price), nil
}

func (o *FeedOracle) PricesOf(ctx context.Context, assets []string) ([]sdkmath.Int, error) {
	prices := make([]sdkmath.Int, len(assets))
	for i, asset := range assets {
		p, err := o.priceOf(ctx, asset)
		if err != nil {
			return nil, err
		}
		prices[i] = p
	}
	return prices, nil
}
