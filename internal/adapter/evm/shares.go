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

const mintableABIJSON = `[
  {"inputs": [{"type": "address"}, {"type": "uint256"}], "name": "mint", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "address"}, {"type": "uint256"}], "name": "burn", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

var (
	mintableABI     abi.ABI
	mintableABIOnce sync.Once
	mintableABIErr  error
)

func mintableABIInstance() (abi.ABI, error) {
	mintableABIOnce.Do(func() {
		mintableABI, mintableABIErr = abi.JSON(strings.NewReader(mintableABIJSON))
	})
	return mintableABI, mintableABIErr
}

// MintableShares implements adapter.ShareToken over mintable/burnable
// ERC-20 contracts. The sender must hold the tokens' minter role.
type MintableShares struct {
	client *Client
	sender TxSender
}

func NewMintableShares(client *Client, sender TxSender) *MintableShares {
	return &MintableShares{client: client, sender: sender}
}

func (m *MintableShares) sendTokenCall(ctx context.Context, token, method string, account common.Address, amount sdkmath.Int) error {
	parsed, err := mintableABIInstance()
	if err != nil {
		return err
	}
	data, err := parsed.Pack(method, account, amount.BigInt())
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}
	if _, err := m.sender.SendCall(ctx, common.HexToAddress(token), data, nil); err != nil {
		return fmt.Errorf("%s %s: %w", method, token, err)
	}
	return nil
}

func (m *MintableShares) Mint(ctx context.Context, token, account string, amount sdkmath.Int) error {
	return m.sendTokenCall(ctx, token, "mint", common.HexToAddress(account), amount)
}

func (m *MintableShares) Burn(ctx context.Context, token, account string, amount sdkmath.Int) error {
	return m.sendTokenCall(ctx, token, "burn", common.HexToAddress(account), amount)
}

func (m *MintableShares) uintCall(ctx context.Context, token, method string, args ...interface{}) (sdkmath.Int, error) {
	parsed, err := mintableABIInstance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	out, err := m.client.Call(ctx, common.HexToAddress(token), parsed, method, args...)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%s %s: %w", method, token, err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%s %s: unexpected return type %T", method, token, out[0])
	}
	return sdkmath.NewIntFromBigInt(v), nil
}

func (m *MintableShares) TotalSupply(ctx context.Context, token string) (sdkmath.Int, error) {
	return m.uintCall(ctx, token, "totalSupply")
}

func (m *MintableShares) BalanceOf(ctx context.Context, token, account string) (sdkmath.Int, error) {
	return m.uintCall(ctx, token, "balanceOf", common.HexToAddress(account))
}
