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

const erc20ABIJSON = `[
  {"inputs": [{"type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"type": "address"}, {"type": "uint256"}], "name": "transfer", "outputs": [{"type": "bool"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "address"}, {"type": "address"}, {"type": "uint256"}], "name": "transferFrom", "outputs": [{"type": "bool"}], "stateMutability": "nonpayable", "type": "function"}
]`

var (
	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error
)

func erc20ABIInstance() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

// ERC20Funds implements adapter.Funds over ERC-20 transfers plus native
// currency. Received amounts are measured as the custody balance delta, so
// fee-on-transfer tokens report what actually arrived.
//
// Non-standard tokens that return no data from transfer/transferFrom are
// treated as success: an empty return payload is not an error, only an
// explicit false is.
type ERC20Funds struct {
	client  *Client
	sender  TxSender
	custody common.Address
}

func NewERC20Funds(client *Client, sender TxSender, custody common.Address) *ERC20Funds {
	return &ERC20Funds{client: client, sender: sender, custody: custody}
}

func (f *ERC20Funds) balanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	parsed, err := erc20ABIInstance()
	if err != nil {
		return nil, err
	}
	out, err := f.client.Call(ctx, token, parsed, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf %s: unexpected return type %T", token, out[0])
	}
	return bal, nil
}

// checkTransferReturn applies the tolerant decoding rule: empty return data
// is success, otherwise the single bool must be true.
func checkTransferReturn(ret []byte) error {
	if len(ret) == 0 {
		return nil
	}
	parsed, err := erc20ABIInstance()
	if err != nil {
		return err
	}
	out, err := parsed.Unpack("transfer", ret)
	if err != nil {
		return fmt.Errorf("decode transfer return: %w", err)
	}
	if ok, _ := out[0].(bool); !ok {
		return fmt.Errorf("token transfer returned false")
	}
	return nil
}

func (f *ERC20Funds) Receive(ctx context.Context, asset, from string, amount sdkmath.Int) (sdkmath.Int, error) {
	if asset == adapter.NativeAsset {
		// Native deposits arrive attached to the call itself; the amount
		// reported by the transport is the amount moved.
		return amount, nil
	}

	token := common.HexToAddress(asset)
	fromAddr := common.HexToAddress(from)

	before, err := f.balanceOf(ctx, token, f.custody)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("receive %s: %w", asset, err)
	}

	parsed, err := erc20ABIInstance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	data, err := parsed.Pack("transferFrom", fromAddr, f.custody, amount.BigInt())
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("pack transferFrom: %w", err)
	}
	ret, err := f.sender.SendCall(ctx, token, data, nil)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("receive %s from %s: %w", asset, from, err)
	}
	if err := checkTransferReturn(ret); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("receive %s from %s: %w", asset, from, err)
	}

	after, err := f.balanceOf(ctx, token, f.custody)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("receive %s: %w", asset, err)
	}
	return sdkmath.NewIntFromBigInt(new(big.Int).Sub(after, before)), nil
}

func (f *ERC20Funds) Send(ctx context.Context, asset, to string, amount sdkmath.Int) error {
	if amount.IsZero() {
		return nil
	}
	toAddr := common.HexToAddress(to)

	if asset == adapter.NativeAsset {
		if _, err := f.sender.SendCall(ctx, toAddr, nil, amount.BigInt()); err != nil {
			return fmt.Errorf("send native to %s: %w", to, err)
		}
		return nil
	}

	parsed, err := erc20ABIInstance()
	if err != nil {
		return err
	}
	data, err := parsed.Pack("transfer", toAddr, amount.BigInt())
	if err != nil {
		return fmt.Errorf("pack transfer: %w", err)
	}
	ret, err := f.sender.SendCall(ctx, common.HexToAddress(asset), data, nil)
	if err != nil {
		return fmt.Errorf("send %s to %s: %w", asset, to, err)
	}
	if err := checkTransferReturn(ret); err != nil {
		return fmt.Errorf("send %s to %s: %w", asset, to, err)
	}
	return nil
}
