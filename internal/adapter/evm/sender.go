package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyedSender implements TxSender with a local private key. Because a
// mined transaction carries no return data, each call is first simulated
// with eth_call from the same sender; the simulated output is what the
// caller sees, and the real transaction is then signed, sent and awaited.
// Calls are serialized so nonces stay ordered.
type KeyedSender struct {
	mu      sync.Mutex
	client  *Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
}

func NewKeyedSender(ctx context.Context, client *Client, hexKey string) (*KeyedSender, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	chainID, err := client.ethClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	return &KeyedSender{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

// From returns the sender's address.
func (s *KeyedSender) From() common.Address {
	return s.from
}

func (s *KeyedSender) SendCall(ctx context.Context, to common.Address, data []byte, value *big.Int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eth := s.client.ethClient
	msg := ethereum.CallMsg{From: s.from, To: &to, Data: data, Value: value}

	// Simulate first: surfaces reverts before spending gas and yields the
	// return data a mined transaction cannot.
	out, err := eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("simulate call to %s: %w", to, err)
	}

	gas, err := eth.EstimateGas(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gasPrice, err := eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	nonce, err := eth.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, eth, signed)
	if err != nil {
		return nil, fmt.Errorf("wait mined %s: %w", signed.Hash(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("tx %s reverted", signed.Hash())
	}
	return out, nil
}
