package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fallbackTipCap is used when the node cannot suggest a priority fee.
var fallbackTipCap = big.NewInt(1_000_000_000)

// gasBufferPct pads the node's gas estimate.
const gasBufferPct = 20

// FeeQuote holds the pricing chosen for a transaction.
type FeeQuote struct {
	BaseFee  *big.Int // nil on legacy chains
	TipCap   *big.Int
	FeeCap   *big.Int
	GasPrice *big.Int // legacy only
}

// IsDynamic reports whether the chain supports EIP-1559 pricing.
func (q *FeeQuote) IsDynamic() bool {
	return q.BaseFee != nil
}

// SuggestFees prices a transaction from the latest header. EIP-1559 chains get
// feeCap = 2*baseFee + tip, legacy chains get eth_gasPrice.
func SuggestFees(ctx context.Context, b Transactor) (*FeeQuote, error) {
	head, err := b.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching latest header: %w", err)
	}
	if head.BaseFee == nil {
		gp, err := b.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching gas price: %w", err)
		}
		return &FeeQuote{GasPrice: gp}, nil
	}

	tip, err := b.SuggestGasTipCap(ctx)
	if err != nil || tip == nil {
		tip = new(big.Int).Set(fallbackTipCap)
	}
	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)
	return &FeeQuote{BaseFee: head.BaseFee, TipCap: tip, FeeCap: feeCap}, nil
}

// BuildTx fills nonce, gas and fees for call sent from `from` and returns the
// unsigned transaction together with the chain id it must be signed for.
// Gas estimation runs the call, so a transfer that would revert fails here
// with the node's revert message.
func BuildTx(ctx context.Context, b Transactor, from common.Address, call Call) (*types.Transaction, *big.Int, error) {
	chainID, err := b.ChainID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching chain id: %w", err)
	}
	nonce, err := b.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching nonce: %w", err)
	}

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	to := call.To
	gas, err := b.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  call.Data,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("estimating gas: %w", err)
	}
	gas += gas * gasBufferPct / 100

	fees, err := SuggestFees(ctx, b)
	if err != nil {
		return nil, nil, err
	}

	if !fees.IsDynamic() {
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: fees.GasPrice,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     call.Data,
		}), chainID, nil
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: fees.TipCap,
		GasFeeCap: fees.FeeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      call.Data,
	}), chainID, nil
}

// WeiToGwei converts wei to Gwei as a float64 (display only).
func WeiToGwei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e9)).Float64()
	return f
}
