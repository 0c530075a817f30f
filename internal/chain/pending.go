package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrReverted is matched by every RevertError.
	ErrReverted = errors.New("transaction reverted")
	// ErrConfirmTimeout is returned when a transaction is not mined in time.
	ErrConfirmTimeout = errors.New("transaction not confirmed in time")
)

const (
	DefaultPollInterval   = 2 * time.Second
	DefaultConfirmTimeout = 3 * time.Minute
)

// RevertError reports a mined transaction whose receipt status is 0.
type RevertError struct {
	Hash   common.Hash
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transaction %s reverted", e.Hash.Hex())
	}
	return fmt.Sprintf("transaction %s reverted: %s", e.Hash.Hex(), e.Reason)
}

// Is makes errors.Is(err, ErrReverted) hold.
func (e *RevertError) Is(target error) bool {
	return target == ErrReverted
}

// Pending is a submitted transaction that can be waited on.
type Pending interface {
	Hash() common.Hash
	Wait(ctx context.Context) (*types.Receipt, error)
}

// PendingTx is a submitted transaction awaiting inclusion.
type PendingTx struct {
	hash     common.Hash
	reader   Reader
	interval time.Duration
	timeout  time.Duration
}

// NewPendingTx tracks hash through r. Non-positive interval or timeout fall
// back to DefaultPollInterval and DefaultConfirmTimeout.
func NewPendingTx(r Reader, hash common.Hash, interval, timeout time.Duration) *PendingTx {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &PendingTx{hash: hash, reader: r, interval: interval, timeout: timeout}
}

// Hash returns the transaction hash.
func (p *PendingTx) Hash() common.Hash {
	return p.hash
}

// Wait polls for the receipt until the transaction is mined, the confirm
// timeout passes or ctx is cancelled. A reverted receipt is returned together
// with a *RevertError.
func (p *PendingTx) Wait(ctx context.Context) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		receipt, err := p.reader.TransactionReceipt(waitCtx, p.hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, &RevertError{Hash: p.hash, Reason: p.revertReason(ctx, receipt)}
			}
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil:
			return nil, fmt.Errorf("fetching receipt for %s: %w", p.hash.Hex(), err)
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s not mined within %s", ErrConfirmTimeout, p.hash.Hex(), p.timeout)
		case <-ticker.C:
		}
	}
}

// revertReason replays the failed transaction against the state it ran on
// and extracts the reason from the node's error.
func (p *PendingTx) revertReason(ctx context.Context, receipt *types.Receipt) string {
	tx, _, err := p.reader.TransactionByHash(ctx, p.hash)
	if err != nil || tx == nil {
		return ""
	}
	var signer types.Signer = types.HomesteadSigner{}
	if id := tx.ChainId(); id != nil && id.Sign() > 0 {
		signer = types.LatestSignerForChainID(id)
	}
	from, err := types.Sender(signer, tx)
	if err != nil {
		return ""
	}

	var block *big.Int
	if receipt.BlockNumber != nil && receipt.BlockNumber.Sign() > 0 {
		block = new(big.Int).Sub(receipt.BlockNumber, big.NewInt(1))
	}
	_, err = p.reader.CallContract(ctx, ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}, block)
	if err == nil {
		return ""
	}
	return ExtractRevertReason(err)
}
