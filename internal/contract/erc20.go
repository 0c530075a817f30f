package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Mohsinsiddi/w3link/internal/chain"
)

var (
	// ErrNoContract is returned when a call comes back empty, which is what
	// a node answers for an address without code.
	ErrNoContract = errors.New("no contract code at address")
	// ErrReadOnly is returned by Transfer on a token bound without a signer.
	ErrReadOnly = errors.New("token is bound read-only")
	errNotTransferLog = errors.New("log is not an ERC-20 Transfer")
)

// ERC20 is a token contract bound to a read handle and, optionally, a signer.
type ERC20 struct {
	Address common.Address

	reader   chain.Reader
	signer   chain.Signer
	interval time.Duration
	timeout  time.Duration
}

// Option configures an ERC20 binding.
type Option func(*ERC20)

// WithConfirmation sets the receipt poll interval and the confirm timeout
// used by the PendingTx returned from Transfer.
func WithConfirmation(interval, timeout time.Duration) Option {
	return func(t *ERC20) {
		t.interval = interval
		t.timeout = timeout
	}
}

// NewERC20 binds the token at addr. signer may be nil for read-only use.
func NewERC20(addr common.Address, reader chain.Reader, signer chain.Signer, opts ...Option) *ERC20 {
	t := &ERC20{Address: addr, reader: reader, signer: signer}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Name returns the token name.
func (t *ERC20) Name(ctx context.Context) (string, error) {
	return t.callString(ctx, "name")
}

// Symbol returns the token symbol.
func (t *ERC20) Symbol(ctx context.Context) (string, error) {
	return t.callString(ctx, "symbol")
}

// Decimals returns the token's decimal places.
func (t *ERC20) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected type %T", out[0])
	}
	return d, nil
}

// BalanceOf returns the raw balance held by owner.
func (t *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return t.callUint(ctx, "balanceOf", owner)
}

// Transfer submits transfer(to, amount) through the bound signer and returns
// as soon as the transaction is accepted.
func (t *ERC20) Transfer(ctx context.Context, to common.Address, amount *big.Int) (chain.Pending, error) {
	if t.signer == nil {
		return nil, ErrReadOnly
	}
	data, err := ABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("encoding transfer: %w", err)
	}
	hash, err := t.signer.Send(ctx, chain.Call{To: t.Address, Data: data})
	if err != nil {
		return nil, err
	}
	return chain.NewPendingTx(t.reader, hash, t.interval, t.timeout), nil
}

func (t *ERC20) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", method, err)
	}
	raw, err := t.reader.CallContract(ctx, ethereum.CallMsg{To: &t.Address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s: %w %s", method, ErrNoContract, t.Address.Hex())
	}
	out, err := ABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", method, err)
	}
	return out, nil
}

func (t *ERC20) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := t.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected type %T", method, out[0])
	}
	return n, nil
}

// callString decodes a string result. Some early tokens (MKR, SAI) return
// bytes32 for name/symbol; that shape is accepted too.
func (t *ERC20) callString(ctx context.Context, method string) (string, error) {
	out, err := t.call(ctx, method)
	if err == nil {
		if s, ok := out[0].(string); ok {
			return s, nil
		}
		return "", fmt.Errorf("%s: unexpected type %T", method, out[0])
	}

	data, _ := ABI.Pack(method)
	raw, cerr := t.reader.CallContract(ctx, ethereum.CallMsg{To: &t.Address, Data: data}, nil)
	if cerr != nil || len(raw) != 32 {
		return "", err
	}
	return strings.TrimRight(string(raw), "\x00"), nil
}

// TransferEvent is a decoded Transfer(from, to, value) log.
type TransferEvent struct {
	Token common.Address
	From  common.Address
	To    common.Address
	Value *big.Int
}

func parseTransfer(log *types.Log) (*TransferEvent, error) {
	ev := ABI.Events["Transfer"]
	if len(log.Topics) != 3 || log.Topics[0] != ev.ID {
		return nil, errNotTransferLog
	}
	out, err := ev.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding Transfer data: %w", err)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decoding Transfer value: unexpected type %T", out[0])
	}
	return &TransferEvent{
		Token: log.Address,
		From:  common.BytesToAddress(log.Topics[1].Bytes()),
		To:    common.BytesToAddress(log.Topics[2].Bytes()),
		Value: value,
	}, nil
}

// Transfers returns the Transfer events emitted by token in receipt.
func Transfers(receipt *types.Receipt, token common.Address) []TransferEvent {
	var out []TransferEvent
	for _, l := range receipt.Logs {
		if l.Address != token {
			continue
		}
		if ev, err := parseTransfer(l); err == nil {
			out = append(out, *ev)
		}
	}
	return out
}
