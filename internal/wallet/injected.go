package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/Mohsinsiddi/w3link/internal/chain"
)

// ErrRejected is returned when the user declines a wallet prompt (EIP-1193 code 4001).
var ErrRejected = errors.New("request rejected by user")

const codeUserRejected = 4001

// Injected is a wallet that speaks EIP-1193 over JSON-RPC: it grants accounts
// through eth_requestAccounts and signs whatever eth_sendTransaction hands it.
type Injected struct {
	endpoint string
	timeout  time.Duration

	mu     sync.Mutex
	client *chain.Client
}

// NewInjected creates a backend for the wallet listening on endpoint.
// Nothing is dialed until the session connects.
func NewInjected(endpoint string) *Injected {
	return &Injected{endpoint: endpoint, timeout: chain.DefaultDialTimeout}
}

func (w *Injected) Kind() Kind { return InjectedWallet }

// Endpoint returns the wallet URL.
func (w *Injected) Endpoint() string { return w.endpoint }

func (w *Injected) dial(ctx context.Context) (*chain.Client, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		return w.client, nil
	}
	c, err := chain.Dial(ctx, w.endpoint, w.timeout)
	if err != nil {
		return nil, err
	}
	w.client = c
	return c, nil
}

func (w *Injected) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	c, err := w.dial(ctx)
	if err != nil {
		return nil, err
	}
	var accounts []common.Address
	if err := c.RPC.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, userRejected(err)
	}
	return accounts, nil
}

func (w *Injected) Handles(ctx context.Context, account common.Address) (chain.Reader, chain.Signer, error) {
	c, err := w.dial(ctx)
	if err != nil {
		return nil, nil, err
	}
	return c, &walletSigner{rc: c.RPC, from: account}, nil
}

func (w *Injected) NetworkID(ctx context.Context) (int64, error) {
	c, err := w.dial(ctx)
	if err != nil {
		return 0, err
	}
	id, err := c.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return id.Int64(), nil
}

// Close drops the connection; the next connect dials again.
func (w *Injected) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		w.client.Close()
		w.client = nil
	}
}

// sendTxArgs is the eth_sendTransaction request object. Gas, fees and nonce
// are left to the wallet.
type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
}

// walletSigner delegates signing to the wallet behind rc.
type walletSigner struct {
	rc   *gethrpc.Client
	from common.Address
}

func (s *walletSigner) Account() common.Address { return s.from }

func (s *walletSigner) Send(ctx context.Context, call chain.Call) (common.Hash, error) {
	args := sendTxArgs{From: s.from, To: &call.To, Data: call.Data}
	if call.Value != nil && call.Value.Sign() > 0 {
		args.Value = (*hexutil.Big)(call.Value)
	}
	var hash common.Hash
	if err := s.rc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, userRejected(err)
	}
	return hash, nil
}

// userRejected maps an EIP-1193 4001 error onto ErrRejected.
func userRejected(err error) error {
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeUserRejected {
		return fmt.Errorf("%w: %s", ErrRejected, rpcErr.Error())
	}
	return err
}
