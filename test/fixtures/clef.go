package fixtures

import (
	"errors"
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

// ErrDenied is what the remote signer answers when its operator declines.
var ErrDenied = errors.New("request denied")

// ClefOption configures the remote signer.
type ClefOption func(*Node)

// WithApprovalDelay makes account_list block for d, simulating an operator
// who has not approved the pairing yet.
func WithApprovalDelay(d time.Duration) ClefOption {
	return func(n *Node) { n.clefDelay = d }
}

// WithDenial makes account_list fail.
func WithDenial() ClefOption {
	return func(n *Node) { n.clefDenied = true }
}

// Clef starts a remote signer (Clef's external API) holding the node's
// unlocked keys and returns its URL.
func (n *Node) Clef(t *testing.T, opts ...ClefOption) string {
	t.Helper()
	n.mu.Lock()
	for _, o := range opts {
		o(n)
	}
	n.mu.Unlock()

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("account", &clefAPI{n: n}))
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return ts.URL
}

// ClefListCalls returns how often account_list was invoked.
func (n *Node) ClefListCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clefListCalls
}

// clefTxArgs mirrors the SendTxArgs object sent to account_signTransaction.
type clefTxArgs struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Value                hexutil.Big     `json:"value"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	Data                 *hexutil.Bytes  `json:"data"`
	Input                *hexutil.Bytes  `json:"input"`
	ChainID              *hexutil.Big    `json:"chainId"`
}

type signTxResult struct {
	Raw hexutil.Bytes      `json:"raw"`
	Tx  *types.Transaction `json:"tx"`
}

type clefAPI struct {
	n *Node
}

func (api *clefAPI) Version() string {
	return "6.0.0"
}

func (api *clefAPI) List() ([]common.Address, error) {
	n := api.n
	n.mu.Lock()
	n.clefListCalls++
	delay, denied := n.clefDelay, n.clefDenied
	n.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if denied {
		return nil, ErrDenied
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.hideAccounts {
		return []common.Address{}, nil
	}
	return append([]common.Address(nil), n.accounts...), nil
}

func (api *clefAPI) SignTransaction(args clefTxArgs, _ *string) (*signTxResult, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counts["account_signTransaction"]++
	if n.clefDenied {
		return nil, ErrDenied
	}
	key, ok := n.keys[args.From]
	if !ok {
		return nil, errors.New("unknown account")
	}

	data := []byte(nil)
	switch {
	case args.Input != nil:
		data = *args.Input
	case args.Data != nil:
		data = *args.Data
	}
	chainID := n.ChainID
	if args.ChainID != nil {
		chainID = args.ChainID.ToInt()
	}

	var inner types.TxData
	if args.MaxFeePerGas != nil {
		tip := big.NewInt(0)
		if args.MaxPriorityFeePerGas != nil {
			tip = args.MaxPriorityFeePerGas.ToInt()
		}
		inner = &types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     uint64(args.Nonce),
			GasTipCap: tip,
			GasFeeCap: args.MaxFeePerGas.ToInt(),
			Gas:       uint64(args.Gas),
			To:        args.To,
			Value:     args.Value.ToInt(),
			Data:      data,
		}
	} else {
		price := big.NewInt(0)
		if args.GasPrice != nil {
			price = args.GasPrice.ToInt()
		}
		inner = &types.LegacyTx{
			Nonce:    uint64(args.Nonce),
			GasPrice: price,
			Gas:      uint64(args.Gas),
			To:       args.To,
			Value:    args.Value.ToInt(),
			Data:     data,
		}
	}

	signed, err := types.SignTx(types.NewTx(inner), types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &signTxResult{Raw: raw, Tx: signed}, nil
}
