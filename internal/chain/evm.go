package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// DefaultDialTimeout bounds how long Dial waits for an endpoint.
const DefaultDialTimeout = 8 * time.Second

// Reader is the read capability of a connected wallet: native balance,
// contract calls and receipt lookups. *ethclient.Client satisfies it.
type Reader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Transactor is a Reader that can also price, estimate and broadcast
// transactions. Signers that author their own transactions need one.
type Transactor interface {
	Reader
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Call is a state-changing contract call handed to a Signer.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Signer authors, signs and submits transactions for a single account.
type Signer interface {
	Account() common.Address
	Send(ctx context.Context, call Call) (common.Hash, error)
}

// Client wraps an ethclient connection and keeps the raw rpc handle for
// wallet-specific methods such as eth_requestAccounts.
type Client struct {
	*ethclient.Client
	RPC *rpc.Client
	URL string
}

// Dial connects to an EVM JSON-RPC endpoint. A zero timeout means ctx alone
// bounds the attempt.
func Dial(ctx context.Context, url string, timeout time.Duration) (*Client, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return NewClient(rc, url), nil
}

// NewClient wraps an already established rpc connection.
func NewClient(rc *rpc.Client, url string) *Client {
	return &Client{
		Client: ethclient.NewClient(rc),
		RPC:    rc,
		URL:    url,
	}
}

// Ping tests the endpoint and returns latency + head block number.
func (c *Client) Ping(ctx context.Context) (latency time.Duration, blockNum uint64, err error) {
	start := time.Now()
	blockNum, err = c.BlockNumber(ctx)
	latency = time.Since(start)
	if err != nil {
		return latency, 0, err
	}
	return latency, blockNum, nil
}
