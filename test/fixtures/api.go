package fixtures

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// callArgs is the subset of the eth_call / eth_sendTransaction object the
// node understands.
type callArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Gas   *hexutil.Uint64 `json:"gas"`
	Value *hexutil.Big    `json:"value"`
	Nonce *hexutil.Uint64 `json:"nonce"`
	Data  *hexutil.Bytes  `json:"data"`
	Input *hexutil.Bytes  `json:"input"`
}

func (a callArgs) data() []byte {
	if a.Input != nil {
		return *a.Input
	}
	if a.Data != nil {
		return *a.Data
	}
	return nil
}

func (a callArgs) from() common.Address {
	if a.From == nil {
		return common.Address{}
	}
	return *a.From
}

func (a callArgs) value() *big.Int {
	if a.Value == nil {
		return new(big.Int)
	}
	return a.Value.ToInt()
}

// ethAPI is registered as the "eth" namespace.
type ethAPI struct {
	n *Node
}

func (api *ethAPI) ChainId() (*hexutil.Big, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.count("eth_chainId"); err != nil {
		return nil, err
	}
	return (*hexutil.Big)(n.ChainID), nil
}

func (api *ethAPI) BlockNumber() hexutil.Uint64 {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counts["eth_blockNumber"]++
	return hexutil.Uint64(n.head)
}

func (api *ethAPI) GetBalance(addr common.Address, _ *string) (*hexutil.Big, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.count("eth_getBalance"); err != nil {
		return nil, err
	}
	return (*hexutil.Big)(n.nativeBalance(addr)), nil
}

func (api *ethAPI) RequestAccounts() ([]common.Address, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counts["eth_requestAccounts"]++
	if n.requestErr != nil {
		return nil, n.requestErr
	}
	if n.hideAccounts {
		return []common.Address{}, nil
	}
	return append([]common.Address(nil), n.accounts...), nil
}

func (api *ethAPI) Accounts() []common.Address {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counts["eth_accounts"]++
	if n.hideAccounts {
		return []common.Address{}
	}
	return append([]common.Address(nil), n.accounts...)
}

func (api *ethAPI) Call(args callArgs, block *string) (hexutil.Bytes, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counts["eth_call"]++
	historical := block != nil && *block != "latest" && *block != "pending"
	out, _, err := n.execute(args.from(), args.To, args.data(), false, historical)
	return out, err
}

func (api *ethAPI) EstimateGas(args callArgs, _ *string) (hexutil.Uint64, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.count("eth_estimateGas"); err != nil {
		return 0, err
	}
	if _, _, err := n.execute(args.from(), args.To, args.data(), false, false); err != nil {
		return 0, err
	}
	if args.To != nil && *args.To == n.Token {
		return 51_000, nil
	}
	return 21_000, nil
}

func (api *ethAPI) GasPrice() *hexutil.Big {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	price := big.NewInt(2_000_000_000)
	if n.baseFee != nil {
		price = new(big.Int).Add(n.baseFee, big.NewInt(1))
	}
	return (*hexutil.Big)(price)
}

func (api *ethAPI) MaxPriorityFeePerGas() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(1))
}

func (api *ethAPI) GetTransactionCount(addr common.Address, _ *string) hexutil.Uint64 {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	return hexutil.Uint64(n.nonces[addr])
}

func (api *ethAPI) GetBlockByNumber(_ string, _ bool) (*types.Header, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	var baseFee *big.Int
	if n.baseFee != nil {
		baseFee = new(big.Int).Set(n.baseFee)
	}
	return &types.Header{
		Number:     new(big.Int).SetUint64(n.head),
		Difficulty: new(big.Int),
		GasLimit:   30_000_000,
		Time:       uint64(time.Now().Unix()),
		BaseFee:    baseFee,
	}, nil
}

func (api *ethAPI) SendRawTransaction(raw hexutil.Bytes) (common.Hash, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.count("eth_sendRawTransaction"); err != nil {
		return common.Hash{}, err
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, fmt.Errorf("rlp: %w", err)
	}
	if id := tx.ChainId(); tx.Type() != types.LegacyTxType && id.Cmp(n.ChainID) != 0 {
		return common.Hash{}, fmt.Errorf("invalid chain id %s", id)
	}
	from, err := types.Sender(n.signer(), tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid sender: %w", err)
	}
	return n.include(tx, from)
}

func (api *ethAPI) SendTransaction(args callArgs) (common.Hash, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counts["eth_sendTransaction"]++
	if n.sendErr != nil {
		return common.Hash{}, n.sendErr
	}
	// Wallets estimate before prompting; a reverting call never reaches the user.
	if _, _, err := n.execute(args.from(), args.To, args.data(), false, false); err != nil {
		return common.Hash{}, err
	}
	var gas uint64
	if args.Gas != nil {
		gas = uint64(*args.Gas)
	}
	var nonce *uint64
	if args.Nonce != nil {
		v := uint64(*args.Nonce)
		nonce = &v
	}
	tx, err := n.signFor(args.from(), args.To, args.data(), args.value(), gas, nonce)
	if err != nil {
		return common.Hash{}, err
	}
	return n.include(tx, args.from())
}

func (api *ethAPI) GetTransactionReceipt(hash common.Hash) (*types.Receipt, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.count("eth_getTransactionReceipt"); err != nil {
		return nil, err
	}
	r, ok := n.receipts[hash]
	if !ok {
		return nil, nil
	}
	if n.hidden[hash] > 0 {
		n.hidden[hash]--
		return nil, nil
	}
	return r, nil
}

func (api *ethAPI) GetTransactionByHash(hash common.Hash) (*types.Transaction, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.txs[hash], nil
}
