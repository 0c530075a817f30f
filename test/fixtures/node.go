// Package fixtures provides an in-process EVM node for tests. It speaks real
// JSON-RPC through go-ethereum's rpc server, so ethclient, the wallet
// backends and the external signer client run their production wire paths.
package fixtures

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3link/internal/contract"
)

// DefaultTokenAddress is where the node's ERC-20 lives.
var DefaultTokenAddress = common.HexToAddress("0x00000000000000000000000000000000000C0FFE")

// TokenMeta describes the node's ERC-20.
type TokenMeta struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// Node is a single-token EVM node with unlocked dev accounts.
type Node struct {
	URL     string
	ChainID *big.Int
	Token   common.Address

	mu       sync.Mutex
	keys     map[common.Address]*ecdsa.PrivateKey
	accounts []common.Address
	native   map[common.Address]*big.Int
	meta     TokenMeta
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	head     uint64
	baseFee  *big.Int
	txs      map[common.Hash]*types.Transaction
	receipts map[common.Hash]*types.Receipt
	hidden   map[common.Hash]int
	counts   map[string]int

	receiptDelay  int
	minedRevert   string
	failing       map[string]error
	requestErr    error
	sendErr       error
	hideAccounts  bool
	clefDelay     time.Duration
	clefDenied    bool
	clefListCalls int
}

// NodeOption configures a Node.
type NodeOption func(*Node)

// WithChainID sets the node's chain id (default 31337).
func WithChainID(id int64) NodeOption {
	return func(n *Node) { n.ChainID = big.NewInt(id) }
}

// WithToken sets the ERC-20 metadata (default "Test Token"/"TST"/18).
func WithToken(meta TokenMeta) NodeOption {
	return func(n *Node) { n.meta = meta }
}

// WithAccounts sets how many unlocked accounts the node exposes (default 2).
func WithAccounts(count int) NodeOption {
	return func(n *Node) {
		n.keys = make(map[common.Address]*ecdsa.PrivateKey, count)
		n.accounts = nil
		for range count {
			n.addKey(mustKey())
		}
	}
}

// WithLegacyFees makes the node report no base fee (pre-London chain).
func WithLegacyFees() NodeOption {
	return func(n *Node) { n.baseFee = nil }
}

// WithReceiptDelay hides each receipt for the given number of polls.
func WithReceiptDelay(polls int) NodeOption {
	return func(n *Node) { n.receiptDelay = polls }
}

// NewNode starts a node on an httptest server that is closed with t.
func NewNode(t *testing.T, opts ...NodeOption) *Node {
	t.Helper()
	n := &Node{
		ChainID:  big.NewInt(31337),
		Token:    DefaultTokenAddress,
		keys:     map[common.Address]*ecdsa.PrivateKey{},
		native:   map[common.Address]*big.Int{},
		meta:     TokenMeta{Name: "Test Token", Symbol: "TST", Decimals: 18},
		balances: map[common.Address]*big.Int{},
		nonces:   map[common.Address]uint64{},
		head:     100,
		baseFee:  big.NewInt(1_000_000_000),
		txs:      map[common.Hash]*types.Transaction{},
		receipts: map[common.Hash]*types.Receipt{},
		hidden:   map[common.Hash]int{},
		counts:   map[string]int{},
		failing:  map[string]error{},
	}
	WithAccounts(2)(n)
	for _, o := range opts {
		o(n)
	}

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", &ethAPI{n: n}))
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	n.URL = ts.URL
	return n
}

// ---------------------------------------------------------------------------
// test controls
// ---------------------------------------------------------------------------

// Accounts returns the unlocked accounts in order.
func (n *Node) Accounts() []common.Address {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]common.Address(nil), n.accounts...)
}

// Key returns the private key of an unlocked account.
func (n *Node) Key(addr common.Address) *ecdsa.PrivateKey {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.keys[addr]
}

// AddKey unlocks an extra account, e.g. one held in a test keyring.
func (n *Node) AddKey(key *ecdsa.PrivateKey) common.Address {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.addKey(key)
}

func (n *Node) addKey(key *ecdsa.PrivateKey) common.Address {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	if _, ok := n.keys[addr]; !ok {
		n.accounts = append(n.accounts, addr)
	}
	n.keys[addr] = key
	return addr
}

// SetNativeBalance sets an account's balance in wei.
func (n *Node) SetNativeBalance(addr common.Address, wei *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.native[addr] = new(big.Int).Set(wei)
}

// SetTokenBalance sets an account's raw token balance.
func (n *Node) SetTokenBalance(addr common.Address, raw *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[addr] = new(big.Int).Set(raw)
}

// TokenBalance returns an account's raw token balance.
func (n *Node) TokenBalance(addr common.Address) *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokenBalance(addr)
}

// RevertMined makes transfers pass estimation but revert once mined, with
// reason recoverable by replaying the call at the parent block.
func (n *Node) RevertMined(reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minedRevert = reason
}

// Fail makes the named ERC-20 function or eth_ method return err.
func (n *Node) Fail(name string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failing[name] = err
}

// RejectRequest makes eth_requestAccounts fail as if the user declined.
func (n *Node) RejectRequest() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requestErr = &rpcError{code: 4001, msg: "User rejected the request."}
}

// RejectSend makes eth_sendTransaction fail as if the user declined.
func (n *Node) RejectSend() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sendErr = &rpcError{code: 4001, msg: "User denied transaction signature."}
}

// HideAccounts makes eth_requestAccounts and account_list return nothing.
func (n *Node) HideAccounts() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hideAccounts = true
}

// Count returns how often an eth_ method or ERC-20 function was invoked.
// ERC-20 functions are counted under their ABI name, e.g. "balanceOf".
func (n *Node) Count(name string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counts[name]
}

// Head returns the current block number.
func (n *Node) Head() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.head
}

// ---------------------------------------------------------------------------
// execution
// ---------------------------------------------------------------------------

func (n *Node) tokenBalance(addr common.Address) *big.Int {
	if b, ok := n.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (n *Node) nativeBalance(addr common.Address) *big.Int {
	if b, ok := n.native[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (n *Node) count(name string) error {
	n.counts[name]++
	return n.failing[name]
}

// execute runs a call. commit applies state changes and collects logs;
// historical marks a replay at a past block. Caller holds n.mu.
func (n *Node) execute(from common.Address, to *common.Address, data []byte, commit, historical bool) ([]byte, []*types.Log, error) {
	if to == nil || *to != n.Token {
		return nil, nil, nil
	}
	if len(data) < 4 {
		return nil, nil, &revertError{}
	}
	method, err := contract.ABI.MethodById(data[:4])
	if err != nil {
		return nil, nil, &revertError{}
	}
	if err := n.count(method.Name); err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, &revertError{}
	}

	switch method.Name {
	case "name":
		return pack(method, n.meta.Name)
	case "symbol":
		return pack(method, n.meta.Symbol)
	case "decimals":
		return pack(method, n.meta.Decimals)
	case "balanceOf":
		return pack(method, n.tokenBalance(args[0].(common.Address)))
	case "transfer":
		dst := args[0].(common.Address)
		amount := args[1].(*big.Int)
		if n.minedRevert != "" && (commit || historical) {
			return nil, nil, &revertError{reason: n.minedRevert}
		}
		bal := n.tokenBalance(from)
		if bal.Cmp(amount) < 0 {
			return nil, nil, &revertError{reason: "ERC20: transfer amount exceeds balance"}
		}
		var logs []*types.Log
		if commit {
			n.balances[from] = bal.Sub(bal, amount)
			n.balances[dst] = n.tokenBalance(dst).Add(n.tokenBalance(dst), amount)
			ev := contract.ABI.Events["Transfer"]
			payload, _ := ev.Inputs.NonIndexed().Pack(amount)
			logs = append(logs, &types.Log{
				Address: n.Token,
				Topics:  []common.Hash{ev.ID, common.BytesToHash(from.Bytes()), common.BytesToHash(dst.Bytes())},
				Data:    payload,
			})
		}
		out, _, err := pack(method, true)
		return out, logs, err
	default:
		return nil, nil, &revertError{}
	}
}

func pack(method *abi.Method, values ...interface{}) ([]byte, []*types.Log, error) {
	out, err := method.Outputs.Pack(values...)
	return out, nil, err
}

// include validates and mines tx from sender. Caller holds n.mu.
func (n *Node) include(tx *types.Transaction, from common.Address) (common.Hash, error) {
	if tx.Nonce() != n.nonces[from] {
		return common.Hash{}, fmt.Errorf("invalid nonce: have %d, want %d", tx.Nonce(), n.nonces[from])
	}
	n.nonces[from]++
	n.head++

	status := types.ReceiptStatusSuccessful
	_, logs, err := n.execute(from, tx.To(), tx.Data(), true, false)
	if err != nil {
		status = types.ReceiptStatusFailed
		logs = nil
	}
	if v := tx.Value(); v.Sign() > 0 && status == types.ReceiptStatusSuccessful && tx.To() != nil {
		n.native[from] = n.nativeBalance(from).Sub(n.nativeBalance(from), v)
		n.native[*tx.To()] = n.nativeBalance(*tx.To()).Add(n.nativeBalance(*tx.To()), v)
	}

	hash := tx.Hash()
	blockHash := common.BigToHash(new(big.Int).SetUint64(n.head))
	for i, l := range logs {
		l.TxHash = hash
		l.BlockHash = blockHash
		l.BlockNumber = n.head
		l.Index = uint(i)
	}
	if logs == nil {
		logs = []*types.Log{}
	}
	n.txs[hash] = tx
	n.receipts[hash] = &types.Receipt{
		Type:              tx.Type(),
		Status:            status,
		CumulativeGasUsed: 51_000,
		Logs:              logs,
		TxHash:            hash,
		GasUsed:           51_000,
		EffectiveGasPrice: big.NewInt(1),
		BlockHash:         blockHash,
		BlockNumber:       new(big.Int).SetUint64(n.head),
	}
	n.hidden[hash] = n.receiptDelay
	return hash, nil
}

func (n *Node) signer() types.Signer {
	return types.LatestSignerForChainID(n.ChainID)
}

// signFor builds and signs a dynamic-fee tx for an unlocked account.
func (n *Node) signFor(from common.Address, to *common.Address, data []byte, value *big.Int, gas uint64, nonce *uint64) (*types.Transaction, error) {
	key, ok := n.keys[from]
	if !ok {
		return nil, fmt.Errorf("unknown account %s", from.Hex())
	}
	if value == nil {
		value = new(big.Int)
	}
	if gas == 0 {
		gas = 100_000
	}
	nc := n.nonces[from]
	if nonce != nil {
		nc = *nonce
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   n.ChainID,
		Nonce:     nc,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2_000_000_000),
		Gas:       gas,
		To:        to,
		Value:     value,
		Data:      data,
	})
	return types.SignTx(tx, n.signer(), key)
}

func mustKey() *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return key
}

// ---------------------------------------------------------------------------
// errors
// ---------------------------------------------------------------------------

// rpcError carries an EIP-1193 / JSON-RPC error code.
type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string  { return e.msg }
func (e *rpcError) ErrorCode() int { return e.code }

// revertError is what geth returns for a reverted call: code 3 and the
// ABI-encoded Error(string) payload as data.
type revertError struct {
	reason string
}

func (e *revertError) Error() string {
	if e.reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.reason
}

func (e *revertError) ErrorCode() int { return 3 }

func (e *revertError) ErrorData() interface{} {
	if e.reason == "" {
		return nil
	}
	strTy, _ := abi.NewType("string", "", nil)
	payload, _ := abi.Arguments{{Type: strTy}}.Pack(e.reason)
	return hexutil.Encode(append([]byte{0x08, 0xc3, 0x79, 0xa0}, payload...))
}

// ErrInternal is a convenient error for Fail.
var ErrInternal = errors.New("internal error")
