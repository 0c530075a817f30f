package contract_test

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3link/internal/chain"
	"github.com/Mohsinsiddi/w3link/internal/contract"
	"github.com/Mohsinsiddi/w3link/test/fixtures"
)

// keySigner signs with a raw key and broadcasts through the same client.
type keySigner struct {
	client *chain.Client
	key    *ecdsa.PrivateKey
	from   common.Address
}

func (s *keySigner) Account() common.Address { return s.from }

func (s *keySigner) Send(ctx context.Context, call chain.Call) (common.Hash, error) {
	tx, chainID, err := chain.BuildTx(ctx, s.client, s.from, call)
	if err != nil {
		return common.Hash{}, err
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), s.client.SendTransaction(ctx, signed)
}

func setup(t *testing.T, opts ...fixtures.NodeOption) (*fixtures.Node, *chain.Client) {
	t.Helper()
	node := fixtures.NewNode(t, opts...)
	client, err := chain.Dial(context.Background(), node.URL, time.Second)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return node, client
}

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

// ---------------------------------------------------------------------------
// ABI
// ---------------------------------------------------------------------------

func TestABISelectors(t *testing.T) {
	want := map[string]string{
		"name":      "06fdde03",
		"symbol":    "95d89b41",
		"decimals":  "313ce567",
		"balanceOf": "70a08231",
		"transfer":  "a9059cbb",
	}
	for name, sel := range want {
		m, ok := contract.ABI.Methods[name]
		require.True(t, ok, name)
		assert.Equal(t, sel, common.Bytes2Hex(m.ID), name)
	}
}

func TestABITransferEventTopic(t *testing.T) {
	assert.Equal(t,
		"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		contract.ABI.Events["Transfer"].ID.Hex())
}

// ---------------------------------------------------------------------------
// reads
// ---------------------------------------------------------------------------

func TestMetadata(t *testing.T) {
	node, client := setup(t, fixtures.WithToken(fixtures.TokenMeta{Name: "USD Coin", Symbol: "USDC", Decimals: 6}))
	tok := contract.NewERC20(node.Token, client, nil)
	ctx := context.Background()

	name, err := tok.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USD Coin", name)

	sym, err := tok.Symbol(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USDC", sym)

	dec, err := tok.Decimals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), dec)
}

func TestBalanceOf(t *testing.T) {
	node, client := setup(t)
	owner := node.Accounts()[0]
	node.SetTokenBalance(owner, eth(5))
	tok := contract.NewERC20(node.Token, client, nil)

	bal, err := tok.BalanceOf(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, eth(5), bal)
}

func TestBalanceOfUnknownHolderIsZero(t *testing.T) {
	node, client := setup(t)
	tok := contract.NewERC20(node.Token, client, nil)

	bal, err := tok.BalanceOf(context.Background(), common.HexToAddress("0x1234"))
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Sign())
}

func TestReadFromAddressWithoutCode(t *testing.T) {
	_, client := setup(t)
	tok := contract.NewERC20(common.HexToAddress("0xdead"), client, nil)

	_, err := tok.Decimals(context.Background())
	assert.ErrorIs(t, err, contract.ErrNoContract)
}

func TestReadNodeError(t *testing.T) {
	node, client := setup(t)
	node.Fail("symbol", fixtures.ErrInternal)
	tok := contract.NewERC20(node.Token, client, nil)

	_, err := tok.Symbol(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol")
}

// ---------------------------------------------------------------------------
// Transfer
// ---------------------------------------------------------------------------

func TestTransferReadOnly(t *testing.T) {
	node, client := setup(t)
	tok := contract.NewERC20(node.Token, client, nil)

	_, err := tok.Transfer(context.Background(), common.HexToAddress("0x1"), big.NewInt(1))
	assert.ErrorIs(t, err, contract.ErrReadOnly)
}

func TestTransferMinesAndEmitsEvent(t *testing.T) {
	node, client := setup(t, fixtures.WithReceiptDelay(1))
	from := node.Accounts()[0]
	to := node.Accounts()[1]
	node.SetTokenBalance(from, eth(10))

	signer := &keySigner{client: client, key: node.Key(from), from: from}
	tok := contract.NewERC20(node.Token, client, signer, contract.WithConfirmation(5*time.Millisecond, time.Second))

	pending, err := tok.Transfer(context.Background(), to, eth(3))
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, pending.Hash())

	receipt, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	assert.Equal(t, eth(7), node.TokenBalance(from))
	assert.Equal(t, eth(3), node.TokenBalance(to))

	events := contract.Transfers(receipt, node.Token)
	require.Len(t, events, 1)
	assert.Equal(t, from, events[0].From)
	assert.Equal(t, to, events[0].To)
	assert.Equal(t, eth(3), events[0].Value)
}

func TestTransferEstimateRevertCarriesReason(t *testing.T) {
	node, client := setup(t)
	from := node.Accounts()[0]
	node.SetTokenBalance(from, big.NewInt(1))

	signer := &keySigner{client: client, key: node.Key(from), from: from}
	tok := contract.NewERC20(node.Token, client, signer)

	_, err := tok.Transfer(context.Background(), node.Accounts()[1], big.NewInt(2))
	require.Error(t, err)
	assert.Equal(t, "ERC20: transfer amount exceeds balance", chain.ReasonOf(err))
	assert.Equal(t, 0, node.Count("eth_sendRawTransaction"))
}

func TestTransferRevertedOnChain(t *testing.T) {
	node, client := setup(t)
	from := node.Accounts()[0]
	node.SetTokenBalance(from, eth(1))
	node.RevertMined("Pausable: paused")

	signer := &keySigner{client: client, key: node.Key(from), from: from}
	tok := contract.NewERC20(node.Token, client, signer, contract.WithConfirmation(5*time.Millisecond, time.Second))

	pending, err := tok.Transfer(context.Background(), node.Accounts()[1], eth(1))
	require.NoError(t, err)

	_, err = pending.Wait(context.Background())
	assert.ErrorIs(t, err, chain.ErrReverted)
	assert.Equal(t, "Pausable: paused", chain.ReasonOf(err))
	assert.Equal(t, eth(1), node.TokenBalance(from))
}

// ---------------------------------------------------------------------------
// Transfers
// ---------------------------------------------------------------------------

func TestTransfersSkipsForeignLogs(t *testing.T) {
	tok := common.HexToAddress("0xC0FFE")
	from := common.HexToAddress("0x1")
	to := common.HexToAddress("0x2")
	ev := contract.ABI.Events["Transfer"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(42))
	require.NoError(t, err)
	transfer := func(addr common.Address) *types.Log {
		return &types.Log{
			Address: addr,
			Topics:  []common.Hash{ev.ID, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
			Data:    data,
		}
	}

	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: tok, Topics: []common.Hash{{1}}},
		transfer(common.HexToAddress("0xBEEF")),
		transfer(tok),
		{Address: tok, Topics: []common.Hash{ev.ID}, Data: data},
	}}

	events := contract.Transfers(receipt, tok)
	require.Len(t, events, 1)
	assert.Equal(t, tok, events[0].Token)
	assert.Equal(t, from, events[0].From)
	assert.Equal(t, to, events[0].To)
	assert.Equal(t, big.NewInt(42), events[0].Value)
}
