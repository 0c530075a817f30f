package token_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3link/internal/chain"
	"github.com/Mohsinsiddi/w3link/internal/contract"
	"github.com/Mohsinsiddi/w3link/internal/token"
	"github.com/Mohsinsiddi/w3link/internal/ui"
	"github.com/Mohsinsiddi/w3link/internal/wallet"
)

var (
	tokenAddr = "0x00000000000000000000000000000000000C0FFE"
	owner     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient = "0x2222222222222222222222222222222222222222"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

// fakeToken is an in-memory ERC-20 that counts calls.
type fakeToken struct {
	mu       sync.Mutex
	name     string
	symbol   string
	decimals uint8
	balance  *big.Int
	fail     map[string]error
	calls    map[string]int
	sent     []*big.Int

	submitErr error
	waitErr   error
	moved     *big.Int // when set, the receipt carries a Transfer event of this value
	barrier   *sync.WaitGroup // each read waits for all reads when set
	gate      chan struct{}   // Decimals blocks until closed when set
	entered   chan struct{}
}

func newFakeToken() *fakeToken {
	return &fakeToken{
		name:     "USD Coin",
		symbol:   "USDC",
		decimals: 6,
		balance:  big.NewInt(12_500_000),
		fail:     map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeToken) hit(name string) error {
	f.mu.Lock()
	f.calls[name]++
	err := f.fail[name]
	barrier := f.barrier
	f.mu.Unlock()
	if barrier != nil {
		barrier.Done()
		done := make(chan struct{})
		go func() { barrier.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(time.Second):
			return errors.New("reads did not run concurrently")
		}
	}
	return err
}

func (f *fakeToken) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeToken) Name(context.Context) (string, error) {
	return f.name, f.hit("name")
}

func (f *fakeToken) Symbol(context.Context) (string, error) {
	return f.symbol, f.hit("symbol")
}

func (f *fakeToken) Decimals(ctx context.Context) (uint8, error) {
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	return f.decimals, f.hit("decimals")
}

func (f *fakeToken) BalanceOf(_ context.Context, who common.Address) (*big.Int, error) {
	err := f.hit("balanceOf")
	f.mu.Lock()
	defer f.mu.Unlock()
	if who != owner {
		return big.NewInt(0), err
	}
	return new(big.Int).Set(f.balance), err
}

func (f *fakeToken) Transfer(_ context.Context, _ common.Address, amount *big.Int) (chain.Pending, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["transfer"]++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.sent = append(f.sent, new(big.Int).Set(amount))
	return &fakePending{tok: f, amount: amount}, nil
}

type fakePending struct {
	tok    *fakeToken
	amount *big.Int
}

func (p *fakePending) Hash() common.Hash { return common.Hash{0xaa} }

func (p *fakePending) Wait(context.Context) (*types.Receipt, error) {
	p.tok.mu.Lock()
	defer p.tok.mu.Unlock()
	if p.tok.waitErr != nil {
		return &types.Receipt{Status: types.ReceiptStatusFailed}, p.tok.waitErr
	}
	p.tok.balance.Sub(p.tok.balance, p.amount)
	receipt := &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: p.Hash()}
	if p.tok.moved != nil {
		ev := contract.ABI.Events["Transfer"]
		data, _ := ev.Inputs.NonIndexed().Pack(p.tok.moved)
		receipt.Logs = []*types.Log{{
			Address: common.HexToAddress(tokenAddr),
			Topics: []common.Hash{ev.ID,
				common.BytesToHash(owner.Bytes()),
				common.BytesToHash(common.HexToAddress(recipient).Bytes())},
			Data: data,
		}}
	}
	return receipt, nil
}

// fakeBackend connects instantly with fixed handles.
type fakeBackend struct {
	signer chain.Signer
}

func (b *fakeBackend) Kind() wallet.Kind { return wallet.InjectedWallet }

func (b *fakeBackend) RequestAccounts(context.Context) ([]common.Address, error) {
	return []common.Address{owner}, nil
}

func (b *fakeBackend) Handles(context.Context, common.Address) (chain.Reader, chain.Signer, error) {
	return fakeReader{}, b.signer, nil
}

func (b *fakeBackend) NetworkID(context.Context) (int64, error) { return 31337, nil }

func (b *fakeBackend) Close() {}

type fakeReader struct{ chain.Reader }

func (fakeReader) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

type fakeSigner struct{ chain.Signer }

// setup returns a service over a connected session whose token binding is tok.
func setup(t *testing.T, tok *fakeToken) (*token.Service, *ui.Recorder) {
	t.Helper()
	session := wallet.NewSession(wallet.WithInjected(&fakeBackend{signer: fakeSigner{}}))
	require.NoError(t, session.ConnectInjected(context.Background()))
	return newService(session, tok)
}

func newService(session token.SessionView, tok *fakeToken) (*token.Service, *ui.Recorder) {
	rec := ui.NewRecorder()
	svc := token.NewService(session,
		token.WithNotifier(rec),
		token.WithBinder(func(common.Address, chain.Reader, chain.Signer) token.Token { return tok }),
	)
	return svc, rec
}

// ---------------------------------------------------------------------------
// GetTokenInfo
// ---------------------------------------------------------------------------

func TestGetTokenInfo(t *testing.T) {
	tok := newFakeToken()
	svc, rec := setup(t, tok)

	info, err := svc.GetTokenInfo(context.Background(), tokenAddr)
	require.NoError(t, err)
	assert.Equal(t, "USD Coin", info.Name)
	assert.Equal(t, "USDC", info.Symbol)
	assert.Equal(t, uint8(6), info.Decimals)
	assert.Equal(t, "12.5", info.Balance)
	assert.Equal(t, common.HexToAddress(tokenAddr), info.Address)

	held, ok := svc.Info()
	require.True(t, ok)
	assert.Equal(t, *info, held)
	assert.Empty(t, rec.Notes())
	for _, m := range []string{"name", "symbol", "decimals", "balanceOf"} {
		assert.Equal(t, 1, tok.count(m), m)
	}
}

func TestGetTokenInfoReadsConcurrently(t *testing.T) {
	tok := newFakeToken()
	tok.barrier = &sync.WaitGroup{}
	tok.barrier.Add(4)
	svc, _ := setup(t, tok)

	_, err := svc.GetTokenInfo(context.Background(), tokenAddr)
	require.NoError(t, err)
}

func TestGetTokenInfoFailurePreservesPrior(t *testing.T) {
	tok := newFakeToken()
	svc, rec := setup(t, tok)
	_, err := svc.GetTokenInfo(context.Background(), tokenAddr)
	require.NoError(t, err)
	before, _ := svc.Info()

	tok.mu.Lock()
	tok.fail["decimals"] = errors.New("execution reverted")
	tok.balance = big.NewInt(1)
	tok.mu.Unlock()

	info, err := svc.GetTokenInfo(context.Background(), tokenAddr)
	assert.Nil(t, info)
	assert.ErrorIs(t, err, token.ErrTokenQueryFailed)
	after, ok := svc.Info()
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, []string{"Failed to get token information"}, rec.Messages(ui.LevelError))
}

func TestGetTokenInfoInvalidAddress(t *testing.T) {
	tok := newFakeToken()
	svc, rec := setup(t, tok)

	_, err := svc.GetTokenInfo(context.Background(), "0x1234")
	assert.ErrorIs(t, err, token.ErrInvalidInput)
	assert.Equal(t, []string{"Please enter a valid token address"}, rec.Messages(ui.LevelError))
	assert.Zero(t, tok.count("name"))
}

func TestGetTokenInfoNotConnected(t *testing.T) {
	tok := newFakeToken()
	svc, rec := newService(wallet.NewSession(), tok)

	_, err := svc.GetTokenInfo(context.Background(), tokenAddr)
	assert.ErrorIs(t, err, wallet.ErrWalletNotConnected)
	assert.Equal(t, []string{"Wallet not connected"}, rec.Messages(ui.LevelError))
	assert.Zero(t, tok.count("name"))
}

func TestInfoReturnsCopy(t *testing.T) {
	tok := newFakeToken()
	svc, _ := setup(t, tok)
	info, err := svc.GetTokenInfo(context.Background(), tokenAddr)
	require.NoError(t, err)

	info.Raw.SetInt64(0)
	info.Name = "changed"
	held, _ := svc.Info()
	assert.Equal(t, "USD Coin", held.Name)
	assert.Equal(t, big.NewInt(12_500_000), held.Raw)
}

func TestResetDropsInfo(t *testing.T) {
	svc, _ := setup(t, newFakeToken())
	_, err := svc.GetTokenInfo(context.Background(), tokenAddr)
	require.NoError(t, err)
	svc.Reset()
	_, ok := svc.Info()
	assert.False(t, ok)
}

func TestMaxAmount(t *testing.T) {
	svc, _ := setup(t, newFakeToken())
	_, ok := svc.MaxAmount(tokenAddr)
	assert.False(t, ok)

	_, err := svc.GetTokenInfo(context.Background(), tokenAddr)
	require.NoError(t, err)
	max, ok := svc.MaxAmount("0x00000000000000000000000000000000000c0ffe")
	require.True(t, ok)
	assert.Equal(t, "12.5", max)

	_, ok = svc.MaxAmount(recipient)
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// GetTokenBalance
// ---------------------------------------------------------------------------

func TestGetTokenBalance(t *testing.T) {
	tok := newFakeToken()
	svc, rec := setup(t, tok)

	bal, ok := svc.GetTokenBalance(context.Background(), tokenAddr)
	require.True(t, ok)
	assert.Equal(t, "12.5", bal)
	assert.Zero(t, tok.count("name"))
	_, held := svc.Info()
	assert.False(t, held)
	assert.Empty(t, rec.Notes())
}

func TestGetTokenBalanceFailureIsSilent(t *testing.T) {
	tok := newFakeToken()
	tok.fail["balanceOf"] = errors.New("boom")
	svc, rec := setup(t, tok)

	bal, ok := svc.GetTokenBalance(context.Background(), tokenAddr)
	assert.False(t, ok)
	assert.Empty(t, bal)
	assert.Empty(t, rec.Notes())
}

func TestGetTokenBalanceSilentWhenNotConnectedOrInvalid(t *testing.T) {
	tok := newFakeToken()
	svc, rec := newService(wallet.NewSession(), tok)

	_, ok := svc.GetTokenBalance(context.Background(), tokenAddr)
	assert.False(t, ok)
	_, ok = svc.GetTokenBalance(context.Background(), "nope")
	assert.False(t, ok)
	assert.Empty(t, rec.Notes())
	assert.Zero(t, tok.count("balanceOf"))
}

// ---------------------------------------------------------------------------
// TransferTokens
// ---------------------------------------------------------------------------

func TestTransferSuccessRefreshesInfo(t *testing.T) {
	tok := newFakeToken()
	svc, rec := setup(t, tok)

	require.NoError(t, svc.TransferTokens(context.Background(), tokenAddr, recipient, "2.5"))

	require.Len(t, tok.sent, 1)
	assert.Equal(t, big.NewInt(2_500_000), tok.sent[0])
	assert.Equal(t, 1, tok.count("name"), "info refreshed after confirmation")

	info, ok := svc.Info()
	require.True(t, ok)
	assert.Equal(t, "10", info.Balance)

	assert.Equal(t, []ui.Note{
		{Level: ui.LevelLoading, ID: "transfer", Msg: "Transaction submitted, waiting for confirmation..."},
		{Level: ui.LevelSuccess, ID: "transfer", Msg: "Transfer completed successfully!"},
	}, rec.Notes())
	assert.False(t, svc.Loading())
}

func TestTransferRefetchesDecimals(t *testing.T) {
	tok := newFakeToken()
	svc, _ := setup(t, tok)
	_, err := svc.GetTokenInfo(context.Background(), tokenAddr)
	require.NoError(t, err)

	tok.mu.Lock()
	tok.decimals = 2
	tok.balance = big.NewInt(1_000)
	tok.mu.Unlock()

	require.NoError(t, svc.TransferTokens(context.Background(), tokenAddr, recipient, "1.5"))
	assert.Equal(t, big.NewInt(150), tok.sent[0])
}

func TestTransferInsufficientBalanceSubmitsNothing(t *testing.T) {
	tok := newFakeToken()
	tok.balance = big.NewInt(1_000_000)
	svc, rec := setup(t, tok)

	err := svc.TransferTokens(context.Background(), tokenAddr, recipient, "1.000001")
	assert.ErrorIs(t, err, token.ErrInsufficientBalance)
	assert.Zero(t, tok.count("transfer"))
	assert.Equal(t, []string{"Insufficient token balance"}, rec.Messages(ui.LevelError))
}

func TestTransferPrefersChainReason(t *testing.T) {
	tok := newFakeToken()
	tok.waitErr = &chain.RevertError{Hash: common.Hash{0xaa}, Reason: "Pausable: paused"}
	svc, rec := setup(t, tok)

	err := svc.TransferTokens(context.Background(), tokenAddr, recipient, "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, token.ErrTransferFailed)
	assert.ErrorIs(t, err, chain.ErrReverted)

	var te *token.TransferError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "Pausable: paused", te.Reason)

	last, _ := rec.Last()
	assert.Equal(t, ui.Note{Level: ui.LevelError, ID: "transfer", Msg: "Pausable: paused"}, last)
	assert.Zero(t, tok.count("name"), "no refresh after a failed transfer")
	_, held := svc.Info()
	assert.False(t, held)
}

func TestTransferSubmitErrorFallsBackToMessage(t *testing.T) {
	tok := newFakeToken()
	tok.submitErr = errors.New("nonce too low")
	svc, rec := setup(t, tok)

	err := svc.TransferTokens(context.Background(), tokenAddr, recipient, "1")
	assert.ErrorIs(t, err, token.ErrTransferFailed)
	last, _ := rec.Last()
	assert.Equal(t, "nonce too low", last.Msg)
	assert.Equal(t, "transfer", last.ID)
}

func TestTransferDecimalsFailure(t *testing.T) {
	tok := newFakeToken()
	tok.fail["decimals"] = errors.New("rpc down")
	svc, _ := setup(t, tok)

	err := svc.TransferTokens(context.Background(), tokenAddr, recipient, "1")
	assert.ErrorIs(t, err, token.ErrTransferFailed)
	assert.Zero(t, tok.count("balanceOf"))
	assert.Zero(t, tok.count("transfer"))
}

func TestTransferTooManyDecimals(t *testing.T) {
	tok := newFakeToken()
	svc, rec := setup(t, tok)

	err := svc.TransferTokens(context.Background(), tokenAddr, recipient, "0.0000001")
	assert.ErrorIs(t, err, token.ErrInvalidInput)
	assert.ErrorIs(t, err, chain.ErrInvalidAmount)
	assert.NotErrorIs(t, err, token.ErrTransferFailed)
	assert.Zero(t, tok.count("transfer"))
	assert.Equal(t, []ui.Note{
		{Level: ui.LevelError, Msg: "Please enter a valid amount"},
	}, rec.Notes())
}

// loggedService is setup with the service log captured in buf.
func loggedService(t *testing.T, tok *fakeToken, buf *bytes.Buffer) *token.Service {
	t.Helper()
	session := wallet.NewSession(wallet.WithInjected(&fakeBackend{signer: fakeSigner{}}))
	require.NoError(t, session.ConnectInjected(context.Background()))
	return token.NewService(session,
		token.WithLogger(log.New(buf)),
		token.WithBinder(func(common.Address, chain.Reader, chain.Signer) token.Token { return tok }),
	)
}

func TestTransferLogsMovedAmount(t *testing.T) {
	tok := newFakeToken()
	tok.moved = big.NewInt(2_500_000)
	var buf bytes.Buffer
	svc := loggedService(t, tok, &buf)

	require.NoError(t, svc.TransferTokens(context.Background(), tokenAddr, recipient, "2.5"))
	assert.Contains(t, buf.String(), "transfer confirmed")
	assert.Contains(t, buf.String(), "moved=2.5")
	assert.NotContains(t, buf.String(), "different amount")
}

func TestTransferWarnsWhenRecipientGetsLess(t *testing.T) {
	tok := newFakeToken()
	tok.moved = big.NewInt(2_450_000)
	var buf bytes.Buffer
	svc := loggedService(t, tok, &buf)

	require.NoError(t, svc.TransferTokens(context.Background(), tokenAddr, recipient, "2.5"))
	assert.Contains(t, buf.String(), "recipient got a different amount")
	assert.Contains(t, buf.String(), "moved=2.45")
}

func TestTransferWarnsWithoutEvent(t *testing.T) {
	tok := newFakeToken()
	var buf bytes.Buffer
	svc := loggedService(t, tok, &buf)

	require.NoError(t, svc.TransferTokens(context.Background(), tokenAddr, recipient, "1"))
	assert.Contains(t, buf.String(), "transfer confirmed without a Transfer event")
}

func TestTransferInvalidInputs(t *testing.T) {
	cases := []struct {
		name, token, to, amount, msg string
	}{
		{"token", "0xnope", recipient, "1", "Please enter a valid token address"},
		{"recipient", tokenAddr, "0x12", "1", "Please enter a valid recipient address"},
		{"zero", tokenAddr, recipient, "0", "Please enter a valid amount"},
		{"negative", tokenAddr, recipient, "-1", "Please enter a valid amount"},
		{"text", tokenAddr, recipient, "abc", "Please enter a valid amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok := newFakeToken()
			svc, rec := setup(t, tok)
			err := svc.TransferTokens(context.Background(), tc.token, tc.to, tc.amount)
			assert.ErrorIs(t, err, token.ErrInvalidInput)
			assert.Equal(t, []string{tc.msg}, rec.Messages(ui.LevelError))
			assert.Zero(t, tok.count("decimals"))
		})
	}
}

func TestTransferRequiresSigner(t *testing.T) {
	tok := newFakeToken()
	session := wallet.NewSession(wallet.WithInjected(&fakeBackend{signer: nil}))
	require.NoError(t, session.ConnectInjected(context.Background()))
	svc, rec := newService(session, tok)

	err := svc.TransferTokens(context.Background(), tokenAddr, recipient, "1")
	assert.ErrorIs(t, err, wallet.ErrWalletNotConnected)
	assert.Equal(t, []string{"Wallet not connected"}, rec.Messages(ui.LevelError))
}

func TestTransferNotConnected(t *testing.T) {
	tok := newFakeToken()
	svc, _ := newService(wallet.NewSession(), tok)
	err := svc.TransferTokens(context.Background(), tokenAddr, recipient, "1")
	assert.ErrorIs(t, err, wallet.ErrWalletNotConnected)
	assert.Zero(t, tok.count("decimals"))
}

func TestConcurrentTransferRejected(t *testing.T) {
	tok := newFakeToken()
	tok.gate = make(chan struct{})
	tok.entered = make(chan struct{}, 1)
	svc, rec := setup(t, tok)

	errc := make(chan error, 1)
	go func() { errc <- svc.TransferTokens(context.Background(), tokenAddr, recipient, "1") }()
	<-tok.entered
	assert.True(t, svc.Loading())

	err := svc.TransferTokens(context.Background(), tokenAddr, recipient, "1")
	assert.ErrorIs(t, err, token.ErrTransferInProgress)
	assert.Contains(t, rec.Messages(ui.LevelError), "A transfer is already in progress")

	close(tok.gate)
	require.NoError(t, <-errc)
	assert.Equal(t, 1, tok.count("transfer"))
}

func TestTransferErrorMessage(t *testing.T) {
	assert.Equal(t, "Transfer failed", (&token.TransferError{}).Message())
	assert.Equal(t, "boom", (&token.TransferError{Err: errors.New("boom")}).Message())
	assert.Equal(t, "why", (&token.TransferError{Reason: "why", Err: errors.New("boom")}).Message())
	assert.Equal(t, "transfer failed: why", (&token.TransferError{Reason: "why"}).Error())
}
