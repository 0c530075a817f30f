// Package token reads ERC-20 metadata and balances for the connected account
// and submits transfers through the session's signer.
package token

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/Mohsinsiddi/w3link/internal/chain"
	"github.com/Mohsinsiddi/w3link/internal/contract"
	"github.com/Mohsinsiddi/w3link/internal/ui"
	"github.com/Mohsinsiddi/w3link/internal/validate"
	"github.com/Mohsinsiddi/w3link/internal/wallet"
)

// TransferNoteID is the notification id a transfer's progress is reported under.
const TransferNoteID = "transfer"

// Notification texts.
const (
	msgNotConnected    = "Wallet not connected"
	msgBadToken        = "Please enter a valid token address"
	msgBadRecipient    = "Please enter a valid recipient address"
	msgBadAmount       = "Please enter a valid amount"
	msgQueryFailed     = "Failed to get token information"
	msgInsufficient    = "Insufficient token balance"
	msgInProgress      = "A transfer is already in progress"
	msgWaiting         = "Transaction submitted, waiting for confirmation..."
	msgTransferSuccess = "Transfer completed successfully!"
)

// SessionView is the part of a wallet session the service reads.
type SessionView interface {
	State() wallet.State
}

// Token is an ERC-20 binding.
type Token interface {
	Name(ctx context.Context) (string, error)
	Symbol(ctx context.Context) (string, error)
	Decimals(ctx context.Context) (uint8, error)
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Transfer(ctx context.Context, to common.Address, amount *big.Int) (chain.Pending, error)
}

// Binder binds a token address to the session's handles. signer is nil for
// read-only use.
type Binder func(addr common.Address, reader chain.Reader, signer chain.Signer) Token

// Info is the last successfully queried token.
type Info struct {
	Address  common.Address
	Name     string
	Symbol   string
	Decimals uint8
	Balance  string   // decimal-scaled
	Raw      *big.Int // balance in base units
}

// Service runs token operations for the account of a session.
type Service struct {
	session  SessionView
	notifier ui.Notifier
	logger   *log.Logger
	binder   Binder
	interval time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	info    *Info
	loading int

	transferring atomic.Bool
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets where user-facing notifications go.
func WithNotifier(n ui.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithBinder replaces the ERC-20 binding, e.g. with a fake in tests.
func WithBinder(b Binder) Option {
	return func(s *Service) { s.binder = b }
}

// WithConfirmation sets how the default binding polls for receipts.
func WithConfirmation(interval, timeout time.Duration) Option {
	return func(s *Service) {
		s.interval = interval
		s.timeout = timeout
	}
}

// NewService creates a service over session.
func NewService(session SessionView, opts ...Option) *Service {
	s := &Service{
		session:  session,
		notifier: ui.Discard,
		logger:   log.New(io.Discard),
		interval: chain.DefaultPollInterval,
		timeout:  chain.DefaultConfirmTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	if s.binder == nil {
		s.binder = func(addr common.Address, r chain.Reader, sg chain.Signer) Token {
			return contract.NewERC20(addr, r, sg, contract.WithConfirmation(s.interval, s.timeout))
		}
	}
	return s
}

// Info returns a copy of the held token info.
func (s *Service) Info() (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return Info{}, false
	}
	return s.info.copy(), true
}

// Reset discards the held token info.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = nil
}

// Loading reports whether an operation is in flight.
func (s *Service) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// MaxAmount returns the held balance of token, for sending everything.
func (s *Service) MaxAmount(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil || !strings.EqualFold(s.info.Address.Hex(), strings.TrimSpace(token)) {
		return "", false
	}
	return s.info.Balance, true
}

// GetTokenInfo reads name, symbol, decimals and the account's balance of
// token concurrently. The held Info is replaced only when all four succeed.
func (s *Service) GetTokenInfo(ctx context.Context, token string) (*Info, error) {
	addr, err := s.parseAddress(token, msgBadToken)
	if err != nil {
		return nil, err
	}
	st, err := s.connected(false)
	if err != nil {
		return nil, err
	}
	defer s.track()()

	owner, _ := st.Account()
	info, err := s.query(ctx, s.binder(addr, st.Reader(), nil), addr, owner)
	if err != nil {
		s.logger.Error("token query failed", "token", addr.Hex(), "err", err)
		s.notifier.Error(msgQueryFailed)
		return nil, fmt.Errorf("%w: %w", ErrTokenQueryFailed, err)
	}

	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
	s.logger.Debug("token info", "token", addr.Hex(), "symbol", info.Symbol, "balance", info.Balance)
	out := info.copy()
	return &out, nil
}

func (s *Service) query(ctx context.Context, tok Token, addr, owner common.Address) (*Info, error) {
	info := &Info{Address: addr}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		info.Name, err = tok.Name(gctx)
		return err
	})
	g.Go(func() (err error) {
		info.Symbol, err = tok.Symbol(gctx)
		return err
	})
	g.Go(func() (err error) {
		info.Decimals, err = tok.Decimals(gctx)
		return err
	})
	g.Go(func() (err error) {
		info.Raw, err = tok.BalanceOf(gctx, owner)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	info.Balance = chain.FormatUnits(info.Raw, info.Decimals)
	return info, nil
}

// GetTokenBalance returns the account's decimal balance of token. It is best
// effort and never notifies.
func (s *Service) GetTokenBalance(ctx context.Context, token string) (string, bool) {
	if !validate.IsValidAddress(strings.TrimSpace(token)) {
		return "", false
	}
	st := s.session.State()
	if !st.Connected() || st.Reader() == nil {
		return "", false
	}
	owner, _ := st.Account()
	tok := s.binder(common.HexToAddress(strings.TrimSpace(token)), st.Reader(), nil)

	var (
		raw *big.Int
		dec uint8
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		raw, err = tok.BalanceOf(gctx, owner)
		return err
	})
	g.Go(func() (err error) {
		dec, err = tok.Decimals(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Debug("token balance failed", "token", token, "err", err)
		return "", false
	}
	return chain.FormatUnits(raw, dec), true
}

// TransferTokens sends amount (a decimal string) of token to recipient and
// waits for it to be mined. Decimals and balance are re-read first; a short
// balance fails with ErrInsufficientBalance before anything is submitted.
// Only one transfer runs at a time per Service.
func (s *Service) TransferTokens(ctx context.Context, token, recipient, amount string) error {
	if !s.transferring.CompareAndSwap(false, true) {
		s.notifier.Error(msgInProgress)
		return ErrTransferInProgress
	}
	defer s.transferring.Store(false)

	addr, err := s.parseAddress(token, msgBadToken)
	if err != nil {
		return err
	}
	to, err := s.parseAddress(recipient, msgBadRecipient)
	if err != nil {
		return err
	}
	if !validate.IsValidAmount(amount) {
		s.notifier.Error(msgBadAmount)
		return fmt.Errorf("%w: amount %q", ErrInvalidInput, amount)
	}
	st, err := s.connected(true)
	if err != nil {
		return err
	}
	defer s.track()()

	from, _ := st.Account()
	tok := s.binder(addr, st.Reader(), st.Signer())

	dec, err := tok.Decimals(ctx)
	if err != nil {
		return s.transferFailed(addr, fmt.Errorf("reading decimals: %w", err))
	}
	raw, err := chain.ParseUnits(strings.TrimSpace(amount), dec)
	if err != nil {
		s.notifier.Error(msgBadAmount)
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	balance, err := tok.BalanceOf(ctx, from)
	if err != nil {
		return s.transferFailed(addr, fmt.Errorf("reading balance: %w", err))
	}
	if balance.Cmp(raw) < 0 {
		s.logger.Warn("insufficient token balance", "token", addr.Hex(), "have", balance, "want", raw)
		s.notifier.Error(msgInsufficient)
		return fmt.Errorf("%w: have %s, want %s", ErrInsufficientBalance,
			chain.FormatUnits(balance, dec), chain.FormatUnits(raw, dec))
	}

	pending, err := tok.Transfer(ctx, to, raw)
	if err != nil {
		return s.transferFailed(addr, err)
	}
	s.logger.Info("transfer submitted", "token", addr.Hex(), "to", to.Hex(), "amount", amount, "tx", pending.Hash().Hex())
	s.notifier.Loading(TransferNoteID, msgWaiting)

	receipt, err := pending.Wait(ctx)
	if err != nil {
		return s.transferFailed(addr, err)
	}
	s.logConfirmed(receipt, addr, from, to, raw, dec)
	s.notifier.Resolve(TransferNoteID, true, msgTransferSuccess)

	_, _ = s.GetTokenInfo(ctx, addr.Hex())
	return nil
}

// logConfirmed reports what the receipt's Transfer event actually moved. Fee
// on transfer tokens deliver less than was sent.
func (s *Service) logConfirmed(receipt *types.Receipt, token, from, to common.Address, sent *big.Int, dec uint8) {
	if receipt == nil {
		return
	}
	tx := receipt.TxHash.Hex()
	for _, ev := range contract.Transfers(receipt, token) {
		if ev.From != from || ev.To != to {
			continue
		}
		s.logger.Info("transfer confirmed", "tx", tx, "moved", chain.FormatUnits(ev.Value, dec))
		if ev.Value.Cmp(sent) != 0 {
			s.logger.Warn("recipient got a different amount", "tx", tx,
				"sent", chain.FormatUnits(sent, dec), "moved", chain.FormatUnits(ev.Value, dec))
		}
		return
	}
	s.logger.Warn("transfer confirmed without a Transfer event", "tx", tx, "token", token.Hex())
}

func (s *Service) transferFailed(token common.Address, err error) error {
	te := &TransferError{Reason: chain.ReasonOf(err), Err: err}
	s.logger.Error("transfer failed", "token", token.Hex(), "reason", te.Reason, "err", err)
	s.notifier.Resolve(TransferNoteID, false, te.Message())
	return te
}

func (s *Service) parseAddress(v, msg string) (common.Address, error) {
	v = strings.TrimSpace(v)
	if !validate.IsValidAddress(v) {
		s.notifier.Error(msg)
		return common.Address{}, fmt.Errorf("%w: address %q", ErrInvalidInput, v)
	}
	return common.HexToAddress(v), nil
}

// connected returns the session state, requiring a signer when sign is set.
func (s *Service) connected(sign bool) (wallet.State, error) {
	st := s.session.State()
	if !st.Connected() || st.Reader() == nil || (sign && st.Signer() == nil) {
		s.notifier.Error(msgNotConnected)
		return st, wallet.ErrWalletNotConnected
	}
	return st, nil
}

// track marks an operation in flight until the returned func runs.
func (s *Service) track() func() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.loading--
		s.mu.Unlock()
	}
}

func (i *Info) copy() Info {
	out := *i
	if i.Raw != nil {
		out.Raw = new(big.Int).Set(i.Raw)
	}
	return out
}
