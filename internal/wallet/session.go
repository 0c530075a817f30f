package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/Mohsinsiddi/w3link/internal/chain"
	"github.com/Mohsinsiddi/w3link/internal/ui"
)

// Errors.
var (
	ErrWalletUnavailable  = errors.New("no injected wallet available")
	ErrNoAccounts         = errors.New("wallet returned no accounts")
	ErrConnectionFailed   = errors.New("wallet connection failed")
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrAlreadyConnected   = errors.New("wallet already connected")
)

// Notification texts.
const (
	msgDisconnected     = "Wallet disconnected"
	msgAlreadyConnected = "Wallet already connected"
	msgNoInjected       = "No injected wallet found"
	msgNoAccounts       = "No accounts found"
	msgConnectFailed    = "Failed to connect wallet"
	msgBalanceFailed    = "Failed to get balance"
)

// Session owns the wallet connection. Every change goes through a transition
// on State and is published to observers in order.
type Session struct {
	mu      sync.Mutex
	state   State
	backend Backend
	epoch   uint64

	emitMu    sync.Mutex
	observers []func(State)

	notifier     ui.Notifier
	logger       *log.Logger
	injected     Backend
	relayFactory func(RelayConfig) Backend
	localFactory func(LocalConfig) (Backend, error)
}

// Option configures a Session.
type Option func(*Session)

// WithNotifier sets where user-facing notifications go.
func WithNotifier(n ui.Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithInjected makes an injected wallet available. Without it
// ConnectInjected fails with ErrWalletUnavailable.
func WithInjected(b Backend) Option {
	return func(s *Session) { s.injected = b }
}

// WithRelayFactory overrides how relay backends are built.
func WithRelayFactory(f func(RelayConfig) Backend) Option {
	return func(s *Session) { s.relayFactory = f }
}

// WithLocalFactory overrides how local keystore backends are built.
func WithLocalFactory(f func(LocalConfig) (Backend, error)) Option {
	return func(s *Session) { s.localFactory = f }
}

// WithObserver registers fn to receive every new State.
// Observers must not call back into the Session's transitions.
func WithObserver(fn func(State)) Option {
	return func(s *Session) { s.observers = append(s.observers, fn) }
}

// NewSession creates a disconnected session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		state:        initialState(),
		notifier:     ui.Discard,
		logger:       log.New(io.Discard),
		relayFactory: func(cfg RelayConfig) Backend { return NewRelay(cfg) },
		localFactory: NewLocal,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConnectInjected connects through the injected wallet.
func (s *Session) ConnectInjected(ctx context.Context) error {
	return s.connect(ctx, InjectedWallet, func() (Backend, error) {
		if s.injected == nil {
			return nil, ErrWalletUnavailable
		}
		return s.injected, nil
	})
}

// ConnectRelay pairs with a remote signer. Pairing waits for the remote
// operator; cancel ctx to abandon it.
func (s *Session) ConnectRelay(ctx context.Context, cfg RelayConfig) error {
	return s.connect(ctx, RelayWallet, func() (Backend, error) {
		return s.relayFactory(cfg), nil
	})
}

// ConnectLocal connects with a key held in the keyring.
func (s *Session) ConnectLocal(ctx context.Context, cfg LocalConfig) error {
	return s.connect(ctx, LocalWallet, func() (Backend, error) {
		return s.localFactory(cfg)
	})
}

func (s *Session) connect(ctx context.Context, kind Kind, open func() (Backend, error)) error {
	epoch, err := s.begin()
	if err != nil {
		s.notifier.Error(msgAlreadyConnected)
		return err
	}
	// abort is a no-op once the attempt is committed or superseded, so this
	// only fires when a backend panics mid-handshake.
	defer s.abort(epoch)

	b, err := open()
	if err != nil {
		return s.connectFailed(epoch, kind, err)
	}
	conn, err := handshake(ctx, b)
	if err != nil {
		b.Close()
		return s.connectFailed(epoch, kind, err)
	}
	if !s.commit(epoch, b, conn) {
		b.Close()
		return fmt.Errorf("%w: disconnected while connecting", ErrConnectionFailed)
	}

	s.logger.Info("wallet connected", "kind", kind, "account", conn.account.Hex(), "chain", conn.chainID)
	s.notifier.Success(kind.Title() + " connected successfully")
	_ = s.RefreshNativeBalance(ctx)
	return nil
}

func (s *Session) connectFailed(epoch uint64, kind Kind, err error) error {
	s.abort(epoch)
	s.logger.Error("wallet connect failed", "kind", kind, "err", err)
	switch {
	case errors.Is(err, ErrWalletUnavailable):
		s.notifier.Error(msgNoInjected)
		return err
	case errors.Is(err, ErrNoAccounts):
		s.notifier.Error(msgNoAccounts)
		return err
	}
	s.notifier.Error(msgConnectFailed)
	if errors.Is(err, ErrConnectionFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
}

// handshake runs the backend sequence and assembles the connection.
func handshake(ctx context.Context, b Backend) (connection, error) {
	accounts, err := b.RequestAccounts(ctx)
	if err != nil {
		return connection{}, fmt.Errorf("requesting accounts: %w", err)
	}
	if len(accounts) == 0 {
		return connection{}, ErrNoAccounts
	}
	account := accounts[0]

	reader, signer, err := b.Handles(ctx, account)
	if err != nil {
		return connection{}, fmt.Errorf("deriving handles: %w", err)
	}
	id, err := b.NetworkID(ctx)
	if err != nil {
		return connection{}, fmt.Errorf("reading network id: %w", err)
	}
	return connection{
		account: account,
		chainID: id,
		kind:    b.Kind(),
		reader:  reader,
		signer:  signer,
	}, nil
}

// begin moves Disconnected to Connecting and returns the attempt's epoch.
func (s *Session) begin() (uint64, error) {
	s.mu.Lock()
	if s.state.status != Disconnected {
		s.mu.Unlock()
		return 0, ErrAlreadyConnected
	}
	s.epoch++
	epoch := s.epoch
	s.publishLocked(s.state.connecting())
	return epoch, nil
}

// commit moves Connecting to Connected unless the attempt was superseded.
func (s *Session) commit(epoch uint64, b Backend, c connection) bool {
	s.mu.Lock()
	if s.epoch != epoch || s.state.status != Connecting {
		s.mu.Unlock()
		return false
	}
	s.backend = b
	s.publishLocked(s.state.connected(c))
	return true
}

// abort reverts an attempt to Disconnected if it is still the current one.
func (s *Session) abort(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.state.status != Connecting {
		s.mu.Unlock()
		return
	}
	s.publishLocked(s.state.failed())
}

// Disconnect resets the session. It is idempotent and always succeeds.
func (s *Session) Disconnect() {
	s.mu.Lock()
	b := s.backend
	s.backend = nil
	s.epoch++
	s.publishLocked(initialState())

	if b != nil {
		b.Close()
	}
	s.logger.Debug("wallet disconnected")
	s.notifier.Success(msgDisconnected)
}

// RefreshNativeBalance fetches the account's native balance. It does nothing
// while disconnected, and a failure leaves the connection untouched.
func (s *Session) RefreshNativeBalance(ctx context.Context) error {
	s.mu.Lock()
	st, epoch := s.state, s.epoch
	s.mu.Unlock()
	if !st.Connected() {
		return nil
	}

	wei, err := st.reader.BalanceAt(ctx, st.account, nil)
	if err != nil {
		s.logger.Error("balance refresh failed", "account", st.account.Hex(), "err", err)
		s.notifier.Error(msgBalanceFailed)
		return fmt.Errorf("fetching balance: %w", err)
	}

	s.mu.Lock()
	if s.epoch != epoch || !s.state.Connected() {
		s.mu.Unlock()
		return nil
	}
	s.publishLocked(s.state.withBalance(chain.WeiToETH(wei)))
	return nil
}

// publishLocked installs next and delivers it to observers after releasing
// s.mu. emitMu is taken before the release so deliveries keep their order.
func (s *Session) publishLocked(next State) {
	s.state = next
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	for _, fn := range s.observers {
		fn(next)
	}
}
