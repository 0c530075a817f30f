package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Mohsinsiddi/w3link/internal/chain"
)

// Status is the connection status of a Session.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Kind identifies the backend a session was connected through.
type Kind int

const (
	NoWallet Kind = iota
	InjectedWallet
	RelayWallet
	LocalWallet
)

func (k Kind) String() string {
	switch k {
	case InjectedWallet:
		return "injected"
	case RelayWallet:
		return "relay"
	case LocalWallet:
		return "local"
	default:
		return ""
	}
}

// Title is the user-facing name used in notifications.
func (k Kind) Title() string {
	switch k {
	case InjectedWallet:
		return "Injected wallet"
	case RelayWallet:
		return "Relay wallet"
	case LocalWallet:
		return "Local wallet"
	default:
		return "Wallet"
	}
}

// ParseKind maps "injected", "relay" or "local" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "injected":
		return InjectedWallet, nil
	case "relay":
		return RelayWallet, nil
	case "local":
		return LocalWallet, nil
	}
	return NoWallet, fmt.Errorf("unknown wallet kind %q (want injected, relay or local)", s)
}

// State is an immutable snapshot of a session. The account, chain id, kind
// and both handles are set together and only while Connected.
type State struct {
	status     Status
	account    common.Address
	balance    string
	hasBalance bool
	chainID    int64
	kind       Kind
	reader     chain.Reader
	signer     chain.Signer
}

// connection is what a successful handshake produces.
type connection struct {
	account common.Address
	chainID int64
	kind    Kind
	reader  chain.Reader
	signer  chain.Signer
}

func initialState() State {
	return State{status: Disconnected}
}

func (s State) connecting() State {
	return State{status: Connecting}
}

func (s State) connected(c connection) State {
	return State{
		status:  Connected,
		account: c.account,
		chainID: c.chainID,
		kind:    c.kind,
		reader:  c.reader,
		signer:  c.signer,
	}
}

// withBalance records a native balance; it is ignored unless Connected.
func (s State) withBalance(balance string) State {
	if s.status != Connected {
		return s
	}
	s.balance = balance
	s.hasBalance = true
	return s
}

func (s State) failed() State {
	return initialState()
}

func (s State) Status() Status { return s.status }

// Connected reports whether the session holds an account and both handles.
func (s State) Connected() bool { return s.status == Connected }

// Account returns the connected account.
func (s State) Account() (common.Address, bool) {
	return s.account, s.Connected()
}

// NativeBalance returns the last fetched native balance in whole units.
func (s State) NativeBalance() (string, bool) {
	return s.balance, s.hasBalance
}

// ChainID returns the network the wallet reported.
func (s State) ChainID() (int64, bool) {
	return s.chainID, s.Connected()
}

func (s State) Kind() Kind { return s.kind }

func (s State) Reader() chain.Reader { return s.reader }

func (s State) Signer() chain.Signer { return s.signer }
