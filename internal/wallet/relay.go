package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/external"
	"github.com/ethereum/go-ethereum/common"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/mdp/qrterminal/v3"

	"github.com/Mohsinsiddi/w3link/internal/chain"
	"github.com/Mohsinsiddi/w3link/internal/rpc"
)

// ErrWrongNetwork is returned when the relay's read endpoint is on a chain the
// session was not configured for.
var ErrWrongNetwork = errors.New("wallet is on an unexpected network")

// RelayConfig configures a relay (remote signer) connection.
type RelayConfig struct {
	Endpoint  string  // remote signer URL (Clef external API)
	ProjectID string  // identifies this app to the signer operator
	ChainIDs  []int64 // accepted networks; empty accepts any
	ShowQR    bool
	QROut     io.Writer
	ReadRPCs  []string
	Algorithm rpc.Algorithm
	// PairTimeout bounds the wait for operator approval. Zero waits until
	// ctx is done.
	PairTimeout time.Duration
}

// PairingURI is the payload shown to the operator, e.g.
// w3link:pair?chains=1,8453&endpoint=http%3A%2F%2F127.0.0.1%3A8550&project=demo
func (c RelayConfig) PairingURI() string {
	ids := make([]string, len(c.ChainIDs))
	for i, id := range c.ChainIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	q := url.Values{}
	q.Set("endpoint", c.Endpoint)
	q.Set("project", c.ProjectID)
	if len(ids) > 0 {
		q.Set("chains", strings.Join(ids, ","))
	}
	return "w3link:pair?" + q.Encode()
}

// Relay reaches a remote signer out-of-band. Pairing completes when the
// operator approves account access on the signer.
type Relay struct {
	cfg RelayConfig

	mu     sync.Mutex
	signer *external.ExternalSigner
	list   *gethrpc.Client
	reader *chain.Client
}

// NewRelay creates a relay backend. Nothing is dialed until the session connects.
func NewRelay(cfg RelayConfig) *Relay {
	return &Relay{cfg: cfg}
}

func (r *Relay) Kind() Kind { return RelayWallet }

// RequestAccounts pairs with the signer. It blocks until the operator
// approves, ctx is done or PairTimeout passes.
func (r *Relay) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if r.cfg.Endpoint == "" {
		return nil, errors.New("relay endpoint not configured")
	}
	if r.cfg.ShowQR && r.cfg.QROut != nil {
		r.showQR()
	}
	if r.cfg.PairTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.PairTimeout)
		defer cancel()
	}

	es, err := r.dialSigner(ctx)
	if err != nil {
		return nil, fmt.Errorf("pairing with %s: %w", r.cfg.Endpoint, err)
	}
	list, err := gethrpc.DialContext(ctx, r.cfg.Endpoint)
	if err != nil {
		_ = es.Close()
		return nil, fmt.Errorf("pairing with %s: %w", r.cfg.Endpoint, err)
	}

	// ExternalSigner.Accounts drops listing errors, so a denial is read from
	// account_list directly.
	var addrs []common.Address
	if err := list.CallContext(ctx, &addrs, "account_list"); err != nil {
		list.Close()
		_ = es.Close()
		return nil, fmt.Errorf("pairing with %s: %w", r.cfg.Endpoint, err)
	}

	r.mu.Lock()
	r.signer, r.list = es, list
	r.mu.Unlock()
	return addrs, nil
}

// dialSigner runs the signer's version handshake, which has no context of
// its own, so it is raced against ctx.
func (r *Relay) dialSigner(ctx context.Context) (*external.ExternalSigner, error) {
	type result struct {
		es  *external.ExternalSigner
		err error
	}
	ch := make(chan result, 1)
	go func() {
		es, err := external.NewExternalSigner(r.cfg.Endpoint)
		ch <- result{es, err}
	}()
	select {
	case res := <-ch:
		return res.es, res.err
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.es != nil {
				_ = res.es.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (r *Relay) showQR() {
	fmt.Fprintln(r.cfg.QROut, "Scan to pair with w3link:")
	qrterminal.GenerateWithConfig(r.cfg.PairingURI(), qrterminal.Config{
		Level:          qrterminal.L,
		Writer:         r.cfg.QROut,
		HalfBlocks:     true,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
		QuietZone:      1,
	})
	fmt.Fprintln(r.cfg.QROut, r.cfg.PairingURI())
}

func (r *Relay) Handles(ctx context.Context, account common.Address) (chain.Reader, chain.Signer, error) {
	r.mu.Lock()
	es := r.signer
	r.mu.Unlock()
	if es == nil {
		return nil, nil, errors.New("relay not paired")
	}

	reader, err := rpc.Connect(ctx, r.cfg.ReadRPCs, r.cfg.Algorithm)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting read rpc: %w", err)
	}
	r.mu.Lock()
	r.reader = reader
	r.mu.Unlock()
	return reader, &relaySigner{remote: es, client: reader, from: account}, nil
}

func (r *Relay) NetworkID(ctx context.Context) (int64, error) {
	r.mu.Lock()
	reader := r.reader
	r.mu.Unlock()
	if reader == nil {
		return 0, errors.New("relay not paired")
	}
	id, err := reader.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	if len(r.cfg.ChainIDs) > 0 && !slices.Contains(r.cfg.ChainIDs, id.Int64()) {
		return 0, fmt.Errorf("%w: chain %d, want one of %v", ErrWrongNetwork, id.Int64(), r.cfg.ChainIDs)
	}
	return id.Int64(), nil
}

func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.signer != nil {
		_ = r.signer.Close()
		r.signer = nil
	}
	if r.list != nil {
		r.list.Close()
		r.list = nil
	}
	if r.reader != nil {
		r.reader.Close()
		r.reader = nil
	}
}

// relaySigner builds transactions locally and has the remote signer sign them.
type relaySigner struct {
	remote *external.ExternalSigner
	client *chain.Client
	from   common.Address
}

func (s *relaySigner) Account() common.Address { return s.from }

func (s *relaySigner) Send(ctx context.Context, call chain.Call) (common.Hash, error) {
	tx, chainID, err := chain.BuildTx(ctx, s.client, s.from, call)
	if err != nil {
		return common.Hash{}, err
	}
	signed, err := s.remote.SignTx(accounts.Account{Address: s.from}, tx, chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("remote signer: %w", err)
	}
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("broadcasting: %w", err)
	}
	return signed.Hash(), nil
}
