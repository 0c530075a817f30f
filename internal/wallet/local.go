package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Mohsinsiddi/w3link/internal/chain"
	"github.com/Mohsinsiddi/w3link/internal/rpc"
)

// LocalConfig configures a connection with a key from the keystore.
type LocalConfig struct {
	Name      string // key name in the keystore
	Keystore  KeystoreBackend
	ReadRPCs  []string
	Algorithm rpc.Algorithm
}

// Local is a wallet backed by a private key held in the keystore.
type Local struct {
	cfg LocalConfig

	mu     sync.Mutex
	signer *KeySigner
	from   common.Address
	client *chain.Client
}

// NewLocal validates cfg and returns a backend. The key is read on connect.
func NewLocal(cfg LocalConfig) (Backend, error) {
	if cfg.Name == "" {
		return nil, errors.New("no local key name configured")
	}
	if cfg.Keystore == nil {
		return nil, errors.New("no keystore configured")
	}
	return &Local{cfg: cfg}, nil
}

func (l *Local) Kind() Kind { return LocalWallet }

func (l *Local) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	hexKey, err := l.cfg.Keystore.Retrieve(KeyRef(l.cfg.Name))
	if err != nil {
		return nil, fmt.Errorf("retrieving key: %w", err)
	}
	key, err := crypto.HexToECDSA(normaliseHexKey(hexKey))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", ErrInvalidKey)
	}
	client, err := rpc.Connect(ctx, l.cfg.ReadRPCs, l.cfg.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("connecting rpc: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.client = client
	l.signer = NewKeySigner(key, client)
	l.from = l.signer.Account()
	return []common.Address{l.from}, nil
}

func (l *Local) Handles(_ context.Context, account common.Address) (chain.Reader, chain.Signer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.signer == nil {
		return nil, nil, errors.New("local wallet not unlocked")
	}
	if account != l.from {
		return nil, nil, fmt.Errorf("local wallet holds %s, not %s", l.from.Hex(), account.Hex())
	}
	return l.client, l.signer, nil
}

func (l *Local) NetworkID(ctx context.Context) (int64, error) {
	l.mu.Lock()
	client := l.client
	l.mu.Unlock()
	if client == nil {
		return 0, errors.New("local wallet not unlocked")
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return id.Int64(), nil
}

func (l *Local) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		l.client.Close()
		l.client = nil
	}
	l.signer = nil
}
