package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Mohsinsiddi/w3link/internal/chain"
)

// Backend is one way of reaching a wallet. Session drives every backend
// through the same sequence: RequestAccounts, Handles, NetworkID.
type Backend interface {
	Kind() Kind
	// RequestAccounts asks the wallet for account access. It may block on
	// user approval.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Handles returns the read and sign capabilities for account.
	Handles(ctx context.Context, account common.Address) (chain.Reader, chain.Signer, error)
	// NetworkID returns the chain id the wallet is on.
	NetworkID(ctx context.Context) (int64, error)
	Close()
}
