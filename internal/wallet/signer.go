package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Mohsinsiddi/w3link/internal/chain"
)

// KeySigner signs EVM transactions with a key held in memory and broadcasts
// them through client.
type KeySigner struct {
	key    *ecdsa.PrivateKey
	from   common.Address
	client chain.Transactor
}

// NewKeySigner creates a signer for key.
func NewKeySigner(key *ecdsa.PrivateKey, client chain.Transactor) *KeySigner {
	return &KeySigner{key: key, from: crypto.PubkeyToAddress(key.PublicKey), client: client}
}

// Account returns the signing address.
func (s *KeySigner) Account() common.Address { return s.from }

// SignTx signs an EVM transaction and returns the signed transaction.
func (s *KeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.NewLondonSigner(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return signed, nil
}

// Send builds, signs and broadcasts call.
func (s *KeySigner) Send(ctx context.Context, call chain.Call) (common.Hash, error) {
	tx, chainID, err := chain.BuildTx(ctx, s.client, s.from, call)
	if err != nil {
		return common.Hash{}, err
	}
	signed, err := s.SignTx(tx, chainID)
	if err != nil {
		return common.Hash{}, err
	}
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("broadcasting: %w", err)
	}
	return signed.Hash(), nil
}
