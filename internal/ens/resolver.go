// Package ens resolves ENS names to addresses through the connected wallet's
// read handle.
package ens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/Mohsinsiddi/w3link/internal/chain"
)

// Registry is the ENS registry, at the same address on Ethereum mainnet and Sepolia.
var Registry = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

// Chains on which the registry above is deployed.
var registryChains = map[int64]bool{1: true, 11155111: true}

var (
	selResolver = []byte{0x01, 0x78, 0xb8, 0xbf} // resolver(bytes32)
	selAddr     = []byte{0x3b, 0x3b, 0x57, 0xde} // addr(bytes32)
)

// Errors.
var (
	ErrUnsupportedChain = errors.New("ENS is not available on this network")
	ErrNoResolver       = errors.New("no resolver set")
	ErrNoAddress        = errors.New("no address record")
)

// IsName reports whether v looks like an ENS name rather than an address.
func IsName(v string) bool {
	v = strings.TrimSpace(v)
	return strings.Contains(v, ".") && !strings.HasPrefix(v, "0x") && !strings.HasSuffix(v, ".")
}

// Resolve looks up the address record of name. It asks the registry for the
// name's resolver, then calls addr(bytes32) on that resolver.
func Resolve(ctx context.Context, r chain.Reader, chainID int64, name string) (common.Address, error) {
	if !registryChains[chainID] {
		return common.Address{}, fmt.Errorf("%w (chain %d)", ErrUnsupportedChain, chainID)
	}
	name = strings.ToLower(strings.TrimSpace(name))
	node := Namehash(name)

	resolver, err := callAddress(ctx, r, Registry, selResolver, node)
	if err != nil {
		return common.Address{}, fmt.Errorf("querying ENS registry: %w", err)
	}
	if resolver == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w for %q", ErrNoResolver, name)
	}

	addr, err := callAddress(ctx, r, resolver, selAddr, node)
	if err != nil {
		return common.Address{}, fmt.Errorf("querying ENS resolver: %w", err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w for %q", ErrNoAddress, name)
	}
	return addr, nil
}

// Namehash implements the EIP-137 namehash algorithm.
// namehash("") = 0x00...00
// namehash("eth") = keccak256(namehash("") + keccak256("eth"))
func Namehash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := keccak256([]byte(labels[i]))
		node = common.BytesToHash(keccak256(append(node.Bytes(), label...)))
	}
	return node
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func callAddress(ctx context.Context, r chain.Reader, to common.Address, sel []byte, node common.Hash) (common.Address, error) {
	data := append(append([]byte{}, sel...), node.Bytes()...)
	out, err := r.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return common.Address{}, err
	}
	// An address return is one left-padded 32-byte word; no code returns nothing.
	if len(out) < 32 {
		return common.Address{}, nil
	}
	return common.BytesToAddress(out[12:32]), nil
}
