package wallet

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/99designs/keyring"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const keychainService = "w3link"

// PasswordEnv unlocks the file keyring without a prompt.
const PasswordEnv = "W3LINK_KEYRING_PASSWORD"

// EnvKey, when set, is used instead of any keyring entry.
const EnvKey = "W3LINK_KEY"

// Errors.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyExists   = errors.New("key already exists")
	ErrInvalidKey  = errors.New("invalid private key")
)

// KeystoreBackend stores hex private keys under a name.
type KeystoreBackend interface {
	Store(name, hexKey string) (string, error)
	Retrieve(ref string) (string, error)
	Delete(ref string) error
	Names() ([]string, error)
}

// Keystore wraps OS keychain access.
type Keystore struct {
	ring keyring.Keyring
}

// DefaultKeystore returns a keystore backed by the OS keychain.
func DefaultKeystore() *Keystore {
	cfg := keyring.Config{
		ServiceName:              keychainService,
		KeychainTrustApplication: true,
		FileDir:                  "~/.w3link/keyring",
		FilePasswordFunc:         filePassword(),
	}

	// On Linux without a GUI, fall back to file-based storage.
	if runtime.GOOS == "linux" {
		cfg.AllowedBackends = []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.FileBackend,
		}
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		ring, _ = keyring.Open(keyring.Config{
			ServiceName:      keychainService,
			AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
			FileDir:          cfg.FileDir,
			FilePasswordFunc: cfg.FilePasswordFunc,
		})
	}

	return &Keystore{ring: ring}
}

func filePassword() keyring.PromptFunc {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return keyring.FixedStringPrompt(pw)
	}
	return keyring.TerminalPrompt
}

// NewKeystore wraps an already opened keyring.
func NewKeystore(ring keyring.Keyring) *Keystore {
	return &Keystore{ring: ring}
}

// NewMemoryKeystore returns a keystore that keeps keys in memory.
func NewMemoryKeystore() *Keystore {
	return &Keystore{ring: keyring.NewArrayKeyring(nil)}
}

// KeyRef is the keyring item key for a key name.
func KeyRef(name string) string {
	return keychainService + "." + name
}

// Store validates and saves a private key under name and returns its reference.
func (k *Keystore) Store(name, hexKey string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("key name is required")
	}
	hexKey = normaliseHexKey(hexKey)
	if _, err := crypto.HexToECDSA(hexKey); err != nil {
		return "", ErrInvalidKey
	}
	if k.ring == nil {
		return "", errors.New("keystore not available")
	}
	ref := KeyRef(name)
	if _, err := k.ring.Get(ref); err == nil {
		return "", fmt.Errorf("%w: %s", ErrKeyExists, name)
	}
	err := k.ring.Set(keyring.Item{
		Key:   ref,
		Data:  []byte(hexKey),
		Label: "w3link key " + name,
	})
	if err != nil {
		return "", fmt.Errorf("keychain store: %w", err)
	}
	return ref, nil
}

// Retrieve fetches a private key by its reference. W3LINK_KEY wins over the keyring.
func (k *Keystore) Retrieve(ref string) (string, error) {
	if v := os.Getenv(EnvKey); v != "" {
		return normaliseHexKey(v), nil
	}
	if k.ring == nil {
		return "", errors.New("keystore not available")
	}
	item, err := k.ring.Get(ref)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, strings.TrimPrefix(ref, keychainService+"."))
	}
	if err != nil {
		return "", fmt.Errorf("keychain retrieve: %w", err)
	}
	return normaliseHexKey(string(item.Data)), nil
}

// Delete removes a stored key.
func (k *Keystore) Delete(ref string) error {
	if k.ring == nil {
		return nil
	}
	if _, err := k.ring.Get(ref); errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, strings.TrimPrefix(ref, keychainService+"."))
	}
	return k.ring.Remove(ref)
}

// Names lists stored key names, sorted.
func (k *Keystore) Names() ([]string, error) {
	if k.ring == nil {
		return nil, nil
	}
	keys, err := k.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("keychain list: %w", err)
	}
	var names []string
	for _, key := range keys {
		if name, ok := strings.CutPrefix(key, keychainService+"."); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// AddressOf returns the address of a hex private key.
func AddressOf(hexKey string) (common.Address, error) {
	key, err := crypto.HexToECDSA(normaliseHexKey(hexKey))
	if err != nil {
		return common.Address{}, ErrInvalidKey
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// normaliseHexKey strips whitespace and an optional 0x prefix.
func normaliseHexKey(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
