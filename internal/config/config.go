package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/Mohsinsiddi/w3link/internal/chain"
	"github.com/Mohsinsiddi/w3link/internal/rpc"
	"github.com/Mohsinsiddi/w3link/internal/wallet"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "W3LINK"

// DirEnv overrides the --config directory.
const DirEnv = "W3LINK_CONFIG_DIR"

const (
	defaultNetwork        = "ethereum"
	defaultMode           = chain.ModeMainnet
	defaultAlgorithm      = string(rpc.AlgorithmFastest)
	defaultConfirmTimeout = 180
	defaultPollInterval   = 2000
	defaultLogLevel       = "warn"

	configFile = "config.json"
)

// ErrUnknownKey is returned by Set for a key that is not a config field.
var ErrUnknownKey = errors.New("unknown config key")

// Load reads config from dir (or creates defaults) and applies W3LINK_*
// environment overrides on top. dir defaults to ~/.w3link.
func Load(dir string) (*Config, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, ".w3link")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := defaults(dir)

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	cfg.configDir = dir
	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.configDir, configFile), data, 0o600)
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// AddRPC appends a read endpoint.
func (c *Config) AddRPC(url string) error {
	if slices.Contains(c.RPCs, url) {
		return fmt.Errorf("RPC %s already configured", url)
	}
	c.RPCs = append(c.RPCs, url)
	return nil
}

// RemoveRPC removes a read endpoint.
func (c *Config) RemoveRPC(url string) error {
	idx := slices.Index(c.RPCs, url)
	if idx == -1 {
		return fmt.Errorf("RPC %s not configured", url)
	}
	c.RPCs = slices.Delete(c.RPCs, idx, idx+1)
	return nil
}

// Endpoints resolves the target chain id and read RPCs. Explicit chain_id and
// rpcs win; anything unset comes from the registry entry for network.
func (c *Config) Endpoints(reg *chain.Registry) (int64, []string, error) {
	if c.ChainID != 0 && len(c.RPCs) > 0 {
		return c.ChainID, c.RPCs, nil
	}
	net, err := reg.GetByName(c.Network)
	if err != nil {
		return 0, nil, fmt.Errorf("network %q: %w", c.Network, err)
	}
	id, rpcs := c.ChainID, c.RPCs
	if id == 0 {
		id = net.ID(c.NetworkMode)
	}
	if len(rpcs) == 0 {
		rpcs = net.RPCs(c.NetworkMode)
	}
	return id, rpcs, nil
}

// Algorithm returns the configured RPC selection algorithm.
func (c *Config) Algorithm() rpc.Algorithm {
	algo, err := rpc.ParseAlgorithm(c.RPCAlgorithm)
	if err != nil {
		return rpc.AlgorithmFastest
	}
	return algo
}

// ConfirmTimeoutDuration is confirm_timeout as a duration.
func (c *Config) ConfirmTimeoutDuration() time.Duration {
	if c.ConfirmTimeout <= 0 {
		return chain.DefaultConfirmTimeout
	}
	return time.Duration(c.ConfirmTimeout) * time.Second
}

// PollInterval is poll_interval_ms as a duration.
func (c *Config) PollInterval() time.Duration {
	if c.PollIntervalMS <= 0 {
		return chain.DefaultPollInterval
	}
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// --- keyed access for `config set` ---

type field struct {
	get func(*Config) string
	set func(*Config, string) error
}

var fields = map[string]field{
	"network": {
		get: func(c *Config) string { return c.Network },
		set: func(c *Config, v string) error {
			if _, err := chain.NewRegistry().GetByName(v); err != nil {
				return fmt.Errorf("network %q: %w", v, err)
			}
			c.Network = strings.ToLower(v)
			return nil
		},
	},
	"network_mode": {
		get: func(c *Config) string { return c.NetworkMode },
		set: func(c *Config, v string) error {
			if v != chain.ModeMainnet && v != chain.ModeTestnet {
				return fmt.Errorf("network_mode must be %s or %s", chain.ModeMainnet, chain.ModeTestnet)
			}
			c.NetworkMode = v
			return nil
		},
	},
	"chain_id": {
		get: func(c *Config) string { return strconv.FormatInt(c.ChainID, 10) },
		set: func(c *Config, v string) error {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id < 0 {
				return fmt.Errorf("chain_id must be a non-negative integer")
			}
			c.ChainID = id
			return nil
		},
	},
	"rpcs": {
		get: func(c *Config) string { return strings.Join(c.RPCs, ",") },
		set: func(c *Config, v string) error {
			c.RPCs = splitList(v)
			return nil
		},
	},
	"rpc_algorithm": {
		get: func(c *Config) string { return c.RPCAlgorithm },
		set: func(c *Config, v string) error {
			algo, err := rpc.ParseAlgorithm(v)
			if err != nil {
				return err
			}
			c.RPCAlgorithm = string(algo)
			return nil
		},
	},
	"default_wallet": {
		get: func(c *Config) string { return c.DefaultWallet },
		set: func(c *Config, v string) error {
			if v == "" {
				c.DefaultWallet = ""
				return nil
			}
			kind, err := wallet.ParseKind(v)
			if err != nil {
				return err
			}
			c.DefaultWallet = kind.String()
			return nil
		},
	},
	"injected_provider": stringField(func(c *Config) *string { return &c.InjectedProvider }),
	"relay_endpoint":    stringField(func(c *Config) *string { return &c.RelayEndpoint }),
	"project_id":        stringField(func(c *Config) *string { return &c.ProjectID }),
	"local_account":     stringField(func(c *Config) *string { return &c.LocalAccount }),
	"show_qr": {
		get: func(c *Config) string { return strconv.FormatBool(c.ShowQR) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("show_qr must be true or false")
			}
			c.ShowQR = b
			return nil
		},
	},
	"confirm_timeout":  intField(func(c *Config) *int { return &c.ConfirmTimeout }),
	"poll_interval_ms": intField(func(c *Config) *int { return &c.PollIntervalMS }),
	"log_level": {
		get: func(c *Config) string { return c.LogLevel },
		set: func(c *Config, v string) error {
			switch v {
			case "debug", "info", "warn", "error":
				c.LogLevel = v
				return nil
			}
			return fmt.Errorf("log_level must be debug, info, warn or error")
		},
	},
}

// Keys lists the settable keys in order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of key as text.
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return f.get(c), nil
}

// Set parses and assigns value to key. The config is not saved.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return f.set(c, strings.TrimSpace(value))
}

// --- helpers ---

func defaults(dir string) *Config {
	return &Config{
		Network:        defaultNetwork,
		NetworkMode:    defaultMode,
		RPCAlgorithm:   defaultAlgorithm,
		ConfirmTimeout: defaultConfirmTimeout,
		PollIntervalMS: defaultPollInterval,
		LogLevel:       defaultLogLevel,
		configDir:      dir,
	}
}

func stringField(p func(*Config) *string) field {
	return field{
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, v string) error {
			*p(c) = v
			return nil
		},
	}
}

func intField(p func(*Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("expected a positive integer, got %q", v)
			}
			*p(c) = n
			return nil
		},
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
