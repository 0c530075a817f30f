package config

// Config holds all w3link configuration. Every field can be overridden from
// the environment with the W3LINK_ prefix, e.g. W3LINK_RELAY_ENDPOINT.
type Config struct {
	Network      string   `json:"network"       envconfig:"NETWORK"`
	NetworkMode  string   `json:"network_mode"  envconfig:"NETWORK_MODE"` // "mainnet" | "testnet"
	ChainID      int64    `json:"chain_id"      envconfig:"CHAIN_ID"`     // 0: taken from the registry
	RPCs         []string `json:"rpcs"          envconfig:"RPCS"`
	RPCAlgorithm string   `json:"rpc_algorithm" envconfig:"RPC_ALGORITHM"` // "fastest" | "round-robin" | "failover"

	DefaultWallet    string `json:"default_wallet"    envconfig:"WALLET"` // "injected" | "relay" | "local"
	InjectedProvider string `json:"injected_provider" envconfig:"PROVIDER"`
	RelayEndpoint    string `json:"relay_endpoint"    envconfig:"RELAY_ENDPOINT"`
	ProjectID        string `json:"project_id"        envconfig:"PROJECT_ID"`
	ShowQR           bool   `json:"show_qr"           envconfig:"SHOW_QR"`
	LocalAccount     string `json:"local_account"     envconfig:"LOCAL_ACCOUNT"`

	ConfirmTimeout int    `json:"confirm_timeout"  envconfig:"CONFIRM_TIMEOUT"`  // seconds
	PollIntervalMS int    `json:"poll_interval_ms" envconfig:"POLL_INTERVAL_MS"` // milliseconds
	LogLevel       string `json:"log_level"        envconfig:"LOG_LEVEL"`

	// internal: config dir path used for Save()
	configDir string
}
