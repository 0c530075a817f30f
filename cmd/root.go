package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Mohsinsiddi/w3link/internal/config"
	"github.com/Mohsinsiddi/w3link/internal/ui"
)

var (
	cfgDir      string
	cfg         *config.Config
	verbose     bool
	quiet       bool
	walletFlag  string
	networkFlag string
	testnet     bool
	mainnet     bool

	logger   *log.Logger
	notifier ui.Notifier
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "w3link",
	Short: "ERC-20 wallet front end for the terminal",
	Long: `w3link connects to a wallet and lets you check and send ERC-20 tokens.

Wallets:
  injected   a JSON-RPC wallet endpoint (injected_provider / W3LINK_PROVIDER)
  relay      a remote signer paired out-of-band (relay_endpoint)
  local      a key held in the OS keyring (w3link key import)

Without --wallet the configured default_wallet is used. On a terminal you
are asked to pick one when neither is set.`,
	Version:       ui.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if networkFlag != "" {
			cfg.Network = networkFlag
		}
		if testnet {
			cfg.NetworkMode = "testnet"
		}
		if mainnet {
			cfg.NetworkMode = "mainnet"
		}
		logger = newLogger(cmd.ErrOrStderr())
		notifier = newNotifier(cmd.ErrOrStderr())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if t, ok := notifier.(*ui.Terminal); ok {
			t.Close()
		}
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !quiet {
			fmt.Fprintln(os.Stderr, ui.Err(err.Error()))
		}
		stop()
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.WarnLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "w3link",
		ReportTimestamp: verbose,
	})
}

func newNotifier(w io.Writer) ui.Notifier {
	if quiet {
		return ui.NewRecorder()
	}
	return ui.NewTerminal(w, isTerminal(w))
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func init() {
	// W3LINK_CONFIG_DIR env var overrides --config flag.
	if envDir := os.Getenv(config.DirEnv); envDir != "" {
		cfgDir = envDir
	}

	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", cfgDir, "config directory (default: ~/.w3link)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress notifications")
	rootCmd.PersistentFlags().StringVarP(&walletFlag, "wallet", "w", "", "wallet kind: injected, relay or local")
	rootCmd.PersistentFlags().StringVarP(&networkFlag, "network", "n", "", "network name (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&testnet, "testnet", false, "use testnet instead of mainnet")
	rootCmd.PersistentFlags().BoolVar(&mainnet, "mainnet", false, "use mainnet instead of testnet")
	rootCmd.MarkFlagsMutuallyExclusive("testnet", "mainnet")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(
		statusCmd,
		balanceCmd,
		infoCmd,
		transferCmd,
		keyCmd,
		networkCmd,
		rpcCmd,
		configCmd,
		checksumCmd,
		convertCmd,
	)
}
