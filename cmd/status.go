package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3link/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Connect a wallet and show the account",
	Long: `Connect the chosen wallet, print its account, network and native
balance, then disconnect.

Examples:
  w3link status --wallet injected
  W3LINK_RELAY_ENDPOINT=http://127.0.0.1:8550 w3link status -w relay`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := connectWallet(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Disconnect()

		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("Wallet", describeState(s.State())))
		return nil
	},
}
