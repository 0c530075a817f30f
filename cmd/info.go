package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <token>",
	Short: "Print your balance of a token, or - when it cannot be read",
	Long: `Print the connected account's balance of a token as a plain decimal.
Nothing is reported on failure; "-" is printed instead, which makes the
command convenient in scripts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := connectWallet(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Disconnect()

		bal, ok := newTokenService(s).GetTokenBalance(cmd.Context(), args[0])
		if !ok {
			bal = "-"
		}
		fmt.Fprintln(cmd.OutOrStdout(), bal)
		return nil
	},
}
