package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3link/internal/ui"
	"github.com/Mohsinsiddi/w3link/internal/validate"
)

var (
	balanceWatch    bool
	balanceInterval time.Duration
)

var balanceCmd = &cobra.Command{
	Use:   "balance <token>",
	Short: "Load an ERC-20 token and show your balance",
	Long: `Connect the chosen wallet, read the token's name, symbol, decimals and
your balance of it, and print them.

Examples:
  w3link balance 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48
  w3link balance 0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913 --network base
  w3link balance 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48 --watch --interval 15s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if balanceWatch && balanceInterval <= 0 {
			return fmt.Errorf("--interval must be positive, got %s", balanceInterval)
		}
		s, err := connectWallet(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Disconnect()

		svc := newTokenService(s)
		info, err := svc.GetTokenInfo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		account, _ := s.State().Account()
		if balanceWatch {
			m := ui.NewBalanceWatch(
				fmt.Sprintf("%s (%s)", info.Name, info.Symbol),
				validate.FormatAddress(account.Hex()),
				info.Symbol,
				balanceInterval,
				func() (string, error) {
					bal, ok := svc.GetTokenBalance(cmd.Context(), args[0])
					if !ok {
						return "", errBalanceUnavailable
					}
					return validate.FormatBalance(bal), nil
				},
			)
			return ui.RunBalanceWatch(cmd.Context(), m, cmd.InOrStdin(), cmd.OutOrStdout())
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock(
			fmt.Sprintf("%s (%s)", info.Name, info.Symbol),
			[][2]string{
				{"Token", ui.Addr(info.Address.Hex())},
				{"Account", ui.Addr(validate.FormatAddress(account.Hex()))},
				{"Decimals", fmt.Sprintf("%d", info.Decimals)},
				{"Balance", ui.Val(validate.FormatBalance(info.Balance) + " " + info.Symbol)},
			},
		))
		return nil
	},
}

var errBalanceUnavailable = errors.New("balance unavailable")

func init() {
	balanceCmd.Flags().BoolVar(&balanceWatch, "watch", false, "keep the balance on screen and refresh it")
	balanceCmd.Flags().DurationVar(&balanceInterval, "interval", 10*time.Second, "refresh interval for --watch")
}
