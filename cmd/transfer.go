package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3link/internal/ens"
	"github.com/Mohsinsiddi/w3link/internal/token"
	"github.com/Mohsinsiddi/w3link/internal/ui"
	"github.com/Mohsinsiddi/w3link/internal/validate"
	"github.com/Mohsinsiddi/w3link/internal/wallet"
)

const (
	msgBadToken     = "Please enter a valid token address"
	msgBadRecipient = "Please enter a valid recipient address"
	msgBadAmount    = "Please enter a valid amount"
)

var (
	transferMax bool
	transferYes bool
)

var errCancelled = errors.New("transfer cancelled")

var transferCmd = &cobra.Command{
	Use:   "transfer <token> <recipient> [amount]",
	Short: "Send ERC-20 tokens",
	Long: `Send tokens from the connected account and wait for confirmation.

The token is loaded first so the summary shows its symbol and your balance.
Use --max to send the whole balance. On Ethereum and Sepolia the recipient
may be an ENS name.

Examples:
  w3link transfer 0xA0b8...eB48 0x7099...79C8 12.5
  w3link transfer 0xA0b8...eB48 alice.eth 12.5
  w3link transfer 0xA0b8...eB48 0x7099...79C8 --max --yes`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenAddr, recipient := args[0], args[1]
		amount := ""
		if len(args) == 3 {
			amount = args[2]
		}

		switch {
		case !validate.IsValidAddress(tokenAddr):
			notifier.Error(msgBadToken)
			return fmt.Errorf("%w: token %q", token.ErrInvalidInput, tokenAddr)
		case !ens.IsName(recipient) && !validate.IsValidAddress(recipient):
			notifier.Error(msgBadRecipient)
			return fmt.Errorf("%w: recipient %q", token.ErrInvalidInput, recipient)
		case transferMax && amount != "":
			return errors.New("pass either an amount or --max, not both")
		case !transferMax && !validate.IsValidAmount(amount):
			notifier.Error(msgBadAmount)
			return fmt.Errorf("%w: amount %q", token.ErrInvalidInput, amount)
		}

		s, err := connectWallet(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Disconnect()

		recipientName := ""
		if ens.IsName(recipient) {
			recipientName = recipient
			if recipient, err = resolveName(cmd, s.State(), recipientName); err != nil {
				notifier.Error(msgBadRecipient)
				return err
			}
		}

		svc := newTokenService(s)
		// GetTokenInfo has already reported the failure.
		info, err := svc.GetTokenInfo(cmd.Context(), tokenAddr)
		if err != nil {
			return err
		}
		if transferMax {
			max, ok := svc.MaxAmount(tokenAddr)
			if !ok || !validate.IsValidAmount(max) {
				notifier.Error(msgBadAmount)
				return fmt.Errorf("%w: nothing to send", token.ErrInvalidInput)
			}
			amount = max
		}

		to := ui.Addr(recipient)
		if recipientName != "" {
			to = ui.Val(recipientName) + " " + ui.Addr(validate.FormatAddress(recipient))
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.KeyValueBlock("Transfer "+info.Symbol, [][2]string{
			{"Token", ui.Addr(info.Address.Hex())},
			{"To", to},
			{"Amount", ui.Val(amount + " " + info.Symbol)},
			{"Balance", validate.FormatBalance(info.Balance) + " " + info.Symbol},
		}))
		if !transferYes && !ui.ConfirmFrom(cmd.InOrStdin(), out, "Send this transfer?") {
			fmt.Fprintln(out, ui.Meta("Cancelled."))
			return errCancelled
		}

		return svc.TransferTokens(cmd.Context(), tokenAddr, recipient, amount)
	},
}

// resolveName looks name up on the session's network.
func resolveName(cmd *cobra.Command, st wallet.State, name string) (string, error) {
	id, _ := st.ChainID()
	addr, err := ens.Resolve(cmd.Context(), st.Reader(), id, name)
	if err != nil {
		return "", fmt.Errorf("%w: recipient %q: %w", token.ErrInvalidInput, name, err)
	}
	logger.Debug("ens resolved", "name", name, "address", addr.Hex())
	return addr.Hex(), nil
}

func init() {
	transferCmd.Flags().BoolVar(&transferMax, "max", false, "send the whole token balance")
	transferCmd.Flags().BoolVarP(&transferYes, "yes", "y", false, "skip the confirmation prompt")
}
