package cmd

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3link/internal/ui"
	"github.com/Mohsinsiddi/w3link/internal/validate"
)

var checksumCmd = &cobra.Command{
	Use:   "checksum <address>",
	Short: "Validate an address and show its EIP-55 checksum form",
	Long: `Check that an address is well formed (0x followed by 40 hex digits)
and print its EIP-55 checksummed form.

Examples:
  w3link checksum 0xd8da6bf26964af9d7eed9e03e53415d37aa96045`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		if !validate.IsValidAddress(input) {
			return fmt.Errorf("invalid address %q: expected 0x followed by 40 hex characters", input)
		}

		checksummed := toChecksumAddress(input)
		pairs := [][2]string{
			{"Input", input},
			{"Checksummed", ui.Addr(checksummed)},
			{"Short", validate.FormatAddress(checksummed)},
		}
		switch {
		case input == checksummed:
			pairs = append(pairs, [2]string{"Valid", ui.Success("address is correctly checksummed")})
		case strings.ToLower(input) == input || strings.ToUpper(input[2:]) == input[2:]:
			pairs = append(pairs, [2]string{"Valid", ui.Warn("valid address but not checksummed")})
		default:
			pairs = append(pairs, [2]string{"Valid", ui.Err("checksum mismatch")})
		}

		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("EIP-55 Checksum", pairs))
		return nil
	},
}

// toChecksumAddress returns the EIP-55 mixed-case form of a hex address.
func toChecksumAddress(addr string) string {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		addr = "0x" + addr
	}
	return common.HexToAddress(addr).Hex()
}
