package cmd

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3link/internal/chain"
	"github.com/Mohsinsiddi/w3link/internal/ui"
	"github.com/Mohsinsiddi/w3link/internal/validate"
)

var (
	convertDecimals uint8
	convertRaw      bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <amount>",
	Short: "Convert between token amounts and raw base units",
	Long: `Scale a decimal token amount to the raw integer a contract sees, or
back with --raw. Amounts with more fractional digits than --decimals are
rejected.

Examples:
  w3link convert 12.5 --decimals 6         # → 12500000
  w3link convert 12500000 --decimals 6 --raw
  w3link convert 0x2faf080 --decimals 6 --raw`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, err := convertAmount(args[0], convertDecimals, convertRaw)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("Unit Conversion", pairs))
		return nil
	},
}

func convertAmount(amount string, decimals uint8, raw bool) ([][2]string, error) {
	var units *big.Int
	if raw {
		n, ok := parseRaw(amount)
		if !ok {
			return nil, fmt.Errorf("invalid raw amount %q", amount)
		}
		units = n
	} else {
		n, err := chain.ParseUnits(amount, decimals)
		if err != nil {
			return nil, err
		}
		units = n
	}
	scaled := chain.FormatUnits(units, decimals)
	return [][2]string{
		{"Input", ui.Val(amount)},
		{"Decimals", fmt.Sprintf("%d", decimals)},
		{"Amount", ui.Val(scaled)},
		{"Display", validate.FormatBalance(scaled)},
		{"Raw", ui.Val(units.String())},
		{"Hex", ui.Val("0x" + units.Text(16))},
	}, nil
}

// parseRaw accepts a non-negative decimal or 0x-prefixed hex integer.
func parseRaw(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

func init() {
	convertCmd.Flags().Uint8VarP(&convertDecimals, "decimals", "d", 18, "token decimals")
	convertCmd.Flags().BoolVar(&convertRaw, "raw", false, "input is a raw base-unit integer")
}
