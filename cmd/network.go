package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3link/internal/chain"
	"github.com/Mohsinsiddi/w3link/internal/ui"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Manage networks",
}

var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known networks",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := chain.NewRegistry()
		t := ui.NewTable([]ui.Column{
			{Title: "#", Width: 3, Right: true},
			{Title: "Name", Width: 12},
			{Title: "Display", Width: 12},
			{Title: "Chain ID", Width: 10, Right: true},
			{Title: "Currency", Width: 8},
			{Title: "Testnet", Width: 16},
		})

		for i, c := range reg.All() {
			testnet := "-"
			if c.TestnetChainID != 0 {
				testnet = fmt.Sprintf("%s (%d)", c.TestnetName, c.TestnetChainID)
			}
			name := ui.ChainName(c.Name)
			if c.Name == cfg.Network {
				name += " " + ui.StyleSuccess.Render("✓")
			}
			t.AddRow(ui.Row{
				strconv.Itoa(i + 1),
				name,
				c.DisplayName,
				strconv.FormatInt(c.ChainID, 10),
				c.NativeCurrency,
				testnet,
			})
		}

		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		fmt.Fprintln(cmd.OutOrStdout(), ui.Meta(fmt.Sprintf("%d networks total", len(reg.All()))))
		return nil
	},
}

var networkUseCmd = &cobra.Command{
	Use:   "use <network>",
	Short: "Set the default network",
	Long: `Set the default network and persist it to config.

When combined with --testnet or --mainnet the network mode is also persisted.

Examples:
  w3link network use base              # keep current mode
  w3link network use base --testnet    # Base Sepolia from now on`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Set("network", args[0]); err != nil {
			return fmt.Errorf("%w: run `w3link network list` to see all networks", err)
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Default network set to %s (%s)", ui.ChainName(cfg.Network), cfg.NetworkMode)))
		return nil
	},
}

func init() {
	networkCmd.AddCommand(networkListCmd, networkUseCmd)
}
