package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3link/internal/chain"
	"github.com/Mohsinsiddi/w3link/internal/rpc"
	"github.com/Mohsinsiddi/w3link/internal/ui"
)

const benchmarkTimeout = 15 * time.Second

var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "Manage read RPC endpoints",
	Long: `Relay and local wallets read chain state through the configured rpcs,
or the network's built-in endpoints when none are configured. When there are
several, one is picked by rpc_algorithm.`,
}

var rpcAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a read RPC endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.AddRPC(args[0]); err != nil {
			// Already configured: not fatal.
			fmt.Fprintln(cmd.OutOrStdout(), ui.Warn(err.Error()))
			return nil
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("Added RPC "+args[0]))
		return nil
	},
}

var rpcRemoveCmd = &cobra.Command{
	Use:   "remove <url>",
	Short: "Remove a read RPC endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RemoveRPC(args[0]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("Removed RPC "+args[0]))
		return nil
	},
}

var rpcListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the endpoints that will be used",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, urls, err := cfg.Endpoints(chain.NewRegistry())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		source := "built-in"
		if len(cfg.RPCs) > 0 {
			source = "configured"
		}
		fmt.Fprintln(out, ui.StyleTitle.Render(fmt.Sprintf("RPCs for %s", chain.NewRegistry().Label(id))))
		for _, u := range urls {
			fmt.Fprintf(out, "  %s %s\n", ui.Meta("("+source+")"), u)
		}
		fmt.Fprintln(out, ui.Meta("algorithm: "+string(cfg.Algorithm())))
		return nil
	},
}

var rpcBenchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Benchmark the endpoints and show which one would be picked",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, urls, err := cfg.Endpoints(chain.NewRegistry())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), benchmarkTimeout)
		defer cancel()

		results := rpc.Benchmark(ctx, urls)
		winner, pickErr := rpc.NewPicker(cfg.Algorithm()).Pick(results)

		t := ui.NewTable([]ui.Column{
			{Title: "RPC URL", Width: 40},
			{Title: "Latency", Width: 10, Right: true},
			{Title: "Block #", Width: 12, Right: true},
			{Title: "Status", Width: 10},
		})
		for _, r := range results {
			status := ui.Success("healthy")
			latency := fmt.Sprintf("%dms", r.Latency.Milliseconds())
			block := fmt.Sprintf("%d", r.BlockNumber)
			if !r.Healthy {
				status = ui.Err("down")
				latency = "-"
				block = "-"
			}
			t.AddRow(ui.Row{r.URL, latency, block, status})
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())

		if pickErr != nil {
			return pickErr
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Hint(fmt.Sprintf("%s picks %s", cfg.Algorithm(), winner.URL)))
		return nil
	},
}

func init() {
	rpcCmd.AddCommand(rpcAddCmd, rpcRemoveCmd, rpcListCmd, rpcBenchmarkCmd)
}
