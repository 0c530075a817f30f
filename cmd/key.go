package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Mohsinsiddi/w3link/internal/ui"
	"github.com/Mohsinsiddi/w3link/internal/wallet"
)

var keyYes bool

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage keys for the local wallet",
}

var keyImportCmd = &cobra.Command{
	Use:   "import <name>",
	Short: "Import a private key into the OS keyring",
	Long: `Import a hex private key into the OS keyring under <name>. The key is
read from a hidden prompt, or from stdin when it is not a terminal.

Use it with: w3link config set local_account <name>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		hexKey, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Private key: ")
		if err != nil {
			return err
		}
		addr, err := wallet.AddressOf(hexKey)
		if err != nil {
			return err
		}
		if _, err := openKeystore().Store(name, hexKey); err != nil {
			return err
		}
		logger.Debug("key imported", "name", name, "address", addr.Hex())
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Key %q imported: %s", name, ui.Addr(addr.Hex()))))
		if cfg.LocalAccount == "" {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Hint("Use it with: w3link config set local_account "+name))
		}
		return nil
	},
}

var keyRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a key from the OS keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !keyYes && !ui.ConfirmFrom(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Remove key %q?", name)) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Meta("Cancelled."))
			return nil
		}
		if err := openKeystore().Delete(wallet.KeyRef(name)); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Key %q removed.", name)))
		return nil
	},
}

var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := openKeystore().Names()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, ui.Info("No keys imported yet."))
			fmt.Fprintln(out, ui.Hint("Import one with: w3link key import <name>"))
			return nil
		}
		t := ui.NewTable([]ui.Column{
			{Title: "Name", Width: 16},
			{Title: "Local account", Width: 14},
		})
		for _, n := range names {
			mark := ""
			if n == cfg.LocalAccount {
				mark = ui.StyleSuccess.Render("✓")
			}
			t.AddRow(ui.Row{ui.Val(n), mark})
		}
		fmt.Fprintln(out, t.Render())
		return nil
	},
}

// readSecret reads one line without echo when in is a terminal.
func readSecret(in io.Reader, out io.Writer, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	keyRemoveCmd.Flags().BoolVarP(&keyYes, "yes", "y", false, "skip the confirmation prompt")
	keyCmd.AddCommand(keyImportCmd, keyRemoveCmd, keyListCmd)
}
