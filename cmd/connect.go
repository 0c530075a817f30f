package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Mohsinsiddi/w3link/internal/chain"
	"github.com/Mohsinsiddi/w3link/internal/token"
	"github.com/Mohsinsiddi/w3link/internal/ui"
	"github.com/Mohsinsiddi/w3link/internal/validate"
	"github.com/Mohsinsiddi/w3link/internal/wallet"
)

const defaultPairTimeout = 2 * time.Minute

// openKeystore opens the keyring used by local wallets and `key` commands.
var openKeystore = func() wallet.KeystoreBackend { return wallet.DefaultKeystore() }

// walletChoices lists the wallet kinds, disabling those the config cannot
// connect.
func walletChoices() []ui.PickerItem {
	missing := func(key string) string { return "set " + key + " first" }
	items := []ui.PickerItem{
		{Label: wallet.InjectedWallet.Title(), SubLabel: cfg.InjectedProvider, Value: wallet.InjectedWallet.String()},
		{Label: wallet.RelayWallet.Title(), SubLabel: "remote signer " + cfg.RelayEndpoint, Value: wallet.RelayWallet.String()},
		{Label: wallet.LocalWallet.Title(), SubLabel: "key " + cfg.LocalAccount + " in the OS keyring", Value: wallet.LocalWallet.String()},
	}
	if cfg.InjectedProvider == "" {
		items[0].Disabled = missing("injected_provider")
	}
	if cfg.RelayEndpoint == "" {
		items[1].Disabled = missing("relay_endpoint")
	}
	if cfg.LocalAccount == "" {
		items[2].Disabled = missing("local_account")
	}
	return items
}

// pickWallet asks which wallet to use when none is configured.
var pickWallet = func(ctx context.Context) (string, error) {
	return ui.PickItem(ctx, os.Stdin, os.Stderr, "Connect a wallet", walletChoices())
}

var errNoWalletChosen = errors.New("no wallet selected: pass --wallet or set default_wallet")

func newSession() *wallet.Session {
	opts := []wallet.Option{
		wallet.WithNotifier(notifier),
		wallet.WithLogger(logger),
	}
	if cfg.InjectedProvider != "" {
		opts = append(opts, wallet.WithInjected(wallet.NewInjected(cfg.InjectedProvider)))
	}
	return wallet.NewSession(opts...)
}

func newTokenService(s *wallet.Session) *token.Service {
	return token.NewService(s,
		token.WithNotifier(notifier),
		token.WithLogger(logger),
		token.WithConfirmation(cfg.PollInterval(), cfg.ConfirmTimeoutDuration()),
	)
}

// resolveKind picks the wallet kind from --wallet, then default_wallet,
// then an interactive picker on a terminal.
func resolveKind(ctx context.Context) (wallet.Kind, error) {
	name := walletFlag
	if name == "" {
		name = cfg.DefaultWallet
	}
	if name == "" && isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		picked, err := pickWallet(ctx)
		if errors.Is(err, ui.ErrPickCancelled) {
			return wallet.NoWallet, errNoWalletChosen
		}
		if err != nil {
			return wallet.NoWallet, err
		}
		name = picked
	}
	if name == "" {
		return wallet.NoWallet, errNoWalletChosen
	}
	return wallet.ParseKind(name)
}

// connectWallet opens a session and connects it with the chosen backend.
// The caller must Disconnect.
func connectWallet(ctx context.Context) (*wallet.Session, error) {
	kind, err := resolveKind(ctx)
	if err != nil {
		return nil, err
	}
	s := newSession()

	switch kind {
	case wallet.InjectedWallet:
		err = s.ConnectInjected(ctx)
	case wallet.RelayWallet:
		id, rpcs, rerr := cfg.Endpoints(chain.NewRegistry())
		if rerr != nil {
			return nil, rerr
		}
		err = s.ConnectRelay(ctx, wallet.RelayConfig{
			Endpoint:    cfg.RelayEndpoint,
			ProjectID:   cfg.ProjectID,
			ChainIDs:    []int64{id},
			ShowQR:      cfg.ShowQR,
			QROut:       rootCmd.ErrOrStderr(),
			ReadRPCs:    rpcs,
			Algorithm:   cfg.Algorithm(),
			PairTimeout: defaultPairTimeout,
		})
	case wallet.LocalWallet:
		_, rpcs, rerr := cfg.Endpoints(chain.NewRegistry())
		if rerr != nil {
			return nil, rerr
		}
		err = s.ConnectLocal(ctx, wallet.LocalConfig{
			Name:      cfg.LocalAccount,
			Keystore:  openKeystore(),
			ReadRPCs:  rpcs,
			Algorithm: cfg.Algorithm(),
		})
	default:
		return nil, fmt.Errorf("unsupported wallet kind %s", kind)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// describeState renders a connected session the way `status` prints it.
func describeState(st wallet.State) [][2]string {
	reg := chain.NewRegistry()
	account, _ := st.Account()
	id, _ := st.ChainID()
	balance := "-"
	if b, ok := st.NativeBalance(); ok {
		balance = validate.FormatBalance(b)
		if c, err := reg.GetByChainID(id); err == nil {
			balance += " " + c.NativeCurrency
		}
	}
	return [][2]string{
		{"Account", ui.Addr(validate.FormatAddress(account.Hex()))},
		{"Wallet", st.Kind().Title()},
		{"Network", reg.Label(id)},
		{"Balance", ui.Val(balance)},
	}
}
