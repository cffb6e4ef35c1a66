// File: cmd/session.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/xkilldash9x/walletpilot/internal/config"
	"github.com/xkilldash9x/walletpilot/internal/service"
)

// siteWindow is the logical index of the tab the dApp or marketplace runs in.
const siteWindow = 1

// Terminal access, replaced in tests.
var (
	stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	readPassword    = func() ([]byte, error) { return term.ReadPassword(int(syscall.Stdin)) }
)

// connectOptions describe what happens on the site after the wallet is imported.
type connectOptions struct {
	url      string
	sign     bool
	contract bool
	pages    int
}

func (o *connectOptions) addFlags(cmd *cobra.Command, urlFlag, urlUsage string) {
	cmd.Flags().StringVar(&o.url, urlFlag, "", urlUsage)
	cmd.Flags().BoolVar(&o.contract, "contract", false, "sign the signature request that follows the connection")
	cmd.Flags().IntVar(&o.pages, "pages", 2, "popup pages to confirm when connecting")
	cmd.Flags().String("network", "", "test network to select after importing a private key")
}

// promptPassword asks for the wallet password on the terminal when a recovery phrase
// is configured without one.
func promptPassword(cmd *cobra.Command, cfg config.Interface) error {
	w := cfg.Wallet()
	if w.RecoveryPhrase == "" || w.Password != "" || !stdinIsTerminal() {
		return nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Wallet password: ")
	password, err := readPassword()
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	cfg.SetWalletPassword(strings.TrimSpace(string(password)))
	return nil
}

// startSession launches the browser and logs into the wallet. The caller must
// call Shutdown on the returned session.
func startSession(ctx context.Context, cmd *cobra.Command, cfg config.Interface, logger *zap.Logger) (*service.Session, error) {
	if err := promptPassword(cmd, cfg); err != nil {
		return nil, err
	}
	session, err := newSessionFactory().Create(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}
	if err := session.Wallet.Login(ctx); err != nil {
		session.Shutdown(ctx)
		return nil, err
	}
	return session, nil
}

// connect opens the site in the site window and answers the wallet popups it triggers.
func connect(ctx context.Context, session *service.Session, opts connectOptions) error {
	if opts.url == "" {
		return nil
	}
	// 1. Load the site.
	if err := session.Driver.SwitchToWindow(ctx, siteWindow); err != nil {
		return err
	}
	if err := session.Driver.Navigate(ctx, opts.url); err != nil {
		return err
	}
	if !opts.sign && !opts.contract {
		return nil
	}

	// 2. Confirm the connection and, optionally, the signature request.
	if err := session.Wallet.Sign(ctx, opts.contract, opts.pages); err != nil {
		return fmt.Errorf("failed to connect wallet to %s: %w", opts.url, err)
	}
	return nil
}
