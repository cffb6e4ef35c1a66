// internal/wallet/metamask/flow.go

// Package metamask drives the MetaMask extension: wallet import, optional account
// import, test network selection, and signing of the popups it opens.
package metamask

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/walletpilot/internal/browser"
	"github.com/xkilldash9x/walletpilot/internal/wallet"
)

// ErrLoginFailed is returned once every login attempt has failed and the session was shut down.
var ErrLoginFailed = errors.New("login to MetaMask failed")

const (
	// MainNetwork needs no network switch.
	MainNetwork = "Main"

	maxLoginAttempts    = 2
	maxContractAttempts = 2
)

// Logical windows, independent of engine ordering.
const (
	extensionWindow = 0
	siteWindow      = 1
	popupWindow     = 2
)

// Web is the subset of *browser.Driver the flow needs.
type Web interface {
	Engine() browser.Engine
	Clickable(ctx context.Context, locator string) error
	Visible(ctx context.Context, locator string) (*browser.Element, error)
	SendKeys(ctx context.Context, locator, text string) error
	Refresh(ctx context.Context) error
	ScrollToBottom(ctx context.Context) error
	SwitchToWindow(ctx context.Context, logical int) error
	WindowHandles(ctx context.Context) ([]string, error)
	WindowCount(ctx context.Context) (int, error)
	WaitWindowCount(ctx context.Context, n int) error
	WaitWindowsChanged(ctx context.Context, previous []string) error
	CloseWindow(ctx context.Context) error
	Quit(ctx context.Context)
}

var _ Web = (*browser.Driver)(nil)

// Flow logs into MetaMask and answers its popups. It shares the caller's browser session.
type Flow struct {
	web      Web
	creds    *wallet.Credentials
	prompter Prompter
	network  string
	logger   *zap.Logger
}

// Option configures a Flow.
type Option func(*Flow)

// WithNetwork selects the test network switched to after importing a private key.
func WithNetwork(name string) Option {
	return func(f *Flow) {
		if name != "" {
			f.network = name
		}
	}
}

// WithPrompter replaces the terminal prompt used for manual imports.
func WithPrompter(p Prompter) Option {
	return func(f *Flow) {
		if p != nil {
			f.prompter = p
		}
	}
}

// New creates a Flow over web for creds.
func New(web Web, creds *wallet.Credentials, logger *zap.Logger, opts ...Option) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Flow{
		web:      web,
		creds:    creds,
		prompter: NewTerminalPrompter(),
		network:  MainNetwork,
		logger:   logger.Named("metamask"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Login imports the wallet into the extension. It makes at most two attempts; after the
// second failure it quits the browser, clears creds.Success and returns ErrLoginFailed.
func (f *Flow) Login(ctx context.Context) error {
	f.logger.Info("Login to MetaMask.", zap.Object("credentials", f.creds))

	var lastErr error
	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		lastErr = f.login(ctx)
		if lastErr == nil {
			f.creds.Success = true
			f.logger.Info("Logged to MetaMask.")
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < maxLoginAttempts {
			f.logger.Warn("Login to MetaMask failed. Retrying.", zap.Int("attempt", attempt), zap.Error(lastErr))
		}
	}

	f.logger.Error("Login to MetaMask failed. Restarting.", zap.Error(lastErr))
	f.web.Quit(context.WithoutCancel(ctx))
	f.creds.Success = false
	return fmt.Errorf("%w: %w", ErrLoginFailed, lastErr)
}

func (f *Flow) login(ctx context.Context) error {
	// 1. Open the onboarding page on the extension tab.
	if err := f.web.SwitchToWindow(ctx, extensionWindow); err != nil {
		return err
	}
	// A fresh extension tab can render blank until reloaded.
	if err := f.web.Refresh(ctx); err != nil {
		return err
	}
	if err := f.clickAll(ctx, welcomeButton, primaryButton, agreeButton); err != nil {
		return err
	}

	// 2. Import the wallet.
	if f.creds.Manual() {
		if err := f.prompter.WaitForManualImport(ctx); err != nil {
			return fmt.Errorf("manual import: %w", err)
		}
	} else if err := f.importWallet(ctx); err != nil {
		return err
	}

	// 3. Wait for the "all done" page and confirm.
	if _, err := f.web.Visible(ctx, completionEmoji); err != nil {
		return err
	}
	if err := f.web.Clickable(ctx, primaryButton); err != nil {
		return err
	}

	// 4. Optionally import an extra account.
	if f.creds.PrivateKey != "" {
		return f.importAccount(ctx)
	}
	return nil
}

func (f *Flow) importWallet(ctx context.Context) error {
	if err := f.web.SendKeys(ctx, phraseInput, f.creds.RecoveryPhrase); err != nil {
		return err
	}
	for _, field := range []string{passwordInput, confirmInput} {
		if err := f.web.SendKeys(ctx, field, f.creds.Password); err != nil {
			return err
		}
	}
	return f.clickAll(ctx, termsCheckbox, primaryButton)
}

func (f *Flow) importAccount(ctx context.Context) error {
	if err := f.web.Clickable(ctx, popoverClose); err != nil {
		return err
	}
	if f.network != MainNetwork {
		if err := f.SwitchTestNetwork(ctx, f.network); err != nil {
			return err
		}
	}
	if err := f.clickAll(ctx, accountMenu, importAccount); err != nil {
		return err
	}
	if err := f.web.SendKeys(ctx, privateKeyInput, f.creds.PrivateKey); err != nil {
		return err
	}
	return f.web.Clickable(ctx, secondaryButton)
}

// SwitchTestNetwork selects "<name> Test Network" from the network menu.
func (f *Flow) SwitchTestNetwork(ctx context.Context, name string) error {
	if err := f.clickAll(ctx, networkDisplay, testNetworkOption(name)); err != nil {
		return fmt.Errorf("failed to switch to %s test network: %w", name, err)
	}
	f.logger.Info("Switched test network.", zap.String("network", name))
	return nil
}

// Sign clicks the primary button of the popup window pages times ("Next", then
// "Connect"). With contract set it then waits for the signature popup and signs it.
func (f *Flow) Sign(ctx context.Context, contract bool, pages int) error {
	before, err := f.web.WindowHandles(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot windows: %w", err)
	}

	for i := 0; i < pages; i++ {
		if err := f.web.SwitchToWindow(ctx, popupWindow); err != nil {
			return err
		}
		if err := f.web.Clickable(ctx, popupPrimary); err != nil {
			return err
		}
	}

	if !contract {
		return nil
	}
	if err := f.web.WaitWindowsChanged(ctx, before); err != nil {
		return fmt.Errorf("signature popup did not open: %w", err)
	}
	return f.Contract(ctx, false)
}

// Contract signs the signature request in the popup window. If the popup is still
// open afterwards it signs once more, then carries on and returns to the site window.
func (f *Flow) Contract(ctx context.Context, newContract bool) error {
	for attempt := 1; attempt <= maxContractAttempts; attempt++ {
		closed, err := f.signOnce(ctx, newContract && attempt == 1)
		if err != nil {
			return err
		}
		if closed {
			break
		}
		if attempt < maxContractAttempts {
			f.logger.Warn("Signature popup still open. Signing again.")
		} else {
			f.logger.Warn("Signature popup still open. Continuing.")
		}
	}
	return f.web.SwitchToWindow(ctx, siteWindow)
}

// signOnce signs the popup and reports whether it closed.
func (f *Flow) signOnce(ctx context.Context, scrollPanel bool) (bool, error) {
	if err := f.web.SwitchToWindow(ctx, popupWindow); err != nil {
		return false, err
	}
	// Firefox keeps the sign button disabled until the message panel itself is scrolled.
	if scrollPanel && f.web.Engine() == browser.EngineFirefox {
		if err := f.web.Clickable(ctx, signatureScroll); err != nil {
			return false, err
		}
	}
	if err := f.web.ScrollToBottom(ctx); err != nil {
		return false, err
	}
	if err := f.web.Clickable(ctx, signButton); err != nil {
		return false, err
	}

	err := f.web.WaitWindowCount(ctx, 2)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, browser.ErrWindowTimeout):
		return false, nil
	default:
		return false, err
	}
}

// Close dismisses a leftover MetaMask popup, if any. Failures are logged and ignored.
func (f *Flow) Close(ctx context.Context) {
	n, err := f.web.WindowCount(ctx)
	if err != nil || n <= 2 {
		return
	}
	if err := f.closePopup(ctx); err != nil {
		f.logger.Debug("Closing MetaMask popup failed.", zap.Error(err))
	}
}

func (f *Flow) closePopup(ctx context.Context) error {
	if err := f.web.SwitchToWindow(ctx, popupWindow); err != nil {
		return err
	}
	if err := f.web.CloseWindow(ctx); err != nil {
		return err
	}
	return f.web.SwitchToWindow(ctx, siteWindow)
}

func (f *Flow) clickAll(ctx context.Context, locators ...string) error {
	for _, l := range locators {
		if err := f.web.Clickable(ctx, l); err != nil {
			return err
		}
	}
	return nil
}
