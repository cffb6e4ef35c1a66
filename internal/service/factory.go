// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/xkilldash9x/walletpilot/internal/browser"
	"github.com/xkilldash9x/walletpilot/internal/browser/cdp"
	"github.com/xkilldash9x/walletpilot/internal/browser/gecko"
	"github.com/xkilldash9x/walletpilot/internal/config"
	"github.com/xkilldash9x/walletpilot/internal/listing"
	"github.com/xkilldash9x/walletpilot/internal/wallet"
	"github.com/xkilldash9x/walletpilot/internal/wallet/metamask"
)

// SessionFactory creates a launched browser session with its wallet and listing helpers.
// Commands depend on this interface so tests can hand in a session over a fake backend.
type SessionFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Session, error)
}

// Launchers start a concrete engine. Tests replace them to avoid starting a browser.
var (
	launchChrome = func(ctx context.Context, opts cdp.Options, logger *zap.Logger) (browser.Backend, error) {
		return cdp.Launch(ctx, opts, logger)
	}
	launchFirefox = func(ctx context.Context, opts gecko.Options, logger *zap.Logger) (browser.Backend, error) {
		return gecko.Launch(ctx, opts, logger)
	}
)

// concreteFactory is the production implementation of SessionFactory.
type concreteFactory struct{}

// NewSessionFactory creates a new production-ready session factory.
func NewSessionFactory() SessionFactory {
	return &concreteFactory{}
}

// Create validates the wallet configuration, launches the configured engine with the
// wallet extension installed and wires the flows onto the resulting driver.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Session, error) {
	// 1. Resolve engine, wallet and credentials before anything is started.
	engine, err := browser.ParseEngine(cfg.Browser().Engine)
	if err != nil {
		return nil, fmt.Errorf("invalid browser configuration: %w", err)
	}
	kind, err := wallet.ParseKind(cfg.Wallet().Kind)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet configuration: %w", err)
	}
	creds, err := NewCredentials(cfg)
	if err != nil {
		return nil, err
	}

	extension, err := kind.ExtensionPath(cfg.Browser().AssetsDir, engine)
	if err != nil {
		return nil, fmt.Errorf("cannot load %s: %w", kind, err)
	}
	if _, err := os.Stat(extension); err != nil {
		return nil, fmt.Errorf("wallet extension not provisioned at %s: %w", extension, err)
	}

	// 2. Launch the engine.
	headless := isHeadless(cfg, engine, creds)
	logger.Info("Starting browser.",
		zap.Stringer("engine", engine),
		zap.Stringer("wallet", kind),
		zap.Bool("headless", headless),
		zap.String("extension", extension),
	)

	var backend browser.Backend
	switch engine {
	case browser.EngineChrome:
		backend, err = launchChrome(ctx, chromeOptions(cfg, extension, headless), logger)
	case browser.EngineFirefox:
		backend, err = launchFirefox(ctx, firefoxOptions(cfg, kind, extension, headless), logger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", engine, err)
	}

	// 3. Wire the driver and the flows on top of it.
	b := cfg.Browser()
	driver := browser.New(backend, logger,
		browser.WithWaitTimeout(b.WaitTimeout),
		browser.WithWindowTimeout(b.WindowTimeout),
		browser.WithPollInterval(b.PollInterval),
	)
	return &Session{
		Driver:      driver,
		Credentials: creds,
		Wallet:      metamask.New(driver, creds, logger, metamask.WithNetwork(cfg.Wallet().Network)),
		Listings:    listing.NewEditor(driver, logger),
		logger:      logger,
	}, nil
}

// NewCredentials reads and validates the wallet secrets.
func NewCredentials(cfg config.Interface) (*wallet.Credentials, error) {
	w := cfg.Wallet()
	creds := wallet.NewCredentials(w.RecoveryPhrase, w.Password, w.PrivateKey)
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wallet credentials: %w", err)
	}
	return creds, nil
}

// isHeadless applies the configured mode. Firefox additionally runs headless whenever
// the import is automated, since nobody has to see the window.
func isHeadless(cfg config.Interface, engine browser.Engine, creds *wallet.Credentials) bool {
	if cfg.Browser().Headless {
		return true
	}
	return engine == browser.EngineFirefox && !creds.Manual()
}

// chromeOptions translates the application config into Chrome launch options.
func chromeOptions(cfg config.Interface, extension string, headless bool) cdp.Options {
	b := cfg.Browser()
	return cdp.Options{
		ExecPath:     b.BinaryPath,
		UserDataDir:  b.UserDataDir,
		ExtensionDir: extension,
		Headless:     headless,
		Args:         b.Args,
	}
}

// firefoxOptions translates the application config into Firefox launch options.
func firefoxOptions(cfg config.Interface, kind wallet.Kind, extension string, headless bool) gecko.Options {
	b := cfg.Browser()
	return gecko.Options{
		ExecPath:      b.BinaryPath,
		UserDataDir:   b.UserDataDir,
		ExtensionPath: extension,
		AddonID:       kind.AddonID(),
		Headless:      headless,
		Args:          b.Args,
	}
}
