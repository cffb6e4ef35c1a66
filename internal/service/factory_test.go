// File: internal/service/factory_test.go
package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/walletpilot/internal/browser"
	"github.com/xkilldash9x/walletpilot/internal/browser/browsertest"
	"github.com/xkilldash9x/walletpilot/internal/browser/cdp"
	"github.com/xkilldash9x/walletpilot/internal/browser/gecko"
	"github.com/xkilldash9x/walletpilot/internal/config"
	"github.com/xkilldash9x/walletpilot/internal/wallet"
)

const (
	testPhrase   = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testPassword = "correct horse battery"
)

// newTestConfig returns a valid configuration whose assets directory holds
// both MetaMask artifacts.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	assets := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(assets, "MetaMask"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(assets, "MetaMask.xpi"), []byte("PK"), 0o644))

	cfg := config.NewDefaultConfig()
	cfg.BrowserCfg.AssetsDir = assets
	cfg.BrowserCfg.WaitTimeout = 20 * time.Millisecond
	cfg.BrowserCfg.WindowTimeout = 60 * time.Millisecond
	cfg.BrowserCfg.PollInterval = 2 * time.Millisecond
	cfg.BrowserCfg.Args = []string{"--window-size=1280,800"}
	return cfg
}

// stubLaunchers swaps the engine launchers for fakes and records their options.
func stubLaunchers(t *testing.T) (*cdp.Options, *gecko.Options) {
	t.Helper()
	var chromeOpts cdp.Options
	var firefoxOpts gecko.Options

	origChrome, origFirefox := launchChrome, launchFirefox
	t.Cleanup(func() { launchChrome, launchFirefox = origChrome, origFirefox })

	launchChrome = func(_ context.Context, opts cdp.Options, _ *zap.Logger) (browser.Backend, error) {
		chromeOpts = opts
		return browsertest.New(browser.EngineChrome, "extension", "site"), nil
	}
	launchFirefox = func(_ context.Context, opts gecko.Options, _ *zap.Logger) (browser.Backend, error) {
		firefoxOpts = opts
		return browsertest.New(browser.EngineFirefox, "site", "extension"), nil
	}
	return &chromeOpts, &firefoxOpts
}

func TestCreate_Chrome(t *testing.T) {
	chromeOpts, _ := stubLaunchers(t)
	cfg := newTestConfig(t)
	cfg.WalletCfg.RecoveryPhrase = testPhrase
	cfg.WalletCfg.Password = testPassword

	session, err := NewSessionFactory().Create(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, browser.EngineChrome, session.Driver.Engine())
	assert.NotNil(t, session.Wallet)
	assert.NotNil(t, session.Listings)
	assert.False(t, session.Credentials.Manual())

	assert.Equal(t, filepath.Join(cfg.BrowserCfg.AssetsDir, "MetaMask"), chromeOpts.ExtensionDir)
	assert.False(t, chromeOpts.Headless, "chrome stays headed unless configured otherwise")
	assert.Equal(t, []string{"--window-size=1280,800"}, chromeOpts.Args)
}

func TestCreate_Firefox(t *testing.T) {
	_, firefoxOpts := stubLaunchers(t)
	cfg := newTestConfig(t)
	cfg.SetBrowserEngine("firefox")
	cfg.WalletCfg.RecoveryPhrase = testPhrase
	cfg.WalletCfg.Password = testPassword

	session, err := NewSessionFactory().Create(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, browser.EngineFirefox, session.Driver.Engine())
	assert.Equal(t, filepath.Join(cfg.BrowserCfg.AssetsDir, "MetaMask.xpi"), firefoxOpts.ExtensionPath)
	assert.Equal(t, "webextension@metamask.io", firefoxOpts.AddonID)
	assert.True(t, firefoxOpts.Headless, "an automated import runs firefox headless")
}

func TestCreate_Errors(t *testing.T) {
	stubLaunchers(t)
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	t.Run("unknown engine", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.SetBrowserEngine("safari")
		_, err := NewSessionFactory().Create(ctx, cfg, logger)
		assert.ErrorIs(t, err, browser.ErrUnsupportedEngine)
	})

	t.Run("coinbase wallet has no firefox build", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.SetBrowserEngine("firefox")
		cfg.WalletCfg.Kind = "coinbase_wallet"
		_, err := NewSessionFactory().Create(ctx, cfg, logger)
		assert.ErrorIs(t, err, wallet.ErrUnsupportedKind)
	})

	t.Run("extension not provisioned", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.WalletCfg.Kind = "coinbase_wallet"
		_, err := NewSessionFactory().Create(ctx, cfg, logger)
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid recovery phrase", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.WalletCfg.RecoveryPhrase = "not a real phrase"
		cfg.WalletCfg.Password = testPassword
		_, err := NewSessionFactory().Create(ctx, cfg, logger)
		assert.ErrorIs(t, err, wallet.ErrInvalidMnemonic)
	})

	t.Run("launch failure", func(t *testing.T) {
		launchChrome = func(context.Context, cdp.Options, *zap.Logger) (browser.Backend, error) {
			return nil, errors.New("chrome not found")
		}
		cfg := newTestConfig(t)
		_, err := NewSessionFactory().Create(ctx, cfg, logger)
		assert.ErrorContains(t, err, "failed to launch chrome: chrome not found")
	})
}

func TestIsHeadless(t *testing.T) {
	cfg := newTestConfig(t)
	automated := wallet.NewCredentials(testPhrase, testPassword, "")
	manual := wallet.NewCredentials("", "", "")

	assert.False(t, isHeadless(cfg, browser.EngineChrome, automated))
	assert.True(t, isHeadless(cfg, browser.EngineFirefox, automated))
	assert.False(t, isHeadless(cfg, browser.EngineFirefox, manual), "a manual import needs a visible window")

	cfg.SetBrowserHeadless(true)
	assert.True(t, isHeadless(cfg, browser.EngineChrome, manual))
}
