// internal/wallet/metamask/flow_test.go
package metamask

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/walletpilot/internal/browser"
	"github.com/xkilldash9x/walletpilot/internal/browser/browsertest"
	"github.com/xkilldash9x/walletpilot/internal/wallet"
)

const (
	testPhrase   = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testPassword = "correct horse battery"
	testKey      = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
)

// MockPrompter is a testify mock for Prompter.
type MockPrompter struct {
	mock.Mock
}

func (m *MockPrompter) WaitForManualImport(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func newWeb(t *testing.T, fake *browsertest.Backend) *browser.Driver {
	t.Helper()
	return browser.New(fake, zaptest.NewLogger(t),
		browser.WithWaitTimeout(20*time.Millisecond),
		browser.WithWindowTimeout(60*time.Millisecond),
		browser.WithPollInterval(2*time.Millisecond),
	)
}

// onboarding shows every element of the import pages.
func onboarding(fake *browsertest.Backend) {
	fake.Show(welcomeButton, primaryButton, agreeButton, phraseInput, passwordInput,
		confirmInput, termsCheckbox, completionEmoji)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("imports the wallet from its recovery phrase", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site")
		onboarding(fake)
		creds := wallet.NewCredentials(testPhrase, testPassword, "")
		flow := New(newWeb(t, fake), creds, zaptest.NewLogger(t))

		require.NoError(t, flow.Login(ctx))
		assert.True(t, creds.Success)
		assert.Equal(t, []string{testPhrase}, fake.Typed(phraseInput))
		assert.Equal(t, []string{testPassword}, fake.Typed(passwordInput))
		assert.Equal(t, []string{testPassword}, fake.Typed(confirmInput))
		assert.Equal(t, 1, fake.Count("Click", termsCheckbox))
		assert.Len(t, fake.CallsTo("Reload"), 1)
		assert.Empty(t, fake.CallsTo("Quit"))

		for _, c := range fake.CallsTo("Click") {
			assert.Equal(t, "extension", c.Window, "every click targets the extension tab")
		}
	})

	t.Run("retries once after a failed attempt", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site")
		onboarding(fake)
		fake.Remove(completionEmoji)
		agreed := 0
		fake.OnClick(agreeButton, func(b *browsertest.Backend) {
			agreed++
			if agreed == 2 {
				b.Show(completionEmoji)
			}
		})
		creds := wallet.NewCredentials(testPhrase, testPassword, "")
		flow := New(newWeb(t, fake), creds, zaptest.NewLogger(t))

		require.NoError(t, flow.Login(ctx))
		assert.True(t, creds.Success)
		assert.Equal(t, 2, fake.Count("Click", welcomeButton))
	})

	t.Run("quits after the second failure", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site")
		onboarding(fake)
		fake.Remove(completionEmoji)
		creds := wallet.NewCredentials(testPhrase, testPassword, "")
		creds.Success = true
		flow := New(newWeb(t, fake), creds, zaptest.NewLogger(t))

		err := flow.Login(ctx)
		assert.ErrorIs(t, err, ErrLoginFailed)
		assert.False(t, creds.Success)
		assert.Len(t, fake.CallsTo("Quit"), 1)
		assert.Equal(t, 2, fake.Count("Click", welcomeButton), "never a third attempt")
	})

	t.Run("stops retrying when the context is cancelled", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site")
		onboarding(fake)
		cancelled, cancel := context.WithCancel(ctx)
		fake.OnClick(welcomeButton, func(*browsertest.Backend) { cancel() })
		fake.Remove(completionEmoji)
		creds := wallet.NewCredentials(testPhrase, testPassword, "")
		flow := New(newWeb(t, fake), creds, zaptest.NewLogger(t))

		err := flow.Login(cancelled)
		assert.ErrorIs(t, err, ErrLoginFailed)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, fake.Count("Click", welcomeButton))
		assert.Len(t, fake.CallsTo("Quit"), 1)
	})

	t.Run("hands over to the user in manual mode", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site")
		onboarding(fake)
		prompter := new(MockPrompter)
		prompter.On("WaitForManualImport", mock.Anything).Return(nil).Once()
		creds := wallet.NewCredentials("", "", "")
		flow := New(newWeb(t, fake), creds, zaptest.NewLogger(t), WithPrompter(prompter))

		require.NoError(t, flow.Login(ctx))
		prompter.AssertExpectations(t)
		assert.True(t, creds.Success)
		assert.Empty(t, fake.Typed(phraseInput))
		assert.Zero(t, fake.Count("Click", termsCheckbox))
	})

	t.Run("imports a private key on a test network", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site")
		onboarding(fake)
		goerli := testNetworkOption("Goerli")
		fake.Show(popoverClose, networkDisplay, goerli, accountMenu, importAccount, privateKeyInput, secondaryButton)
		creds := wallet.NewCredentials(testPhrase, testPassword, testKey)
		flow := New(newWeb(t, fake), creds, zaptest.NewLogger(t), WithNetwork("Goerli"))

		require.NoError(t, flow.Login(ctx))
		assert.Equal(t, []string{testKey}, fake.Typed(privateKeyInput))
		assert.Equal(t, 1, fake.Count("Click", goerli))
		assert.Equal(t, 1, fake.Count("Click", secondaryButton))
	})

	t.Run("stays on the main network by default", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site")
		onboarding(fake)
		fake.Show(popoverClose, accountMenu, importAccount, privateKeyInput, secondaryButton)
		creds := wallet.NewCredentials(testPhrase, testPassword, testKey)
		flow := New(newWeb(t, fake), creds, zaptest.NewLogger(t))

		require.NoError(t, flow.Login(ctx))
		assert.Zero(t, fake.Count("WaitClickable", networkDisplay))
	})
}

func TestSign(t *testing.T) {
	ctx := context.Background()

	t.Run("clicks through each popup page", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site", "popup")
		fake.Show(popupPrimary)
		flow := New(newWeb(t, fake), wallet.NewCredentials("", "", ""), zaptest.NewLogger(t))

		require.NoError(t, flow.Sign(ctx, false, 2))
		clicks := fake.CallsTo("Click")
		require.Len(t, clicks, 2)
		for _, c := range clicks {
			assert.Equal(t, "popup", c.Window)
		}
	})

	t.Run("signs the contract once the popup is replaced", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site", "popup")
		fake.Show(popupPrimary, signButton)
		fake.OnClick(popupPrimary, func(b *browsertest.Backend) { b.SetWindows("extension", "site", "signature") })
		fake.OnClick(signButton, func(b *browsertest.Backend) { b.SetWindows("extension", "site") })
		flow := New(newWeb(t, fake), wallet.NewCredentials("", "", ""), zaptest.NewLogger(t))

		require.NoError(t, flow.Sign(ctx, true, 1))
		assert.Equal(t, 1, fake.Count("Click", signButton))
		assert.Equal(t, "site", fake.Current())
	})

	t.Run("fails when no signature popup appears", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site", "popup")
		fake.Show(popupPrimary)
		flow := New(newWeb(t, fake), wallet.NewCredentials("", "", ""), zaptest.NewLogger(t))

		err := flow.Sign(ctx, true, 1)
		assert.ErrorIs(t, err, browser.ErrWindowTimeout)
	})
}

func TestContract(t *testing.T) {
	ctx := context.Background()

	t.Run("retries once when the popup stays open", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site", "popup")
		fake.Show(signButton)
		signed := 0
		fake.OnClick(signButton, func(b *browsertest.Backend) {
			signed++
			if signed == 2 {
				b.SetWindows("extension", "site")
			}
		})
		flow := New(newWeb(t, fake), wallet.NewCredentials("", "", ""), zaptest.NewLogger(t))

		require.NoError(t, flow.Contract(ctx, false))
		assert.Equal(t, 2, signed)
		assert.Equal(t, "site", fake.Current())
	})

	t.Run("proceeds after the retry regardless", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site", "popup")
		fake.Show(signButton)
		flow := New(newWeb(t, fake), wallet.NewCredentials("", "", ""), zaptest.NewLogger(t))

		require.NoError(t, flow.Contract(ctx, false))
		assert.Equal(t, 2, fake.Count("Click", signButton), "exactly one retry")
		assert.Equal(t, "site", fake.Current())
		assert.Len(t, fake.CallsTo("Evaluate"), 2, "scrolls before every signature")
	})

	t.Run("firefox scrolls the message panel on a new contract", func(t *testing.T) {
		// Firefox lists the site tab before the extension tab.
		fake := browsertest.New(browser.EngineFirefox, "site", "extension", "popup")
		fake.Show(signButton, signatureScroll)
		flow := New(newWeb(t, fake), wallet.NewCredentials("", "", ""), zaptest.NewLogger(t))

		require.NoError(t, flow.Contract(ctx, true))
		assert.Equal(t, 1, fake.Count("Click", signatureScroll), "only on the first attempt")
		assert.Equal(t, "site", fake.Current())
	})

	t.Run("chrome never scrolls the message panel", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site", "popup")
		fake.Show(signButton, signatureScroll)
		fake.OnClick(signButton, func(b *browsertest.Backend) { b.SetWindows("extension", "site") })
		flow := New(newWeb(t, fake), wallet.NewCredentials("", "", ""), zaptest.NewLogger(t))

		require.NoError(t, flow.Contract(ctx, true))
		assert.Zero(t, fake.Count("Click", signatureScroll))
	})

	t.Run("missing popup is an error", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site")
		flow := New(newWeb(t, fake), wallet.NewCredentials("", "", ""), zaptest.NewLogger(t))
		assert.ErrorIs(t, flow.Contract(ctx, false), browser.ErrWindowTimeout)
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()

	t.Run("closes a leftover popup", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site", "popup")
		flow := New(newWeb(t, fake), wallet.NewCredentials("", "", ""), zaptest.NewLogger(t))

		flow.Close(ctx)
		closed := fake.CallsTo("CloseWindow")
		require.Len(t, closed, 1)
		assert.Equal(t, "popup", closed[0].Arg)
		assert.Equal(t, "site", fake.Current())
	})

	t.Run("does nothing with two windows", func(t *testing.T) {
		fake := browsertest.New(browser.EngineChrome, "extension", "site")
		flow := New(newWeb(t, fake), wallet.NewCredentials("", "", ""), zaptest.NewLogger(t))

		flow.Close(ctx)
		assert.Empty(t, fake.CallsTo("CloseWindow"))
	})
}

func TestSwitchTestNetwork(t *testing.T) {
	fake := browsertest.New(browser.EngineChrome, "extension")
	flow := New(newWeb(t, fake), wallet.NewCredentials("", "", ""), zaptest.NewLogger(t))

	err := flow.SwitchTestNetwork(context.Background(), "Sepolia")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sepolia test network")

	fake.Show(networkDisplay, testNetworkOption("Sepolia"))
	require.NoError(t, flow.SwitchTestNetwork(context.Background(), "Sepolia"))
	assert.Equal(t, `//span[contains(text(), "Sepolia Test Network")]`, testNetworkOption("Sepolia"))
}

func TestTerminalPrompter(t *testing.T) {
	t.Run("returns on enter", func(t *testing.T) {
		var out bytes.Buffer
		p := NewPrompter(strings.NewReader("\n"), &out)

		require.NoError(t, p.WaitForManualImport(context.Background()))
		assert.Contains(t, out.String(), "press Enter")
	})

	t.Run("keeps buffered input for the next prompt", func(t *testing.T) {
		r, w := io.Pipe()
		defer w.Close()
		go w.Write([]byte("\n\n"))
		p := NewPrompter(r, io.Discard)

		require.NoError(t, p.WaitForManualImport(context.Background()))

		// The second line arrived with the first read; nothing more will be written.
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, p.WaitForManualImport(ctx))
	})

	t.Run("honours cancellation", func(t *testing.T) {
		r, w := io.Pipe()
		defer w.Close()
		p := NewPrompter(r, io.Discard)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, p.WaitForManualImport(ctx), context.DeadlineExceeded)
	})
}
