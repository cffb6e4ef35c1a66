// internal/browser/gecko/backend.go

// Package gecko runs the Firefox engine through playwright-go.
package gecko

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walletpilot/internal/browser"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var keys = map[string]string{
	browser.KeyEnter: "Enter",
	browser.KeyTab:   "Tab",
}

// Options describes how Firefox is launched.
type Options struct {
	ExecPath string
	// UserDataDir is the profile directory. Empty uses a temporary profile removed on Quit.
	UserDataDir string
	// ExtensionPath is a signed or unsigned .xpi installed into the profile. Empty installs none.
	ExtensionPath string
	AddonID       string
	Headless      bool
	Args          []string
}

type window struct {
	handle string
	page   playwright.Page
}

// Backend drives one persistent Firefox context. Windows are pages, in creation order.
type Backend struct {
	logger  *zap.Logger
	pw      *playwright.Playwright
	context playwright.BrowserContext

	tempProfile string

	mu      sync.Mutex
	windows []window
	current playwright.Page
}

var _ browser.Backend = (*Backend)(nil)

// Launch installs the wallet extension into the profile and starts Firefox.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*Backend, error) {
	log := logger.Named("gecko")
	b := &Backend{logger: log}

	// 1. Prepare the profile.
	profile := opts.UserDataDir
	if profile == "" {
		dir, err := os.MkdirTemp("", "walletpilot-firefox-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create firefox profile: %w", err)
		}
		profile = dir
		b.tempProfile = dir
	}
	if opts.ExtensionPath != "" {
		if err := installExtension(profile, opts.ExtensionPath, opts.AddonID); err != nil {
			b.removeProfile()
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		b.removeProfile()
		return nil, err
	}

	// 2. Start the driver. Browsers are provisioned outside this tool.
	pw, err := playwright.Run(&playwright.RunOptions{
		Browsers:            []string{"firefox"},
		SkipInstallBrowsers: true,
	})
	if err != nil {
		b.removeProfile()
		return nil, fmt.Errorf("failed to start playwright (is the driver installed?): %w", err)
	}
	b.pw = pw

	// 3. Launch the persistent context.
	bc, err := pw.Firefox.LaunchPersistentContext(profile, launchOptions(opts))
	if err != nil {
		_ = pw.Stop()
		b.removeProfile()
		return nil, fmt.Errorf("failed to launch firefox: %w", err)
	}
	b.context = bc

	for _, p := range bc.Pages() {
		b.track(p)
	}
	if len(b.windows) == 0 {
		p, err := bc.NewPage()
		if err != nil {
			_ = b.Quit(ctx)
			return nil, fmt.Errorf("failed to open first window: %w", err)
		}
		b.track(p)
	}
	b.current = b.windows[0].page

	log.Info("Firefox started.", zap.String("profile", profile), zap.Bool("headless", opts.Headless))
	return b, nil
}

func launchOptions(opts Options) playwright.BrowserTypeLaunchPersistentContextOptions {
	lo := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:         playwright.Bool(opts.Headless),
		Locale:           playwright.String("en-US"),
		FirefoxUserPrefs: userPrefs(),
		Args:             opts.Args,
	}
	if opts.ExecPath != "" {
		lo.ExecutablePath = playwright.String(opts.ExecPath)
	}
	return lo
}

// userPrefs lets an unsigned wallet add-on load from the profile and mutes audio.
func userPrefs() map[string]interface{} {
	return map[string]interface{}{
		"xpinstall.signatures.required": false,
		"extensions.autoDisableScopes":  0,
		"extensions.enabledScopes":      15,
		"intl.accept_languages":         "en,en-US",
		"media.volume_scale":            "0.0",
	}
}

func (b *Backend) removeProfile() {
	if b.tempProfile == "" {
		return
	}
	if err := os.RemoveAll(b.tempProfile); err != nil {
		b.logger.Debug("Failed to remove temporary profile.", zap.String("dir", b.tempProfile), zap.Error(err))
	}
	b.tempProfile = ""
}

// track registers p under a new handle. Callers hold no lock.
func (b *Backend) track(p playwright.Page) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windows = append(b.windows, window{handle: uuid.New().String(), page: p})
}

func (b *Backend) Engine() browser.Engine { return browser.EngineFirefox }

func (b *Backend) page() (playwright.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || b.current.IsClosed() {
		return nil, fmt.Errorf("no current window")
	}
	return b.current, nil
}

func (b *Backend) locate(locator string) (playwright.Locator, error) {
	p, err := b.page()
	if err != nil {
		return nil, err
	}
	return p.Locator("xpath=" + locator).First(), nil
}

func (b *Backend) Navigate(ctx context.Context, url string) error {
	p, err := b.page()
	if err != nil {
		return err
	}
	_, err = p.Goto(url, playwright.PageGotoOptions{Timeout: timeoutMillis(ctx)})
	return err
}

func (b *Backend) Reload(ctx context.Context) error {
	p, err := b.page()
	if err != nil {
		return err
	}
	_, err = p.Reload(playwright.PageReloadOptions{Timeout: timeoutMillis(ctx)})
	return err
}

func (b *Backend) waitFor(ctx context.Context, locator string, state *playwright.WaitForSelectorState) error {
	l, err := b.locate(locator)
	if err != nil {
		return err
	}
	return l.WaitFor(playwright.LocatorWaitForOptions{State: state, Timeout: timeoutMillis(ctx)})
}

func (b *Backend) WaitClickable(ctx context.Context, locator string) error {
	if err := b.waitFor(ctx, locator, playwright.WaitForSelectorStateVisible); err != nil {
		return err
	}
	l, err := b.locate(locator)
	if err != nil {
		return err
	}
	enabled, err := l.IsEnabled(playwright.LocatorIsEnabledOptions{Timeout: timeoutMillis(ctx)})
	if err != nil {
		return err
	}
	if !enabled {
		return fmt.Errorf("element %s is disabled", locator)
	}
	return nil
}

func (b *Backend) WaitVisible(ctx context.Context, locator string) error {
	return b.waitFor(ctx, locator, playwright.WaitForSelectorStateVisible)
}

func (b *Backend) WaitPresent(ctx context.Context, locator string) error {
	return b.waitFor(ctx, locator, playwright.WaitForSelectorStateAttached)
}

func (b *Backend) Click(ctx context.Context, locator string) error {
	l, err := b.locate(locator)
	if err != nil {
		return err
	}
	return l.Click(playwright.LocatorClickOptions{Timeout: timeoutMillis(ctx)})
}

func (b *Backend) ScriptClick(ctx context.Context, locator string) error {
	l, err := b.locate(locator)
	if err != nil {
		return err
	}
	_, err = l.Evaluate("el => el.click()", nil, playwright.LocatorEvaluateOptions{Timeout: timeoutMillis(ctx)})
	return err
}

func (b *Backend) SendKeys(ctx context.Context, locator, text string) error {
	l, err := b.locate(locator)
	if err != nil {
		return err
	}
	return l.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{Timeout: timeoutMillis(ctx)})
}

func (b *Backend) Press(ctx context.Context, locator, key string) error {
	k, ok := keys[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	l, err := b.locate(locator)
	if err != nil {
		return err
	}
	return l.Press(k, playwright.LocatorPressOptions{Timeout: timeoutMillis(ctx)})
}

func (b *Backend) SelectAll(ctx context.Context, locator string) error {
	l, err := b.locate(locator)
	if err != nil {
		return err
	}
	return l.Press(selectAllChord(runtime.GOOS), playwright.LocatorPressOptions{Timeout: timeoutMillis(ctx)})
}

// selectAllChord returns Meta+a on macOS and Control+a elsewhere.
func selectAllChord(goos string) string {
	if goos == "darwin" {
		return "Meta+a"
	}
	return "Control+a"
}

// Evaluate runs script in the page and decodes the result into res through JSON.
func (b *Backend) Evaluate(ctx context.Context, script string, res interface{}) error {
	p, err := b.page()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	out, err := p.Evaluate(script)
	if err != nil {
		return err
	}
	return decodeResult(out, res)
}

func decodeResult(out, res interface{}) error {
	if res == nil {
		return nil
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode evaluation result: %w", err)
	}
	if err := json.Unmarshal(raw, res); err != nil {
		return fmt.Errorf("failed to decode evaluation result: %w", err)
	}
	return nil
}

// WindowHandles syncs the tracked windows with the context's pages and returns their handles.
func (b *Backend) WindowHandles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pages := b.context.Pages()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.windows = syncWindows(b.windows, pages, func() string { return uuid.New().String() })

	handles := make([]string, len(b.windows))
	for i, w := range b.windows {
		handles[i] = w.handle
	}
	return handles, nil
}

// syncWindows drops windows whose page is gone and appends pages seen for the first time.
func syncWindows(known []window, pages []playwright.Page, newHandle func() string) []window {
	live := make(map[playwright.Page]bool, len(pages))
	for _, p := range pages {
		if !p.IsClosed() {
			live[p] = true
		}
	}

	kept := make([]window, 0, len(live))
	seen := make(map[playwright.Page]bool, len(known))
	for _, w := range known {
		if live[w.page] {
			kept = append(kept, w)
			seen[w.page] = true
		}
	}
	for _, p := range pages {
		if live[p] && !seen[p] {
			kept = append(kept, window{handle: newHandle(), page: p})
			seen[p] = true
		}
	}
	return kept
}

func (b *Backend) SwitchTo(_ context.Context, handle string) error {
	b.mu.Lock()
	var target playwright.Page
	for _, w := range b.windows {
		if w.handle == handle {
			target = w.page
			break
		}
	}
	b.mu.Unlock()
	if target == nil {
		return fmt.Errorf("no window with handle %s", handle)
	}

	if err := target.BringToFront(); err != nil {
		return fmt.Errorf("failed to focus window: %w", err)
	}
	b.mu.Lock()
	b.current = target
	b.mu.Unlock()
	return nil
}

func (b *Backend) CloseWindow(context.Context) error {
	p, err := b.page()
	if err != nil {
		return err
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("failed to close window: %w", err)
	}
	b.mu.Lock()
	b.current = nil
	b.mu.Unlock()
	return nil
}

// Quit closes the context, stops the driver and removes a temporary profile.
func (b *Backend) Quit(context.Context) error {
	var firstErr error
	if b.context != nil {
		if err := b.context.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close firefox: %w", err)
		}
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to stop playwright: %w", err)
		}
	}
	b.removeProfile()
	return firstErr
}
