// internal/browser/cdp/backend.go

// Package cdp runs the Chrome engine over the DevTools protocol with chromedp.
package cdp

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	cdpproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walletpilot/internal/browser"
)

// scriptClickTemplate clicks the first node matching an XPath from page script.
const scriptClickTemplate = `(function(xp) {
	const node = document.evaluate(xp, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (!node) { throw new Error("no node matches " + xp); }
	node.click();
})(%s)`

var keys = map[string]string{
	browser.KeyEnter: kb.Enter,
	browser.KeyTab:   kb.Tab,
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Backend drives one Chrome process. Windows are page targets, in the order they were first seen.
type Backend struct {
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu      sync.Mutex
	tabs    map[target.ID]*tab
	order   []target.ID
	current target.ID
	// initial is the blank tab Chrome opens on start.
	initial target.ID
}

var _ browser.Backend = (*Backend)(nil)

// Launch starts Chrome with opts and attaches to its first tab.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*Backend, error) {
	log := logger.Named("cdp")

	// The browser lives until Quit, not until the launching context ends.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), AllocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Debugf),
	)

	// The first Run allocates the browser and must use the session context itself;
	// a derived deadline would tear the process down with it.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	first := chromedp.FromContext(browserCtx).Target.TargetID
	b := &Backend{
		logger:        log,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		tabs:          map[target.ID]*tab{first: {ctx: browserCtx}},
		order:         []target.ID{first},
		current:       first,
		initial:       first,
	}
	log.Info("Chrome started.", zap.String("target", string(first)), zap.Bool("headless", opts.Headless))
	return b, nil
}

func (b *Backend) Engine() browser.Engine { return browser.EngineChrome }

// run executes actions against the current tab, bounded by ctx.
func (b *Backend) run(ctx context.Context, actions ...chromedp.Action) error {
	b.mu.Lock()
	t, ok := b.tabs[b.current]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("no current window")
	}

	runCtx, cancel := combineContext(t.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (b *Backend) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.Navigate(url))
}

func (b *Backend) Reload(ctx context.Context) error {
	return b.run(ctx, chromedp.Reload())
}

func (b *Backend) WaitClickable(ctx context.Context, locator string) error {
	return b.run(ctx,
		chromedp.WaitVisible(locator, chromedp.BySearch),
		chromedp.WaitEnabled(locator, chromedp.BySearch),
	)
}

func (b *Backend) WaitVisible(ctx context.Context, locator string) error {
	return b.run(ctx, chromedp.WaitVisible(locator, chromedp.BySearch))
}

func (b *Backend) WaitPresent(ctx context.Context, locator string) error {
	return b.run(ctx, chromedp.WaitReady(locator, chromedp.BySearch))
}

func (b *Backend) Click(ctx context.Context, locator string) error {
	return b.run(ctx, chromedp.Click(locator, chromedp.BySearch, chromedp.NodeVisible))
}

func (b *Backend) ScriptClick(ctx context.Context, locator string) error {
	script, err := scriptClick(locator)
	if err != nil {
		return err
	}
	return b.run(ctx, chromedp.Evaluate(script, nil))
}

func scriptClick(locator string) (string, error) {
	quoted, err := jsoniter.MarshalToString(locator)
	if err != nil {
		return "", fmt.Errorf("failed to quote locator: %w", err)
	}
	return fmt.Sprintf(scriptClickTemplate, quoted), nil
}

func (b *Backend) SendKeys(ctx context.Context, locator, text string) error {
	return b.run(ctx, chromedp.SendKeys(locator, text, chromedp.BySearch, chromedp.NodeReady))
}

func (b *Backend) Press(ctx context.Context, locator, key string) error {
	k, ok := keys[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	return b.run(ctx, chromedp.SendKeys(locator, k, chromedp.BySearch, chromedp.NodeReady))
}

func (b *Backend) SelectAll(ctx context.Context, locator string) error {
	return b.run(ctx,
		chromedp.Focus(locator, chromedp.BySearch, chromedp.NodeReady),
		chromedp.KeyEvent("a", chromedp.KeyModifiers(selectAllModifier(runtime.GOOS))),
	)
}

// selectAllModifier returns Cmd on macOS and Ctrl elsewhere.
func selectAllModifier(goos string) input.Modifier {
	if goos == "darwin" {
		return input.ModifierMeta
	}
	return input.ModifierCtrl
}

func (b *Backend) Evaluate(ctx context.Context, script string, res interface{}) error {
	return b.run(ctx, chromedp.Evaluate(script, res))
}

// WindowHandles lists page targets. Targets keep the position they had when first
// seen and closed targets drop out, except that the initial blank tab is listed
// after the wallet's onboarding tab.
func (b *Backend) WindowHandles(ctx context.Context) ([]string, error) {
	listCtx, cancel := combineContext(b.browserCtx, ctx)
	defer cancel()

	infos, err := chromedp.Targets(listCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.order = orderTargets(b.order, infos)
	ordered := windowOrder(b.order, b.initial)

	handles := make([]string, len(ordered))
	for i, id := range ordered {
		handles[i] = string(id)
	}
	return handles, nil
}

// orderTargets keeps known pages in place, drops closed ones and appends new pages.
func orderTargets(known []target.ID, infos []*target.Info) []target.ID {
	live := make(map[target.ID]bool, len(infos))
	var fresh []target.ID
	seen := make(map[target.ID]bool, len(known))
	for _, id := range known {
		seen[id] = true
	}
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		live[info.TargetID] = true
		if !seen[info.TargetID] {
			fresh = append(fresh, info.TargetID)
		}
	}

	ordered := make([]target.ID, 0, len(live))
	for _, id := range known {
		if live[id] {
			ordered = append(ordered, id)
		}
	}
	return append(ordered, fresh...)
}

// windowOrder moves the initial tab behind the first tab opened after it, so the
// extension tab is window 0 and the tab left for the site is window 1.
func windowOrder(order []target.ID, initial target.ID) []target.ID {
	out := append([]target.ID(nil), order...)
	if len(out) >= 2 && out[0] == initial {
		out[0], out[1] = out[1], out[0]
	}
	return out
}

func (b *Backend) SwitchTo(ctx context.Context, handle string) error {
	id := target.ID(handle)

	b.mu.Lock()
	t, ok := b.tabs[id]
	b.mu.Unlock()
	if !ok {
		tabCtx, cancel := chromedp.NewContext(b.browserCtx, chromedp.WithTargetID(id))
		// Attach on the tab context directly, as with the first browser Run.
		if err := chromedp.Run(tabCtx); err != nil {
			cancel()
			return fmt.Errorf("failed to attach to target %s: %w", handle, err)
		}
		t = &tab{ctx: tabCtx, cancel: cancel}
		b.mu.Lock()
		b.tabs[id] = t
		b.mu.Unlock()
	}

	runCtx, cancel := combineContext(t.ctx, ctx)
	defer cancel()
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		return target.ActivateTarget(id).Do(cdpproto.WithExecutor(ctx, c.Browser))
	}))
	if err != nil {
		return fmt.Errorf("failed to activate target %s: %w", handle, err)
	}

	b.mu.Lock()
	b.current = id
	b.mu.Unlock()
	return nil
}

func (b *Backend) CloseWindow(ctx context.Context) error {
	if err := b.run(ctx, page.Close()); err != nil {
		return fmt.Errorf("failed to close window: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.tabs[b.current]; ok && t.cancel != nil {
		t.cancel()
	}
	delete(b.tabs, b.current)
	b.current = ""
	return nil
}

// Quit closes the browser gracefully, then stops the process.
func (b *Backend) Quit(ctx context.Context) error {
	b.mu.Lock()
	for _, t := range b.tabs {
		if t.cancel != nil {
			t.cancel()
		}
	}
	b.tabs = map[target.ID]*tab{}
	b.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(b.browserCtx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	b.browserCancel()
	b.allocCancel()
	return err
}
