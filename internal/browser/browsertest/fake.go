// internal/browser/browsertest/fake.go

// Package browsertest provides an in-memory browser.Backend for exercising
// automation flows without launching a browser.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/walletpilot/internal/browser"
)

// pollEvery is how often waits re-check element and window state.
const pollEvery = time.Millisecond

// Element describes how a fake element reacts to waits and actions.
type Element struct {
	Present bool
	Visible bool
	Enabled bool
	// ClickErr fails native clicks. Script clicks still succeed.
	ClickErr error
	// SendErr fails typing and key presses.
	SendErr error
}

// Call records one backend invocation and the window it targeted.
type Call struct {
	Method  string
	Window  string
	Locator string
	Arg     string
}

// Backend is a scriptable browser.Backend. The zero value is not usable; call New.
type Backend struct {
	mu       sync.Mutex
	engine   browser.Engine
	elements map[string]*Element
	hooks    map[string]func(*Backend)
	windows  []string
	current  string
	calls    []Call
	showAll  bool

	NavigateErr error
	ReloadErr   error
	EvaluateErr error
	QuitErr     error
	// EvalResult is copied into the res argument of Evaluate when res is a *string.
	EvalResult string
}

var _ browser.Backend = (*Backend)(nil)

// New returns a fake running engine with the given windows open. The first window is current.
func New(engine browser.Engine, windows ...string) *Backend {
	b := &Backend{
		engine:   engine,
		elements: make(map[string]*Element),
		hooks:    make(map[string]func(*Backend)),
		windows:  append([]string(nil), windows...),
	}
	if len(windows) > 0 {
		b.current = windows[0]
	}
	return b
}

// Set replaces the state of the element at locator.
func (b *Backend) Set(locator string, el Element) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.elements[locator] = &el
}

// Show makes each locator present, visible and enabled.
func (b *Backend) Show(locators ...string) {
	for _, l := range locators {
		b.Set(l, Element{Present: true, Visible: true, Enabled: true})
	}
}

// ShowAll makes every locator without explicit state present, visible and enabled.
func (b *Backend) ShowAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.showAll = true
}

// Hide keeps each locator in the DOM but not displayed.
func (b *Backend) Hide(locators ...string) {
	for _, l := range locators {
		b.Set(l, Element{Present: true})
	}
}

// Remove detaches each locator from the DOM.
func (b *Backend) Remove(locators ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range locators {
		delete(b.elements, l)
	}
}

// OnClick registers fn to run after any successful click on locator.
func (b *Backend) OnClick(locator string, fn func(*Backend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks[locator] = fn
}

// OpenWindow appends a window handle, as a popup would.
func (b *Backend) OpenWindow(handle string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windows = append(b.windows, handle)
}

// SetWindows replaces the open window list.
func (b *Backend) SetWindows(handles ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windows = append([]string(nil), handles...)
}

// Current returns the handle of the current window.
func (b *Backend) Current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Calls returns every recorded call in order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallsTo returns the recorded calls of one method.
func (b *Backend) CallsTo(method string) []Call {
	var out []Call
	for _, c := range b.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many times method was called on locator.
func (b *Backend) Count(method, locator string) int {
	n := 0
	for _, c := range b.CallsTo(method) {
		if c.Locator == locator {
			n++
		}
	}
	return n
}

// Typed returns the text typed into locator, one entry per SendKeys call.
func (b *Backend) Typed(locator string) []string {
	var out []string
	for _, c := range b.CallsTo("SendKeys") {
		if c.Locator == locator {
			out = append(out, c.Arg)
		}
	}
	return out
}

// lookup returns the state of locator. The caller holds b.mu.
func (b *Backend) lookup(locator string) (*Element, bool) {
	if el, ok := b.elements[locator]; ok {
		return el, true
	}
	if b.showAll {
		return &Element{Present: true, Visible: true, Enabled: true}, true
	}
	return nil, false
}

func (b *Backend) record(method, locator, arg string) {
	b.calls = append(b.calls, Call{Method: method, Window: b.current, Locator: locator, Arg: arg})
}

// waitFor polls cond until it holds or ctx is done.
func (b *Backend) waitFor(ctx context.Context, method, locator string, cond func(*Element) bool) error {
	b.mu.Lock()
	b.record(method, locator, "")
	b.mu.Unlock()

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	for {
		b.mu.Lock()
		el, ok := b.lookup(locator)
		met := ok && cond(el)
		b.mu.Unlock()
		if met {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", locator, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (b *Backend) Engine() browser.Engine { return b.engine }

func (b *Backend) Navigate(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Navigate", "", url)
	return b.NavigateErr
}

func (b *Backend) Reload(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Reload", "", "")
	return b.ReloadErr
}

func (b *Backend) WaitClickable(ctx context.Context, locator string) error {
	return b.waitFor(ctx, "WaitClickable", locator, func(el *Element) bool {
		return el.Present && el.Visible && el.Enabled
	})
}

func (b *Backend) WaitVisible(ctx context.Context, locator string) error {
	return b.waitFor(ctx, "WaitVisible", locator, func(el *Element) bool {
		return el.Present && el.Visible
	})
}

func (b *Backend) WaitPresent(ctx context.Context, locator string) error {
	return b.waitFor(ctx, "WaitPresent", locator, func(el *Element) bool {
		return el.Present
	})
}

func (b *Backend) click(method, locator string, native bool) error {
	b.mu.Lock()
	b.record(method, locator, "")
	el, ok := b.lookup(locator)
	if !ok || !el.Present {
		b.mu.Unlock()
		return fmt.Errorf("no element matches %s", locator)
	}
	if native && el.ClickErr != nil {
		b.mu.Unlock()
		return el.ClickErr
	}
	hook := b.hooks[locator]
	b.mu.Unlock()

	if hook != nil {
		hook(b)
	}
	return nil
}

func (b *Backend) Click(_ context.Context, locator string) error {
	return b.click("Click", locator, true)
}

func (b *Backend) ScriptClick(_ context.Context, locator string) error {
	return b.click("ScriptClick", locator, false)
}

func (b *Backend) input(method, locator, arg string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(method, locator, arg)
	el, ok := b.lookup(locator)
	if !ok || !el.Present {
		return fmt.Errorf("no element matches %s", locator)
	}
	return el.SendErr
}

func (b *Backend) SendKeys(_ context.Context, locator, text string) error {
	return b.input("SendKeys", locator, text)
}

func (b *Backend) Press(_ context.Context, locator, key string) error {
	return b.input("Press", locator, key)
}

func (b *Backend) SelectAll(_ context.Context, locator string) error {
	return b.input("SelectAll", locator, "")
}

func (b *Backend) Evaluate(_ context.Context, script string, res interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Evaluate", "", script)
	if b.EvaluateErr != nil {
		return b.EvaluateErr
	}
	if s, ok := res.(*string); ok {
		*s = b.EvalResult
	}
	return nil
}

func (b *Backend) WindowHandles(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.windows...), nil
}

func (b *Backend) SwitchTo(_ context.Context, handle string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range b.windows {
		if h == handle {
			b.current = handle
			b.record("SwitchTo", "", handle)
			return nil
		}
	}
	return fmt.Errorf("no window with handle %s", handle)
}

func (b *Backend) CloseWindow(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("CloseWindow", "", b.current)
	for i, h := range b.windows {
		if h == b.current {
			b.windows = append(b.windows[:i], b.windows[i+1:]...)
			b.current = ""
			return nil
		}
	}
	return fmt.Errorf("no current window")
}

func (b *Backend) Quit(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Quit", "", "")
	return b.QuitErr
}
