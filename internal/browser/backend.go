// internal/browser/backend.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotPresent means the element never appeared in the DOM within the wait timeout.
	ErrNotPresent = errors.New("element not present")
	// ErrUnsupportedEngine is returned for any engine other than Chrome or Firefox.
	ErrUnsupportedEngine = errors.New("unsupported browser engine")
	// ErrWindowTimeout means the expected number of windows never opened.
	ErrWindowTimeout = errors.New("timed out waiting for window")
)

// Engine identifies the browser family behind a session.
type Engine int

const (
	EngineChrome Engine = iota
	EngineFirefox
)

func (e Engine) String() string {
	switch e {
	case EngineChrome:
		return "chrome"
	case EngineFirefox:
		return "firefox"
	default:
		return fmt.Sprintf("engine(%d)", int(e))
	}
}

// ParseEngine maps a configuration value to an Engine. Matching is case-insensitive.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chrome":
		return EngineChrome, nil
	case "firefox":
		return EngineFirefox, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedEngine, s)
}

// Key names accepted by Backend.Press.
const (
	KeyEnter = "Enter"
	KeyTab   = "Tab"
)

// Backend is the automation collaborator a Driver delegates to. Locators are XPath
// expressions. Every call targets the current window, and the context deadline bounds
// how long the backend may wait.
type Backend interface {
	Engine() Engine

	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error

	// WaitClickable blocks until the element is visible and enabled.
	WaitClickable(ctx context.Context, locator string) error
	WaitVisible(ctx context.Context, locator string) error
	// WaitPresent blocks until the element is attached to the DOM, visible or not.
	WaitPresent(ctx context.Context, locator string) error

	Click(ctx context.Context, locator string) error
	// ScriptClick dispatches a click from page script, bypassing visibility checks.
	ScriptClick(ctx context.Context, locator string) error
	SendKeys(ctx context.Context, locator, text string) error
	Press(ctx context.Context, locator, key string) error
	// SelectAll sends the platform select-all chord (Cmd+A on macOS, Ctrl+A elsewhere).
	SelectAll(ctx context.Context, locator string) error
	Evaluate(ctx context.Context, script string, res interface{}) error

	// WindowHandles lists open windows in the order they were opened.
	WindowHandles(ctx context.Context) ([]string, error)
	SwitchTo(ctx context.Context, handle string) error
	CloseWindow(ctx context.Context) error
	Quit(ctx context.Context) error
}

// firefoxWindows swaps the first two windows. Firefox lists the initial blank tab
// before the extension tab, the reverse of Chrome.
var firefoxWindows = map[int]int{0: 1, 1: 0, 2: 2}

// WindowIndex translates a logical window number into the handle index for engine.
// Chrome is the identity. Firefox swaps 0 and 1; indexes above 2 pass through.
func WindowIndex(engine Engine, logical int) (int, error) {
	switch engine {
	case EngineChrome:
		return logical, nil
	case EngineFirefox:
		if actual, ok := firefoxWindows[logical]; ok {
			return actual, nil
		}
		return logical, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedEngine, engine)
}
