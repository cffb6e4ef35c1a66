// internal/browser/element.go
package browser

import "context"

// Element is a located element in the current window. It holds the locator rather
// than a live node reference, so each action re-resolves it.
type Element struct {
	driver  *Driver
	locator string
}

// Locator returns the XPath the element was found by.
func (e *Element) Locator() string { return e.locator }

// Click clicks the element.
func (e *Element) Click(ctx context.Context) error {
	return e.driver.within(ctx, func(ctx context.Context) error {
		return e.driver.backend.Click(ctx, e.locator)
	})
}

// ScriptClick clicks the element from page script.
func (e *Element) ScriptClick(ctx context.Context) error {
	return e.driver.within(ctx, func(ctx context.Context) error {
		return e.driver.backend.ScriptClick(ctx, e.locator)
	})
}

// SendKeys types text into the element.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	return e.driver.within(ctx, func(ctx context.Context) error {
		return e.driver.backend.SendKeys(ctx, e.locator, text)
	})
}

// Press sends a single named key, such as KeyEnter, to the element.
func (e *Element) Press(ctx context.Context, key string) error {
	return e.driver.within(ctx, func(ctx context.Context) error {
		return e.driver.backend.Press(ctx, e.locator, key)
	})
}
