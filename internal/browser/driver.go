// internal/browser/driver.go
package browser

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	DefaultWaitTimeout   = 5 * time.Second
	DefaultWindowTimeout = 10 * time.Second
	DefaultPollInterval  = 250 * time.Millisecond
)

const scrollToBottomScript = `window.scrollTo(0, document.body.scrollHeight);`

// Driver wraps a Backend with bounded waits and the click fallback. It owns the
// backend for its whole lifetime and is not safe for concurrent use.
type Driver struct {
	backend Backend
	logger  *zap.Logger
	id      string

	waitTimeout   time.Duration
	windowTimeout time.Duration
	pollInterval  time.Duration
	now           func() time.Time

	quitOnce sync.Once
}

// Option configures a Driver.
type Option func(*Driver)

// WithWaitTimeout bounds every element wait.
func WithWaitTimeout(d time.Duration) Option {
	return func(drv *Driver) {
		if d > 0 {
			drv.waitTimeout = d
		}
	}
}

// WithWindowTimeout bounds waits on the number of open windows.
func WithWindowTimeout(d time.Duration) Option {
	return func(drv *Driver) {
		if d > 0 {
			drv.windowTimeout = d
		}
	}
}

// WithPollInterval sets how often window waits re-check the handle list.
func WithPollInterval(d time.Duration) Option {
	return func(drv *Driver) {
		if d > 0 {
			drv.pollInterval = d
		}
	}
}

// WithClock replaces time.Now, which SendDate consults for the current year.
func WithClock(now func() time.Time) Option {
	return func(drv *Driver) {
		if now != nil {
			drv.now = now
		}
	}
}

// New creates a Driver over backend.
func New(backend Backend, logger *zap.Logger, opts ...Option) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	d := &Driver{
		backend:       backend,
		id:            id,
		logger:        logger.Named("browser").With(zap.String("session_id", id), zap.Stringer("engine", backend.Engine())),
		waitTimeout:   DefaultWaitTimeout,
		windowTimeout: DefaultWindowTimeout,
		pollInterval:  DefaultPollInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ID returns the session id attached to every log line of this driver.
func (d *Driver) ID() string { return d.id }

// Engine reports which browser family the session runs.
func (d *Driver) Engine() Engine { return d.backend.Engine() }

// within runs fn under the wait timeout.
func (d *Driver) within(ctx context.Context, fn func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, d.waitTimeout)
	defer cancel()
	return fn(opCtx)
}

// Clickable waits for the element to become clickable and clicks it. If that fails
// it falls back to one script click once the element is present in the DOM, which
// covers buttons that are never reported as interactable.
func (d *Driver) Clickable(ctx context.Context, locator string) error {
	err := d.within(ctx, func(ctx context.Context) error {
		if err := d.backend.WaitClickable(ctx, locator); err != nil {
			return err
		}
		return d.backend.Click(ctx, locator)
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	d.logger.Debug("Standard click failed, falling back to script click.", zap.String("locator", locator), zap.Error(err))
	return d.within(ctx, func(ctx context.Context) error {
		if err := d.backend.WaitPresent(ctx, locator); err != nil {
			return fmt.Errorf("%w: %s", ErrNotPresent, locator)
		}
		if err := d.backend.ScriptClick(ctx, locator); err != nil {
			return fmt.Errorf("script click on %s failed: %w", locator, err)
		}
		return nil
	})
}

// Visible waits for the element to be displayed and returns a handle to it.
func (d *Driver) Visible(ctx context.Context, locator string) (*Element, error) {
	err := d.within(ctx, func(ctx context.Context) error {
		return d.backend.WaitVisible(ctx, locator)
	})
	if err != nil {
		return nil, fmt.Errorf("element %s not visible: %w", locator, err)
	}
	return &Element{driver: d, locator: locator}, nil
}

// SendKeys types text into the element. Hidden inputs that are present in the DOM
// are typed into as well.
func (d *Driver) SendKeys(ctx context.Context, locator, text string) error {
	return d.input(ctx, locator, func(ctx context.Context, el *Element) error {
		return el.SendKeys(ctx, text)
	})
}

// Press sends a named key (KeyEnter, KeyTab) to the element, falling back to a
// present but hidden element the same way SendKeys does.
func (d *Driver) Press(ctx context.Context, locator, key string) error {
	return d.input(ctx, locator, func(ctx context.Context, el *Element) error {
		return el.Press(ctx, key)
	})
}

// input runs fn on the visible element, or on the present element when it is not displayed.
func (d *Driver) input(ctx context.Context, locator string, fn func(context.Context, *Element) error) error {
	el, err := d.Visible(ctx, locator)
	if err == nil {
		if err = fn(ctx, el); err == nil {
			return nil
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	d.logger.Debug("Element not visible, using present element.", zap.String("locator", locator), zap.Error(err))
	if err := d.within(ctx, func(ctx context.Context) error {
		if err := d.backend.WaitPresent(ctx, locator); err != nil {
			return fmt.Errorf("%w: %s", ErrNotPresent, locator)
		}
		return nil
	}); err != nil {
		return err
	}
	return fn(ctx, &Element{driver: d, locator: locator})
}

// SendKeysIfSet types data only when it differs from def. It reports whether the
// input was skipped.
func (d *Driver) SendKeysIfSet(ctx context.Context, locator, data, def string) (bool, error) {
	if data == def {
		return true, nil
	}
	return false, d.SendKeys(ctx, locator, data)
}

// ClearText focuses the element and selects its whole content so the next keystrokes replace it.
func (d *Driver) ClearText(ctx context.Context, locator string) error {
	if err := d.Clickable(ctx, locator); err != nil {
		return err
	}
	return d.within(ctx, func(ctx context.Context) error {
		return d.backend.SelectAll(ctx, locator)
	})
}

// SendDate enters a DD-MM-YYYY date. Firefox date inputs accept the ISO order in
// one go. Chrome inputs take month, day and year segment by segment, and the year
// segment is left alone when it already holds the current year.
func (d *Driver) SendDate(ctx context.Context, locator, date string) error {
	parts := splitDate(date)

	if d.backend.Engine() == EngineFirefox {
		reversed := make([]string, len(parts))
		for i, p := range parts {
			reversed[len(parts)-1-i] = p
		}
		return d.SendKeys(ctx, locator, joinDate(reversed))
	}

	segments := chromeDateSegments(parts, d.now().Year())
	for _, segment := range segments {
		if err := d.Clickable(ctx, locator); err != nil {
			return err
		}
		if err := d.SendKeys(ctx, locator, segment); err != nil {
			return err
		}
	}
	return nil
}

// SwitchToWindow waits until the logical window exists and makes it current.
func (d *Driver) SwitchToWindow(ctx context.Context, logical int) error {
	actual, err := WindowIndex(d.backend.Engine(), logical)
	if err != nil {
		return err
	}

	var handles []string
	err = d.pollWindows(ctx, func(current []string) bool {
		handles = current
		return len(current) > actual
	})
	if err != nil {
		return fmt.Errorf("window %d (handle index %d): %w", logical, actual, err)
	}

	if err := d.backend.SwitchTo(ctx, handles[actual]); err != nil {
		return fmt.Errorf("failed to switch to window %d: %w", logical, err)
	}
	d.logger.Debug("Switched window.", zap.Int("logical", logical), zap.Int("index", actual))
	return nil
}

// WindowCount returns the number of open windows.
func (d *Driver) WindowCount(ctx context.Context) (int, error) {
	handles, err := d.backend.WindowHandles(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list windows: %w", err)
	}
	return len(handles), nil
}

// WaitWindowCount waits until exactly n windows are open.
func (d *Driver) WaitWindowCount(ctx context.Context, n int) error {
	err := d.pollWindows(ctx, func(current []string) bool {
		return len(current) == n
	})
	if err != nil {
		return fmt.Errorf("expected %d windows: %w", n, err)
	}
	return nil
}

// WaitWindowsChanged waits until the set of handles differs from previous.
func (d *Driver) WaitWindowsChanged(ctx context.Context, previous []string) error {
	err := d.pollWindows(ctx, func(current []string) bool {
		return !slices.Equal(previous, current)
	})
	if err != nil {
		return fmt.Errorf("window set did not change: %w", err)
	}
	return nil
}

// WindowHandles returns the current handle list, mostly for WaitWindowsChanged snapshots.
func (d *Driver) WindowHandles(ctx context.Context) ([]string, error) {
	return d.backend.WindowHandles(ctx)
}

// pollWindows re-reads the handle list until done reports true or the window timeout expires.
// Listing errors are treated as transient.
func (d *Driver) pollWindows(ctx context.Context, done func([]string) bool) error {
	err := wait.PollUntilContextTimeout(ctx, d.pollInterval, d.windowTimeout, true, func(ctx context.Context) (bool, error) {
		handles, err := d.backend.WindowHandles(ctx)
		if err != nil {
			d.logger.Debug("Listing windows failed, retrying.", zap.Error(err))
			return false, nil
		}
		return done(handles), nil
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w after %s", ErrWindowTimeout, d.windowTimeout)
}

// CloseWindow closes the current window. The caller must switch to another window afterwards.
func (d *Driver) CloseWindow(ctx context.Context) error {
	return d.backend.CloseWindow(ctx)
}

// Navigate loads url in the current window.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.backend.Navigate(ctx, url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Refresh reloads the current window.
func (d *Driver) Refresh(ctx context.Context) error {
	if err := d.backend.Reload(ctx); err != nil {
		return fmt.Errorf("failed to reload page: %w", err)
	}
	return nil
}

// Execute evaluates script in the current window and decodes its result into res, if non-nil.
func (d *Driver) Execute(ctx context.Context, script string, res interface{}) error {
	return d.within(ctx, func(ctx context.Context) error {
		return d.backend.Evaluate(ctx, script, res)
	})
}

// ScrollToBottom scrolls the current window to the end of the document.
func (d *Driver) ScrollToBottom(ctx context.Context) error {
	return d.Execute(ctx, scrollToBottomScript, nil)
}

// Quit shuts the browser down. It is safe to call more than once; failures are logged only.
func (d *Driver) Quit(ctx context.Context) {
	d.quitOnce.Do(func() {
		if err := d.backend.Quit(ctx); err != nil {
			d.logger.Debug("Browser quit returned an error.", zap.Error(err))
			return
		}
		d.logger.Debug("Browser session closed.")
	})
}
