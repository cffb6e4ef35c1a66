// internal/browser/gecko/backend_test.go
package gecko

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage satisfies playwright.Page for window bookkeeping; only IsClosed is used.
type fakePage struct {
	playwright.Page
	closed bool
}

func (p *fakePage) IsClosed() bool { return p.closed }

func TestTimeoutMillis(t *testing.T) {
	assert.Equal(t, float64(5000), *timeoutMillis(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got := *timeoutMillis(ctx)
	assert.LessOrEqual(t, got, float64(2000))
	assert.Greater(t, got, float64(1000))

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	assert.Equal(t, float64(1), *timeoutMillis(expired), "an expired deadline must not become 'no timeout'")
}

func TestInstallExtension(t *testing.T) {
	src := filepath.Join(t.TempDir(), "MetaMask.xpi")
	require.NoError(t, os.WriteFile(src, []byte("PK-fake-xpi"), 0o644))
	profile := t.TempDir()

	require.NoError(t, installExtension(profile, src, "webextension@metamask.io"))

	data, err := os.ReadFile(filepath.Join(profile, "extensions", "webextension@metamask.io.xpi"))
	require.NoError(t, err)
	assert.Equal(t, "PK-fake-xpi", string(data))

	assert.Error(t, installExtension(profile, src, ""), "an add-on id is required")
	assert.Error(t, installExtension(profile, filepath.Join(t.TempDir(), "missing.xpi"), "id@x"))
}

func TestSyncWindows(t *testing.T) {
	n := 0
	newHandle := func() string { n++; return fmt.Sprintf("h%d", n) }

	main, ext, popup := &fakePage{}, &fakePage{}, &fakePage{}

	windows := syncWindows(nil, []playwright.Page{main, ext}, newHandle)
	require.Len(t, windows, 2)
	assert.Equal(t, "h1", windows[0].handle)
	assert.Equal(t, "h2", windows[1].handle)

	windows = syncWindows(windows, []playwright.Page{popup, main, ext}, newHandle)
	require.Len(t, windows, 3)
	assert.Equal(t, []string{"h1", "h2", "h3"}, []string{windows[0].handle, windows[1].handle, windows[2].handle})

	popup.closed = true
	windows = syncWindows(windows, []playwright.Page{main, ext, popup}, newHandle)
	assert.Len(t, windows, 2, "closed pages drop out")
	assert.Equal(t, "h2", windows[1].handle, "handles are stable")
}

func TestLaunchOptions(t *testing.T) {
	lo := launchOptions(Options{Headless: true, ExecPath: "/usr/bin/firefox", Args: []string{"-width", "1280"}})
	require.NotNil(t, lo.Headless)
	assert.True(t, *lo.Headless)
	assert.Equal(t, "/usr/bin/firefox", *lo.ExecutablePath)
	assert.Equal(t, "en-US", *lo.Locale)
	assert.Equal(t, []string{"-width", "1280"}, lo.Args)
	assert.Equal(t, false, lo.FirefoxUserPrefs["xpinstall.signatures.required"])

	lo = launchOptions(Options{})
	assert.Nil(t, lo.ExecutablePath)
	assert.False(t, *lo.Headless)
}

func TestSelectAllChord(t *testing.T) {
	assert.Equal(t, "Meta+a", selectAllChord("darwin"))
	assert.Equal(t, "Control+a", selectAllChord("linux"))
}

func TestDecodeResult(t *testing.T) {
	var s string
	require.NoError(t, decodeResult("complete", &s))
	assert.Equal(t, "complete", s)

	var m map[string]int
	require.NoError(t, decodeResult(map[string]interface{}{"windows": 3}, &m))
	assert.Equal(t, 3, m["windows"])

	assert.NoError(t, decodeResult("ignored", nil))

	var n int
	assert.Error(t, decodeResult("not a number", &n))
}
