// internal/browser/cdp/options.go
package cdp

import (
	"strings"

	"github.com/chromedp/chromedp"
)

// Options describes how Chrome is launched.
type Options struct {
	ExecPath    string
	UserDataDir string
	// ExtensionDir is an unpacked wallet extension loaded at startup. Empty loads none.
	ExtensionDir string
	Headless     bool
	// Args are extra command-line flags, with or without leading dashes, as "name" or "name=value".
	Args []string
}

// AllocatorOptions builds the exec allocator options for opts on top of chromedp's defaults.
func AllocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.NoSandbox)

	for name, value := range launchFlags(opts) {
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}

	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	return allocOpts
}

// launchFlags returns the command-line flags layered over the defaults. A false value
// removes a default flag.
func launchFlags(opts Options) map[string]interface{} {
	flags := map[string]interface{}{
		"mute-audio":             true,
		"disable-infobars":       true,
		"disable-popup-blocking": true,
		"disable-dev-shm-usage":  true,
		"lang":                   "en-US",
		"accept-lang":            "en-US,en",
		"start-maximized":        true,
		// Hides the "controlled by automated software" bar, which shifts extension popups.
		"enable-automation": false,
		// Defaults run headless, so the flag is always set explicitly.
		"headless": opts.Headless,
	}

	if opts.ExtensionDir != "" {
		flags["disable-extensions"] = false
		flags["load-extension"] = opts.ExtensionDir
		flags["disable-extensions-except"] = opts.ExtensionDir
	}

	for _, arg := range opts.Args {
		arg = strings.TrimLeft(arg, "-")
		if arg == "" {
			continue
		}
		// Boolean flags, e.g. "--kiosk".
		if !strings.Contains(arg, "=") {
			flags[arg] = true
			continue
		}
		parts := strings.SplitN(arg, "=", 2)
		flags[parts[0]] = parts[1]
	}
	return flags
}
