// internal/browser/gecko/profile.go
package gecko

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

// defaultTimeout applies when the caller's context carries no deadline.
const defaultTimeout = 5 * time.Second

// installExtension copies the .xpi into the profile's extensions directory, named
// after the add-on id so Firefox side-loads it on start.
func installExtension(profileDir, xpiPath, addonID string) error {
	if addonID == "" {
		return fmt.Errorf("add-on id is required to install %s", xpiPath)
	}
	src, err := os.Open(xpiPath)
	if err != nil {
		return fmt.Errorf("failed to open extension: %w", err)
	}
	defer src.Close()

	dir := filepath.Join(profileDir, "extensions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create extensions directory: %w", err)
	}

	dst, err := os.Create(filepath.Join(dir, addonID+".xpi"))
	if err != nil {
		return fmt.Errorf("failed to create extension file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy extension: %w", err)
	}
	return dst.Close()
}

// timeoutMillis converts the time left on ctx into a playwright timeout.
func timeoutMillis(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return playwright.Float(float64(defaultTimeout.Milliseconds()))
	}
	left := time.Until(deadline).Milliseconds()
	if left < 1 {
		// Zero would mean "no timeout" to playwright.
		left = 1
	}
	return playwright.Float(float64(left))
}
