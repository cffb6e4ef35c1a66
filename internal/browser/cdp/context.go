// internal/browser/cdp/context.go
package cdp

import "context"

// combineContext returns a context that carries the values of tabCtx (the chromedp
// target) and is cancelled when either tabCtx or opCtx is done. chromedp resolves the
// target from context values, so the operational deadline cannot be the parent.
func combineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tabCtx)
	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}
