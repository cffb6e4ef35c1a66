// File: internal/service/components.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/walletpilot/internal/browser"
	"github.com/xkilldash9x/walletpilot/internal/listing"
	"github.com/xkilldash9x/walletpilot/internal/wallet"
	"github.com/xkilldash9x/walletpilot/internal/wallet/metamask"
)

// shutdownTimeout bounds browser shutdown once the command context is gone.
const shutdownTimeout = 15 * time.Second

// Session holds one browser session and the flows that share it.
type Session struct {
	Driver      *browser.Driver
	Credentials *wallet.Credentials
	Wallet      *metamask.Flow
	Listings    *listing.Editor

	logger *zap.Logger
}

// NewSession assembles a Session around an existing driver.
func NewSession(driver *browser.Driver, creds *wallet.Credentials, logger *zap.Logger, opts ...metamask.Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		Driver:      driver,
		Credentials: creds,
		Wallet:      metamask.New(driver, creds, logger, opts...),
		Listings:    listing.NewEditor(driver, logger),
		logger:      logger,
	}
}

// Shutdown dismisses any MetaMask popup and quits the browser. It runs even after
// the command context was cancelled.
func (s *Session) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	s.logger.Debug("Beginning session shutdown sequence.")
	if s.Wallet != nil {
		s.Wallet.Close(shutdownCtx)
	}
	if s.Driver != nil {
		s.Driver.Quit(shutdownCtx)
	}
	s.logger.Debug("Session shut down.")
}
