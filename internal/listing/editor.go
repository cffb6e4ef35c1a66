// internal/listing/editor.go

// Package listing edits NFT marketplace listings in the wallet-connected browser session.
package listing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/walletpilot/internal/browser"
)

const (
	editLink          = `//a[contains(@href, "/edit")]`
	unlockableToggle  = `//*[@id="unlockable-content-toggle"]`
	unlockableText    = `//div[contains(@class, "unlockable")]/textarea`
	submitChangesLink = `//button[contains(text(), "Submit changes")]`
)

// Outcome is the result of an edit that did not fail outright.
type Outcome int

const (
	// Unavailable means there was nothing to edit: no content, or no edit link on the page.
	Unavailable Outcome = iota
	// Applied means the content was entered and the changes submitted.
	Applied
	// AlreadyPresent means the edit form did not accept new content, which is what a
	// listing that already carries unlockable content looks like.
	AlreadyPresent
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case AlreadyPresent:
		return "already_present"
	default:
		return "unavailable"
	}
}

// Listing identifies an NFT page and the unlockable content to attach to it.
type Listing struct {
	URL               string
	UnlockableContent string
}

// HasUnlockableContent reports whether there is any content to set.
func (l Listing) HasUnlockableContent() bool {
	return len(l.UnlockableContent) > 0
}

// Web is the subset of *browser.Driver the editor needs.
type Web interface {
	Navigate(ctx context.Context, url string) error
	Clickable(ctx context.Context, locator string) error
	SendKeys(ctx context.Context, locator, text string) error
	Press(ctx context.Context, locator, key string) error
}

var _ Web = (*browser.Driver)(nil)

// Editor changes listings through their marketplace edit page.
type Editor struct {
	web    Web
	logger *zap.Logger
}

// NewEditor creates an Editor over web.
func NewEditor(web Web, logger *zap.Logger) *Editor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{web: web, logger: logger.Named("listing")}
}

// SetUnlockableContent turns on unlockable content for the listing and submits its text.
// Only a failed navigation or a cancelled ctx is an error; every other miss is
// reported as an Outcome.
func (e *Editor) SetUnlockableContent(ctx context.Context, l Listing) (Outcome, error) {
	log := e.logger.With(zap.String("url", l.URL))
	if !l.HasUnlockableContent() {
		log.Debug("No unlockable content to set.")
		return Unavailable, nil
	}

	// 1. Open the listing and its edit page.
	if err := e.web.Navigate(ctx, l.URL); err != nil {
		return Unavailable, fmt.Errorf("failed to open listing: %w", err)
	}
	if err := e.web.Clickable(ctx, editLink); err != nil {
		if ctx.Err() != nil {
			return Unavailable, ctx.Err()
		}
		log.Warn("Edit button not found", zap.Error(err))
		return Unavailable, nil
	}

	// 2. Toggle the section on, fill it and submit.
	if err := e.fill(ctx, l.UnlockableContent); err != nil {
		if ctx.Err() != nil {
			return Unavailable, ctx.Err()
		}
		log.Info("Has Unlockable Content", zap.Error(err))
		return AlreadyPresent, nil
	}

	log.Info("Added Unlockable Content: "+l.UnlockableContent)
	return Applied, nil
}

func (e *Editor) fill(ctx context.Context, content string) error {
	if err := e.web.Press(ctx, unlockableToggle, browser.KeyEnter); err != nil {
		return err
	}
	if err := e.web.SendKeys(ctx, unlockableText, content); err != nil {
		return err
	}
	return e.web.Clickable(ctx, submitChangesLink)
}
