// File: cmd/edit.go
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walletpilot/internal/listing"
	"github.com/xkilldash9x/walletpilot/internal/observability"
)

func newEditCmd(root *rootOptions) *cobra.Command {
	var opts connectOptions

	editCmd := &cobra.Command{
		Use:   "edit [listing-url]",
		Short: "Add unlockable content to an NFT listing",
		Long: `Logs into the wallet, optionally connects it to the marketplace, then opens the
listing's edit page and fills in its unlockable content. The listing URL defaults to
listing.url from the configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := root.cfg

			// 1. Resolve the listing before starting a browser.
			if len(args) == 1 {
				cfg.SetListingURL(args[0])
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			l := listing.Listing{URL: cfg.Listing().URL, UnlockableContent: cfg.Listing().UnlockableContent}
			if l.URL == "" {
				return errors.New("a listing URL is required")
			}
			if !l.HasUnlockableContent() {
				fmt.Fprintf(cmd.OutOrStdout(), "Listing %s: %s\n", l.URL, listing.Unavailable)
				return nil
			}

			// 2. Log in and connect.
			session, err := startSession(ctx, cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer session.Shutdown(ctx)

			opts.sign = opts.url != ""
			if err := connect(ctx, session, opts); err != nil {
				return err
			}

			// 3. Edit the listing in the site window.
			if err := session.Driver.SwitchToWindow(ctx, siteWindow); err != nil {
				return err
			}
			outcome, err := session.Listings.SetUnlockableContent(ctx, l)
			if err != nil {
				return fmt.Errorf("failed to edit listing %s: %w", l.URL, err)
			}
			logger.Info("Listing processed.", zap.String("url", l.URL), zap.Stringer("outcome", outcome))
			fmt.Fprintf(cmd.OutOrStdout(), "Listing %s: %s\n", l.URL, outcome)
			return nil
		},
	}

	opts.addFlags(editCmd, "connect-url", "marketplace page to connect the wallet on before editing")
	editCmd.Flags().String("content", "", "unlockable content text (defaults to listing.unlockable_content)")
	return editCmd
}
