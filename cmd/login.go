// File: cmd/login.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walletpilot/internal/observability"
)

func newLoginCmd(root *rootOptions) *cobra.Command {
	var (
		opts connectOptions
		hold bool
	)

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Import the wallet into a fresh browser and optionally connect it to a site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			session, err := startSession(ctx, cmd, root.cfg, logger)
			if err != nil {
				return err
			}
			defer session.Shutdown(ctx)

			if err := connect(ctx, session, opts); err != nil {
				return err
			}
			logger.Info("Wallet ready.", zap.String("session_id", session.Driver.ID()), zap.String("url", opts.url))
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")

			if hold {
				fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to close the browser.")
				<-ctx.Done()
			}
			return nil
		},
	}

	opts.addFlags(loginCmd, "url", "site to open in the site window after login")
	loginCmd.Flags().BoolVar(&opts.sign, "sign", false, "confirm the connection popup opened by the site")
	loginCmd.Flags().BoolVar(&hold, "hold", false, "keep the browser open until interrupted")
	return loginCmd
}
