// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walletpilot/internal/config"
	"github.com/xkilldash9x/walletpilot/internal/observability"
	"github.com/xkilldash9x/walletpilot/internal/service"
)

// newSessionFactory is swapped out in tests to run commands against a fake browser.
var newSessionFactory = service.NewSessionFactory

// rootOptions carries state from PersistentPreRunE to the subcommands.
type rootOptions struct {
	cfgFile string
	envFile string
	cfg     *config.Config
}

// NewRootCommand builds a fresh command tree. Each call returns independent flag state.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "walletpilot",
		Short:         "walletpilot drives a browser wallet extension and edits NFT listings.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			// 1. Load configuration from file, .env and environment.
			if err := initializeConfig(cmd, v, opts); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			// 2. Logging.
			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Configuration loaded.",
				zap.String("version", Version),
				zap.String("config_file", v.ConfigFileUsed()),
			)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file holding wallet secrets")
	rootCmd.PersistentFlags().String("engine", "", "browser engine: chrome or firefox")
	rootCmd.PersistentFlags().Bool("headless", false, "run the browser without a window")
	rootCmd.PersistentFlags().String("wallet", "", "wallet extension: metamask or coinbase_wallet")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newLoginCmd(opts))
	rootCmd.AddCommand(newEditCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with ctx and logs a failure before returning it.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Warn("Command aborted.")
		} else {
			observability.GetLogger().Error("Command execution failed.", zap.Error(err))
		}
		return err
	}
	return nil
}

// flagBindings maps command-line flags onto configuration keys.
var flagBindings = map[string]string{
	"engine":   "browser.engine",
	"headless": "browser.headless",
	"wallet":   "wallet.kind",
	"network":  "wallet.network",
	"content":  "listing.unlockable_content",
}

// initializeConfig reads the .env file, the config file and environment variables
// into v, then binds the flags so they take precedence.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, opts *rootOptions) error {
	// A missing .env is fine; secrets may come from the real environment.
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error reading env file %s: %w", opts.envFile, err)
	}

	if opts.cfgFile != "" {
		v.SetConfigFile(opts.cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("WALLETPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	for name, key := range flagBindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}
