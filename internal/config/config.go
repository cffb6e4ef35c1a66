// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// Commands and the service factory depend on this rather than on *Config so
// tests can hand in their own values.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Wallet() WalletConfig
	Listing() ListingConfig

	// Browser Setters
	SetBrowserEngine(string)
	SetBrowserHeadless(bool)

	// Wallet Setters
	SetWalletPassword(string)
	SetWalletNetwork(string)

	// Listing Setters
	SetListingURL(string)
	SetListingUnlockableContent(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	WalletCfg  WalletConfig  `mapstructure:"wallet" yaml:"wallet"`
	ListingCfg ListingConfig `mapstructure:"listing" yaml:"listing"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Wallet() WalletConfig   { return c.WalletCfg }
func (c *Config) Listing() ListingConfig { return c.ListingCfg }

func (c *Config) SetBrowserEngine(e string)   { c.BrowserCfg.Engine = e }
func (c *Config) SetBrowserHeadless(b bool)   { c.BrowserCfg.Headless = b }
func (c *Config) SetWalletPassword(p string)  { c.WalletCfg.Password = p }
func (c *Config) SetWalletNetwork(n string)   { c.WalletCfg.Network = n }
func (c *Config) SetListingURL(u string)      { c.ListingCfg.URL = u }
func (c *Config) SetListingUnlockableContent(s string) {
	c.ListingCfg.UnlockableContent = s
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to color names understood by the console encoder.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig selects the automation engine and tunes its waits.
type BrowserConfig struct {
	// Engine is "chrome" or "firefox".
	Engine string `mapstructure:"engine" yaml:"engine"`
	// BinaryPath overrides the browser executable. Empty means the engine default.
	BinaryPath string `mapstructure:"binary_path" yaml:"binary_path"`
	// AssetsDir holds the provisioned wallet extension artifacts.
	AssetsDir     string        `mapstructure:"assets_dir" yaml:"assets_dir"`
	UserDataDir   string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Headless      bool          `mapstructure:"headless" yaml:"headless"`
	Args          []string      `mapstructure:"args" yaml:"args"`
	WaitTimeout   time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	WindowTimeout time.Duration `mapstructure:"window_timeout" yaml:"window_timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// WalletConfig describes the wallet extension and the secrets used to import it.
// Secrets are never written back to YAML.
type WalletConfig struct {
	Kind           string `mapstructure:"kind" yaml:"kind"`
	Network        string `mapstructure:"network" yaml:"network"`
	RecoveryPhrase string `mapstructure:"recovery_phrase" yaml:"-"`
	Password       string `mapstructure:"password" yaml:"-"`
	PrivateKey     string `mapstructure:"private_key" yaml:"-"`
}

// ListingConfig describes the marketplace listing to edit.
type ListingConfig struct {
	URL               string `mapstructure:"url" yaml:"url"`
	UnlockableContent string `mapstructure:"unlockable_content" yaml:"unlockable_content"`
}

var (
	supportedEngines = map[string]bool{"chrome": true, "firefox": true}
	supportedWallets = map[string]bool{"metamask": true, "coinbase_wallet": true}
)

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "walletpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.engine", "chrome")
	v.SetDefault("browser.assets_dir", "assets")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.wait_timeout", "5s")
	v.SetDefault("browser.window_timeout", "10s")
	v.SetDefault("browser.poll_interval", "250ms")

	// -- Wallet --
	v.SetDefault("wallet.kind", "metamask")
	v.SetDefault("wallet.network", "Main")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets come from the environment (or a .env file loaded beforehand), not from config.yaml.
	_ = v.BindEnv("wallet.recovery_phrase", "WALLETPILOT_WALLET_RECOVERY_PHRASE")
	_ = v.BindEnv("wallet.password", "WALLETPILOT_WALLET_PASSWORD")
	_ = v.BindEnv("wallet.private_key", "WALLETPILOT_WALLET_PRIVATE_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading "~" in every filesystem path.
func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.BrowserCfg.BinaryPath,
		&c.BrowserCfg.AssetsDir,
		&c.BrowserCfg.UserDataDir,
		&c.LoggerCfg.LogFile,
	} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.BrowserCfg.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if err := c.WalletCfg.Validate(); err != nil {
		return fmt.Errorf("wallet configuration invalid: %w", err)
	}
	if err := c.ListingCfg.Validate(); err != nil {
		return fmt.Errorf("listing configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the browser section.
func (b *BrowserConfig) Validate() error {
	if !supportedEngines[strings.ToLower(b.Engine)] {
		return fmt.Errorf("engine %q is not supported (use chrome or firefox)", b.Engine)
	}
	if b.WaitTimeout <= 0 {
		return fmt.Errorf("wait_timeout must be a positive duration")
	}
	if b.WindowTimeout <= 0 {
		return fmt.Errorf("window_timeout must be a positive duration")
	}
	if b.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	return nil
}

// Validate checks the wallet section. Secret contents are validated by the wallet package.
func (w *WalletConfig) Validate() error {
	kind := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(w.Kind)), " ", "_")
	if !supportedWallets[kind] {
		return fmt.Errorf("kind %q is not supported", w.Kind)
	}
	if strings.TrimSpace(w.Network) == "" {
		return fmt.Errorf("network must not be empty")
	}
	return nil
}

// Validate checks the listing section. An empty URL is allowed; it is supplied per command.
func (l *ListingConfig) Validate() error {
	if l.URL == "" {
		return nil
	}
	u, err := url.Parse(l.URL)
	if err != nil {
		return fmt.Errorf("url is malformed: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must use http or https, got %q", u.Scheme)
	}
	return nil
}
