// internal/wallet/kind.go
package wallet

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xkilldash9x/walletpilot/internal/browser"
)

// ErrUnsupportedKind is returned for wallets, or wallet/engine pairs, with no extension artifact.
var ErrUnsupportedKind = errors.New("unsupported wallet")

// Kind names a wallet browser extension.
type Kind string

const (
	MetaMask       Kind = "metamask"
	CoinbaseWallet Kind = "coinbase_wallet"
)

// artifact locates an extension under the assets directory. An empty entry means the
// engine has no build of that extension.
type artifact struct {
	chrome  string // unpacked extension directory
	firefox string // .xpi file
	addonID string
	display string
}

var artifacts = map[Kind]artifact{
	MetaMask: {
		chrome:  "MetaMask",
		firefox: "MetaMask.xpi",
		addonID: "webextension@metamask.io",
		display: "MetaMask",
	},
	CoinbaseWallet: {
		chrome:  "CoinbaseWallet",
		display: "Coinbase Wallet",
	},
}

// ParseKind accepts either form of a wallet name, e.g. "Coinbase Wallet" or "coinbase_wallet".
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_"))
	if _, ok := artifacts[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
	return k, nil
}

func (k Kind) String() string {
	if a, ok := artifacts[k]; ok {
		return a.display
	}
	return string(k)
}

// ExtensionPath returns the extension artifact for engine inside assetsDir.
func (k Kind) ExtensionPath(assetsDir string, engine browser.Engine) (string, error) {
	a, ok := artifacts[k]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, string(k))
	}

	var name string
	switch engine {
	case browser.EngineChrome:
		name = a.chrome
	case browser.EngineFirefox:
		name = a.firefox
	default:
		return "", fmt.Errorf("%w: %s", browser.ErrUnsupportedEngine, engine)
	}
	if name == "" {
		return "", fmt.Errorf("%w: %s has no %s extension", ErrUnsupportedKind, k, engine)
	}

	path, err := filepath.Abs(filepath.Join(assetsDir, name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve extension path: %w", err)
	}
	return path, nil
}

// AddonID is the Firefox add-on id, empty when the wallet has no Firefox build.
func (k Kind) AddonID() string {
	return artifacts[k].addonID
}
