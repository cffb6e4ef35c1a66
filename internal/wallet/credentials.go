// internal/wallet/credentials.go
package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
	"go.uber.org/zap/zapcore"
)

var (
	ErrInvalidMnemonic   = errors.New("invalid recovery phrase")
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrWeakPassword      = errors.New("password must be at least 8 characters")
)

// minPasswordLength is the shortest password the MetaMask import form accepts.
const minPasswordLength = 8

// Credentials are the secrets used to import a wallet. Success is set by the
// login flow once the wallet is unlocked.
type Credentials struct {
	RecoveryPhrase string
	Password       string
	// PrivateKey, when set, is imported as an extra account after login.
	PrivateKey string
	Success    bool
}

// NewCredentials normalizes the recovery phrase and private key.
func NewCredentials(phrase, password, privateKey string) *Credentials {
	return &Credentials{
		RecoveryPhrase: NormalizeMnemonic(phrase),
		Password:       password,
		PrivateKey:     strings.TrimSpace(privateKey),
	}
}

// Manual reports whether the user has to import the wallet by hand.
func (c *Credentials) Manual() bool {
	return c.RecoveryPhrase == "" || c.Password == ""
}

// Validate checks the secrets that will be typed. In manual mode only the private key is checked.
func (c *Credentials) Validate() error {
	if !c.Manual() {
		if err := ValidateMnemonic(c.RecoveryPhrase); err != nil {
			return err
		}
		if len(c.Password) < minPasswordLength {
			return ErrWeakPassword
		}
	}
	if c.PrivateKey != "" {
		if _, err := Address(c.PrivateKey); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeMnemonic lowercases the phrase and collapses whitespace.
func NormalizeMnemonic(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

// ValidateMnemonic checks word count, words, and checksum against BIP39.
func ValidateMnemonic(phrase string) error {
	normalized := NormalizeMnemonic(phrase)
	switch len(strings.Fields(normalized)) {
	case 12, 15, 18, 21, 24:
	default:
		return fmt.Errorf("%w: expected 12 to 24 words", ErrInvalidMnemonic)
	}
	if _, err := bip39.MnemonicToByteArray(normalized); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return nil
}

// Address derives the checksummed Ethereum address of a hex private key.
func Address(privateKey string) (string, error) {
	hexKey := strings.TrimPrefix(strings.TrimSpace(privateKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

// MarshalLogObject logs the shape of the credentials, never the secrets.
func (c *Credentials) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("phrase_words", len(strings.Fields(c.RecoveryPhrase)))
	enc.AddBool("has_password", c.Password != "")
	enc.AddBool("manual", c.Manual())
	if c.PrivateKey != "" {
		if addr, err := Address(c.PrivateKey); err == nil {
			enc.AddString("import_address", addr)
		} else {
			enc.AddString("import_address", "invalid")
		}
	}
	enc.AddBool("success", c.Success)
	return nil
}
