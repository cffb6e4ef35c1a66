// internal/wallet/metamask/locators.go
package metamask

import "fmt"

// XPath locators for the MetaMask extension pages and popups.
const (
	welcomeButton   = `//*[@class="welcome-page"]/button`
	primaryButton   = `//*[contains(@class, "btn-primary")][position()=1]`
	agreeButton     = `//footer/button[2]`
	phraseInput     = `//input[position()=1]`
	passwordInput   = `//*[@id="password"]`
	confirmInput    = `//*[@id="confirm-password"]`
	termsCheckbox   = `(//*[@role="checkbox"])[2]`
	completionEmoji = `//*[contains(@class, "emoji")][position()=1]`

	popoverClose   = `//button[@data-testid="popover-close"]`
	networkDisplay = `//*[contains(@class, "network-display")][position()=1]`

	accountMenu     = `//*[@class="account-menu__icon"][position()=1]`
	importAccount   = `//*[contains(@class, "account-menu__item--clickable")][position()=2]`
	privateKeyInput = `//*[@id="private-key-box"]`
	secondaryButton = `//*[contains(@class, "btn-secondary")][position()=1]`

	// Popup buttons ("Next", "Connect").
	popupPrimary    = `//*[contains(@class, "btn-primary")]`
	signatureScroll = `(//div[contains(@class, "signature") and contains(@class, "scroll")])[position()=1]`
	signButton      = `(//div[contains(@class, "signature") and contains(@class, "footer")])[position()=1]/button[2]`
)

func testNetworkOption(name string) string {
	return fmt.Sprintf(`//span[contains(text(), "%s Test Network")]`, name)
}
