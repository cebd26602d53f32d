package energyid

import (
	"fmt"
	"net/url"

	"github.com/JakeFAU/diftar2energyid/internal/waste"
)

// DeliveryError reports a webhook call that did not succeed.
type DeliveryError struct {
	Category   waste.Category
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deliver %s to %s: %v", e.Category, e.host(), e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("deliver %s to %s: status %d: %s", e.Category, e.host(), e.StatusCode, e.Body)
	}
	return fmt.Sprintf("deliver %s to %s: status %d", e.Category, e.host(), e.StatusCode)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// host keeps the webhook path, which carries its secret, out of status messages.
func (e *DeliveryError) host() string {
	u, err := url.Parse(e.URL)
	if err != nil || u.Host == "" {
		return "webhook"
	}
	return u.Host
}
