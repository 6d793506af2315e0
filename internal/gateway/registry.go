package gateway

import (
	"fmt"
	"strings"
)

// ID enumerates the supported gateways. The set is deliberately
// closed: adding a gateway means extending every switch below, so a
// half-wired gateway cannot slip in through a stray string.
type ID string

const (
	IDEasyMoney    ID = "easy_money"
	IDSuperWalletz ID = "super_walletz"
)

// UnsupportedGatewayError is returned for identifiers outside the
// closed gateway set, carrying the supported list for the caller.
type UnsupportedGatewayError struct {
	Gateway   string
	Supported []string
}

func (e *UnsupportedGatewayError) Error() string {
	return fmt.Sprintf("unsupported gateway: %s (supported: %s)", e.Gateway, strings.Join(e.Supported, ", "))
}

func ParseID(s string) (ID, error) {
	switch ID(s) {
	case IDEasyMoney, IDSuperWalletz:
		return ID(s), nil
	}
	return "", &UnsupportedGatewayError{Gateway: s, Supported: SupportedIDs()}
}

func SupportedIDs() []string {
	return []string{string(IDEasyMoney), string(IDSuperWalletz)}
}

func WebhookSupportedIDs() []string {
	return []string{string(IDSuperWalletz)}
}

// SupportsWebhooks reports whether the gateway confirms payments via
// inbound webhooks.
func (id ID) SupportsWebhooks() bool {
	switch id {
	case IDSuperWalletz:
		return true
	default:
		return false
	}
}

// Registry maps gateway identifiers to their adapter instances.
type Registry struct {
	easyMoney    Gateway
	superWalletz Gateway
}

func NewRegistry(easyMoney, superWalletz Gateway) *Registry {
	return &Registry{easyMoney: easyMoney, superWalletz: superWalletz}
}

func (r *Registry) ForPayment(id ID) (Gateway, error) {
	switch id {
	case IDEasyMoney:
		return r.easyMoney, nil
	case IDSuperWalletz:
		return r.superWalletz, nil
	}
	return nil, &UnsupportedGatewayError{Gateway: string(id), Supported: SupportedIDs()}
}

// ForWebhook resolves the adapter for the webhook path. Selecting a
// webhook-incapable gateway here is the same failure kind as an
// unknown identifier.
func (r *Registry) ForWebhook(id ID) (Gateway, error) {
	if !id.SupportsWebhooks() {
		return nil, &UnsupportedGatewayError{Gateway: string(id), Supported: WebhookSupportedIDs()}
	}
	return r.ForPayment(id)
}
