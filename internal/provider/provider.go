package provider

import (
	"errors"
	"fmt"
	"time"
)

// ServiceType identifies an external service the broker can connect.
type ServiceType string

const (
	ServiceGoogle ServiceType = "google"
	ServiceMotion ServiceType = "motion"
)

// KnownServices lists every service type the broker understands, in the
// order status responses report them.
var KnownServices = []ServiceType{ServiceGoogle, ServiceMotion}

// ParseServiceType maps a wire value to a known service type.
func ParseServiceType(value string) (ServiceType, bool) {
	switch ServiceType(value) {
	case ServiceGoogle:
		return ServiceGoogle, true
	case ServiceMotion:
		return ServiceMotion, true
	default:
		return "", false
	}
}

// DisplayName returns the human-readable service name used in the
// callback page and user-facing messages.
func (s ServiceType) DisplayName() string {
	switch s {
	case ServiceGoogle:
		return "Google"
	case ServiceMotion:
		return "Motion"
	default:
		return string(s)
	}
}

// TokenSet is the broker's view of a credential set, independent of any
// provider SDK's response shape. A zero Expiry means the credential
// does not expire (API keys).
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// HasRefresh reports whether the set carries a refresh token.
func (t TokenSet) HasRefresh() bool {
	return t.RefreshToken != ""
}

// Profile contains the non-secret identity fields a provider reports
// about the authenticated account.
type Profile struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Error is a rejection by the external provider: an invalid or expired
// authorization code, a revoked consent, a bad API key. Transport
// failures reaching the provider are returned as plain errors instead,
// so callers can tell a definitive "no" from a retriable outage.
type Error struct {
	Service ServiceType
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: provider error %s", e.Service, e.Code)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Service, e.Message, e.Code)
}

// IsProviderError reports whether err is (or wraps) a provider rejection.
func IsProviderError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
