package shipper

import (
	"fmt"
	"sort"
	"sync"
)

// Account is a carrier account reachable through the carrier API.
type Account struct {
	Tag  CarrierTag
	Code string // carrier code sent to the API, e.g. "stamps_com"

	// AllowedServices restricts offered rates. Empty allows every service.
	AllowedServices []string

	// TransitDays is used when the API does not report transit time.
	TransitDays map[string]int
}

// Allows reports whether rates for the service may be offered.
func (a Account) Allows(serviceCode string) bool {
	if len(a.AllowedServices) == 0 {
		return true
	}
	for _, s := range a.AllowedServices {
		if s == serviceCode {
			return true
		}
	}
	return false
}

// DefaultTransitDays returns the configured transit time for a service.
func (a Account) DefaultTransitDays(serviceCode string) (int, bool) {
	days, ok := a.TransitDays[serviceCode]
	return days, ok
}

// Registry manages the carrier accounts rates are shopped across.
type Registry struct {
	accounts map[CarrierTag]Account
	mu       sync.RWMutex
}

// NewRegistry creates a new, empty account registry.
func NewRegistry() *Registry {
	return &Registry{
		accounts: make(map[CarrierTag]Account),
	}
}

// DefaultRegistry returns the domestic postal and parcel accounts.
func DefaultRegistry(postalCode, parcelCode string) *Registry {
	r := NewRegistry()
	r.Register(Account{
		Tag:  CarrierUSPS,
		Code: postalCode,
		AllowedServices: []string{
			"usps_first_class_mail",
			"usps_priority_mail",
			"usps_priority_mail_express",
		},
		TransitDays: map[string]int{
			"usps_first_class_mail":      3,
			"usps_priority_mail":         2,
			"usps_priority_mail_express": 1,
		},
	})
	r.Register(Account{
		Tag:  CarrierUPS,
		Code: parcelCode,
		TransitDays: map[string]int{
			"ups_next_day_air": 1,
			"ups_2nd_day_air":  2,
			"ups_ground":       5,
		},
	})
	return r
}

// Register adds an account, replacing any account with the same tag.
func (r *Registry) Register(a Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.Tag] = a
}

// Get returns an account by tag.
func (r *Registry) Get(tag CarrierTag) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.accounts[tag]; ok {
		return a, nil
	}
	return Account{}, fmt.Errorf("%w: %s", ErrCarrierNotFound, tag)
}

// All returns all registered accounts ordered by tag.
func (r *Registry) All() []Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Tag < result[j].Tag })
	return result
}

// Tags returns the tags of all registered accounts.
func (r *Registry) Tags() []CarrierTag {
	accounts := r.All()
	tags := make([]CarrierTag, 0, len(accounts))
	for _, a := range accounts {
		tags = append(tags, a.Tag)
	}
	return tags
}

// Count returns the number of registered accounts.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}
