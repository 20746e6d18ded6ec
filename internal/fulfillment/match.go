package fulfillment

import (
	"strings"

	"github.com/tournevent/fulfillment/pkg/shipper"
)

// MatchShippingMethod picks the first offered rate whose display name
// contains the shipping method chosen at checkout, ignoring case. Offers are
// expected cheapest first within each carrier group.
func MatchShippingMethod(method string, offers []shipper.Rate) (shipper.Rate, error) {
	want := strings.ToLower(strings.TrimSpace(method))
	names := make([]string, 0, len(offers))
	for _, r := range offers {
		if want != "" && strings.Contains(strings.ToLower(r.Name), want) {
			return r, nil
		}
		names = append(names, r.Name)
	}
	return shipper.Rate{}, &NoMatchingRateError{ShippingMethod: method, Offered: names}
}
