package engine

import (
	"net/netip"

	"github.com/Chardonneaur/VisitorExclusion/internal/device"
	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
)

// Request is a read-only snapshot of one tracking event.
type Request struct {
	IP             netip.Addr                  `json:"ip"`
	UserAgent      string                      `json:"userAgent,omitempty"`
	PageURL        string                      `json:"pageUrl,omitempty"`
	ReferrerURL    string                      `json:"referrerUrl,omitempty"`
	AcceptLanguage string                      `json:"acceptLanguage,omitempty"`
	Resolution     string                      `json:"resolution,omitempty"`
	ClientHints    device.ClientHints          `json:"clientHints"`
	Dimensions     [rules.MaxDimensions]string `json:"dimensions"`
}

// Dimension returns custom dimension n (1-based), or "" when out of range.
func (r *Request) Dimension(n int) string {
	if r == nil || n < 1 || n > rules.MaxDimensions {
		return ""
	}
	return r.Dimensions[n-1]
}

// ParseIP parses a textual address. Invalid input yields the zero Addr,
// which every range check treats as absent.
func ParseIP(s string) netip.Addr {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}
	}
	return normalizeAddr(addr)
}

// IPFromBinary converts a 4 or 16 byte network-order address.
func IPFromBinary(b []byte) netip.Addr {
	addr, ok := netip.AddrFromSlice(b)
	if !ok {
		return netip.Addr{}
	}
	return normalizeAddr(addr)
}

func normalizeAddr(addr netip.Addr) netip.Addr {
	return addr.Unmap().WithZone("")
}
