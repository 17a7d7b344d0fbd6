package engine

import (
	"net/netip"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
	"golang.org/x/text/cases"
)

// maxCachedPatterns bounds the regex and range caches. Past the bound values
// are still parsed, just not retained.
const maxCachedPatterns = 4096

var (
	// regexCache keeps compiled regex by pattern for the hot evaluation path.
	// A nil *regexp.Regexp records a pattern that failed to compile.
	regexCache     sync.Map
	regexCacheSize atomic.Int64

	// rangeCache keeps parsed range lists ([]netip.Prefix) by condition value.
	rangeCache     sync.Map
	rangeCacheSize atomic.Int64
)

// apply evaluates one operator. Unknown operators never match.
func apply(op rules.Operator, actual, expected string, p *pass) bool {
	switch op {
	case rules.OpEquals:
		return equalsString(actual, expected)
	case rules.OpNotEquals:
		return !equalsString(actual, expected)
	case rules.OpContains:
		return containsString(actual, expected)
	case rules.OpNotContains:
		return !containsString(actual, expected)
	case rules.OpStartsWith:
		return strings.HasPrefix(normalizeCase(actual), normalizeCase(expected))
	case rules.OpEndsWith:
		if expected == "" {
			return true
		}
		return strings.HasSuffix(normalizeCase(actual), normalizeCase(expected))
	case rules.OpMatchesRegex:
		return matchesRegex(actual, expected)
	case rules.OpNotMatchesRegex:
		return !matchesRegex(actual, expected)
	case rules.OpInIPRange:
		return inIPRange(p.req.IP, expected)
	case rules.OpNotInIPRange:
		return !inIPRange(p.req.IP, expected)
	default:
		return false
	}
}

func equalsString(left, right string) bool {
	return normalizeCase(left) == normalizeCase(right)
}

func containsString(haystack, needle string) bool {
	return strings.Contains(normalizeCase(haystack), normalizeCase(needle))
}

// normalizeCase is the single case policy for every comparison: Unicode full
// case folding.
func normalizeCase(value string) string {
	if isLowerASCII(value) {
		return value
	}
	return cases.Fold().String(value)
}

func isLowerASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x80 || ('A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}

// matchesRegex runs an unanchored, case-insensitive search. Empty and
// uncompilable patterns never match.
func matchesRegex(actual, pattern string) bool {
	if pattern == "" {
		return false
	}
	rx := getCompiledRegex(pattern)
	if rx == nil {
		return false
	}
	return rx.MatchString(actual)
}

func getCompiledRegex(pattern string) *regexp.Regexp {
	if cached, ok := regexCache.Load(pattern); ok {
		rx, _ := cached.(*regexp.Regexp)
		return rx
	}

	rx, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		rx = nil
	}
	if regexCacheSize.Load() < maxCachedPatterns {
		if _, loaded := regexCache.LoadOrStore(pattern, rx); !loaded {
			regexCacheSize.Add(1)
		}
	}
	return rx
}

// inIPRange reports whether ip falls in any comma-separated address or CIDR
// entry. An absent ip matches nothing.
func inIPRange(ip netip.Addr, value string) bool {
	if !ip.IsValid() {
		return false
	}
	ip = normalizeAddr(ip)
	for _, prefix := range getIPRanges(value) {
		if prefix.Contains(ip) {
			return true
		}
	}
	return false
}

func getIPRanges(value string) []netip.Prefix {
	if cached, ok := rangeCache.Load(value); ok {
		prefixes, _ := cached.([]netip.Prefix)
		return prefixes
	}

	prefixes := parseIPRanges(value)
	if rangeCacheSize.Load() < maxCachedPatterns {
		if _, loaded := rangeCache.LoadOrStore(value, prefixes); !loaded {
			rangeCacheSize.Add(1)
		}
	}
	return prefixes
}

// parseIPRanges skips entries that are neither an address nor a CIDR.
func parseIPRanges(value string) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				continue
			}
			prefixes = append(prefixes, unmapPrefix(prefix))
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			continue
		}
		addr = normalizeAddr(addr)
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes
}

// unmapPrefix rewrites ::ffff:a.b.c.d/n (n >= 96) as an IPv4 prefix so it can
// match unmapped request addresses.
func unmapPrefix(p netip.Prefix) netip.Prefix {
	addr := p.Addr()
	if !addr.Is4In6() || p.Bits() < 96 {
		return p
	}
	return netip.PrefixFrom(addr.Unmap(), p.Bits()-96)
}
