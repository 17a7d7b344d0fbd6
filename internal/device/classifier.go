// Package device derives bot, device, browser and operating system
// information from a User-Agent string and optional client hints.
package device

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

// Device names reported by UAClassifier.
const (
	NameDesktop    = "desktop"
	NameSmartphone = "smartphone"
	NameTablet     = "tablet"
	NameTV         = "tv"
)

// Descriptor is the classification of one visit. It is derived on demand and
// never stored.
type Descriptor struct {
	Bot     bool   `json:"bot"`
	Device  string `json:"device"`
	Browser string `json:"browser"`
	OS      string `json:"os"`
}

// Classifier turns a User-Agent and client hints into a Descriptor.
// The boolean is false when no classification is available.
type Classifier interface {
	Classify(userAgent string, hints ClientHints) (Descriptor, bool)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(userAgent string, hints ClientHints) (Descriptor, bool)

// Classify calls f.
func (f ClassifierFunc) Classify(userAgent string, hints ClientHints) (Descriptor, bool) {
	return f(userAgent, hints)
}

// Brand is one entry of the Sec-CH-UA brand list.
type Brand struct {
	Brand   string `json:"brand"`
	Version string `json:"version"`
}

// ClientHints mirrors the User-Agent client hints sent alongside a visit.
type ClientHints struct {
	Brands          []Brand `json:"brands,omitempty"`
	Mobile          bool    `json:"mobile,omitempty"`
	Platform        string  `json:"platform,omitempty"`
	PlatformVersion string  `json:"platformVersion,omitempty"`
	Model           string  `json:"model,omitempty"`
}

// IsZero reports whether no hint was provided.
func (h ClientHints) IsZero() bool {
	return len(h.Brands) == 0 && !h.Mobile && h.Platform == "" && h.PlatformVersion == "" && h.Model == ""
}

// primaryBrand returns the first brand that is not a GREASE placeholder or
// the bare Chromium engine entry.
func (h ClientHints) primaryBrand() string {
	fallback := ""
	for _, b := range h.Brands {
		name := strings.TrimSpace(b.Brand)
		lower := strings.ToLower(name)
		if name == "" || (strings.Contains(lower, "not") && strings.Contains(lower, "brand")) {
			continue
		}
		if lower == "chromium" {
			fallback = name
			continue
		}
		return name
	}
	return fallback
}

// HintsFromHeaders reads the Sec-CH-UA family of request headers.
func HintsFromHeaders(h http.Header) ClientHints {
	return ClientHints{
		Brands:          parseBrandList(h.Get("Sec-CH-UA-Full-Version-List"), h.Get("Sec-CH-UA")),
		Mobile:          strings.TrimSpace(h.Get("Sec-CH-UA-Mobile")) == "?1",
		Platform:        unquote(h.Get("Sec-CH-UA-Platform")),
		PlatformVersion: unquote(h.Get("Sec-CH-UA-Platform-Version")),
		Model:           unquote(h.Get("Sec-CH-UA-Model")),
	}
}

// parseBrandList parses a structured-header brand list such as
// `"Chromium";v="124", "Google Chrome";v="124"`. The first non-empty source wins.
func parseBrandList(sources ...string) []Brand {
	for _, src := range sources {
		if strings.TrimSpace(src) == "" {
			continue
		}
		var brands []Brand
		for _, item := range strings.Split(src, ",") {
			parts := strings.Split(item, ";")
			b := Brand{Brand: unquote(parts[0])}
			for _, p := range parts[1:] {
				if v, ok := strings.CutPrefix(strings.TrimSpace(p), "v="); ok {
					b.Version = unquote(v)
				}
			}
			if b.Brand != "" {
				brands = append(brands, b)
			}
		}
		return brands
	}
	return nil
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// botKeywords catches crawlers and scripted clients the parser does not list.
var botKeywords = []string{
	"bot", "crawler", "spider", "slurp", "crawling", "headlesschrome",
	"curl/", "wget/", "python-requests", "go-http-client", "httpclient",
}

// UAClassifier classifies visits with github.com/mssola/useragent, refined by
// client hints when present. It holds no state and is safe for concurrent use.
type UAClassifier struct{}

// NewUAClassifier returns the default classifier.
func NewUAClassifier() UAClassifier {
	return UAClassifier{}
}

// Classify implements Classifier. An empty User-Agent without hints yields no
// classification.
func (UAClassifier) Classify(userAgent string, hints ClientHints) (Descriptor, bool) {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" && hints.IsZero() {
		return Descriptor{}, false
	}

	ua := useragent.New(userAgent)
	lower := strings.ToLower(userAgent)

	d := Descriptor{
		Bot: ua.Bot() || containsAny(lower, botKeywords),
		OS:  ua.OSInfo().Name,
	}
	d.Browser, _ = ua.Browser()

	if brand := hints.primaryBrand(); brand != "" {
		d.Browser = brand
	}
	if hints.Platform != "" {
		d.OS = hints.Platform
	}
	d.Device = deviceName(lower, ua.Mobile(), hints)
	return d, true
}

func deviceName(lowerUA string, mobile bool, hints ClientHints) string {
	switch {
	case containsAny(lowerUA, []string{"smart-tv", "smarttv", "googletv", "appletv", "hbbtv", "crkey"}):
		return NameTV
	case containsAny(lowerUA, []string{"ipad", "tablet", "kindle", "silk/"}):
		return NameTablet
	case strings.Contains(lowerUA, "android") && !strings.Contains(lowerUA, "mobile"):
		return NameTablet
	case mobile || hints.Mobile:
		return NameSmartphone
	default:
		return NameDesktop
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
