package engine

import (
	"strings"

	"github.com/Chardonneaur/VisitorExclusion/internal/device"
	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
)

const (
	unknownResolution = "unknown"
	botDeviceType     = "bot"
)

// pass carries the per-event state of one evaluation call. The device
// descriptor is classified lazily, at most once, and dies with the pass.
type pass struct {
	req        *Request
	classifier device.Classifier

	classified bool
	descriptor device.Descriptor
	available  bool
}

func newPass(req *Request, classifier device.Classifier) *pass {
	if req == nil {
		req = &Request{}
	}
	return &pass{req: req, classifier: classifier}
}

func (p *pass) device() (device.Descriptor, bool) {
	if !p.classified {
		p.classified = true
		p.descriptor, p.available = classify(p.classifier, p.req)
	}
	return p.descriptor, p.available
}

// classify treats a missing classifier or a panicking one as "no result".
func classify(c device.Classifier, req *Request) (d device.Descriptor, ok bool) {
	if c == nil {
		return device.Descriptor{}, false
	}
	defer func() {
		if recover() != nil {
			d, ok = device.Descriptor{}, false
		}
	}()
	return c.Classify(req.UserAgent, req.ClientHints)
}

// extract resolves the value a condition compares against. It always returns
// a string; unknown fields resolve to "".
func extract(field rules.Field, p *pass) string {
	req := p.req

	switch field {
	case rules.FieldIP:
		if !req.IP.IsValid() {
			return ""
		}
		return req.IP.String()
	case rules.FieldUserAgent:
		return req.UserAgent
	case rules.FieldPageURL:
		return req.PageURL
	case rules.FieldReferrerURL:
		return req.ReferrerURL
	case rules.FieldBrowserLanguage:
		return browserLanguage(req.AcceptLanguage)
	case rules.FieldScreenResolution:
		if req.Resolution == unknownResolution {
			return ""
		}
		return req.Resolution
	}

	if field.IsDeviceDerived() {
		return deviceField(field, p)
	}
	if n, ok := field.Dimension(); ok {
		return req.Dimension(n)
	}
	return ""
}

// deviceField resolves deviceType, browserName and operatingSystem from the
// pass's descriptor. A bot always reports the "bot" device type.
func deviceField(field rules.Field, p *pass) string {
	d, ok := p.device()
	if !ok {
		return ""
	}
	switch field {
	case rules.FieldDeviceType:
		if d.Bot {
			return botDeviceType
		}
		return normalizeCase(d.Device)
	case rules.FieldBrowserName:
		return normalizeCase(d.Browser)
	case rules.FieldOperatingSystem:
		return normalizeCase(d.OS)
	}
	return ""
}

// browserLanguage reduces an Accept-Language value to the two-letter code of
// its first entry: "fr-FR,fr;q=0.9" becomes "fr".
func browserLanguage(raw string) string {
	first, _, _ := strings.Cut(raw, ",")
	first = strings.TrimSpace(first)
	runes := []rune(first)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return normalizeCase(string(runes))
}
