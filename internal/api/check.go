package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/Chardonneaur/VisitorExclusion/internal/device"
	"github.com/Chardonneaur/VisitorExclusion/internal/engine"
	"github.com/Chardonneaur/VisitorExclusion/internal/exclusion"
	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
)

// checkRequest describes one tracking event. ipBinary (base64 in JSON) takes
// precedence over ip. clientHints falls back to the Sec-CH-UA headers of the
// HTTP request when omitted.
type checkRequest struct {
	AlreadyExcluded bool                `json:"alreadyExcluded"`
	IP              string              `json:"ip"`
	IPBinary        []byte              `json:"ipBinary,omitempty"`
	UserAgent       string              `json:"userAgent"`
	PageURL         string              `json:"pageUrl"`
	ReferrerURL     string              `json:"referrerUrl"`
	AcceptLanguage  string              `json:"acceptLanguage"`
	Resolution      string              `json:"resolution"`
	ClientHints     *device.ClientHints `json:"clientHints,omitempty"`
	Dimensions      map[int]string      `json:"dimensions,omitempty"`
}

type checkResponse struct {
	EvaluationID string `json:"evaluationId"`
	exclusion.Decision
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, fields := req.toEngineRequest(r.Header)
	if len(fields) > 0 {
		ValidationError(w, r, "invalid event", fields)
		return
	}

	decision := s.svc.Check(req.AlreadyExcluded, event)
	writeJSON(w, http.StatusOK, checkResponse{
		EvaluationID: uuid.NewString(),
		Decision:     decision,
	})
}

// toEngineRequest converts the DTO. Unparseable addresses are treated as
// absent; only out-of-range dimension slots are reported as field errors.
func (req checkRequest) toEngineRequest(h http.Header) (*engine.Request, map[string]string) {
	event := &engine.Request{
		UserAgent:      req.UserAgent,
		PageURL:        req.PageURL,
		ReferrerURL:    req.ReferrerURL,
		AcceptLanguage: req.AcceptLanguage,
		Resolution:     req.Resolution,
	}

	if len(req.IPBinary) > 0 {
		event.IP = engine.IPFromBinary(req.IPBinary)
	} else {
		event.IP = engine.ParseIP(req.IP)
	}

	if req.ClientHints != nil {
		event.ClientHints = *req.ClientHints
	} else {
		event.ClientHints = device.HintsFromHeaders(h)
	}

	var fields map[string]string
	for n, v := range req.Dimensions {
		if n < 1 || n > rules.MaxDimensions {
			if fields == nil {
				fields = make(map[string]string)
			}
			fields["dimensions."+strconv.Itoa(n)] = fmt.Sprintf("dimension slot must be between 1 and %d", rules.MaxDimensions)
			continue
		}
		event.Dimensions[n-1] = v
	}
	return event, fields
}
