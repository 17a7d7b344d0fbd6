package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/Chardonneaur/VisitorExclusion/internal/auth"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// setNoCache disables client and proxy caching of the response.
func setNoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// decodeJSON reads a size-limited JSON body into dst and writes the matching
// error response when it fails. It returns false if the handler must stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			RequestTooLargeError(w, r, fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes))
		case errors.Is(err, io.EOF):
			BadRequestError(w, r, ErrCodeInvalidJSON, "request body is empty")
		default:
			BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON: "+err.Error())
		}
		return false
	}
	return true
}

// parseID reads the {id} URL parameter as a positive rule ID.
func parseID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid rule id %q", raw)
	}
	return id, nil
}

// logRuleChange records a successful admin write in the request log.
func logRuleChange(r *http.Request, action string, id int64) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	hlog.FromRequest(r).Info().
		Str("action", action).
		Int64("rule_id", id).
		Str("principal", principal).
		Str("remote_ip", auth.GetIPAddress(r)).
		Msg("rule changed")
}
