package api

import (
	"net/http"

	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
)

// ruleRequest is the body of create and update calls. Enabled defaults to
// true when omitted.
type ruleRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Enabled     *bool             `json:"enabled,omitempty"`
	MatchAll    rules.MatchMode   `json:"matchAll"`
	Conditions  []rules.Condition `json:"conditions"`
}

func (req ruleRequest) toRule(id int64) rules.Rule {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return rules.Rule{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Enabled:     enabled,
		MatchMode:   req.MatchAll,
		Conditions:  req.Conditions,
	}
}

type listRulesResponse struct {
	Rules []rules.Rule `json:"rules"`
	Count int          `json:"count"`
	ETag  string       `json:"snapshotEtag"`
}

type ruleResponse struct {
	Rule rules.Rule `json:"rule"`
	ETag string     `json:"snapshotEtag"`
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListRules(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listRulesResponse{
		Rules: list,
		Count: len(list),
		ETag:  s.svc.Snapshot().ETag,
	})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidID, err.Error())
		return
	}
	rule, err := s.svc.GetRule(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ruleResponse{Rule: rule, ETag: s.svc.Snapshot().ETag})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	saved, err := s.svc.SaveRule(r.Context(), req.toRule(0))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	logRuleChange(r, "created", saved.ID)
	writeJSON(w, http.StatusCreated, ruleResponse{Rule: saved, ETag: s.svc.Snapshot().ETag})
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidID, err.Error())
		return
	}
	var req ruleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	saved, err := s.svc.SaveRule(r.Context(), req.toRule(id))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	logRuleChange(r, "updated", saved.ID)
	writeJSON(w, http.StatusOK, ruleResponse{Rule: saved, ETag: s.svc.Snapshot().ETag})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidID, err.Error())
		return
	}
	if err := s.svc.DeleteRule(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	logRuleChange(r, "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// writeStoreError maps service errors onto API error responses.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, ok := ruleErrorStatus(err)
	if !ok {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("rule operation failed")
		InternalError(w, r, "rule operation failed")
		return
	}
	writeError(w, r, status, code, err.Error(), nil)
}
