// Package testutil wires a full in-memory exclusion server for tests of the
// packages that sit on top of the HTTP API.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Chardonneaur/VisitorExclusion/internal/api"
	"github.com/Chardonneaur/VisitorExclusion/internal/device"
	"github.com/Chardonneaur/VisitorExclusion/internal/exclusion"
	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
	"github.com/Chardonneaur/VisitorExclusion/internal/store"
)

// TestServer is a running API backed by a memory store.
type TestServer struct {
	*httptest.Server
	Service *exclusion.Service
	Store   *store.MemoryStore
}

// NewTestServer starts an API server with an in-memory store.
// Everything is torn down when the test ends.
func NewTestServer(t *testing.T, adminKey string) *TestServer {
	t.Helper()

	memStore := store.NewMemoryStore()
	svc := exclusion.NewService(memStore, device.NewUAClassifier(), nil, zerolog.Nop())
	if _, err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("initial reload: %v", err)
	}

	handler := api.NewServer(svc, api.Options{
		AdminKey: adminKey,
		Logger:   zerolog.Nop(),
	}).Router()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &TestServer{Server: srv, Service: svc, Store: memStore}
}

// Seed stores rules directly and reloads the snapshot. It returns the rules
// with their assigned IDs.
func (s *TestServer) Seed(t *testing.T, list ...rules.Rule) []rules.Rule {
	t.Helper()
	ctx := context.Background()

	out := make([]rules.Rule, 0, len(list))
	for _, r := range list {
		saved, err := s.Store.UpsertRule(ctx, r)
		if err != nil {
			t.Fatalf("seed rule %q: %v", r.Name, err)
		}
		out = append(out, saved)
	}
	if _, err := s.Service.Reload(ctx); err != nil {
		t.Fatalf("reload after seed: %v", err)
	}
	return out
}

// Rule builds an enabled rule with the given conditions.
func Rule(name string, mode rules.MatchMode, conds ...rules.Condition) rules.Rule {
	return rules.Rule{Name: name, Enabled: true, MatchMode: mode, Conditions: conds}
}

// Cond builds a condition.
func Cond(field rules.Field, op rules.Operator, value string) rules.Condition {
	return rules.Condition{Field: field, Operator: op, Value: value}
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request against handler and returns the recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
