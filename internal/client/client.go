package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Chardonneaur/VisitorExclusion/internal/device"
	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
)

// Client is an HTTP client for the visitor exclusion API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response. Code and Message are filled from the
// structured error body when the server sent one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// CheckRequest describes one tracking event to decide on.
type CheckRequest struct {
	AlreadyExcluded bool                `json:"alreadyExcluded"`
	IP              string              `json:"ip,omitempty"`
	UserAgent       string              `json:"userAgent,omitempty"`
	PageURL         string              `json:"pageUrl,omitempty"`
	ReferrerURL     string              `json:"referrerUrl,omitempty"`
	AcceptLanguage  string              `json:"acceptLanguage,omitempty"`
	Resolution      string              `json:"resolution,omitempty"`
	ClientHints     *device.ClientHints `json:"clientHints,omitempty"`
	Dimensions      map[int]string      `json:"dimensions,omitempty"`
}

// MatchedRule identifies the rule that excluded an event.
type MatchedRule struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CheckResult is the decision returned by the check endpoint.
type CheckResult struct {
	EvaluationID string       `json:"evaluationId"`
	Excluded     bool         `json:"excluded"`
	Upstream     bool         `json:"upstream"`
	MatchedRule  *MatchedRule `json:"matchedRule,omitempty"`
	SnapshotETag string       `json:"snapshotEtag"`
}

// Snapshot is the public rule snapshot.
type Snapshot struct {
	ETag     string       `json:"etag"`
	Rules    []rules.Rule `json:"rules"`
	LoadedAt time.Time    `json:"loadedAt"`
}

// ListRules retrieves every rule, enabled or not
func (c *Client) ListRules(ctx context.Context) ([]rules.Rule, error) {
	var result struct {
		Rules []rules.Rule `json:"rules"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/rules", nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return result.Rules, nil
}

// GetRule retrieves a single rule by ID
func (c *Client) GetRule(ctx context.Context, id int64) (*rules.Rule, error) {
	var result struct {
		Rule rules.Rule `json:"rule"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/rules/%d", id), nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result.Rule, nil
}

// CreateRule creates a rule; any ID on rule is ignored
func (c *Client) CreateRule(ctx context.Context, rule rules.Rule) (*rules.Rule, error) {
	var result struct {
		Rule rules.Rule `json:"rule"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/rules", rule, &result, http.StatusCreated); err != nil {
		return nil, err
	}
	return &result.Rule, nil
}

// UpdateRule replaces the rule with the given ID
func (c *Client) UpdateRule(ctx context.Context, id int64, rule rules.Rule) (*rules.Rule, error) {
	var result struct {
		Rule rules.Rule `json:"rule"`
	}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/v1/rules/%d", id), rule, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result.Rule, nil
}

// DeleteRule deletes a rule
func (c *Client) DeleteRule(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/v1/rules/%d", id), nil, nil, http.StatusNoContent)
}

// Snapshot retrieves the rule set currently in force
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := c.do(ctx, http.MethodGet, "/v1/rules/snapshot", nil, &snap, http.StatusOK); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Check asks the server whether an event would be excluded
func (c *Client) Check(ctx context.Context, event CheckRequest) (*CheckResult, error) {
	var result CheckResult
	if err := c.do(ctx, http.MethodPost, "/v1/exclusions/check", event, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, want int) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(bodyBytes))}

	var structured struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(bodyBytes, &structured) == nil && structured.Message != "" {
		apiErr.Code = structured.Code
		apiErr.Message = structured.Message
	}
	return apiErr
}
