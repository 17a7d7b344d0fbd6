package store

import (
	"context"
	"errors"

	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
)

// ErrNotFound is returned when a rule ID does not exist.
var ErrNotFound = errors.New("rule not found")

// Store defines the interface for exclusion rule persistence.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// GetEnabledRules returns the enabled rules in ascending ID order.
	// This is the read model the evaluator consumes.
	GetEnabledRules(ctx context.Context) ([]rules.Rule, error)

	// ListRules returns every rule, enabled or not, in ascending ID order.
	ListRules(ctx context.Context) ([]rules.Rule, error)

	// GetRule retrieves a single rule by ID.
	// Returns ErrNotFound if the rule does not exist.
	GetRule(ctx context.Context, id int64) (rules.Rule, error)

	// UpsertRule creates the rule when its ID is zero and replaces the
	// stored rule otherwise. The saved rule (with ID and timestamps) is
	// returned. Updating a missing ID returns ErrNotFound.
	UpsertRule(ctx context.Context, rule rules.Rule) (rules.Rule, error)

	// DeleteRule removes a rule by ID.
	// Returns ErrNotFound if the rule does not exist.
	DeleteRule(ctx context.Context, id int64) error

	// Close releases any resources held by the store.
	// After Close is called, the store should not be used.
	Close() error
}

// cloneRule copies the condition slice so callers cannot alias stored state.
func cloneRule(r rules.Rule) rules.Rule {
	if r.Conditions != nil {
		r.Conditions = append([]rules.Condition(nil), r.Conditions...)
	}
	return r
}
