package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses a map for storage and RWMutex for thread-safe concurrent access.
// This implementation is suitable for development, testing, or single-instance deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	rules  map[int64]rules.Rule
	nextID int64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules:  make(map[int64]rules.Rule),
		nextID: 1,
	}
}

// GetEnabledRules returns enabled rules ordered by ID.
func (m *MemoryStore) GetEnabledRules(ctx context.Context) ([]rules.Rule, error) {
	return m.collect(func(r rules.Rule) bool { return r.Enabled }), nil
}

// ListRules returns all rules ordered by ID.
func (m *MemoryStore) ListRules(ctx context.Context) ([]rules.Rule, error) {
	return m.collect(func(rules.Rule) bool { return true }), nil
}

func (m *MemoryStore) collect(keep func(rules.Rule) bool) []rules.Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]rules.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		if keep(r) {
			result = append(result, cloneRule(r))
		}
	}
	slices.SortFunc(result, func(a, b rules.Rule) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// GetRule retrieves a single rule by ID.
func (m *MemoryStore) GetRule(ctx context.Context, id int64) (rules.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, exists := m.rules[id]
	if !exists {
		return rules.Rule{}, ErrNotFound
	}
	return cloneRule(r), nil
}

// UpsertRule creates or replaces a rule in memory.
func (m *MemoryStore) UpsertRule(ctx context.Context, rule rules.Rule) (rules.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	rule = cloneRule(rule)
	if rule.Conditions == nil {
		rule.Conditions = []rules.Condition{}
	}

	if rule.ID == 0 {
		rule.ID = m.nextID
		m.nextID++
		rule.CreatedAt = now
	} else {
		existing, exists := m.rules[rule.ID]
		if !exists {
			return rules.Rule{}, ErrNotFound
		}
		rule.CreatedAt = existing.CreatedAt
	}
	rule.UpdatedAt = now

	m.rules[rule.ID] = rule
	return cloneRule(rule), nil
}

// DeleteRule removes a rule from memory.
func (m *MemoryStore) DeleteRule(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[id]; !exists {
		return ErrNotFound
	}
	delete(m.rules, id)
	return nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}
