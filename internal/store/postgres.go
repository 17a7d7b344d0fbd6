package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	selectRuleColumns = `SELECT id, name, description, enabled, definition, created_at, updated_at FROM exclusion_rules`

	queryEnabledRules = selectRuleColumns + ` WHERE enabled ORDER BY id`
	queryAllRules     = selectRuleColumns + ` ORDER BY id`
	queryRuleByID     = selectRuleColumns + ` WHERE id = $1`

	queryInsertRule = `INSERT INTO exclusion_rules (name, description, enabled, definition)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, updated_at`

	queryUpdateRule = `UPDATE exclusion_rules
SET name = $2, description = $3, enabled = $4, definition = $5, updated_at = now()
WHERE id = $1
RETURNING created_at, updated_at`

	queryDeleteRule = `DELETE FROM exclusion_rules WHERE id = $1`
)

// PostgresStore is a PostgreSQL implementation of the Store interface.
// A rule's matching logic is kept in the definition column as the persisted
// {"matchAll": 0|1, "conditions": [...]} document.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger.With().Str("component", "postgres_store").Logger(),
	}
}

// GetEnabledRules retrieves enabled rules in ascending ID order.
func (p *PostgresStore) GetEnabledRules(ctx context.Context) ([]rules.Rule, error) {
	return p.queryRules(ctx, queryEnabledRules)
}

// ListRules retrieves all rules in ascending ID order.
func (p *PostgresStore) ListRules(ctx context.Context) ([]rules.Rule, error) {
	return p.queryRules(ctx, queryAllRules)
}

func (p *PostgresStore) queryRules(ctx context.Context, query string) ([]rules.Rule, error) {
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	result := make([]rules.Rule, 0)
	for rows.Next() {
		r, err := p.scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return result, nil
}

// GetRule retrieves a single rule by ID.
func (p *PostgresStore) GetRule(ctx context.Context, id int64) (rules.Rule, error) {
	r, err := p.scanRule(p.pool.QueryRow(ctx, queryRuleByID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return rules.Rule{}, ErrNotFound
	}
	return r, err
}

// UpsertRule inserts a rule when rule.ID is zero and updates it otherwise.
func (p *PostgresStore) UpsertRule(ctx context.Context, rule rules.Rule) (rules.Rule, error) {
	definition, err := rules.EncodeDefinition(rule.MatchMode, rule.Conditions)
	if err != nil {
		return rules.Rule{}, fmt.Errorf("encode definition: %w", err)
	}
	if rule.Conditions == nil {
		rule.Conditions = []rules.Condition{}
	}

	if rule.ID == 0 {
		err = p.pool.QueryRow(ctx, queryInsertRule,
			rule.Name, rule.Description, rule.Enabled, string(definition),
		).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
		if err != nil {
			return rules.Rule{}, fmt.Errorf("insert rule: %w", err)
		}
		return rule, nil
	}

	err = p.pool.QueryRow(ctx, queryUpdateRule,
		rule.ID, rule.Name, rule.Description, rule.Enabled, string(definition),
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rules.Rule{}, ErrNotFound
	}
	if err != nil {
		return rules.Rule{}, fmt.Errorf("update rule %d: %w", rule.ID, err)
	}
	return rule, nil
}

// DeleteRule removes a rule from the database.
func (p *PostgresStore) DeleteRule(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, queryDeleteRule, id)
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// scanRule converts one row. A malformed condition list is logged and the
// rule is kept with no conditions, so it never matches.
func (p *PostgresStore) scanRule(row pgx.Row) (rules.Rule, error) {
	var (
		r          rules.Rule
		definition string
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Enabled, &definition, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rules.Rule{}, err
		}
		return rules.Rule{}, fmt.Errorf("scan rule: %w", err)
	}

	r.MatchMode, r.Conditions = decodeStoredDefinition(p.logger, r.ID, definition)
	return r, nil
}

func decodeStoredDefinition(logger zerolog.Logger, id int64, raw string) (rules.MatchMode, []rules.Condition) {
	mode, conds, err := rules.DecodeDefinition([]byte(raw))
	if err != nil {
		logger.Warn().Err(err).Int64("rule_id", id).Msg("stored conditions are malformed; rule will not match")
		return mode, []rules.Condition{}
	}
	return mode, conds
}
