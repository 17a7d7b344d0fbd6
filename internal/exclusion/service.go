// Package exclusion runs the decision loop: it keeps the enabled rule set in
// memory, refreshes it from the store, and decides for each tracking event
// whether it must be dropped.
package exclusion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Chardonneaur/VisitorExclusion/internal/device"
	"github.com/Chardonneaur/VisitorExclusion/internal/engine"
	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
	"github.com/Chardonneaur/VisitorExclusion/internal/snapshot"
	"github.com/Chardonneaur/VisitorExclusion/internal/store"
	"github.com/Chardonneaur/VisitorExclusion/internal/telemetry"
)

// RuleRef identifies the rule that excluded an event.
type RuleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Decision is the outcome of Check.
type Decision struct {
	Excluded    bool     `json:"excluded"`
	Upstream    bool     `json:"upstream"`
	MatchedRule *RuleRef `json:"matchedRule,omitempty"`
	ETag        string   `json:"snapshotEtag"`
}

// Service owns the rule store, the evaluator and the current snapshot.
type Service struct {
	store     store.Store
	evaluator *engine.Evaluator
	holder    *snapshot.Holder
	logger    zerolog.Logger
}

// NewService wires a Service. The holder starts empty until Reload succeeds.
func NewService(st store.Store, classifier device.Classifier, holder *snapshot.Holder, logger zerolog.Logger) *Service {
	if holder == nil {
		holder = snapshot.NewHolder()
	}
	return &Service{
		store:     st,
		evaluator: engine.NewEvaluator(classifier),
		holder:    holder,
		logger:    logger.With().Str("component", "exclusion").Logger(),
	}
}

// Holder exposes the snapshot holder for readers such as the API.
func (s *Service) Holder() *snapshot.Holder {
	return s.holder
}

// Snapshot returns the rule set currently in force.
func (s *Service) Snapshot() *snapshot.Snapshot {
	return s.holder.Load()
}

// Reload reads the enabled rules from the store and installs them. On error
// the previous snapshot stays in force.
func (s *Service) Reload(ctx context.Context) (*snapshot.Snapshot, error) {
	enabled, err := s.store.GetEnabledRules(ctx)
	if err != nil {
		telemetry.ReloadFailures.Inc()
		s.logger.Error().Err(err).Msg("rule reload failed; keeping previous snapshot")
		return s.holder.Load(), fmt.Errorf("load enabled rules: %w", err)
	}

	snap := snapshot.Build(enabled)
	if s.holder.Update(snap) {
		s.logger.Info().Int("rules", len(snap.Rules)).Str("etag", snap.ETag).Msg("rule snapshot updated")
	}
	telemetry.SnapshotRules.Set(float64(len(snap.Rules)))
	return snap, nil
}

// StartReloader refreshes the snapshot every interval until ctx is done.
// Failed reloads are logged and retried on the next tick.
func (s *Service) StartReloader(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = s.Reload(ctx)
		}
	}
}

// Check decides whether the event described by req is excluded. An event
// already excluded upstream is returned as excluded without evaluation.
func (s *Service) Check(alreadyExcluded bool, req *engine.Request) Decision {
	snap := s.holder.Load()
	d := Decision{ETag: snap.ETag}

	if alreadyExcluded {
		d.Excluded, d.Upstream = true, true
		telemetry.RecordDecision(telemetry.OutcomeUpstream)
		return d
	}

	matched, ok := s.evaluator.Match(snap.Rules, req)
	if !ok {
		telemetry.RecordDecision(telemetry.OutcomeKept)
		return d
	}

	d.Excluded = true
	d.MatchedRule = &RuleRef{ID: matched.ID, Name: matched.Name}
	telemetry.RecordDecision(telemetry.OutcomeExcluded)
	s.logger.Debug().Int64("rule_id", matched.ID).Str("rule", matched.Name).Msg("event excluded")
	return d
}

// Exclude is the boolean form of Check.
func (s *Service) Exclude(alreadyExcluded bool, req *engine.Request) bool {
	return s.Check(alreadyExcluded, req).Excluded
}

// ListRules returns every stored rule.
func (s *Service) ListRules(ctx context.Context) ([]rules.Rule, error) {
	return s.store.ListRules(ctx)
}

// GetRule returns one stored rule.
func (s *Service) GetRule(ctx context.Context, id int64) (rules.Rule, error) {
	return s.store.GetRule(ctx, id)
}

// SaveRule validates and stores a rule (create when ID is zero), then
// refreshes the snapshot so the change applies immediately.
func (s *Service) SaveRule(ctx context.Context, rule rules.Rule) (rules.Rule, error) {
	if err := rules.ValidateRule(rule); err != nil {
		return rules.Rule{}, err
	}

	saved, err := s.store.UpsertRule(ctx, rule)
	if err != nil {
		return rules.Rule{}, err
	}
	s.logger.Info().Int64("rule_id", saved.ID).Str("rule", saved.Name).Bool("enabled", saved.Enabled).Msg("rule saved")

	_, _ = s.Reload(ctx)
	return saved, nil
}

// DeleteRule removes a rule and refreshes the snapshot.
func (s *Service) DeleteRule(ctx context.Context, id int64) error {
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("rule_id", id).Msg("rule deleted")

	_, _ = s.Reload(ctx)
	return nil
}
