// Package engine decides whether a tracking event matches an exclusion rule.
//
// Evaluation is pure: rules and requests are only read, the only per-event
// state is the lazily classified device descriptor, and nothing raised while
// evaluating a rule escapes Decide. A broken rule behaves like a rule that
// does not match.
package engine

import (
	"github.com/Chardonneaur/VisitorExclusion/internal/device"
	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
)

// Evaluator applies exclusion rules to requests. It is safe for concurrent
// use; the classifier may be nil, in which case device fields resolve to "".
type Evaluator struct {
	classifier device.Classifier
}

// NewEvaluator creates an Evaluator backed by classifier.
func NewEvaluator(classifier device.Classifier) *Evaluator {
	return &Evaluator{classifier: classifier}
}

// Decide reports whether the event must be excluded. An upstream exclusion is
// returned as-is without evaluating anything. Otherwise rules are evaluated
// in slice order (the read model supplies ascending ID order) and the first
// match excludes the event.
func (e *Evaluator) Decide(alreadyExcluded bool, ruleSet []rules.Rule, req *Request) bool {
	if alreadyExcluded {
		return true
	}
	_, matched := e.Match(ruleSet, req)
	return matched
}

// Match returns the first rule in ruleSet that matches req. All rules share
// one evaluation pass, so the device classifier runs at most once.
func (e *Evaluator) Match(ruleSet []rules.Rule, req *Request) (rules.Rule, bool) {
	p := newPass(req, e.classifier)
	for _, rule := range ruleSet {
		if p.evaluateRule(rule) {
			return rule, true
		}
	}
	return rules.Rule{}, false
}

// EvaluateRule reports whether a single rule matches req.
func (e *Evaluator) EvaluateRule(rule rules.Rule, req *Request) bool {
	return newPass(req, e.classifier).evaluateRule(rule)
}

// evaluateRule combines conditions per the rule's match mode, stopping at
// the first condition that settles the outcome. A panic counts as no match.
func (p *pass) evaluateRule(rule rules.Rule) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()

	if len(rule.Conditions) == 0 {
		return false
	}

	switch rule.MatchMode {
	case rules.MatchAll:
		for _, c := range rule.Conditions {
			if !p.evaluateCondition(c) {
				return false
			}
		}
		return true
	default:
		for _, c := range rule.Conditions {
			if p.evaluateCondition(c) {
				return true
			}
		}
		return false
	}
}

// evaluateCondition never matches on a field or operator outside the closed
// sets, whatever the operator's polarity.
func (p *pass) evaluateCondition(c rules.Condition) bool {
	if !c.Field.Known() || !c.Operator.Known() {
		return false
	}
	actual := extract(c.Field, p)
	return apply(c.Operator, actual, c.Value, p)
}
