package rules

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strings"
)

// Sentinel errors returned by ValidateRule.
var (
	ErrInvalidRule      = errors.New("invalid rule")
	ErrInvalidCondition = errors.New("invalid condition")
	ErrInvalidField     = errors.New("invalid field")
	ErrInvalidOperator  = errors.New("invalid operator")
	ErrInvalidPattern   = errors.New("invalid regular expression")
	ErrInvalidIPRange   = errors.New("invalid ip range")
)

// Limits applied to administrator input.
const (
	MaxNameLength     = 255
	MaxConditions     = 50
	MaxPatternLength  = 1024
	MaxIPRangeEntries = 256
)

// ValidateRule performs strict validation of a rule before it is persisted.
// Evaluation never depends on it: rules that bypass validation still degrade
// to non-matching instead of failing.
func ValidateRule(r Rule) error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidRule)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidRule, MaxNameLength)
	}
	if r.MatchMode != MatchAll && r.MatchMode != MatchAny {
		return fmt.Errorf("%w: unsupported match mode %d", ErrInvalidRule, r.MatchMode)
	}

	if len(r.Conditions) == 0 {
		return fmt.Errorf("%w: rule must have at least one condition", ErrInvalidCondition)
	}
	if len(r.Conditions) > MaxConditions {
		return fmt.Errorf("%w: rule has %d conditions, limit is %d", ErrInvalidCondition, len(r.Conditions), MaxConditions)
	}

	for i, c := range r.Conditions {
		if err := ValidateCondition(i, c); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCondition checks one condition; i is its position for messages.
func ValidateCondition(i int, c Condition) error {
	if !c.Field.Known() {
		return fmt.Errorf("%w: condition[%d] field %q is not supported", ErrInvalidField, i, c.Field)
	}
	if !c.Operator.Known() {
		return fmt.Errorf("%w: condition[%d] operator %q is not supported", ErrInvalidOperator, i, c.Operator)
	}

	// String operators accept an empty value; range operators always test the
	// visit's address, whatever field the condition names.
	switch c.Operator {
	case OpMatchesRegex, OpNotMatchesRegex:
		return validatePattern(i, c.Value)
	case OpInIPRange, OpNotInIPRange:
		return validateIPRanges(i, c.Value)
	}
	return nil
}

func validatePattern(i int, pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: condition[%d] pattern must not be empty", ErrInvalidPattern, i)
	}
	if len(pattern) > MaxPatternLength {
		return fmt.Errorf("%w: condition[%d] pattern exceeds %d characters", ErrInvalidPattern, i, MaxPatternLength)
	}
	if _, err := regexp.Compile("(?i)" + pattern); err != nil {
		return fmt.Errorf("%w: condition[%d]: %v", ErrInvalidPattern, i, err)
	}
	return nil
}

func validateIPRanges(i int, value string) error {
	entries := strings.Split(value, ",")
	if len(entries) > MaxIPRangeEntries {
		return fmt.Errorf("%w: condition[%d] has %d entries, limit is %d", ErrInvalidIPRange, i, len(entries), MaxIPRangeEntries)
	}

	valid := 0
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			if _, err := netip.ParsePrefix(entry); err != nil {
				return fmt.Errorf("%w: condition[%d] entry %q: %v", ErrInvalidIPRange, i, entry, err)
			}
		} else if _, err := netip.ParseAddr(entry); err != nil {
			return fmt.Errorf("%w: condition[%d] entry %q: %v", ErrInvalidIPRange, i, entry, err)
		}
		valid++
	}
	if valid == 0 {
		return fmt.Errorf("%w: condition[%d] must list at least one address or CIDR", ErrInvalidIPRange, i)
	}
	return nil
}
