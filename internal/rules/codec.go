package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMalformedConditions is returned when a persisted condition list is not a
// JSON array. Callers keep the rule with an empty list so it never matches.
var ErrMalformedConditions = errors.New("malformed condition list")

// MatchMode selects how a rule combines its conditions.
type MatchMode int

const (
	// MatchAny passes when at least one condition passes (OR).
	MatchAny MatchMode = iota
	// MatchAll passes when every condition passes (AND).
	MatchAll
)

// String returns "AND" or "OR".
func (m MatchMode) String() string {
	if m == MatchAll {
		return "AND"
	}
	return "OR"
}

// ParseMatchMode maps a textual flag to a mode. "1", "true", "and" and "all"
// (case-insensitive, surrounding space ignored) select MatchAll; every other
// value, including the empty string, selects MatchAny.
func ParseMatchMode(s string) MatchMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "and", "all":
		return MatchAll
	}
	return MatchAny
}

// MarshalJSON encodes the mode as 0 or 1.
func (m MatchMode) MarshalJSON() ([]byte, error) {
	if m == MatchAll {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// UnmarshalJSON accepts 0/1, booleans and their string forms.
func (m *MatchMode) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = matchModeFrom(raw)
	return nil
}

// MarshalYAML encodes the mode as 0 or 1.
func (m MatchMode) MarshalYAML() (any, error) {
	if m == MatchAll {
		return 1, nil
	}
	return 0, nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (m *MatchMode) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*m = matchModeFrom(raw)
	return nil
}

func matchModeFrom(raw any) MatchMode {
	switch v := raw.(type) {
	case bool:
		if v {
			return MatchAll
		}
	case float64:
		if v == 1 {
			return MatchAll
		}
	case int:
		if v == 1 {
			return MatchAll
		}
	case string:
		return ParseMatchMode(v)
	}
	return MatchAny
}

// Definition is the persisted shape of a rule's matching logic.
type Definition struct {
	MatchAll   MatchMode   `json:"matchAll"`
	Conditions []Condition `json:"conditions"`
}

// EncodeDefinition serializes a rule's match mode and ordered conditions.
func EncodeDefinition(mode MatchMode, conditions []Condition) ([]byte, error) {
	if conditions == nil {
		conditions = []Condition{}
	}
	return json.Marshal(Definition{MatchAll: mode, Conditions: conditions})
}

// DecodeDefinition parses a persisted definition. A malformed condition list
// yields an empty list together with ErrMalformedConditions; the match mode is
// still returned.
func DecodeDefinition(data []byte) (MatchMode, []Condition, error) {
	var raw struct {
		MatchAll   MatchMode       `json:"matchAll"`
		Conditions json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return MatchAny, nil, fmt.Errorf("%w: %v", ErrMalformedConditions, err)
	}
	conditions, err := DecodeConditions(raw.Conditions)
	return raw.MatchAll, conditions, err
}

// DecodeConditions parses a persisted condition list, preserving order.
// Entries that are not objects decode as empty conditions, and non-string
// values are rendered to their textual form. Unknown field and operator
// strings decode without error.
func DecodeConditions(data []byte) ([]Condition, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, ErrMalformedConditions
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConditions, err)
	}

	conditions := make([]Condition, 0, len(entries))
	for _, entry := range entries {
		var obj map[string]any
		if err := json.Unmarshal(entry, &obj); err != nil || obj == nil {
			conditions = append(conditions, Condition{})
			continue
		}
		conditions = append(conditions, Condition{
			Field:    Field(scalarString(obj["field"])),
			Operator: Operator(scalarString(obj["operator"])),
			Value:    scalarString(obj["value"]),
		})
	}
	return conditions, nil
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
