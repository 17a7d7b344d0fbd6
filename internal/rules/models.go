package rules

import (
	"strconv"
	"strings"
	"time"
)

// Field identifies the attribute of a tracking event a condition inspects.
// Unknown values are kept verbatim so they survive a storage round-trip; they
// never match.
type Field string

// Supported fields (string values match the persisted format).
const (
	FieldIP               Field = "ip"
	FieldUserAgent        Field = "userAgent"
	FieldPageURL          Field = "pageUrl"
	FieldReferrerURL      Field = "referrerUrl"
	FieldBrowserLanguage  Field = "browserLanguage"
	FieldScreenResolution Field = "screenResolution"
	FieldDeviceType       Field = "deviceType"
	FieldBrowserName      Field = "browserName"
	FieldOperatingSystem  Field = "operatingSystem"
)

// MaxDimensions is the number of custom dimension slots a request carries.
const MaxDimensions = 20

const dimensionPrefix = "dimension"

// DimensionField returns the field for custom dimension n (1-based).
func DimensionField(n int) Field {
	return Field(dimensionPrefix + strconv.Itoa(n))
}

// Dimension reports the 1-based slot of a dimensionN field.
// Leading zeros and out-of-range slots are rejected.
func (f Field) Dimension() (int, bool) {
	s, ok := strings.CutPrefix(string(f), dimensionPrefix)
	if !ok || s == "" || s[0] == '0' {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > MaxDimensions {
		return 0, false
	}
	return n, true
}

// Known reports whether f is one of the supported fields.
func (f Field) Known() bool {
	switch f {
	case FieldIP, FieldUserAgent, FieldPageURL, FieldReferrerURL, FieldBrowserLanguage,
		FieldScreenResolution, FieldDeviceType, FieldBrowserName, FieldOperatingSystem:
		return true
	}
	_, ok := f.Dimension()
	return ok
}

// IsDeviceDerived reports whether the field needs the device classifier.
func (f Field) IsDeviceDerived() bool {
	return f == FieldDeviceType || f == FieldBrowserName || f == FieldOperatingSystem
}

// Fields returns every supported field in display order.
func Fields() []Field {
	fields := []Field{
		FieldIP, FieldUserAgent, FieldPageURL, FieldReferrerURL, FieldBrowserLanguage,
		FieldScreenResolution, FieldDeviceType, FieldBrowserName, FieldOperatingSystem,
	}
	for i := 1; i <= MaxDimensions; i++ {
		fields = append(fields, DimensionField(i))
	}
	return fields
}

// Operator represents a comparison operator used in exclusion conditions.
type Operator string

// Supported operators (string values for clean JSON serialization).
const (
	OpEquals          Operator = "equals"
	OpNotEquals       Operator = "not_equals"
	OpContains        Operator = "contains"
	OpNotContains     Operator = "not_contains"
	OpStartsWith      Operator = "starts_with"
	OpEndsWith        Operator = "ends_with"
	OpMatchesRegex    Operator = "matches_regex"
	OpNotMatchesRegex Operator = "not_matches_regex"
	OpInIPRange       Operator = "in_ip_range"
	OpNotInIPRange    Operator = "not_in_ip_range"
)

// Known reports whether op is one of the ten supported operators.
func (op Operator) Known() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith, OpEndsWith,
		OpMatchesRegex, OpNotMatchesRegex, OpInIPRange, OpNotInIPRange:
		return true
	}
	return false
}

// Operators returns every supported operator.
func Operators() []Operator {
	return []Operator{
		OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith, OpEndsWith,
		OpMatchesRegex, OpNotMatchesRegex, OpInIPRange, OpNotInIPRange,
	}
}

// Condition represents a single exclusion predicate.
type Condition struct {
	Field    Field    `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    string   `json:"value" yaml:"value"`
}

// Rule is an administrator-defined exclusion rule.
// Conditions are combined according to MatchMode and are evaluated in order.
type Rule struct {
	ID          int64       `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Enabled     bool        `json:"enabled" yaml:"enabled"`
	MatchMode   MatchMode   `json:"matchAll" yaml:"matchAll"`
	Conditions  []Condition `json:"conditions" yaml:"conditions"`
	CreatedAt   time.Time   `json:"createdAt" yaml:"createdAt,omitempty"`
	UpdatedAt   time.Time   `json:"updatedAt" yaml:"updatedAt,omitempty"`
}
