package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Chardonneaur/VisitorExclusion/internal/client"
	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
)

func sampleRules() []rules.Rule {
	return []rules.Rule{
		{
			ID:        1,
			Name:      "Crawlers",
			Enabled:   true,
			MatchMode: rules.MatchAny,
			Conditions: []rules.Condition{
				{Field: rules.FieldUserAgent, Operator: rules.OpContains, Value: "bot"},
			},
		},
		{
			ID:          2,
			Name:        "Office",
			Description: "Headquarters network during QA sessions on the staging site",
			MatchMode:   rules.MatchAll,
			Conditions: []rules.Condition{
				{Field: rules.FieldIP, Operator: rules.OpInIPRange, Value: "10.0.0.0/8"},
				{Field: rules.FieldPageURL, Operator: rules.OpStartsWith, Value: "https://staging."},
			},
		},
	}
}

func TestPrintRules_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintRules(&buf, sampleRules(), FormatJSON))

	var doc RuleFile
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Rules, 2)
	assert.Equal(t, rules.MatchAll, doc.Rules[1].MatchMode)
	assert.Contains(t, buf.String(), `"matchAll": 1`)
}

func TestPrintRules_YAMLRoundTripsThroughDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintRules(&buf, sampleRules(), FormatYAML))

	decoded, err := DecodeRuleFile(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, sampleRules()[1].Conditions, decoded[1].Conditions)
	assert.Equal(t, rules.MatchAll, decoded[1].MatchMode)
}

func TestPrintRules_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintRules(&buf, sampleRules(), FormatTable))

	out := buf.String()
	assert.Contains(t, out, "Crawlers")
	assert.Contains(t, out, "AND")
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, "QA sessions on the staging site")
}

func TestPrintRule_TableListsConditions(t *testing.T) {
	rule := sampleRules()[1]
	var buf bytes.Buffer
	require.NoError(t, PrintRule(&buf, &rule, FormatTable))

	out := buf.String()
	assert.Contains(t, out, "in_ip_range")
	assert.Contains(t, out, "10.0.0.0/8")
}

func TestPrintCheckResult(t *testing.T) {
	result := &client.CheckResult{
		EvaluationID: "c0ffee00-0000-4000-8000-000000000000",
		Excluded:     true,
		MatchedRule:  &client.MatchedRule{ID: 7, Name: "Crawlers"},
		SnapshotETag: `W/"00000000000000ff"`,
	}

	var buf bytes.Buffer
	require.NoError(t, PrintCheckResult(&buf, result, FormatTable))
	assert.Contains(t, buf.String(), "#7 Crawlers")

	buf.Reset()
	require.NoError(t, PrintCheckResult(&buf, result, FormatYAML))
	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, true, decoded["excluded"])
}

func TestPrint_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, PrintRules(&buf, nil, OutputFormat("xml")))
	assert.Error(t, PrintRule(&buf, &rules.Rule{}, OutputFormat("xml")))
	assert.Error(t, PrintCheckResult(&buf, &client.CheckResult{}, OutputFormat("xml")))
}

func TestDecodeRuleFile(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{
			name:  "json document",
			input: `{"rules":[{"name":"a","matchAll":1,"conditions":[{"field":"ip","operator":"in_ip_range","value":"10.0.0.0/8"}]}]}`,
			want:  1,
		},
		{
			name:  "bare json list",
			input: `[{"name":"a"},{"name":"b"}]`,
			want:  2,
		},
		{
			name: "yaml document",
			input: strings.Join([]string{
				"rules:",
				"  - name: Crawlers",
				"    matchAll: false",
				"    conditions:",
				"      - field: userAgent",
				"        operator: contains",
				"        value: bot",
			}, "\n"),
			want: 1,
		},
		{
			name:  "empty document",
			input: `rules: []`,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRuleFile([]byte(tt.input))
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	_, err := DecodeRuleFile([]byte("rules: [unterminated"))
	assert.Error(t, err)
}
