package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/Chardonneaur/VisitorExclusion/internal/client"
	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// RuleFile is the document read by apply and written by export.
type RuleFile struct {
	Rules []rules.Rule `json:"rules" yaml:"rules"`
}

// PrintRules outputs rules in the specified format
func PrintRules(w io.Writer, list []rules.Rule, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, RuleFile{Rules: list})
	case FormatYAML:
		return printYAML(w, RuleFile{Rules: list})
	case FormatTable:
		return printRuleTable(w, list)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintRule outputs a single rule; the table form lists its conditions.
func PrintRule(w io.Writer, rule *rules.Rule, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, rule)
	case FormatYAML:
		return printYAML(w, rule)
	case FormatTable:
		if err := printRuleTable(w, []rules.Rule{*rule}); err != nil {
			return err
		}
		return printConditionTable(w, rule.Conditions)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintCheckResult outputs a decision
func PrintCheckResult(w io.Writer, result *client.CheckResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, result)
	case FormatYAML:
		return printYAML(w, result)
	case FormatTable:
		rule := "-"
		if result.MatchedRule != nil {
			rule = fmt.Sprintf("#%d %s", result.MatchedRule.ID, result.MatchedRule.Name)
		}
		table := tablewriter.NewWriter(w)
		table.Header("Excluded", "Upstream", "Matched Rule", "Snapshot", "Evaluation ID")
		if err := table.Append(
			fmt.Sprint(result.Excluded),
			fmt.Sprint(result.Upstream),
			rule,
			result.SnapshotETag,
			result.EvaluationID,
		); err != nil {
			return err
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// DecodeRuleFile parses an apply document. A bare list of rules is accepted
// as well as the {rules: [...]} form; YAML is a superset of JSON so both
// formats go through the YAML decoder.
func DecodeRuleFile(data []byte) ([]rules.Rule, error) {
	var doc RuleFile
	if err := yaml.Unmarshal(data, &doc); err == nil {
		return doc.Rules, nil
	}

	var list []rules.Rule
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	return list, nil
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printRuleTable(w io.Writer, list []rules.Rule) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Name", "Enabled", "Match", "Conditions", "Description", "Updated At")

	for _, rule := range list {
		description := rule.Description
		if len(description) > 40 {
			description = description[:37] + "..."
		}

		if err := table.Append(
			fmt.Sprint(rule.ID),
			rule.Name,
			fmt.Sprint(rule.Enabled),
			rule.MatchMode.String(),
			fmt.Sprint(len(rule.Conditions)),
			description,
			rule.UpdatedAt.Format("2006-01-02 15:04"),
		); err != nil {
			return err
		}
	}

	return table.Render()
}

func printConditionTable(w io.Writer, conditions []rules.Condition) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Field", "Operator", "Value")
	for i, c := range conditions {
		value := strings.ReplaceAll(c.Value, "\n", " ")
		if err := table.Append(fmt.Sprint(i+1), string(c.Field), string(c.Operator), value); err != nil {
			return err
		}
	}
	return table.Render()
}
