package commands

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Chardonneaur/VisitorExclusion/internal/cli"
	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
)

var (
	applyFile   string
	applyDryRun bool
	applyForce  bool
	applyPrune  bool
)

type applyAction string

const (
	actionCreate    applyAction = "create"
	actionUpdate    applyAction = "update"
	actionUnchanged applyAction = "unchanged"
	actionDelete    applyAction = "delete"
)

type applyOp struct {
	Action applyAction
	ID     int64
	Rule   rules.Rule
}

var applyCmd = &cobra.Command{
	Use:   "apply -f <file>",
	Short: "Create or update rules from a file",
	Long: `Apply a YAML or JSON rule file. Rules are matched to existing ones by ID when
the ID exists on the server, otherwise by name; unmatched rules are created.

Examples:
  exclusionctl apply -f rules.yaml
  exclusionctl apply -f rules.yaml --dry-run
  exclusionctl apply -f rules.yaml --prune`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(applyFile)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		desired, err := cli.DecodeRuleFile(data)
		if err != nil {
			return err
		}
		if len(desired) == 0 && !applyPrune {
			return fmt.Errorf("no rules found in file")
		}
		for i, r := range desired {
			if err := rules.ValidateRule(r); err != nil {
				return fmt.Errorf("rule %d (%q): %w", i+1, r.Name, err)
			}
		}

		c, err := newClient(true)
		if err != nil {
			return err
		}

		existing, err := c.ListRules(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list rules: %w", err)
		}

		ops := planApply(existing, desired, applyPrune)
		out := cmd.OutOrStdout()

		if applyDryRun {
			fmt.Fprintln(out, "Dry run mode - the following changes would be applied:")
			for _, op := range ops {
				fmt.Fprintf(out, "  %-9s %s\n", op.Action, describeOp(op))
			}
			return nil
		}

		var succeeded, failed int
		for _, op := range ops {
			if verbose {
				fmt.Fprintf(out, "%s %s\n", op.Action, describeOp(op))
			}

			switch op.Action {
			case actionCreate:
				_, err = c.CreateRule(cmd.Context(), op.Rule)
			case actionUpdate:
				_, err = c.UpdateRule(cmd.Context(), op.ID, op.Rule)
			case actionDelete:
				err = c.DeleteRule(cmd.Context(), op.ID)
			default:
				continue
			}

			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to %s %s: %v\n", op.Action, describeOp(op), err)
				if !applyForce {
					return fmt.Errorf("apply failed, use --force to continue on errors")
				}
				continue
			}
			succeeded++
		}

		if !quiet {
			fmt.Fprintf(out, "Apply complete: %d changed, %d failed\n", succeeded, failed)
		}
		if failed > 0 {
			return fmt.Errorf("apply completed with errors")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().StringVarP(&applyFile, "file", "f", "", "Rule file (YAML or JSON)")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Show changes without applying them")
	applyCmd.Flags().BoolVar(&applyForce, "force", false, "Continue on errors")
	applyCmd.Flags().BoolVar(&applyPrune, "prune", false, "Delete server rules that are not in the file")
	_ = applyCmd.MarkFlagRequired("file")
}

// planApply diffs the desired rules against the server's. Existing rules
// are claimed at most once, by ID first and then by name.
func planApply(existing, desired []rules.Rule, prune bool) []applyOp {
	byID := make(map[int64]rules.Rule, len(existing))
	byName := make(map[string]int64, len(existing))
	for _, r := range existing {
		byID[r.ID] = r
		if _, dup := byName[ruleKey(r.Name)]; !dup {
			byName[ruleKey(r.Name)] = r.ID
		}
	}

	claimed := make(map[int64]bool)
	ops := make([]applyOp, 0, len(desired))
	for _, want := range desired {
		id := int64(0)
		if _, ok := byID[want.ID]; ok && want.ID != 0 && !claimed[want.ID] {
			id = want.ID
		} else if match, ok := byName[ruleKey(want.Name)]; ok && !claimed[match] {
			id = match
		}

		want.ID = 0
		if id == 0 {
			ops = append(ops, applyOp{Action: actionCreate, Rule: want})
			continue
		}

		claimed[id] = true
		action := actionUpdate
		if sameRule(byID[id], want) {
			action = actionUnchanged
		}
		ops = append(ops, applyOp{Action: action, ID: id, Rule: want})
	}

	if prune {
		for _, r := range existing {
			if !claimed[r.ID] {
				ops = append(ops, applyOp{Action: actionDelete, ID: r.ID, Rule: r})
			}
		}
	}
	return ops
}

func ruleKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sameRule(a, b rules.Rule) bool {
	return a.Name == b.Name &&
		a.Description == b.Description &&
		a.Enabled == b.Enabled &&
		a.MatchMode == b.MatchMode &&
		slices.Equal(a.Conditions, b.Conditions)
}

func describeOp(op applyOp) string {
	if op.ID == 0 {
		return fmt.Sprintf("rule %q", op.Rule.Name)
	}
	return fmt.Sprintf("rule %d %q", op.ID, op.Rule.Name)
}
