// Package rules applies stored add/remove rules to a baseline build based on
// the match context.
package rules

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"metabuild/internal/build"
	"metabuild/internal/logging"
	"metabuild/internal/metrics"
	"metabuild/internal/store"

	"github.com/tidwall/gjson"
)

// Adjust is one stage edit declared by a rule
type Adjust struct {
	Reason string
	Stage  string
	Add    []string
	Remove []string
}

// Rule is a decoded, ready to evaluate rule
type Rule struct {
	ID         int64
	Name       string
	Priority   int
	Conditions []Condition
	Actions    []Adjust
}

// Adjustment records an edit that was applied
type Adjustment struct {
	Reason string      `json:"reason"`
	Stage  build.Stage `json:"stage"`
	Add    []string    `json:"add"`
	Remove []string    `json:"remove"`
}

// Matches reports whether every condition holds
func (r Rule) Matches(f Facts) bool {
	for _, c := range r.Conditions {
		if !c.Matches(f) {
			return false
		}
	}
	return true
}

// Compile decodes a stored rule. Payloads that are not JSON objects are rejected.
func Compile(row store.RuleRow) (Rule, error) {
	rule := Rule{ID: row.ID, Name: row.Name, Priority: row.Priority}

	conditions, err := object(row.Conditions, "conditions")
	if err != nil {
		return rule, err
	}
	actions, err := object(row.Actions, "actions")
	if err != nil {
		return rule, err
	}

	rule.Conditions = ParseConditions(conditions)

	for _, a := range actions.Get("adjustments").Array() {
		rule.Actions = append(rule.Actions, Adjust{
			Reason: a.Get("reason").String(),
			Stage:  strings.ToLower(a.Get("stage").String()),
			Add:    cleanList(a.Get("add")),
			Remove: cleanList(a.Get("remove")),
		})
	}

	return rule, nil
}

func object(raw []byte, field string) (gjson.Result, error) {
	if len(raw) == 0 {
		return gjson.Parse("{}"), nil
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("invalid %s JSON", field)
	}
	res := gjson.ParseBytes(raw)
	if res.Type == gjson.Null {
		return gjson.Parse("{}"), nil
	}
	if !res.IsObject() {
		return gjson.Result{}, fmt.Errorf("%s is not an object", field)
	}
	return res, nil
}

func cleanList(v gjson.Result) []string {
	out := []string{}
	if !v.IsArray() {
		return out
	}
	for _, el := range v.Array() {
		if el.Type == gjson.Null {
			continue
		}
		if s := el.String(); s != "" {
			out = append(out, s)
		}
	}
	return build.Dedupe(out)
}

// ApplyRules folds every matching rule over a copy of baseline, in
// (priority, id) order, and returns the result with its audit trail.
func ApplyRules(rules []Rule, baseline build.Build, mc build.MatchContext) (build.Build, []Adjustment) {
	ordered := slices.Clone(rules)
	slices.SortStableFunc(ordered, func(a, b Rule) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	final := baseline.Clone()
	facts := FactsFrom(mc)
	adjustments := []Adjustment{}

	for _, rule := range ordered {
		if !rule.Matches(facts) {
			continue
		}

		for _, action := range rule.Actions {
			stage, ok := build.ParseStage(action.Stage)
			if !ok {
				continue
			}

			final.Apply(stage, action.Add, action.Remove)
			adjustments = append(adjustments, Adjustment{
				Reason: reason(rule, action),
				Stage:  stage,
				Add:    action.Add,
				Remove: action.Remove,
			})
		}
	}

	metrics.RuleAdjustments.Add(float64(len(adjustments)))
	return final, adjustments
}

func reason(rule Rule, action Adjust) string {
	if action.Reason != "" {
		return action.Reason
	}
	if rule.Name != "" {
		return rule.Name
	}
	return fmt.Sprintf("rule_%d", rule.ID)
}

// RuleSource lists enabled rules
type RuleSource interface {
	ListEnabledRules(ctx context.Context) ([]store.RuleRow, error)
}

// Engine loads rules from storage for every evaluation
type Engine struct {
	source RuleSource
}

// NewEngine creates an engine reading rules from source
func NewEngine(source RuleSource) *Engine {
	return &Engine{source: source}
}

// Load reads and compiles enabled rules. Undecodable rules are skipped; a
// read failure is returned as is.
func (e *Engine) Load(ctx context.Context) ([]Rule, error) {
	rows, err := e.source.ListEnabledRules(ctx)
	if err != nil {
		return nil, err
	}

	rules := make([]Rule, 0, len(rows))
	for _, row := range rows {
		rule, err := Compile(row)
		if err != nil {
			logging.Warn().Err(err).Int64("rule_id", row.ID).Str("rule", row.Name).Msg("[Rules] Skipping undecodable rule")
			metrics.RulesSkipped.Inc()
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Apply loads the current rules and applies them to baseline
func (e *Engine) Apply(ctx context.Context, baseline build.Build, mc build.MatchContext) (build.Build, []Adjustment, error) {
	rules, err := e.Load(ctx)
	if err != nil {
		return build.Build{}, nil, fmt.Errorf("failed to load rules: %w", err)
	}

	final, adjustments := ApplyRules(rules, baseline, mc)
	return final, adjustments, nil
}
