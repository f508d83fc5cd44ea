package rules

import (
	"math"
	"strings"

	"metabuild/internal/build"

	"github.com/tidwall/gjson"
)

// Facts is the match context reduced to what conditions compare against
type Facts struct {
	Enemies map[string]bool
	Allies  map[string]bool
	Items   map[string]bool
	Pos     float64
	TimeS   float64
}

// FactsFrom lower-cases and trims the context's name and item lists
func FactsFrom(mc build.MatchContext) Facts {
	return Facts{
		Enemies: build.LowerSet(mc.Enemies),
		Allies:  build.LowerSet(mc.Allies),
		Items:   build.LowerSet(mc.CurrentItems),
		Pos:     float64(mc.Pos),
		TimeS:   float64(mc.TimeS),
	}
}

// Condition is one clause of a rule's predicate
type Condition interface {
	Matches(f Facts) bool
}

// NameField selects which name set a membership clause inspects
type NameField int

const (
	FieldEnemies NameField = iota
	FieldAllies
	FieldItems
)

func (f NameField) set(facts Facts) map[string]bool {
	switch f {
	case FieldEnemies:
		return facts.Enemies
	case FieldAllies:
		return facts.Allies
	case FieldItems:
		return facts.Items
	}
	return nil
}

// AnyOf matches when at least one name is present
type AnyOf struct {
	Field NameField
	Names []string
}

func (c AnyOf) Matches(f Facts) bool {
	set := c.Field.set(f)
	for _, n := range c.Names {
		if set[n] {
			return true
		}
	}
	return false
}

// AllOf matches when every name is present
type AllOf struct {
	Field NameField
	Names []string
}

func (c AllOf) Matches(f Facts) bool {
	set := c.Field.set(f)
	for _, n := range c.Names {
		if !set[n] {
			return false
		}
	}
	return true
}

// NoneOf matches when no name is present
type NoneOf struct {
	Field NameField
	Names []string
}

func (c NoneOf) Matches(f Facts) bool {
	return !AnyOf(c).Matches(f)
}

// NumField selects the numeric fact a range clause bounds
type NumField int

const (
	FieldPos NumField = iota
	FieldTime
)

// Range bounds a numeric fact inclusively. Nil bounds are open.
type Range struct {
	Field NumField
	Min   *float64
	Max   *float64
}

func (c Range) Matches(f Facts) bool {
	v := f.Pos
	if c.Field == FieldTime {
		v = f.TimeS
	}
	if c.Min != nil && v < *c.Min {
		return false
	}
	if c.Max != nil && v > *c.Max {
		return false
	}
	return true
}

// ParseConditions builds the clause list from a stored conditions object.
// Empty name lists and non-numeric bounds are treated as absent.
func ParseConditions(raw gjson.Result) []Condition {
	var out []Condition

	membership := []struct {
		key  string
		make func([]string) Condition
	}{
		{"enemy_names_any", func(n []string) Condition { return AnyOf{Field: FieldEnemies, Names: n} }},
		{"enemy_names_all", func(n []string) Condition { return AllOf{Field: FieldEnemies, Names: n} }},
		{"ally_names_any", func(n []string) Condition { return AnyOf{Field: FieldAllies, Names: n} }},
		{"current_items_has_any", func(n []string) Condition { return AnyOf{Field: FieldItems, Names: n} }},
		{"current_items_missing_all", func(n []string) Condition { return NoneOf{Field: FieldItems, Names: n} }},
	}
	for _, m := range membership {
		if names := lowerNames(raw.Get(m.key)); len(names) > 0 {
			out = append(out, m.make(names))
		}
	}

	if r := (Range{Field: FieldPos, Min: bound(raw.Get("pos_min")), Max: bound(raw.Get("pos_max"))}); r.Min != nil || r.Max != nil {
		out = append(out, r)
	}
	if r := (Range{Field: FieldTime, Min: bound(raw.Get("time_s_min")), Max: bound(raw.Get("time_s_max"))}); r.Min != nil || r.Max != nil {
		out = append(out, r)
	}

	return out
}

func lowerNames(v gjson.Result) []string {
	if !v.IsArray() {
		return nil
	}
	var out []string
	for _, el := range v.Array() {
		if el.Type == gjson.Null {
			continue
		}
		if s := strings.ToLower(strings.TrimSpace(el.String())); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func bound(v gjson.Result) *float64 {
	if v.Type != gjson.Number || math.IsInf(v.Num, 0) || math.IsNaN(v.Num) {
		return nil
	}
	n := v.Num
	return &n
}
