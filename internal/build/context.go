package build

import "strings"

// ItemSnapshot is the item inventory observed on one ally or enemy hero
type ItemSnapshot struct {
	Hero  string   `json:"hero"`
	Items []string `json:"items"`
}

// MatchContext describes the requester's situation for one recommendation
type MatchContext struct {
	HeroID       int            `json:"hero_id"`
	Pos          int            `json:"pos"`
	TimeS        int            `json:"time_s"`
	Facet        string         `json:"facet,omitempty"`
	CurrentItems []string       `json:"current_items"`
	Allies       []string       `json:"allies"`
	Enemies      []string       `json:"enemies"`
	EnemyItems   []ItemSnapshot `json:"enemy_items,omitempty"`
	AllyItems    []ItemSnapshot `json:"ally_items,omitempty"`
}

// LowerSet returns the trimmed, lower-cased values of items as a set
func LowerSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		key := normalizeKey(item)
		if key == "" {
			continue
		}
		set[key] = true
	}
	return set
}

// EnemyNames returns lower-cased enemy names
func (mc MatchContext) EnemyNames() []string {
	return lowerAll(mc.Enemies)
}

func lowerAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.ToLower(strings.TrimSpace(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
