package store

import (
	"context"
	"fmt"
	"time"
)

// DefaultHotHeroes are refreshed by the batch job when nothing else is configured
var DefaultHotHeroes = []int{1, 94, 114}

// DefaultRules is the rule set installed on an empty database
var DefaultRules = []RuleRow{
	{
		Name:       "Counter evasion with MKB",
		Enabled:    true,
		Priority:   10,
		Conditions: []byte(`{"enemy_names_any":["Phantom Assassin","Brewmaster","Riki"]}`),
		Actions:    []byte(`{"adjustments":[{"reason":"Enemy evasion detected","stage":"mid","add":["item_monkey_king_bar"],"remove":[]}]}`),
	},
	{
		Name:       "Rush BKB against heavy disable burst",
		Enabled:    true,
		Priority:   20,
		Conditions: []byte(`{"enemy_names_any":["Lion","Shadow Shaman","Puck","Skywrath Mage"],"pos_max":3}`),
		Actions:    []byte(`{"adjustments":[{"reason":"Enemy disable + magic burst","stage":"early","add":["item_black_king_bar"],"remove":[]}]}`),
	},
	{
		Name:       "Anti-heal for cores",
		Enabled:    true,
		Priority:   30,
		Conditions: []byte(`{"enemy_names_any":["Necrophos","Chen","Io","Dazzle","Omniknight"],"pos_max":3}`),
		Actions:    []byte(`{"adjustments":[{"reason":"Enemy sustain lineup","stage":"late","add":["item_eye_of_skadi"],"remove":[]}]}`),
	},
	{
		Name:       "Anti-heal for supports",
		Enabled:    true,
		Priority:   40,
		Conditions: []byte(`{"enemy_names_any":["Necrophos","Chen","Io","Dazzle","Omniknight"],"pos_min":4}`),
		Actions:    []byte(`{"adjustments":[{"reason":"Enemy sustain lineup","stage":"mid","add":["item_spirit_vessel"],"remove":[]},{"reason":"Enemy sustain lineup","stage":"late","add":["item_shivas_guard"],"remove":[]}]}`),
	},
}

// Bootstrap creates the schema, installs missing default rules and adds hot heroes.
// It is safe to run on every start.
func Bootstrap(ctx context.Context, s Store, hotHeroes []int, now time.Time) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	for _, rule := range DefaultRules {
		rule.CreatedAt = now
		if _, err := s.InsertRuleIfMissing(ctx, rule); err != nil {
			return fmt.Errorf("failed to seed rule %q: %w", rule.Name, err)
		}
	}

	if len(hotHeroes) == 0 {
		hotHeroes = DefaultHotHeroes
	}
	if err := s.AddHotHeroes(ctx, hotHeroes, now); err != nil {
		return fmt.Errorf("failed to seed hot heroes: %w", err)
	}

	return nil
}
