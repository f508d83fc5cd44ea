package picker

import (
	"regexp"
	"strings"

	"metabuild/internal/build"
	"metabuild/internal/items"
)

// Signal names an enemy capability the scorer reacts to
type Signal string

const (
	SignalInvis   Signal = "invis"
	SignalHealing Signal = "healing"
	SignalSilence Signal = "silence"
	SignalStuns   Signal = "stuns"
)

// SignalRule sets a signal when an enemy hero name matches Heroes or an
// enemy owns one of Items
type SignalRule struct {
	Signal Signal
	Heroes *regexp.Regexp
	Items  []string
}

// SignalRules is the signal detection table. Hero name fragments must be
// bounded by non-letters, so display names ("Bounty Hunter") and internal
// names ("npc_dota_hero_bounty_hunter") both match while "io" never matches
// inside "lion".
var SignalRules = []SignalRule{
	{
		Signal: SignalInvis,
		Heroes: regexp.MustCompile(`(^|[^a-z])(riki|bounty|clinkz|nyx|templar|weaver)([^a-z]|$)`),
		Items:  []string{"item_shadow_blade", "item_silver_edge", "item_glimmer_cape"},
	},
	{
		Signal: SignalHealing,
		Heroes: regexp.MustCompile(`(^|[^a-z])(huskar|alchemist|necrophos|io|warlock|oracle)([^a-z]|$)`),
		Items:  []string{"item_holy_locket", "item_mechanism", "item_guardian_greaves"},
	},
	{
		Signal: SignalSilence,
		Items:  []string{"item_orchid", "item_bloodthorn", "item_silence"},
	},
	{
		Signal: SignalStuns,
		Items:  []string{"item_sheepstick", "item_abyssal_blade", "item_basher"},
	},
}

// Signals is the set of detected enemy capabilities
type Signals map[Signal]bool

// Disable reports whether silences or stuns were detected
func (s Signals) Disable() bool {
	return s[SignalSilence] || s[SignalStuns]
}

// CollectSignals evaluates SignalRules against the enemy roster and enemy items
func CollectSignals(mc build.MatchContext) Signals {
	var raw []string
	for _, snap := range mc.EnemyItems {
		raw = append(raw, snap.Items...)
	}
	owned := make(map[string]bool)
	for _, name := range items.NormalizeAll(raw) {
		owned[name] = true
	}

	enemies := make([]string, 0, len(mc.Enemies))
	for _, e := range mc.Enemies {
		enemies = append(enemies, strings.ToLower(e))
	}

	out := make(Signals)
	for _, rule := range SignalRules {
		if matchesHero(rule.Heroes, enemies) || ownsAny(owned, rule.Items) {
			out[rule.Signal] = true
		}
	}
	return out
}

func matchesHero(re *regexp.Regexp, enemies []string) bool {
	if re == nil {
		return false
	}
	for _, e := range enemies {
		if re.MatchString(e) {
			return true
		}
	}
	return false
}

func ownsAny(owned map[string]bool, names []string) bool {
	for _, n := range names {
		if owned[n] {
			return true
		}
	}
	return false
}
