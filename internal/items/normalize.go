package items

import (
	"regexp"
	"strings"
)

// Prefix is the namespace token every canonical item name carries
const Prefix = "item_"

// aliases maps shorthand and legacy spellings to canonical names.
// Targets are canonical names and never keys, so normalization is idempotent.
var aliases = map[string]string{
	"bkb":              "item_black_king_bar",
	"item_bkb":         "item_black_king_bar",
	"bfury":            "item_battlefury",
	"item_bfury":       "item_battlefury",
	"item_battle_fury": "item_battlefury",
	"battle_fury":      "item_battlefury",
	"mkb":              "item_monkey_king_bar",
	"item_mkb":         "item_monkey_king_bar",
	"bots":             "item_boots_of_travel",
	"item_bots":        "item_boots_of_travel",
}

var (
	quoteChars   = strings.NewReplacer("`", "", `"`, "", "'", "", "[", "", "]", "")
	whitespaceRe = regexp.MustCompile(`\s+`)
	invalidRe    = regexp.MustCompile(`[^a-z0-9_]`)
)

// Normalize converts a raw item reference into its canonical name.
// Returns "" when nothing usable remains.
func Normalize(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = quoteChars.Replace(value)
	value = whitespaceRe.ReplaceAllString(value, "_")
	value = invalidRe.ReplaceAllString(value, "")
	if value == "" {
		return ""
	}

	if alias, ok := aliases[value]; ok {
		value = alias
	}
	if !strings.HasPrefix(value, Prefix) {
		value = Prefix + value
	}
	if alias, ok := aliases[value]; ok {
		value = alias
	}
	return value
}

// NormalizeAll normalizes every entry, dropping empties and duplicates
func NormalizeAll(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		name := Normalize(r)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// DisplayName strips the namespace prefix for human-facing text
func DisplayName(name string) string {
	return strings.TrimPrefix(name, Prefix)
}
