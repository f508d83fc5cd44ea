package picker

import (
	"regexp"
	"strings"
)

// Pattern maps a text pattern to a result
type Pattern struct {
	Re     *regexp.Regexp
	Result string
}

// FirstMatch returns the result of the first pattern matching text, or ""
func FirstMatch(patterns []Pattern, text string) string {
	for _, p := range patterns {
		if p.Re.MatchString(text) {
			return p.Result
		}
	}
	return ""
}

// Build modes
const (
	ModeNone    = ""
	ModeMagic   = "magic"
	ModeTank    = "tank"
	ModeUtility = "utility"
	ModeGreed   = "greed"
)

// ModePatterns classifies free text into a mode. English and Russian wording
// is recognised; order matters.
var ModePatterns = []Pattern{
	{regexp.MustCompile(`(?i)\b(magic|magical|caster|spell|ap)\b`), ModeMagic},
	{regexp.MustCompile(`(?i)(маг|магич|магии|кастер|заклин)`), ModeMagic},
	{regexp.MustCompile(`(?i)\b(tank|tanky|frontline)\b`), ModeTank},
	{regexp.MustCompile(`(?i)(танк|жир|толст)`), ModeTank},
	{regexp.MustCompile(`(?i)\b(utility|support|save)\b`), ModeUtility},
	{regexp.MustCompile(`(?i)(утил|сейв|саппорт|поддерж)`), ModeUtility},
	{regexp.MustCompile(`(?i)\b(greed|greedy|farm)\b`), ModeGreed},
	{regexp.MustCompile(`(?i)(жадн|фарм)`), ModeGreed},
}

// ExtractMode classifies a question into one of the build modes
func ExtractMode(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ModeNone
	}
	return FirstMatch(ModePatterns, text)
}
