package items

import (
	"reflect"
	"testing"
)

// TestNormalize tests canonicalization of raw item references
func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"bkb", "item_black_king_bar"},
		{"ITEM_BKB", "item_black_king_bar"},
		{"  Black King Bar ", "item_black_king_bar"},
		{"`blink`", "item_blink"},
		{"[\"force staff\"]", "item_force_staff"},
		{"battle_fury", "item_battlefury"},
		{"mkb", "item_monkey_king_bar"},
		{"bots", "item_boots_of_travel"},
		{"item_heart", "item_heart"},
		{"Shiva's Guard", "item_shivas_guard"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// TestNormalize_Idempotent tests that normalizing a normalized name is a no-op
func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"bkb", "bfury", "item_mkb", "Eye of Skadi", "item_blink", "x", "BoTs", "item_item_x"}
	for key, value := range aliases {
		inputs = append(inputs, key, value)
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

// TestNormalizeAll tests that empties and duplicates are dropped in order
func TestNormalizeAll(t *testing.T) {
	got := NormalizeAll([]string{"bkb", "item_black_king_bar", "", "blink", "BLINK"})
	want := []string{"item_black_king_bar", "item_blink"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

// TestPurpose tests item purpose lookups
func TestPurpose(t *testing.T) {
	if p, ok := Purpose("bkb"); !ok || p == "" {
		t.Errorf("Expected purpose for bkb, got %q (%v)", p, ok)
	}
	if _, ok := Purpose("item_tango"); ok {
		t.Error("Expected no purpose for tango")
	}
	if _, ok := Purpose(""); ok {
		t.Error("Expected no purpose for empty input")
	}
}
