package picker

import (
	"slices"
	"strings"

	"metabuild/internal/build"
)

// Preferences lists the favoured items per mode, best first
var Preferences = map[string][]string{
	ModeMagic: {
		"item_kaya",
		"item_kaya_and_sange",
		"item_yasha_and_kaya",
		"item_octarine_core",
		"item_ultimate_scepter",
		"item_refresher",
		"item_shivas_guard",
		"item_ethereal_blade",
		"item_bloodstone",
		"item_witch_blade",
		"item_parasma",
		"item_sheepstick",
		"item_blink",
		"item_travel_boots",
	},
	ModeTank: {
		"item_heart",
		"item_shivas_guard",
		"item_assault",
		"item_crimson_guard",
		"item_pipe",
		"item_lotus_orb",
		"item_blade_mail",
		"item_heavens_halberd",
		"item_eternal_shroud",
		"item_black_king_bar",
	},
	ModeUtility: {
		"item_force_staff",
		"item_glimmer_cape",
		"item_lotus_orb",
		"item_solar_crest",
		"item_pipe",
		"item_crimson_guard",
		"item_guardian_greaves",
		"item_spirit_vessel",
		"item_blink",
		"item_smoke_of_deceit",
	},
	ModeGreed: {
		"item_hand_of_midas",
		"item_maelstrom",
		"item_mjollnir",
		"item_radiance",
		"item_battlefury",
		"item_travel_boots",
		"item_black_king_bar",
	},
}

// GroupRank places an item in an upgrade family. Higher ranks supersede lower ones.
type GroupRank struct {
	Group string
	Rank  int
}

// Groups holds the mutually exclusive upgrade families
var Groups = map[string]GroupRank{
	"item_magic_stick":     {"stick", 1},
	"item_magic_wand":      {"stick", 2},
	"item_holy_locket":     {"stick", 3},
	"item_urn_of_shadows":  {"urn", 1},
	"item_spirit_vessel":   {"urn", 2},
	"item_yasha":           {"yasha_combo", 1},
	"item_sange":           {"yasha_combo", 1},
	"item_kaya":            {"yasha_combo", 1},
	"item_manta":           {"yasha_combo", 2},
	"item_sange_and_yasha": {"yasha_combo", 2},
	"item_kaya_and_sange":  {"yasha_combo", 2},
	"item_yasha_and_kaya":  {"yasha_combo", 2},
}

var (
	supportUtility = []string{"item_force_staff", "item_glimmer_cape", "item_solar_crest", "item_pipe"}
	supportFarm    = []string{"item_hand_of_midas", "item_battlefury"}
	coreVision     = []string{"item_smoke_of_deceit", "item_ward_observer"}
	latePower      = []string{"item_refresher", "item_octarine_core"}
	detection      = []string{"item_dust", "item_gem"}
)

const (
	antiHealItem     = "item_spirit_vessel"
	spellImmuneItem  = "item_black_king_bar"
	preferenceBase   = 60
	antiHealBonus    = 30
	detectionSupport = 25
	detectionCore    = 5
	disableBonus     = 25
	supportUtilBonus = 10
	supportFarmMalus = 25
	coreVisionMalus  = 20
	latePowerMalus   = 20
	bootsBonus       = 8
	greedCoreBonus   = 5
)

// scoreInput is everything an item score depends on besides the item
type scoreInput struct {
	mode    string
	stage   build.Stage
	signals Signals
	pos     int
	support bool
}

// score rates one candidate. Scores only matter relative to each other.
func score(item string, in scoreInput) int {
	total := 0

	if idx := slices.Index(Preferences[in.mode], item); idx >= 0 {
		total += preferenceBase - idx
	}

	if in.signals[SignalHealing] && item == antiHealItem {
		total += antiHealBonus
	}
	if in.signals[SignalInvis] && slices.Contains(detection, item) {
		if in.support {
			total += detectionSupport
		} else {
			total += detectionCore
		}
	}
	if in.signals.Disable() && item == spellImmuneItem {
		total += disableBonus
	}

	if in.support {
		if slices.Contains(supportUtility, item) {
			total += supportUtilBonus
		}
		if slices.Contains(supportFarm, item) {
			total -= supportFarmMalus
		}
	} else if slices.Contains(coreVision, item) {
		total -= coreVisionMalus
	}

	if in.stage.Bias() <= 1 && slices.Contains(latePower, item) {
		total -= latePowerMalus
	}

	if (in.stage == build.StageStarting || in.stage == build.StageEarly) && strings.Contains(item, "boots") {
		total += bootsBonus
	}

	if !in.support && (in.pos == 1 || in.pos == 2) && in.mode == ModeGreed {
		total += greedCoreBonus
	}

	return total
}
