// Package scenario produces the poker decision situation for a battle round.
// Generation is a pure function of (seed, round number): both participants
// derive identical content locally instead of shipping full payloads, and
// replays stay reproducible.
package scenario

import "math/rand"

// Tag - the closed set of preflop decision situations
type Tag string

const (
	TagRFI    Tag = "rfi"
	TagVsRFI  Tag = "vs_rfi"
	TagVs3Bet Tag = "vs_3bet"
)

var tags = []Tag{TagRFI, TagVsRFI, TagVs3Bet}

// Table positions: the five non-blind seats plus the big blind.
const (
	PosUTG = "UTG"
	PosMP  = "MP"
	PosHJ  = "HJ"
	PosCO  = "CO"
	PosBTN = "BTN"
	PosBB  = "BB"
)

var positions = []string{PosUTG, PosMP, PosHJ, PosCO, PosBTN, PosBB}

// openPositions are the seats a first-in raise can come from.
var openPositions = []string{PosUTG, PosMP, PosHJ, PosCO, PosBTN}

const ranks = "AKQJT98765432"

// Scenario describes one decision spot: where the hero sits, who they face,
// what situation they are in, and the hero's hole cards as one of the 169
// starting-hand classes (e.g. "AA", "AKs", "T9o").
type Scenario struct {
	Tag             Tag    `json:"tag"`
	HeroPosition    string `json:"hero_position"`
	VillainPosition string `json:"villain_position"`
	HeroHand        string `json:"hero_hand"`
}

// Generate derives the scenario for the given round deterministically from
// the seed. Same inputs always yield the same value; any int64 seed is valid.
func Generate(seed int64, roundNumber int) Scenario {
	// Mix the round number in so consecutive rounds of one battle differ.
	// The golden-ratio multiply wraps, so the mixing runs in uint64.
	mixed := uint64(seed) ^ uint64(roundNumber)*0x9E3779B97F4A7C15
	rng := rand.New(rand.NewSource(int64(mixed)))

	tag := tags[rng.Intn(len(tags))]

	var hero, villain string
	switch tag {
	case TagRFI:
		// Hero opens; the big blind is the seat left to contest it.
		hero = openPositions[rng.Intn(len(openPositions))]
		villain = PosBB
	case TagVsRFI:
		// Villain opened from any seat up to the button; hero defends from a
		// strictly later seat, the BB included.
		vi := rng.Intn(len(openPositions))
		villain = openPositions[vi]
		later := positions[vi+1:]
		hero = later[rng.Intn(len(later))]
	case TagVs3Bet:
		// Hero opened and faces a three-bet from a later seat.
		hi := rng.Intn(len(openPositions) - 1)
		hero = openPositions[hi]
		later := positions[hi+1:]
		villain = later[rng.Intn(len(later))]
	}

	return Scenario{
		Tag:             tag,
		HeroPosition:    hero,
		VillainPosition: villain,
		HeroHand:        handClass(rng.Intn(169)),
	}
}

// handClass maps an index in [0,169) onto the 13x13 starting-hand grid:
// the diagonal is pairs, above it suited combos, below it offsuit.
func handClass(idx int) string {
	i, j := idx/13, idx%13
	switch {
	case i == j:
		return string(ranks[i]) + string(ranks[i])
	case i < j:
		return string(ranks[i]) + string(ranks[j]) + "s"
	default:
		return string(ranks[j]) + string(ranks[i]) + "o"
	}
}
