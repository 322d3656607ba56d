package levels

import (
	"fmt"
	"math"
	"sort"

	"practice-trading-engine/internal/market"
)

// Scoring weights and thresholds. These values are carried over from the
// original tuning and are not derived from any ground truth; tests should
// assert rank order rather than exact scores.
const (
	proximityWeight = 0.6
	strengthWeight  = 0.4

	// proximityDecayPerPercent controls how fast the proximity score falls
	// off: the score reaches zero 5% away from the level.
	proximityDecayPerPercent = 20.0

	// DefaultAtLevelPercent is the relative distance below which a price is
	// considered "at" a level.
	DefaultAtLevelPercent = 0.3

	atLevelBonus = 10
)

// GetTopLevels scores every level against the reference price and returns
// the count highest-scoring ones. Score = 0.6*proximity + 0.4*strength,
// where proximity decays linearly with relative distance and floors at 0.
func GetTopLevels(catalog []KeyLevel, price float64, count int) []KeyLevel {
	if len(catalog) == 0 || price <= 0 || count <= 0 {
		return nil
	}

	type scored struct {
		level KeyLevel
		score float64
	}

	scoredLevels := make([]scored, 0, len(catalog))
	for _, level := range catalog {
		distPct := math.Abs(level.Price-price) / price * 100
		proximity := 100 - distPct*proximityDecayPerPercent
		if proximity < 0 {
			proximity = 0
		}
		scoredLevels = append(scoredLevels, scored{
			level: level,
			score: proximityWeight*proximity + strengthWeight*float64(level.Strength),
		})
	}

	sort.SliceStable(scoredLevels, func(i, j int) bool {
		return scoredLevels[i].score > scoredLevels[j].score
	})

	if count > len(scoredLevels) {
		count = len(scoredLevels)
	}
	out := make([]KeyLevel, count)
	for i := 0; i < count; i++ {
		out[i] = scoredLevels[i].level
	}
	return out
}

// LevelScore is the result of grading the current bar against the catalog.
type LevelScore struct {
	Score  int       `json:"score"`
	AtKey  bool      `json:"atKeyLevel"`
	Level  *KeyLevel `json:"level,omitempty"`
	Reason string    `json:"reason"`
}

// IsAtKeyLevel reports whether the bar is at the given level: either the
// relative distance from the close is within thresholdPercent, or the bar's
// high/low range straddles the level price.
func IsAtKeyLevel(bar market.Bar, level KeyLevel, thresholdPercent float64) bool {
	if level.Price <= 0 {
		return false
	}
	distPct := math.Abs(bar.Close-level.Price) / level.Price * 100
	if distPct <= thresholdPercent {
		return true
	}
	return bar.Low <= level.Price && level.Price <= bar.High
}

// CalculateLevelScore grades the bar's position relative to the catalog.
//
// At a level the score is the level's strength plus a small proximity bonus,
// capped at 100. Away from every level the score tiers down by distance to
// the nearest one (60/45/30) so an approach still earns partial credit
// instead of a binary miss.
func CalculateLevelScore(bar market.Bar, catalog []KeyLevel, thresholdPercent float64) LevelScore {
	if thresholdPercent <= 0 {
		thresholdPercent = DefaultAtLevelPercent
	}
	if len(catalog) == 0 {
		return LevelScore{Score: 30, Reason: "No key levels identified"}
	}

	// Find the nearest level while checking for an at-level hit.
	nearest := catalog[0]
	nearestDist := math.Abs(bar.Close - nearest.Price)
	for _, level := range catalog {
		if IsAtKeyLevel(bar, level, thresholdPercent) {
			distPct := math.Abs(bar.Close-level.Price) / level.Price * 100
			score := level.Strength + atLevelBonus
			if score > 100 {
				score = 100
			}
			lvl := level
			return LevelScore{
				Score:  score,
				AtKey:  true,
				Level:  &lvl,
				Reason: fmt.Sprintf("At %s (%.2f%% away)", level.Label, distPct),
			}
		}
		if d := math.Abs(bar.Close - level.Price); d < nearestDist {
			nearest = level
			nearestDist = d
		}
	}

	distPct := nearestDist / nearest.Price * 100
	lvl := nearest
	switch {
	case distPct <= 1.0:
		return LevelScore{
			Score:  60,
			Level:  &lvl,
			Reason: fmt.Sprintf("Approaching %s (%.2f%% away)", nearest.Label, distPct),
		}
	case distPct <= 2.0:
		return LevelScore{
			Score:  45,
			Level:  &lvl,
			Reason: fmt.Sprintf("In range of %s (%.2f%% away)", nearest.Label, distPct),
		}
	default:
		return LevelScore{
			Score:  30,
			Level:  &lvl,
			Reason: fmt.Sprintf("No key level nearby; closest is %s (%.2f%% away)", nearest.Label, distPct),
		}
	}
}
