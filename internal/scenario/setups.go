package scenario

import (
	"math/rand"

	"practice-trading-engine/internal/levels"
)

// SetupType names a canonical multi-phase trade setup.
type SetupType string

const (
	SetupSupportBounce       SetupType = "support_bounce"
	SetupResistanceRejection SetupType = "resistance_rejection"
	SetupVWAPReclaim         SetupType = "vwap_reclaim"
	SetupBearTrap            SetupType = "bear_trap"
	SetupORBBreakout         SetupType = "orb_breakout"
	SetupPatienceTest        SetupType = "patience_test"
	SetupGapFill             SetupType = "gap_fill"
	SetupTrendExhaustion     SetupType = "trend_exhaustion"
	SetupBelowVWAPShort      SetupType = "below_vwap_short"
)

// setupTemplate is the fixed phase choreography for one named setup. The
// %-offset targets relative to the base price and its key level are what
// make the sequence read as the named pattern instead of random noise.
type setupTemplate struct {
	title       string
	action      Action
	phases      func(base float64) []Phase
	levels      func(base float64) []levels.KeyLevel
	decision    string
	explanation string
}

var setupTemplates = map[SetupType]setupTemplate{
	SetupSupportBounce: {
		title:  "Support Bounce",
		action: ActionLong,
		phases: func(base float64) []Phase {
			support := base * 0.995
			return []Phase{
				{Name: "initial uptrend", Bars: 30, Target: base * 1.012, Volatility: 1.0, Trend: 1.0, VolumeShape: VolumeNormal},
				{Name: "pullback to support", Bars: 30, Target: support, Volatility: 1.0, Trend: 1.0, VolumeShape: VolumeDecreasing},
				{Name: "consolidation at support", Bars: 25, Target: support * 1.001, Volatility: 0.5, Trend: 0.4, VolumeShape: VolumeDecreasing},
				{Name: "bounce", Bars: 15, Target: support * 1.005, Volatility: 0.9, Trend: 0.9, VolumeShape: VolumeIncreasing},
			}
		},
		levels: func(base float64) []levels.KeyLevel {
			return []levels.KeyLevel{
				{Price: base * 0.995, Label: "PDL", Type: levels.TypeSupport, Strength: 90, Timeframe: levels.TimeframeDaily},
				{Price: base * 1.012, Label: "Morning High", Type: levels.TypeResistance, Strength: 75, Timeframe: levels.TimeframeIntraday},
			}
		},
		decision:    "Price has pulled back to support and the candles are shrinking. Long, short, or wait?",
		explanation: "An orderly pullback to defended support inside an uptrend, with indecision candles at the level, is a long entry.",
	},
	SetupResistanceRejection: {
		title:  "Resistance Rejection",
		action: ActionShort,
		phases: func(base float64) []Phase {
			resistance := base * 1.008
			return []Phase{
				{Name: "rally toward resistance", Bars: 35, Target: resistance * 0.999, Volatility: 1.0, Trend: 1.0, VolumeShape: VolumeNormal},
				{Name: "test of resistance", Bars: 25, Target: resistance, Volatility: 1.1, Trend: 0.6, VolumeShape: VolumeClimax},
				{Name: "stall under the level", Bars: 25, Target: resistance * 0.997, Volatility: 0.5, Trend: 0.4, VolumeShape: VolumeDecreasing},
				{Name: "rollover", Bars: 15, Target: resistance * 0.990, Volatility: 0.9, Trend: 0.9, VolumeShape: VolumeIncreasing},
			}
		},
		levels: func(base float64) []levels.KeyLevel {
			return []levels.KeyLevel{
				{Price: base * 1.008, Label: "PDH", Type: levels.TypeResistance, Strength: 90, Timeframe: levels.TimeframeDaily},
				{Price: base * 0.996, Label: "Morning Low", Type: levels.TypeSupport, Strength: 70, Timeframe: levels.TimeframeIntraday},
			}
		},
		decision:    "Price is stalling under overhead resistance after a climactic test. What is your move?",
		explanation: "A rally that stalls with shrinking bodies under a tested resistance is a short; the level held on the highest-volume push.",
	},
	SetupVWAPReclaim: {
		title:  "VWAP Reclaim",
		action: ActionLong,
		phases: func(base float64) []Phase {
			vwap := base * 0.998
			return []Phase{
				{Name: "morning selloff", Bars: 30, Target: base * 0.990, Volatility: 1.1, Trend: 1.0, VolumeShape: VolumeClimax},
				{Name: "base under vwap", Bars: 30, Target: base * 0.991, Volatility: 0.4, Trend: 0.3, VolumeShape: VolumeDecreasing},
				{Name: "reclaim push", Bars: 25, Target: vwap * 1.004, Volatility: 1.0, Trend: 1.0, VolumeShape: VolumeIncreasing},
				{Name: "hold above vwap", Bars: 15, Target: vwap * 1.005, Volatility: 0.5, Trend: 0.4, VolumeShape: VolumeNormal},
			}
		},
		levels: func(base float64) []levels.KeyLevel {
			return []levels.KeyLevel{
				{Price: base * 0.998, Label: "VWAP", Type: levels.TypeVWAP, Strength: 85, Timeframe: levels.TimeframeIntraday},
				{Price: base * 0.990, Label: "Morning Low", Type: levels.TypeSupport, Strength: 75, Timeframe: levels.TimeframeIntraday},
			}
		},
		decision:    "Price has pushed back through VWAP and is holding the retest. Real reversal or lower high?",
		explanation: "VWAP flipping from resistance to support on a held retest marks the intraday character change; the long works while it holds.",
	},
	SetupBearTrap: {
		title:  "Failed Breakdown",
		action: ActionLong,
		phases: func(base float64) []Phase {
			support := base * 0.993
			return []Phase{
				{Name: "drift toward support", Bars: 30, Target: support * 1.002, Volatility: 0.9, Trend: 0.9, VolumeShape: VolumeNormal},
				{Name: "breakdown", Bars: 20, Target: support * 0.996, Volatility: 1.2, Trend: 1.0, VolumeShape: VolumeClimax},
				{Name: "reclaim snap", Bars: 25, Target: support * 1.004, Volatility: 1.1, Trend: 1.1, VolumeShape: VolumeIncreasing},
				{Name: "short squeeze", Bars: 25, Target: base * 1.004, Volatility: 0.9, Trend: 0.9, VolumeShape: VolumeNormal},
			}
		},
		levels: func(base float64) []levels.KeyLevel {
			return []levels.KeyLevel{
				{Price: base * 0.993, Label: "Support Shelf", Type: levels.TypeSupport, Strength: 90, Timeframe: levels.TimeframeDaily},
				{Price: base * 1.005, Label: "PDH", Type: levels.TypeResistance, Strength: 75, Timeframe: levels.TimeframeDaily},
			}
		},
		decision:    "The breakdown found no follow-through and price snapped back above the shelf. Chase, fade, or wait?",
		explanation: "A failed breakdown traps sellers below the level; the reclaim is the signal and the squeeze is the trade.",
	},
	SetupORBBreakout: {
		title:  "Opening Range Breakout",
		action: ActionLong,
		phases: func(base float64) []Phase {
			orHigh := base * 1.004
			return []Phase{
				{Name: "opening range", Bars: 30, Target: base * 1.001, Volatility: 0.8, Trend: 0.3, VolumeShape: VolumeNormal},
				{Name: "coil under range high", Bars: 25, Target: orHigh * 0.999, Volatility: 0.5, Trend: 0.5, VolumeShape: VolumeDecreasing},
				{Name: "breakout", Bars: 20, Target: orHigh * 1.006, Volatility: 1.2, Trend: 1.1, VolumeShape: VolumeClimax},
				{Name: "follow-through", Bars: 25, Target: orHigh * 1.009, Volatility: 0.8, Trend: 0.8, VolumeShape: VolumeIncreasing},
			}
		},
		levels: func(base float64) []levels.KeyLevel {
			return []levels.KeyLevel{
				{Price: base * 1.004, Label: "OR High", Type: levels.TypeOpeningRange, Strength: 80, Timeframe: levels.TimeframeIntraday},
				{Price: base * 0.998, Label: "OR Low", Type: levels.TypeOpeningRange, Strength: 75, Timeframe: levels.TimeframeIntraday},
			}
		},
		decision:    "Price is coiling just under the opening-range high on drying volume. What do you do?",
		explanation: "A tight coil under the range high resolves upward on expanding volume; the breakout carries while volume confirms.",
	},
	SetupPatienceTest: {
		title:  "Patience Test",
		action: ActionWait,
		phases: func(base float64) []Phase {
			return []Phase{
				{Name: "drift to the level", Bars: 30, Target: base * 1.002, Volatility: 0.8, Trend: 0.7, VolumeShape: VolumeNormal},
				{Name: "chop at the level", Bars: 30, Target: base * 0.999, Volatility: 0.4, Trend: 0.2, VolumeShape: VolumeDecreasing},
				{Name: "fakeout push", Bars: 20, Target: base * 1.004, Volatility: 1.1, Trend: 0.8, VolumeShape: VolumeClimax},
				{Name: "fade back to the level", Bars: 20, Target: base * 1.000, Volatility: 0.7, Trend: 0.8, VolumeShape: VolumeDecreasing},
			}
		},
		levels: func(base float64) []levels.KeyLevel {
			return []levels.KeyLevel{
				{Price: base * 1.000, Label: "Pivot", Type: levels.TypeRoundNumber, Strength: 80, Timeframe: levels.TimeframeDaily},
				{Price: base * 1.004, Label: "PDH", Type: levels.TypeResistance, Strength: 75, Timeframe: levels.TimeframeDaily},
			}
		},
		decision:    "Price keeps rotating around the level with no commitment either way. Is there a trade here?",
		explanation: "Two-sided chop around a level with a failed push in each direction is a no-trade; waiting is the correct action.",
	},
	SetupGapFill: {
		title:  "Gap Fill",
		action: ActionShort,
		phases: func(base float64) []Phase {
			fill := base * 0.988
			return []Phase{
				{Name: "gap-up open fade", Bars: 25, Target: base * 0.997, Volatility: 1.1, Trend: 0.8, VolumeShape: VolumeClimax},
				{Name: "weak bounce", Bars: 25, Target: base * 0.999, Volatility: 0.7, Trend: 0.5, VolumeShape: VolumeDecreasing},
				{Name: "rollover toward the gap", Bars: 30, Target: base * 0.992, Volatility: 0.9, Trend: 0.9, VolumeShape: VolumeIncreasing},
				{Name: "approach to the fill", Bars: 20, Target: fill * 1.001, Volatility: 0.8, Trend: 0.9, VolumeShape: VolumeNormal},
			}
		},
		levels: func(base float64) []levels.KeyLevel {
			return []levels.KeyLevel{
				{Price: base * 0.988, Label: "Gap Fill", Type: levels.TypeGap, Strength: 85, Timeframe: levels.TimeframeDaily},
				{Price: base, Label: "Gap High", Type: levels.TypeGap, Strength: 70, Timeframe: levels.TimeframeDaily},
			}
		},
		decision:    "The gap-up is fading and the bounce failed under the open. Where does this resolve?",
		explanation: "An unfilled gap below a failing open acts like a magnet; the short into the fill is the trade while bounces keep failing.",
	},
	SetupTrendExhaustion: {
		title:  "Trend Exhaustion",
		action: ActionShort,
		phases: func(base float64) []Phase {
			return []Phase{
				{Name: "persistent uptrend", Bars: 35, Target: base * 1.015, Volatility: 0.8, Trend: 1.0, VolumeShape: VolumeNormal},
				{Name: "acceleration", Bars: 20, Target: base * 1.022, Volatility: 1.2, Trend: 1.1, VolumeShape: VolumeClimax},
				{Name: "stall with long wicks", Bars: 25, Target: base * 1.020, Volatility: 1.0, Trend: 0.3, VolumeShape: VolumeDecreasing},
				{Name: "first break", Bars: 20, Target: base * 1.014, Volatility: 0.9, Trend: 0.9, VolumeShape: VolumeIncreasing},
			}
		},
		levels: func(base float64) []levels.KeyLevel {
			return []levels.KeyLevel{
				{Price: base * 1.022, Label: "Climax High", Type: levels.TypeResistance, Strength: 85, Timeframe: levels.TimeframeIntraday},
				{Price: base * 1.012, Label: "Breakout Shelf", Type: levels.TypeSupport, Strength: 70, Timeframe: levels.TimeframeIntraday},
			}
		},
		decision:    "The climax push is stalling with long upper wicks on heavy volume. Press longs, flip short, or wait?",
		explanation: "Climactic volume with no further progress is exhaustion; the first structure break after the stall confirms the short.",
	},
	SetupBelowVWAPShort: {
		title:  "Rejection Below VWAP",
		action: ActionShort,
		phases: func(base float64) []Phase {
			vwap := base * 1.004
			return []Phase{
				{Name: "bounce toward vwap", Bars: 30, Target: vwap * 0.999, Volatility: 0.9, Trend: 0.9, VolumeShape: VolumeNormal},
				{Name: "rejection at vwap", Bars: 25, Target: base * 0.999, Volatility: 1.0, Trend: 0.7, VolumeShape: VolumeClimax},
				{Name: "lower high", Bars: 25, Target: base * 1.000, Volatility: 0.5, Trend: 0.3, VolumeShape: VolumeDecreasing},
				{Name: "breakdown", Bars: 20, Target: base * 0.993, Volatility: 1.0, Trend: 1.0, VolumeShape: VolumeIncreasing},
			}
		},
		levels: func(base float64) []levels.KeyLevel {
			return []levels.KeyLevel{
				{Price: base * 1.004, Label: "VWAP", Type: levels.TypeVWAP, Strength: 85, Timeframe: levels.TimeframeIntraday},
				{Price: base * 0.993, Label: "Morning Low", Type: levels.TypeSupport, Strength: 75, Timeframe: levels.TimeframeIntraday},
			}
		},
		decision:    "The bounce just failed at VWAP and price is printing a lower high below it. What is your move?",
		explanation: "Below a falling VWAP the bounce is supply; the rejection plus lower high keeps the short side in control.",
	},
}

// setupsByDifficulty groups the canonical setups into tiers.
var setupsByDifficulty = map[Difficulty][]SetupType{
	DifficultyBeginner:     {SetupSupportBounce, SetupResistanceRejection, SetupORBBreakout},
	DifficultyIntermediate: {SetupVWAPReclaim, SetupGapFill, SetupBelowVWAPShort},
	DifficultyAdvanced:     {SetupBearTrap, SetupTrendExhaustion, SetupPatienceTest},
}

// fallbackSetupByDifficulty is the canonical setup used on the deterministic
// fallback path, one per tier.
var fallbackSetupByDifficulty = map[Difficulty]SetupType{
	DifficultyBeginner:     SetupSupportBounce,
	DifficultyIntermediate: SetupVWAPReclaim,
	DifficultyAdvanced:     SetupBearTrap,
}

// pickSetup chooses a setup for the request: an explicit request wins, then
// the narrative pattern when it names a known setup, then a random setup
// from the difficulty tier.
func pickSetup(requested SetupType, pattern string, difficulty Difficulty, rng *rand.Rand) SetupType {
	if _, ok := setupTemplates[requested]; ok && requested != "" {
		return requested
	}
	if _, ok := setupTemplates[SetupType(pattern)]; ok && pattern != "" {
		return SetupType(pattern)
	}

	tier, ok := setupsByDifficulty[difficulty]
	if !ok || len(tier) == 0 {
		return SetupSupportBounce
	}
	return tier[rng.Intn(len(tier))]
}
