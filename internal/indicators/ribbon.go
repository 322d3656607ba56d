package indicators

// ============================================================================
// EMA RIBBON
// ============================================================================

// Ribbon colors.
const (
	RibbonBullish = "bullish"
	RibbonBearish = "bearish"
	RibbonNeutral = "neutral"
)

// RibbonConfig holds the tunables for the EMA ribbon classifier.
type RibbonConfig struct {
	Periods            []int   // moving-average periods, shortest first
	AgreementThreshold float64 // fraction of pairwise comparisons that must agree
	StrengthMultiplier float64 // scales spread percent into the 0-100 range
	ExpansionThreshold float64 // relative spread change that counts as expansion
}

// DefaultRibbonConfig returns the standard ribbon configuration.
func DefaultRibbonConfig() RibbonConfig {
	return RibbonConfig{
		Periods:            []int{8, 10, 12, 14, 16, 18, 20, 21},
		AgreementThreshold: 0.70,
		StrengthMultiplier: 20,
		ExpansionThreshold: 0.05,
	}
}

// RibbonState is the per-bar classification of the EMA ribbon.
type RibbonState struct {
	Color       string  `json:"color"` // bullish, bearish, or neutral
	Strength    float64 `json:"strength"`
	TopValue    float64 `json:"topValue"`
	BottomValue float64 `json:"bottomValue"`
	Expanding   bool    `json:"expanding"`
	Contracting bool    `json:"contracting"`
}

// CalculateEMARibbon classifies the EMA ribbon for every bar.
//
// Per bar it counts how many adjacent EMA pairs are stacked shorter-above-
// longer (bullish) versus the reverse among the non-zero values; when the
// agreement ratio reaches the threshold on either side the bar is colored
// accordingly, otherwise it is neutral. Strength is the ribbon spread as a
// percentage of price scaled by StrengthMultiplier, capped at 100. The
// expanding/contracting flags compare the current spread percentage against
// the previous bar's using the expansion threshold. Bars with fewer than two
// valid EMA values degrade to neutral with zero strength.
func CalculateEMARibbon(closes []float64, cfg RibbonConfig) []RibbonState {
	states := make([]RibbonState, len(closes))
	if len(closes) == 0 || len(cfg.Periods) == 0 {
		return states
	}

	series := make([][]float64, len(cfg.Periods))
	for i, period := range cfg.Periods {
		series[i] = EMA(closes, period)
	}

	prevSpreadPct := 0.0
	for i := range closes {
		values := make([]float64, 0, len(cfg.Periods))
		for _, s := range series {
			if s[i] > 0 {
				values = append(values, s[i])
			}
		}

		state := RibbonState{Color: RibbonNeutral}
		if len(values) < 2 {
			state.TopValue = closes[i]
			state.BottomValue = closes[i]
			states[i] = state
			prevSpreadPct = 0
			continue
		}

		bullishPairs := 0
		bearishPairs := 0
		for j := 0; j < len(values)-1; j++ {
			if values[j] > values[j+1] {
				bullishPairs++
			} else if values[j] < values[j+1] {
				bearishPairs++
			}
		}

		totalPairs := len(values) - 1
		if float64(bullishPairs) >= cfg.AgreementThreshold*float64(totalPairs) {
			state.Color = RibbonBullish
		} else if float64(bearishPairs) >= cfg.AgreementThreshold*float64(totalPairs) {
			state.Color = RibbonBearish
		}

		top := values[0]
		bottom := values[0]
		for _, v := range values[1:] {
			if v > top {
				top = v
			}
			if v < bottom {
				bottom = v
			}
		}
		state.TopValue = top
		state.BottomValue = bottom

		spreadPct := 0.0
		if closes[i] > 0 {
			spreadPct = (top - bottom) / closes[i] * 100
		}
		state.Strength = spreadPct * cfg.StrengthMultiplier
		if state.Strength > 100 {
			state.Strength = 100
		}

		if i > 0 && prevSpreadPct > 0 {
			if spreadPct > prevSpreadPct*(1+cfg.ExpansionThreshold) {
				state.Expanding = true
			} else if spreadPct < prevSpreadPct*(1-cfg.ExpansionThreshold) {
				state.Contracting = true
			}
		}
		prevSpreadPct = spreadPct

		states[i] = state
	}

	return states
}
