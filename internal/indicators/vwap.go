package indicators

import (
	"math"

	"practice-trading-engine/internal/market"
)

// ============================================================================
// VWAP (Volume-Weighted Average Price)
// ============================================================================

// VWAP calculates the session-scoped volume-weighted average price series.
//
// A session is the calendar date of the bar's timestamp in the market time
// zone; the running accumulators reset to zero on every date change. When
// cumulative volume is zero the bar's typical price is emitted instead, so
// the output is always well-defined and the same length as the input.
func VWAP(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))

	var cumPV, cumVol float64
	session := ""

	for i, bar := range bars {
		date := market.SessionDate(bar.OpenTime)
		if date != session {
			session = date
			cumPV = 0
			cumVol = 0
		}

		typical := bar.TypicalPrice()
		cumPV += typical * bar.Volume
		cumVol += bar.Volume

		if cumVol == 0 {
			out[i] = typical
		} else {
			out[i] = cumPV / cumVol
		}
	}

	return out
}

// VWAPBands holds the VWAP series with standard-deviation bands.
// All five slices are parallel to the input bar sequence.
type VWAPBands struct {
	VWAP   []float64
	Upper1 []float64 // VWAP + 1 std dev
	Lower1 []float64 // VWAP - 1 std dev
	Upper2 []float64 // VWAP + 2 std dev
	Lower2 []float64 // VWAP - 2 std dev
}

// CalculateVWAPBands calculates VWAP with +-1 and +-2 standard deviation
// bands. The variance estimate is the volume-weighted E[X^2] - E[X]^2,
// accumulated and reset on the same session boundaries as VWAP itself, and
// clamped at zero before the square root so degenerate inputs can never
// produce NaN bands. With zero cumulative volume all bands collapse to the
// VWAP value.
func CalculateVWAPBands(bars []market.Bar) *VWAPBands {
	n := len(bars)
	bands := &VWAPBands{
		VWAP:   make([]float64, n),
		Upper1: make([]float64, n),
		Lower1: make([]float64, n),
		Upper2: make([]float64, n),
		Lower2: make([]float64, n),
	}

	var cumPV, cumPV2, cumVol float64
	session := ""

	for i, bar := range bars {
		date := market.SessionDate(bar.OpenTime)
		if date != session {
			session = date
			cumPV = 0
			cumPV2 = 0
			cumVol = 0
		}

		typical := bar.TypicalPrice()
		cumPV += typical * bar.Volume
		cumPV2 += typical * typical * bar.Volume
		cumVol += bar.Volume

		var vwap, stdDev float64
		if cumVol == 0 {
			vwap = typical
		} else {
			vwap = cumPV / cumVol
			variance := cumPV2/cumVol - vwap*vwap
			if variance < 0 {
				variance = 0
			}
			stdDev = math.Sqrt(variance)
		}

		bands.VWAP[i] = vwap
		bands.Upper1[i] = vwap + stdDev
		bands.Lower1[i] = vwap - stdDev
		bands.Upper2[i] = vwap + 2*stdDev
		bands.Lower2[i] = vwap - 2*stdDev
	}

	return bands
}
