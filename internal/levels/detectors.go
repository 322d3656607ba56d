package levels

import (
	"fmt"
	"math"

	"practice-trading-engine/internal/indicators"
	"practice-trading-engine/internal/market"
)

// DefaultOpeningRangeMinutes is the length of the opening-range window.
const DefaultOpeningRangeMinutes = 15

// PrevDayLevels returns the previous day's high and low. The most recent
// daily bar is treated as today's still-forming bar, so "yesterday" is the
// second-to-last bar. Needs at least 2 daily bars.
func PrevDayLevels(daily []market.Bar) []KeyLevel {
	if len(daily) < 2 {
		return nil
	}

	yesterday := daily[len(daily)-2]
	return []KeyLevel{
		{Price: yesterday.High, Label: "PDH", Type: TypeResistance, Strength: 90, Timeframe: TimeframeDaily},
		{Price: yesterday.Low, Label: "PDL", Type: TypeSupport, Strength: 90, Timeframe: TimeframeDaily},
	}
}

// OpeningRangeLevels returns the high and low of the first windowMinutes of
// intraday bars, measured from the first bar's timestamp.
func OpeningRangeLevels(intraday []market.Bar, windowMinutes int) []KeyLevel {
	if len(intraday) == 0 {
		return nil
	}
	if windowMinutes <= 0 {
		windowMinutes = DefaultOpeningRangeMinutes
	}

	cutoff := intraday[0].OpenTime + int64(windowMinutes)*60*1000

	high := intraday[0].High
	low := intraday[0].Low
	for _, bar := range intraday {
		if bar.OpenTime >= cutoff {
			break
		}
		if bar.High > high {
			high = bar.High
		}
		if bar.Low < low {
			low = bar.Low
		}
	}

	return []KeyLevel{
		{Price: high, Label: "OR High", Type: TypeOpeningRange, Strength: 75, Timeframe: TimeframeIntraday},
		{Price: low, Label: "OR Low", Type: TypeOpeningRange, Strength: 75, Timeframe: TimeframeIntraday},
	}
}

// WeeklyLevels returns the high and low over the trailing 5 daily bars.
func WeeklyLevels(daily []market.Bar) []KeyLevel {
	if len(daily) < 5 {
		return nil
	}

	window := daily[len(daily)-5:]
	high := window[0].High
	low := window[0].Low
	for _, bar := range window[1:] {
		if bar.High > high {
			high = bar.High
		}
		if bar.Low < low {
			low = bar.Low
		}
	}

	return []KeyLevel{
		{Price: high, Label: "Weekly High", Type: TypeResistance, Strength: 80, Timeframe: TimeframeWeekly},
		{Price: low, Label: "Weekly Low", Type: TypeSupport, Strength: 80, Timeframe: TimeframeWeekly},
	}
}

// VWAPLevels returns the session VWAP and its +-1 standard deviation bands
// computed from intraday bars.
func VWAPLevels(intraday []market.Bar) []KeyLevel {
	if len(intraday) == 0 {
		return nil
	}

	bands := indicators.CalculateVWAPBands(intraday)
	last := len(intraday) - 1

	return []KeyLevel{
		{Price: bands.VWAP[last], Label: "VWAP", Type: TypeVWAP, Strength: 85, Timeframe: TimeframeIntraday},
		{Price: bands.Upper1[last], Label: "VWAP +1σ", Type: TypeVWAP, Strength: 70, Timeframe: TimeframeIntraday},
		{Price: bands.Lower1[last], Label: "VWAP -1σ", Type: TypeVWAP, Strength: 70, Timeframe: TimeframeIntraday},
	}
}

// roundIncrement selects the psychological price increment for a magnitude.
func roundIncrement(price float64) float64 {
	switch {
	case price >= 500:
		return 50
	case price >= 100:
		return 10
	case price >= 50:
		return 5
	case price >= 10:
		return 1
	default:
		return 0.5
	}
}

// RoundNumberLevels returns count psychological levels above and below the
// round value nearest the current price.
func RoundNumberLevels(price float64, count int) []KeyLevel {
	if price <= 0 || count <= 0 {
		return nil
	}

	increment := roundIncrement(price)
	nearest := math.Round(price/increment) * increment

	var out []KeyLevel
	for i := -count; i <= count; i++ {
		level := nearest + float64(i)*increment
		if level <= 0 {
			continue
		}
		out = append(out, KeyLevel{
			Price:     level,
			Label:     fmt.Sprintf("Round %s", formatPrice(level)),
			Type:      TypeRoundNumber,
			Strength:  60,
			Timeframe: TimeframeDaily,
		})
	}

	return out
}

// GapLevels compares today's open against yesterday's close. On a gap up,
// yesterday's close becomes the gap-fill target and today's open the gap
// high; symmetric for a gap down. Pre-market high/low are appended when
// supplied (non-zero).
func GapLevels(daily []market.Bar, preMarketHigh, preMarketLow float64) []KeyLevel {
	var out []KeyLevel

	if len(daily) >= 2 {
		yesterdayClose := daily[len(daily)-2].Close
		todayOpen := daily[len(daily)-1].Open

		if todayOpen > yesterdayClose {
			out = append(out,
				KeyLevel{Price: yesterdayClose, Label: "Gap Fill", Type: TypeGap, Strength: 75, Timeframe: TimeframeDaily},
				KeyLevel{Price: todayOpen, Label: "Gap High", Type: TypeGap, Strength: 65, Timeframe: TimeframeDaily},
			)
		} else if todayOpen < yesterdayClose {
			out = append(out,
				KeyLevel{Price: yesterdayClose, Label: "Gap Fill", Type: TypeGap, Strength: 75, Timeframe: TimeframeDaily},
				KeyLevel{Price: todayOpen, Label: "Gap Low", Type: TypeGap, Strength: 65, Timeframe: TimeframeDaily},
			)
		}
	}

	if preMarketHigh > 0 {
		out = append(out, KeyLevel{Price: preMarketHigh, Label: "Pre-Market High", Type: TypePreMarket, Strength: 60, Timeframe: TimeframeIntraday})
	}
	if preMarketLow > 0 {
		out = append(out, KeyLevel{Price: preMarketLow, Label: "Pre-Market Low", Type: TypePreMarket, Strength: 60, Timeframe: TimeframeIntraday})
	}

	return out
}

// SMA200Level returns the 200-day simple moving average as a level, or nil
// when fewer than 200 daily bars are available.
func SMA200Level(daily []market.Bar) *KeyLevel {
	if len(daily) < 200 {
		return nil
	}

	closes := make([]float64, len(daily))
	for i, bar := range daily {
		closes[i] = bar.Close
	}

	sma := indicators.SMA(closes, 200)
	return &KeyLevel{
		Price:     sma[len(sma)-1],
		Label:     "SMA 200",
		Type:      TypeMovingAverage,
		Strength:  85,
		Timeframe: TimeframeDaily,
	}
}

func formatPrice(p float64) string {
	if p == math.Trunc(p) {
		return fmt.Sprintf("%.0f", p)
	}
	return fmt.Sprintf("%.2f", p)
}
