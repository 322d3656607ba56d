package levels

import (
	"math"
	"sort"

	"practice-trading-engine/internal/market"
)

// Timeframe identifies which bar history a level was derived from.
type Timeframe string

const (
	TimeframeDaily    Timeframe = "daily"
	TimeframeIntraday Timeframe = "intraday"
	TimeframeWeekly   Timeframe = "weekly"
)

// LevelType categorizes a key level.
type LevelType string

const (
	TypeResistance    LevelType = "resistance"
	TypeSupport       LevelType = "support"
	TypeOpeningRange  LevelType = "opening_range"
	TypeVWAP          LevelType = "vwap"
	TypeRoundNumber   LevelType = "round_number"
	TypeGap           LevelType = "gap"
	TypeMovingAverage LevelType = "moving_average"
	TypePreMarket     LevelType = "premarket"
)

// KeyLevel is a price level relevant to the current scenario. Levels are
// value objects; detectors hand out fresh copies and never retain them.
type KeyLevel struct {
	Price     float64   `json:"price"`
	Label     string    `json:"label"`
	Type      LevelType `json:"type"`
	Strength  int       `json:"strength"` // 0-100
	Timeframe Timeframe `json:"timeframe"`
}

// dedupeTolerance is the relative distance below which two levels are
// considered duplicates.
const dedupeTolerance = 0.001 // 0.1%

// Input carries the bar history a level catalog is derived from.
type Input struct {
	Daily         []market.Bar
	Intraday      []market.Bar
	CurrentPrice  float64
	PreMarketHigh float64 // optional, 0 when absent
	PreMarketLow  float64 // optional, 0 when absent

	// OpeningRangeMinutes overrides the opening-range window; 0 keeps the
	// default.
	OpeningRangeMinutes int
}

// CalculateAllLevels runs every sub-detector, sorts the catalog by absolute
// distance from the current price, and removes near-duplicates (relative
// distance under 0.1%). The nearer level survives because the scan preserves
// sort order and keeps the first occurrence.
func CalculateAllLevels(in Input) []KeyLevel {
	var all []KeyLevel

	all = append(all, PrevDayLevels(in.Daily)...)
	all = append(all, OpeningRangeLevels(in.Intraday, in.OpeningRangeMinutes)...)
	all = append(all, WeeklyLevels(in.Daily)...)
	all = append(all, VWAPLevels(in.Intraday)...)
	all = append(all, RoundNumberLevels(in.CurrentPrice, 2)...)
	all = append(all, GapLevels(in.Daily, in.PreMarketHigh, in.PreMarketLow)...)
	if sma := SMA200Level(in.Daily); sma != nil {
		all = append(all, *sma)
	}

	return SortAndDeduplicate(all, in.CurrentPrice)
}

// SortAndDeduplicate orders a catalog by absolute distance from the
// reference price and removes near-duplicates. Exposed so scenario
// assembly can merge levels from several sources under the same rule.
func SortAndDeduplicate(catalog []KeyLevel, price float64) []KeyLevel {
	sorted := make([]KeyLevel, len(catalog))
	copy(sorted, catalog)

	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].Price-price) < math.Abs(sorted[j].Price-price)
	})

	return dedupe(sorted)
}

// dedupe drops any level within dedupeTolerance of an already-accepted one.
func dedupe(sorted []KeyLevel) []KeyLevel {
	accepted := make([]KeyLevel, 0, len(sorted))

	for _, level := range sorted {
		dup := false
		for _, kept := range accepted {
			if kept.Price == 0 {
				continue
			}
			if math.Abs(level.Price-kept.Price)/kept.Price < dedupeTolerance {
				dup = true
				break
			}
		}
		if !dup {
			accepted = append(accepted, level)
		}
	}

	return accepted
}
