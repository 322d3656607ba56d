package indicators

import (
	"practice-trading-engine/internal/market"
)

// ============================================================================
// VOLUME PROFILE
// ============================================================================

// DefaultProfileLevels is the standard bucket count for a volume profile.
const DefaultProfileLevels = 24

// VolumeLevel is one price bucket of a volume profile.
type VolumeLevel struct {
	PriceLow       float64 `json:"priceLow"`
	PriceHigh      float64 `json:"priceHigh"`
	Volume         float64 `json:"volume"`
	BuyVolume      float64 `json:"buyVolume"`
	SellVolume     float64 `json:"sellVolume"`
	PointOfControl bool    `json:"pointOfControl"`
	InValueArea    bool    `json:"inValueArea"`
}

// VolumeProfile is the distribution of traded volume across equal-width
// price buckets, with the point of control and 70% value area flagged.
type VolumeProfile struct {
	Levels        []VolumeLevel `json:"levels"`
	TotalVolume   float64       `json:"totalVolume"`
	POCIndex      int           `json:"pocIndex"`
	ValueAreaHigh float64       `json:"valueAreaHigh"`
	ValueAreaLow  float64       `json:"valueAreaLow"`
}

// valueAreaFraction is the share of total volume the value area must cover.
const valueAreaFraction = 0.70

// CalculateVolumeProfile buckets the observed high/low range into levelCount
// equal-width bins by each bar's typical price. A bar's entire volume goes
// into one bucket, split into buy/sell by whether the bar closed at or above
// its open. Exactly one bucket is flagged point of control (the highest
// volume); the value area grows outward from it, at each step taking the
// larger of the two adjacent buckets, until it holds at least 70% of total
// volume or both edges are exhausted.
//
// An empty bar sequence returns an empty, zeroed profile.
func CalculateVolumeProfile(bars []market.Bar, levelCount int) *VolumeProfile {
	if levelCount <= 0 {
		levelCount = DefaultProfileLevels
	}

	profile := &VolumeProfile{Levels: []VolumeLevel{}}
	if len(bars) == 0 {
		return profile
	}

	low := bars[0].Low
	high := bars[0].High
	for _, bar := range bars[1:] {
		if bar.Low < low {
			low = bar.Low
		}
		if bar.High > high {
			high = bar.High
		}
	}

	width := (high - low) / float64(levelCount)
	profile.Levels = make([]VolumeLevel, levelCount)
	for i := range profile.Levels {
		profile.Levels[i].PriceLow = low + width*float64(i)
		profile.Levels[i].PriceHigh = low + width*float64(i+1)
	}

	for _, bar := range bars {
		idx := 0
		if width > 0 {
			idx = int((bar.TypicalPrice() - low) / width)
			if idx >= levelCount {
				idx = levelCount - 1
			}
			if idx < 0 {
				idx = 0
			}
		}

		level := &profile.Levels[idx]
		level.Volume += bar.Volume
		if bar.IsBullish() {
			level.BuyVolume += bar.Volume
		} else {
			level.SellVolume += bar.Volume
		}
		profile.TotalVolume += bar.Volume
	}

	// Point of control: single highest-volume bucket, first occurrence wins.
	poc := 0
	for i, level := range profile.Levels {
		if level.Volume > profile.Levels[poc].Volume {
			poc = i
		}
	}
	profile.POCIndex = poc
	profile.Levels[poc].PointOfControl = true

	markValueArea(profile)

	return profile
}

// markValueArea grows the value area outward from the point of control until
// it covers the target fraction of total volume.
func markValueArea(profile *VolumeProfile) {
	target := profile.TotalVolume * valueAreaFraction

	lowIdx := profile.POCIndex
	highIdx := profile.POCIndex
	accumulated := profile.Levels[profile.POCIndex].Volume
	profile.Levels[profile.POCIndex].InValueArea = true

	for accumulated < target {
		belowVol := -1.0
		aboveVol := -1.0
		if lowIdx > 0 {
			belowVol = profile.Levels[lowIdx-1].Volume
		}
		if highIdx < len(profile.Levels)-1 {
			aboveVol = profile.Levels[highIdx+1].Volume
		}

		if belowVol < 0 && aboveVol < 0 {
			break
		}

		if aboveVol > belowVol {
			highIdx++
			profile.Levels[highIdx].InValueArea = true
			accumulated += aboveVol
		} else {
			lowIdx--
			profile.Levels[lowIdx].InValueArea = true
			accumulated += belowVol
		}
	}

	profile.ValueAreaLow = profile.Levels[lowIdx].PriceLow
	profile.ValueAreaHigh = profile.Levels[highIdx].PriceHigh
}
