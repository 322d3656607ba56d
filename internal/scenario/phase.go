package scenario

import (
	"math"
	"math/rand"
	"time"

	"practice-trading-engine/internal/market"
)

// VolumeShape modifies how a phase's volume evolves across its bars.
type VolumeShape string

const (
	VolumeNormal     VolumeShape = "normal"
	VolumeIncreasing VolumeShape = "increasing"
	VolumeDecreasing VolumeShape = "decreasing"
	VolumeClimax     VolumeShape = "climax"
)

// Phase is one leg of a scenario's price choreography: a bar count, a target
// to drift toward, noise and volume character.
type Phase struct {
	Name        string
	Bars        int
	Target      float64 // price the phase moves toward
	Volatility  float64 // uniform-noise scale
	Trend       float64 // pull strength toward the target, 0..~1.2
	VolumeShape VolumeShape
}

const (
	// BarInterval is the synthetic bar duration.
	BarInterval = 5 * time.Minute

	baseVolume = 10000

	// noiseScale converts volatility into a per-bar price fraction: at
	// volatility 1.0 the uniform noise spans +-0.5% of price.
	noiseScale = 0.005

	wickScale = 0.002

	// trendVolumeFactor sizes the volume term proportional to the bar's
	// body as a fraction of price.
	trendVolumeFactor = 2_000_000
)

// GeneratePhaseBars renders a phase list into an OHLCV sequence.
//
// Each bar opens at the previous close (the base price for the very first
// bar). The close is the open plus a pull toward the phase target scaled by
// the trend bias, plus uniform noise scaled by volatility. Wicks are
// independent random extensions beyond the body. Volume combines a
// randomized base, a body-proportional term, and the phase's shape
// multiplier. Prices are rounded to cents, volumes to integers, and every
// bar satisfies low <= min(open, close) <= max(open, close) <= high.
func GeneratePhaseBars(phases []Phase, basePrice float64, start time.Time, rng *rand.Rand) []market.Bar {
	var bars []market.Bar

	prevClose := basePrice
	ts := start

	for _, phase := range phases {
		for i := 0; i < phase.Bars; i++ {
			open := prevClose

			remaining := float64(phase.Bars - i)
			pull := (phase.Target - open) / remaining * phase.Trend
			noise := (rng.Float64() - 0.5) * 2 * phase.Volatility * open * noiseScale

			close := open + pull + noise
			if close < 0.01 {
				close = 0.01
			}

			upperWick := rng.Float64() * phase.Volatility * open * wickScale
			lowerWick := rng.Float64() * phase.Volatility * open * wickScale

			high := math.Max(open, close) + upperWick
			low := math.Min(open, close) - lowerWick
			if low < 0.01 {
				low = 0.01
			}

			body := math.Abs(close-open) / open
			volume := baseVolume*(0.75+rng.Float64()*0.5) + body*trendVolumeFactor
			volume *= volumeMultiplier(phase.VolumeShape, i, phase.Bars)

			bar := market.Bar{
				OpenTime: ts.UnixMilli(),
				Open:     roundCents(open),
				High:     roundCents(high),
				Low:      roundCents(low),
				Close:    roundCents(close),
				Volume:   math.Round(volume),
			}
			bars = append(bars, bar)

			prevClose = bar.Close
			ts = ts.Add(BarInterval)
		}
	}

	return bars
}

// volumeMultiplier shapes volume across a phase: climax peaks mid-phase,
// increasing/decreasing ramp linearly with i/count.
func volumeMultiplier(shape VolumeShape, i, count int) float64 {
	progress := 0.0
	if count > 0 {
		progress = float64(i) / float64(count)
	}

	switch shape {
	case VolumeIncreasing:
		return 0.6 + 0.8*progress
	case VolumeDecreasing:
		return 1.4 - 0.8*progress
	case VolumeClimax:
		return 0.5 + 1.5*math.Sin(math.Pi*progress)
	default:
		return 1.0
	}
}

func roundCents(p float64) float64 {
	return math.Round(p*100) / 100
}
