package patience

import (
	"fmt"
	"math"
	"sort"

	"practice-trading-engine/internal/levels"
	"practice-trading-engine/internal/market"
)

// PatternType classifies a candle's shape.
type PatternType string

const (
	PatternDoji           PatternType = "doji"
	PatternHammer         PatternType = "hammer"
	PatternInvertedHammer PatternType = "inverted_hammer"
	PatternSpinningTop    PatternType = "spinning_top"
	PatternSmallBody      PatternType = "small_body"
	PatternRegular        PatternType = "regular"
)

// Fixed pattern confidence ranking. Empirically chosen in the original
// tuning; treat as rank order, not calibrated probabilities.
var patternScores = map[PatternType]float64{
	PatternDoji:           95,
	PatternHammer:         90,
	PatternInvertedHammer: 90,
	PatternSpinningTop:    85,
	PatternSmallBody:      70,
}

// Confidence weighting between level proximity and candle shape.
const (
	distanceWeight = 0.4
	patternWeight  = 0.6
)

// Config holds the patience-scan tunables.
type Config struct {
	LookbackBars     int     // how many recent bars to scan
	ProximityPercent float64 // level proximity for a candle to qualify
}

// DefaultConfig returns the standard patience configuration.
func DefaultConfig() Config {
	return Config{
		LookbackBars:     10,
		ProximityPercent: 0.5,
	}
}

// Signal is a confidence-scored patience candle attributed to one level.
type Signal struct {
	BarIndex   int             `json:"barIndex"`
	Timestamp  int64           `json:"timestamp"`
	Pattern    PatternType     `json:"patternType"`
	Level      levels.KeyLevel `json:"associatedLevel"`
	Confidence float64         `json:"confidence"` // 0-100
	Narrative  string          `json:"narrative"`
}

// ClassifyCandle classifies a bar's shape by its body-to-range ratio.
// A zero-range bar counts as a doji.
func ClassifyCandle(bar market.Bar) PatternType {
	totalRange := bar.Range()
	if totalRange == 0 {
		return PatternDoji
	}

	bodyRatio := bar.Body() / totalRange
	if bodyRatio < 0.10 {
		return PatternDoji
	}
	if bodyRatio >= 0.35 {
		return PatternRegular
	}

	body := bar.Body()
	upper := bar.UpperWick()
	lower := bar.LowerWick()

	switch {
	case lower > 2*body && upper < 0.5*body:
		return PatternHammer
	case upper > 2*body && lower < 0.5*body:
		return PatternInvertedHammer
	case upper > 0.5*body && lower > 0.5*body:
		return PatternSpinningTop
	default:
		return PatternSmallBody
	}
}

// IsNearLevel reports whether the bar is testing the level: its midpoint is
// within proximityPercent of the level price, or its high/low range
// straddles it. A bar can test a level without closing near it.
func IsNearLevel(bar market.Bar, level levels.KeyLevel, proximityPercent float64) bool {
	if level.Price <= 0 {
		return false
	}
	distPct := math.Abs(bar.Midpoint()-level.Price) / level.Price * 100
	if distPct <= proximityPercent {
		return true
	}
	return bar.Low <= level.Price && level.Price <= bar.High
}

// DetectPatienceCandles scans the most recent lookback bars for non-regular
// candle shapes near a level. Each qualifying candle is attributed to at
// most one level: the scan stops at the first match, and the catalog is
// expected to be distance-sorted so the nearest level wins. Results are
// sorted by descending confidence.
func DetectPatienceCandles(bars []market.Bar, catalog []levels.KeyLevel, cfg Config) []Signal {
	if len(bars) == 0 || len(catalog) == 0 {
		return nil
	}
	if cfg.LookbackBars <= 0 {
		cfg.LookbackBars = DefaultConfig().LookbackBars
	}
	if cfg.ProximityPercent <= 0 {
		cfg.ProximityPercent = DefaultConfig().ProximityPercent
	}

	start := len(bars) - cfg.LookbackBars
	if start < 0 {
		start = 0
	}

	var signals []Signal
	for i := start; i < len(bars); i++ {
		bar := bars[i]
		pattern := ClassifyCandle(bar)
		if pattern == PatternRegular {
			continue
		}

		for _, level := range catalog {
			if !IsNearLevel(bar, level, cfg.ProximityPercent) {
				continue
			}

			distPct := math.Abs(bar.Midpoint()-level.Price) / level.Price * 100
			distanceScore := 100 * (1 - distPct/cfg.ProximityPercent)
			if distanceScore < 0 {
				distanceScore = 0
			}

			signals = append(signals, Signal{
				BarIndex:   i,
				Timestamp:  bar.OpenTime,
				Pattern:    pattern,
				Level:      level,
				Confidence: distanceWeight*distanceScore + patternWeight*patternScores[pattern],
				Narrative: fmt.Sprintf("%s at %s (%.2f%% away): indecision while the level holds",
					patternLabel(pattern), level.Label, distPct),
			})
			break // one level per candle
		}
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Confidence > signals[j].Confidence
	})

	return signals
}

// Score is the aggregate patience grade with its justification.
type Score struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// noSignalScore is the fixed grade when no patience candle was found.
const noSignalScore = 30

// CalculatePatienceScore aggregates detected signals: mean confidence, plus
// up to 20 bonus points for multiple distinct patience candles (10 per extra
// candle), plus 10 when a qualifying candle printed within the last 3 bars.
// With no signals at all it returns a fixed low score rather than nothing.
func CalculatePatienceScore(signals []Signal, totalBars int) Score {
	if len(signals) == 0 {
		return Score{
			Score:  noSignalScore,
			Reason: "Patience not yet confirmed: no indecision candles at key levels",
		}
	}

	sum := 0.0
	recent := false
	for _, sig := range signals {
		sum += sig.Confidence
		if sig.BarIndex >= totalBars-3 {
			recent = true
		}
	}
	score := sum / float64(len(signals))

	multiBonus := 10 * float64(len(signals)-1)
	if multiBonus > 20 {
		multiBonus = 20
	}
	score += multiBonus

	reason := fmt.Sprintf("%d patience candle(s) detected, best: %s", len(signals), signals[0].Narrative)
	if recent {
		score += 10
		reason += "; confirmed within the last 3 bars"
	}
	if score > 100 {
		score = 100
	}

	return Score{Score: score, Reason: reason}
}

func patternLabel(p PatternType) string {
	switch p {
	case PatternDoji:
		return "Doji"
	case PatternHammer:
		return "Hammer"
	case PatternInvertedHammer:
		return "Inverted hammer"
	case PatternSpinningTop:
		return "Spinning top"
	case PatternSmallBody:
		return "Small-body candle"
	default:
		return "Candle"
	}
}
