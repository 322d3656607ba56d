package market

import (
	"time"
)

// Bar is one OHLCV observation for a fixed time interval.
//
// Precondition (not validated at runtime): Low <= min(Open, Close) and
// max(Open, Close) <= High, and bar sequences are ordered by non-decreasing
// OpenTime. Callers own these invariants; the engine never mutates bars it
// is handed.
type Bar struct {
	OpenTime int64   `json:"t"` // millisecond timestamp
	Open     float64 `json:"o"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Close    float64 `json:"c"`
	Volume   float64 `json:"v"`
}

// TypicalPrice returns (high + low + close) / 3.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Body returns the absolute open-to-close distance.
func (b Bar) Body() float64 {
	if b.Close >= b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// Range returns the high-to-low distance.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// UpperWick returns the distance from the body top to the high.
func (b Bar) UpperWick() float64 {
	if b.Close >= b.Open {
		return b.High - b.Close
	}
	return b.High - b.Open
}

// LowerWick returns the distance from the low to the body bottom.
func (b Bar) LowerWick() float64 {
	if b.Close >= b.Open {
		return b.Open - b.Low
	}
	return b.Close - b.Low
}

// IsBullish reports whether the bar closed at or above its open.
func (b Bar) IsBullish() bool {
	return b.Close >= b.Open
}

// Midpoint returns the midpoint of the bar's high/low range.
func (b Bar) Midpoint() float64 {
	return (b.High + b.Low) / 2
}

// Time returns the bar's open time as a time.Time.
func (b Bar) Time() time.Time {
	return time.UnixMilli(b.OpenTime)
}
