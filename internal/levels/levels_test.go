package levels

import (
	"math"
	"testing"
	"time"

	"practice-trading-engine/internal/market"
)

func dailyBars(highs, lows []float64) []market.Bar {
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, market.SessionLocation())
	bars := make([]market.Bar, len(highs))
	for i := range highs {
		mid := (highs[i] + lows[i]) / 2
		bars[i] = market.Bar{
			OpenTime: base.AddDate(0, 0, i).UnixMilli(),
			Open:     mid,
			High:     highs[i],
			Low:      lows[i],
			Close:    mid,
			Volume:   1000,
		}
	}
	return bars
}

// TestPrevDayLevelsExcludesToday verifies "yesterday" is the second-to-last
// daily bar, since the most recent bar is today's still-forming one.
func TestPrevDayLevelsExcludesToday(t *testing.T) {
	bars := dailyBars(
		[]float64{10, 11, 9, 12, 8},
		[]float64{9, 10, 8, 11, 7},
	)

	got := PrevDayLevels(bars)
	if len(got) != 2 {
		t.Fatalf("got %d levels, want 2", len(got))
	}
	if got[0].Label != "PDH" || got[0].Price != 12 {
		t.Errorf("PDH = %f, want 12 (second-to-last bar's high)", got[0].Price)
	}
	if got[1].Label != "PDL" || got[1].Price != 11 {
		t.Errorf("PDL = %f, want 11 (second-to-last bar's low)", got[1].Price)
	}
}

func TestPrevDayLevelsInsufficientData(t *testing.T) {
	if got := PrevDayLevels(dailyBars([]float64{10}, []float64{9})); got != nil {
		t.Errorf("one daily bar should yield no PDH/PDL, got %d levels", len(got))
	}
}

func TestWeeklyLevelsRequireFiveBars(t *testing.T) {
	bars := dailyBars([]float64{10, 11, 9, 12}, []float64{9, 10, 8, 11})
	if got := WeeklyLevels(bars); got != nil {
		t.Errorf("4 daily bars should yield no weekly levels, got %d", len(got))
	}

	bars = dailyBars([]float64{10, 11, 9, 12, 8}, []float64{9, 10, 8, 11, 7})
	got := WeeklyLevels(bars)
	if len(got) != 2 {
		t.Fatalf("got %d weekly levels, want 2", len(got))
	}
	if got[0].Price != 12 || got[1].Price != 7 {
		t.Errorf("weekly high/low = %f/%f, want 12/7", got[0].Price, got[1].Price)
	}
	if got[0].Timeframe != TimeframeWeekly {
		t.Errorf("timeframe = %s, want weekly", got[0].Timeframe)
	}
}

func TestOpeningRangeWindow(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 30, 0, 0, market.SessionLocation())
	var bars []market.Bar
	// First 15 minutes: range 100-105. Later bars push beyond it and must
	// not count.
	for i := 0; i < 30; i++ {
		h, l := 105.0, 100.0
		if i >= 15 {
			h, l = 120.0, 90.0
		}
		bars = append(bars, market.Bar{
			OpenTime: start.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Open:     (h + l) / 2, High: h, Low: l, Close: (h + l) / 2, Volume: 100,
		})
	}

	got := OpeningRangeLevels(bars, 15)
	if len(got) != 2 {
		t.Fatalf("got %d opening-range levels, want 2", len(got))
	}
	if got[0].Price != 105 || got[1].Price != 100 {
		t.Errorf("opening range = %f/%f, want 105/100", got[0].Price, got[1].Price)
	}
}

// TestCalculateAllLevelsOpeningRangeWindow verifies the configured window
// reaches the opening-range detector instead of the default being used
// unconditionally.
func TestCalculateAllLevelsOpeningRangeWindow(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 30, 0, 0, market.SessionLocation())
	var bars []market.Bar
	// Minutes 15-29 extend the range to 120/90; only a window longer than
	// 15 minutes may include them.
	for i := 0; i < 30; i++ {
		h, l := 105.0, 100.0
		if i >= 15 {
			h, l = 120.0, 90.0
		}
		bars = append(bars, market.Bar{
			OpenTime: start.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Open:     (h + l) / 2, High: h, Low: l, Close: (h + l) / 2, Volume: 100,
		})
	}

	orHigh := func(catalog []KeyLevel) float64 {
		for _, lvl := range catalog {
			if lvl.Type == TypeOpeningRange && lvl.Label == "OR High" {
				return lvl.Price
			}
		}
		return 0
	}

	narrow := CalculateAllLevels(Input{Intraday: bars, CurrentPrice: 102})
	if got := orHigh(narrow); got != 105 {
		t.Errorf("default window OR high = %f, want 105", got)
	}

	wide := CalculateAllLevels(Input{Intraday: bars, CurrentPrice: 102, OpeningRangeMinutes: 30})
	if got := orHigh(wide); got != 120 {
		t.Errorf("30-minute window OR high = %f, want 120", got)
	}
}

func TestRoundNumberIncrementTiers(t *testing.T) {
	cases := []struct {
		price float64
		want  float64
	}{
		{620, 50},
		{185, 10},
		{62, 5},
		{15, 1},
		{4.2, 0.5},
	}

	for _, tc := range cases {
		if got := roundIncrement(tc.price); got != tc.want {
			t.Errorf("roundIncrement(%f) = %f, want %f", tc.price, got, tc.want)
		}
	}

	got := RoundNumberLevels(185, 2)
	if len(got) != 5 {
		t.Fatalf("got %d round levels, want 5", len(got))
	}
	for _, level := range got {
		if math.Mod(level.Price, 10) != 0 {
			t.Errorf("round level %f is not a multiple of 10", level.Price)
		}
	}
}

func TestGapLevels(t *testing.T) {
	// Yesterday closed 100, today opened 103: gap up.
	bars := dailyBars([]float64{101, 104}, []float64{99, 102})
	bars[0].Close = 100
	bars[1].Open = 103

	got := GapLevels(bars, 0, 0)
	if len(got) != 2 {
		t.Fatalf("got %d gap levels, want 2", len(got))
	}
	if got[0].Label != "Gap Fill" || got[0].Price != 100 {
		t.Errorf("gap fill = %s@%f, want Gap Fill@100", got[0].Label, got[0].Price)
	}
	if got[1].Label != "Gap High" || got[1].Price != 103 {
		t.Errorf("gap high = %s@%f, want Gap High@103", got[1].Label, got[1].Price)
	}

	// Pre-market levels appended when supplied.
	got = GapLevels(bars, 104.5, 101.5)
	if len(got) != 4 {
		t.Errorf("got %d levels with pre-market data, want 4", len(got))
	}

	// No gap, no levels.
	bars[1].Open = 100
	if got := GapLevels(bars, 0, 0); got != nil {
		t.Errorf("flat open should yield no gap levels, got %d", len(got))
	}
}

func TestSMA200RequiresHistory(t *testing.T) {
	short := dailyBars(make([]float64, 150), make([]float64, 150))
	if got := SMA200Level(short); got != nil {
		t.Error("150 daily bars should not produce an SMA-200 level")
	}

	highs := make([]float64, 220)
	lows := make([]float64, 220)
	for i := range highs {
		highs[i] = 101
		lows[i] = 99
	}
	long := dailyBars(highs, lows)
	got := SMA200Level(long)
	if got == nil {
		t.Fatal("220 daily bars should produce an SMA-200 level")
	}
	if math.Abs(got.Price-100) > 1e-9 {
		t.Errorf("SMA-200 = %f, want 100", got.Price)
	}
}

// TestCalculateAllLevelsDeduplicates verifies no two catalog levels sit
// within 0.1% of each other.
func TestCalculateAllLevelsDeduplicates(t *testing.T) {
	highs := []float64{182, 184, 183, 186, 185}
	lows := []float64{178, 180, 179, 182, 181}
	daily := dailyBars(highs, lows)

	start := time.Date(2024, 3, 8, 9, 30, 0, 0, market.SessionLocation())
	var intraday []market.Bar
	for i := 0; i < 60; i++ {
		p := 184 + math.Sin(float64(i)/5)
		intraday = append(intraday, market.Bar{
			OpenTime: start.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Open:     p, High: p + 0.5, Low: p - 0.5, Close: p + 0.1, Volume: 1000,
		})
	}

	catalog := CalculateAllLevels(Input{
		Daily:        daily,
		Intraday:     intraday,
		CurrentPrice: 184.5,
	})

	if len(catalog) == 0 {
		t.Fatal("expected a non-empty level catalog")
	}
	for i := range catalog {
		for j := i + 1; j < len(catalog); j++ {
			dist := math.Abs(catalog[i].Price - catalog[j].Price)
			if dist/catalog[j].Price < dedupeTolerance {
				t.Errorf("levels %q@%f and %q@%f are closer than 0.1%%",
					catalog[i].Label, catalog[i].Price, catalog[j].Label, catalog[j].Price)
			}
		}
	}

	// Sorted by distance from the reference price.
	for i := 1; i < len(catalog); i++ {
		prev := math.Abs(catalog[i-1].Price - 184.5)
		cur := math.Abs(catalog[i].Price - 184.5)
		if cur < prev {
			t.Errorf("catalog not sorted by distance at index %d", i)
		}
	}
}

func TestGetTopLevels(t *testing.T) {
	catalog := []KeyLevel{
		{Price: 100, Label: "near strong", Strength: 90},
		{Price: 150, Label: "far strong", Strength: 90},
		{Price: 101, Label: "near weak", Strength: 20},
	}

	top := GetTopLevels(catalog, 100.5, 2)
	if len(top) != 2 {
		t.Fatalf("got %d top levels, want 2", len(top))
	}
	if top[0].Label != "near strong" {
		t.Errorf("top level = %q, want the near strong one", top[0].Label)
	}
	for _, level := range top {
		if level.Label == "far strong" {
			t.Error("distant level should be outscored by nearby ones")
		}
	}
}

func TestCalculateLevelScoreAtLevel(t *testing.T) {
	catalog := []KeyLevel{{Price: 185, Label: "PDH", Type: TypeResistance, Strength: 90}}

	bar := market.Bar{Open: 184.9, High: 185.3, Low: 184.6, Close: 185.1, Volume: 100}
	score := CalculateLevelScore(bar, catalog, DefaultAtLevelPercent)

	if !score.AtKey {
		t.Fatal("bar closing 0.05% from the level should be at the level")
	}
	if score.Score != 100 {
		t.Errorf("score = %d, want 100 (strength 90 + bonus, capped)", score.Score)
	}
	if score.Level == nil || score.Level.Label != "PDH" {
		t.Error("score should cite the matched level")
	}
}

func TestCalculateLevelScoreStraddle(t *testing.T) {
	catalog := []KeyLevel{{Price: 185, Label: "PDH", Type: TypeResistance, Strength: 50}}

	// Close is far from the level but the bar's range crosses it.
	bar := market.Bar{Open: 183, High: 186, Low: 182.5, Close: 183.2, Volume: 100}
	score := CalculateLevelScore(bar, catalog, DefaultAtLevelPercent)
	if !score.AtKey {
		t.Error("bar straddling the level price should count as at the level")
	}
}

func TestCalculateLevelScoreTiers(t *testing.T) {
	catalog := []KeyLevel{{Price: 100, Label: "PDL", Type: TypeSupport, Strength: 90}}

	cases := []struct {
		close float64
		want  int
	}{
		{100.8, 60}, // within 1%
		{101.5, 45}, // within 2%
		{104.0, 30}, // beyond 2%
	}

	for _, tc := range cases {
		bar := market.Bar{Open: tc.close, High: tc.close + 0.1, Low: tc.close - 0.1, Close: tc.close, Volume: 10}
		score := CalculateLevelScore(bar, catalog, DefaultAtLevelPercent)
		if score.AtKey {
			t.Errorf("close %f should not be at the level", tc.close)
			continue
		}
		if score.Score != tc.want {
			t.Errorf("close %f score = %d, want %d", tc.close, score.Score, tc.want)
		}
		if score.Reason == "" {
			t.Errorf("close %f should carry a reason", tc.close)
		}
	}
}
