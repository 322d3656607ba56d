package scenario

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"practice-trading-engine/internal/narrative"
)

func testGenerator(provider narrative.Provider) *Generator {
	g := NewGenerator(provider, zerolog.New(io.Discard))
	g.now = func() time.Time {
		return time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	}
	return g
}

type failingProvider struct{}

func (f *failingProvider) GenerateParams(context.Context, narrative.Request) (*narrative.Params, error) {
	return nil, errors.New("provider down")
}

func TestGeneratePhaseBarsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	phases := []Phase{
		{Name: "up", Bars: 40, Target: 104, Volatility: 1.0, Trend: 1.0, VolumeShape: VolumeIncreasing},
		{Name: "down", Bars: 40, Target: 99, Volatility: 1.2, Trend: 0.9, VolumeShape: VolumeClimax},
	}

	start := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	bars := GeneratePhaseBars(phases, 100, start, rng)

	if len(bars) != 80 {
		t.Fatalf("expected 80 bars, got %d", len(bars))
	}

	for i, b := range bars {
		lo := math.Min(b.Open, b.Close)
		hi := math.Max(b.Open, b.Close)
		if b.Low > lo || b.High < hi {
			t.Errorf("bar %d violates OHLC ordering: %+v", i, b)
		}
		if b.Volume <= 0 {
			t.Errorf("bar %d has non-positive volume %v", i, b.Volume)
		}
		if b.Volume != math.Round(b.Volume) {
			t.Errorf("bar %d volume not integral: %v", i, b.Volume)
		}
		for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
			if math.Abs(p*100-math.Round(p*100)) > 1e-6 {
				t.Errorf("bar %d price %v not rounded to cents", i, p)
			}
		}
		if i > 0 {
			if b.Open != bars[i-1].Close {
				t.Errorf("bar %d open %v != previous close %v", i, b.Open, bars[i-1].Close)
			}
			if b.OpenTime-bars[i-1].OpenTime != BarInterval.Milliseconds() {
				t.Errorf("bar %d timestamp gap wrong", i)
			}
		}
	}

	if bars[0].Open != 100 {
		t.Errorf("first bar should open at the base price, got %v", bars[0].Open)
	}
}

func TestGeneratePhaseBarsPullsTowardTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	phases := []Phase{
		{Name: "rally", Bars: 50, Target: 110, Volatility: 0.5, Trend: 1.0, VolumeShape: VolumeNormal},
	}

	bars := GeneratePhaseBars(phases, 100, time.Unix(0, 0), rng)

	final := bars[len(bars)-1].Close
	if final < 107 || final > 113 {
		t.Errorf("phase should end near its target 110, ended at %v", final)
	}
}

func TestGenerateDeterministicWithSeed(t *testing.T) {
	g := testGenerator(narrative.NewStatic())
	req := Request{Symbol: "AAPL", Difficulty: DifficultyBeginner, Seed: 99}

	a := g.Generate(context.Background(), req)
	b := g.Generate(context.Background(), req)

	if len(a.Bars) != len(b.Bars) {
		t.Fatalf("bar counts differ: %d vs %d", len(a.Bars), len(b.Bars))
	}
	for i := range a.Bars {
		if a.Bars[i] != b.Bars[i] {
			t.Fatalf("bar %d differs between runs with the same seed", i)
		}
	}
	if a.SetupType != b.SetupType || a.CorrectAction != b.CorrectAction {
		t.Error("setup or action differ between runs with the same seed")
	}
	if a.ID == b.ID {
		t.Error("scenario IDs must be unique even for identical seeds")
	}
}

func TestGenerateDifferentSeedsDiffer(t *testing.T) {
	g := testGenerator(narrative.NewStatic())

	a := g.Generate(context.Background(), Request{Difficulty: DifficultyBeginner, SetupType: SetupSupportBounce, Seed: 1})
	b := g.Generate(context.Background(), Request{Difficulty: DifficultyBeginner, SetupType: SetupSupportBounce, Seed: 2})

	same := true
	for i := range a.Bars {
		if a.Bars[i].Close != b.Bars[i].Close {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical bar sequences")
	}
}

func TestGenerateSupportBounce(t *testing.T) {
	g := testGenerator(narrative.NewStatic())

	scn := g.Generate(context.Background(), Request{
		Symbol:     "AAPL",
		Difficulty: DifficultyBeginner,
		SetupType:  SetupSupportBounce,
		Seed:       17,
	})

	if scn.ID == "" {
		t.Error("scenario must have an ID")
	}
	if scn.SetupType != SetupSupportBounce {
		t.Errorf("expected support_bounce, got %s", scn.SetupType)
	}
	if len(scn.Bars) != 100 {
		t.Errorf("expected 100 bars, got %d", len(scn.Bars))
	}
	if scn.Decision.BarIndex != 70 {
		t.Errorf("decision index should be 70, got %d", scn.Decision.BarIndex)
	}
	if scn.Decision.Price != scn.Bars[70].Close {
		t.Error("decision price must be the decision bar's close")
	}
	if scn.Decision.Narrative == "" {
		t.Error("decision narrative must not be empty")
	}
	if scn.CorrectAction != ActionLong {
		t.Errorf("support bounce resolves long, got %s", scn.CorrectAction)
	}
	if len(scn.OutcomeBars) != outcomeBars {
		t.Errorf("expected %d outcome bars, got %d", outcomeBars, len(scn.OutcomeBars))
	}
	if len(scn.KeyLevels) == 0 {
		t.Error("scenario must carry a key-level catalog")
	}
	if scn.Explanation == "" {
		t.Error("scenario must carry an explanation")
	}

	// The long outcome drifts above the last pre-outcome close.
	lastBar := scn.Bars[len(scn.Bars)-1]
	if scn.OutcomeBars[0].Open != lastBar.Close {
		t.Error("outcome bars must continue from the last bar's close")
	}
	finalClose := scn.OutcomeBars[len(scn.OutcomeBars)-1].Close
	target := 185.00 * 1.015
	if math.Abs(finalClose-target)/target > 0.02 {
		t.Errorf("long outcome should end near %v, ended at %v", target, finalClose)
	}

	for _, s := range []int{scn.LTP.LevelScore, scn.LTP.TrendScore, scn.LTP.PatienceScore} {
		if s < 0 || s > 100 {
			t.Errorf("LTP score out of range: %d", s)
		}
	}
}

func TestGenerateEverySetup(t *testing.T) {
	g := testGenerator(narrative.NewStatic())

	for setup, tmpl := range setupTemplates {
		scn := g.Generate(context.Background(), Request{
			Difficulty: DifficultyAdvanced,
			SetupType:  setup,
			Seed:       5,
		})

		if scn.SetupType != setup {
			t.Errorf("%s: generated setup %s", setup, scn.SetupType)
		}
		if len(scn.Bars) != 100 {
			t.Errorf("%s: expected 100 bars, got %d", setup, len(scn.Bars))
		}
		if scn.Decision.BarIndex != 70 {
			t.Errorf("%s: decision index %d", setup, scn.Decision.BarIndex)
		}
		if scn.CorrectAction != tmpl.action {
			t.Errorf("%s: explicit setup must pin action %s, got %s", setup, tmpl.action, scn.CorrectAction)
		}
		if len(scn.OutcomeBars) != outcomeBars {
			t.Errorf("%s: expected %d outcome bars", setup, outcomeBars)
		}
	}
}

func TestGenerateFallsBackWhenProviderFails(t *testing.T) {
	g := testGenerator(&failingProvider{})

	scn := g.Generate(context.Background(), Request{
		Symbol:     "TSLA",
		Difficulty: DifficultyIntermediate,
		Seed:       3,
	})

	if scn == nil {
		t.Fatal("generation must not fail when the provider errors")
	}
	if len(scn.Bars) == 0 {
		t.Error("fallback scenario must still carry bars")
	}
	if scn.Title == "" || scn.Explanation == "" {
		t.Error("fallback scenario must still carry narrative text")
	}
	// The intermediate canned fallback is the VWAP reclaim.
	if scn.SetupType != SetupVWAPReclaim {
		t.Errorf("expected vwap_reclaim from the intermediate fallback, got %s", scn.SetupType)
	}
}

// TestGenerateDeterministicWhenAllProvidersFail pins the setup choice when
// neither the configured provider nor the fallback returns params: each tier
// gets its canonical setup instead of a random pick.
func TestGenerateDeterministicWhenAllProvidersFail(t *testing.T) {
	for difficulty, want := range fallbackSetupByDifficulty {
		g := testGenerator(&failingProvider{})
		g.fallback = &failingProvider{}

		scn := g.Generate(context.Background(), Request{Difficulty: difficulty, Seed: 5})
		if scn.SetupType != want {
			t.Errorf("%s: setup = %s, want %s", difficulty, scn.SetupType, want)
		}

		again := g.Generate(context.Background(), Request{Difficulty: difficulty, Seed: 99})
		if again.SetupType != want {
			t.Errorf("%s: setup must not depend on the seed, got %s", difficulty, again.SetupType)
		}
	}
}

func TestGenerateUnknownDifficultyDefaultsToBeginner(t *testing.T) {
	g := testGenerator(narrative.NewStatic())

	scn := g.Generate(context.Background(), Request{Difficulty: "brutal", Seed: 11})

	if scn.Difficulty != DifficultyBeginner {
		t.Errorf("unknown difficulty should default to beginner, got %s", scn.Difficulty)
	}
}

func TestPickSetup(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	if got := pickSetup(SetupGapFill, "support_bounce", DifficultyBeginner, rng); got != SetupGapFill {
		t.Errorf("explicit request must win, got %s", got)
	}
	if got := pickSetup("", "bear_trap", DifficultyBeginner, rng); got != SetupBearTrap {
		t.Errorf("narrative pattern should be honored, got %s", got)
	}

	tier := setupsByDifficulty[DifficultyAdvanced]
	got := pickSetup("", "something_unknown", DifficultyAdvanced, rng)
	found := false
	for _, s := range tier {
		if s == got {
			found = true
		}
	}
	if !found {
		t.Errorf("random pick %s not in the advanced tier", got)
	}
}

func TestResolveAction(t *testing.T) {
	if got := resolveAction(SetupPatienceTest, "long", ActionWait); got != ActionWait {
		t.Errorf("explicit setup pins the template action, got %s", got)
	}
	if got := resolveAction("", "short", ActionLong); got != ActionShort {
		t.Errorf("valid provider action should win, got %s", got)
	}
	if got := resolveAction("", "hold", ActionLong); got != ActionLong {
		t.Errorf("invalid provider action falls back to template, got %s", got)
	}
}

func TestVolumeShapes(t *testing.T) {
	if m := volumeMultiplier(VolumeIncreasing, 0, 10); m >= volumeMultiplier(VolumeIncreasing, 9, 10) {
		t.Error("increasing shape should grow across the phase")
	}
	if m := volumeMultiplier(VolumeDecreasing, 0, 10); m <= volumeMultiplier(VolumeDecreasing, 9, 10) {
		t.Error("decreasing shape should shrink across the phase")
	}
	mid := volumeMultiplier(VolumeClimax, 5, 10)
	if mid <= volumeMultiplier(VolumeClimax, 0, 10) || mid <= volumeMultiplier(VolumeClimax, 9, 10) {
		t.Error("climax shape should peak mid-phase")
	}
	if volumeMultiplier(VolumeNormal, 3, 10) != 1.0 {
		t.Error("normal shape is flat")
	}
}
