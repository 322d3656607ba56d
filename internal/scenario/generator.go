package scenario

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"practice-trading-engine/internal/indicators"
	"practice-trading-engine/internal/levels"
	"practice-trading-engine/internal/market"
	"practice-trading-engine/internal/narrative"
	"practice-trading-engine/internal/patience"
)

const (
	// decisionFraction places the decision point at 70% of the bar
	// sequence, leaving enough tape before it to establish the setup.
	decisionFractionNum = 7
	decisionFractionDen = 10

	outcomeBars = 20
)

// Generator assembles complete practice scenarios. Descriptive parameters
// come from a narrative provider; every number in the bar sequence is
// produced locally so a provider outage or a bad response can degrade the
// prose but never the scenario.
type Generator struct {
	provider    narrative.Provider
	fallback    narrative.Provider
	ribbonCfg   indicators.RibbonConfig
	patienceCfg patience.Config
	log         zerolog.Logger

	// now is replaceable in tests; the session clock anchors bar
	// timestamps at the 9:30 ET open of the current date.
	now func() time.Time
}

// NewGenerator creates a scenario generator. A nil provider means the
// deterministic static provider serves every request directly.
func NewGenerator(provider narrative.Provider, logger zerolog.Logger) *Generator {
	static := narrative.NewStatic()
	if provider == nil {
		provider = static
	}
	return &Generator{
		provider:    provider,
		fallback:    static,
		ribbonCfg:   indicators.DefaultRibbonConfig(),
		patienceCfg: patience.DefaultConfig(),
		log:         logger.With().Str("component", "scenario").Logger(),
		now:         time.Now,
	}
}

// Generate builds one scenario for the request. It does not fail: provider
// errors fall back to the static provider, and every other input has a
// usable default.
func (g *Generator) Generate(ctx context.Context, req Request) *Scenario {
	rng := newRNG(req.Seed)

	difficulty := req.Difficulty
	if _, ok := setupsByDifficulty[difficulty]; !ok {
		difficulty = DifficultyBeginner
	}

	if req.Symbol == "" {
		req.Symbol = "SPY"
	}

	params := g.fetchParams(ctx, req, difficulty)
	setup := pickSetup(req.SetupType, params.PriceAction.Pattern, difficulty, rng)
	tmpl := setupTemplates[setup]

	basePrice := params.BasePrice
	phases := scaleVolatility(tmpl.phases(basePrice), params.PriceAction.Volatility)

	start := g.sessionStart()
	bars := GeneratePhaseBars(phases, basePrice, start, rng)

	decisionIdx := len(bars) * decisionFractionNum / decisionFractionDen
	if decisionIdx >= len(bars) {
		decisionIdx = len(bars) - 1
	}
	decisionBar := bars[decisionIdx]

	action := resolveAction(req.SetupType, params.CorrectAction, tmpl.action)

	catalog := g.buildCatalog(tmpl, params, bars[:decisionIdx+1], basePrice, decisionBar.Close)

	scn := &Scenario{
		ID:            uuid.NewString(),
		Symbol:        req.Symbol,
		Title:         params.Title,
		Description:   params.Description,
		Difficulty:    difficulty,
		SetupType:     setup,
		Bars:          bars,
		KeyLevels:     catalog,
		CorrectAction: action,
		Explanation:   textOr(params.Explanation, tmpl.explanation),
		CreatedAt:     g.now(),
	}
	if string(setup) != params.PriceAction.Pattern {
		// The picked setup diverged from the narrative; the template's
		// title and prose are the ones that match the tape.
		scn.Title = tmpl.title
		scn.Explanation = tmpl.explanation
		params.DecisionContext = ""
	}

	scn.Decision = DecisionPoint{
		BarIndex:  decisionIdx,
		Price:     decisionBar.Close,
		Timestamp: decisionBar.OpenTime,
		Narrative: textOr(params.DecisionContext, tmpl.decision),
	}
	scn.LTP = g.scoreSetup(bars[:decisionIdx+1], catalog, action, params.LTP)
	scn.OutcomeBars = g.outcome(bars, basePrice, params.PriceAction.Volatility, action, rng)

	g.log.Debug().
		Str("scenario_id", scn.ID).
		Str("setup", string(setup)).
		Str("difficulty", string(difficulty)).
		Int("bars", len(bars)).
		Int("decision_index", decisionIdx).
		Msg("scenario generated")

	return scn
}

// fetchParams asks the configured provider and falls back to the static one
// on any error.
func (g *Generator) fetchParams(ctx context.Context, req Request, difficulty Difficulty) *narrative.Params {
	nreq := narrative.Request{
		Symbol:        req.Symbol,
		Difficulty:    string(difficulty),
		FocusArea:     req.FocusArea,
		SetupType:     string(req.SetupType),
		MarketContext: req.MarketContext,
	}

	params, err := g.provider.GenerateParams(ctx, nreq)
	if err == nil {
		return params
	}
	g.log.Warn().Err(err).Msg("narrative provider failed, using static fallback")

	params, err = g.fallback.GenerateParams(ctx, nreq)
	if err != nil || params == nil {
		// The static provider cannot actually fail; this path only
		// guards against a misbehaving injected fallback. With no
		// narrative at all the setup choice stays deterministic.
		p := narrative.Params{}
		p.ApplyDefaults(nreq)
		if p.PriceAction.Pattern == "" {
			p.PriceAction.Pattern = string(fallbackSetupByDifficulty[difficulty])
		}
		return &p
	}
	return params
}

// buildCatalog merges the template's structural levels, the provider's level
// hints, the synthetic session's VWAP and the nearest round numbers into one
// deduplicated catalog sorted by distance from the decision price.
func (g *Generator) buildCatalog(tmpl setupTemplate, params *narrative.Params, preDecision []market.Bar, basePrice, decisionPrice float64) []levels.KeyLevel {
	catalog := tmpl.levels(basePrice)
	catalog = append(catalog, convertParamLevels(params.KeyLevels, basePrice)...)
	catalog = append(catalog, levels.VWAPLevels(preDecision)...)
	catalog = append(catalog, levels.RoundNumberLevels(decisionPrice, 1)...)
	return levels.SortAndDeduplicate(catalog, decisionPrice)
}

// scoreSetup grades the pre-decision tape on the three LTP factors.
// Provider-supplied justification text wins over the computed reasons when
// present; the numeric scores are always computed locally.
func (g *Generator) scoreSetup(preDecision []market.Bar, catalog []levels.KeyLevel, action Action, hints narrative.LTPAnalysis) ScoreBreakdown {
	last := preDecision[len(preDecision)-1]

	levelScore := levels.CalculateLevelScore(last, catalog, levels.DefaultAtLevelPercent)

	closes := make([]float64, len(preDecision))
	for i, b := range preDecision {
		closes[i] = b.Close
	}
	ribbon := indicators.CalculateEMARibbon(closes, g.ribbonCfg)
	trendScore, trendReason := gradeTrend(ribbon[len(ribbon)-1], action)

	signals := patience.DetectPatienceCandles(preDecision, catalog, g.patienceCfg)
	patienceScore := patience.CalculatePatienceScore(signals, len(preDecision))

	return ScoreBreakdown{
		LevelScore:     levelScore.Score,
		LevelReason:    textOr(hints.Level, levelScore.Reason),
		TrendScore:     trendScore,
		TrendReason:    textOr(hints.Trend, trendReason),
		PatienceScore:  int(math.Round(patienceScore.Score)),
		PatienceReason: textOr(hints.Patience, patienceScore.Reason),
	}
}

// outcome renders the post-decision continuation toward the action's
// resolution target.
func (g *Generator) outcome(bars []market.Bar, basePrice, volatility float64, action Action, rng *rand.Rand) []market.Bar {
	last := bars[len(bars)-1]

	var target float64
	switch action {
	case ActionLong:
		target = basePrice * 1.015
	case ActionShort:
		target = basePrice * 0.985
	default:
		target = basePrice * 1.001
	}

	phase := []Phase{{
		Name:        "outcome",
		Bars:        outcomeBars,
		Target:      target,
		Volatility:  0.8,
		Trend:       0.9,
		VolumeShape: VolumeNormal,
	}}
	phase = scaleVolatility(phase, volatility)

	startTime := time.UnixMilli(last.OpenTime).Add(BarInterval)
	return GeneratePhaseBars(phase, last.Close, startTime, rng)
}

// gradeTrend converts the ribbon state at the decision bar into a trend
// score relative to the correct action.
func gradeTrend(state indicators.RibbonState, action Action) (int, string) {
	aligned := (action == ActionLong && state.Color == indicators.RibbonBullish) ||
		(action == ActionShort && state.Color == indicators.RibbonBearish)

	switch {
	case aligned:
		score := 60 + int(math.Round(state.Strength*0.4))
		if score > 100 {
			score = 100
		}
		return score, fmt.Sprintf("EMA ribbon is %s (strength %.0f) in the trade's direction", state.Color, state.Strength)
	case action == ActionWait && state.Color == indicators.RibbonNeutral:
		return 70, "EMA ribbon is neutral, which supports standing aside"
	case state.Color == indicators.RibbonNeutral:
		return 50, "EMA ribbon is neutral; the trend does not yet confirm the trade"
	default:
		return 30, fmt.Sprintf("EMA ribbon is %s against the trade's direction", state.Color)
	}
}

// resolveAction decides the ground-truth action. An explicitly requested
// setup pins the template's action because the tape is choreographed for it;
// otherwise a valid provider answer wins, then the template default.
func resolveAction(requested SetupType, providerAction string, templateAction Action) Action {
	if requested != "" {
		if _, ok := setupTemplates[requested]; ok {
			return templateAction
		}
	}
	if a := ParseAction(providerAction); a != "" {
		return a
	}
	return templateAction
}

// convertParamLevels maps provider level hints into catalog entries.
// Unknown types classify by which side of the base price they sit on.
func convertParamLevels(in []narrative.ParamLevel, basePrice float64) []levels.KeyLevel {
	var out []levels.KeyLevel
	for _, pl := range in {
		if pl.Price <= 0 {
			continue
		}
		lt := levels.LevelType(pl.Type)
		switch lt {
		case levels.TypeSupport, levels.TypeResistance, levels.TypeVWAP,
			levels.TypeOpeningRange, levels.TypeRoundNumber, levels.TypeGap:
		default:
			if pl.Price < basePrice {
				lt = levels.TypeSupport
			} else {
				lt = levels.TypeResistance
			}
		}
		label := pl.Label
		if label == "" {
			label = fmt.Sprintf("Level %.2f", pl.Price)
		}
		out = append(out, levels.KeyLevel{
			Price:     pl.Price,
			Label:     label,
			Type:      lt,
			Strength:  70,
			Timeframe: levels.TimeframeDaily,
		})
	}
	return out
}

// scaleVolatility multiplies every phase's volatility by the narrative's
// requested character. The canned default of 0.4 maps to a 1.0 multiplier.
func scaleVolatility(phases []Phase, volatility float64) []Phase {
	if volatility <= 0 {
		volatility = 0.4
	}
	scale := 0.6 + volatility
	out := make([]Phase, len(phases))
	for i, p := range phases {
		p.Volatility *= scale
		out[i] = p
	}
	return out
}

// sessionStart anchors the bar clock at the 9:30 ET open of the current
// session date.
func (g *Generator) sessionStart() time.Time {
	loc := market.SessionLocation()
	now := g.now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 9, 30, 0, 0, loc)
}

// newRNG builds the random source for one generation. A zero seed draws
// entropy so unrelated requests never share a sequence; any other seed
// replays the exact same scenario numbers.
func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		var b [8]byte
		if _, err := crand.Read(b[:]); err == nil {
			seed = int64(binary.LittleEndian.Uint64(b[:]))
		}
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
	}
	return rand.New(rand.NewSource(seed))
}

func textOr(primary, fallback string) string {
	if primary != "" {
		return primary
	}
	return fallback
}
