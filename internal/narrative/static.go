package narrative

import "context"

// Static is the deterministic narrative provider. It never fails and never
// touches the network, which makes it both the configured no-AI mode and the
// fallback when the LLM call errors out.
type Static struct{}

// NewStatic creates the deterministic provider.
func NewStatic() *Static {
	return &Static{}
}

// canned scenarios, one per difficulty tier.
var cannedParams = map[string]Params{
	"beginner": {
		Title:       "Morning Bounce at Support",
		Description: "A liquid large-cap pulls back to a well-tested support shelf after a steady open.",
		BasePrice:   185.00,
		PriceAction: PriceAction{Trend: "up", Volatility: 0.4, Pattern: "support_bounce"},
		DecisionContext: "Price has pulled back to yesterday's support and small-bodied candles are printing. " +
			"Do you take the long, fade it, or wait?",
		CorrectAction: "long",
		LTP: LTPAnalysis{
			Level:    "Support has held on every test today and lines up with the prior day's low.",
			Trend:    "The broader drift is still upward; the pullback is orderly and on fading volume.",
			Patience: "Consecutive indecision candles at the level show sellers failing to press.",
		},
		Explanation: "Level, trend, and patience all align: a defended support inside an uptrend " +
			"with indecision candles is the textbook long entry.",
	},
	"intermediate": {
		Title:       "VWAP Reclaim After the Flush",
		Description: "An early washout drops price below VWAP before buyers stabilize and push back through it.",
		BasePrice:   92.50,
		PriceAction: PriceAction{Trend: "reversal", Volatility: 0.45, Pattern: "vwap_reclaim"},
		DecisionContext: "Price has reclaimed VWAP and is holding above it on a retest. " +
			"Is the reversal real, or is this a lower high?",
		CorrectAction: "long",
		LTP: LTPAnalysis{
			Level:    "VWAP flipped from resistance to support on the reclaim and the retest held.",
			Trend:    "Intraday structure just shifted: higher low into the reclaim, ribbon turning.",
			Patience: "The tight hold above VWAP after the push shows committed buyers, not a squeeze.",
		},
		Explanation: "A reclaimed-and-retested VWAP after a morning flush is a high-quality long, " +
			"but only after the retest holds; entering during the flush fails the patience test.",
	},
	"advanced": {
		Title:       "Bear Trap Below the Shelf",
		Description: "A heavily watched support breaks intraday, then snaps back above it within minutes.",
		BasePrice:   640.00,
		PriceAction: PriceAction{Trend: "reversal", Volatility: 0.6, Pattern: "bear_trap"},
		DecisionContext: "The breakdown found no follow-through and price has reclaimed the level on " +
			"expanding volume. Chase the shorts' exit, short the retest, or stand aside?",
		CorrectAction: "long",
		LTP: LTPAnalysis{
			Level:    "The failed breakdown converts the old support into a springboard; trapped shorts fuel it.",
			Trend:    "Trend is mixed, which is why the level and the failure pattern carry the decision.",
			Patience: "The entry exists only after the reclaim candle closes back above the shelf.",
		},
		Explanation: "Failed breakdowns are advanced setups: the signal is the failure itself. " +
			"The long works because the market just proved sellers could not hold the level.",
	},
}

// GenerateParams returns the canned parameter set for the request's
// difficulty tier. Unknown tiers get the beginner scenario. A requested
// setup type overrides the canned pattern so the phase choreography still
// matches what the caller asked for.
func (s *Static) GenerateParams(_ context.Context, req Request) (*Params, error) {
	canned, ok := cannedParams[req.Difficulty]
	if !ok {
		canned = cannedParams["beginner"]
	}

	params := canned // copy; canned map values stay pristine
	if req.SetupType != "" {
		params.PriceAction.Pattern = req.SetupType
	}
	params.ApplyDefaults(req)

	return &params, nil
}
