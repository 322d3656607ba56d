// Package narrative supplies descriptive parameters for practice scenarios.
//
// The numeric bar generation is never delegated here: a provider only
// contributes titles, context text, a base price, and level hints. The LLM
// client and the deterministic static provider implement the same interface,
// so the scenario engine stays fully testable without network access.
package narrative

import "context"

// Request describes the scenario being asked for.
type Request struct {
	Symbol        string `json:"symbol"`
	Difficulty    string `json:"difficulty"`
	FocusArea     string `json:"focusArea"`
	SetupType     string `json:"setupType,omitempty"`
	MarketContext string `json:"marketContext,omitempty"`
}

// ParamLevel is a level hint supplied by a provider.
type ParamLevel struct {
	Price float64 `json:"price"`
	Label string  `json:"label"`
	Type  string  `json:"type"`
}

// PriceAction describes the requested character of the price series.
type PriceAction struct {
	Trend      string  `json:"trend"`
	Volatility float64 `json:"volatility"`
	Pattern    string  `json:"pattern"`
}

// LTPAnalysis carries per-factor justification text (level/trend/patience).
type LTPAnalysis struct {
	Level    string `json:"level"`
	Trend    string `json:"trend"`
	Patience string `json:"patience"`
}

// Params is the descriptive parameter set for one scenario. Any subset of
// fields may be absent in a provider response; ApplyDefaults fills the gaps.
type Params struct {
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	BasePrice       float64      `json:"basePrice"`
	KeyLevels       []ParamLevel `json:"keyLevels"`
	PriceAction     PriceAction  `json:"priceAction"`
	DecisionContext string       `json:"decisionContext"`
	CorrectAction   string       `json:"correctAction"`
	LTP             LTPAnalysis  `json:"ltpAnalysis"`
	Explanation     string       `json:"explanation"`
}

// Provider generates scenario parameters. Implementations must treat any
// failure as fatal for the attempt; the caller owns the fallback.
type Provider interface {
	GenerateParams(ctx context.Context, req Request) (*Params, error)
}

// ApplyDefaults substitutes a sensible default for every absent field so a
// partial provider response is still usable.
func (p *Params) ApplyDefaults(req Request) {
	if p.Title == "" {
		p.Title = "Practice Session"
	}
	if p.Description == "" {
		p.Description = "Read the tape, find the level, and wait for your setup."
	}
	if p.BasePrice <= 0 {
		p.BasePrice = 185.00
	}
	if p.PriceAction.Volatility <= 0 {
		p.PriceAction.Volatility = 0.4
	}
	if p.PriceAction.Trend == "" {
		p.PriceAction.Trend = "sideways"
	}
	if p.PriceAction.Pattern == "" {
		p.PriceAction.Pattern = req.SetupType
	}
	if p.DecisionContext == "" {
		p.DecisionContext = "Price is pressing into a key level. What is your move?"
	}
	if p.Explanation == "" {
		p.Explanation = "Grade the setup on level, trend, and patience before committing."
	}
}
