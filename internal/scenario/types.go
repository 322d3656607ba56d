package scenario

import (
	"time"

	"practice-trading-engine/internal/levels"
	"practice-trading-engine/internal/market"
)

// Difficulty tiers a practice scenario.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Action is the ground-truth correct move at the decision point.
type Action string

const (
	ActionLong  Action = "long"
	ActionShort Action = "short"
	ActionWait  Action = "wait"
)

// ParseAction returns the Action for a string, or "" when unrecognized.
func ParseAction(s string) Action {
	switch Action(s) {
	case ActionLong, ActionShort, ActionWait:
		return Action(s)
	default:
		return ""
	}
}

// DecisionPoint marks where the trainee must commit to an action.
type DecisionPoint struct {
	BarIndex  int     `json:"barIndex"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
	Narrative string  `json:"narrative"`
}

// ScoreBreakdown grades the setup on the three LTP factors at the decision
// point, each with its textual justification.
type ScoreBreakdown struct {
	LevelScore     int    `json:"levelScore"`
	LevelReason    string `json:"levelReason"`
	TrendScore     int    `json:"trendScore"`
	TrendReason    string `json:"trendReason"`
	PatienceScore  int    `json:"patienceScore"`
	PatienceReason string `json:"patienceReason"`
}

// Scenario is one complete practice session. It is immutable once built;
// regeneration replaces the whole object, never part of it.
type Scenario struct {
	ID            string            `json:"id"`
	Symbol        string            `json:"symbol"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Difficulty    Difficulty        `json:"difficulty"`
	SetupType     SetupType         `json:"setupType"`
	Bars          []market.Bar      `json:"bars"` // pre-decision sequence
	KeyLevels     []levels.KeyLevel `json:"keyLevels"`
	Decision      DecisionPoint     `json:"decision"`
	CorrectAction Action            `json:"correctAction"`
	OutcomeBars   []market.Bar      `json:"outcomeBars"`
	LTP           ScoreBreakdown    `json:"ltp"`
	Explanation   string            `json:"explanation"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Request asks the generator for one scenario.
type Request struct {
	Symbol        string     `json:"symbol"`
	Difficulty    Difficulty `json:"difficulty"`
	FocusArea     string     `json:"focusArea,omitempty"`
	SetupType     SetupType  `json:"setupType,omitempty"`
	MarketContext string     `json:"marketContext,omitempty"`

	// Seed pins the random source for replayable generation. Zero means
	// seed from entropy.
	Seed int64 `json:"seed,omitempty"`
}
