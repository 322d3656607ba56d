package database

import (
	"time"
)

// Skill tier constants
const (
	TierBeginner     = "beginner"
	TierIntermediate = "intermediate"
	TierAdvanced     = "advanced"
)

// User represents a trainee account
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	DisplayName  string     `json:"display_name"`
	SkillTier    string     `json:"skill_tier"`
	IsAdmin      bool       `json:"is_admin"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// ScenarioRecord persists a generated scenario. The full scenario payload is
// stored as JSON; the scalar columns exist for listing and filtering.
type ScenarioRecord struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Title         string    `json:"title"`
	Difficulty    string    `json:"difficulty"`
	SetupType     string    `json:"setup_type"`
	CorrectAction string    `json:"correct_action"`
	Payload       []byte    `json:"-"` // full scenario JSON
	CreatedAt     time.Time `json:"created_at"`
}

// Attempt represents one trainee decision against a scenario
type Attempt struct {
	ID            int64     `json:"id"`
	ScenarioID    string    `json:"scenario_id"`
	UserID        string    `json:"user_id"`
	Action        string    `json:"action"`
	Correct       bool      `json:"correct"`
	LevelScore    int       `json:"level_score"`
	TrendScore    int       `json:"trend_score"`
	PatienceScore int       `json:"patience_score"`
	CreatedAt     time.Time `json:"created_at"`
}

// AttemptStats aggregates a trainee's history
type AttemptStats struct {
	Total         int     `json:"total"`
	Correct       int     `json:"correct"`
	Accuracy      float64 `json:"accuracy"`
	AvgLevel      float64 `json:"avg_level_score"`
	AvgTrend      float64 `json:"avg_trend_score"`
	AvgPatience   float64 `json:"avg_patience_score"`
	ByDifficulty  map[string]int `json:"by_difficulty,omitempty"`
}
