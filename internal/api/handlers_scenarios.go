package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"practice-trading-engine/internal/auth"
	"practice-trading-engine/internal/database"
	"practice-trading-engine/internal/market"
	"practice-trading-engine/internal/scenario"
)

// ==================== GENERATION ====================

func (s *Server) handleGenerateScenario(c *gin.Context) {
	var req scenario.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	// Default the difficulty to the trainee's skill tier when known.
	if req.Difficulty == "" && s.authService != nil {
		req.Difficulty = scenario.Difficulty(auth.GetSkillTier(c))
	}

	scn := s.generator.Generate(c.Request.Context(), req)

	s.persistScenario(c.Request.Context(), scn)
	s.eventBus.PublishScenarioGenerated(scn.ID, string(scn.SetupType), string(scn.Difficulty), len(scn.Bars))

	successResponse(c, scn)
}

// persistScenario writes the scenario to the cache and, when a database is
// configured, to durable storage. Failures are logged, never surfaced; the
// generated scenario is already in the caller's hands.
func (s *Server) persistScenario(ctx context.Context, scn *scenario.Scenario) {
	if s.cache != nil {
		if err := s.cache.Put(ctx, scn.ID, scn); err != nil {
			s.log.Warn().Err(err).Str("scenario_id", scn.ID).Msg("scenario cache write failed")
		}
	}
	if s.repo == nil {
		return
	}

	payload, err := json.Marshal(scn)
	if err != nil {
		s.log.Error().Err(err).Str("scenario_id", scn.ID).Msg("scenario marshal failed")
		return
	}
	rec := &database.ScenarioRecord{
		ID:            scn.ID,
		Symbol:        scn.Symbol,
		Title:         scn.Title,
		Difficulty:    string(scn.Difficulty),
		SetupType:     string(scn.SetupType),
		CorrectAction: string(scn.CorrectAction),
		Payload:       payload,
		CreatedAt:     scn.CreatedAt,
	}
	if err := s.repo.SaveScenario(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("scenario_id", scn.ID).Msg("scenario save failed")
	}
}

// ==================== RETRIEVAL ====================

// loadScenario fetches a scenario by ID, cache first, then database.
func (s *Server) loadScenario(ctx context.Context, id string) (*scenario.Scenario, error) {
	if s.cache != nil {
		var scn scenario.Scenario
		found, err := s.cache.Get(ctx, id, &scn)
		if err != nil {
			s.log.Warn().Err(err).Str("scenario_id", id).Msg("scenario cache read failed")
		}
		if found {
			return &scn, nil
		}
	}

	if s.repo == nil {
		return nil, nil
	}
	rec, err := s.repo.GetScenario(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}

	var scn scenario.Scenario
	if err := json.Unmarshal(rec.Payload, &scn); err != nil {
		return nil, err
	}

	// Re-warm the cache on a database hit.
	if s.cache != nil {
		if err := s.cache.Put(ctx, id, &scn); err != nil {
			s.log.Warn().Err(err).Str("scenario_id", id).Msg("scenario cache rewarm failed")
		}
	}
	return &scn, nil
}

func (s *Server) handleGetScenario(c *gin.Context) {
	id := c.Param("id")

	scn, err := s.loadScenario(c.Request.Context(), id)
	if err != nil {
		s.requestLog(c).Error().Err(err).Str("scenario_id", id).Msg("scenario load failed")
		errorResponse(c, http.StatusInternalServerError, "failed to load scenario")
		return
	}
	if scn == nil {
		errorResponse(c, http.StatusNotFound, "scenario not found")
		return
	}
	successResponse(c, scn)
}

// ScenarioSummary is the list view of a stored scenario, without bars.
type ScenarioSummary struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Title      string    `json:"title"`
	Difficulty string    `json:"difficulty"`
	SetupType  string    `json:"setupType"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (s *Server) handleListScenarios(c *gin.Context) {
	if s.repo == nil {
		successResponse(c, []ScenarioSummary{})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	difficulty := c.Query("difficulty")

	records, err := s.repo.ListScenarios(c.Request.Context(), difficulty, limit)
	if err != nil {
		s.requestLog(c).Error().Err(err).Msg("scenario list failed")
		errorResponse(c, http.StatusInternalServerError, "failed to list scenarios")
		return
	}

	summaries := make([]ScenarioSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, ScenarioSummary{
			ID:         rec.ID,
			Symbol:     rec.Symbol,
			Title:      rec.Title,
			Difficulty: rec.Difficulty,
			SetupType:  rec.SetupType,
			CreatedAt:  rec.CreatedAt,
		})
	}
	successResponse(c, summaries)
}

// ==================== ATTEMPTS ====================

// AttemptRequest is a trainee's committed action at the decision point.
type AttemptRequest struct {
	Action string `json:"action" binding:"required"`
}

// AttemptResponse grades the attempt and reveals the outcome.
type AttemptResponse struct {
	Correct       bool                    `json:"correct"`
	CorrectAction scenario.Action         `json:"correctAction"`
	Explanation   string                  `json:"explanation"`
	LTP           scenario.ScoreBreakdown `json:"ltp"`
	OutcomeBars   []market.Bar            `json:"outcomeBars"`
}

func (s *Server) handleSubmitAttempt(c *gin.Context) {
	id := c.Param("id")

	var req AttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	action := scenario.ParseAction(req.Action)
	if action == "" {
		errorResponse(c, http.StatusBadRequest, "action must be long, short, or wait")
		return
	}

	scn, err := s.loadScenario(c.Request.Context(), id)
	if err != nil {
		s.requestLog(c).Error().Err(err).Str("scenario_id", id).Msg("scenario load failed")
		errorResponse(c, http.StatusInternalServerError, "failed to load scenario")
		return
	}
	if scn == nil {
		errorResponse(c, http.StatusNotFound, "scenario not found")
		return
	}

	correct := action == scn.CorrectAction

	userID := ""
	if s.authService != nil {
		userID = auth.GetUserID(c)
	}

	if s.repo != nil {
		attempt := &database.Attempt{
			ScenarioID:    id,
			UserID:        userID,
			Action:        string(action),
			Correct:       correct,
			LevelScore:    scn.LTP.LevelScore,
			TrendScore:    scn.LTP.TrendScore,
			PatienceScore: scn.LTP.PatienceScore,
		}
		if err := s.repo.SaveAttempt(c.Request.Context(), attempt); err != nil {
			s.requestLog(c).Error().Err(err).Str("scenario_id", id).Msg("attempt save failed")
		}
	}

	s.eventBus.PublishAttemptSubmitted(id, userID, string(action), correct)

	successResponse(c, AttemptResponse{
		Correct:       correct,
		CorrectAction: scn.CorrectAction,
		Explanation:   scn.Explanation,
		LTP:           scn.LTP,
		OutcomeBars:   scn.OutcomeBars,
	})
}

func (s *Server) handleListAttempts(c *gin.Context) {
	if s.repo == nil {
		successResponse(c, []database.Attempt{})
		return
	}

	userID := auth.GetUserID(c)
	if userID == "" {
		errorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	attempts, err := s.repo.ListAttemptsByUser(c.Request.Context(), userID, limit)
	if err != nil {
		s.requestLog(c).Error().Err(err).Msg("attempt list failed")
		errorResponse(c, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	successResponse(c, attempts)
}

func (s *Server) handleAttemptStats(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "statistics require a database")
		return
	}

	userID := auth.GetUserID(c)
	if userID == "" {
		errorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	stats, err := s.repo.GetAttemptStats(c.Request.Context(), userID)
	if err != nil {
		s.requestLog(c).Error().Err(err).Msg("attempt stats failed")
		errorResponse(c, http.StatusInternalServerError, "failed to compute statistics")
		return
	}
	successResponse(c, stats)
}
