package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"practice-trading-engine/internal/indicators"
	"practice-trading-engine/internal/levels"
	"practice-trading-engine/internal/market"
	"practice-trading-engine/internal/patience"
)

// maxAnalysisBars caps the bar history accepted by the analysis endpoints.
const maxAnalysisBars = 5000

// ==================== INDICATORS ====================

// IndicatorRequest carries the bar history to analyze plus optional tuning.
type IndicatorRequest struct {
	Bars          []market.Bar `json:"bars" binding:"required"`
	EMAPeriods    []int        `json:"emaPeriods,omitempty"`
	SMAPeriods    []int        `json:"smaPeriods,omitempty"`
	ProfileLevels int          `json:"profileLevels,omitempty"`
}

// IndicatorResponse bundles every indicator series for one bar history.
type IndicatorResponse struct {
	EMA           map[int][]float64         `json:"ema,omitempty"`
	SMA           map[int][]float64         `json:"sma,omitempty"`
	VWAP          *indicators.VWAPBands     `json:"vwap"`
	Ribbon        []indicators.RibbonState  `json:"ribbon"`
	VolumeProfile *indicators.VolumeProfile `json:"volumeProfile"`
}

func (s *Server) handleAnalyzeIndicators(c *gin.Context) {
	var req IndicatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if len(req.Bars) == 0 {
		errorResponse(c, http.StatusBadRequest, "bars must not be empty")
		return
	}
	if len(req.Bars) > maxAnalysisBars {
		errorResponse(c, http.StatusBadRequest, "too many bars")
		return
	}

	start := time.Now()

	closes := make([]float64, len(req.Bars))
	for i, b := range req.Bars {
		closes[i] = b.Close
	}

	resp := IndicatorResponse{}

	if len(req.EMAPeriods) > 0 {
		resp.EMA = make(map[int][]float64, len(req.EMAPeriods))
		for _, p := range req.EMAPeriods {
			if p > 0 {
				resp.EMA[p] = indicators.EMA(closes, p)
			}
		}
	}
	if len(req.SMAPeriods) > 0 {
		resp.SMA = make(map[int][]float64, len(req.SMAPeriods))
		for _, p := range req.SMAPeriods {
			if p > 0 {
				resp.SMA[p] = indicators.SMA(closes, p)
			}
		}
	}

	resp.VWAP = indicators.CalculateVWAPBands(req.Bars)
	resp.Ribbon = indicators.CalculateEMARibbon(closes, indicators.DefaultRibbonConfig())

	profileLevels := req.ProfileLevels
	if profileLevels <= 0 {
		profileLevels = s.cfg.EngineConfig.ProfileLevels
	}
	if profileLevels <= 0 {
		profileLevels = 24
	}
	resp.VolumeProfile = indicators.CalculateVolumeProfile(req.Bars, profileLevels)

	s.eventBus.PublishAnalysisRun("indicators", len(req.Bars), time.Since(start).Milliseconds())
	successResponse(c, resp)
}

// ==================== KEY LEVELS ====================

// LevelsRequest carries daily and intraday history for level detection.
type LevelsRequest struct {
	Daily         []market.Bar `json:"daily"`
	Intraday      []market.Bar `json:"intraday"`
	CurrentPrice  float64      `json:"currentPrice"`
	PreMarketHigh float64      `json:"preMarketHigh,omitempty"`
	PreMarketLow  float64      `json:"preMarketLow,omitempty"`
	TopCount      int          `json:"topCount,omitempty"`
}

// LevelsResponse is the detected catalog plus the score of the latest bar.
type LevelsResponse struct {
	Levels    []levels.KeyLevel  `json:"levels"`
	TopLevels []levels.KeyLevel  `json:"topLevels"`
	Score     *levels.LevelScore `json:"score,omitempty"`
}

func (s *Server) handleAnalyzeLevels(c *gin.Context) {
	var req LevelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if len(req.Daily) == 0 && len(req.Intraday) == 0 {
		errorResponse(c, http.StatusBadRequest, "daily or intraday bars are required")
		return
	}
	if len(req.Daily) > maxAnalysisBars || len(req.Intraday) > maxAnalysisBars {
		errorResponse(c, http.StatusBadRequest, "too many bars")
		return
	}

	start := time.Now()

	price := req.CurrentPrice
	if price <= 0 {
		if n := len(req.Intraday); n > 0 {
			price = req.Intraday[n-1].Close
		} else {
			price = req.Daily[len(req.Daily)-1].Close
		}
	}

	catalog := levels.CalculateAllLevels(levels.Input{
		Daily:               req.Daily,
		Intraday:            req.Intraday,
		CurrentPrice:        price,
		PreMarketHigh:       req.PreMarketHigh,
		PreMarketLow:        req.PreMarketLow,
		OpeningRangeMinutes: s.cfg.EngineConfig.OpeningRangeMinutes,
	})

	topCount := req.TopCount
	if topCount <= 0 {
		topCount = 5
	}

	resp := LevelsResponse{
		Levels:    catalog,
		TopLevels: levels.GetTopLevels(catalog, price, topCount),
	}

	if n := len(req.Intraday); n > 0 {
		score := levels.CalculateLevelScore(req.Intraday[n-1], catalog, s.cfg.EngineConfig.AtLevelPercent)
		resp.Score = &score
	}

	s.eventBus.PublishAnalysisRun("levels", len(req.Daily)+len(req.Intraday), time.Since(start).Milliseconds())
	successResponse(c, resp)
}

// ==================== PATIENCE ====================

// PatienceRequest carries the bars and level catalog to scan for patience
// candles. When Levels is empty a catalog is derived from the bars.
type PatienceRequest struct {
	Bars     []market.Bar      `json:"bars" binding:"required"`
	Levels   []levels.KeyLevel `json:"levels,omitempty"`
	Lookback int               `json:"lookback,omitempty"`
}

// PatienceResponse lists detected signals and the aggregate score.
type PatienceResponse struct {
	Signals []patience.Signal `json:"signals"`
	Score   patience.Score    `json:"score"`
}

func (s *Server) handleAnalyzePatience(c *gin.Context) {
	var req PatienceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if len(req.Bars) == 0 {
		errorResponse(c, http.StatusBadRequest, "bars must not be empty")
		return
	}
	if len(req.Bars) > maxAnalysisBars {
		errorResponse(c, http.StatusBadRequest, "too many bars")
		return
	}

	start := time.Now()

	catalog := req.Levels
	if len(catalog) == 0 {
		catalog = levels.CalculateAllLevels(levels.Input{
			Intraday:            req.Bars,
			CurrentPrice:        req.Bars[len(req.Bars)-1].Close,
			OpeningRangeMinutes: s.cfg.EngineConfig.OpeningRangeMinutes,
		})
	}

	cfg := patience.Config{
		LookbackBars:     s.cfg.EngineConfig.PatienceLookback,
		ProximityPercent: s.cfg.EngineConfig.PatienceProximity,
	}
	if req.Lookback > 0 {
		cfg.LookbackBars = req.Lookback
	}
	if cfg.LookbackBars <= 0 {
		cfg.LookbackBars = patience.DefaultConfig().LookbackBars
	}
	if cfg.ProximityPercent <= 0 {
		cfg.ProximityPercent = patience.DefaultConfig().ProximityPercent
	}

	signals := patience.DetectPatienceCandles(req.Bars, catalog, cfg)
	score := patience.CalculatePatienceScore(signals, len(req.Bars))

	for _, sig := range signals {
		s.eventBus.PublishPatienceSignal(string(sig.Pattern), sig.Level.Label, sig.Confidence)
	}
	s.eventBus.PublishAnalysisRun("patience", len(req.Bars), time.Since(start).Milliseconds())

	if signals == nil {
		signals = []patience.Signal{}
	}
	successResponse(c, PatienceResponse{Signals: signals, Score: score})
}
