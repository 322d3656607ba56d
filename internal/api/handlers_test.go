package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"practice-trading-engine/config"
	"practice-trading-engine/internal/auth"
	"practice-trading-engine/internal/database"
	"practice-trading-engine/internal/events"
	"practice-trading-engine/internal/market"
	"practice-trading-engine/internal/scenario"
	"practice-trading-engine/internal/vault"
)

func testServer() *Server {
	cfg := &config.Config{}
	cfg.ServerConfig.Port = 8080
	cfg.EngineConfig.ProfileLevels = 24
	cfg.EngineConfig.AtLevelPercent = 0.3
	cfg.EngineConfig.PatienceLookback = 10
	cfg.EngineConfig.PatienceProximity = 0.5

	logger := zerolog.Nop()
	cache := database.NewScenarioCache(database.RedisConfig{}, logger)
	generator := scenario.NewGenerator(nil, logger)

	return NewServer(cfg, nil, cache, generator, nil, events.NewEventBus(), vault.NewMockClient(), logger)
}

func testBars(count int, start float64) []market.Bar {
	bars := make([]market.Bar, count)
	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	price := start
	for i := 0; i < count; i++ {
		open := price
		close := price + 0.25
		bars[i] = market.Bar{
			OpenTime: base.Add(time.Duration(i) * 5 * time.Minute).UnixMilli(),
			Open:     open,
			High:     close + 0.10,
			Low:      open - 0.10,
			Close:    close,
			Volume:   100000,
		}
		price = close
	}
	return bars
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer()
	w := doJSON(t, s, http.MethodGet, "/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", resp["status"])
	}
}

func TestAnalyzeIndicators(t *testing.T) {
	s := testServer()
	w := doJSON(t, s, http.MethodPost, "/api/v1/analysis/indicators", IndicatorRequest{
		Bars:       testBars(60, 100),
		EMAPeriods: []int{9, 21},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool              `json:"success"`
		Data    IndicatorResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Error("expected success")
	}
	if len(resp.Data.EMA[9]) != 60 || len(resp.Data.EMA[21]) != 60 {
		t.Errorf("expected 60-element EMA series, got %d and %d", len(resp.Data.EMA[9]), len(resp.Data.EMA[21]))
	}
	if len(resp.Data.Ribbon) != 60 {
		t.Errorf("expected 60 ribbon states, got %d", len(resp.Data.Ribbon))
	}
	if resp.Data.VWAP == nil || len(resp.Data.VWAP.VWAP) != 60 {
		t.Error("expected VWAP bands for every bar")
	}
	if resp.Data.VolumeProfile == nil || len(resp.Data.VolumeProfile.Levels) != 24 {
		t.Error("expected 24-level volume profile")
	}
}

func TestAnalyzeIndicatorsRejectsEmptyBars(t *testing.T) {
	s := testServer()
	w := doJSON(t, s, http.MethodPost, "/api/v1/analysis/indicators", map[string]interface{}{
		"bars": []market.Bar{},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAnalyzeLevels(t *testing.T) {
	s := testServer()

	daily := testBars(30, 95)
	intraday := testBars(80, 100)

	w := doJSON(t, s, http.MethodPost, "/api/v1/analysis/levels", LevelsRequest{
		Daily:    daily,
		Intraday: intraday,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool           `json:"success"`
		Data    LevelsResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data.Levels) == 0 {
		t.Error("expected a non-empty level catalog")
	}
	if len(resp.Data.TopLevels) == 0 || len(resp.Data.TopLevels) > 5 {
		t.Errorf("expected 1-5 top levels, got %d", len(resp.Data.TopLevels))
	}
	if resp.Data.Score == nil {
		t.Error("expected a level score when intraday bars are present")
	}
}

func TestAnalyzePatience(t *testing.T) {
	s := testServer()
	w := doJSON(t, s, http.MethodPost, "/api/v1/analysis/patience", PatienceRequest{
		Bars: testBars(40, 100),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool             `json:"success"`
		Data    PatienceResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Score.Score < 0 || resp.Data.Score.Score > 100 {
		t.Errorf("patience score out of range: %f", resp.Data.Score.Score)
	}
	if resp.Data.Score.Reason == "" {
		t.Error("expected a patience reason")
	}
}

func TestGenerateAndFetchScenario(t *testing.T) {
	s := testServer()

	w := doJSON(t, s, http.MethodPost, "/api/v1/scenarios", scenario.Request{
		Difficulty: scenario.DifficultyBeginner,
		SetupType:  scenario.SetupSupportBounce,
		Seed:       42,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var genResp struct {
		Success bool              `json:"success"`
		Data    scenario.Scenario `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &genResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	scn := genResp.Data
	if scn.ID == "" {
		t.Fatal("expected a scenario ID")
	}
	if scn.SetupType != scenario.SetupSupportBounce {
		t.Errorf("expected support_bounce, got %s", scn.SetupType)
	}
	if len(scn.Bars) == 0 {
		t.Fatal("expected scenario bars")
	}

	// The generated scenario must be retrievable from the cache.
	w = doJSON(t, s, http.MethodGet, "/api/v1/scenarios/"+scn.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on fetch, got %d: %s", w.Code, w.Body.String())
	}

	var getResp struct {
		Success bool              `json:"success"`
		Data    scenario.Scenario `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &getResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if getResp.Data.ID != scn.ID {
		t.Errorf("fetched scenario ID %s, want %s", getResp.Data.ID, scn.ID)
	}
	if len(getResp.Data.Bars) != len(scn.Bars) {
		t.Errorf("fetched %d bars, want %d", len(getResp.Data.Bars), len(scn.Bars))
	}
}

func TestGetScenarioNotFound(t *testing.T) {
	s := testServer()
	w := doJSON(t, s, http.MethodGet, "/api/v1/scenarios/no-such-id", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSubmitAttempt(t *testing.T) {
	s := testServer()

	w := doJSON(t, s, http.MethodPost, "/api/v1/scenarios", scenario.Request{
		Difficulty: scenario.DifficultyBeginner,
		SetupType:  scenario.SetupSupportBounce,
		Seed:       7,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("generate failed: %d", w.Code)
	}
	var genResp struct {
		Data scenario.Scenario `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &genResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/scenarios/"+genResp.Data.ID+"/attempts",
		AttemptRequest{Action: string(genResp.Data.CorrectAction)})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var attResp struct {
		Success bool            `json:"success"`
		Data    AttemptResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &attResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !attResp.Data.Correct {
		t.Error("matching action should grade correct")
	}
	if attResp.Data.Explanation == "" {
		t.Error("expected an explanation")
	}

	// A wrong action grades incorrect but still reveals the answer.
	wrong := "short"
	if genResp.Data.CorrectAction == scenario.ActionShort {
		wrong = "long"
	}
	w = doJSON(t, s, http.MethodPost, "/api/v1/scenarios/"+genResp.Data.ID+"/attempts",
		AttemptRequest{Action: wrong})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &attResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if attResp.Data.Correct {
		t.Error("mismatched action should grade incorrect")
	}
	if attResp.Data.CorrectAction != genResp.Data.CorrectAction {
		t.Error("response should reveal the correct action")
	}
}

func TestSubmitAttemptInvalidAction(t *testing.T) {
	s := testServer()
	w := doJSON(t, s, http.MethodPost, "/api/v1/scenarios/some-id/attempts",
		AttemptRequest{Action: "hodl"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAuthDisabledReturns503(t *testing.T) {
	s := testServer()
	w := doJSON(t, s, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "trainee@example.com",
		"password": "password123",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with auth disabled, got %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow("client") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.Allow("client") {
		t.Error("fourth request should be rejected")
	}
	if !rl.Allow("other") {
		t.Error("different key should not be limited")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	s := testServer()
	codes := make([]int, 0, 35)
	for i := 0; i < 35; i++ {
		w := doJSON(t, s, http.MethodPost, "/api/v1/scenarios", scenario.Request{
			Difficulty: scenario.DifficultyBeginner,
			Seed:       int64(i + 1),
		})
		codes = append(codes, w.Code)
	}
	limited := 0
	for _, code := range codes {
		if code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited == 0 {
		t.Error("expected at least one rate-limited response after 35 requests")
	}
}

func TestListScenariosWithoutDatabase(t *testing.T) {
	s := testServer()
	w := doJSON(t, s, http.MethodGet, "/api/v1/scenarios?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Success bool              `json:"success"`
		Data    []ScenarioSummary `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 0 {
		t.Errorf("expected empty list without a database, got %d", len(resp.Data))
	}
}

func TestScenarioDifficultyRoundTrip(t *testing.T) {
	s := testServer()
	for _, diff := range []scenario.Difficulty{
		scenario.DifficultyBeginner,
		scenario.DifficultyIntermediate,
		scenario.DifficultyAdvanced,
	} {
		w := doJSON(t, s, http.MethodPost, "/api/v1/scenarios", scenario.Request{
			Difficulty: diff,
			Seed:       99,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", diff, w.Code)
		}
		var resp struct {
			Data scenario.Scenario `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Data.Difficulty != diff {
			t.Errorf("expected difficulty %s, got %s", diff, resp.Data.Difficulty)
		}
	}
}

func TestScenarioSummaryFields(t *testing.T) {
	sum := ScenarioSummary{
		ID:         "abc",
		Symbol:     "SPY",
		Title:      "Support Bounce",
		Difficulty: "beginner",
		SetupType:  "support_bounce",
	}
	data, err := json.Marshal(sum)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{"id", "symbol", "title", "difficulty", "setupType"} {
		if !bytes.Contains(data, []byte(fmt.Sprintf("%q", key))) {
			t.Errorf("summary JSON missing key %s", key)
		}
	}
}

// ==================== TRACING ====================

func TestResponsesCarryTraceID(t *testing.T) {
	s := testServer()

	first := doJSON(t, s, http.MethodGet, "/health", nil)
	second := doJSON(t, s, http.MethodGet, "/health", nil)

	a := first.Header().Get("X-Trace-ID")
	b := second.Header().Get("X-Trace-ID")
	if a == "" || b == "" {
		t.Fatal("every response must carry an X-Trace-ID header")
	}
	if a == b {
		t.Error("trace IDs must differ per request")
	}
}

// ==================== ADMIN KEY MANAGEMENT ====================

type fakeUserStore struct {
	users map[string]*database.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*database.User)}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*database.User, error) {
	return f.users[email], nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (*database.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) EmailExists(_ context.Context, email string) (bool, error) {
	_, ok := f.users[email]
	return ok, nil
}

func (f *fakeUserStore) CreateUser(_ context.Context, user *database.User) error {
	f.users[user.Email] = user
	return nil
}

func (f *fakeUserStore) UpdateLastLogin(_ context.Context, _ string) error {
	return nil
}

func authTestServer(t *testing.T) (*Server, *auth.Service) {
	t.Helper()

	cfg := &config.Config{}
	cfg.ServerConfig.Port = 8080
	cfg.EngineConfig.ProfileLevels = 24

	logger := zerolog.Nop()
	svc, err := auth.NewService(newFakeUserStore(), auth.Config{JWTSecret: "test-secret"}, logger)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}

	cache := database.NewScenarioCache(database.RedisConfig{}, logger)
	generator := scenario.NewGenerator(nil, logger)
	s := NewServer(cfg, nil, cache, generator, svc, events.NewEventBus(), vault.NewMockClient(), logger)
	return s, svc
}

func doAuthJSON(t *testing.T, s *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestAdminNarrativeKeyRequiresAdmin(t *testing.T) {
	s, svc := authTestServer(t)

	w := doAuthJSON(t, s, http.MethodPut, "/api/v1/admin/narrative-keys/claude", "",
		NarrativeKeyRequest{APIKey: "sk-test"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", w.Code)
	}

	token, err := svc.GetJWTManager().GenerateAccessToken(auth.UserClaims{
		UserID: "u1", Email: "trainee@example.com", SkillTier: "beginner",
	})
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	w = doAuthJSON(t, s, http.MethodPut, "/api/v1/admin/narrative-keys/claude", token,
		NarrativeKeyRequest{APIKey: "sk-test"})
	if w.Code != http.StatusForbidden {
		t.Errorf("non-admin token: expected 403, got %d", w.Code)
	}
}

func TestAdminNarrativeKeyRoundTrip(t *testing.T) {
	s, svc := authTestServer(t)

	token, err := svc.GetJWTManager().GenerateAccessToken(auth.UserClaims{
		UserID: "a1", Email: "admin@example.com", IsAdmin: true,
	})
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	w := doAuthJSON(t, s, http.MethodPut, "/api/v1/admin/narrative-keys/claude", token,
		NarrativeKeyRequest{APIKey: "sk-rotated", Model: "claude-sonnet-4-20250514"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	secret, err := s.vaultClient.GetProviderSecret(context.Background(), "claude")
	if err != nil {
		t.Fatalf("stored secret: %v", err)
	}
	if secret.APIKey != "sk-rotated" || secret.Model != "claude-sonnet-4-20250514" {
		t.Errorf("stored secret = %+v", secret)
	}

	w = doAuthJSON(t, s, http.MethodDelete, "/api/v1/admin/narrative-keys/claude", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	if _, err := s.vaultClient.GetProviderSecret(context.Background(), "claude"); err == nil {
		t.Error("secret should be gone after delete")
	}
}

func TestAdminNarrativeKeyRejectsUnknownProvider(t *testing.T) {
	s, svc := authTestServer(t)

	token, err := svc.GetJWTManager().GenerateAccessToken(auth.UserClaims{
		UserID: "a1", Email: "admin@example.com", IsAdmin: true,
	})
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	w := doAuthJSON(t, s, http.MethodPut, "/api/v1/admin/narrative-keys/grok", token,
		NarrativeKeyRequest{APIKey: "sk-test"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown provider, got %d", w.Code)
	}
}
