package narrative

import (
	"context"
	"encoding/json"
	"testing"
)

func TestStripMarkdownCodeBlock(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}

	for _, tc := range cases {
		if got := stripMarkdownCodeBlock(tc.in); got != tc.want {
			t.Errorf("stripMarkdownCodeBlock(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestParamsPartialResponse verifies any subset of fields may be absent and
// gets a sensible default.
func TestParamsPartialResponse(t *testing.T) {
	raw := `{"title": "Gap Day", "correctAction": "short"}`

	var params Params
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	params.ApplyDefaults(Request{Difficulty: "beginner", SetupType: "gap_fill"})

	if params.Title != "Gap Day" {
		t.Errorf("title = %q, want the provided one", params.Title)
	}
	if params.CorrectAction != "short" {
		t.Errorf("correctAction = %q, want short", params.CorrectAction)
	}
	if params.BasePrice <= 0 {
		t.Error("basePrice should default to a positive value")
	}
	if params.PriceAction.Volatility <= 0 {
		t.Error("volatility should default to a positive value")
	}
	if params.PriceAction.Pattern != "gap_fill" {
		t.Errorf("pattern = %q, want the requested setup type", params.PriceAction.Pattern)
	}
	if params.DecisionContext == "" || params.Explanation == "" {
		t.Error("context and explanation should never be empty after defaults")
	}
}

func TestParamsMalformedResponseIsAnError(t *testing.T) {
	var params Params
	if err := json.Unmarshal([]byte(`not json at all`), &params); err == nil {
		t.Error("malformed response should fail to parse")
	}
}

func TestStaticProviderDeterministic(t *testing.T) {
	static := NewStatic()
	req := Request{Symbol: "PRAC", Difficulty: "intermediate"}

	first, err := static.GenerateParams(context.Background(), req)
	if err != nil {
		t.Fatalf("static provider must never fail: %v", err)
	}
	second, _ := static.GenerateParams(context.Background(), req)

	if first.Title != second.Title || first.BasePrice != second.BasePrice {
		t.Error("static provider should be deterministic for the same request")
	}
	if first.PriceAction.Pattern != "vwap_reclaim" {
		t.Errorf("intermediate tier pattern = %q, want vwap_reclaim", first.PriceAction.Pattern)
	}
}

func TestStaticProviderTierFallback(t *testing.T) {
	static := NewStatic()

	params, err := static.GenerateParams(context.Background(), Request{Difficulty: "no-such-tier"})
	if err != nil {
		t.Fatalf("static provider must never fail: %v", err)
	}
	if params.Title != cannedParams["beginner"].Title {
		t.Errorf("unknown tier should fall back to beginner, got %q", params.Title)
	}
}

func TestUnconfiguredClientErrors(t *testing.T) {
	client := NewClient(&ClientConfig{Provider: ProviderClaude}, testLogger())
	if _, err := client.GenerateParams(context.Background(), Request{Difficulty: "beginner"}); err == nil {
		t.Error("client without an API key should error so the caller falls back")
	}
}
