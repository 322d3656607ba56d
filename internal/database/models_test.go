package database

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAttemptStatsByDifficultyJSON(t *testing.T) {
	stats := AttemptStats{
		Total:    5,
		Correct:  3,
		Accuracy: 60,
		ByDifficulty: map[string]int{
			"beginner":     3,
			"intermediate": 2,
		},
	}

	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"by_difficulty"`) {
		t.Error("populated per-difficulty counts must appear in the JSON")
	}

	var decoded AttemptStats
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ByDifficulty["beginner"] != 3 || decoded.ByDifficulty["intermediate"] != 2 {
		t.Errorf("per-difficulty counts lost in round trip: %+v", decoded.ByDifficulty)
	}

	empty, err := json.Marshal(AttemptStats{Total: 0})
	if err != nil {
		t.Fatalf("marshal empty: %v", err)
	}
	if strings.Contains(string(empty), "by_difficulty") {
		t.Error("an absent map must be omitted from the JSON")
	}
}
