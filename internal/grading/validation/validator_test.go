package validation

import (
	"strings"
	"testing"
)

const modelAnswer = "Photosynthesis converts light energy into chemical energy in plants"

func TestValidateScoreRejectsOutOfRange(t *testing.T) {
	s := NewService(LevelStandard)

	res := s.ValidateScore(Request{
		Score:         105,
		ModelAnswer:   modelAnswer,
		StudentAnswer: modelAnswer,
	})

	if res.IsValid {
		t.Error("Expected invalid result for score 105")
	}
	if res.AdjustedScore == nil || *res.AdjustedScore != 100 {
		t.Fatalf("Expected adjusted score 100, got %v", res.AdjustedScore)
	}
	if len(res.Errors) != 1 {
		t.Errorf("Expected 1 error, got %d", len(res.Errors))
	}
	// 1.0 minus the flat error penalty
	if res.Confidence != 0.8 {
		t.Errorf("Expected confidence 0.8, got %.3f", res.Confidence)
	}
	// Range rejection skips all advisory checks, including history
	if s.historyLen() != 0 {
		t.Errorf("Expected empty history after rejection, got %d", s.historyLen())
	}

	res = s.ValidateScore(Request{Score: -5, ModelAnswer: modelAnswer, StudentAnswer: modelAnswer})
	if res.AdjustedScore == nil || *res.AdjustedScore != 0 {
		t.Fatalf("Expected adjusted score 0, got %v", res.AdjustedScore)
	}
}

func TestValidateScoreCleanPass(t *testing.T) {
	s := NewService(LevelStandard)

	// Student answer identical to the model answer estimates at 85.
	res := s.ValidateScore(Request{
		Score:         85,
		ModelAnswer:   modelAnswer,
		StudentAnswer: modelAnswer,
		Feedback:      "excellent and accurate answer",
	})

	if !res.IsValid {
		t.Error("Expected valid result")
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", res.Warnings)
	}
	if res.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %.3f", res.Confidence)
	}
	if s.historyLen() != 1 {
		t.Errorf("Expected 1 history entry, got %d", s.historyLen())
	}
}

func TestCriteriaConsistencyTolerance(t *testing.T) {
	tests := []struct {
		level    Level
		score    int
		mean     float64
		wantFlag bool
	}{
		{LevelBasic, 80, 62, false},    // gap 18 within 20
		{LevelBasic, 80, 58, true},     // gap 22 over 20
		{LevelStandard, 80, 67, false}, // gap 13 within 15
		{LevelStandard, 80, 62, true},  // gap 18 over 15
		{LevelStrict, 80, 72, false},   // gap 8 within 10
		{LevelStrict, 80, 67, true},    // gap 13 over 10
	}

	for _, tt := range tests {
		s := NewService(tt.level)
		res := Result{IsValid: true, Confidence: 1.0, Details: make(map[string]any)}
		s.checkCriteriaConsistency(Request{
			Score:          tt.score,
			CriteriaScores: map[string]float64{"accuracy": tt.mean, "depth": tt.mean},
		}, &res)

		flagged := len(res.Warnings) > 0
		if flagged != tt.wantFlag {
			t.Errorf("%s level, score %d vs mean %.0f: expected flagged=%t, got %t",
				tt.level, tt.score, tt.mean, tt.wantFlag, flagged)
		}
		if tt.wantFlag && res.Confidence != 0.8 {
			t.Errorf("Expected confidence 0.8 after criteria warning, got %.3f", res.Confidence)
		}
	}
}

func TestFeedbackConsistency(t *testing.T) {
	s := NewService(LevelStandard)

	// High score, negative feedback
	res := s.ValidateScore(Request{
		Score:         90,
		ModelAnswer:   modelAnswer,
		StudentAnswer: modelAnswer,
		Feedback:      "incorrect and wrong, missing key points",
	})
	if len(res.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %v", res.Warnings)
	}
	if !strings.Contains(res.Warnings[0], "mostly negative") {
		t.Errorf("Unexpected warning: %s", res.Warnings[0])
	}
	if res.Confidence != 0.8 { // 0.85 - 0.05
		t.Errorf("Expected confidence 0.8, got %.3f", res.Confidence)
	}

	// Low score, positive feedback
	s2 := NewService(LevelStandard)
	res = s2.ValidateScore(Request{
		Score:         20,
		ModelAnswer:   modelAnswer,
		StudentAnswer: "plants use light",
		Feedback:      "good and clear explanation, well structured",
	})
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "mostly positive") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a positive-feedback warning, got %v", res.Warnings)
	}
}

func TestOutlierDetection(t *testing.T) {
	s := NewService(LevelStandard)

	// Seed the window with scores around 50
	for i := 0; i < 10; i++ {
		score := 48
		if i%2 == 0 {
			score = 52
		}
		s.ValidateScore(Request{
			Score:         score,
			ModelAnswer:   modelAnswer,
			StudentAnswer: "Photosynthesis converts light into chemical energy",
		})
	}

	res := s.ValidateScore(Request{
		Score:         95,
		ModelAnswer:   modelAnswer,
		StudentAnswer: modelAnswer,
	})

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "statistical outlier") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected an outlier warning, got %v", res.Warnings)
	}
	if _, ok := res.Details["zscore"]; !ok {
		t.Error("Expected zscore in details")
	}
}

func TestHistoryWindowEviction(t *testing.T) {
	s := NewService(LevelStandard)

	for i := 0; i < 25; i++ {
		s.ValidateScore(Request{
			Score:         50,
			ModelAnswer:   modelAnswer,
			StudentAnswer: "Photosynthesis converts light into chemical energy",
		})
	}

	if s.historyLen() != historyLimit {
		t.Errorf("Expected history capped at %d, got %d", historyLimit, s.historyLen())
	}
}

func TestOutlierNeedsMinimumSamples(t *testing.T) {
	s := NewService(LevelStandard)

	// Fewer than minSamplesForOutlier entries: no outlier check
	for i := 0; i < minSamplesForOutlier-1; i++ {
		s.ValidateScore(Request{
			Score:         50,
			ModelAnswer:   modelAnswer,
			StudentAnswer: "Photosynthesis converts light into chemical energy",
		})
	}

	res := s.ValidateScore(Request{
		Score:         95,
		ModelAnswer:   modelAnswer,
		StudentAnswer: modelAnswer,
	})
	for _, w := range res.Warnings {
		if strings.Contains(w, "statistical outlier") {
			t.Errorf("Outlier check should not run below %d samples", minSamplesForOutlier)
		}
	}
}

func TestDontKnowAnswerWithLowScore(t *testing.T) {
	s := NewService(LevelStandard)

	res := s.ValidateScore(Request{
		Score:         5,
		ModelAnswer:   modelAnswer,
		StudentAnswer: "I don't know",
	})

	if !res.IsValid {
		t.Error("Expected valid result; advisory checks never invalidate")
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "don't know") {
			found = true
		}
	}
	if !found {
		t.Fatalf(`Expected a "don't know" warning, got %v`, res.Warnings)
	}
	if res.Confidence > 0.6 {
		t.Errorf("Expected confidence at most 0.6, got %.3f", res.Confidence)
	}
}

func TestShortAnswerHighScore(t *testing.T) {
	s := NewService(LevelStandard)

	res := s.ValidateScore(Request{
		Score:         50,
		ModelAnswer:   modelAnswer,
		StudentAnswer: "ok",
	})

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "very short answer") {
			found = true
		}
	}
	if !found {
		t.Fatalf("Expected a short-answer warning, got %v", res.Warnings)
	}
	if res.Confidence >= 0.7 {
		t.Errorf("Expected confidence below 0.7, got %.3f", res.Confidence)
	}
}

func TestConfidenceNeverNegative(t *testing.T) {
	s := NewService(LevelStrict)

	// Pile up as many penalties as possible
	res := s.ValidateScore(Request{
		Score:          95,
		ModelAnswer:    modelAnswer,
		StudentAnswer:  "idk",
		CriteriaScores: map[string]float64{"accuracy": 10},
		Feedback:       "wrong, incorrect, missing everything, incomplete",
	})

	if res.Confidence < 0 {
		t.Errorf("Confidence must not go negative, got %.3f", res.Confidence)
	}
	if res.Confidence > 0.5 {
		t.Errorf("Expected heavily degraded confidence, got %.3f", res.Confidence)
	}
}
