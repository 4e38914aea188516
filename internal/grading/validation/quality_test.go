package validation

import "testing"

func TestQualityIndicators(t *testing.T) {
	ind := computeQualityIndicators(
		"Photosynthesis converts light energy into chemical energy",
		"Photosynthesis converts light energy into chemical energy",
	)

	if ind.LengthRatio != 1.0 {
		t.Errorf("Expected length ratio 1.0, got %.2f", ind.LengthRatio)
	}
	if ind.WordOverlap != 1.0 {
		t.Errorf("Expected full overlap, got %.2f", ind.WordOverlap)
	}
	if !ind.HasContent {
		t.Error("Expected HasContent true")
	}
	if ind.UncertaintyCount != 0 {
		t.Errorf("Expected 0 uncertainty matches, got %d", ind.UncertaintyCount)
	}
}

func TestLengthRatioCap(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	ind := computeQualityIndicators(string(long), "short model")
	if ind.LengthRatio != 2.0 {
		t.Errorf("Expected length ratio capped at 2.0, got %.2f", ind.LengthRatio)
	}
}

func TestUncertaintyDetection(t *testing.T) {
	ind := computeQualityIndicators("I don't know, I'm not sure about this, no idea really", "model answer")
	if ind.UncertaintyCount != 3 {
		t.Errorf("Expected 3 uncertainty matches, got %d", ind.UncertaintyCount)
	}

	// The estimate drops with each uncertainty hit
	confident := computeQualityIndicators("a clear answer about the model answer topic", "model answer")
	if ind.estimateScore() >= confident.estimateScore() {
		t.Errorf("Uncertain answer estimate %.1f should be below confident %.1f",
			ind.estimateScore(), confident.estimateScore())
	}
}

func TestEstimateScoreClamped(t *testing.T) {
	empty := computeQualityIndicators("", "model answer")
	if got := empty.estimateScore(); got != 0 {
		t.Errorf("Expected 0 for empty answer, got %.1f", got)
	}

	uncertain := QualityIndicators{UncertaintyCount: 3}
	if got := uncertain.estimateScore(); got != 0 {
		t.Errorf("Expected clamp at 0, got %.1f", got)
	}
}

func TestDontKnowPattern(t *testing.T) {
	matches := []string{
		"I don't know",
		"i dont know.",
		"Don't know",
		"no idea",
		"Not sure",
		"idk",
		"  I do not know  ",
	}
	for _, s := range matches {
		if !dontKnowPattern.MatchString(s) {
			t.Errorf("Expected %q to match the don't-know pattern", s)
		}
	}

	nonMatches := []string{
		"I don't know the second part, but photosynthesis uses light",
		"The answer is not sure to be complete but covers the basics",
		"idkfa",
	}
	for _, s := range nonMatches {
		if dontKnowPattern.MatchString(s) {
			t.Errorf("Expected %q to not match the don't-know pattern", s)
		}
	}
}

func TestCountSentiment(t *testing.T) {
	pos, neg := countSentiment("Excellent work, clear and accurate")
	if pos != 3 {
		t.Errorf("Expected 3 positive, got %d", pos)
	}
	if neg != 0 {
		t.Errorf("Expected 0 negative, got %d", neg)
	}

	pos, neg = countSentiment("Poor answer, missing key points and unclear")
	if neg != 3 {
		t.Errorf("Expected 3 negative, got %d", neg)
	}
}
