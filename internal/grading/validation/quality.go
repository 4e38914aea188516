package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// QualityIndicators are cheap heuristics comparing a student answer to
// the model answer.
type QualityIndicators struct {
	LengthRatio      float64 // student length / model length, capped at 2.0
	WordOverlap      float64 // fraction of model-answer words present in the student answer
	HasContent       bool
	UncertaintyCount int // matched uncertainty phrases, capped
}

const uncertaintyCap = 3

var uncertaintyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)i\s+(don'?t|do\s+not)\s+know`),
	regexp.MustCompile(`(?i)\bnot\s+sure\b`),
	regexp.MustCompile(`(?i)\bno\s+idea\b`),
	regexp.MustCompile(`(?i)\bcan(no|')t\s+(answer|remember)\b`),
	regexp.MustCompile(`(?i)\bunsure\b`),
}

// dontKnowPattern matches answers that are nothing but an admission of
// not knowing. Anchored so partial matches inside real answers don't
// trigger it.
var dontKnowPattern = regexp.MustCompile(
	`(?i)^\s*(i\s+)?(don'?t|do\s+not)\s+know\s*\.?\s*$|^\s*(no\s+idea|not\s+sure|idk)\s*\.?\s*$`)

var wordPattern = regexp.MustCompile(`[a-zA-Z0-9']+`)

func computeQualityIndicators(student, model string) QualityIndicators {
	ind := QualityIndicators{
		HasContent: strings.TrimSpace(student) != "",
	}

	if len(model) > 0 {
		ind.LengthRatio = float64(len(student)) / float64(len(model))
		if ind.LengthRatio > 2.0 {
			ind.LengthRatio = 2.0
		}
	} else if ind.HasContent {
		ind.LengthRatio = 1.0
	}

	ind.WordOverlap = wordOverlap(student, model)

	for _, p := range uncertaintyPatterns {
		if p.MatchString(student) {
			ind.UncertaintyCount++
		}
	}
	if ind.UncertaintyCount > uncertaintyCap {
		ind.UncertaintyCount = uncertaintyCap
	}

	return ind
}

// estimateScore combines the indicators into a rough expected score via
// a fixed weighted formula, clamped to [0, 100].
func (q QualityIndicators) estimateScore() float64 {
	completeness := 0.0
	if q.HasContent {
		completeness = 1.0
	}

	estimate := q.LengthRatio*25 + q.WordOverlap*40 + completeness*20 - float64(q.UncertaintyCount)*15
	if estimate < 0 {
		return 0
	}
	if estimate > 100 {
		return 100
	}
	return estimate
}

// wordOverlap returns the fraction of distinct model-answer words that
// also appear in the student answer.
func wordOverlap(student, model string) float64 {
	modelWords := wordSet(model)
	if len(modelWords) == 0 {
		return 0
	}
	studentWords := wordSet(student)

	matched := 0
	for w := range modelWords {
		if _, ok := studentWords[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(modelWords))
}

func wordSet(text string) map[string]struct{} {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

var positiveKeywords = []string{
	"excellent", "good", "correct", "well", "clear", "accurate",
	"thorough", "strong", "complete", "insightful",
}

var negativeKeywords = []string{
	"poor", "incorrect", "wrong", "missing", "incomplete", "weak",
	"unclear", "lacking", "confused", "inadequate",
}

// countSentiment counts positive and negative keyword occurrences in
// feedback text.
func countSentiment(feedback string) (positive, negative int) {
	text := strings.ToLower(feedback)
	for _, kw := range positiveKeywords {
		positive += strings.Count(text, kw)
	}
	for _, kw := range negativeKeywords {
		negative += strings.Count(text, kw)
	}
	return positive, negative
}

// checkContentReasonableness flags score/content mismatches that the
// quality estimate alone misses.
func (s *Service) checkContentReasonableness(req Request, res *Result) {
	trimmed := strings.TrimSpace(req.StudentAnswer)

	if len(trimmed) < 5 && req.Score > 20 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("very short answer (%d chars) received %d points", len(trimmed), req.Score))
		res.Confidence *= 0.7
	}

	if dontKnowPattern.MatchString(req.StudentAnswer) {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf(`answer is a "don't know" response but received %d points`, req.Score))
		res.Confidence *= 0.6
	}

	if len(req.ModelAnswer) > 0 &&
		float64(len(req.StudentAnswer)) > 1.5*float64(len(req.ModelAnswer)) &&
		req.Score < 30 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("answer much longer than model answer but received only %d points", req.Score))
		res.Confidence *= 0.8
	}
}
