package llm

import (
	"regexp"
	"strings"
)

// KeywordGrader is the degraded local fallback used when the LLM
// provider is unavailable: it scores answers by word overlap with the
// model answer. Results are rough, which is fine — the validation layer
// attaches a low-confidence signal and the grade is flagged for review.
type KeywordGrader struct{}

var localWordPattern = regexp.MustCompile(`[a-zA-Z0-9']+`)

// Grade scores by the fraction of distinct model-answer words present in
// the student answer.
func (g *KeywordGrader) Grade(req GradeRequest) *GradeResult {
	modelWords := distinctWords(req.ModelAnswer)
	if len(modelWords) == 0 {
		return &GradeResult{Score: 0, Feedback: "no model answer available for keyword grading"}
	}

	studentWords := distinctWords(req.StudentAnswer)
	matched := 0
	for w := range modelWords {
		if _, ok := studentWords[w]; ok {
			matched++
		}
	}

	score := matched * 100 / len(modelWords)
	if score > 100 {
		score = 100
	}

	return &GradeResult{
		Score:    score,
		Feedback: "graded by keyword overlap fallback; review recommended",
	}
}

func distinctWords(text string) map[string]struct{} {
	words := localWordPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
