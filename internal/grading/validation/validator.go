// Package validation sanity-checks LLM-produced grades against
// independent signals before they are accepted.
//
// Only a hard range violation invalidates a score. Every other signal —
// criteria consistency, answer-quality alignment, feedback sentiment,
// statistical outliers, content reasonableness — is advisory: it adds a
// warning and lowers the confidence, leaving the accept/flag decision to
// human review.
package validation

import (
	"fmt"
	"math"
	"sync"
)

// Level controls how strict the criteria-consistency tolerance is.
type Level string

const (
	LevelBasic    Level = "basic"
	LevelStandard Level = "standard"
	LevelStrict   Level = "strict"
)

// criteriaTolerance is the allowed gap in points between the overall
// score and the mean of the per-criterion scores.
func (l Level) criteriaTolerance() float64 {
	switch l {
	case LevelBasic:
		return 20
	case LevelStrict:
		return 10
	default:
		return 15
	}
}

const (
	historyLimit         = 20
	minSamplesForOutlier = 5
	qualityBand          = 25 // tolerance around the estimated score
	zScoreThreshold      = 2.0
	warningPenalty       = 0.05
	errorPenalty         = 0.2
)

// Request is one score to validate with its grading context.
type Request struct {
	Score          int
	Question       string
	ModelAnswer    string
	StudentAnswer  string
	CriteriaScores map[string]float64 // optional per-criterion breakdown
	Feedback       string             // optional grader feedback text
}

// Result is the confidence-weighted verdict for one validation call.
type Result struct {
	IsValid       bool
	Confidence    float64
	AdjustedScore *int
	Warnings      []string
	Errors        []string
	Details       map[string]any
}

// Service validates scores and keeps a rolling window of recently
// accepted scores for outlier detection. Safe for concurrent use; the
// history window is guarded by a mutex so concurrent appends cannot race
// on the cap.
type Service struct {
	level Level

	mu      sync.Mutex
	history []int
}

// NewService creates a validator at the given strictness level.
func NewService(level Level) *Service {
	return &Service{level: level}
}

// ValidateScore runs the full validation pipeline. It never returns an
// error; all outcomes are encoded in the Result. Confidence only ever
// decreases within a single call.
func (s *Service) ValidateScore(req Request) Result {
	res := Result{
		IsValid:    true,
		Confidence: 1.0,
		Details:    make(map[string]any),
	}

	// Hard range check. An out-of-range score is the only condition that
	// flips validity; it clamps, skips all advisory checks, and returns.
	if req.Score < 0 || req.Score > 100 {
		res.IsValid = false
		adjusted := req.Score
		if adjusted < 0 {
			adjusted = 0
		} else if adjusted > 100 {
			adjusted = 100
		}
		res.AdjustedScore = &adjusted
		res.Errors = append(res.Errors,
			fmt.Sprintf("score %d outside valid range [0, 100], clamped to %d", req.Score, adjusted))
		s.finalize(&res)
		return res
	}

	s.checkCriteriaConsistency(req, &res)
	s.checkAnswerQuality(req, &res)
	s.checkFeedbackConsistency(req, &res)
	s.checkOutlier(req, &res)
	s.checkContentReasonableness(req, &res)

	s.finalize(&res)
	return res
}

// checkCriteriaConsistency compares the overall score against the mean
// of the per-criterion scores, within the level's tolerance.
func (s *Service) checkCriteriaConsistency(req Request, res *Result) {
	if len(req.CriteriaScores) == 0 {
		return
	}

	var sum float64
	for _, v := range req.CriteriaScores {
		sum += v
	}
	mean := sum / float64(len(req.CriteriaScores))
	res.Details["criteria_average"] = mean

	tolerance := s.level.criteriaTolerance()
	if math.Abs(float64(req.Score)-mean) > tolerance {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("score %d deviates from criteria average %.1f by more than %.0f points",
				req.Score, mean, tolerance))
		res.Confidence *= 0.8
	}
}

// checkAnswerQuality estimates a plausible score from heuristic quality
// indicators and warns when the actual score falls outside the band.
func (s *Service) checkAnswerQuality(req Request, res *Result) {
	ind := computeQualityIndicators(req.StudentAnswer, req.ModelAnswer)
	estimate := ind.estimateScore()

	res.Details["quality_indicators"] = ind
	res.Details["estimated_score"] = estimate

	if math.Abs(float64(req.Score)-estimate) > qualityBand {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("score %d outside estimated range [%.0f, %.0f]",
				req.Score, math.Max(0, estimate-qualityBand), math.Min(100, estimate+qualityBand)))
		res.Confidence *= 0.9
	}
}

// checkFeedbackConsistency warns when the feedback's sentiment
// contradicts the score: high scores with mostly negative feedback, or
// low scores with mostly positive feedback.
func (s *Service) checkFeedbackConsistency(req Request, res *Result) {
	if req.Feedback == "" {
		return
	}

	positive, negative := countSentiment(req.Feedback)
	res.Details["feedback_indicators"] = map[string]int{
		"positive": positive,
		"negative": negative,
	}

	switch {
	case req.Score >= 80 && negative > positive:
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("high score %d but feedback is mostly negative (%d negative vs %d positive)",
				req.Score, negative, positive))
		res.Confidence *= 0.85
	case req.Score <= 40 && positive > negative:
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("low score %d but feedback is mostly positive (%d positive vs %d negative)",
				req.Score, positive, negative))
		res.Confidence *= 0.85
	}
}

// checkOutlier flags the score as anomalous when it sits more than two
// standard deviations from the recent window's mean. The new score is
// appended to the window regardless of outlier status.
func (s *Service) checkOutlier(req Request, res *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) >= minSamplesForOutlier {
		mean, stdev := meanStdev(s.history)
		if stdev > 0 {
			z := (float64(req.Score) - mean) / stdev
			res.Details["zscore"] = z
			if math.Abs(z) > zScoreThreshold {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("score %d is a statistical outlier (z=%.2f vs recent mean %.1f)",
						req.Score, z, mean))
				res.Confidence *= 0.9
			}
		}
	}

	s.history = append(s.history, req.Score)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
}

// finalize applies the flat warning/error penalties on top of the
// multiplicative degradation, floors at zero and rounds to 3 decimals.
func (s *Service) finalize(res *Result) {
	conf := res.Confidence
	conf -= warningPenalty * float64(len(res.Warnings))
	conf -= errorPenalty * float64(len(res.Errors))
	if conf < 0 {
		conf = 0
	}
	res.Confidence = math.Round(conf*1000) / 1000
}

// historyLen reports the current outlier-window size.
func (s *Service) historyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

func meanStdev(values []int) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return mean, math.Sqrt(variance)
}
