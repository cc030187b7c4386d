package analyzer

import (
	"math"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

const (
	DefaultJaccardWeight     = 0.4
	DefaultLevenshteinWeight = 0.3
	DefaultKeywordWeight     = 0.3

	DefaultMediumTierBoundary = 0.70
	DefaultHighTierBoundary   = 0.85
)

type Weights struct {
	Jaccard     float64
	Levenshtein float64
	Keyword     float64
}

func DefaultWeights() Weights {
	return Weights{
		Jaccard:     DefaultJaccardWeight,
		Levenshtein: DefaultLevenshteinWeight,
		Keyword:     DefaultKeywordWeight,
	}
}

// TierBoundaries are the lowest scores that map to the medium and high tiers.
type TierBoundaries struct {
	Medium float64
	High   float64
}

func DefaultTierBoundaries() TierBoundaries {
	return TierBoundaries{
		Medium: DefaultMediumTierBoundary,
		High:   DefaultHighTierBoundary,
	}
}

type ScoreBreakdown struct {
	Jaccard     float64 `json:"jaccard"`
	Levenshtein float64 `json:"levenshtein"`
	Keyword     float64 `json:"keyword"`
	Composite   float64 `json:"composite"`
}

type SimilarityScorer interface {
	Score(a, b string) float64
	Breakdown(a, b string) ScoreBreakdown
	Tier(score float64) models.SuspicionLevel
}

type compositeScorer struct {
	weights Weights
	tiers   TierBoundaries
}

func NewCompositeScorer(weights Weights, tiers TierBoundaries) SimilarityScorer {
	return &compositeScorer{
		weights: weights,
		tiers:   tiers,
	}
}

func (s *compositeScorer) Score(a, b string) float64 {
	return s.Breakdown(a, b).Composite
}

func (s *compositeScorer) Breakdown(a, b string) ScoreBreakdown {
	breakdown := ScoreBreakdown{
		Jaccard:     Jaccard(a, b),
		Levenshtein: NormalizedLevenshtein(a, b),
		Keyword:     KeywordSequenceSimilarity(a, b),
	}

	composite := s.weights.Jaccard*breakdown.Jaccard +
		s.weights.Levenshtein*breakdown.Levenshtein +
		s.weights.Keyword*breakdown.Keyword
	breakdown.Composite = clamp01(composite)

	return breakdown
}

func (s *compositeScorer) Tier(score float64) models.SuspicionLevel {
	switch {
	case score >= s.tiers.High:
		return models.SuspicionHigh
	case score >= s.tiers.Medium:
		return models.SuspicionMedium
	default:
		return models.SuspicionLow
	}
}

// RoundScore rounds a similarity score to the three decimals stored in reports.
func RoundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	// Weights summing to 1 can still overshoot by an ulp.
	if v > 1 {
		return 1
	}
	return v
}
