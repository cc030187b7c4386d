package analyzer

import (
	"fmt"
	"regexp"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

const (
	MaxSuspicionScore = 100

	DefaultTrapPoints       = 15
	DefaultAIMediumBoundary = 40
	DefaultAIHighBoundary   = 70
)

// Trap is one named pattern check. A match adds Points to the answer's score.
type Trap struct {
	Name        string
	Description string
	Pattern     *regexp.Regexp
	Points      int
	Severity    string
}

type TriggeredTrap struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Match       string `json:"match"`
	Points      int    `json:"points"`
}

// String renders the trap the way it is listed in reports.
func (t TriggeredTrap) String() string {
	return fmt.Sprintf("%s (matched %q)", t.Description, t.Match)
}

type AIDetection struct {
	Score     int             `json:"score"`
	Triggered []TriggeredTrap `json:"triggered"`
}

func (d AIDetection) TrapDescriptions() []string {
	descriptions := make([]string, 0, len(d.Triggered))
	for _, trap := range d.Triggered {
		descriptions = append(descriptions, trap.String())
	}
	return descriptions
}

type AILevelBoundaries struct {
	Medium int
	High   int
}

func DefaultAILevelBoundaries() AILevelBoundaries {
	return AILevelBoundaries{
		Medium: DefaultAIMediumBoundary,
		High:   DefaultAIHighBoundary,
	}
}

type AIDetector interface {
	Detect(text string) AIDetection
	Level(score int) models.SuspicionLevel
}

type aiDetector struct {
	traps  []Trap
	levels AILevelBoundaries
}

// NewAIDetector builds an additive rule scanner over traps, evaluated in order.
func NewAIDetector(traps []Trap, levels AILevelBoundaries) AIDetector {
	return &aiDetector{
		traps:  traps,
		levels: levels,
	}
}

func (d *aiDetector) Detect(text string) AIDetection {
	detection := AIDetection{Triggered: []TriggeredTrap{}}
	if text == "" {
		return detection
	}

	score := 0
	for _, trap := range d.traps {
		loc := trap.Pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		score += trap.Points
		detection.Triggered = append(detection.Triggered, TriggeredTrap{
			Name:        trap.Name,
			Description: trap.Description,
			Match:       text[loc[0]:loc[1]],
			Points:      trap.Points,
		})
	}

	if score > MaxSuspicionScore {
		score = MaxSuspicionScore
	}
	detection.Score = score

	return detection
}

func (d *aiDetector) Level(score int) models.SuspicionLevel {
	switch {
	case score >= d.levels.High:
		return models.SuspicionHigh
	case score >= d.levels.Medium:
		return models.SuspicionMedium
	default:
		return models.SuspicionLow
	}
}

// DefaultTraps is the built-in catalog: verbose connectives and a known
// generated-answer artifact, each worth DefaultTrapPoints.
func DefaultTraps() []Trap {
	specs := []struct {
		name        string
		description string
		pattern     string
	}{
		{"known_artifact_alias", "Known generated-answer alias Time_to_Avg_Pilot_with_Flight", `Time_to_Avg_Pilot_with_Flight`},
		{"verbose_sophisticated", "Over-verbose wording: sophisticated", `sophisticated`},
		{"verbose_comprehensive", "Over-verbose wording: comprehensive", `comprehensive`},
		{"connective_furthermore", "Connective atypical for SQL answers: furthermore", `furthermore`},
		{"connective_moreover", "Connective atypical for SQL answers: moreover", `moreover`},
		{"verbose_utilize", "Over-verbose wording: utilize", `utilize`},
		{"verbose_implementation", "Over-verbose wording: implementation", `implementation`},
		{"verbose_leveraging", "Over-verbose wording: leveraging", `leveraging`},
	}

	traps := make([]Trap, 0, len(specs))
	for _, spec := range specs {
		traps = append(traps, Trap{
			Name:        spec.name,
			Description: spec.description,
			Pattern:     regexp.MustCompile(`(?i)` + spec.pattern),
			Points:      DefaultTrapPoints,
			Severity:    "medium",
		})
	}
	return traps
}
