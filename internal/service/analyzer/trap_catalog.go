package analyzer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidTrapCatalog = errors.New("invalid trap catalog")

type trapCatalogFile struct {
	Traps []trapSpec `yaml:"traps"`
}

type trapSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Pattern     string `yaml:"pattern"`
	Points      int    `yaml:"points"`
	Severity    string `yaml:"severity"`
}

// LoadTrapCatalog reads an ordered trap list from a YAML file. Patterns are
// compiled case-insensitive.
func LoadTrapCatalog(path string) ([]Trap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trap catalog %s: %w", path, err)
	}
	return ParseTrapCatalog(data)
}

func ParseTrapCatalog(data []byte) ([]Trap, error) {
	var file trapCatalogFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrapCatalog, err)
	}

	if len(file.Traps) == 0 {
		return nil, fmt.Errorf("%w: no traps defined", ErrInvalidTrapCatalog)
	}

	seen := make(map[string]struct{}, len(file.Traps))
	traps := make([]Trap, 0, len(file.Traps))
	for i, spec := range file.Traps {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: trap #%d has no name", ErrInvalidTrapCatalog, i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate trap %q", ErrInvalidTrapCatalog, name)
		}
		seen[name] = struct{}{}

		if spec.Points <= 0 || spec.Points > MaxSuspicionScore {
			return nil, fmt.Errorf("%w: trap %q points must be in 1..%d", ErrInvalidTrapCatalog, name, MaxSuspicionScore)
		}

		if strings.TrimSpace(spec.Pattern) == "" {
			return nil, fmt.Errorf("%w: trap %q has no pattern", ErrInvalidTrapCatalog, name)
		}
		pattern, err := regexp.Compile(`(?i)` + spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: trap %q has an invalid pattern: %v", ErrInvalidTrapCatalog, name, err)
		}

		description := spec.Description
		if description == "" {
			description = name
		}
		severity := spec.Severity
		if severity == "" {
			severity = "medium"
		}

		traps = append(traps, Trap{
			Name:        name,
			Description: description,
			Pattern:     pattern,
			Points:      spec.Points,
			Severity:    severity,
		})
	}

	return traps, nil
}
