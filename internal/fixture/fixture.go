// Package fixture loads the question/answer pairs the harness evaluates
// responses against.
package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// AnswerSpec is one stored answer variant for a question. Optional fields
// keep their "unset" state as nil and are resolved through the accessors.
type AnswerSpec struct {
	Text        []string `json:"text" validate:"required,min=1"`
	InUse       *bool    `json:"in_use"`
	CutoffScore *float64 `json:"cutoff_score"`
}

// Enabled reports whether this variant should be evaluated. Defaults to true.
func (a AnswerSpec) Enabled() bool {
	return a.InUse == nil || *a.InUse
}

// Cutoff returns the variant's own cutoff score, or def when unset.
func (a AnswerSpec) Cutoff(def float64) float64 {
	if a.CutoffScore != nil {
		return *a.CutoffScore
	}
	return def
}

// QAPair is a question and its stored answer variants keyed by answer key
// (provider+model+scenario).
type QAPair struct {
	Question string                `json:"question" validate:"required"`
	Answers  map[string]AnswerSpec `json:"answer" validate:"required,min=1"`
}

// Fixture maps question ids to their QA pairs. Read-only after Load.
type Fixture map[string]QAPair

// IDs returns every question id in sorted order.
func (f Fixture) IDs() []string {
	ids := make([]string, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type document struct {
	Evaluation Fixture `json:"evaluation" validate:"required,min=1"`
}

// Load reads and validates the fixture file. Any missing file, parse error,
// or invalid record is fatal to the run.
func Load(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	for id, qa := range doc.Evaluation {
		if err := validate.Struct(&qa); err != nil {
			return nil, fmt.Errorf("fixture %s: question %q: %w", path, id, err)
		}
		for key, spec := range qa.Answers {
			if err := validate.Struct(&spec); err != nil {
				return nil, fmt.Errorf("fixture %s: question %q answer %q: %w", path, id, key, err)
			}
		}
	}
	return doc.Evaluation, nil
}
