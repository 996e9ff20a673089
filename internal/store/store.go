package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Run is one completed validation run.
type Run struct {
	ID              uuid.UUID
	AnswerKey       string
	Provider        string
	Model           string
	Scenario        string
	Passed          bool
	FailedQuestions []string
	StartedAt       time.Time
	FinishedAt      time.Time
}

// RowRecord is one scored (question, reference answer) pair within a run.
type RowRecord struct {
	EvalID         string
	Question       string
	Answer         string
	Response       string
	Score          float64
	Cutoff         float64
	AnswerFailed   bool
	QuestionFailed bool
}

// Store persists run history. Persistence is best-effort: the CSV report and
// exit code are the product, history failures only log warnings.
type Store interface {
	SaveRun(ctx context.Context, run Run, rows []RowRecord) error
	Close() error
}
