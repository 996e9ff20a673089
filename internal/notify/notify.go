package notify

import (
	"context"
	"time"

	"response-eval/internal/retry"
)

// RunSummary is published when a validation run completes, so CI dashboards
// can track pass rates without parsing CSV artifacts.
type RunSummary struct {
	RunID           string    `json:"run_id"`
	AnswerKey       string    `json:"answer_key"`
	Questions       int       `json:"questions"`
	FailedQuestions []string  `json:"failed_questions"`
	Passed          bool      `json:"passed"`
	FinishedAt      time.Time `json:"finished_at"`
}

// Notifier publishes run summaries.
type Notifier interface {
	Publish(ctx context.Context, summary RunSummary) error
	Close() error
}

// PublishWithRetry attempts to publish with retries and exponential backoff.
func PublishWithRetry(ctx context.Context, n Notifier, summary RunSummary, attempts int, base time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := n.Publish(ctx, summary); err == nil {
			return nil
		} else if attempt == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.ExponentialBackoff(attempt, base)):
		}
	}
	return nil
}
