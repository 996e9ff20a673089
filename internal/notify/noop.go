package notify

import "context"

// NoOpNotifier drops summaries. Used when no broker is configured.
type NoOpNotifier struct{}

func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

func (n *NoOpNotifier) Publish(ctx context.Context, summary RunSummary) error {
	return nil
}

func (n *NoOpNotifier) Close() error {
	return nil
}
