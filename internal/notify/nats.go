package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Subject run summaries are published on.
const SubjectRunCompleted = "evals.completed"

// NewNATS constructs a thin NATS-based notifier.
func NewNATS(log *slog.Logger, nc *nats.Conn) Notifier {
	return &natsNotifier{log: log, nc: nc}
}

type natsNotifier struct {
	log *slog.Logger
	nc  *nats.Conn
}

func (n *natsNotifier) Publish(_ context.Context, summary RunSummary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	if err := n.nc.Publish(SubjectRunCompleted, body); err != nil {
		return err
	}
	n.log.Debug("run summary published", "subject", SubjectRunCompleted, "run_id", summary.RunID)
	return nil
}

func (n *natsNotifier) Close() error {
	if err := n.nc.Drain(); err != nil {
		return err
	}
	return nil
}
