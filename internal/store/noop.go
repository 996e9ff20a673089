package store

import "context"

// NoOpStore discards run history. Used when no database is configured.
type NoOpStore struct{}

func NewNoOpStore() *NoOpStore {
	return &NoOpStore{}
}

func (s *NoOpStore) SaveRun(ctx context.Context, run Run, rows []RowRecord) error {
	return nil
}

func (s *NoOpStore) Close() error {
	return nil
}
