package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS evaluation_runs (
			id UUID PRIMARY KEY,
			answer_key TEXT NOT NULL,
			provider TEXT,
			model TEXT,
			scenario TEXT,
			passed BOOLEAN NOT NULL,
			failed_questions TEXT[],
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS evaluation_rows (
			run_id UUID REFERENCES evaluation_runs(id) ON DELETE CASCADE,
			eval_id TEXT NOT NULL,
			question TEXT,
			answer TEXT,
			llm_response TEXT,
			consistency_score DOUBLE PRECISION,
			cutoff_score DOUBLE PRECISION,
			answer_eval_fail_flag BOOLEAN,
			question_eval_fail_flag BOOLEAN
		);`,
		`CREATE INDEX IF NOT EXISTS evaluation_rows_run_idx ON evaluation_rows (run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate run history: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run Run, rows []RowRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO evaluation_runs
			(id, answer_key, provider, model, scenario, passed, failed_questions, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.AnswerKey, run.Provider, run.Model, run.Scenario,
		run.Passed, pq.Array(run.FailedQuestions), run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, row := range rows {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO evaluation_rows
				(run_id, eval_id, question, answer, llm_response,
				 consistency_score, cutoff_score, answer_eval_fail_flag, question_eval_fail_flag)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			run.ID, row.EvalID, row.Question, row.Answer, row.Response,
			row.Score, row.Cutoff, row.AnswerFailed, row.QuestionFailed,
		)
		if err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
