// Package evaluator scores responses from a deployed LLM service against
// stored reference answers and reports pass/fail per question.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"response-eval/internal/embeddings"
	"response-eval/internal/fixture"
	"response-eval/internal/notify"
	"response-eval/internal/queryapi"
	"response-eval/internal/store"
)

// ErrEmptyInput is returned when both compared strings are empty; the length
// penalty would divide by zero, so the pair is rejected up front.
var ErrEmptyInput = errors.New("evaluator: response and reference answer are both empty")

// Weight of the length penalty relative to the distance terms.
const lengthPenaltyWeight = 0.1

// Args are the run arguments for one validation.
type Args struct {
	// QueryIDs selects which fixture questions to evaluate.
	// Empty means every question in the fixture.
	QueryIDs []string

	Provider string
	Model    string
	Scenario string

	// OutDir receives the CSV report. Created if absent.
	OutDir string

	// DefaultCutoff is the dissimilarity threshold used when an answer
	// variant carries no cutoff_score of its own.
	DefaultCutoff float64
}

// AnswerKey is the composite key selecting the stored answer set.
func (a Args) AnswerKey() string {
	return a.Provider + "+" + a.Model + "+" + a.Scenario
}

// Row is one scored (question, reference answer) pair.
type Row struct {
	EvalID           string
	Question         string
	Answer           string
	LLMResponse      string
	ConsistencyScore float64
	CutoffScore      float64
}

// Evaluator runs predefined questions against the service and scores the
// responses. Fixture and embedder are read-only after construction.
type Evaluator struct {
	args     Args
	fixture  fixture.Fixture
	client   queryapi.Client
	embedder embeddings.Embedder
	log      *slog.Logger

	store    store.Store
	notifier notify.Notifier
}

// New builds an evaluator. Run history and notification default to no-ops.
func New(args Args, fx fixture.Fixture, client queryapi.Client, embedder embeddings.Embedder, log *slog.Logger) *Evaluator {
	return &Evaluator{
		args:     args,
		fixture:  fx,
		client:   client,
		embedder: embedder,
		log:      log,
		store:    store.NewNoOpStore(),
		notifier: notify.NewNoOpNotifier(),
	}
}

// WithStore attaches a run-history store.
func (e *Evaluator) WithStore(s store.Store) *Evaluator {
	e.store = s
	return e
}

// WithNotifier attaches a run-summary notifier.
func (e *Evaluator) WithNotifier(n notify.Notifier) *Evaluator {
	e.notifier = n
	return e
}

// SimilarityScore measures how far response is from reference. Zero means
// identical under both distance metrics; there is no fixed upper bound.
// Lower is better.
func (e *Evaluator) SimilarityScore(ctx context.Context, response, reference string) (float64, error) {
	lenRes := utf8.RuneCountInString(response)
	lenRef := utf8.RuneCountInString(reference)
	if lenRes == 0 && lenRef == 0 {
		return 0, ErrEmptyInput
	}

	resVec, err := e.embedder.Embed(ctx, response)
	if err != nil {
		return 0, fmt.Errorf("embed response: %w", err)
	}
	refVec, err := e.embedder.Embed(ctx, reference)
	if err != nil {
		return 0, fmt.Errorf("embed reference answer: %w", err)
	}

	cosScore, err := embeddings.CosineDistance(resVec, refVec)
	if err != nil {
		return 0, err
	}
	eucScore, err := embeddings.EuclideanDistance(resVec, refVec)
	if err != nil {
		return 0, err
	}

	// Naive length consideration with reduced weightage.
	lenScore := lengthPenaltyWeight * math.Abs(float64(lenRes-lenRef)) / float64(lenRes+lenRef)

	score := lenScore + (cosScore+eucScore)/2
	e.log.Debug("similarity score",
		"cos_score", cosScore,
		"euc_score", eucScore,
		"len_score", lenScore,
		"final_score", score,
	)
	return score, nil
}

// EvaluateAnswerSet queries the service for every selected question and
// scores the response against each reference answer stored under answerKey.
// Any non-2xx service response aborts the run immediately.
func (e *Evaluator) EvaluateAnswerSet(ctx context.Context, answerKey string) ([]Row, error) {
	queryIDs := e.args.QueryIDs
	if len(queryIDs) == 0 {
		queryIDs = e.fixture.IDs()
	}

	var rows []Row
	for _, id := range queryIDs {
		qa, ok := e.fixture[id]
		if !ok {
			return nil, fmt.Errorf("evaluator: unknown query id %q", id)
		}
		spec, ok := qa.Answers[answerKey]
		if !ok || !spec.Enabled() {
			continue
		}
		cutoff := spec.Cutoff(e.args.DefaultCutoff)

		response, err := e.client.Query(ctx, queryapi.Request{
			Query:    qa.Question,
			Provider: e.args.Provider,
			Model:    e.args.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", id, err)
		}
		response = strings.TrimSpace(response)

		e.log.Info("scoring response", "eval_id", id, "question", qa.Question)
		for _, answer := range spec.Text {
			score, err := e.SimilarityScore(ctx, response, answer)
			if err != nil {
				return nil, err
			}
			if score > cutoff {
				e.log.Warn("response not as expected",
					"eval_id", id,
					"score", score,
					"cutoff", cutoff,
				)
			}
			rows = append(rows, Row{
				EvalID:           id,
				Question:         qa.Question,
				Answer:           answer,
				LLMResponse:      response,
				ConsistencyScore: score,
				CutoffScore:      cutoff,
			})
		}
	}
	return rows, nil
}

// ValidateResponse runs the evaluation for the configured answer key, writes
// the CSV report, and returns whether every question passed. A question
// passes when at least one of its reference answers scored within cutoff.
func (e *Evaluator) ValidateResponse(ctx context.Context) (bool, error) {
	answerKey := e.args.AnswerKey()
	runID := uuid.New()
	startedAt := time.Now()
	e.log.Info("starting response validation", "run_id", runID, "answer_key", answerKey)

	rows, err := e.EvaluateAnswerSet(ctx, answerKey)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		e.log.Info("no result, nothing to process", "answer_key", answerKey)
		return true, nil
	}

	flagged := flagRows(rows)

	if err := os.MkdirAll(e.args.OutDir, 0o755); err != nil {
		return false, fmt.Errorf("create output dir: %w", err)
	}
	resultFile := filepath.Join(e.args.OutDir, resultFileName(answerKey))
	if err := writeCSV(resultFile, flagged); err != nil {
		return false, fmt.Errorf("write report: %w", err)
	}
	e.log.Info("result saved", "path", resultFile)

	failed := failedQuestions(flagged)
	passed := len(failed) == 0
	if !passed {
		e.log.Error("response is not matching for question(s)",
			"failed", failed,
			"path", resultFile,
		)
	}

	e.recordRun(ctx, runID, answerKey, startedAt, flagged, failed, passed)
	return passed, nil
}

// recordRun persists history and publishes a summary. Both are best-effort;
// the CSV report and return value are the product.
func (e *Evaluator) recordRun(ctx context.Context, runID uuid.UUID, answerKey string, startedAt time.Time, flagged []flaggedRow, failed []string, passed bool) {
	finishedAt := time.Now()

	run := store.Run{
		ID:              runID,
		AnswerKey:       answerKey,
		Provider:        e.args.Provider,
		Model:           e.args.Model,
		Scenario:        e.args.Scenario,
		Passed:          passed,
		FailedQuestions: failed,
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
	}
	records := make([]store.RowRecord, len(flagged))
	for i, row := range flagged {
		records[i] = store.RowRecord{
			EvalID:         row.EvalID,
			Question:       row.Question,
			Answer:         row.Answer,
			Response:       row.LLMResponse,
			Score:          row.ConsistencyScore,
			Cutoff:         row.CutoffScore,
			AnswerFailed:   row.AnswerFail,
			QuestionFailed: row.QuestionFail,
		}
	}
	if err := e.store.SaveRun(ctx, run, records); err != nil {
		e.log.Warn("failed to save run history", "err", err)
	}

	summary := notify.RunSummary{
		RunID:           runID.String(),
		AnswerKey:       answerKey,
		Questions:       countQuestions(flagged),
		FailedQuestions: failed,
		Passed:          passed,
		FinishedAt:      finishedAt,
	}
	if err := notify.PublishWithRetry(ctx, e.notifier, summary, 3, 200*time.Millisecond); err != nil {
		e.log.Warn("failed to publish run summary", "err", err)
	}
}

func countQuestions(flagged []flaggedRow) int {
	seen := make(map[string]struct{})
	for _, row := range flagged {
		seen[row.EvalID] = struct{}{}
	}
	return len(seen)
}
