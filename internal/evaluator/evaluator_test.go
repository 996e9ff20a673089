package evaluator

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"response-eval/internal/embeddings"
	"response-eval/internal/fixture"
	"response-eval/internal/queryapi"
	"response-eval/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testArgs(t *testing.T) Args {
	t.Helper()
	return Args{
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		Scenario:      "with_rag",
		OutDir:        t.TempDir(),
		DefaultCutoff: 0.3,
	}
}

const testKey = "openai+gpt-4o-mini+with_rag"

// embedAs registers a fixed vector for a text, any number of times.
func embedAs(e *embeddings.MockEmbedder, text string, vec embeddings.Vector) {
	e.On("Embed", mock.Anything, text).Return(vec, nil)
}

func TestSimilarityScoreIdentity(t *testing.T) {
	emb := &embeddings.MockEmbedder{}
	embedAs(emb, "same text", embeddings.Vector{1, 0})

	e := New(testArgs(t), nil, nil, emb, discardLogger())
	score, err := e.SimilarityScore(context.Background(), "same text", "same text")
	require.NoError(t, err)
	require.InDelta(t, 0, score, 1e-9)
}

func TestSimilarityScoreSymmetry(t *testing.T) {
	emb := &embeddings.MockEmbedder{}
	embedAs(emb, "first", embeddings.Vector{0.6, 0.8})
	embedAs(emb, "the second", embeddings.Vector{1, 0})

	e := New(testArgs(t), nil, nil, emb, discardLogger())
	ab, err := e.SimilarityScore(context.Background(), "first", "the second")
	require.NoError(t, err)
	ba, err := e.SimilarityScore(context.Background(), "the second", "first")
	require.NoError(t, err)
	require.Equal(t, ab, ba)
	require.Greater(t, ab, 0.0)
}

func TestSimilarityScoreLengthPenalty(t *testing.T) {
	emb := &embeddings.MockEmbedder{}
	// Identical vectors isolate the length term: 0.1 * |2-6| / (2+6) = 0.05.
	embedAs(emb, "ab", embeddings.Vector{1, 0})
	embedAs(emb, "abcdef", embeddings.Vector{1, 0})

	e := New(testArgs(t), nil, nil, emb, discardLogger())
	score, err := e.SimilarityScore(context.Background(), "ab", "abcdef")
	require.NoError(t, err)
	require.InDelta(t, 0.05, score, 1e-9)
}

func TestSimilarityScoreBothEmpty(t *testing.T) {
	emb := &embeddings.MockEmbedder{}
	e := New(testArgs(t), nil, nil, emb, discardLogger())

	_, err := e.SimilarityScore(context.Background(), "", "")
	require.ErrorIs(t, err, ErrEmptyInput)
	emb.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestSimilarityScoreEmbedderFailure(t *testing.T) {
	emb := &embeddings.MockEmbedder{}
	emb.On("Embed", mock.Anything, "resp").Return(nil, errors.New("api down"))

	e := New(testArgs(t), nil, nil, emb, discardLogger())
	_, err := e.SimilarityScore(context.Background(), "resp", "ref")
	require.Error(t, err)
}

func testFixture() fixture.Fixture {
	disabled := false
	strict := 0.05
	return fixture.Fixture{
		"eval1": {
			Question: "what is openshift?",
			Answers: map[string]fixture.AnswerSpec{
				testKey: {Text: []string{"refA", "refB"}},
			},
		},
		"eval2": {
			Question: "what is an operator?",
			Answers: map[string]fixture.AnswerSpec{
				testKey: {Text: []string{"refC"}, InUse: &disabled},
			},
		},
		"eval3": {
			Question: "what is a pod?",
			Answers: map[string]fixture.AnswerSpec{
				"other+key+here": {Text: []string{"refD"}},
			},
		},
		"eval4": {
			Question: "what is etcd?",
			Answers: map[string]fixture.AnswerSpec{
				testKey: {Text: []string{"refE"}, CutoffScore: &strict},
			},
		},
	}
}

func TestEvaluateAnswerSetSkipsAndDefaults(t *testing.T) {
	emb := &embeddings.MockEmbedder{}
	// Shared vector for everything: distances are zero, only lengths differ.
	for _, text := range []string{"resp", "refA", "refB", "refE"} {
		embedAs(emb, text, embeddings.Vector{1, 0})
	}

	client := &queryapi.MockClient{}
	client.On("Query", mock.Anything, queryapi.Request{
		Query:    "what is openshift?",
		Provider: "openai",
		Model:    "gpt-4o-mini",
	}).Return("  resp\n", nil).Once()
	client.On("Query", mock.Anything, queryapi.Request{
		Query:    "what is etcd?",
		Provider: "openai",
		Model:    "gpt-4o-mini",
	}).Return("resp", nil).Once()

	e := New(testArgs(t), testFixture(), client, emb, discardLogger())
	rows, err := e.EvaluateAnswerSet(context.Background(), testKey)
	require.NoError(t, err)

	// eval2 is not in use and eval3 has no such answer key: no rows, no query.
	require.Len(t, rows, 3)
	require.Equal(t, "eval1", rows[0].EvalID)
	require.Equal(t, "eval1", rows[1].EvalID)
	require.Equal(t, "eval4", rows[2].EvalID)

	// The service response is stripped before scoring.
	require.Equal(t, "resp", rows[0].LLMResponse)

	// Reference answer order is preserved within a question.
	require.Equal(t, "refA", rows[0].Answer)
	require.Equal(t, "refB", rows[1].Answer)

	// eval1 uses the global default, eval4 its own cutoff_score.
	require.Equal(t, 0.3, rows[0].CutoffScore)
	require.Equal(t, 0.05, rows[2].CutoffScore)

	client.AssertExpectations(t)
}

func TestEvaluateAnswerSetExplicitIDs(t *testing.T) {
	emb := &embeddings.MockEmbedder{}
	embedAs(emb, "resp", embeddings.Vector{1, 0})
	embedAs(emb, "refE", embeddings.Vector{1, 0})

	client := &queryapi.MockClient{}
	client.On("Query", mock.Anything, mock.Anything).Return("resp", nil).Once()

	args := testArgs(t)
	args.QueryIDs = []string{"eval4"}
	e := New(args, testFixture(), client, emb, discardLogger())
	rows, err := e.EvaluateAnswerSet(context.Background(), testKey)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "eval4", rows[0].EvalID)
}

func TestEvaluateAnswerSetUnknownID(t *testing.T) {
	args := testArgs(t)
	args.QueryIDs = []string{"eval99"}
	e := New(args, testFixture(), &queryapi.MockClient{}, &embeddings.MockEmbedder{}, discardLogger())
	_, err := e.EvaluateAnswerSet(context.Background(), testKey)
	require.Error(t, err)
}

func TestEvaluateAnswerSetFailFast(t *testing.T) {
	client := &queryapi.MockClient{}
	client.On("Query", mock.Anything, mock.Anything).
		Return("", &queryapi.StatusError{StatusCode: http.StatusInternalServerError, Body: "boom"})

	e := New(testArgs(t), testFixture(), client, &embeddings.MockEmbedder{}, discardLogger())
	_, err := e.EvaluateAnswerSet(context.Background(), testKey)

	var statusErr *queryapi.StatusError
	require.ErrorAs(t, err, &statusErr)
	// The first failure aborts the run: exactly one query issued.
	client.AssertNumberOfCalls(t, "Query", 1)
}

func TestValidateResponsePassWhenOneAnswerMatches(t *testing.T) {
	emb := &embeddings.MockEmbedder{}
	embedAs(emb, "resp", embeddings.Vector{1, 0})
	embedAs(emb, "refA", embeddings.Vector{1, 0}) // identical: score 0
	embedAs(emb, "refB", embeddings.Vector{0, 1}) // orthogonal: score > cutoff
	embedAs(emb, "refE", embeddings.Vector{1, 0})

	client := &queryapi.MockClient{}
	client.On("Query", mock.Anything, mock.Anything).Return("resp", nil)

	args := testArgs(t)
	args.QueryIDs = []string{"eval1", "eval4"}
	e := New(args, testFixture(), client, emb, discardLogger())

	ok, err := e.ValidateResponse(context.Background())
	require.NoError(t, err)
	require.True(t, ok, "one in-cutoff answer satisfies the question")

	records := readReport(t, filepath.Join(args.OutDir, "response_evaluation_result-"+testKey+".csv"))
	require.Len(t, records, 4) // header + 3 rows
	require.Equal(t, csvHeader, records[0])

	// eval1/refA passes, eval1/refB fails, but the question flag stays 0.
	require.Equal(t, "0", records[1][6])
	require.Equal(t, "1", records[2][6])
	require.Equal(t, "0", records[1][7])
	require.Equal(t, "0", records[2][7])
}

func TestValidateResponseFailWhenAllAnswersMiss(t *testing.T) {
	emb := &embeddings.MockEmbedder{}
	embedAs(emb, "resp", embeddings.Vector{1, 0})
	embedAs(emb, "refA", embeddings.Vector{0, 1})
	embedAs(emb, "refB", embeddings.Vector{0, 1})

	client := &queryapi.MockClient{}
	client.On("Query", mock.Anything, mock.Anything).Return("resp", nil)

	args := testArgs(t)
	args.QueryIDs = []string{"eval1"}
	e := New(args, testFixture(), client, emb, discardLogger())

	ok, err := e.ValidateResponse(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	records := readReport(t, filepath.Join(args.OutDir, "response_evaluation_result-"+testKey+".csv"))
	require.Equal(t, "1", records[1][7])
	require.Equal(t, "1", records[2][7])
}

func TestValidateResponseNothingToEvaluate(t *testing.T) {
	args := testArgs(t)
	args.Scenario = "no_such_scenario"
	e := New(args, testFixture(), &queryapi.MockClient{}, &embeddings.MockEmbedder{}, discardLogger())

	ok, err := e.ValidateResponse(context.Background())
	require.NoError(t, err)
	require.True(t, ok, "empty scope trivially passes")

	entries, err := os.ReadDir(args.OutDir)
	require.NoError(t, err)
	require.Empty(t, entries, "no CSV for an empty run")
}

func TestValidateResponseNoCSVOnQueryFailure(t *testing.T) {
	client := &queryapi.MockClient{}
	client.On("Query", mock.Anything, mock.Anything).
		Return("", &queryapi.StatusError{StatusCode: http.StatusBadGateway, Body: "bad"})

	args := testArgs(t)
	e := New(args, testFixture(), client, &embeddings.MockEmbedder{}, discardLogger())

	_, err := e.ValidateResponse(context.Background())
	require.Error(t, err)

	entries, readErr := os.ReadDir(args.OutDir)
	require.NoError(t, readErr)
	require.Empty(t, entries, "failed run must not leave a partial report")
}

func TestValidateResponseRecordsRun(t *testing.T) {
	emb := &embeddings.MockEmbedder{}
	embedAs(emb, "resp", embeddings.Vector{1, 0})
	embedAs(emb, "refA", embeddings.Vector{1, 0})
	embedAs(emb, "refB", embeddings.Vector{0, 1})

	client := &queryapi.MockClient{}
	client.On("Query", mock.Anything, mock.Anything).Return("resp", nil)

	st := &store.MockStore{}
	st.On("SaveRun", mock.Anything, mock.MatchedBy(func(run store.Run) bool {
		return run.AnswerKey == testKey && run.Passed
	}), mock.MatchedBy(func(rows []store.RowRecord) bool {
		return len(rows) == 2
	})).Return(nil).Once()

	args := testArgs(t)
	args.QueryIDs = []string{"eval1"}
	e := New(args, testFixture(), client, emb, discardLogger()).WithStore(st)

	ok, err := e.ValidateResponse(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	st.AssertExpectations(t)
}

func TestValidateResponseStoreFailureDoesNotFailRun(t *testing.T) {
	emb := &embeddings.MockEmbedder{}
	embedAs(emb, "resp", embeddings.Vector{1, 0})
	embedAs(emb, "refA", embeddings.Vector{1, 0})
	embedAs(emb, "refB", embeddings.Vector{1, 0})

	client := &queryapi.MockClient{}
	client.On("Query", mock.Anything, mock.Anything).Return("resp", nil)

	st := &store.MockStore{}
	st.On("SaveRun", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("db down")).Once()

	args := testArgs(t)
	args.QueryIDs = []string{"eval1"}
	e := New(args, testFixture(), client, emb, discardLogger()).WithStore(st)

	ok, err := e.ValidateResponse(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func readReport(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}
