package evaluator

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"
)

// flaggedRow is a Row with its derived fail flags. AnswerFail means this
// single reference answer scored above cutoff; QuestionFail means every
// reference answer for the row's question did.
type flaggedRow struct {
	Row
	AnswerFail   bool
	QuestionFail bool
}

// flagRows derives both fail flags. The question flag is the logical AND of
// the answer flags within each eval_id group; row order is preserved.
func flagRows(rows []Row) []flaggedRow {
	questionFail := make(map[string]bool, len(rows))
	for _, row := range rows {
		fail := row.ConsistencyScore > row.CutoffScore
		if existing, ok := questionFail[row.EvalID]; ok {
			questionFail[row.EvalID] = existing && fail
		} else {
			questionFail[row.EvalID] = fail
		}
	}

	flagged := make([]flaggedRow, len(rows))
	for i, row := range rows {
		flagged[i] = flaggedRow{
			Row:          row,
			AnswerFail:   row.ConsistencyScore > row.CutoffScore,
			QuestionFail: questionFail[row.EvalID],
		}
	}
	return flagged
}

// failedQuestions returns the ids of failed questions, first-seen order,
// no duplicates.
func failedQuestions(flagged []flaggedRow) []string {
	var failed []string
	seen := make(map[string]struct{})
	for _, row := range flagged {
		if !row.QuestionFail {
			continue
		}
		if _, ok := seen[row.EvalID]; ok {
			continue
		}
		seen[row.EvalID] = struct{}{}
		failed = append(failed, row.EvalID)
	}
	return failed
}

// resultFileName builds the deterministic report name for an answer key.
// Slashes in model names would otherwise split the path.
func resultFileName(answerKey string) string {
	return "response_evaluation_result-" + strings.ReplaceAll(answerKey, "/", "-") + ".csv"
}

var csvHeader = []string{
	"eval_id",
	"question",
	"answer",
	"llm_response",
	"consistency_score",
	"cutoff_score",
	"answer_eval_fail_flag",
	"question_eval_fail_flag",
}

// writeCSV persists the full flagged row table.
func writeCSV(path string, flagged []flaggedRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range flagged {
		record := []string{
			row.EvalID,
			row.Question,
			row.Answer,
			row.LLMResponse,
			strconv.FormatFloat(row.ConsistencyScore, 'g', -1, 64),
			strconv.FormatFloat(row.CutoffScore, 'g', -1, 64),
			flagValue(row.AnswerFail),
			flagValue(row.QuestionFail),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func flagValue(fail bool) string {
	if fail {
		return "1"
	}
	return "0"
}
