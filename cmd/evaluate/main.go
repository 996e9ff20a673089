package main

import (
	"context"
	"log/slog"
	"os"

	"response-eval/internal/app"
	"response-eval/internal/evaluator"
)

func main() {
	os.Exit(run())
}

func run() int {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		return 1
	}
	defer deps.Close()

	args := evaluator.Args{
		QueryIDs:      deps.Config.QueryIDs,
		Provider:      deps.Config.Provider,
		Model:         deps.Config.Model,
		Scenario:      deps.Config.Scenario,
		OutDir:        deps.Config.OutDir,
		DefaultCutoff: deps.Config.Cutoff,
	}
	deps.Log.Info("response evaluation arguments",
		"provider", args.Provider,
		"model", args.Model,
		"scenario", args.Scenario,
		"query_ids", args.QueryIDs,
		"cutoff", args.DefaultCutoff,
	)

	eval := evaluator.New(args, deps.Fixture, deps.Client, deps.Embedder, deps.Log).
		WithStore(deps.Store).
		WithNotifier(deps.Notifier)

	ok, err := eval.ValidateResponse(context.Background())
	if err != nil {
		deps.Log.Error("validation run aborted", "err", err)
		return 1
	}
	if !ok {
		deps.Log.Error("response validation failed")
		return 1
	}
	deps.Log.Info("response validation passed")
	return 0
}
