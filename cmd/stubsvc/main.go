// Stub LLM query service for local harness development. It answers POST
// /v1/query from the evaluation fixture, so a run against it passes by
// construction.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"golang.org/x/sync/errgroup"

	"response-eval/internal/app"
	"response-eval/internal/fixture"
	"response-eval/internal/httputil"
)

type queryRequest struct {
	Query    string `json:"query" validate:"required"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func main() {
	deps, err := app.BuildStub()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}

	r := httputil.NewRouter(deps.Log)
	r.Post("/v1/query", queryHandler(deps.Log, deps.Fixture))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Log.Info("stub query service listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown(context.Background())
	})
	if err := g.Wait(); err != nil {
		deps.Log.Error("server error", "err", err)
		os.Exit(1)
	}
}

func queryHandler(log *slog.Logger, fx fixture.Fixture) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(log, w, err)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"response": answerFor(fx, req.Query),
		})
	}
}

// answerFor returns the first stored reference answer for a known question,
// or echoes the question back when the fixture has no match.
func answerFor(fx fixture.Fixture, query string) string {
	for _, id := range fx.IDs() {
		qa := fx[id]
		if qa.Question != query {
			continue
		}
		for _, key := range answerKeys(qa) {
			spec := qa.Answers[key]
			if spec.Enabled() && len(spec.Text) > 0 {
				return spec.Text[0]
			}
		}
	}
	return query
}

// answerKeys returns the variant keys in sorted order so the stub's choice
// is stable across runs.
func answerKeys(qa fixture.QAPair) []string {
	keys := make([]string, 0, len(qa.Answers))
	for key := range qa.Answers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
