package orchestrator

import (
	"context"
	"errors"
	"testing"

	"absint/internal/actx"
	"absint/internal/engine"
	"absint/internal/number"
	"absint/internal/numdomain"
	"absint/internal/variable"
)

func seedTop(ctx *actx.Context) *engine.State {
	return engine.Top(ctx, numdomain.TopInterval())
}

func TestRunCollectsResultsPerEntryPoint(t *testing.T) {
	actxCtx := actx.New()

	entries := []EntryPoint{
		{
			Name: "ok-entry",
			Analyze: func(ctx context.Context, st *engine.State) (*engine.State, error) {
				x := actxCtx.FreshVariable("x", variable.Int, 32, number.Signed)
				return st.Assign(x, numdomain.ConstExpr{N: number.FromInt64(1)}), nil
			},
		},
		{
			Name: "failing-entry",
			Analyze: func(ctx context.Context, st *engine.State) (*engine.State, error) {
				return nil, errors.New("boom")
			},
		},
	}

	var logged []string
	results := Run(context.Background(), actxCtx, entries, Options{
		Seed: seedTop,
		Log:  func(line string) { logged = append(logged, line) },
	})

	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}

	ok, found := byName["ok-entry"]
	if !found || ok.Err != nil || ok.Final == nil {
		t.Fatalf("ok-entry: want success with a final state, got %+v", ok)
	}

	failed, found := byName["failing-entry"]
	if !found || failed.Err == nil {
		t.Fatalf("failing-entry: want a non-nil error, got %+v", failed)
	}

	if len(logged) != 2 {
		t.Fatalf("want one log line per entry point, got %d", len(logged))
	}
}

func TestFirstDefiniteErrorSkipsPlainErrors(t *testing.T) {
	results := []Result{
		{Name: "a", Err: nil},
		{Name: "b", Err: errors.New("not an AnalysisError")},
	}
	if got := FirstDefiniteError(results); got != nil {
		t.Fatalf("want nil for a batch with no AnalysisError, got %v", got)
	}
}

func TestRunDoesNotCancelOnOneFailure(t *testing.T) {
	actxCtx := actx.New()
	ran := map[string]bool{}

	entries := []EntryPoint{
		{
			Name: "first",
			Analyze: func(ctx context.Context, st *engine.State) (*engine.State, error) {
				ran["first"] = true
				return nil, errors.New("first fails")
			},
		},
		{
			Name: "second",
			Analyze: func(ctx context.Context, st *engine.State) (*engine.State, error) {
				ran["second"] = true
				return st, nil
			},
		},
	}

	results := Run(context.Background(), actxCtx, entries, Options{Seed: seedTop})
	if len(results) != 2 || !ran["first"] || !ran["second"] {
		t.Fatalf("want both entry points to run regardless of failure, ran=%v results=%+v", ran, results)
	}
}
