// Package orchestrator implements the per-entry-point parallel fixpoint
// driver spec.md section 5 describes but deliberately leaves to the
// client: "parallelism, if any, is per-entry-point and orchestrated by the
// client". This package is that client, concretely: one goroutine per
// entry point, sharing a single read-mostly internal/actx.Context.
//
// Grounded on SPEC_FULL.md's DOMAIN STACK entry for golang.org/x/sync/errgroup
// and on the teacher's own concurrency idiom (internal/concurrency's
// single-RWMutex map of resources, read-mostly after setup) which
// internal/actx.Context already follows; this package only adds the
// fan-out loop on top.
package orchestrator

import (
	"context"
	"time"

	"github.com/ncruces/go-strftime"
	"golang.org/x/sync/errgroup"

	"absint/internal/actx"
	"absint/internal/aerrors"
	"absint/internal/dump"
	"absint/internal/engine"
)

// EntryPoint names one function to analyze and the fixpoint driver that
// runs over its CFG, producing the converged engine.State. A front-end
// supplies Analyze; this package's only job is scheduling and shared-state
// safety, never the fixpoint algorithm itself (that stays the CFG driver's
// responsibility per spec.md section 6: "the engine... the client decides
// when to abandon a fixpoint iteration").
type EntryPoint struct {
	Name    string
	Analyze func(ctx context.Context, st *engine.State) (*engine.State, error)
}

// Result is one entry point's outcome.
type Result struct {
	Name  string
	Final *engine.State
	Err   error
}

// Options configures a Run: Seed builds each entry point's initial state
// (usually engine.Top with a chosen numerical-domain kind); Log, if set,
// receives one line per completed entry point, timestamped with
// ncruces/go-strftime the same way internal/dump formats its own
// snapshots.
type Options struct {
	Seed func(*actx.Context) *engine.State
	Log  func(string)
}

// Run fans out one goroutine per entry point via golang.org/x/sync/errgroup,
// all reading from the same shared Context, matching spec.md section 5's
// "concurrent readers from multiple analyzer threads are safe if the
// analyzer guarantees no interning happens during the read phase" — every
// entry point's Seed (its one-time interning pre-pass, which writes to the
// Context) runs sequentially before any goroutine starts, so all interning
// is finished before any Analyze reads invariants concurrently.
//
// A single entry point's Analyze returning an error does not cancel the
// others: each entry point is an independent unit of work (spec.md section
// 5's "no concurrent analysis inside the core" is about one function body,
// not about the whole program), so Run always waits for every entry point
// and reports per-entry-point failures in the returned slice rather than
// failing the batch.
func Run(ctx context.Context, actxCtx *actx.Context, entries []EntryPoint, opt Options) []Result {
	results := make([]Result, len(entries))
	seeds := make([]*engine.State, len(entries))
	for i := range entries {
		seeds[i] = opt.Seed(actxCtx)
	}
	g, gctx := errgroup.WithContext(ctx)

	for i, ep := range entries {
		i, ep := i, ep
		g.Go(func() error {
			final, err := ep.Analyze(gctx, seeds[i])
			results[i] = Result{Name: ep.Name, Final: final, Err: err}
			if opt.Log != nil {
				opt.Log(logLine(ep.Name, err))
			}
			return nil // per-entry-point errors are carried in results, not propagated
		})
	}
	// g.Wait's error is always nil by construction above; entry-point
	// failures live in results[i].Err instead, so a caller inspects those
	// rather than a single aggregate error.
	_ = g.Wait()
	return results
}

func logLine(name string, err error) string {
	ts, fmtErr := strftime.Format("%Y-%m-%d %H:%M:%S", time.Now())
	if fmtErr != nil {
		ts = time.Now().Format(time.RFC3339)
	}
	if err != nil {
		return "[" + ts + "] " + name + ": error: " + err.Error()
	}
	return "[" + ts + "] " + name + ": done"
}

// DumpAll renders every successfully-analyzed entry point's final state
// through w, skipping failed ones (their Err already explains why there is
// nothing to dump).
func DumpAll(w *dump.Writer, results []Result) {
	for _, r := range results {
		if r.Err != nil || r.Final == nil {
			continue
		}
		w.Dump(r.Name, r.Final)
	}
}

// FirstDefiniteError returns the first AnalysisError surfaced as a plain
// error across results, if any, letting a CLI report "at least one entry
// point hit a definite error" without the caller re-walking results twice.
func FirstDefiniteError(results []Result) *aerrors.AnalysisError {
	for _, r := range results {
		var ae *aerrors.AnalysisError
		if r.Err != nil {
			if e, ok := r.Err.(*aerrors.AnalysisError); ok {
				ae = e
			}
		}
		if ae != nil {
			return ae
		}
	}
	return nil
}
