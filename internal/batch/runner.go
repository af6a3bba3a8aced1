package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hazetools/dehaze/internal/dcp"
)

// RunResult pairs a variant with its pipeline outcome.
type RunResult struct {
	Variant Variant
	Result  *dcp.Result
	Err     error
	Elapsed time.Duration
}

// Execute runs every variant against the same input image using a fixed
// worker pool.
//
// workers <= 0 selects runtime.NumCPU(). Results come back in variant
// order regardless of completion order. A variant failure is recorded in
// its RunResult rather than aborting the batch; context cancellation stops
// in-flight runs and marks unstarted ones with the context error.
func Execute(ctx context.Context, img *dcp.Image, variants []Variant, workers int, log zerolog.Logger) []RunResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(variants) {
		workers = len(variants)
	}

	results := make([]RunResult, len(variants))
	tasks := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				v := variants[i]
				start := time.Now()
				res, err := dcp.Run(ctx, img, v.Config, nil)
				elapsed := time.Since(start)

				results[i] = RunResult{Variant: v, Result: res, Err: err, Elapsed: elapsed}
				evt := log.Info()
				if err != nil {
					evt = log.Error().Err(err)
				}
				evt.Str("run", v.Name).Dur("elapsed", elapsed).Msg("variant finished")
			}
		}()
	}

feed:
	for i := range variants {
		select {
		case tasks <- i:
		case <-ctx.Done():
			for j := i; j < len(variants); j++ {
				if results[j].Variant.Name == "" {
					results[j] = RunResult{Variant: variants[j], Err: ctx.Err()}
				}
			}
			break feed
		}
	}
	close(tasks)
	wg.Wait()

	// The cancellation path above races with workers pulling the last few
	// tasks; fill any slot that nobody claimed.
	for i := range results {
		if results[i].Variant.Name == "" {
			results[i] = RunResult{Variant: variants[i], Err: ctx.Err()}
		}
	}
	return results
}

// WriteSummary emits a CSV table describing a batch.
//
// Columns are: run, status, error, elapsed_ms, one column per swept
// parameter (sorted by path), then methods and solver_converged. The
// parameter column set is the union across variants, so heterogeneous
// grids still produce a rectangular table.
func WriteSummary(w io.Writer, results []RunResult) error {
	paramSet := map[string]struct{}{}
	for _, r := range results {
		for p := range r.Variant.Params {
			paramSet[p] = struct{}{}
		}
	}
	params := make([]string, 0, len(paramSet))
	for p := range paramSet {
		params = append(params, p)
	}
	sort.Strings(params)

	cw := csv.NewWriter(w)
	header := append([]string{"run", "status", "error", "elapsed_ms"}, params...)
	header = append(header, "methods", "solver_converged")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}

	for _, r := range results {
		row := make([]string, 0, len(header))
		status, errMsg := "ok", ""
		if r.Err != nil {
			status, errMsg = "error", r.Err.Error()
		}
		row = append(row, r.Variant.Name, status, errMsg,
			strconv.FormatInt(r.Elapsed.Milliseconds(), 10))

		for _, p := range params {
			v, ok := r.Variant.Params[p]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, fmt.Sprint(v))
		}

		methods, converged := "", ""
		if r.Result != nil {
			for i, run := range r.Result.Runs {
				if i > 0 {
					methods += "+"
				}
				methods += string(run.Method)
				if run.Solve != nil {
					converged = strconv.FormatBool(run.Solve.Converged)
				}
			}
		}
		row = append(row, methods, converged)

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
