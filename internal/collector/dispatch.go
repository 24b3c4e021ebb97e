package collector

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"promoscrape/internal/export"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Report is what happened to a single retailer during Run.
type Report struct {
	Retailer string
	Outcome  Outcome
	Rows     int
	// Err is set when Outcome is OutcomeFailed.
	Err      error
	Duration time.Duration
}

// Result holds everything a Run produced. Rows and Reports are in completion
// order, not in the order retailers were given.
type Result struct {
	Rows    []export.Row
	Reports []Report
	Counts  map[Outcome]int
}

type taskResult struct {
	rows   []export.Row
	report Report
}

// Run processes every retailer on a bounded pool of workers. A failure or
// panic while processing one retailer only affects that retailer. When ctx is
// cancelled, retailers not yet started are reported as failed with the
// context error.
func (c Collector) Run(ctx context.Context, retailers []string) Result {
	jobs := make(chan string)
	results := make(chan taskResult)

	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		for i, name := range retailers {
			select {
			case jobs <- name:
			case <-ctx.Done():
				for _, skipped := range retailers[i:] {
					results <- taskResult{report: Report{
						Retailer: skipped,
						Outcome:  OutcomeFailed,
						Err:      ctx.Err(),
					}}
				}
				return
			}
		}
	}()

	for i := 0; i < min(c.workers, max(1, len(retailers))); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				results <- c.task(ctx, name)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// results are only ever touched by this goroutine
	result := Result{Counts: make(map[Outcome]int, len(Outcomes))}
	for res := range results {
		result.Rows = append(result.Rows, res.rows...)
		result.Reports = append(result.Reports, res.report)
		result.Counts[res.report.Outcome]++

		retailerCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", string(res.report.Outcome)),
		))
		rowCounter.Add(ctx, int64(len(res.rows)))
	}

	c.tel.ReportCount(report_collector_rows, int64(len(result.Rows)))
	return result
}

func (c Collector) task(ctx context.Context, retailer string) (res taskResult) {
	start := time.Now()
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		err := fmt.Errorf("panic: %v", p)
		c.tel.ReportBroken(report_collector_retailer, err, retailer, string(debug.Stack()))
		res = taskResult{report: Report{
			Retailer: retailer,
			Outcome:  OutcomeFailed,
			Err:      err,
			Duration: time.Since(start),
		}}
	}()

	slog.InfoContext(ctx, "fetching", "retailer", retailer)

	rows, outcome, err := c.Collect(ctx, retailer)
	if err != nil {
		c.tel.ReportBroken(report_collector_retailer, err, retailer)
		outcome = OutcomeFailed
		rows = nil
	}

	return taskResult{
		rows: rows,
		report: Report{
			Retailer: retailer,
			Outcome:  outcome,
			Rows:     len(rows),
			Err:      err,
			Duration: time.Since(start),
		},
	}
}
