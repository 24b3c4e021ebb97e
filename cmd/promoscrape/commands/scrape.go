package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"promoscrape/internal/collector"
	"promoscrape/internal/config"
	"promoscrape/internal/export"
	"promoscrape/internal/promoscore"
	"promoscrape/internal/serviceutil"
	"promoscrape/internal/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	scrapeWorkers *int
	scrapeOutputs *[]string
)

func init() {
	scrapeWorkers = scrapeCmd.Flags().Int("workers", 0, "How many retailers to process at once (overrides the config).")
	scrapeOutputs = scrapeCmd.Flags().StringArrayP("output", "o", nil, "Where to write rows, a file path (.csv, .json, .xlsx, .db) or a postgres DSN. Can be repeated.")
	rootCmd.AddCommand(scrapeCmd)
}

func createClient(cfg config.Config, tel telemetry.API) (*promoscore.Client, error) {
	var httpOutput telemetry.HttpOutput
	if cfg.DumpHttpDir != "" {
		out, err := telemetry.NewFilesystemOutput(cfg.DumpHttpDir)
		if err != nil {
			return nil, fmt.Errorf("create http dump directory: %w", err)
		}
		httpOutput = out
	}

	return promoscore.NewClient(promoscore.ClientOptions{
		BaseUrl:   cfg.BaseUrl,
		IndexName: cfg.IndexName,
		Anchor: promoscore.Coordinate{
			Lat: cfg.Anchor.Lat,
			Lng: cfg.Anchor.Lng,
		},
		SearchRadius:      cfg.SearchRadius,
		HitsPerPage:       cfg.HitsPerPage,
		StoreDistance:     cfg.StoreDistance,
		Timeout:           cfg.Timeout(),
		RequestsPerSecond: cfg.RequestsPerSecond,
		Headers:           cfg.Headers,
		Cookies:           cfg.Cookies,
		HttpOutput:        httpOutput,
	}, tel)
}

// withTelemetry runs fn between telemetry setup and shutdown, so whatever fn
// recorded is flushed before the caller decides to exit.
func withTelemetry(ctx context.Context, cfg telemetry.Config, fn func(ctx context.Context) error) error {
	otel, err := telemetry.Setup(ctx, "promoscrape", cfg)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	}()
	if cfg.Enabled() {
		telemetry.InstrumentPerfStats(ctx, 5*time.Second)
	}
	return fn(ctx)
}

// scrape collects rows for every configured retailer, writes them to every
// output and prints a summary to out. Failed writes do not stop the other
// writes, they are joined into the returned error.
func scrape(ctx context.Context, cfg config.Config, out io.Writer) error {
	tel := telemetry.SlogAPI{}

	// targets are opened first so a bad one fails before any request is made
	writers := make([]export.Writer, len(cfg.Outputs))
	for i, target := range cfg.Outputs {
		w, err := export.Open(target, tel)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		writers[i] = w
	}

	client, err := createClient(cfg, tel)
	if err != nil {
		return fmt.Errorf("initialize promoscore client: %w", err)
	}
	slog.Info("scraping", "retailers", len(cfg.Retailers), "workers", cfg.Workers)

	t1 := time.Now()
	result := collector.NewCollector(client, cfg.Workers, tel).Run(ctx, cfg.Retailers)
	t2 := time.Now()
	slog.Info("scraping time", "seconds", t2.Sub(t1).Seconds(), "rows", len(result.Rows))

	if ctx.Err() != nil {
		slog.Warn("scrape was interrupted, writing the rows collected so far")
	}
	// an interrupted run still keeps what it collected
	writeCtx := context.WithoutCancel(ctx)

	var failed []error
	for i, w := range writers {
		target := export.DisplayTarget(cfg.Outputs[i])
		err := w.Write(writeCtx, result.Rows)
		if errors.Is(err, export.ErrNothingToWrite) {
			slog.Warn("nothing to write", "output", target)
			continue
		}
		if err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", target, err))
			continue
		}
		slog.Info("wrote rows", "output", target, "rows", len(result.Rows))
	}

	printSummary(out, result, t2.Sub(t1))

	if len(failed) > 0 {
		return fmt.Errorf("write output: %w", errors.Join(failed...))
	}
	return nil
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [-o <output>]... [-r <retailer>]...",
	Short: "Collects one offer and the nearest store for every retailer and writes the rows.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if *scrapeWorkers > 0 {
			cfg.Workers = *scrapeWorkers
		}
		if len(*scrapeOutputs) > 0 {
			cfg.Outputs = *scrapeOutputs
		}

		err = withTelemetry(cmd.Context(), cfg.Telemetry, func(ctx context.Context) error {
			return scrape(ctx, cfg, cmd.OutOrStdout())
		})
		if err != nil {
			serviceutil.Fatal("scrape failed", err)
		}
	},
}

func printSummary(out io.Writer, result collector.Result, elapsed time.Duration) {
	reports := make([]collector.Report, len(result.Reports))
	copy(reports, result.Reports)
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Retailer < reports[j].Retailer
	})

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Retailer", "Outcome", "Rows", "Time", "Error"})
	for _, r := range reports {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		t.AppendRow(table.Row{
			r.Retailer,
			r.Outcome,
			r.Rows,
			r.Duration.Round(time.Millisecond),
			errText,
		})
	}
	for _, o := range collector.Outcomes {
		t.AppendFooter(table.Row{"", o, result.Counts[o]})
	}
	t.AppendFooter(table.Row{"total", "", len(result.Rows), elapsed.Round(time.Millisecond)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
