package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"brokerage-mcp/internal/app"
	"brokerage-mcp/internal/broker/kite"
	"brokerage-mcp/internal/eod"
	"brokerage-mcp/internal/eod/eodobs"
	"brokerage-mcp/internal/logger"
	"brokerage-mcp/internal/pnl"
	"brokerage-mcp/internal/session"
	"brokerage-mcp/internal/trace"
)

var version = "dev"

// newBroker is swapped out in tests.
var newBroker = app.InitializeBroker

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 1 for usage and I/O errors, 2 when the
// estimate itself failed. Deferred cleanup runs before main exits.
func run(args []string, stdout, stderr io.Writer) int {
	// Command-line flags
	fs := flag.NewFlagSet("pnl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "path to config file")
	date := fs.String("date", time.Now().In(session.IST).Format(kite.DateLayout), "trading date (YYYY-MM-DD)")
	format := fs.String("format", "text", "output format: text, json, or csv")
	algorithm := fs.String("algorithm", "average", "average (weighted-average buy price) or lots (closest-price lot matching)")
	outputFile := fs.String("output", "", "save report to file (optional)")
	save := fs.Bool("save", false, "also write the EOD CSV under reports.dir")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if _, err := kite.ParseDate(*date); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fs.Usage()
		return 1
	}
	if *algorithm != "average" && *algorithm != "lots" {
		fmt.Fprintf(stderr, "Error: unknown algorithm %q\n", *algorithm)
		return 1
	}

	if err := app.InitializeSystem(version); err != nil {
		fmt.Fprintf(stderr, "Error initializing: %v\n", err)
		return 1
	}
	defer logger.Sync()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(shutdownCtx)
	}()

	ctx := context.Background()
	cfg, err := app.LoadConfig(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	sessions, closeSessions, err := app.InitializeSessions(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error restoring session: %v\n", err)
		return 1
	}
	defer closeSessions()

	brk := newBroker(ctx, cfg, sessions)
	reporter := eodobs.Wrap(eod.NewReporter(cfg.Reports.Dir))

	var (
		report  bytes.Buffer
		ok      bool
		csv     string
		saveErr error
	)
	switch *algorithm {
	case "lots":
		orders, err := brk.OrdersByDate(ctx, *date)
		rep := pnl.MatchLots(orders)
		if err != nil {
			rep = pnl.LotReport{Status: pnl.StatusFailure, Detail: err.Error()}
		}
		ok = rep.Status == pnl.StatusSuccess
		if err := writeLots(&report, *format, *date, rep); err != nil {
			fmt.Fprintf(stderr, "Error generating report: %v\n", err)
			return 1
		}
		if *save && ok {
			csv, saveErr = reporter.SummarizeLots(ctx, *date, rep)
		}
	default:
		res := pnl.EstimateFrom(ctx, brk, *date)
		ok = res.Status == pnl.StatusSuccess
		if err := writeEstimate(&report, *format, *date, res); err != nil {
			fmt.Fprintf(stderr, "Error generating report: %v\n", err)
			return 1
		}
		if *save && ok {
			csv, saveErr = reporter.SummarizeDay(ctx, *date, res)
		}
	}
	// Output to console
	fmt.Fprint(stdout, report.String())

	if saveErr != nil {
		fmt.Fprintf(stderr, "Error saving EOD CSV: %v\n", saveErr)
		return 1
	}
	if csv != "" {
		fmt.Fprintln(stderr, "EOD CSV written:", csv)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, report.Bytes(), 0o644); err != nil {
			fmt.Fprintf(stderr, "Error saving report to file: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "Report saved to: %s\n", *outputFile)
	}
	if !ok {
		return 2
	}
	return 0
}

func writeEstimate(w io.Writer, format, date string, res pnl.Result) error {
	switch format {
	case "json":
		return writeJSON(w, res)
	case "csv":
		if res.Status != pnl.StatusSuccess {
			return eod.WriteText(w, date, res)
		}
		return eod.WriteCSV(w, res)
	default:
		return eod.WriteText(w, date, res)
	}
}

func writeLots(w io.Writer, format, date string, rep pnl.LotReport) error {
	switch format {
	case "json":
		return writeJSON(w, rep)
	case "csv":
		if rep.Status != pnl.StatusSuccess {
			return eod.WriteLotsText(w, date, rep)
		}
		return eod.WriteLotsCSV(w, rep)
	default:
		return eod.WriteLotsText(w, date, rep)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
