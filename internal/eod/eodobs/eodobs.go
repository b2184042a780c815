package eodobs

import (
	"context"

	"brokerage-mcp/internal/eod"
	"brokerage-mcp/internal/logger"
	"brokerage-mcp/internal/pnl"
	"brokerage-mcp/internal/trace"
)

type observableReporter struct {
	reporter eod.Reporter
}

var _ eod.Reporter = (*observableReporter)(nil)

func Wrap(reporter eod.Reporter) eod.Reporter {
	return &observableReporter{reporter: reporter}
}

func (o *observableReporter) SummarizeDay(ctx context.Context, date string, res pnl.Result) (string, error) {
	ctx, span := trace.StartSpan(ctx, "eod.SummarizeDay")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Starting EOD summary generation", "date", date)

	csvPath, err := o.reporter.SummarizeDay(ctx, date, res)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "EOD summary generation failed", err, "date", date)
		return "", err
	}

	if csvPath == "" {
		logger.InfoSkip(ctx, 1, "No trades found for EOD summary", "date", date)
		return "", nil
	}

	logger.InfoSkip(ctx, 1, "EOD summary generated successfully",
		"date", date,
		"csv_path", csvPath,
		"profit", res.Profit.StringFixed(2),
	)
	return csvPath, nil
}

func (o *observableReporter) SummarizeLots(ctx context.Context, date string, rep pnl.LotReport) (string, error) {
	ctx, span := trace.StartSpan(ctx, "eod.SummarizeLots")
	defer span.End()

	csvPath, err := o.reporter.SummarizeLots(ctx, date, rep)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Lot report generation failed", err, "date", date)
		return "", err
	}
	if csvPath == "" {
		logger.InfoSkip(ctx, 1, "No trades found for lot report", "date", date)
		return "", nil
	}

	logger.InfoSkip(ctx, 1, "Lot report generated",
		"date", date,
		"csv_path", csvPath,
		"matched_trades", rep.MatchedTrades,
		"profit", rep.TotalProfit.StringFixed(2),
	)
	return csvPath, nil
}
