// Package eod renders end-of-day profit reports as CSV.
package eod

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"brokerage-mcp/internal/pnl"

	"github.com/gocarina/gocsv"
)

// Reporter writes the report for one trading day and returns where it went.
type Reporter interface {
	SummarizeDay(ctx context.Context, date string, res pnl.Result) (csvPath string, err error)
	SummarizeLots(ctx context.Context, date string, rep pnl.LotReport) (csvPath string, err error)
}

type estimateRow struct {
	Ticker      string `csv:"ticker"`
	BuyQty      string `csv:"buy_qty"`
	AvgBuyPrice string `csv:"avg_buy_price"`
	BuyValue    string `csv:"gross_buy_value"`
	SellQty     string `csv:"sell_qty"`
	SellValue   string `csv:"gross_sell_value"`
	Profit      string `csv:"profit"`
	Note        string `csv:"note"`
}

type lotRow struct {
	Ticker    string `csv:"ticker"`
	BuyID     string `csv:"buy_order_id"`
	SellID    string `csv:"sell_order_id"`
	Quantity  string `csv:"quantity"`
	BuyPrice  string `csv:"buy_price"`
	SellPrice string `csv:"sell_price"`
	Fees      string `csv:"fees"`
	Profit    string `csv:"profit"`
}

// WriteCSV writes one row per ticker followed by a TOTAL row.
func WriteCSV(w io.Writer, res pnl.Result) error {
	if res.Status != pnl.StatusSuccess {
		return fmt.Errorf("cannot report failed estimate: %s", res.Detail)
	}
	rows := make([]*estimateRow, 0, len(res.Tickers)+1)
	for _, t := range res.Tickers {
		note := "matched"
		if !t.Matched {
			note = "skipped: " + t.SkipReason
		}
		rows = append(rows, &estimateRow{
			Ticker:      t.Ticker,
			BuyQty:      t.BuyQty.String(),
			AvgBuyPrice: t.AvgBuyPrice.StringFixed(4),
			BuyValue:    t.BuyValue.StringFixed(2),
			SellQty:     t.SellQty.String(),
			SellValue:   t.SellValue.StringFixed(2),
			Profit:      t.Profit.StringFixed(2),
			Note:        note,
		})
	}
	rows = append(rows, &estimateRow{
		Ticker: "TOTAL",
		Profit: res.Profit.StringFixed(2),
		Note:   strconv.Itoa(res.FilledOrders) + " filled orders",
	})
	return gocsv.Marshal(rows, w)
}

// WriteLotsCSV writes one row per matched lot.
func WriteLotsCSV(w io.Writer, rep pnl.LotReport) error {
	if rep.Status != pnl.StatusSuccess {
		return fmt.Errorf("cannot report failed analysis: %s", rep.Detail)
	}
	rows := []*lotRow{}
	for _, t := range rep.Tickers {
		for _, m := range t.Matches {
			rows = append(rows, &lotRow{
				Ticker:    t.Ticker,
				BuyID:     m.BuyID,
				SellID:    m.SellID,
				Quantity:  m.Quantity.String(),
				BuyPrice:  m.BuyPrice.StringFixed(2),
				SellPrice: m.SellPrice.StringFixed(2),
				Fees:      m.Fees.StringFixed(2),
				Profit:    m.Profit.StringFixed(2),
			})
		}
	}
	rows = append(rows, &lotRow{Ticker: "TOTAL", Profit: rep.TotalProfit.StringFixed(2)})
	return gocsv.Marshal(rows, w)
}

type csvReporter struct {
	dir string
}

var _ Reporter = (*csvReporter)(nil)

// NewReporter writes reports to dir/eod/<date>.csv.
func NewReporter(dir string) Reporter {
	return &csvReporter{dir: dir}
}

func CSVPath(dir, date string) string {
	return filepath.Join(dir, "eod", date+".csv")
}

func LotsCSVPath(dir, date string) string {
	return filepath.Join(dir, "eod", date+"-lots.csv")
}

// SummarizeDay returns an empty path when there is nothing to report.
func (r *csvReporter) SummarizeDay(_ context.Context, date string, res pnl.Result) (string, error) {
	if res.Status != pnl.StatusSuccess {
		return "", fmt.Errorf("estimate for %s failed: %s", date, res.Detail)
	}
	if res.FilledOrders == 0 {
		return "", nil
	}
	outPath := CSVPath(r.dir, date)
	if err := writeFile(outPath, func(w io.Writer) error { return WriteCSV(w, res) }); err != nil {
		return "", err
	}
	return outPath, nil
}

// SummarizeLots returns an empty path when no filled orders were analysed.
func (r *csvReporter) SummarizeLots(_ context.Context, date string, rep pnl.LotReport) (string, error) {
	if rep.Status != pnl.StatusSuccess {
		return "", fmt.Errorf("lot analysis for %s failed: %s", date, rep.Detail)
	}
	if rep.TradeCount == 0 {
		return "", nil
	}
	outPath := LotsCSVPath(r.dir, date)
	if err := writeFile(outPath, func(w io.Writer) error { return WriteLotsCSV(w, rep) }); err != nil {
		return "", err
	}
	return outPath, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	return write(out)
}
