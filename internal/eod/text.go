package eod

import (
	"fmt"
	"io"
	"text/tabwriter"

	"brokerage-mcp/internal/pnl"
)

const rule = "─────────────────────────────────────────────────────────────────────"

// WriteText renders the estimate as an aligned table for terminals.
func WriteText(w io.Writer, date string, res pnl.Result) error {
	if res.Status != pnl.StatusSuccess {
		_, err := fmt.Fprintf(w, "Day-trade estimate for %s failed: %s\n", date, res.Detail)
		return err
	}

	fmt.Fprintf(w, "Day-trade profit estimate for %s\n%s\n", date, rule)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "TICKER\tBUY QTY\tAVG BUY\tSELL QTY\tSELL VALUE\tPROFIT\tNOTE\t")
	for _, t := range res.Tickers {
		note := "matched"
		if !t.Matched {
			note = t.SkipReason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			t.Ticker, t.BuyQty, t.AvgBuyPrice.StringFixed(2), t.SellQty,
			t.SellValue.StringFixed(2), t.Profit.StringFixed(2), note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s\nTotal profit: %s (%d filled orders)\n", rule, res.Profit.StringFixed(2), res.FilledOrders)
	return err
}

// WriteLotsText renders the lot-matching analysis per ticker.
func WriteLotsText(w io.Writer, date string, rep pnl.LotReport) error {
	if rep.Status != pnl.StatusSuccess {
		_, err := fmt.Fprintf(w, "Lot analysis for %s failed: %s\n", date, rep.Detail)
		return err
	}

	fmt.Fprintf(w, "Lot-matched profit for %s (%s)\n%s\n", date, rep.Algorithm, rule)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "TICKER\tBUYS\tSELLS\tMATCHED SHARES\tFEES\tPROFIT\tPER SHARE\t")
	for _, t := range rep.Tickers {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t%s\t\n",
			t.Ticker, t.BuyOrders, t.SellOrders, t.MatchedShares,
			t.Fees.StringFixed(2), t.Profit.StringFixed(2), t.AvgProfitPerShare.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s\nTotal profit: %s (%d matches across %d filled orders)\n",
		rule, rep.TotalProfit.StringFixed(2), rep.MatchedTrades, rep.TradeCount)
	return err
}
