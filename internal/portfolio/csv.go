package portfolio

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/databank"
)

func WriteLedgerCSV(path string, ledger []LedgerRow) error {
	return writeFile(path, func(w io.Writer) error { return EncodeLedgerCSV(w, ledger) })
}

func EncodeLedgerCSV(out io.Writer, ledger []LedgerRow) error {
	w := csv.NewWriter(out)

	header := []string{
		"index",
		"entry_date",
		"exit_date",
		"pnl",
		"equity",
		"peak",
		"drawdown",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range ledger {
		row := []string{
			strconv.Itoa(r.Index),
			fmtTime(r.EntryTime),
			fmtTime(r.ExitTime),
			fmtFloat(r.PNL),
			fmtFloat(r.Equity),
			fmtFloat(r.Peak),
			fmtFloat(r.Drawdown),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WriteDatabankCSV writes one row per candidate with every optimizable metric.
func WriteDatabankCSV(path string, names []string, entries []databank.Candidate) error {
	return writeFile(path, func(w io.Writer) error { return EncodeDatabankCSV(w, names, entries) })
}

func EncodeDatabankCSV(out io.Writer, names []string, entries []databank.Candidate) error {
	w := csv.NewWriter(out)
	metrics := analysis.Metrics()

	header := []string{"rank", "indices", "strategies", "metric_value"}
	for _, m := range metrics {
		header = append(header, m.Key)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i, c := range entries {
		members := make([]string, len(c.Indices))
		for j, idx := range c.Indices {
			if idx >= 0 && idx < len(names) {
				members[j] = names[idx]
			} else {
				members[j] = strconv.Itoa(idx)
			}
		}
		row := []string{
			strconv.Itoa(i + 1),
			c.Key(),
			strings.Join(members, "+"),
			fmtFloat(c.MetricValue),
		}
		for _, m := range metrics {
			if v, ok := m.Value(c.Report); ok {
				row = append(row, fmtFloat(v))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WriteDailyCSV writes the per-day equity curve of c, one row per calendar day.
func WriteDailyCSV(path string, c *analysis.Curves) error {
	return writeFile(path, func(w io.Writer) error { return EncodeDailyCSV(w, c) })
}

func EncodeDailyCSV(out io.Writer, c *analysis.Curves) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"date", "pnl", "equity", "daily_return"}); err != nil {
		return err
	}
	returns := c.DailyReturns()
	for i, d := range c.Days {
		row := []string{
			d.Format("2006-01-02"),
			fmtFloat(c.DailyPnL[i]),
			fmtFloat(c.ByDay[i]),
			fmtFloat(returns.Values[i]),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeFile(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
