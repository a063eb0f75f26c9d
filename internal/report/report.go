// Package report writes pipeline results as JSON, CSV and text tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"

	"github.com/contactkeval/option-vol/internal/pipeline"
	"github.com/contactkeval/option-vol/internal/volatility"
)

const dateLayout = "2006-01-02"

// CSVRow is the flat CSV form of a pipeline row.
type CSVRow struct {
	Symbol        string  `csv:"symbol"`
	Underlying    string  `csv:"underlying"`
	Right         string  `csv:"right"`
	Strike        float64 `csv:"strike"`
	Expiry        string  `csv:"expiry"`
	Spot          float64 `csv:"spot"`
	MarketMid     float64 `csv:"market_mid"`
	ReferenceDate string  `csv:"reference_date"`
	TimeToExpiry  float64 `csv:"time_to_expiry"`
	Volatility    float64 `csv:"volatility"`
	Price         float64 `csv:"price"`
	Delta         float64 `csv:"delta"`
	Gamma         float64 `csv:"gamma"`
	Vega          float64 `csv:"vega"`
	Theta         float64 `csv:"theta"`
	Rho           float64 `csv:"rho"`
	Skipped       bool    `csv:"skipped"`
	Reason        string  `csv:"reason"`
}

// CSVRows flattens rows for CSV output.
func CSVRows(rows []pipeline.Row) []*CSVRow {
	out := make([]*CSVRow, 0, len(rows))
	for _, r := range rows {
		ref := ""
		if !r.ReferenceDate.IsZero() {
			ref = r.ReferenceDate.Format(dateLayout)
		}
		out = append(out, &CSVRow{
			Symbol:        r.Symbol,
			Underlying:    r.Underlying,
			Right:         r.Right,
			Strike:        r.Strike,
			Expiry:        r.Expiry.Format(dateLayout),
			Spot:          r.Spot,
			MarketMid:     r.MarketMid,
			ReferenceDate: ref,
			TimeToExpiry:  r.TimeToExpiry,
			Volatility:    r.Volatility,
			Price:         r.Price,
			Delta:         r.Delta,
			Gamma:         r.Gamma,
			Vega:          r.Vega,
			Theta:         r.Theta,
			Rho:           r.Rho,
			Skipped:       r.Skipped,
			Reason:        r.Reason,
		})
	}
	return out
}

// WriteJSON writes res as indented JSON followed by a newline.
func WriteJSON(w io.Writer, res *pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteCSV writes rows with a header line, dates as YYYY-MM-DD.
func WriteCSV(w io.Writer, rows []pipeline.Row) error {
	return gocsv.Marshal(CSVRows(rows), w)
}

// WriteFiles writes estimates.json and estimates.csv into outdir,
// creating it if needed.
func WriteFiles(res *pipeline.Result, outdir string) error {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(outdir, "estimates.json"), func(w io.Writer) error {
		return WriteJSON(w, res)
	}); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	if err := writeFile(filepath.Join(outdir, "estimates.csv"), func(w io.Writer) error {
		return WriteCSV(w, res.Rows)
	}); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// writeFile creates path, runs write and reports the first of the write
// and close errors.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}

// WriteTable renders a result summary, one line per contract.
func WriteTable(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "%s spot=%.2f as_of=%s estimator=%s priced=%d skipped=%d\n",
		res.Underlying, res.Spot, res.AsOf.Format(time.RFC3339), res.Estimator, res.Priced, res.Skipped)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"symbol", "expiry", "strike", "mid", "vol", "price", "delta", "vega", "note"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)
	for _, r := range res.Rows {
		if r.Skipped {
			table.Append([]string{r.Symbol, r.Expiry.Format(dateLayout), ff(r.Strike, 2), ff(r.MarketMid, 2), "-", "-", "-", "-", r.Reason})
			continue
		}
		table.Append([]string{
			r.Symbol,
			r.Expiry.Format(dateLayout),
			ff(r.Strike, 2),
			ff(r.MarketMid, 2),
			ff(r.Volatility, 4),
			ff(r.Price, 4),
			ff(r.Delta, 4),
			ff(r.Vega, 4),
			"",
		})
	}
	table.Render()
}

// WriteTermStructure samples ts on a strike by maturity grid.
func WriteTermStructure(w io.Writer, ts volatility.TermStructure, strikes []float64, maturities []time.Time) {
	fmt.Fprintf(w, "reference=%s calendar=%s day_counter=%s\n",
		ts.ReferenceDate().Format(dateLayout), ts.Calendar(), ts.DayCounter().Name())

	header := []string{"maturity", "t"}
	for _, k := range strikes {
		header = append(header, ff(k, 2))
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, m := range maturities {
		line := []string{m.Format(dateLayout), ff(volatility.TimeFromReference(ts, m), 4)}
		for _, k := range strikes {
			line = append(line, ff(ts.VolatilityAt(k, m), 4))
		}
		table.Append(line)
	}
	table.Render()
}

func ff(v float64, prec int) string { return strconv.FormatFloat(v, 'f', prec, 64) }
