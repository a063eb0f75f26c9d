package report

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-vol/internal/calendar"
	"github.com/contactkeval/option-vol/internal/daycount"
	"github.com/contactkeval/option-vol/internal/pipeline"
	"github.com/contactkeval/option-vol/internal/testutil"
	"github.com/contactkeval/option-vol/internal/volatility"
)

var expiry = time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		Underlying: "SPY",
		AsOf:       time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC),
		Spot:       584.64,
		Estimator:  "constant",
		Priced:     1,
		Skipped:    1,
		Rows: []pipeline.Row{
			{
				Symbol:        "O:SPY250117C00585000",
				Underlying:    "SPY",
				Right:         "call",
				Strike:        585,
				Expiry:        expiry,
				Spot:          584.64,
				MarketMid:     6.25,
				ReferenceDate: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
				TimeToExpiry:  0.25,
				Volatility:    0.2,
				Price:         6.5,
				Delta:         0.5,
				Gamma:         0.01,
				Vega:          0.3,
				Theta:         -0.12,
				Rho:           0.06,
			},
			{
				Symbol:     "O:SPY250117P00585000",
				Underlying: "SPY",
				Right:      "put",
				Strike:     585,
				Expiry:     expiry,
				Spot:       584.64,
				MarketMid:  6.75,
				Skipped:    true,
				Reason:     "no_volatility_model",
			},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResult()))
	testutil.CompareWithGolden(t, "result", buf.Bytes())
	testutil.CompareJSONWithGolden(t, "result", sampleResult())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResult().Rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		"symbol,underlying,right,strike,expiry,spot,market_mid,reference_date,time_to_expiry,volatility,price,delta,gamma,vega,theta,rho,skipped,reason",
		lines[0])

	var rows []*CSVRow
	require.NoError(t, gocsv.UnmarshalBytes(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-01-17", rows[0].Expiry)
	assert.Equal(t, "2025-01-03", rows[0].ReferenceDate)
	assert.Equal(t, 0.2, rows[0].Volatility)
	assert.False(t, rows[0].Skipped)

	assert.Empty(t, rows[1].ReferenceDate)
	assert.True(t, rows[1].Skipped)
	assert.Equal(t, "no_volatility_model", rows[1].Reason)
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, WriteFiles(sampleResult(), dir))

	b, err := os.ReadFile(filepath.Join(dir, "estimates.json"))
	require.NoError(t, err)
	testutil.CompareWithGolden(t, "result", b)

	_, err = os.Stat(filepath.Join(dir, "estimates.csv"))
	assert.NoError(t, err)
}

func TestWriteFileReportsErrors(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")
	err := writeFile(filepath.Join(dir, "x.json"), func(io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = writeFile(filepath.Join(dir, "missing", "x.json"), func(io.Writer) error { return nil })
	assert.ErrorIs(t, err, os.ErrNotExist)

	// the file is closed before writeFile returns
	var leaked *os.File
	err = writeFile(filepath.Join(dir, "y.json"), func(w io.Writer) error {
		leaked = w.(*os.File)
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, leaked.Close(), os.ErrClosed)
}

func TestWriteFilesIntoUnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, WriteFiles(sampleResult(), filepath.Join(file, "out")))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	WriteTable(&buf, sampleResult())
	out := buf.String()

	assert.Contains(t, out, "SPY spot=584.64 as_of=2025-01-02T15:00:00Z estimator=constant priced=1 skipped=1")
	assert.Contains(t, out, "O:SPY250117C00585000")
	assert.Contains(t, out, "0.2000")
	assert.Contains(t, out, "no_volatility_model")
}

func TestWriteTermStructure(t *testing.T) {
	ref := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	ts, err := volatility.NewConstantVol(ref, calendar.UnitedStatesNYSE, 0.2, daycount.Actual365Fixed{})
	require.NoError(t, err)

	var buf bytes.Buffer
	WriteTermStructure(&buf, ts, []float64{580, 590}, []time.Time{expiry, ref.AddDate(0, 0, 73)})
	out := buf.String()

	assert.Contains(t, out, "reference=2025-01-03 calendar=US-NYSE day_counter=ACT/365F")
	assert.Contains(t, out, "580.00")
	assert.Contains(t, out, "2025-03-17")
	// four vol cells plus t=73/365 on the second row
	assert.Equal(t, 5, strings.Count(out, "0.2000"))
}
