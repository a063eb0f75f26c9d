package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/contactkeval/option-vol/internal/config"
	"github.com/contactkeval/option-vol/internal/logger"
	"github.com/contactkeval/option-vol/internal/market"
	"github.com/contactkeval/option-vol/internal/pipeline"
	"github.com/contactkeval/option-vol/internal/pricing"
	"github.com/contactkeval/option-vol/internal/report"
	"github.com/contactkeval/option-vol/internal/security"
	"github.com/contactkeval/option-vol/internal/server"
	"github.com/contactkeval/option-vol/internal/volatility"
)

type rootFlags struct {
	configPath string
	envFile    string
	verbosity  int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "option-vol",
		Short:         "Estimate option volatility and price option chains",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to YAML config (defaults when empty)")
	root.PersistentFlags().StringVar(&flags.envFile, "env", ".env", "dotenv file carrying API keys")
	root.PersistentFlags().IntVar(&flags.verbosity, "verbosity", -1, "0=errors,1=info,2=debug,3=trace (overrides config)")

	root.AddCommand(newPriceCmd(flags), newEstimateCmd(flags), newServeCmd(flags))
	return root
}

// setup loads the environment and config, applies verbosity and builds
// the pipeline.
func setup(flags *rootFlags) (*config.Config, *pipeline.Pipeline, error) {
	if err := config.LoadEnv(flags.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	if flags.verbosity >= 0 {
		cfg.Verbosity = flags.verbosity
	}
	logger.SetVerbosity(cfg.Verbosity)

	pc, err := cfg.PipelineConfig()
	if err != nil {
		return nil, nil, err
	}
	prov, err := cfg.DataProvider()
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.New(pc, prov)
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("event=setup underlying=%s estimator=%s provider=%s", pc.Underlying, pc.Estimator.Kind, prov.Name())
	return cfg, p, nil
}

func runContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.Timeout > 0 {
		return context.WithTimeout(context.Background(), cfg.Timeout)
	}
	return context.WithCancel(context.Background())
}

func newPriceCmd(flags *rootFlags) *cobra.Command {
	var outDir string
	var table bool
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price the configured underlying's option chain and write reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, p, err := setup(flags)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.ReportDir
			}
			asOf, err := cfg.AsOfTime(time.Now())
			if err != nil {
				return err
			}

			ctx, cancel := runContext(cfg)
			defer cancel()

			start := time.Now()
			res, err := p.Run(ctx, asOf)
			if err != nil {
				return err
			}
			if err := report.WriteFiles(res, outDir); err != nil {
				return err
			}
			if table {
				report.WriteTable(cmd.OutOrStdout(), res)
			}
			logger.Infof("event=done elapsed=%v priced=%d skipped=%d out=%s", time.Since(start), res.Priced, res.Skipped, outDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "report directory (overrides report_dir)")
	cmd.Flags().BoolVar(&table, "table", false, "also print a result table")
	return cmd
}

func newEstimateCmd(flags *rootFlags) *cobra.Command {
	var (
		right  string
		strike float64
		expiry string
		spot   float64
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate volatility for one contract and print its term structure",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, p, err := setup(flags)
			if err != nil {
				return err
			}
			r, err := security.ParseRight(right)
			if err != nil {
				return err
			}
			exp, err := time.Parse("2006-01-02", expiry)
			if err != nil {
				return fmt.Errorf("expiry %q: want YYYY-MM-DD", expiry)
			}
			asOf, err := cfg.AsOfTime(time.Now())
			if err != nil {
				return err
			}

			ctx, cancel := runContext(cfg)
			defer cancel()

			var snap *market.Snapshot
			if spot > 0 {
				snap = market.NewBuilder(asOf).SetSpot(cfg.Underlying, spot).Build()
			} else if snap, err = p.Snapshot(ctx, asOf); err != nil {
				return err
			}
			return writeEstimate(cmd.OutOrStdout(), p, snap, r, strike, exp, cfg.RiskFreeRate, cfg.DividendYield)
		},
	}
	cmd.Flags().StringVar(&right, "right", "call", "call or put")
	cmd.Flags().Float64Var(&strike, "strike", 0, "strike price")
	cmd.Flags().StringVar(&expiry, "expiry", "", "expiry date YYYY-MM-DD")
	cmd.Flags().Float64Var(&spot, "spot", 0, "spot override; skips the data provider")
	_ = cmd.MarkFlagRequired("strike")
	_ = cmd.MarkFlagRequired("expiry")
	return cmd
}

func writeEstimate(w io.Writer, p *pipeline.Pipeline, snap *market.Snapshot, right security.Right, strike float64, expiry time.Time, rate, dividend float64) error {
	und := p.Underlying().Symbol()
	q := market.OptionQuote{
		Symbol:     security.OptionSymbol(und, expiry, right, strike),
		Underlying: und,
		Right:      right,
		Strike:     strike,
		Expiry:     expiry,
	}
	if live, ok := snap.Quote(und, q.Symbol); ok {
		q = live
	}

	opt := p.Option(q)
	ts, reason := p.Estimate(opt, snap, security.ContractFor(opt, snap.Time))
	if reason != volatility.ReasonNone {
		fmt.Fprintf(w, "%s: no volatility estimate (%s)\n", q.Symbol, reason)
		return nil
	}

	row, err := p.PriceQuote(snap, q)
	if err != nil {
		return err
	}
	spot, _ := snap.Spot(und)
	report.WriteTable(w, &pipeline.Result{
		Underlying: und,
		AsOf:       snap.Time,
		Spot:       spot,
		Estimator:  p.Describe(),
		Priced:     1,
		Rows:       []pipeline.Row{row},
	})

	maturities := snap.Expiries(und)
	if len(maturities) == 0 {
		maturities = []time.Time{expiry}
	}
	report.WriteTermStructure(w, ts, deltaStrikes(ts, spot, strike, expiry, rate, dividend), maturities)
	return nil
}

// sampleDeltas are the call deltas sampled in the term structure table,
// in ascending strike order.
var sampleDeltas = []float64{0.9, 0.75, 0.5, 0.25, 0.1}

// deltaStrikes returns the strikes at sampleDeltas for expiry, using the
// volatility at the requested strike. It falls back to the requested
// strike alone when the expiry has no time left.
func deltaStrikes(ts volatility.TermStructure, spot, strike float64, expiry time.Time, rate, dividend float64) []float64 {
	t := volatility.TimeFromReference(ts, expiry)
	sigma := ts.VolatilityAt(strike, expiry)
	out := make([]float64, 0, len(sampleDeltas))
	for _, d := range sampleDeltas {
		k, err := pricing.StrikeFromDelta(true, spot, t, rate, dividend, sigma, d)
		if err != nil {
			logger.Debugf("event=delta_strike_skipped delta=%v err=%v", d, err)
			return []float64{strike}
		}
		out = append(out, math.Round(k*100)/100)
	}
	return out
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve estimates and chain pricing over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, p, err := setup(flags)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           server.New(p, cfg.Timeout).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logger.Infof("event=serve addr=%s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
