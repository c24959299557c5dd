package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"StockSentinel/internal/model"
	"StockSentinel/internal/notifier"
	"StockSentinel/internal/planner"
)

var (
	screenMaxSymbols int
	screenVerbose    bool
	screenExecute    bool
	replayDir        string
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Fetch the market snapshot and screen it",
	Long: `Fetch (or reuse today's cached) market snapshot, filter it, score every
shortlisted symbol on daily bars and write the trading plan.

Examples:
  screener screen
  screener screen --max-symbols 20 --verbose
  screener screen --execute`,
	RunE: runScreen,
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rescore bar CSVs already on disk",
	Long: `Score every {symbol}_{YYYYMMDD}.csv in a directory without network access
and write the trading plan for the symbols that pass.`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(screenCmd, replayCmd)

	screenCmd.Flags().IntVar(&screenMaxSymbols, "max-symbols", 0, "Analyse at most this many shortlisted symbols (0 = all)")
	screenCmd.Flags().BoolVar(&screenVerbose, "verbose", false, "Log per-symbol cache and retry details")
	screenCmd.Flags().BoolVar(&screenExecute, "execute", false, "Hand the plan to the simulated broker")

	replayCmd.Flags().StringVar(&replayDir, "dir", "", "Directory of bar CSVs (default: data.replay_dir)")
	replayCmd.Flags().BoolVar(&screenExecute, "execute", false, "Hand the plan to the simulated broker")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runScreen(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()
	if cmd.Flags().Changed("max-symbols") {
		a.pipeline.Opts.MaxSymbols = screenMaxSymbols
	}
	if screenVerbose {
		a.pipeline.Opts.Verbose = true
	}

	ctx, cancel := signalContext()
	defer cancel()

	_, err = screen(ctx, a)
	return err
}

// screen loads the snapshot and reports the run. A snapshot that cannot be
// loaded yields a zero-result run instead of an error.
func screen(ctx context.Context, a *app) (*model.ScreeningResult, error) {
	snap, fromCache, err := a.pools.Load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("market snapshot unavailable, reporting an empty run")
		snap = &model.MarketSnapshot{}
	} else {
		log.Info().Int("rows", len(snap.Rows)).Bool("from_cache", fromCache).Msg("market snapshot ready")
	}

	res := a.pipeline.Run(ctx, snap)
	return res, report(ctx, a, res)
}

func runReplay(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	dir := replayDir
	if dir == "" {
		dir = cfg.Data.ReplayDir
	}
	ctx, cancel := signalContext()
	defer cancel()

	res, err := a.pipeline.Replay(ctx, dir)
	if err != nil {
		return err
	}
	return report(ctx, a, res)
}

// report prints the screening summary, then plans, saves and optionally executes targets.
func report(ctx context.Context, a *app, res *model.ScreeningResult) error {
	fmt.Println(notifier.PlainText(notifier.FormatScreeningReport(res)))

	targets := a.planner.Plan(res.PassedStocks)
	fmt.Println(notifier.PlainText(notifier.FormatTradingPlan(targets)))
	if len(targets) == 0 {
		return nil
	}

	path, err := planner.WritePlan(a.cfg.Data.PlanDir, targets, res.AnalysisTime)
	if err != nil {
		return err
	}
	log.Info().Str("path", path).Int("targets", len(targets)).Msg("trading plan saved")
	if err := a.recorder.RecordTargets(res.RunID, targets); err != nil {
		log.Error().Err(err).Msg("record trading targets")
	}

	if screenExecute {
		exec := &planner.Executor{Broker: &planner.SimulatedBroker{}}
		n, err := exec.Execute(ctx, targets)
		if err != nil {
			return err
		}
		log.Info().Int("accepted", n).Msg("simulated execution finished")
	}
	return nil
}
