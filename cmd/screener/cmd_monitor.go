package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"StockSentinel/internal/monitor"
	"StockSentinel/internal/notifier"
)

var monitorSymbol string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Poll one symbol's real-time quote",
	Long: `Poll the real-time quote of one symbol during trading hours, append each
tick to the day's quote CSV and report the afternoon new-high pullback signal.
Outside trading hours the monitor sleeps until the next session.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorSymbol, "symbol", "", "Symbol such as 600900.SH (default: monitor.symbol)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorSymbol != "" {
		cfg.Monitor.Symbol = monitorSymbol
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	m := a.newMonitor()
	m.OnEvent = func(_ context.Context, e monitor.Event) {
		fmt.Println(notifier.PlainText(notifier.FormatSignal(e)))
	}

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		m.Stop()
	}()

	if err := m.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
