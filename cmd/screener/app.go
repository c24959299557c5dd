package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"StockSentinel/internal/cache"
	"StockSentinel/internal/calendar"
	"StockSentinel/internal/collector"
	"StockSentinel/internal/config"
	"StockSentinel/internal/monitor"
	"StockSentinel/internal/pipeline"
	"StockSentinel/internal/planner"
	"StockSentinel/internal/recorder"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg      *config.Config
	source   *collector.EastMoneyFetcher
	calendar *calendar.Calendar
	pools    *cache.PoolCache
	bars     *cache.SymbolCache
	pipeline *pipeline.Pipeline
	planner  *planner.Planner
	recorder recorder.Recorder
}

func newApp(cfg *config.Config) (*app, error) {
	src := collector.NewEastMoneyFetcher(
		cfg.DataSource.SnapshotURL,
		cfg.DataSource.HistoryURL,
		cfg.Proxy,
		cfg.DataSource.Timeout,
		cfg.DataSource.RPS,
		cfg.DataSource.Burst,
	)
	log.Info().Str("source", src.Name()).Msg("data source ready")

	cal := calendar.New(calendar.NewCachedSource(src, 6*time.Hour))
	bars := cache.NewSymbolCache(cal, src, cfg.Data.SingleDir)
	pools := cache.NewPoolCache(cal, src, cfg.Data.PoolDir, cfg.Fetch.MaxRetries)

	planOpts, err := planner.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	rec := openRecorder(cfg.Database.SQLitePath)
	return &app{
		cfg:      cfg,
		source:   src,
		calendar: cal,
		pools:    pools,
		bars:     bars,
		pipeline: pipeline.New(bars, rec, pipeline.OptionsFromConfig(cfg)),
		planner:  planner.New(planOpts),
		recorder: rec,
	}, nil
}

// openRecorder falls back to the no-op recorder when SQLite cannot be opened.
func openRecorder(path string) recorder.Recorder {
	if path == "" {
		return recorder.NewNoopRecorder()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("create database dir")
	}
	sr, err := recorder.NewSQLiteRecorder(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("init sqlite recorder failed, using noop")
		return recorder.NewNoopRecorder()
	}
	return sr
}

func (a *app) newMonitor() *monitor.Monitor {
	quotes := collector.NewSinaQuoteFetcher(a.cfg.DataSource.QuoteURL, a.cfg.Proxy, a.cfg.DataSource.Timeout)
	m := monitor.New(a.cfg.Monitor.Symbol, quotes, a.cfg.Monitor.DataDir, a.cfg.Monitor.Interval)
	m.StatePath = a.cfg.Monitor.StateFile
	m.Strategy.MAPeriods = a.cfg.Monitor.MAPeriods
	if tp, err := time.Parse("15:04", a.cfg.Monitor.TimePoint); err == nil {
		m.Strategy.TimePoint = time.Duration(tp.Hour())*time.Hour + time.Duration(tp.Minute())*time.Minute
	}
	return m
}

func (a *app) close() {
	if err := a.recorder.Close(); err != nil {
		log.Warn().Err(err).Msg("close recorder")
	}
}
