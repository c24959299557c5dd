package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"StockSentinel/internal/cache"
	"StockSentinel/internal/config"
	"StockSentinel/internal/filter"
	"StockSentinel/internal/metrics"
	"StockSentinel/internal/model"
	"StockSentinel/internal/recorder"
	"StockSentinel/internal/retry"
	"StockSentinel/internal/strategy"
)

// Options controls one screening run.
type Options struct {
	Criteria     filter.Criteria
	Scoring      strategy.Options
	LookbackDays int
	MaxRetries   int
	Pacing       time.Duration // pause after each network fetch
	MaxSymbols   int           // 0 analyses the whole shortlist
	Verbose      bool
}

// DefaultOptions: default criteria and scoring, 60 days of bars, 3 retries, 1s pacing.
func DefaultOptions() Options {
	return Options{
		Criteria:     filter.DefaultCriteria(),
		Scoring:      strategy.DefaultOptions(),
		LookbackDays: 60,
		MaxRetries:   3,
		Pacing:       time.Second,
	}
}

// OptionsFromConfig builds Options from the fetch, filter and scoring sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Criteria:     filter.FromConfig(cfg),
		Scoring:      strategy.OptionsFromConfig(cfg),
		LookbackDays: cfg.Fetch.LookbackDays,
		MaxRetries:   cfg.Fetch.MaxRetries,
		Pacing:       cfg.Fetch.Pacing,
		MaxSymbols:   cfg.Fetch.MaxSymbols,
		Verbose:      cfg.Fetch.Verbose,
	}
}

// Pipeline screens a market snapshot symbol by symbol. Runs are sequential.
type Pipeline struct {
	Cache    *cache.SymbolCache
	Recorder recorder.Recorder
	Opts     Options
	Now      func() time.Time
	Sleep    retry.Sleeper
}

// New creates a Pipeline. A nil recorder disables history.
func New(c *cache.SymbolCache, rec recorder.Recorder, opts Options) *Pipeline {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Pipeline{
		Cache:    c,
		Recorder: rec,
		Opts:     opts,
		Now:      time.Now,
		Sleep:    retry.Sleep,
	}
}

// Run shortlists snap and scores every shortlisted symbol. Per-symbol failures
// become invalid verdicts. An empty shortlist still finishes as a zero-result run.
func (p *Pipeline) Run(ctx context.Context, snap *model.MarketSnapshot) *model.ScreeningResult {
	started := time.Now()
	now := p.Now()
	res := &model.ScreeningResult{RunID: uuid.NewString(), AnalysisTime: now}

	var rows []model.SnapshotRow
	if snap != nil {
		rows = snap.Rows
	}
	shortlist := filter.Shortlist(rows, p.Opts.Criteria)
	res.Shortlisted = len(shortlist)
	if len(shortlist) == 0 {
		log.Warn().Int("rows", len(rows)).Msg("no symbols passed the snapshot filter, nothing to analyse")
		p.finish(res, started)
		return res
	}
	if p.Opts.MaxSymbols > 0 && len(shortlist) > p.Opts.MaxSymbols {
		log.Info().Int("shortlisted", len(shortlist)).Int("max", p.Opts.MaxSymbols).Msg("shortlist capped")
		shortlist = shortlist[:p.Opts.MaxSymbols]
	}

	session := p.Cache.Calendar.SessionOrToday(ctx, now)
	start := model.DateOnly(now).AddDate(0, 0, -p.Opts.LookbackDays)

	for i, row := range shortlist {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("analysed", i).Int("shortlisted", len(shortlist)).Msg("screening interrupted")
			break
		}
		v, fetched := p.analyze(ctx, row, session, start, now)
		p.collect(res, v)
		if p.Opts.Verbose {
			log.Info().Int("n", i+1).Int("of", len(shortlist)).Str("symbol", v.Code).Bool("pass", v.Pass).Str("reason", v.Reason).Msg("symbol analysed")
		}
		if fetched && i < len(shortlist)-1 && p.Opts.Pacing > 0 {
			if err := p.Sleep(ctx, p.Opts.Pacing); err != nil {
				log.Warn().Err(err).Msg("screening interrupted")
				break
			}
		}
	}

	p.finish(res, started)
	return res
}

// analyze loads and scores one symbol. fetched reports whether the cache went to the network.
func (p *Pipeline) analyze(ctx context.Context, row model.SnapshotRow, session, start, end time.Time) (*model.TechnicalVerdict, bool) {
	lr, err := p.Cache.Load(ctx, cache.LoadRequest{
		Symbol:     row.Code,
		Path:       cache.ResolvePath(p.Cache.Dir, row.Code, session),
		Start:      start,
		End:        end,
		MaxRetries: p.Opts.MaxRetries,
		Verbose:    p.Opts.Verbose,
	})
	if err != nil {
		log.Warn().Err(err).Str("symbol", row.Code).Msg("bars unavailable")
		return &model.TechnicalVerdict{Code: row.Code, Name: row.Name, Reason: "数据获取失败: " + err.Error()}, true
	}
	v := strategy.Score(lr.Series, p.Opts.Scoring)
	v.Code, v.Name, v.FromCache = row.Code, row.Name, lr.FromCache
	return v, !lr.FromCache
}

// Replay scores every bar CSV in dir without network access. The symbol is
// taken from each file name.
func (p *Pipeline) Replay(ctx context.Context, dir string) (*model.ScreeningResult, error) {
	started := time.Now()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read replay dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		if strings.HasPrefix(name, "stock_data_pool") || strings.HasPrefix(name, "trading_plan_") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	log.Info().Str("dir", dir).Int("files", len(files)).Msg("replaying local bar files")

	res := &model.ScreeningResult{RunID: uuid.NewString(), AnalysisTime: p.Now(), Shortlisted: len(files)}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		symbol := cache.SymbolFromFileName(path)
		series, err := cache.ReadBarFile(path, symbol)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("unreadable bar file")
			p.collect(res, &model.TechnicalVerdict{Code: symbol, Reason: "文件解析失败: " + err.Error()})
			continue
		}
		v := strategy.Score(series, p.Opts.Scoring)
		v.Code, v.FromCache = symbol, true
		p.collect(res, v)
	}

	p.finish(res, started)
	return res, nil
}

func (p *Pipeline) collect(res *model.ScreeningResult, v *model.TechnicalVerdict) {
	res.AllResults = append(res.AllResults, *v)
	switch {
	case !v.ValidData:
		metrics.Verdicts.WithLabelValues("invalid").Inc()
	case v.Pass:
		metrics.Verdicts.WithLabelValues("pass").Inc()
		res.PassedStocks = append(res.PassedStocks, *v)
	default:
		metrics.Verdicts.WithLabelValues("fail").Inc()
	}
}

func (p *Pipeline) finish(res *model.ScreeningResult, started time.Time) {
	res.PassedCount = len(res.PassedStocks)
	metrics.RunDuration.Observe(time.Since(started).Seconds())

	if err := p.Recorder.RecordRun(res); err != nil {
		log.Error().Err(err).Str("run_id", res.RunID).Msg("record screening run")
	}
	log.Info().
		Str("run_id", res.RunID).
		Int("shortlisted", res.Shortlisted).
		Int("analysed", len(res.AllResults)).
		Int("passed", res.PassedCount).
		Dur("elapsed", time.Since(started)).
		Msg("screening finished")
}
