package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"StockSentinel/internal/calendar"
	"StockSentinel/internal/collector"
	"StockSentinel/internal/metrics"
	"StockSentinel/internal/model"
	"StockSentinel/internal/retry"
)

// minBars is the smallest fetched series worth persisting.
const minBars = 6

// LoadRequest describes one symbol load.
type LoadRequest struct {
	Symbol     string
	Path       string // existing or intended cache file; empty means synthesize under Dir
	Start      time.Time
	End        time.Time
	MaxRetries int
	Verbose    bool
}

// LoadResult is the outcome of a successful load.
type LoadResult struct {
	Series    *model.BarSeries
	FromCache bool
	Path      string
}

// SymbolCache serves daily bars from session-dated CSV files, fetching and
// persisting fresh data when the file is missing, unreadable or stale.
type SymbolCache struct {
	Calendar  *calendar.Calendar
	Source    collector.BarSource
	Dir       string
	Adjust    string
	BaseDelay time.Duration
	Sleep     retry.Sleeper
	Now       func() time.Time
}

// NewSymbolCache creates a cache rooted at dir with qfq bars and 1s base backoff.
func NewSymbolCache(cal *calendar.Calendar, src collector.BarSource, dir string) *SymbolCache {
	return &SymbolCache{
		Calendar:  cal,
		Source:    src,
		Dir:       dir,
		Adjust:    "qfq",
		BaseDelay: time.Second,
		Sleep:     retry.Sleep,
		Now:       time.Now,
	}
}

// Load returns bars for req.Symbol. A cache file dated on the latest or previous
// session is returned as-is; otherwise bars are fetched with retries and written
// to a file named for the current session. Exhausted retries yield ErrDataUnavailable.
func (c *SymbolCache) Load(ctx context.Context, req LoadRequest) (*LoadResult, error) {
	now := c.Now()

	if req.Path != "" {
		if series, ok := c.readFresh(ctx, req, now); ok {
			return &LoadResult{Series: series, FromCache: true, Path: req.Path}, nil
		}
	}

	policy := retry.Policy{
		MaxAttempts: req.MaxRetries,
		BaseDelay:   c.BaseDelay,
		Name:        "bars " + req.Symbol,
		Verbose:     req.Verbose,
		Sleep:       c.Sleep,
	}
	fetch := func(ctx context.Context) (*model.BarSeries, error) {
		series, err := c.Source.FetchDailyBars(ctx, req.Symbol, req.Start, req.End, c.Adjust)
		if err != nil {
			metrics.FetchAttempts.WithLabelValues("bars", "error").Inc()
			return nil, err
		}
		metrics.FetchAttempts.WithLabelValues("bars", "ok").Inc()
		return series, nil
	}
	series, err := retry.Do(ctx, policy, fetch, retry.MinRows(minBars, (*model.BarSeries).Len))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w: %w", req.Symbol, model.ErrDataUnavailable, err)
	}

	session := c.Calendar.SessionOrToday(ctx, now)
	path := rewritePath(req.Path, c.Dir, req.Symbol, session)
	if err := WriteBarFile(path, series); err != nil {
		log.Warn().Err(err).Str("symbol", req.Symbol).Str("path", path).Msg("cache write failed")
	} else {
		if req.Path != "" && req.Path != path {
			if err := os.Remove(req.Path); err != nil && !os.IsNotExist(err) {
				log.Debug().Err(err).Str("path", req.Path).Msg("remove stale cache file")
			}
		}
		if req.Verbose {
			log.Info().Str("symbol", req.Symbol).Int("bars", series.Len()).Str("path", path).Msg("bars cached")
		}
	}
	return &LoadResult{Series: series, FromCache: false, Path: path}, nil
}

// readFresh returns the cached series when the file parses and is dated on a recent session.
func (c *SymbolCache) readFresh(ctx context.Context, req LoadRequest, now time.Time) (*model.BarSeries, bool) {
	if _, err := os.Stat(req.Path); err != nil {
		metrics.CacheLookups.WithLabelValues("symbol", "miss").Inc()
		return nil, false
	}
	series, err := ReadBarFile(req.Path, req.Symbol)
	if err != nil || series.Empty() {
		metrics.CacheLookups.WithLabelValues("symbol", "corrupt").Inc()
		log.Warn().Err(err).Str("symbol", req.Symbol).Str("path", req.Path).Msg("cache file unusable, refetching")
		return nil, false
	}

	date, ok := model.ExtractDate(filepath.Base(req.Path))
	if !ok {
		date = series.LatestDate()
	}
	if !c.Calendar.IsRecentSession(ctx, date, now) {
		metrics.CacheLookups.WithLabelValues("symbol", "stale").Inc()
		if req.Verbose {
			log.Info().Str("symbol", req.Symbol).Str("date", model.FormatDate(date)).Msg("cache stale, refetching")
		}
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues("symbol", "hit").Inc()
	if req.Verbose {
		log.Info().Str("symbol", req.Symbol).Int("bars", series.Len()).Msg("using cached bars")
	}
	return series, true
}
