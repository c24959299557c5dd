package cache

import (
	"context"
	"fmt"
	"io"
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

// PoolCache serves the market snapshot from stock_data_pool{YYYYMMDD}.csv files,
// under the same recent-session rule as SymbolCache.
type PoolCache struct {
	Calendar   *calendar.Calendar
	Source     collector.SnapshotSource
	Dir        string
	MaxRetries int
	BaseDelay  time.Duration
	Sleep      retry.Sleeper
	Now        func() time.Time
}

// NewPoolCache creates a pool cache rooted at dir.
func NewPoolCache(cal *calendar.Calendar, src collector.SnapshotSource, dir string, maxRetries int) *PoolCache {
	return &PoolCache{
		Calendar:   cal,
		Source:     src,
		Dir:        dir,
		MaxRetries: maxRetries,
		BaseDelay:  time.Second,
		Sleep:      retry.Sleep,
		Now:        time.Now,
	}
}

// Load returns the snapshot and whether it came from disk.
func (p *PoolCache) Load(ctx context.Context) (*model.MarketSnapshot, bool, error) {
	now := p.Now()

	if path, date, ok := newestDated(filepath.Join(p.Dir, "stock_data_pool*.csv"), nil); ok {
		if p.Calendar.IsRecentSession(ctx, date, now) {
			snap, err := readSnapshotFile(path)
			if err == nil && len(snap.Rows) > 0 {
				metrics.CacheLookups.WithLabelValues("pool", "hit").Inc()
				info, _ := os.Stat(path)
				if info != nil {
					snap.FetchedAt = info.ModTime()
				}
				log.Info().Str("path", path).Int("rows", len(snap.Rows)).Msg("using cached market snapshot")
				return snap, true, nil
			}
			metrics.CacheLookups.WithLabelValues("pool", "corrupt").Inc()
			log.Warn().Err(err).Str("path", path).Msg("pool file unusable, refetching")
		} else {
			metrics.CacheLookups.WithLabelValues("pool", "stale").Inc()
		}
	} else {
		metrics.CacheLookups.WithLabelValues("pool", "miss").Inc()
	}

	policy := retry.Policy{
		MaxAttempts: p.MaxRetries,
		BaseDelay:   p.BaseDelay,
		Name:        "snapshot",
		Sleep:       p.Sleep,
	}
	fetch := func(ctx context.Context) (*model.MarketSnapshot, error) {
		snap, err := p.Source.FetchSnapshot(ctx)
		if err != nil {
			metrics.FetchAttempts.WithLabelValues("snapshot", "error").Inc()
			return nil, err
		}
		metrics.FetchAttempts.WithLabelValues("snapshot", "ok").Inc()
		return snap, nil
	}
	size := func(s *model.MarketSnapshot) int {
		if s == nil {
			return 0
		}
		return len(s.Rows)
	}
	snap, err := retry.Do(ctx, policy, fetch, retry.MinRows(1, size))
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w: %w", model.ErrDataUnavailable, err)
	}

	session := p.Calendar.SessionOrToday(ctx, now)
	path := filepath.Join(p.Dir, PoolFileName(session))
	if err := writeAtomic(path, func(w io.Writer) error { return WriteSnapshot(w, snap) }); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("pool write failed")
	}
	return snap, false, nil
}

func readSnapshotFile(path string) (*model.MarketSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSnapshot(f)
}
