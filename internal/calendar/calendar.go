package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"StockSentinel/internal/model"
)

// Source returns the full history of trading session dates.
type Source interface {
	TradeDates(ctx context.Context) ([]time.Time, error)
}

// Calendar resolves recent trading sessions from a Source.
type Calendar struct {
	Source Source
}

// New creates a Calendar backed by src.
func New(src Source) *Calendar {
	return &Calendar{Source: src}
}

// LatestAndPrevious returns the most recent and second most recent sessions on or before asOf.
// Both are nil when the source fails or has no dates up to asOf; previous is nil when only one exists.
func (c *Calendar) LatestAndPrevious(ctx context.Context, asOf time.Time) (latest, previous *time.Time) {
	dates, err := c.Source.TradeDates(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("trading calendar fetch failed")
		return nil, nil
	}

	cutoff := model.DateOnly(asOf)
	var eligible []time.Time
	for _, d := range dates {
		d = model.DateOnly(d)
		if !d.After(cutoff) {
			eligible = append(eligible, d)
		}
	}
	if len(eligible) == 0 {
		log.Warn().Str("as_of", model.FormatDate(asOf)).Msg("trading calendar has no sessions up to date")
		return nil, nil
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].After(eligible[j]) })
	l := eligible[0]
	latest = &l
	if len(eligible) > 1 {
		p := eligible[1]
		previous = &p
	}
	return latest, previous
}

// SessionOrToday returns the latest session, falling back to asOf's date when the calendar is unavailable.
func (c *Calendar) SessionOrToday(ctx context.Context, asOf time.Time) time.Time {
	latest, _ := c.LatestAndPrevious(ctx, asOf)
	if latest == nil {
		return model.DateOnly(asOf)
	}
	return *latest
}

// IsRecentSession reports whether date is the latest or previous session as of asOf.
// Without a calendar, only asOf's own date counts as recent.
func (c *Calendar) IsRecentSession(ctx context.Context, date, asOf time.Time) bool {
	latest, previous := c.LatestAndPrevious(ctx, asOf)
	if latest == nil {
		return model.SameDay(model.DateOnly(date), model.DateOnly(asOf))
	}
	date = model.DateOnly(date)
	if date.Equal(*latest) {
		return true
	}
	return previous != nil && date.Equal(*previous)
}

// StaticSource serves a fixed list of dates.
type StaticSource []time.Time

func (s StaticSource) TradeDates(_ context.Context) ([]time.Time, error) {
	return s, nil
}

// CachedSource memoizes another Source for TTL so that per-symbol lookups
// within one run do not refetch the calendar.
type CachedSource struct {
	Source Source
	TTL    time.Duration
	Now    func() time.Time

	mu      sync.Mutex
	dates   []time.Time
	fetched time.Time
}

// NewCachedSource wraps src with a TTL cache.
func NewCachedSource(src Source, ttl time.Duration) *CachedSource {
	return &CachedSource{Source: src, TTL: ttl, Now: time.Now}
}

func (c *CachedSource) TradeDates(ctx context.Context) ([]time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.Now()
	if c.dates != nil && now.Sub(c.fetched) < c.TTL && model.SameDay(now.In(model.CST), c.fetched.In(model.CST)) {
		return c.dates, nil
	}
	dates, err := c.Source.TradeDates(ctx)
	if err != nil {
		return nil, err
	}
	c.dates, c.fetched = dates, now
	return dates, nil
}
