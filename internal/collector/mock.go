package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"StockSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Snapshot *model.MarketSnapshot
	Bars     map[string]*model.BarSeries
	Quotes   []model.Quote
	Err      error

	mu         sync.Mutex
	barCalls   map[string]int
	quoteCalls int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchSnapshot(_ context.Context) (*model.MarketSnapshot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Snapshot == nil {
		return nil, fmt.Errorf("snapshot: %w", model.ErrDataUnavailable)
	}
	return m.Snapshot, nil
}

func (m *MockFetcher) FetchDailyBars(_ context.Context, symbol string, start, end time.Time, _ string) (*model.BarSeries, error) {
	m.mu.Lock()
	if m.barCalls == nil {
		m.barCalls = make(map[string]int)
	}
	m.barCalls[symbol]++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	src, ok := m.Bars[symbol]
	if !ok {
		return &model.BarSeries{Symbol: symbol}, nil
	}
	out := &model.BarSeries{Symbol: symbol}
	for _, b := range src.Bars {
		if b.Time.Before(model.DateOnly(start)) || b.Time.After(end) {
			continue
		}
		out.Bars = append(out.Bars, b)
	}
	return out, nil
}

// FetchQuote replays Quotes in order, repeating the last one.
func (m *MockFetcher) FetchQuote(_ context.Context, symbol string) (*model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Quotes) == 0 {
		return nil, fmt.Errorf("quote %s: %w", symbol, model.ErrDataUnavailable)
	}
	i := m.quoteCalls
	if i >= len(m.Quotes) {
		i = len(m.Quotes) - 1
	}
	m.quoteCalls++
	q := m.Quotes[i]
	return &q, nil
}

// BarCalls reports how many times bars were requested for symbol.
func (m *MockFetcher) BarCalls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.barCalls[symbol]
}

// GenerateBars builds count daily bars ending on end, skipping weekends.
// closeAt(i) gives the close of bar i; bars have no upper shadow.
func GenerateBars(symbol string, end time.Time, count int, closeAt func(i int) float64, volumeAt func(i int) float64) *model.BarSeries {
	dates := make([]time.Time, 0, count)
	for d := model.DateOnly(end); len(dates) < count; d = d.AddDate(0, 0, -1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dates = append(dates, d)
	}
	series := &model.BarSeries{Symbol: symbol, Bars: make([]model.OHLCV, count)}
	for i := 0; i < count; i++ {
		c := closeAt(i)
		series.Bars[i] = model.OHLCV{
			Time:   dates[count-1-i],
			Open:   c * 0.99,
			High:   c,
			Low:    c * 0.98,
			Close:  c,
			Volume: volumeAt(i),
		}
	}
	return series
}
