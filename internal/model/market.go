package model

import (
	"sort"
	"time"
)

// OHLCV represents a single daily bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Amount float64
}

// BarSeries holds one symbol's daily bars in ascending date order.
type BarSeries struct {
	Symbol string
	Bars   []OHLCV
}

// Len returns the number of bars.
func (s *BarSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Empty reports whether the series has no bars.
func (s *BarSeries) Empty() bool { return s.Len() == 0 }

// Last returns the most recent bar. Callers must check Empty first.
func (s *BarSeries) Last() OHLCV { return s.Bars[len(s.Bars)-1] }

// LatestDate returns the date of the most recent bar, or the zero time.
func (s *BarSeries) LatestDate() time.Time {
	if s.Empty() {
		return time.Time{}
	}
	var latest time.Time
	for _, b := range s.Bars {
		if b.Time.After(latest) {
			latest = b.Time
		}
	}
	return latest
}

// Closes extracts the close prices.
func (s *BarSeries) Closes() []float64 {
	out := make([]float64, s.Len())
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volumes.
func (s *BarSeries) Volumes() []float64 {
	out := make([]float64, s.Len())
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// Normalize sorts bars by date and drops duplicate dates, keeping the later row.
func (s *BarSeries) Normalize() {
	if s.Len() < 2 {
		return
	}
	sort.SliceStable(s.Bars, func(i, j int) bool { return s.Bars[i].Time.Before(s.Bars[j].Time) })
	out := s.Bars[:0]
	for _, b := range s.Bars {
		if n := len(out); n > 0 && SameDay(out[n-1].Time, b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	s.Bars = out
}

// SnapshotRow is one listed symbol in a market-wide snapshot.
// Market caps are in 亿 (1e8 CNY) once ingested.
type SnapshotRow struct {
	Code           string
	Name           string
	Price          float64
	PrevClose      float64
	PctChange      float64
	TurnoverRate   float64
	VolumeRatio    float64
	TotalMarketCap float64
	CirculatingCap float64
}

// MarketSnapshot is the full snapshot for one fetch cycle.
type MarketSnapshot struct {
	Rows      []SnapshotRow
	FetchedAt time.Time
}

// Quote is one real-time quote tick.
type Quote struct {
	Code      string
	Name      string
	Open      float64
	PrevClose float64
	Price     float64
	High      float64
	Low       float64
	Volume    float64
	Amount    float64
	QuoteTime time.Time
	FetchTime time.Time
}
