package filter

import (
	"github.com/rs/zerolog/log"

	"StockSentinel/internal/config"
	"StockSentinel/internal/model"
)

// Criteria are the snapshot thresholds. All bounds are exclusive; a zero Max is unbounded.
type Criteria struct {
	PctChange      config.Range
	TurnoverRate   config.Range
	MinVolumeRatio float64
	MarketCap      config.Range // in 亿
}

// DefaultCriteria: change (3,5)%, turnover (4,10)%, volume ratio > 1, market cap (50,100) 亿.
func DefaultCriteria() Criteria {
	return Criteria{
		PctChange:      config.Range{Min: 3, Max: 5},
		TurnoverRate:   config.Range{Min: 4, Max: 10},
		MinVolumeRatio: 1,
		MarketCap:      config.Range{Min: 50, Max: 100},
	}
}

// FromConfig builds Criteria from the filter section.
func FromConfig(cfg *config.Config) Criteria {
	return Criteria{
		PctChange:      cfg.Filter.PctChange,
		TurnoverRate:   cfg.Filter.TurnoverRate,
		MinVolumeRatio: cfg.Filter.MinVolumeRatio,
		MarketCap:      cfg.Filter.MarketCap,
	}
}

// Match reports whether row satisfies every criterion.
func (c Criteria) Match(row model.SnapshotRow) bool {
	return within(row.PctChange, c.PctChange) &&
		within(row.TurnoverRate, c.TurnoverRate) &&
		row.VolumeRatio > c.MinVolumeRatio &&
		within(row.TotalMarketCap, c.MarketCap)
}

// Shortlist returns the rows matching c, preserving input order.
func Shortlist(rows []model.SnapshotRow, c Criteria) []model.SnapshotRow {
	var out []model.SnapshotRow
	for _, r := range rows {
		if c.Match(r) {
			out = append(out, r)
		}
	}
	log.Info().Int("input", len(rows)).Int("shortlisted", len(out)).Msg("snapshot filtered")
	return out
}

func within(v float64, r config.Range) bool {
	if v <= r.Min {
		return false
	}
	return r.Max == 0 || v < r.Max
}
