package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"StockSentinel/internal/config"
	"StockSentinel/internal/model"
)

// Options holds the sizing and price multipliers.
type Options struct {
	Budget      decimal.Decimal // CNY per symbol
	LotSize     int64
	EntryFactor decimal.Decimal
	StopFactor  decimal.Decimal
	TakeFactor  decimal.Decimal
	Now         func() time.Time
}

// DefaultOptions: 10000 CNY per symbol, 100-share lots, entry ×1.02, stop ×0.95, take profit ×1.08.
func DefaultOptions() Options {
	return Options{
		Budget:      decimal.NewFromInt(10000),
		LotSize:     100,
		EntryFactor: decimal.RequireFromString("1.02"),
		StopFactor:  decimal.RequireFromString("0.95"),
		TakeFactor:  decimal.RequireFromString("1.08"),
		Now:         time.Now,
	}
}

// OptionsFromConfig parses the planner section.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()
	opts.Budget = decimal.NewFromFloat(cfg.Planner.BudgetPerStock)
	opts.LotSize = int64(cfg.Planner.LotSize)
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"entry_factor", cfg.Planner.EntryFactor, &opts.EntryFactor},
		{"stop_factor", cfg.Planner.StopFactor, &opts.StopFactor},
		{"take_factor", cfg.Planner.TakeFactor, &opts.TakeFactor},
	} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return Options{}, fmt.Errorf("planner.%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return opts, nil
}

// Planner derives trading targets from passed verdicts.
type Planner struct {
	opts Options
}

// New creates a Planner.
func New(opts Options) *Planner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LotSize <= 0 {
		opts.LotSize = 100
	}
	return &Planner{opts: opts}
}

// Plan derives targets with DefaultOptions.
func Plan(passed []model.TechnicalVerdict) []model.TradingTarget {
	return New(DefaultOptions()).Plan(passed)
}

// Plan returns one target per passed verdict, sorted stably by priority.
// Prices are rounded to the 0.01 CNY tick.
func (p *Planner) Plan(passed []model.TechnicalVerdict) []model.TradingTarget {
	now := p.opts.Now()
	targets := make([]model.TradingTarget, 0, len(passed))
	for _, v := range passed {
		if v.LatestPrice <= 0 {
			log.Warn().Str("symbol", v.Code).Float64("price", v.LatestPrice).Msg("skip target without a positive price")
			continue
		}
		t := p.target(v, now)
		log.Info().
			Str("symbol", t.Code).
			Float64("price", t.CurrentPrice).
			Float64("entry", t.EntryPrice).
			Float64("stop", t.StopLoss).
			Float64("take_profit", t.TakeProfit).
			Int("size", t.PositionSize).
			Int("priority", int(t.Priority)).
			Msg("trading target")
		targets = append(targets, t)
	}
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].Priority < targets[j].Priority })
	return targets
}

func (p *Planner) target(v model.TechnicalVerdict, now time.Time) model.TradingTarget {
	price := decimal.NewFromFloat(v.LatestPrice)
	return model.TradingTarget{
		Code:         v.Code,
		CurrentPrice: v.LatestPrice,
		MA5:          v.MA5,
		MA20:         v.MA20,
		EntryPrice:   tick(price.Mul(p.opts.EntryFactor)),
		StopLoss:     tick(price.Mul(p.opts.StopFactor)),
		TakeProfit:   tick(price.Mul(p.opts.TakeFactor)),
		PositionSize: p.positionSize(price),
		Priority:     priority(v),
		CreatedAt:    now,
	}
}

// positionSize is floor(budget / price / lot) lots, at least one lot.
func (p *Planner) positionSize(price decimal.Decimal) int {
	lot := decimal.NewFromInt(p.opts.LotSize)
	lots := p.opts.Budget.Div(price).Div(lot).Floor().IntPart()
	if lots < 1 {
		lots = 1
	}
	return int(lots * p.opts.LotSize)
}

func priority(v model.TechnicalVerdict) model.Priority {
	if v.MA5 != nil && v.MA20 != nil && *v.MA5 > *v.MA20 {
		return model.PriorityHigh
	}
	return model.PriorityMedium
}

func tick(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }
