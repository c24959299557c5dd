package strategy

import (
	"StockSentinel/internal/calculator"
	"StockSentinel/internal/config"
	"StockSentinel/internal/model"
)

// Options holds the scoring thresholds.
type Options struct {
	IncludeVolume bool // require moderate volume for an overall pass

	ShortMA       int // 5
	LongMA        int // 20; also the minimum history for the trend check
	SlopeLookback int // 5

	ShadowDays  int     // 5
	ShadowRatio float64 // 0.03

	VolumeWindow    int     // 5
	VolumeLow       float64 // 1.2
	VolumeHigh      float64 // 1.8
	ExtremeLookback int     // 10
	ExtremeFactor   float64 // 1.5

	RSIPeriod int // 14
}

// DefaultOptions returns the standard thresholds with volume scoring enabled.
func DefaultOptions() Options {
	return Options{
		IncludeVolume:   true,
		ShortMA:         5,
		LongMA:          20,
		SlopeLookback:   5,
		ShadowDays:      5,
		ShadowRatio:     0.03,
		VolumeWindow:    5,
		VolumeLow:       1.2,
		VolumeHigh:      1.8,
		ExtremeLookback: 10,
		ExtremeFactor:   1.5,
		RSIPeriod:       14,
	}
}

// OptionsFromConfig applies the scoring section over DefaultOptions.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	if cfg.Scoring.IncludeVolume != nil {
		opts.IncludeVolume = *cfg.Scoring.IncludeVolume
	}
	opts.VolumeWindow = cfg.Scoring.VolumeWindow
	opts.VolumeLow = cfg.Scoring.VolumeLow
	opts.VolumeHigh = cfg.Scoring.VolumeHigh
	return opts
}

// Score evaluates one symbol's daily bars. An empty series yields an invalid verdict.
func Score(series *model.BarSeries, opts Options) *model.TechnicalVerdict {
	v := &model.TechnicalVerdict{}
	if series != nil {
		v.Code = series.Symbol
	}
	if series.Empty() {
		v.Reason = "无数据"
		return v
	}

	last := series.Last()
	closes := series.Closes()
	volumes := series.Volumes()

	v.ValidData = true
	v.LatestPrice = last.Close
	v.LatestDate = last.Time
	v.DataDays = series.Len()
	v.MA5 = calculator.LatestSMA(closes, opts.ShortMA)
	v.MA20 = calculator.LatestSMA(closes, opts.LongMA)
	v.AvgVolume5d = calculator.Mean(tail(volumes, opts.ShortMA))
	if rsi, err := calculator.CalculateRSI(closes, opts.RSIPeriod); err == nil {
		v.RSI14 = &rsi
	}

	v.IsDowntrend = isDowntrend(closes, opts)
	v.HasHighShadow = hasHighShadow(series.Bars, opts)
	v.Volume = moderateVolume(volumes, opts)

	v.TechnicalPass = !v.IsDowntrend && !v.HasHighShadow
	v.Pass = v.TechnicalPass && (!opts.IncludeVolume || v.Volume.IsModerate)
	return v
}

func tail(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
