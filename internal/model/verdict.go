package model

import "time"

// VolumeVerdict is the outcome of the moderate-volume check.
type VolumeVerdict struct {
	IsModerate    bool
	Valid         bool
	Ratio         *float64
	CurrentVolume float64
	AvgVolume     float64
	Reason        string
}

// TechnicalVerdict is the per-symbol output of the technical scorer.
type TechnicalVerdict struct {
	Code          string
	Name          string
	ValidData     bool
	Reason        string
	LatestPrice   float64
	LatestDate    time.Time
	IsDowntrend   bool
	HasHighShadow bool
	Volume        VolumeVerdict
	MA5           *float64 // nil when fewer than 5 bars
	MA20          *float64 // nil when fewer than 20 bars
	RSI14         *float64 // nil when fewer than 15 bars
	AvgVolume5d   float64
	DataDays      int
	TechnicalPass bool
	Pass          bool
	FromCache     bool
}

// FailReasons lists the human-readable reasons a valid verdict did not pass.
func (v *TechnicalVerdict) FailReasons() []string {
	var reasons []string
	if v.IsDowntrend {
		reasons = append(reasons, "下跌趋势")
	}
	if v.HasHighShadow {
		reasons = append(reasons, "高位上影线")
	}
	if v.TechnicalPass && !v.Pass {
		reasons = append(reasons, "非温和放量")
	}
	return reasons
}

// ScreeningResult aggregates one pipeline run.
type ScreeningResult struct {
	RunID        string
	PassedStocks []TechnicalVerdict
	AllResults   []TechnicalVerdict
	PassedCount  int
	Shortlisted  int
	AnalysisTime time.Time
}
