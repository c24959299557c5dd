package recorder

import (
	"time"

	"StockSentinel/internal/model"
)

// SignalEvent records a monitor strategy transition worth keeping.
type SignalEvent struct {
	Symbol      string
	Phase       string // "NEW_HIGH", "PULLBACK", "CONFIRMED"
	Price       float64
	DayHigh     float64
	PullbackPct float64
	MA          float64
	At          time.Time
}

// RunSummary is one stored screening run.
type RunSummary struct {
	RunID       string
	AnalyzedAt  time.Time
	Shortlisted int
	Analyzed    int
	Passed      int
	Codes       []string // passed symbols, in result order
}

// Recorder persists screening history for analysis.
type Recorder interface {
	RecordRun(res *model.ScreeningResult) error
	RecordTargets(runID string, targets []model.TradingTarget) error
	RecordSignal(evt *SignalEvent) error
	LatestRun() (*RunSummary, error)
	Close() error
}
