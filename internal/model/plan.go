package model

import "time"

// Priority ranks trading targets; lower is more urgent.
type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 2
)

// TradingTarget is the decision record for one passed symbol.
type TradingTarget struct {
	Code         string
	CurrentPrice float64
	MA5          *float64
	MA20         *float64
	EntryPrice   float64
	StopLoss     float64
	TakeProfit   float64
	PositionSize int
	Priority     Priority
	CreatedAt    time.Time
}
