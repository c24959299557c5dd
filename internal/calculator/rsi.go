package calculator

import (
	"errors"
	"fmt"

	"StockSentinel/internal/model"
)

// CalculateRSI returns the Wilder RSI of closes. The first period changes seed
// plain averages; later changes are smoothed with weight 1/period.
func CalculateRSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(closes) < period+1 {
		return 0, fmt.Errorf("rsi(%d) over %d closes: %w", period, len(closes), model.ErrInsufficientHistory)
	}

	n := float64(period)
	var up, down float64
	for i := 1; i < len(closes); i++ {
		g, l := split(closes[i] - closes[i-1])
		switch {
		case i < period:
			up, down = up+g, down+l
		case i == period:
			up, down = (up+g)/n, (down+l)/n
		default:
			up = (up*(n-1) + g) / n
			down = (down*(n-1) + l) / n
		}
	}

	if down == 0 {
		return 100, nil
	}
	return 100 - 100/(1+up/down), nil
}

// split separates a price change into its gain and loss parts, both non-negative.
func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}
