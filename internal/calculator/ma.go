package calculator

import (
	"errors"
	"fmt"
	"math"

	"StockSentinel/internal/model"
)

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, fmt.Errorf("sma(%d) over %d prices: %w", period, len(prices), model.ErrInsufficientHistory)
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// SMASeries returns the rolling simple moving average aligned with prices.
// Positions before the first full window are NaN.
func SMASeries(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if period <= 0 || i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}

// Slope is (ma[n-1] - ma[n-lookback]) / lookback. ok is false when either end is unavailable.
func Slope(ma []float64, lookback int) (slope float64, ok bool) {
	n := len(ma)
	if lookback <= 0 || n < lookback {
		return 0, false
	}
	last, first := ma[n-1], ma[n-lookback]
	if math.IsNaN(last) || math.IsNaN(first) {
		return 0, false
	}
	return (last - first) / float64(lookback), true
}

// LatestSMA returns the latest SMA of closes, or nil when there are fewer than period bars.
func LatestSMA(closes []float64, period int) *float64 {
	v, err := CalculateSMA(closes, period)
	if err != nil {
		return nil
	}
	return &v
}
