package calculator

import (
	"errors"
	"math"

	"StockSentinel/internal/model"
)

// WindowMax returns the maximum of the last n values, or of all values when fewer than n.
func WindowMax(values []float64, n int) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values provided")
	}
	start := len(values) - n
	if start < 0 || n <= 0 {
		start = 0
	}
	high := math.Inf(-1)
	for i := start; i < len(values); i++ {
		if values[i] > high {
			high = values[i]
		}
	}
	return high, nil
}

// Mean returns the arithmetic mean of values; an empty slice yields 0.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// UpperShadowRatio returns (high - max(open, close)) / (high - low).
// ok is false for a zero-range bar.
func UpperShadowRatio(bar model.OHLCV) (ratio float64, ok bool) {
	total := bar.High - bar.Low
	if total == 0 {
		return 0, false
	}
	return (bar.High - math.Max(bar.Open, bar.Close)) / total, true
}

// ClosesInUpperHalf reports whether the bar closed above the midpoint of its range.
func ClosesInUpperHalf(bar model.OHLCV) bool {
	return bar.Close > (bar.High+bar.Low)/2
}
