package strategy

import (
	"fmt"
	"math"

	"StockSentinel/internal/calculator"
	"StockSentinel/internal/model"
)

// isDowntrend reports MA5 below MA20 with either average falling over the slope lookback.
// Too little history counts as a downtrend. A slope whose older end is not yet
// defined counts as flat.
func isDowntrend(closes []float64, o Options) bool {
	if len(closes) < o.LongMA {
		return true
	}
	short := calculator.SMASeries(closes, o.ShortMA)
	long := calculator.SMASeries(closes, o.LongMA)

	shortSlope, _ := calculator.Slope(short, o.SlopeLookback)
	longSlope, _ := calculator.Slope(long, o.SlopeLookback)

	n := len(closes)
	return short[n-1] < long[n-1] && (shortSlope < 0 || longSlope < 0)
}

// hasHighShadow reports whether any of the last ShadowDays bars has an upper shadow
// longer than ShadowRatio of its range while closing in the upper half.
// Too little history counts as a shadow.
func hasHighShadow(bars []model.OHLCV, o Options) bool {
	if len(bars) < o.ShadowDays {
		return true
	}
	for _, b := range bars[len(bars)-o.ShadowDays:] {
		ratio, ok := calculator.UpperShadowRatio(b)
		if !ok {
			continue
		}
		if ratio > o.ShadowRatio && calculator.ClosesInUpperHalf(b) {
			return true
		}
	}
	return false
}

// moderateVolume compares the latest volume with the mean of the VolumeWindow
// sessions before it.
func moderateVolume(volumes []float64, o Options) model.VolumeVerdict {
	n := len(volumes)
	if n == 0 {
		return model.VolumeVerdict{Reason: "数据为空"}
	}
	if n < o.VolumeWindow+1 {
		return model.VolumeVerdict{Reason: fmt.Sprintf("数据不足，需要至少%d天数据", o.VolumeWindow+1)}
	}

	current := volumes[n-1]
	avg := calculator.Mean(volumes[n-1-o.VolumeWindow : n-1])
	if avg == 0 {
		return model.VolumeVerdict{CurrentVolume: current, Reason: "历史平均成交量为0"}
	}

	ratio := current / avg
	moderate := o.VolumeLow <= ratio && ratio <= o.VolumeHigh
	recentMax, _ := calculator.WindowMax(volumes, o.ExtremeLookback)
	notExtreme := current <= recentMax*o.ExtremeFactor

	rounded := round2(ratio)
	return model.VolumeVerdict{
		IsModerate:    moderate && notExtreme,
		Valid:         true,
		Ratio:         &rounded,
		CurrentVolume: current,
		AvgVolume:     round2(avg),
		Reason:        volumeReason(ratio, notExtreme, o),
	}
}

func volumeReason(ratio float64, notExtreme bool, o Options) string {
	switch {
	case ratio < o.VolumeLow:
		return fmt.Sprintf("成交量不足，量比%.2f小于%g", ratio, o.VolumeLow)
	case ratio > o.VolumeHigh:
		return fmt.Sprintf("成交量过大，量比%.2f超过%g", ratio, o.VolumeHigh)
	case !notExtreme:
		return "成交量异常放大"
	default:
		return fmt.Sprintf("温和放量，量比%.2f", ratio)
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
