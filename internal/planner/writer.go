package planner

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"StockSentinel/internal/model"
)

var planHeader = []string{
	"code", "current_price", "ma5", "ma20", "entry_price", "stop_loss",
	"take_profit", "position_size", "priority", "created_time",
}

// WritePlan saves targets to dir/trading_plan_{YYYYMMDD_HHMMSS}.csv and returns the path.
func WritePlan(dir string, targets []model.TradingTarget, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create plan dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("trading_plan_%s.csv", now.In(model.CST).Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create plan file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	bw.WriteString("\ufeff")
	cw := csv.NewWriter(bw)
	cw.Write(planHeader)
	for _, t := range targets {
		cw.Write([]string{
			t.Code,
			money(t.CurrentPrice),
			optMoney(t.MA5),
			optMoney(t.MA20),
			money(t.EntryPrice),
			money(t.StopLoss),
			money(t.TakeProfit),
			strconv.Itoa(t.PositionSize),
			strconv.Itoa(int(t.Priority)),
			t.CreatedAt.In(model.CST).Format("2006-01-02 15:04:05"),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("write plan: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("flush plan: %w", err)
	}
	return path, nil
}

func money(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func optMoney(v *float64) string {
	if v == nil {
		return ""
	}
	return money(*v)
}
