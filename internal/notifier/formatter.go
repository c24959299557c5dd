package notifier

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"StockSentinel/internal/model"
	"StockSentinel/internal/monitor"
	"StockSentinel/internal/recorder"
)

// maxListed caps per-section lines so a report stays under Telegram's message limit.
const maxListed = 30

// FormatScreeningReport formats a screening run: passed symbols first, then every
// symbol that failed with its reasons.
func FormatScreeningReport(res *model.ScreeningResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>选股报告</b> | %s\n\n", res.AnalysisTime.In(model.CST).Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("初筛: %d | 分析: %d | 通过: %d\n", res.Shortlisted, len(res.AllResults), res.PassedCount))

	if res.PassedCount > 0 {
		b.WriteString("\n✅ <b>通过:</b>\n")
		for i, v := range res.PassedStocks {
			if i == maxListed {
				b.WriteString(fmt.Sprintf("  …另有 %d 只\n", len(res.PassedStocks)-maxListed))
				break
			}
			b.WriteString(fmt.Sprintf("  %s %s %.2f | MA5 %s MA20 %s | 量比 %s\n",
				v.Code, v.Name, v.LatestPrice, optFloat(v.MA5), optFloat(v.MA20), optFloat(v.Volume.Ratio)))
		}
	}

	var failed []string
	for _, v := range res.AllResults {
		if v.ValidData && v.Pass {
			continue
		}
		failed = append(failed, fmt.Sprintf("  %s %s: %s\n", v.Code, v.Name, verdictReason(v)))
	}
	if len(failed) > 0 {
		b.WriteString("\n❌ <b>未通过:</b>\n")
		for i, line := range failed {
			if i == maxListed {
				b.WriteString(fmt.Sprintf("  …另有 %d 只\n", len(failed)-maxListed))
				break
			}
			b.WriteString(line)
		}
	}
	return b.String()
}

func verdictReason(v model.TechnicalVerdict) string {
	if !v.ValidData {
		return v.Reason
	}
	reasons := v.FailReasons()
	if len(reasons) == 0 {
		return "未通过"
	}
	return strings.Join(reasons, "、")
}

// FormatTradingPlan formats targets in priority order.
func FormatTradingPlan(targets []model.TradingTarget) string {
	var b strings.Builder
	b.WriteString("💰 <b>交易计划</b>\n\n")
	if len(targets) == 0 {
		b.WriteString("今日无交易标的\n")
		return b.String()
	}
	for _, t := range targets {
		b.WriteString(fmt.Sprintf("[P%d] %s 现价 %.2f\n", t.Priority, t.Code, t.CurrentPrice))
		b.WriteString(fmt.Sprintf("   买入 %.2f | 止损 %.2f | 止盈 %.2f | %d股\n", t.EntryPrice, t.StopLoss, t.TakeProfit, t.PositionSize))
	}
	return b.String()
}

// FormatSignal formats a monitor strategy transition.
func FormatSignal(e monitor.Event) string {
	at := e.At.In(model.CST).Format("15:04:05")
	switch e.Phase {
	case monitor.NewHighDetected:
		return fmt.Sprintf("📈 <b>%s 尾盘新高</b> | %s\n\n价格: %.2f (日内高点 %.2f)", e.Symbol, at, e.Price, e.DayHigh)
	case monitor.PullbackStarted:
		return fmt.Sprintf("📉 <b>%s 回调开始</b> | %s\n\n价格: %.2f | 回撤 %.2f%%", e.Symbol, at, e.Price, e.PullbackPct())
	case monitor.PullbackConfirmed:
		return fmt.Sprintf("🎯 <b>%s 回调企稳</b> | %s\n\n价格: %.2f | MA: %.2f | 回撤 %.2f%%\n价格回到均线上方", e.Symbol, at, e.Price, e.MA, e.PullbackPct())
	default:
		return fmt.Sprintf("%s %s | %s", e.Symbol, e.Phase, at)
	}
}

// FormatStatus formats the latest stored run and the monitor state.
func FormatStatus(run *recorder.RunSummary, monitorRunning bool, st monitor.PullbackState, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📦 <b>运行状态</b> | %s\n\n", now.In(model.CST).Format("2006-01-02 15:04")))
	if run == nil {
		b.WriteString("暂无选股记录\n")
	} else {
		b.WriteString(fmt.Sprintf("最近选股: %s\n", run.AnalyzedAt.In(model.CST).Format("2006-01-02 15:04")))
		b.WriteString(fmt.Sprintf("初筛 %d | 分析 %d | 通过 %d\n", run.Shortlisted, run.Analyzed, run.Passed))
		if len(run.Codes) > 0 {
			b.WriteString(fmt.Sprintf("通过标的: %s\n", strings.Join(run.Codes, ", ")))
		}
	}
	if monitorRunning {
		b.WriteString(fmt.Sprintf("\n实时监控: 运行中 (%s)\n", st.Phase))
	} else {
		b.WriteString("\n实时监控: 未运行\n")
	}
	return b.String()
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

var tagPattern = regexp.MustCompile(`</?[a-z]+>`)

// PlainText strips the HTML tags used in messages for console output.
func PlainText(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}
