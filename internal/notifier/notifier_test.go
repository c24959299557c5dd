package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockSentinel/internal/model"
	"StockSentinel/internal/monitor"
	"StockSentinel/internal/recorder"
)

func f(v float64) *float64 { return &v }

type fakeBot struct {
	mu       sync.Mutex
	sent     []map[string]string
	status   int
	updates  string
	pollHits int
}

func (b *fakeBot) handler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		b.sent = append(b.sent, payload)
		if b.status != 0 {
			w.WriteHeader(b.status)
			w.Write([]byte(`{"ok":false}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	case strings.HasSuffix(r.URL.Path, "/getUpdates"):
		b.pollHits++
		if b.pollHits == 1 {
			w.Write([]byte(b.updates))
			return
		}
		w.Write([]byte(`{"ok":true,"result":[]}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestNotifier(t *testing.T, bot *fakeBot) *TelegramNotifier {
	srv := httptest.NewServer(http.HandlerFunc(bot.handler))
	t.Cleanup(srv.Close)
	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIBase = srv.URL
	return tn
}

func TestSend(t *testing.T) {
	bot := &fakeBot{}
	tn := newTestNotifier(t, bot)

	require.NoError(t, tn.Send("<b>hi</b>"))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, "42", bot.sent[0]["chat_id"])
	assert.Equal(t, "HTML", bot.sent[0]["parse_mode"])
	assert.Equal(t, "<b>hi</b>", bot.sent[0]["text"])
}

func TestSendWithRetry_NoRetriesLeft(t *testing.T) {
	bot := &fakeBot{status: http.StatusBadRequest}
	tn := newTestNotifier(t, bot)

	err := tn.SendWithRetry(context.Background(), "x", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Len(t, bot.sent, 1)
}

func TestSendWithRetry_CancelledDuringBackoff(t *testing.T) {
	bot := &fakeBot{status: http.StatusInternalServerError}
	tn := newTestNotifier(t, bot)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, tn.SendWithRetry(ctx, "x", 3), context.DeadlineExceeded)
}

func TestStartPolling(t *testing.T) {
	bot := &fakeBot{updates: `{"ok":true,"result":[{"update_id":7,"message":{"text":" /status "}}]}`}
	tn := newTestNotifier(t, bot)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	done := make(chan struct{})
	go func() {
		tn.StartPolling(ctx, func(cmd string) string {
			got = append(got, cmd)
			cancel()
			return "ok"
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	assert.Equal(t, []string{"/status"}, got)
	bot.mu.Lock()
	defer bot.mu.Unlock()
	require.Len(t, bot.sent, 1)
	assert.Equal(t, "ok", bot.sent[0]["text"])
}

func TestFormatScreeningReport(t *testing.T) {
	res := &model.ScreeningResult{
		AnalysisTime: time.Date(2025, 10, 17, 14, 45, 0, 0, model.CST),
		Shortlisted:  4,
		AllResults: []model.TechnicalVerdict{
			{Code: "600900", Name: "长江电力", ValidData: true, Pass: true, TechnicalPass: true, LatestPrice: 27.6, MA5: f(27.1), MA20: f(26.5),
				Volume: model.VolumeVerdict{Ratio: f(1.5)}},
			{Code: "000001", Name: "平安银行", ValidData: true, IsDowntrend: true, HasHighShadow: true},
			{Code: "300750", Name: "宁德时代", ValidData: true, TechnicalPass: true},
			{Code: "688001", Name: "华兴源创", Reason: "数据不足，需要至少6天数据"},
		},
	}
	res.PassedStocks = res.AllResults[:1]
	res.PassedCount = 1

	msg := FormatScreeningReport(res)
	assert.Contains(t, msg, "2025-10-17 14:45")
	assert.Contains(t, msg, "初筛: 4 | 分析: 4 | 通过: 1")
	assert.Contains(t, msg, "600900 长江电力 27.60 | MA5 27.10 MA20 26.50 | 量比 1.50")
	assert.Contains(t, msg, "000001 平安银行: 下跌趋势、高位上影线")
	assert.Contains(t, msg, "300750 宁德时代: 非温和放量")
	assert.Contains(t, msg, "688001 华兴源创: 数据不足")
	assert.NotContains(t, PlainText(msg), "<b>")
}

func TestFormatTradingPlan(t *testing.T) {
	assert.Contains(t, FormatTradingPlan(nil), "今日无交易标的")

	msg := FormatTradingPlan([]model.TradingTarget{
		{Code: "600900", CurrentPrice: 10, EntryPrice: 10.2, StopLoss: 9.5, TakeProfit: 10.8, PositionSize: 1000, Priority: model.PriorityHigh},
	})
	assert.Contains(t, msg, "[P1] 600900 现价 10.00")
	assert.Contains(t, msg, "买入 10.20 | 止损 9.50 | 止盈 10.80 | 1000股")
}

func TestFormatSignal(t *testing.T) {
	e := monitor.Event{Symbol: "600900.SH", Phase: monitor.PullbackConfirmed, Price: 9.95, DayHigh: 10, MA: 9.91,
		At: time.Date(2025, 10, 17, 14, 32, 0, 0, model.CST)}
	msg := FormatSignal(e)
	assert.Contains(t, msg, "600900.SH 回调企稳")
	assert.Contains(t, msg, "14:32:00")
	assert.Contains(t, msg, "回撤 0.50%")
}

func TestFormatStatus(t *testing.T) {
	now := time.Date(2025, 10, 17, 15, 0, 0, 0, model.CST)
	assert.Contains(t, FormatStatus(nil, false, monitor.NewState(now), now), "暂无选股记录")

	run := &recorder.RunSummary{AnalyzedAt: now, Shortlisted: 5, Analyzed: 5, Passed: 2, Codes: []string{"600900", "000001"}}
	st := monitor.NewState(now)
	st.Phase = monitor.NewHighDetected
	msg := FormatStatus(run, true, st, now)
	assert.Contains(t, msg, "初筛 5 | 分析 5 | 通过 2")
	assert.Contains(t, msg, "600900, 000001")
	assert.Contains(t, msg, "运行中 (NEW_HIGH)")
}
