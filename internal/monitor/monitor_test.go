package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockSentinel/internal/collector"
	"StockSentinel/internal/model"
)

// Friday 2025-10-17.
func at(hh, mm int) time.Time {
	return time.Date(2025, 10, 17, hh, mm, 0, 0, model.CST)
}

func tick(t time.Time, price float64) model.Quote {
	return model.Quote{Code: "600900.SH", Price: price, FetchTime: t}
}

// risingTicks returns one tick per minute from 14:00 to 14:29, 9.70 up to 9.99, then 10.00 at 14:30.
func risingTicks() []model.Quote {
	var ticks []model.Quote
	for i := 0; i < 30; i++ {
		ticks = append(ticks, tick(at(14, i), 9.70+0.01*float64(i)))
	}
	return append(ticks, tick(at(14, 30), 10.00))
}

func TestAdvance_NewHighPullbackConfirm(t *testing.T) {
	s := DefaultStrategy()
	ticks := risingTicks()

	st, events := s.Advance(NewState(at(14, 30)), ticks, at(14, 30))
	require.Len(t, events, 1)
	assert.Equal(t, NewHighDetected, st.Phase)
	assert.Equal(t, NewHighDetected, events[0].Phase)
	require.NotNil(t, st.HighAtTimePoint)
	assert.Equal(t, 10.00, *st.HighAtTimePoint)

	ticks = append(ticks, tick(at(14, 31), 9.85))
	prev := st
	st, events = s.Advance(st, ticks, at(14, 31))
	require.Len(t, events, 1)
	assert.Equal(t, PullbackStarted, st.Phase)
	assert.Equal(t, NewHighDetected, prev.Phase, "input state must not change")
	assert.Nil(t, st.PullbackPrice, "price still below MA")

	ticks = append(ticks, tick(at(14, 32), 9.95))
	st, events = s.Advance(st, ticks, at(14, 32))
	require.Len(t, events, 1)
	assert.Equal(t, PullbackConfirmed, st.Phase)
	require.NotNil(t, st.PullbackPrice)
	assert.Equal(t, 9.95, *st.PullbackPrice)
	assert.Greater(t, events[0].MA, 0.0)
	assert.InDelta(t, 0.5, events[0].PullbackPct(), 1e-9)

	ticks = append(ticks, tick(at(14, 33), 9.97))
	st, events = s.Advance(st, ticks, at(14, 33))
	assert.Empty(t, events)
	assert.Equal(t, 9.95, *st.PullbackPrice)
}

func TestAdvance_NoNewHighWhenMorningWasHigher(t *testing.T) {
	s := DefaultStrategy()
	ticks := append([]model.Quote{tick(at(10, 0), 10.50)}, risingTicks()...)

	st, events := s.Advance(NewState(at(14, 30)), ticks, at(14, 30))
	assert.Empty(t, events)
	assert.Equal(t, Idle, st.Phase)
	require.NotNil(t, st.HighAtTimePoint, "time-point high is evaluated once")

	ticks = append(ticks, tick(at(14, 31), 9.50))
	st, events = s.Advance(st, ticks, at(14, 31))
	assert.Empty(t, events)
	assert.Equal(t, Idle, st.Phase)
}

func TestAdvance_TooFewTicks(t *testing.T) {
	ticks := risingTicks()[:20]
	st, events := DefaultStrategy().Advance(NewState(at(14, 30)), ticks, at(14, 30))
	assert.Empty(t, events)
	assert.Nil(t, st.HighAtTimePoint)
}

func TestAdvance_ResetsStateFromAnotherDay(t *testing.T) {
	h := 12.0
	old := PullbackState{Day: "20251016", Phase: PullbackStarted, HighAtTimePoint: &h}
	st, _ := DefaultStrategy().Advance(old, nil, at(10, 0))
	assert.Equal(t, NewState(at(10, 0)), st)
}

func TestStateStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "monitor.json")
	st, err := LoadState(path, at(9, 0))
	require.NoError(t, err)
	assert.Equal(t, "20251017", st.Day)
	assert.Equal(t, Idle, st.Phase)

	h := 10.0
	st.Phase, st.HighAtTimePoint = NewHighDetected, &h
	require.NoError(t, SaveState(path, st))

	got, err := LoadState(path, at(9, 0))
	require.NoError(t, err)
	assert.Equal(t, st, got)
}

func TestQuoteLog_AppendAndLoad(t *testing.T) {
	ql := &QuoteLog{Dir: t.TempDir(), Symbol: "600900.SH"}
	assert.Equal(t, filepath.Join(ql.Dir, "600900_SH_20251017.csv"), ql.Path(at(10, 0)))

	ticks, err := ql.Load(at(10, 0))
	require.NoError(t, err)
	assert.Empty(t, ticks)

	q := model.Quote{Code: "600900.SH", Name: "长江电力", Open: 27.5, PrevClose: 27.48, Price: 27.6,
		High: 27.7, Low: 27.4, Volume: 1234, Amount: 5678, QuoteTime: at(10, 0), FetchTime: at(10, 0).Add(3 * time.Second)}
	require.NoError(t, ql.Append(q))
	q2 := q
	q2.Price, q2.FetchTime = 27.65, at(10, 1)
	require.NoError(t, ql.Append(q2))

	ticks, err = ql.Load(at(15, 0))
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, q.Name, ticks[0].Name)
	assert.Equal(t, 27.6, ticks[0].Price)
	assert.True(t, q.FetchTime.Equal(ticks[0].FetchTime))
	assert.True(t, q.QuoteTime.Equal(ticks[0].QuoteTime))
	assert.Equal(t, 27.65, ticks[1].Price)
}

type sleepStopper struct {
	m      *Monitor
	delays []time.Duration
}

func (s *sleepStopper) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	s.m.Stop()
	return nil
}

func newTestMonitor(t *testing.T, now time.Time, quotes ...model.Quote) (*Monitor, *sleepStopper) {
	t.Helper()
	m := New("600900.SH", &collector.MockFetcher{Quotes: quotes}, t.TempDir(), time.Minute)
	m.StatePath = filepath.Join(m.Log.Dir, "state.json")
	m.Now = func() time.Time { return now }
	ss := &sleepStopper{m: m}
	m.Sleep = ss.sleep
	return m, ss
}

func TestRun_TradingHoursPollsOnce(t *testing.T) {
	m, ss := newTestMonitor(t, at(10, 0), model.Quote{Name: "长江电力", Price: 27.6})

	require.NoError(t, m.Run(context.Background()))
	assert.False(t, m.Running())
	assert.Equal(t, []time.Duration{time.Minute}, ss.delays)

	ticks, err := m.Log.Load(at(10, 0))
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, "600900.SH", ticks[0].Code)
	assert.True(t, at(10, 0).Equal(ticks[0].FetchTime))
}

func TestRun_OffHoursSleepIsCapped(t *testing.T) {
	// Saturday noon: next session is Monday 09:30.
	m, ss := newTestMonitor(t, time.Date(2025, 10, 18, 12, 0, 0, 0, model.CST))
	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, []time.Duration{time.Hour}, ss.delays)

	// Lunch break: 12:00 waits until 13:00.
	m, ss = newTestMonitor(t, at(12, 0))
	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, []time.Duration{time.Hour}, ss.delays)

	// 12:30 waits 30 minutes.
	m, ss = newTestMonitor(t, at(12, 30))
	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, []time.Duration{30 * time.Minute}, ss.delays)
}

func TestRun_ResetsStateBeforeOpen(t *testing.T) {
	m, _ := newTestMonitor(t, at(8, 0))
	h := 10.0
	require.NoError(t, SaveState(m.StatePath, PullbackState{Day: "20251017", Phase: PullbackStarted, HighAtTimePoint: &h}))

	require.NoError(t, m.Run(context.Background()))
	st, err := LoadState(m.StatePath, at(8, 0))
	require.NoError(t, err)
	assert.Equal(t, Idle, st.Phase)
	assert.Nil(t, st.HighAtTimePoint)
}

func TestRun_CancelledContext(t *testing.T) {
	m, _ := newTestMonitor(t, at(10, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Run(ctx), context.Canceled)
}

func TestPoll_EmitsEvents(t *testing.T) {
	m, _ := newTestMonitor(t, at(14, 30))
	var seen []Phase
	m.OnEvent = func(_ context.Context, e Event) { seen = append(seen, e.Phase) }

	for _, q := range risingTicks()[:30] {
		require.NoError(t, m.Log.Append(q))
	}
	require.NoError(t, m.restore(at(14, 30)))

	m.Source = &collector.MockFetcher{Quotes: []model.Quote{{Price: 10.00, FetchTime: at(14, 30)}}}
	m.Poll(context.Background(), at(14, 30))
	assert.Equal(t, []Phase{NewHighDetected}, seen)

	st, err := LoadState(m.StatePath, at(14, 30))
	require.NoError(t, err)
	assert.Equal(t, NewHighDetected, st.Phase)

	_, err = os.Stat(m.Log.Path(at(14, 30)))
	assert.NoError(t, err)
}
