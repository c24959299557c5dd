package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"StockSentinel/internal/calendar"
	"StockSentinel/internal/collector"
	"StockSentinel/internal/metrics"
	"StockSentinel/internal/model"
	"StockSentinel/internal/retry"
)

// maxIdleWait caps a single off-hours sleep so the loop rechecks the clock at least hourly.
const maxIdleWait = time.Hour

// EventHandler receives strategy transitions.
type EventHandler func(ctx context.Context, evt Event)

// Monitor polls one symbol's real-time quote during trading hours, appends
// each tick to the day's quote log and advances the pullback strategy.
type Monitor struct {
	Symbol    string
	Source    collector.QuoteSource
	Log       *QuoteLog
	Strategy  Strategy
	StatePath string // empty disables state persistence
	Interval  time.Duration
	OnEvent   EventHandler
	Now       func() time.Time
	Sleep     retry.Sleeper

	running atomic.Bool
	mu      sync.Mutex // guards state writes and State
	state   PullbackState
	ticks   []model.Quote
	day     string
}

// New creates a Monitor with the default strategy.
func New(symbol string, src collector.QuoteSource, dataDir string, interval time.Duration) *Monitor {
	return &Monitor{
		Symbol:   symbol,
		Source:   src,
		Log:      &QuoteLog{Dir: dataDir, Symbol: symbol},
		Strategy: DefaultStrategy(),
		Interval: interval,
		Now:      time.Now,
		Sleep:    retry.Sleep,
	}
}

// Running reports whether Run is active.
func (m *Monitor) Running() bool { return m.running.Load() }

// Stop asks Run to return at the top of its next iteration. An in-flight fetch is not interrupted.
func (m *Monitor) Stop() { m.running.Store(false) }

// State returns the current strategy state.
func (m *Monitor) State() PullbackState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) setState(st PullbackState) {
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
}

// Run polls until Stop is called or ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.running.Store(true)
	defer m.running.Store(false)

	if err := m.restore(m.Now()); err != nil {
		return err
	}
	log.Info().Str("symbol", m.Symbol).Dur("interval", m.Interval).Msg("monitor started")

	for m.running.Load() {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := m.Now()

		if !calendar.IsTradingTime(now) {
			if now.In(model.CST).Hour() < 9 && m.state.Phase != Idle {
				m.setState(NewState(now))
				m.persist()
				log.Info().Msg("new trading day, strategy state reset")
			}
			wait := calendar.UntilNextSession(now)
			if wait > maxIdleWait {
				wait = maxIdleWait
			}
			log.Info().Time("next_session", now.Add(calendar.UntilNextSession(now))).Dur("sleep", wait).Msg("outside trading hours")
			if err := m.Sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		m.Poll(ctx, now)

		elapsed := m.Now().Sub(now)
		wait := m.Interval - elapsed
		if wait < time.Second {
			wait = time.Second
		}
		if err := m.Sleep(ctx, wait); err != nil {
			return err
		}
	}
	log.Info().Str("symbol", m.Symbol).Int("ticks", len(m.ticks)).Msg("monitor stopped")
	return nil
}

// Poll fetches one quote, records it and advances the strategy. Fetch and
// write failures are logged and leave the state unchanged.
func (m *Monitor) Poll(ctx context.Context, now time.Time) {
	if m.day != model.FormatDate(now) {
		if err := m.restore(now); err != nil {
			log.Error().Err(err).Msg("reload quote log")
		}
	}

	q, err := m.Source.FetchQuote(ctx, m.Symbol)
	if err != nil {
		metrics.QuotePolls.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("symbol", m.Symbol).Msg("quote fetch failed")
		return
	}
	metrics.QuotePolls.WithLabelValues("ok").Inc()
	q.Code = m.Symbol
	if q.FetchTime.IsZero() {
		q.FetchTime = now
	}

	if err := m.Log.Append(*q); err != nil {
		log.Error().Err(err).Str("path", m.Log.Path(q.FetchTime)).Msg("quote log write failed")
	}
	m.ticks = append(m.ticks, *q)
	log.Debug().Str("symbol", m.Symbol).Float64("price", q.Price).Int("ticks", len(m.ticks)).Msg("quote recorded")

	next, events := m.Strategy.Advance(m.state, m.ticks, now)
	m.setState(next)
	if len(events) > 0 {
		m.persist()
	}
	for _, e := range events {
		log.Info().
			Str("symbol", e.Symbol).
			Str("phase", e.Phase.String()).
			Float64("price", e.Price).
			Float64("day_high", e.DayHigh).
			Float64("ma", e.MA).
			Msg("pullback strategy transition")
		if e.Phase == PullbackConfirmed {
			metrics.Signals.Inc()
		}
		if m.OnEvent != nil {
			m.OnEvent(ctx, e)
		}
	}
}

// restore loads the day's ticks and strategy state for the day containing now.
func (m *Monitor) restore(now time.Time) error {
	ticks, err := m.Log.Load(now)
	if err != nil {
		return err
	}
	m.ticks = ticks
	m.day = model.FormatDate(now)
	if len(ticks) > 0 {
		log.Info().Int("ticks", len(ticks)).Str("path", m.Log.Path(now)).Msg("loaded existing quotes")
	}

	state := NewState(now)
	if m.StatePath != "" {
		st, err := LoadState(m.StatePath, now)
		if err != nil {
			log.Warn().Err(err).Str("path", m.StatePath).Msg("unreadable monitor state, starting idle")
		} else if st.Day == m.day {
			state = st
		}
	}
	m.setState(state)
	return nil
}

func (m *Monitor) persist() {
	if m.StatePath == "" {
		return
	}
	if err := SaveState(m.StatePath, m.state); err != nil {
		log.Error().Err(err).Str("path", m.StatePath).Msg("save monitor state")
	}
}
