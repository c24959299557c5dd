package monitor

import (
	"time"

	"StockSentinel/internal/calculator"
	"StockSentinel/internal/model"
)

// Phase is the intraday pullback strategy's position.
type Phase int

const (
	Idle Phase = iota
	NewHighDetected
	PullbackStarted
	PullbackConfirmed
)

func (p Phase) String() string {
	switch p {
	case NewHighDetected:
		return "NEW_HIGH"
	case PullbackStarted:
		return "PULLBACK"
	case PullbackConfirmed:
		return "CONFIRMED"
	default:
		return "IDLE"
	}
}

// PullbackState is the strategy state for one trading day. It is a value:
// Advance returns the next state instead of mutating its input.
type PullbackState struct {
	Day             string   `json:"day"` // YYYYMMDD
	Phase           Phase    `json:"phase"`
	HighAtTimePoint *float64 `json:"high_at_time_point,omitempty"`
	PullbackPrice   *float64 `json:"pullback_price,omitempty"`
}

// NewState returns an idle state for the day containing t.
func NewState(t time.Time) PullbackState {
	return PullbackState{Day: model.FormatDate(t)}
}

// Event is emitted on every phase transition.
type Event struct {
	Symbol  string
	Phase   Phase
	Price   float64
	DayHigh float64
	MA      float64 // zero unless the MA was available
	At      time.Time
}

// PullbackPct is how far Price sits below DayHigh, in percent.
func (e Event) PullbackPct() float64 {
	if e.DayHigh == 0 {
		return 0
	}
	return (e.DayHigh - e.Price) / e.DayHigh * 100
}

// Strategy watches for a new intraday high near TimePoint, a pullback of at
// least PullbackDrop from that high, and then a price holding at or above the
// tick moving average.
type Strategy struct {
	TimePoint     time.Duration // offset from midnight, 14:30 by default
	Window        time.Duration // ticks within ±Window of TimePoint count as "at" it
	MAPeriods     int
	HighTolerance float64 // time-point high must be >= day high × this
	PullbackDrop  float64 // pullback starts below time-point high × this
}

// DefaultStrategy: 14:30 ±2m, MA20 over ticks, 0.5% high tolerance, 1% pullback.
func DefaultStrategy() Strategy {
	return Strategy{
		TimePoint:     14*time.Hour + 30*time.Minute,
		Window:        2 * time.Minute,
		MAPeriods:     20,
		HighTolerance: 0.995,
		PullbackDrop:  0.99,
	}
}

// Advance evaluates today's ticks (ascending by fetch time) and returns the
// next state plus any transitions it made. A state from another day is reset first.
func (s Strategy) Advance(st PullbackState, ticks []model.Quote, now time.Time) (PullbackState, []Event) {
	if st.Day != model.FormatDate(now) {
		st = NewState(now)
	}
	if len(ticks) < s.MAPeriods+5 {
		return st, nil
	}

	var prices []float64
	var times []time.Time
	for _, q := range ticks {
		if model.SameDay(q.FetchTime.In(model.CST), now.In(model.CST)) {
			prices = append(prices, q.Price)
			times = append(times, q.FetchTime)
		}
	}
	if len(prices) == 0 {
		return st, nil
	}

	dayHigh, _ := calculator.WindowMax(prices, len(prices))
	latest := prices[len(prices)-1]
	ma := calculator.LatestSMA(prices, s.MAPeriods)
	point := model.DateOnly(now).Add(s.TimePoint)
	symbol := ticks[len(ticks)-1].Code

	event := func(p Phase) Event {
		e := Event{Symbol: symbol, Phase: p, Price: latest, DayHigh: dayHigh, At: now}
		if ma != nil {
			e.MA = *ma
		}
		return e
	}
	var events []Event

	if st.HighAtTimePoint == nil {
		var near []float64
		for i, t := range times {
			if !t.Before(point.Add(-s.Window)) && !t.After(point.Add(s.Window)) {
				near = append(near, prices[i])
			}
		}
		if len(near) > 0 {
			h, _ := calculator.WindowMax(near, len(near))
			st.HighAtTimePoint = &h
			if h >= dayHigh*s.HighTolerance {
				st.Phase = NewHighDetected
				e := event(NewHighDetected)
				e.Price = h
				events = append(events, e)
			}
		}
	}

	if st.Phase == NewHighDetected && times[len(times)-1].After(point) && latest < *st.HighAtTimePoint*s.PullbackDrop {
		st.Phase = PullbackStarted
		events = append(events, event(PullbackStarted))
	}

	if st.Phase == PullbackStarted && ma != nil && latest >= *ma && st.PullbackPrice == nil {
		p := latest
		st.PullbackPrice = &p
		st.Phase = PullbackConfirmed
		events = append(events, event(PullbackConfirmed))
	}

	return st, events
}
