package calendar

import (
	"time"

	"StockSentinel/internal/model"
)

// A-share continuous trading sessions, exchange local time.
var (
	morningOpen    = clock{9, 30}
	morningClose   = clock{11, 30}
	afternoonOpen  = clock{13, 0}
	afternoonClose = clock{15, 0}
)

type clock struct{ hour, minute int }

func (c clock) on(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, c.hour, c.minute, 0, 0, t.Location())
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsTradingTime reports whether t falls inside a weekday trading session.
func IsTradingTime(t time.Time) bool {
	t = t.In(model.CST)
	if !isWeekday(t) {
		return false
	}
	inRange := func(from, to clock) bool {
		return !t.Before(from.on(t)) && !t.After(to.on(t))
	}
	return inRange(morningOpen, morningClose) || inRange(afternoonOpen, afternoonClose)
}

// UntilNextSession returns how long to wait from t until the next session opens.
func UntilNextSession(t time.Time) time.Duration {
	t = t.In(model.CST)
	if isWeekday(t) {
		if t.Before(morningOpen.on(t)) {
			return morningOpen.on(t).Sub(t)
		}
		if t.After(morningClose.on(t)) && t.Before(afternoonOpen.on(t)) {
			return afternoonOpen.on(t).Sub(t)
		}
	}
	for days := 1; ; days++ {
		next := t.AddDate(0, 0, days)
		if isWeekday(next) {
			return morningOpen.on(next).Sub(t)
		}
	}
}
