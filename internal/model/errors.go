package model

import "errors"

var (
	// ErrDataUnavailable means a source returned nothing usable after all retries.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrStaleCache means a cache file exists but is not for a recent session.
	ErrStaleCache = errors.New("stale cache")
	// ErrCalendarUnavailable means the trading calendar could not be resolved.
	ErrCalendarUnavailable = errors.New("trading calendar unavailable")
	// ErrInsufficientHistory means a series is shorter than an indicator window.
	ErrInsufficientHistory = errors.New("insufficient history")
)
