package collector

import (
	"context"
	"time"

	"StockSentinel/internal/model"
)

// SnapshotSource fetches the market-wide quote snapshot.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (*model.MarketSnapshot, error)
	Name() string
}

// BarSource fetches daily bars for one symbol over [start, end].
// adjust is an opaque price-adjustment mode such as "qfq".
type BarSource interface {
	FetchDailyBars(ctx context.Context, symbol string, start, end time.Time, adjust string) (*model.BarSeries, error)
	Name() string
}

// QuoteSource fetches one real-time quote.
type QuoteSource interface {
	FetchQuote(ctx context.Context, symbol string) (*model.Quote, error)
	Name() string
}
