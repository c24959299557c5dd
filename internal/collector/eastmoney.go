package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"StockSentinel/internal/model"
)

const (
	snapshotPageSize = 100
	snapshotFields   = "f2,f3,f8,f10,f12,f14,f18,f20,f21"
	// Shanghai + Shenzhen A shares, ChiNext and STAR boards.
	snapshotMarkets = "m:0 t:6,m:0 t:80,m:1 t:2,m:1 t:23,m:0 t:81 s:2048"
	klineFields1    = "f1,f2,f3,f4,f5,f6"
	klineFields2    = "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61"
	klineUT         = "7eea3edcaed734bea9cbfc24409ed989"
	calendarSecID   = "1.000001" // Shanghai Composite; every bar date is a session
)

// EastMoneyFetcher implements SnapshotSource, BarSource and calendar.Source using the Eastmoney quote APIs.
type EastMoneyFetcher struct {
	SnapshotURL string
	HistoryURL  string
	http        *guardedClient
}

// NewEastMoneyFetcher creates a fetcher with optional proxy support and request pacing.
func NewEastMoneyFetcher(snapshotURL, historyURL, proxyURL string, timeout time.Duration, rps float64, burst int) *EastMoneyFetcher {
	return &EastMoneyFetcher{
		SnapshotURL: strings.TrimRight(snapshotURL, "/"),
		HistoryURL:  strings.TrimRight(historyURL, "/"),
		http:        newGuardedClient("eastmoney", proxyURL, timeout, rps, burst),
	}
}

func (f *EastMoneyFetcher) Name() string { return "eastmoney" }

type clistResponse struct {
	Data *struct {
		Total int              `json:"total"`
		Diff  []map[string]any `json:"diff"`
	} `json:"data"`
}

// FetchSnapshot pages through the A-share list. Rows with any missing field are dropped
// and market caps are normalized to 亿.
func (f *EastMoneyFetcher) FetchSnapshot(ctx context.Context) (*model.MarketSnapshot, error) {
	snap := &model.MarketSnapshot{FetchedAt: time.Now()}
	dropped := 0

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("pn", strconv.Itoa(page))
		q.Set("pz", strconv.Itoa(snapshotPageSize))
		q.Set("po", "1")
		q.Set("np", "1")
		q.Set("fltt", "2")
		q.Set("invt", "2")
		q.Set("fid", "f3")
		q.Set("fs", snapshotMarkets)
		q.Set("fields", snapshotFields)

		body, err := f.http.get(ctx, f.SnapshotURL+"/api/qt/clist/get?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("fetch snapshot page %d: %w", page, err)
		}
		var resp clistResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		if resp.Data == nil || len(resp.Data.Diff) == 0 {
			break
		}
		for _, raw := range resp.Data.Diff {
			row, ok := parseSnapshotRow(raw)
			if !ok {
				dropped++
				continue
			}
			snap.Rows = append(snap.Rows, row)
		}
		if page*snapshotPageSize >= resp.Data.Total {
			break
		}
	}

	if len(snap.Rows) == 0 {
		return nil, fmt.Errorf("snapshot: %w", model.ErrDataUnavailable)
	}
	NormalizeMarketCaps(snap.Rows)
	log.Debug().Int("rows", len(snap.Rows)).Int("dropped", dropped).Msg("snapshot fetched")
	return snap, nil
}

func parseSnapshotRow(raw map[string]any) (model.SnapshotRow, bool) {
	var row model.SnapshotRow
	code, ok := raw["f12"].(string)
	if !ok || code == "" {
		return row, false
	}
	row.Code = code
	row.Name, _ = raw["f14"].(string)

	fields := []struct {
		key string
		dst *float64
	}{
		{"f2", &row.Price},
		{"f18", &row.PrevClose},
		{"f3", &row.PctChange},
		{"f8", &row.TurnoverRate},
		{"f10", &row.VolumeRatio},
		{"f20", &row.TotalMarketCap},
		{"f21", &row.CirculatingCap},
	}
	for _, fd := range fields {
		v, ok := toFloat(raw[fd.key])
		if !ok {
			return row, false
		}
		*fd.dst = v
	}
	return row, true
}

// toFloat converts a JSON value; Eastmoney sends "-" for missing numbers.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// NormalizeMarketCaps converts market caps from CNY to 亿, rounded to 2 places.
func NormalizeMarketCaps(rows []model.SnapshotRow) {
	for i := range rows {
		rows[i].TotalMarketCap = round2(rows[i].TotalMarketCap / 1e8)
		rows[i].CirculatingCap = round2(rows[i].CirculatingCap / 1e8)
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

type klineResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// FetchDailyBars fetches daily klines. An unknown symbol yields an empty series, not an error.
func (f *EastMoneyFetcher) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time, adjust string) (*model.BarSeries, error) {
	return f.fetchKlines(ctx, symbol, SecID(symbol), model.FormatDate(start), model.FormatDate(end), adjustCode(adjust))
}

// TradeDates returns every session date, taken from the Shanghai Composite's daily bars.
func (f *EastMoneyFetcher) TradeDates(ctx context.Context) ([]time.Time, error) {
	series, err := f.fetchKlines(ctx, "000001", calendarSecID, "19900101", "20500101", "0")
	if err != nil {
		return nil, err
	}
	if series.Empty() {
		return nil, fmt.Errorf("trade dates: %w", model.ErrCalendarUnavailable)
	}
	dates := make([]time.Time, series.Len())
	for i, b := range series.Bars {
		dates[i] = b.Time
	}
	return dates, nil
}

func (f *EastMoneyFetcher) fetchKlines(ctx context.Context, symbol, secID, beg, end, fqt string) (*model.BarSeries, error) {
	q := url.Values{}
	q.Set("fields1", klineFields1)
	q.Set("fields2", klineFields2)
	q.Set("ut", klineUT)
	q.Set("klt", "101")
	q.Set("fqt", fqt)
	q.Set("secid", secID)
	q.Set("beg", beg)
	q.Set("end", end)

	body, err := f.http.get(ctx, f.HistoryURL+"/api/qt/stock/kline/get?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s: %w", symbol, err)
	}
	var resp klineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode klines %s: %w", symbol, err)
	}

	series := &model.BarSeries{Symbol: symbol}
	if resp.Data == nil {
		return series, nil
	}
	for _, line := range resp.Data.Klines {
		bar, err := parseKline(line)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Str("line", line).Msg("skip malformed kline")
			continue
		}
		series.Bars = append(series.Bars, bar)
	}
	series.Normalize()
	return series, nil
}

// parseKline parses "date,open,close,high,low,volume,amount,...".
func parseKline(line string) (model.OHLCV, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 7 {
		return model.OHLCV{}, fmt.Errorf("expected at least 7 fields, got %d", len(parts))
	}
	t, err := time.ParseInLocation("2006-01-02", parts[0], model.CST)
	if err != nil {
		return model.OHLCV{}, fmt.Errorf("parse date: %w", err)
	}
	nums := make([]float64, 6)
	for i := range nums {
		nums[i], err = strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			return model.OHLCV{}, fmt.Errorf("parse field %d: %w", i+1, err)
		}
	}
	return model.OHLCV{
		Time:   t,
		Open:   nums[0],
		Close:  nums[1],
		High:   nums[2],
		Low:    nums[3],
		Volume: nums[4],
		Amount: nums[5],
	}, nil
}

// SecID maps a bare or suffixed A-share code to Eastmoney's "market.code" id.
func SecID(symbol string) string {
	code, market := SplitSymbol(symbol)
	if market == "sh" {
		return "1." + code
	}
	return "0." + code
}

// SplitSymbol returns the 6-digit code and its lowercase exchange prefix (sh, sz or bj).
func SplitSymbol(symbol string) (code, market string) {
	symbol = strings.TrimSpace(symbol)
	if i := strings.IndexByte(symbol, '.'); i >= 0 {
		return symbol[:i], strings.ToLower(symbol[i+1:])
	}
	lower := strings.ToLower(symbol)
	for _, p := range []string{"sh", "sz", "bj"} {
		if strings.HasPrefix(lower, p) {
			return symbol[2:], p
		}
	}
	switch {
	case strings.HasPrefix(symbol, "6"), strings.HasPrefix(symbol, "9"), strings.HasPrefix(symbol, "5"):
		return symbol, "sh"
	case strings.HasPrefix(symbol, "4"), strings.HasPrefix(symbol, "8"):
		return symbol, "bj"
	default:
		return symbol, "sz"
	}
}

func adjustCode(adjust string) string {
	switch adjust {
	case "qfq":
		return "1"
	case "hfq":
		return "2"
	default:
		return "0"
	}
}
