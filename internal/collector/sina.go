package collector

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"

	"StockSentinel/internal/model"
)

// SinaQuoteFetcher implements QuoteSource using the Sina hq endpoint.
type SinaQuoteFetcher struct {
	BaseURL string
	http    *guardedClient
}

// NewSinaQuoteFetcher creates a quote fetcher with optional proxy support.
func NewSinaQuoteFetcher(baseURL, proxyURL string, timeout time.Duration) *SinaQuoteFetcher {
	return &SinaQuoteFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		http:    newGuardedClient("sina", proxyURL, timeout, 0, 1),
	}
}

func (f *SinaQuoteFetcher) Name() string { return "sina" }

// FetchQuote returns the latest quote for a symbol such as "600900.SH".
func (f *SinaQuoteFetcher) FetchQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	code, market := SplitSymbol(symbol)
	header := http.Header{}
	header.Set("Referer", "https://finance.sina.com.cn")

	body, err := f.http.get(ctx, fmt.Sprintf("%s/list=%s%s", f.BaseURL, market, code), header)
	if err != nil {
		return nil, fmt.Errorf("fetch quote %s: %w", symbol, err)
	}
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode quote %s: %w", symbol, err)
	}
	q, err := parseSinaQuote(string(decoded))
	if err != nil {
		return nil, fmt.Errorf("parse quote %s: %w", symbol, err)
	}
	q.Code = symbol
	q.FetchTime = time.Now()
	return q, nil
}

// parseSinaQuote parses `var hq_str_sh600900="name,open,preclose,price,high,low,...,date,time,...";`.
func parseSinaQuote(payload string) (*model.Quote, error) {
	start := strings.IndexByte(payload, '"')
	end := strings.LastIndexByte(payload, '"')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("unexpected payload %q", payload)
	}
	fields := strings.Split(payload[start+1:end], ",")
	if len(fields) < 32 {
		return nil, fmt.Errorf("%w: quote has %d fields", model.ErrDataUnavailable, len(fields))
	}

	nums := make([]float64, 10)
	for i := 1; i < 10; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		nums[i] = v
	}
	q := &model.Quote{
		Name:      fields[0],
		Open:      nums[1],
		PrevClose: nums[2],
		Price:     nums[3],
		High:      nums[4],
		Low:       nums[5],
		Volume:    nums[8],
		Amount:    nums[9],
	}
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05", fields[30]+" "+fields[31], model.CST); err == nil {
		q.QuoteTime = ts
	}
	return q, nil
}
