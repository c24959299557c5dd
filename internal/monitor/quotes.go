package monitor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"StockSentinel/internal/cache"
	"StockSentinel/internal/model"
)

const tickTimeLayout = "2006-01-02 15:04:05"

var quoteSchema = cache.Schema{
	{Field: "code", Aliases: []string{"TS_CODE", "code"}},
	{Field: "name", Aliases: []string{"NAME", "name"}},
	{Field: "open", Aliases: []string{"OPEN", "open"}},
	{Field: "prev_close", Aliases: []string{"PRE_CLOSE", "prev_close"}},
	{Field: "price", Aliases: []string{"PRICE", "price"}},
	{Field: "high", Aliases: []string{"HIGH", "high"}},
	{Field: "low", Aliases: []string{"LOW", "low"}},
	{Field: "volume", Aliases: []string{"VOLUME", "volume"}},
	{Field: "amount", Aliases: []string{"AMOUNT", "amount"}},
	{Field: "quote_time", Aliases: []string{"QUOTE_TIME", "quote_time"}},
	{Field: "fetch_time", Aliases: []string{"fetch_time"}},
}

// QuoteLog appends one symbol's ticks to a per-day CSV, {code with '.' as '_'}_{YYYYMMDD}.csv.
type QuoteLog struct {
	Dir    string
	Symbol string
}

// Path returns the file for the day containing t.
func (l *QuoteLog) Path(t time.Time) string {
	name := fmt.Sprintf("%s_%s.csv", strings.ReplaceAll(l.Symbol, ".", "_"), model.FormatDate(t))
	return filepath.Join(l.Dir, name)
}

// Load returns the ticks recorded for the day containing t. A missing file yields none.
func (l *QuoteLog) Load(t time.Time) ([]model.Quote, error) {
	f, err := os.Open(l.Path(t))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := quoteSchema.Resolve(header)
	if !cols.Has("price", "fetch_time") {
		return nil, fmt.Errorf("quote log %s: missing price or fetch_time column", l.Path(t))
	}

	var out []model.Quote
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if q, ok := parseTick(cols, rec); ok {
			out = append(out, q)
		}
	}
	return out, nil
}

// Append writes q to its day's file, creating the file with a header if needed.
func (l *QuoteLog) Append(q model.Quote) error {
	path := l.Path(q.FetchTime)
	if err := os.MkdirAll(l.Dir, 0755); err != nil {
		return fmt.Errorf("create quote dir: %w", err)
	}
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open quote log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if fresh {
		cw.Write(quoteSchema.Header())
	}
	var quoteTime string
	if !q.QuoteTime.IsZero() {
		quoteTime = q.QuoteTime.In(model.CST).Format(tickTimeLayout)
	}
	cw.Write([]string{
		q.Code,
		q.Name,
		num(q.Open),
		num(q.PrevClose),
		num(q.Price),
		num(q.High),
		num(q.Low),
		num(q.Volume),
		num(q.Amount),
		quoteTime,
		q.FetchTime.In(model.CST).Format(tickTimeLayout),
	})
	cw.Flush()
	return cw.Error()
}

func parseTick(cols cache.Columns, rec []string) (model.Quote, bool) {
	fetched, err := time.ParseInLocation(tickTimeLayout, cols.Get(rec, "fetch_time"), model.CST)
	if err != nil {
		return model.Quote{}, false
	}
	price, err := strconv.ParseFloat(cols.Get(rec, "price"), 64)
	if err != nil {
		return model.Quote{}, false
	}
	q := model.Quote{
		Code:      cols.Get(rec, "code"),
		Name:      cols.Get(rec, "name"),
		Price:     price,
		FetchTime: fetched,
	}
	q.Open, _ = strconv.ParseFloat(cols.Get(rec, "open"), 64)
	q.PrevClose, _ = strconv.ParseFloat(cols.Get(rec, "prev_close"), 64)
	q.High, _ = strconv.ParseFloat(cols.Get(rec, "high"), 64)
	q.Low, _ = strconv.ParseFloat(cols.Get(rec, "low"), 64)
	q.Volume, _ = strconv.ParseFloat(cols.Get(rec, "volume"), 64)
	q.Amount, _ = strconv.ParseFloat(cols.Get(rec, "amount"), 64)
	if t, err := time.ParseInLocation(tickTimeLayout, cols.Get(rec, "quote_time"), model.CST); err == nil {
		q.QuoteTime = t
	}
	return q, true
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
