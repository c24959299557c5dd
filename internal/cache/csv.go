package cache

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"StockSentinel/internal/model"
)

const bom = "\ufeff"

// ErrNoDateColumn is returned for bar files without a recognizable date header.
var ErrNoDateColumn = errors.New("no date column")

var barDateLayouts = []string{"2006-01-02", "20060102", "2006/01/02", "2006-01-02 15:04:05"}

// ReadBars parses a bar CSV. Rows with an unparseable date or price are skipped.
func ReadBars(r io.Reader, symbol string) (*model.BarSeries, error) {
	cr, err := newReader(r)
	if err != nil {
		return nil, err
	}
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := BarSchema.Resolve(header)
	if !cols.Has("date") {
		return nil, ErrNoDateColumn
	}
	if !cols.Has("open", "close", "high", "low", "volume") {
		return nil, fmt.Errorf("missing price or volume columns in header %v", header)
	}

	series := &model.BarSeries{Symbol: symbol}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		bar, ok := parseBarRecord(cols, rec)
		if !ok {
			continue
		}
		series.Bars = append(series.Bars, bar)
	}
	series.Normalize()
	return series, nil
}

func parseBarRecord(cols Columns, rec []string) (model.OHLCV, bool) {
	t, ok := parseBarDate(cols.Get(rec, "date"))
	if !ok {
		return model.OHLCV{}, false
	}
	bar := model.OHLCV{Time: t}
	for _, f := range []struct {
		field string
		dst   *float64
	}{
		{"open", &bar.Open},
		{"close", &bar.Close},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"volume", &bar.Volume},
	} {
		v, err := strconv.ParseFloat(cols.Get(rec, f.field), 64)
		if err != nil {
			return model.OHLCV{}, false
		}
		*f.dst = v
	}
	if v, err := strconv.ParseFloat(cols.Get(rec, "amount"), 64); err == nil {
		bar.Amount = v
	}
	return bar, true
}

func parseBarDate(s string) (time.Time, bool) {
	for _, layout := range barDateLayouts {
		if t, err := time.ParseInLocation(layout, s, model.CST); err == nil {
			return model.DateOnly(t), true
		}
	}
	return time.Time{}, false
}

// WriteBars writes series as a BOM-prefixed CSV with Chinese headers.
// Amplitude and change columns are derived from the previous close; turnover is left blank.
func WriteBars(w io.Writer, series *model.BarSeries) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(bw)
	if err := cw.Write(BarSchema.Header()); err != nil {
		return err
	}
	for i, b := range series.Bars {
		var amplitude, pct, change string
		if i > 0 {
			if prev := series.Bars[i-1].Close; prev != 0 {
				amplitude = formatFloat(round2((b.High - b.Low) / prev * 100))
				pct = formatFloat(round2((b.Close - prev) / prev * 100))
				change = formatFloat(round2(b.Close - prev))
			}
		}
		rec := []string{
			b.Time.In(model.CST).Format("2006-01-02"),
			series.Symbol,
			formatFloat(b.Open),
			formatFloat(b.Close),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Volume),
			formatFloat(b.Amount),
			amplitude,
			pct,
			change,
			"",
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadSnapshot parses a pool CSV. Rows missing any numeric field are dropped.
func ReadSnapshot(r io.Reader) (*model.MarketSnapshot, error) {
	cr, err := newReader(r)
	if err != nil {
		return nil, err
	}
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := PoolSchema.Resolve(header)
	if !cols.Has("code", "pct_change", "turnover", "volume_ratio", "total_cap") {
		return nil, fmt.Errorf("missing pool columns in header %v", header)
	}

	snap := &model.MarketSnapshot{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row, ok := parsePoolRecord(cols, rec)
		if !ok {
			continue
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap, nil
}

func parsePoolRecord(cols Columns, rec []string) (model.SnapshotRow, bool) {
	row := model.SnapshotRow{
		Code: cols.Get(rec, "code"),
		Name: cols.Get(rec, "name"),
	}
	if row.Code == "" {
		return row, false
	}
	for _, f := range []struct {
		field    string
		dst      *float64
		required bool
	}{
		{"price", &row.Price, false},
		{"prev_close", &row.PrevClose, false},
		{"pct_change", &row.PctChange, true},
		{"turnover", &row.TurnoverRate, true},
		{"volume_ratio", &row.VolumeRatio, true},
		{"total_cap", &row.TotalMarketCap, true},
		{"circ_cap", &row.CirculatingCap, false},
	} {
		v, err := strconv.ParseFloat(cols.Get(rec, f.field), 64)
		if err != nil {
			if f.required {
				return row, false
			}
			continue
		}
		*f.dst = v
	}
	return row, true
}

// WriteSnapshot writes a pool CSV. Market caps are written as stored, in 亿.
func WriteSnapshot(w io.Writer, snap *model.MarketSnapshot) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(bw)
	if err := cw.Write(PoolSchema.Header()); err != nil {
		return err
	}
	for _, r := range snap.Rows {
		rec := []string{
			r.Code,
			r.Name,
			formatFloat(r.Price),
			formatFloat(r.PrevClose),
			formatFloat(r.PctChange),
			formatFloat(r.TurnoverRate),
			formatFloat(r.VolumeRatio),
			formatFloat(r.TotalMarketCap),
			formatFloat(r.CirculatingCap),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// newReader strips a leading UTF-8 BOM and returns a lenient CSV reader.
func newReader(r io.Reader) (*csv.Reader, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bom)); err == nil && string(head) == bom {
		if _, err := br.Discard(len(bom)); err != nil {
			return nil, err
		}
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr, nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
