package cache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockSentinel/internal/calendar"
	"StockSentinel/internal/collector"
	"StockSentinel/internal/model"
)

func day(s string) time.Time {
	t, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func rising(i int) float64 { return 10 + float64(i)*0.1 }
func flatVol(int) float64 { return 1000 }
func closingTime() time.Time { return day("20251017").Add(15 * time.Hour) }

type sleepRecorder struct{ delays []time.Duration }

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newTestCache(t *testing.T, src collector.BarSource, sessions ...time.Time) (*SymbolCache, *sleepRecorder) {
	t.Helper()
	c := NewSymbolCache(calendar.New(calendar.StaticSource(sessions)), src, t.TempDir())
	rec := &sleepRecorder{}
	c.Sleep = rec.sleep
	c.Now = closingTime
	return c, rec
}

func request(symbol, path string) LoadRequest {
	end := closingTime()
	return LoadRequest{Symbol: symbol, Path: path, Start: end.AddDate(0, 0, -60), End: end, MaxRetries: 3}
}

func TestLoad_FreshCacheSkipsFetch(t *testing.T) {
	for _, date := range []string{"20251017", "20251016"} {
		t.Run(date, func(t *testing.T) {
			mock := &collector.MockFetcher{}
			c, _ := newTestCache(t, mock, day("20251015"), day("20251016"), day("20251017"))
			path := filepath.Join(c.Dir, "600900_"+date+".csv")
			require.NoError(t, WriteBarFile(path, collector.GenerateBars("600900", day(date), 25, rising, flatVol)))

			res, err := c.Load(context.Background(), request("600900", path))
			require.NoError(t, err)
			assert.True(t, res.FromCache)
			assert.Equal(t, path, res.Path)
			assert.Equal(t, 25, res.Series.Len())
			assert.Equal(t, 0, mock.BarCalls("600900"))
		})
	}
}

func TestLoad_StaleCacheRefetchesAndRenames(t *testing.T) {
	mock := &collector.MockFetcher{Bars: map[string]*model.BarSeries{
		"600900": collector.GenerateBars("600900", day("20251017"), 30, rising, flatVol),
	}}
	c, _ := newTestCache(t, mock, day("20251016"), day("20251017"))
	stale := filepath.Join(c.Dir, "600900_20251010.csv")
	require.NoError(t, WriteBarFile(stale, collector.GenerateBars("600900", day("20251010"), 25, rising, flatVol)))

	res, err := c.Load(context.Background(), request("600900", stale))
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, filepath.Join(c.Dir, "600900_20251017.csv"), res.Path)
	assert.Equal(t, 1, mock.BarCalls("600900"))

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))

	reread, err := ReadBarFile(res.Path, "600900")
	require.NoError(t, err)
	assert.Equal(t, res.Series.Len(), reread.Len())
	assert.Equal(t, res.Series.Last().Close, reread.Last().Close)

	// A second load now hits the freshly written file.
	res, err = c.Load(context.Background(), request("600900", res.Path))
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, 1, mock.BarCalls("600900"))
}

func TestLoad_SynthesizesPathWhenNoneGiven(t *testing.T) {
	mock := &collector.MockFetcher{Bars: map[string]*model.BarSeries{
		"000001": collector.GenerateBars("000001", day("20251017"), 10, rising, flatVol),
	}}
	c, _ := newTestCache(t, mock, day("20251016"), day("20251017"))

	res, err := c.Load(context.Background(), request("000001", ""))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.Dir, "000001_20251017.csv"), res.Path)
	assert.FileExists(t, res.Path)
}

func TestLoad_UndatedPathGetsSessionName(t *testing.T) {
	mock := &collector.MockFetcher{Bars: map[string]*model.BarSeries{
		"000001": collector.GenerateBars("000001", day("20251017"), 10, rising, flatVol),
	}}
	c, _ := newTestCache(t, mock, day("20251017"))

	res, err := c.Load(context.Background(), request("000001", filepath.Join(c.Dir, "latest.csv")))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.Dir, "000001_20251017.csv"), res.Path)
}

func TestLoad_TooFewBarsExhaustsRetries(t *testing.T) {
	mock := &collector.MockFetcher{Bars: map[string]*model.BarSeries{
		"600001": collector.GenerateBars("600001", day("20251017"), 5, rising, flatVol),
	}}
	c, rec := newTestCache(t, mock, day("20251017"))

	res, err := c.Load(context.Background(), request("600001", ""))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
	assert.Equal(t, 3, mock.BarCalls("600001"))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)

	entries, _ := os.ReadDir(c.Dir)
	assert.Empty(t, entries)
}

func TestLoad_CorruptFileRefetches(t *testing.T) {
	mock := &collector.MockFetcher{Bars: map[string]*model.BarSeries{
		"600900": collector.GenerateBars("600900", day("20251017"), 10, rising, flatVol),
	}}
	c, _ := newTestCache(t, mock, day("20251017"))
	path := filepath.Join(c.Dir, "600900_20251017.csv")
	require.NoError(t, os.WriteFile(path, []byte("foo,bar\n1,2\n"), 0644))

	res, err := c.Load(context.Background(), request("600900", path))
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 1, mock.BarCalls("600900"))
}

type downSource struct{}

func (downSource) TradeDates(context.Context) ([]time.Time, error) {
	return nil, model.ErrCalendarUnavailable
}

func TestLoad_CalendarDownTrustsTodayOnly(t *testing.T) {
	mock := &collector.MockFetcher{Bars: map[string]*model.BarSeries{
		"600900": collector.GenerateBars("600900", day("20251017"), 10, rising, flatVol),
	}}
	c := NewSymbolCache(calendar.New(downSource{}), mock, t.TempDir())
	c.Now = closingTime
	c.Sleep = (&sleepRecorder{}).sleep

	today := filepath.Join(c.Dir, "600900_20251017.csv")
	require.NoError(t, WriteBarFile(today, collector.GenerateBars("600900", day("20251017"), 10, rising, flatVol)))
	res, err := c.Load(context.Background(), request("600900", today))
	require.NoError(t, err)
	assert.True(t, res.FromCache)

	yesterday := filepath.Join(c.Dir, "600000_20251016.csv")
	require.NoError(t, WriteBarFile(yesterday, collector.GenerateBars("600000", day("20251016"), 10, rising, flatVol)))
	mock.Bars["600000"] = collector.GenerateBars("600000", day("20251017"), 10, rising, flatVol)
	res, err = c.Load(context.Background(), request("600000", yesterday))
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, filepath.Join(c.Dir, "600000_20251017.csv"), res.Path)
}

func TestReadBars_AliasedHeaderAndBOM(t *testing.T) {
	body := bom + "Date,Open,High,Low,Close,Volume\n" +
		"2025-10-16,10,10.5,9.8,10.2,1000\n" +
		"bad-date,1,1,1,1,1\n" +
		"20251015,9.9,10.1,9.7,10.0,900\n" +
		"2025-10-16,10,10.6,9.8,10.3,1100\n"

	series, err := ReadBars(strings.NewReader(body), "600900")
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())
	assert.Equal(t, "20251015", model.FormatDate(series.Bars[0].Time))
	assert.Equal(t, 10.3, series.Last().Close, "duplicate date keeps the later row")
	assert.Equal(t, 10.6, series.Last().High)
}

func TestReadBars_NoDateColumn(t *testing.T) {
	_, err := ReadBars(strings.NewReader("开盘,收盘\n1,2\n"), "x")
	assert.ErrorIs(t, err, ErrNoDateColumn)
}

func TestWriteBars_ChineseHeader(t *testing.T) {
	var buf bytes.Buffer
	series := &model.BarSeries{Symbol: "600900", Bars: []model.OHLCV{
		{Time: day("20251016"), Open: 10, High: 10.5, Low: 9.5, Close: 10, Volume: 100},
		{Time: day("20251017"), Open: 10, High: 11, Low: 10, Close: 10.5, Volume: 120},
	}}
	require.NoError(t, WriteBars(&buf, series))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, bom+"日期,股票代码,开盘,收盘,最高,最低,成交量,成交额,振幅,涨跌幅,涨跌额,换手率", lines[0])
	assert.Equal(t, "2025-10-17,600900,10,10.5,11,10,120,0,10,5,0.5,", lines[2])
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "600900_20251017.csv"), ResolvePath(dir, "600900", day("20251017")))

	for _, name := range []string{"600900_20251010.csv", "600900_20251015.csv", "600901_20251016.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	assert.Equal(t, filepath.Join(dir, "600900_20251015.csv"), ResolvePath(dir, "600900", day("20251017")))
}

func TestSymbolFromFileName(t *testing.T) {
	assert.Equal(t, "600900", SymbolFromFileName("/data/600900_20251017.csv"))
	assert.Equal(t, "600900", SymbolFromFileName("60090020251017.csv"))
	assert.Equal(t, "plain", SymbolFromFileName("plain.csv"))
	assert.Equal(t, "600900", SymbolFromFileName("ffdc600900.csv"))
	assert.Equal(t, "600900", SymbolFromFileName("ffdc60090020251017.csv"))
}

func TestResolvePath_UnseparatedNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"60090020251010.csv", "ffdc60090020251016.csv", "68800120251017.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	assert.Equal(t, filepath.Join(dir, "ffdc60090020251016.csv"), ResolvePath(dir, "600900", day("20251017")))
	assert.Equal(t, filepath.Join(dir, "68800120251017.csv"), ResolvePath(dir, "688001", day("20251017")))
}

func TestEmbeddedDate(t *testing.T) {
	cases := []struct {
		name string
		want string
		out  string
	}{
		{"600900_20251017.csv", "20251017", "600900_20251020.csv"},
		{"60090020251017.csv", "20251017", "60090020251020.csv"},
		{"68800120251017.csv", "20251017", "68800120251020.csv"},
		{"stock_data_pool20251017.csv", "20251017", "stock_data_pool20251020.csv"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, ok := model.ExtractDate(tc.name)
			require.True(t, ok)
			assert.Equal(t, tc.want, model.FormatDate(d))

			got := rewritePath(filepath.Join("/d", tc.name), "/d", SymbolFromFileName(tc.name), day("20251020"))
			assert.Equal(t, filepath.Join("/d", tc.out), got)
		})
	}
}

func TestPoolCache(t *testing.T) {
	snap := &model.MarketSnapshot{Rows: []model.SnapshotRow{
		{Code: "000001", Name: "平安银行", Price: 9.1, PrevClose: 8.8, PctChange: 3.5, TurnoverRate: 6, VolumeRatio: 2, TotalMarketCap: 80, CirculatingCap: 70},
	}}
	mock := &collector.MockFetcher{Snapshot: snap}
	cal := calendar.New(calendar.StaticSource{day("20251016"), day("20251017")})
	pc := NewPoolCache(cal, mock, t.TempDir(), 3)
	pc.Now = closingTime
	pc.Sleep = (&sleepRecorder{}).sleep

	got, fromCache, err := pc.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Len(t, got.Rows, 1)
	assert.FileExists(t, filepath.Join(pc.Dir, "stock_data_pool20251017.csv"))

	mock.Snapshot = nil
	got, fromCache, err = pc.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, fromCache)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, snap.Rows[0], got.Rows[0])
}

func TestPoolCache_SourceDown(t *testing.T) {
	pc := NewPoolCache(calendar.New(calendar.StaticSource{day("20251017")}), &collector.MockFetcher{}, t.TempDir(), 2)
	pc.Now = closingTime
	pc.Sleep = (&sleepRecorder{}).sleep

	_, _, err := pc.Load(context.Background())
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
}
