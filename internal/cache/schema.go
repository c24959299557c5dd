package cache

import "strings"

// Column names one logical field and the header spellings that map to it.
// The first alias is the canonical header used when writing.
type Column struct {
	Field   string
	Aliases []string
}

// Schema is an ordered list of columns for one CSV layout.
type Schema []Column

// Columns maps a logical field to its index in a parsed header.
type Columns map[string]int

// BarSchema is the layout of per-symbol daily bar files.
var BarSchema = Schema{
	{"date", []string{"日期", "date", "Date", "trade_date"}},
	{"code", []string{"股票代码", "代码", "code", "symbol"}},
	{"open", []string{"开盘", "open", "Open"}},
	{"close", []string{"收盘", "close", "Close"}},
	{"high", []string{"最高", "high", "High"}},
	{"low", []string{"最低", "low", "Low"}},
	{"volume", []string{"成交量", "volume", "Volume", "成交量(手)"}},
	{"amount", []string{"成交额", "amount", "Amount"}},
	{"amplitude", []string{"振幅", "amplitude"}},
	{"pct_change", []string{"涨跌幅", "pct_change"}},
	{"change", []string{"涨跌额", "change"}},
	{"turnover", []string{"换手率", "turnover"}},
}

// PoolSchema is the layout of market snapshot files.
var PoolSchema = Schema{
	{"code", []string{"代码", "code", "symbol"}},
	{"name", []string{"名称", "name"}},
	{"price", []string{"最新价", "price"}},
	{"prev_close", []string{"昨收", "prev_close"}},
	{"pct_change", []string{"涨跌幅", "pct_change"}},
	{"turnover", []string{"换手率", "turnover"}},
	{"volume_ratio", []string{"量比", "volume_ratio"}},
	{"total_cap", []string{"总市值", "total_market_cap"}},
	{"circ_cap", []string{"流通市值", "circulating_market_cap"}},
}

// Header returns the canonical header row.
func (s Schema) Header() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Aliases[0]
	}
	return out
}

// Resolve maps each recognized header cell to its field. Unknown headers are ignored;
// the first matching column wins when aliases repeat.
func (s Schema) Resolve(header []string) Columns {
	lookup := make(map[string]string)
	for _, c := range s {
		for _, a := range c.Aliases {
			lookup[strings.ToLower(a)] = c.Field
		}
	}
	cols := make(Columns)
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, bom))
		field, ok := lookup[strings.ToLower(h)]
		if !ok {
			continue
		}
		if _, seen := cols[field]; !seen {
			cols[field] = i
		}
	}
	return cols
}

// Has reports whether every named field was resolved.
func (c Columns) Has(fields ...string) bool {
	for _, f := range fields {
		if _, ok := c[f]; !ok {
			return false
		}
	}
	return true
}

// Get returns the trimmed cell for field, or "" when absent.
func (c Columns) Get(record []string, field string) string {
	i, ok := c[field]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
