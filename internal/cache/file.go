package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"StockSentinel/internal/model"
)

// SymbolFileName is the cache file name for symbol on session.
func SymbolFileName(symbol string, session time.Time) string {
	return fmt.Sprintf("%s_%s.csv", symbol, model.FormatDate(session))
}

// PoolFileName is the snapshot file name for session.
func PoolFileName(session time.Time) string {
	return fmt.Sprintf("stock_data_pool%s.csv", model.FormatDate(session))
}

// ResolvePath returns the newest existing cache file for symbol in dir,
// or the file name for session when none exists.
func ResolvePath(dir, symbol string, session time.Time) string {
	ours := func(path string) bool { return SymbolFromFileName(path) == symbol }
	if path, _, ok := newestDated(filepath.Join(dir, "*"+symbol+"*.csv"), ours); ok {
		return path
	}
	return filepath.Join(dir, SymbolFileName(symbol, session))
}

// newestDated returns the glob match whose embedded date is latest.
func newestDated(pattern string, keep func(path string) bool) (string, time.Time, bool) {
	matches, _ := filepath.Glob(pattern)
	var best string
	var bestDate time.Time
	for _, m := range matches {
		if keep != nil && !keep(m) {
			continue
		}
		d, ok := model.ExtractDate(filepath.Base(m))
		if !ok {
			continue
		}
		if best == "" || d.After(bestDate) {
			best, bestDate = m, d
		}
	}
	return best, bestDate, best != ""
}

// SymbolFromFileName recovers the symbol from names like "600900_20251017.csv",
// "60090020251017.csv" or "ffdc600900.csv". A non-digit prefix is dropped.
func SymbolFromFileName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if i := strings.IndexFunc(base, unicode.IsDigit); i > 0 {
		base = base[i:]
	}
	if i := strings.IndexByte(base, '_'); i > 0 {
		return base[:i]
	}
	if len(base) > 8 {
		if _, err := model.ParseDate(base[len(base)-8:]); err == nil {
			return base[:len(base)-8]
		}
	}
	return base
}

// rewritePath returns path with its embedded date set to session, or a
// synthesized symbol file name in the same directory.
func rewritePath(path, dir, symbol string, session time.Time) string {
	if path == "" {
		return filepath.Join(dir, SymbolFileName(symbol, session))
	}
	if name, ok := model.ReplaceDate(filepath.Base(path), session); ok {
		return filepath.Join(filepath.Dir(path), name)
	}
	return filepath.Join(filepath.Dir(path), SymbolFileName(symbol, session))
}

// writeAtomic writes through a temp file in the target directory, then renames it into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if err := write(tmp); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		cleanup()
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadBarFile opens and parses one bar CSV.
func ReadBarFile(path, symbol string) (*model.BarSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBars(f, symbol)
}

// WriteBarFile persists series to path atomically.
func WriteBarFile(path string, series *model.BarSeries) error {
	return writeAtomic(path, func(w io.Writer) error { return WriteBars(w, series) })
}
