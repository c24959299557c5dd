package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"StockSentinel/internal/model"
)

// SQLiteRecorder persists screening history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while a run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS screening_runs (
			run_id      TEXT PRIMARY KEY,
			timestamp   INTEGER NOT NULL,
			shortlisted INTEGER,
			analyzed    INTEGER,
			passed      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON screening_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS verdicts (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT NOT NULL,
			code            TEXT NOT NULL,
			valid_data      INTEGER,
			reason          TEXT,
			latest_price    REAL,
			latest_date     TEXT,
			downtrend       INTEGER,
			high_shadow     INTEGER,
			volume_ratio    REAL,
			moderate_volume INTEGER,
			volume_reason   TEXT,
			ma5             REAL,
			ma20            REAL,
			data_days       INTEGER,
			pass            INTEGER,
			from_cache      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_verdicts_run ON verdicts(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_verdicts_code ON verdicts(code)`,

		`CREATE TABLE IF NOT EXISTS trading_targets (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        TEXT NOT NULL,
			code          TEXT NOT NULL,
			current_price REAL,
			entry_price   REAL,
			stop_loss     REAL,
			take_profit   REAL,
			position_size INTEGER,
			priority      INTEGER,
			created_at    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_targets_run ON trading_targets(run_id)`,

		`CREATE TABLE IF NOT EXISTS monitor_signals (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			symbol       TEXT,
			phase        TEXT,
			price        REAL,
			day_high     REAL,
			pullback_pct REAL,
			ma           REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ts ON monitor_signals(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(res *model.ScreeningResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO screening_runs
		(run_id, timestamp, shortlisted, analyzed, passed)
		VALUES (?,?,?,?,?)`,
		res.RunID, res.AnalysisTime.Unix(), res.Shortlisted, len(res.AllResults), res.PassedCount,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO verdicts
		(run_id, code, valid_data, reason, latest_price, latest_date,
		 downtrend, high_shadow, volume_ratio, moderate_volume, volume_reason,
		 ma5, ma20, data_days, pass, from_cache)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, v := range res.AllResults {
		var date string
		if !v.LatestDate.IsZero() {
			date = model.FormatDate(v.LatestDate)
		}
		if _, err := stmt.Exec(
			res.RunID, v.Code, v.ValidData, v.Reason, v.LatestPrice, date,
			v.IsDowntrend, v.HasHighShadow, v.Volume.Ratio, v.Volume.IsModerate, v.Volume.Reason,
			v.MA5, v.MA20, v.DataDays, v.Pass, v.FromCache,
		); err != nil {
			return fmt.Errorf("insert verdict %s: %w", v.Code, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordTargets(runID string, targets []model.TradingTarget) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range targets {
		if _, err := tx.Exec(`INSERT INTO trading_targets
			(run_id, code, current_price, entry_price, stop_loss, take_profit, position_size, priority, created_at)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			runID, t.Code, t.CurrentPrice, t.EntryPrice, t.StopLoss, t.TakeProfit,
			t.PositionSize, int(t.Priority), t.CreatedAt.Unix(),
		); err != nil {
			return fmt.Errorf("insert target %s: %w", t.Code, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordSignal(evt *SignalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := evt.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO monitor_signals
		(timestamp, symbol, phase, price, day_high, pullback_pct, ma)
		VALUES (?,?,?,?,?,?,?)`,
		at.Unix(), evt.Symbol, evt.Phase, evt.Price, evt.DayHigh, evt.PullbackPct, evt.MA,
	)
	return err
}

// LatestRun returns the most recent run, or nil when none is stored.
func (r *SQLiteRecorder) LatestRun() (*RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s RunSummary
	var ts int64
	err := r.db.QueryRow(`SELECT run_id, timestamp, shortlisted, analyzed, passed
		FROM screening_runs ORDER BY timestamp DESC, rowid DESC LIMIT 1`).
		Scan(&s.RunID, &ts, &s.Shortlisted, &s.Analyzed, &s.Passed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	s.AnalyzedAt = time.Unix(ts, 0)

	rows, err := r.db.Query(`SELECT code FROM verdicts WHERE run_id = ? AND pass = 1 ORDER BY id`, s.RunID)
	if err != nil {
		return nil, fmt.Errorf("query passed codes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		s.Codes = append(s.Codes, code)
	}
	return &s, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
