package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockSentinel/internal/model"
)

func ptr(v float64) *float64 { return &v }

func TestSQLiteRecorder_RunsAndTargets(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer r.Close()

	latest, err := r.LatestRun()
	require.NoError(t, err)
	assert.Nil(t, latest)

	at := time.Date(2025, 10, 17, 14, 45, 0, 0, model.CST)
	passed := model.TechnicalVerdict{Code: "600900", ValidData: true, LatestPrice: 10, LatestDate: at,
		MA5: ptr(10.1), MA20: ptr(9.9), Pass: true, Volume: model.VolumeVerdict{Ratio: ptr(1.5), IsModerate: true}}
	failed := model.TechnicalVerdict{Code: "000001", ValidData: true, IsDowntrend: true}
	invalid := model.TechnicalVerdict{Code: "300001", Reason: "data unavailable"}

	res := &model.ScreeningResult{
		RunID:        "run-1",
		AllResults:   []model.TechnicalVerdict{failed, passed, invalid},
		PassedStocks: []model.TechnicalVerdict{passed},
		PassedCount:  1,
		Shortlisted:  3,
		AnalysisTime: at,
	}
	require.NoError(t, r.RecordRun(res))
	require.NoError(t, r.RecordTargets("run-1", []model.TradingTarget{
		{Code: "600900", CurrentPrice: 10, EntryPrice: 10.2, StopLoss: 9.5, TakeProfit: 10.8, PositionSize: 1000, Priority: model.PriorityHigh, CreatedAt: at},
	}))

	latest, err = r.LatestRun()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "run-1", latest.RunID)
	assert.Equal(t, 3, latest.Analyzed)
	assert.Equal(t, 1, latest.Passed)
	assert.Equal(t, []string{"600900"}, latest.Codes)
	assert.Equal(t, at.Unix(), latest.AnalyzedAt.Unix())

	var n int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM trading_targets WHERE run_id = ?`, "run-1").Scan(&n))
	assert.Equal(t, 1, n)

	var nullMA int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM verdicts WHERE ma5 IS NULL`).Scan(&nullMA))
	assert.Equal(t, 2, nullMA)
}

func TestSQLiteRecorder_DuplicateRunRollsBack(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer r.Close()

	res := &model.ScreeningResult{RunID: "dup", AllResults: []model.TechnicalVerdict{{Code: "A"}}, AnalysisTime: time.Now()}
	require.NoError(t, r.RecordRun(res))
	assert.Error(t, r.RecordRun(res))

	var n int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM verdicts`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLiteRecorder_Signal(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.RecordSignal(&SignalEvent{Symbol: "600900.SH", Phase: "CONFIRMED", Price: 27.5, DayHigh: 28, PullbackPct: 1.8, MA: 27.2}))
	var phase string
	require.NoError(t, r.db.QueryRow(`SELECT phase FROM monitor_signals`).Scan(&phase))
	assert.Equal(t, "CONFIRMED", phase)
}

func TestNoopRecorder(t *testing.T) {
	var rec Recorder = NewNoopRecorder()
	assert.NoError(t, rec.RecordRun(&model.ScreeningResult{}))
	run, err := rec.LatestRun()
	assert.NoError(t, err)
	assert.Nil(t, run)
}
