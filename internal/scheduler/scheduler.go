package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"StockSentinel/internal/cache"
	"StockSentinel/internal/model"
	"StockSentinel/internal/monitor"
	"StockSentinel/internal/notifier"
	"StockSentinel/internal/pipeline"
	"StockSentinel/internal/planner"
	"StockSentinel/internal/recorder"
)

// sendRetries is how many times a notification is retried after the first attempt.
const sendRetries = 3

// ErrBusy is returned when a screening run is already in progress.
var ErrBusy = errors.New("screening already running")

// Scheduler manages the cron tasks and Telegram commands.
type Scheduler struct {
	Cron     *cron.Cron
	Pools    *cache.PoolCache
	Pipeline *pipeline.Pipeline
	Planner  *planner.Planner
	Executor *planner.Executor
	PlanDir  string
	Monitor  *monitor.Monitor // nil disables the real-time monitor
	Notifier notifier.Sender
	Recorder recorder.Recorder
	Ctx      context.Context

	screening sync.Mutex
	mu        sync.Mutex
	lastPlan  []model.TradingTarget
	monitorWG sync.WaitGroup
}

// NewScheduler creates a Scheduler and routes monitor transitions to the notifier.
func NewScheduler(ctx context.Context, pools *cache.PoolCache, p *pipeline.Pipeline, pl *planner.Planner, exec *planner.Executor,
	planDir string, mon *monitor.Monitor, sender notifier.Sender, rec recorder.Recorder) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	s := &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithLocation(model.CST)),
		Pools:    pools,
		Pipeline: p,
		Planner:  pl,
		Executor: exec,
		PlanDir:  planDir,
		Monitor:  mon,
		Notifier: sender,
		Recorder: rec,
		Ctx:      ctx,
	}
	if mon != nil {
		mon.OnEvent = s.onSignal
	}
	return s
}

// RegisterAll registers the daily screening task and the monitor start task.
func (s *Scheduler) RegisterAll(screenCron, monitorCron string) error {
	if _, err := s.Cron.AddFunc(screenCron, s.screenTask); err != nil {
		return fmt.Errorf("register screening task: %w", err)
	}
	if s.Monitor != nil {
		if _, err := s.Cron.AddFunc(monitorCron, s.StartMonitor); err != nil {
			return fmt.Errorf("register monitor task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and the monitor, waiting for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	if s.Monitor != nil {
		s.Monitor.Stop()
	}
	s.monitorWG.Wait()
	log.Info().Msg("scheduler stopped")
}

// RunScreenNow executes the screening task immediately.
func (s *Scheduler) RunScreenNow() {
	s.screenTask()
}

func (s *Scheduler) screenTask() {
	if _, _, err := s.Screen(s.Ctx); err != nil {
		log.Error().Err(err).Msg("screening task failed")
	}
}

// Screen loads the market snapshot, runs the pipeline, derives and executes the
// trading plan, and reports both. Only one screening runs at a time.
func (s *Scheduler) Screen(ctx context.Context) (*model.ScreeningResult, []model.TradingTarget, error) {
	if !s.screening.TryLock() {
		return nil, nil, ErrBusy
	}
	defer s.screening.Unlock()
	log.Info().Msg("running screening task")

	var prefix string
	snap, fromCache, err := s.Pools.Load(ctx)
	if err != nil {
		// An unavailable snapshot is a zero-result run, not a failed task.
		log.Error().Err(err).Msg("load market snapshot")
		prefix = fmt.Sprintf("❌ 行情快照获取失败: %v\n", err)
		snap = &model.MarketSnapshot{}
	} else {
		log.Info().Int("rows", len(snap.Rows)).Bool("from_cache", fromCache).Msg("market snapshot ready")
	}

	res := s.Pipeline.Run(ctx, snap)
	targets := s.Planner.Plan(res.PassedStocks)

	if len(targets) > 0 {
		if path, err := planner.WritePlan(s.PlanDir, targets, res.AnalysisTime); err != nil {
			log.Error().Err(err).Msg("write trading plan")
		} else {
			log.Info().Str("path", path).Int("targets", len(targets)).Msg("trading plan saved")
		}
		if s.Executor != nil {
			if n, err := s.Executor.Execute(ctx, targets); err != nil {
				log.Error().Err(err).Int("accepted", n).Msg("execute trading plan")
			}
		}
	}
	if err := s.Recorder.RecordTargets(res.RunID, targets); err != nil {
		log.Error().Err(err).Msg("record trading targets")
	}

	s.mu.Lock()
	s.lastPlan = targets
	s.mu.Unlock()

	s.trySend(prefix + notifier.FormatScreeningReport(res) + "\n" + notifier.FormatTradingPlan(targets))
	return res, targets, nil
}

// StartMonitor launches the real-time monitor unless it is already running.
func (s *Scheduler) StartMonitor() {
	if s.Monitor == nil || s.Monitor.Running() {
		return
	}
	s.monitorWG.Add(1)
	go func() {
		defer s.monitorWG.Done()
		if err := s.Monitor.Run(s.Ctx); err != nil && s.Ctx.Err() == nil {
			log.Error().Err(err).Msg("monitor exited")
		}
	}()
}

func (s *Scheduler) onSignal(ctx context.Context, e monitor.Event) {
	if err := s.Recorder.RecordSignal(&recorder.SignalEvent{
		Symbol:      e.Symbol,
		Phase:       e.Phase.String(),
		Price:       e.Price,
		DayHigh:     e.DayHigh,
		PullbackPct: e.PullbackPct(),
		MA:          e.MA,
		At:          e.At,
	}); err != nil {
		log.Error().Err(err).Msg("record monitor signal")
	}
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(ctx, notifier.FormatSignal(e), sendRetries); err != nil {
		log.Error().Err(err).Msg("send monitor signal")
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "选股", "/screen":
		go func() {
			if _, _, err := s.Screen(s.Ctx); err != nil {
				s.trySend(fmt.Sprintf("❌ 选股失败: %v", err))
			}
		}()
		return "⏳ 开始选股，完成后推送报告"
	case "交易计划", "/plan":
		s.mu.Lock()
		targets := s.lastPlan
		s.mu.Unlock()
		return notifier.FormatTradingPlan(targets)
	case "状态", "/status":
		run, err := s.Recorder.LatestRun()
		if err != nil {
			log.Error().Err(err).Msg("load latest run")
		}
		var st monitor.PullbackState
		running := false
		if s.Monitor != nil {
			st, running = s.Monitor.State(), s.Monitor.Running()
		}
		return notifier.FormatStatus(run, running, st, time.Now())
	default:
		return "可用命令:\n• 选股 (/screen)\n• 交易计划 (/plan)\n• 状态 (/status)"
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, sendRetries); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}
