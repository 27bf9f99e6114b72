// Package orchestrator drives the fixed six-phase cadence
// (COLLECT -> NORMALIZE -> GATES -> RESOLUTION -> SNAPSHOT -> MOVES,
// §4.8) on a timer, recording one cycle_logs row per pass and exporting
// phase/gate telemetry through internal/metrics.
package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/antigravity-dev/agencyos/internal/collect"
	"github.com/antigravity-dev/agencyos/internal/commitments"
	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/gates"
	"github.com/antigravity-dev/agencyos/internal/metrics"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/moves"
	"github.com/antigravity-dev/agencyos/internal/normalizer"
	"github.com/antigravity-dev/agencyos/internal/notify"
	"github.com/antigravity-dev/agencyos/internal/resolution"
	"github.com/antigravity-dev/agencyos/internal/snapshot"
	"github.com/antigravity-dev/agencyos/internal/store"
)

const (
	phaseCollect    = "collect"
	phaseNormalize  = "normalize"
	phaseGates      = "gates"
	phaseResolution = "resolution"
	phaseSnapshot   = "snapshot"
	phaseMoves      = "moves"
)

// Orchestrator wires every stage of the cadence together and owns the
// cycle counter and the previous gate report used to detect regressions.
type Orchestrator struct {
	cfgMgr  config.ConfigManager
	store   *store.Store
	runner  *collect.Runner
	writer  *snapshot.Writer
	metrics *metrics.Registry
	notify  *notify.Notifier
	extract *commitments.Extractor
	logger  *slog.Logger

	cycleNumber  int64
	prevGates    gates.Report
}

// New builds an Orchestrator. cfgMgr is consulted fresh at the start of
// every cycle, so a config loaded into the manager with Reload applies from
// the next cycle. Nothing in the process calls Reload; an edit to the
// config file on disk takes effect after a restart.
func New(
	cfgMgr config.ConfigManager,
	st *store.Store,
	runner *collect.Runner,
	writer *snapshot.Writer,
	reg *metrics.Registry,
	notifier *notify.Notifier,
	extractor *commitments.Extractor,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfgMgr:  cfgMgr,
		store:   st,
		runner:  runner,
		writer:  writer,
		metrics: reg,
		notify:  notifier,
		extract: extractor,
		logger:  logger,
	}
}

// Start runs runCycleLogged on cfg.General.CycleInterval until ctx is cancelled.
// The first cycle fires immediately rather than waiting a full interval,
// since a freshly started process has nothing in the store yet.
func (o *Orchestrator) Start(ctx context.Context) {
	o.logger.Info("orchestrator starting", "cycle_interval", o.cfgMgr.Get().General.CycleInterval.Duration)

	o.runCycleLogged(ctx)

	ticker := time.NewTicker(o.cfgMgr.Get().General.CycleInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopping")
			return
		case <-ticker.C:
			o.runCycleLogged(ctx)
		}
	}
}

// RunOnce executes exactly one cycle and returns its outcome, for -dry-run
// invocations that do not want the ticker loop.
func (o *Orchestrator) RunOnce(ctx context.Context, skipCollect bool) error {
	return o.runCycle(ctx, skipCollect)
}

func (o *Orchestrator) runCycleLogged(ctx context.Context) {
	if err := o.runCycle(ctx, false); err != nil {
		o.logger.Error("cycle failed", "cycle_number", o.cycleNumber, "error", err)
	}
}

// runCycle executes one full pass of the cadence. Every phase after
// COLLECT assumes the store reflects whatever COLLECT managed to write,
// even if COLLECT itself partially failed: partial data degrades gates
// rather than halting the cycle (§7).
func (o *Orchestrator) runCycle(ctx context.Context, skipCollect bool) error {
	o.cycleNumber++
	cfg := o.cfgMgr.Get()
	now := o.now(cfg)

	cycleCtx, cancel := context.WithTimeout(ctx, cfg.General.CycleDeadline.Duration)
	defer cancel()

	started := time.Now()
	timings := map[string]int64{}
	var failedPhase string
	var cycleErr error

	run := func(phase string, fn func() error) bool {
		phaseStart := time.Now()
		err := fn()
		elapsed := time.Since(phaseStart)
		timings[phase] = elapsed.Milliseconds()
		if o.metrics != nil {
			o.metrics.ObservePhase(phase, elapsed.Seconds())
		}
		if err != nil {
			failedPhase = phase
			cycleErr = err
			o.logger.Error("phase failed", "cycle_number", o.cycleNumber, "phase", phase, "error", err)
			if o.notify != nil {
				o.notify.CycleFailed(ctx, o.cycleNumber, phase, err)
			}
			return false
		}
		return true
	}

	var report gates.Report

	if !skipCollect {
		if !run(phaseCollect, func() error {
			return o.runner.RunDue(cycleCtx, cfg.Collectors, now, cfg.General.CollectorGrace.Duration)
		}) {
			return o.finish(ctx, started, timings, failedPhase, cycleErr)
		}
	}

	if !run(phaseNormalize, func() error {
		norm := normalizer.New(o.store, o.logger)
		res, err := norm.Run(cycleCtx, now)
		if err != nil {
			return err
		}
		o.logger.Info("normalize complete",
			"tasks", res.TasksProcessed, "communications", res.CommunicationsProcessed, "invoices", res.InvoicesProcessed)
		return o.extractCommitments(cycleCtx)
	}) {
		return o.finish(ctx, started, timings, failedPhase, cycleErr)
	}

	if !run(phaseGates, func() error {
		eng := gates.New(o.store, cfg.Gates)
		r, err := eng.Evaluate(cycleCtx)
		if err != nil {
			return err
		}
		report = r
		o.recordGates(ctx, report)
		return nil
	}) {
		return o.finish(ctx, started, timings, failedPhase, cycleErr)
	}

	if !run(phaseResolution, func() error {
		eng := resolution.New(o.store)
		n, err := eng.Run(cycleCtx, report, now)
		if err != nil {
			return err
		}
		o.logger.Info("resolution complete", "items_flagged", n)
		return o.updateQueueDepth(cycleCtx)
	}) {
		return o.finish(ctx, started, timings, failedPhase, cycleErr)
	}

	if !run(phaseSnapshot, func() error {
		gen := snapshot.New(o.store, cfg.Snapshot, cfg.Scoring)
		doc, err := gen.Generate(cycleCtx, o.cycleNumber, report, now)
		if err != nil {
			return err
		}
		if err := o.writer.Write(doc); err != nil {
			if o.notify != nil {
				o.notify.SnapshotWriteFailed(ctx, err)
			}
			return err
		}
		return nil
	}) {
		return o.finish(ctx, started, timings, failedPhase, cycleErr)
	}

	if !run(phaseMoves, func() error {
		eng := moves.New(o.store, cfg.Moves)
		n, err := eng.Run(cycleCtx, now)
		if err != nil {
			return err
		}
		o.logger.Info("moves complete", "proposals", n)
		return nil
	}) {
		return o.finish(ctx, started, timings, failedPhase, cycleErr)
	}

	return o.finish(ctx, started, timings, "", nil)
}

func (o *Orchestrator) finish(ctx context.Context, started time.Time, timings map[string]int64, failedPhase string, cycleErr error) error {
	success := cycleErr == nil
	elapsed := time.Since(started)
	if o.metrics != nil {
		o.metrics.ObserveCycle(elapsed.Seconds(), success)
	}

	payload, _ := json.Marshal(timings)
	log := &model.CycleLog{
		CycleNumber:  o.cycleNumber,
		StartedAt:    started,
		FinishedAt:   time.Now(),
		Success:      success,
		FailedPhase:  failedPhase,
		PhaseTimings: string(payload),
	}
	if err := o.store.InsertCycleLog(ctx, log); err != nil {
		o.logger.Error("insert cycle log failed", "error", err)
	}

	o.logger.Info("cycle finished", "cycle_number", o.cycleNumber, "success", success, "duration", elapsed)
	return cycleErr
}

// extractCommitments runs the optional LLM-backed extractor over every
// stored communication. A disabled extractor returns immediately.
func (o *Orchestrator) extractCommitments(ctx context.Context) error {
	if o.extract == nil || !o.extract.Enabled() {
		return nil
	}
	comms, err := o.store.ListCommunications(ctx)
	if err != nil {
		return err
	}
	var total int
	for _, c := range comms {
		n, err := o.extract.ExtractForCommunication(ctx, o.store, c)
		if err != nil {
			o.logger.Warn("commitment extraction failed", "communication_id", c.ID, "error", err)
			continue
		}
		total += n
	}
	if total > 0 {
		o.logger.Info("commitments extracted", "count", total)
	}
	return nil
}

// recordGates exports the gate battery to metrics and fires a notification
// for any gate that flips from passing to failing since the prior cycle.
func (o *Orchestrator) recordGates(ctx context.Context, report gates.Report) {
	for name, result := range report {
		if o.metrics != nil {
			o.metrics.SetGate(name, result.Pass)
		}
		if prev, ok := o.prevGates[name]; ok && prev.Pass && !result.Pass && o.notify != nil {
			o.notify.GateRegressed(ctx, name, result.Value)
		}
	}
	o.prevGates = report
}

func (o *Orchestrator) updateQueueDepth(ctx context.Context) error {
	if o.metrics == nil {
		return nil
	}
	items, err := o.store.ListUnresolvedItems(ctx)
	if err != nil {
		return err
	}
	o.metrics.SetQueueDepth(len(items))
	return nil
}

// now resolves the cycle's reference time, honoring the test-only
// General.Today override (RFC3339 date) ahead of the wall clock.
func (o *Orchestrator) now(cfg *config.Config) time.Time {
	if cfg.General.Today == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, cfg.General.Today)
	if err != nil {
		o.logger.Warn("invalid general.today override, falling back to wall clock", "value", cfg.General.Today, "error", err)
		return time.Now().UTC()
	}
	return t
}
