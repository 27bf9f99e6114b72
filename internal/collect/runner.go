package collect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/antigravity-dev/agencyos/internal/apperrors"
	"github.com/antigravity-dev/agencyos/internal/collect/httpsource"
	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/metrics"
	"github.com/antigravity-dev/agencyos/internal/store"
)

// cronParser only needs to understand "@every Ns" descriptors: each
// collector's interval_seconds is translated into one at due-check time,
// so the due/overdue arithmetic (including catch-up after a missed tick)
// comes from a schedule library rather than a hand-rolled modulo.
var cronParser = cron.NewParser(cron.Descriptor)

// Collector is the interface every source-specific collector implements.
type Collector interface {
	Name() string
	Run(ctx context.Context, st *store.Store, cfg config.Collector, now time.Time) (int, error)
}

// Runner owns the set of enabled collectors, their due-to-run scheduling and
// their concurrent execution within the orchestrator's COLLECT phase
// (§4.2, §5). A worker never runs two instances of the same collector
// concurrently: RunDue skips a collector whose previous run has not
// returned yet.
type Runner struct {
	st         *store.Store
	log        *slog.Logger
	collectors []Collector
	guards     map[string]*httpsource.Guard

	mu       sync.Mutex
	inflight map[string]bool

	// Metrics is optional; nil means collector outcomes are not exported.
	Metrics *metrics.Registry
}

// NewRunner builds a Runner over the given collectors, one circuit-breaker
// guard per collector name.
func NewRunner(st *store.Store, log *slog.Logger, collectors ...Collector) *Runner {
	guards := make(map[string]*httpsource.Guard, len(collectors))
	for _, c := range collectors {
		guards[c.Name()] = httpsource.NewGuard(c.Name())
	}
	return &Runner{
		st:         st,
		log:        log,
		collectors: collectors,
		guards:     guards,
		inflight:   make(map[string]bool),
	}
}

// RunDue fans out every enabled collector whose polling interval has
// elapsed since its last sync, waits for all of them (bounded by grace),
// and returns once every due collector has either completed, timed out, or
// been skipped because it was still inflight.
func (r *Runner) RunDue(ctx context.Context, cfgs map[string]config.Collector, now time.Time, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range r.collectors {
		c := c
		cfg, ok := cfgs[c.Name()]
		if !ok || !cfg.Enabled {
			continue
		}
		due, err := r.isDue(gctx, c.Name(), cfg, now)
		if err != nil {
			r.log.Warn("collector due-check failed", "collector", c.Name(), "error", err)
			continue
		}
		if !due {
			continue
		}
		if !r.tryLock(c.Name()) {
			r.log.Info("collector skipped, previous run still inflight", "collector", c.Name())
			continue
		}

		g.Go(func() error {
			defer r.unlock(c.Name())
			r.runOne(gctx, c, cfg, now)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) isDue(ctx context.Context, name string, cfg config.Collector, now time.Time) (bool, error) {
	state, err := r.st.GetSyncState(ctx, name)
	if err != nil {
		return false, err
	}
	if state.LastSync == nil {
		return true, nil
	}
	schedule, err := cronParser.Parse(fmt.Sprintf("@every %ds", cfg.IntervalSec))
	if err != nil {
		return false, fmt.Errorf("collect: parse interval for %s: %w", name, err)
	}
	return !now.Before(schedule.Next(*state.LastSync)), nil
}

func (r *Runner) tryLock(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight[name] {
		return false
	}
	r.inflight[name] = true
	return true
}

func (r *Runner) unlock(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, name)
}

// runOne executes a single collector's run, classifying its outcome into
// sync_state per §4.2 point 4/5. Errors never propagate past this method —
// collectors catch and classify their own failures (§7 propagation policy).
func (r *Runner) runOne(ctx context.Context, c Collector, cfg config.Collector, now time.Time) {
	name := c.Name()
	if err := r.st.RecordSyncStart(ctx, name); err != nil {
		r.log.Error("record sync start failed", "collector", name, "error", err)
		return
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if cfg.Timeout.Duration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout.Duration)
		defer cancel()
	}

	guard := r.guards[name]
	var synced int
	err := guard.Do(runCtx, func(innerCtx context.Context) error {
		n, runErr := c.Run(innerCtx, r.st, cfg, now)
		synced = n
		return runErr
	})

	if err != nil {
		msg := classify(err)
		r.log.Warn("collector run failed", "collector", name, "error", err, "class", msg)
		if recErr := r.st.RecordSyncError(ctx, name, msg); recErr != nil {
			r.log.Error("record sync error failed", "collector", name, "error", recErr)
		}
		if r.Metrics != nil {
			r.Metrics.ObserveCollector(name, 0, msg)
		}
		return
	}

	if err := r.st.RecordSyncSuccess(ctx, name, synced); err != nil {
		r.log.Error("record sync success failed", "collector", name, "error", err)
	}
	if r.Metrics != nil {
		r.Metrics.ObserveCollector(name, synced, "")
	}
}

// classify returns a short diagnostic string per the error taxonomy.
func classify(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrAuthSource):
		return "auth: " + err.Error()
	case apperrors.Is(err, apperrors.ErrTransientSource):
		return "transient: " + err.Error()
	case apperrors.Is(err, apperrors.ErrParse):
		return "parse: " + err.Error()
	default:
		return err.Error()
	}
}
