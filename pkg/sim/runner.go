package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"txmgr/pkg/config"
	dberror "txmgr/pkg/error"
	"txmgr/pkg/logging"
	"txmgr/pkg/primitives"
	"txmgr/pkg/resource"
	"txmgr/pkg/tm"
)

var ErrNotConserved = errors.New("counter totals do not match committed deltas")

type Option func(*Runner)

// WithLogger overrides the run logger. The manager logs through the same handler.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// Runner owns one manager, its counters and the metrics of a single run.
type Runner struct {
	cfg      config.Config
	runID    string
	log      *slog.Logger
	ids      []primitives.ResourceID
	counters []*resource.Counter
	manager  *tm.Manager
	metrics  *Collector
}

type step struct {
	rid   primitives.ResourceID
	delta int64
}

func NewRunner(cfg config.Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{cfg: cfg, metrics: NewCollector()}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	if r.log == nil {
		r.log = logging.WithRun(r.runID)
	} else {
		r.log = r.log.With("run_id", r.runID)
	}

	resources := make([]primitives.Resource, cfg.Resources)
	r.ids = make([]primitives.ResourceID, cfg.Resources)
	r.counters = make([]*resource.Counter, cfg.Resources)
	for i := range cfg.Resources {
		r.ids[i] = primitives.ResourceID(fmt.Sprintf("counter-%03d", i))
		r.counters[i] = resource.NewCounter(r.ids[i], 0)
		resources[i] = r.counters[i]
	}

	m, err := tm.New(resources, cfg.NewClock(), tm.WithLogger(r.log.With("component", "TransactionManager")))
	if err != nil {
		return nil, err
	}
	r.manager = m
	return r, nil
}

func (r *Runner) RunID() string { return r.runID }

func (r *Runner) Manager() *tm.Manager { return r.manager }

func (r *Runner) Collector() *Collector { return r.metrics }

// Run executes the workload and returns its report. The report is returned
// even when the run fails so callers can inspect partial results.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	r.log.Info("run started",
		"workers", r.cfg.Workers,
		"resources", r.cfg.Resources,
		"transactions_per_worker", r.cfg.TransactionsPerWorker,
		"ops_per_transaction", r.cfg.OpsPerTransaction)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := range r.cfg.Workers {
		g.Go(func() error {
			return r.worker(gctx, w)
		})
	}
	runErr := g.Wait()

	report := r.report(start, time.Now())
	if runErr != nil {
		report.Error = runErr.Error()
		r.log.Error("run failed", logging.Err(runErr))
		return report, runErr
	}
	if !report.Conserved {
		err := fmt.Errorf("%w: counters sum to %d, committed deltas sum to %d",
			ErrNotConserved, report.ActualTotal, report.ExpectedTotal)
		report.Error = err.Error()
		r.log.Error("conservation check failed", "expected", report.ExpectedTotal, "actual", report.ActualTotal)
		return report, err
	}

	report.Log(r.log)
	return report, nil
}

func (r *Runner) worker(ctx context.Context, w int) error {
	th := r.manager.Thread(primitives.ThreadID(w + 1))
	rng := rand.New(rand.NewPCG(r.cfg.Seed, uint64(w)))
	log := logging.WithThread(r.log, th.ID())

	for range r.cfg.TransactionsPerWorker {
		if err := r.transact(ctx, th, rng, log); err != nil {
			return err
		}
	}
	return nil
}

// transact runs one planned transaction, retrying it while it is chosen as a
// deadlock victim.
func (r *Runner) transact(ctx context.Context, th *tm.Thread, rng *rand.Rand, log *slog.Logger) error {
	steps := r.plan(rng)
	voluntaryRollback := rng.Float64() < r.cfg.RollbackRatio

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		err := r.attempt(ctx, th, steps, voluntaryRollback)
		if err == nil {
			return nil
		}
		if !errors.Is(err, dberror.ErrTransactionAborted) {
			return err
		}
		r.metrics.RecordAbort()
		log.Debug("transaction aborted, retrying", "attempt", attempt)
	}

	r.metrics.RecordGiveUp()
	log.Warn("transaction gave up", "retries", r.cfg.MaxRetries)
	return nil
}

func (r *Runner) attempt(ctx context.Context, th *tm.Thread, steps []step, voluntaryRollback bool) error {
	start := time.Now()
	if err := th.Start(); err != nil {
		return err
	}

	var delta int64
	for _, s := range steps {
		if err := th.Operate(ctx, s.rid, resource.Add{Delta: s.delta}); err != nil {
			th.Rollback()
			return err
		}
		delta += s.delta

		if err := r.think(ctx); err != nil {
			th.Rollback()
			return err
		}
	}

	if voluntaryRollback {
		th.Rollback()
		r.metrics.RecordRollback()
		return nil
	}

	if err := th.Commit(); err != nil {
		th.Rollback()
		return err
	}
	r.metrics.RecordCommit(time.Since(start), delta)
	return nil
}

func (r *Runner) plan(rng *rand.Rand) []step {
	steps := make([]step, r.cfg.OpsPerTransaction)
	for i := range steps {
		steps[i] = step{
			rid:   r.ids[rng.IntN(len(r.ids))],
			delta: rng.Int64N(2*r.cfg.MaxDelta+1) - r.cfg.MaxDelta,
		}
	}
	return steps
}

func (r *Runner) think(ctx context.Context) error {
	if r.cfg.ThinkTime <= 0 {
		return nil
	}
	t := time.NewTimer(r.cfg.ThinkTime)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Total sums the current counter values.
func (r *Runner) Total() int64 {
	var total int64
	for _, c := range r.counters {
		total += c.Value()
	}
	return total
}
