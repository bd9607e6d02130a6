package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/utafrali/shopsync/pkg/debounce"
	"github.com/utafrali/shopsync/services/storefront/internal/domain"
	"github.com/utafrali/shopsync/services/storefront/internal/remote"
)

// DefaultReconcileDelay is the quiet period before a reconciliation runs.
const DefaultReconcileDelay = time.Second

// ReconcilerConfig tunes the reconciler.
type ReconcilerConfig struct {
	Delay      time.Duration
	RatePerSec float64 // remote adds per second; <= 0 means unlimited
	Burst      int
}

// DefaultReconcilerConfig returns the production settings.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{Delay: DefaultReconcileDelay, RatePerSec: 10, Burst: 5}
}

// ReconcileReport describes one reconciliation run.
type ReconcileReport struct {
	Outcome  string   `json:"outcome"`
	ToAdd    []string `json:"to_add"`
	ToRemove []string `json:"to_remove"`
	Added    int      `json:"added"`
	Failed   int      `json:"failed"`
}

// remoteApplier performs one remote wishlist call for id.
type remoteApplier func(ctx context.Context, token, op, id string) error

// Reconciler pushes ids held locally but missing remotely to the server.
// Runs are debounced: every Trigger restarts the delay and a burst of
// triggers yields a single run.
//
// The diff is taken against remote ∪ local, so its removal set is always
// empty. Ids removed locally are only removed remotely by the optimistic
// mutation itself, never by reconciliation.
type Reconciler struct {
	task    *debounce.Task
	limiter *rate.Limiter
	local   func() domain.WishlistSet
	tokens  TokenSource
	remote  remote.WishlistClient
	apply   remoteApplier
	logger  *slog.Logger

	ctx   context.Context // base context for timer-driven runs
	runMu sync.Mutex
	last  ReconcileReport
}

func newReconciler(
	ctx context.Context,
	cfg ReconcilerConfig,
	local func() domain.WishlistSet,
	tokens TokenSource,
	client remote.WishlistClient,
	apply remoteApplier,
	logger *slog.Logger,
) *Reconciler {
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	r := &Reconciler{
		limiter: rate.NewLimiter(limit, burst),
		local:   local,
		tokens:  tokens,
		remote:  client,
		apply:   apply,
		logger:  logger,
		ctx:     ctx,
	}
	r.task = debounce.New(cfg.Delay, r.fire)
	return r
}

// Trigger schedules a run after the debounce delay, replacing any pending
// one.
func (r *Reconciler) Trigger() {
	r.task.Schedule()
	r.logger.Debug("wishlist reconciliation scheduled", slog.Duration("delay", r.task.Delay()))
}

// Pending reports whether a run is scheduled.
func (r *Reconciler) Pending() bool {
	return r.task.Pending()
}

// Cancel drops a pending run.
func (r *Reconciler) Cancel() {
	r.task.Cancel()
}

// Flush runs a pending reconciliation immediately and reports whether one
// was pending.
func (r *Reconciler) Flush() bool {
	if !r.task.Pending() {
		return false
	}
	return r.task.FireNow()
}

// Stop cancels any pending run and disables future ones.
func (r *Reconciler) Stop() {
	r.task.Stop()
}

// Last returns the report of the most recent run.
func (r *Reconciler) Last() ReconcileReport {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return r.last
}

func (r *Reconciler) fire() {
	if r.ctx.Err() != nil {
		return
	}
	if _, err := r.RunNow(r.ctx); err != nil {
		r.logger.ErrorContext(r.ctx, "wishlist reconciliation failed", slog.String("error", err.Error()))
	}
}

// RunNow cancels any pending run and reconciles immediately.
func (r *Reconciler) RunNow(ctx context.Context) (ReconcileReport, error) {
	r.task.Cancel()

	r.runMu.Lock()
	defer r.runMu.Unlock()

	report, err := r.run(ctx)
	reconcileRuns.WithLabelValues(report.Outcome).Inc()
	r.last = report
	return report, err
}

func (r *Reconciler) run(ctx context.Context) (ReconcileReport, error) {
	token := r.tokens.Token(ctx)
	if token == "" {
		return ReconcileReport{Outcome: OutcomeAnonymous}, nil
	}

	remoteIDs, err := r.remote.List(ctx, token)
	if err != nil {
		return ReconcileReport{Outcome: OutcomeError}, fmt.Errorf("fetch remote wishlist: %w", err)
	}

	local := r.local()
	if local.Equal(remoteIDs) {
		r.logger.DebugContext(ctx, "wishlist in sync", slog.Int("count", local.Len()))
		return ReconcileReport{Outcome: OutcomeInSync}, nil
	}

	batch := domain.UnionDiff(local, remoteIDs)
	report := ReconcileReport{Outcome: OutcomeApplied, ToAdd: batch.ToAdd, ToRemove: batch.ToRemove}

	for _, id := range batch.ToAdd {
		if err := r.limiter.Wait(ctx); err != nil {
			report.Outcome = OutcomeError
			return report, fmt.Errorf("reconcile wishlist: %w", err)
		}
		if err := r.apply(ctx, token, opAdd, id); err != nil {
			report.Failed++
			reconcileAdds.WithLabelValues(resultError).Inc()
			r.logger.WarnContext(ctx, "reconcile add failed",
				slog.String("product_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		report.Added++
		reconcileAdds.WithLabelValues(resultOK).Inc()
	}

	for _, id := range batch.ToRemove {
		if err := r.apply(ctx, token, opRemove, id); err != nil {
			report.Failed++
			r.logger.WarnContext(ctx, "reconcile remove failed",
				slog.String("product_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	r.logger.InfoContext(ctx, "wishlist reconciled",
		slog.Int("local", local.Len()),
		slog.Int("remote", remoteIDs.Len()),
		slog.Int("added", report.Added),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}
