// Package sched owns the single named cron job that drives price sweeps and
// the sweep pipeline itself.
//
// Duplicate-notification caveat: the only gate against re-notifying is
// "price changed". A price that rises and later falls back to the same
// target-crossing value notifies again in a later sweep; there is no
// idempotency key.
package sched

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cenownik/pricewatch/internal/domain/settings"
)

const jobName = "scrape-cron-job"

// ValidationError is returned to SetExpression callers for rejected
// expressions; the active job is left untouched.
type ValidationError struct {
	Expr   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid cron expression %q: %s", e.Expr, e.Reason)
}

// ValidateExpression rejects expressions whose first two future firings are
// closer together than minInterval, guarding against a misconfiguration
// that would hammer the scraped stores.
func ValidateExpression(expr string, minInterval time.Duration) error {
	if strings.TrimSpace(expr) == "" {
		return &ValidationError{Expr: expr, Reason: "empty expression"}
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return &ValidationError{Expr: expr, Reason: err.Error()}
	}
	first := schedule.Next(time.Now())
	second := schedule.Next(first)
	if gap := second.Sub(first); gap < minInterval {
		return &ValidationError{
			Expr:   expr,
			Reason: fmt.Sprintf("interval %s is below the %s minimum", gap, minInterval),
		}
	}
	return nil
}

// CronJob manages exactly one named scheduled job. Reconfiguration is
// remove-then-add under the mutex, so two jobs never coexist and concurrent
// SetExpression calls serialize. The active expression is persisted in the
// settings store and read back on startup.
type CronJob struct {
	mu          sync.Mutex
	c           *cron.Cron
	entry       cron.EntryID
	installed   bool
	expr        string
	store       settings.Store
	defaultExpr string
	minInterval time.Duration
	task        func()
	log         *zap.Logger
}

func NewCronJob(store settings.Store, defaultExpr string, minInterval time.Duration, task func(), log *zap.Logger) *CronJob {
	return &CronJob{
		c:           cron.New(),
		store:       store,
		defaultExpr: defaultExpr,
		minInterval: minInterval,
		task:        task,
		log:         log.With(zap.String("component", "sched.cron"), zap.String("job", jobName)),
	}
}

func (j *CronJob) Start(ctx context.Context) error {
	expr := j.loadExpression(ctx)

	j.mu.Lock()
	err := j.install(expr)
	j.mu.Unlock()
	if err != nil {
		return fmt.Errorf("install cron job: %w", err)
	}

	j.c.Start()
	j.log.Info("cron job scheduled", zap.String("expression", expr))
	return nil
}

// Stop ends the cron runner; the returned context is done once any running
// job has finished.
func (j *CronJob) Stop() context.Context {
	return j.c.Stop()
}

// loadExpression resolves the startup expression: persisted value, then
// configured default (overridable via environment), then nothing to fall
// back to means the configured default is authoritative.
func (j *CronJob) loadExpression(ctx context.Context) string {
	value, ok, err := j.store.Get(ctx, settings.KeyScrapeCron)
	if err != nil {
		j.log.Warn("read persisted cron expression", zap.Error(err))
		return j.defaultExpr
	}
	if !ok {
		return j.defaultExpr
	}
	if _, perr := cron.ParseStandard(value); perr != nil {
		j.log.Warn("persisted cron expression unparseable, using default",
			zap.String("expression", value), zap.Error(perr))
		return j.defaultExpr
	}
	return value
}

func (j *CronJob) Expression() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.expr
}

// SetExpression validates, persists, then atomically swaps the job:
// remove-old, install-new. A validation or persistence failure leaves the
// running job untouched.
func (j *CronJob) SetExpression(ctx context.Context, expr string) error {
	if err := ValidateExpression(expr, j.minInterval); err != nil {
		return err
	}
	if err := j.store.Upsert(ctx, settings.KeyScrapeCron, expr); err != nil {
		return fmt.Errorf("persist cron expression: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.remove()
	if err := j.install(expr); err != nil {
		return fmt.Errorf("install cron job: %w", err)
	}
	j.log.Info("cron expression updated", zap.String("expression", expr))
	return nil
}

// install registers the task under the held mutex.
func (j *CronJob) install(expr string) error {
	id, err := j.c.AddFunc(expr, j.task)
	if err != nil {
		return err
	}
	j.entry = id
	j.installed = true
	j.expr = expr
	return nil
}

// remove is a no-op when no job is installed.
func (j *CronJob) remove() {
	if j.installed {
		j.c.Remove(j.entry)
		j.installed = false
	}
}
