package alerts

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/groundedcore/internal/observability"
	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// ScopeSource enumerates the (tenant, site) pairs the scheduler should
// evaluate each cycle.
type ScopeSource interface {
	ListScopes(ctx context.Context) ([]domain.Scope, error)
}

// DefaultBatchSize bounds how many scopes one evaluation cycle covers, so
// the alert worker can't starve the request path (spec.md §5).
const DefaultBatchSize = 50

// Scheduler runs the Evaluator on a cron schedule, one batch of scopes at a
// time in round-robin order across cycles so no tenant is starved by a
// large deployment. Grounded on
// pkg/evidence/retention/scheduler.go's cron.Cron lifecycle (Start/Stop
// with a context-driven shutdown goroutine).
type Scheduler struct {
	evaluator *Evaluator
	scopes    ScopeSource
	logger    *observability.Logger
	batchSize int

	cron *cron.Cron

	mu      sync.Mutex
	running bool
	cursor  int
}

// NewScheduler builds a Scheduler. logger may be nil.
func NewScheduler(evaluator *Evaluator, scopes ScopeSource, logger *observability.Logger) *Scheduler {
	return &Scheduler{
		evaluator: evaluator,
		scopes:    scopes,
		logger:    logger,
		batchSize: DefaultBatchSize,
		cron:      cron.New(),
	}
}

// Start schedules evaluation cycles on the given standard cron expression
// (e.g. "*/5 * * * *" for every 5 minutes) and runs until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("alerts: invalid cron schedule %q: %w", schedule, err)
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.runCycle(ctx) }); err != nil {
		return fmt.Errorf("alerts: schedule evaluation: %w", err)
	}

	s.cron.Start()
	s.running = true

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits for any in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil || !s.running {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running = false
}

// runCycle evaluates one tenant-fair batch of scopes.
func (s *Scheduler) runCycle(ctx context.Context) {
	scopes, err := s.scopes.ListScopes(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Error(ctx, "alerts: list scopes failed", "error", err)
		}
		return
	}
	n := len(scopes)
	if n == 0 {
		return
	}

	batch := s.batchSize
	if batch > n {
		batch = n
	}

	s.mu.Lock()
	start := s.cursor
	s.cursor = (s.cursor + batch) % n
	s.mu.Unlock()

	for i := 0; i < batch; i++ {
		scope := scopes[(start+i)%n]
		if _, err := s.evaluator.Evaluate(ctx, scope); err != nil && s.logger != nil {
			s.logger.Warn(ctx, "alerts: evaluation failed", "tenant_id", scope.TenantID, "site_id", scope.SiteID, "error", err)
		}
	}
}
