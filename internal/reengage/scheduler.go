package reengage

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nestiq/lead-engine/internal/dialogue"
	"github.com/nestiq/lead-engine/internal/leads"
	"github.com/nestiq/lead-engine/internal/observability/metrics"
	"github.com/nestiq/lead-engine/internal/tenancy"
	"github.com/nestiq/lead-engine/pkg/logging"
)

// Deliverer sends one nudge over the lead's channel.
type Deliverer interface {
	Deliver(ctx context.Context, n *Nudge, message string) error
}

// QuotaReserver reserves one unit of a tenant's daily nudge quota.
type QuotaReserver interface {
	Reserve(ctx context.Context, tenant *tenancy.Tenant) (*tenancy.QuotaResult, error)
}

// Config tunes the sweep loop.
type Config struct {
	SweepInterval time.Duration
	IdleThreshold time.Duration
	BatchSize     int

	MaxFollowUps int
	BaseDelay    time.Duration
	MaxDelay     time.Duration

	DeliveryMaxRetries int
	Workers            int
}

func (c *Config) defaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = 24 * time.Hour
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxFollowUps <= 0 {
		c.MaxFollowUps = 5
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 24 * time.Hour
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 7 * 24 * time.Hour
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// Scheduler periodically sweeps for idle leads, schedules follow-ups with
// exponential backoff and delivers the due ones. All state lives in the
// store; any number of replicas can run the same sweep safely.
type Scheduler struct {
	store   Store
	leads   leads.Repository
	tenants tenancy.Repository
	quota   QuotaReserver
	deliver Deliverer
	metrics *metrics.Metrics
	logger  *logging.Logger
	cfg     Config

	now func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(store Store, leadRepo leads.Repository, tenants tenancy.Repository, quota QuotaReserver, deliver Deliverer, m *metrics.Metrics, logger *logging.Logger, cfg Config) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		store:   store,
		leads:   leadRepo,
		tenants: tenants,
		quota:   quota,
		deliver: deliver,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Start launches the sweep loop. It returns immediately; Stop waits for
// the loop to drain.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("reengage: scheduler already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Error("reengage: sweep failed", "error", err)
				}
			}
		}
	}()
	s.logger.Info("reengage: scheduler started",
		"sweep_interval", s.cfg.SweepInterval.String(),
		"idle_threshold", s.cfg.IdleThreshold.String(),
	)
	return nil
}

// Stop cancels the loop and waits for the in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Sweep runs one scheduling-and-delivery pass and returns the number of
// nudges sent.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	now := s.now().UTC()

	if err := s.scheduleIdle(ctx, now); err != nil {
		return 0, err
	}

	nudges, err := s.store.ClaimDue(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(nudges) == 0 {
		return 0, nil
	}

	var (
		mu   sync.Mutex
		sent int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, n := range nudges {
		n := n
		g.Go(func() error {
			if s.process(gctx, n, now) {
				mu.Lock()
				sent++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sent, err
	}
	if sent > 0 {
		s.logger.Info("reengage: sweep delivered nudges", "sent", sent, "claimed", len(nudges))
	}
	return sent, nil
}

// scheduleIdle creates pending follow-ups for idle leads. Backoff doubles
// per attempt from the lead's last activity and is capped.
func (s *Scheduler) scheduleIdle(ctx context.Context, now time.Time) error {
	cands, err := s.store.IdleCandidates(ctx, now.Add(-s.cfg.IdleThreshold), s.cfg.MaxFollowUps, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, c := range cands {
		// Backoff counts from whichever came later, the user's last turn
		// or the previous nudge. Counting only from user activity would
		// burst every remaining attempt at a long-idle lead at once.
		basis := c.LastActivityAt
		if c.LastNudgeAt != nil && c.LastNudgeAt.After(basis) {
			basis = *c.LastNudgeAt
		}
		due := basis.Add(s.backoff(c.FollowUpCount))
		if due.Before(now) {
			due = now
		}
		f := &FollowUp{
			TenantID: c.TenantID,
			LeadID:   c.LeadID,
			Attempt:  c.FollowUpCount + 1,
			DueAt:    due,
			Status:   StatusPending,
		}
		if err := s.store.Schedule(ctx, f); err != nil {
			s.logger.Warn("reengage: schedule failed", "lead_id", c.LeadID.String(), "error", err)
		}
	}
	return nil
}

// backoff returns the delay before follow-up attempt priorCount+1.
func (s *Scheduler) backoff(priorCount int) time.Duration {
	d := s.cfg.BaseDelay
	for i := 0; i < priorCount; i++ {
		d *= 2
		if d >= s.cfg.MaxDelay {
			return s.cfg.MaxDelay
		}
	}
	if d > s.cfg.MaxDelay {
		return s.cfg.MaxDelay
	}
	return d
}

// process delivers one claimed nudge. Returns true when it was sent.
// Failures never abort the sweep: quota skips release the claim, delivery
// failures mark the record failed after bounded retries.
func (s *Scheduler) process(ctx context.Context, n *Nudge, now time.Time) bool {
	tenant, err := s.tenants.Get(ctx, n.TenantID)
	if err != nil {
		s.logger.Warn("reengage: tenant lookup failed", "tenant_id", n.TenantID, "error", err)
		s.release(ctx, n)
		return false
	}

	res, err := s.quota.Reserve(ctx, tenant)
	if err != nil {
		s.logger.Warn("reengage: quota check failed", "tenant_id", n.TenantID, "error", err)
		s.release(ctx, n)
		return false
	}
	if !res.Allowed {
		s.metrics.NudgeSkipped("quota")
		s.release(ctx, n)
		return false
	}

	msg := dialogue.BuildNudge(n.Language, n.Attempt)
	var derr error
	for attempt := 0; attempt <= s.cfg.DeliveryMaxRetries; attempt++ {
		if derr = s.deliver.Deliver(ctx, n, msg); derr == nil {
			break
		}
	}
	if derr != nil {
		s.metrics.NudgeSkipped("delivery")
		s.logger.Error("reengage: delivery failed, giving up",
			"follow_up_id", n.ID.String(),
			"lead_id", n.LeadID.String(),
			"attempts", s.cfg.DeliveryMaxRetries+1,
			"error", derr,
		)
		if err := s.store.MarkFailed(ctx, n.ID); err != nil {
			s.logger.Error("reengage: mark failed", "follow_up_id", n.ID.String(), "error", err)
		}
		return false
	}

	if err := s.store.MarkSent(ctx, n.ID, now); err != nil {
		s.logger.Error("reengage: mark sent", "follow_up_id", n.ID.String(), "error", err)
	}
	s.bumpFollowUpCount(ctx, n)
	s.metrics.NudgeSent(n.TenantID)
	return true
}

func (s *Scheduler) release(ctx context.Context, n *Nudge) {
	if err := s.store.Release(ctx, n.ID); err != nil {
		s.logger.Error("reengage: release claim", "follow_up_id", n.ID.String(), "error", err)
	}
}

// bumpFollowUpCount records the send on the lead. A version conflict means
// the user came back mid-send; their turn wins and the count stays theirs.
func (s *Scheduler) bumpFollowUpCount(ctx context.Context, n *Nudge) {
	lead, err := s.leads.Get(ctx, n.TenantID, n.LeadID)
	if err != nil {
		s.logger.Warn("reengage: load lead after send", "lead_id", n.LeadID.String(), "error", err)
		return
	}
	lead.FollowUpCount++
	lead.UpdatedAt = s.now().UTC()
	if _, err := s.leads.Upsert(ctx, lead); err != nil {
		if errors.Is(err, leads.ErrVersionConflict) {
			return
		}
		s.logger.Warn("reengage: record follow-up count", "lead_id", n.LeadID.String(), "error", err)
	}
}
