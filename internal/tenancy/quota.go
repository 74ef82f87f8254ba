package tenancy

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nestiq/lead-engine/pkg/logging"
)

// QuotaChecker enforces the per-tenant daily cap on scheduler-originated
// outbound messages. User-triggered responses are never counted here.
type QuotaChecker struct {
	redis        *redis.Client
	logger       *logging.Logger
	defaultQuota int
	now          func() time.Time
}

// QuotaResult reports the outcome of a quota reservation.
type QuotaResult struct {
	Allowed      bool
	CurrentCount int64
	MaxAllowed   int
	WindowExpiry time.Time
}

// NewQuotaChecker creates a quota checker. defaultQuota applies when the
// tenant has no quota of its own.
func NewQuotaChecker(redisClient *redis.Client, defaultQuota int, logger *logging.Logger) *QuotaChecker {
	if logger == nil {
		logger = logging.Default()
	}
	return &QuotaChecker{
		redis:        redisClient,
		logger:       logger,
		defaultQuota: defaultQuota,
		now:          time.Now,
	}
}

// Reserve atomically increments the tenant's daily counter and reports
// whether the send is still within quota. The increment and check happen in
// one round trip so concurrent scheduler replicas cannot both slip under the
// cap. Over-quota reservations are not rolled back; the counter resets at
// UTC midnight via key expiry.
func (q *QuotaChecker) Reserve(ctx context.Context, tenant *Tenant) (*QuotaResult, error) {
	max := q.defaultQuota
	if tenant.DailyNudgeQuota > 0 {
		max = tenant.DailyNudgeQuota
	}

	now := q.now().UTC()
	key := fmt.Sprintf("quota:nudge:%s:%s", tenant.ID, now.Format(time.DateOnly))
	expiry := now.Truncate(24 * time.Hour).Add(24 * time.Hour)

	count, err := q.redis.Incr(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("tenancy: quota incr: %w", err)
	}
	if count == 1 {
		// First send of the day sets the window expiry.
		if err := q.redis.ExpireAt(ctx, key, expiry).Err(); err != nil {
			q.logger.Warn("tenancy: quota expiry not set", "tenant_id", tenant.ID, "error", err)
		}
	}

	res := &QuotaResult{
		Allowed:      count <= int64(max),
		CurrentCount: count,
		MaxAllowed:   max,
		WindowExpiry: expiry,
	}
	if !res.Allowed {
		q.logger.Info("tenancy: daily nudge quota exhausted",
			"tenant_id", tenant.ID,
			"count", count,
			"max", max,
		)
	}
	return res, nil
}
