package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/zonemap/internal/domain"
)

// QuotaAction defines behavior when the query quota is exceeded.
type QuotaAction string

const (
	// QuotaActionWarn logs a warning but allows the request.
	QuotaActionWarn QuotaAction = "warn"
	// QuotaActionReject blocks the request; the session shows the failure message.
	QuotaActionReject QuotaAction = "reject"
)

// QuotaTracker counts remote queries per UTC day and month, with optional persistence.
// Check is in-memory only; Record updates memory first, then writes behind to the store.
type QuotaTracker struct {
	mu             sync.Mutex
	dailyUsed      int64
	monthlyUsed    int64
	dailyLimit     int64
	monthlyLimit   int64
	action         QuotaAction
	provider       string
	lastDayReset   time.Time
	lastMonthReset time.Time
	now            func() time.Time
	store          QuotaStore
	logger         *zap.Logger
}

// NewQuotaTracker creates a tracker. A zero limit means unlimited.
func NewQuotaTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action QuotaAction, logger *zap.Logger,
) *QuotaTracker {
	q := &QuotaTracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		provider:     provider,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
	now := q.now()
	q.lastDayReset = truncateToDay(now)
	q.lastMonthReset = truncateToMonth(now)
	return q
}

// WithStore attaches a persistence store and loads current counters.
func (q *QuotaTracker) WithStore(ctx context.Context, store QuotaStore) *QuotaTracker {
	q.store = store

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if val, err := store.Get(ctx, q.dailyKey(now)); err == nil {
		q.dailyUsed = val
	} else {
		q.logger.Warn("Failed to load daily quota from store", zap.Error(err))
	}
	if val, err := store.Get(ctx, q.monthlyKey(now)); err == nil {
		q.monthlyUsed = val
	} else {
		q.logger.Warn("Failed to load monthly quota from store", zap.Error(err))
	}

	q.logger.Info("Query quota loaded from store",
		zap.String("provider", q.provider),
		zap.Int64("daily_used", q.dailyUsed),
		zap.Int64("monthly_used", q.monthlyUsed),
	)
	return q
}

func (q *QuotaTracker) dailyKey(t time.Time) string {
	return fmt.Sprintf("%squota:%s:daily:%s", domain.KeyPrefix, q.provider, t.Format("2006-01-02"))
}

func (q *QuotaTracker) monthlyKey(t time.Time) string {
	return fmt.Sprintf("%squota:%s:monthly:%s", domain.KeyPrefix, q.provider, t.Format("2006-01"))
}

// Check verifies the quota allows one more query.
func (q *QuotaTracker) Check(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.resetIfNeeded()

	dailyExceeded := q.dailyLimit > 0 && q.dailyUsed >= q.dailyLimit
	monthlyExceeded := q.monthlyLimit > 0 && q.monthlyUsed >= q.monthlyLimit
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if q.action == QuotaActionReject {
		return domain.ErrQueryQuotaExceeded
	}

	q.logger.Warn("Query quota exceeded",
		zap.String("provider", q.provider),
		zap.Int64("daily_used", q.dailyUsed),
		zap.Int64("daily_limit", q.dailyLimit),
		zap.Int64("monthly_used", q.monthlyUsed),
		zap.Int64("monthly_limit", q.monthlyLimit),
	)
	return nil
}

// Record counts n issued queries.
func (q *QuotaTracker) Record(n int64) {
	q.mu.Lock()
	q.resetIfNeeded()
	q.dailyUsed += n
	q.monthlyUsed += n
	store := q.store
	now := q.now()
	q.mu.Unlock()

	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.IncrBy(ctx, q.dailyKey(now), n); err != nil {
		q.logger.Warn("Failed to persist daily quota", zap.Error(err))
	}
	if err := store.IncrBy(ctx, q.monthlyKey(now), n); err != nil {
		q.logger.Warn("Failed to persist monthly quota", zap.Error(err))
	}
}

// RemainingDaily returns queries left today (-1 if unlimited).
func (q *QuotaTracker) RemainingDaily() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.resetIfNeeded()
	return remaining(q.dailyLimit, q.dailyUsed)
}

// RemainingMonthly returns queries left this month (-1 if unlimited).
func (q *QuotaTracker) RemainingMonthly() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.resetIfNeeded()
	return remaining(q.monthlyLimit, q.monthlyUsed)
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// resetIfNeeded zeroes counters when the day or month rolls over.
func (q *QuotaTracker) resetIfNeeded() {
	now := q.now()
	today := truncateToDay(now)
	thisMonth := truncateToMonth(now)

	if today.After(q.lastDayReset) {
		q.dailyUsed = 0
		q.lastDayReset = today
	}
	if thisMonth.After(q.lastMonthReset) {
		q.monthlyUsed = 0
		q.lastMonthReset = thisMonth
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
