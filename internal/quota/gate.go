// Package quota enforces the per-user usage gate in front of billable
// inference operations: monthly free-tier quota, free-tier quiz question
// ceiling, and the lazy 30-day usage reset.
package quota

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/edusummarizer/hub/internal/api"
	"github.com/edusummarizer/hub/internal/metrics"
	"github.com/edusummarizer/hub/internal/users"
)

const (
	// FreeMonthlyLimit is the number of metered calls a free user gets per
	// rolling 30-day window.
	FreeMonthlyLimit = 10

	// FreeQuizQuestionLimit caps quiz size for free users.
	FreeQuizQuestionLimit = 3

	// ResetWindow is the rolling window after which usage counters reset,
	// lazily on the next request.
	ResetWindow = 30 * 24 * time.Hour
)

// Store is the persistence surface the gate needs. users.Repository
// satisfies it.
type Store interface {
	ResetUsageIfStale(ctx context.Context, id uuid.UUID, window time.Duration) (bool, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
}

// Gate checks and records usage. There is deliberately no locking around
// check/record: two concurrent requests can both pass the quota check before
// either increment lands, allowing transient over-quota usage.
type Gate struct {
	store Store
}

func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// Check runs the lazy reset and the free-tier quota check. The reset is
// persisted even when the request is subsequently denied. Denial never
// mutates the usage counter.
func (g *Gate) Check(ctx context.Context, user *users.User) error {
	g.resetIfStale(ctx, user)

	if user.Tier == users.TierFree && user.UsageCount >= FreeMonthlyLimit {
		metrics.QuotaDenialsTotal.WithLabelValues("quota_exceeded").Inc()
		return api.ErrQuotaExceeded
	}
	return nil
}

// CheckQuestionCount enforces the free-tier quiz ceiling. Premium users are
// never denied on this basis.
func (g *Gate) CheckQuestionCount(ctx context.Context, user *users.User, numQuestions int) error {
	g.resetIfStale(ctx, user)

	if user.Tier == users.TierFree && numQuestions > FreeQuizQuestionLimit {
		metrics.QuotaDenialsTotal.WithLabelValues("feature_restricted").Inc()
		return api.ErrFeatureRestricted
	}
	return nil
}

// RecordUse adds one metered call. Callers invoke it only after a
// successful, non-empty upstream result; a failed persist here is logged
// and swallowed, the client response stays successful.
func (g *Gate) RecordUse(ctx context.Context, user *users.User) {
	if err := g.store.IncrementUsage(ctx, user.ID); err != nil {
		slog.Warn("usage gate: increment failed", "user_id", user.ID, "error", err)
		return
	}
	user.UsageCount++
}

func (g *Gate) resetIfStale(ctx context.Context, user *users.User) {
	if time.Since(user.LastReset) < ResetWindow {
		return
	}
	reset, err := g.store.ResetUsageIfStale(ctx, user.ID, ResetWindow)
	if err != nil {
		slog.Warn("usage gate: reset check failed", "user_id", user.ID, "error", err)
		return
	}
	if reset {
		user.UsageCount = 0
		user.LastReset = time.Now()
	}
}
