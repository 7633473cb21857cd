package webhook

import (
	"context"
	"time"

	"go.uber.org/zap"

	"deposit-core/pkg/cache"
	"deposit-core/pkg/logger"
)

// AppliedIndex remembers recently applied event ids. It only short-cuts
// replays; the unique index on webhook_events decides.
type AppliedIndex interface {
	Seen(ctx context.Context, eventID string) bool
	Mark(ctx context.Context, eventID string)
}

// CacheIndex keeps applied ids in a cache.Cache (memory or Redis).
type CacheIndex struct {
	c   cache.Cache
	ttl time.Duration
}

func NewCacheIndex(c cache.Cache, ttl time.Duration) *CacheIndex {
	return &CacheIndex{c: c, ttl: ttl}
}

func appliedKey(eventID string) string {
	return "webhook:applied:" + eventID
}

func (i *CacheIndex) Seen(ctx context.Context, eventID string) bool {
	var ok bool
	err := i.c.Get(ctx, appliedKey(eventID), &ok)
	return err == nil && ok
}

func (i *CacheIndex) Mark(ctx context.Context, eventID string) {
	if err := i.c.Set(ctx, appliedKey(eventID), true, i.ttl); err != nil {
		logger.Warn("mark webhook applied", zap.String("event_id", eventID), zap.Error(err))
	}
}

type noIndex struct{}

func (noIndex) Seen(context.Context, string) bool { return false }
func (noIndex) Mark(context.Context, string)      {}
