package aggregate

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/brightledger/finance-analytics-core/internal/model"
)

// WeekSummaryCache holds CategoryWeekSummaries results keyed by (user_id,
// week_start), using github.com/dgraph-io/ristretto — already a teacher
// dependency (waqaskhan137-nim-ai-finance-assistant's go.mod). It is a
// plain Get/Set cache: a miss returns nothing and the caller computes and
// Sets the value; no engine or handler in this module uses it. A value
// read back is the slice that was Set, so idempotence is unaffected.
type WeekSummaryCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewWeekSummaryCache builds a cache sized for a few thousand
// (user, week) entries, matching ristretto's recommended NumCounters
// being ~10x the expected item count.
func NewWeekSummaryCache(ttl time.Duration) (*WeekSummaryCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 26, // 64 MiB
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("new ristretto cache: %w", err)
	}
	return &WeekSummaryCache{cache: c, ttl: ttl}, nil
}

func cacheKey(userID string, weekStart time.Time) string {
	return userID + "|" + weekStart.UTC().Format("2006-01-02")
}

// Get returns the cached summaries for (userID, weekStart), if present.
func (c *WeekSummaryCache) Get(userID string, weekStart time.Time) ([]model.CategoryWeekSummary, bool) {
	v, ok := c.cache.Get(cacheKey(userID, weekStart))
	if !ok {
		return nil, false
	}
	summaries, ok := v.([]model.CategoryWeekSummary)
	return summaries, ok
}

// Set populates the cache for (userID, weekStart) with a TTL, using the
// slice length as the cost estimate (ristretto's SetWithTTL signature).
func (c *WeekSummaryCache) Set(userID string, weekStart time.Time, summaries []model.CategoryWeekSummary) {
	cost := int64(len(summaries)) + 1
	c.cache.SetWithTTL(cacheKey(userID, weekStart), summaries, cost, c.ttl)
}

// Wait blocks until all pending Set calls have been applied. Ristretto
// applies writes through an internal buffer; callers that need a
// just-written value to be immediately visible (batch jobs, tests) call
// this after Set.
func (c *WeekSummaryCache) Wait() {
	c.cache.Wait()
}
