package suggester

import (
	"context"
	"time"

	"github.com/brightledger/finance-analytics-core/internal/capability"
	"github.com/brightledger/finance-analytics-core/internal/errs"
	"github.com/brightledger/finance-analytics-core/internal/model"
)

// Failure-model constants (§4.6.5).
const (
	storeRetries      = 3
	storeBackoffBase  = 200 * time.Millisecond
	storeBackoffCap   = 2 * time.Second
	capabilityRetries = 1
	persistRetries    = 1
)

// backoff returns the exponential delay for attempt (0-based), capped.
func backoff(attempt int, base, cap time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		d = cap
	}
	return d
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// selectWithRetry is step 1: store_unavailable is retried up to
// storeRetries times with exponential backoff (§4.6.5); every other error
// kind is terminal.
func (e *Engine) selectWithRetry(ctx context.Context, userID string, weekStart time.Time) ([]model.PurchaseItem, error) {
	n := e.Config.TopN
	if n <= 0 {
		n = 20
	}
	var lastErr error
	for attempt := 0; attempt <= storeRetries; attempt++ {
		items, err := e.Purchases.TopItemsByPrice(ctx, userID, weekStart, n)
		if err == nil {
			return items, nil
		}
		lastErr = err
		if errs.KindOf(err) != errs.StoreUnavailable || attempt == storeRetries {
			return nil, err
		}
		if sleepErr := sleep(ctx, backoff(attempt, storeBackoffBase, storeBackoffCap)); sleepErr != nil {
			return nil, errs.Wrap(errs.Cancelled, "select items cancelled during backoff", sleepErr)
		}
	}
	return nil, lastErr
}

// searchWithRetry is step 4: capability_unavailable gets exactly one
// retry; capability_quota is terminal with no retry (§4.6.5). Each call
// has its own 30s deadline; running past it counts as
// capability_unavailable.
func (e *Engine) searchWithRetry(ctx context.Context, prompt string, onChunk func(capability.Chunk)) (string, int, error) {
	const callTimeout = 30 * time.Second
	modelName := e.Config.SearchModel
	if modelName == "" {
		modelName = "claude-sonnet-4-5"
	}
	var lastErr error
	for attempt := 0; attempt <= capabilityRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		final, calls, err := e.Search.Run(callCtx, modelName, prompt, onChunk)
		callTimedOut := callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()
		if err == nil {
			return final, calls, nil
		}
		if callTimedOut {
			err = errs.Wrap(errs.CapabilityUnavailable, "web search call exceeded its deadline", err)
		}
		lastErr = err
		if errs.KindOf(err) != errs.CapabilityUnavailable || attempt == capabilityRetries {
			return "", calls, err
		}
	}
	return "", 0, lastErr
}

// upsertWithRetry is step 7: persist_conflict is retried once before
// failing (§4.6.5). The retry re-sends the same report without re-reading
// the stored row first; Upsert is a merge keyed on (user_id, week_start),
// so repeating it is safe.
func (e *Engine) upsertWithRetry(ctx context.Context, report model.WeeklyReport) error {
	var lastErr error
	for attempt := 0; attempt <= persistRetries; attempt++ {
		err := e.Reports.Upsert(ctx, report)
		if err == nil {
			return nil
		}
		lastErr = err
		if errs.KindOf(err) != errs.PersistConflict || attempt == persistRetries {
			return err
		}
	}
	return lastErr
}
