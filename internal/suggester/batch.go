package suggester

import (
	"context"
	"sync"
	"time"

	"github.com/brightledger/finance-analytics-core/internal/errs"
)

// BatchOptions configures one batch run (§4.6.3).
type BatchOptions struct {
	WeekStart   time.Time
	UserID      string // non-empty restricts the run to a single user
	Concurrency int    // default 10
	DryRun      bool
}

// JobLog is the shape written to stdout at the end of a batch run
// (§4.6.3).
type JobLog struct {
	JobAt             time.Time `json:"job_at"`
	WeekStart         string    `json:"week_start"`
	TotalUsers        int       `json:"total_users"`
	Successful        int       `json:"successful"`
	Failed            int       `json:"failed"`
	FailedUsers       []string  `json:"failed_users"`
	ItemsAnalyzed     int       `json:"items_analyzed"`
	AlternativesFound int       `json:"alternatives_found"`
	TotalSavings      float64   `json:"total_savings"`
	McpCallsMade      int       `json:"mcp_calls_made"`
	ProcessingTimeMs  int64     `json:"processing_time_ms"`
}

// RunBatch drives the batch entry point of §4.6.3: resolve the user set
// (ActiveUsersForWeek, or a single user), then run the core pipeline for
// each user over a bounded worker pool, with per-user failure isolation —
// one user's failure never aborts the run — and a best-effort lease so the
// same (user, week) is never processed twice concurrently. Grounded on
// dvloznov-finance-tracker/internal/jobs/inmemory/queue.go's buffered
// channel semaphore idiom.
func (e *Engine) RunBatch(ctx context.Context, opts BatchOptions) (JobLog, error) {
	start := time.Now()
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	var userIDs []string
	if opts.UserID != "" {
		userIDs = []string{opts.UserID}
	} else {
		ids, err := e.Purchases.ActiveUsersForWeek(ctx, opts.WeekStart)
		if err != nil {
			return JobLog{}, err
		}
		userIDs = ids
	}

	log := JobLog{JobAt: start, WeekStart: opts.WeekStart.Format("2006-01-02"), TotalUsers: len(userIDs)}

	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, userID := range userIDs {
		userID := userID
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			e.runOneBatchUser(ctx, userID, opts, &log, &mu)
		}()
	}
	wg.Wait()

	log.ProcessingTimeMs = time.Since(start).Milliseconds()
	return log, nil
}

func (e *Engine) runOneBatchUser(ctx context.Context, userID string, opts BatchOptions, log *JobLog, mu *sync.Mutex) {
	acquired, err := e.Reports.AcquireWeeklyLease(ctx, userID, opts.WeekStart)
	if err != nil {
		mu.Lock()
		log.Failed++
		log.FailedUsers = append(log.FailedUsers, userID)
		mu.Unlock()
		return
	}
	if !acquired {
		// Another worker (or another process entirely) already holds this
		// week's lease; skip without counting it as a failure.
		return
	}
	defer func() {
		_ = e.Reports.ReleaseWeeklyLease(ctx, userID, opts.WeekStart)
	}()

	result := e.Run(ctx, userID, opts.WeekStart, opts.DryRun, nil)

	mu.Lock()
	defer mu.Unlock()
	if result.State == StateFailed {
		log.Failed++
		log.FailedUsers = append(log.FailedUsers, userID)
		return
	}
	log.Successful++
	log.ItemsAnalyzed += result.Report.ItemsAnalyzed
	log.AlternativesFound += result.Report.ItemsWithAlternatives
	log.TotalSavings += result.Report.TotalSavings
	log.McpCallsMade += result.SearchCalls
}

// IsTerminal reports whether kind should end the batch attempt for a
// single user without further retry at this layer (capability_quota and
// bad_request, per §4.6.5 and §7).
func IsTerminal(kind errs.Kind) bool {
	return kind == errs.CapabilityQuota || kind == errs.BadRequest
}
