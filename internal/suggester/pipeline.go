// Package suggester implements the Weekly Suggester (C6): the core
// pipeline shared by the batch job and the streaming HTTP handler, the
// state machine of §4.6.2, and the failure model of §4.6.5. The pipeline
// itself is grounded on
// original_source/backend/src/services/weekly_suggester.py's
// generate_weekly_suggestions; the bounded worker pool and retry/backoff
// idiom it uses in batch mode is grounded on
// dvloznov-finance-tracker/internal/jobs/inmemory/queue.go.
package suggester

import (
	"context"
	"sort"
	"time"

	"github.com/brightledger/finance-analytics-core/internal/capability"
	"github.com/brightledger/finance-analytics-core/internal/errs"
	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/store"
)

// State is one node of the per-(user, week) state machine of §4.6.2.
type State string

const (
	StateIdle       State = "idle"
	StateSelecting  State = "selecting"
	StateSearching  State = "searching"
	StateParsing    State = "parsing"
	StatePersisting State = "persisting"
	StateSkipping   State = "skipping"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Config holds the tunables of §6.6 relevant to the Weekly Suggester.
type Config struct {
	TopN          int
	MinSavingsUSD float64
	SearchModel   string
	MaxFindings   int
}

// Engine is the Weekly Suggester.
type Engine struct {
	Purchases store.PurchaseStore
	Reports   store.ReportStore
	Search    capability.Search
	Config    Config
}

func New(purchases store.PurchaseStore, reports store.ReportStore, search capability.Search, cfg Config) *Engine {
	return &Engine{Purchases: purchases, Reports: reports, Search: search, Config: cfg}
}

// Result is the outcome of one core-pipeline run, used by both the batch
// job log and tests.
type Result struct {
	Report       model.WeeklyReport
	State        State
	SearchCalls  int
	ErrorKind    errs.Kind
	Skipped      bool // true if dry-run (state=skipping rather than persisting)
}

// emitFunc is the streaming hook; nil means "no one is listening" (batch
// mode).
type emitFunc func(Event)

func noopEmit(Event) {}

// Run executes the core pipeline of §4.6.1 for one (userID, weekStart),
// emitting events to emit if non-nil (the streaming mode re-expression of
// §4.6.4). dryRun enters `skipping` instead of `persisting` (step 7).
func (e *Engine) Run(ctx context.Context, userID string, weekStart time.Time, dryRun bool, emit emitFunc) Result {
	if emit == nil {
		emit = noopEmit
	}
	start := time.Now()
	emit(Event{Kind: EventStart, At: start, UserID: userID, WeekStart: weekStart.Format("2006-01-02")})

	// Step 1: select.
	items, err := e.selectWithRetry(ctx, userID, weekStart)
	if err != nil {
		return e.fail(ctx, emit, err)
	}
	if len(items) == 0 {
		report := model.NewWeeklyReport(userID, weekStart)
		if !dryRun {
			if err := e.Reports.Upsert(ctx, report); err != nil {
				return e.fail(ctx, emit, err)
			}
		}
		emit(Event{Kind: EventComplete, ItemsAnalyzed: 0, ItemsWithAlternatives: 0, TotalSavings: 0,
			ProcessingTimeMs: time.Since(start).Milliseconds()})
		return Result{Report: report, State: StateDone}
	}

	itemSummaries := make([]ItemSummary, 0, len(items))
	for _, it := range items {
		itemSummaries = append(itemSummaries, ItemSummary{Name: it.ItemName, Price: it.Total(), Merchant: it.Merchant})
	}
	emit(Event{Kind: EventItemsLoaded, Count: len(items), Items: itemSummaries})

	// Step 2: determine location.
	location := determineLocation(items)

	// Step 3: build prompt.
	prompt := buildPrompt(items, location, e.Config.MinSavingsUSD)

	// Step 4: call web-search capability.
	emit(Event{Kind: EventAnalyzing, Message: "Searching for cheaper alternatives"})
	finalText, searchCalls, err := e.searchWithRetry(ctx, prompt, func(c capability.Chunk) {
		emit(Event{Kind: EventProgress, Chunk: c.Text})
	})
	if err != nil {
		// Both capability_quota (terminal, no retry) and
		// capability_unavailable (already retried once) end the run here;
		// the batch job records the failure and continues with the next
		// user (§4.6.5).
		return e.fail(ctx, emit, err)
	}

	// Step 5: parse.
	maxFindings := e.Config.MaxFindings
	if maxFindings <= 0 {
		maxFindings = 20
	}
	findings, parseErr := parseFindings(finalText, e.Config.MinSavingsUSD, maxFindings)

	report := model.NewWeeklyReport(userID, weekStart)
	report.Location = location
	report.ItemsAnalyzed = len(items)
	report.McpCallsMade = searchCalls
	report.ProcessingTimeMs = time.Since(start).Milliseconds()

	if parseErr != nil {
		// parse_error is recorded, not thrown (§4.6.5, §7): the report is
		// still persisted with zero findings and a notes field.
		report.ItemsWithAlternatives = 0
		report.TotalSavings = 0
		report.Notes = "could not parse alternatives from the search response: " + parseErr.Error()
		if !dryRun {
			if err := e.upsertWithRetry(ctx, report); err != nil {
				return e.fail(ctx, emit, err)
			}
		}
		emit(Event{Kind: EventError, ErrorKind: string(errs.ParseError), Message: report.Notes, At: time.Now()})
		return Result{Report: report, State: StateFailed, SearchCalls: searchCalls, ErrorKind: errs.ParseError}
	}

	for _, f := range findings {
		emit(Event{Kind: EventFound, Finding: toFindingPayload(f)})
	}

	report.Findings = findings
	report.ItemsWithAlternatives = len(findings)
	var totalSavings float64
	for _, f := range findings {
		totalSavings += f.TotalSavings
	}
	report.TotalSavings = totalSavings

	// Step 7: persist, unless dry-run.
	if dryRun {
		emit(Event{Kind: EventComplete, ItemsAnalyzed: report.ItemsAnalyzed, ItemsWithAlternatives: report.ItemsWithAlternatives,
			TotalSavings: report.TotalSavings, ProcessingTimeMs: report.ProcessingTimeMs})
		return Result{Report: report, State: StateSkipping, SearchCalls: searchCalls, Skipped: true}
	}

	if err := e.upsertWithRetry(ctx, report); err != nil {
		return e.fail(ctx, emit, err)
	}

	report.ProcessingTimeMs = time.Since(start).Milliseconds()
	emit(Event{Kind: EventComplete, ItemsAnalyzed: report.ItemsAnalyzed, ItemsWithAlternatives: report.ItemsWithAlternatives,
		TotalSavings: report.TotalSavings, ProcessingTimeMs: report.ProcessingTimeMs})
	return Result{Report: report, State: StateDone, SearchCalls: searchCalls}
}

// fail reports kind as timeout when ctx's deadline (the 60s streaming
// budget, §4.6.4) is what actually ended the run, regardless of which
// underlying call surfaced the cancellation.
func (e *Engine) fail(ctx context.Context, emit emitFunc, err error) Result {
	kind := errs.KindOf(err)
	if ctx.Err() == context.DeadlineExceeded {
		kind = errs.Timeout
	}
	emit(Event{Kind: EventError, ErrorKind: string(kind), Message: err.Error(), At: time.Now()})
	return Result{State: StateFailed, ErrorKind: kind}
}

func toFindingPayload(f model.Finding) *FindingPayload {
	return &FindingPayload{
		ItemName: f.ItemName, OriginalPrice: f.OriginalPrice, OriginalMerchant: f.OriginalMerchant,
		AlternativeMerchant: f.AlternativeMerchant, AlternativePrice: f.AlternativePrice,
		ShippingCost: f.ShippingCost, TaxEstimate: f.TaxEstimate, TotalLandedCost: f.TotalLandedCost,
		TotalSavings: f.TotalSavings, URL: f.URL, Notes: f.Notes, Channel: string(f.Channel),
		Confidence: f.Confidence,
	}
}

// determineLocation is step 2: the mode of buyer_location across the
// week's items, ties broken by most recent (§4.6.1).
func determineLocation(items []model.PurchaseItem) model.ReportLocation {
	type locKey struct{ city, state, country string }
	counts := map[locKey]int{}
	latest := map[locKey]time.Time{}
	for _, it := range items {
		k := locKey{it.BuyerLocation.City, it.BuyerLocation.State, it.BuyerLocation.Country}
		counts[k]++
		if it.Ts.After(latest[k]) {
			latest[k] = it.Ts
		}
	}

	keys := make([]locKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return latest[keys[i]].After(latest[keys[j]])
	})
	if len(keys) == 0 {
		return model.ReportLocation{}
	}
	best := keys[0]
	return model.ReportLocation{City: best.city, State: best.state, Country: best.country}
}
