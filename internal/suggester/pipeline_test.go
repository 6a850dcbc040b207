package suggester

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightledger/finance-analytics-core/internal/capability"
	"github.com/brightledger/finance-analytics-core/internal/errs"
	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/storetest"
)

func weeklyItem(userID string, ts time.Time, price float64) model.PurchaseItem {
	return model.NewPurchaseItem("p_"+userID, userID, "Merchant", "Shopping", "", "Widget", price, ts)
}

func newEngine(items []model.PurchaseItem, search capability.Search) (*Engine, *storetest.FakeReportStore) {
	reports := storetest.NewFakeReportStore()
	purchases := &storetest.FakeStore{Items: items}
	e := New(purchases, reports, search, Config{TopN: 20, MinSavingsUSD: 0, SearchModel: "claude", MaxFindings: 20})
	return e, reports
}

func TestRun_ZeroItemsPersistsEmptyReportWithoutSearching(t *testing.T) {
	weekStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	search := &storetest.FakeSearch{}
	e, reports := newEngine(nil, search)

	result := e.Run(context.Background(), "u1", weekStart, false, nil)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 0, search.Calls)

	stored, ok, err := reports.Get(context.Background(), "u1", &weekStart)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, stored.ItemsAnalyzed)
}

func TestRun_HappyPathParsesAndPersistsFindings(t *testing.T) {
	weekStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	items := []model.PurchaseItem{weeklyItem("u1", weekStart.Add(time.Hour), 50.0)}
	search := &storetest.FakeSearch{Responses: []storetest.FakeSearchResponse{
		{Text: "[" + validFinding + "]", SearchCalls: 2, Chunks: []string{"searching", "...done"}},
	}}
	e, reports := newEngine(items, search)

	var gotEvents []EventKind
	result := e.Run(context.Background(), "u1", weekStart, false, func(ev Event) {
		gotEvents = append(gotEvents, ev.Kind)
	})

	require.Equal(t, StateDone, result.State)
	assert.Equal(t, 1, result.Report.ItemsWithAlternatives)
	assert.Equal(t, 2, result.SearchCalls)
	assert.Contains(t, gotEvents, EventStart)
	assert.Contains(t, gotEvents, EventItemsLoaded)
	assert.Contains(t, gotEvents, EventFound)
	assert.Contains(t, gotEvents, EventComplete)

	stored, ok, err := reports.Get(context.Background(), "u1", &weekStart)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, len(stored.Findings))
}

func TestRun_ParseErrorIsRecordedNotThrown(t *testing.T) {
	weekStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	items := []model.PurchaseItem{weeklyItem("u1", weekStart.Add(time.Hour), 50.0)}
	search := &storetest.FakeSearch{Responses: []storetest.FakeSearchResponse{
		{Text: "not parseable at all"},
	}}
	e, reports := newEngine(items, search)

	result := e.Run(context.Background(), "u1", weekStart, false, nil)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, errs.ParseError, result.ErrorKind)
	assert.NotEmpty(t, result.Report.Notes)

	stored, ok, err := reports.Get(context.Background(), "u1", &weekStart)
	require.NoError(t, err)
	require.True(t, ok, "a parse error still persists a report")
	assert.Equal(t, 0, stored.ItemsWithAlternatives)
}

func TestRun_CapabilityQuotaIsTerminalWithNoRetry(t *testing.T) {
	weekStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	items := []model.PurchaseItem{weeklyItem("u1", weekStart.Add(time.Hour), 50.0)}
	search := &storetest.FakeSearch{Responses: []storetest.FakeSearchResponse{
		{Err: errs.New(errs.CapabilityQuota, "quota exceeded")},
	}}
	e, _ := newEngine(items, search)

	result := e.Run(context.Background(), "u1", weekStart, false, nil)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, errs.CapabilityQuota, result.ErrorKind)
	assert.Equal(t, 1, search.Calls, "capability_quota must not be retried")
}

func TestRun_CapabilityUnavailableIsRetriedOnce(t *testing.T) {
	weekStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	items := []model.PurchaseItem{weeklyItem("u1", weekStart.Add(time.Hour), 50.0)}
	search := &storetest.FakeSearch{Responses: []storetest.FakeSearchResponse{
		{Err: errs.New(errs.CapabilityUnavailable, "transient")},
		{Text: "[" + validFinding + "]", SearchCalls: 1},
	}}
	e, _ := newEngine(items, search)

	result := e.Run(context.Background(), "u1", weekStart, false, nil)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 2, search.Calls)
}

func TestRun_DryRunSkipsPersist(t *testing.T) {
	weekStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	items := []model.PurchaseItem{weeklyItem("u1", weekStart.Add(time.Hour), 50.0)}
	search := &storetest.FakeSearch{Responses: []storetest.FakeSearchResponse{
		{Text: "[" + validFinding + "]", SearchCalls: 1},
	}}
	e, reports := newEngine(items, search)

	result := e.Run(context.Background(), "u1", weekStart, true, nil)
	assert.Equal(t, StateSkipping, result.State)
	assert.True(t, result.Skipped)

	_, ok, err := reports.Get(context.Background(), "u1", &weekStart)
	require.NoError(t, err)
	assert.False(t, ok, "dry-run must not persist a report")
}

func TestRun_DeadlineExceededMapsToTimeout(t *testing.T) {
	weekStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	items := []model.PurchaseItem{weeklyItem("u1", weekStart.Add(time.Hour), 50.0)}
	search := &storetest.FakeSearch{Responses: []storetest.FakeSearchResponse{
		{Err: errs.Wrap(errs.Cancelled, "cancelled", context.DeadlineExceeded)},
	}}
	e, _ := newEngine(items, search)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	result := e.Run(ctx, "u1", weekStart, false, nil)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, errs.Timeout, result.ErrorKind)
}

func TestRunBatch_PerUserFailureIsolation(t *testing.T) {
	weekStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	items := []model.PurchaseItem{
		weeklyItem("good_user", weekStart.Add(time.Hour), 50.0),
		weeklyItem("bad_user", weekStart.Add(time.Hour), 50.0),
	}
	search := &storetest.FakeSearch{Responses: []storetest.FakeSearchResponse{
		{Text: "[" + validFinding + "]", SearchCalls: 1},
		{Err: errs.New(errs.CapabilityQuota, "quota exceeded")},
	}}
	purchases := &storetest.FakeStore{Items: items}
	reports := storetest.NewFakeReportStore()
	e := New(purchases, reports, search, Config{TopN: 20, SearchModel: "claude", MaxFindings: 20})

	log, err := e.RunBatch(context.Background(), BatchOptions{WeekStart: weekStart, Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, log.TotalUsers)
	assert.Equal(t, 1, log.Successful)
	assert.Equal(t, 1, log.Failed)
}
