// Package storetest provides a minimal in-memory store.PurchaseStore for
// engine unit tests (predict, tips, deals), grounded on the same
// "hand-rolled fake over the real interface" style the teacher uses for
// its own in-memory job store equivalents elsewhere in the pack
// (dvloznov-finance-tracker/internal/jobs/inmemory).
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brightledger/finance-analytics-core/internal/capability"
	"github.com/brightledger/finance-analytics-core/internal/errs"
	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/store"
)

// FakeStore is a PurchaseStore backed by a plain slice; every method does
// a linear scan, which is fine at test scale.
type FakeStore struct {
	Items []model.PurchaseItem
}

func (f *FakeStore) ListItems(_ context.Context, params store.ListItemsParams) ([]model.PurchaseItem, error) {
	out := make([]model.PurchaseItem, 0)
	if params.Limit == 0 {
		return out, nil
	}
	for _, it := range f.Items {
		if it.Status != model.StatusActive || it.UserID != params.UserID {
			continue
		}
		if params.Since != nil && it.Ts.Before(*params.Since) {
			continue
		}
		if params.Until != nil && !it.Ts.Before(*params.Until) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ts.After(out[j].Ts) })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (f *FakeStore) ListItemsByCategory(_ context.Context, userID, category string, since, until *time.Time) ([]model.PurchaseItem, error) {
	out := make([]model.PurchaseItem, 0)
	for _, it := range f.Items {
		if it.Status != model.StatusActive || it.UserID != userID || !strings.EqualFold(it.Category, category) {
			continue
		}
		if since != nil && it.Ts.Before(*since) {
			continue
		}
		if until != nil && !it.Ts.Before(*until) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (f *FakeStore) TopItemsByPrice(_ context.Context, userID string, weekStart time.Time, n int) ([]model.PurchaseItem, error) {
	weekEnd := weekStart.AddDate(0, 0, 7)
	out := make([]model.PurchaseItem, 0)
	for _, it := range f.Items {
		if it.Status != model.StatusActive || it.UserID != userID {
			continue
		}
		if it.Ts.Before(weekStart) || !it.Ts.Before(weekEnd) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Total(), out[j].Total()
		if ti != tj {
			return ti > tj
		}
		if !out[i].Ts.Equal(out[j].Ts) {
			return out[i].Ts.After(out[j].Ts)
		}
		return out[i].ItemID < out[j].ItemID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *FakeStore) ActiveUsersForWeek(_ context.Context, weekStart time.Time) ([]string, error) {
	weekEnd := weekStart.AddDate(0, 0, 7)
	seen := map[string]bool{}
	out := make([]string, 0)
	for _, it := range f.Items {
		if it.Status != model.StatusActive || it.Ts.Before(weekStart) || !it.Ts.Before(weekEnd) {
			continue
		}
		if !seen[it.UserID] {
			seen[it.UserID] = true
			out = append(out, it.UserID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *FakeStore) SetNeedWant(_ context.Context, itemID string, label model.NeedWant) (model.PurchaseItem, error) {
	for i := range f.Items {
		if f.Items[i].ItemID != itemID {
			continue
		}
		it := &f.Items[i]
		if it.UserNeedwant == model.Unset {
			it.UserNeedwant = label
			return *it, nil
		}
		if it.UserNeedwant == label {
			return *it, nil
		}
		return model.PurchaseItem{}, errs.New(errs.BadRequest, "item already labelled with a different needwant")
	}
	return model.PurchaseItem{}, errs.New(errs.NotFound, "item not found")
}

func (f *FakeStore) Ping(context.Context) error { return nil }
func (f *FakeStore) Close() error               { return nil }

// FakeReportStore is an in-memory store.ReportStore keyed on
// (user_id, week_start), mirroring the merge-on-upsert contract of the real
// backends without any persistence.
type FakeReportStore struct {
	mu      sync.Mutex
	reports map[string]model.WeeklyReport
	leases  map[string]bool
}

func NewFakeReportStore() *FakeReportStore {
	return &FakeReportStore{reports: map[string]model.WeeklyReport{}, leases: map[string]bool{}}
}

func reportKey(userID string, weekStart time.Time) string {
	return userID + "|" + weekStart.UTC().Format("2006-01-02")
}

func (f *FakeReportStore) Upsert(_ context.Context, report model.WeeklyReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := reportKey(report.UserID, report.WeekStart)
	if existing, ok := f.reports[k]; ok {
		report.CreatedAt = existing.CreatedAt
	}
	report.UpdatedAt = time.Now().UTC()
	f.reports[k] = report
	return nil
}

func (f *FakeReportStore) Get(_ context.Context, userID string, weekStart *time.Time) (model.WeeklyReport, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if weekStart != nil {
		r, ok := f.reports[reportKey(userID, *weekStart)]
		return r, ok, nil
	}
	var latest model.WeeklyReport
	found := false
	for _, r := range f.reports {
		if r.UserID != userID {
			continue
		}
		if !found || r.WeekStart.After(latest.WeekStart) {
			latest = r
			found = true
		}
	}
	return latest, found, nil
}

func (f *FakeReportStore) ListHistory(_ context.Context, userID string, limit int) ([]model.WeeklyReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.WeeklyReport, 0)
	for _, r := range f.reports {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.After(out[j].WeekStart) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeReportStore) AcquireWeeklyLease(_ context.Context, userID string, weekStart time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := reportKey(userID, weekStart)
	if f.leases[k] {
		return false, nil
	}
	f.leases[k] = true
	return true, nil
}

func (f *FakeReportStore) ReleaseWeeklyLease(_ context.Context, userID string, weekStart time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.leases, reportKey(userID, weekStart))
	return nil
}

func (f *FakeReportStore) Close() error { return nil }

// FakeSearch is an in-memory capability.Search whose responses are
// scripted ahead of time, one per call; once calls outnumber the script it
// keeps returning the last scripted response, and with no responses at all
// it returns empty text and no error.
type FakeSearch struct {
	mu        sync.Mutex
	Responses []FakeSearchResponse
	Calls     int
}

type FakeSearchResponse struct {
	Text        string
	SearchCalls int
	Err         error
	Chunks      []string
}

func (f *FakeSearch) Run(ctx context.Context, _, _ string, onChunk func(capability.Chunk)) (string, int, error) {
	f.mu.Lock()
	i := f.Calls
	if i >= len(f.Responses) {
		i = len(f.Responses) - 1
	}
	f.Calls++
	f.mu.Unlock()
	if i < 0 {
		return "", 0, nil
	}
	resp := f.Responses[i]
	for _, c := range resp.Chunks {
		if onChunk != nil {
			onChunk(capability.Chunk{Text: c})
		}
	}
	if resp.Err != nil {
		return "", resp.SearchCalls, resp.Err
	}
	return resp.Text, resp.SearchCalls, nil
}
