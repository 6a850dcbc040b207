// Package store defines the typed query surface the engines read from (C1,
// C7) and the NeedWant feedback operation (C9). Two backends satisfy
// PurchaseStore and ReportStore: internal/store/sqlite for local
// development, the CLI, and tests, and internal/store/bigquery for the
// reference "columnar warehouse clustered by (user_id, ts)" deployment
// target named in §4.1. Callers never know which backend they're talking
// to.
package store

import (
	"context"
	"time"

	"github.com/brightledger/finance-analytics-core/internal/model"
)

// UnboundedLimit is passed as ListItemsParams.Limit by callers that want
// every matching item, not just the top N — the zero value means "return
// no items" (§8 testable property 10), so "no limit" needs its own
// sentinel rather than overloading the zero value.
const UnboundedLimit = -1

// ListItemsParams bounds a list_items query (§4.1).
type ListItemsParams struct {
	UserID string
	Since  *time.Time
	Until  *time.Time
	Limit  int // 0 means "return no items"; UnboundedLimit (or any negative) means "no explicit limit". The facade enforces [0,100].
}

// PurchaseStore is the typed query surface over item-level purchase
// records (C1). Every method filters status=active implicitly (invariant
//1) and is parameterised — no caller may concatenate user input into query
// text.
type PurchaseStore interface {
	// ListItems returns items for userID ordered by ts desc, bounded by
	// since/until/limit.
	ListItems(ctx context.Context, params ListItemsParams) ([]model.PurchaseItem, error)

	// ListItemsByCategory returns active items for userID in category,
	// optionally bounded by since/until.
	ListItemsByCategory(ctx context.Context, userID, category string, since, until *time.Time) ([]model.PurchaseItem, error)

	// TopItemsByPrice returns the n highest price×qty items with
	// ts ∈ [weekStart, weekStart+7d), ties broken by ts desc then item_id
	// asc.
	TopItemsByPrice(ctx context.Context, userID string, weekStart time.Time, n int) ([]model.PurchaseItem, error)

	// ActiveUsersForWeek returns distinct user IDs with at least one
	// active item in the week starting weekStart.
	ActiveUsersForWeek(ctx context.Context, weekStart time.Time) ([]string, error)

	// SetNeedWant implements C9: validates label, then applies the
	// one-time-write rule of §4.9.
	SetNeedWant(ctx context.Context, itemID string, label model.NeedWant) (model.PurchaseItem, error)

	// Ping checks store connectivity for /health.
	Ping(ctx context.Context) error

	Close() error
}

// ReportStore is the upsert/read surface for WeeklyReport (C7).
type ReportStore interface {
	// Upsert merges on (user_id, week_start): preserves created_at, sets
	// updated_at to now. Idempotent under retry.
	Upsert(ctx context.Context, report model.WeeklyReport) error

	// Get returns the exact week, or the most recent report if weekStart
	// is nil. Returns ok=false if none exists.
	Get(ctx context.Context, userID string, weekStart *time.Time) (report model.WeeklyReport, ok bool, err error)

	// ListHistory returns reports ordered by week_start desc, bounded by
	// limit.
	ListHistory(ctx context.Context, userID string, limit int) ([]model.WeeklyReport, error)

	// AcquireWeeklyLease attempts a best-effort advisory lock for
	// (userID, weekStart) so a batch run is never scheduled twice for the
	// same week concurrently (§4.6.3, §5). Returns true if the lease was
	// acquired.
	AcquireWeeklyLease(ctx context.Context, userID string, weekStart time.Time) (bool, error)

	// ReleaseWeeklyLease releases a lease acquired by AcquireWeeklyLease.
	ReleaseWeeklyLease(ctx context.Context, userID string, weekStart time.Time) error

	Close() error
}
