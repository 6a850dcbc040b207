// Package bigquery implements store.PurchaseStore and store.ReportStore over
// a columnar warehouse, in the named-parameter query idiom of
// dvloznov-finance-tracker's internal/infra/bigquery/transactions_ops.go
// (q.Parameters = []bigquery.QueryParameter{...}, no string concatenation
// of user input into query text). This is the reference deployment target
// of §4.1: a table clustered by (user_id, ts).
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/brightledger/finance-analytics-core/internal/errs"
	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/store"
)

const dateLayout = "2006-01-02"

// Store is a BigQuery-backed implementation of store.PurchaseStore and
// store.ReportStore.
type Store struct {
	client    *bigquery.Client
	project   string
	dataset   string
}

// Open creates a BigQuery client scoped to project/dataset. Table creation
// (DDL) is out of scope — the core assumes the logical schema of §3.1 and
// §3.2 already exists (§6.4).
func Open(ctx context.Context, project, dataset string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, errs.Wrap(errs.StoreUnavailable, "open bigquery client", err)
	}
	return &Store{client: client, project: project, dataset: dataset}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Ping(ctx context.Context) error {
	q := s.client.Query(fmt.Sprintf("SELECT 1 FROM `%s.%s.purchase_items` LIMIT 0", s.project, s.dataset))
	if _, err := q.Read(ctx); err != nil {
		return errs.Wrap(errs.StoreUnavailable, "ping bigquery", err)
	}
	return nil
}

func (s *Store) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.project, s.dataset, name)
}

// purchaseItemRow mirrors model.PurchaseItem's bigquery tags but widens
// nullable columns with bigquery.Null* wrappers, matching
// dvloznov-finance-tracker's TransactionRow idiom.
type purchaseItemRow struct {
	ItemID           string                 `bigquery:"item_id"`
	PurchaseID       string                 `bigquery:"purchase_id"`
	UserID           string                 `bigquery:"user_id"`
	Merchant         string                 `bigquery:"merchant"`
	ItemName         string                 `bigquery:"item_name"`
	Category         string                 `bigquery:"category"`
	Subcategory      bigquery.NullString    `bigquery:"subcategory"`
	ItemText         string                 `bigquery:"item_text"`
	Price            float64                `bigquery:"price"`
	Qty              float64                `bigquery:"qty"`
	Ts               time.Time              `bigquery:"ts"`
	DetectedNeedwant bigquery.NullString    `bigquery:"detected_needwant"`
	UserNeedwant     bigquery.NullString    `bigquery:"user_needwant"`
	Confidence       float64                `bigquery:"confidence"`
	BuyerCity        bigquery.NullString    `bigquery:"buyer_city"`
	BuyerState       bigquery.NullString    `bigquery:"buyer_state"`
	BuyerCountry     bigquery.NullString    `bigquery:"buyer_country"`
	BuyerPostalCode  bigquery.NullString    `bigquery:"buyer_postal_code"`
	ItemEmbed        []float64              `bigquery:"item_embed"`
	Status           string                 `bigquery:"status"`
	CreatedAt        time.Time              `bigquery:"created_at"`
}

func (r purchaseItemRow) toModel() model.PurchaseItem {
	return model.PurchaseItem{
		ItemID:           r.ItemID,
		PurchaseID:       r.PurchaseID,
		UserID:           r.UserID,
		Merchant:         r.Merchant,
		ItemName:         r.ItemName,
		Category:         r.Category,
		Subcategory:      r.Subcategory.StringVal,
		ItemText:         r.ItemText,
		Price:            r.Price,
		Qty:              r.Qty,
		Ts:               r.Ts,
		DetectedNeedwant: model.NeedWant(r.DetectedNeedwant.StringVal),
		UserNeedwant:     model.NeedWant(r.UserNeedwant.StringVal),
		Confidence:       r.Confidence,
		BuyerLocation: model.BuyerLocation{
			City:       r.BuyerCity.StringVal,
			State:      r.BuyerState.StringVal,
			Country:    r.BuyerCountry.StringVal,
			PostalCode: r.BuyerPostalCode.StringVal,
		},
		ItemEmbed: r.ItemEmbed,
		Status:    model.Status(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

const purchaseItemColumns = `item_id, purchase_id, user_id, merchant, item_name, category, subcategory,
	item_text, price, qty, ts, detected_needwant, user_needwant, confidence,
	buyer_city, buyer_state, buyer_country, buyer_postal_code, item_embed, status, created_at`

func (s *Store) readItems(ctx context.Context, query string, params []bigquery.QueryParameter) ([]model.PurchaseItem, error) {
	q := s.client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.StoreUnavailable, "read purchase items", err)
	}

	var items []model.PurchaseItem
	for {
		var row purchaseItemRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.StoreUnavailable, "iterate purchase items", err)
		}
		items = append(items, row.toModel())
	}
	return items, nil
}

func (s *Store) ListItems(ctx context.Context, params store.ListItemsParams) ([]model.PurchaseItem, error) {
	if params.Limit == 0 {
		return []model.PurchaseItem{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = @user_id AND status = 'active'
		  AND (@since IS NULL OR ts >= @since)
		  AND (@until IS NULL OR ts < @until)
		ORDER BY ts DESC
		%s`, purchaseItemColumns, s.table("purchase_items"), limitClause(params.Limit))

	bqParams := []bigquery.QueryParameter{
		{Name: "user_id", Value: params.UserID},
		{Name: "since", Value: nullableTime(params.Since)},
		{Name: "until", Value: nullableTime(params.Until)},
	}
	return s.readItems(ctx, query, bqParams)
}

func (s *Store) ListItemsByCategory(ctx context.Context, userID, category string, since, until *time.Time) ([]model.PurchaseItem, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = @user_id AND status = 'active' AND category = @category
		  AND (@since IS NULL OR ts >= @since)
		  AND (@until IS NULL OR ts < @until)
		ORDER BY ts DESC`, purchaseItemColumns, s.table("purchase_items"))

	bqParams := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "category", Value: category},
		{Name: "since", Value: nullableTime(since)},
		{Name: "until", Value: nullableTime(until)},
	}
	return s.readItems(ctx, query, bqParams)
}

func (s *Store) TopItemsByPrice(ctx context.Context, userID string, weekStart time.Time, n int) ([]model.PurchaseItem, error) {
	// BigQuery does not accept a query parameter inside LIMIT; n is an
	// internally validated integer (never raw user input), so it is safe
	// to format directly rather than bind as @limit.
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = @user_id AND status = 'active' AND ts >= @week_start AND ts < @week_end
		ORDER BY (price * qty) DESC, ts DESC, item_id ASC
		LIMIT %d`, purchaseItemColumns, s.table("purchase_items"), n)

	bqParams := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "week_start", Value: weekStart},
		{Name: "week_end", Value: weekStart.AddDate(0, 0, 7)},
	}
	return s.readItems(ctx, query, bqParams)
}

func (s *Store) ActiveUsersForWeek(ctx context.Context, weekStart time.Time) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT user_id FROM %s
		WHERE status = 'active' AND ts >= @week_start AND ts < @week_end`, s.table("purchase_items"))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "week_start", Value: weekStart},
		{Name: "week_end", Value: weekStart.AddDate(0, 0, 7)},
	}
	it, err := q.Read(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.StoreUnavailable, "read active users", err)
	}

	var users []string
	for {
		var row struct {
			UserID string `bigquery:"user_id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.StoreUnavailable, "iterate active users", err)
		}
		users = append(users, row.UserID)
	}
	return users, nil
}

func (s *Store) SetNeedWant(ctx context.Context, itemID string, label model.NeedWant) (model.PurchaseItem, error) {
	if label != model.Need && label != model.Want {
		return model.PurchaseItem{}, errs.New(errs.BadRequest, fmt.Sprintf("invalid needwant label %q", label))
	}

	items, err := s.readItems(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE item_id = @item_id LIMIT 1`, purchaseItemColumns, s.table("purchase_items")),
		[]bigquery.QueryParameter{{Name: "item_id", Value: itemID}})
	if err != nil {
		return model.PurchaseItem{}, err
	}
	if len(items) == 0 {
		return model.PurchaseItem{}, errs.New(errs.NotFound, fmt.Sprintf("item %q not found", itemID))
	}
	it := items[0]

	if it.UserNeedwant == label {
		return it, nil
	}
	if it.UserNeedwant != model.Unset {
		return model.PurchaseItem{}, errs.New(errs.BadRequest, fmt.Sprintf("item %q already labelled %q", itemID, it.UserNeedwant))
	}

	dml := fmt.Sprintf(`UPDATE %s SET user_needwant = @label WHERE item_id = @item_id`, s.table("purchase_items"))
	q := s.client.Query(dml)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "label", Value: string(label)},
		{Name: "item_id", Value: itemID},
	}
	if _, err := q.Read(ctx); err != nil {
		return model.PurchaseItem{}, errs.Wrap(errs.StoreUnavailable, "persist needwant", err)
	}
	it.UserNeedwant = label
	return it, nil
}

// limitClause inlines a validated, internally-bounded integer; BigQuery
// does not accept a query parameter inside LIMIT.
func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf("LIMIT %d", limit)
}

func nullableTime(t *time.Time) bigquery.NullTimestamp {
	if t == nil {
		return bigquery.NullTimestamp{Valid: false}
	}
	return bigquery.NullTimestamp{Timestamp: *t, Valid: true}
}
