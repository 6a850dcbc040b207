// Package sqlite implements store.PurchaseStore and store.ReportStore over a
// same-process SQLite database, in the schema-string idiom of
// examples/hackathon-starter/trading/database.go (CREATE TABLE IF NOT
// EXISTS, github.com/mattn/go-sqlite3 registered blank). It backs local
// development, the CLI, and tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/brightledger/finance-analytics-core/internal/errs"
	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/store"
)

// Store is a SQLite-backed implementation of store.PurchaseStore and
// store.ReportStore.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, errs.Wrap(errs.StoreUnavailable, "open sqlite database", err)
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		return nil, errs.Wrap(errs.StoreUnavailable, "initialize schema", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS purchase_items (
		item_id TEXT PRIMARY KEY,
		purchase_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		merchant TEXT NOT NULL,
		item_name TEXT NOT NULL,
		category TEXT NOT NULL,
		subcategory TEXT,
		item_text TEXT NOT NULL,
		price REAL NOT NULL,
		qty REAL NOT NULL DEFAULT 1,
		ts DATETIME NOT NULL,
		detected_needwant TEXT DEFAULT '',
		user_needwant TEXT DEFAULT '',
		confidence REAL DEFAULT 0,
		buyer_location TEXT, -- JSON {city,state,country,postal_code}
		item_embed TEXT,     -- JSON []float64
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchase_items_user_ts ON purchase_items(user_id, ts);
	CREATE INDEX IF NOT EXISTS idx_purchase_items_user_category ON purchase_items(user_id, category);
	CREATE INDEX IF NOT EXISTS idx_purchase_items_purchase_id ON purchase_items(purchase_id);

	CREATE TABLE IF NOT EXISTS weekly_reports (
		report_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		week_start DATETIME NOT NULL,
		week_end DATETIME NOT NULL,
		location TEXT, -- JSON {city,state,country}
		items_analyzed INTEGER NOT NULL DEFAULT 0,
		items_with_alternatives INTEGER NOT NULL DEFAULT 0,
		total_savings REAL NOT NULL DEFAULT 0,
		findings TEXT NOT NULL DEFAULT '[]', -- JSON []Finding
		mcp_calls_made INTEGER NOT NULL DEFAULT 0,
		processing_time_ms INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(user_id, week_start)
	);

	CREATE TABLE IF NOT EXISTS weekly_leases (
		user_id TEXT NOT NULL,
		week_start DATETIME NOT NULL,
		acquired_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, week_start)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errs.Wrap(errs.StoreUnavailable, "ping sqlite", err)
	}
	return nil
}

const itemColumns = `item_id, purchase_id, user_id, merchant, item_name, category, subcategory,
	item_text, price, qty, ts, detected_needwant, user_needwant, confidence,
	buyer_location, item_embed, status, created_at`

func scanItem(row *sql.Rows) (model.PurchaseItem, error) {
	var it model.PurchaseItem
	var subcategory sql.NullString
	var buyerLocJSON, embedJSON sql.NullString
	err := row.Scan(
		&it.ItemID, &it.PurchaseID, &it.UserID, &it.Merchant, &it.ItemName, &it.Category,
		&subcategory, &it.ItemText, &it.Price, &it.Qty, &it.Ts,
		&it.DetectedNeedwant, &it.UserNeedwant, &it.Confidence,
		&buyerLocJSON, &embedJSON, &it.Status, &it.CreatedAt,
	)
	if err != nil {
		return it, err
	}
	it.Subcategory = subcategory.String
	if buyerLocJSON.Valid && buyerLocJSON.String != "" {
		_ = json.Unmarshal([]byte(buyerLocJSON.String), &it.BuyerLocation)
	}
	if embedJSON.Valid && embedJSON.String != "" {
		_ = json.Unmarshal([]byte(embedJSON.String), &it.ItemEmbed)
	}
	return it, nil
}

func (s *Store) ListItems(ctx context.Context, params store.ListItemsParams) ([]model.PurchaseItem, error) {
	if params.Limit == 0 {
		return []model.PurchaseItem{}, nil
	}

	q := strings.Builder{}
	q.WriteString("SELECT " + itemColumns + " FROM purchase_items WHERE user_id = ? AND status = 'active'")
	args := []interface{}{params.UserID}
	if params.Since != nil {
		q.WriteString(" AND ts >= ?")
		args = append(args, *params.Since)
	}
	if params.Until != nil {
		q.WriteString(" AND ts < ?")
		args = append(args, *params.Until)
	}
	q.WriteString(" ORDER BY ts DESC")
	if params.Limit > 0 {
		q.WriteString(" LIMIT ?")
		args = append(args, params.Limit)
	}
	return s.queryItems(ctx, q.String(), args...)
}

func (s *Store) ListItemsByCategory(ctx context.Context, userID, category string, since, until *time.Time) ([]model.PurchaseItem, error) {
	q := strings.Builder{}
	q.WriteString("SELECT " + itemColumns + " FROM purchase_items WHERE user_id = ? AND status = 'active' AND category = ?")
	args := []interface{}{userID, category}
	if since != nil {
		q.WriteString(" AND ts >= ?")
		args = append(args, *since)
	}
	if until != nil {
		q.WriteString(" AND ts < ?")
		args = append(args, *until)
	}
	q.WriteString(" ORDER BY ts DESC")
	return s.queryItems(ctx, q.String(), args...)
}

func (s *Store) TopItemsByPrice(ctx context.Context, userID string, weekStart time.Time, n int) ([]model.PurchaseItem, error) {
	weekEnd := weekStart.AddDate(0, 0, 7)
	q := `SELECT ` + itemColumns + ` FROM purchase_items
		WHERE user_id = ? AND status = 'active' AND ts >= ? AND ts < ?
		ORDER BY (price * qty) DESC, ts DESC, item_id ASC
		LIMIT ?`
	return s.queryItems(ctx, q, userID, weekStart, weekEnd, n)
}

func (s *Store) ActiveUsersForWeek(ctx context.Context, weekStart time.Time) ([]string, error) {
	weekEnd := weekStart.AddDate(0, 0, 7)
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM purchase_items WHERE status = 'active' AND ts >= ? AND ts < ?`,
		weekStart, weekEnd)
	if err != nil {
		return nil, errs.Wrap(errs.StoreUnavailable, "query active users", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, errs.Wrap(errs.StoreUnavailable, "scan active user", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) queryItems(ctx context.Context, q string, args ...interface{}) ([]model.PurchaseItem, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Wrap(errs.StoreUnavailable, "query purchase items", err)
	}
	defer rows.Close()

	var items []model.PurchaseItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, errs.Wrap(errs.StoreUnavailable, "scan purchase item", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// InsertItem is used by the seed loader (C10) and ingestion tests; it is
// not part of the store.PurchaseStore interface because ingestion is an
// external collaborator per §1.
func (s *Store) InsertItem(ctx context.Context, it model.PurchaseItem) error {
	buyerLocJSON, _ := json.Marshal(it.BuyerLocation)
	var embedJSON []byte
	if it.ItemEmbed != nil {
		embedJSON, _ = json.Marshal(it.ItemEmbed)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchase_items (item_id, purchase_id, user_id, merchant, item_name, category,
			subcategory, item_text, price, qty, ts, detected_needwant, user_needwant, confidence,
			buyer_location, item_embed, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ItemID, it.PurchaseID, it.UserID, it.Merchant, it.ItemName, it.Category,
		it.Subcategory, it.ItemText, it.Price, it.Qty, it.Ts, string(it.DetectedNeedwant),
		string(it.UserNeedwant), it.Confidence, string(buyerLocJSON), string(embedJSON),
		string(it.Status), it.CreatedAt)
	if err != nil {
		return errs.Wrap(errs.StoreUnavailable, "insert purchase item", err)
	}
	return nil
}

func (s *Store) SetNeedWant(ctx context.Context, itemID string, label model.NeedWant) (model.PurchaseItem, error) {
	if label != model.Need && label != model.Want {
		return model.PurchaseItem{}, errs.New(errs.BadRequest, fmt.Sprintf("invalid needwant label %q", label))
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM purchase_items WHERE item_id = ?", itemID)
	if err != nil {
		return model.PurchaseItem{}, errs.Wrap(errs.StoreUnavailable, "load item for needwant", err)
	}
	var it model.PurchaseItem
	found := false
	if rows.Next() {
		it, err = scanItem(rows)
		found = true
	}
	rows.Close()
	if err != nil {
		return model.PurchaseItem{}, errs.Wrap(errs.StoreUnavailable, "scan item for needwant", err)
	}
	if !found {
		return model.PurchaseItem{}, errs.New(errs.NotFound, fmt.Sprintf("item %q not found", itemID))
	}

	if it.UserNeedwant == label {
		return it, nil // idempotent no-op
	}
	if it.UserNeedwant != model.Unset {
		return model.PurchaseItem{}, errs.New(errs.BadRequest, fmt.Sprintf("item %q already labelled %q", itemID, it.UserNeedwant))
	}

	if _, err := s.db.ExecContext(ctx, "UPDATE purchase_items SET user_needwant = ? WHERE item_id = ?", string(label), itemID); err != nil {
		return model.PurchaseItem{}, errs.Wrap(errs.StoreUnavailable, "persist needwant", err)
	}
	it.UserNeedwant = label
	return it, nil
}
