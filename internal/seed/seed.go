// Package seed implements the Demo/Seed Loader (C10): a deterministic set
// of PurchaseItem rows for local development and manual testing, grounded
// on original_source/backend/database/api/seed_data.py's demo transaction
// table. Every detector in C3 (Prediction), C4 (Tip Engine), C5 (Deal
// Catalog), and C6 (Weekly Suggester) has at least one row shaped to
// trigger it: a daily Starbucks habit (D1 high-frequency item, and enough
// samples for the Prediction Engine), an under-watched Netflix
// subscription (D3), inflated grocery spend at Trader Joe's (D2 overspend,
// and a Deal Catalog alternative), and a Disney+/Hulu pair (D4 bundle
// opportunity).
package seed

import (
	"context"
	"time"

	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/store/sqlite"
)

// inserter is the subset of *sqlite.Store the seed loader needs. Seeding
// writes directly to storage rather than through an ingestion pipeline the
// core does not own (§4.1's "the core owns no DDL").
type inserter interface {
	InsertItem(ctx context.Context, it model.PurchaseItem) error
}

var _ inserter = (*sqlite.Store)(nil)

type seedRow struct {
	purchaseID  string
	merchant    string
	itemName    string
	category    string
	subcategory string
	price       float64
	daysAgo     int
}

// rows mirrors seed_data.py's transaction table, translated from
// (item, merchant, category, price, days_ago) tuples to seedRow values.
func rows() []seedRow {
	return []seedRow{
		{"t_netflix_001", "Netflix", "Netflix", "Entertainment", "", 15.49, 28},
		{"t_netflix_002", "Netflix", "Netflix", "Entertainment", "", 15.49, 58},

		{"t_disney_001", "Disney+", "Disney+", "Entertainment", "", 13.99, 25},
		{"t_disney_002", "Disney+", "Disney+", "Entertainment", "", 13.99, 55},

		{"t_hulu_001", "Hulu", "Hulu", "Entertainment", "", 17.99, 22},
		{"t_hulu_002", "Hulu", "Hulu", "Entertainment", "", 17.99, 52},

		{"t_tj_001", "Trader Joe's", "Trader Joes", "Groceries", "", 127.45, 5},
		{"t_tj_002", "Trader Joe's", "Trader Joes", "Groceries", "", 143.20, 12},
		{"t_tj_003", "Trader Joe's", "Trader Joes", "Groceries", "", 156.80, 19},
		{"t_tj_004", "Trader Joe's", "Trader Joes", "Groceries", "", 134.95, 26},

		{"t_sb_001", "Starbucks", "Coffee", "Coffee", "", 7.25, 1},
		{"t_sb_002", "Starbucks", "Coffee", "Coffee", "", 7.25, 2},
		{"t_sb_003", "Starbucks", "Coffee", "Coffee", "", 7.25, 3},
		{"t_sb_004", "Starbucks", "Coffee", "Coffee", "", 7.25, 4},
		{"t_sb_005", "Starbucks", "Coffee", "Coffee", "", 7.25, 5},
		{"t_sb_006", "Starbucks", "Coffee", "Coffee", "", 7.25, 6},
		{"t_sb_007", "Starbucks", "Coffee", "Coffee", "", 7.25, 8},
		{"t_sb_008", "Starbucks", "Coffee", "Coffee", "", 7.25, 9},
		{"t_sb_009", "Starbucks", "Coffee", "Coffee", "", 7.25, 10},
		{"t_sb_010", "Starbucks", "Coffee", "Coffee", "", 7.25, 11},

		{"t_dd_001", "DoorDash", "DoorDash · Chipotle", "Food", "", 28.50, 2},
		{"t_dd_002", "DoorDash", "DoorDash · Panda Express", "Food", "", 24.75, 5},
		{"t_dd_003", "DoorDash", "DoorDash · Thai Food", "Food", "", 32.90, 8},
		{"t_dd_004", "DoorDash", "DoorDash · Pizza", "Food", "", 31.25, 11},

		{"t_amz_001", "Amazon", "Amazon · Electronics", "Shopping", "", 89.99, 7},
		{"t_amz_002", "Amazon", "Amazon · Books", "Shopping", "", 34.50, 14},
		{"t_amz_003", "Amazon", "Amazon · Home Goods", "Shopping", "", 67.25, 21},

		{"t_gym_001", "Planet Fitness", "Planet Fitness", "Health", "", 24.99, 15},
		{"t_gym_002", "Planet Fitness", "Planet Fitness", "Health", "", 24.99, 45},

		{"t_spot_001", "Spotify", "Spotify Premium", "Entertainment", "", 10.99, 10},
		{"t_spot_002", "Spotify", "Spotify Premium", "Entertainment", "", 10.99, 40},

		{"t_tgt_001", "Target", "Target", "Shopping", "", 76.45, 6},
		{"t_tgt_002", "Target", "Target", "Shopping", "", 52.30, 18},
	}
}

// Seed populates store with the demo dataset for userID, stamping each
// row's ts as now minus the row's fixed offset so the data always looks
// recent regardless of when Seed runs.
func Seed(ctx context.Context, s *sqlite.Store, userID string) error {
	now := time.Now().UTC()
	for _, row := range rows() {
		item := model.NewPurchaseItem(row.purchaseID, userID, row.merchant, row.category, row.subcategory, row.itemName,
			row.price, now.AddDate(0, 0, -row.daysAgo))
		if err := s.InsertItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}
