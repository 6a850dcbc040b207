package tips

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightledger/finance-analytics-core/internal/deals"
	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/storetest"
)

func item(userID, merchant, category, name string, price float64, ts time.Time) model.PurchaseItem {
	return model.NewPurchaseItem("p_"+name, userID, merchant, category, "", name, price, ts)
}

func TestSuggest_HighFrequencyItem(t *testing.T) {
	now := time.Now().UTC()
	items := make([]model.PurchaseItem, 0)
	for i := 0; i < 5; i++ {
		items = append(items, item("u1", "Starbucks", "Coffee", "Latte", 5.0, now.AddDate(0, 0, -i*5)))
	}
	e := New(&storetest.FakeStore{Items: items}, nil)

	out, err := e.Suggest(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	found := false
	for _, tip := range out {
		if tip.ActionTag == "reduce_frequency" {
			found = true
			assert.Equal(t, "Coffee", tip.Category)
			assert.Greater(t, tip.MonthlySavings, 0.0)
		}
	}
	assert.True(t, found, "expected a high-frequency tip")
}

func TestSuggest_HighFrequencyRequiresFourPurchases(t *testing.T) {
	now := time.Now().UTC()
	items := []model.PurchaseItem{
		item("u1", "Starbucks", "Coffee", "Latte", 5.0, now),
		item("u1", "Starbucks", "Coffee", "Latte", 5.0, now.AddDate(0, 0, -5)),
		item("u1", "Starbucks", "Coffee", "Latte", 5.0, now.AddDate(0, 0, -10)),
	}
	e := New(&storetest.FakeStore{Items: items}, nil)

	out, err := e.Suggest(context.Background(), "u1", 10)
	require.NoError(t, err)
	for _, tip := range out {
		assert.NotEqual(t, "reduce_frequency", tip.ActionTag)
	}
}

func TestSuggest_CategoryOverspend(t *testing.T) {
	now := time.Now().UTC()
	items := []model.PurchaseItem{
		item("u1", "Amazon", "Shopping", "Gadget", 500.0, now),
		item("u1", "Trader Joe's", "Groceries", "Milk", 10.0, now),
		item("u1", "Gym", "Health", "Membership", 10.0, now),
	}
	e := New(&storetest.FakeStore{Items: items}, nil)

	out, err := e.Suggest(context.Background(), "u1", 10)
	require.NoError(t, err)
	found := false
	for _, tip := range out {
		if tip.ActionTag == "review_category" && tip.Category == "Shopping" {
			found = true
		}
	}
	assert.True(t, found, "expected Shopping flagged as overspend relative to the median category")
}

func TestSuggest_UnderusedSubscription(t *testing.T) {
	now := time.Now().UTC()
	items := []model.PurchaseItem{
		item("u1", "Netflix", "Entertainment", "Subscription", 15.0, now.AddDate(0, 0, -59)),
		item("u1", "Netflix", "Entertainment", "Subscription", 15.0, now.AddDate(0, 0, -30)),
	}
	e := New(&storetest.FakeStore{Items: items}, nil)

	out, err := e.Suggest(context.Background(), "u1", 10)
	require.NoError(t, err)
	found := false
	for _, tip := range out {
		if tip.ActionTag == "review_subscription" {
			found = true
			assert.InDelta(t, 15.0, tip.MonthlySavings, 0.0001)
		}
	}
	assert.True(t, found, "expected Netflix flagged as an under-used subscription")
}

func TestSuggest_SubscriptionNotFlaggedWhenMerchantUsedOften(t *testing.T) {
	now := time.Now().UTC()
	items := []model.PurchaseItem{
		item("u1", "Netflix", "Entertainment", "Subscription", 15.0, now.AddDate(0, 0, -59)),
		item("u1", "Netflix", "Entertainment", "Subscription", 15.0, now.AddDate(0, 0, -30)),
	}
	for i := 0; i < 5; i++ {
		items = append(items, item("u1", "Netflix", "Entertainment", "Extra charge", 2.0, now.AddDate(0, 0, -i)))
	}
	e := New(&storetest.FakeStore{Items: items}, nil)

	out, err := e.Suggest(context.Background(), "u1", 10)
	require.NoError(t, err)
	for _, tip := range out {
		assert.NotEqual(t, "review_subscription", tip.ActionTag)
	}
}

func TestSuggest_BundleOpportunity(t *testing.T) {
	now := time.Now().UTC()
	items := []model.PurchaseItem{
		// Two monthly charges of each subscription inside the 60-day window
		// push the 30-day-normalised combined spend above the bundle price
		// of $19.99.
		item("u1", "Disney+", "Entertainment", "Subscription", 15.0, now),
		item("u1", "Disney+", "Entertainment", "Subscription", 15.0, now.AddDate(0, 0, -30)),
		item("u1", "Hulu", "Entertainment", "Subscription", 15.0, now),
		item("u1", "Hulu", "Entertainment", "Subscription", 15.0, now.AddDate(0, 0, -30)),
	}
	catalog := deals.Default([]string{"Groceries"})
	e := New(&storetest.FakeStore{Items: items}, catalog)

	out, err := e.Suggest(context.Background(), "u1", 10)
	require.NoError(t, err)
	found := false
	for _, tip := range out {
		if tip.ActionTag == "bundle" {
			found = true
			assert.Greater(t, tip.MonthlySavings, 0.0)
		}
	}
	assert.True(t, found, "expected Disney+/Hulu to trigger a bundle tip")
}

func TestSuggest_LimitTruncatesRankedOutput(t *testing.T) {
	now := time.Now().UTC()
	items := make([]model.PurchaseItem, 0)
	for i := 0; i < 5; i++ {
		items = append(items, item("u1", "Starbucks", "Coffee", "Latte", 5.0, now.AddDate(0, 0, -i*5)))
	}
	items = append(items,
		item("u1", "Amazon", "Shopping", "Gadget", 800.0, now),
		item("u1", "Trader Joe's", "Groceries", "Milk", 10.0, now),
	)
	e := New(&storetest.FakeStore{Items: items}, nil)

	out, err := e.Suggest(context.Background(), "u1", 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
}
