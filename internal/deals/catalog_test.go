package deals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/storetest"
)

func item(userID, merchant, category, name string, price float64, ts time.Time) model.PurchaseItem {
	return model.NewPurchaseItem("p_"+name, userID, merchant, category, "", name, price, ts)
}

func TestSuggest_RequiresTwoPurchasesInAllowedCategory(t *testing.T) {
	now := time.Now().UTC()
	items := []model.PurchaseItem{
		item("u1", "Trader Joe's", "Groceries", "Milk", 5.0, now),
	}
	e := New(&storetest.FakeStore{Items: items}, Default([]string{"Groceries"}))

	out, err := e.Suggest(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, out, "single purchase should not qualify for a deal suggestion")
}

func TestSuggest_ExcludesDisallowedCategories(t *testing.T) {
	now := time.Now().UTC()
	items := []model.PurchaseItem{
		item("u1", "Amazon", "Shopping", "Gadget", 50.0, now),
		item("u1", "Amazon", "Shopping", "Gadget", 50.0, now.AddDate(0, 0, -1)),
	}
	e := New(&storetest.FakeStore{Items: items}, Default([]string{"Groceries"}))

	out, err := e.Suggest(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, out, "Shopping is not in the allowed-categories set")
}

func TestSuggest_PicksAlternativeWithHighestSavingsPercent(t *testing.T) {
	now := time.Now().UTC()
	items := []model.PurchaseItem{
		item("u1", "Starbucks", "Groceries", "Latte", 5.0, now),
		item("u1", "Starbucks", "Groceries", "Latte", 5.0, now.AddDate(0, 0, -1)),
	}
	e := New(&storetest.FakeStore{Items: items}, Default([]string{"Groceries"}))

	out, err := e.Suggest(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	// Starbucks' catalog entries are Dunkin (0.40), Home Brew (0.80),
	// McDonald's (0.50) — the highest savings_percent, not alternatives[0],
	// must win.
	assert.Equal(t, "Home Brew", out[0].AlternativeStore)
	assert.InDelta(t, 0.80, out[0].SavingsPercent, 0.0001)
	assert.Equal(t, 2, out[0].PurchaseCount)
	assert.Len(t, out[0].AllAlternatives, 3)
}

func TestSuggest_UnknownMerchantYieldsNoDeal(t *testing.T) {
	now := time.Now().UTC()
	items := []model.PurchaseItem{
		item("u1", "Local Farm Stand", "Groceries", "Corn", 5.0, now),
		item("u1", "Local Farm Stand", "Groceries", "Corn", 5.0, now.AddDate(0, 0, -1)),
	}
	e := New(&storetest.FakeStore{Items: items}, Default([]string{"Groceries"}))

	out, err := e.Suggest(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSuggest_RankedBySavingsDescending(t *testing.T) {
	now := time.Now().UTC()
	items := []model.PurchaseItem{
		item("u1", "Starbucks", "Groceries", "Latte", 5.0, now),
		item("u1", "Starbucks", "Groceries", "Latte", 5.0, now.AddDate(0, 0, -1)),
		item("u1", "Target", "Groceries", "Snacks", 100.0, now),
		item("u1", "Target", "Groceries", "Snacks", 100.0, now.AddDate(0, 0, -1)),
	}
	e := New(&storetest.FakeStore{Items: items}, Default([]string{"Groceries"}))

	out, err := e.Suggest(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.GreaterOrEqual(t, out[0].MonthlySavings, out[1].MonthlySavings)
}

func TestSuggest_LimitTruncates(t *testing.T) {
	now := time.Now().UTC()
	items := []model.PurchaseItem{
		item("u1", "Starbucks", "Groceries", "Latte", 5.0, now),
		item("u1", "Starbucks", "Groceries", "Latte", 5.0, now.AddDate(0, 0, -1)),
		item("u1", "Target", "Groceries", "Snacks", 100.0, now),
		item("u1", "Target", "Groceries", "Snacks", 100.0, now.AddDate(0, 0, -1)),
	}
	e := New(&storetest.FakeStore{Items: items}, Default([]string{"Groceries"}))

	out, err := e.Suggest(context.Background(), "u1", 1)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}
