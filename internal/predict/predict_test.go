package predict

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/storetest"
)

func itemAt(userID, name, category string, ts time.Time) model.PurchaseItem {
	it := model.NewPurchaseItem("p_"+name, userID, "Merchant", category, "", name, 5.0, ts)
	return it
}

func TestPredict_DailyPurchasesYieldFullConfidence(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := make([]model.PurchaseItem, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, itemAt("u1", "Coffee", "food", base.AddDate(0, 0, i)))
	}
	store := &storetest.FakeStore{Items: items}
	e := New(store)

	preds, err := e.Predict(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "Coffee", preds[0].Item)
	assert.Equal(t, 10, preds[0].Samples)
	assert.InDelta(t, 1.0, preds[0].Confidence, 0.0001)
	assert.InDelta(t, 1.0, preds[0].AvgIntervalDays, 0.0001)
}

func TestPredict_TwoPurchasesThirtyDaysApart(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []model.PurchaseItem{
		itemAt("u1", "Razor Blades", "personal_care", base),
		itemAt("u1", "Razor Blades", "personal_care", base.AddDate(0, 0, 30)),
	}
	store := &storetest.FakeStore{Items: items}
	e := New(store)

	preds, err := e.Predict(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, 2, preds[0].Samples)
	assert.InDelta(t, 0.68, preds[0].Confidence, 0.0001)
	assert.InDelta(t, 30.0, preds[0].AvgIntervalDays, 0.0001)
}

func TestPredict_SingleSampleYieldsNoPrediction(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &storetest.FakeStore{Items: []model.PurchaseItem{
		itemAt("u1", "Umbrella", "misc", base),
	}}
	e := New(store)

	preds, err := e.Predict(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, preds)
}

func TestPredict_LimitTruncates(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := make([]model.PurchaseItem, 0)
	for _, name := range []string{"A", "B", "C"} {
		items = append(items,
			itemAt("u1", name, "misc", base),
			itemAt("u1", name, "misc", base.AddDate(0, 0, 5)),
		)
	}
	store := &storetest.FakeStore{Items: items}
	e := New(store)

	preds, err := e.Predict(context.Background(), "u1", 2)
	require.NoError(t, err)
	assert.Len(t, preds, 2)
}

func TestPredict_GroupsItemNamesCaseInsensitively(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// "milk" and "MILK" in the same category fall into one group, so the
	// user gets a single prediction built from both samples.
	items := []model.PurchaseItem{
		itemAt("u1", "milk", "groceries", base),
		itemAt("u1", "MILK", "groceries", base.AddDate(0, 0, 7)),
	}
	store := &storetest.FakeStore{Items: items}
	e := New(store)

	preds, err := e.Predict(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, 2, preds[0].Samples)
}
