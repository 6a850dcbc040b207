package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightledger/finance-analytics-core/internal/model"
)

func rollupItem(purchaseID, userID, category string, needWant model.NeedWant, price float64, ts time.Time) model.PurchaseItem {
	it := model.NewPurchaseItem(purchaseID, userID, "Merchant", category, "", "Item", price, ts)
	it.DetectedNeedwant = needWant
	return it
}

func TestRollup_GroupsByPurchaseID(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	items := []model.PurchaseItem{
		rollupItem("p1", "u1", "Groceries", model.Need, 10.0, base),
		rollupItem("p1", "u1", "Groceries", model.Need, 5.0, base),
		rollupItem("p2", "u1", "Shopping", model.Want, 20.0, base.Add(time.Hour)),
	}

	out := Rollup(items)
	require.Len(t, out, 2)
	// ordered by occurred_at descending.
	assert.Equal(t, "p2", out[0].ID)
	assert.Equal(t, "p1", out[1].ID)
	assert.InDelta(t, 15.0, out[1].Amount, 0.0001)
}

func TestRollup_IgnoresInactiveItems(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	refunded := rollupItem("p1", "u1", "Groceries", model.Need, 10.0, base)
	refunded.Status = model.StatusRefunded

	out := Rollup([]model.PurchaseItem{refunded})
	assert.Empty(t, out)
}

func TestRollup_IsIdempotent(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []model.PurchaseItem{
		rollupItem("p1", "u1", "Groceries", model.Need, 10.0, base),
		rollupItem("p1", "u1", "Groceries", model.Want, 5.0, base.Add(time.Minute)),
	}

	first := Rollup(items)
	second := Rollup(items)
	assert.Equal(t, first, second)
}

func TestCategoryWeekSummaries_GroupsByWeek(t *testing.T) {
	mondayW1 := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	mondayW2 := mondayW1.AddDate(0, 0, 7)
	items := []model.PurchaseItem{
		rollupItem("p1", "u1", "Groceries", model.Need, 10.0, mondayW1.Add(2*time.Hour)),
		rollupItem("p2", "u1", "Groceries", model.Want, 20.0, mondayW1.Add(3*time.Hour)),
		rollupItem("p3", "u1", "Groceries", model.Need, 30.0, mondayW2.Add(time.Hour)),
	}

	out := CategoryWeekSummaries(items, ISOWeekStartUTC)
	require.Len(t, out, 2)

	var week1 *model.CategoryWeekSummary
	for i := range out {
		if out[i].WeekStart.Equal(mondayW1) {
			week1 = &out[i]
		}
	}
	require.NotNil(t, week1)
	assert.Equal(t, 2, week1.PurchaseCount)
	assert.InDelta(t, 10.0, week1.NeedSpend, 0.0001)
	assert.InDelta(t, 20.0, week1.WantSpend, 0.0001)
}

func TestISOWeekStartUTC_MondayIsStable(t *testing.T) {
	monday := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	assert.True(t, monday.Equal(ISOWeekStartUTC(monday)))

	sunday := monday.AddDate(0, 0, 6).Add(23 * time.Hour)
	assert.True(t, monday.Equal(ISOWeekStartUTC(sunday)))
}
