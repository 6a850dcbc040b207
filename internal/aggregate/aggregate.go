// Package aggregate implements the C2 logical projections over the
// Purchase Store: TransactionRollup (grouped by purchase_id) and
// CategoryWeekSummary (grouped by user/category/subcategory/week). Both are
// pure functions of a []model.PurchaseItem slice (§4.2) so they are
// idempotent under re-evaluation by construction.
package aggregate

import (
	"sort"
	"time"

	"github.com/brightledger/finance-analytics-core/internal/model"
)

// Rollup groups items by purchase_id into TransactionRollup rows, ordered
// by occurred_at descending (the natural order for a transactions feed).
func Rollup(items []model.PurchaseItem) []model.TransactionRollup {
	groups := make(map[string][]model.PurchaseItem)
	order := make([]string, 0)
	for _, it := range items {
		if it.Status != model.StatusActive {
			continue
		}
		if _, ok := groups[it.PurchaseID]; !ok {
			order = append(order, it.PurchaseID)
		}
		groups[it.PurchaseID] = append(groups[it.PurchaseID], it)
	}

	out := make([]model.TransactionRollup, 0, len(order))
	for _, purchaseID := range order {
		g := groups[purchaseID]
		out = append(out, rollupOne(purchaseID, g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out
}

func rollupOne(purchaseID string, g []model.PurchaseItem) model.TransactionRollup {
	sorted := make([]model.PurchaseItem, len(g))
	copy(sorted, g)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ItemID < sorted[j].ItemID })

	var amount, confSum float64
	categoryCounts := map[string]int{}
	needWantCounts := map[model.NeedWant]int{}
	var occurredAt time.Time
	var merchant string
	var embed []float64
	names := make([]string, 0, len(sorted))

	for _, it := range sorted {
		amount += it.Total()
		confSum += it.Confidence
		categoryCounts[it.Category]++
		needWantCounts[it.EffectiveNeedwant()]++
		if it.Ts.After(occurredAt) {
			occurredAt = it.Ts
		}
		merchant = it.Merchant
		if embed == nil && it.ItemEmbed != nil {
			embed = it.ItemEmbed
		}
		names = append(names, it.ItemName)
	}

	itemText := names[0]
	for _, n := range names[1:] {
		itemText += " · " + n
	}

	return model.TransactionRollup{
		ID:         purchaseID,
		UserID:     sorted[0].UserID,
		Merchant:   merchant,
		Amount:     amount,
		Category:   mode(categoryCounts),
		NeedOrWant: modeNeedWant(needWantCounts),
		Confidence: confSum / float64(len(sorted)),
		OccurredAt: occurredAt,
		ItemText:   itemText,
		Embed:      embed,
	}
}

// CategoryWeekSummaries groups items by (user_id, category, subcategory,
// week(ts)) per §4.2. weekOf computes the ISO-week Monday in the caller's
// chosen zone (§6.1 — UTC in the reference deployment).
func CategoryWeekSummaries(items []model.PurchaseItem, weekOf func(time.Time) time.Time) []model.CategoryWeekSummary {
	type key struct {
		userID, category, subcategory string
		weekStart                     time.Time
	}
	type acc struct {
		purchaseIDs       map[string]struct{}
		itemCount         int
		totalSpend        float64
		needSpend         float64
		wantSpend         float64
		confSum           float64
		userLabelledCount int
	}

	groups := make(map[key]*acc)
	order := make([]key, 0)

	for _, it := range items {
		if it.Status != model.StatusActive {
			continue
		}
		k := key{it.UserID, it.Category, it.Subcategory, weekOf(it.Ts)}
		a, ok := groups[k]
		if !ok {
			a = &acc{purchaseIDs: map[string]struct{}{}}
			groups[k] = a
			order = append(order, k)
		}
		a.purchaseIDs[it.PurchaseID] = struct{}{}
		a.itemCount++
		total := it.Total()
		a.totalSpend += total
		switch it.EffectiveNeedwant() {
		case model.Need:
			a.needSpend += total
		case model.Want:
			a.wantSpend += total
		}
		a.confSum += it.Confidence
		if it.UserNeedwant != model.Unset {
			a.userLabelledCount++
		}
	}

	out := make([]model.CategoryWeekSummary, 0, len(order))
	for _, k := range order {
		a := groups[k]
		out = append(out, model.CategoryWeekSummary{
			UserID:            k.userID,
			Category:          k.category,
			Subcategory:       k.subcategory,
			WeekStart:         k.weekStart,
			PurchaseCount:     len(a.purchaseIDs),
			ItemCount:         a.itemCount,
			TotalSpend:        a.totalSpend,
			NeedSpend:         a.needSpend,
			WantSpend:         a.wantSpend,
			MeanConfidence:    a.confSum / float64(a.itemCount),
			UserLabelledCount: a.userLabelledCount,
		})
	}
	return out
}

func mode(counts map[string]int) string {
	best, bestN := "", -1
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

func modeNeedWant(counts map[model.NeedWant]int) model.NeedWant {
	best, bestN := model.Unset, -1
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

// ISOWeekStartUTC returns the Monday 00:00 UTC of the ISO week containing t,
// the default zone named in §6.1.
func ISOWeekStartUTC(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday becomes 7 so Monday is the start of the week.
	}
	daysSinceMonday := weekday - 1
	y, m, d := t.Date()
	monday := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -daysSinceMonday)
	return monday
}
