// Package tips implements the Tip Engine (C4): four independent detectors
// over a 60-day active window, merged into a single ranked list (§4.4).
// The detector shapes (icon/title/subtitle/description/action_tag) follow
// original_source/backend/database/api/smart_tips.py's per-tip structure;
// the detection rules themselves are the spec's generalised versions
// (frequency/category/subscription/bundle) rather than smart_tips.py's
// hardcoded merchant list, since the data model treats category as data
// owned by ingestion, not an enum baked into the core (§9 Design Notes).
package tips

import (
	"context"
	"sort"
	"time"

	"github.com/brightledger/finance-analytics-core/internal/deals"
	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/money"
	"github.com/brightledger/finance-analytics-core/internal/store"
)

const (
	windowDays = 60

	highFreqMinPurchases = 4
	highFreqSavingsRate  = 0.60

	overspendTopN          = 3
	overspendMedianFactor  = 1.5
	overspendSavingsRate   = 0.30

	subscriptionMinOccurrences = 2
	subscriptionIntervalMinDay = 28
	subscriptionIntervalMaxDay = 32
	subscriptionUnderuseMax    = 4
	subscriptionLookbackDays   = 30
)

var highFreqCategories = map[string]bool{"Coffee": true, "Food": true}

// Engine is the Tip Engine.
type Engine struct {
	Store   store.PurchaseStore
	Catalog *deals.Catalog
}

func New(s store.PurchaseStore, catalog *deals.Catalog) *Engine {
	return &Engine{Store: s, Catalog: catalog}
}

// Suggest runs all four detectors for userID and returns at most limit
// tips, merged and ranked per §4.4's merge rule.
func (e *Engine) Suggest(ctx context.Context, userID string, limit int) ([]model.Tip, error) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -windowDays)
	items, err := e.Store.ListItems(ctx, store.ListItemsParams{UserID: userID, Since: &since, Limit: store.UnboundedLimit})
	if err != nil {
		return nil, err
	}

	byTitle := make(map[string]model.Tip)
	add := func(t model.Tip) {
		existing, ok := byTitle[t.Title]
		if !ok || t.MonthlySavings > existing.MonthlySavings {
			byTitle[t.Title] = t
		}
	}

	for _, t := range highFrequencyItems(items) {
		add(t)
	}
	for _, t := range categoryOverspend(items) {
		add(t)
	}
	for _, t := range underusedSubscriptions(items) {
		add(t)
	}
	if e.Catalog != nil {
		for _, t := range bundleOpportunities(items, e.Catalog) {
			add(t)
		}
	}

	out := make([]model.Tip, 0, len(byTitle))
	for _, t := range byTitle {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MonthlySavings != out[j].MonthlySavings {
			return out[i].MonthlySavings > out[j].MonthlySavings
		}
		return out[i].Title < out[j].Title
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// monthlySpend projects a windowDays total onto a 30-day month, per the
// GLOSSARY's Monthly spend(x) definition.
func monthlySpend(total float64, windowDays int) float64 {
	if windowDays == 0 {
		return 0
	}
	return total * (30.0 / float64(windowDays))
}

// highFrequencyItems is D1: items with >= 4 purchases in 60 days whose
// category is Coffee or Food.
func highFrequencyItems(items []model.PurchaseItem) []model.Tip {
	type agg struct {
		count    int
		total    float64
		category string
		merchant string
	}
	byName := map[string]*agg{}
	for _, it := range items {
		if !highFreqCategories[it.Category] {
			continue
		}
		a, ok := byName[it.ItemName]
		if !ok {
			a = &agg{category: it.Category, merchant: it.Merchant}
			byName[it.ItemName] = a
		}
		a.count++
		a.total += it.Total()
	}

	var out []model.Tip
	for name, a := range byName {
		if a.count < highFreqMinPurchases {
			continue
		}
		spend := monthlySpend(a.total, windowDays)
		savings := money.Round2(highFreqSavingsRate * spend)
		out = append(out, model.Tip{
			Icon:           categoryIcon(a.category),
			Title:          "Frequent " + name + " purchases",
			Subtitle:       a.merchant,
			Description:    "You've bought this item often in the last 60 days; cutting back or substituting a cheaper option could save you real money.",
			MonthlySavings: savings,
			ActionTag:      "reduce_frequency",
			Category:       a.category,
		})
	}
	return out
}

// categoryOverspend is D2: the top 3 categories by 60-day spend that
// exceed the median by >= 50%.
func categoryOverspend(items []model.PurchaseItem) []model.Tip {
	totals := map[string]float64{}
	for _, it := range items {
		totals[it.Category] += it.Total()
	}
	if len(totals) == 0 {
		return nil
	}

	values := make([]float64, 0, len(totals))
	for _, v := range totals {
		values = append(values, v)
	}
	med := median(values)

	type cat struct {
		name  string
		total float64
	}
	cats := make([]cat, 0, len(totals))
	for name, total := range totals {
		cats = append(cats, cat{name, total})
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].total > cats[j].total })

	var out []model.Tip
	for i, c := range cats {
		if i >= overspendTopN {
			break
		}
		if med > 0 && c.total < med*overspendMedianFactor {
			continue
		}
		spend := monthlySpend(c.total, windowDays)
		savings := money.Round2(overspendSavingsRate * spend)
		out = append(out, model.Tip{
			Icon:           categoryIcon(c.name),
			Title:          c.name + " spending is above your usual pace",
			Subtitle:       "Top category this period",
			Description:    "This category's 60-day spend is well above your median category spend; trimming it by even a third adds up fast.",
			MonthlySavings: savings,
			ActionTag:      "review_category",
			Category:       c.name,
		})
	}
	return out
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// underusedSubscriptions is D3: (merchant, price) pairs recurring >= 2
// times with inter-arrival in [28, 32] days, where the merchant's 30-day
// transaction count is <= 4.
func underusedSubscriptions(items []model.PurchaseItem) []model.Tip {
	type key struct {
		merchant string
		price    float64
	}
	byKey := map[key][]time.Time{}
	for _, it := range items {
		k := key{it.Merchant, it.Price}
		byKey[k] = append(byKey[k], it.Ts)
	}

	now := time.Now().UTC()
	since30 := now.AddDate(0, 0, -subscriptionLookbackDays)
	merchantTxnCount30 := map[string]int{}
	for _, it := range items {
		if !it.Ts.Before(since30) {
			merchantTxnCount30[it.Merchant]++
		}
	}

	var out []model.Tip
	for k, times := range byKey {
		if len(times) < subscriptionMinOccurrences {
			continue
		}
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
		isSubscription := true
		for i := 1; i < len(times); i++ {
			days := times[i].Sub(times[i-1]).Hours() / 24
			if days < subscriptionIntervalMinDay || days > subscriptionIntervalMaxDay {
				isSubscription = false
				break
			}
		}
		if !isSubscription {
			continue
		}
		if merchantTxnCount30[k.merchant] > subscriptionUnderuseMax {
			continue
		}
		out = append(out, model.Tip{
			Icon:           "📺",
			Title:          k.merchant + " subscription looks under-used",
			Subtitle:       "Recurring charge",
			Description:    "This recurring charge shows up every month but you've barely used it lately; consider pausing or cancelling.",
			MonthlySavings: money.Round2(k.price),
			ActionTag:      "review_subscription",
			Category:       "Entertainment",
		})
	}
	return out
}

// bundleOpportunities is D4: >= 2 of a Deal Catalog bundle's component
// merchants with Entertainment spend in the window, whose combined monthly
// spend exceeds the bundle's price. Any Entertainment charge counts; the
// charges are not checked for a recurring subscription pattern.
func bundleOpportunities(items []model.PurchaseItem, catalog *deals.Catalog) []model.Tip {
	merchantMonthly := map[string]float64{}
	for _, it := range items {
		if it.Category != "Entertainment" {
			continue
		}
		merchantMonthly[it.Merchant] += it.Total()
	}
	if len(merchantMonthly) < 2 {
		return nil
	}
	for name := range merchantMonthly {
		merchantMonthly[name] = monthlySpend(merchantMonthly[name], windowDays)
	}

	var out []model.Tip
	for _, bundle := range catalog.Bundles() {
		combined := 0.0
		present := 0
		for _, component := range bundle.Components {
			if v, ok := merchantMonthly[component]; ok {
				combined += v
				present++
			}
		}
		if present < 2 {
			continue
		}
		if combined <= bundle.Price {
			continue
		}
		out = append(out, model.Tip{
			Icon:           "🎬",
			Title:          "Switch to the " + bundle.Name + " bundle",
			Subtitle:       "Multiple Entertainment subscriptions",
			Description:    "Your separate Entertainment subscriptions cost more than this bundle priced at the same services combined.",
			MonthlySavings: money.Round2(combined - bundle.Price),
			ActionTag:      "bundle",
			Category:       "Entertainment",
		})
	}
	return out
}

func categoryIcon(category string) string {
	switch category {
	case "Coffee":
		return "☕"
	case "Food":
		return "🍔"
	case "Transport":
		return "🚌"
	case "Groceries":
		return "🛒"
	case "Entertainment":
		return "🎬"
	case "Shopping":
		return "🛍️"
	case "Health":
		return "💊"
	default:
		return "💰"
	}
}
