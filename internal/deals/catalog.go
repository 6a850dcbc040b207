// Package deals implements the Deal Catalog (C5): a static, versioned
// merchant → alternatives table plus a bundle list, loaded once at
// start-up (§4.5). The entries are carried over from
// original_source/backend/database/api/better_deals.py's ALTERNATIVE_STORES
// table; editing them requires redeployment, exactly as the spec mandates —
// this package exposes no mutation API.
package deals

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/money"
	"github.com/brightledger/finance-analytics-core/internal/store"
)

// Bundle names a set of merchants whose combined monthly cost can be
// replaced by one bundle subscription.
type Bundle struct {
	Name       string
	Components []string
	Price      float64
}

// Catalog is the read-only reference table loaded at start-up.
type Catalog struct {
	entries          map[string][]model.Alternative
	bundles          []Bundle
	allowedCategories map[string]bool
}

// Default builds the reference catalog carried over from better_deals.py,
// scoped to allowedCategories (default {Groceries} per §6.6).
func Default(allowedCategories []string) *Catalog {
	allowed := map[string]bool{}
	for _, c := range allowedCategories {
		allowed[c] = true
	}
	return &Catalog{
		entries: map[string][]model.Alternative{
			"Starbucks": {
				{Name: "Dunkin", SavingsPercent: 0.40, Icon: "☕"},
				{Name: "Home Brew", SavingsPercent: 0.80, Icon: "🏠"},
				{Name: "McDonald's", SavingsPercent: 0.50, Icon: "🍟"},
			},
			"Trader Joe's": {
				{Name: "Aldi", SavingsPercent: 0.30, Icon: "🛒"},
				{Name: "Costco", SavingsPercent: 0.25, Icon: "📦"},
				{Name: "Walmart", SavingsPercent: 0.20, Icon: "🏪"},
			},
			"Target": {
				{Name: "Walmart", SavingsPercent: 0.15, Icon: "🏪"},
				{Name: "Costco (Bulk)", SavingsPercent: 0.25, Icon: "📦"},
				{Name: "Amazon", SavingsPercent: 0.10, Icon: "📦"},
			},
			"Amazon": {
				{Name: "Walmart", SavingsPercent: 0.12, Icon: "🏪"},
				{Name: "Target", SavingsPercent: 0.08, Icon: "🎯"},
				{Name: "AliExpress", SavingsPercent: 0.50, Icon: "🌍"},
			},
			"Whole Foods": {
				{Name: "Trader Joe's", SavingsPercent: 0.35, Icon: "🛒"},
				{Name: "Sprouts", SavingsPercent: 0.25, Icon: "🥬"},
				{Name: "Regular Grocery", SavingsPercent: 0.40, Icon: "🏪"},
			},
			"DoorDash": {
				{Name: "Pickup Instead", SavingsPercent: 0.60, Icon: "🚗"},
				{Name: "Cook at Home", SavingsPercent: 0.70, Icon: "👨‍🍳"},
				{Name: "Uber Eats (promo)", SavingsPercent: 0.20, Icon: "🍔"},
			},
			"Disney+": {
				{Name: "Disney+Hulu Bundle", SavingsPercent: 0.35, Icon: "🎬"},
				{Name: "Family Plan Split", SavingsPercent: 0.50, Icon: "👨‍👩‍👧"},
			},
			"Hulu": {
				{Name: "Disney+Hulu Bundle", SavingsPercent: 0.35, Icon: "🎬"},
				{Name: "Hulu (w/ads)", SavingsPercent: 0.45, Icon: "📺"},
			},
			"Netflix": {
				{Name: "Share with Family", SavingsPercent: 0.60, Icon: "👨‍👩‍👧"},
				{Name: "Cancel & Rotate", SavingsPercent: 1.00, Icon: "🔄"},
				{Name: "Basic Plan", SavingsPercent: 0.40, Icon: "📺"},
			},
			"Planet Fitness": {
				{Name: "Home Workouts", SavingsPercent: 0.90, Icon: "🏠"},
				{Name: "YouTube Fitness", SavingsPercent: 1.00, Icon: "📱"},
				{Name: "Community Rec Center", SavingsPercent: 0.70, Icon: "🏊"},
			},
		},
		bundles: []Bundle{
			{Name: "Disney+Hulu", Components: []string{"Disney+", "Hulu"}, Price: 19.99},
		},
		allowedCategories: allowed,
	}
}

// Bundles returns the catalog's bundle list (used by the Tip Engine's D4
// detector).
func (c *Catalog) Bundles() []Bundle { return c.bundles }

// lookup returns the alternatives for merchant using a case-insensitive
// substring match, mirroring better_deals.py's `known_merchant.lower() in
// merchant.lower()`.
func (c *Catalog) lookup(merchant string) ([]model.Alternative, bool) {
	lower := strings.ToLower(merchant)
	for known, alts := range c.entries {
		if strings.Contains(lower, strings.ToLower(known)) {
			return alts, true
		}
	}
	return nil, false
}

// Engine runs suggest_deals (§4.5) against the Purchase Store.
type Engine struct {
	Store   store.PurchaseStore
	Catalog *Catalog
}

func New(s store.PurchaseStore, catalog *Catalog) *Engine {
	return &Engine{Store: s, Catalog: catalog}
}

// Suggest implements suggest_deals: monthly spend per merchant over 30
// days, matched against the catalog, filtered to allowed categories,
// ranked by monthly savings desc.
func (e *Engine) Suggest(ctx context.Context, userID string, limit int) ([]model.DealSuggestion, error) {
	since := time.Now().UTC().AddDate(0, 0, -30)
	items, err := e.Store.ListItems(ctx, store.ListItemsParams{UserID: userID, Since: &since, Limit: store.UnboundedLimit})
	if err != nil {
		return nil, err
	}

	type merchantAgg struct {
		total    float64
		count    int
		category string
	}
	byMerchant := map[string]*merchantAgg{}
	order := make([]string, 0)
	for _, it := range items {
		a, ok := byMerchant[it.Merchant]
		if !ok {
			a = &merchantAgg{category: it.Category}
			byMerchant[it.Merchant] = a
			order = append(order, it.Merchant)
		}
		a.total += it.Total()
		a.count++
	}

	var out []model.DealSuggestion
	for _, merchant := range order {
		a := byMerchant[merchant]
		if a.count < 2 {
			continue
		}
		if len(e.Catalog.allowedCategories) > 0 && !e.Catalog.allowedCategories[a.category] {
			continue
		}
		alts, ok := e.Catalog.lookup(merchant)
		if !ok || len(alts) == 0 {
			continue
		}

		best := alts[0]
		for _, alt := range alts[1:] {
			if alt.SavingsPercent > best.SavingsPercent {
				best = alt
			}
		}

		out = append(out, model.DealSuggestion{
			CurrentStore:         merchant,
			CurrentSpendingMonth: money.Round2(a.total),
			AlternativeStore:     best.Name,
			SavingsPercent:       best.SavingsPercent,
			MonthlySavings:       money.Round2(a.total * best.SavingsPercent),
			PurchaseCount:        a.count,
			Category:             a.category,
			AllAlternatives:      alts,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].MonthlySavings > out[j].MonthlySavings })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
