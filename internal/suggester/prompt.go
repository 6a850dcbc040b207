package suggester

import (
	"fmt"
	"strings"

	"github.com/brightledger/finance-analytics-core/internal/model"
)

// buildPrompt is the language-neutral template of §4.6.1 step 3, grounded
// on original_source/backend/src/services/weekly_suggester.py's
// build_plan_prompt: enumerate items, then state the constraints and
// output schema explicitly rather than hoping the model infers them.
func buildPrompt(items []model.PurchaseItem, location model.ReportLocation, minSavingsUSD float64) string {
	var b strings.Builder
	b.WriteString("You are finding cheaper purchasable alternatives for the items below.\n\n")
	b.WriteString(fmt.Sprintf("Buyer location: %s, %s, %s\n\n", location.City, location.State, location.Country))
	b.WriteString("Items purchased this week:\n")
	for i, it := range items {
		b.WriteString(fmt.Sprintf("%d. %s — $%.2f at %s\n", i+1, it.ItemName, it.Total(), it.Merchant))
	}

	b.WriteString("\nConstraints:\n")
	b.WriteString(fmt.Sprintf("- Only propose an alternative if it saves at least $%.2f versus the original, after shipping and tax.\n", minSavingsUSD))
	b.WriteString("- Verify the alternative is the exact same or equivalent product, not a loose substitute.\n")
	b.WriteString("- total_landed_cost must include shipping_cost and tax_estimate.\n")
	b.WriteString("- Every alternative must be a purchasable URL a person can click and buy from today.\n")
	b.WriteString("- Confidence must be your genuine match confidence in [0, 1].\n\n")

	b.WriteString("Respond with a single JSON array (no prose, no markdown fences) where each element has exactly these fields:\n")
	b.WriteString(`[{"item_name": string, "original_price": number, "original_merchant": string, ` +
		`"alternative_merchant": string, "alternative_price": number, "shipping_cost": number, ` +
		`"tax_estimate": number, "total_landed_cost": number, "total_savings": number, ` +
		`"confidence": number, "channel": "local"|"online", "url": string, "notes": string}]` + "\n")

	return b.String()
}
