// Package model defines the entities and value types of the analytics core:
// PurchaseItem and WeeklyReport (§3.1), and the Finding, Prediction, Tip, and
// DealSuggestion value types engines emit (§3.2). Construction mirrors the
// explicit-constructor idiom of GabiHert-finance-tracker-backend's
// entity.Category (uuid.New, time.Now().UTC()) rather than bare struct
// literals scattered across the codebase.
package model

import (
	"time"

	"github.com/google/uuid"
)

// NeedWant is the effective-label enum for a PurchaseItem: need, want, or
// unset. The zero value is Unset.
type NeedWant string

const (
	Unset NeedWant = ""
	Need  NeedWant = "need"
	Want  NeedWant = "want"
)

// Status is the lifecycle state of a PurchaseItem. Only Active items
// participate in analytics (invariant 1).
type Status string

const (
	StatusActive    Status = "active"
	StatusRefunded  Status = "refunded"
	StatusReversed  Status = "reversed"
)

// BuyerLocation is a coarse location snapshot. It deliberately has no
// latitude/longitude fields (invariant 3) — ingestion payloads that carry
// coordinates must drop them before they reach this type.
type BuyerLocation struct {
	City       string `json:"city" bigquery:"city"`
	State      string `json:"state" bigquery:"state"`
	Country    string `json:"country" bigquery:"country"`
	PostalCode string `json:"postal_code,omitempty" bigquery:"postal_code"`
}

// PurchaseItem is a single line item from a purchase or receipt. It is
// created by ingestion and never mutated after insert except for Status and
// UserNeedwant (§3.4).
type PurchaseItem struct {
	ItemID     string `json:"item_id" bigquery:"item_id"`
	PurchaseID string `json:"purchase_id" bigquery:"purchase_id"`
	UserID     string `json:"user_id" bigquery:"user_id"`

	Merchant    string `json:"merchant" bigquery:"merchant"`
	ItemName    string `json:"item_name" bigquery:"item_name"`
	Category    string `json:"category" bigquery:"category"`
	Subcategory string `json:"subcategory,omitempty" bigquery:"subcategory"`

	// ItemText is the canonical normalised form used for embedding and
	// semantic matching: "merchant · category · subcategory · item_name".
	ItemText string `json:"item_text" bigquery:"item_text"`

	Price float64 `json:"price" bigquery:"price"`
	Qty   float64 `json:"qty" bigquery:"qty"`

	Ts time.Time `json:"ts" bigquery:"ts"`

	DetectedNeedwant NeedWant `json:"detected_needwant" bigquery:"detected_needwant"`
	UserNeedwant     NeedWant `json:"user_needwant" bigquery:"user_needwant"`

	Confidence float64 `json:"confidence" bigquery:"confidence"`

	BuyerLocation BuyerLocation `json:"buyer_location" bigquery:"buyer_location"`

	// ItemEmbed is an optional fixed-length vector (768 dims in the
	// reference deployment) produced by an external embedding service.
	// The core consumes it passively; it never computes one.
	ItemEmbed []float64 `json:"item_embed,omitempty" bigquery:"item_embed"`

	Status Status `json:"status" bigquery:"status"`

	CreatedAt time.Time `json:"created_at" bigquery:"created_at"`
}

// EffectiveNeedwant returns UserNeedwant if set, else DetectedNeedwant, else
// Unset, per the GLOSSARY definition.
func (p PurchaseItem) EffectiveNeedwant() NeedWant {
	if p.UserNeedwant != Unset {
		return p.UserNeedwant
	}
	return p.DetectedNeedwant
}

// Total returns price × qty for the item.
func (p PurchaseItem) Total() float64 {
	return p.Price * p.Qty
}

// NewPurchaseItem builds a PurchaseItem with a generated ItemID, a computed
// ItemText, a default Qty of 1, and CreatedAt set to now. Callers fill in the
// rest before persisting.
func NewPurchaseItem(purchaseID, userID, merchant, category, subcategory, itemName string, price float64, ts time.Time) PurchaseItem {
	qty := 1.0
	return PurchaseItem{
		ItemID:      uuid.New().String(),
		PurchaseID:  purchaseID,
		UserID:      userID,
		Merchant:    merchant,
		ItemName:    itemName,
		Category:    category,
		Subcategory: subcategory,
		ItemText:    itemText(merchant, category, subcategory, itemName),
		Price:       price,
		Qty:         qty,
		Ts:          ts,
		Status:      StatusActive,
		CreatedAt:   time.Now().UTC(),
	}
}

func itemText(merchant, category, subcategory, itemName string) string {
	parts := []string{merchant, category}
	if subcategory != "" {
		parts = append(parts, subcategory)
	}
	parts = append(parts, itemName)
	out := parts[0]
	for _, p := range parts[1:] {
		out += " · " + p
	}
	return out
}

// Channel is where a Finding's alternative can be purchased.
type Channel string

const (
	ChannelLocal  Channel = "local"
	ChannelOnline Channel = "online"
)

// Finding is a validated cheaper-substitute record for a single purchased
// item (§3.2). It is the single place untyped capability output becomes a
// typed value (see internal/suggester).
type Finding struct {
	ItemName             string  `json:"item_name"`
	OriginalPrice        float64 `json:"original_price"`
	OriginalMerchant     string  `json:"original_merchant"`
	AlternativeMerchant  string  `json:"alternative_merchant"`
	AlternativePrice     float64 `json:"alternative_price"`
	ShippingCost         float64 `json:"shipping_cost"`
	TaxEstimate          float64 `json:"tax_estimate"`
	TotalLandedCost      float64 `json:"total_landed_cost"`
	TotalSavings         float64 `json:"total_savings"`
	URL                  string  `json:"url"`
	Notes                string  `json:"notes,omitempty"`
	Channel              Channel `json:"channel"`
	Confidence           float64 `json:"confidence"`
}

// Prediction is the Prediction Engine's forecast for one recurring item
// group (§3.2).
type Prediction struct {
	Item            string    `json:"item"`
	Category        string    `json:"category"`
	NextTime        time.Time `json:"next_time"`
	LastTime        time.Time `json:"last_time"`
	AvgIntervalDays float64   `json:"avg_interval_days"`
	Samples         int       `json:"samples"`
	Confidence      float64   `json:"confidence"`
}

// Tip is a rule-based recommendation emitted by the Tip Engine (§3.2).
type Tip struct {
	Icon           string  `json:"icon"`
	Title          string  `json:"title"`
	Subtitle       string  `json:"subtitle"`
	Description    string  `json:"description"`
	MonthlySavings float64 `json:"monthly_savings"`
	ActionTag      string  `json:"action_tag"`
	Category       string  `json:"category"`
}

// Alternative is one catalog entry for a merchant: a cheaper place to shop
// and the expected savings.
type Alternative struct {
	Name          string  `json:"name"`
	SavingsPercent float64 `json:"savings_percent"`
	Icon          string  `json:"icon"`
}

// DealSuggestion is the Deal Catalog's output for one merchant (§3.2).
type DealSuggestion struct {
	CurrentStore         string        `json:"current_store"`
	CurrentSpendingMonth float64       `json:"current_spending_month"`
	AlternativeStore     string        `json:"alternative_store"`
	SavingsPercent       float64       `json:"savings_percent"`
	MonthlySavings       float64       `json:"monthly_savings"`
	PurchaseCount        int           `json:"purchase_count"`
	Category             string        `json:"category"`
	AllAlternatives      []Alternative `json:"all_alternatives"`
}

// WeeklyReport is the Weekly Suggester's persisted output for one
// (user_id, week_start) pair (§3.1). It is owned by the Report Store and
// created/updated by the Weekly Suggester.
type WeeklyReport struct {
	ReportID string `json:"report_id" bigquery:"report_id"`
	UserID   string `json:"user_id" bigquery:"user_id"`

	WeekStart time.Time `json:"week_start" bigquery:"week_start"`
	WeekEnd   time.Time `json:"week_end" bigquery:"week_end"`

	Location ReportLocation `json:"location" bigquery:"location"`

	ItemsAnalyzed         int     `json:"items_analyzed" bigquery:"items_analyzed"`
	ItemsWithAlternatives int     `json:"items_with_alternatives" bigquery:"items_with_alternatives"`
	TotalSavings          float64 `json:"total_savings" bigquery:"total_savings"`

	Findings []Finding `json:"findings" bigquery:"findings"`

	McpCallsMade     int   `json:"mcp_calls_made" bigquery:"mcp_calls_made"`
	ProcessingTimeMs int64 `json:"processing_time_ms" bigquery:"processing_time_ms"`

	// Notes carries the parse_error explanation when the pipeline had to
	// persist an empty-findings report rather than fail the user (§4.6.5).
	Notes string `json:"notes,omitempty" bigquery:"notes"`

	CreatedAt time.Time `json:"created_at" bigquery:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bigquery:"updated_at"`
}

// ReportLocation is the (city, state, country) snapshot carried by a
// WeeklyReport — deliberately no postal code or coordinates (invariant 6).
type ReportLocation struct {
	City    string `json:"city" bigquery:"city"`
	State   string `json:"state" bigquery:"state"`
	Country string `json:"country" bigquery:"country"`
}

// NewWeeklyReport builds an empty report shell for (userID, weekStart),
// generating a ReportID and stamping CreatedAt/UpdatedAt to now. Callers
// populate Findings and the derived counts before upserting.
func NewWeeklyReport(userID string, weekStart time.Time) WeeklyReport {
	now := time.Now().UTC()
	return WeeklyReport{
		ReportID:  uuid.New().String(),
		UserID:    userID,
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDate(0, 0, 6),
		Findings:  []Finding{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransactionRollup is the C2 logical projection grouped by purchase_id.
type TransactionRollup struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Merchant    string    `json:"merchant"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	NeedOrWant  NeedWant  `json:"need_or_want"`
	Confidence  float64   `json:"confidence"`
	OccurredAt  time.Time `json:"occurred_at"`
	ItemText    string    `json:"item_text"`
	Embed       []float64 `json:"embed,omitempty"`
}

// CategoryWeekSummary is the C2 logical projection grouped by
// (user_id, category, subcategory, week(ts)).
type CategoryWeekSummary struct {
	UserID          string    `json:"user_id"`
	Category        string    `json:"category"`
	Subcategory     string    `json:"subcategory,omitempty"`
	WeekStart       time.Time `json:"week_start"`
	PurchaseCount   int       `json:"purchase_count"`
	ItemCount       int       `json:"item_count"`
	TotalSpend      float64   `json:"total_spend"`
	NeedSpend       float64   `json:"need_spend"`
	WantSpend       float64   `json:"want_spend"`
	MeanConfidence  float64   `json:"mean_confidence"`
	UserLabelledCount int     `json:"user_labelled_count"`
}
