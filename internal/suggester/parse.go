package suggester

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/brightledger/finance-analytics-core/internal/errs"
	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/money"
)

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// arrayRe is the fallback array-extraction regex used when the model
// wraps the array in prose it wasn't asked for, mirroring
// weekly_suggester.py's regex-array-extraction fallback.
var arrayRe = regexp.MustCompile(`(?s)\[.*\]`)

var requiredFields = []string{
	"item_name", "original_price", "original_merchant", "alternative_merchant",
	"alternative_price", "total_landed_cost", "total_savings", "url",
}

// parseFindings implements §4.6.1 step 5: strip code fences, locate the
// first top-level JSON array, decode each entry with tidwall/gjson (the
// single place untyped external JSON becomes typed Finding values, per §9
// Design Notes), reject entries missing a required field, drop entries
// under the minimum savings, clamp confidence, and round monetary fields.
func parseFindings(raw string, minSavingsUSD float64, maxFindings int) ([]model.Finding, error) {
	text := codeFenceRe.ReplaceAllString(raw, "$1")
	text = strings.TrimSpace(text)

	arrayText := text
	if !gjson.Valid(arrayText) || !gjson.Parse(arrayText).IsArray() {
		if m := arrayRe.FindString(text); m != "" {
			arrayText = m
		}
	}

	parsed := gjson.Parse(arrayText)
	if !parsed.IsArray() {
		return nil, errs.New(errs.ParseError, "no JSON array found in capability response")
	}

	var findings []model.Finding
	parsed.ForEach(func(_, entry gjson.Result) bool {
		if len(findings) >= maxFindings {
			return false
		}
		f, ok := parseOneFinding(entry, minSavingsUSD)
		if ok {
			findings = append(findings, f)
		}
		return true
	})

	return findings, nil
}

func parseOneFinding(entry gjson.Result, minSavingsUSD float64) (model.Finding, bool) {
	for _, field := range requiredFields {
		if !entry.Get(field).Exists() {
			return model.Finding{}, false
		}
	}

	totalSavings := entry.Get("total_savings").Float()
	if totalSavings < minSavingsUSD {
		return model.Finding{}, false
	}

	channel := model.ChannelOnline
	if entry.Get("channel").String() == string(model.ChannelLocal) {
		channel = model.ChannelLocal
	}

	confidence := clamp01(entry.Get("confidence").Float())

	return model.Finding{
		ItemName:            entry.Get("item_name").String(),
		OriginalPrice:       money.Round2(money.NonNegative(entry.Get("original_price").Float())),
		OriginalMerchant:    entry.Get("original_merchant").String(),
		AlternativeMerchant: entry.Get("alternative_merchant").String(),
		AlternativePrice:    money.Round2(money.NonNegative(entry.Get("alternative_price").Float())),
		ShippingCost:        money.Round2(money.NonNegative(entry.Get("shipping_cost").Float())),
		TaxEstimate:         money.Round2(money.NonNegative(entry.Get("tax_estimate").Float())),
		TotalLandedCost:     money.Round2(money.NonNegative(entry.Get("total_landed_cost").Float())),
		TotalSavings:        money.Round2(money.NonNegative(totalSavings)),
		URL:                 entry.Get("url").String(),
		Notes:               entry.Get("notes").String(),
		Channel:             channel,
		Confidence:          confidence,
	}, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
