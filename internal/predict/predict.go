// Package predict implements the Prediction Engine (C3): recurrence
// detection and next-time forecasting with a calibrated confidence score.
// The grouping and confidence formula are carried over unchanged from
// original_source/backend/database/api/predictor.py's _compute_confidence
// and predict_next_purchases.
package predict

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/store"
)

const (
	minConfidence    = 0.5
	sampleCap        = 10
	sampleWeight     = 0.4
	regularityWeight = 0.4
	baseConfidence   = 0.2
)

// Engine is the Prediction Engine. It holds no state beyond the store it
// reads from (§4.3's algorithm is a pure function of the active items it
// loads).
type Engine struct {
	Store store.PurchaseStore
}

func New(s store.PurchaseStore) *Engine {
	return &Engine{Store: s}
}

type group struct {
	itemName string // original-case display name of the first occurrence
	category string
	times    []time.Time
}

func groupKey(itemName, category string) string {
	return strings.ToLower(strings.TrimSpace(itemName)) + "\x00" + category
}

// Predict runs the full algorithm of §4.3 for userID and returns at most
// limit predictions. The store query failing fails the whole operation —
// no partial prediction list.
func (e *Engine) Predict(ctx context.Context, userID string, limit int) ([]model.Prediction, error) {
	items, err := e.Store.ListItems(ctx, store.ListItemsParams{UserID: userID, Limit: store.UnboundedLimit})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Ts.Before(items[j].Ts) })

	groups := make(map[string]*group)
	order := make([]string, 0)
	for _, it := range items {
		k := groupKey(it.ItemName, it.Category)
		g, ok := groups[k]
		if !ok {
			g = &group{itemName: it.ItemName, category: it.Category}
			groups[k] = g
			order = append(order, k)
		}
		g.times = append(g.times, it.Ts)
	}

	predictions := make([]model.Prediction, 0)
	for _, k := range order {
		g := groups[k]
		if len(g.times) < 2 {
			continue // edge case: fewer than 2 samples yields no prediction.
		}
		p := predictGroup(g)
		if p.Confidence >= minConfidence {
			predictions = append(predictions, p)
		}
	}

	sort.Slice(predictions, func(i, j int) bool {
		a, b := predictions[i], predictions[j]
		if !a.NextTime.Equal(b.NextTime) {
			return a.NextTime.Before(b.NextTime)
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Item < b.Item
	})

	if limit >= 0 && len(predictions) > limit {
		predictions = predictions[:limit]
	}
	return predictions, nil
}

func predictGroup(g *group) model.Prediction {
	m := len(g.times)
	intervals := make([]float64, 0, m-1)
	for i := 1; i < m; i++ {
		days := g.times[i].Sub(g.times[i-1]).Hours() / 24
		intervals = append(intervals, days)
	}

	avg := mean(intervals)
	sd := populationStddev(intervals, avg)

	sampleFactor := math.Min(float64(m), sampleCap) / sampleCap

	var regularityFactor float64
	if avg > 0 {
		regularityFactor = clamp(1-sd/avg, 0, 1)
	}

	confidence := baseConfidence + sampleWeight*sampleFactor + regularityWeight*regularityFactor

	last := g.times[m-1]
	next := last.Add(time.Duration(avg * float64(24*time.Hour)))

	return model.Prediction{
		Item:            g.itemName,
		Category:        g.category,
		NextTime:        next,
		LastTime:        last,
		AvgIntervalDays: avg,
		Samples:         m,
		Confidence:      confidence,
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func populationStddev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
