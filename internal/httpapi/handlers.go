package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/brightledger/finance-analytics-core/internal/aggregate"
	"github.com/brightledger/finance-analytics-core/internal/deals"
	"github.com/brightledger/finance-analytics-core/internal/errs"
	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/predict"
	"github.com/brightledger/finance-analytics-core/internal/store"
	"github.com/brightledger/finance-analytics-core/internal/suggester"
	"github.com/brightledger/finance-analytics-core/internal/tips"
)

// Handlers holds the engines and stores the facade dispatches to.
type Handlers struct {
	Purchases     store.PurchaseStore
	Reports       store.ReportStore
	PredictEngine *predict.Engine
	Tips          *tips.Engine
	Deals         *deals.Engine
	Suggester     *suggester.Engine
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "connected"
	if err := h.Purchases.Ping(r.Context()); err != nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"store": status,
		"time":  time.Now().UTC().Format(time.RFC3339),
	})
}

// transactionView is the wire shape for GET /api/user/{user_id}/transactions.
type transactionView struct {
	ID       string  `json:"id"`
	Item     string  `json:"item"`
	Amount   float64 `json:"amount"`
	Date     string  `json:"date"`
	Category string  `json:"category"`
}

// Transactions handles GET /api/user/{user_id}/transactions.
func (h *Handlers) Transactions(w http.ResponseWriter, r *http.Request, userID string) {
	limit, err := parseLimit(r, 20, 100)
	if err != nil {
		writeErr(w, err)
		return
	}

	items, err := h.Purchases.ListItems(r.Context(), store.ListItemsParams{UserID: userID, Limit: limit})
	if err != nil {
		writeErr(w, err)
		return
	}

	rollups := aggregate.Rollup(items)
	if len(rollups) > limit {
		rollups = rollups[:limit]
	}

	out := make([]transactionView, 0, len(rollups))
	for _, t := range rollups {
		out = append(out, transactionView{
			ID:       t.ID,
			Item:     t.ItemText,
			Amount:   t.Amount,
			Date:     t.OccurredAt.Format(time.RFC3339),
			Category: t.Category,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Predict handles GET /api/predict.
func (h *Handlers) Predict(w http.ResponseWriter, r *http.Request) {
	userID, err := requireQuery(r, "user_id")
	if err != nil {
		writeErr(w, err)
		return
	}
	limit, err := parseLimit(r, 20, 20)
	if err != nil {
		writeErr(w, err)
		return
	}
	predictions, err := h.PredictEngine.Predict(r.Context(), userID, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, predictions)
}

// SmartTips handles GET /api/smart-tips.
func (h *Handlers) SmartTips(w http.ResponseWriter, r *http.Request) {
	userID, err := requireQuery(r, "user_id")
	if err != nil {
		writeErr(w, err)
		return
	}
	limit, err := parseLimit(r, 20, 20)
	if err != nil {
		writeErr(w, err)
		return
	}
	result, err := h.Tips.Suggest(r.Context(), userID, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// BetterDeals handles GET /api/better-deals.
func (h *Handlers) BetterDeals(w http.ResponseWriter, r *http.Request) {
	userID, err := requireQuery(r, "user_id")
	if err != nil {
		writeErr(w, err)
		return
	}
	limit, err := parseLimit(r, 20, 20)
	if err != nil {
		writeErr(w, err)
		return
	}
	result, err := h.Deals.Suggest(r.Context(), userID, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// WeeklyAlternatives handles GET /api/user/{user_id}/weekly_alternatives.
func (h *Handlers) WeeklyAlternatives(w http.ResponseWriter, r *http.Request, userID string) {
	week, err := parseWeek(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	report, ok, err := h.Reports.Get(r.Context(), userID, week)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !ok {
		writeErrorJSON(w, http.StatusNotFound, string(errs.NotFound), "no weekly report for this user/week")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// WeeklyAlternativesHistory handles GET
// /api/user/{user_id}/weekly_alternatives/history.
func (h *Handlers) WeeklyAlternativesHistory(w http.ResponseWriter, r *http.Request, userID string) {
	limit, err := parseLimit(r, 4, 20)
	if err != nil {
		writeErr(w, err)
		return
	}
	reports, err := h.Reports.ListHistory(r.Context(), userID, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// WeeklyAlternativesStream handles GET
// /api/user/{user_id}/weekly_alternatives/stream, per §4.6.4 and §6.3: an
// SSE response with no `event:` field — the event kind lives in the JSON
// payload's `event` property.
func (h *Handlers) WeeklyAlternativesStream(w http.ResponseWriter, r *http.Request, userID string) {
	week, err := parseWeek(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	weekStart := time.Now().UTC()
	if week != nil {
		weekStart = *week
	}
	weekStart = aggregate.ISOWeekStartUTC(weekStart)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorJSON(w, http.StatusInternalServerError, string(errs.Internal), "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emitter := h.Suggester.RunStream(r.Context(), userID, weekStart, false)
	for ev := range emitter.Events() {
		if !writeSSE(w, ev) {
			return
		}
		flusher.Flush()
	}
}

// needwantRequest is the body of POST /api/item/{item_id}/needwant.
type needwantRequest struct {
	Label string `json:"label"`
}

// Needwant handles POST /api/item/{item_id}/needwant (C9), the HTTP
// wiring for Store.SetNeedWant.
func (h *Handlers) Needwant(w http.ResponseWriter, r *http.Request, itemID string) {
	var req needwantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, errs.New(errs.BadRequest, "invalid request body"))
		return
	}
	label := model.NeedWant(req.Label)
	if label != model.Need && label != model.Want {
		writeErr(w, errs.New(errs.BadRequest, "label must be \"need\" or \"want\""))
		return
	}
	item, err := h.Purchases.SetNeedWant(r.Context(), itemID, label)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
