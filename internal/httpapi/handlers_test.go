package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightledger/finance-analytics-core/internal/deals"
	"github.com/brightledger/finance-analytics-core/internal/model"
	"github.com/brightledger/finance-analytics-core/internal/predict"
	"github.com/brightledger/finance-analytics-core/internal/storetest"
	"github.com/brightledger/finance-analytics-core/internal/suggester"
	"github.com/brightledger/finance-analytics-core/internal/tips"
)

func newTestRouter(items []model.PurchaseItem) (http.Handler, *storetest.FakeStore, *storetest.FakeReportStore) {
	purchases := &storetest.FakeStore{Items: items}
	reports := storetest.NewFakeReportStore()
	catalog := deals.Default([]string{"Groceries"})
	h := &Handlers{
		Purchases:     purchases,
		Reports:       reports,
		PredictEngine: predict.New(purchases),
		Tips:          tips.New(purchases, catalog),
		Deals:         deals.New(purchases, catalog),
		Suggester:     suggester.New(purchases, reports, &storetest.FakeSearch{}, suggester.Config{TopN: 20, SearchModel: "claude", MaxFindings: 20}),
	}
	return NewRouter(h, zerolog.Nop(), []string{"*"}), purchases, reports
}

func TestHealth_OK(t *testing.T) {
	router, _, _ := newTestRouter(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
}

func TestTransactions_RollsUpByPurchaseID(t *testing.T) {
	now := time.Now().UTC()
	items := []model.PurchaseItem{
		model.NewPurchaseItem("p1", "u1", "Store", "Groceries", "", "Milk", 5.0, now),
		model.NewPurchaseItem("p1", "u1", "Store", "Groceries", "", "Eggs", 3.0, now),
	}
	router, _, _ := newTestRouter(items)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user/u1/transactions", nil)

	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []transactionView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.InDelta(t, 8.0, out[0].Amount, 0.0001)
}

func TestTransactions_ExplicitZeroLimitReturnsEmptyList(t *testing.T) {
	now := time.Now().UTC()
	items := []model.PurchaseItem{
		model.NewPurchaseItem("p1", "u1", "Store", "Groceries", "", "Milk", 5.0, now),
	}
	router, _, _ := newTestRouter(items)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user/u1/transactions?limit=0", nil)

	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []transactionView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Len(t, out, 0)
}

func TestTransactions_RejectsLimitAboveMax(t *testing.T) {
	router, _, _ := newTestRouter(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user/u1/transactions?limit=500", nil)

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredict_RequiresUserID(t *testing.T) {
	router, _, _ := newTestRouter(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/predict", nil)

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredict_RejectsLimitAbove20(t *testing.T) {
	router, _, _ := newTestRouter(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/predict?user_id=u1&limit=21", nil)

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredict_ExplicitZeroLimitReturnsEmptyList(t *testing.T) {
	router, _, _ := newTestRouter(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/predict?user_id=u1&limit=0", nil)

	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []model.Prediction
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Len(t, out, 0)
}

func TestWeeklyAlternatives_404sWhenNoReportExists(t *testing.T) {
	router, _, _ := newTestRouter(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user/u1/weekly_alternatives", nil)

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "not_found", body["kind"])
}

func TestWeeklyAlternatives_ReturnsStoredReport(t *testing.T) {
	router, _, reports := newTestRouter(nil)
	weekStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	report := model.NewWeeklyReport("u1", weekStart)
	require.NoError(t, reports.Upsert(context.Background(), report))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user/u1/weekly_alternatives?week=2026-01-05", nil)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNeedwant_RejectsInvalidLabel(t *testing.T) {
	now := time.Now().UTC()
	item := model.NewPurchaseItem("p1", "u1", "Store", "Groceries", "", "Milk", 5.0, now)
	router, _, _ := newTestRouter([]model.PurchaseItem{item})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/item/"+item.ItemID+"/needwant", strings.NewReader(`{"label":"maybe"}`))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNeedwant_SetsLabelOnValidRequest(t *testing.T) {
	now := time.Now().UTC()
	item := model.NewPurchaseItem("p1", "u1", "Store", "Groceries", "", "Milk", 5.0, now)
	router, _, _ := newTestRouter([]model.PurchaseItem{item})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/item/"+item.ItemID+"/needwant", strings.NewReader(`{"label":"need"}`))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.PurchaseItem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, model.Need, got.UserNeedwant)
}

func TestNeedwant_UnknownItemIs404(t *testing.T) {
	router, _, _ := newTestRouter(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/item/does-not-exist/needwant", strings.NewReader(`{"label":"need"}`))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router, _, _ := newTestRouter(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWeeklyAlternativesStream_EmitsSSEFramedEvents(t *testing.T) {
	router, _, _ := newTestRouter(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user/u1/weekly_alternatives/stream?week=2026-01-05", nil)

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: "))
	assert.Contains(t, body, `"event":"start"`)
	assert.Contains(t, body, `"event":"complete"`)
}

func TestRouter_UnknownUserSubpathIs404(t *testing.T) {
	router, _, _ := newTestRouter(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user/u1/nonsense", nil)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
