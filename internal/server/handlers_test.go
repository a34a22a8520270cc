package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tripledger/tripledger/internal/models"
	"github.com/tripledger/tripledger/internal/rates"
	"github.com/tripledger/tripledger/internal/service"
	"github.com/tripledger/tripledger/internal/storage/sqlite"
)

type stubRates struct {
	pairs map[string]decimal.Decimal
}

func (s *stubRates) Rate(_ context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if r, ok := s.pairs[from+"/"+to]; ok {
		return r, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s", rates.ErrUnknownCurrency, from)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tempDir, err := os.MkdirTemp("", "tripledger-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	src := &stubRates{pairs: map[string]decimal.Decimal{
		"EUR/USD": decimal.RequireFromString("1.18"),
		"USD/EUR": decimal.RequireFromString("0.85"),
	}}
	svcs := Services{
		Trips:    service.NewTripService(store),
		Expenses: service.NewExpenseService(store, src),
		Ledger:   service.NewLedger(store, src),
	}
	return NewRouter(svcs, nil, "tripledger", "test")
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

func createTrip(t *testing.T, router *gin.Engine, names ...string) models.Trip {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/trips", gin.H{
		"name":          "Test Trip",
		"base_currency": "USD",
		"members":       names,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/trips status = %d, body %s", w.Code, w.Body.String())
	}
	var trip models.Trip
	decodeInto(t, w, &trip)
	return trip
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /healthz status = %d", w.Code)
	}
	var resp struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	decodeInto(t, w, &resp)
	if resp.Status != "ok" || resp.Service != "tripledger" {
		t.Errorf("healthz = %+v", resp)
	}
}

func TestCurrencies(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/currencies", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/currencies status = %d", w.Code)
	}
	var resp struct {
		Currencies []models.Currency `json:"currencies"`
	}
	decodeInto(t, w, &resp)
	if len(resp.Currencies) != len(models.SupportedCurrencies) {
		t.Errorf("currencies = %d, want %d", len(resp.Currencies), len(models.SupportedCurrencies))
	}
}

func TestRequestIDHeader(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want caller's id echoed", got)
	}
}

func TestTripEndpoints(t *testing.T) {
	router := newTestRouter(t)

	trip := createTrip(t, router, "Alice", "Bob")
	if len(trip.Members) != 2 {
		t.Fatalf("created trip members = %d, want 2", len(trip.Members))
	}

	w := doJSON(t, router, http.MethodGet, "/api/trips/"+trip.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET trip status = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/trips/"+trip.ID+"/members", gin.H{"name": "Charlie"})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST member status = %d, body %s", w.Code, w.Body.String())
	}
	var member models.Member
	decodeInto(t, w, &member)
	if member.Name != "Charlie" || member.TripID != trip.ID {
		t.Errorf("member = %+v", member)
	}

	w = doJSON(t, router, http.MethodGet, "/api/trips/"+trip.ID+"/members", nil)
	var membersResp struct {
		Members []models.Member `json:"members"`
	}
	decodeInto(t, w, &membersResp)
	if len(membersResp.Members) != 3 {
		t.Errorf("members = %d, want 3", len(membersResp.Members))
	}

	w = doJSON(t, router, http.MethodGet, "/api/trips", nil)
	var tripsResp struct {
		Trips []models.Trip `json:"trips"`
	}
	decodeInto(t, w, &tripsResp)
	if len(tripsResp.Trips) != 1 {
		t.Errorf("trips = %d, want 1", len(tripsResp.Trips))
	}

	if w := doJSON(t, router, http.MethodGet, "/api/trips/nonexistent", nil); w.Code != http.StatusNotFound {
		t.Errorf("GET unknown trip status = %d, want 404", w.Code)
	}

	// Malformed JSON never reaches the service layer.
	req := httptest.NewRequest(http.MethodPost, "/api/trips", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST malformed body status = %d, want 400", rec.Code)
	}
}

func TestExpenseEndpoints(t *testing.T) {
	router := newTestRouter(t)
	trip := createTrip(t, router, "Alice", "Bob")
	alice := trip.Members[0]

	w := doJSON(t, router, http.MethodPost, "/api/trips/"+trip.ID+"/expenses", gin.H{
		"description":     "Dinner",
		"payer_member_id": alice.ID,
		"amount":          "60",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST expense status = %d, body %s", w.Code, w.Body.String())
	}
	var expense models.Expense
	decodeInto(t, w, &expense)
	if len(expense.Splits) != 2 || !expense.Splits[0].Amount.Equal(decimal.RequireFromString("30")) {
		t.Errorf("expense splits = %+v, want 30 each", expense.Splits)
	}

	w = doJSON(t, router, http.MethodGet, "/api/trips/"+trip.ID+"/expenses?type=regular", nil)
	var listResp struct {
		Expenses []models.Expense `json:"expenses"`
	}
	decodeInto(t, w, &listResp)
	if len(listResp.Expenses) != 1 {
		t.Errorf("regular expenses = %d, want 1", len(listResp.Expenses))
	}

	if w := doJSON(t, router, http.MethodGet, "/api/trips/"+trip.ID+"/expenses?type=bogus", nil); w.Code != http.StatusBadRequest {
		t.Errorf("GET expenses bogus type status = %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodPut, "/api/trips/"+trip.ID+"/expenses/"+expense.ID, gin.H{
		"description":     "Fancy dinner",
		"payer_member_id": alice.ID,
		"amount":          "90",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT expense status = %d, body %s", w.Code, w.Body.String())
	}
	var updated models.Expense
	decodeInto(t, w, &updated)
	if updated.Description != "Fancy dinner" || !updated.Amount.Equal(decimal.RequireFromString("90")) {
		t.Errorf("updated = %q %s", updated.Description, updated.Amount)
	}

	if w := doJSON(t, router, http.MethodDelete, "/api/trips/"+trip.ID+"/expenses/"+expense.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("DELETE expense status = %d, want 204", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/trips/"+trip.ID+"/expenses/"+expense.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("GET deleted expense status = %d, want 404", w.Code)
	}

	// Validation failures map to 400.
	w = doJSON(t, router, http.MethodPost, "/api/trips/"+trip.ID+"/expenses", gin.H{
		"description":     "Dinner",
		"payer_member_id": "ghost",
		"amount":          "60",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("POST invalid expense status = %d, want 400", w.Code)
	}
}

func TestBalanceAndPlanEndpoints(t *testing.T) {
	router := newTestRouter(t)
	trip := createTrip(t, router, "Alice", "Bob", "Charlie")
	alice := trip.Members[0]

	w := doJSON(t, router, http.MethodPost, "/api/trips/"+trip.ID+"/expenses", gin.H{
		"description":     "Groceries",
		"payer_member_id": alice.ID,
		"amount":          "60",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST expense status = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/trips/"+trip.ID+"/balances", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET balances status = %d", w.Code)
	}
	var balancesResp struct {
		TripID       string           `json:"trip_id"`
		BaseCurrency string           `json:"base_currency"`
		Balances     []models.Balance `json:"balances"`
	}
	decodeInto(t, w, &balancesResp)
	if balancesResp.BaseCurrency != "USD" || len(balancesResp.Balances) != 3 {
		t.Errorf("balances envelope = %+v", balancesResp)
	}

	w = doJSON(t, router, http.MethodGet, "/api/trips/"+trip.ID+"/members/"+alice.ID+"/balance", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET member balance status = %d", w.Code)
	}
	var detail models.MemberBalanceDetail
	decodeInto(t, w, &detail)
	if !detail.NetBalance.Equal(decimal.RequireFromString("40")) {
		t.Errorf("Alice net = %s, want 40", detail.NetBalance)
	}

	w = doJSON(t, router, http.MethodGet, "/api/trips/"+trip.ID+"/debts", nil)
	var debtsResp struct {
		Debts []models.Debt `json:"debts"`
	}
	decodeInto(t, w, &debtsResp)
	if len(debtsResp.Debts) != 2 {
		t.Errorf("debts = %d, want 2", len(debtsResp.Debts))
	}

	w = doJSON(t, router, http.MethodGet, "/api/trips/"+trip.ID+"/settlements/plan?per_currency=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET plan status = %d", w.Code)
	}
	var plan models.SettlementPlan
	decodeInto(t, w, &plan)
	if !plan.PerCurrency || len(plan.Payments) != 2 {
		t.Errorf("plan = %+v, want 2 per-currency payments", plan)
	}

	if w := doJSON(t, router, http.MethodGet, "/api/trips/"+trip.ID+"/settlements/plan?per_currency=maybe", nil); w.Code != http.StatusBadRequest {
		t.Errorf("GET plan bad flag status = %d, want 400", w.Code)
	}
}

func TestSettlementAndConversionEndpoints(t *testing.T) {
	router := newTestRouter(t)
	trip := createTrip(t, router, "Alice", "Bob")
	alice, bob := trip.Members[0], trip.Members[1]

	w := doJSON(t, router, http.MethodPost, "/api/trips/"+trip.ID+"/expenses", gin.H{
		"description":     "Tickets",
		"payer_member_id": alice.ID,
		"currency":        "EUR",
		"amount":          "100",
		"split_type":      "custom",
		"portions":        gin.H{bob.ID: "100"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST expense status = %d, body %s", w.Code, w.Body.String())
	}

	// Bob pays back 40 EUR.
	w = doJSON(t, router, http.MethodPost, "/api/trips/"+trip.ID+"/settlements", gin.H{
		"from_member_id": bob.ID,
		"to_member_id":   alice.ID,
		"currency":       "EUR",
		"amount":         "40",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST settlement status = %d, body %s", w.Code, w.Body.String())
	}
	var settlement models.Expense
	decodeInto(t, w, &settlement)
	if settlement.Kind != models.ExpenseSettlement {
		t.Errorf("settlement kind = %s", settlement.Kind)
	}

	if w := doJSON(t, router, http.MethodPost, "/api/trips/"+trip.ID+"/settlements", gin.H{
		"from_member_id": bob.ID,
		"to_member_id":   bob.ID,
		"amount":         "10",
	}); w.Code != http.StatusBadRequest {
		t.Errorf("POST self settlement status = %d, want 400", w.Code)
	}

	// The remaining 60 EUR debt converts to 70.80 USD.
	w = doJSON(t, router, http.MethodPost, "/api/trips/"+trip.ID+"/debts/convert", gin.H{
		"target_currency": "USD",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("POST convert status = %d, body %s", w.Code, w.Body.String())
	}
	var convertResp struct {
		Converted []models.Expense `json:"converted"`
		Skipped   []string         `json:"skipped"`
	}
	decodeInto(t, w, &convertResp)
	if len(convertResp.Converted) != 2 || len(convertResp.Skipped) != 0 {
		t.Errorf("convert = %d converted, %v skipped", len(convertResp.Converted), convertResp.Skipped)
	}

	w = doJSON(t, router, http.MethodGet, "/api/trips/"+trip.ID+"/debts", nil)
	var debtsResp struct {
		Debts []models.Debt `json:"debts"`
	}
	decodeInto(t, w, &debtsResp)
	if len(debtsResp.Debts) != 1 || debtsResp.Debts[0].Currency != "USD" ||
		!debtsResp.Debts[0].Amount.Equal(decimal.RequireFromString("70.80")) {
		t.Errorf("debts after convert = %+v, want 70.80 USD", debtsResp.Debts)
	}

	// Merge it back into EUR at an explicit rate.
	w = doJSON(t, router, http.MethodPost, "/api/trips/"+trip.ID+"/debts/merge", gin.H{
		"from_member_id":  bob.ID,
		"to_member_id":    alice.ID,
		"currency":        "USD",
		"target_currency": "EUR",
		"rate":            "0.85",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("POST merge status = %d, body %s", w.Code, w.Body.String())
	}
	var mergeResp service.MergeResult
	decodeInto(t, w, &mergeResp)
	if !mergeResp.ConvertedAmount.Equal(decimal.RequireFromString("60.18")) {
		t.Errorf("merged amount = %s, want 60.18", mergeResp.ConvertedAmount)
	}
}

func TestConvertReportsSkipped(t *testing.T) {
	router := newTestRouter(t)
	trip := createTrip(t, router, "Alice", "Bob")
	alice, bob := trip.Members[0], trip.Members[1]

	// CAD has no stubbed rate; the recording rate is pinned by the caller.
	w := doJSON(t, router, http.MethodPost, "/api/trips/"+trip.ID+"/expenses", gin.H{
		"description":        "Poutine",
		"payer_member_id":    alice.ID,
		"currency":           "CAD",
		"amount":             "50",
		"base_currency_rate": "0.73",
		"split_type":         "custom",
		"portions":           gin.H{bob.ID: "50"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST expense status = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/trips/"+trip.ID+"/debts/convert", gin.H{
		"target_currency": "USD",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("POST convert status = %d, want 422", w.Code)
	}
	var resp struct {
		Error   string   `json:"error"`
		Skipped []string `json:"skipped"`
	}
	decodeInto(t, w, &resp)
	if resp.Error == "" || len(resp.Skipped) != 1 || resp.Skipped[0] != "CAD" {
		t.Errorf("convert failure = %+v, want CAD skipped", resp)
	}
}
