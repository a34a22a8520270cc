package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tripledger/tripledger/internal/models"
	"github.com/tripledger/tripledger/internal/service"
)

// LedgerHandlers serves the computed views (balances, debts, plans) and the
// settlement and conversion operations.
type LedgerHandlers struct {
	ledger *service.Ledger
	trips  *service.TripService
}

func (h *LedgerHandlers) Balances(c *gin.Context) {
	ctx := c.Request.Context()
	tripID := c.Param("tripID")

	trip, err := h.trips.GetTrip(ctx, tripID)
	if err != nil {
		respondError(c, err)
		return
	}
	balances, err := h.ledger.ComputeBalances(ctx, tripID)
	if err != nil {
		respondError(c, err)
		return
	}
	if balances == nil {
		balances = []models.Balance{}
	}
	c.JSON(http.StatusOK, gin.H{
		"trip_id":       trip.ID,
		"base_currency": trip.BaseCurrency,
		"balances":      balances,
	})
}

func (h *LedgerHandlers) MemberBalance(c *gin.Context) {
	detail, err := h.ledger.MemberBalance(c.Request.Context(), c.Param("tripID"), c.Param("memberID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *LedgerHandlers) Debts(c *gin.Context) {
	debts, err := h.ledger.ComputeDebts(c.Request.Context(), c.Param("tripID"))
	if err != nil {
		respondError(c, err)
		return
	}
	if debts == nil {
		debts = []models.Debt{}
	}
	c.JSON(http.StatusOK, gin.H{"debts": debts})
}

func (h *LedgerHandlers) SettlementPlan(c *gin.Context) {
	perCurrency, err := strconv.ParseBool(c.DefaultQuery("per_currency", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "per_currency must be a boolean"})
		return
	}

	plan, err := h.ledger.ComputeSettlementPlan(c.Request.Context(), c.Param("tripID"), perCurrency)
	if err != nil {
		respondError(c, err)
		return
	}
	if plan.Payments == nil {
		plan.Payments = []models.Payment{}
	}
	c.JSON(http.StatusOK, plan)
}

type settlementRequest struct {
	FromMemberID     string          `json:"from_member_id"`
	ToMemberID       string          `json:"to_member_id"`
	Currency         string          `json:"currency"`
	Amount           decimal.Decimal `json:"amount"`
	TargetCurrency   string          `json:"target_currency"`
	ConversionRate   decimal.Decimal `json:"conversion_rate"`
	BaseCurrencyRate decimal.Decimal `json:"base_currency_rate"`
	Notes            string          `json:"notes"`
}

func (h *LedgerHandlers) RecordSettlement(c *gin.Context) {
	var req settlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c)
		return
	}

	settlement, err := h.ledger.RecordSettlement(c.Request.Context(), c.Param("tripID"), service.SettlementInput{
		FromMemberID:     req.FromMemberID,
		ToMemberID:       req.ToMemberID,
		Currency:         req.Currency,
		Amount:           req.Amount,
		TargetCurrency:   req.TargetCurrency,
		ConversionRate:   req.ConversionRate,
		BaseCurrencyRate: req.BaseCurrencyRate,
		Notes:            req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, settlement)
}

type convertDebtsRequest struct {
	TargetCurrency string                     `json:"target_currency"`
	Rates          map[string]decimal.Decimal `json:"rates"`
}

func (h *LedgerHandlers) ConvertDebts(c *gin.Context) {
	var req convertDebtsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c)
		return
	}

	converted, skipped, err := h.ledger.ConvertAllDebts(c.Request.Context(), c.Param("tripID"), req.TargetCurrency, req.Rates)
	if err != nil {
		// A conversion failure still reports which currencies were skipped.
		var cerr *service.ConversionError
		if errors.As(err, &cerr) {
			if skipped == nil {
				skipped = []string{}
			}
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": cerr.Error(), "skipped": skipped})
			return
		}
		respondError(c, err)
		return
	}

	if converted == nil {
		converted = []*models.Expense{}
	}
	if skipped == nil {
		skipped = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"target_currency": req.TargetCurrency,
		"converted":       converted,
		"skipped":         skipped,
	})
}

type mergeDebtRequest struct {
	FromMemberID   string          `json:"from_member_id"`
	ToMemberID     string          `json:"to_member_id"`
	Currency       string          `json:"currency"`
	TargetCurrency string          `json:"target_currency"`
	Rate           decimal.Decimal `json:"rate"`
}

func (h *LedgerHandlers) MergeDebt(c *gin.Context) {
	var req mergeDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c)
		return
	}

	result, err := h.ledger.MergeDebt(c.Request.Context(), c.Param("tripID"), service.MergeInput{
		FromMemberID:   req.FromMemberID,
		ToMemberID:     req.ToMemberID,
		Currency:       req.Currency,
		TargetCurrency: req.TargetCurrency,
		Rate:           req.Rate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
