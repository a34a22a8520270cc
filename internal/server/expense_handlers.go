package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tripledger/tripledger/internal/models"
	"github.com/tripledger/tripledger/internal/service"
)

// ExpenseHandlers serves expense CRUD.
type ExpenseHandlers struct {
	expenses *service.ExpenseService
}

type expenseRequest struct {
	Description       string                     `json:"description"`
	PayerMemberID     string                     `json:"payer_member_id"`
	Currency          string                     `json:"currency"`
	Amount            decimal.Decimal            `json:"amount"`
	BaseCurrencyRate  decimal.Decimal            `json:"base_currency_rate"`
	SplitType         string                     `json:"split_type"`
	IncludedMemberIDs []string                   `json:"included_member_ids"`
	Portions          map[string]decimal.Decimal `json:"portions"`
	Notes             string                     `json:"notes"`
}

func (r expenseRequest) toInput() service.ExpenseInput {
	return service.ExpenseInput{
		Description:      r.Description,
		PayerMemberID:    r.PayerMemberID,
		Currency:         r.Currency,
		Amount:           r.Amount,
		BaseCurrencyRate: r.BaseCurrencyRate,
		SplitType:        models.SplitType(r.SplitType),
		IncludedIDs:      r.IncludedMemberIDs,
		Portions:         r.Portions,
		Notes:            r.Notes,
	}
}

func (h *ExpenseHandlers) Create(c *gin.Context) {
	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c)
		return
	}

	expense, err := h.expenses.CreateExpense(c.Request.Context(), c.Param("tripID"), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, expense)
}

func (h *ExpenseHandlers) List(c *gin.Context) {
	expenses, err := h.expenses.ListExpenses(c.Request.Context(), c.Param("tripID"), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	if expenses == nil {
		expenses = []*models.Expense{}
	}
	c.JSON(http.StatusOK, gin.H{"expenses": expenses})
}

func (h *ExpenseHandlers) Get(c *gin.Context) {
	expense, err := h.expenses.GetExpense(c.Request.Context(), c.Param("tripID"), c.Param("expenseID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expense)
}

func (h *ExpenseHandlers) Update(c *gin.Context) {
	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c)
		return
	}

	expense, err := h.expenses.UpdateExpense(c.Request.Context(), c.Param("tripID"), c.Param("expenseID"), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expense)
}

func (h *ExpenseHandlers) Delete(c *gin.Context) {
	if err := h.expenses.DeleteExpense(c.Request.Context(), c.Param("tripID"), c.Param("expenseID")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
