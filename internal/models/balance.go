package models

import "github.com/shopspring/decimal"

// Balance is one member's recomputed position. Derived on every read,
// never persisted.
type Balance struct {
	// MemberID identifies the member.
	MemberID string `json:"member_id"`

	// MemberName is the member's display name.
	MemberName string `json:"member_name"`

	// TotalPaid is the sum of regular expenses this member paid for,
	// in base currency at each expense's recorded rate.
	TotalPaid decimal.Decimal `json:"total_paid"`

	// TotalOwed is this member's share of regular expenses, in base
	// currency at each expense's recorded rate.
	TotalOwed decimal.Decimal `json:"total_owed"`

	// NetBalance is paid minus owed across all expenses including
	// settlements, in base currency. Positive means owed money, negative
	// means owing money.
	NetBalance decimal.Decimal `json:"net_balance"`

	// PerCurrency is the member's net position per original currency,
	// unconverted. Currencies whose position has netted to zero are absent.
	PerCurrency map[string]decimal.Decimal `json:"per_currency"`
}

// Debt is a netted, currently-outstanding obligation between two members
// in one currency. Derived, never persisted. At most one record exists per
// unordered member pair and currency.
type Debt struct {
	// FromMemberID is the member who owes.
	FromMemberID string `json:"from_member_id"`

	// FromMemberName is the debtor's display name.
	FromMemberName string `json:"from_member_name,omitempty"`

	// ToMemberID is the member who is owed.
	ToMemberID string `json:"to_member_id"`

	// ToMemberName is the creditor's display name.
	ToMemberName string `json:"to_member_name,omitempty"`

	// Currency is the ISO 4217 code the debt is denominated in.
	Currency string `json:"currency"`

	// Amount is strictly positive.
	Amount decimal.Decimal `json:"amount"`
}

// Payment is one suggested transfer in a settlement plan.
type Payment struct {
	FromMemberID   string          `json:"from_member_id"`
	FromMemberName string          `json:"from_member_name,omitempty"`
	ToMemberID     string          `json:"to_member_id"`
	ToMemberName   string          `json:"to_member_name,omitempty"`
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
}

// SettlementPlan is the ordered list of payments that would clear every
// outstanding debt with a minimal number of transactions. Derived per
// query; recording one of its payments creates a settlement Expense.
type SettlementPlan struct {
	// TripID is the trip the plan was computed for.
	TripID string `json:"trip_id"`

	// PerCurrency reports whether the plan was computed independently per
	// original currency (true) or on base-currency projections (false).
	PerCurrency bool `json:"per_currency"`

	// Payments in suggested order.
	Payments []Payment `json:"payments"`
}

// MemberBalanceDetail expands one member's balance with the expenses and
// debts behind it.
type MemberBalanceDetail struct {
	Balance

	// ExpensesPaid lists expenses this member paid, amounts in base currency.
	ExpensesPaid []ExpenseRef `json:"expenses_paid"`

	// ExpensesOwed lists this member's shares of expenses, in base currency.
	ExpensesOwed []ExpenseRef `json:"expenses_owed"`

	// OwesDebts are outstanding debts where this member is the debtor.
	OwesDebts []Debt `json:"owes"`

	// OwedDebts are outstanding debts where this member is the creditor.
	OwedDebts []Debt `json:"owed"`
}

// ExpenseRef is a compact expense reference used in balance detail views.
type ExpenseRef struct {
	ExpenseID   string          `json:"expense_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}
