package models

import "github.com/shopspring/decimal"

// ExpenseKind distinguishes recorded spending from settlement payments.
type ExpenseKind string

const (
	// ExpenseRegular is normal recorded spending.
	ExpenseRegular ExpenseKind = "regular"

	// ExpenseSettlement is a payment between members that discharges debt.
	// Settlements are excluded from spending totals but still move the
	// per-currency positions when balances are recomputed.
	ExpenseSettlement ExpenseKind = "settlement"
)

// SplitType selects how an expense's total is divided among members.
type SplitType string

const (
	// SplitEqual divides the total equally among the included members.
	SplitEqual SplitType = "equal"

	// SplitPercentage divides the total by supplied per-member percentages.
	SplitPercentage SplitType = "percentage"

	// SplitCustom uses supplied per-member amounts verbatim.
	SplitCustom SplitType = "custom"
)

// Expense represents money paid by one member on behalf of some members.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string `json:"id"`

	// TripID is the trip this expense belongs to.
	TripID string `json:"trip_id"`

	// Description is the human-readable label (e.g., "Dinner in Kyoto").
	Description string `json:"description"`

	// PayerMemberID is the member who paid the full amount.
	PayerMemberID string `json:"payer_member_id"`

	// Currency is the ISO 4217 code the amount was paid in.
	Currency string `json:"currency"`

	// Amount is the positive total paid, in Currency.
	Amount decimal.Decimal `json:"amount"`

	// BaseCurrencyRate converts Currency into the trip's base currency.
	// Fixed at recording time for historical accuracy; never updated when
	// live rates move.
	BaseCurrencyRate decimal.Decimal `json:"base_currency_rate"`

	// Kind is regular spending or a settlement payment.
	Kind ExpenseKind `json:"kind"`

	// Notes is an optional free-form annotation.
	Notes string `json:"notes,omitempty"`

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64 `json:"created_at"`

	// Splits is the per-member allocation of Amount. Written atomically
	// with the expense; an edit replaces the whole set.
	Splits []Split `json:"splits"`
}

// Split is one member's share of an expense, in the expense's currency.
type Split struct {
	// ExpenseID is the parent expense.
	ExpenseID string `json:"expense_id"`

	// MemberID is the member who owes this share.
	MemberID string `json:"member_id"`

	// Amount is the non-negative share, in the expense's currency.
	Amount decimal.Decimal `json:"amount"`
}
