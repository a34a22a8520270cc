package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tripledger/tripledger/internal/calculator"
	"github.com/tripledger/tripledger/internal/models"
	"github.com/tripledger/tripledger/internal/rates"
	"github.com/tripledger/tripledger/internal/storage"
)

var one = decimal.NewFromInt(1)

// ExpenseInput carries the caller-supplied fields for creating or updating
// an expense.
type ExpenseInput struct {
	Description   string
	PayerMemberID string

	// Currency defaults to the trip's base currency when empty.
	Currency string

	// Amount is the positive total paid, in Currency.
	Amount decimal.Decimal

	// BaseCurrencyRate converts Currency into the trip's base currency.
	// Zero means resolve automatically: 1 when Currency equals the base,
	// otherwise the current rate from the rate source.
	BaseCurrencyRate decimal.Decimal

	// SplitType defaults to equal.
	SplitType models.SplitType

	// IncludedIDs are the members sharing an equal split. Empty means every
	// trip member.
	IncludedIDs []string

	// Portions maps member id to a percentage (percentage split) or an
	// amount in Currency (custom split).
	Portions map[string]decimal.Decimal

	Notes string
}

// ExpenseService manages expense CRUD on top of the split resolver.
type ExpenseService struct {
	store storage.Store
	rates rates.Source
}

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(store storage.Store, rates rates.Source) *ExpenseService {
	return &ExpenseService{store: store, rates: rates}
}

// CreateExpense validates the input, resolves splits and the base currency
// rate, and persists a new regular expense.
func (s *ExpenseService) CreateExpense(ctx context.Context, tripID string, in ExpenseInput) (*models.Expense, error) {
	slog.Info("CreateExpense request received",
		"trip_id", tripID,
		"amount", in.Amount,
		"currency", in.Currency,
		"split_type", in.SplitType,
	)

	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	expense, err := s.buildExpense(ctx, trip, in)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		slog.Error("CreateExpense failed", "trip_id", tripID, "error", err)
		return nil, wrapStoreErr(err)
	}

	slog.Info("Expense created", "expense_id", expense.ID, "splits_count", len(expense.Splits))
	return expense, nil
}

// GetExpense retrieves an expense scoped to a trip.
func (s *ExpenseService) GetExpense(ctx context.Context, tripID, expenseID string) (*models.Expense, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if expense.TripID != tripID {
		return nil, notFoundf("expense %s: not found", expenseID)
	}
	return expense, nil
}

// ListExpenses retrieves a trip's expenses filtered by kind: "regular",
// "settlements", or "all" (the default).
func (s *ExpenseService) ListExpenses(ctx context.Context, tripID, kind string) ([]*models.Expense, error) {
	filter, err := parseKindFilter(kind)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetTrip(ctx, tripID); err != nil {
		return nil, wrapStoreErr(err)
	}

	expenses, err := s.store.ListExpenses(ctx, tripID, filter)
	if err != nil {
		slog.Error("ListExpenses failed", "trip_id", tripID, "error", err)
		return nil, wrapStoreErr(err)
	}
	return expenses, nil
}

// UpdateExpense revalidates the input and replaces the expense and its
// splits. The kind and creation time never change on update; editing a
// settlement regenerates its single split at the new amount.
func (s *ExpenseService) UpdateExpense(ctx context.Context, tripID, expenseID string, in ExpenseInput) (*models.Expense, error) {
	slog.Info("UpdateExpense request received", "trip_id", tripID, "expense_id", expenseID)

	existing, err := s.GetExpense(ctx, tripID, expenseID)
	if err != nil {
		return nil, err
	}
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	if existing.Kind == models.ExpenseSettlement {
		if len(existing.Splits) != 1 {
			return nil, &ConsistencyError{msg: fmt.Sprintf("settlement %s has %d splits, want 1", existing.ID, len(existing.Splits))}
		}
		in.SplitType = models.SplitCustom
		in.Portions = map[string]decimal.Decimal{
			existing.Splits[0].MemberID: calculator.RoundMoney(in.Amount),
		}
	}

	expense, err := s.buildExpense(ctx, trip, in)
	if err != nil {
		return nil, err
	}
	expense.ID = existing.ID
	expense.CreatedAt = existing.CreatedAt
	expense.Kind = existing.Kind

	if err := s.store.UpdateExpense(ctx, expense); err != nil {
		slog.Error("UpdateExpense failed", "expense_id", expenseID, "error", err)
		return nil, wrapStoreErr(err)
	}

	slog.Info("Expense updated", "expense_id", expense.ID)
	return expense, nil
}

// DeleteExpense removes an expense and its splits.
func (s *ExpenseService) DeleteExpense(ctx context.Context, tripID, expenseID string) error {
	slog.Info("DeleteExpense request received", "trip_id", tripID, "expense_id", expenseID)

	if _, err := s.GetExpense(ctx, tripID, expenseID); err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, expenseID); err != nil {
		slog.Error("DeleteExpense failed", "expense_id", expenseID, "error", err)
		return wrapStoreErr(err)
	}

	slog.Info("Expense deleted", "expense_id", expenseID)
	return nil
}

// buildExpense turns caller input into a validated expense with resolved
// splits and a fixed base currency rate.
func (s *ExpenseService) buildExpense(ctx context.Context, trip *models.Trip, in ExpenseInput) (*models.Expense, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, validationf("description is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = trip.BaseCurrency
	}
	if !models.IsSupportedCurrency(currency) {
		return nil, validationf("unsupported currency: %s", currency)
	}

	if !in.Amount.IsPositive() {
		return nil, validationf("amount must be positive")
	}
	amount := calculator.RoundMoney(in.Amount)

	memberIDs := make([]string, len(trip.Members))
	for i, m := range trip.Members {
		memberIDs[i] = m.ID
	}

	splitType := in.SplitType
	if splitType == "" {
		splitType = models.SplitEqual
	}
	included := in.IncludedIDs
	if splitType == models.SplitEqual && len(included) == 0 {
		included = memberIDs
	}

	splits, err := calculator.ResolveSplits(calculator.SplitInput{
		Total:         amount,
		Type:          splitType,
		PayerID:       in.PayerMemberID,
		TripMemberIDs: memberIDs,
		IncludedIDs:   included,
		Portions:      in.Portions,
	})
	if err != nil {
		return nil, &ValidationError{msg: err.Error()}
	}

	rate, err := resolveBaseRate(ctx, s.rates, currency, trip.BaseCurrency, in.BaseCurrencyRate)
	if err != nil {
		return nil, err
	}

	return &models.Expense{
		TripID:           trip.ID,
		Description:      description,
		PayerMemberID:    in.PayerMemberID,
		Currency:         currency,
		Amount:           amount,
		BaseCurrencyRate: rate,
		Kind:             models.ExpenseRegular,
		Notes:            strings.TrimSpace(in.Notes),
		Splits:           splits,
	}, nil
}

// parseKindFilter normalizes the expense type filter from the API.
func parseKindFilter(kind string) (models.ExpenseKind, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "all":
		return "", nil
	case "regular":
		return models.ExpenseRegular, nil
	case "settlement", "settlements":
		return models.ExpenseSettlement, nil
	default:
		return "", validationf("unknown expense type %q", kind)
	}
}

// resolveBaseRate fixes the base currency rate recorded on an expense. A
// caller-supplied positive rate wins; the identity applies when the expense
// currency is the base; otherwise the rate source is consulted. The resolved
// rate is immutable once stored.
func resolveBaseRate(ctx context.Context, src rates.Source, currency, baseCurrency string, supplied decimal.Decimal) (decimal.Decimal, error) {
	if supplied.IsNegative() {
		return decimal.Zero, validationf("base currency rate must be positive")
	}
	if supplied.IsPositive() {
		return supplied, nil
	}
	if currency == baseCurrency {
		return one, nil
	}

	rate, err := src.Rate(ctx, currency, baseCurrency)
	if err != nil {
		if errors.Is(err, rates.ErrUnknownCurrency) {
			return decimal.Zero, validationf("no exchange rate for %s; supply base_currency_rate", currency)
		}
		return decimal.Zero, fmt.Errorf("failed to resolve exchange rate: %w", err)
	}
	return rate, nil
}
