package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tripledger/tripledger/internal/calculator"
	"github.com/tripledger/tripledger/internal/models"
	"github.com/tripledger/tripledger/internal/rates"
	"github.com/tripledger/tripledger/internal/storage"
)

// Ledger recomputes balances, debts, and settlement plans from the raw
// expense history, and records the settlement expenses that discharge or
// rewrite debt. It holds no state between calls: every query reads the full
// current history and derives its answer from scratch.
type Ledger struct {
	store storage.Store
	rates rates.Source
}

// NewLedger creates a new Ledger over the given store and rate source.
func NewLedger(store storage.Store, rates rates.Source) *Ledger {
	return &Ledger{store: store, rates: rates}
}

// snapshot is one consistent read of a trip's members and full expense
// history, the only input the engine computations take.
type snapshot struct {
	trip     *models.Trip
	expenses []models.Expense
	names    map[string]string
}

func (l *Ledger) load(ctx context.Context, tripID string) (*snapshot, error) {
	trip, err := l.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	stored, err := l.store.ListExpenses(ctx, tripID, "")
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	expenses := make([]models.Expense, len(stored))
	for i, e := range stored {
		expenses[i] = *e
	}
	names := make(map[string]string, len(trip.Members))
	for _, m := range trip.Members {
		names[m.ID] = m.Name
	}
	return &snapshot{trip: trip, expenses: expenses, names: names}, nil
}

func (s *snapshot) memberIDs() []string {
	ids := make([]string, len(s.trip.Members))
	for i, m := range s.trip.Members {
		ids[i] = m.ID
	}
	return ids
}

// ComputeBalances recomputes every member's balance from the full expense
// history, in the trip's base currency. Results are ordered by member id
// and rounded to currency precision for presentation.
func (l *Ledger) ComputeBalances(ctx context.Context, tripID string) ([]models.Balance, error) {
	snap, err := l.load(ctx, tripID)
	if err != nil {
		return nil, err
	}

	balances, err := calculator.AggregateBalances(snap.expenses, snap.memberIDs())
	if err != nil {
		return nil, &ConsistencyError{msg: err.Error()}
	}
	for i := range balances {
		balances[i].MemberName = snap.names[balances[i].MemberID]
		roundBalance(&balances[i])
	}

	slog.Info("Balances computed",
		"trip_id", tripID,
		"members_count", len(balances),
		"expenses_count", len(snap.expenses),
	)
	return balances, nil
}

// MemberBalance expands one member's balance with the expenses and debts
// behind it: what they paid, what they owe a share of, and who owes whom.
func (l *Ledger) MemberBalance(ctx context.Context, tripID, memberID string) (*models.MemberBalanceDetail, error) {
	snap, err := l.load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.names[memberID]; !ok {
		return nil, notFoundf("member %s: not found", memberID)
	}

	balances, err := calculator.AggregateBalances(snap.expenses, snap.memberIDs())
	if err != nil {
		return nil, &ConsistencyError{msg: err.Error()}
	}

	detail := &models.MemberBalanceDetail{}
	for _, b := range balances {
		if b.MemberID == memberID {
			detail.Balance = b
			break
		}
	}
	detail.MemberName = snap.names[memberID]
	roundBalance(&detail.Balance)

	for i := range snap.expenses {
		e := &snap.expenses[i]
		if e.Kind != models.ExpenseRegular {
			continue
		}
		if e.PayerMemberID == memberID {
			detail.ExpensesPaid = append(detail.ExpensesPaid, models.ExpenseRef{
				ExpenseID:   e.ID,
				Description: e.Description,
				Amount:      calculator.RoundMoney(e.Amount.Mul(e.BaseCurrencyRate)),
			})
		}
		for _, split := range e.Splits {
			if split.MemberID == memberID && !split.Amount.IsZero() {
				detail.ExpensesOwed = append(detail.ExpensesOwed, models.ExpenseRef{
					ExpenseID:   e.ID,
					Description: e.Description,
					Amount:      calculator.RoundMoney(split.Amount.Mul(e.BaseCurrencyRate)),
				})
			}
		}
	}

	for _, d := range decorateDebts(calculator.ExtractDebts(snap.expenses), snap.names) {
		switch memberID {
		case d.FromMemberID:
			detail.OwesDebts = append(detail.OwesDebts, d)
		case d.ToMemberID:
			detail.OwedDebts = append(detail.OwedDebts, d)
		}
	}

	return detail, nil
}

// ComputeDebts nets the full expense history into the outstanding pairwise
// debts, per currency.
func (l *Ledger) ComputeDebts(ctx context.Context, tripID string) ([]models.Debt, error) {
	snap, err := l.load(ctx, tripID)
	if err != nil {
		return nil, err
	}

	debts := decorateDebts(calculator.ExtractDebts(snap.expenses), snap.names)

	slog.Info("Debts computed", "trip_id", tripID, "debts_count", len(debts))
	return debts, nil
}

// ComputeSettlementPlan produces the greedy payment plan that clears all
// outstanding positions. With perCurrency false the plan settles
// base-currency net balances in one pass; with true each original currency
// is planned independently and the payments are concatenated in currency
// order.
func (l *Ledger) ComputeSettlementPlan(ctx context.Context, tripID string, perCurrency bool) (*models.SettlementPlan, error) {
	snap, err := l.load(ctx, tripID)
	if err != nil {
		return nil, err
	}

	balances, err := calculator.AggregateBalances(snap.expenses, snap.memberIDs())
	if err != nil {
		return nil, &ConsistencyError{msg: err.Error()}
	}

	plan := &models.SettlementPlan{TripID: tripID, PerCurrency: perCurrency}
	if perCurrency {
		seen := make(map[string]bool)
		var currencies []string
		for _, b := range balances {
			for cur := range b.PerCurrency {
				if !seen[cur] {
					seen[cur] = true
					currencies = append(currencies, cur)
				}
			}
		}
		sort.Strings(currencies)

		for _, cur := range currencies {
			positions := make(map[string]decimal.Decimal)
			for _, b := range balances {
				if v, ok := b.PerCurrency[cur]; ok {
					positions[b.MemberID] = v
				}
			}
			plan.Payments = append(plan.Payments, calculator.PlanPayments(positions, cur)...)
		}
	} else {
		positions := make(map[string]decimal.Decimal, len(balances))
		for _, b := range balances {
			positions[b.MemberID] = b.NetBalance
		}
		plan.Payments = append(plan.Payments, calculator.PlanPayments(positions, snap.trip.BaseCurrency)...)
	}

	for i := range plan.Payments {
		plan.Payments[i].FromMemberName = snap.names[plan.Payments[i].FromMemberID]
		plan.Payments[i].ToMemberName = snap.names[plan.Payments[i].ToMemberID]
	}

	slog.Info("Settlement plan computed",
		"trip_id", tripID,
		"per_currency", perCurrency,
		"payments_count", len(plan.Payments),
	)
	return plan, nil
}

// SettlementInput describes a payment between two members to record.
type SettlementInput struct {
	// FromMemberID is the debtor making the payment.
	FromMemberID string

	// ToMemberID is the creditor receiving it.
	ToMemberID string

	// Currency the payment was made in; defaults to the trip's base currency.
	Currency string

	// Amount is the positive amount paid, in Currency.
	Amount decimal.Decimal

	// TargetCurrency and ConversionRate, when both set, record the payment
	// converted: the stored settlement is denominated in TargetCurrency for
	// Amount * ConversionRate, with a note naming the original payment.
	TargetCurrency string
	ConversionRate decimal.Decimal

	// BaseCurrencyRate optionally overrides the recorded rate into the
	// trip's base currency. Zero means resolve from the rate source.
	BaseCurrencyRate decimal.Decimal

	Notes string
}

// RecordSettlement writes a settlement expense: the debtor is the payer and
// the creditor holds the single split for the full amount. Recomputing
// balances afterwards shows the debt discharged; the settlement never counts
// toward spending totals.
func (l *Ledger) RecordSettlement(ctx context.Context, tripID string, in SettlementInput) (*models.Expense, error) {
	slog.Info("RecordSettlement request received",
		"trip_id", tripID,
		"from", in.FromMemberID,
		"to", in.ToMemberID,
		"amount", in.Amount,
		"currency", in.Currency,
	)

	trip, err := l.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	names := make(map[string]string, len(trip.Members))
	for _, m := range trip.Members {
		names[m.ID] = m.Name
	}

	if in.FromMemberID == in.ToMemberID {
		return nil, validationf("payer and recipient must differ")
	}
	for _, id := range []string{in.FromMemberID, in.ToMemberID} {
		if _, ok := names[id]; !ok {
			return nil, validationf("member %s is not a trip member", id)
		}
	}
	if !in.Amount.IsPositive() {
		return nil, validationf("amount must be positive")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = trip.BaseCurrency
	}
	if !models.IsSupportedCurrency(currency) {
		return nil, validationf("unsupported currency: %s", currency)
	}

	amount := calculator.RoundMoney(in.Amount)
	notes := strings.TrimSpace(in.Notes)

	hasTarget := strings.TrimSpace(in.TargetCurrency) != ""
	hasRate := !in.ConversionRate.IsZero()
	if hasTarget != hasRate {
		return nil, validationf("target_currency and conversion_rate must be supplied together")
	}
	if hasTarget {
		target := strings.ToUpper(strings.TrimSpace(in.TargetCurrency))
		if !models.IsSupportedCurrency(target) {
			return nil, validationf("unsupported currency: %s", target)
		}
		if !in.ConversionRate.IsPositive() {
			return nil, validationf("conversion rate must be positive")
		}

		converted := calculator.RoundMoney(amount.Mul(in.ConversionRate))
		if converted.IsZero() {
			return nil, validationf("converted amount rounds to zero")
		}
		note := fmt.Sprintf("Paid %s %s (= %s %s)", amount.StringFixed(2), currency, converted.StringFixed(2), target)
		if notes != "" {
			notes = notes + "; " + note
		} else {
			notes = note
		}
		currency = target
		amount = converted
	}

	rate, err := resolveBaseRate(ctx, l.rates, currency, trip.BaseCurrency, in.BaseCurrencyRate)
	if err != nil {
		return nil, err
	}

	expense := &models.Expense{
		TripID:           tripID,
		Description:      fmt.Sprintf("Settlement: %s → %s", names[in.FromMemberID], names[in.ToMemberID]),
		PayerMemberID:    in.FromMemberID,
		Currency:         currency,
		Amount:           amount,
		BaseCurrencyRate: rate,
		Kind:             models.ExpenseSettlement,
		Notes:            notes,
		Splits:           []models.Split{{MemberID: in.ToMemberID, Amount: amount}},
	}

	if err := l.store.CreateExpense(ctx, expense); err != nil {
		slog.Error("RecordSettlement failed", "trip_id", tripID, "error", err)
		return nil, wrapStoreErr(err)
	}

	slog.Info("Settlement recorded", "expense_id", expense.ID, "amount", expense.Amount, "currency", expense.Currency)
	return expense, nil
}

// ConvertAllDebts rewrites every outstanding debt not already denominated in
// targetCurrency into targetCurrency, by recording an offsetting settlement
// pair per debt: one closing the debt in its own currency, one reopening it
// converted. All pairs are written in a single transaction.
//
// userRates maps currency code to the rate into targetCurrency and takes
// precedence over the rate source. Currencies with no usable rate are
// skipped and reported; the call fails with a ConversionError only when
// debts needed converting and none could be.
func (l *Ledger) ConvertAllDebts(ctx context.Context, tripID, targetCurrency string, userRates map[string]decimal.Decimal) ([]*models.Expense, []string, error) {
	slog.Info("ConvertAllDebts request received", "trip_id", tripID, "target_currency", targetCurrency)

	snap, err := l.load(ctx, tripID)
	if err != nil {
		return nil, nil, err
	}

	target := strings.ToUpper(strings.TrimSpace(targetCurrency))
	if !models.IsSupportedCurrency(target) {
		return nil, nil, validationf("unsupported currency: %s", target)
	}

	overrides := make(map[string]decimal.Decimal, len(userRates))
	for code, r := range userRates {
		code = strings.ToUpper(strings.TrimSpace(code))
		if !r.IsPositive() {
			return nil, nil, validationf("rate for %s must be positive", code)
		}
		overrides[code] = r
	}

	targetBaseRate := one
	if target != snap.trip.BaseCurrency {
		targetBaseRate, err = l.rates.Rate(ctx, target, snap.trip.BaseCurrency)
		if err != nil {
			return nil, nil, conversionf("no exchange rate for target currency %s", target)
		}
	}

	var (
		created     []*models.Expense
		skipped     []string
		skippedSeen = make(map[string]bool)
	)
	for _, d := range calculator.ExtractDebts(snap.expenses) {
		if d.Currency == target {
			continue
		}

		r, ok := overrides[d.Currency]
		if !ok {
			r, err = l.rates.Rate(ctx, d.Currency, target)
			if err != nil {
				if !skippedSeen[d.Currency] {
					skippedSeen[d.Currency] = true
					skipped = append(skipped, d.Currency)
				}
				continue
			}
		}

		// A debt worth less than half a minor unit of the target cannot be
		// represented there; leave it in its own currency.
		if calculator.RoundMoney(d.Amount.Mul(r)).IsZero() {
			continue
		}

		created = append(created, adjustmentPair(snap, d, target, r, targetBaseRate)...)
	}
	sort.Strings(skipped)

	if len(created) == 0 {
		if len(skipped) > 0 {
			return nil, skipped, conversionf("no debts could be converted to %s", target)
		}
		slog.Info("ConvertAllDebts found nothing to convert", "trip_id", tripID, "target_currency", target)
		return nil, nil, nil
	}

	if err := l.store.CreateExpenses(ctx, created); err != nil {
		slog.Error("ConvertAllDebts failed", "trip_id", tripID, "error", err)
		return nil, nil, wrapStoreErr(err)
	}

	slog.Info("Debts converted",
		"trip_id", tripID,
		"target_currency", target,
		"expenses_count", len(created),
		"skipped_count", len(skipped),
	)
	return created, skipped, nil
}

// MergeInput names one outstanding debt to rewrite into a target currency.
type MergeInput struct {
	FromMemberID   string
	ToMemberID     string
	Currency       string
	TargetCurrency string

	// Rate converts Currency into TargetCurrency. Zero means use the rate
	// source.
	Rate decimal.Decimal
}

// MergeResult reports one debt rewritten into a new currency and the
// adjustment expenses recorded for it.
type MergeResult struct {
	FromMemberID    string            `json:"from_member_id"`
	ToMemberID      string            `json:"to_member_id"`
	SourceCurrency  string            `json:"source_currency"`
	TargetCurrency  string            `json:"target_currency"`
	SourceAmount    decimal.Decimal   `json:"source_amount"`
	ConvertedAmount decimal.Decimal   `json:"converted_amount"`
	Rate            decimal.Decimal   `json:"rate"`
	Expenses        []*models.Expense `json:"expenses"`
}

// MergeDebt rewrites a single outstanding debt into the target currency via
// the same offsetting settlement pair the bulk conversion uses.
func (l *Ledger) MergeDebt(ctx context.Context, tripID string, in MergeInput) (*MergeResult, error) {
	slog.Info("MergeDebt request received",
		"trip_id", tripID,
		"from", in.FromMemberID,
		"to", in.ToMemberID,
		"currency", in.Currency,
		"target_currency", in.TargetCurrency,
	)

	snap, err := l.load(ctx, tripID)
	if err != nil {
		return nil, err
	}

	source := strings.ToUpper(strings.TrimSpace(in.Currency))
	target := strings.ToUpper(strings.TrimSpace(in.TargetCurrency))
	if !models.IsSupportedCurrency(target) {
		return nil, validationf("unsupported currency: %s", target)
	}
	if source == target {
		return nil, validationf("debt is already in %s", target)
	}
	if in.Rate.IsNegative() {
		return nil, validationf("rate must be positive")
	}

	var debt *models.Debt
	for _, d := range calculator.ExtractDebts(snap.expenses) {
		if d.FromMemberID == in.FromMemberID && d.ToMemberID == in.ToMemberID && d.Currency == source {
			debt = &d
			break
		}
	}
	if debt == nil {
		return nil, notFoundf("no outstanding %s debt from %s to %s", source, in.FromMemberID, in.ToMemberID)
	}

	r := in.Rate
	if r.IsZero() {
		r, err = l.rates.Rate(ctx, source, target)
		if err != nil {
			return nil, validationf("no exchange rate from %s to %s; supply rate", source, target)
		}
	}

	converted := calculator.RoundMoney(debt.Amount.Mul(r))
	if converted.IsZero() {
		return nil, validationf("converted amount rounds to zero")
	}

	targetBaseRate := one
	if target != snap.trip.BaseCurrency {
		targetBaseRate, err = l.rates.Rate(ctx, target, snap.trip.BaseCurrency)
		if err != nil {
			return nil, validationf("no exchange rate for %s", target)
		}
	}

	pair := adjustmentPair(snap, *debt, target, r, targetBaseRate)
	if err := l.store.CreateExpenses(ctx, pair); err != nil {
		slog.Error("MergeDebt failed", "trip_id", tripID, "error", err)
		return nil, wrapStoreErr(err)
	}

	slog.Info("Debt merged",
		"trip_id", tripID,
		"from", in.FromMemberID,
		"to", in.ToMemberID,
		"source_currency", source,
		"target_currency", target,
	)
	return &MergeResult{
		FromMemberID:    in.FromMemberID,
		ToMemberID:      in.ToMemberID,
		SourceCurrency:  source,
		TargetCurrency:  target,
		SourceAmount:    debt.Amount,
		ConvertedAmount: converted,
		Rate:            r,
		Expenses:        pair,
	}, nil
}

// adjustmentPair builds the two offsetting settlements that move one debt
// from its currency into target at rate r. The closing leg has the debtor
// pay the creditor the full amount in the source currency; the reopening leg
// has the creditor cover the converted amount for the debtor in the target
// currency. Their net effect on every balance is zero apart from rounding
// the converted amount to currency precision.
func adjustmentPair(snap *snapshot, d models.Debt, target string, r, targetBaseRate decimal.Decimal) []*models.Expense {
	converted := calculator.RoundMoney(d.Amount.Mul(r))
	desc := fmt.Sprintf("Debt conversion: %s → %s", snap.names[d.FromMemberID], snap.names[d.ToMemberID])

	closing := &models.Expense{
		TripID:        snap.trip.ID,
		Description:   desc,
		PayerMemberID: d.FromMemberID,
		Currency:      d.Currency,
		Amount:        d.Amount,
		// Derived from the conversion rate so the pair nets to zero in the
		// base currency no matter where r came from.
		BaseCurrencyRate: r.Mul(targetBaseRate),
		Kind:             models.ExpenseSettlement,
		Notes:            fmt.Sprintf("Closed %s %s at rate %s", d.Amount.StringFixed(2), d.Currency, r),
		Splits:           []models.Split{{MemberID: d.ToMemberID, Amount: d.Amount}},
	}
	reopening := &models.Expense{
		TripID:           snap.trip.ID,
		Description:      desc,
		PayerMemberID:    d.ToMemberID,
		Currency:         target,
		Amount:           converted,
		BaseCurrencyRate: targetBaseRate,
		Kind:             models.ExpenseSettlement,
		Notes:            fmt.Sprintf("Reopened as %s %s from %s %s", converted.StringFixed(2), target, d.Amount.StringFixed(2), d.Currency),
		Splits:           []models.Split{{MemberID: d.FromMemberID, Amount: converted}},
	}
	return []*models.Expense{closing, reopening}
}

// decorateDebts fills member display names on debts.
func decorateDebts(debts []models.Debt, names map[string]string) []models.Debt {
	for i := range debts {
		debts[i].FromMemberName = names[debts[i].FromMemberID]
		debts[i].ToMemberName = names[debts[i].ToMemberID]
	}
	return debts
}

// roundBalance rounds a balance's fields to currency precision for
// presentation. Upstream computation keeps full precision.
func roundBalance(b *models.Balance) {
	b.TotalPaid = calculator.RoundMoney(b.TotalPaid)
	b.TotalOwed = calculator.RoundMoney(b.TotalOwed)
	b.NetBalance = calculator.RoundMoney(b.NetBalance)
	for cur, v := range b.PerCurrency {
		b.PerCurrency[cur] = calculator.RoundMoney(v)
	}
}
