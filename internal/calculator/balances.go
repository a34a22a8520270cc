package calculator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tripledger/tripledger/internal/models"
)

// AggregateBalances folds the full expense history of a trip into one
// Balance per member.
//
// Regular expenses contribute to the spending totals: the payer's TotalPaid
// and each split member's TotalOwed, converted into base currency at the
// rate stored on the expense. Settlement expenses are excluded from the
// spending totals but still move NetBalance and the per-currency positions,
// which is how a recorded payment discharges debt.
//
// MemberNames are left empty; callers decorate from the member directory.
// Results are ordered by member id.
func AggregateBalances(expenses []models.Expense, memberIDs []string) ([]models.Balance, error) {
	ids := append([]string(nil), memberIDs...)
	sort.Strings(ids)

	byID := make(map[string]*models.Balance, len(ids))
	for _, id := range ids {
		byID[id] = &models.Balance{
			MemberID:    id,
			TotalPaid:   decimal.Zero,
			TotalOwed:   decimal.Zero,
			NetBalance:  decimal.Zero,
			PerCurrency: make(map[string]decimal.Decimal),
		}
	}

	// sumNet and sumDrift back the final conservation check: the member
	// balances must sum to exactly the allocation drift the stored splits
	// carry, or the aggregation itself is broken.
	sumNet := decimal.Zero
	sumDrift := decimal.Zero

	for i := range expenses {
		e := &expenses[i]

		splitSum := decimal.Zero
		ownShare := decimal.Zero
		for _, s := range e.Splits {
			splitSum = splitSum.Add(s.Amount)
			if s.MemberID == e.PayerMemberID {
				ownShare = ownShare.Add(s.Amount)
			}
		}
		if !WithinTolerance(splitSum, e.Amount) {
			return nil, fmt.Errorf("expense %s splits sum to %s against an amount of %s", e.ID, splitSum, e.Amount)
		}

		payer := byID[e.PayerMemberID]
		if payer == nil {
			return nil, fmt.Errorf("expense %s references unknown payer %s", e.ID, e.PayerMemberID)
		}

		rate := e.BaseCurrencyRate
		if !rate.IsPositive() {
			return nil, fmt.Errorf("expense %s has non-positive base currency rate %s", e.ID, rate)
		}

		if e.Kind == models.ExpenseRegular {
			payer.TotalPaid = payer.TotalPaid.Add(e.Amount.Mul(rate))
		}

		for _, s := range e.Splits {
			b := byID[s.MemberID]
			if b == nil {
				return nil, fmt.Errorf("expense %s splits to unknown member %s", e.ID, s.MemberID)
			}
			if e.Kind == models.ExpenseRegular {
				b.TotalOwed = b.TotalOwed.Add(s.Amount.Mul(rate))
			}
			if s.MemberID == e.PayerMemberID {
				continue
			}
			b.NetBalance = b.NetBalance.Sub(s.Amount.Mul(rate))
			b.PerCurrency[e.Currency] = b.PerCurrency[e.Currency].Sub(s.Amount)
			sumNet = sumNet.Sub(s.Amount.Mul(rate))
		}

		gain := e.Amount.Sub(ownShare)
		payer.NetBalance = payer.NetBalance.Add(gain.Mul(rate))
		payer.PerCurrency[e.Currency] = payer.PerCurrency[e.Currency].Add(gain)
		sumNet = sumNet.Add(gain.Mul(rate))
		sumDrift = sumDrift.Add(e.Amount.Sub(splitSum).Mul(rate))
	}

	if sumNet.Sub(sumDrift).Abs().GreaterThan(Epsilon) {
		return nil, fmt.Errorf("balances sum to %s, expected %s", sumNet, sumDrift)
	}

	balances := make([]models.Balance, 0, len(ids))
	for _, id := range ids {
		b := byID[id]
		for cur, v := range b.PerCurrency {
			if NearZero(v) {
				delete(b.PerCurrency, cur)
			}
		}
		balances = append(balances, *b)
	}
	return balances, nil
}
