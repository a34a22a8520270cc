package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tripledger/tripledger/internal/models"
)

// pairKey identifies an unordered member pair in one currency. The two ids
// are stored in ascending order; the sign of the netted amount carries the
// direction (positive means a owes b).
type pairKey struct {
	a, b     string
	currency string
}

// ExtractDebts replays every expense's splits against its payer and nets
// same-pair, same-currency obligations into at most one directional record.
//
// This answers "who currently owes whom" from the raw history. It is not
// the settlement plan: offsetting debts around a cycle of three or more
// members are preserved here, because they really were incurred. Amounts
// at or below Epsilon are dropped as settled. Results are ordered by
// currency, then debtor id, then creditor id.
func ExtractDebts(expenses []models.Expense) []models.Debt {
	net := make(map[pairKey]decimal.Decimal)

	for i := range expenses {
		e := &expenses[i]
		for _, s := range e.Splits {
			if s.MemberID == e.PayerMemberID || s.Amount.IsZero() {
				continue
			}
			// s.MemberID owes the payer this share.
			if s.MemberID < e.PayerMemberID {
				k := pairKey{a: s.MemberID, b: e.PayerMemberID, currency: e.Currency}
				net[k] = net[k].Add(s.Amount)
			} else {
				k := pairKey{a: e.PayerMemberID, b: s.MemberID, currency: e.Currency}
				net[k] = net[k].Sub(s.Amount)
			}
		}
	}

	debts := make([]models.Debt, 0, len(net))
	for k, v := range net {
		switch {
		case v.GreaterThan(Epsilon):
			debts = append(debts, models.Debt{
				FromMemberID: k.a,
				ToMemberID:   k.b,
				Currency:     k.currency,
				Amount:       v,
			})
		case v.Neg().GreaterThan(Epsilon):
			debts = append(debts, models.Debt{
				FromMemberID: k.b,
				ToMemberID:   k.a,
				Currency:     k.currency,
				Amount:       v.Neg(),
			})
		}
	}

	sort.Slice(debts, func(i, j int) bool {
		if debts[i].Currency != debts[j].Currency {
			return debts[i].Currency < debts[j].Currency
		}
		if debts[i].FromMemberID != debts[j].FromMemberID {
			return debts[i].FromMemberID < debts[j].FromMemberID
		}
		return debts[i].ToMemberID < debts[j].ToMemberID
	})
	return debts
}
