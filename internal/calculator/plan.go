package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tripledger/tripledger/internal/models"
)

// party is a creditor or debtor with its remaining unmatched magnitude.
type party struct {
	id        string
	remaining decimal.Decimal
}

// PlanPayments computes the greedy settlement plan for net positions in a
// single currency. positions maps member id to net balance: positive is
// owed money, negative is owing.
//
// The largest debtor pays the largest creditor min(owed, due); parties
// whose remainder falls to Epsilon or below drop out, and both lists are
// re-sorted each round. Equal magnitudes tie-break on ascending member id,
// so the plan is deterministic for identical input. For n members with
// nonzero positions the plan has at most n-1 payments, and the payment
// total equals the sum of the positive positions. Emitted amounts are
// rounded to currency precision; matching uses full precision.
func PlanPayments(positions map[string]decimal.Decimal, currency string) []models.Payment {
	ids := make([]string, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var creditors, debtors []*party
	for _, id := range ids {
		v := positions[id]
		switch {
		case v.GreaterThan(Epsilon):
			creditors = append(creditors, &party{id: id, remaining: v})
		case v.Neg().GreaterThan(Epsilon):
			debtors = append(debtors, &party{id: id, remaining: v.Neg()})
		}
	}

	var payments []models.Payment
	for len(creditors) > 0 && len(debtors) > 0 {
		sortParties(creditors)
		sortParties(debtors)

		c, d := creditors[0], debtors[0]
		amount := decimal.Min(c.remaining, d.remaining)
		payments = append(payments, models.Payment{
			FromMemberID: d.id,
			ToMemberID:   c.id,
			Currency:     currency,
			Amount:       RoundMoney(amount),
		})

		c.remaining = c.remaining.Sub(amount)
		d.remaining = d.remaining.Sub(amount)
		if c.remaining.LessThanOrEqual(Epsilon) {
			creditors = creditors[1:]
		}
		if d.remaining.LessThanOrEqual(Epsilon) {
			debtors = debtors[1:]
		}
	}
	return payments
}

// sortParties orders by remaining magnitude descending, member id ascending
// on ties.
func sortParties(ps []*party) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].remaining.Equal(ps[j].remaining) {
			return ps[i].remaining.GreaterThan(ps[j].remaining)
		}
		return ps[i].id < ps[j].id
	})
}
