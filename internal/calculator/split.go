package calculator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tripledger/tripledger/internal/models"
)

// SplitInput describes how one expense should be divided among members.
type SplitInput struct {
	// Total is the expense amount, already rounded to currency precision.
	Total decimal.Decimal

	// Type selects the split policy.
	Type models.SplitType

	// PayerID is the member who paid. Must be a trip member; the payer
	// does not have to be included in the split.
	PayerID string

	// TripMemberIDs is the full member list of the trip.
	TripMemberIDs []string

	// IncludedIDs are the members sharing an equal split. Ignored for
	// percentage and custom splits, where the Portions keys define who is
	// included. Members left out owe nothing for this expense.
	IncludedIDs []string

	// Portions maps member id to a percentage (percentage split) or an
	// amount in the expense currency (custom split).
	Portions map[string]decimal.Decimal
}

// ResolveSplits computes the exact per-member shares for an expense.
//
// Equal and percentage splits distribute leftover minor units one cent at a
// time to the first included members in ascending member id order, so the
// shares always sum exactly to the total. Custom splits are taken verbatim
// after validating that their sum is within SumTolerance of the total.
func ResolveSplits(in SplitInput) ([]models.Split, error) {
	if !in.Total.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", in.Total)
	}

	members := make(map[string]bool, len(in.TripMemberIDs))
	for _, id := range in.TripMemberIDs {
		members[id] = true
	}
	if !members[in.PayerID] {
		return nil, fmt.Errorf("payer %s is not a trip member", in.PayerID)
	}

	switch in.Type {
	case models.SplitEqual:
		return equalSplits(in.Total, in.IncludedIDs, members)
	case models.SplitPercentage:
		return percentageSplits(in.Total, in.Portions, members)
	case models.SplitCustom:
		return customSplits(in.Total, in.Portions, members)
	default:
		return nil, fmt.Errorf("unknown split type %q", in.Type)
	}
}

func equalSplits(total decimal.Decimal, included []string, members map[string]bool) ([]models.Split, error) {
	if len(included) == 0 {
		return nil, fmt.Errorf("equal split requires at least one member")
	}
	ids := append([]string(nil), included...)
	sort.Strings(ids)
	for _, id := range ids {
		if !members[id] {
			return nil, fmt.Errorf("split member %s is not a trip member", id)
		}
	}

	base := total.Div(decimal.NewFromInt(int64(len(ids)))).RoundDown(2)
	splits := make([]models.Split, len(ids))
	for i, id := range ids {
		splits[i] = models.Split{MemberID: id, Amount: base}
	}
	distributeRemainder(splits, total)
	return splits, nil
}

func percentageSplits(total decimal.Decimal, portions map[string]decimal.Decimal, members map[string]bool) ([]models.Split, error) {
	ids, sum, err := sortedPortions(portions, members)
	if err != nil {
		return nil, err
	}
	if !WithinTolerance(sum, hundred) {
		return nil, fmt.Errorf("percentages sum to %s, want 100", sum)
	}

	splits := make([]models.Split, len(ids))
	for i, id := range ids {
		share := total.Mul(portions[id]).Div(hundred).RoundDown(2)
		splits[i] = models.Split{MemberID: id, Amount: share}
	}
	distributeRemainder(splits, total)
	return splits, nil
}

func customSplits(total decimal.Decimal, portions map[string]decimal.Decimal, members map[string]bool) ([]models.Split, error) {
	ids, sum, err := sortedPortions(portions, members)
	if err != nil {
		return nil, err
	}
	if !WithinTolerance(sum, total) {
		return nil, fmt.Errorf("split amounts sum to %s against a total of %s", sum, total)
	}

	// Supplied amounts are the shares verbatim; no redistribution.
	splits := make([]models.Split, len(ids))
	for i, id := range ids {
		splits[i] = models.Split{MemberID: id, Amount: portions[id]}
	}
	return splits, nil
}

// sortedPortions validates portion values and returns the included member
// ids in ascending order along with the portion sum.
func sortedPortions(portions map[string]decimal.Decimal, members map[string]bool) ([]string, decimal.Decimal, error) {
	if len(portions) == 0 {
		return nil, decimal.Zero, fmt.Errorf("split requires at least one member")
	}
	ids := make([]string, 0, len(portions))
	sum := decimal.Zero
	for id, v := range portions {
		if !members[id] {
			return nil, decimal.Zero, fmt.Errorf("split member %s is not a trip member", id)
		}
		if v.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("negative share for member %s", id)
		}
		ids = append(ids, id)
		sum = sum.Add(v)
	}
	sort.Strings(ids)
	return ids, sum, nil
}

// distributeRemainder tops up shares one cent at a time in slice order until
// they sum exactly to total. Shares must already be rounded down, so the
// remainder is non-negative and smaller than one cent per share.
func distributeRemainder(splits []models.Split, total decimal.Decimal) {
	sum := decimal.Zero
	for _, s := range splits {
		sum = sum.Add(s.Amount)
	}
	rem := total.Sub(sum)
	for i := 0; rem.IsPositive(); i = (i + 1) % len(splits) {
		add := cent
		if rem.LessThan(cent) {
			add = rem
		}
		splits[i].Amount = splits[i].Amount.Add(add)
		rem = rem.Sub(add)
	}
}
