package settlement

import (
	"math"
	"sort"
)

// Settlement is a suggested payment from a debtor to a creditor.
type Settlement struct {
	From   string  // Debtor
	To     string  // Creditor
	Amount float64 // Always >= Epsilon
}

type position struct {
	identity string
	amount   float64
}

// ComputeSettlements turns net balances into an ordered list of payments
// that brings every balance within Epsilon of zero.
//
// Algorithm (greedy, largest first):
//   - creditors are balances above +Epsilon, debtors below -Epsilon (kept as
//     absolute values); anything in between is already settled, and
//     non-finite balances are skipped
//   - both sides are sorted by amount descending, ties by identity ascending
//   - the current largest debtor pays the current largest creditor
//     min(credit, debt); a side advances once its remainder drops below Epsilon
//
// The result has at most creditors+debtors-1 entries and is identical for
// identical input. A mapping with only creditors or only debtors yields an
// empty list.
func ComputeSettlements(balances Balances) []Settlement {
	var creditors, debtors []position
	for id, amount := range balances {
		switch {
		case math.IsInf(amount, 0) || math.IsNaN(amount):
			// Cannot be paid off; matching against it would never advance.
			continue
		case amount > Epsilon:
			creditors = append(creditors, position{identity: id, amount: amount})
		case amount < -Epsilon:
			debtors = append(debtors, position{identity: id, amount: -amount})
		}
	}
	sortPositions(creditors)
	sortPositions(debtors)

	settlements := make([]Settlement, 0, max(len(creditors)+len(debtors)-1, 0))
	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		amount := math.Min(creditors[i].amount, debtors[j].amount)
		settlements = append(settlements, Settlement{
			From:   debtors[j].identity,
			To:     creditors[i].identity,
			Amount: amount,
		})

		creditors[i].amount -= amount
		debtors[j].amount -= amount

		// Both sides may close in the same step
		if creditors[i].amount < Epsilon {
			i++
		}
		if debtors[j].amount < Epsilon {
			j++
		}
	}
	return settlements
}

// Settle runs the aggregator and the matcher over one snapshot.
func Settle(expenses []Expense, members []string) (Balances, []Settlement) {
	balances := ComputeBalances(expenses, members)
	return balances, ComputeSettlements(balances)
}

func sortPositions(p []position) {
	sort.Slice(p, func(a, b int) bool {
		if p[a].amount != p[b].amount {
			return p[a].amount > p[b].amount
		}
		return p[a].identity < p[b].identity
	})
}
