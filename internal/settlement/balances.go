package settlement

import (
	"slices"
	"sort"
	"strings"
)

// Balances maps a participant identity to its net amount.
// Positive = the group owes this identity money, Negative = it owes the group.
type Balances map[string]float64

// MemberBalance is one member's totals across all expenses.
type MemberBalance struct {
	Member string
	Paid   float64 // Sum of amounts this member paid
	Owed   float64 // Sum of this member's shares
	Net    float64 // Paid - Owed
}

// ComputeBalances aggregates expenses into net balances.
//
// Every member starts at zero so that members without expenses still appear.
// Each expense credits the payer with the full amount and debits every
// participant with an equal share; a payer who is also a participant nets
// amount - share.
//
// Expenses must satisfy Expense.Validate. The result is always computed from
// scratch and does not depend on the order of expenses or members.
func ComputeBalances(expenses []Expense, members []string) Balances {
	balances := make(Balances, len(members))
	for _, m := range members {
		balances[m] = 0
	}
	for _, e := range canonicalOrder(expenses) {
		balances[e.Payer] += e.Amount
		share := e.Share()
		for _, p := range e.Participants {
			balances[p] -= share
		}
	}
	return balances
}

// Summarize returns per-member paid/owed totals sorted by identity.
func Summarize(expenses []Expense, members []string) []MemberBalance {
	byMember := make(map[string]*MemberBalance, len(members))
	get := func(id string) *MemberBalance {
		mb, ok := byMember[id]
		if !ok {
			mb = &MemberBalance{Member: id}
			byMember[id] = mb
		}
		return mb
	}
	for _, m := range members {
		get(m)
	}
	for _, e := range canonicalOrder(expenses) {
		get(e.Payer).Paid += e.Amount
		share := e.Share()
		for _, p := range e.Participants {
			get(p).Owed += share
		}
	}

	summary := make([]MemberBalance, 0, len(byMember))
	for _, mb := range byMember {
		mb.Net = mb.Paid - mb.Owed
		summary = append(summary, *mb)
	}
	sort.Slice(summary, func(i, j int) bool {
		return summary[i].Member < summary[j].Member
	})
	return summary
}

// Identities returns the keys of b in ascending order.
func (b Balances) Identities() []string {
	ids := make([]string, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// canonicalOrder returns a copy of expenses in a fixed order so that
// floating-point sums come out bit-identical however the caller ordered them.
func canonicalOrder(expenses []Expense) []Expense {
	sorted := slices.Clone(expenses)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.Payer != b.Payer {
			return a.Payer < b.Payer
		}
		if a.Amount != b.Amount {
			return a.Amount < b.Amount
		}
		return strings.Join(a.Participants, "\x00") < strings.Join(b.Participants, "\x00")
	})
	return sorted
}
