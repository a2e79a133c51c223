// Package settlement computes net balances for a group of people sharing
// expenses and the list of payments that clears them.
//
// Everything in this package is a pure function of its inputs. Callers load
// a full snapshot of a group's expenses and members, pass it in, and persist
// the result themselves.
package settlement

import (
	"errors"
	"fmt"
	"math"
)

// Epsilon is the tolerance band around zero. Balances and remainders whose
// magnitude is below it are treated as settled, which absorbs the residue
// left by dividing an amount between participants.
const Epsilon = 0.01

// MaxAmount is the largest amount a single expense may carry. Sums of many
// expenses near it stay finite and well inside float64 cent precision.
const MaxAmount = 1e12

var (
	ErrInvalidAmount        = errors.New("amount must be a positive number")
	ErrNoPayer              = errors.New("payer is required")
	ErrNoParticipants       = errors.New("must have at least one participant")
	ErrEmptyParticipant     = errors.New("participant identity cannot be empty")
	ErrDuplicateParticipant = errors.New("participant listed more than once")
)

// Expense is one shared cost, split in equal shares among Participants.
// The payer may or may not be one of the participants.
type Expense struct {
	ID           string
	Payer        string
	Amount       float64
	Participants []string
}

// NewExpense builds a validated expense. Repeated participants are collapsed
// to their first occurrence.
func NewExpense(id, payer string, amount float64, participants []string) (Expense, error) {
	e := Expense{
		ID:           id,
		Payer:        payer,
		Amount:       amount,
		Participants: uniqueParticipants(participants),
	}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// Validate reports whether the expense satisfies the invariants the
// aggregator relies on.
func (e Expense) Validate() error {
	if e.Payer == "" {
		return ErrNoPayer
	}
	if math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) || e.Amount <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidAmount, e.Amount)
	}
	if e.Amount > MaxAmount {
		return fmt.Errorf("%w: %v exceeds %v", ErrInvalidAmount, e.Amount, MaxAmount)
	}
	if len(e.Participants) == 0 {
		return ErrNoParticipants
	}
	seen := make(map[string]struct{}, len(e.Participants))
	for _, p := range e.Participants {
		if p == "" {
			return ErrEmptyParticipant
		}
		if _, ok := seen[p]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateParticipant, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// Share is the amount each participant owes for this expense.
func (e Expense) Share() float64 {
	return e.Amount / float64(len(e.Participants))
}

func uniqueParticipants(participants []string) []string {
	seen := make(map[string]struct{}, len(participants))
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
