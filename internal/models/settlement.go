package models

// Settlement is a suggested payment between group members, generated from
// the group's balances.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to.
	GroupID string

	// From is the debtor who should pay.
	From string

	// To is the creditor who should receive the payment.
	To string

	// Amount is the payment amount, rounded to cents.
	Amount float64

	// IsSettled is set by "mark as paid".
	IsSettled bool

	// SettledAt is the Unix timestamp when the settlement was marked paid.
	SettledAt int64

	// CreatedAt is the Unix timestamp of the recomputation that produced it.
	CreatedAt int64
}
