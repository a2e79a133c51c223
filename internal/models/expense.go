package models

// Expense is one shared cost paid by Payer and split equally among
// Participants.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group this expense belongs to.
	GroupID string

	// Payer is the identity of the member who paid.
	Payer string

	// Amount is the total paid. Always positive.
	Amount float64

	// Participants are the identities the amount is split among.
	// The payer may or may not be included. Order is preserved.
	Participants []string

	// Description is an optional free-text label ("Dinner", "Taxi").
	Description string

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64

	// CreatedBy is the identity that recorded the expense.
	CreatedBy string
}
