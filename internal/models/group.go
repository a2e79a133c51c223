package models

// Group is a set of people sharing expenses, e.g. everyone on one trip.
type Group struct {
	// ID is the unique identifier for the group (UUID format, or "tg-<chat id>"
	// for groups created by the chat bot).
	ID string

	// Name is the display name of the group (e.g., "Lisbon 2026").
	Name string

	// Members is the list of participant identities in this group.
	// Members without expenses still get a zero balance.
	Members []string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64

	// CreatedBy is the identity that created the group.
	CreatedBy string
}

// HasMember reports whether identity belongs to the group.
func (g *Group) HasMember(identity string) bool {
	for _, m := range g.Members {
		if m == identity {
			return true
		}
	}
	return false
}
