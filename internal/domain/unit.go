package domain

import "context"

// Unit is an atomic unit of work over the persisted entity sets. Reads see
// the unit's own writes; nothing is visible to other units until commit.
//
// Implementations return *NotFoundError from Get, Update and Delete when the
// row is absent, and *StorageError for engine failures.
type Unit interface {
	// Get loads a single entity by primary key.
	Get(ctx context.Context, kind Kind, id any) (Entity, error)
	// FindAll returns every entity of kind matching f.
	FindAll(ctx context.Context, kind Kind, f Filter) ([]Entity, error)
	// Insert writes a new row built from fields and returns it materialized.
	Insert(ctx context.Context, kind Kind, fields Fields) (Entity, error)
	// Update applies fields to the row identified by id and returns it.
	Update(ctx context.Context, kind Kind, id any, fields Fields) (Entity, error)
	// Delete removes the row identified by id.
	Delete(ctx context.Context, kind Kind, id any) error
}

// Transactor opens units of work. InUnit commits when fn returns nil and
// rolls back when it returns an error, which is then returned unchanged.
type Transactor interface {
	InUnit(ctx context.Context, fn func(Unit) error) error
}

// Filter selects entities by optional criteria. Only non-nil fields become
// predicates; a zero Filter matches every row of the kind.
type Filter struct {
	ChatID     *int64
	UserID     *int64
	SponsorID  *string
	HasReached *bool
	Hidden     *bool
	IsTakeOver *bool

	// Limit caps the number of rows returned when > 0.
	Limit int
}

// ByChat returns a Filter matching rows that belong to chatID.
func ByChat(chatID int64) Filter {
	return Filter{ChatID: &chatID}
}
