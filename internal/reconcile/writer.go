// Package reconcile brings persisted entities into agreement with
// caller-supplied desired state.
//
// Three patterns are provided on top of a validated single-entity Writer:
//
//   - ReconcileOrCreate: fetch-or-create-then-update for one entity keyed by an
//     externally supplied identifier.
//   - ReconcileSet: full-set reconciliation of a child collection against a
//     desired list, keyed by a natural key (delete missing, upsert present).
//   - CreateWithDependent / UpdateWithDependent: compound writes that create
//     (or update) an attachment entity and link it by foreign key into a
//     dependent entity.
//
// Every operation runs in exactly one unit of work obtained from a
// domain.Transactor and either commits all of its effects or none of them.
// Operations touching a caller-chosen identifier first take a per-key lock,
// since a row that does not exist yet cannot be row-locked.
package reconcile

import (
	"context"

	"github.com/google/uuid"

	"github.com/tbourn/go-chat-sync/internal/domain"
	"github.com/tbourn/go-chat-sync/internal/validation"
)

// Validator validates raw fields for a kind. *validation.Validator
// satisfies it.
type Validator interface {
	Validate(kind domain.Kind, mode validation.Mode, raw domain.Fields) (domain.Fields, error)
}

// Derivation rewrites raw fields before validation. existing is nil on
// create. Implementations must not mutate fields in place.
type Derivation func(fields domain.Fields, existing domain.Entity) domain.Fields

// Writer performs single-entity writes through validation. Each call makes
// exactly one storage write and never retries.
type Writer struct {
	Validator Validator
	// NewID generates identifiers for token-keyed kinds.
	NewID func() string

	derivations map[domain.Kind][]Derivation
}

// NewWriter returns a Writer generating UUID tokens.
func NewWriter(v Validator) *Writer {
	return &Writer{Validator: v, NewID: uuid.NewString}
}

// Derive registers d for kind. Derivations run in registration order on
// both the create and update paths.
func (w *Writer) Derive(kind domain.Kind, d Derivation) {
	if w.derivations == nil {
		w.derivations = make(map[domain.Kind][]Derivation)
	}
	w.derivations[kind] = append(w.derivations[kind], d)
}

// Create validates raw and inserts a new entity of kind. A validation error
// is returned as is.
func (w *Writer) Create(ctx context.Context, u domain.Unit, kind domain.Kind, raw domain.Fields) (domain.Entity, error) {
	fields, err := w.Validator.Validate(kind, validation.Create, w.derive(kind, raw, nil))
	if err != nil {
		return nil, err
	}
	if domain.IDSourceOf(kind) == domain.IDFromToken {
		fields["id"] = w.NewID()
	}
	return u.Insert(ctx, kind, fields)
}

// Update validates raw against existing's kind and applies it. The
// identifier is never part of an update.
func (w *Writer) Update(ctx context.Context, u domain.Unit, existing domain.Entity, raw domain.Fields) (domain.Entity, error) {
	kind := existing.EntityKind()
	fields, err := w.Validator.Validate(kind, validation.Update, w.derive(kind, raw, existing))
	if err != nil {
		return nil, err
	}
	return u.Update(ctx, kind, existing.PrimaryKey(), fields)
}

// Delete removes existing unconditionally.
func (w *Writer) Delete(ctx context.Context, u domain.Unit, existing domain.Entity) error {
	return u.Delete(ctx, existing.EntityKind(), existing.PrimaryKey())
}

func (w *Writer) derive(kind domain.Kind, raw domain.Fields, existing domain.Entity) domain.Fields {
	fields := raw
	for _, d := range w.derivations[kind] {
		fields = d(fields, existing)
	}
	return fields
}
