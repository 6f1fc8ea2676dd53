package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

// ReconcileOrCreate fetches the entity of kind identified by id and updates
// it with desired, or creates it from desired plus id when absent. Both
// steps run in one unit under the identifier's lock, so concurrent calls
// for the same id never both create.
//
// Only kinds whose identifier is supplied by the caller can be reconciled
// this way.
func (r *Reconciler) ReconcileOrCreate(ctx context.Context, kind domain.Kind, id any, desired domain.Fields) (domain.Entity, error) {
	if domain.IDSourceOf(kind) != domain.IDFromCaller {
		return nil, fmt.Errorf("reconcile: %s identifiers are not caller-supplied", kind)
	}

	var out domain.Entity
	err := r.run(ctx, "upsert", kind, lockKey(kind, id), func(ctx context.Context, u domain.Unit) error {
		existing, err := u.Get(ctx, kind, id)
		switch {
		case err == nil:
			out, err = r.Writer.Update(ctx, u, existing, desired)
			return err
		case errors.Is(err, domain.ErrNotFound):
			fields := desired.Clone()
			fields["id"] = id
			out, err = r.Writer.Create(ctx, u, kind, fields)
			return err
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
