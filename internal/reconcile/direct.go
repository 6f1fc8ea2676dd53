package reconcile

import (
	"context"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

// Create validates raw and inserts a new entity of kind in its own unit.
// Creating a caller-keyed entity whose id already exists fails with a
// conflicting *domain.StorageError.
func (r *Reconciler) Create(ctx context.Context, kind domain.Kind, raw domain.Fields) (domain.Entity, error) {
	var out domain.Entity
	err := r.run(ctx, "create", kind, "", func(ctx context.Context, u domain.Unit) error {
		var err error
		out, err = r.Writer.Create(ctx, u, kind, raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get loads one entity, or returns *domain.NotFoundError.
func (r *Reconciler) Get(ctx context.Context, kind domain.Kind, id any) (domain.Entity, error) {
	var out domain.Entity
	err := r.run(ctx, "get", kind, "", func(ctx context.Context, u domain.Unit) error {
		var err error
		out, err = u.Get(ctx, kind, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Find returns every entity of kind matching f.
func (r *Reconciler) Find(ctx context.Context, kind domain.Kind, f domain.Filter) ([]domain.Entity, error) {
	var out []domain.Entity
	err := r.run(ctx, "find", kind, "", func(ctx context.Context, u domain.Unit) error {
		var err error
		out, err = u.FindAll(ctx, kind, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies raw to the existing entity identified by id. Unlike
// ReconcileOrCreate it never creates: a missing entity yields
// *domain.NotFoundError.
func (r *Reconciler) Update(ctx context.Context, kind domain.Kind, id any, raw domain.Fields) (domain.Entity, error) {
	var out domain.Entity
	err := r.run(ctx, "update", kind, lockKey(kind, id), func(ctx context.Context, u domain.Unit) error {
		existing, err := u.Get(ctx, kind, id)
		if err != nil {
			return err
		}
		out, err = r.Writer.Update(ctx, u, existing, raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the entity identified by id, or returns
// *domain.NotFoundError. Dependents follow the store's foreign-key rules.
func (r *Reconciler) Delete(ctx context.Context, kind domain.Kind, id any) error {
	return r.run(ctx, "delete", kind, lockKey(kind, id), func(ctx context.Context, u domain.Unit) error {
		existing, err := u.Get(ctx, kind, id)
		if err != nil {
			return err
		}
		return r.Writer.Delete(ctx, u, existing)
	})
}
