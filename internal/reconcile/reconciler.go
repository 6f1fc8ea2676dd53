package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-chat-sync/internal/domain"
	"github.com/tbourn/go-chat-sync/internal/lock"
	"github.com/tbourn/go-chat-sync/internal/logging"
	"github.com/tbourn/go-chat-sync/internal/observability"
)

// Reconciler runs reconciliation operations against a store.
type Reconciler struct {
	Store  domain.Transactor
	Writer *Writer
	// Locker serializes operations on the same identifier. Nil disables
	// locking, leaving exclusion to the store.
	Locker lock.Locker
}

// New returns a Reconciler.
func New(store domain.Transactor, w *Writer, l lock.Locker) *Reconciler {
	return &Reconciler{Store: store, Writer: w, Locker: l}
}

// run executes fn in one unit of work, under lockKey when non-empty, and
// records the outcome.
func (r *Reconciler) run(ctx context.Context, op string, kind domain.Kind, lockKey string, fn func(context.Context, domain.Unit) error) error {
	start := time.Now()
	ctx, span := observability.Tracer("reconcile").Start(ctx, op, trace.WithAttributes(
		attribute.String("entity.kind", string(kind)),
		attribute.String("lock.key", lockKey),
	))
	defer span.End()

	err := r.locked(ctx, lockKey, func() error {
		return r.Store.InUnit(ctx, func(u domain.Unit) error { return fn(ctx, u) })
	})
	observability.ObserveReconcile(op, kind, err, time.Since(start))

	lg := logging.FromContext(ctx)
	switch {
	case err == nil:
		lg.Debug().Str("op", op).Str("kind", string(kind)).Dur("elapsed", time.Since(start)).Msg("unit committed")
	case errors.Is(err, domain.ErrInvalid), errors.Is(err, domain.ErrNotFound):
		span.SetStatus(codes.Error, err.Error())
		lg.Debug().Err(err).Str("op", op).Str("kind", string(kind)).Msg("unit rolled back")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		lg.Error().Err(err).Str("op", op).Str("kind", string(kind)).Msg("unit failed")
	}
	return err
}

func (r *Reconciler) locked(ctx context.Context, key string, fn func() error) error {
	if key == "" || r.Locker == nil {
		return fn()
	}
	unlock, err := r.Locker.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("reconcile: lock %s: %w", key, err)
	}
	defer unlock()
	return fn()
}

// lockKey normalizes id so 42 and "42" share a lock.
func lockKey(kind domain.Kind, id any) string {
	if k, ok := naturalKey(id); ok {
		return string(kind) + ":" + k
	}
	return fmt.Sprintf("%s:%v", kind, id)
}
