package services

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-chat-sync/internal/domain"
	"github.com/tbourn/go-chat-sync/internal/observability"
	"github.com/tbourn/go-chat-sync/internal/reconcile"
)

// Core is the reconciliation contract the services write through.
// *reconcile.Reconciler implements it.
type Core interface {
	ReconcileOrCreate(ctx context.Context, kind domain.Kind, id any, desired domain.Fields) (domain.Entity, error)
	ReconcileSet(ctx context.Context, spec reconcile.SetSpec, parent any, desired []domain.Fields) (reconcile.Changeset, error)
	CreateWithDependent(ctx context.Context, spec reconcile.CompoundSpec, parentFields, template domain.Fields) (domain.Entity, error)
	UpdateWithDependent(ctx context.Context, spec reconcile.CompoundSpec, parentFields domain.Fields, dependent domain.Entity, changes domain.Fields) (domain.Entity, error)

	Create(ctx context.Context, kind domain.Kind, raw domain.Fields) (domain.Entity, error)
	Get(ctx context.Context, kind domain.Kind, id any) (domain.Entity, error)
	Update(ctx context.Context, kind domain.Kind, id any, raw domain.Fields) (domain.Entity, error)
	Delete(ctx context.Context, kind domain.Kind, id any) error
}

var _ Core = (*reconcile.Reconciler)(nil)

// startSpan opens a span named "<service>.<op>".
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return observability.Tracer("services").Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
