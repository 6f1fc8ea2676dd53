package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

// Outcome labels for chatsync_reconcile_total.
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

var (
	// reconcileOps counts reconciliation units by operation, kind and outcome.
	reconcileOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_reconcile_total",
			Help: "Total number of reconciliation units by operation, kind and outcome.",
		},
		[]string{"op", "kind", "outcome"},
	)

	// reconcileLat records unit duration including lock wait.
	reconcileLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_reconcile_duration_seconds",
			Help:    "Duration of reconciliation units in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "kind"},
	)

	// setChanges counts rows touched by set reconciliation.
	setChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_set_changes_total",
			Help: "Rows created, updated or deleted by set reconciliation.",
		},
		[]string{"kind", "change"},
	)
)

func init() {
	prometheus.MustRegister(reconcileOps, reconcileLat, setChanges)
}

// Outcome classifies err into one of the Outcome* labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrInvalid):
		return OutcomeInvalid
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrConflict):
		return OutcomeConflict
	}
	return OutcomeError
}

// ObserveReconcile records one finished unit.
func ObserveReconcile(op string, kind domain.Kind, err error, elapsed time.Duration) {
	reconcileOps.WithLabelValues(op, string(kind), Outcome(err)).Inc()
	reconcileLat.WithLabelValues(op, string(kind)).Observe(elapsed.Seconds())
}

// ObserveSetChanges records the size of a committed set reconciliation.
func ObserveSetChanges(kind domain.Kind, created, updated, deleted int) {
	k := string(kind)
	setChanges.WithLabelValues(k, "created").Add(float64(created))
	setChanges.WithLabelValues(k, "updated").Add(float64(updated))
	setChanges.WithLabelValues(k, "deleted").Add(float64(deleted))
}
