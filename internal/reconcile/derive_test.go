package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

func TestReachedAtDerivation(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	explicit := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	d := ReachedAtDerivation(func() time.Time { return now })

	reachedPrev := &domain.SponsorshipHistory{HasReached: true, ReachedAt: &earlier}
	openPrev := &domain.SponsorshipHistory{}

	cases := []struct {
		name     string
		fields   domain.Fields
		existing domain.Entity
		want     any
		present  bool
	}{
		{"not reached", domain.Fields{"amount": 1}, nil, nil, false},
		{"reached now", domain.Fields{"has_reached": true}, nil, now, true},
		{"reached string", domain.Fields{"has_reached": "true"}, nil, now, true},
		{"explicit kept", domain.Fields{"has_reached": true, "reached_at": explicit}, nil, explicit, true},
		{"blank replaced", domain.Fields{"has_reached": true, "reached_at": ""}, nil, now, true},
		{"stays reached untouched", domain.Fields{"hidden": true}, reachedPrev, nil, false},
		{"null restores previous", domain.Fields{"reached_at": nil}, reachedPrev, earlier, true},
		{"becomes reached", domain.Fields{"has_reached": true}, openPrev, now, true},
		{"unreached ignored", domain.Fields{"has_reached": false}, reachedPrev, nil, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			in := c.fields.Clone()
			out := d(c.fields, c.existing)
			v, ok := out["reached_at"]
			if ok != c.present {
				t.Fatalf("reached_at present = %v, want %v (%v)", ok, c.present, out)
			}
			if c.present && c.want != nil {
				got, isTime := v.(time.Time)
				if !isTime || !got.Equal(c.want.(time.Time)) {
					t.Fatalf("reached_at = %v, want %v", v, c.want)
				}
			}
			if len(c.fields) != len(in) {
				t.Fatalf("input fields mutated: %v", c.fields)
			}
		})
	}
}

func TestReachedAt_KeptAcrossUpdates(t *testing.T) {
	r := newTestReconciler(t)
	ctx := context.Background()

	e, err := r.Create(ctx, domain.KindSponsorshipHistory, domain.Fields{"amount": 5, "has_reached": true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h := e.(*domain.SponsorshipHistory)
	if h.ReachedAt == nil || !h.ReachedAt.Equal(testNow) {
		t.Fatalf("reached_at = %v", h.ReachedAt)
	}

	later := testNow.Add(48 * time.Hour)
	r.Writer.derivations = nil
	r.Writer.Derive(domain.KindSponsorshipHistory, ReachedAtDerivation(func() time.Time { return later }))

	e, err = r.Update(ctx, domain.KindSponsorshipHistory, h.ID, domain.Fields{"has_reached": true, "amount": 6})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	h = e.(*domain.SponsorshipHistory)
	if h.ReachedAt == nil || !h.ReachedAt.Equal(testNow) {
		t.Fatalf("reached_at must be kept on update, got %v", h.ReachedAt)
	}
	if h.Amount != 6 {
		t.Fatalf("amount = %d", h.Amount)
	}
}
