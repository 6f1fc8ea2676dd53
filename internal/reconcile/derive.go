package reconcile

import (
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

// ReachedAtDerivation keeps "reached implies reached_at" true for
// sponsorship history. When the record is (or stays) reached and no
// reached_at value is supplied, reached_at becomes clock(). A non-null
// reached_at already stored is kept; an explicit timestamp in fields is
// preserved exactly.
func ReachedAtDerivation(clock func() time.Time) Derivation {
	if clock == nil {
		clock = time.Now
	}
	return func(fields domain.Fields, existing domain.Entity) domain.Fields {
		prev, _ := existing.(*domain.SponsorshipHistory)

		reached := prev != nil && prev.HasReached
		if v, ok := fields["has_reached"]; ok {
			reached = truthy(v)
		}
		if !reached {
			return fields
		}

		v, present := fields["reached_at"]
		if present && !blank(v) {
			return fields
		}
		if prev != nil && prev.ReachedAt != nil {
			if !present {
				return fields
			}
			out := fields.Clone()
			out["reached_at"] = prev.ReachedAt.UTC()
			return out
		}
		out := fields.Clone()
		out["reached_at"] = clock().UTC()
		return out
	}
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		p, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && p
	}
	return false
}

func blank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case *time.Time:
		return x == nil
	}
	return false
}
