package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tbourn/go-chat-sync/internal/domain"
	"github.com/tbourn/go-chat-sync/internal/logging"
	"github.com/tbourn/go-chat-sync/internal/observability"
)

// SetSpec describes a child collection reconciled against its parent.
type SetSpec struct {
	// Kind is the child kind.
	Kind domain.Kind
	// ParentKey is the child's foreign-key column, stamped on every write.
	ParentKey string
	// ParentKind, when set, makes the unit load the parent first and fail
	// with a NotFoundError if it is gone. On Postgres the read also locks
	// the parent row until commit.
	ParentKind domain.Kind
	// NaturalKey is the column identifying a child within its parent.
	NaturalKey string
	// Scope returns the filter selecting parent's current children.
	Scope func(parent any) domain.Filter
	// KeyOf extracts the normalized natural key from a stored child.
	KeyOf func(domain.Entity) string
}

// PermissionSet reconciles a chat's permission list keyed by user id.
func PermissionSet() SetSpec {
	return SetSpec{
		Kind:       domain.KindPermission,
		ParentKey:  "chat_id",
		ParentKind: domain.KindChat,
		NaturalKey: "user_id",
		Scope: func(parent any) domain.Filter {
			id, _ := toInt64(parent)
			return domain.ByChat(id)
		},
		KeyOf: func(e domain.Entity) string {
			return strconv.FormatInt(e.(*domain.Permission).UserID, 10)
		},
	}
}

// Changeset lists the natural keys touched by a set reconciliation. Lists
// from ReconcileSet are never nil, so they encode as JSON arrays.
type Changeset struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
	Deleted []string `json:"deleted"`
}

// Empty reports whether nothing was written.
func (c Changeset) Empty() bool {
	return len(c.Created) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// ReconcileSet makes parent's children of spec.Kind match desired exactly.
//
// Children whose natural key is absent from desired are deleted (in key
// order, one delete each) before any upsert. Each desired record then
// updates the child with the same key from the snapshot taken at the start
// of the unit, keeping its row identity, or creates a new child stamped with
// the parent key. Duplicate keys in desired resolve to the last entry, at the
// position of the first.
func (r *Reconciler) ReconcileSet(ctx context.Context, spec SetSpec, parent any, desired []domain.Fields) (Changeset, error) {
	var cs Changeset
	key := "set:" + lockKey(spec.Kind, parent)
	err := r.run(ctx, "set", spec.Kind, key, func(ctx context.Context, u domain.Unit) error {
		cs = Changeset{Created: []string{}, Updated: []string{}, Deleted: []string{}}

		order := make([]string, 0, len(desired))
		wanted := make(map[string]domain.Fields, len(desired))
		for i, d := range desired {
			k, ok := naturalKey(d[spec.NaturalKey])
			if !ok {
				return &domain.ValidationError{
					Kind:   spec.Kind,
					Field:  spec.NaturalKey,
					Reason: fmt.Sprintf("can't be blank (record %d)", i),
				}
			}
			if _, dup := wanted[k]; dup {
				logging.FromContext(ctx).Warn().
					Str("kind", string(spec.Kind)).
					Str("key", k).
					Msg("duplicate natural key in desired set; last entry wins")
			} else {
				order = append(order, k)
			}
			wanted[k] = d
		}

		if spec.ParentKind != "" {
			if _, err := u.Get(ctx, spec.ParentKind, parent); err != nil {
				return err
			}
		}

		current, err := u.FindAll(ctx, spec.Kind, spec.Scope(parent))
		if err != nil {
			return err
		}
		snapshot := make(map[string]domain.Entity, len(current))
		for _, e := range current {
			snapshot[spec.KeyOf(e)] = e
		}

		for k := range snapshot {
			if _, keep := wanted[k]; !keep {
				cs.Deleted = append(cs.Deleted, k)
			}
		}
		sort.Strings(cs.Deleted)
		for _, k := range cs.Deleted {
			if err := r.Writer.Delete(ctx, u, snapshot[k]); err != nil {
				return err
			}
		}

		for _, k := range order {
			fields := wanted[k].Clone()
			fields[spec.ParentKey] = parent
			if existing, ok := snapshot[k]; ok {
				if _, err := r.Writer.Update(ctx, u, existing, fields); err != nil {
					return err
				}
				cs.Updated = append(cs.Updated, k)
				continue
			}
			if _, err := r.Writer.Create(ctx, u, spec.Kind, fields); err != nil {
				return err
			}
			cs.Created = append(cs.Created, k)
		}
		return nil
	})
	if err != nil {
		return Changeset{}, err
	}
	observability.ObserveSetChanges(spec.Kind, len(cs.Created), len(cs.Updated), len(cs.Deleted))
	return cs, nil
}

// naturalKey normalizes a key value so 7, 7.0, "7" and json.Number("7")
// compare equal. It reports false for missing or blank keys.
func naturalKey(v any) (string, bool) {
	if i, ok := toInt64(v); ok {
		return strconv.FormatInt(i, 10), true
	}
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case fmt.Stringer:
		s := strings.TrimSpace(x.String())
		return s, s != ""
	}
	return "", false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}
