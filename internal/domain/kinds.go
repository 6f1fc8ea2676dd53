package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind names an entity kind. Kinds are the unit of dispatch for validation
// and storage.
type Kind string

// Known entity kinds.
const (
	KindChat               Kind = "chat"
	KindTerm               Kind = "term"
	KindPermission         Kind = "permission"
	KindSponsor            Kind = "sponsor"
	KindSponsorshipHistory Kind = "sponsorship_history"
)

// IDSource describes where an entity's identifier comes from.
type IDSource int

const (
	// IDFromCaller means the caller supplies the id (external identifiers).
	IDFromCaller IDSource = iota
	// IDFromToken means the writer generates an opaque token (UUID) on create.
	IDFromToken
	// IDFromStore means the database assigns the id (serial column).
	IDFromStore
)

// Entity is implemented by every persisted model.
type Entity interface {
	EntityKind() Kind
	PrimaryKey() any
}

// Fields is a column-name keyed set of values, either raw (as received from a
// caller) or validated (cast to the column's Go type).
type Fields map[string]any

// Clone returns a shallow copy of f. A nil receiver yields an empty map.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type kindSpec struct {
	ids IDSource
	new func() Entity
}

var kinds = map[Kind]kindSpec{
	KindChat:               {ids: IDFromCaller, new: func() Entity { return &Chat{} }},
	KindTerm:               {ids: IDFromCaller, new: func() Entity { return &Term{} }},
	KindPermission:         {ids: IDFromStore, new: func() Entity { return &Permission{} }},
	KindSponsor:            {ids: IDFromToken, new: func() Entity { return &Sponsor{} }},
	KindSponsorshipHistory: {ids: IDFromToken, new: func() Entity { return &SponsorshipHistory{} }},
}

// New returns a pointer to a zero model of the given kind.
func New(kind Kind) (Entity, error) {
	spec, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("domain: unknown kind %q", kind)
	}
	return spec.new(), nil
}

// IDSourceOf reports how identifiers of kind are assigned. Unknown kinds are
// treated as caller-keyed.
func IDSourceOf(kind Kind) IDSource {
	return kinds[kind].ids
}

// Assign copies fields onto the model e, matching keys against the model's
// JSON (column) names. Keys absent from fields leave the model untouched, so
// Assign serves both for building new rows and applying updates.
func Assign(e Entity, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("domain: encode %s fields: %w", e.EntityKind(), err)
	}
	if err := json.Unmarshal(raw, e); err != nil {
		return fmt.Errorf("domain: decode %s fields: %w", e.EntityKind(), err)
	}
	return nil
}
